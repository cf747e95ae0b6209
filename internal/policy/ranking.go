package policy

import (
	"sort"

	"mindbridge/internal/model"
)

// unranked places values outside the urgency enum after every known bucket.
const unranked = 5

// UrgencyRank maps an urgency to its triage rank; lower sorts first.
func UrgencyRank(u model.Urgency) int {
	switch u {
	case model.UrgencyEmergency:
		return 1
	case model.UrgencyHigh:
		return 2
	case model.UrgencyMedium:
		return 3
	case model.UrgencyLow:
		return 4
	}
	return unranked
}

// Rank orders conversations by urgency bucket, then oldest first.
// Ties keep their input order, which is the store's order.
func Rank(convs []model.Conversation) []model.Conversation {
	ranked := make([]model.Conversation, len(convs))
	copy(ranked, convs)
	sort.SliceStable(ranked, func(i, j int) bool {
		ri, rj := UrgencyRank(ranked[i].Urgency), UrgencyRank(ranked[j].Urgency)
		if ri != rj {
			return ri < rj
		}
		return ranked[i].CreatedAt.Before(ranked[j].CreatedAt)
	})
	return ranked
}
