// Package policy holds the pure authorization and triage rules for
// conversations and messages. Nothing here touches storage.
package policy

import (
	"github.com/google/uuid"

	"mindbridge/internal/model"
)

// Caller is the authenticated identity an operation runs on behalf of.
type Caller struct {
	ID   uuid.UUID
	Role model.Role
}

// IsStudent reports whether the caller has the STUDENT role.
func (c Caller) IsStudent() bool { return c.Role == model.RoleStudent }

// IsCounselor reports whether the caller has the COUNSELOR role.
func (c Caller) IsCounselor() bool { return c.Role == model.RoleCounselor }

// IsAdmin reports whether the caller has the ADMIN role.
func (c Caller) IsAdmin() bool { return c.Role == model.RoleAdmin }

// CanCreateConversation: only students open conversations.
func CanCreateConversation(caller Caller) bool {
	return caller.IsStudent()
}

// CanAccess decides whether the caller may read the conversation.
// Students see their own, counselors see unassigned or self-assigned ones,
// admins see everything.
func CanAccess(caller Caller, conv *model.Conversation) bool {
	switch caller.Role {
	case model.RoleStudent:
		return conv.UserID == caller.ID
	case model.RoleCounselor:
		return !conv.IsAssigned() || conv.IsAssignedTo(caller.ID)
	case model.RoleAdmin:
		return true
	}
	return false
}

// CanMutate decides whether the caller may change status or assignment.
func CanMutate(caller Caller, conv *model.Conversation) bool {
	switch caller.Role {
	case model.RoleStudent:
		return false
	case model.RoleCounselor:
		return !conv.IsAssigned() || conv.IsAssignedTo(caller.ID)
	case model.RoleAdmin:
		return true
	}
	return false
}

// CanAssign decides whether the caller may bind a conversation to a counselor.
// Any counselor or admin may, regardless of the current assignment.
func CanAssign(caller Caller) bool {
	switch caller.Role {
	case model.RoleCounselor, model.RoleAdmin:
		return true
	case model.RoleStudent:
		return false
	}
	return false
}

// CanToggleAnonymity: only the owning student.
func CanToggleAnonymity(caller Caller, conv *model.Conversation) bool {
	return caller.IsStudent() && conv.UserID == caller.ID
}

// CanParticipate decides whether the caller is a party to the conversation,
// i.e. may send messages and change read state in it.
func CanParticipate(caller Caller, conv *model.Conversation) bool {
	switch caller.Role {
	case model.RoleStudent:
		return conv.UserID == caller.ID
	case model.RoleCounselor:
		return conv.IsAssignedTo(caller.ID)
	case model.RoleAdmin:
		return false
	}
	return false
}

// CanMarkRead decides whether the caller may flip a single message to read.
// A party may never mark a message it authored.
func CanMarkRead(caller Caller, conv *model.Conversation, msg *model.Message) bool {
	return CanParticipate(caller, conv) && msg.SenderID != caller.ID
}

// CanListAll decides whether the caller may list conversations beyond their own.
// Counselors may only narrow the list to themselves.
func CanListAll(caller Caller, assignedTo *uuid.UUID) bool {
	switch caller.Role {
	case model.RoleStudent:
		return false
	case model.RoleCounselor:
		return assignedTo == nil || *assignedTo == caller.ID
	case model.RoleAdmin:
		return true
	}
	return false
}

// SenderTypeFor maps a role to the sender type its messages carry.
func SenderTypeFor(role model.Role) (model.SenderType, bool) {
	switch role {
	case model.RoleStudent:
		return model.SenderStudent, true
	case model.RoleCounselor:
		return model.SenderCounselor, true
	case model.RoleAdmin:
		return "", false
	}
	return "", false
}

// OtherParty returns the sender type whose messages are unread for the role.
func OtherParty(role model.Role) (model.SenderType, bool) {
	switch role {
	case model.RoleStudent:
		return model.SenderCounselor, true
	case model.RoleCounselor:
		return model.SenderStudent, true
	case model.RoleAdmin:
		return "", false
	}
	return "", false
}

// Redact returns the conversation as readers see it: when anonymous, the
// owner's username is the placeholder. The input is not modified.
func Redact(conv model.Conversation) model.Conversation {
	if conv.IsAnonymous && conv.User != nil {
		owner := *conv.User
		owner.Username = model.AnonymousUsername
		conv.User = &owner
	}
	return conv
}

// RedactAll applies Redact to each conversation.
func RedactAll(convs []model.Conversation) []model.Conversation {
	out := make([]model.Conversation, len(convs))
	for i := range convs {
		out[i] = Redact(convs[i])
	}
	return out
}
