package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "mindbridge/internal/errors"
	"mindbridge/internal/model"
	"mindbridge/internal/policy"
	"mindbridge/internal/repository"
)

// CreateConversationInput is what a student supplies to open a conversation.
type CreateConversationInput struct {
	Category    model.Category
	Urgency     model.Urgency
	IsAnonymous bool
	Content     string
}

// ConversationQuery holds the optional list filters.
type ConversationQuery struct {
	Status     model.ConversationStatus
	Urgency    model.Urgency
	Category   model.Category
	AssignedTo *uuid.UUID
}

// ConversationUpdate holds the fields a counselor or admin may change. Nil means unchanged.
type ConversationUpdate struct {
	Status     *model.ConversationStatus
	Urgency    *model.Urgency
	AssignedTo *uuid.UUID
}

// Statistics summarizes the conversations visible to a caller.
type Statistics struct {
	Total          int64                              `json:"total"`
	Unassigned     int64                              `json:"unassigned"`
	ByStatus       map[model.ConversationStatus]int64 `json:"by_status"`
	ByUrgency      map[model.Urgency]int64            `json:"by_urgency"`
	ResolutionRate decimal.Decimal                    `json:"resolution_rate" swaggertype:"string"`
}

// ConversationService exposes conversation operations scoped by the caller's role.
type ConversationService interface {
	Create(ctx context.Context, caller policy.Caller, in CreateConversationInput) (*model.Conversation, error)
	List(ctx context.Context, caller policy.Caller, q ConversationQuery) ([]model.Conversation, error)
	PriorityQueue(ctx context.Context, caller policy.Caller, status model.ConversationStatus, assignedTo *uuid.UUID) ([]model.Conversation, error)
	Statistics(ctx context.Context, caller policy.Caller) (*Statistics, error)
	Get(ctx context.Context, caller policy.Caller, id uuid.UUID) (*model.Conversation, error)
	Update(ctx context.Context, caller policy.Caller, id uuid.UUID, in ConversationUpdate) (*model.Conversation, error)
	Assign(ctx context.Context, caller policy.Caller, id, counselorID uuid.UUID) (*model.Conversation, error)
	ToggleAnonymity(ctx context.Context, caller policy.Caller, id uuid.UUID) (*model.Conversation, error)
}

type conversationService struct {
	convRepo repository.ConversationRepository
	userRepo repository.UserRepository
}

// NewConversationService creates a new conversation service.
func NewConversationService(convRepo repository.ConversationRepository, userRepo repository.UserRepository) ConversationService {
	return &conversationService{convRepo: convRepo, userRepo: userRepo}
}

func validateContent(content string) error {
	n := utf8.RuneCountInString(content)
	if strings.TrimSpace(content) == "" || n > model.MaxMessageLength {
		return fmt.Errorf("%w: message content must be 1 to %d characters", apperrors.ErrInvalidInput, model.MaxMessageLength)
	}
	return nil
}

func forbidden(detail string) error {
	return fmt.Errorf("%w: %s", apperrors.ErrForbidden, detail)
}

// Create opens a conversation owned by the calling student, with its first message.
func (s *conversationService) Create(ctx context.Context, caller policy.Caller, in CreateConversationInput) (*model.Conversation, error) {
	if !policy.CanCreateConversation(caller) {
		return nil, forbidden("only students can start conversations")
	}
	if !in.Category.Valid() {
		return nil, fmt.Errorf("%w: unknown category %q", apperrors.ErrInvalidInput, in.Category)
	}
	if in.Urgency == "" {
		in.Urgency = model.UrgencyMedium
	}
	if !in.Urgency.Valid() {
		return nil, fmt.Errorf("%w: unknown urgency %q", apperrors.ErrInvalidInput, in.Urgency)
	}
	if err := validateContent(in.Content); err != nil {
		return nil, err
	}

	conv := &model.Conversation{
		UserID:      caller.ID,
		IsAnonymous: in.IsAnonymous,
		Category:    in.Category,
		Urgency:     in.Urgency,
		Status:      model.StatusNew,
	}
	first := &model.Message{
		SenderID:   caller.ID,
		SenderType: model.SenderStudent,
		Content:    in.Content,
	}
	if err := s.convRepo.CreateWithMessage(ctx, conv, first); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return s.load(ctx, conv.ID)
}

// scope builds the visibility filter for a caller, rejecting counselors that
// ask for another counselor's caseload.
func scope(caller policy.Caller, assignedTo *uuid.UUID) (repository.ConversationFilter, error) {
	var f repository.ConversationFilter
	switch caller.Role {
	case model.RoleStudent:
		id := caller.ID
		f.UserID = &id
	case model.RoleCounselor:
		if !policy.CanListAll(caller, assignedTo) {
			return f, forbidden("counselors may only filter by their own assignments")
		}
		id := caller.ID
		f.VisibleTo = &id
	case model.RoleAdmin:
	default:
		return f, forbidden("unknown role")
	}
	f.AssignedTo = assignedTo
	return f, nil
}

func (s *conversationService) List(ctx context.Context, caller policy.Caller, q ConversationQuery) ([]model.Conversation, error) {
	filter, err := scope(caller, q.AssignedTo)
	if err != nil {
		return nil, err
	}
	if q.Status != "" {
		filter.Statuses = []model.ConversationStatus{q.Status}
	}
	filter.Urgency = q.Urgency
	filter.Category = q.Category

	convs, err := s.convRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return policy.RedactAll(convs), nil
}

// PriorityQueue returns open conversations, most urgent first and oldest
// first within an urgency. An explicit status replaces the open-status default.
func (s *conversationService) PriorityQueue(ctx context.Context, caller policy.Caller, status model.ConversationStatus, assignedTo *uuid.UUID) ([]model.Conversation, error) {
	if caller.IsStudent() {
		return nil, forbidden("students have no priority queue")
	}
	filter, err := scope(caller, assignedTo)
	if err != nil {
		return nil, err
	}
	if status != "" {
		filter.Statuses = []model.ConversationStatus{status}
	} else {
		filter.Statuses = model.OpenStatuses()
	}
	filter.OldestFirst = true

	convs, err := s.convRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return policy.Rank(policy.RedactAll(convs)), nil
}

func (s *conversationService) Statistics(ctx context.Context, caller policy.Caller) (*Statistics, error) {
	filter, err := scope(caller, nil)
	if err != nil {
		return nil, err
	}

	stats := &Statistics{
		ByStatus:  make(map[model.ConversationStatus]int64),
		ByUrgency: make(map[model.Urgency]int64),
	}
	for _, st := range model.Statuses() {
		stats.ByStatus[st] = 0
	}
	for _, u := range model.Urgencies() {
		stats.ByUrgency[u] = 0
	}

	byStatus, err := s.convRepo.CountByStatus(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	for _, row := range byStatus {
		stats.ByStatus[model.ConversationStatus(row.Bucket)] = row.Total
		stats.Total += row.Total
	}

	byUrgency, err := s.convRepo.CountByUrgency(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("count by urgency: %w", err)
	}
	for _, row := range byUrgency {
		stats.ByUrgency[model.Urgency(row.Bucket)] = row.Total
	}

	filter.Unassigned = true
	unassigned, err := s.convRepo.CountByStatus(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("count unassigned: %w", err)
	}
	for _, row := range unassigned {
		stats.Unassigned += row.Total
	}

	stats.ResolutionRate = resolutionRate(stats.ByStatus[model.StatusResolved]+stats.ByStatus[model.StatusClosed], stats.Total)
	return stats, nil
}

// resolutionRate is done/total as a percentage with two decimals.
func resolutionRate(done, total int64) decimal.Decimal {
	if total == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(done).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(total)).
		Round(2)
}

// Get returns one conversation with its messages, oldest first.
func (s *conversationService) Get(ctx context.Context, caller policy.Caller, id uuid.UUID) (*model.Conversation, error) {
	conv, err := s.convRepo.FindByIDWithMessages(ctx, id)
	if err != nil {
		return nil, conversationLookupError(err)
	}
	if !policy.CanAccess(caller, conv) {
		return nil, forbidden("no access to this conversation")
	}
	redacted := policy.Redact(*conv)
	return &redacted, nil
}

func (s *conversationService) Update(ctx context.Context, caller policy.Caller, id uuid.UUID, in ConversationUpdate) (*model.Conversation, error) {
	conv, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !policy.CanMutate(caller, conv) {
		return nil, forbidden("conversation is assigned to another counselor")
	}

	fields := make(map[string]interface{})
	if in.Status != nil {
		if !in.Status.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", apperrors.ErrInvalidInput, *in.Status)
		}
		fields["status"] = *in.Status
	}
	if in.Urgency != nil {
		if !in.Urgency.Valid() {
			return nil, fmt.Errorf("%w: unknown urgency %q", apperrors.ErrInvalidInput, *in.Urgency)
		}
		fields["urgency"] = *in.Urgency
	}
	if in.AssignedTo != nil {
		if err := s.requireCounselor(ctx, *in.AssignedTo); err != nil {
			return nil, err
		}
		fields["assigned_to"] = *in.AssignedTo
		if in.Status == nil && conv.Status == model.StatusNew {
			fields["status"] = model.StatusInProgress
		}
	}
	if len(fields) == 0 {
		return s.redacted(conv), nil
	}

	if err := s.convRepo.UpdateFields(ctx, id, fields); err != nil {
		return nil, conversationLookupError(err)
	}
	return s.load(ctx, id)
}

// Assign binds the conversation to a counselor. Any counselor or admin may
// (re)assign; a new conversation moves to in_progress.
func (s *conversationService) Assign(ctx context.Context, caller policy.Caller, id, counselorID uuid.UUID) (*model.Conversation, error) {
	if !policy.CanAssign(caller) {
		return nil, forbidden("only counselors and admins can assign conversations")
	}
	conv, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireCounselor(ctx, counselorID); err != nil {
		return nil, err
	}

	fields := map[string]interface{}{"assigned_to": counselorID}
	if conv.Status == model.StatusNew {
		fields["status"] = model.StatusInProgress
	}
	if err := s.convRepo.UpdateFields(ctx, id, fields); err != nil {
		return nil, conversationLookupError(err)
	}
	return s.load(ctx, id)
}

func (s *conversationService) ToggleAnonymity(ctx context.Context, caller policy.Caller, id uuid.UUID) (*model.Conversation, error) {
	conv, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !policy.CanToggleAnonymity(caller, conv) {
		return nil, forbidden("only the owner can change anonymity")
	}
	if err := s.convRepo.UpdateFields(ctx, id, map[string]interface{}{"is_anonymous": !conv.IsAnonymous}); err != nil {
		return nil, conversationLookupError(err)
	}
	return s.load(ctx, id)
}

func (s *conversationService) requireCounselor(ctx context.Context, id uuid.UUID) error {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrCounselorNotFound
		}
		return fmt.Errorf("find counselor: %w", err)
	}
	if user.Role != model.RoleCounselor || !user.IsActive {
		return apperrors.ErrCounselorNotFound
	}
	return nil
}

func (s *conversationService) find(ctx context.Context, id uuid.UUID) (*model.Conversation, error) {
	conv, err := s.convRepo.FindByID(ctx, id)
	if err != nil {
		return nil, conversationLookupError(err)
	}
	return conv, nil
}

func (s *conversationService) load(ctx context.Context, id uuid.UUID) (*model.Conversation, error) {
	conv, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.redacted(conv), nil
}

func (s *conversationService) redacted(conv *model.Conversation) *model.Conversation {
	out := policy.Redact(*conv)
	return &out
}

func conversationLookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.ErrConversationNotFound
	}
	return fmt.Errorf("find conversation: %w", err)
}
