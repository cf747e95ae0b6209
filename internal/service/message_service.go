package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	apperrors "mindbridge/internal/errors"
	"mindbridge/internal/model"
	"mindbridge/internal/policy"
	"mindbridge/internal/repository"
)

// MessageService exposes messaging and read-state operations.
type MessageService interface {
	Send(ctx context.Context, caller policy.Caller, conversationID uuid.UUID, content string) (*model.Message, error)
	List(ctx context.Context, caller policy.Caller, conversationID uuid.UUID) ([]model.Message, error)
	MarkAsRead(ctx context.Context, caller policy.Caller, conversationID, messageID uuid.UUID) (*model.Message, error)
	MarkConversationAsRead(ctx context.Context, caller policy.Caller, conversationID uuid.UUID) (int64, error)
	UnreadCount(ctx context.Context, caller policy.Caller) (int64, error)
}

type messageService struct {
	convRepo repository.ConversationRepository
	msgRepo  repository.MessageRepository
}

// NewMessageService creates a new message service.
func NewMessageService(convRepo repository.ConversationRepository, msgRepo repository.MessageRepository) MessageService {
	return &messageService{convRepo: convRepo, msgRepo: msgRepo}
}

func (s *messageService) conversation(ctx context.Context, id uuid.UUID) (*model.Conversation, error) {
	conv, err := s.convRepo.FindByID(ctx, id)
	if err != nil {
		return nil, conversationLookupError(err)
	}
	return conv, nil
}

// Send appends a message. The sender type follows the caller's role and the
// conversation itself is left untouched.
func (s *messageService) Send(ctx context.Context, caller policy.Caller, conversationID uuid.UUID, content string) (*model.Message, error) {
	conv, err := s.conversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	senderType, ok := policy.SenderTypeFor(caller.Role)
	if !ok || !policy.CanParticipate(caller, conv) {
		return nil, forbidden("not a participant of this conversation")
	}
	if err := validateContent(content); err != nil {
		return nil, err
	}

	msg := &model.Message{
		ConversationID: conv.ID,
		SenderID:       caller.ID,
		SenderType:     senderType,
		Content:        content,
	}
	if err := s.msgRepo.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	return msg, nil
}

// List returns the conversation's messages oldest first to anyone who may view it.
func (s *messageService) List(ctx context.Context, caller policy.Caller, conversationID uuid.UUID) ([]model.Message, error) {
	conv, err := s.conversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !policy.CanAccess(caller, conv) {
		return nil, forbidden("no access to this conversation")
	}
	msgs, err := s.msgRepo.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

func (s *messageService) MarkAsRead(ctx context.Context, caller policy.Caller, conversationID, messageID uuid.UUID) (*model.Message, error) {
	conv, err := s.conversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !policy.CanParticipate(caller, conv) {
		return nil, forbidden("not a participant of this conversation")
	}

	msg, err := s.msgRepo.FindInConversation(ctx, conversationID, messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrMessageNotFound
		}
		return nil, fmt.Errorf("find message: %w", err)
	}
	if !policy.CanMarkRead(caller, conv, msg) {
		return nil, forbidden("cannot mark your own message as read")
	}
	if msg.IsRead {
		return msg, nil
	}

	if err := s.msgRepo.MarkRead(ctx, msg.ID); err != nil {
		return nil, fmt.Errorf("mark read: %w", err)
	}
	msg.IsRead = true
	return msg, nil
}

// MarkConversationAsRead flips every unread message from the other party and
// returns how many changed. Repeating it returns 0.
func (s *messageService) MarkConversationAsRead(ctx context.Context, caller policy.Caller, conversationID uuid.UUID) (int64, error) {
	conv, err := s.conversation(ctx, conversationID)
	if err != nil {
		return 0, err
	}
	other, ok := policy.OtherParty(caller.Role)
	if !ok || !policy.CanParticipate(caller, conv) {
		return 0, forbidden("not a participant of this conversation")
	}

	n, err := s.msgRepo.MarkAllRead(ctx, conversationID, other)
	if err != nil {
		return 0, fmt.Errorf("mark all read: %w", err)
	}
	return n, nil
}

// UnreadCount counts the other party's unread messages across the caller's
// conversations. Admins take part in none, so theirs is always zero.
func (s *messageService) UnreadCount(ctx context.Context, caller policy.Caller) (int64, error) {
	other, ok := policy.OtherParty(caller.Role)
	if !ok {
		return 0, nil
	}

	id := caller.ID
	var scope repository.UnreadScope
	if caller.IsStudent() {
		scope.OwnerID = &id
	} else {
		scope.AssignedTo = &id
	}

	n, err := s.msgRepo.CountUnread(ctx, scope, other)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return n, nil
}
