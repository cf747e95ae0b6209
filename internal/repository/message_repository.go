package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"mindbridge/internal/model"
)

// UnreadScope selects the conversations an unread count runs over.
// Exactly one of OwnerID or AssignedTo is expected to be set.
type UnreadScope struct {
	OwnerID    *uuid.UUID
	AssignedTo *uuid.UUID
}

// MessageRepository defines message persistence operations.
type MessageRepository interface {
	Create(ctx context.Context, msg *model.Message) error
	FindInConversation(ctx context.Context, conversationID, id uuid.UUID) (*model.Message, error)
	ListByConversation(ctx context.Context, conversationID uuid.UUID) ([]model.Message, error)
	MarkRead(ctx context.Context, id uuid.UUID) error
	MarkAllRead(ctx context.Context, conversationID uuid.UUID, from model.SenderType) (int64, error)
	CountUnread(ctx context.Context, scope UnreadScope, from model.SenderType) (int64, error)
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new message repository.
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(ctx context.Context, msg *model.Message) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

// FindInConversation finds a message only if it belongs to the conversation.
func (r *messageRepository) FindInConversation(ctx context.Context, conversationID, id uuid.UUID) (*model.Message, error) {
	var msg model.Message
	if err := r.db.WithContext(ctx).
		Where("id = ? AND conversation_id = ?", id, conversationID).
		First(&msg).Error; err != nil {
		return nil, err
	}
	return &msg, nil
}

// ListByConversation returns messages oldest first.
func (r *messageRepository) ListByConversation(ctx context.Context, conversationID uuid.UUID) ([]model.Message, error) {
	var msgs []model.Message
	if err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *messageRepository) MarkRead(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&model.Message{}).
		Where("id = ?", id).
		Update("is_read", true).Error
}

// MarkAllRead flips every unread message from the given side in one statement
// and reports how many rows changed.
func (r *messageRepository) MarkAllRead(ctx context.Context, conversationID uuid.UUID, from model.SenderType) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.Message{}).
		Where("conversation_id = ? AND sender_type = ? AND is_read = ?", conversationID, from, false).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}

// CountUnread counts unread messages from the given side across the scoped conversations.
func (r *messageRepository) CountUnread(ctx context.Context, scope UnreadScope, from model.SenderType) (int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Message{}).
		Joins("JOIN conversations ON conversations.id = messages.conversation_id").
		Where("messages.sender_type = ? AND messages.is_read = ?", from, false)
	if scope.OwnerID != nil {
		q = q.Where("conversations.user_id = ?", *scope.OwnerID)
	}
	if scope.AssignedTo != nil {
		q = q.Where("conversations.assigned_to = ?", *scope.AssignedTo)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}
