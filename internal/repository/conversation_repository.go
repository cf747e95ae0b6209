package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"mindbridge/internal/model"
)

// ConversationFilter narrows conversation queries. Zero values mean "any".
type ConversationFilter struct {
	UserID     *uuid.UUID
	Statuses   []model.ConversationStatus
	Urgency    model.Urgency
	Category   model.Category
	AssignedTo *uuid.UUID
	// Unassigned keeps conversations with no counselor.
	Unassigned bool
	// VisibleTo keeps conversations that are unassigned or assigned to this counselor.
	VisibleTo *uuid.UUID
	// OldestFirst orders by created_at ascending instead of newest first.
	OldestFirst bool
}

// CountBucket is one row of a grouped count.
type CountBucket struct {
	Bucket string
	Total  int64
}

// ConversationRepository defines conversation persistence operations.
type ConversationRepository interface {
	CreateWithMessage(ctx context.Context, conv *model.Conversation, first *model.Message) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Conversation, error)
	FindByIDWithMessages(ctx context.Context, id uuid.UUID) (*model.Conversation, error)
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error
	List(ctx context.Context, filter ConversationFilter) ([]model.Conversation, error)
	CountByStatus(ctx context.Context, filter ConversationFilter) ([]CountBucket, error)
	CountByUrgency(ctx context.Context, filter ConversationFilter) ([]CountBucket, error)
}

type conversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository creates a new conversation repository.
func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

// CreateWithMessage stores a conversation and its opening message together.
func (r *conversationRepository) CreateWithMessage(ctx context.Context, conv *model.Conversation, first *model.Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("User", "Counselor", "Messages").Create(conv).Error; err != nil {
			return err
		}
		first.ConversationID = conv.ID
		return tx.Create(first).Error
	})
}

func (r *conversationRepository) withParties(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("User").Preload("Counselor")
}

// FindByID finds a conversation with its owner and counselor.
func (r *conversationRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Conversation, error) {
	var conv model.Conversation
	if err := r.withParties(ctx).Where("id = ?", id).First(&conv).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

// FindByIDWithMessages also loads the messages, oldest first.
func (r *conversationRepository) FindByIDWithMessages(ctx context.Context, id uuid.UUID) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.withParties(ctx).
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Where("id = ?", id).
		First(&conv).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// UpdateFields updates the given columns; gorm.ErrRecordNotFound when nothing matched.
func (r *conversationRepository) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&model.Conversation{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func applyFilter(q *gorm.DB, f ConversationFilter) *gorm.DB {
	if f.UserID != nil {
		q = q.Where("conversations.user_id = ?", *f.UserID)
	}
	if len(f.Statuses) > 0 {
		q = q.Where("conversations.status IN ?", f.Statuses)
	}
	if f.Urgency != "" {
		q = q.Where("conversations.urgency = ?", f.Urgency)
	}
	if f.Category != "" {
		q = q.Where("conversations.category = ?", f.Category)
	}
	if f.AssignedTo != nil {
		q = q.Where("conversations.assigned_to = ?", *f.AssignedTo)
	}
	if f.Unassigned {
		q = q.Where("conversations.assigned_to IS NULL")
	}
	if f.VisibleTo != nil {
		q = q.Where("(conversations.assigned_to IS NULL OR conversations.assigned_to = ?)", *f.VisibleTo)
	}
	return q
}

// List returns matching conversations with owner and counselor loaded.
func (r *conversationRepository) List(ctx context.Context, filter ConversationFilter) ([]model.Conversation, error) {
	q := applyFilter(r.withParties(ctx).Model(&model.Conversation{}), filter)
	if filter.OldestFirst {
		q = q.Order("conversations.created_at ASC")
	} else {
		q = q.Order("conversations.created_at DESC")
	}
	var convs []model.Conversation
	if err := q.Find(&convs).Error; err != nil {
		return nil, err
	}
	return convs, nil
}

func (r *conversationRepository) countBy(ctx context.Context, column string, filter ConversationFilter) ([]CountBucket, error) {
	var rows []CountBucket
	err := applyFilter(r.db.WithContext(ctx).Model(&model.Conversation{}), filter).
		Select("conversations." + column + " AS bucket, COUNT(*) AS total").
		Group("conversations." + column).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *conversationRepository) CountByStatus(ctx context.Context, filter ConversationFilter) ([]CountBucket, error) {
	return r.countBy(ctx, "status", filter)
}

func (r *conversationRepository) CountByUrgency(ctx context.Context, filter ConversationFilter) ([]CountBucket, error) {
	return r.countBy(ctx, "urgency", filter)
}
