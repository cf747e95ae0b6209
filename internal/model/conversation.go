package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AnonymousUsername replaces the owner's username on anonymous conversations.
const AnonymousUsername = "Anonymous"

// Category classifies what a conversation is about.
type Category string

const (
	CategoryAcademic     Category = "academic"
	CategoryEmotional    Category = "emotional"
	CategoryRelationship Category = "relationship"
	CategoryFamily       Category = "family"
	CategoryTrauma       Category = "trauma"
	CategoryOther        Category = "other"
)

// Valid reports whether c is one of the declared categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryAcademic, CategoryEmotional, CategoryRelationship,
		CategoryFamily, CategoryTrauma, CategoryOther:
		return true
	}
	return false
}

// Urgency is the triage bucket of a conversation.
type Urgency string

const (
	UrgencyLow       Urgency = "low"
	UrgencyMedium    Urgency = "medium"
	UrgencyHigh      Urgency = "high"
	UrgencyEmergency Urgency = "emergency"
)

// Valid reports whether u is one of the declared urgencies.
func (u Urgency) Valid() bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyEmergency:
		return true
	}
	return false
}

// Urgencies lists every urgency, most urgent first.
func Urgencies() []Urgency {
	return []Urgency{UrgencyEmergency, UrgencyHigh, UrgencyMedium, UrgencyLow}
}

// ConversationStatus represents the lifecycle state of a conversation.
type ConversationStatus string

const (
	StatusNew        ConversationStatus = "new"
	StatusInProgress ConversationStatus = "in_progress"
	StatusResolved   ConversationStatus = "resolved"
	StatusClosed     ConversationStatus = "closed"
)

// Valid reports whether s is one of the declared statuses.
func (s ConversationStatus) Valid() bool {
	switch s {
	case StatusNew, StatusInProgress, StatusResolved, StatusClosed:
		return true
	}
	return false
}

// Statuses lists every status in lifecycle order.
func Statuses() []ConversationStatus {
	return []ConversationStatus{StatusNew, StatusInProgress, StatusResolved, StatusClosed}
}

// OpenStatuses are the statuses a counselor still has to work on.
func OpenStatuses() []ConversationStatus {
	return []ConversationStatus{StatusNew, StatusInProgress}
}

// Conversation is a support thread opened by a student.
type Conversation struct {
	ID          uuid.UUID          `json:"id" swaggertype:"string" format:"uuid" gorm:"type:char(36);primaryKey"`
	UserID      uuid.UUID          `json:"user_id" swaggertype:"string" format:"uuid" gorm:"type:char(36);not null;index"`
	IsAnonymous bool               `json:"is_anonymous" gorm:"default:false"`
	Category    Category           `json:"category" gorm:"type:varchar(20);not null"`
	Urgency     Urgency            `json:"urgency" gorm:"type:varchar(20);not null;default:'medium';index"`
	Status      ConversationStatus `json:"status" gorm:"type:varchar(20);not null;default:'new';index"`
	AssignedTo  *uuid.UUID         `json:"assigned_to" swaggertype:"string" format:"uuid" gorm:"type:char(36);index"`
	CreatedAt   time.Time          `json:"created_at" gorm:"index"`
	UpdatedAt   time.Time          `json:"updated_at"`

	// Relations
	User      *User     `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Counselor *User     `json:"counselor,omitempty" gorm:"foreignKey:AssignedTo"`
	Messages  []Message `json:"messages,omitempty" gorm:"foreignKey:ConversationID"`
}

// BeforeCreate sets UUID and enum defaults before creating the record.
func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Urgency == "" {
		c.Urgency = UrgencyMedium
	}
	if c.Status == "" {
		c.Status = StatusNew
	}
	return nil
}

// IsAssigned reports whether a counselor has claimed the conversation.
func (c *Conversation) IsAssigned() bool {
	return c.AssignedTo != nil && *c.AssignedTo != uuid.Nil
}

// IsAssignedTo reports whether the conversation is assigned to the given user.
func (c *Conversation) IsAssignedTo(id uuid.UUID) bool {
	return c.IsAssigned() && *c.AssignedTo == id
}
