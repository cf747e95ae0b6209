package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MaxMessageLength bounds the text of a single message.
const MaxMessageLength = 5000

// SenderType records which side of a conversation authored a message.
type SenderType string

const (
	SenderStudent   SenderType = "student"
	SenderCounselor SenderType = "counselor"
)

// Valid reports whether t is one of the declared sender types.
func (t SenderType) Valid() bool {
	switch t {
	case SenderStudent, SenderCounselor:
		return true
	}
	return false
}

// Message is one turn in a conversation.
// SenderType is captured from the sender's role at creation and never changes.
type Message struct {
	ID             uuid.UUID  `json:"id" swaggertype:"string" format:"uuid" gorm:"type:char(36);primaryKey"`
	ConversationID uuid.UUID  `json:"conversation_id" swaggertype:"string" format:"uuid" gorm:"type:char(36);not null;index"`
	SenderID       uuid.UUID  `json:"sender_id" swaggertype:"string" format:"uuid" gorm:"type:char(36);not null;index"`
	SenderType     SenderType `json:"sender_type" gorm:"type:varchar(20);not null;index"`
	Content        string     `json:"content" gorm:"type:text;not null"`
	IsRead         bool       `json:"is_read" gorm:"default:false;index"`
	CreatedAt      time.Time  `json:"created_at" gorm:"index"`
}

// BeforeCreate sets UUID before creating the record.
func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
