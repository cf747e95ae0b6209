package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role is the closed set of account roles.
type Role string

const (
	RoleStudent   Role = "STUDENT"
	RoleCounselor Role = "COUNSELOR"
	RoleAdmin     Role = "ADMIN"
)

// Valid reports whether r is one of the declared roles.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleCounselor, RoleAdmin:
		return true
	}
	return false
}

// User represents an account of any role.
type User struct {
	ID              uuid.UUID `json:"id" swaggertype:"string" format:"uuid" gorm:"type:char(36);primaryKey"`
	Username        string    `json:"username" gorm:"uniqueIndex;size:50;not null"`
	PasswordHash    string    `json:"-" gorm:"size:255;not null"` // Never expose in JSON
	RecoveryKeyHash *string   `json:"-" gorm:"size:255"`
	Role            Role      `json:"role" gorm:"type:varchar(20);not null;default:'STUDENT';index"`
	IsActive        bool      `json:"is_active" gorm:"default:true"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// BeforeCreate sets UUID before creating the record.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
