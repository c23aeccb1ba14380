package models

import (
	"time"

	"gorm.io/gorm"
)

// Session binds an opaque bearer token (stored only as its SHA-256 hash) to a user.
type Session struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID    string    `gorm:"type:uuid;not null;index" json:"user_id"`
	User      *User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
	TokenHash string    `gorm:"uniqueIndex;size:64;not null" json:"-"`
	IPAddress string    `gorm:"size:64" json:"ip_address"`
	UserAgent string    `gorm:"size:512" json:"user_agent"`
	ExpiresAt time.Time `gorm:"index;not null" json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Session) BeforeCreate(*gorm.DB) error {
	s.ID = ensureID(s.ID)
	return nil
}

// ActiveAt reports whether the session is still usable at t.
func (s *Session) ActiveAt(t time.Time) bool {
	return s != nil && t.Before(s.ExpiresAt)
}
