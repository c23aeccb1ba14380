package models

import "time"

// EmailVerification holds the single outstanding code for a user. Requesting a
// new code overwrites the row, which supersedes any previous code.
type EmailVerification struct {
	BaseModel

	UserID     string     `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	Email      string     `gorm:"size:320;not null" json:"email"`
	CodeHash   string     `gorm:"size:64;not null" json:"-"`
	ExpiresAt  time.Time  `gorm:"index;not null" json:"expires_at"`
	ConsumedAt *time.Time `gorm:"index" json:"consumed_at,omitempty"`
}
