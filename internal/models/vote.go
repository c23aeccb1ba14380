package models

import (
	"time"

	"gorm.io/gorm"
)

// Vote is a single ballot. The (user_id, category_id) unique index is the only
// mechanism preventing a second ballot in the same category.
type Vote struct {
	ID            string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID        string    `gorm:"type:uuid;not null;uniqueIndex:idx_votes_user_category,priority:1" json:"user_id"`
	CategoryID    string    `gorm:"type:uuid;not null;uniqueIndex:idx_votes_user_category,priority:2;index" json:"category_id"`
	CandidateID   string    `gorm:"type:uuid;not null;index" json:"candidate_id"`
	CandidateName string    `gorm:"not null" json:"candidate_name"`
	Timestamp     int64     `gorm:"not null;index" json:"timestamp"`
	Flagged       bool      `gorm:"not null;default:false" json:"flagged"`
	CreatedAt     time.Time `json:"created_at"`
}

func (v *Vote) BeforeCreate(*gorm.DB) error {
	v.ID = ensureID(v.ID)
	return nil
}
