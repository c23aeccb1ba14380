package models

import (
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrAdminLogImmutable = errors.New("admin log entries are immutable")

// AdminLog is an append-only record of an administrative mutation.
type AdminLog struct {
	ID        string         `gorm:"primaryKey;type:uuid" json:"id"`
	UserID    string         `gorm:"type:uuid;not null;index" json:"user_id"`
	Action    string         `gorm:"size:64;not null;index" json:"action"`
	Entity    string         `gorm:"size:64;not null;index" json:"entity"`
	EntityID  *string        `gorm:"size:64;index" json:"entity_id,omitempty"`
	OldValues datatypes.JSON `json:"old_values,omitempty"`
	NewValues datatypes.JSON `json:"new_values,omitempty"`
	IPAddress string         `gorm:"size:64" json:"ip_address,omitempty"`
	UserAgent string         `gorm:"size:512" json:"user_agent,omitempty"`
	CreatedAt time.Time      `gorm:"index" json:"created_at"`
}

func (a *AdminLog) BeforeCreate(*gorm.DB) error {
	a.ID = ensureID(a.ID)
	return nil
}

// BeforeUpdate rejects in-place edits of audit rows.
func (a *AdminLog) BeforeUpdate(*gorm.DB) error {
	return ErrAdminLogImmutable
}

// BeforeDelete rejects deletion of audit rows issued through the ORM.
func (a *AdminLog) BeforeDelete(*gorm.DB) error {
	return ErrAdminLogImmutable
}
