package models

import (
	"time"

	"gorm.io/gorm"
)

type DeviceRegistration struct {
	ID          string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID      string    `gorm:"type:uuid;not null;uniqueIndex:idx_devices_user_fingerprint,priority:1" json:"user_id"`
	Fingerprint string    `gorm:"size:256;not null;uniqueIndex:idx_devices_user_fingerprint,priority:2;index" json:"fingerprint"`
	IPAddress   string    `gorm:"size:64;index" json:"ip_address"`
	UserAgent   string    `gorm:"size:512" json:"user_agent"`
	FirstSeenAt time.Time `gorm:"not null" json:"first_seen_at"`
	LastSeenAt  time.Time `gorm:"not null" json:"last_seen_at"`
}

func (d *DeviceRegistration) BeforeCreate(*gorm.DB) error {
	d.ID = ensureID(d.ID)
	return nil
}
