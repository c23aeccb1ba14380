package models

import "time"

// CacheEntry backs the database cache store used when Redis is not configured.
type CacheEntry struct {
	Key       string    `gorm:"column:cache_key;primaryKey;size:256"`
	Value     []byte    `gorm:"type:blob"`
	ExpiresAt time.Time `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
