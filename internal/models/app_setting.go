package models

import (
	"time"

	"gorm.io/datatypes"
)

// Well known AppSetting keys.
const (
	SettingVotingOpen         = "voting_open"
	SettingVotingBlockMessage = "voting_block_message"
	SettingDevicePolicy       = "device_policy"
)

// AppSetting is a global JSON valued flag.
type AppSetting struct {
	Key       string         `gorm:"column:setting_key;primaryKey;size:128" json:"key"`
	Value     datatypes.JSON `gorm:"not null" json:"value"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}
