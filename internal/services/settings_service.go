package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/awards/internal/database"
	"github.com/charlesng35/awards/internal/models"
	apperrors "github.com/charlesng35/awards/pkg/errors"
)

// Device policy modes applied when several accounts share a device.
const (
	DeviceModeOff   = "off"
	DeviceModeFlag  = "flag"
	DeviceModeBlock = "block"
)

// DefaultMaxAccountsPerIP is the per-address account limit used when a
// policy does not set one.
const DefaultMaxAccountsPerIP = 3

// DevicePolicy decides what happens to ballots cast from a shared device or
// address. MaxAccounts and MaxAccountsPerIP are the number of accounts
// allowed on one fingerprint and one IP address before the mode applies.
type DevicePolicy struct {
	Mode             string `json:"mode"`
	MaxAccounts      int    `json:"max_accounts"`
	MaxAccountsPerIP int    `json:"max_accounts_per_ip"`
}

func (p DevicePolicy) normalized() DevicePolicy {
	p.Mode = strings.ToLower(strings.TrimSpace(p.Mode))
	switch p.Mode {
	case DeviceModeOff, DeviceModeFlag, DeviceModeBlock:
	default:
		p.Mode = DeviceModeFlag
	}
	if p.MaxAccounts < 1 {
		p.MaxAccounts = 1
	}
	if p.MaxAccountsPerIP < 1 {
		p.MaxAccountsPerIP = DefaultMaxAccountsPerIP
	}
	return p
}

// Exceeded reports whether the other accounts sharing a fingerprint or an
// address reach either limit. The caller's own account counts toward each
// limit, so MaxAccounts=1 tolerates no other account.
func (p DevicePolicy) Exceeded(usage DeviceUsage) bool {
	if p.Mode == DeviceModeOff {
		return false
	}
	return usage.SharedDevice >= int64(p.MaxAccounts) || usage.SharedIP >= int64(p.MaxAccountsPerIP)
}

// VotingPolicy is the state of the voting gate at a point in a transaction.
type VotingPolicy struct {
	Open         bool         `json:"open"`
	BlockMessage string       `json:"block_message,omitempty"`
	Device       DevicePolicy `json:"device_policy"`
}

// VotingGate reads the voting policy through the caller's transaction.
type VotingGate interface {
	VotingPolicy(ctx context.Context, tx *gorm.DB) (VotingPolicy, error)
}

// SettingsService reads and writes AppSetting rows that govern voting.
type SettingsService struct {
	db       *gorm.DB
	audit    *AuditService
	defaults DevicePolicy
}

func NewSettingsService(db *gorm.DB, audit *AuditService, defaults DevicePolicy) (*SettingsService, error) {
	if db == nil {
		return nil, errors.New("settings service: db is required")
	}
	if audit == nil {
		return nil, errors.New("settings service: audit service is required")
	}
	return &SettingsService{db: db, audit: audit, defaults: defaults.normalized()}, nil
}

// Row lock strengths taken on the gate settings.
const (
	lockShare  = "SHARE"
	lockUpdate = "UPDATE"
)

// VotingPolicy loads the gate. A missing or unreadable voting_open counts as
// closed. tx may be nil to read outside a transaction. Inside a transaction
// the setting rows are read FOR SHARE, so a concurrent SetVotingOpen waits for
// the caller to commit and a ballot cannot land after voting closed. SQLite
// has no row locks and serializes writers instead.
func (s *SettingsService) VotingPolicy(ctx context.Context, tx *gorm.DB) (VotingPolicy, error) {
	if tx == nil {
		return s.votingPolicy(ctx, s.db, "")
	}
	return s.votingPolicy(ctx, tx, lockShare)
}

func (s *SettingsService) votingPolicy(ctx context.Context, tx *gorm.DB, lock string) (VotingPolicy, error) {
	ctx = ensureContext(ctx)
	if lock != "" {
		tx = tx.Clauses(clause.Locking{Strength: lock})
	}

	raw, err := database.GetSettings(ctx, tx, models.SettingVotingOpen, models.SettingVotingBlockMessage, models.SettingDevicePolicy)
	if err != nil {
		return VotingPolicy{}, fmt.Errorf("settings service: %w", err)
	}

	policy := VotingPolicy{Device: s.defaults}
	if value, ok := raw[models.SettingVotingOpen]; ok && len(value) > 0 {
		var open bool
		if json.Unmarshal(value, &open) == nil {
			policy.Open = open
		}
	}
	if value, ok := raw[models.SettingVotingBlockMessage]; ok && len(value) > 0 {
		var message string
		if json.Unmarshal(value, &message) == nil {
			policy.BlockMessage = message
		}
	}
	if value, ok := raw[models.SettingDevicePolicy]; ok && len(value) > 0 {
		var device DevicePolicy
		if json.Unmarshal(value, &device) == nil {
			policy.Device = device.normalized()
		}
	}
	return policy, nil
}

// SetVotingOpen opens or closes voting. message, when non-empty, replaces the
// text returned to voters while voting is closed.
func (s *SettingsService) SetVotingOpen(ctx context.Context, adminID string, open bool, message string) (VotingPolicy, error) {
	ctx = ensureContext(ctx)
	message = strings.TrimSpace(message)

	var result VotingPolicy
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := requireSuperAdmin(tx, adminID); err != nil {
			return err
		}
		before, err := s.votingPolicy(ctx, tx, lockUpdate)
		if err != nil {
			return err
		}

		if err := database.UpsertSetting(ctx, tx, models.SettingVotingOpen, open); err != nil {
			return err
		}
		after := before
		after.Open = open
		if message != "" {
			if err := database.UpsertSetting(ctx, tx, models.SettingVotingBlockMessage, message); err != nil {
				return err
			}
			after.BlockMessage = message
		}

		if _, err := s.audit.Record(ctx, tx, AuditEntry{
			UserID:    adminID,
			Action:    ActionVotingToggle,
			Entity:    EntitySetting,
			EntityID:  models.SettingVotingOpen,
			OldValues: map[string]any{"open": before.Open, "block_message": before.BlockMessage},
			NewValues: map[string]any{"open": after.Open, "block_message": after.BlockMessage},
		}); err != nil {
			return err
		}
		result = after
		return nil
	})
	if err != nil {
		return VotingPolicy{}, err
	}
	return result, nil
}

// SetDevicePolicy stores a policy override that takes precedence over configuration.
func (s *SettingsService) SetDevicePolicy(ctx context.Context, adminID string, policy DevicePolicy) (DevicePolicy, error) {
	ctx = ensureContext(ctx)

	mode := strings.ToLower(strings.TrimSpace(policy.Mode))
	if mode != DeviceModeOff && mode != DeviceModeFlag && mode != DeviceModeBlock {
		return DevicePolicy{}, apperrors.NewBadRequest("device policy mode must be off, flag or block")
	}
	if policy.MaxAccounts < 1 {
		return DevicePolicy{}, apperrors.NewBadRequest("max_accounts must be at least 1")
	}
	if policy.MaxAccountsPerIP < 0 {
		return DevicePolicy{}, apperrors.NewBadRequest("max_accounts_per_ip must not be negative")
	}
	next := DevicePolicy{Mode: mode, MaxAccounts: policy.MaxAccounts, MaxAccountsPerIP: policy.MaxAccountsPerIP}.normalized()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := requireSuperAdmin(tx, adminID); err != nil {
			return err
		}
		before, err := s.votingPolicy(ctx, tx, lockUpdate)
		if err != nil {
			return err
		}
		if err := database.UpsertSetting(ctx, tx, models.SettingDevicePolicy, next); err != nil {
			return err
		}
		_, err = s.audit.Record(ctx, tx, AuditEntry{
			UserID:    adminID,
			Action:    ActionDevicePolicy,
			Entity:    EntitySetting,
			EntityID:  models.SettingDevicePolicy,
			OldValues: before.Device,
			NewValues: next,
		})
		return err
	})
	if err != nil {
		return DevicePolicy{}, err
	}
	return next, nil
}
