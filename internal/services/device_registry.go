package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/awards/internal/models"
	"github.com/charlesng35/awards/pkg/logger"
	"github.com/charlesng35/awards/pkg/metrics"
)

// DeviceMetadata is the request context recorded with a fingerprint.
type DeviceMetadata struct {
	IPAddress string
	UserAgent string
}

// DeviceResult reports what the registry knows about a fingerprint.
type DeviceResult struct {
	IsNewDevice           bool  `json:"is_new_device"`
	OtherAccountsOnDevice int64 `json:"other_accounts_on_device"`
	OtherAccountsOnIP     int64 `json:"other_accounts_on_ip"`
}

// DeviceUsage counts the distinct other accounts seen on the same
// fingerprints and on the same IP addresses as a user.
type DeviceUsage struct {
	SharedDevice int64
	SharedIP     int64
}

// DeviceSignal exposes shared-device counts to the vote ledger.
type DeviceSignal interface {
	AccountUsage(ctx context.Context, tx *gorm.DB, userID string) (DeviceUsage, error)
}

type DeviceOption func(*DeviceRegistry)

func WithDeviceClock(clock func() time.Time) DeviceOption {
	return func(r *DeviceRegistry) {
		if clock != nil {
			r.now = clock
		}
	}
}

func WithDeviceLogger(log *zap.Logger) DeviceOption {
	return func(r *DeviceRegistry) {
		if log != nil {
			r.log = log
		}
	}
}

// DeviceRegistry records which accounts have been used from which browser
// fingerprints. Registration is an abuse signal and never fails the caller.
type DeviceRegistry struct {
	db  *gorm.DB
	now func() time.Time
	log *zap.Logger
}

func NewDeviceRegistry(db *gorm.DB, opts ...DeviceOption) (*DeviceRegistry, error) {
	if db == nil {
		return nil, errors.New("device registry: db is required")
	}
	r := &DeviceRegistry{db: db, now: time.Now, log: logger.WithModule("devices")}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// RegisterDevice upserts the (user, fingerprint) pair and reports how many
// other accounts have used the same fingerprint. Storage failures are logged
// and yield the zero result.
func (r *DeviceRegistry) RegisterDevice(ctx context.Context, userID, fingerprint string, meta DeviceMetadata) DeviceResult {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)
	fingerprint = strings.TrimSpace(fingerprint)
	if userID == "" || fingerprint == "" {
		return DeviceResult{}
	}

	result, err := r.register(ctx, userID, fingerprint, meta)
	if err != nil {
		metrics.DeviceRegistrations.WithLabelValues("error").Inc()
		r.log.Error("device registration failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return DeviceResult{}
	}

	switch {
	case result.OtherAccountsOnDevice > 0 || result.OtherAccountsOnIP > 0:
		metrics.DeviceRegistrations.WithLabelValues("shared").Inc()
		r.log.Warn("device or address shared across accounts",
			zap.String("user_id", userID),
			zap.Int64("other_accounts_device", result.OtherAccountsOnDevice),
			zap.Int64("other_accounts_ip", result.OtherAccountsOnIP),
		)
	case result.IsNewDevice:
		metrics.DeviceRegistrations.WithLabelValues("new").Inc()
	default:
		metrics.DeviceRegistrations.WithLabelValues("known").Inc()
	}
	return result
}

func (r *DeviceRegistry) register(ctx context.Context, userID, fingerprint string, meta DeviceMetadata) (DeviceResult, error) {
	now := r.now().UTC()
	var result DeviceResult

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		device := models.DeviceRegistration{
			UserID:      userID,
			Fingerprint: fingerprint,
			IPAddress:   truncate(meta.IPAddress, 64),
			UserAgent:   truncate(meta.UserAgent, 512),
			FirstSeenAt: now,
			LastSeenAt:  now,
		}
		insert := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "fingerprint"}},
			DoNothing: true,
		}).Create(&device)
		if insert.Error != nil {
			return fmt.Errorf("insert device: %w", insert.Error)
		}
		result.IsNewDevice = insert.RowsAffected == 1

		if !result.IsNewDevice {
			updates := map[string]any{"last_seen_at": now}
			if device.IPAddress != "" {
				updates["ip_address"] = device.IPAddress
			}
			if device.UserAgent != "" {
				updates["user_agent"] = device.UserAgent
			}
			if err := tx.Model(&models.DeviceRegistration{}).
				Where("user_id = ? AND fingerprint = ?", userID, fingerprint).
				Updates(updates).Error; err != nil {
				return fmt.Errorf("touch device: %w", err)
			}
		}

		if err := tx.Model(&models.DeviceRegistration{}).
			Where("fingerprint = ? AND user_id <> ?", fingerprint, userID).
			Distinct("user_id").
			Count(&result.OtherAccountsOnDevice).Error; err != nil {
			return fmt.Errorf("count device accounts: %w", err)
		}
		if device.IPAddress == "" {
			return nil
		}
		if err := tx.Model(&models.DeviceRegistration{}).
			Where("ip_address = ? AND user_id <> ?", device.IPAddress, userID).
			Distinct("user_id").
			Count(&result.OtherAccountsOnIP).Error; err != nil {
			return fmt.Errorf("count address accounts: %w", err)
		}
		return nil
	})
	if err != nil {
		return DeviceResult{}, err
	}
	return result, nil
}

// SharedAccountCount returns the number of distinct other accounts that share
// at least one fingerprint with userID. db may be a transaction.
func (r *DeviceRegistry) SharedAccountCount(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	ctx = ensureContext(ctx)
	if db == nil {
		db = r.db
	}

	fingerprints := db.Model(&models.DeviceRegistration{}).
		Select("fingerprint").
		Where("user_id = ?", userID)

	var count int64
	err := db.WithContext(ctx).
		Model(&models.DeviceRegistration{}).
		Where("fingerprint IN (?) AND user_id <> ?", fingerprints, userID).
		Distinct("user_id").
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("device registry: shared accounts: %w", err)
	}
	return count, nil
}

// SharedIPAccountCount returns the number of distinct other accounts that
// registered a device from any IP address userID registered from. Rows
// without an address are ignored.
func (r *DeviceRegistry) SharedIPAccountCount(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	ctx = ensureContext(ctx)
	if db == nil {
		db = r.db
	}

	addresses := db.Model(&models.DeviceRegistration{}).
		Select("ip_address").
		Where("user_id = ? AND ip_address <> ''", userID)

	var count int64
	err := db.WithContext(ctx).
		Model(&models.DeviceRegistration{}).
		Where("ip_address IN (?) AND user_id <> ?", addresses, userID).
		Distinct("user_id").
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("device registry: shared addresses: %w", err)
	}
	return count, nil
}

// AccountUsage combines SharedAccountCount and SharedIPAccountCount for the
// vote ledger. db may be a transaction.
func (r *DeviceRegistry) AccountUsage(ctx context.Context, db *gorm.DB, userID string) (DeviceUsage, error) {
	device, err := r.SharedAccountCount(ctx, db, userID)
	if err != nil {
		return DeviceUsage{}, err
	}
	ip, err := r.SharedIPAccountCount(ctx, db, userID)
	if err != nil {
		return DeviceUsage{}, err
	}
	return DeviceUsage{SharedDevice: device, SharedIP: ip}, nil
}

// Devices lists the fingerprints registered for a user, most recent first.
func (r *DeviceRegistry) Devices(ctx context.Context, userID string) ([]models.DeviceRegistration, error) {
	var devices []models.DeviceRegistration
	err := r.db.WithContext(ensureContext(ctx)).
		Where("user_id = ?", userID).
		Order("last_seen_at DESC").
		Find(&devices).Error
	if err != nil {
		return nil, fmt.Errorf("device registry: list devices: %w", err)
	}
	return devices, nil
}

// truncate trims value to at most max bytes without splitting a rune, so
// the result stays valid UTF-8. Invalid input bytes are dropped first.
func truncate(value string, max int) string {
	value = strings.ToValidUTF8(strings.TrimSpace(value), "")
	if len(value) <= max {
		return value
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(value[cut]) {
		cut--
	}
	return value[:cut]
}
