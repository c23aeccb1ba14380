package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/awards/internal/models"
)

// GetSetting decodes the JSON value stored under key into dest. It reports
// false without error when the key has never been written.
func GetSetting(ctx context.Context, db *gorm.DB, key string, dest any) (bool, error) {
	if db == nil {
		return false, errors.New("app settings: db is nil")
	}

	var setting models.AppSetting
	err := db.WithContext(ctx).Take(&setting, "setting_key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("app settings: get %q: %w", key, err)
	}
	if len(setting.Value) == 0 || dest == nil {
		return true, nil
	}
	if err := json.Unmarshal(setting.Value, dest); err != nil {
		return true, fmt.Errorf("app settings: decode %q: %w", key, err)
	}
	return true, nil
}

// GetSettings loads several keys in one query, returning raw JSON per key.
func GetSettings(ctx context.Context, db *gorm.DB, keys ...string) (map[string]datatypes.JSON, error) {
	if db == nil {
		return nil, errors.New("app settings: db is nil")
	}

	var rows []models.AppSetting
	if err := db.WithContext(ctx).Where("setting_key IN ?", keys).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("app settings: load: %w", err)
	}
	out := make(map[string]datatypes.JSON, len(rows))
	for _, row := range rows {
		out[row.Key] = row.Value
	}
	return out, nil
}

// UpsertSetting stores value as JSON under key in a single statement.
func UpsertSetting(ctx context.Context, db *gorm.DB, key string, value any) error {
	if db == nil {
		return errors.New("app settings: db is nil")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("app settings: key is required")
	}

	raw, err := encodeSetting(value)
	if err != nil {
		return fmt.Errorf("app settings: encode %q: %w", key, err)
	}

	setting := models.AppSetting{Key: key, Value: raw}
	err = db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "setting_key"}},
		DoUpdates: clause.Assignments(map[string]any{"value": raw, "updated_at": time.Now().UTC()}),
	}).Create(&setting).Error
	if err != nil {
		return fmt.Errorf("app settings: upsert %q: %w", key, err)
	}
	return nil
}

func encodeSetting(value any) (datatypes.JSON, error) {
	if raw, ok := value.(datatypes.JSON); ok {
		return raw, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(data), nil
}
