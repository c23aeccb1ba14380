package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/awards/internal/models"
)

var errStoreNotInitialised = errors.New("cache: database store not initialised")

// DatabaseStore implements Store on the primary SQL database. It is the
// fallback when Redis is not configured.
type DatabaseStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	if db == nil {
		return nil
	}
	return &DatabaseStore{db: db, now: time.Now}
}

// IncrementWithTTL increments a fixed-window counter. The window starts on the
// first increment and is not extended by later ones.
func (s *DatabaseStore) IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if s == nil {
		return 0, 0, errStoreNotInitialised
	}
	if window <= 0 {
		window = time.Minute
	}

	now := s.now()
	var (
		count  int64
		expiry time.Time
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entry models.CacheEntry
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Take(&entry, "cache_key = ?", key).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			count, expiry = 1, now.Add(window)
			return tx.Create(&models.CacheEntry{Key: key, Value: []byte("1"), ExpiresAt: expiry}).Error
		case err != nil:
			return err
		}

		if !entry.ExpiresAt.After(now) {
			count, expiry = 1, now.Add(window)
		} else {
			current, _ := strconv.ParseInt(string(entry.Value), 10, 64)
			count, expiry = current+1, entry.ExpiresAt
		}
		return tx.Model(&models.CacheEntry{}).
			Where("cache_key = ?", key).
			Updates(map[string]any{"value": []byte(strconv.FormatInt(count, 10)), "expires_at": expiry}).Error
	})
	if err != nil {
		return 0, 0, err
	}
	return count, expiry.Sub(now), nil
}

// Set upserts the value for a given key. A non-positive ttl never expires.
func (s *DatabaseStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if s == nil {
		return errStoreNotInitialised
	}

	var expiry time.Time
	if ttl > 0 {
		expiry = s.now().Add(ttl)
	}

	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "cache_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at", "updated_at"}),
		}).Create(&models.CacheEntry{Key: key, Value: value, ExpiresAt: expiry}).Error
}

func (s *DatabaseStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s == nil {
		return nil, false, errStoreNotInitialised
	}

	var entry models.CacheEntry
	err := s.db.WithContext(ctx).Take(&entry, "cache_key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	if !entry.ExpiresAt.IsZero() && !s.now().Before(entry.ExpiresAt) {
		_ = s.Delete(ctx, key)
		return nil, false, nil
	}
	return entry.Value, true, nil
}

func (s *DatabaseStore) Delete(ctx context.Context, keys ...string) error {
	if s == nil {
		return errStoreNotInitialised
	}
	if len(keys) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Where("cache_key IN ?", keys).Delete(&models.CacheEntry{}).Error
}

// PurgeExpired removes entries whose expiry has passed.
func (s *DatabaseStore) PurgeExpired(ctx context.Context) (int64, error) {
	if s == nil {
		return 0, errStoreNotInitialised
	}
	res := s.db.WithContext(ctx).
		Where("expires_at > ? AND expires_at <= ?", time.Time{}, s.now()).
		Delete(&models.CacheEntry{})
	return res.RowsAffected, res.Error
}
