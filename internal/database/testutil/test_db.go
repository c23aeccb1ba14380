// Package testutil opens throwaway SQLite databases for package tests.
package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/awards/internal/database"
)

// TestDBOption customises MustOpenTestDB.
type TestDBOption func(*testDBConfig)

type testDBConfig struct {
	migrate  bool
	seed     bool
	settings map[string]any
}

// WithAutoMigrate creates the schema without seeding default settings.
func WithAutoMigrate() TestDBOption {
	return func(cfg *testDBConfig) { cfg.migrate = true }
}

// WithSeedData migrates and inserts the default AppSettings.
func WithSeedData() TestDBOption {
	return func(cfg *testDBConfig) {
		cfg.migrate = true
		cfg.seed = true
	}
}

// WithSettings upserts AppSettings after seeding, for example to open voting.
func WithSettings(values map[string]any) TestDBOption {
	return func(cfg *testDBConfig) {
		cfg.migrate = true
		cfg.seed = true
		if cfg.settings == nil {
			cfg.settings = make(map[string]any, len(values))
		}
		for key, value := range values {
			cfg.settings[key] = value
		}
	}
}

// MustOpenTestDB opens a private in-memory SQLite database, closed through
// t.Cleanup.
func MustOpenTestDB(t *testing.T, opts ...TestDBOption) *gorm.DB {
	t.Helper()

	var cfg testDBConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := database.Open(database.Config{Driver: "sqlite"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	switch {
	case cfg.seed:
		require.NoError(t, database.AutoMigrateAndSeed(db))
	case cfg.migrate:
		require.NoError(t, database.AutoMigrate(db))
	}

	for key, value := range cfg.settings {
		require.NoError(t, database.UpsertSetting(context.Background(), db, key, value))
	}
	return db
}
