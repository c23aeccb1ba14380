package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/awards/internal/database"
	"github.com/charlesng35/awards/internal/database/testutil"
	"github.com/charlesng35/awards/internal/models"
	"github.com/charlesng35/awards/pkg/crypto"
	"github.com/charlesng35/awards/pkg/mail"
)

func init() {
	crypto.PasswordParams = &argon2id.Params{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
}

type testClock struct {
	mu      sync.Mutex
	current time.Time
}

func newTestClock() *testClock {
	return &testClock{current: time.Date(2026, 6, 12, 20, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}

type recordingOutbox struct {
	mu       sync.Mutex
	messages []mail.Message
	err      error
}

func (o *recordingOutbox) Enqueue(msg mail.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.messages = append(o.messages, msg)
	return nil
}

func (o *recordingOutbox) Messages() []mail.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]mail.Message(nil), o.messages...)
}

type fixture struct {
	db       *gorm.DB
	clock    *testClock
	audit    *AuditService
	identity *IdentityService
	settings *SettingsService
	catalog  *CatalogService
	devices  *DeviceRegistry
	ledger   *VoteLedger
	admin    *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	clock := newTestClock()

	audit, err := NewAuditService(db)
	require.NoError(t, err)
	identity, err := NewIdentityService(db, audit, WithIdentityClock(clock.Now))
	require.NoError(t, err)
	settings, err := NewSettingsService(db, audit, DevicePolicy{Mode: DeviceModeFlag, MaxAccounts: 1})
	require.NoError(t, err)
	catalog, err := NewCatalogService(db, audit)
	require.NoError(t, err)
	devices, err := NewDeviceRegistry(db, WithDeviceClock(clock.Now))
	require.NoError(t, err)
	ledger, err := NewVoteLedger(db, settings, audit, WithDeviceSignal(devices), WithLedgerClock(clock.Now))
	require.NoError(t, err)

	admin, err := identity.Create(context.Background(), NewUser{
		Name:     "Admin",
		Email:    "admin@awards.test",
		Password: "admin-secret",
		Role:     models.RoleSuperAdmin,
	})
	require.NoError(t, err)

	return &fixture{
		db:       db,
		clock:    clock,
		audit:    audit,
		identity: identity,
		settings: settings,
		catalog:  catalog,
		devices:  devices,
		ledger:   ledger,
		admin:    admin,
	}
}

func (f *fixture) voter(t *testing.T, name string) *models.User {
	t.Helper()
	user, err := f.identity.Create(context.Background(), NewUser{
		Name:     name,
		Email:    fmt.Sprintf("%s@awards.test", name),
		Password: "voter-secret",
	})
	require.NoError(t, err)
	return user
}

func (f *fixture) openVoting(t *testing.T) {
	t.Helper()
	require.NoError(t, database.UpsertSetting(context.Background(), f.db, models.SettingVotingOpen, true))
}

func (f *fixture) category(t *testing.T, name string, candidates ...string) (*models.Category, []*models.Candidate) {
	t.Helper()
	ctx := context.Background()
	category, err := f.catalog.CreateCategory(ctx, f.admin.ID, CategoryInput{Name: name})
	require.NoError(t, err)

	created := make([]*models.Candidate, 0, len(candidates))
	for _, candidateName := range candidates {
		candidate, err := f.catalog.CreateCandidate(ctx, f.admin.ID, category.ID, CandidateInput{Name: candidateName})
		require.NoError(t, err)
		created = append(created, candidate)
	}
	return category, created
}
