package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/charlesng35/awards/internal/app"
	"github.com/charlesng35/awards/internal/database/testutil"
	"github.com/charlesng35/awards/internal/models"
	"github.com/charlesng35/awards/pkg/mail"
)

type discardOutbox struct{}

func (discardOutbox) Enqueue(mail.Message) error { return nil }

func newBootstrapServices(t *testing.T) *app.Services {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	cfg := &app.Config{
		Auth: app.AuthConfig{Session: app.SessionSettings{TTL: time.Hour, TokenLength: 32}},
		Verification: app.VerificationConfig{
			CodeTTL:    10 * time.Minute,
			CodeLength: 6,
		},
		Voting: app.VotingConfig{DeviceMode: "flag", MaxAccountsDevice: 1},
	}

	svc, err := app.NewServices(cfg, app.ServiceDeps{DB: db, Outbox: discardOutbox{}})
	require.NoError(t, err)
	return svc
}

func TestEnsureBootstrapAdminCreatesOnce(t *testing.T) {
	svc := newBootstrapServices(t)
	cfg := &app.Config{Bootstrap: app.BootstrapConfig{
		AdminName:     "Root",
		AdminEmail:    "root@awards.test",
		AdminPassword: "bootstrap-secret",
	}}
	ctx := context.Background()

	require.NoError(t, ensureBootstrapAdmin(ctx, cfg, svc, zap.NewNop()))
	require.NoError(t, ensureBootstrapAdmin(ctx, cfg, svc, zap.NewNop()))

	user, err := svc.Identity.FindByEmail(ctx, "root@awards.test")
	require.NoError(t, err)
	require.Equal(t, models.RoleSuperAdmin, user.Role)
	require.Equal(t, "Root", user.Name)
}

func TestEnsureBootstrapAdminSkipsWithoutEmail(t *testing.T) {
	svc := newBootstrapServices(t)
	require.NoError(t, ensureBootstrapAdmin(context.Background(), &app.Config{}, svc, zap.NewNop()))
}

func TestEnsureBootstrapAdminRequiresPassword(t *testing.T) {
	svc := newBootstrapServices(t)
	cfg := &app.Config{Bootstrap: app.BootstrapConfig{AdminEmail: "root@awards.test"}}

	err := ensureBootstrapAdmin(context.Background(), cfg, svc, zap.NewNop())
	require.Error(t, err)
	require.Contains(t, err.Error(), "admin_password")
}

func TestNewMailerFallsBackWhenSMTPDisabled(t *testing.T) {
	mailer := newMailer(&app.Config{}, zap.NewNop())
	require.NotNil(t, mailer)

	_, isFunc := mailer.(mail.MailerFunc)
	require.True(t, isFunc)
	require.NoError(t, mailer.Send(context.Background(), mail.Message{
		To:      []string{"voter@awards.test"},
		Subject: "code",
	}))
}

func TestShutdownToleratesPartialStack(t *testing.T) {
	var stack *runtimeStack
	stack.Shutdown(context.Background(), zap.NewNop())

	(&runtimeStack{}).Shutdown(context.Background(), zap.NewNop())
}

func TestLoadApplicationConfigRejectsMissingPath(t *testing.T) {
	_, err := loadApplicationConfig(t.TempDir() + "/missing")
	require.Error(t, err)
	require.Contains(t, err.Error(), "does not exist")
}

func TestRunMigrateOnly(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("AWARDS_DATABASE_DRIVER", "sqlite")
	t.Setenv("AWARDS_DATABASE_PATH", dir+"/awards.db")

	require.NoError(t, run(context.Background(), []string{"-config", dir, "-migrate-only"}))
	require.FileExists(t, dir+"/awards.db")
}
