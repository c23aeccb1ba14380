package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/awards/internal/auditctx"
	"github.com/charlesng35/awards/internal/models"
)

func TestAuditRecordUsesActorMetadata(t *testing.T) {
	f := newFixture(t)
	ctx := auditctx.WithActor(context.Background(), auditctx.Actor{
		UserID:    f.admin.ID,
		IPAddress: "192.0.2.10",
		UserAgent: "curl/8",
	})

	log, err := f.audit.Record(ctx, nil, AuditEntry{
		UserID:    f.admin.ID,
		Action:    ActionVotingToggle,
		Entity:    EntitySetting,
		EntityID:  models.SettingVotingOpen,
		NewValues: map[string]any{"open": true},
	})
	require.NoError(t, err)
	require.Equal(t, "192.0.2.10", log.IPAddress)
	require.Equal(t, "curl/8", log.UserAgent)

	_, err = f.audit.Record(ctx, nil, AuditEntry{Action: "x", Entity: "y"})
	require.Error(t, err)
}

func TestAuditLogsAreImmutable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	log, err := f.audit.Record(ctx, nil, AuditEntry{UserID: f.admin.ID, Action: ActionCategoryCreate, Entity: EntityCategory})
	require.NoError(t, err)

	require.ErrorIs(t, f.db.Model(log).Update("action", "tampered").Error, models.ErrAdminLogImmutable)
	require.ErrorIs(t, f.db.Delete(log).Error, models.ErrAdminLogImmutable)
}

func TestAuditListNewestFirstWithFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, action := range []string{ActionCategoryCreate, ActionCandidateCreate, ActionCandidateRename} {
		_, err := f.audit.Record(ctx, nil, AuditEntry{UserID: f.admin.ID, Action: action, Entity: EntityCandidate})
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}

	logs, total, err := f.audit.List(ctx, AuditListOptions{Page: 1, PageSize: 2})
	require.NoError(t, err)
	require.Equal(t, int64(3), total)
	require.Len(t, logs, 2)
	require.Equal(t, ActionCandidateRename, logs[0].Action)
	require.Equal(t, ActionCandidateCreate, logs[1].Action)

	logs, _, err = f.audit.List(ctx, AuditListOptions{Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Equal(t, ActionCategoryCreate, logs[0].Action)

	logs, total, err = f.audit.List(ctx, AuditListOptions{Filters: AuditFilters{Action: ActionCandidateRename, UserID: f.admin.ID}})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Len(t, logs, 1)
}
