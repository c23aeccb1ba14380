package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBeforeCreateGeneratesIDs(t *testing.T) {
	var base BaseModel
	require.NoError(t, base.BeforeCreate(nil))
	require.NotEmpty(t, base.ID)

	kept := BaseModel{ID: "fixed"}
	require.NoError(t, kept.BeforeCreate(nil))
	require.Equal(t, "fixed", kept.ID)

	vote := &Vote{}
	require.NoError(t, vote.BeforeCreate(nil))
	require.NotEmpty(t, vote.ID)

	session := &Session{}
	require.NoError(t, session.BeforeCreate(nil))
	require.NotEmpty(t, session.ID)

	device := &DeviceRegistration{}
	require.NoError(t, device.BeforeCreate(nil))
	require.NotEmpty(t, device.ID)
}

func TestAdminLogRejectsMutation(t *testing.T) {
	entry := &AdminLog{}
	require.ErrorIs(t, entry.BeforeUpdate(nil), ErrAdminLogImmutable)
	require.ErrorIs(t, entry.BeforeDelete(nil), ErrAdminLogImmutable)
}

func TestSessionActiveAt(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := &Session{ExpiresAt: now}
	require.False(t, s.ActiveAt(now), "expiry instant is already expired")
	require.True(t, s.ActiveAt(now.Add(-time.Second)))

	var missing *Session
	require.False(t, missing.ActiveAt(now))
}

func TestRoles(t *testing.T) {
	require.True(t, ValidRole(RoleVoter))
	require.True(t, ValidRole(RoleSuperAdmin))
	require.False(t, ValidRole("ADMIN"))

	require.True(t, (&User{Role: RoleSuperAdmin}).IsSuperAdmin())
	require.False(t, (&User{Role: RoleVoter}).IsSuperAdmin())
}
