package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/awards/internal/handlers/testutil"
	"github.com/charlesng35/awards/internal/services"
)

func registerDevice(t *testing.T, env *testutil.Env, token, fingerprint string) services.DeviceResult {
	t.Helper()
	resp := env.Request(http.MethodPost, "/api/devices/register", map[string]string{"fingerprint": fingerprint}, token)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var result services.DeviceResult
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &result)
	return result
}

func TestDeviceRegistration(t *testing.T) {
	env := testutil.NewEnv(t)
	_, first := env.Voter()
	_, second := env.Voter()

	result := registerDevice(t, env, first, "fp-family-tablet")
	require.True(t, result.IsNewDevice)
	require.Zero(t, result.OtherAccountsOnDevice)

	result = registerDevice(t, env, first, "fp-family-tablet")
	require.False(t, result.IsNewDevice)

	result = registerDevice(t, env, second, "fp-family-tablet")
	require.True(t, result.IsNewDevice)
	require.Equal(t, int64(1), result.OtherAccountsOnDevice)
	// Both test clients connect from the same address.
	require.Equal(t, int64(1), result.OtherAccountsOnIP)
}

func TestDeviceRegistrationValidatesFingerprint(t *testing.T) {
	env := testutil.NewEnv(t)
	_, token := env.Voter()

	for _, fingerprint := range []string{"", "short", "has spaces in it"} {
		resp := env.Request(http.MethodPost, "/api/devices/register", map[string]string{"fingerprint": fingerprint}, token)
		require.Equal(t, http.StatusBadRequest, resp.Code, fingerprint)
	}
}
