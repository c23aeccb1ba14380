package handlers_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/awards/internal/handlers/testutil"
	"github.com/charlesng35/awards/internal/monitoring"
)

func TestHealthEndpoints(t *testing.T) {
	env := testutil.NewEnv(t)

	resp := env.Request(http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = env.Request(http.MethodGet, "/health/live", nil, "")
	require.Equal(t, http.StatusOK, resp.Code)

	resp = env.Request(http.MethodGet, "/health/ready", nil, "")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var report monitoring.HealthReport
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &report))
	components := map[string]monitoring.ProbeResult{}
	for _, check := range report.Checks {
		components[check.Component] = check
	}
	require.Contains(t, components, "database")
	require.Contains(t, components, "redis")
	require.Equal(t, monitoring.StatusUp, components["voting"].Status)
	require.Contains(t, components["voting"].Details, "closed")
}

func TestAdminHealthAndMetrics(t *testing.T) {
	env := testutil.NewEnv(t)
	_, adminToken := env.Admin()
	_, voterToken := env.Voter()

	resp := env.Request(http.MethodGet, "/api/admin/health", nil, voterToken)
	require.Equal(t, http.StatusForbidden, resp.Code)

	env.Jobs.Record("sessions", nil, 0)
	resp = env.Request(http.MethodGet, "/api/admin/health", nil, adminToken)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	require.Contains(t, resp.Body.String(), `"job":"sessions"`)

	resp = env.Request(http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), "awards_auth_attempts_total")
}

func TestUnknownRouteReturnsEnvelope(t *testing.T) {
	env := testutil.NewEnv(t)

	resp := env.Request(http.MethodGet, "/api/nope", nil, "")
	require.Equal(t, http.StatusNotFound, resp.Code)
	require.Equal(t, "NOT_FOUND", testutil.ErrorCode(t, resp))
}
