package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/awards/internal/handlers/testutil"
	"github.com/charlesng35/awards/internal/models"
)

func TestAuthRegisterLoginLogout(t *testing.T) {
	env := testutil.NewEnv(t)

	body := map[string]string{"name": "Ada", "email": "Ada@Awards.test", "password": "correct-horse"}
	resp := env.Request(http.MethodPost, "/api/auth/register", body, "")
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	var registered testutil.SessionResult
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &registered)
	require.NotEmpty(t, registered.Token)
	require.Equal(t, "ada@awards.test", registered.User.Email)
	require.Equal(t, models.RoleVoter, registered.User.Role)

	again := env.Request(http.MethodPost, "/api/auth/register", body, "")
	require.Equal(t, http.StatusConflict, again.Code)
	require.Equal(t, "EMAIL_TAKEN", testutil.ErrorCode(t, again))

	login := env.Login("ada@awards.test", "correct-horse")

	me := env.Request(http.MethodGet, "/api/auth/me", nil, login.Token)
	require.Equal(t, http.StatusOK, me.Code, me.Body.String())
	require.NotContains(t, me.Body.String(), "password")

	logout := env.Request(http.MethodPost, "/api/auth/logout", nil, login.Token)
	require.Equal(t, http.StatusOK, logout.Code)

	me = env.Request(http.MethodGet, "/api/auth/me", nil, login.Token)
	require.Equal(t, http.StatusUnauthorized, me.Code)

	// the registration session is independent of the revoked login session
	me = env.Request(http.MethodGet, "/api/auth/me", nil, registered.Token)
	require.Equal(t, http.StatusOK, me.Code)
}

func TestAuthRejectsBadCredentials(t *testing.T) {
	env := testutil.NewEnv(t)
	user := env.CreateUser(models.RoleVoter, "voter-secret")

	resp := env.Request(http.MethodPost, "/api/auth/login", map[string]string{
		"email":    user.Email,
		"password": "wrong-password",
	}, "")
	require.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = env.Request(http.MethodPost, "/api/auth/login", map[string]string{"email": "not-an-email"}, "")
	require.Equal(t, http.StatusBadRequest, resp.Code)
	require.Equal(t, "BAD_REQUEST", testutil.ErrorCode(t, resp))
}

func TestAuthAcceptsSessionCookie(t *testing.T) {
	env := testutil.NewEnv(t)
	user := env.CreateUser(models.RoleVoter, "voter-secret")

	resp := env.Request(http.MethodPost, "/api/auth/login", map[string]string{
		"email":    user.Email,
		"password": "voter-secret",
	}, "")
	require.Equal(t, http.StatusOK, resp.Code)

	var cookie *http.Cookie
	for _, c := range resp.Result().Cookies() {
		if c.Name == "awards_session" {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	require.True(t, cookie.HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(cookie)
	w := httptest.NewRecorder()
	env.Router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	env := testutil.NewEnv(t)

	for _, route := range []struct{ method, path string }{
		{http.MethodPost, "/api/votes"},
		{http.MethodPost, "/api/verification/request"},
		{http.MethodPost, "/api/devices/register"},
		{http.MethodGet, "/api/categories"},
		{http.MethodGet, "/api/admin/audit"},
	} {
		resp := env.Request(route.method, route.path, nil, "")
		require.Equal(t, http.StatusUnauthorized, resp.Code, route.path)
		require.Equal(t, "Bearer", resp.Header().Get("WWW-Authenticate"))
	}

	resp := env.Request(http.MethodGet, "/api/auth/me", nil, "not-a-real-token")
	require.Equal(t, http.StatusUnauthorized, resp.Code)
}
