package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/awards/internal/api"
	"github.com/charlesng35/awards/internal/app"
	"github.com/charlesng35/awards/internal/cache"
	sharedtestutil "github.com/charlesng35/awards/internal/database/testutil"
	"github.com/charlesng35/awards/internal/middleware"
	"github.com/charlesng35/awards/internal/models"
	"github.com/charlesng35/awards/internal/monitoring"
	"github.com/charlesng35/awards/internal/services"
	"github.com/charlesng35/awards/pkg/crypto"
	"github.com/charlesng35/awards/pkg/mail"
	"github.com/charlesng35/awards/pkg/response"
)

var fastHashOnce sync.Once

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T        *testing.T
	DB       *gorm.DB
	Router   *gin.Engine
	Config   *app.Config
	Services *app.Services
	Outbox   *Outbox
	Jobs     *monitoring.JobTracker
}

// Outbox records verification emails instead of sending them.
type Outbox struct {
	mu       sync.Mutex
	messages []mail.Message
}

func (o *Outbox) Enqueue(msg mail.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.messages = append(o.messages, msg)
	return nil
}

// Messages returns a copy of every queued message.
func (o *Outbox) Messages() []mail.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]mail.Message(nil), o.messages...)
}

// EnvOption tweaks the configuration or services before the router is built.
type EnvOption func(cfg *app.Config, deps *app.ServiceDeps)

// WithCodeGenerator makes verification codes deterministic.
func WithCodeGenerator(gen func(int) (string, error)) EnvOption {
	return func(_ *app.Config, deps *app.ServiceDeps) {
		deps.VerificationOptions = append(deps.VerificationOptions, services.WithCodeGenerator(gen))
	}
}

// WithConfig mutates the test configuration.
func WithConfig(fn func(cfg *app.Config)) EnvOption {
	return func(cfg *app.Config, _ *app.ServiceDeps) {
		fn(cfg)
	}
}

// NewEnv provisions a fresh handler test environment with migrations and seed data applied.
func NewEnv(t *testing.T, opts ...EnvOption) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)
	fastHashOnce.Do(func() {
		crypto.PasswordParams = &argon2id.Params{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
	})

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithSeedData())

	cfg := &app.Config{
		Server: app.ServerConfig{Mode: gin.TestMode},
		Auth: app.AuthConfig{Session: app.SessionSettings{
			TTL:         time.Hour,
			TokenLength: 32,
			CookieName:  "awards_session",
		}},
		Verification: app.VerificationConfig{CodeTTL: 10 * time.Minute, CodeLength: 6, ExposeCode: true},
		Voting:       app.VotingConfig{DeviceMode: services.DeviceModeFlag, MaxAccountsDevice: 1},
		Monitoring: app.MonitoringConfig{
			Prometheus: app.PrometheusConfig{Enabled: true, Endpoint: "/metrics"},
			Health:     app.HealthConfig{Enabled: true, Timeout: time.Second},
		},
	}
	outbox := &Outbox{}
	deps := app.ServiceDeps{DB: db, Store: cache.NewDatabaseStore(db), Outbox: outbox}
	for _, opt := range opts {
		opt(cfg, &deps)
	}

	svc, err := app.NewServices(cfg, deps)
	require.NoError(t, err)

	jobs := monitoring.NewJobTracker()
	router, err := api.NewRouter(cfg, svc, api.Options{
		Health:    app.NewHealthManager(cfg, db, svc, nil, jobs),
		Jobs:      jobs,
		RateStore: middleware.NewMemoryRateStore(),
	})
	require.NoError(t, err)

	return &Env{
		T:        t,
		DB:       db,
		Router:   router,
		Config:   cfg,
		Services: svc,
		Outbox:   outbox,
		Jobs:     jobs,
	}
}

// CreateUser inserts an account with a random email and returns it.
func (e *Env) CreateUser(role, password string) *models.User {
	e.T.Helper()

	name := strings.ToLower(role) + "-" + uuid.NewString()[:8]
	user, err := e.Services.Identity.Create(context.Background(), services.NewUser{
		Name:     name,
		Email:    name + "@awards.test",
		Password: password,
		Role:     role,
	})
	require.NoError(e.T, err)
	return user
}

// SessionResult mirrors the auth endpoints' response payload.
type SessionResult struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      models.User `json:"user"`
}

// Login authenticates by email and returns the issued session.
func (e *Env) Login(email, password string) SessionResult {
	e.T.Helper()

	w := e.Request(http.MethodPost, "/api/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, "")
	require.Equal(e.T, http.StatusOK, w.Code, w.Body.String())

	resp := DecodeResponse(e.T, w)
	require.True(e.T, resp.Success, w.Body.String())

	var result SessionResult
	DecodeInto(e.T, resp.Data, &result)
	require.NotEmpty(e.T, result.Token)
	require.Equal(e.T, strings.ToLower(email), result.User.Email)
	return result
}

// Voter creates a voter and returns it with a session token.
func (e *Env) Voter() (*models.User, string) {
	e.T.Helper()
	user := e.CreateUser(models.RoleVoter, "voter-secret")
	return user, e.Login(user.Email, "voter-secret").Token
}

// Admin creates a SUPER_ADMIN and returns it with a session token.
func (e *Env) Admin() (*models.User, string) {
	e.T.Helper()
	user := e.CreateUser(models.RoleSuperAdmin, "admin-secret")
	return user, e.Login(user.Email, "admin-secret").Token
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router, applying JSON encoding and auth headers automatically.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var buf *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		buf = bytes.NewBuffer(data)
	} else {
		buf = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, path, buf)
	require.NoError(e.T, err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}

// ErrorCode returns the error code of a failed response.
func ErrorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	resp := DecodeResponse(t, w)
	require.False(t, resp.Success, w.Body.String())
	require.NotNil(t, resp.Error, w.Body.String())
	return resp.Error.Code
}
