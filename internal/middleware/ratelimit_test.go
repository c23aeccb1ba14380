package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/awards/internal/cache"
	"github.com/charlesng35/awards/internal/database/testutil"
)

func rateLimitedRouter(store RateStore, limit int, window time.Duration) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RateLimit(store, limit, window))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return r
}

func TestRateLimitMemoryStoreResetsAfterWindow(t *testing.T) {
	current := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newMemoryRateStore(func() time.Time { return current })
	r := rateLimitedRouter(store, 2, time.Minute)

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	require.Equal(t, "60", w.Header().Get("Retry-After"))

	current = current.Add(61 * time.Second)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimitDatabaseStore(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	r := rateLimitedRouter(NewStoreRateStore(cache.NewDatabaseStore(db)), 1, time.Minute)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Contains(t, w.Body.String(), "RATE_LIMIT_EXCEEDED")
}

type failingRateStore struct{}

func (failingRateStore) Increment(context.Context, string, time.Duration) (int, time.Duration, error) {
	return 0, 0, errors.New("store down")
}

func TestRateLimitFailsOpen(t *testing.T) {
	r := rateLimitedRouter(failingRateStore{}, 1, time.Minute)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}
}

func TestMemoryRateStoreSweepsExpiredWindows(t *testing.T) {
	current := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newMemoryRateStore(func() time.Time { return current })
	ctx := context.Background()

	for _, key := range []string{"a", "b", "c"} {
		_, _, err := store.Increment(ctx, key, 10*time.Second)
		require.NoError(t, err)
	}
	require.Equal(t, 3, store.size())

	current = current.Add(2 * memorySweepEvery)
	count, ttl, err := store.Increment(ctx, "d", 10*time.Second)
	require.NoError(t, err)
	require.Equal(t, 1, count)
	require.Equal(t, 10*time.Second, ttl)
	require.Equal(t, 1, store.size())
}
