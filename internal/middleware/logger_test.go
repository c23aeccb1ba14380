package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/charlesng35/awards/pkg/logger"
)

func TestLoggerMiddlewareRecordsRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, recorded := observer.New(zap.DebugLevel)
	t.Cleanup(logger.Replace(zap.New(core)))

	r := gin.New()
	r.Use(RequestID(), Logger())
	r.GET("/ping", func(c *gin.Context) {
		c.Set(CtxUserIDKey, "user-1")
		c.String(http.StatusOK, "pong")
	})
	r.GET("/fail", func(c *gin.Context) {
		c.Status(http.StatusConflict)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-ID", "req-42")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "req-42", w.Header().Get("X-Request-ID"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fail", nil))
	require.NotEmpty(t, w.Header().Get("X-Request-ID"))

	entries := recorded.FilterMessage("request").All()
	require.Len(t, entries, 2)
	require.Equal(t, zapcore.InfoLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	require.Equal(t, "req-42", fields["request_id"])
	require.Equal(t, "user-1", fields["user_id"])
	require.Equal(t, "http", fields["module"])
	require.Equal(t, zapcore.WarnLevel, entries[1].Level)
}
