package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/awards/pkg/errors"
	"github.com/charlesng35/awards/pkg/logger"
	"github.com/charlesng35/awards/pkg/response"
)

// RateLimit limits requests per (client IP, route) within a fixed window using
// store. A nil store falls back to process memory. Store failures let the
// request through.
func RateLimit(store RateStore, maxRequests int, window time.Duration) gin.HandlerFunc {
	if store == nil {
		store = NewMemoryRateStore()
	}
	log := logger.WithModule("ratelimit")

	return func(c *gin.Context) {
		if maxRequests <= 0 || window <= 0 {
			c.Next()
			return
		}

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		key := "ratelimit:" + c.ClientIP() + "|" + c.Request.Method + " " + path

		count, resetIn, err := store.Increment(c.Request.Context(), key, window)
		if err != nil {
			log.Warn("rate limit store unavailable", zap.Error(err))
			c.Next()
			return
		}

		remaining := maxRequests - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(maxRequests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.Itoa(int(resetIn.Round(time.Second).Seconds())))

		if count > maxRequests {
			c.Header("Retry-After", strconv.Itoa(int(resetIn.Round(time.Second).Seconds())))
			response.Error(c, errors.ErrRateLimit)
			return
		}

		c.Next()
	}
}
