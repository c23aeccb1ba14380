package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/awards/pkg/metrics"
)

// unmatchedRoute labels requests that did not hit a registered route, so
// scanners probing random paths cannot blow up label cardinality.
const unmatchedRoute = "unmatched"

// Metrics observes request latency per route template. Requests for any of
// the skip paths (typically the scrape endpoint) are not recorded.
func Metrics(skip ...string) gin.HandlerFunc {
	skipped := make(map[string]struct{}, len(skip))
	for _, path := range skip {
		if path != "" {
			skipped[path] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		if _, ok := skipped[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		metrics.APILatency.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
