package checks

import (
	"context"
	"time"

	"github.com/charlesng35/awards/internal/monitoring"
)

// Pinger is satisfied by cache.RedisStore.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Redis probes the shared cache. When the server runs on the database cache
// fallback the probe reports up with a note. A configured but unreachable
// Redis degrades readiness rather than failing it, because sessions and rate
// limits keep working against the database.
func Redis(client Pinger, enabled bool, timeout time.Duration) monitoring.Check {
	return monitoring.NewCheck("redis", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		if !enabled {
			return monitoring.ProbeResult{Status: monitoring.StatusUp, Details: "redis disabled, using database cache"}
		}
		if client == nil {
			return monitoring.ProbeResult{Status: monitoring.StatusDegraded, Details: "redis unavailable"}
		}

		probeCtx, cancel := context.WithTimeout(ctx, orDefault(timeout))
		defer cancel()

		result := monitoring.ResultFromError("redis", client.Ping(probeCtx), time.Since(start))
		if result.Status == monitoring.StatusDown {
			result.Status = monitoring.StatusDegraded
		}
		return result
	})
}
