package checks

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/awards/internal/monitoring"
)

const defaultProbeTimeout = 2 * time.Second

// Database pings the underlying sql.DB of the GORM handle.
func Database(db *gorm.DB, timeout time.Duration) monitoring.Check {
	return monitoring.NewCheck("database", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		if db == nil {
			return monitoring.ProbeResult{Status: monitoring.StatusDown, Details: "database not configured"}
		}

		sqlDB, err := db.DB()
		if err != nil {
			return monitoring.ResultFromError("database", err, time.Since(start))
		}

		probeCtx, cancel := context.WithTimeout(ctx, orDefault(timeout))
		defer cancel()
		return monitoring.ResultFromError("database", sqlDB.PingContext(probeCtx), time.Since(start))
	})
}

func orDefault(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return defaultProbeTimeout
	}
	return timeout
}
