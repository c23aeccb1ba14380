package app

import (
	"context"

	"gorm.io/gorm"

	"github.com/charlesng35/awards/internal/monitoring"
	"github.com/charlesng35/awards/internal/monitoring/checks"
)

// NewHealthManager registers the standard probes. redis may be nil when the
// database cache fallback is in use.
func NewHealthManager(cfg *Config, db *gorm.DB, svc *Services, redis checks.Pinger, jobs *monitoring.JobTracker) *monitoring.HealthManager {
	timeout := cfg.Monitoring.Health.Timeout
	manager := monitoring.NewHealthManager(timeout)

	manager.RegisterLiveness(monitoring.NewCheck("process", func(context.Context) monitoring.ProbeResult {
		return monitoring.ProbeResult{Status: monitoring.StatusUp}
	}))

	manager.RegisterReadiness(checks.Database(db, timeout))
	manager.RegisterReadiness(checks.Redis(redis, cfg.Cache.Redis.Enabled, timeout))
	if cfg.Maintenance.Enabled {
		manager.RegisterReadiness(checks.Maintenance(jobs, 0))
	}
	if svc != nil {
		manager.RegisterReadiness(checks.Voting(svc.Settings))
	}
	return manager
}
