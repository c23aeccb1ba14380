package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/awards/internal/monitoring"
	"github.com/charlesng35/awards/pkg/logger"
)

const (
	JobSessions          = "sessions"
	JobVerificationCodes = "verification_codes"
	JobCacheEntries      = "cache_entries"

	defaultSessionSpec      = "@hourly"
	defaultVerificationSpec = "@every 15m"
	defaultCacheSpec        = "@every 30m"
)

// Expirer is anything that can purge its own expired rows.
type Expirer interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// ExpirerFunc adapts a function to Expirer.
type ExpirerFunc func(ctx context.Context) (int64, error)

func (f ExpirerFunc) CleanupExpired(ctx context.Context) (int64, error) { return f(ctx) }

type job struct {
	name     string
	schedule string
	target   Expirer
}

// Cleaner schedules purges of expired sessions, verification codes and
// database cache entries. Votes and admin logs are never touched.
type Cleaner struct {
	cron    *cron.Cron
	tracker *monitoring.JobTracker
	log     *zap.Logger
	jobs    []job
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithTracker records every run into tracker for health reporting.
func WithTracker(tracker *monitoring.JobTracker) Option {
	return func(cleaner *Cleaner) {
		cleaner.tracker = tracker
	}
}

// WithSessions purges expired sessions on the given schedule (default hourly).
func WithSessions(target Expirer, spec string) Option {
	return withJob(JobSessions, spec, defaultSessionSpec, target)
}

// WithVerificationCodes purges expired or consumed codes on the given schedule (default every 15m).
func WithVerificationCodes(target Expirer, spec string) Option {
	return withJob(JobVerificationCodes, spec, defaultVerificationSpec, target)
}

// WithCacheEntries purges expired database cache rows on the given schedule (default every 30m).
// It is only registered when the server runs without Redis.
func WithCacheEntries(target Expirer, spec string) Option {
	return withJob(JobCacheEntries, spec, defaultCacheSpec, target)
}

func withJob(name, spec, fallback string, target Expirer) Option {
	return func(cleaner *Cleaner) {
		if target == nil {
			return
		}
		if spec == "" {
			spec = fallback
		}
		cleaner.jobs = append(cleaner.jobs, job{name: name, schedule: spec, target: target})
	}
}

func NewCleaner(opts ...Option) *Cleaner {
	cleaner := &Cleaner{log: logger.WithModule("maintenance")}
	for _, opt := range opts {
		opt(cleaner)
	}
	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}
	return cleaner
}

// Start registers the configured jobs and launches the scheduler.
func (c *Cleaner) Start() error {
	if len(c.jobs) == 0 {
		return nil
	}
	for _, j := range c.jobs {
		j := j
		if _, err := c.cron.AddFunc(j.schedule, func() {
			_ = c.run(context.Background(), j)
		}); err != nil {
			return err
		}
	}
	c.cron.Start()
	return nil
}

// Stop halts the scheduler; the returned context is done once running jobs finish.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce runs every job immediately and returns the combined errors.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var errs error
	for _, j := range c.jobs {
		errs = multierr.Append(errs, c.run(ctx, j))
	}
	return errs
}

func (c *Cleaner) run(ctx context.Context, j job) error {
	start := time.Now()
	removed, err := j.target.CleanupExpired(ctx)
	c.tracker.Record(j.name, err, time.Since(start))
	if err != nil {
		c.log.Warn("cleanup failed", zap.String("job", j.name), zap.Error(err))
		return fmt.Errorf("%s: %w", j.name, err)
	}
	if removed > 0 {
		c.log.Debug("cleanup removed rows", zap.String("job", j.name), zap.Int64("removed", removed))
	}
	return nil
}
