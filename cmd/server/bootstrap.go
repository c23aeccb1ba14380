package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/awards/internal/api"
	"github.com/charlesng35/awards/internal/app"
	"github.com/charlesng35/awards/internal/app/maintenance"
	"github.com/charlesng35/awards/internal/cache"
	"github.com/charlesng35/awards/internal/database"
	"github.com/charlesng35/awards/internal/middleware"
	"github.com/charlesng35/awards/internal/monitoring"
	"github.com/charlesng35/awards/internal/monitoring/checks"
	"github.com/charlesng35/awards/pkg/logger"
	"github.com/charlesng35/awards/pkg/mail"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB        *gorm.DB
	Redis     *cache.RedisStore
	Store     cache.Store
	Mail      *mail.Dispatcher
	Services  *app.Services
	Jobs      *monitoring.JobTracker
	Cleaner   *maintenance.Cleaner
	RateStore middleware.RateStore
	Router    *gin.Engine
}

// bootstrapRuntime initialises the database, cache, mail queue, services,
// maintenance jobs and the HTTP router, in that order.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{Jobs: monitoring.NewJobTracker()}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	switch mode := strings.ToLower(strings.TrimSpace(cfg.Server.Mode)); mode {
	case gin.DebugMode, gin.TestMode:
		gin.SetMode(mode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	dbStore := cache.NewDatabaseStore(stack.DB)
	stack.Store = dbStore
	if cfg.Cache.Redis.Enabled {
		if stack.Redis, err = cache.NewRedisStore(ctx, cfg.Cache.RedisClientConfig()); err != nil {
			log.Warn("redis unavailable; falling back to database-backed cache", zap.Error(err))
			stack.Redis = nil
		} else {
			stack.Store = stack.Redis
			log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
		}
	}
	stack.RateStore = middleware.NewStoreRateStore(stack.Store)

	stack.Mail = mail.NewDispatcher(newMailer(cfg, log), cfg.Email.QueueSize,
		mail.WithSendTimeout(cfg.Email.SMTP.Timeout),
		mail.WithDispatcherLogger(logger.WithModule("mail")),
	)

	stack.Services, err = app.NewServices(cfg, app.ServiceDeps{
		DB:     stack.DB,
		Store:  stack.Store,
		Outbox: stack.Mail,
	})
	if err != nil {
		return nil, fmt.Errorf("initialise services: %w", err)
	}

	if cfg.Maintenance.Enabled {
		opts := []maintenance.Option{
			maintenance.WithTracker(stack.Jobs),
			maintenance.WithSessions(stack.Services.Sessions, cfg.Maintenance.SessionSchedule),
			maintenance.WithVerificationCodes(stack.Services.Verification, cfg.Maintenance.VerificationSchedule),
		}
		if stack.Redis == nil {
			opts = append(opts, maintenance.WithCacheEntries(maintenance.ExpirerFunc(dbStore.PurgeExpired), cfg.Maintenance.CacheSchedule))
		}
		stack.Cleaner = maintenance.NewCleaner(opts...)
		if err := stack.Cleaner.Start(); err != nil {
			return nil, fmt.Errorf("start maintenance jobs: %w", err)
		}
	}

	var pinger checks.Pinger
	if stack.Redis != nil {
		pinger = stack.Redis
	}
	health := app.NewHealthManager(cfg, stack.DB, stack.Services, pinger, stack.Jobs)

	stack.Router, err = api.NewRouter(cfg, stack.Services, api.Options{
		Health:    health,
		Jobs:      stack.Jobs,
		RateStore: stack.RateStore,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	if err := ensureBootstrapAdmin(ctx, cfg, stack.Services, log); err != nil {
		return nil, err
	}

	success = true
	return stack, nil
}

// Shutdown gracefully stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Cleaner != nil {
		<-s.Cleaner.Stop().Done()
		if err := s.Cleaner.RunOnce(ctx); err != nil {
			log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
		}
	}

	if s.Mail != nil {
		stopCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := s.Mail.Stop(stopCtx); err != nil {
			log.Warn("mail queue not drained", zap.Error(err))
		}
		cancel()
	}

	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			log.Warn("redis shutdown", zap.Error(err))
		}
	}

	if s.DB != nil {
		closeDatabase(s.DB, log)
	}
}

// newMailer returns the SMTP mailer, or a mailer that only logs when SMTP is
// disabled so that development setups can still request codes.
func newMailer(cfg *app.Config, log *zap.Logger) mail.Mailer {
	settings := cfg.Email.SMTPSettings()
	if settings.Enabled {
		mailer, err := mail.NewSMTPMailer(settings)
		if err == nil {
			return mailer
		}
		log.Warn("smtp misconfigured; verification emails will not be sent", zap.Error(err))
	}
	return mail.MailerFunc(func(_ context.Context, msg mail.Message) error {
		log.Info("smtp disabled; dropping email", zap.Strings("to", msg.To), zap.String("subject", msg.Subject))
		return nil
	})
}

// ensureBootstrapAdmin creates the configured SUPER_ADMIN on first start.
func ensureBootstrapAdmin(ctx context.Context, cfg *app.Config, svc *app.Services, log *zap.Logger) error {
	email := strings.TrimSpace(cfg.Bootstrap.AdminEmail)
	if email == "" {
		return nil
	}
	if cfg.Bootstrap.AdminPassword == "" {
		return fmt.Errorf("bootstrap.admin_password is required when bootstrap.admin_email is set")
	}

	user, created, err := svc.Identity.EnsureSuperAdmin(ctx, cfg.Bootstrap.AdminName, email, cfg.Bootstrap.AdminPassword)
	if err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	if created {
		log.Info("bootstrap admin created", zap.String("user_id", user.ID), zap.String("email", user.Email))
	}
	return nil
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.DatabaseSettings()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrateAndSeed(db); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", strings.ToLower(strings.TrimSpace(dbCfg.Driver))))

	return db, nil
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if err := database.Close(db); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
