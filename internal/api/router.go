package api

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/charlesng35/awards/internal/app"
	"github.com/charlesng35/awards/internal/handlers"
	"github.com/charlesng35/awards/internal/middleware"
	"github.com/charlesng35/awards/internal/monitoring"
)

// Options carries the pieces of the router that are built outside
// app.Services.
type Options struct {
	Health    *monitoring.HealthManager
	Jobs      *monitoring.JobTracker
	RateStore middleware.RateStore
}

// NewRouter builds the Gin engine, wires middleware and registers every route.
func NewRouter(cfg *app.Config, svc *app.Services, opts Options) (*gin.Engine, error) {
	if cfg == nil {
		return nil, errors.New("config must be provided")
	}
	if svc == nil {
		return nil, errors.New("services must be provided")
	}
	if opts.Health == nil {
		opts.Health = monitoring.NewHealthManager(cfg.Monitoring.Health.Timeout)
	}

	r := gin.New()
	if err := r.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		return nil, err
	}

	metricsEndpoint := ""
	if cfg.Monitoring.Prometheus.Enabled {
		metricsEndpoint = strings.TrimSpace(cfg.Monitoring.Prometheus.Endpoint)
		if metricsEndpoint == "" {
			metricsEndpoint = "/metrics"
		}
	}

	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics(metricsEndpoint))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORSOrigins...))
	if cfg.Server.RateLimit.Enabled {
		r.Use(middleware.RateLimit(opts.RateStore, cfg.Server.RateLimit.Requests, cfg.Server.RateLimit.Window))
	}

	healthHandler := handlers.NewHealthHandler(opts.Health, opts.Jobs)
	registerHealthRoutes(r, cfg, healthHandler)

	if metricsEndpoint != "" {
		r.GET(metricsEndpoint, gin.WrapH(promhttp.Handler()))
	}

	cookieName := cfg.Auth.Session.CookieName
	authHandler := handlers.NewAuthHandler(svc.Identity, svc.Sessions, cookieName, cfg.Server.Mode == gin.ReleaseMode)

	public := r.Group("/api")
	api := r.Group("/api")
	api.Use(middleware.Auth(svc.Sessions, cookieName))

	registerAuthRoutes(public, api, authHandler)
	registerVotingRoutes(api, votingRouteDeps{
		Votes:        handlers.NewVoteHandler(svc.Ledger),
		Verification: handlers.NewVerificationHandler(svc.Verification, cfg.Verification.ExposeCode),
		Devices:      handlers.NewDeviceHandler(svc.Devices),
		Categories:   handlers.NewCategoryHandler(svc.Catalog, svc.Ledger),
	})
	registerAdminRoutes(api, handlers.NewAdminHandler(handlers.AdminServices{
		Identity: svc.Identity,
		Ledger:   svc.Ledger,
		Settings: svc.Settings,
		Catalog:  svc.Catalog,
		Audit:    svc.Audit,
	}), healthHandler)

	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
