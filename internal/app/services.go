package app

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/charlesng35/awards/internal/auth"
	"github.com/charlesng35/awards/internal/cache"
	"github.com/charlesng35/awards/internal/services"
)

// Services bundles the domain services shared by the router, the
// maintenance jobs and the bootstrap code.
type Services struct {
	Sessions     *auth.SessionService
	Audit        *services.AuditService
	Identity     *services.IdentityService
	Settings     *services.SettingsService
	Catalog      *services.CatalogService
	Devices      *services.DeviceRegistry
	Ledger       *services.VoteLedger
	Verification *services.VerificationService
}

// ServiceDeps carries what NewServices cannot derive from the configuration.
type ServiceDeps struct {
	DB     *gorm.DB
	Store  cache.Store
	Outbox services.Enqueuer
	// Extra verification options, applied after the configured ones.
	VerificationOptions []services.VerificationOption
}

// NewServices wires every domain service against one database handle.
func NewServices(cfg *Config, deps ServiceDeps) (*Services, error) {
	if cfg == nil {
		return nil, errors.New("services: config is required")
	}
	if deps.DB == nil {
		return nil, errors.New("services: db is required")
	}

	sessionCfg := cfg.Auth.SessionServiceConfig()
	sessionCfg.Cache = auth.NewSessionCache(deps.Store)
	sessions, err := auth.NewSessionService(deps.DB, sessionCfg)
	if err != nil {
		return nil, err
	}

	audit, err := services.NewAuditService(deps.DB)
	if err != nil {
		return nil, err
	}
	identity, err := services.NewIdentityService(deps.DB, audit, services.WithSessionRevoker(sessions))
	if err != nil {
		return nil, err
	}
	settings, err := services.NewSettingsService(deps.DB, audit, cfg.Voting.DevicePolicy())
	if err != nil {
		return nil, err
	}
	catalog, err := services.NewCatalogService(deps.DB, audit)
	if err != nil {
		return nil, err
	}
	devices, err := services.NewDeviceRegistry(deps.DB)
	if err != nil {
		return nil, err
	}
	ledger, err := services.NewVoteLedger(deps.DB, settings, audit, services.WithDeviceSignal(devices))
	if err != nil {
		return nil, err
	}

	opts := append(cfg.VerificationOptions(), services.WithSessionForgetter(sessions))
	opts = append(opts, deps.VerificationOptions...)
	verification, err := services.NewVerificationService(deps.DB, identity, deps.Outbox, opts...)
	if err != nil {
		return nil, fmt.Errorf("services: %w", err)
	}

	return &Services{
		Sessions:     sessions,
		Audit:        audit,
		Identity:     identity,
		Settings:     settings,
		Catalog:      catalog,
		Devices:      devices,
		Ledger:       ledger,
		Verification: verification,
	}, nil
}
