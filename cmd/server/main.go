// Command awards-server runs the awards voting API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/awards/internal/app"
	"github.com/charlesng35/awards/pkg/logger"
)

const defaultShutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := run(ctx, os.Args[1:])
	switch {
	case err == nil, errors.Is(err, flag.ErrHelp):
	default:
		fmt.Fprintf(os.Stderr, "awards-server: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("awards-server", flag.ContinueOnError)
	configPath := fs.String("config", "", "configuration directory, or a config.yaml inside it")
	migrateOnly := fs.Bool("migrate-only", false, "apply migrations and default settings, then exit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadApplicationConfig(*configPath)
	if err != nil {
		return err
	}
	if err := cfg.Server.ConfigureLogging(); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	log := logger.WithModule("bootstrap")

	if *migrateOnly {
		db, err := initialiseDatabase(cfg)
		if err != nil {
			return err
		}
		closeDatabase(db, log)
		log.Info("migrations applied")
		return nil
	}

	stack, err := bootstrapRuntime(ctx, cfg, log)
	if err != nil {
		return err
	}
	return serve(ctx, cfg, stack, log)
}

// serve blocks until ctx is cancelled or the listener fails, then drains
// in-flight requests before tearing the runtime stack down.
func serve(ctx context.Context, cfg *app.Config, stack *runtimeStack, log *zap.Logger) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           stack.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	listenErr := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", server.Addr))
		listenErr <- server.ListenAndServe()
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown requested")
	case err := <-listenErr:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("http server: %w", err)
		}
	}

	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if serveErr == nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			serveErr = fmt.Errorf("graceful shutdown: %w", err)
		}
	}
	stack.Shutdown(shutdownCtx, log)

	if serveErr == nil {
		log.Info("server stopped")
	}
	return serveErr
}

// loadApplicationConfig accepts either a directory or a file inside the
// directory viper should search.
func loadApplicationConfig(path string) (*app.Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return app.LoadConfig()
	}

	info, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("config path %q does not exist", path)
	case err != nil:
		return nil, fmt.Errorf("stat config path: %w", err)
	case info.IsDir():
		return app.LoadConfig(path)
	default:
		return app.LoadConfig(filepath.Dir(path))
	}
}
