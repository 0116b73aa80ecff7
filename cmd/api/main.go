// Package main is the entry point for the AgentDesk entitlement API server.
//
// It loads configuration, connects the PostgreSQL pool, assembles the
// entitlement engine (feature registry, plan catalog, toggle store, access
// resolver), wires the HTTP handlers onto the core chassis, and serves until
// a shutdown signal arrives.
//
// Graceful shutdown is handled via OS signal interception (SIGINT, SIGTERM).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"agentdesk/internal/api/handlers"
	"agentdesk/internal/billing"
	"agentdesk/internal/config"
	"agentdesk/internal/core"
	"agentdesk/internal/db"
	"agentdesk/internal/entitlement"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on
// error.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("agentdesk API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	// Database pool.
	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL.Unmask())
	if err != nil {
		return fmt.Errorf("parsing database URL: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.Database.MaxConns)
	poolCfg.MinConns = int32(cfg.Database.MinConns)
	poolCfg.MaxConnLifetime = cfg.Database.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return fmt.Errorf("creating database pool: %w", err)
	}
	repos := db.NewRegistry(pool)

	// Entitlement engine. The registry and decision tables are compiled in;
	// a dangling table reference fails startup here.
	registry := entitlement.NewFeatureRegistry()
	catalog := entitlement.NewPlanCatalog(registry)
	toggles := entitlement.NewToggleStore(registry, repos.Toggles(), logger)
	entitlements := entitlement.NewEntitlementResolver(catalog, toggles)
	staffPerms := entitlement.NewStaffPermissionResolver(nil)

	access, err := entitlement.NewAccessResolver(entitlements, staffPerms, repos.Agencies(), nil, logger)
	if err != nil {
		return fmt.Errorf("building access resolver: %w", err)
	}

	// Billing sync.
	priceTiers, err := billing.ParsePriceTiers(cfg.Billing.PriceTiers)
	if err != nil {
		return fmt.Errorf("parsing billing configuration: %w", err)
	}
	stripeClient := billing.NewStripeClient(
		&http.Client{Timeout: 20 * time.Second},
		billing.StripeClientConfig{SecretKey: cfg.Billing.StripeSecretKey.Unmask(), Logger: logger},
	)
	billingSvc := billing.NewService(
		repos.Agencies(),
		priceTiers,
		stripeClient,
		&billing.StripeVerifier{},
		cfg.Billing.StripeWebhookSecret.Unmask(),
		logger,
	)

	// HTTP chassis and handlers.
	srv, err := core.NewServer(cfg, repos, access, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.Subjects = core.NewRepoSubjectResolver(repos)

	featureHandler := handlers.NewFeatureHandler(registry, catalog, toggles, repos.Agencies(), srv.Validator, logger)
	accessHandler := handlers.NewAccessHandler(access, logger)
	staffHandler := handlers.NewStaffHandler(repos.Staff(), srv.Validator, logger)
	webhookHandler := handlers.NewBillingWebhookHandler(billingSvc, logger)

	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		featureHandler.RegisterRoutes,
		accessHandler.RegisterRoutes,
		staffHandler.RegisterRoutes,
		webhookHandler.RegisterRoutes,
	)
	srv.MountRoutes()

	addr := net.JoinHostPort("", cfg.Server.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server resource shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured slog.Logger configured for the given log
// level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
