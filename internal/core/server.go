// Package core provides the API chassis for the AgentDesk entitlement
// service. It creates a chi router and enforces cross-cutting concerns --
// panic recovery, request identification, logging, subject resolution, and
// error handling -- before requests reach domain-specific handlers.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"agentdesk/internal/config"
	"agentdesk/internal/entitlement"
	"agentdesk/internal/types"
)

// Server encapsulates all dependencies for the AgentDesk API, allowing for
// easy injection during testing and distinct configuration for different
// environments.
type Server struct {
	Config    *config.Config
	Repos     types.RepositoryRegistry
	Logger    *slog.Logger
	Validator *Validator
	Access    *entitlement.AccessResolver
	Subjects  SubjectResolver // Resolves asserted identity to a Subject; injected for testability.

	// V1RouteRegistrars is populated by the application entry point with the
	// domain handler mounts. The indirection avoids import cycles between
	// core and handler packages.
	V1RouteRegistrars []func(chi.Router)

	// Internal router
	router *chi.Mux
}

// NewServer initializes dependencies, sets up the router, and prepares the
// server for route mounting. It performs a fail-fast check on critical
// dependencies.
//
// The caller is responsible for mounting routes (via MountRoutes) after
// construction. This separation allows tests to customize route registration.
func NewServer(
	cfg *config.Config,
	repos types.RepositoryRegistry,
	access *entitlement.AccessResolver,
	logger *slog.Logger,
) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if repos == nil {
		return nil, fmt.Errorf("repository registry must not be nil")
	}
	if access == nil {
		return nil, fmt.Errorf("access resolver must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	s := &Server{
		Config:    cfg,
		Repos:     repos,
		Logger:    logger,
		Validator: NewValidator(logger),
		Access:    access,
		router:    chi.NewRouter(),
	}

	return s, nil
}

// Handler returns the http.Handler interface for the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration.
// This is used internally by route-mounting methods and tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Shutdown performs a graceful termination of server resources, closing the
// database connection pool if the registry supports it.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("server shutdown initiated")

	if closer, ok := s.Repos.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			s.Logger.Error("error closing repository connections", "error", err)
			return fmt.Errorf("closing repository connections: %w", err)
		}
	}

	s.Logger.Info("server shutdown complete")
	return nil
}
