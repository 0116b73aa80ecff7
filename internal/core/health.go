package core

import (
	"context"
	"net/http"
	"time"
)

// healthCheckTimeout bounds the database ping so a wedged pool cannot hang
// the health endpoint.
const healthCheckTimeout = 2 * time.Second

// HealthStatus is the response body for GET /health.
type HealthStatus struct {
	Status      string `json:"status"`
	Environment string `json:"environment"`
	Version     string `json:"version"`
	Database    string `json:"database"`
}

// HandleHealth reports process liveness and database connectivity.
// Returns 200 when the database responds, 503 otherwise. Load balancers use
// this endpoint; it is exempt from subject resolution.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	status := HealthStatus{
		Status:      "ok",
		Environment: s.Config.Environment,
		Version:     s.Config.Build.Version,
		Database:    "ok",
	}

	if err := s.Repos.Ping(ctx); err != nil {
		s.Logger.Error("health check database ping failed", "error", err)
		status.Status = "degraded"
		status.Database = "unreachable"
		JSON(w, r, http.StatusServiceUnavailable, status)
		return
	}

	JSON(w, r, http.StatusOK, status)
}
