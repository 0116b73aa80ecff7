// Package db provides PostgreSQL-backed repository implementations for the
// AgentDesk entitlement service. All repositories accept a DBTX interface
// that is satisfied by both *pgxpool.Pool (for normal queries) and pgx.Tx
// (for transactional execution), enabling clean transaction support.
package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"agentdesk/internal/types"
)

// DBTX is the minimal interface shared by *pgxpool.Pool and pgx.Tx.
// Repositories accept this so the same code works inside or outside a
// transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Registry bundles the concrete repositories over one connection pool.
// It implements types.RepositoryRegistry.
type Registry struct {
	pool     *pgxpool.Pool
	agencies *AgencyRepository
	toggles  *ToggleRepository
	staff    *StaffRepository
}

// NewRegistry creates the repository registry backed by the given pool.
func NewRegistry(pool *pgxpool.Pool) *Registry {
	return &Registry{
		pool:     pool,
		agencies: NewAgencyRepository(pool),
		toggles:  NewToggleRepository(pool),
		staff:    NewStaffRepository(pool),
	}
}

// Agencies returns the agency repository.
func (r *Registry) Agencies() types.AgencyRepository { return r.agencies }

// Toggles returns the feature toggle repository.
func (r *Registry) Toggles() types.ToggleRepository { return r.toggles }

// Staff returns the staff repository.
func (r *Registry) Staff() types.StaffRepository { return r.staff }

// Ping verifies database connectivity for health checks.
func (r *Registry) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close releases the underlying connection pool. Called during graceful
// shutdown.
func (r *Registry) Close() error {
	r.pool.Close()
	return nil
}
