package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"agentdesk/internal/types"
)

// AgencyRepository provides data access for the agencies table.
type AgencyRepository struct {
	db DBTX
}

// NewAgencyRepository creates a new AgencyRepository backed by the given
// database connection (pool or transaction).
func NewAgencyRepository(db DBTX) *AgencyRepository {
	return &AgencyRepository{db: db}
}

// agencyColumns defines the standard set of columns selected for agency
// queries. Used consistently across all query methods to avoid column drift.
const agencyColumns = `a.id, a.name, a.plan, a.stripe_customer_id,
	a.created_at, a.updated_at, a.deleted_at`

// scanAgency scans a single agency row into a types.Agency struct.
// The columns must match the order defined in agencyColumns.
func scanAgency(row pgx.Row) (*types.Agency, error) {
	var agency types.Agency
	var stripeCustomerID *string

	err := row.Scan(
		&agency.ID,
		&agency.Name,
		&agency.Plan,
		&stripeCustomerID,
		&agency.CreatedAt,
		&agency.UpdatedAt,
		&agency.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	if stripeCustomerID != nil {
		agency.StripeCustomerID = *stripeCustomerID
	}
	return &agency, nil
}

// Create inserts a new agency record. The caller must set the ID (prefixed
// UUID, e.g. "ag_...") and required fields before calling. New agencies start
// on the plan the caller provides, normally free.
func (r *AgencyRepository) Create(ctx context.Context, agency *types.Agency) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO agencies (id, name, plan, stripe_customer_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, NOW(), NOW())`,
		agency.ID,
		agency.Name,
		agency.Plan,
		nilIfEmpty(agency.StripeCustomerID),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create agency", err)
	}
	return nil
}

// GetByID retrieves an agency by its ID. Excludes soft-deleted agencies.
// Returns not_found_tenant if no active agency is found.
func (r *AgencyRepository) GetByID(ctx context.Context, id string) (*types.Agency, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+agencyColumns+`
		 FROM agencies a
		 WHERE a.id = $1 AND a.deleted_at IS NULL`,
		id,
	)

	agency, err := scanAgency(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundTenant, "agency not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve agency", err)
	}
	return agency, nil
}

// GetByStripeCustomerID retrieves an agency by its Stripe customer reference.
// Used by the billing webhook to map subscription events back to a tenant.
func (r *AgencyRepository) GetByStripeCustomerID(ctx context.Context, customerID string) (*types.Agency, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+agencyColumns+`
		 FROM agencies a
		 WHERE a.stripe_customer_id = $1 AND a.deleted_at IS NULL`,
		customerID,
	)

	agency, err := scanAgency(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundTenant, "agency not found for customer", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve agency", err)
	}
	return agency, nil
}

// UpdatePlan applies a plan change as a single last-writer-wins update.
// Used by the billing integration for upgrades and downgrades.
func (r *AgencyRepository) UpdatePlan(ctx context.Context, id string, plan types.PlanTier) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE agencies
		 SET plan = $1,
		     updated_at = NOW()
		 WHERE id = $2 AND deleted_at IS NULL`,
		plan,
		id,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update agency plan", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundTenant, "agency not found", nil)
	}
	return nil
}

// nilIfEmpty maps an empty string to nil so optional text columns store NULL
// instead of "".
func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
