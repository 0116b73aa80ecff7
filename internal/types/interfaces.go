package types

import "context"

// AgencyRepository provides data access for the agencies table.
type AgencyRepository interface {
	GetByID(ctx context.Context, id string) (*Agency, error)
	Create(ctx context.Context, agency *Agency) error
	// UpdatePlan applies a plan change (upgrade or downgrade) as a single
	// last-writer-wins update.
	UpdatePlan(ctx context.Context, id string, plan PlanTier) error
	GetByStripeCustomerID(ctx context.Context, customerID string) (*Agency, error)
}

// ToggleRepository provides data access for the feature_toggles table.
type ToggleRepository interface {
	// ListByTenant returns the agency's stored toggle rows as one snapshot.
	ListByTenant(ctx context.Context, tenantID string) (ToggleSet, error)
	// Upsert writes a toggle row keyed by (tenant_id, feature_key).
	// Calling it twice with the same value is idempotent.
	Upsert(ctx context.Context, toggle FeatureToggle) error
}

// StaffRepository provides data access for staff accounts and their
// permission grants.
type StaffRepository interface {
	GetByID(ctx context.Context, tenantID, staffID string) (*StaffAccount, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*StaffAccount, error)
	Create(ctx context.Context, staff *StaffAccount) error
	// UpdateGrant replaces the staff member's permission set in a single
	// last-writer-wins write.
	UpdateGrant(ctx context.Context, tenantID, staffID string, grant PermissionGrant) error
	// Delete removes the staff account and its grant together.
	Delete(ctx context.Context, tenantID, staffID string) error
}

// RepositoryRegistry bundles the repositories the server chassis and
// handlers depend on, so tests can inject fabricated implementations.
type RepositoryRegistry interface {
	Agencies() AgencyRepository
	Toggles() ToggleRepository
	Staff() StaffRepository
	// Ping verifies database connectivity for health checks.
	Ping(ctx context.Context) error
}
