package db

import (
	"context"

	"agentdesk/internal/types"
)

// ToggleRepository provides data access for the feature_toggles table.
// The table's primary key is (tenant_id, feature_key), which is what makes
// SetEnabled idempotent: the upsert can never produce a second row for the
// same key.
type ToggleRepository struct {
	db DBTX
}

// NewToggleRepository creates a new ToggleRepository backed by the given
// database connection (pool or transaction).
func NewToggleRepository(db DBTX) *ToggleRepository {
	return &ToggleRepository{db: db}
}

// ListByTenant returns every stored toggle row for the agency as a single
// snapshot. Resolvers operate on this snapshot and never re-query
// mid-resolution.
func (r *ToggleRepository) ListByTenant(ctx context.Context, tenantID string) (types.ToggleSet, error) {
	rows, err := r.db.Query(ctx,
		`SELECT tenant_id, feature_key, is_enabled, updated_at
		 FROM feature_toggles
		 WHERE tenant_id = $1`,
		tenantID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list feature toggles", err)
	}
	defer rows.Close()

	set := types.ToggleSet{}
	for rows.Next() {
		var toggle types.FeatureToggle
		if err := rows.Scan(&toggle.TenantID, &toggle.FeatureKey, &toggle.IsEnabled, &toggle.UpdatedAt); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan feature toggle", err)
		}
		set[toggle.FeatureKey] = toggle
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to read feature toggles", err)
	}
	return set, nil
}

// Upsert writes the toggle row, keyed by (tenant_id, feature_key).
// Last writer wins; rows are never deleted when a feature is turned off, so
// the business data behind the feature is preserved.
func (r *ToggleRepository) Upsert(ctx context.Context, toggle types.FeatureToggle) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO feature_toggles (tenant_id, feature_key, is_enabled, updated_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (tenant_id, feature_key)
		 DO UPDATE SET is_enabled = EXCLUDED.is_enabled, updated_at = NOW()`,
		toggle.TenantID,
		toggle.FeatureKey,
		toggle.IsEnabled,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to upsert feature toggle", err)
	}
	return nil
}
