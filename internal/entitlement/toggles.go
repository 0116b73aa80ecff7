package entitlement

import (
	"context"
	"log/slog"
	"time"

	"agentdesk/internal/types"
)

// ToggleStore merges an agency's stored toggle rows against the registry's
// defaults. It resolves the effective enabled state of a feature as a
// two-layer lookup: definition default first, stored override if a row
// exists. The "row absent" and "row present with false" cases are kept
// distinct throughout; see types.ToggleSet.Lookup.
type ToggleStore struct {
	registry *FeatureRegistry
	repo     types.ToggleRepository
	logger   *slog.Logger
}

// NewToggleStore creates a ToggleStore backed by the given repository.
func NewToggleStore(registry *FeatureRegistry, repo types.ToggleRepository, logger *slog.Logger) *ToggleStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &ToggleStore{registry: registry, repo: repo, logger: logger}
}

// Snapshot fetches the agency's stored toggle rows once. A single access
// resolution must operate on one snapshot so it never observes a
// partially-updated toggle set.
func (s *ToggleStore) Snapshot(ctx context.Context, tenantID string) (types.ToggleSet, error) {
	return s.repo.ListByTenant(ctx, tenantID)
}

// EffectiveEnabled resolves the enabled state of a feature for an agency,
// fetching a fresh toggle snapshot. Unknown feature keys fail with
// not_found_feature.
func (s *ToggleStore) EffectiveEnabled(ctx context.Context, tenantID string, key types.FeatureKey) (bool, error) {
	snapshot, err := s.Snapshot(ctx, tenantID)
	if err != nil {
		return false, err
	}
	return s.EffectiveIn(snapshot, key)
}

// EffectiveIn resolves the enabled state of a feature against an
// already-fetched snapshot:
//
//  1. Unknown feature keys fail with not_found_feature.
//  2. Locked features are always enabled; any stored row is ignored.
//  3. A stored row wins over the definition default.
func (s *ToggleStore) EffectiveIn(snapshot types.ToggleSet, key types.FeatureKey) (bool, error) {
	def, err := s.registry.Get(key)
	if err != nil {
		return false, err
	}
	if def.Locked {
		return true, nil
	}
	if enabled, ok := snapshot.Lookup(key); ok {
		return enabled, nil
	}
	return def.DefaultEnabled, nil
}

// SetEnabled upserts the agency's toggle row for a feature. Attempting to
// toggle a locked feature fails with conflict_feature_locked; the row is
// never written. The upsert is keyed by (tenant_id, feature_key), so repeated
// calls with the same value are idempotent and never create duplicate rows.
func (s *ToggleStore) SetEnabled(ctx context.Context, tenantID string, key types.FeatureKey, enabled bool) error {
	def, err := s.registry.Get(key)
	if err != nil {
		return err
	}
	if def.Locked {
		return types.NewAppErrorWithDetails(
			types.ErrCodeConflictFeatureLocked,
			"feature is locked and cannot be toggled",
			nil,
			map[string]any{"feature_key": string(key)},
		)
	}

	err = s.repo.Upsert(ctx, types.FeatureToggle{
		TenantID:   tenantID,
		FeatureKey: key,
		IsEnabled:  enabled,
		UpdatedAt:  time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	s.logger.Info("feature toggle updated",
		slog.String("tenant_id", tenantID),
		slog.String("feature_key", string(key)),
		slog.Bool("enabled", enabled),
	)
	return nil
}
