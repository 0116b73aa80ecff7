package core

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"agentdesk/internal/config"
	"agentdesk/internal/entitlement"
	"agentdesk/internal/types"
)

// --- Shared mock repositories for core tests ---

type mockAgencyRepo struct {
	getByIDFn func(ctx context.Context, id string) (*types.Agency, error)
}

func (m *mockAgencyRepo) GetByID(ctx context.Context, id string) (*types.Agency, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return &types.Agency{
		ID:        id,
		Name:      "Test Agency",
		Plan:      types.PlanPro,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func (m *mockAgencyRepo) Create(ctx context.Context, agency *types.Agency) error { return nil }

func (m *mockAgencyRepo) UpdatePlan(ctx context.Context, id string, plan types.PlanTier) error {
	return nil
}

func (m *mockAgencyRepo) GetByStripeCustomerID(ctx context.Context, customerID string) (*types.Agency, error) {
	return nil, types.NewAppError(types.ErrCodeNotFoundTenant, "agency not found", nil)
}

type mockToggleRepo struct {
	listFn func(ctx context.Context, tenantID string) (types.ToggleSet, error)
}

func (m *mockToggleRepo) ListByTenant(ctx context.Context, tenantID string) (types.ToggleSet, error) {
	if m.listFn != nil {
		return m.listFn(ctx, tenantID)
	}
	return types.ToggleSet{}, nil
}

func (m *mockToggleRepo) Upsert(ctx context.Context, toggle types.FeatureToggle) error { return nil }

type mockStaffRepo struct {
	getByIDFn func(ctx context.Context, tenantID, staffID string) (*types.StaffAccount, error)
}

func (m *mockStaffRepo) GetByID(ctx context.Context, tenantID, staffID string) (*types.StaffAccount, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, tenantID, staffID)
	}
	return &types.StaffAccount{
		ID:       staffID,
		TenantID: tenantID,
		Name:     "Test Staff",
		Email:    "staff@test.com",
		Grant:    types.PermissionGrant{types.PermListingManage: true},
	}, nil
}

func (m *mockStaffRepo) ListByTenant(ctx context.Context, tenantID string) ([]*types.StaffAccount, error) {
	return nil, nil
}

func (m *mockStaffRepo) Create(ctx context.Context, staff *types.StaffAccount) error { return nil }

func (m *mockStaffRepo) UpdateGrant(ctx context.Context, tenantID, staffID string, grant types.PermissionGrant) error {
	return nil
}

func (m *mockStaffRepo) Delete(ctx context.Context, tenantID, staffID string) error { return nil }

// mockRegistry bundles the mock repositories behind types.RepositoryRegistry.
type mockRegistry struct {
	agencies *mockAgencyRepo
	toggles  *mockToggleRepo
	staff    *mockStaffRepo
	pingErr  error
}

func newMockRegistry() *mockRegistry {
	return &mockRegistry{
		agencies: &mockAgencyRepo{},
		toggles:  &mockToggleRepo{},
		staff:    &mockStaffRepo{},
	}
}

func (m *mockRegistry) Agencies() types.AgencyRepository { return m.agencies }
func (m *mockRegistry) Toggles() types.ToggleRepository  { return m.toggles }
func (m *mockRegistry) Staff() types.StaffRepository     { return m.staff }
func (m *mockRegistry) Ping(ctx context.Context) error   { return m.pingErr }

// --- Server construction helper ---

func newTestServer(t *testing.T) (*Server, *mockRegistry) {
	t.Helper()

	repos := newMockRegistry()
	logger := slog.Default()

	registry := entitlement.NewFeatureRegistry()
	catalog := entitlement.NewPlanCatalog(registry)
	toggles := entitlement.NewToggleStore(registry, repos.toggles, logger)
	entitlements := entitlement.NewEntitlementResolver(catalog, toggles)
	staff := entitlement.NewStaffPermissionResolver(nil)

	access, err := entitlement.NewAccessResolver(entitlements, staff, repos.agencies, nil, logger)
	if err != nil {
		t.Fatalf("building access resolver: %v", err)
	}

	cfg := &config.Config{
		Environment: "local",
		Service:     "agentdesk-test",
		LogLevel:    "info",
		Build:       config.BuildInfo{Version: "test"},
	}

	s, err := NewServer(cfg, repos, access, logger)
	if err != nil {
		t.Fatalf("NewServer returned error: %v", err)
	}
	return s, repos
}

// discardLogger returns a logger that drops all output, keeping test logs
// quiet.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// subjectContext returns a context carrying the given subject.
func subjectContext(role types.SubjectRole, grant types.PermissionGrant) context.Context {
	return types.WithSubject(context.Background(), types.Subject{
		ActorID:  "act_test",
		TenantID: "agc_test",
		Role:     role,
		Grant:    grant,
	})
}
