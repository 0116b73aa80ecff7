package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentdesk/internal/core"
	"agentdesk/internal/entitlement"
	"agentdesk/internal/types"
)

// =============================================================================
// Shared Mock Implementations
// =============================================================================

// hMockAgencyRepo implements types.AgencyRepository with function fields.
type hMockAgencyRepo struct {
	getByIDFn func(ctx context.Context, id string) (*types.Agency, error)
}

func (m *hMockAgencyRepo) GetByID(ctx context.Context, id string) (*types.Agency, error) {
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

func (m *hMockAgencyRepo) Create(ctx context.Context, agency *types.Agency) error { return nil }

func (m *hMockAgencyRepo) UpdatePlan(ctx context.Context, id string, plan types.PlanTier) error {
	return nil
}

func (m *hMockAgencyRepo) GetByStripeCustomerID(ctx context.Context, customerID string) (*types.Agency, error) {
	return nil, types.NewAppError(types.ErrCodeNotFoundTenant, "agency not found", nil)
}

// hMockToggleRepo implements types.ToggleRepository with in-memory rows.
type hMockToggleRepo struct {
	rows    map[string]types.ToggleSet
	upserts []types.FeatureToggle
}

func newHMockToggleRepo() *hMockToggleRepo {
	return &hMockToggleRepo{rows: make(map[string]types.ToggleSet)}
}

func (m *hMockToggleRepo) ListByTenant(ctx context.Context, tenantID string) (types.ToggleSet, error) {
	set, ok := m.rows[tenantID]
	if !ok {
		return types.ToggleSet{}, nil
	}
	return set, nil
}

func (m *hMockToggleRepo) Upsert(ctx context.Context, toggle types.FeatureToggle) error {
	m.upserts = append(m.upserts, toggle)
	set, ok := m.rows[toggle.TenantID]
	if !ok {
		set = types.ToggleSet{}
		m.rows[toggle.TenantID] = set
	}
	set[toggle.FeatureKey] = toggle
	return nil
}

// =============================================================================
// Test Helpers
// =============================================================================

func subjectCtx(role types.SubjectRole, grant types.PermissionGrant) context.Context {
	return types.WithSubject(context.Background(), types.Subject{
		ActorID:  "act_test123",
		TenantID: "agc_test123",
		Role:     role,
		Grant:    grant,
	})
}

func newTestFeatureHandler() (*FeatureHandler, *hMockAgencyRepo, *hMockToggleRepo) {
	agencies := &hMockAgencyRepo{}
	toggleRepo := newHMockToggleRepo()
	logger := slog.Default()

	registry := entitlement.NewFeatureRegistry()
	catalog := entitlement.NewPlanCatalog(registry)
	toggles := entitlement.NewToggleStore(registry, toggleRepo, logger)

	h := NewFeatureHandler(registry, catalog, toggles, agencies, core.NewValidator(logger), logger)
	return h, agencies, toggleRepo
}

func featureRouter(h *FeatureHandler) *chi.Mux {
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func decodeData[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var envelope struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope.Data
}

func errorCodeOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope.Error.Code
}

// =============================================================================
// Feature Handler Tests
// =============================================================================

func TestFeatureHandler_List(t *testing.T) {
	h, _, _ := newTestFeatureHandler()
	r := featureRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/features", nil)
	req = req.WithContext(subjectCtx(types.RoleOwner, nil))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeData[FeatureListResponse](t, rec)
	assert.Equal(t, types.PlanPro, resp.Plan)

	// Groups arrive in the canonical presentation order.
	var groups []types.FeatureGroup
	features := map[types.FeatureKey]FeatureStateView{}
	for _, g := range resp.Groups {
		groups = append(groups, g.Group)
		for _, f := range g.Features {
			features[f.Key] = f
		}
	}
	assert.Equal(t, types.FeatureGroupOrder, groups)

	// Locked core feature is always enabled and usable, and never premium.
	properties := features["properties"]
	assert.True(t, properties.Locked)
	assert.True(t, properties.Enabled)
	assert.True(t, properties.Usable)
	assert.False(t, properties.Premium)

	// Enterprise feature on a pro plan: premium, not entitled, not usable.
	sns := features["sns-autopost"]
	assert.True(t, sns.Premium)
	assert.False(t, sns.Entitled)
	assert.False(t, sns.Usable)
}

func TestFeatureHandler_List_PlanDowngradeRemovesUsability(t *testing.T) {
	h, agencies, _ := newTestFeatureHandler()
	agencies.getByIDFn = func(_ context.Context, id string) (*types.Agency, error) {
		return &types.Agency{ID: id, Plan: types.PlanBasic}, nil
	}
	r := featureRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/features", nil)
	req = req.WithContext(subjectCtx(types.RoleOwner, nil))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeData[FeatureListResponse](t, rec)
	for _, g := range resp.Groups {
		for _, f := range g.Features {
			if f.Key == "ai-listing-copy" {
				// Pro-gated: stays enabled by default but is not usable,
				// and marked premium for the upgrade prompt.
				assert.True(t, f.Enabled)
				assert.True(t, f.Premium)
				assert.False(t, f.Entitled)
				assert.False(t, f.Usable)
				return
			}
		}
	}
	t.Fatal("ai-listing-copy feature missing from list response")
}

func TestFeatureHandler_List_Unauthenticated(t *testing.T) {
	h, _, _ := newTestFeatureHandler()
	r := featureRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/features", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, string(types.ErrCodeAuthSubjectMissing), errorCodeOf(t, rec))
}

func TestFeatureHandler_Update(t *testing.T) {
	h, _, toggleRepo := newTestFeatureHandler()
	r := featureRouter(h)

	body := bytes.NewBufferString(`{"enabled":false}`)
	req := httptest.NewRequest(http.MethodPut, "/features/open-house", body)
	req = req.WithContext(subjectCtx(types.RoleOwner, nil))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	view := decodeData[FeatureStateView](t, rec)
	assert.Equal(t, types.FeatureKey("open-house"), view.Key)
	assert.True(t, view.Premium, "basic-gated feature is premium")
	assert.False(t, view.Enabled)
	assert.False(t, view.Usable)

	require.Len(t, toggleRepo.upserts, 1)
	assert.Equal(t, "agc_test123", toggleRepo.upserts[0].TenantID)
	assert.False(t, toggleRepo.upserts[0].IsEnabled)
}

func TestFeatureHandler_Update_LockedFeature(t *testing.T) {
	h, _, toggleRepo := newTestFeatureHandler()
	r := featureRouter(h)

	body := bytes.NewBufferString(`{"enabled":false}`)
	req := httptest.NewRequest(http.MethodPut, "/features/properties", body)
	req = req.WithContext(subjectCtx(types.RoleOwner, nil))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(types.ErrCodeConflictFeatureLocked), errorCodeOf(t, rec))
	assert.Empty(t, toggleRepo.upserts, "locked feature must never be written")
}

func TestFeatureHandler_Update_UnknownFeature(t *testing.T) {
	h, _, _ := newTestFeatureHandler()
	r := featureRouter(h)

	body := bytes.NewBufferString(`{"enabled":true}`)
	req := httptest.NewRequest(http.MethodPut, "/features/time-travel", body)
	req = req.WithContext(subjectCtx(types.RoleOwner, nil))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, string(types.ErrCodeNotFoundFeature), errorCodeOf(t, rec))
}

func TestFeatureHandler_Update_StaffForbidden(t *testing.T) {
	h, _, toggleRepo := newTestFeatureHandler()
	r := featureRouter(h)

	body := bytes.NewBufferString(`{"enabled":true}`)
	req := httptest.NewRequest(http.MethodPut, "/features/open-house", body)
	req = req.WithContext(subjectCtx(types.RoleStaff, types.PermissionGrant{types.PermSettingsManage: true}))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, string(types.ErrCodePermissionRole), errorCodeOf(t, rec))
	assert.Empty(t, toggleRepo.upserts)
}

func TestFeatureHandler_Update_MissingEnabledField(t *testing.T) {
	h, _, _ := newTestFeatureHandler()
	r := featureRouter(h)

	body := bytes.NewBufferString(`{}`)
	req := httptest.NewRequest(http.MethodPut, "/features/open-house", body)
	req = req.WithContext(subjectCtx(types.RoleOwner, nil))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(types.ErrCodeValidationMissingField), errorCodeOf(t, rec))
}

func TestFeatureHandler_Update_MalformedBody(t *testing.T) {
	h, _, _ := newTestFeatureHandler()
	r := featureRouter(h)

	body := bytes.NewBufferString(`{"enabled":`)
	req := httptest.NewRequest(http.MethodPut, "/features/open-house", body)
	req = req.WithContext(subjectCtx(types.RoleOwner, nil))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(types.ErrCodeValidationInvalidJSON), errorCodeOf(t, rec))
}
