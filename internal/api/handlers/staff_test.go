package handlers

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentdesk/internal/core"
	"agentdesk/internal/types"
)

// mockStaffDirectory implements StaffDirectory with function fields.
type mockStaffDirectory struct {
	getByIDFn     func(ctx context.Context, tenantID, staffID string) (*types.StaffAccount, error)
	listFn        func(ctx context.Context, tenantID string) ([]*types.StaffAccount, error)
	createFn      func(ctx context.Context, staff *types.StaffAccount) error
	updateGrantFn func(ctx context.Context, tenantID, staffID string, grant types.PermissionGrant) error
	deleteFn      func(ctx context.Context, tenantID, staffID string) error
}

func (m *mockStaffDirectory) GetByID(ctx context.Context, tenantID, staffID string) (*types.StaffAccount, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, tenantID, staffID)
	}
	return &types.StaffAccount{
		ID:       staffID,
		TenantID: tenantID,
		Name:     "Test Staff",
		Email:    "staff@test.com",
	}, nil
}

func (m *mockStaffDirectory) ListByTenant(ctx context.Context, tenantID string) ([]*types.StaffAccount, error) {
	if m.listFn != nil {
		return m.listFn(ctx, tenantID)
	}
	return nil, nil
}

func (m *mockStaffDirectory) Create(ctx context.Context, staff *types.StaffAccount) error {
	if m.createFn != nil {
		return m.createFn(ctx, staff)
	}
	return nil
}

func (m *mockStaffDirectory) UpdateGrant(ctx context.Context, tenantID, staffID string, grant types.PermissionGrant) error {
	if m.updateGrantFn != nil {
		return m.updateGrantFn(ctx, tenantID, staffID, grant)
	}
	return nil
}

func (m *mockStaffDirectory) Delete(ctx context.Context, tenantID, staffID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, tenantID, staffID)
	}
	return nil
}

func newTestStaffHandler() (*StaffHandler, *mockStaffDirectory) {
	directory := &mockStaffDirectory{}
	logger := slog.Default()
	h := NewStaffHandler(directory, core.NewValidator(logger), logger)
	return h, directory
}

func staffRouter(h *StaffHandler) *chi.Mux {
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func TestStaffHandler_Create(t *testing.T) {
	h, directory := newTestStaffHandler()
	var created *types.StaffAccount
	directory.createFn = func(_ context.Context, staff *types.StaffAccount) error {
		created = staff
		return nil
	}
	r := staffRouter(h)

	body := bytes.NewBufferString(`{"name":"Hanako Sato","email":"hanako@agency.test","permissions":["listing_manage","customer_view"]}`)
	req := httptest.NewRequest(http.MethodPost, "/staff", body)
	req = req.WithContext(subjectCtx(types.RoleOwner, nil))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, created)
	assert.True(t, strings.HasPrefix(created.ID, "stf_"))
	assert.Equal(t, "agc_test123", created.TenantID)
	assert.True(t, created.Grant.Allows(types.PermListingManage))
	assert.True(t, created.Grant.Allows(types.PermCustomerView))
	assert.False(t, created.Grant.Allows(types.PermSettingsManage))

	view := decodeData[StaffView](t, rec)
	assert.Equal(t, []string{"listing_manage", "customer_view"}, view.Permissions)
}

func TestStaffHandler_Create_NoPermissionsStartsEmpty(t *testing.T) {
	h, directory := newTestStaffHandler()
	var created *types.StaffAccount
	directory.createFn = func(_ context.Context, staff *types.StaffAccount) error {
		created = staff
		return nil
	}
	r := staffRouter(h)

	body := bytes.NewBufferString(`{"name":"Taro Suzuki","email":"taro@agency.test"}`)
	req := httptest.NewRequest(http.MethodPost, "/staff", body)
	req = req.WithContext(subjectCtx(types.RoleOwner, nil))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, created)
	for _, key := range types.AllStaffPermissionKeys {
		assert.False(t, created.Grant.Allows(key))
	}
}

func TestStaffHandler_Create_UnknownPermissionKey(t *testing.T) {
	h, _ := newTestStaffHandler()
	r := staffRouter(h)

	body := bytes.NewBufferString(`{"name":"Hanako Sato","email":"hanako@agency.test","permissions":["root_access"]}`)
	req := httptest.NewRequest(http.MethodPost, "/staff", body)
	req = req.WithContext(subjectCtx(types.RoleOwner, nil))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(types.ErrCodeValidationInvalidField), errorCodeOf(t, rec))
}

func TestStaffHandler_Create_MissingName(t *testing.T) {
	h, _ := newTestStaffHandler()
	r := staffRouter(h)

	body := bytes.NewBufferString(`{"email":"hanako@agency.test"}`)
	req := httptest.NewRequest(http.MethodPost, "/staff", body)
	req = req.WithContext(subjectCtx(types.RoleOwner, nil))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(types.ErrCodeValidationMissingField), errorCodeOf(t, rec))
}

func TestStaffHandler_StaffRoleForbidden(t *testing.T) {
	h, _ := newTestStaffHandler()
	r := staffRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/staff", nil)
	req = req.WithContext(subjectCtx(types.RoleStaff, types.PermissionGrant{types.PermSettingsManage: true}))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, string(types.ErrCodePermissionRole), errorCodeOf(t, rec))
}

func TestStaffHandler_List(t *testing.T) {
	h, directory := newTestStaffHandler()
	directory.listFn = func(_ context.Context, tenantID string) ([]*types.StaffAccount, error) {
		assert.Equal(t, "agc_test123", tenantID)
		return []*types.StaffAccount{
			{
				ID:        "stf_1",
				TenantID:  tenantID,
				Name:      "Hanako Sato",
				Email:     "hanako@agency.test",
				Grant:     types.PermissionGrant{types.PermCustomerView: true},
				CreatedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
			},
		}, nil
	}
	r := staffRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/staff", nil)
	req = req.WithContext(subjectCtx(types.RoleOwner, nil))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeData[StaffListResponse](t, rec)
	require.Len(t, resp.Staff, 1)
	assert.Equal(t, "stf_1", resp.Staff[0].ID)
	assert.Equal(t, []string{"customer_view"}, resp.Staff[0].Permissions)
}

func TestStaffHandler_UpdatePermissions(t *testing.T) {
	h, directory := newTestStaffHandler()
	var gotGrant types.PermissionGrant
	directory.updateGrantFn = func(_ context.Context, tenantID, staffID string, grant types.PermissionGrant) error {
		assert.Equal(t, "agc_test123", tenantID)
		assert.Equal(t, "stf_1", staffID)
		gotGrant = grant
		return nil
	}
	directory.getByIDFn = func(_ context.Context, tenantID, staffID string) (*types.StaffAccount, error) {
		return &types.StaffAccount{
			ID:       staffID,
			TenantID: tenantID,
			Name:     "Hanako Sato",
			Email:    "hanako@agency.test",
			Grant:    types.PermissionGrant{types.PermRentalManage: true},
		}, nil
	}
	r := staffRouter(h)

	body := bytes.NewBufferString(`{"permissions":["rental_manage"]}`)
	req := httptest.NewRequest(http.MethodPut, "/staff/stf_1/permissions", body)
	req = req.WithContext(subjectCtx(types.RoleOwner, nil))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, gotGrant.Allows(types.PermRentalManage))
	assert.False(t, gotGrant.Allows(types.PermListingManage))

	view := decodeData[StaffView](t, rec)
	assert.Equal(t, []string{"rental_manage"}, view.Permissions)
}

// An empty list is a full revocation, not a validation error.
func TestStaffHandler_UpdatePermissions_EmptyListRevokesAll(t *testing.T) {
	h, directory := newTestStaffHandler()
	var gotGrant types.PermissionGrant
	updateCalled := false
	directory.updateGrantFn = func(_ context.Context, _, _ string, grant types.PermissionGrant) error {
		updateCalled = true
		gotGrant = grant
		return nil
	}
	r := staffRouter(h)

	body := bytes.NewBufferString(`{"permissions":[]}`)
	req := httptest.NewRequest(http.MethodPut, "/staff/stf_1/permissions", body)
	req = req.WithContext(subjectCtx(types.RoleOwner, nil))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, updateCalled)
	assert.Empty(t, gotGrant)
}

func TestStaffHandler_UpdatePermissions_MissingField(t *testing.T) {
	h, _ := newTestStaffHandler()
	r := staffRouter(h)

	body := bytes.NewBufferString(`{}`)
	req := httptest.NewRequest(http.MethodPut, "/staff/stf_1/permissions", body)
	req = req.WithContext(subjectCtx(types.RoleOwner, nil))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(types.ErrCodeValidationMissingField), errorCodeOf(t, rec))
}

func TestStaffHandler_UpdatePermissions_NotFound(t *testing.T) {
	h, directory := newTestStaffHandler()
	directory.updateGrantFn = func(_ context.Context, _, _ string, _ types.PermissionGrant) error {
		return types.NewAppError(types.ErrCodeNotFoundStaff, "staff account not found", nil)
	}
	r := staffRouter(h)

	body := bytes.NewBufferString(`{"permissions":["customer_view"]}`)
	req := httptest.NewRequest(http.MethodPut, "/staff/stf_ghost/permissions", body)
	req = req.WithContext(subjectCtx(types.RoleOwner, nil))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, string(types.ErrCodeNotFoundStaff), errorCodeOf(t, rec))
}

func TestStaffHandler_Delete(t *testing.T) {
	h, directory := newTestStaffHandler()
	var deletedID string
	directory.deleteFn = func(_ context.Context, tenantID, staffID string) error {
		assert.Equal(t, "agc_test123", tenantID)
		deletedID = staffID
		return nil
	}
	r := staffRouter(h)

	req := httptest.NewRequest(http.MethodDelete, "/staff/stf_1", nil)
	req = req.WithContext(subjectCtx(types.RoleOwner, nil))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "stf_1", deletedID)
}

func TestStaffHandler_Delete_NotFound(t *testing.T) {
	h, directory := newTestStaffHandler()
	directory.deleteFn = func(_ context.Context, _, _ string) error {
		return types.NewAppError(types.ErrCodeNotFoundStaff, "staff account not found", nil)
	}
	r := staffRouter(h)

	req := httptest.NewRequest(http.MethodDelete, "/staff/stf_ghost", nil)
	req = req.WithContext(subjectCtx(types.RoleOwner, nil))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
