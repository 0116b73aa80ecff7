package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"agentdesk/internal/core"
	"agentdesk/internal/types"
)

// StaffDirectory defines the data access contract for staff administration.
// Mirrors the concrete db.StaffRepository methods used by this handler.
type StaffDirectory interface {
	GetByID(ctx context.Context, tenantID, staffID string) (*types.StaffAccount, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*types.StaffAccount, error)
	Create(ctx context.Context, staff *types.StaffAccount) error
	UpdateGrant(ctx context.Context, tenantID, staffID string, grant types.PermissionGrant) error
	Delete(ctx context.Context, tenantID, staffID string) error
}

// --- Request/Response Models ---

// CreateStaffRequest is the request body for POST /v1/staff.
type CreateStaffRequest struct {
	Name  string `json:"name" validate:"required,max=100"`
	Email string `json:"email" validate:"required,email,max=254"`
	// Permissions is the initial grant. Omitted or empty means the account
	// starts with no permissions and is denied every mapped capability.
	Permissions []string `json:"permissions,omitempty" validate:"dive,permission_key"`
}

// UpdateStaffPermissionsRequest is the request body for
// PUT /v1/staff/{id}/permissions. The grant is replaced wholesale; an empty
// list revokes everything.
type UpdateStaffPermissionsRequest struct {
	Permissions *[]string `json:"permissions" validate:"required,dive,permission_key"`
}

// StaffView is the API representation of a staff account.
type StaffView struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Permissions []string  `json:"permissions"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// StaffListResponse is the response body for GET /v1/staff.
type StaffListResponse struct {
	Staff []StaffView `json:"staff"`
}

// --- Handler ---

// StaffHandler manages delegated staff accounts and their permission grants.
// Every route is owner-only: staff cannot administer staff.
type StaffHandler struct {
	staff     StaffDirectory
	validator *core.Validator
	logger    *slog.Logger
}

// NewStaffHandler creates a new StaffHandler with the provided dependencies.
func NewStaffHandler(staff StaffDirectory, v *core.Validator, l *slog.Logger) *StaffHandler {
	if l == nil {
		l = slog.Default()
	}
	return &StaffHandler{staff: staff, validator: v, logger: l}
}

// RegisterRoutes mounts staff administration routes on the provided
// chi.Router.
func (h *StaffHandler) RegisterRoutes(r chi.Router) {
	r.Route("/staff", func(r chi.Router) {
		r.Use(core.RequireRole(types.RoleOwner))
		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Put("/{id}/permissions", h.UpdatePermissions)
		r.Delete("/{id}", h.Delete)
	})
}

// Create handles POST /v1/staff.
func (h *StaffHandler) Create(w http.ResponseWriter, r *http.Request) {
	subject, ok := types.GetSubject(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthSubjectMissing, "Authentication required", nil))
		return
	}

	var req CreateStaffRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		core.Error(w, r, err)
		return
	}

	now := time.Now().UTC()
	account := &types.StaffAccount{
		ID:        "stf_" + uuid.NewString(),
		TenantID:  subject.TenantID,
		Name:      req.Name,
		Email:     req.Email,
		Grant:     grantFromKeys(req.Permissions),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.staff.Create(r.Context(), account); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "staff account created",
		"tenant_id", subject.TenantID,
		"staff_id", account.ID,
	)
	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: staffView(account)})
}

// List handles GET /v1/staff.
func (h *StaffHandler) List(w http.ResponseWriter, r *http.Request) {
	subject, ok := types.GetSubject(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthSubjectMissing, "Authentication required", nil))
		return
	}

	accounts, err := h.staff.ListByTenant(r.Context(), subject.TenantID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	resp := StaffListResponse{Staff: make([]StaffView, 0, len(accounts))}
	for _, account := range accounts {
		resp.Staff = append(resp.Staff, staffView(account))
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: resp})
}

// UpdatePermissions handles PUT /v1/staff/{id}/permissions. The stored grant
// is replaced in one write; a staff member's in-flight requests keep the
// grant they resolved at request start.
func (h *StaffHandler) UpdatePermissions(w http.ResponseWriter, r *http.Request) {
	subject, ok := types.GetSubject(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthSubjectMissing, "Authentication required", nil))
		return
	}

	staffID := chi.URLParam(r, "id")

	var req UpdateStaffPermissionsRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		core.Error(w, r, err)
		return
	}

	grant := grantFromKeys(*req.Permissions)
	if err := h.staff.UpdateGrant(r.Context(), subject.TenantID, staffID, grant); err != nil {
		core.Error(w, r, err)
		return
	}

	account, err := h.staff.GetByID(r.Context(), subject.TenantID, staffID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "staff permissions updated",
		"tenant_id", subject.TenantID,
		"staff_id", staffID,
		"permissions", *req.Permissions,
	)
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: staffView(account)})
}

// Delete handles DELETE /v1/staff/{id}. The account and its grant are removed
// together.
func (h *StaffHandler) Delete(w http.ResponseWriter, r *http.Request) {
	subject, ok := types.GetSubject(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthSubjectMissing, "Authentication required", nil))
		return
	}

	staffID := chi.URLParam(r, "id")
	if err := h.staff.Delete(r.Context(), subject.TenantID, staffID); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "staff account deleted",
		"tenant_id", subject.TenantID,
		"staff_id", staffID,
	)
	w.WriteHeader(http.StatusNoContent)
}

// grantFromKeys builds a PermissionGrant from validated permission key
// strings.
func grantFromKeys(keys []string) types.PermissionGrant {
	grant := make(types.PermissionGrant, len(keys))
	for _, key := range keys {
		grant[types.StaffPermissionKey(key)] = true
	}
	return grant
}

// staffView flattens a StaffAccount's grant into a stable permission list.
// Keys are emitted in the canonical enumeration order so repeated reads never
// shuffle the editor UI.
func staffView(account *types.StaffAccount) StaffView {
	permissions := make([]string, 0, len(account.Grant))
	for _, key := range types.AllStaffPermissionKeys {
		if account.Grant.Allows(key) {
			permissions = append(permissions, string(key))
		}
	}
	return StaffView{
		ID:          account.ID,
		Name:        account.Name,
		Email:       account.Email,
		Permissions: permissions,
		CreatedAt:   account.CreatedAt,
		UpdatedAt:   account.UpdatedAt,
	}
}
