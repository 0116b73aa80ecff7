// Package handlers contains the HTTP handler implementations for the
// AgentDesk entitlement API: the feature settings editor, access resolution
// for page guards and menu rendering, staff administration, and the Stripe
// billing webhook.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"agentdesk/internal/core"
	"agentdesk/internal/entitlement"
	"agentdesk/internal/types"
)

// --- Request/Response Models ---

// UpdateFeatureRequest is the request body for PUT /v1/features/{key}.
type UpdateFeatureRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// FeatureStateView is one feature's definition merged with the agency's
// effective state, as rendered by the settings editor.
type FeatureStateView struct {
	Key         types.FeatureKey `json:"key"`
	Label       string           `json:"label"`
	Description string           `json:"description"`
	Locked      bool             `json:"locked"`
	// Premium marks features gated behind a paid tier; the settings editor
	// renders an upgrade prompt instead of a plain toggle when the agency
	// is not entitled.
	Premium bool `json:"premium"`
	// Enabled is the effective toggle state (default merged with any
	// stored override; locked features are always true).
	Enabled bool `json:"enabled"`
	// Entitled reports whether the agency's plan covers the feature.
	Entitled bool `json:"entitled"`
	// Usable is Enabled AND Entitled: what the feature actually does at
	// runtime.
	Usable       bool            `json:"usable"`
	RequiresPlan *types.PlanTier `json:"requires_plan,omitempty"`
}

// FeatureGroupView is one group of the settings editor, in presentation order.
type FeatureGroupView struct {
	Group    types.FeatureGroup `json:"group"`
	Features []FeatureStateView `json:"features"`
}

// FeatureListResponse is the response body for GET /v1/features.
type FeatureListResponse struct {
	Plan   types.PlanTier     `json:"plan"`
	Groups []FeatureGroupView `json:"groups"`
}

// --- Handler ---

// FeatureHandler serves the feature settings editor: the grouped feature
// list with effective state, and the toggle write endpoint.
type FeatureHandler struct {
	registry  *entitlement.FeatureRegistry
	catalog   *entitlement.PlanCatalog
	toggles   *entitlement.ToggleStore
	agencies  types.AgencyRepository
	validator *core.Validator
	logger    *slog.Logger
}

// NewFeatureHandler creates a new FeatureHandler with the provided
// dependencies.
func NewFeatureHandler(
	registry *entitlement.FeatureRegistry,
	catalog *entitlement.PlanCatalog,
	toggles *entitlement.ToggleStore,
	agencies types.AgencyRepository,
	v *core.Validator,
	l *slog.Logger,
) *FeatureHandler {
	if l == nil {
		l = slog.Default()
	}
	return &FeatureHandler{
		registry:  registry,
		catalog:   catalog,
		toggles:   toggles,
		agencies:  agencies,
		validator: v,
		logger:    l,
	}
}

// RegisterRoutes mounts feature routes on the provided chi.Router.
// Reading the list is open to owners and staff; writing a toggle is
// owner-only.
func (h *FeatureHandler) RegisterRoutes(r chi.Router) {
	r.Route("/features", func(r chi.Router) {
		r.Get("/", h.List)
		r.With(core.RequireRole(types.RoleOwner)).Put("/{key}", h.Update)
	})
}

// List handles GET /v1/features. It fetches the agency plan and one toggle
// snapshot, then renders every registered feature grouped for presentation,
// so the whole editor reflects a single consistent state.
func (h *FeatureHandler) List(w http.ResponseWriter, r *http.Request) {
	subject, ok := types.GetSubject(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthSubjectMissing, "Authentication required", nil))
		return
	}

	agency, err := h.agencies.GetByID(r.Context(), subject.TenantID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	snapshot, err := h.toggles.Snapshot(r.Context(), subject.TenantID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	resp := FeatureListResponse{Plan: agency.Plan}
	for _, group := range h.registry.DefinitionsByGroup() {
		view := FeatureGroupView{
			Group:    group.Group,
			Features: make([]FeatureStateView, 0, len(group.Features)),
		}
		for _, def := range group.Features {
			enabled, err := h.toggles.EffectiveIn(snapshot, def.Key)
			if err != nil {
				core.Error(w, r, err)
				return
			}
			entitled := h.catalog.IsEntitled(agency.Plan, def.Key)
			view.Features = append(view.Features, FeatureStateView{
				Key:          def.Key,
				Label:        def.Label,
				Description:  def.Description,
				Locked:       def.Locked,
				Premium:      def.Premium(),
				Enabled:      enabled,
				Entitled:     entitled,
				Usable:       enabled && entitled,
				RequiresPlan: def.RequiresPlan,
			})
		}
		resp.Groups = append(resp.Groups, view)
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: resp})
}

// Update handles PUT /v1/features/{key}. Toggling a locked feature returns
// 409; an unknown feature key returns 404. The write does not require the
// agency's plan to cover the feature: an owner may pre-enable a feature
// before upgrading, and disabling must always work.
func (h *FeatureHandler) Update(w http.ResponseWriter, r *http.Request) {
	subject, ok := types.GetSubject(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthSubjectMissing, "Authentication required", nil))
		return
	}

	key := types.FeatureKey(chi.URLParam(r, "key"))

	var req UpdateFeatureRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.toggles.SetEnabled(r.Context(), subject.TenantID, key, *req.Enabled); err != nil {
		core.Error(w, r, err)
		return
	}

	def, err := h.registry.Get(key)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	agency, err := h.agencies.GetByID(r.Context(), subject.TenantID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	entitled := h.catalog.IsEntitled(agency.Plan, key)
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: FeatureStateView{
		Key:          def.Key,
		Label:        def.Label,
		Description:  def.Description,
		Locked:       def.Locked,
		Premium:      def.Premium(),
		Enabled:      *req.Enabled,
		Entitled:     entitled,
		Usable:       *req.Enabled && entitled,
		RequiresPlan: def.RequiresPlan,
	}})
}
