package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"agentdesk/internal/core"
	"agentdesk/internal/entitlement"
	"agentdesk/internal/types"
)

// AccessDecisionResponse is the response body for GET /v1/access/{capability}.
type AccessDecisionResponse struct {
	Capability types.CapabilityKey `json:"capability"`
	Allowed    bool                `json:"allowed"`
	Entitled   bool                `json:"entitled"`
	Permitted  bool                `json:"permitted"`
}

// MenuResponse is the response body for GET /v1/menu.
type MenuResponse struct {
	Sections []entitlement.NavSection `json:"sections"`
}

// AccessHandler exposes the access resolver to clients: single-capability
// decisions for page guards and the filtered navigation for menu rendering.
type AccessHandler struct {
	access *entitlement.AccessResolver
	logger *slog.Logger
}

// NewAccessHandler creates a new AccessHandler.
func NewAccessHandler(access *entitlement.AccessResolver, l *slog.Logger) *AccessHandler {
	if l == nil {
		l = slog.Default()
	}
	return &AccessHandler{access: access, logger: l}
}

// RegisterRoutes mounts access routes on the provided chi.Router.
func (h *AccessHandler) RegisterRoutes(r chi.Router) {
	r.Get("/access/{capability}", h.Resolve)
	r.Get("/menu", h.Menu)
}

// Resolve handles GET /v1/access/{capability}. A denied capability is a 200
// with Allowed=false, not an error: the caller is asking a question, not
// entering a guarded route. The per-axis booleans let the client choose
// between an upgrade prompt and a permission-denied notice.
func (h *AccessHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	subject, ok := types.GetSubject(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthSubjectMissing, "Authentication required", nil))
		return
	}

	capability := types.CapabilityKey(chi.URLParam(r, "capability"))
	decision, err := h.access.Resolve(r.Context(), subject, capability)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: AccessDecisionResponse{
		Capability: capability,
		Allowed:    decision.Allowed,
		Entitled:   decision.Entitled,
		Permitted:  decision.Permitted,
	}})
}

// Menu handles GET /v1/menu: the navigation sections visible to the acting
// subject, in presentation order.
func (h *AccessHandler) Menu(w http.ResponseWriter, r *http.Request) {
	subject, ok := types.GetSubject(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthSubjectMissing, "Authentication required", nil))
		return
	}

	sections, err := h.access.VisibleSections(r.Context(), subject)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: MenuResponse{Sections: sections}})
}
