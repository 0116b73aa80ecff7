package core

import (
	"net/http"

	"agentdesk/internal/types"
)

// RequireCapability is the route-guard adapter: it gates a page-entry route
// behind one access resolution. On denial the guarded handler is never
// invoked; the client receives a 403 whose details say which axis denied, so
// the UI can render an upgrade prompt (plan/toggle) or a permission-denied
// notice (staff grant) instead of a generic failure.
//
// Configuration-table errors (unknown feature keys) propagate as-is and
// abort the request; they are programmer errors and must stay visible.
func (s *Server) RequireCapability(capability types.CapabilityKey) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject, ok := types.GetSubject(r.Context())
			if !ok {
				Error(w, r, types.NewAppError(types.ErrCodeAuthSubjectMissing, "Authentication required", nil))
				return
			}

			decision, err := s.Access.Resolve(r.Context(), subject, capability)
			if err != nil {
				Error(w, r, err)
				return
			}

			if !decision.Allowed {
				Error(w, r, types.NewAppErrorWithDetails(
					types.ErrCodePermissionCapability,
					"capability is not available",
					nil,
					map[string]any{
						"capability": string(capability),
						"entitled":   decision.Entitled,
						"permitted":  decision.Permitted,
					},
				))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
