package core

import (
	"context"
	"log/slog"
	"net/http"

	"agentdesk/internal/types"
)

// subjectPublicPaths lists URL paths that are exempt from subject resolution.
// Requests to these paths bypass the SubjectMiddleware entirely.
var subjectPublicPaths = map[string]bool{
	"/health":             true,
	"/v1/billing/webhook": true,
}

// SubjectResolver turns the identity the upstream authentication layer
// asserts into a fully-populated acting Subject. Identity (who the user is)
// is decided upstream; this service only loads what that identity may see.
type SubjectResolver interface {
	// ResolveSubject validates the asserted (tenant, actor, role) triple and,
	// for staff, loads the permission grant. The grant is loaded once here so
	// every check during the request observes one consistent grant state.
	ResolveSubject(ctx context.Context, tenantID, actorID string, role types.SubjectRole) (*types.Subject, error)
}

// RepoSubjectResolver is the repository-backed SubjectResolver used in
// production.
type RepoSubjectResolver struct {
	repos types.RepositoryRegistry
}

// NewRepoSubjectResolver creates the standard SubjectResolver.
func NewRepoSubjectResolver(repos types.RepositoryRegistry) *RepoSubjectResolver {
	return &RepoSubjectResolver{repos: repos}
}

// ResolveSubject checks that the agency exists and, for staff subjects,
// attaches the staff member's permission grant. Unknown roles are rejected.
func (r *RepoSubjectResolver) ResolveSubject(ctx context.Context, tenantID, actorID string, role types.SubjectRole) (*types.Subject, error) {
	switch role {
	case types.RoleOwner, types.RoleStaff, types.RoleCustomer:
	default:
		return nil, types.NewAppError(types.ErrCodeAuthSubjectInvalid, "unrecognized subject role", nil)
	}

	if _, err := r.repos.Agencies().GetByID(ctx, tenantID); err != nil {
		return nil, types.NewAppError(types.ErrCodeAuthSubjectInvalid, "unknown agency", err)
	}

	subject := &types.Subject{ActorID: actorID, TenantID: tenantID, Role: role}
	if role == types.RoleStaff {
		staff, err := r.repos.Staff().GetByID(ctx, tenantID, actorID)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeAuthSubjectInvalid, "unknown staff account", err)
		}
		subject.Grant = staff.Grant
	}
	return subject, nil
}

// SubjectMiddleware resolves the acting Subject from the identity headers the
// upstream gateway asserts (X-Agentdesk-Tenant, X-Agentdesk-Actor,
// X-Agentdesk-Role) and injects it into the request context. The gateway
// authenticates; this middleware only materializes the subject.
//
// If the Subjects field on Server is nil (e.g., during tests that don't
// inject one), the middleware passes through without resolution.
func (s *Server) SubjectMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Subjects == nil {
			next.ServeHTTP(w, r)
			return
		}

		if subjectPublicPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		tenantID := r.Header.Get("X-Agentdesk-Tenant")
		actorID := r.Header.Get("X-Agentdesk-Actor")
		role := types.SubjectRole(r.Header.Get("X-Agentdesk-Role"))
		if tenantID == "" || actorID == "" || role == "" {
			s.writeSubjectError(w, r, types.ErrCodeAuthSubjectMissing, "subject identity headers are required")
			return
		}

		subject, err := s.Subjects.ResolveSubject(r.Context(), tenantID, actorID, role)
		if err != nil {
			s.Logger.Warn("subject resolution failed",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("tenant_id", tenantID),
				slog.String("error", err.Error()),
			)
			s.writeSubjectError(w, r, types.ErrCodeAuthSubjectInvalid, "could not resolve acting subject")
			return
		}

		ctx := types.WithSubject(r.Context(), *subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// writeSubjectError writes a 401 Unauthorized JSON response with the given
// error code.
func (s *Server) writeSubjectError(w http.ResponseWriter, r *http.Request, code types.ErrorCode, message string) {
	requestID := types.GetRequestID(r.Context())
	resp := APIErrorResponse{
		Error: ErrorDetail{
			Code:      string(code),
			Message:   message,
			RequestID: requestID,
		},
	}
	JSON(w, r, http.StatusUnauthorized, resp)
}

// RequireRole returns middleware that restricts a route to a single subject
// role. The entitlement engine has no role hierarchy; owner-only routes
// (settings, staff administration) simply require RoleOwner.
//
// If the Subject is not present in context (unauthenticated), returns 401.
// If the Subject's role does not match, returns 403 Forbidden.
func RequireRole(role types.SubjectRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject, ok := types.GetSubject(r.Context())
			if !ok {
				Error(w, r, types.NewAppError(types.ErrCodeAuthSubjectMissing, "Authentication required", nil))
				return
			}

			if subject.Role != role {
				Error(w, r, types.NewAppError(types.ErrCodePermissionRole, "Insufficient role for this operation", nil))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
