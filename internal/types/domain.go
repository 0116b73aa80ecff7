package types

import "time"

// FeatureKey is the finest-grained togglable and entitled unit.
type FeatureKey string

// CapabilityKey is a coarse, UI-facing identifier (menu section or route)
// backed by zero or more feature keys.
type CapabilityKey string

// FeatureDefinition is the immutable, code-defined record describing a
// feature. The full set of definitions is the single source of truth for
// feature metadata; it is built once at process start and never mutated.
type FeatureDefinition struct {
	Key            FeatureKey   `json:"key"`
	Group          FeatureGroup `json:"group"`
	Label          string       `json:"label"`
	Description    string       `json:"description"`
	DefaultEnabled bool         `json:"default_enabled"`
	// Locked features can never be disabled; the toggle layer is ignored
	// and SetEnabled is rejected.
	Locked bool `json:"locked"`
	// RequiresPlan is the minimum tier needed to use the feature.
	// nil means the feature is available on every plan.
	RequiresPlan *PlanTier `json:"requires_plan,omitempty"`
}

// Premium reports whether the feature is gated behind a paid tier.
func (d FeatureDefinition) Premium() bool {
	return d.RequiresPlan != nil && *d.RequiresPlan != PlanFree
}

// FeatureToggle is a per-agency override of a feature's enabled state.
// At most one row exists per (TenantID, FeatureKey); absence of a row means
// "use FeatureDefinition.DefaultEnabled". Rows are never hard-deleted when a
// feature is turned off, so the business data behind the feature survives.
type FeatureToggle struct {
	TenantID   string     `json:"tenant_id"`
	FeatureKey FeatureKey `json:"feature_key"`
	IsEnabled  bool       `json:"is_enabled"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// ToggleSet is a snapshot of an agency's stored toggle rows, keyed by
// feature. A single access resolution observes one ToggleSet; resolvers never
// re-fetch mid-resolution.
type ToggleSet map[FeatureKey]FeatureToggle

// Lookup returns the stored toggle value for key and whether a row exists.
// The two-value form keeps "row absent" distinct from "row present with
// false", which the merge rules depend on.
func (s ToggleSet) Lookup(key FeatureKey) (bool, bool) {
	row, ok := s[key]
	if !ok {
		return false, false
	}
	return row.IsEnabled, true
}

// PermissionGrant is a staff member's explicit permission set. A missing key
// denies the mapped permission; a staff account with no grant at all is
// denied every mapped permission.
type PermissionGrant map[StaffPermissionKey]bool

// Allows reports whether the grant explicitly permits key.
func (g PermissionGrant) Allows(key StaffPermissionKey) bool {
	return g != nil && g[key]
}

// Agency is the tenant record: a subscribing agent office. An agency holds
// exactly one active plan at any time.
type Agency struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Plan             PlanTier   `json:"plan"`
	StripeCustomerID string     `json:"-"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	DeletedAt        *time.Time `json:"-"`
}

// StaffAccount is a delegated sub-account within an agency. Its access is
// narrowed by its PermissionGrant; deleting the account removes the grant.
type StaffAccount struct {
	ID        string          `json:"id"`
	TenantID  string          `json:"tenant_id"`
	Name      string          `json:"name"`
	Email     string          `json:"email"`
	Grant     PermissionGrant `json:"permissions"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Subject is the acting principal for an access resolution: who is asking,
// for which agency, and with which staff grant (staff role only).
// Identity authentication happens upstream; this service only decides what
// the already-identified subject may see.
type Subject struct {
	ActorID  string
	TenantID string
	Role     SubjectRole
	// Grant is populated only when Role is RoleStaff. Owners bypass the
	// staff-permission axis entirely; customers never reach the back office.
	Grant PermissionGrant
}

// IsStaff reports whether the subject is restricted by the staff axis.
func (s Subject) IsStaff() bool {
	return s.Role == RoleStaff
}
