package entitlement

import (
	"context"
	"fmt"
	"log/slog"

	"agentdesk/internal/types"
)

// defaultCapabilityFeatures maps each UI-facing capability key (a menu
// section or guarded route) to the feature keys backing it. A capability is
// entitlement-usable when ANY of its features is usable, which models menu
// sections hosting several independently toggleable sub-features.
//
// Capabilities absent from this map ("dashboard", "settings") carry no
// entitlement requirement at all: they are structural UI that must stay
// visible on every plan. Unknown capability keys resolve the same way.
// This fail-open default is deliberate and documented -- hiding structural
// navigation because of a configuration gap would be worse than showing it --
// and contrasts with the fail-closed staff-grant default. Flagged to product
// in DESIGN.md; do not "fix" silently.
var defaultCapabilityFeatures = map[types.CapabilityKey][]types.FeatureKey{
	"properties":  {"properties"},
	"customers":   {"customers", "inquiries"},
	"listings":    {"open-house", "registry", "portal-sync"},
	"marketing":   {"email-campaigns", "sns-autopost"},
	"ai-tools":    {"ai-listing-copy", "ai-blog"},
	"analytics":   {"traffic-analytics", "market-reports"},
	"rental-mgmt": {"rental-mgmt", "rent-roll"},
	"contracts":   {"registry"},
	"office":      {"staff-accounts", "custom-branding"},
}

// DefaultCapabilityFeatures returns a copy of the built-in
// capability-to-feature table.
func DefaultCapabilityFeatures() map[types.CapabilityKey][]types.FeatureKey {
	m := make(map[types.CapabilityKey][]types.FeatureKey, len(defaultCapabilityFeatures))
	for k, v := range defaultCapabilityFeatures {
		keys := make([]types.FeatureKey, len(v))
		copy(keys, v)
		m[k] = keys
	}
	return m
}

// NavSection is one entry of the back-office navigation (sidebar on desktop,
// tab bar on mobile). Sections render in slice order.
type NavSection struct {
	Key   types.CapabilityKey `json:"key"`
	Label string              `json:"label"`
}

// defaultNavSections is the full navigation in presentation order. Menu
// rendering filters it through the access resolver; it never reorders.
var defaultNavSections = []NavSection{
	{Key: "dashboard", Label: "Dashboard"},
	{Key: "properties", Label: "Properties"},
	{Key: "customers", Label: "Customers"},
	{Key: "listings", Label: "Listings"},
	{Key: "contracts", Label: "Contracts"},
	{Key: "marketing", Label: "Marketing"},
	{Key: "ai-tools", Label: "AI Tools"},
	{Key: "analytics", Label: "Analytics"},
	{Key: "rental-mgmt", Label: "Rentals"},
	{Key: "office", Label: "Office"},
	{Key: "settings", Label: "Settings"},
}

// DefaultNavSections returns a copy of the built-in navigation table.
func DefaultNavSections() []NavSection {
	sections := make([]NavSection, len(defaultNavSections))
	copy(sections, defaultNavSections)
	return sections
}

// Decision is the outcome of one access resolution. The two authorization
// axes are kept as separate booleans so callers (upgrade prompts) can tell
// "denied by plan or toggle" apart from "denied by staff permission" even
// though Allowed is the only bit most call sites need.
type Decision struct {
	// Allowed is the final answer: Entitled AND Permitted.
	Allowed bool `json:"allowed"`
	// Entitled is the plan-and-toggle axis across the capability's features.
	Entitled bool `json:"entitled"`
	// Permitted is the staff-permission axis.
	Permitted bool `json:"permitted"`
}

// EntitlementResolver composes the plan catalog and the toggle store to
// answer whether a single feature is usable for an agency. Plan downgrade and
// toggle-off independently remove usability; either alone denies.
type EntitlementResolver struct {
	catalog *PlanCatalog
	toggles *ToggleStore
}

// NewEntitlementResolver creates the plan-and-toggle resolver.
func NewEntitlementResolver(catalog *PlanCatalog, toggles *ToggleStore) *EntitlementResolver {
	return &EntitlementResolver{catalog: catalog, toggles: toggles}
}

// IsEntitled reports whether the plan alone permits the feature.
func (r *EntitlementResolver) IsEntitled(plan types.PlanTier, key types.FeatureKey) bool {
	return r.catalog.IsEntitled(plan, key)
}

// IsUsable reports whether the feature is both entitled by plan and enabled
// by the agency's effective toggle state.
func (r *EntitlementResolver) IsUsable(ctx context.Context, tenantID string, plan types.PlanTier, key types.FeatureKey) (bool, error) {
	snapshot, err := r.toggles.Snapshot(ctx, tenantID)
	if err != nil {
		return false, err
	}
	return r.isUsableIn(plan, snapshot, key)
}

// isUsableIn is IsUsable evaluated against an already-fetched snapshot.
func (r *EntitlementResolver) isUsableIn(plan types.PlanTier, snapshot types.ToggleSet, key types.FeatureKey) (bool, error) {
	if !r.IsEntitled(plan, key) {
		return false, nil
	}
	return r.toggles.EffectiveIn(snapshot, key)
}

// AccessResolver is the single entry point both menu rendering and route
// guards use. The composition rule -- entitlement OR-ed across a capability's
// features, AND-ed with the staff permission -- is defined here exactly once.
type AccessResolver struct {
	entitlements *EntitlementResolver
	staff        *StaffPermissionResolver
	agencies     types.AgencyRepository
	features     map[types.CapabilityKey][]types.FeatureKey
	sections     []NavSection
	logger       *slog.Logger
}

// NewAccessResolver composes the resolvers over the given capability table.
// Passing a nil features map uses the built-in table. Every feature key the
// table references must exist in the toggle store's registry; a dangling
// reference is configuration drift and fails construction immediately rather
// than at first request.
func NewAccessResolver(
	entitlements *EntitlementResolver,
	staff *StaffPermissionResolver,
	agencies types.AgencyRepository,
	features map[types.CapabilityKey][]types.FeatureKey,
	logger *slog.Logger,
) (*AccessResolver, error) {
	if features == nil {
		features = DefaultCapabilityFeatures()
	}
	if logger == nil {
		logger = slog.Default()
	}

	for capability, keys := range features {
		for _, key := range keys {
			if !entitlements.toggles.registry.Has(key) {
				return nil, fmt.Errorf("capability %q references unknown feature %q", capability, key)
			}
		}
	}

	return &AccessResolver{
		entitlements: entitlements,
		staff:        staff,
		agencies:     agencies,
		features:     features,
		sections:     DefaultNavSections(),
		logger:       logger,
	}, nil
}

// FeatureKeysFor returns the feature keys backing the capability and whether
// a mapping exists.
func (r *AccessResolver) FeatureKeysFor(capability types.CapabilityKey) ([]types.FeatureKey, bool) {
	keys, ok := r.features[capability]
	return keys, ok
}

// CanAccess answers the final yes/no for (subject, capability). It is the
// boolean form of Resolve for call sites that do not need the per-axis
// breakdown.
func (r *AccessResolver) CanAccess(ctx context.Context, subject types.Subject, capability types.CapabilityKey) (bool, error) {
	decision, err := r.Resolve(ctx, subject, capability)
	if err != nil {
		return false, err
	}
	return decision.Allowed, nil
}

// Resolve performs one access resolution. It fetches the agency plan and one
// toggle snapshot, then evaluates both axes against that consistent state.
// Customers never reach back-office capabilities and are denied outright.
func (r *AccessResolver) Resolve(ctx context.Context, subject types.Subject, capability types.CapabilityKey) (Decision, error) {
	if subject.Role == types.RoleCustomer {
		return Decision{}, nil
	}

	// Unmapped capabilities are structural UI with no entitlement
	// requirement; skip the plan/toggle fetch entirely.
	keys, mapped := r.features[capability]
	if !mapped {
		permitted := r.staff.IsPermitted(subject, capability)
		return Decision{Allowed: permitted, Entitled: true, Permitted: permitted}, nil
	}

	agency, err := r.agencies.GetByID(ctx, subject.TenantID)
	if err != nil {
		return Decision{}, err
	}
	snapshot, err := r.entitlements.toggles.Snapshot(ctx, subject.TenantID)
	if err != nil {
		return Decision{}, err
	}
	return r.resolveIn(subject, agency.Plan, snapshot, capability, keys)
}

// resolveIn evaluates one capability against already-fetched state. Menu
// rendering uses it to resolve every section off a single snapshot.
func (r *AccessResolver) resolveIn(
	subject types.Subject,
	plan types.PlanTier,
	snapshot types.ToggleSet,
	capability types.CapabilityKey,
	keys []types.FeatureKey,
) (Decision, error) {
	entitled := false
	for _, key := range keys {
		usable, err := r.entitlements.isUsableIn(plan, snapshot, key)
		if err != nil {
			return Decision{}, err
		}
		if usable {
			entitled = true
			break
		}
	}

	permitted := r.staff.IsPermitted(subject, capability)
	return Decision{
		Allowed:   entitled && permitted,
		Entitled:  entitled,
		Permitted: permitted,
	}, nil
}

// VisibleSections filters the navigation for the acting subject. The agency
// plan and toggle rows are fetched once and every section resolves against
// that snapshot, so a concurrent toggle write cannot split the menu state.
// Section order is preserved.
func (r *AccessResolver) VisibleSections(ctx context.Context, subject types.Subject) ([]NavSection, error) {
	if subject.Role == types.RoleCustomer {
		return []NavSection{}, nil
	}

	agency, err := r.agencies.GetByID(ctx, subject.TenantID)
	if err != nil {
		return nil, err
	}
	snapshot, err := r.entitlements.toggles.Snapshot(ctx, subject.TenantID)
	if err != nil {
		return nil, err
	}

	visible := make([]NavSection, 0, len(r.sections))
	for _, section := range r.sections {
		keys, mapped := r.features[section.Key]
		var decision Decision
		if !mapped {
			permitted := r.staff.IsPermitted(subject, section.Key)
			decision = Decision{Allowed: permitted, Entitled: true, Permitted: permitted}
		} else {
			decision, err = r.resolveIn(subject, agency.Plan, snapshot, section.Key, keys)
			if err != nil {
				return nil, err
			}
		}
		if decision.Allowed {
			visible = append(visible, section)
		}
	}
	return visible, nil
}
