package entitlement

import (
	"agentdesk/internal/types"
)

// planPtr is a table-construction helper for optional plan requirements.
func planPtr(tier types.PlanTier) *types.PlanTier {
	return &tier
}

// defaultFeatureDefinitions is the authoritative feature table for the
// AgentDesk back office. Order within the slice is the presentation order
// inside each group; group order comes from types.FeatureGroupOrder.
//
// Locked features are core functionality that can never be turned off.
// A nil RequiresPlan means the feature is available on every tier.
var defaultFeatureDefinitions = []types.FeatureDefinition{
	// Core
	{
		Key:            "properties",
		Group:          types.GroupCore,
		Label:          "Property Listings",
		Description:    "Manage the agency's property inventory.",
		DefaultEnabled: true,
		Locked:         true,
	},
	{
		Key:            "customers",
		Group:          types.GroupCore,
		Label:          "Customer Management",
		Description:    "Track buyers, sellers and their contact history.",
		DefaultEnabled: true,
	},
	{
		Key:            "inquiries",
		Group:          types.GroupCore,
		Label:          "Inquiry Inbox",
		Description:    "Receive and assign incoming property inquiries.",
		DefaultEnabled: true,
	},

	// Listings
	{
		Key:            "open-house",
		Group:          types.GroupListings,
		Label:          "Open House Scheduling",
		Description:    "Publish and manage open-house events.",
		DefaultEnabled: true,
		RequiresPlan:   planPtr(types.PlanBasic),
	},
	{
		Key:            "registry",
		Group:          types.GroupListings,
		Label:          "Registry Lookups",
		Description:    "Pull title and registry records for a listing.",
		DefaultEnabled: false,
		RequiresPlan:   planPtr(types.PlanPro),
	},
	{
		Key:            "portal-sync",
		Group:          types.GroupListings,
		Label:          "Portal Syndication",
		Description:    "Push listings to external property portals.",
		DefaultEnabled: false,
		RequiresPlan:   planPtr(types.PlanPro),
	},

	// Marketing
	{
		Key:            "email-campaigns",
		Group:          types.GroupMarketing,
		Label:          "Email Campaigns",
		Description:    "Send listing announcements to customer segments.",
		DefaultEnabled: false,
		RequiresPlan:   planPtr(types.PlanBasic),
	},
	{
		Key:            "ai-listing-copy",
		Group:          types.GroupMarketing,
		Label:          "AI Listing Copy",
		Description:    "Generate listing descriptions with AI assistance.",
		DefaultEnabled: true,
		RequiresPlan:   planPtr(types.PlanPro),
	},
	{
		Key:            "ai-blog",
		Group:          types.GroupMarketing,
		Label:          "AI Blog Drafts",
		Description:    "Draft neighborhood and market blog posts with AI.",
		DefaultEnabled: false,
		RequiresPlan:   planPtr(types.PlanPro),
	},
	{
		Key:            "sns-autopost",
		Group:          types.GroupMarketing,
		Label:          "Social Auto-Posting",
		Description:    "Automatically post new listings to social accounts.",
		DefaultEnabled: false,
		RequiresPlan:   planPtr(types.PlanEnterprise),
	},

	// Analytics
	{
		Key:            "traffic-analytics",
		Group:          types.GroupAnalytics,
		Label:          "Traffic Analytics",
		Description:    "Listing view and inquiry conversion statistics.",
		DefaultEnabled: true,
		RequiresPlan:   planPtr(types.PlanBasic),
	},
	{
		Key:            "market-reports",
		Group:          types.GroupAnalytics,
		Label:          "Market Reports",
		Description:    "Comparable-sales and neighborhood price reports.",
		DefaultEnabled: false,
		RequiresPlan:   planPtr(types.PlanPro),
	},

	// Rentals
	{
		Key:            "rental-mgmt",
		Group:          types.GroupRentals,
		Label:          "Rental Management",
		Description:    "Track rental units, leases and renewals.",
		DefaultEnabled: true,
		RequiresPlan:   planPtr(types.PlanBasic),
	},
	{
		Key:            "rent-roll",
		Group:          types.GroupRentals,
		Label:          "Rent Roll",
		Description:    "Monthly rent collection and arrears overview.",
		DefaultEnabled: false,
		RequiresPlan:   planPtr(types.PlanPro),
	},

	// Office
	{
		Key:            "staff-accounts",
		Group:          types.GroupOffice,
		Label:          "Staff Accounts",
		Description:    "Delegate restricted sub-accounts to office staff.",
		DefaultEnabled: true,
		RequiresPlan:   planPtr(types.PlanBasic),
	},
	{
		Key:            "custom-branding",
		Group:          types.GroupOffice,
		Label:          "Custom Branding",
		Description:    "White-label the customer-facing pages.",
		DefaultEnabled: false,
		RequiresPlan:   planPtr(types.PlanEnterprise),
	},
}

// DefaultFeatureDefinitions returns a copy of the built-in feature table.
// Callers receive their own slice so the package-level table cannot be
// mutated.
func DefaultFeatureDefinitions() []types.FeatureDefinition {
	defs := make([]types.FeatureDefinition, len(defaultFeatureDefinitions))
	copy(defs, defaultFeatureDefinitions)
	return defs
}

// FeatureGroup is an ordered slice of definitions under one group heading,
// as presented by the settings editor.
type FeatureGroup struct {
	Group    types.FeatureGroup
	Features []types.FeatureDefinition
}

// FeatureRegistry is the immutable catalog of every feature definition.
// It is built once at process start and injected wherever feature metadata
// is needed.
type FeatureRegistry struct {
	byKey  map[types.FeatureKey]types.FeatureDefinition
	groups []FeatureGroup
	all    []types.FeatureDefinition
}

// NewFeatureRegistry builds a registry from the given definitions, preserving
// their order within each group and ordering groups per
// types.FeatureGroupOrder. Passing no definitions uses the built-in table.
func NewFeatureRegistry(defs ...types.FeatureDefinition) *FeatureRegistry {
	if len(defs) == 0 {
		defs = DefaultFeatureDefinitions()
	}

	byKey := make(map[types.FeatureKey]types.FeatureDefinition, len(defs))
	byGroup := make(map[types.FeatureGroup][]types.FeatureDefinition)
	for _, def := range defs {
		byKey[def.Key] = def
		byGroup[def.Group] = append(byGroup[def.Group], def)
	}

	groups := make([]FeatureGroup, 0, len(types.FeatureGroupOrder))
	for _, g := range types.FeatureGroupOrder {
		if features, ok := byGroup[g]; ok {
			groups = append(groups, FeatureGroup{Group: g, Features: features})
		}
	}

	all := make([]types.FeatureDefinition, len(defs))
	copy(all, defs)

	return &FeatureRegistry{byKey: byKey, groups: groups, all: all}
}

// Get returns the definition for key. An unknown feature key is a
// configuration error and fails loud with not_found_feature; it must never be
// defaulted into a silent allow or deny.
func (r *FeatureRegistry) Get(key types.FeatureKey) (types.FeatureDefinition, error) {
	def, ok := r.byKey[key]
	if !ok {
		return types.FeatureDefinition{}, types.NewAppErrorWithDetails(
			types.ErrCodeNotFoundFeature,
			"unknown feature key",
			nil,
			map[string]any{"feature_key": string(key)},
		)
	}
	return def, nil
}

// Has reports whether key is a known feature.
func (r *FeatureRegistry) Has(key types.FeatureKey) bool {
	_, ok := r.byKey[key]
	return ok
}

// DefinitionsByGroup returns the feature definitions grouped and ordered for
// presentation. The returned slices must be treated as read-only.
func (r *FeatureRegistry) DefinitionsByGroup() []FeatureGroup {
	return r.groups
}

// All returns every definition in table order.
func (r *FeatureRegistry) All() []types.FeatureDefinition {
	return r.all
}
