// Package entitlement implements the feature-entitlement and access-control
// engine for the AgentDesk back office. It answers one question, repeatedly
// and cheaply: given an agency's plan, its feature toggles, and the acting
// subject's role and permissions, is a capability visible and usable right
// now.
//
// All tables (feature definitions, plan requirements, capability maps) are
// immutable after construction and injected into every resolver; nothing in
// this package reads ambient globals, so resolvers are independently testable
// with fabricated tables.
package entitlement

import (
	"agentdesk/internal/types"
)

// PlanCatalog maps feature keys to the minimum subscription tier required to
// use them and provides the tier ordering. It is the single source of truth
// for plan gating.
type PlanCatalog struct {
	required map[types.FeatureKey]types.PlanTier
}

// NewPlanCatalog derives the plan requirement table from the registry's
// feature definitions, so the catalog can never drift from the feature set.
func NewPlanCatalog(registry *FeatureRegistry) *PlanCatalog {
	required := make(map[types.FeatureKey]types.PlanTier)
	for _, def := range registry.All() {
		if def.RequiresPlan != nil {
			required[def.Key] = *def.RequiresPlan
		}
	}
	return &PlanCatalog{required: required}
}

// RequiredPlan returns the minimum tier for the feature and whether a
// requirement exists. A missing mapping means "no plan restriction": the
// feature is available on every plan, including free. This conservative
// default ensures an unmapped key never silently locks a feature out.
func (c *PlanCatalog) RequiredPlan(key types.FeatureKey) (types.PlanTier, bool) {
	tier, ok := c.required[key]
	return tier, ok
}

// AtLeast reports whether tier a ranks at or above tier b in the fixed
// ordering free < basic < pro < enterprise. An unrecognized tier on either
// side ranks below free, so a corrupted plan value never satisfies a paid
// requirement.
func (c *PlanCatalog) AtLeast(a, b types.PlanTier) bool {
	rankA, okA := types.PlanRank(a)
	if !okA {
		rankA = -1
	}
	rankB, okB := types.PlanRank(b)
	if !okB {
		rankB = -1
	}
	return rankA >= rankB
}

// IsEntitled reports whether the plan alone permits use of the feature,
// ignoring toggles. A feature with no plan requirement is entitled on every
// tier.
func (c *PlanCatalog) IsEntitled(plan types.PlanTier, key types.FeatureKey) bool {
	required, ok := c.RequiredPlan(key)
	if !ok {
		return true
	}
	return c.AtLeast(plan, required)
}
