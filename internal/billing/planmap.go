// Package billing synchronizes agency plan tiers with Stripe subscription
// state. It verifies and processes webhook events and, when an event payload
// is missing price data, fetches the subscription from the Stripe REST API
// behind a circuit breaker.
package billing

import (
	"encoding/json"
	"fmt"

	"agentdesk/internal/types"
)

// PriceMap maps Stripe Price IDs to domain plan tiers. It is populated at
// startup from configuration rather than hardcoded, so a price catalog change
// is a deployment config change, not a code change.
type PriceMap map[string]types.PlanTier

// ParsePriceTiers decodes the configured price-to-tier JSON mapping and
// rejects any tier name the domain does not recognize.
func ParsePriceTiers(raw string) (PriceMap, error) {
	if raw == "" {
		return PriceMap{}, nil
	}

	var decoded map[string]types.PlanTier
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, fmt.Errorf("parsing price tier mapping: %w", err)
	}

	pm := make(PriceMap, len(decoded))
	for priceID, tier := range decoded {
		if priceID == "" {
			return nil, fmt.Errorf("price tier mapping contains an empty price ID")
		}
		if _, ok := types.PlanRank(tier); !ok {
			return nil, fmt.Errorf("price tier mapping: unknown plan tier %q for price %q", tier, priceID)
		}
		pm[priceID] = tier
	}
	return pm, nil
}

// PlanForPrice returns the domain PlanTier for a Stripe Price ID.
// Unknown price IDs map to the free tier rather than erroring: a webhook for
// a price this deployment does not sell must never grant paid entitlements.
func (pm PriceMap) PlanForPrice(priceID string) types.PlanTier {
	if plan, ok := pm[priceID]; ok {
		return plan
	}
	return types.PlanFree
}
