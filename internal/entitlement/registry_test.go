package entitlement

import (
	"errors"
	"testing"

	"agentdesk/internal/types"
)

func TestNewFeatureRegistry_DefaultTable(t *testing.T) {
	registry := NewFeatureRegistry()
	if len(registry.All()) == 0 {
		t.Fatal("default registry should not be empty")
	}
}

func TestGet_KnownFeature(t *testing.T) {
	registry := NewFeatureRegistry()

	def, err := registry.Get("properties")
	if err != nil {
		t.Fatalf("Get(properties) returned error: %v", err)
	}
	if !def.Locked {
		t.Error("properties should be locked")
	}
	if !def.DefaultEnabled {
		t.Error("properties should default to enabled")
	}
	if def.RequiresPlan != nil {
		t.Error("properties should have no plan requirement")
	}
}

func TestGet_UnknownFeatureFailsLoud(t *testing.T) {
	registry := NewFeatureRegistry()

	_, err := registry.Get("no-such-feature")
	if err == nil {
		t.Fatal("expected error for unknown feature key")
	}

	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *types.AppError, got %T", err)
	}
	if appErr.Code != types.ErrCodeNotFoundFeature {
		t.Errorf("error code = %s, want %s", appErr.Code, types.ErrCodeNotFoundFeature)
	}
}

func TestDefinitionsByGroup_StableOrder(t *testing.T) {
	registry := NewFeatureRegistry()
	groups := registry.DefinitionsByGroup()

	if len(groups) == 0 {
		t.Fatal("expected grouped definitions")
	}

	// Groups must follow types.FeatureGroupOrder.
	pos := map[types.FeatureGroup]int{}
	for i, g := range types.FeatureGroupOrder {
		pos[g] = i
	}
	for i := 1; i < len(groups); i++ {
		if pos[groups[i-1].Group] >= pos[groups[i].Group] {
			t.Errorf("group %s appears after %s, violating presentation order",
				groups[i-1].Group, groups[i].Group)
		}
	}

	// Every definition appears exactly once across the groups.
	total := 0
	for _, g := range groups {
		total += len(g.Features)
	}
	if total != len(registry.All()) {
		t.Errorf("grouped definitions count = %d, want %d", total, len(registry.All()))
	}
}

func TestNewFeatureRegistry_FabricatedTable(t *testing.T) {
	pro := types.PlanPro
	registry := NewFeatureRegistry(
		types.FeatureDefinition{Key: "alpha", Group: types.GroupCore, DefaultEnabled: true},
		types.FeatureDefinition{Key: "beta", Group: types.GroupCore, RequiresPlan: &pro},
	)

	if len(registry.All()) != 2 {
		t.Fatalf("registry size = %d, want 2", len(registry.All()))
	}
	if registry.Has("properties") {
		t.Error("fabricated registry should not contain the built-in table")
	}

	def, err := registry.Get("beta")
	if err != nil {
		t.Fatalf("Get(beta) returned error: %v", err)
	}
	if def.RequiresPlan == nil || *def.RequiresPlan != types.PlanPro {
		t.Error("beta should require pro")
	}
	if !def.Premium() {
		t.Error("beta should be premium")
	}
}

func TestDefaultFeatureDefinitions_ReturnsCopy(t *testing.T) {
	defs := DefaultFeatureDefinitions()
	defs[0].Label = "mutated"

	if DefaultFeatureDefinitions()[0].Label == "mutated" {
		t.Error("mutating the returned slice must not affect the built-in table")
	}
}
