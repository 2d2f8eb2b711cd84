package scenario

import (
	"testing"

	"github.com/oligibbons/one-mind-many-sub000/internal/game/domain"
	apperrors "github.com/oligibbons/one-mind-many-sub000/internal/platform/errors"
)

func testDefinition(t *testing.T) Definition {
	t.Helper()
	registry, err := LoadEmbedded()
	if err != nil {
		t.Fatalf("load embedded scenarios: %v", err)
	}
	def, err := registry.Get("the-serpents-hour")
	if err != nil {
		t.Fatalf("get embedded scenario: %v", err)
	}
	return def
}

func TestLoadEmbeddedValidates(t *testing.T) {
	registry, err := LoadEmbedded()
	if err != nil {
		t.Fatalf("load embedded scenarios: %v", err)
	}
	ids := registry.IDs()
	if len(ids) == 0 {
		t.Fatal("expected at least one embedded scenario")
	}
}

func TestRegistryGetUnknown(t *testing.T) {
	registry := NewRegistry()
	if _, err := registry.Get("nope"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRegisterRejectsInvalidDefinition(t *testing.T) {
	def := testDefinition(t)
	def.StartLocation = "nowhere"

	registry := NewRegistry()
	err := registry.Register(def)
	if apperrors.CodeOf(err) != apperrors.CodeScenarioInvalid {
		t.Fatalf("expected invalid-scenario rejection, got %v", err)
	}
}

func TestDefinitionLookups(t *testing.T) {
	def := testDefinition(t)

	chapel, ok := def.Location("chapel")
	if !ok {
		t.Fatal("expected chapel location")
	}
	if chapel.GridSize != 1 {
		t.Fatalf("expected chapel grid size 1, got %d", chapel.GridSize)
	}
	if !def.Adjacent("chapel", "crypt") {
		t.Fatal("expected chapel adjacent to crypt")
	}
	if def.Adjacent("chapel", "bell-tower") {
		t.Fatal("expected chapel not adjacent to bell-tower")
	}

	pool, ok := def.PoolFor(4)
	if !ok {
		t.Fatal("expected role pool for 4 players")
	}
	if pool.Saboteurs != 1 {
		t.Fatalf("expected exactly one saboteur at 4 players, got %d", pool.Saboteurs)
	}
	if _, ok := def.PoolFor(9); ok {
		t.Fatal("expected no pool for 9 players")
	}
}

func TestIntentionRuleTable(t *testing.T) {
	def := testDefinition(t)

	if !def.AllowsAction(domain.RoleSaboteur, domain.ActionSabotage) {
		t.Fatal("expected saboteur to be allowed sabotage")
	}
	if def.AllowsAction(domain.RoleCollaborator, domain.ActionSabotage) {
		t.Fatal("expected collaborator not to be allowed sabotage")
	}
	if def.AllowsAction(domain.RoleCollaborator, domain.ActionScheme) {
		t.Fatal("expected collaborator not to be allowed scheme")
	}

	if !def.AllowsTarget(domain.RoleSaboteur, domain.ActionSabotage, domain.TargetObject) {
		t.Fatal("expected sabotage to allow object targets")
	}
	if def.AllowsTarget(domain.RoleSaboteur, domain.ActionSabotage, domain.TargetLocation) {
		t.Fatal("expected sabotage not to allow location targets")
	}

	tags := def.TagsFor(domain.RoleSaboteur, domain.ActionSabotage, domain.TargetObject)
	if len(tags) == 0 {
		t.Fatal("expected sabotage tags to be offered")
	}
	for _, tag := range tags {
		if tag != "disable" && tag != "frame" {
			t.Fatalf("unexpected sabotage tag %q", tag)
		}
	}
	if tags := def.TagsFor(domain.RoleCollaborator, domain.ActionSabotage, domain.TargetObject); tags != nil {
		t.Fatalf("expected no tags for illegal combination, got %v", tags)
	}
}

func TestRoleActions(t *testing.T) {
	def := testDefinition(t)
	actions := def.RoleActions(domain.RoleRogue)
	want := map[domain.ActionType]bool{
		domain.ActionMove: true, domain.ActionSearch: true,
		domain.ActionInteract: true, domain.ActionScheme: true,
	}
	if len(actions) != len(want) {
		t.Fatalf("expected %d rogue actions, got %v", len(want), actions)
	}
	for _, action := range actions {
		if !want[action] {
			t.Fatalf("unexpected rogue action %q", action)
		}
	}
}

func TestEntityEffectLookups(t *testing.T) {
	def := testDefinition(t)

	entities := def.EntitiesAt("crypt")
	if len(entities) != 1 || entities[0].ID != "reliquary" {
		t.Fatalf("expected reliquary at crypt, got %v", entities)
	}

	effects := def.EffectsFor("abbot")
	if len(effects) != 2 {
		t.Fatalf("expected 2 abbot effects, got %d", len(effects))
	}
}
