package scenario

import (
	"errors"
	"fmt"
	"strings"

	"github.com/oligibbons/one-mind-many-sub000/internal/game/domain"
)

// Player counts a definition must support.
const (
	MinPlayers = 3
	MaxPlayers = 6
)

var (
	// ErrEmptyID indicates a missing scenario id.
	ErrEmptyID = errors.New("scenario id is required")
	// ErrNoLocations indicates a scenario without a board.
	ErrNoLocations = errors.New("scenario requires at least one location")
)

// Validate checks the internal consistency of a definition. A definition
// that fails validation must never reach a session; callers treat the error
// as fatal configuration, not player input.
func (d *Definition) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return ErrEmptyID
	}
	if len(d.Locations) == 0 {
		return ErrNoLocations
	}
	if d.MaxRounds < 1 {
		return fmt.Errorf("max rounds must be positive, got %d", d.MaxRounds)
	}

	known := make(map[string]Location, len(d.Locations))
	for _, loc := range d.Locations {
		if strings.TrimSpace(loc.ID) == "" {
			return fmt.Errorf("location with empty id")
		}
		if _, dup := known[loc.ID]; dup {
			return fmt.Errorf("duplicate location id %q", loc.ID)
		}
		if loc.GridSize < 1 {
			return fmt.Errorf("location %q grid size must be at least 1, got %d", loc.ID, loc.GridSize)
		}
		known[loc.ID] = loc
	}

	for _, loc := range d.Locations {
		for _, adj := range loc.Adjacent {
			other, ok := known[adj]
			if !ok {
				return fmt.Errorf("location %q adjacent to unknown location %q", loc.ID, adj)
			}
			if !containsID(other.Adjacent, loc.ID) {
				return fmt.Errorf("adjacency between %q and %q is not symmetric", loc.ID, adj)
			}
		}
	}

	if _, ok := known[d.StartLocation]; !ok {
		return fmt.Errorf("start location %q is not a known location", d.StartLocation)
	}
	if d.FailLocation != "" {
		if _, ok := known[d.FailLocation]; !ok {
			return fmt.Errorf("fail location %q is not a known location", d.FailLocation)
		}
	}

	if err := d.validatePools(); err != nil {
		return err
	}
	if err := d.validateTrigger("prophecy", d.Prophecy, known); err != nil {
		return err
	}
	if err := d.validateTrigger("doomsday", d.Doomsday, known); err != nil {
		return err
	}

	for _, comp := range d.Complications {
		if strings.TrimSpace(comp.ID) == "" {
			return fmt.Errorf("complication with empty id")
		}
		if comp.DurationRounds < 1 {
			return fmt.Errorf("complication %q duration must be positive", comp.ID)
		}
		if _, ok := known[comp.Trigger.LocationID]; !ok {
			return fmt.Errorf("complication %q triggers at unknown location %q", comp.ID, comp.Trigger.LocationID)
		}
		switch comp.Modifier.Kind {
		case ModifierMovementPenalty:
			if comp.Modifier.Amount < 1 {
				return fmt.Errorf("complication %q movement penalty must be positive", comp.ID)
			}
		case ModifierActionBlocked:
			if !domain.KnownActionType(comp.Modifier.Action) {
				return fmt.Errorf("complication %q blocks unknown action %q", comp.ID, comp.Modifier.Action)
			}
		default:
			return fmt.Errorf("complication %q has unknown modifier kind %q", comp.ID, comp.Modifier.Kind)
		}
	}

	entityIDs := make(map[string]struct{}, len(d.Entities))
	for _, entity := range d.Entities {
		if strings.TrimSpace(entity.ID) == "" {
			return fmt.Errorf("entity with empty id")
		}
		if entity.Kind != EntityObject && entity.Kind != EntityNPC {
			return fmt.Errorf("entity %q has unknown kind %q", entity.ID, entity.Kind)
		}
		if _, ok := known[entity.LocationID]; !ok {
			return fmt.Errorf("entity %q placed at unknown location %q", entity.ID, entity.LocationID)
		}
		entityIDs[entity.ID] = struct{}{}
	}

	for _, effect := range d.Effects {
		if _, ok := entityIDs[effect.EntityID]; !ok {
			return fmt.Errorf("effect keyed to unknown entity %q", effect.EntityID)
		}
		switch effect.Kind {
		case EffectAwardVP:
			if effect.VictoryPoints == 0 {
				return fmt.Errorf("award-vp effect on %q has zero points", effect.EntityID)
			}
		case EffectGrantCard, EffectRemoveCard:
			if strings.TrimSpace(effect.CardID) == "" {
				return fmt.Errorf("card effect on %q missing card id", effect.EntityID)
			}
		case EffectTeleport:
			if _, ok := known[effect.LocationID]; !ok {
				return fmt.Errorf("teleport effect on %q targets unknown location %q", effect.EntityID, effect.LocationID)
			}
		default:
			return fmt.Errorf("effect on %q has unknown kind %q", effect.EntityID, effect.Kind)
		}
		if effect.Role != "" && !domain.KnownRole(effect.Role) {
			return fmt.Errorf("effect on %q restricted to unknown role %q", effect.EntityID, effect.Role)
		}
	}

	for _, path := range d.GoalPaths {
		if strings.TrimSpace(path.ID) == "" {
			return fmt.Errorf("goal path with empty id")
		}
		if len(path.Sequence) < 2 {
			return fmt.Errorf("goal path %q needs at least two locations", path.ID)
		}
		for _, locID := range path.Sequence {
			if _, ok := known[locID]; !ok {
				return fmt.Errorf("goal path %q visits unknown location %q", path.ID, locID)
			}
		}
	}

	if len(d.IntentionRules) == 0 {
		return fmt.Errorf("scenario requires an intention rule table")
	}
	for i, rule := range d.IntentionRules {
		if !domain.KnownRole(rule.Role) {
			return fmt.Errorf("intention rule %d names unknown role %q", i, rule.Role)
		}
		if !domain.KnownActionType(rule.Action) {
			return fmt.Errorf("intention rule %d names unknown action %q", i, rule.Action)
		}
		if len(rule.Targets) == 0 {
			return fmt.Errorf("intention rule %d has no target kinds", i)
		}
		for _, kind := range rule.Targets {
			if !domain.KnownTargetKind(kind) {
				return fmt.Errorf("intention rule %d names unknown target kind %q", i, kind)
			}
		}
		if len(rule.Tags) == 0 {
			return fmt.Errorf("intention rule %d offers no tags", i)
		}
	}

	for _, sub := range d.SubRoles {
		if strings.TrimSpace(sub.ID) == "" {
			return fmt.Errorf("sub-role with empty id")
		}
		if !domain.KnownActionType(sub.TriggerAction) {
			return fmt.Errorf("sub-role %q triggers on unknown action %q", sub.ID, sub.TriggerAction)
		}
	}

	if len(d.SecretIdentities) < MaxPlayers {
		return fmt.Errorf("scenario needs at least %d secret identities, got %d", MaxPlayers, len(d.SecretIdentities))
	}

	return nil
}

// validatePools checks the role pools cover every supported player count and
// that each pool's counts add up.
func (d *Definition) validatePools() error {
	covered := map[int]bool{}
	for _, pool := range d.RolePools {
		if pool.Players < MinPlayers || pool.Players > MaxPlayers {
			return fmt.Errorf("role pool for unsupported player count %d", pool.Players)
		}
		if covered[pool.Players] {
			return fmt.Errorf("duplicate role pool for %d players", pool.Players)
		}
		covered[pool.Players] = true

		if pool.Collaborators < 0 || pool.Saboteurs < 1 || pool.Rogues < 0 {
			return fmt.Errorf("role pool for %d players has invalid counts", pool.Players)
		}
		if pool.Collaborators+pool.Saboteurs+pool.Rogues != pool.Players {
			return fmt.Errorf("role pool for %d players does not sum to player count", pool.Players)
		}
		if pool.Rogues > len(d.GoalPaths) {
			return fmt.Errorf("role pool for %d players needs %d goal paths, scenario has %d",
				pool.Players, pool.Rogues, len(d.GoalPaths))
		}
	}
	for players := MinPlayers; players <= MaxPlayers; players++ {
		if !covered[players] {
			return fmt.Errorf("missing role pool for %d players", players)
		}
	}
	return nil
}

func (d *Definition) validateTrigger(name string, trigger Trigger, known map[string]Location) error {
	if _, ok := known[trigger.LocationID]; !ok {
		return fmt.Errorf("%s trigger at unknown location %q", name, trigger.LocationID)
	}
	if !domain.KnownActionType(trigger.Action) {
		return fmt.Errorf("%s trigger on unknown action %q", name, trigger.Action)
	}
	if !domain.KnownRole(trigger.WinningRole) {
		return fmt.Errorf("%s trigger awards unknown role %q", name, trigger.WinningRole)
	}
	return nil
}

func containsID(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
