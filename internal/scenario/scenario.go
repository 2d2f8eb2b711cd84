// Package scenario loads and validates immutable scenario definitions.
//
// A definition is pure data: board locations, trigger conditions, timed
// complications, object and NPC effects, role pools, and the intention-tag
// table. Effects are a closed set of tagged kinds with typed parameters,
// evaluated by the engine's dispatch table; scenarios never carry code.
package scenario

import (
	"github.com/oligibbons/one-mind-many-sub000/internal/game/domain"
)

// Location is one board space. GridSize is the location's move-token value:
// how many steps a move consumes before crossing into an adjacent location.
type Location struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	GridSize int      `json:"grid_size"`
	Adjacent []string `json:"adjacent"`
}

// RolePool fixes the role distribution for one player count. Counts must sum
// to Players; a pool that cannot cover its count is a configuration error.
type RolePool struct {
	Players       int `json:"players"`
	Collaborators int `json:"collaborators"`
	Saboteurs     int `json:"saboteurs"`
	Rogues        int `json:"rogues"`
}

// SubRole is a bonus scoring modifier independent of role category: resolving
// TriggerAction awards the points once per session.
type SubRole struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	TriggerAction domain.ActionType `json:"trigger_action"`
	VictoryPoints int               `json:"victory_points"`
}

// Trigger is a win condition: the named action resolved while the shared
// token sits at the location ends the session in favor of the winning role.
type Trigger struct {
	LocationID    string            `json:"location_id"`
	Action        domain.ActionType `json:"action"`
	WinningRole   domain.Role       `json:"winning_role"`
	VictoryPoints int               `json:"victory_points"`
}

// ModifierKind names a complication's board/turn modifier.
type ModifierKind string

const (
	// ModifierMovementPenalty adds Amount extra steps to every move.
	ModifierMovementPenalty ModifierKind = "movement-penalty"
	// ModifierActionBlocked rejects the named action while active.
	ModifierActionBlocked ModifierKind = "action-blocked"
)

// Modifier is a complication's effect while it remains active.
type Modifier struct {
	Kind   ModifierKind      `json:"kind"`
	Amount int               `json:"amount,omitempty"`
	Action domain.ActionType `json:"action,omitempty"`
}

// ComplicationTrigger is the predicate that activates a complication: the
// named action resolving at the location.
type ComplicationTrigger struct {
	LocationID string            `json:"location_id"`
	Action     domain.ActionType `json:"action"`
}

// Complication is a timed scenario effect. Duration counts rounds; it
// decrements at each round boundary and the complication is removed at zero.
type Complication struct {
	ID             string              `json:"id"`
	Name           string              `json:"name"`
	Trigger        ComplicationTrigger `json:"trigger"`
	DurationRounds int                 `json:"duration_rounds"`
	Modifier       Modifier            `json:"modifier"`
}

// EntityKind distinguishes interactable board entities.
type EntityKind string

const (
	EntityObject EntityKind = "object"
	EntityNPC    EntityKind = "npc"
)

// Entity is an object or NPC placed at a location.
type Entity struct {
	ID         string     `json:"id"`
	Kind       EntityKind `json:"kind"`
	Name       string     `json:"name"`
	LocationID string     `json:"location_id"`
}

// EffectKind names one of the closed set of entity effect kinds.
type EffectKind string

const (
	// EffectAwardVP grants victory points to the acting participant.
	EffectAwardVP EffectKind = "award-vp"
	// EffectGrantCard adds a command card to the acting participant's hand.
	EffectGrantCard EffectKind = "grant-card"
	// EffectRemoveCard removes a command card from the acting hand.
	EffectRemoveCard EffectKind = "remove-card"
	// EffectTeleport moves the shared token to another location.
	EffectTeleport EffectKind = "teleport"
)

// EntityEffect fires when the entity is interacted with. Role, when set,
// restricts the effect to actors of that role.
type EntityEffect struct {
	EntityID      string      `json:"entity_id"`
	Kind          EffectKind  `json:"kind"`
	Role          domain.Role `json:"role,omitempty"`
	VictoryPoints int         `json:"victory_points,omitempty"`
	CardID        string      `json:"card_id,omitempty"`
	LocationID    string      `json:"location_id,omitempty"`
}

// GoalPath is an opportunist personal goal: visit the sequence of locations
// in order.
type GoalPath struct {
	ID       string   `json:"id"`
	Sequence []string `json:"sequence"`
}

// IntentionRule declares, for one (role, action) pair, the target kinds it
// may be aimed at and the intention tags offered once type and target are
// accepted. The rule table is also the source of action- and target-legality
// per role.
type IntentionRule struct {
	Role    domain.Role         `json:"role"`
	Action  domain.ActionType   `json:"action"`
	Targets []domain.TargetKind `json:"targets"`
	Tags    []string            `json:"tags"`
}

// Definition is one complete, immutable scenario.
type Definition struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	StartLocation    string          `json:"start_location"`
	MaxRounds        int             `json:"max_rounds"`
	Resources        map[string]int  `json:"resources,omitempty"`
	Locations        []Location      `json:"locations"`
	RolePools        []RolePool      `json:"role_pools"`
	SubRoles         []SubRole       `json:"sub_roles"`
	SecretIdentities []string        `json:"secret_identities"`
	StartingHand     []string        `json:"starting_hand"`
	Deck             []string        `json:"deck,omitempty"`
	Prophecy         Trigger         `json:"prophecy"`
	Doomsday         Trigger         `json:"doomsday"`
	FailLocation     string          `json:"fail_location,omitempty"`
	Complications    []Complication  `json:"complications,omitempty"`
	Entities         []Entity        `json:"entities,omitempty"`
	Effects          []EntityEffect  `json:"effects,omitempty"`
	GoalPaths        []GoalPath      `json:"goal_paths,omitempty"`
	IntentionRules   []IntentionRule `json:"intention_rules"`
}

// Location returns the location with the given id.
func (d *Definition) Location(id string) (Location, bool) {
	for _, loc := range d.Locations {
		if loc.ID == id {
			return loc, true
		}
	}
	return Location{}, false
}

// Adjacent reports whether to is adjacent to from.
func (d *Definition) Adjacent(from, to string) bool {
	loc, ok := d.Location(from)
	if !ok {
		return false
	}
	for _, id := range loc.Adjacent {
		if id == to {
			return true
		}
	}
	return false
}

// PoolFor returns the role pool for the given player count.
func (d *Definition) PoolFor(players int) (RolePool, bool) {
	for _, pool := range d.RolePools {
		if pool.Players == players {
			return pool, true
		}
	}
	return RolePool{}, false
}

// Entity returns the entity with the given id.
func (d *Definition) Entity(id string) (Entity, bool) {
	for _, entity := range d.Entities {
		if entity.ID == id {
			return entity, true
		}
	}
	return Entity{}, false
}

// EffectsFor returns the effects keyed to the given entity.
func (d *Definition) EffectsFor(entityID string) []EntityEffect {
	var matched []EntityEffect
	for _, effect := range d.Effects {
		if effect.EntityID == entityID {
			matched = append(matched, effect)
		}
	}
	return matched
}

// EntitiesAt returns the entities placed at the given location.
func (d *Definition) EntitiesAt(locationID string) []Entity {
	var matched []Entity
	for _, entity := range d.Entities {
		if entity.LocationID == locationID {
			matched = append(matched, entity)
		}
	}
	return matched
}

// SubRole returns the sub-role with the given id.
func (d *Definition) SubRole(id string) (SubRole, bool) {
	for _, sub := range d.SubRoles {
		if sub.ID == id {
			return sub, true
		}
	}
	return SubRole{}, false
}

// GoalPath returns the goal path with the given id.
func (d *Definition) GoalPath(id string) (GoalPath, bool) {
	for _, path := range d.GoalPaths {
		if path.ID == id {
			return path, true
		}
	}
	return GoalPath{}, false
}

// AllowsAction reports whether the intention-rule table grants the role the
// given action type at all.
func (d *Definition) AllowsAction(role domain.Role, action domain.ActionType) bool {
	for _, rule := range d.IntentionRules {
		if rule.Role == role && rule.Action == action {
			return true
		}
	}
	return false
}

// AllowsTarget reports whether the (role, action) pair may target the given
// kind.
func (d *Definition) AllowsTarget(role domain.Role, action domain.ActionType, kind domain.TargetKind) bool {
	for _, rule := range d.IntentionRules {
		if rule.Role != role || rule.Action != action {
			continue
		}
		for _, allowed := range rule.Targets {
			if allowed == kind {
				return true
			}
		}
	}
	return false
}

// TagsFor returns the intention tags offered for an accepted (role, action,
// target kind) combination. Order is the rule-table order.
func (d *Definition) TagsFor(role domain.Role, action domain.ActionType, kind domain.TargetKind) []string {
	var tags []string
	for _, rule := range d.IntentionRules {
		if rule.Role != role || rule.Action != action {
			continue
		}
		for _, allowed := range rule.Targets {
			if allowed == kind {
				tags = append(tags, rule.Tags...)
				break
			}
		}
	}
	return tags
}

// RoleActions returns the distinct action types the rule table grants a role,
// in table order.
func (d *Definition) RoleActions(role domain.Role) []domain.ActionType {
	var actions []domain.ActionType
	seen := map[domain.ActionType]struct{}{}
	for _, rule := range d.IntentionRules {
		if rule.Role != role {
			continue
		}
		if _, dup := seen[rule.Action]; dup {
			continue
		}
		seen[rule.Action] = struct{}{}
		actions = append(actions, rule.Action)
	}
	return actions
}
