package engine

import (
	apperrors "github.com/oligibbons/one-mind-many-sub000/internal/platform/errors"

	"github.com/oligibbons/one-mind-many-sub000/internal/game/domain"
	"github.com/oligibbons/one-mind-many-sub000/internal/scenario"
)

// moveStepBudget is how many grid steps a single move action may consume,
// before complication penalties.
const moveStepBudget = 3

// checkLegality applies the submission legality rules in order, first failure
// wins: role action set, target kind and existence, active blocks, sabotage
// cooldown, movement geometry. Callers hold the lock.
func (e *Engine) checkLegality(participant *domain.Participant, action domain.Action) error {
	if !e.def.AllowsAction(participant.Role, action.Type) {
		return apperrors.WithMetadata(apperrors.CodeActionTypeNotAllowed,
			"action type is not in the role's allowed set",
			map[string]string{"action": string(action.Type)})
	}
	if !e.def.AllowsTarget(participant.Role, action.Type, action.Target.Kind) {
		return apperrors.WithMetadata(apperrors.CodeActionTargetInvalid,
			"target kind is not valid for this action",
			map[string]string{"action": string(action.Type), "target_kind": string(action.Target.Kind)})
	}
	if err := e.checkTargetExists(action.Target); err != nil {
		return err
	}
	if e.actionBlocked(action.Type) {
		return apperrors.WithMetadata(apperrors.CodeActionTypeNotAllowed,
			"an active complication blocks this action",
			map[string]string{"action": string(action.Type)})
	}
	if action.Type == domain.ActionSabotage &&
		participant.LastSabotageRound > 0 &&
		participant.LastSabotageRound >= e.session.Round-1 {
		return apperrors.New(apperrors.CodeActionOnCooldown,
			"sabotage may resolve at most once per two rounds")
	}
	if action.Type == domain.ActionMove {
		if err := e.checkMove(action.Target); err != nil {
			return err
		}
	}
	return nil
}

// checkTargetExists verifies the target refers to a real session entity.
// Board reachability is checked separately at move validation and at
// resolution time.
func (e *Engine) checkTargetExists(target domain.Target) error {
	switch target.Kind {
	case domain.TargetNone:
		return nil
	case domain.TargetLocation:
		if _, ok := e.def.Location(target.ID); !ok {
			return apperrors.WithMetadata(apperrors.CodeActionTargetInvalid,
				"unknown location", map[string]string{"location_id": target.ID})
		}
	case domain.TargetObject, domain.TargetNPC:
		entity, ok := e.def.Entity(target.ID)
		if !ok {
			return apperrors.WithMetadata(apperrors.CodeActionTargetInvalid,
				"unknown entity", map[string]string{"entity_id": target.ID})
		}
		wantKind := scenario.EntityObject
		if target.Kind == domain.TargetNPC {
			wantKind = scenario.EntityNPC
		}
		if entity.Kind != wantKind {
			return apperrors.WithMetadata(apperrors.CodeActionTargetInvalid,
				"entity kind does not match target kind",
				map[string]string{"entity_id": target.ID})
		}
	case domain.TargetParticipant:
		other, ok := e.participants[target.ID]
		if !ok {
			return apperrors.WithMetadata(apperrors.CodeActionTargetInvalid,
				"unknown participant target", map[string]string{"participant_id": target.ID})
		}
		if !other.Alive {
			return apperrors.New(apperrors.CodeActionTargetInvalid,
				"target participant is eliminated")
		}
	}
	return nil
}

// checkMove validates movement geometry from the current board position.
//
// Inside a location the token walks the sub-grid with 8-neighbor steps; a
// multi-step move must be at least half orthogonal, so each surplus diagonal
// step is paid as two orthogonal ones. Crossing into an adjacent location
// consumes the remaining cells in the current row and arrives at cell 0.
func (e *Engine) checkMove(target domain.Target) error {
	current, ok := e.def.Location(e.session.Position.LocationID)
	if !ok {
		return apperrors.WithMetadata(apperrors.CodeActionMoveIllegal,
			"current board position is off the map",
			map[string]string{"location_id": e.session.Position.LocationID})
	}
	destination, ok := e.def.Location(target.ID)
	if !ok {
		return apperrors.WithMetadata(apperrors.CodeActionTargetInvalid,
			"unknown location", map[string]string{"location_id": target.ID})
	}

	budget := moveStepBudget - e.movementPenalty()

	if destination.ID == current.ID {
		cells := current.GridSize * current.GridSize
		if target.Cell < 0 || target.Cell >= cells {
			return apperrors.New(apperrors.CodeActionMoveIllegal, "target cell is outside the location grid")
		}
		if target.Cell == e.session.Position.Cell {
			return apperrors.New(apperrors.CodeActionMoveIllegal, "move must change the board position")
		}
		steps := gridSteps(e.session.Position.Cell, target.Cell, current.GridSize)
		if steps > budget {
			return apperrors.New(apperrors.CodeActionMoveIllegal, "move exceeds the step budget")
		}
		return nil
	}

	if !e.def.Adjacent(current.ID, destination.ID) {
		return apperrors.WithMetadata(apperrors.CodeActionMoveIllegal,
			"destination is not adjacent to the current location",
			map[string]string{"location_id": destination.ID})
	}
	if target.Cell != 0 {
		return apperrors.New(apperrors.CodeActionMoveIllegal, "crossing a boundary arrives at the entry cell")
	}
	remaining := current.GridSize - e.session.Position.Cell%current.GridSize
	if remaining > budget {
		return apperrors.New(apperrors.CodeActionMoveIllegal, "not enough steps to leave the current location")
	}
	return nil
}

// gridSteps counts the steps of the cheapest legal walk between two cells of
// a g-wide grid: diagonal steps are capped at the orthogonal count, so each
// surplus diagonal is traded for two orthogonal steps. A single diagonal step
// is not a multi-step move and stays one step.
func gridSteps(from, to, gridSize int) int {
	dx := abs(to%gridSize - from%gridSize)
	dy := abs(to/gridSize - from/gridSize)
	diagonal := min(dx, dy)
	orthogonal := max(dx, dy) - diagonal
	if diagonal+orthogonal >= 2 {
		for diagonal > orthogonal {
			diagonal--
			orthogonal += 2
		}
	}
	return diagonal + orthogonal
}

// movementPenalty sums the extra step cost of active movement complications.
// Callers hold the lock.
func (e *Engine) movementPenalty() int {
	penalty := 0
	for _, active := range e.session.Complications {
		for _, complication := range e.def.Complications {
			if complication.ID == active.ComplicationID &&
				complication.Modifier.Kind == scenario.ModifierMovementPenalty {
				penalty += complication.Modifier.Amount
			}
		}
	}
	return penalty
}

// actionBlocked reports whether an active complication forbids the action
// type. Callers hold the lock.
func (e *Engine) actionBlocked(actionType domain.ActionType) bool {
	for _, active := range e.session.Complications {
		for _, complication := range e.def.Complications {
			if complication.ID == active.ComplicationID &&
				complication.Modifier.Kind == scenario.ModifierActionBlocked &&
				complication.Modifier.Action == actionType {
				return true
			}
		}
	}
	return false
}

// revalidate re-checks a pending action against the board as it stands at
// its resolution slot. Earlier actions this round may have moved the token
// or changed the participant set; an action that fails here is dropped, never
// executed against a stale target.
func (e *Engine) revalidate(participant *domain.Participant, action *domain.Action) bool {
	if e.actionBlocked(action.Type) {
		return false
	}
	switch action.Target.Kind {
	case domain.TargetObject, domain.TargetNPC:
		entity, ok := e.def.Entity(action.Target.ID)
		if !ok || entity.LocationID != e.session.Position.LocationID {
			return false
		}
	case domain.TargetParticipant:
		other, ok := e.participants[action.Target.ID]
		if !ok || !other.Alive {
			return false
		}
	}
	if action.Type == domain.ActionMove {
		if err := e.checkMove(action.Target); err != nil {
			return false
		}
	}
	if action.Type == domain.ActionSabotage &&
		participant.LastSabotageRound > 0 &&
		participant.LastSabotageRound >= e.session.Round-1 {
		return false
	}
	return true
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
