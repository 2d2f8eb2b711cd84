package engine

import (
	"github.com/oligibbons/one-mind-many-sub000/internal/game/domain"
	"github.com/oligibbons/one-mind-many-sub000/internal/scenario"
)

// autoSubmit fills a participant's pending slot with a uniformly random legal
// action. The same mechanism serves submission timeouts and ai-controlled
// participants. Callers hold the lock.
func (e *Engine) autoSubmit(participant *domain.Participant) {
	candidates := e.legalActions(participant)
	var chosen domain.Action
	if len(candidates) > 0 {
		chosen = candidates[e.rng.Intn(len(candidates))]
	} else {
		// Searching where you stand is the floor every role can reach.
		chosen = domain.Action{
			ParticipantID: participant.ID,
			Type:          domain.ActionSearch,
			Target:        domain.Target{Kind: domain.TargetNone},
			Status:        domain.ActionStatusPending,
		}
	}
	participant.PendingAction = &chosen
}

// legalActions enumerates every action the participant could legally submit
// right now: each allowed action type crossed with its reachable targets,
// filtered through the same legality checks a manual submission faces.
// Callers hold the lock.
func (e *Engine) legalActions(participant *domain.Participant) []domain.Action {
	var candidates []domain.Action
	for _, actionType := range e.def.RoleActions(participant.Role) {
		for _, target := range e.candidateTargets(participant, actionType) {
			action, err := domain.NewAction(participant.ID, actionType, target)
			if err != nil {
				continue
			}
			if err := e.checkLegality(participant, action); err != nil {
				continue
			}
			candidates = append(candidates, action)
		}
	}
	return candidates
}

// candidateTargets lists the plausible targets for one action type from the
// current board position. Illegal entries are filtered by checkLegality.
func (e *Engine) candidateTargets(participant *domain.Participant, actionType domain.ActionType) []domain.Target {
	switch actionType {
	case domain.ActionMove:
		return e.moveTargets()
	case domain.ActionInteract:
		var targets []domain.Target
		for _, entity := range e.def.EntitiesAt(e.session.Position.LocationID) {
			targets = append(targets, entityTarget(entity))
		}
		return targets
	case domain.ActionSabotage:
		var targets []domain.Target
		for _, entity := range e.def.EntitiesAt(e.session.Position.LocationID) {
			if entity.Kind == scenario.EntityObject {
				targets = append(targets, entityTarget(entity))
			}
		}
		for _, otherID := range e.order {
			other := e.participants[otherID]
			if other.ID != participant.ID && other.Alive {
				targets = append(targets, domain.Target{Kind: domain.TargetParticipant, ID: other.ID})
			}
		}
		return targets
	default:
		return []domain.Target{{Kind: domain.TargetNone}}
	}
}

// moveTargets enumerates every cell of the current location plus the entry
// cells of adjacent locations.
func (e *Engine) moveTargets() []domain.Target {
	current, ok := e.def.Location(e.session.Position.LocationID)
	if !ok {
		return nil
	}
	var targets []domain.Target
	for cell := 0; cell < current.GridSize*current.GridSize; cell++ {
		if cell == e.session.Position.Cell {
			continue
		}
		targets = append(targets, domain.Target{Kind: domain.TargetLocation, ID: current.ID, Cell: cell})
	}
	for _, adjacentID := range current.Adjacent {
		targets = append(targets, domain.Target{Kind: domain.TargetLocation, ID: adjacentID})
	}
	return targets
}

func entityTarget(entity scenario.Entity) domain.Target {
	kind := domain.TargetObject
	if entity.Kind == scenario.EntityNPC {
		kind = domain.TargetNPC
	}
	return domain.Target{Kind: kind, ID: entity.ID}
}
