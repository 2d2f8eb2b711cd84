package engine

import (
	"log"

	"github.com/oligibbons/one-mind-many-sub000/internal/game/domain"
)

// evaluateOutcome runs the win/fail checks after one resolved action, in
// fixed priority order: doomsday, prophecy, individual goal completion, then
// the global fail location. The first session-ending condition stops the
// round; an individual goal win is recorded and play continues.
// Callers hold the lock.
func (e *Engine) evaluateOutcome(participant *domain.Participant, action *domain.Action) {
	if e.triggerFired(e.def.Doomsday.LocationID, e.def.Doomsday.Action, action) {
		e.endSession(e.roleWinners(e.def.Doomsday.WinningRole, e.def.Doomsday.VictoryPoints, "doomsday"), "doomsday")
		return
	}
	if e.triggerFired(e.def.Prophecy.LocationID, e.def.Prophecy.Action, action) {
		e.endSession(e.roleWinners(e.def.Prophecy.WinningRole, e.def.Prophecy.VictoryPoints, "prophecy"), "prophecy")
		return
	}

	if participant.Role == domain.RoleRogue && !e.alreadyWon(participant.ID) {
		if path, ok := e.def.GoalPath(participant.GoalPathID); ok &&
			e.session.GoalProgress[participant.ID] >= len(path.Sequence) {
			e.session.Winners = append(e.session.Winners, domain.Winner{
				ParticipantID: participant.ID,
				Role:          participant.Role,
				VictoryPoints: participant.VictoryPoints,
				Reason:        "goal-complete",
			})
			e.appendSystem("winner.declared", map[string]any{"reason": "goal-complete"})
		}
	}

	if e.def.FailLocation != "" && e.session.Position.LocationID == e.def.FailLocation {
		e.endSession(nil, "fail-location")
	}
}

// triggerFired reports whether a win trigger matches the just-resolved
// action at the token's current position.
func (e *Engine) triggerFired(locationID string, actionType domain.ActionType, action *domain.Action) bool {
	return e.session.Position.LocationID == locationID && action.Type == actionType
}

// roleWinners builds the winner list for a role-aligned trigger, crediting
// the award to every living participant of the role. Individual wins already
// on the board are kept ahead of them.
func (e *Engine) roleWinners(role domain.Role, victoryPoints int, reason string) []domain.Winner {
	var winners []domain.Winner
	for _, participantID := range e.order {
		participant := e.participants[participantID]
		if participant.Role != role || !participant.Alive {
			continue
		}
		participant.VictoryPoints += victoryPoints
		winners = append(winners, domain.Winner{
			ParticipantID: participant.ID,
			Role:          participant.Role,
			VictoryPoints: participant.VictoryPoints,
			Reason:        reason,
		})
	}
	return winners
}

// alreadyWon reports whether the participant is already on the winner list.
func (e *Engine) alreadyWon(participantID string) bool {
	for _, winner := range e.session.Winners {
		if winner.ParticipantID == participantID {
			return true
		}
	}
	return false
}

// endSession moves the session to its terminal state, appending the given
// winners after any individual wins recorded earlier in the round.
// Callers hold the lock.
func (e *Engine) endSession(winners []domain.Winner, reason string) {
	if e.session.Status == domain.StatusEnded {
		return
	}
	e.session.Status = domain.StatusEnded
	e.session.Winners = append(e.session.Winners, winners...)
	endedAt := e.clock().UTC()
	e.session.EndedAt = &endedAt
	e.session.UpdatedAt = endedAt
	e.session.Paused = false
	e.deferredAdvance = nil

	if e.cancelDeadline != nil {
		e.cancelDeadline()
		e.cancelDeadline = nil
	}
	e.phaseSeq++

	log.Printf("session ended session_id=%s round=%d reason=%s winners=%d",
		e.session.ID, e.session.Round, reason, len(e.session.Winners))
	e.appendSystem("session.ended", map[string]any{
		"reason":  reason,
		"winners": len(e.session.Winners),
	})
	if e.notifier != nil {
		e.notifier.SessionEnded(e.session.ID, append([]domain.Winner(nil), e.session.Winners...))
	}
}
