package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"

	"github.com/oligibbons/one-mind-many-sub000/internal/game/domain"
	"github.com/oligibbons/one-mind-many-sub000/internal/game/event"
	"github.com/oligibbons/one-mind-many-sub000/internal/game/narrator"
	"github.com/oligibbons/one-mind-many-sub000/internal/scenario"
)

// effectHandler applies one entity effect and returns narration notes.
type effectHandler func(e *Engine, participant *domain.Participant, effect scenario.EntityEffect) []string

// effectHandlers is the closed dispatch table for scenario entity effects.
// Scenarios are data; every effect kind they may name is applied here.
var effectHandlers = map[scenario.EffectKind]effectHandler{
	scenario.EffectAwardVP: func(e *Engine, participant *domain.Participant, effect scenario.EntityEffect) []string {
		participant.VictoryPoints += effect.VictoryPoints
		return nil
	},
	scenario.EffectGrantCard: func(e *Engine, participant *domain.Participant, effect scenario.EntityEffect) []string {
		participant.Hand = append(participant.Hand, effect.CardID)
		return []string{"Something changes hands."}
	},
	scenario.EffectRemoveCard: func(e *Engine, participant *domain.Participant, effect scenario.EntityEffect) []string {
		if participant.RemoveCard(effect.CardID) {
			return []string{"Something is given up."}
		}
		return nil
	},
	scenario.EffectTeleport: func(e *Engine, participant *domain.Participant, effect scenario.EntityEffect) []string {
		if _, ok := e.def.Location(effect.LocationID); !ok {
			return nil
		}
		e.session.Position = domain.BoardPosition{LocationID: effect.LocationID}
		location, _ := e.def.Location(effect.LocationID)
		return []string{fmt.Sprintf("The world lurches, and suddenly the figure stands in %s.", location.Name)}
	},
}

// resolveRound processes every pending action strictly in track order, one at
// a time. A session-ending condition discards the rest of the queue.
// Callers hold the lock.
func (e *Engine) resolveRound() {
	for _, participantID := range e.session.Track {
		if e.session.Status == domain.StatusEnded {
			break
		}
		participant, ok := e.participants[participantID]
		if !ok || !participant.Alive || participant.PendingAction == nil {
			continue
		}
		e.resolveAction(participant, participant.PendingAction)
		participant.PendingAction = nil
	}
}

// resolveAction runs one full resolution step: re-validate, apply board and
// resource effects, apply scenario effects, narrate, then evaluate win/fail.
// Callers hold the lock.
func (e *Engine) resolveAction(participant *domain.Participant, action *domain.Action) {
	location, _ := e.def.Location(e.session.Position.LocationID)

	if !e.revalidate(participant, action) {
		action.Status = domain.ActionStatusInvalidated
		e.appendActionEvent(action, location.Name)
		e.narrateOutcome(narrator.Outcome{
			Round:        e.session.Round,
			Action:       action.Type,
			LocationName: location.Name,
			Dropped:      true,
		})
		return
	}

	var notes []string
	switch action.Type {
	case domain.ActionMove:
		notes = e.applyMove(action)
	case domain.ActionSearch:
		notes = e.applySearch(participant)
	case domain.ActionInteract:
		notes = e.applyInteract(participant, action)
	case domain.ActionSabotage:
		notes = e.applySabotage(participant, action)
	case domain.ActionScheme:
		notes = e.applyScheme(participant)
	}
	action.Status = domain.ActionStatusResolved

	if sub, ok := e.def.SubRole(participant.SubRoleID); ok &&
		!participant.SubRoleAwarded && sub.TriggerAction == action.Type {
		participant.SubRoleAwarded = true
		participant.VictoryPoints += sub.VictoryPoints
	}

	e.activateComplications(action.Type)

	// The token may have moved; narrate from where the action landed.
	landed, _ := e.def.Location(e.session.Position.LocationID)
	e.appendActionEvent(action, landed.Name)
	e.narrateOutcome(narrator.Outcome{
		Round:        e.session.Round,
		Action:       action.Type,
		LocationName: landed.Name,
		TargetName:   e.targetName(action.Target),
		EffectNotes:  notes,
	})

	e.evaluateOutcome(participant, action)
}

// applyMove advances the shared token. Geometry was validated already; a
// cross-location move lands on the destination's entry cell.
func (e *Engine) applyMove(action *domain.Action) []string {
	if action.Target.ID == e.session.Position.LocationID {
		e.session.Position.Cell = action.Target.Cell
		return nil
	}
	e.session.Position = domain.BoardPosition{LocationID: action.Target.ID}
	return nil
}

// applySearch draws a command card from the scenario deck into the searcher's
// hand.
func (e *Engine) applySearch(participant *domain.Participant) []string {
	if len(e.def.Deck) == 0 {
		return []string{"Nothing of use turns up."}
	}
	card := e.def.Deck[e.rng.Intn(len(e.def.Deck))]
	participant.Hand = append(participant.Hand, card)
	return []string{"Something useful comes to light."}
}

// applyInteract runs every matching entity effect through the dispatch
// table. Role-restricted effects only fire for actors of that role.
func (e *Engine) applyInteract(participant *domain.Participant, action *domain.Action) []string {
	var notes []string
	for _, effect := range e.def.EffectsFor(action.Target.ID) {
		if effect.Role != "" && effect.Role != participant.Role {
			continue
		}
		handler, ok := effectHandlers[effect.Kind]
		if !ok {
			log.Printf("unhandled effect kind session_id=%s effect_kind=%s", e.session.ID, effect.Kind)
			continue
		}
		notes = append(notes, handler(e, participant, effect)...)
	}
	return notes
}

// applySabotage records the cooldown and applies the disruption: an object
// target drains a session resource, a participant target discards a random
// card from their hand.
func (e *Engine) applySabotage(participant *domain.Participant, action *domain.Action) []string {
	participant.LastSabotageRound = e.session.Round

	switch action.Target.Kind {
	case domain.TargetObject:
		keys := make([]string, 0, len(e.session.Resources))
		for key := range e.session.Resources {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			if e.session.Resources[key] > 0 {
				e.session.Resources[key]--
				return []string{"Supplies are thinner than they should be."}
			}
		}
	case domain.TargetParticipant:
		other := e.participants[action.Target.ID]
		if len(other.Hand) > 0 {
			i := e.rng.Intn(len(other.Hand))
			other.Hand = append(other.Hand[:i], other.Hand[i+1:]...)
			return []string{"Something has gone missing."}
		}
	}
	return nil
}

// applyScheme advances the actor's goal path when the token stands on its
// next waypoint. Completion is picked up by the win evaluator.
func (e *Engine) applyScheme(participant *domain.Participant) []string {
	path, ok := e.def.GoalPath(participant.GoalPathID)
	if !ok {
		return nil
	}
	progress := e.session.GoalProgress[participant.ID]
	if progress >= len(path.Sequence) {
		return nil
	}
	if e.session.Position.LocationID == path.Sequence[progress] {
		e.session.GoalProgress[participant.ID] = progress + 1
	}
	return nil
}

// activateComplications starts every complication whose trigger matches the
// action type at the token's current location. An already-active complication
// is not stacked.
func (e *Engine) activateComplications(actionType domain.ActionType) {
	for _, complication := range e.def.Complications {
		if complication.Trigger.Action != actionType ||
			complication.Trigger.LocationID != e.session.Position.LocationID {
			continue
		}
		active := false
		for _, existing := range e.session.Complications {
			if existing.ComplicationID == complication.ID {
				active = true
				break
			}
		}
		if active {
			continue
		}
		e.session.Complications = append(e.session.Complications, domain.ActiveComplication{
			ComplicationID:  complication.ID,
			RemainingRounds: complication.DurationRounds,
		})
		e.appendSystem("complication.activated", map[string]any{
			"complication_id": complication.ID,
			"name":            complication.Name,
		})
	}
}

// appendActionEvent records the structured trace of a resolution step. The
// payload deliberately omits the acting participant and the intention tag.
func (e *Engine) appendActionEvent(action *domain.Action, locationName string) {
	payload, err := json.Marshal(map[string]any{
		"action":      action.Type,
		"target_kind": action.Target.Kind,
		"location":    locationName,
		"status":      action.Status,
	})
	if err != nil {
		log.Printf("encode action event session_id=%s err=%v", e.session.ID, err)
		return
	}
	evt := e.log.Append(event.Event{
		SessionID:   e.session.ID,
		Round:       e.session.Round,
		Kind:        event.KindAction,
		Type:        "action." + string(action.Status),
		Timestamp:   e.clock().UTC(),
		PayloadJSON: payload,
	})
	if e.notifier != nil {
		e.notifier.EventAppended(e.session.ID, evt)
	}
}

// narrateOutcome turns a resolution outcome into prose and broadcasts it.
// Narration never blocks resolution: the fallback templating always answers.
func (e *Engine) narrateOutcome(outcome narrator.Outcome) {
	prose, err := e.narrate.Narrate(context.Background(), outcome)
	if err != nil {
		log.Printf("narrate outcome session_id=%s round=%d err=%v", e.session.ID, outcome.Round, err)
		return
	}
	payload, err := json.Marshal(map[string]any{"text": prose})
	if err != nil {
		log.Printf("encode narrative event session_id=%s err=%v", e.session.ID, err)
		return
	}
	evt := e.log.Append(event.Event{
		SessionID:   e.session.ID,
		Round:       e.session.Round,
		Kind:        event.KindNarrative,
		Type:        "narrative.outcome",
		Timestamp:   e.clock().UTC(),
		PayloadJSON: payload,
	})
	if e.notifier != nil {
		e.notifier.EventAppended(e.session.ID, evt)
		e.notifier.ActionResolved(e.session.ID, evt)
	}
}

// targetName resolves a human-readable name for narration.
func (e *Engine) targetName(target domain.Target) string {
	switch target.Kind {
	case domain.TargetLocation:
		if location, ok := e.def.Location(target.ID); ok {
			return location.Name
		}
	case domain.TargetObject, domain.TargetNPC:
		if entity, ok := e.def.Entity(target.ID); ok {
			return entity.Name
		}
	case domain.TargetParticipant:
		// Naming the victim would leak who is being steered against whom.
		return "someone in the dark"
	}
	return ""
}
