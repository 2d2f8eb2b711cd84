package domain

import (
	"errors"
	"strings"
)

// ActionType names a programmable action.
type ActionType string

const (
	// ActionMove advances the shared token across the board.
	ActionMove ActionType = "move"
	// ActionSearch examines the current location and may draw a command card.
	ActionSearch ActionType = "search"
	// ActionInteract engages an object or NPC at the current location.
	ActionInteract ActionType = "interact"
	// ActionSabotage is the saboteur-only disruption action.
	ActionSabotage ActionType = "sabotage"
	// ActionScheme is the rogue-only action advancing a private goal.
	ActionScheme ActionType = "scheme"
)

// KnownActionType reports whether value names a defined action type.
func KnownActionType(value ActionType) bool {
	switch value {
	case ActionMove, ActionSearch, ActionInteract, ActionSabotage, ActionScheme:
		return true
	}
	return false
}

// TargetKind names the kind of entity an action is aimed at.
type TargetKind string

const (
	TargetNone        TargetKind = "none"
	TargetLocation    TargetKind = "location"
	TargetObject      TargetKind = "object"
	TargetNPC         TargetKind = "npc"
	TargetParticipant TargetKind = "participant"
)

// KnownTargetKind reports whether value names a defined target kind.
func KnownTargetKind(value TargetKind) bool {
	switch value {
	case TargetNone, TargetLocation, TargetObject, TargetNPC, TargetParticipant:
		return true
	}
	return false
}

// Target identifies what an action is aimed at. Cell is only meaningful for
// move targets inside a location grid.
type Target struct {
	Kind TargetKind
	ID   string
	Cell int
}

// ActionStatus tracks an action through the resolution pipeline.
type ActionStatus string

const (
	ActionStatusPending     ActionStatus = "pending"
	ActionStatusResolved    ActionStatus = "resolved"
	ActionStatusInvalidated ActionStatus = "invalidated"
)

var (
	// ErrEmptyParticipantID indicates a missing submitting participant.
	ErrEmptyParticipantID = errors.New("participant id is required")
	// ErrUnknownActionType indicates an action type outside the defined set.
	ErrUnknownActionType = errors.New("unknown action type")
	// ErrUnknownTargetKind indicates a target kind outside the defined set.
	ErrUnknownTargetKind = errors.New("unknown target kind")
)

// Action is one participant's programmed instruction for a round.
// The intention tag is selected only after type and target are fixed and is
// never broadcast to other participants.
type Action struct {
	ParticipantID string
	Type          ActionType
	Target        Target
	Intention     string
	Status        ActionStatus
}

// NewAction validates the raw pieces of a submitted action and returns it in
// pending state. Legality against role, cooldowns, and the board is the
// engine's job; this only rejects structurally malformed payloads.
func NewAction(participantID string, actionType ActionType, target Target) (Action, error) {
	participantID = strings.TrimSpace(participantID)
	if participantID == "" {
		return Action{}, ErrEmptyParticipantID
	}
	if !KnownActionType(actionType) {
		return Action{}, ErrUnknownActionType
	}
	if target.Kind == "" {
		target.Kind = TargetNone
	}
	if !KnownTargetKind(target.Kind) {
		return Action{}, ErrUnknownTargetKind
	}
	target.ID = strings.TrimSpace(target.ID)

	return Action{
		ParticipantID: participantID,
		Type:          actionType,
		Target:        target,
		Status:        ActionStatusPending,
	}, nil
}
