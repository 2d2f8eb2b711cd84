package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oligibbons/one-mind-many-sub000/internal/platform/id"
)

// Status describes the lifecycle state of a session.
type Status string

const (
	// StatusLobby means the session has not yet started.
	StatusLobby Status = "lobby"
	// StatusActive means rounds are being played.
	StatusActive Status = "active"
	// StatusEnded means a terminal condition fired.
	StatusEnded Status = "ended"
)

// Phase is the round sub-state of an active session.
type Phase string

const (
	// PhasePlanning shows hands and secret goals; no mutation.
	PhasePlanning Phase = "planning"
	// PhaseSubmission accepts one action per participant.
	PhaseSubmission Phase = "submission"
	// PhaseResolution resolves submitted actions in track order.
	PhaseResolution Phase = "resolution"
	// PhaseDeduction is the read-only narration window.
	PhaseDeduction Phase = "deduction"
)

// CanTransitionTo reports whether moving from p to target is a legal phase
// transition. Deduction wraps to the next round's planning.
func (p Phase) CanTransitionTo(target Phase) bool {
	switch p {
	case PhasePlanning:
		return target == PhaseSubmission
	case PhaseSubmission:
		return target == PhaseResolution
	case PhaseResolution:
		return target == PhaseDeduction
	case PhaseDeduction:
		return target == PhasePlanning
	}
	return false
}

// BoardPosition is the shared token's place on the board: a location plus a
// sub-grid cell inside it.
type BoardPosition struct {
	LocationID string
	Cell       int
}

// ActiveComplication is a timed scenario effect currently in play.
type ActiveComplication struct {
	ComplicationID  string
	RemainingRounds int
}

// Winner records one victory awarded during the session.
type Winner struct {
	ParticipantID string
	Role          Role
	VictoryPoints int
	Reason        string
}

var (
	// ErrEmptyScenarioID indicates a missing scenario reference.
	ErrEmptyScenarioID = errors.New("scenario id is required")
)

// Session is the full mutable state of one game. It is owned exclusively by
// the engine running it; every mutation goes through engine transitions.
type Session struct {
	ID            string
	ScenarioID    string
	Status        Status
	Round         int
	Phase         Phase
	Track         Track
	Position      BoardPosition
	Resources     map[string]int
	Complications []ActiveComplication
	Winners       []Winner
	// GoalProgress tracks how far each rogue has advanced along their goal
	// path, keyed by participant id.
	GoalProgress map[string]int
	// PauseVotes holds participant ids currently requesting a pause.
	PauseVotes map[string]struct{}
	Paused     bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
	EndedAt    *time.Time // nil while the session is live
}

// CreateSessionInput describes the metadata needed to create a session shell.
type CreateSessionInput struct {
	ScenarioID    string
	StartLocation string
	Resources     map[string]int
}

// CreateSession creates a session in the lobby state with a generated ID.
// Participants, track, and activation happen in the lobby transition.
func CreateSession(input CreateSessionInput, now func() time.Time, idGenerator func() (string, error)) (Session, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	input.ScenarioID = strings.TrimSpace(input.ScenarioID)
	if input.ScenarioID == "" {
		return Session{}, ErrEmptyScenarioID
	}

	sessionID, err := idGenerator()
	if err != nil {
		return Session{}, fmt.Errorf("generate session id: %w", err)
	}

	resources := make(map[string]int, len(input.Resources))
	for name, amount := range input.Resources {
		resources[name] = amount
	}

	createdAt := now().UTC()
	return Session{
		ID:           sessionID,
		ScenarioID:   input.ScenarioID,
		Status:       StatusLobby,
		Round:        0,
		Position:     BoardPosition{LocationID: strings.TrimSpace(input.StartLocation)},
		Resources:    resources,
		GoalProgress: map[string]int{},
		PauseVotes:   map[string]struct{}{},
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}, nil
}
