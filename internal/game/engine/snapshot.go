package engine

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/oligibbons/one-mind-many-sub000/internal/game/domain"
	"github.com/oligibbons/one-mind-many-sub000/internal/game/event"
	"github.com/oligibbons/one-mind-many-sub000/internal/scenario"
)

// snapshotEventLimit bounds how many recent events a snapshot carries.
const snapshotEventLimit = 50

// Snapshot is the read-only view of a session for admin and test consumers.
// It never carries the priority track or pause-vote sets: resolution order
// must stay inferable only from narrated outcomes.
type Snapshot struct {
	SessionID     string                 `json:"session_id"`
	ScenarioID    string                 `json:"scenario_id"`
	Status        domain.Status          `json:"status"`
	Round         int                    `json:"round"`
	Phase         domain.Phase           `json:"phase"`
	Paused        bool                   `json:"paused"`
	Position      PositionSnapshot       `json:"position"`
	Resources     map[string]int         `json:"resources"`
	Complications []ComplicationSnapshot `json:"complications,omitempty"`
	Participants  []ParticipantSnapshot  `json:"participants"`
	Winners       []WinnerSnapshot       `json:"winners,omitempty"`
	Events        []event.Event          `json:"events,omitempty"`
}

// PositionSnapshot is the shared token's board position.
type PositionSnapshot struct {
	LocationID string `json:"location_id"`
	Cell       int    `json:"cell"`
}

// ComplicationSnapshot is one active timed effect.
type ComplicationSnapshot struct {
	ComplicationID  string `json:"complication_id"`
	RemainingRounds int    `json:"remaining_rounds"`
}

// ParticipantSnapshot is one participant's state. Secret identities stay
// out: they label priority-track slots.
type ParticipantSnapshot struct {
	ID            string                  `json:"id"`
	DisplayName   string                  `json:"display_name"`
	Role          domain.Role             `json:"role"`
	SubRoleID     string                  `json:"sub_role_id,omitempty"`
	Hand          []string                `json:"hand"`
	Alive         bool                    `json:"alive"`
	Connection    domain.ConnectionStatus `json:"connection"`
	Submitted     bool                    `json:"submitted"`
	VictoryPoints int                     `json:"victory_points"`
	GoalProgress  int                     `json:"goal_progress,omitempty"`
}

// WinnerSnapshot is one recorded victory.
type WinnerSnapshot struct {
	ParticipantID string      `json:"participant_id"`
	Role          domain.Role `json:"role"`
	VictoryPoints int         `json:"victory_points"`
	Reason        string      `json:"reason"`
}

// Snapshot renders the session as stable JSON. Two calls with no mutation in
// between return byte-identical output: participant order is creation order
// and map keys marshal sorted.
func (e *Engine) Snapshot() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := Snapshot{
		SessionID:  e.session.ID,
		ScenarioID: e.session.ScenarioID,
		Status:     e.session.Status,
		Round:      e.session.Round,
		Phase:      e.session.Phase,
		Paused:     e.session.Paused,
		Position: PositionSnapshot{
			LocationID: e.session.Position.LocationID,
			Cell:       e.session.Position.Cell,
		},
		Resources: e.session.Resources,
	}
	for _, active := range e.session.Complications {
		snap.Complications = append(snap.Complications, ComplicationSnapshot{
			ComplicationID:  active.ComplicationID,
			RemainingRounds: active.RemainingRounds,
		})
	}
	for _, participantID := range e.order {
		participant := e.participants[participantID]
		hand := participant.Hand
		if hand == nil {
			hand = []string{}
		}
		snap.Participants = append(snap.Participants, ParticipantSnapshot{
			ID:            participant.ID,
			DisplayName:   participant.DisplayName,
			Role:          participant.Role,
			SubRoleID:     participant.SubRoleID,
			Hand:          hand,
			Alive:         participant.Alive,
			Connection:    participant.Connection,
			Submitted:     participant.PendingAction != nil,
			VictoryPoints: participant.VictoryPoints,
			GoalProgress:  e.session.GoalProgress[participant.ID],
		})
	}
	for _, winner := range e.session.Winners {
		snap.Winners = append(snap.Winners, WinnerSnapshot{
			ParticipantID: winner.ParticipantID,
			Role:          winner.Role,
			VictoryPoints: winner.VictoryPoints,
			Reason:        winner.Reason,
		})
	}
	events := e.log.All()
	if len(events) > snapshotEventLimit {
		events = events[len(events)-snapshotEventLimit:]
	}
	snap.Events = events

	encoded, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return encoded, nil
}

// Events returns the log entries after the given id.
func (e *Engine) Events(afterID int64) []event.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.log.Since(afterID)
}

// candidateState is the JSON shape CheckState accepts.
type candidateState struct {
	Round        int              `json:"round"`
	Phase        domain.Phase     `json:"phase"`
	Position     PositionSnapshot `json:"position"`
	Track        []string         `json:"track,omitempty"`
	Resources    map[string]int   `json:"resources,omitempty"`
	Participants []struct {
		ID   string      `json:"id"`
		Role domain.Role `json:"role"`
	} `json:"participants"`
}

// CheckState evaluates a candidate game state against a scenario and returns
// the rule violations found, in a stable order. It mutates nothing; an empty
// result means the state is consistent.
func CheckState(def scenario.Definition, raw []byte) []string {
	var state candidateState
	if err := json.Unmarshal(raw, &state); err != nil {
		return []string{fmt.Sprintf("state is not valid JSON: %v", err)}
	}

	var violations []string
	report := func(format string, args ...any) {
		violations = append(violations, fmt.Sprintf(format, args...))
	}

	if state.Round < 1 {
		report("round %d is before the first round", state.Round)
	}
	if def.MaxRounds > 0 && state.Round > def.MaxRounds {
		report("round %d exceeds the scenario limit of %d", state.Round, def.MaxRounds)
	}
	switch state.Phase {
	case domain.PhasePlanning, domain.PhaseSubmission, domain.PhaseResolution, domain.PhaseDeduction:
	default:
		report("unknown phase %q", state.Phase)
	}

	location, ok := def.Location(state.Position.LocationID)
	if !ok {
		report("position location %q is not on the board", state.Position.LocationID)
	} else if state.Position.Cell < 0 || state.Position.Cell >= location.GridSize*location.GridSize {
		report("position cell %d is outside the %dx%d grid of %q",
			state.Position.Cell, location.GridSize, location.GridSize, location.ID)
	}

	if n := len(state.Participants); n < scenario.MinPlayers || n > scenario.MaxPlayers {
		report("participant count %d is outside [%d,%d]", n, scenario.MinPlayers, scenario.MaxPlayers)
	}

	seen := map[string]bool{}
	roleCounts := map[domain.Role]int{}
	var ids []string
	for _, participant := range state.Participants {
		if seen[participant.ID] {
			report("duplicate participant id %q", participant.ID)
		}
		seen[participant.ID] = true
		ids = append(ids, participant.ID)
		if !domain.KnownRole(participant.Role) {
			report("participant %q has unknown role %q", participant.ID, participant.Role)
			continue
		}
		roleCounts[participant.Role]++
	}

	if pool, ok := def.PoolFor(len(state.Participants)); ok {
		if roleCounts[domain.RoleCollaborator] != pool.Collaborators ||
			roleCounts[domain.RoleSaboteur] != pool.Saboteurs ||
			roleCounts[domain.RoleRogue] != pool.Rogues {
			report("role distribution %d/%d/%d does not match the pool for %d players",
				roleCounts[domain.RoleCollaborator], roleCounts[domain.RoleSaboteur],
				roleCounts[domain.RoleRogue], len(state.Participants))
		}
	}

	if len(state.Track) > 0 && !domain.NewTrack(state.Track).IsPermutationOf(ids) {
		report("priority track is not a permutation of the participants")
	}

	names := make([]string, 0, len(state.Resources))
	for name := range state.Resources {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if state.Resources[name] < 0 {
			report("resource %q is negative", name)
		}
	}

	return violations
}
