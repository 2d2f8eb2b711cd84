// Package engine runs one live game session: the round state machine, action
// validation and resolution, win/fail evaluation, and pause/disconnect
// handling.
//
// Every engine owns its session exclusively. One mutex serializes all
// mutation, so no two resolution steps, phase changes, or submissions ever
// interleave. Suspension points (submission deadline, pause votes, grace
// expiry handled by the presence tracker) are all time-bounded; the engine
// never blocks waiting for participant input.
package engine

import (
	"encoding/json"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/oligibbons/one-mind-many-sub000/internal/game/domain"
	"github.com/oligibbons/one-mind-many-sub000/internal/game/event"
	"github.com/oligibbons/one-mind-many-sub000/internal/game/narrator"
	apperrors "github.com/oligibbons/one-mind-many-sub000/internal/platform/errors"
	"github.com/oligibbons/one-mind-many-sub000/internal/scenario"
)

// Notifier receives outbound events as the engine mutates its session.
// Implementations relay them to the transport layer. Notifications never
// include priority-track data.
type Notifier interface {
	PhaseChanged(sessionID string, round int, phase domain.Phase)
	ActionResolved(sessionID string, evt event.Event)
	SessionEnded(sessionID string, winners []domain.Winner)
	PresenceChanged(sessionID, participantID string, status domain.ConnectionStatus)
	EventAppended(sessionID string, evt event.Event)
}

// Config holds per-phase timing for an engine.
type Config struct {
	PlanningDuration   time.Duration
	SubmissionDuration time.Duration
	DeductionDuration  time.Duration
}

// DefaultConfig returns the production phase timings.
func DefaultConfig() Config {
	return Config{
		PlanningDuration:   30 * time.Second,
		SubmissionDuration: 60 * time.Second,
		DeductionDuration:  45 * time.Second,
	}
}

// Engine drives a single session.
type Engine struct {
	mu sync.Mutex

	session      *domain.Session
	participants map[string]*domain.Participant
	// order preserves participant creation order for stable snapshots.
	order []string

	def      scenario.Definition
	log      *event.Log
	rng      *rand.Rand
	clock    func() time.Time
	timers   Timers
	notifier Notifier
	narrate  narrator.Narrator
	cfg      Config

	// phaseSeq invalidates stale deadline callbacks after a transition.
	phaseSeq int
	// cancelDeadline stops the current phase deadline, nil when none.
	cancelDeadline func() bool
	// deadlineAt and deadlineAdvance describe the armed deadline so a pause
	// can bank the unspent time instead of letting it run out.
	deadlineAt      time.Time
	deadlineAdvance func()
	// deferredAdvance holds a phase transition blocked by an active pause.
	deferredAdvance func()
	// pausedDeadline is the disarmed deadline to re-arm when the pause lifts.
	pausedDeadline *pausedDeadline
}

// New assembles an engine around an initialized session. The session must
// already be active with its track and participants allocated.
func New(session *domain.Session, participants []*domain.Participant, def scenario.Definition,
	rng *rand.Rand, clock func() time.Time, timers Timers, notifier Notifier, n narrator.Narrator, cfg Config) *Engine {
	if clock == nil {
		clock = time.Now
	}
	if timers == nil {
		timers = WallTimers{}
	}
	if n == nil {
		n = narrator.WithFallback(nil)
	}

	byID := make(map[string]*domain.Participant, len(participants))
	order := make([]string, 0, len(participants))
	for _, participant := range participants {
		byID[participant.ID] = participant
		order = append(order, participant.ID)
	}

	return &Engine{
		session:      session,
		participants: byID,
		order:        order,
		def:          def,
		log:          &event.Log{},
		rng:          rng,
		clock:        clock,
		timers:       timers,
		notifier:     notifier,
		narrate:      n,
		cfg:          cfg,
	}
}

// SessionID returns the id of the session this engine runs.
func (e *Engine) SessionID() string {
	return e.session.ID
}

// Ended reports whether the session reached a terminal state.
func (e *Engine) Ended() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Status == domain.StatusEnded
}

// Start activates the session and opens round 1 planning.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.session.Status = domain.StatusActive
	e.session.Round = 1
	e.appendSystem("session.started", nil)
	e.enterPlanning()
}

// enterPlanning opens the planning phase for the current round.
// Callers hold the lock.
func (e *Engine) enterPlanning() {
	e.session.Phase = domain.PhasePlanning
	for _, participant := range e.participants {
		participant.PendingAction = nil
	}
	e.announcePhase()
	e.scheduleDeadline(e.cfg.PlanningDuration, e.enterSubmission)
}

// enterSubmission opens the submission phase. AI-controlled participants are
// auto-filled immediately with the same mechanism used at the deadline.
// Callers hold the lock.
func (e *Engine) enterSubmission() {
	e.session.Phase = domain.PhaseSubmission
	e.announcePhase()

	for _, participantID := range e.order {
		participant := e.participants[participantID]
		if participant.Alive && participant.Connection == domain.ConnectionAIControlled {
			e.autoSubmit(participant)
		}
	}
	if e.allSubmitted() {
		e.enterResolution()
		return
	}
	e.scheduleDeadline(e.cfg.SubmissionDuration, e.submissionDeadline)
}

// submissionDeadline auto-fills every missing submission and advances.
// Callers hold the lock.
func (e *Engine) submissionDeadline() {
	for _, participantID := range e.order {
		participant := e.participants[participantID]
		if participant.Alive && participant.PendingAction == nil {
			e.autoSubmit(participant)
		}
	}
	e.enterResolution()
}

// enterResolution resolves every pending action in track order, then moves to
// deduction unless a terminal condition fired. Callers hold the lock.
func (e *Engine) enterResolution() {
	e.session.Phase = domain.PhaseResolution
	e.announcePhase()

	e.resolveRound()

	if e.session.Status == domain.StatusEnded {
		return
	}
	e.enterDeduction()
}

// enterDeduction opens the read-only narration window. Callers hold the lock.
func (e *Engine) enterDeduction() {
	e.session.Phase = domain.PhaseDeduction
	e.announcePhase()
	e.scheduleDeadline(e.cfg.DeductionDuration, e.roundBoundary)
}

// roundBoundary rotates the track, ticks complications, and opens the next
// round, ending the session when the round limit is exceeded.
// Callers hold the lock.
func (e *Engine) roundBoundary() {
	e.session.Track = e.session.Track.RotateLeft()

	remaining := e.session.Complications[:0]
	for _, active := range e.session.Complications {
		active.RemainingRounds--
		if active.RemainingRounds > 0 {
			remaining = append(remaining, active)
		}
	}
	e.session.Complications = remaining

	e.session.Round++
	if e.session.Round > e.def.MaxRounds {
		e.endSession(nil, "round limit reached")
		return
	}
	e.enterPlanning()
}

// pausedDeadline holds a deadline disarmed by a pause so the phase keeps its
// unspent time when play resumes.
type pausedDeadline struct {
	remaining time.Duration
	advance   func()
}

// scheduleDeadline arms the phase deadline. A deadline that fires after a
// transition already happened is discarded; one that fires during a pause is
// re-armed when the pause lifts. Callers hold the lock.
func (e *Engine) scheduleDeadline(d time.Duration, advance func()) {
	if e.cancelDeadline != nil {
		e.cancelDeadline()
	}
	e.pausedDeadline = nil
	e.phaseSeq++
	seq := e.phaseSeq
	e.deadlineAt = e.clock().Add(d)
	e.deadlineAdvance = advance
	e.cancelDeadline = e.timers.AfterFunc(d, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if seq != e.phaseSeq || e.session.Status == domain.StatusEnded {
			return
		}
		if e.session.Paused {
			// The pause normally disarms the deadline first; this covers a
			// timer that fired in the same instant the vote completed.
			e.pausedDeadline = &pausedDeadline{advance: advance}
			return
		}
		e.deadlineAdvance = nil
		advance()
	})
}

// suspendDeadline disarms the armed deadline and banks its remaining time so
// a paused phase does not lose submission time. Callers hold the lock.
func (e *Engine) suspendDeadline() {
	if e.deadlineAdvance == nil {
		return
	}
	if e.cancelDeadline != nil {
		e.cancelDeadline()
		e.cancelDeadline = nil
	}
	remaining := e.deadlineAt.Sub(e.clock())
	if remaining < 0 {
		remaining = 0
	}
	e.pausedDeadline = &pausedDeadline{remaining: remaining, advance: e.deadlineAdvance}
	e.deadlineAdvance = nil
}

// advanceEarly cancels the pending deadline and runs the transition now.
// Callers hold the lock.
func (e *Engine) advanceEarly(advance func()) {
	if e.session.Paused {
		e.deferredAdvance = advance
		return
	}
	if e.cancelDeadline != nil {
		e.cancelDeadline()
		e.cancelDeadline = nil
	}
	e.phaseSeq++
	advance()
}

// allSubmitted reports whether every living participant has a pending action.
// Callers hold the lock.
func (e *Engine) allSubmitted() bool {
	for _, participant := range e.participants {
		if participant.Alive && participant.PendingAction == nil {
			return false
		}
	}
	return true
}

// announcePhase logs and broadcasts the current phase. Callers hold the lock.
func (e *Engine) announcePhase() {
	e.session.UpdatedAt = e.clock().UTC()
	e.appendSystem("phase.changed", map[string]any{
		"phase": e.session.Phase,
		"round": e.session.Round,
	})
	if e.notifier != nil {
		e.notifier.PhaseChanged(e.session.ID, e.session.Round, e.session.Phase)
	}
}

// appendSystem appends a system event to the log. Callers hold the lock.
func (e *Engine) appendSystem(eventType string, payload map[string]any) {
	var raw json.RawMessage
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			log.Printf("encode system event session_id=%s event_type=%s err=%v", e.session.ID, eventType, err)
		} else {
			raw = encoded
		}
	}
	evt := e.log.Append(event.Event{
		SessionID:   e.session.ID,
		Round:       e.session.Round,
		Kind:        event.KindSystem,
		Type:        eventType,
		Timestamp:   e.clock().UTC(),
		PayloadJSON: raw,
	})
	if e.notifier != nil {
		e.notifier.EventAppended(e.session.ID, evt)
	}
}

// SubmitAction validates and records a participant's action for this round.
// The write is serialized with everything else; one pending action per
// participant per round is enforced here.
func (e *Engine) SubmitAction(participantID string, actionType domain.ActionType, target domain.Target, intention string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session.Status == domain.StatusEnded {
		return apperrors.New(apperrors.CodeSessionEnded, "session has ended")
	}
	if e.session.Paused {
		return apperrors.New(apperrors.CodeSessionPaused, "session is paused")
	}
	switch e.session.Phase {
	case domain.PhaseSubmission:
	case domain.PhaseResolution, domain.PhaseDeduction:
		return apperrors.WithMetadata(apperrors.CodeActionSubmissionsClosed,
			"submissions for this round have closed",
			map[string]string{"phase": string(e.session.Phase)})
	default:
		return apperrors.WithMetadata(apperrors.CodeSessionWrongPhase,
			"actions are only accepted during submission",
			map[string]string{"phase": string(e.session.Phase)})
	}

	participant, ok := e.participants[participantID]
	if !ok {
		return apperrors.New(apperrors.CodeParticipantNotFound, "participant is not in this session")
	}
	if !participant.Alive {
		return apperrors.New(apperrors.CodeParticipantEliminated, "eliminated participants cannot act")
	}
	if participant.PendingAction != nil {
		return apperrors.New(apperrors.CodeActionAlreadySubmitted, "an action was already submitted this round")
	}

	action, err := domain.NewAction(participantID, actionType, target)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeActionMalformed, "malformed action payload", err)
	}
	if err := e.checkLegality(participant, action); err != nil {
		return err
	}
	if intention != "" {
		if !containsTag(e.def.TagsFor(participant.Role, action.Type, action.Target.Kind), intention) {
			return apperrors.New(apperrors.CodeActionIntentionInvalid, "intention tag is not offered for this action")
		}
		action.Intention = intention
	}

	participant.PendingAction = &action
	e.session.UpdatedAt = e.clock().UTC()

	if e.allSubmitted() {
		e.advanceEarly(e.enterResolution)
	}
	return nil
}

// IntentionOptions returns the intention tags a participant may pick for an
// already-legal action and target. It mutates nothing.
func (e *Engine) IntentionOptions(participantID string, actionType domain.ActionType, target domain.Target) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	participant, ok := e.participants[participantID]
	if !ok {
		return nil, apperrors.New(apperrors.CodeParticipantNotFound, "participant is not in this session")
	}
	action, err := domain.NewAction(participantID, actionType, target)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeActionMalformed, "malformed action payload", err)
	}
	if err := e.checkLegality(participant, action); err != nil {
		return nil, err
	}
	return e.def.TagsFor(participant.Role, action.Type, action.Target.Kind), nil
}

// RequestPause records a pause vote. The session pauses when every connected
// participant has voted.
func (e *Engine) RequestPause(participantID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session.Status == domain.StatusEnded {
		return apperrors.New(apperrors.CodeSessionEnded, "session has ended")
	}
	participant, ok := e.participants[participantID]
	if !ok {
		return apperrors.New(apperrors.CodeParticipantNotFound, "participant is not in this session")
	}
	if participant.Connection != domain.ConnectionConnected {
		return apperrors.New(apperrors.CodeParticipantNotConnected, "only connected participants may vote to pause")
	}

	e.session.PauseVotes[participantID] = struct{}{}
	if !e.session.Paused && e.pauseVoteComplete() {
		e.session.Paused = true
		e.suspendDeadline()
		e.appendSystem("session.paused", nil)
	}
	return nil
}

// ReleasePause lifts an active pause. Any single participant's release
// unblocks the session; the vote set is cleared, a transition deferred by the
// pause resumes, and a deadline suspended by the pause is re-armed with the
// time it had left.
func (e *Engine) ReleasePause(participantID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.participants[participantID]; !ok {
		return apperrors.New(apperrors.CodeParticipantNotFound, "participant is not in this session")
	}
	delete(e.session.PauseVotes, participantID)
	if !e.session.Paused {
		return nil
	}

	e.session.Paused = false
	e.session.PauseVotes = map[string]struct{}{}
	e.appendSystem("session.resumed", nil)

	if e.deferredAdvance != nil {
		advance := e.deferredAdvance
		e.deferredAdvance = nil
		e.pausedDeadline = nil
		advance()
		return nil
	}
	if e.pausedDeadline != nil {
		pending := e.pausedDeadline
		e.pausedDeadline = nil
		e.scheduleDeadline(pending.remaining, pending.advance)
	}
	return nil
}

// pauseVoteComplete reports whether every connected participant has voted.
// Callers hold the lock.
func (e *Engine) pauseVoteComplete() bool {
	connected := 0
	for _, participant := range e.participants {
		if participant.Connection == domain.ConnectionConnected {
			connected++
			if _, voted := e.session.PauseVotes[participant.ID]; !voted {
				return false
			}
		}
	}
	return connected > 0
}

// SetConnection updates a participant's liveness. A flip to ai-controlled
// during submission immediately auto-fills their action; a reconnect restores
// manual control from the next submission phase onward.
func (e *Engine) SetConnection(participantID string, status domain.ConnectionStatus) {
	e.mu.Lock()
	defer e.mu.Unlock()

	participant, ok := e.participants[participantID]
	if !ok || participant.Connection == status {
		return
	}
	participant.Connection = status
	delete(e.session.PauseVotes, participantID)

	e.appendSystem("presence.changed", map[string]any{
		"participant_id": participantID,
		"status":         status,
	})
	if e.notifier != nil {
		e.notifier.PresenceChanged(e.session.ID, participantID, status)
	}

	if status == domain.ConnectionAIControlled &&
		e.session.Status == domain.StatusActive &&
		e.session.Phase == domain.PhaseSubmission &&
		participant.Alive && participant.PendingAction == nil {
		e.autoSubmit(participant)
		if e.allSubmitted() {
			e.advanceEarly(e.enterResolution)
		}
	}

	// A departure can complete a pending unanimous pause vote.
	if !e.session.Paused && len(e.session.PauseVotes) > 0 && e.pauseVoteComplete() {
		e.session.Paused = true
		e.appendSystem("session.paused", nil)
	}
}

// Leave converts an in-session departure into the disconnect flow: the round
// is not cancelled, the participant enters the grace path managed by the
// presence tracker.
func (e *Engine) Leave(participantID string) {
	e.SetConnection(participantID, domain.ConnectionGracePeriod)
}

func containsTag(tags []string, tag string) bool {
	for _, candidate := range tags {
		if candidate == tag {
			return true
		}
	}
	return false
}
