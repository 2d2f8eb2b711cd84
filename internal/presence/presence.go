// Package presence tracks connection liveness across every session.
//
// The tracker maps connections to participants and owns the reconnection
// grace window: a dropped connection starts a timer, and only its expiry
// hands the participant over to automated control. All entries share one
// tracker, so each participant's read-modify-write runs under its lock.
package presence

import (
	"sync"
	"time"
)

// DefaultGraceWindow is how long a dropped participant may reconnect before
// automated takeover.
const DefaultGraceWindow = 60 * time.Second

// TimerFactory schedules fn after d and returns a stop function. Production
// uses time.AfterFunc; tests fire manually.
type TimerFactory func(d time.Duration, fn func()) (stop func() bool)

// WallTimerFactory schedules with time.AfterFunc.
func WallTimerFactory(d time.Duration, fn func()) func() bool {
	timer := time.AfterFunc(d, fn)
	return timer.Stop
}

// Status is a tracked participant's liveness as the tracker sees it.
type Status string

const (
	StatusConnected   Status = "connected"
	StatusGracePeriod Status = "grace-period"
	StatusTakenOver   Status = "taken-over"
)

type entry struct {
	sessionID     string
	participantID string
	connectionID  string
	status        Status
	stopGrace     func() bool
}

// Tracker is the process-wide presence registry.
type Tracker struct {
	mu sync.Mutex
	// byParticipant keys entries by sessionID+participantID.
	byParticipant map[string]*entry
	byConnection  map[string]*entry

	grace     time.Duration
	newTimer  TimerFactory
	onExpired func(sessionID, participantID string)
}

// NewTracker builds a tracker. onExpired is called without the tracker lock
// when a grace window lapses; a nil TimerFactory uses wall-clock timers and a
// non-positive grace falls back to the default window.
func NewTracker(grace time.Duration, newTimer TimerFactory, onExpired func(sessionID, participantID string)) *Tracker {
	if grace <= 0 {
		grace = DefaultGraceWindow
	}
	if newTimer == nil {
		newTimer = WallTimerFactory
	}
	return &Tracker{
		byParticipant: map[string]*entry{},
		byConnection:  map[string]*entry{},
		grace:         grace,
		newTimer:      newTimer,
		onExpired:     onExpired,
	}
}

func participantKey(sessionID, participantID string) string {
	return sessionID + "/" + participantID
}

// Connect binds a connection to a participant, replacing any previous
// connection and cancelling a running grace timer. It reports whether the
// participant was away (in grace or taken over) before this connection.
func (t *Tracker) Connect(sessionID, participantID, connectionID string) (wasAway bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := participantKey(sessionID, participantID)
	if existing, ok := t.byParticipant[key]; ok {
		wasAway = existing.status != StatusConnected
		if existing.stopGrace != nil {
			existing.stopGrace()
			existing.stopGrace = nil
		}
		delete(t.byConnection, existing.connectionID)
	}

	tracked := &entry{
		sessionID:     sessionID,
		participantID: participantID,
		connectionID:  connectionID,
		status:        StatusConnected,
	}
	t.byParticipant[key] = tracked
	t.byConnection[connectionID] = tracked
	return wasAway
}

// Disconnect drops a connection and opens the grace window for its
// participant. A connection the tracker does not know is ignored.
func (t *Tracker) Disconnect(connectionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tracked, ok := t.byConnection[connectionID]
	if !ok {
		return
	}
	delete(t.byConnection, connectionID)
	if tracked.connectionID != connectionID || tracked.status != StatusConnected {
		return
	}

	tracked.status = StatusGracePeriod
	tracked.connectionID = ""
	sessionID, participantID := tracked.sessionID, tracked.participantID
	tracked.stopGrace = t.newTimer(t.grace, func() {
		t.graceExpired(sessionID, participantID)
	})
}

// graceExpired flips the participant to taken-over unless they reconnected
// in the meantime.
func (t *Tracker) graceExpired(sessionID, participantID string) {
	t.mu.Lock()
	tracked, ok := t.byParticipant[participantKey(sessionID, participantID)]
	if !ok || tracked.status != StatusGracePeriod {
		t.mu.Unlock()
		return
	}
	tracked.status = StatusTakenOver
	tracked.stopGrace = nil
	notify := t.onExpired
	t.mu.Unlock()

	if notify != nil {
		notify(sessionID, participantID)
	}
}

// Lookup resolves a connection to its session and participant.
func (t *Tracker) Lookup(connectionID string) (sessionID, participantID string, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tracked, ok := t.byConnection[connectionID]
	if !ok {
		return "", "", false
	}
	return tracked.sessionID, tracked.participantID, true
}

// StatusOf returns the tracked status of a participant.
func (t *Tracker) StatusOf(sessionID, participantID string) (Status, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tracked, ok := t.byParticipant[participantKey(sessionID, participantID)]
	if !ok {
		return "", false
	}
	return tracked.status, true
}

// RemoveSession drops every entry of an ended session and stops their grace
// timers.
func (t *Tracker) RemoveSession(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for key, tracked := range t.byParticipant {
		if tracked.sessionID != sessionID {
			continue
		}
		if tracked.stopGrace != nil {
			tracked.stopGrace()
		}
		delete(t.byConnection, tracked.connectionID)
		delete(t.byParticipant, key)
	}
}
