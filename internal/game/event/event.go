// Package event models the append-only session event log.
//
// Events are what participants (and the narrator) see. They deliberately
// carry no priority-track metadata: resolution order is only inferable from
// the narrated outcomes themselves.
package event

import (
	"encoding/json"
	"time"
)

// Kind tags the audience-facing class of an event.
type Kind string

const (
	// KindNarrative is prose describing a resolved outcome.
	KindNarrative Kind = "narrative"
	// KindAction is the structured record of a resolved action.
	KindAction Kind = "action"
	// KindSystem covers lifecycle notices: phase changes, pauses, takeovers.
	KindSystem Kind = "system"
)

// Event is one entry in a session's log.
type Event struct {
	ID          int64           `json:"id"`
	SessionID   string          `json:"session_id"`
	Round       int             `json:"round"`
	Kind        Kind            `json:"kind"`
	Type        string          `json:"type"`
	Timestamp   time.Time       `json:"timestamp"`
	PayloadJSON json.RawMessage `json:"payload,omitempty"`
}

// Log is an in-memory, append-only, ordered event log for one session.
// Entries are numbered from 1 in append order.
type Log struct {
	entries []Event
}

// Append adds an event to the log, assigning its sequence id, and returns
// the stored entry.
func (l *Log) Append(evt Event) Event {
	evt.ID = int64(len(l.entries) + 1)
	l.entries = append(l.entries, evt)
	return evt
}

// All returns a copy of every entry in append order.
func (l *Log) All() []Event {
	return append([]Event(nil), l.entries...)
}

// Since returns a copy of the entries with id greater than afterID.
func (l *Log) Since(afterID int64) []Event {
	if afterID < 0 {
		afterID = 0
	}
	if afterID >= int64(len(l.entries)) {
		return nil
	}
	return append([]Event(nil), l.entries[afterID:]...)
}

// Len returns the number of entries.
func (l *Log) Len() int {
	return len(l.entries)
}
