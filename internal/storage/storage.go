// Package storage defines persistence contracts for game session state.
//
// The in-memory session registry is the source of truth for live play;
// these stores are the durable record behind it. A store outage must never
// stall an in-memory session.
package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")
)

// SessionRecord is the durable summary of one session.
type SessionRecord struct {
	ID               string
	ScenarioID       string
	Status           string
	Round            int
	ParticipantCount int
	// WinnersJSON is the encoded winner list, empty while the session is live.
	WinnersJSON []byte
	CreatedAt   time.Time
	UpdatedAt   time.Time
	EndedAt     *time.Time
}

// EventRecord is one journaled session event.
type EventRecord struct {
	SessionID string
	// EventID is the session-scoped sequence number assigned by the engine.
	EventID   int64
	Round     int
	Kind      string
	Type      string
	Timestamp time.Time
	Payload   []byte
}

// TelemetryEvent is one operational event for offline analysis.
type TelemetryEvent struct {
	Type      string
	SessionID string
	Payload   []byte
	CreatedAt time.Time
}

// SessionStore persists session records.
type SessionStore interface {
	SaveSession(ctx context.Context, record SessionRecord) error
	GetSession(ctx context.Context, id string) (SessionRecord, error)
	ListSessions(ctx context.Context, limit int) ([]SessionRecord, error)
}

// EventStore journals session events.
type EventStore interface {
	AppendEvent(ctx context.Context, record EventRecord) error
	ListEvents(ctx context.Context, sessionID string, afterEventID int64) ([]EventRecord, error)
}

// TelemetryStore records operational telemetry events.
type TelemetryStore interface {
	RecordTelemetry(ctx context.Context, event TelemetryEvent) error
}

// Store is the full persistence surface the service needs.
type Store interface {
	SessionStore
	EventStore
	TelemetryStore
	Ping(ctx context.Context) error
	Close() error
}
