// Package sqlite provides a SQLite-backed game storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/oligibbons/one-mind-many-sub000/internal/platform/storage/sqlitemigrate"
	"github.com/oligibbons/one-mind-many-sub000/internal/storage"
	"github.com/oligibbons/one-mind-many-sub000/internal/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store persists game state in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite game store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Ping reports whether the database answers.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return s.sqlDB.PingContext(ctx)
}

// SaveSession inserts or updates one session record.
func (s *Store) SaveSession(ctx context.Context, record storage.SessionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	sessionID := strings.TrimSpace(record.ID)
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}
	if strings.TrimSpace(record.ScenarioID) == "" {
		return fmt.Errorf("scenario id is required")
	}
	createdAt := record.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	updatedAt := record.UpdatedAt.UTC()
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}
	var endedAt any
	if record.EndedAt != nil {
		endedAt = toMillis(*record.EndedAt)
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO sessions (
		   id, scenario_id, status, round, participant_count,
		   winners_json, created_at, updated_at, ended_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   status = excluded.status,
		   round = excluded.round,
		   participant_count = excluded.participant_count,
		   winners_json = excluded.winners_json,
		   updated_at = excluded.updated_at,
		   ended_at = excluded.ended_at`,
		sessionID,
		strings.TrimSpace(record.ScenarioID),
		record.Status,
		record.Round,
		record.ParticipantCount,
		string(record.WinnersJSON),
		toMillis(createdAt),
		toMillis(updatedAt),
		endedAt,
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// GetSession returns one session record by id.
func (s *Store) GetSession(ctx context.Context, id string) (storage.SessionRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.SessionRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.SessionRecord{}, fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return storage.SessionRecord{}, fmt.Errorf("session id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, scenario_id, status, round, participant_count,
		        winners_json, created_at, updated_at, ended_at
		   FROM sessions
		  WHERE id = ?`,
		id,
	)
	return scanSession(row.Scan)
}

// ListSessions returns the most recently updated session records.
func (s *Store) ListSessions(ctx context.Context, limit int) ([]storage.SessionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, scenario_id, status, round, participant_count,
		        winners_json, created_at, updated_at, ended_at
		   FROM sessions
		  ORDER BY updated_at DESC, id ASC
		  LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var records []storage.SessionRecord
	for rows.Next() {
		record, err := scanSession(rows.Scan)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return records, nil
}

func scanSession(scan func(dest ...any) error) (storage.SessionRecord, error) {
	var record storage.SessionRecord
	var winners string
	var createdAt, updatedAt int64
	var endedAt sql.NullInt64
	err := scan(
		&record.ID,
		&record.ScenarioID,
		&record.Status,
		&record.Round,
		&record.ParticipantCount,
		&winners,
		&createdAt,
		&updatedAt,
		&endedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.SessionRecord{}, storage.ErrNotFound
		}
		return storage.SessionRecord{}, fmt.Errorf("scan session: %w", err)
	}
	if winners != "" {
		record.WinnersJSON = []byte(winners)
	}
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)
	if endedAt.Valid {
		ended := fromMillis(endedAt.Int64)
		record.EndedAt = &ended
	}
	return record, nil
}

// AppendEvent journals one session event. Re-appending the same event id is
// idempotent.
func (s *Store) AppendEvent(ctx context.Context, record storage.EventRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	sessionID := strings.TrimSpace(record.SessionID)
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}
	if record.EventID <= 0 {
		return fmt.Errorf("event id must be greater than zero")
	}
	timestamp := record.Timestamp.UTC()
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO session_events (
		   session_id, event_id, round, kind, type, timestamp, payload
		 ) VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(session_id, event_id) DO NOTHING`,
		sessionID,
		record.EventID,
		record.Round,
		record.Kind,
		record.Type,
		toMillis(timestamp),
		string(record.Payload),
	)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// ListEvents returns the journaled events of one session after the given id,
// in sequence order.
func (s *Store) ListEvents(ctx context.Context, sessionID string, afterEventID int64) ([]storage.EventRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT session_id, event_id, round, kind, type, timestamp, payload
		   FROM session_events
		  WHERE session_id = ? AND event_id > ?
		  ORDER BY event_id ASC`,
		sessionID,
		afterEventID,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var records []storage.EventRecord
	for rows.Next() {
		var record storage.EventRecord
		var timestamp int64
		var payload string
		err := rows.Scan(
			&record.SessionID,
			&record.EventID,
			&record.Round,
			&record.Kind,
			&record.Type,
			&timestamp,
			&payload,
		)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		record.Timestamp = fromMillis(timestamp)
		if payload != "" {
			record.Payload = []byte(payload)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return records, nil
}

// RecordTelemetry stores one operational telemetry event.
func (s *Store) RecordTelemetry(ctx context.Context, event storage.TelemetryEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	eventType := strings.TrimSpace(event.Type)
	if eventType == "" {
		return fmt.Errorf("telemetry event type is required")
	}
	createdAt := event.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO telemetry_events (type, session_id, payload, created_at)
		 VALUES (?, ?, ?, ?)`,
		eventType,
		strings.TrimSpace(event.SessionID),
		string(event.Payload),
		toMillis(createdAt),
	)
	if err != nil {
		return fmt.Errorf("record telemetry: %w", err)
	}
	return nil
}
