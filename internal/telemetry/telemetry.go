// Package telemetry records operational game events for later analysis.
package telemetry

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/oligibbons/one-mind-many-sub000/internal/storage"
)

// Emitter writes operational events to a telemetry store. A nil emitter or a
// nil store is a no-op, so callers never guard their emit sites.
type Emitter struct {
	store storage.TelemetryStore
	now   func() time.Time
}

// NewEmitter builds an emitter backed by the given store.
func NewEmitter(store storage.TelemetryStore, now func() time.Time) *Emitter {
	if now == nil {
		now = time.Now
	}
	return &Emitter{store: store, now: now}
}

// Emit records one event. Failures are logged and swallowed: telemetry never
// interferes with session progress.
func (e *Emitter) Emit(ctx context.Context, eventType, sessionID string, fields map[string]any) {
	if e == nil || e.store == nil {
		return
	}
	var payload []byte
	if len(fields) > 0 {
		encoded, err := json.Marshal(fields)
		if err != nil {
			log.Printf("encode telemetry event event_type=%s err=%v", eventType, err)
			return
		}
		payload = encoded
	}
	err := e.store.RecordTelemetry(ctx, storage.TelemetryEvent{
		Type:      eventType,
		SessionID: sessionID,
		Payload:   payload,
		CreatedAt: e.now().UTC(),
	})
	if err != nil {
		log.Printf("record telemetry event event_type=%s session_id=%s err=%v", eventType, sessionID, err)
	}
}
