package service

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/oligibbons/one-mind-many-sub000/internal/game/domain"
	"github.com/oligibbons/one-mind-many-sub000/internal/game/event"
	"github.com/oligibbons/one-mind-many-sub000/internal/storage"
)

// persistTimeout bounds each best-effort storage write made from an engine
// callback.
const persistTimeout = 5 * time.Second

// sessionNotifier adapts one engine's output into broadcast, persistence,
// and telemetry. Persistence is best effort: a storage failure is logged and
// in-memory play continues.
type sessionNotifier struct {
	svc              *GameService
	sessionID        string
	scenarioID       string
	participantCount int
	createdAt        time.Time
	// lastRound remembers the round most recently broadcast so the terminal
	// record carries it. Engine callbacks for one session never interleave.
	lastRound int
}

func (n *sessionNotifier) PhaseChanged(sessionID string, round int, phase domain.Phase) {
	n.lastRound = round
	if n.svc.broadcaster != nil {
		n.svc.broadcaster.PhaseChanged(sessionID, round, phase)
	}
	n.persistRecord(string(domain.StatusActive), round, nil, nil)
}

func (n *sessionNotifier) ActionResolved(sessionID string, evt event.Event) {
	if n.svc.broadcaster != nil {
		n.svc.broadcaster.ActionResolved(sessionID, evt)
	}
}

func (n *sessionNotifier) SessionEnded(sessionID string, winners []domain.Winner) {
	winnersJSON, err := json.Marshal(winnerViews(winners))
	if err != nil {
		log.Printf("encode winners session_id=%s err=%v", sessionID, err)
		winnersJSON = nil
	}
	endedAt := n.svc.clock().UTC()
	n.persistRecord(string(domain.StatusEnded), n.lastRound, winnersJSON, &endedAt)

	if n.svc.broadcaster != nil {
		n.svc.broadcaster.SessionEnded(sessionID, winners)
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	n.svc.emitter.Emit(ctx, "session.ended", sessionID, map[string]any{
		"winners": len(winners),
	})
	n.svc.removeSession(sessionID)
}

func (n *sessionNotifier) PresenceChanged(sessionID, participantID string, status domain.ConnectionStatus) {
	if n.svc.broadcaster != nil {
		n.svc.broadcaster.PresenceChanged(sessionID, participantID, status)
	}
}

func (n *sessionNotifier) EventAppended(sessionID string, evt event.Event) {
	if n.svc.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	err := n.svc.store.AppendEvent(ctx, storage.EventRecord{
		SessionID: sessionID,
		EventID:   evt.ID,
		Round:     evt.Round,
		Kind:      string(evt.Kind),
		Type:      evt.Type,
		Timestamp: evt.Timestamp,
		Payload:   evt.PayloadJSON,
	})
	if err != nil {
		log.Printf("journal event session_id=%s event_id=%d err=%v", sessionID, evt.ID, err)
	}
}

// persistRecord upserts the session record.
func (n *sessionNotifier) persistRecord(status string, round int, winnersJSON []byte, endedAt *time.Time) {
	if n.svc.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	record := storage.SessionRecord{
		ID:               n.sessionID,
		ScenarioID:       n.scenarioID,
		Status:           status,
		Round:            round,
		ParticipantCount: n.participantCount,
		WinnersJSON:      winnersJSON,
		CreatedAt:        n.createdAt,
		UpdatedAt:        n.svc.clock().UTC(),
		EndedAt:          endedAt,
	}
	if err := n.svc.store.SaveSession(ctx, record); err != nil {
		log.Printf("persist session record session_id=%s err=%v", n.sessionID, err)
	}
}

// winnerView is the serialized winner shape shared by storage and transport.
type winnerView struct {
	ParticipantID string `json:"participant_id"`
	Role          string `json:"role"`
	VictoryPoints int    `json:"victory_points"`
	Reason        string `json:"reason"`
}

func winnerViews(winners []domain.Winner) []winnerView {
	views := make([]winnerView, 0, len(winners))
	for _, winner := range winners {
		views = append(views, winnerView{
			ParticipantID: winner.ParticipantID,
			Role:          string(winner.Role),
			VictoryPoints: winner.VictoryPoints,
			Reason:        winner.Reason,
		})
	}
	return views
}
