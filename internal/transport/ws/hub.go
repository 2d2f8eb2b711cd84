// Package ws is the realtime gateway: it upgrades connections, binds them to
// session participants, relays inbound events to the game service, and fans
// outbound session events back to every connected client.
package ws

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/oligibbons/one-mind-many-sub000/internal/game/domain"
	"github.com/oligibbons/one-mind-many-sub000/internal/game/event"
)

// Envelope is the JSON frame exchanged in both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Hub tracks connected clients per session and implements the service
// broadcaster. Broadcasts never carry priority-track data.
type Hub struct {
	mu       sync.Mutex
	sessions map[string]map[*Client]struct{}
}

// NewHub builds an empty hub.
func NewHub() *Hub {
	return &Hub{sessions: map[string]map[*Client]struct{}{}}
}

func (h *Hub) register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients, ok := h.sessions[client.sessionID]
	if !ok {
		clients = map[*Client]struct{}{}
		h.sessions[client.sessionID] = clients
	}
	clients[client] = struct{}{}
}

func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients, ok := h.sessions[client.sessionID]
	if !ok {
		return
	}
	delete(clients, client)
	if len(clients) == 0 {
		delete(h.sessions, client.sessionID)
	}
}

// CloseSession disconnects every client of a session.
func (h *Hub) CloseSession(sessionID string) {
	h.mu.Lock()
	clients := h.sessions[sessionID]
	delete(h.sessions, sessionID)
	h.mu.Unlock()

	for client := range clients {
		client.close()
	}
}

// broadcast sends one envelope to every client of a session. A client whose
// send queue is full is dropped rather than allowed to stall the others.
func (h *Hub) broadcast(sessionID, eventType string, payload any) {
	frame, err := encodeEnvelope(eventType, payload)
	if err != nil {
		log.Printf("encode broadcast session_id=%s event_type=%s err=%v", sessionID, eventType, err)
		return
	}

	h.mu.Lock()
	clients := make([]*Client, 0, len(h.sessions[sessionID]))
	for client := range h.sessions[sessionID] {
		clients = append(clients, client)
	}
	h.mu.Unlock()

	for _, client := range clients {
		select {
		case client.send <- frame:
		default:
			log.Printf("dropping slow client session_id=%s connection_id=%s", sessionID, client.id)
			client.close()
		}
	}
}

func encodeEnvelope(eventType string, payload any) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		raw = encoded
	}
	return json.Marshal(Envelope{Type: eventType, Payload: raw})
}

// SessionStarted implements the service broadcaster.
func (h *Hub) SessionStarted(sessionID string, participantIDs []string) {
	h.broadcast(sessionID, "session:started", map[string]any{
		"session_id":   sessionID,
		"participants": participantIDs,
	})
}

// PhaseChanged implements the service broadcaster.
func (h *Hub) PhaseChanged(sessionID string, round int, phase domain.Phase) {
	h.broadcast(sessionID, "round:phase_changed", map[string]any{
		"round": round,
		"phase": phase,
	})
}

// ActionResolved implements the service broadcaster.
func (h *Hub) ActionResolved(sessionID string, evt event.Event) {
	h.broadcast(sessionID, "action:resolved", map[string]any{
		"narrative_event": evt,
	})
}

// SessionEnded implements the service broadcaster.
func (h *Hub) SessionEnded(sessionID string, winners []domain.Winner) {
	views := make([]map[string]any, 0, len(winners))
	for _, winner := range winners {
		views = append(views, map[string]any{
			"participant_id": winner.ParticipantID,
			"role":           winner.Role,
			"victory_points": winner.VictoryPoints,
			"reason":         winner.Reason,
		})
	}
	h.broadcast(sessionID, "session:ended", map[string]any{"winners": views})
}

// PresenceChanged implements the service broadcaster.
func (h *Hub) PresenceChanged(sessionID, participantID string, status domain.ConnectionStatus) {
	h.broadcast(sessionID, "presence:changed", map[string]any{
		"participant_id": participantID,
		"status":         status,
	})
}
