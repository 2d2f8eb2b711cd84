package ws

import (
	"context"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/oligibbons/one-mind-many-sub000/internal/game/domain"
	"github.com/oligibbons/one-mind-many-sub000/internal/presence"
	"github.com/oligibbons/one-mind-many-sub000/internal/transport/token"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// GameAPI is the slice of the game service the gateway drives.
type GameAPI interface {
	SubmitAction(ctx context.Context, sessionID, participantID string, actionType domain.ActionType, target domain.Target, intention string) error
	IntentionOptions(ctx context.Context, sessionID, participantID string, actionType domain.ActionType, target domain.Target) ([]string, error)
	RequestPause(ctx context.Context, sessionID, participantID string) error
	ReleasePause(ctx context.Context, sessionID, participantID string) error
	Leave(ctx context.Context, sessionID, participantID string) error
	Reconnect(ctx context.Context, sessionID, participantID string) error
	Disconnected(sessionID, participantID string)
}

// Gateway upgrades HTTP requests, authenticates participants, and bridges
// websocket traffic to the game service and presence tracker.
type Gateway struct {
	hub     *Hub
	game    GameAPI
	tokens  *token.Manager
	tracker *presence.Tracker
}

// NewGateway wires the gateway dependencies.
func NewGateway(hub *Hub, game GameAPI, tokens *token.Manager, tracker *presence.Tracker) *Gateway {
	return &Gateway{hub: hub, game: game, tokens: tokens, tracker: tracker}
}

// ServeHTTP authenticates the identity token from the token query parameter,
// upgrades the connection, and attaches it to the participant's session.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identity, err := g.tokens.Verify(r.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, "invalid identity token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade session_id=%s err=%v", identity.SessionID, err)
		return
	}

	client := &Client{
		gateway:       g,
		id:            uuid.New().String(),
		sessionID:     identity.SessionID,
		participantID: identity.ParticipantID,
		conn:          conn,
		send:          make(chan []byte, 32),
		done:          make(chan struct{}),
	}

	g.hub.register(client)
	wasAway := g.tracker.Connect(client.sessionID, client.participantID, client.id)
	if wasAway {
		if err := g.game.Reconnect(r.Context(), client.sessionID, client.participantID); err != nil {
			log.Printf("reconnect session_id=%s participant_id=%s err=%v",
				client.sessionID, client.participantID, err)
		}
	}
	log.Printf("ws connected session_id=%s participant_id=%s connection_id=%s",
		client.sessionID, client.participantID, client.id)

	go client.writePump()
	go client.readPump()
}

// detach runs when a client's read loop exits. The presence tracker opens the
// reconnect window; takeover only happens if it expires.
func (g *Gateway) detach(client *Client) {
	g.hub.unregister(client)

	if _, _, ok := g.tracker.Lookup(client.id); !ok {
		// A newer connection already replaced this one.
		return
	}
	g.tracker.Disconnect(client.id)
	g.game.Disconnected(client.sessionID, client.participantID)
	log.Printf("ws disconnected session_id=%s participant_id=%s connection_id=%s",
		client.sessionID, client.participantID, client.id)
}
