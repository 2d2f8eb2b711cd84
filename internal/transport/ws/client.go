package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/oligibbons/one-mind-many-sub000/internal/game/domain"
	apperrors "github.com/oligibbons/one-mind-many-sub000/internal/platform/errors"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 << 10
)

// Client is one websocket connection bound to a session participant.
type Client struct {
	gateway *Gateway

	id            string
	sessionID     string
	participantID string

	conn *websocket.Conn
	send chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// submitRequest is the payload of a submit_action frame.
type submitRequest struct {
	ActionType string        `json:"action_type"`
	Target     targetRequest `json:"target"`
	Intention  string        `json:"intention,omitempty"`
}

type targetRequest struct {
	Kind string `json:"kind,omitempty"`
	ID   string `json:"id,omitempty"`
	Cell int    `json:"cell,omitempty"`
}

func (t targetRequest) toDomain() domain.Target {
	kind := domain.TargetKind(t.Kind)
	if t.Kind == "" {
		kind = domain.TargetNone
	}
	return domain.Target{Kind: kind, ID: t.ID, Cell: t.Cell}
}

// readPump parses inbound envelopes and relays them to the game service.
// Errors are reported back on this connection only.
func (c *Client) readPump() {
	defer func() {
		c.gateway.detach(c)
		c.close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("ws read session_id=%s connection_id=%s err=%v", c.sessionID, c.id, err)
			}
			return
		}

		var envelope Envelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			c.sendError("envelope", fmt.Errorf("malformed frame: %w", err))
			continue
		}
		if err := c.handle(envelope); err != nil {
			c.sendError(envelope.Type, err)
		}
	}
}

func (c *Client) handle(envelope Envelope) error {
	ctx := context.Background()
	switch envelope.Type {
	case "submit_action":
		var req submitRequest
		if len(envelope.Payload) > 0 {
			if err := json.Unmarshal(envelope.Payload, &req); err != nil {
				return fmt.Errorf("malformed submit payload: %w", err)
			}
		}
		return c.gateway.game.SubmitAction(ctx, c.sessionID, c.participantID,
			domain.ActionType(req.ActionType), req.Target.toDomain(), req.Intention)
	case "intention_options":
		var req submitRequest
		if len(envelope.Payload) > 0 {
			if err := json.Unmarshal(envelope.Payload, &req); err != nil {
				return fmt.Errorf("malformed intention payload: %w", err)
			}
		}
		options, err := c.gateway.game.IntentionOptions(ctx, c.sessionID, c.participantID,
			domain.ActionType(req.ActionType), req.Target.toDomain())
		if err != nil {
			return err
		}
		return c.reply("intention:options", map[string]any{"options": options})
	case "request_pause":
		return c.gateway.game.RequestPause(ctx, c.sessionID, c.participantID)
	case "release_pause":
		return c.gateway.game.ReleasePause(ctx, c.sessionID, c.participantID)
	case "leave":
		if err := c.gateway.game.Leave(ctx, c.sessionID, c.participantID); err != nil {
			return err
		}
		c.close()
		return nil
	default:
		return fmt.Errorf("unknown event type %q", envelope.Type)
	}
}

// reply queues a frame for this connection only.
func (c *Client) reply(eventType string, payload any) error {
	frame, err := encodeEnvelope(eventType, payload)
	if err != nil {
		return err
	}
	select {
	case c.send <- frame:
		return nil
	case <-c.done:
		return fmt.Errorf("connection closed")
	}
}

func (c *Client) sendError(scope string, cause error) {
	code := apperrors.CodeOf(cause)
	if err := c.reply("error", map[string]any{
		"scope":   scope,
		"code":    code,
		"message": cause.Error(),
	}); err != nil {
		log.Printf("ws error reply session_id=%s connection_id=%s err=%v", c.sessionID, c.id, err)
	}
}

// writePump serializes all writes for the connection and keeps it alive
// with periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
