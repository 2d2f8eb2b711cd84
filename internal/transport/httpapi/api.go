// Package httpapi is the REST surface: lobby-to-session creation, session
// snapshots, scenario listing, and state validation. Realtime play happens on
// the websocket gateway mounted under /ws.
package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/oligibbons/one-mind-many-sub000/internal/game/service"
	apperrors "github.com/oligibbons/one-mind-many-sub000/internal/platform/errors"
	"github.com/oligibbons/one-mind-many-sub000/internal/scenario"
	"github.com/oligibbons/one-mind-many-sub000/internal/transport/token"
)

const maxRequestBody = 1 << 20

// GameService is the slice of the game service the API exposes.
type GameService interface {
	CreateSession(ctx context.Context, scenarioID string, members []service.Member) (service.CreatedSession, error)
	Snapshot(ctx context.Context, sessionID string) ([]byte, error)
	CheckState(scenarioID string, raw []byte) ([]string, error)
}

// Pinger reports storage reachability for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// API holds the handler dependencies.
type API struct {
	game      GameService
	scenarios *scenario.Registry
	tokens    *token.Manager
	storage   Pinger
	gateway   http.Handler
}

// New wires the API. storage and gateway may be nil; the corresponding
// surfaces degrade instead of failing to mount.
func New(game GameService, scenarios *scenario.Registry, tokens *token.Manager, storage Pinger, gateway http.Handler) *API {
	return &API{game: game, scenarios: scenarios, tokens: tokens, storage: storage, gateway: gateway}
}

// Router builds the chi router with the standard middleware stack.
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", a.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/scenarios", a.handleListScenarios)
		r.Get("/scenarios/{scenarioID}", a.handleGetScenario)
		r.Post("/scenarios/{scenarioID}/check", a.handleCheckState)
		r.Post("/sessions", a.handleCreateSession)
		r.Get("/sessions/{sessionID}", a.handleSnapshot)
	})
	if a.gateway != nil {
		r.Get("/ws", a.gateway.ServeHTTP)
	}
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(wrapped, r)
		log.Printf("http request method=%s path=%s status=%d duration=%s request_id=%s",
			r.Method, r.URL.Path, wrapped.Status(), time.Since(start), middleware.GetReqID(r.Context()))
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]string{"status": "ok"}
	if a.storage != nil {
		if err := a.storage.Ping(r.Context()); err != nil {
			health["status"] = "degraded"
			health["storage"] = "unavailable"
			writeJSON(w, http.StatusServiceUnavailable, health)
			return
		}
		health["storage"] = "ok"
	}
	writeJSON(w, http.StatusOK, health)
}

type scenarioSummary struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	MinPlayers int    `json:"min_players"`
	MaxPlayers int    `json:"max_players"`
	MaxRounds  int    `json:"max_rounds"`
}

func (a *API) handleListScenarios(w http.ResponseWriter, _ *http.Request) {
	ids := a.scenarios.IDs()
	summaries := make([]scenarioSummary, 0, len(ids))
	for _, id := range ids {
		def, err := a.scenarios.Get(id)
		if err != nil {
			continue
		}
		summaries = append(summaries, scenarioSummary{
			ID:         def.ID,
			Name:       def.Name,
			MinPlayers: scenario.MinPlayers,
			MaxPlayers: scenario.MaxPlayers,
			MaxRounds:  def.MaxRounds,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"scenarios": summaries})
}

func (a *API) handleGetScenario(w http.ResponseWriter, r *http.Request) {
	def, err := a.scenarios.Get(chi.URLParam(r, "scenarioID"))
	if err != nil {
		writeError(w, apperrors.Wrap(apperrors.CodeScenarioNotFound, "scenario not found", err))
		return
	}
	writeJSON(w, http.StatusOK, def)
}

type createSessionRequest struct {
	ScenarioID string `json:"scenario_id"`
	Members    []struct {
		DisplayName string `json:"display_name"`
		Ready       bool   `json:"ready"`
	} `json:"members"`
}

type createdParticipantView struct {
	service.CreatedParticipant
	Token string `json:"token"`
}

type createSessionResponse struct {
	SessionID    string                   `json:"session_id"`
	ScenarioID   string                   `json:"scenario_id"`
	Participants []createdParticipantView `json:"participants"`
}

func (a *API) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	members := make([]service.Member, 0, len(req.Members))
	for _, member := range req.Members {
		members = append(members, service.Member{DisplayName: member.DisplayName, Ready: member.Ready})
	}

	created, err := a.game.CreateSession(r.Context(), req.ScenarioID, members)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := createSessionResponse{SessionID: created.SessionID, ScenarioID: created.ScenarioID}
	for _, participant := range created.Participants {
		raw, err := a.tokens.Issue(token.Identity{
			SessionID:     created.SessionID,
			ParticipantID: participant.ID,
			DisplayName:   participant.DisplayName,
		})
		if err != nil {
			writeError(w, apperrors.Wrap(apperrors.CodeUnknown, "issue identity token", err))
			return
		}
		resp.Participants = append(resp.Participants, createdParticipantView{
			CreatedParticipant: participant,
			Token:              raw,
		})
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (a *API) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	raw, err := a.game.Snapshot(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

func (a *API) handleCheckState(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		writeError(w, apperrors.Wrap(apperrors.CodeUnknown, "read request body", err))
		return
	}
	violations, err := a.game.CheckState(chi.URLParam(r, "scenarioID"), raw)
	if err != nil {
		writeError(w, err)
		return
	}
	if violations == nil {
		violations = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"valid":      len(violations) == 0,
		"violations": violations,
	})
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return apperrors.Wrap(apperrors.CodeActionMalformed, "malformed request body", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("encode response err=%v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := apperrors.CodeOf(err)
	writeJSON(w, code.HTTPStatus(), map[string]any{
		"error": map[string]string{
			"code":    string(code),
			"message": err.Error(),
		},
	})
}
