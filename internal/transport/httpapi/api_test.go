package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/oligibbons/one-mind-many-sub000/internal/game/service"
	"github.com/oligibbons/one-mind-many-sub000/internal/platform/errors"
	"github.com/oligibbons/one-mind-many-sub000/internal/scenario"
	"github.com/oligibbons/one-mind-many-sub000/internal/transport/token"
)

type fakeGameService struct {
	created     service.CreatedSession
	createErr   error
	snapshot    []byte
	snapshotErr error
	violations  []string
	checkErr    error

	gotScenarioID string
	gotMembers    []service.Member
}

func (f *fakeGameService) CreateSession(_ context.Context, scenarioID string, members []service.Member) (service.CreatedSession, error) {
	f.gotScenarioID = scenarioID
	f.gotMembers = members
	return f.created, f.createErr
}

func (f *fakeGameService) Snapshot(context.Context, string) ([]byte, error) {
	return f.snapshot, f.snapshotErr
}

func (f *fakeGameService) CheckState(string, []byte) ([]string, error) {
	return f.violations, f.checkErr
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func newTestAPI(t *testing.T, game *fakeGameService, storage Pinger) (*API, *token.Manager) {
	t.Helper()
	registry, err := scenario.LoadEmbedded()
	if err != nil {
		t.Fatalf("load embedded scenarios: %v", err)
	}
	tokens, err := token.NewManager([]byte("test-key"), time.Hour, time.Now)
	if err != nil {
		t.Fatalf("new token manager: %v", err)
	}
	return New(game, registry, tokens, storage, nil), tokens
}

func TestHealthReportsStorageState(t *testing.T) {
	api, _ := newTestAPI(t, &fakeGameService{}, fakePinger{})
	rec := httptest.NewRecorder()
	api.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"storage":"ok"`) {
		t.Fatalf("expected storage ok, got %s", rec.Body.String())
	}

	broken, _ := newTestAPI(t, &fakeGameService{}, fakePinger{err: context.DeadlineExceeded})
	rec = httptest.NewRecorder()
	broken.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rec.Code)
	}
}

func TestListScenariosIncludesEmbedded(t *testing.T) {
	api, _ := newTestAPI(t, &fakeGameService{}, nil)
	rec := httptest.NewRecorder()
	api.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/scenarios", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "the-serpents-hour") {
		t.Fatalf("expected embedded scenario in listing, got %s", rec.Body.String())
	}
}

func TestGetScenarioUnknownIs404(t *testing.T) {
	api, _ := newTestAPI(t, &fakeGameService{}, nil)
	rec := httptest.NewRecorder()
	api.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/scenarios/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), string(errors.CodeScenarioNotFound)) {
		t.Fatalf("expected scenario not found code, got %s", rec.Body.String())
	}
}

func TestCreateSessionIssuesAnIdentityTokenPerParticipant(t *testing.T) {
	game := &fakeGameService{created: service.CreatedSession{
		SessionID:  "sess-1",
		ScenarioID: "the-serpents-hour",
		Participants: []service.CreatedParticipant{
			{ID: "p1", DisplayName: "Abbess", Role: "collaborator"},
			{ID: "p2", DisplayName: "Novice", Role: "saboteur"},
		},
	}}
	api, tokens := newTestAPI(t, game, nil)

	body := `{"scenario_id":"the-serpents-hour","members":[{"display_name":"Abbess","ready":true},{"display_name":"Novice","ready":true}]}`
	rec := httptest.NewRecorder()
	api.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sessions", strings.NewReader(body)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if game.gotScenarioID != "the-serpents-hour" || len(game.gotMembers) != 2 {
		t.Fatalf("expected forwarded lobby, got %q %v", game.gotScenarioID, game.gotMembers)
	}

	var resp createSessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Participants) != 2 {
		t.Fatalf("expected 2 participants, got %d", len(resp.Participants))
	}
	for _, participant := range resp.Participants {
		identity, err := tokens.Verify(participant.Token)
		if err != nil {
			t.Fatalf("verify token: %v", err)
		}
		if identity.SessionID != "sess-1" || identity.ParticipantID != participant.ID {
			t.Fatalf("expected token bound to participant, got %+v", identity)
		}
	}
}

func TestCreateSessionMapsDomainErrorsToStatus(t *testing.T) {
	game := &fakeGameService{createErr: errors.New(errors.CodeSessionMemberCount, "need between 3 and 6 members")}
	api, _ := newTestAPI(t, game, nil)

	body := `{"scenario_id":"the-serpents-hour","members":[]}`
	rec := httptest.NewRecorder()
	api.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sessions", strings.NewReader(body)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), string(errors.CodeSessionMemberCount)) {
		t.Fatalf("expected member count code, got %s", rec.Body.String())
	}
}

func TestCreateSessionRejectsMalformedBody(t *testing.T) {
	api, _ := newTestAPI(t, &fakeGameService{}, nil)
	rec := httptest.NewRecorder()
	api.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sessions", strings.NewReader("{not json")))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestSnapshotPassesRawStateThrough(t *testing.T) {
	game := &fakeGameService{snapshot: []byte(`{"session_id":"sess-1","round":3}`)}
	api, _ := newTestAPI(t, game, nil)
	rec := httptest.NewRecorder()
	api.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/sess-1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if rec.Body.String() != `{"session_id":"sess-1","round":3}` {
		t.Fatalf("expected passthrough body, got %s", rec.Body.String())
	}
}

func TestSnapshotUnknownSessionIs404(t *testing.T) {
	game := &fakeGameService{snapshotErr: errors.New(errors.CodeSessionNotFound, "session not found")}
	api, _ := newTestAPI(t, game, nil)
	rec := httptest.NewRecorder()
	api.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
}

func TestCheckStateReportsViolations(t *testing.T) {
	game := &fakeGameService{violations: []string{"round 99 exceeds max rounds"}}
	api, _ := newTestAPI(t, game, nil)
	rec := httptest.NewRecorder()
	api.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/scenarios/the-serpents-hour/check", strings.NewReader(`{}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"valid":false`) {
		t.Fatalf("expected invalid verdict, got %s", rec.Body.String())
	}

	clean := &fakeGameService{}
	api, _ = newTestAPI(t, clean, nil)
	rec = httptest.NewRecorder()
	api.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/scenarios/the-serpents-hour/check", strings.NewReader(`{}`)))
	if !strings.Contains(rec.Body.String(), `"valid":true`) {
		t.Fatalf("expected valid verdict, got %s", rec.Body.String())
	}
}
