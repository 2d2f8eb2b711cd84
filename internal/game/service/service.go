// Package service orchestrates game sessions: it owns the registry of live
// engines, runs the lobby-to-session transition, routes inbound operations,
// and fans engine output out to persistence and the transport layer.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oligibbons/one-mind-many-sub000/internal/game/domain"
	"github.com/oligibbons/one-mind-many-sub000/internal/game/engine"
	"github.com/oligibbons/one-mind-many-sub000/internal/game/event"
	"github.com/oligibbons/one-mind-many-sub000/internal/game/narrator"
	apperrors "github.com/oligibbons/one-mind-many-sub000/internal/platform/errors"
	"github.com/oligibbons/one-mind-many-sub000/internal/platform/id"
	"github.com/oligibbons/one-mind-many-sub000/internal/platform/random"
	"github.com/oligibbons/one-mind-many-sub000/internal/scenario"
	"github.com/oligibbons/one-mind-many-sub000/internal/storage"
	"github.com/oligibbons/one-mind-many-sub000/internal/telemetry"
)

// Broadcaster relays outbound session events to connected clients.
type Broadcaster interface {
	SessionStarted(sessionID string, participantIDs []string)
	PhaseChanged(sessionID string, round int, phase domain.Phase)
	ActionResolved(sessionID string, evt event.Event)
	SessionEnded(sessionID string, winners []domain.Winner)
	PresenceChanged(sessionID, participantID string, status domain.ConnectionStatus)
}

// Member is one ready lobby member.
type Member struct {
	DisplayName string
	Ready       bool
}

// CreatedParticipant is one participant's private allocation from the
// lobby-to-session transition. The transport hands each player only their
// own entry.
type CreatedParticipant struct {
	ID             string   `json:"id"`
	DisplayName    string   `json:"display_name"`
	Role           string   `json:"role"`
	SubRoleID      string   `json:"sub_role_id,omitempty"`
	SecretIdentity string   `json:"secret_identity"`
	GoalPathID     string   `json:"goal_path_id,omitempty"`
	Hand           []string `json:"hand"`
}

// CreatedSession is the result of a successful lobby-to-session transition.
type CreatedSession struct {
	SessionID    string               `json:"session_id"`
	ScenarioID   string               `json:"scenario_id"`
	Participants []CreatedParticipant `json:"participants"`
}

// Options configures a GameService. Zero values pick production defaults.
type Options struct {
	Clock       func() time.Time
	IDGenerator func() (string, error)
	Seed        func() (int64, error)
	Timers      engine.Timers
	Engine      engine.Config
	Narrator    narrator.Narrator
}

// GameService owns every live session.
type GameService struct {
	mu      sync.Mutex
	engines map[string]*engine.Engine

	scenarios   *scenario.Registry
	store       storage.Store
	broadcaster Broadcaster
	emitter     *telemetry.Emitter

	clock     func() time.Time
	idGen     func() (string, error)
	seed      func() (int64, error)
	timers    engine.Timers
	engineCfg engine.Config
	narrate   narrator.Narrator

	// onSessionRemoved lets the server detach presence entries when a
	// session reaches its terminal state.
	onSessionRemoved func(sessionID string)
}

// New builds a GameService. store may be nil for purely in-memory play.
func New(scenarios *scenario.Registry, store storage.Store, broadcaster Broadcaster, emitter *telemetry.Emitter, opts Options) *GameService {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.IDGenerator == nil {
		opts.IDGenerator = id.NewID
	}
	if opts.Seed == nil {
		opts.Seed = random.NewSeed
	}
	if opts.Timers == nil {
		opts.Timers = engine.WallTimers{}
	}
	defaults := engine.DefaultConfig()
	if opts.Engine.PlanningDuration <= 0 {
		opts.Engine.PlanningDuration = defaults.PlanningDuration
	}
	if opts.Engine.SubmissionDuration <= 0 {
		opts.Engine.SubmissionDuration = defaults.SubmissionDuration
	}
	if opts.Engine.DeductionDuration <= 0 {
		opts.Engine.DeductionDuration = defaults.DeductionDuration
	}
	return &GameService{
		engines:     map[string]*engine.Engine{},
		scenarios:   scenarios,
		store:       store,
		broadcaster: broadcaster,
		emitter:     emitter,
		clock:       opts.Clock,
		idGen:       opts.IDGenerator,
		seed:        opts.Seed,
		timers:      opts.Timers,
		engineCfg:   opts.Engine,
		narrate:     narrator.WithFallback(opts.Narrator),
	}
}

// SetSessionRemovedHook registers a callback invoked after a session leaves
// the registry.
func (s *GameService) SetSessionRemovedHook(hook func(sessionID string)) {
	s.onSessionRemoved = hook
}

// CreateSession validates a ready lobby and produces a running session in one
// atomic step. Role, sub-role, identity, and track allocation happen here; a
// storage failure rolls everything back so no half-initialized session is
// ever registered.
func (s *GameService) CreateSession(ctx context.Context, scenarioID string, members []Member) (CreatedSession, error) {
	def, err := s.scenarios.Get(scenarioID)
	if err != nil {
		if errors.Is(err, scenario.ErrNotFound) {
			return CreatedSession{}, apperrors.WithMetadata(apperrors.CodeScenarioNotFound,
				"unknown scenario", map[string]string{"scenario_id": scenarioID})
		}
		return CreatedSession{}, fmt.Errorf("load scenario: %w", err)
	}
	if len(members) < scenario.MinPlayers || len(members) > scenario.MaxPlayers {
		return CreatedSession{}, apperrors.WithMetadata(apperrors.CodeSessionMemberCount,
			"sessions take 3 to 6 participants",
			map[string]string{"count": fmt.Sprintf("%d", len(members))})
	}
	seen := make(map[string]struct{}, len(members))
	for _, member := range members {
		if !member.Ready {
			return CreatedSession{}, apperrors.New(apperrors.CodeSessionMembersNotReady,
				"every lobby member must be ready")
		}
		name := strings.TrimSpace(member.DisplayName)
		if name == "" {
			return CreatedSession{}, apperrors.New(apperrors.CodeParticipantEmptyName,
				"every lobby member needs a display name")
		}
		if _, dup := seen[name]; dup {
			return CreatedSession{}, apperrors.WithMetadata(apperrors.CodeParticipantAlreadyJoined,
				"display name is already taken in this lobby",
				map[string]string{"display_name": name})
		}
		seen[name] = struct{}{}
	}
	pool, ok := def.PoolFor(len(members))
	if !ok {
		return CreatedSession{}, apperrors.WithMetadata(apperrors.CodeScenarioPoolExhausted,
			"the scenario has no role pool for this player count",
			map[string]string{"count": fmt.Sprintf("%d", len(members))})
	}

	seed, err := s.seed()
	if err != nil {
		return CreatedSession{}, fmt.Errorf("seed session rng: %w", err)
	}
	rng := rand.New(rand.NewSource(seed))

	roles, err := allocateRoles(pool, rng)
	if err != nil {
		return CreatedSession{}, err
	}
	identities, err := allocateIdentities(def.SecretIdentities, len(members), rng)
	if err != nil {
		return CreatedSession{}, err
	}
	goalPaths := allocateGoalPaths(def.GoalPaths, rng)

	session, err := domain.CreateSession(domain.CreateSessionInput{
		ScenarioID:    def.ID,
		StartLocation: def.StartLocation,
		Resources:     def.Resources,
	}, s.clock, s.idGen)
	if err != nil {
		return CreatedSession{}, fmt.Errorf("create session: %w", err)
	}

	participants := make([]*domain.Participant, 0, len(members))
	created := CreatedSession{SessionID: session.ID, ScenarioID: def.ID}
	for i, member := range members {
		input := domain.CreateParticipantInput{
			DisplayName:    member.DisplayName,
			Role:           roles[i],
			SecretIdentity: identities[i],
			Hand:           def.StartingHand,
		}
		if len(def.SubRoles) > 0 {
			input.SubRoleID = def.SubRoles[rng.Intn(len(def.SubRoles))].ID
		}
		if roles[i] == domain.RoleRogue {
			if len(goalPaths) == 0 {
				return CreatedSession{}, apperrors.New(apperrors.CodeScenarioPoolExhausted,
					"the scenario has fewer goal paths than rogues")
			}
			input.GoalPathID = goalPaths[0]
			goalPaths = goalPaths[1:]
		}
		participant, err := domain.CreateParticipant(input, s.clock, s.idGen)
		if err != nil {
			return CreatedSession{}, fmt.Errorf("create participant: %w", err)
		}
		participants = append(participants, &participant)
		created.Participants = append(created.Participants, CreatedParticipant{
			ID:             participant.ID,
			DisplayName:    participant.DisplayName,
			Role:           string(participant.Role),
			SubRoleID:      participant.SubRoleID,
			SecretIdentity: participant.SecretIdentity,
			GoalPathID:     participant.GoalPathID,
			Hand:           append([]string(nil), participant.Hand...),
		})
	}

	// The initial track is a pseudo-random permutation so resolution order
	// is undiscoverable by construction.
	ids := make([]string, len(participants))
	for i, index := range rng.Perm(len(participants)) {
		ids[i] = participants[index].ID
	}
	session.Track = domain.NewTrack(ids)

	if s.store != nil {
		record := storage.SessionRecord{
			ID:               session.ID,
			ScenarioID:       session.ScenarioID,
			Status:           string(domain.StatusActive),
			Round:            1,
			ParticipantCount: len(participants),
			CreatedAt:        session.CreatedAt,
			UpdatedAt:        session.CreatedAt,
		}
		if err := s.store.SaveSession(ctx, record); err != nil {
			// Roll back: nothing was registered, the allocation is dropped.
			return CreatedSession{}, apperrors.Wrap(apperrors.CodeStorageUnavailable,
				"persist session record", err)
		}
	}

	notifier := &sessionNotifier{
		svc:              s,
		sessionID:        session.ID,
		scenarioID:       session.ScenarioID,
		participantCount: len(participants),
		createdAt:        session.CreatedAt,
	}
	eng := engine.New(&session, participants, def, rng, s.clock, s.timers, notifier, s.narrate, s.engineCfg)

	s.mu.Lock()
	s.engines[session.ID] = eng
	s.mu.Unlock()

	participantIDs := make([]string, len(participants))
	for i, participant := range participants {
		participantIDs[i] = participant.ID
	}
	if s.broadcaster != nil {
		s.broadcaster.SessionStarted(session.ID, participantIDs)
	}
	s.emitter.Emit(ctx, "session.started", session.ID, map[string]any{
		"scenario_id":  session.ScenarioID,
		"participants": len(participants),
	})
	log.Printf("session started session_id=%s scenario_id=%s participants=%d",
		session.ID, session.ScenarioID, len(participants))

	eng.Start()
	return created, nil
}

// lookup fetches a live engine without holding the registry lock across the
// call into it.
func (s *GameService) lookup(sessionID string) (*engine.Engine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	eng, ok := s.engines[sessionID]
	if !ok {
		return nil, apperrors.WithMetadata(apperrors.CodeSessionNotFound,
			"no live session with this id", map[string]string{"session_id": sessionID})
	}
	return eng, nil
}

// SubmitAction routes an action submission to its session.
func (s *GameService) SubmitAction(_ context.Context, sessionID, participantID string, actionType domain.ActionType, target domain.Target, intention string) error {
	eng, err := s.lookup(sessionID)
	if err != nil {
		return err
	}
	return eng.SubmitAction(participantID, actionType, target, intention)
}

// IntentionOptions lists the intention tags available for a candidate action.
func (s *GameService) IntentionOptions(_ context.Context, sessionID, participantID string, actionType domain.ActionType, target domain.Target) ([]string, error) {
	eng, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	return eng.IntentionOptions(participantID, actionType, target)
}

// RequestPause records a pause vote.
func (s *GameService) RequestPause(_ context.Context, sessionID, participantID string) error {
	eng, err := s.lookup(sessionID)
	if err != nil {
		return err
	}
	return eng.RequestPause(participantID)
}

// ReleasePause lifts an active pause.
func (s *GameService) ReleasePause(_ context.Context, sessionID, participantID string) error {
	eng, err := s.lookup(sessionID)
	if err != nil {
		return err
	}
	return eng.ReleasePause(participantID)
}

// Leave converts a deliberate departure into the disconnect flow.
func (s *GameService) Leave(_ context.Context, sessionID, participantID string) error {
	eng, err := s.lookup(sessionID)
	if err != nil {
		return err
	}
	eng.Leave(participantID)
	return nil
}

// Disconnected opens a participant's reconnection grace window.
func (s *GameService) Disconnected(sessionID, participantID string) {
	eng, err := s.lookup(sessionID)
	if err != nil {
		return
	}
	eng.SetConnection(participantID, domain.ConnectionGracePeriod)
}

// TakeOver flips a participant to automated control after their grace window
// lapses.
func (s *GameService) TakeOver(sessionID, participantID string) {
	eng, err := s.lookup(sessionID)
	if err != nil {
		return
	}
	eng.SetConnection(participantID, domain.ConnectionAIControlled)
	s.emitter.Emit(context.Background(), "participant.taken_over", sessionID, map[string]any{
		"participant_id": participantID,
	})
	log.Printf("participant taken over session_id=%s participant_id=%s", sessionID, participantID)
}

// Reconnect restores a participant's manual control.
func (s *GameService) Reconnect(_ context.Context, sessionID, participantID string) error {
	eng, err := s.lookup(sessionID)
	if err != nil {
		return err
	}
	eng.SetConnection(participantID, domain.ConnectionConnected)
	return nil
}

// Snapshot returns a session's read-only state. Live sessions answer from
// memory; ended sessions fall back to the durable record.
func (s *GameService) Snapshot(ctx context.Context, sessionID string) ([]byte, error) {
	eng, err := s.lookup(sessionID)
	if err == nil {
		return eng.Snapshot()
	}
	if s.store == nil {
		return nil, err
	}
	record, storeErr := s.store.GetSession(ctx, sessionID)
	if storeErr != nil {
		if errors.Is(storeErr, storage.ErrNotFound) {
			return nil, err
		}
		return nil, apperrors.Wrap(apperrors.CodeStorageUnavailable, "read session record", storeErr)
	}
	encoded, marshalErr := json.Marshal(sessionRecordView(record))
	if marshalErr != nil {
		return nil, fmt.Errorf("encode session record: %w", marshalErr)
	}
	return encoded, nil
}

// CheckState evaluates a candidate game-state document against a scenario
// and returns the rule violations found. Nothing is mutated.
func (s *GameService) CheckState(scenarioID string, raw []byte) ([]string, error) {
	def, err := s.scenarios.Get(scenarioID)
	if err != nil {
		if errors.Is(err, scenario.ErrNotFound) {
			return nil, apperrors.WithMetadata(apperrors.CodeScenarioNotFound,
				"unknown scenario", map[string]string{"scenario_id": scenarioID})
		}
		return nil, fmt.Errorf("load scenario: %w", err)
	}
	return engine.CheckState(def, raw), nil
}

// removeSession drops an ended session from the registry.
func (s *GameService) removeSession(sessionID string) {
	s.mu.Lock()
	delete(s.engines, sessionID)
	s.mu.Unlock()
	if s.onSessionRemoved != nil {
		s.onSessionRemoved(sessionID)
	}
}

// recordView is the admin view of an ended session read back from storage.
type recordView struct {
	SessionID        string          `json:"session_id"`
	ScenarioID       string          `json:"scenario_id"`
	Status           string          `json:"status"`
	Round            int             `json:"round"`
	ParticipantCount int             `json:"participant_count"`
	Winners          json.RawMessage `json:"winners,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	EndedAt          *time.Time      `json:"ended_at,omitempty"`
}

func sessionRecordView(record storage.SessionRecord) recordView {
	return recordView{
		SessionID:        record.ID,
		ScenarioID:       record.ScenarioID,
		Status:           record.Status,
		Round:            record.Round,
		ParticipantCount: record.ParticipantCount,
		Winners:          json.RawMessage(record.WinnersJSON),
		CreatedAt:        record.CreatedAt,
		UpdatedAt:        record.UpdatedAt,
		EndedAt:          record.EndedAt,
	}
}

// allocateRoles shuffles the pool's role distribution across the seats.
func allocateRoles(pool scenario.RolePool, rng *rand.Rand) ([]domain.Role, error) {
	roles := make([]domain.Role, 0, pool.Players)
	for i := 0; i < pool.Collaborators; i++ {
		roles = append(roles, domain.RoleCollaborator)
	}
	for i := 0; i < pool.Saboteurs; i++ {
		roles = append(roles, domain.RoleSaboteur)
	}
	for i := 0; i < pool.Rogues; i++ {
		roles = append(roles, domain.RoleRogue)
	}
	if len(roles) != pool.Players {
		return nil, apperrors.WithMetadata(apperrors.CodeScenarioPoolExhausted,
			"role pool does not cover the player count",
			map[string]string{"players": fmt.Sprintf("%d", pool.Players)})
	}
	rng.Shuffle(len(roles), func(i, j int) {
		roles[i], roles[j] = roles[j], roles[i]
	})
	return roles, nil
}

// allocateIdentities deals count distinct secret identity labels.
func allocateIdentities(available []string, count int, rng *rand.Rand) ([]string, error) {
	if len(available) < count {
		return nil, apperrors.New(apperrors.CodeScenarioPoolExhausted,
			"the scenario has fewer secret identities than participants")
	}
	shuffled := append([]string(nil), available...)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled[:count], nil
}

// allocateGoalPaths shuffles the scenario's goal paths so rogues draw
// distinct goals.
func allocateGoalPaths(paths []scenario.GoalPath, rng *rand.Rand) []string {
	ids := make([]string, len(paths))
	for i, path := range paths {
		ids[i] = path.ID
	}
	rng.Shuffle(len(ids), func(i, j int) {
		ids[i], ids[j] = ids[j], ids[i]
	})
	return ids
}
