// Package server assembles the game service: storage, scenarios, presence,
// the websocket hub, and the HTTP surface, served until the context ends.
package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/oligibbons/one-mind-many-sub000/internal/game/engine"
	"github.com/oligibbons/one-mind-many-sub000/internal/game/service"
	"github.com/oligibbons/one-mind-many-sub000/internal/presence"
	"github.com/oligibbons/one-mind-many-sub000/internal/scenario"
	"github.com/oligibbons/one-mind-many-sub000/internal/storage"
	"github.com/oligibbons/one-mind-many-sub000/internal/storage/sqlite"
	"github.com/oligibbons/one-mind-many-sub000/internal/telemetry"
	"github.com/oligibbons/one-mind-many-sub000/internal/transport/httpapi"
	"github.com/oligibbons/one-mind-many-sub000/internal/transport/token"
	"github.com/oligibbons/one-mind-many-sub000/internal/transport/ws"
)

const shutdownTimeout = 10 * time.Second

// Config holds everything the server needs to start.
type Config struct {
	// Addr is the listen address, for example ":8080".
	Addr string
	// StoragePath is the sqlite database path. Empty disables persistence.
	StoragePath string
	// ScenarioDir holds extra scenario definitions loaded over the embedded set.
	ScenarioDir string
	// TokenKey signs participant identity tokens. Empty generates an ephemeral
	// key, which invalidates tokens across restarts.
	TokenKey string
	// TokenTTL bounds identity token lifetime. Zero picks the manager default.
	TokenTTL time.Duration
	// GraceWindow is how long a disconnected participant can reconnect before
	// the shared character submits for them.
	GraceWindow time.Duration
	// Engine overrides phase durations. Zero values pick engine defaults.
	Engine engine.Config
}

// Server hosts the HTTP and websocket surfaces of the game service.
type Server struct {
	listener   net.Listener
	httpServer *http.Server
	store      storage.Store
	hub        *ws.Hub
	game       *service.GameService
}

// New builds a fully wired server listening on cfg.Addr.
func New(cfg Config) (*Server, error) {
	registry, err := scenario.LoadEmbedded()
	if err != nil {
		return nil, fmt.Errorf("load embedded scenarios: %w", err)
	}
	if cfg.ScenarioDir != "" {
		if err := registry.LoadDir(cfg.ScenarioDir); err != nil {
			return nil, fmt.Errorf("load scenario dir %s: %w", cfg.ScenarioDir, err)
		}
	}

	var store storage.Store
	if cfg.StoragePath != "" {
		store, err = sqlite.Open(cfg.StoragePath)
		if err != nil {
			return nil, fmt.Errorf("open storage: %w", err)
		}
		log.Printf("storage opened path=%s", cfg.StoragePath)
	} else {
		log.Printf("storage disabled, sessions are not persisted")
	}

	key := cfg.TokenKey
	if key == "" {
		key, err = ephemeralKey()
		if err != nil {
			closeStore(store)
			return nil, err
		}
		log.Printf("generated ephemeral token key, tokens will not survive restarts")
	}
	tokens, err := token.NewManager([]byte(key), cfg.TokenTTL, time.Now)
	if err != nil {
		closeStore(store)
		return nil, fmt.Errorf("new token manager: %w", err)
	}

	hub := ws.NewHub()
	emitter := telemetry.NewEmitter(store, time.Now)
	game := service.New(registry, store, hub, emitter, service.Options{Engine: cfg.Engine})

	grace := cfg.GraceWindow
	if grace <= 0 {
		grace = presence.DefaultGraceWindow
	}
	tracker := presence.NewTracker(grace, presence.WallTimerFactory, func(sessionID, participantID string) {
		game.TakeOver(sessionID, participantID)
	})
	game.SetSessionRemovedHook(func(sessionID string) {
		tracker.RemoveSession(sessionID)
		hub.CloseSession(sessionID)
	})

	gateway := ws.NewGateway(hub, game, tokens, tracker)
	api := httpapi.New(game, registry, tokens, store, gateway)

	addr := cfg.Addr
	if addr == "" {
		addr = ":8080"
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		closeStore(store)
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	return &Server{
		listener:   listener,
		httpServer: &http.Server{Handler: api.Router()},
		store:      store,
		hub:        hub,
		game:       game,
	}, nil
}

// Addr returns the bound listen address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Run builds a server from cfg and serves it until the context ends.
func Run(ctx context.Context, cfg Config) error {
	srv, err := New(cfg)
	if err != nil {
		return err
	}
	return srv.Serve(ctx)
}

// Serve blocks until the listener fails or the context ends, then drains
// in-flight requests and closes storage.
func (s *Server) Serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log.Printf("server listening addr=%v", s.listener.Addr())

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := s.httpServer.Serve(s.listener); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	})

	err := group.Wait()
	closeStore(s.store)
	return err
}

func ephemeralKey() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate token key: %w", err)
	}
	return hex.EncodeToString(raw), nil
}

func closeStore(store storage.Store) {
	if store == nil {
		return
	}
	if err := store.Close(); err != nil {
		log.Printf("close storage err=%v", err)
	}
}
