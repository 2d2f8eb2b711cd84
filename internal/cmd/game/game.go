// Package game parses game command flags and starts the session server.
package game

import (
	"context"
	"flag"
	"time"

	"github.com/oligibbons/one-mind-many-sub000/internal/app/server"
	"github.com/oligibbons/one-mind-many-sub000/internal/game/engine"
	entrypoint "github.com/oligibbons/one-mind-many-sub000/internal/platform/cmd"
)

// Config holds game command configuration.
type Config struct {
	Addr        string        `env:"ONE_MIND_MANY_GAME_ADDR" envDefault:":8080"`
	StoragePath string        `env:"ONE_MIND_MANY_GAME_DB_PATH"`
	ScenarioDir string        `env:"ONE_MIND_MANY_SCENARIO_DIR"`
	TokenKey    string        `env:"ONE_MIND_MANY_TOKEN_KEY"`
	TokenTTL    time.Duration `env:"ONE_MIND_MANY_TOKEN_TTL"`
	GraceWindow time.Duration `env:"ONE_MIND_MANY_GRACE_WINDOW"`
	Planning    time.Duration `env:"ONE_MIND_MANY_PLANNING_DURATION"`
	Submission  time.Duration `env:"ONE_MIND_MANY_SUBMISSION_DURATION"`
	Deduction   time.Duration `env:"ONE_MIND_MANY_DEDUCTION_DURATION"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "The game server listen address")
	fs.StringVar(&cfg.StoragePath, "db", cfg.StoragePath, "The sqlite database path (empty disables persistence)")
	fs.StringVar(&cfg.ScenarioDir, "scenarios", cfg.ScenarioDir, "A directory of extra scenario definitions")
	fs.StringVar(&cfg.TokenKey, "token-key", cfg.TokenKey, "The identity token signing key")
	fs.DurationVar(&cfg.GraceWindow, "grace-window", cfg.GraceWindow, "The reconnect window before AI takeover")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the game session server.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceGame, func(ctx context.Context) error {
		return server.Run(ctx, server.Config{
			Addr:        cfg.Addr,
			StoragePath: cfg.StoragePath,
			ScenarioDir: cfg.ScenarioDir,
			TokenKey:    cfg.TokenKey,
			TokenTTL:    cfg.TokenTTL,
			GraceWindow: cfg.GraceWindow,
			Engine: engine.Config{
				PlanningDuration:   cfg.Planning,
				SubmissionDuration: cfg.Submission,
				DeductionDuration:  cfg.Deduction,
			},
		})
	})
}
