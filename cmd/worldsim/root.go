package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/talgya/automon-world/internal/catalog"
	"github.com/talgya/automon-world/internal/config"
	"github.com/talgya/automon-world/internal/engine"
	"github.com/talgya/automon-world/internal/llm"
	"github.com/talgya/automon-world/internal/persistence"
	"github.com/talgya/automon-world/internal/world"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the worldsim CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worldsim",
		Short: "AutoMon World - an autonomous creature-trainer simulation",
		Long: `worldsim runs a persistent world where AI trainers live, farm, trade,
catch AutoMons and battle each other, one tick at a time.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewResetCmd())
	cmd.AddCommand(NewSnapshotCmd())

	return cmd
}

// loadConfig resolves the configuration for cmd and installs the logger.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := setupLogging(cfg.LogLevel, cfg.LogFormat); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setupLogging installs the default slog handler.
func setupLogging(level, format string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	case "text":
		handler = slog.NewTextHandler(os.Stderr, opts)
	default:
		return fmt.Errorf("invalid log format %q: must be 'json' or 'text'", format)
	}

	slog.SetDefault(slog.New(handler))
	return nil
}

// openStore returns the SQLite store at cfg.DBPath, or an in-memory store
// when no path is configured. The DB is non-nil only for SQLite.
func openStore(cfg *config.Config) (persistence.Store, *persistence.DB, error) {
	if cfg.DBPath == "" {
		slog.Warn("no database path configured, world will not survive restarts")
		return persistence.NewMemory(), nil, nil
	}
	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	db, err := persistence.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	slog.Info("database opened", "path", cfg.DBPath)
	return db, db, nil
}

// newReasoner builds the configured reasoning backend. A missing credential
// is not an error: the simulation runs on the fallback ladder instead.
func newReasoner(ctx context.Context, cfg *config.Config) (llm.Reasoner, func(), error) {
	noop := func() {}
	switch cfg.Reasoner {
	case config.ReasonerAnthropic:
		c := llm.NewClient(cfg.AnthropicKey, llm.WithModel(cfg.Model), llm.WithRateLimit(cfg.RateLimit))
		if c == nil {
			slog.Warn(config.EnvAnthropicKey + " not set, trainers will use fallback decisions")
			return nil, noop, nil
		}
		slog.Info("reasoner enabled", "backend", c.Name())
		return c, noop, nil
	case config.ReasonerGemini:
		g, err := llm.NewGeminiClient(ctx, cfg.GeminiKey, cfg.Model)
		if errors.Is(err, llm.ErrNotConfigured) {
			slog.Warn(config.EnvGeminiKey + " not set, trainers will use fallback decisions")
			return nil, noop, nil
		}
		if err != nil {
			return nil, noop, err
		}
		slog.Info("reasoner enabled", "backend", g.Name())
		return g, func() { _ = g.Close() }, nil
	default:
		slog.Info("reasoner disabled, trainers will use fallback decisions")
		return nil, noop, nil
	}
}

func simOptions(cfg *config.Config) engine.Options {
	gen := world.DefaultGenConfig()
	gen.Seed = cfg.Seed
	gen.MaxEvents = cfg.MaxEvents
	return engine.Options{TicksPerDay: cfg.TicksPerDay, Gen: gen}
}

// NewResetCmd creates the reset subcommand.
func NewResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Reseed the stored world from its seed",
		Long: `Discard the stored world and regenerate it from the same seed. A
missing world is generated from the configured seed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			store, db, err := openStore(cfg)
			if err != nil {
				return err
			}
			if db != nil {
				defer db.Close()
			}

			sim := engine.NewSimulation(catalog.Default(), store, nil, simOptions(cfg))
			ctx := cmd.Context()
			if err := sim.Init(ctx); err != nil {
				return err
			}
			if err := sim.Reset(ctx); err != nil {
				return err
			}
			st := sim.State()
			cmd.Printf("world %s reset (seed %d)\n", st.WorldID, st.Seed)
			return nil
		},
	}
}

// NewSnapshotCmd creates the snapshot subcommand.
func NewSnapshotCmd() *cobra.Command {
	var withCatalog bool
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Print the stored world as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			store, db, err := openStore(cfg)
			if err != nil {
				return err
			}
			if db != nil {
				defer db.Close()
			}

			st, err := store.Load(cmd.Context())
			if err != nil {
				return fmt.Errorf("load world: %w", err)
			}
			if st == nil {
				return errors.New("no stored world; run or reset first")
			}
			snap := world.Snapshot{State: st}
			if withCatalog {
				snap.Catalog = catalog.Default()
			}
			return writeIndented(cmd, snap)
		},
	}
	cmd.Flags().BoolVar(&withCatalog, "catalog", false, "include the static catalog")
	return cmd
}
