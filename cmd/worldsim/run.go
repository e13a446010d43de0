package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/talgya/automon-world/internal/api"
	"github.com/talgya/automon-world/internal/catalog"
	"github.com/talgya/automon-world/internal/config"
	"github.com/talgya/automon-world/internal/engine"
	"github.com/talgya/automon-world/internal/observability"
	"github.com/talgya/automon-world/internal/policy"
)

// NewRunCmd creates the run subcommand.
func NewRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the world and serve the HTTP API",
		Long: `Load the stored world (or generate one from the seed), start ticking
and serve the observation API until interrupted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWorld(ctx, cmd, cfg)
		},
	}
}

func runWorld(ctx context.Context, cmd *cobra.Command, cfg *config.Config) error {
	slog.Info("AutoMon World starting", "version", version)

	// ── Store ─────────────────────────────────────────────────────────
	store, db, err := openStore(cfg)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	// ── Decision policy ──────────────────────────────────────────────
	metrics := observability.New()
	reasoner, closeReasoner, err := newReasoner(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeReasoner()

	cat := catalog.Default()
	pol := policy.New(cat, reasoner, cfg.Timeout)
	pol.Observer = metrics

	// ── Simulation ────────────────────────────────────────────────────
	opts := simOptions(cfg)
	opts.Metrics = metrics
	sim := engine.NewSimulation(cat, store, pol, opts)
	if err := sim.Init(ctx); err != nil {
		return err
	}
	st := sim.State()
	slog.Info("world ready",
		"world_id", st.WorldID,
		"seed", st.Seed,
		"tick", st.Tick,
		"trainers", len(st.Trainers),
	)

	sched := engine.NewScheduler(sim, cfg.TickInterval, cfg.Speeds)
	if cfg.AutoStart {
		sched.Start(ctx)
	} else {
		slog.Info("autostart disabled, waiting for a resume command")
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	apiErr := make(chan error, 1)
	if cfg.Addr != "" {
		if cfg.AdminKey == "" {
			slog.Warn(config.EnvAdminKey + " not set, control endpoint will be disabled")
		}
		srv := &api.Server{
			Sim:      sim,
			Sched:    sched,
			Metrics:  metrics.Handler(),
			Addr:     cfg.Addr,
			AdminKey: cfg.AdminKey,
		}
		if db != nil {
			srv.Archive = db
		}
		go func() { apiErr <- srv.Start(ctx) }()
		cmd.Printf("API: http://localhost%s/api/v1/status\n", cfg.Addr)
	}
	if st.Tick > 0 {
		cmd.Printf("Resuming from tick %d (day %d)\n", st.Tick, st.Day)
	}
	cmd.Println("Simulation running... (Ctrl+C to stop)")

	var runErr error
	select {
	case <-ctx.Done():
		slog.Info("shutting down")
		sched.Pause()
		if cfg.Addr != "" {
			if err := <-apiErr; err != nil {
				runErr = fmt.Errorf("http api: %w", err)
			}
		}
	case err := <-apiErr:
		sched.Pause()
		if err != nil {
			runErr = fmt.Errorf("http api: %w", err)
		}
	}
	cmd.Printf("Simulation stopped at tick %d.\n", sim.State().Tick)
	return runErr
}

// writeIndented prints v as indented JSON on the command's output.
func writeIndented(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
