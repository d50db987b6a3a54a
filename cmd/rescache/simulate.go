package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/djdv/go-rescache/internal/config"
	"github.com/djdv/go-rescache/internal/logging"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func simulateCmd() *cobra.Command {
	var (
		assets      string
		frames      int
		seed        int64
		metricsAddr string
		logLevel    string
		linger      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a deterministic frame loop against the asset caches",
		Long: "Load blobs and bundles from an asset directory in a seeded frame loop, " +
			"optionally exposing cache metrics, and print a statistics summary",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.DefaultConfig()
			if configFile != "" {
				var err error
				cfg, err = config.LoadFromFile(configFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
			}
			if err := config.LoadFromEnv(cfg); err != nil {
				return fmt.Errorf("environment: %w", err)
			}

			flags := cmd.Flags()
			if flags.Changed("assets") {
				cfg.Simulation.Assets = assets
			}
			if flags.Changed("frames") {
				cfg.Simulation.Frames = frames
			}
			if flags.Changed("seed") {
				cfg.Simulation.Seed = seed
			}
			if flags.Changed("metrics-addr") {
				cfg.Metrics.Addr = metricsAddr
			}
			if flags.Changed("log-level") {
				cfg.Log.Level = logLevel
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := logging.Init(cmd.ErrOrStderr(), cfg.Log.Format, cfg.Log.Level); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			runID := uuid.New()
			log := logging.With("simulate").With("run", runID.String())
			sim, err := newSimulation(cfg, os.DirFS(cfg.Simulation.Assets), log)
			if err != nil {
				return err
			}

			registry := prometheus.NewRegistry()
			if err := sim.registerPrometheus(registry); err != nil {
				return fmt.Errorf("register metrics: %w", err)
			}
			if cfg.Metrics.Addr != "" {
				shutdown, err := serveMetrics(cfg.Metrics.Addr, registry)
				if err != nil {
					return err
				}
				defer shutdown()
				log.Info("metrics endpoint started", "addr", cfg.Metrics.Addr)
			}
			var otelReport func(context.Context) error
			if cfg.Metrics.OTel {
				if otelReport, err = sim.registerOTel(); err != nil {
					return fmt.Errorf("register instruments: %w", err)
				}
			}

			log.Info("simulation started",
				"assets", cfg.Simulation.Assets,
				"frames", cfg.Simulation.Frames,
				"seed", cfg.Simulation.Seed,
				"policy", cfg.Cache.Policy,
				"memory_threshold", cfg.Cache.MemoryThreshold,
			)
			runErr := sim.run(ctx)
			if otelReport != nil {
				if err := otelReport(context.Background()); err != nil {
					log.Warn("collect instruments", "error", err)
				}
			}
			if err := sim.writeSummary(cmd.OutOrStdout()); err != nil {
				return err
			}
			if runErr != nil {
				return runErr
			}
			if cfg.Metrics.Addr != "" && linger > 0 {
				log.Info("serving metrics until interrupted", "linger", linger)
				select {
				case <-ctx.Done():
				case <-time.After(linger):
				}
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&assets, "assets", ".", "Asset directory")
	flags.IntVar(&frames, "frames", 600, "Number of frames to simulate")
	flags.Int64Var(&seed, "seed", 1, "Workload seed")
	flags.StringVar(&metricsAddr, "metrics-addr", "", "Address for the Prometheus /metrics endpoint")
	flags.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flags.DurationVar(&linger, "linger", 0, "Keep serving metrics this long after the run")
	return cmd
}

// serveMetrics starts an HTTP server exposing registry on /metrics.
// The returned function shuts it down.
func serveMetrics(addr string, registry *prometheus.Registry) (func(), error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.Serve(listener); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			logging.With("metrics").Error("metrics server failed", "error", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logging.With("metrics").Warn("metrics server shutdown", "error", err)
		}
	}, nil
}
