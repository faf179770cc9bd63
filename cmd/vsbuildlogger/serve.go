package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/vsbuildlogger/vsbuildlogger/internal/alerts"
	"github.com/vsbuildlogger/vsbuildlogger/internal/api"
	"github.com/vsbuildlogger/vsbuildlogger/internal/cache"
	"github.com/vsbuildlogger/vsbuildlogger/internal/config"
	"github.com/vsbuildlogger/vsbuildlogger/internal/correlate"
	"github.com/vsbuildlogger/vsbuildlogger/internal/dispatch"
	"github.com/vsbuildlogger/vsbuildlogger/internal/hostinfo"
	"github.com/vsbuildlogger/vsbuildlogger/internal/influx"
	"github.com/vsbuildlogger/vsbuildlogger/internal/ingest"
	"github.com/vsbuildlogger/vsbuildlogger/internal/metrics"
	"github.com/vsbuildlogger/vsbuildlogger/internal/status"
	"github.com/vsbuildlogger/vsbuildlogger/internal/ws"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the local telemetry daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(parent context.Context, opts *rootOptions) error {
	setupLogger(os.Stdout, opts.logLevel)

	slog.Info("vsbuildlogger starting", "config", opts.configPath)

	cfg, err := config.LoadOrDefaults(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded",
		"http_port", cfg.Listen.HTTPPort,
		"influx_variant", cfg.Influx.Variant,
		"auth_mode", cfg.Auth.Mode,
		"alert_rules", len(cfg.Alerts.Rules),
	)

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Machine facts are captured once and stamped onto every record.
	facts := hostinfo.Capture(ctx, hostinfo.Options{
		HostVersion: cfg.VSVersion,
		IncludeUser: cfg.IncludeUser,
	})
	slog.Info("host facts captured",
		"machine", facts.MachineName,
		"cpu_model", facts.CPUModel,
		"cpu_cores", facts.CPUCores,
	)

	provider := config.NewProvider(cfg)

	// Watch the config file for hot-reload. Skipped when the daemon runs
	// on built-in defaults with no file present.
	if _, statErr := os.Stat(opts.configPath); statErr == nil {
		go func() {
			if err := config.Watch(ctx, opts.configPath, func(updated *config.Config) {
				provider.Update(updated)
				slog.Info("config hot-reloaded", "influx_variant", updated.Influx.Variant)
			}); err != nil {
				slog.Error("config watcher stopped", "err", err)
			}
		}()
	}

	cacheDir := cfg.Cache.Dir
	if cacheDir == "" {
		cacheDir, err = cache.DefaultDir()
		if err != nil {
			return fmt.Errorf("resolve cache directory: %w", err)
		}
	}
	store := cache.New(cacheDir, cfg.Cache.MaxLines)
	slog.Info("retry cache ready", "path", store.Path())

	tracker := status.NewTracker()
	reg := prometheus.NewRegistry()
	rec := metrics.NewProm(reg)

	// Seed the cache depth so status reflects backlog left over from a
	// previous run before the first dispatch samples it.
	if n, linesErr := store.Lines(); linesErr == nil {
		tracker.SetCacheLines(n)
		rec.SetCacheLines(n)
	}

	// WebSocket hub pushes status lines and periodic summaries to clients.
	hub := ws.New(tracker, 5*time.Second)
	go hub.Run(ctx)

	sink := status.Multi(status.NewSlogSink(slog.Default()), hub)
	engine := alerts.New(cfg.Alerts)

	disp := dispatch.New(influx.New(nil), store, provider, sink, tracker, rec, engine, 0)
	dispDone := make(chan struct{})
	go func() {
		disp.Run(ctx)
		close(dispDone)
	}()

	corr := correlate.New(facts, disp, sink, tracker)
	loop := ingest.NewLoop(corr, rec, 0)
	go loop.Run(ctx)

	// Combined HTTP surface: event intake, observation API, WebSocket
	// stream, Prometheus metrics.
	guard := func(h http.Handler) http.Handler {
		return api.RequireKey(cfg.Auth.Mode, cfg.Auth.EffectiveHeader(), cfg.Auth.Key(), h)
	}
	mux := http.NewServeMux()
	mux.Handle("/api/v1/events", guard(ingest.NewHandler(loop)))
	mux.Handle("/api/v1/", guard(api.New(tracker, store, engine, provider, time.Now())))
	mux.Handle("/ws/stream", guard(hub))
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", cfg.Listen.HTTPPort),
		Handler: mux,
	}
	go func() {
		slog.Info("HTTP server listening", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("vsbuildlogger shutting down")
	httpSrv.Shutdown(context.Background()) //nolint:errcheck

	// The dispatch worker spills queued batches into the retry cache on
	// the way out; wait for it so those records reach disk.
	<-dispDone
	return nil
}
