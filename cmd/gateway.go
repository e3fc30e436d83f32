package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nextlevelbuilder/sigclaw/internal/claude"
	"github.com/nextlevelbuilder/sigclaw/internal/config"
	"github.com/nextlevelbuilder/sigclaw/internal/gateway"
	"github.com/nextlevelbuilder/sigclaw/internal/httpapi"
	"github.com/nextlevelbuilder/sigclaw/internal/metrics"
	sig "github.com/nextlevelbuilder/sigclaw/internal/signal"
	"github.com/nextlevelbuilder/sigclaw/internal/telemetry"
)

func runGateway() {
	// Setup structured logging
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	// Load config
	cfgPath := resolveConfigPath()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	shutdownTelemetry, err := telemetry.Setup(ctx, cfg.Telemetry, Version)
	if err != nil {
		slog.Error("telemetry setup failed", "error", err)
		os.Exit(1)
	}

	// Transport: use an external signal-cli-api when configured, otherwise
	// spawn and own one.
	apiURL := cfg.APIURL
	var managed *sig.ManagedAPI
	if apiURL == "" {
		managed, err = sig.StartManagedAPI(ctx, cfg.Port)
		if err != nil {
			slog.Error("failed to start managed signal-cli-api", "error", err)
			os.Exit(1)
		}
		apiURL = managed.URL
	}

	client := sig.NewClient(apiURL, cfg.Account, cfg.TmpDir)
	runner := claude.NewRunner(cfg.ClaudeBinary)
	m := metrics.New()

	dispatcher := gateway.New(ctx, cfg, client, runner, m, Version)
	defer dispatcher.Stop()

	// Config hot-reload is how an operator approves pending senders
	// without a restart: edit the allow list, the gateway picks it up.
	if err := config.Watch(ctx, cfgPath, func(next *config.Config) {
		dispatcher.SetAllowed(next.AllowedSenders())
		slog.Info("allow list reloaded", "allowed", dispatcher.AllowedCount())
	}); err != nil {
		slog.Warn("config watcher unavailable", "error", err)
	}

	if ttl, _ := cfg.SessionTTLDuration(); ttl > 0 {
		dispatcher.StartSweeper(ctx, time.Minute)
	}

	stats := httpapi.NewServer(cfg.StatsAddr, func() httpapi.Snapshot {
		return httpapi.Snapshot{
			UptimeSecs:       uint64(m.Uptime().Seconds()),
			Messages:         m.Messages.Load(),
			ActiveSessions:   dispatcher.SessionCount(),
			AllowedSenders:   dispatcher.AllowedCount(),
			PendingSenders:   dispatcher.PendingCount(),
			RateLimited:      m.RateLimited.Load(),
			EchoesDropped:    m.EchoesDropped.Load(),
			Errors:           m.Errors.Load(),
			TruncatedReplies: m.TruncatedReplies.Load(),
			TotalCostUSD:     m.TotalCostUSD(),
			Model:            dispatcher.Model(),
			Version:          Version,
		}
	})
	statsAddr, err := stats.Start()
	if err != nil {
		slog.Error("stats server failed to start", "error", err)
		os.Exit(1)
	}

	listener := sig.NewListener(apiURL, cfg.Account, dispatcher.HandleInbound)
	go listener.Run(ctx)

	slog.Info("sigclaw gateway started",
		"version", Version,
		"account", cfg.Account,
		"api_url", apiURL,
		"model", cfg.Model,
		"allowed", dispatcher.AllowedCount(),
		"stats", statsAddr,
	)

	s := <-sigCh
	slog.Info("graceful shutdown initiated", "signal", s)

	cancel()
	dispatcher.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := stats.Shutdown(shutdownCtx); err != nil {
		slog.Warn("stats server shutdown", "error", err)
	}
	if managed != nil {
		managed.Stop()
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		slog.Warn("telemetry shutdown", "error", err)
	}
}
