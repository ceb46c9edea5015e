// Kestrel - Real-time AML transaction monitoring.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opensource-finance/kestrel/internal/alerts"
	"github.com/opensource-finance/kestrel/internal/api"
	"github.com/opensource-finance/kestrel/internal/bus"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/engine"
	"github.com/opensource-finance/kestrel/internal/ledger"
	"github.com/opensource-finance/kestrel/internal/patterns"
	"github.com/opensource-finance/kestrel/internal/rules"
	"github.com/opensource-finance/kestrel/internal/rulestore"
	"github.com/opensource-finance/kestrel/internal/stream"
	"github.com/opensource-finance/kestrel/internal/velocity"
	"github.com/opensource-finance/kestrel/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("KESTREL_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting kestrel",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()
	if os.Getenv("KESTREL_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"velocity", cfg.Velocity.Backend,
		"rulestore", cfg.RuleStore.Driver,
		"eventbus", cfg.EventBus.Type,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize rule store
	store, err := rulestore.New(cfg.RuleStore)
	if err != nil {
		slog.Error("failed to initialize rule store", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("rule store initialized", "driver", cfg.RuleStore.Driver)

	// Initialize event bus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize velocity tracker
	tracker, err := newTracker(cfg.Velocity)
	if err != nil {
		slog.Error("failed to initialize velocity tracker", "error", err)
		os.Exit(1)
	}
	defer tracker.Close()
	slog.Info("velocity tracker initialized", "backend", cfg.Velocity.Backend)

	// Initialize custom rule engine and load persisted rules
	custom, err := rules.NewCustomEngine()
	if err != nil {
		slog.Error("failed to initialize custom rule engine", "error", err)
		os.Exit(1)
	}
	defer custom.Close()

	if err := loadRulesFromStore(ctx, store, custom); err != nil {
		slog.Error("failed to load custom rules", "error", err)
		os.Exit(1)
	}
	slog.Info("custom rule engine initialized", "rules_count", custom.RulesCount())

	// Assemble the scoring pipeline
	scorer := rules.NewEngine(tracker, custom, nil)
	eng := engine.New(scorer, ledger.New(), patterns.NewAggregator(), alerts.NewManager())
	slog.Info("risk engine initialized")

	// Initialize WebSocket hub with replay of recent activity
	hub := stream.NewHub(logger, eng.RecentTransactions)
	go hub.Run(ctx)

	// Bridge bus traffic into the live feed
	if err := bridgeBusToHub(ctx, busImpl, hub); err != nil {
		slog.Error("failed to subscribe hub to event bus", "error", err)
		os.Exit(1)
	}

	// Start async ingest worker
	ingestWorker := worker.NewWorker(busImpl, eng)
	if err := ingestWorker.Start(); err != nil {
		slog.Error("failed to start ingest worker", "error", err)
		os.Exit(1)
	}

	// Initialize HTTP server
	srv := api.NewServer(cfg.Server, eng, custom, store, busImpl, hub, Version)

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("kestrel is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop the worker before the bus goes away
	if err := ingestWorker.Stop(); err != nil {
		slog.Error("failed to stop ingest worker", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("kestrel shutdown complete")
}

// newTracker selects the velocity backend from configuration.
func newTracker(cfg domain.VelocityConfig) (velocity.Tracker, error) {
	switch cfg.Backend {
	case "redis":
		return velocity.NewRedisTracker(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.MaxWindow)
	case "memory", "":
		return velocity.NewMemoryTracker(cfg.MaxWindow), nil
	default:
		return nil, fmt.Errorf("unsupported velocity backend: %s", cfg.Backend)
	}
}

// loadRulesFromStore loads persisted custom rules into the engine.
// All custom rules are configured via POST /rules - no hardcoded defaults.
func loadRulesFromStore(ctx context.Context, store rulestore.Store, custom *rules.CustomEngine) error {
	configs, err := store.ListEnabledRuleConfigs(ctx)
	if err != nil {
		slog.Warn("failed to list rules from store", "error", err)
		return nil // Start with empty rules - they can be added via API
	}

	if len(configs) > 0 {
		slog.Info("loading custom rules from store", "count", len(configs))
		return custom.ReloadRules(configs)
	}

	slog.Info("no custom rules in store - configure via POST /rules API")
	return nil
}

// bridgeBusToHub forwards assessed transactions and alerts to the
// WebSocket feed, so both the HTTP path and async producers show up in
// live dashboards.
func bridgeBusToHub(ctx context.Context, b domain.EventBus, hub *stream.Hub) error {
	_, err := b.Subscribe(ctx, domain.TopicTransactionAssessed, func(ctx context.Context, msg *domain.Message) error {
		var atx domain.AssessedTransaction
		if err := json.Unmarshal(msg.Payload, &atx); err != nil {
			return err
		}
		hub.BroadcastTransaction(&atx)
		return nil
	})
	if err != nil {
		return err
	}

	_, err = b.Subscribe(ctx, domain.TopicAlertRaised, func(ctx context.Context, msg *domain.Message) error {
		var alert domain.Alert
		if err := json.Unmarshal(msg.Payload, &alert); err != nil {
			return err
		}
		hub.BroadcastAlert(&alert)
		return nil
	})
	return err
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║               🦅 KESTREL                  ║")
	fmt.Println("  ║     Real-Time AML Risk Scoring Engine     ║")
	fmt.Println("  ║      Every transaction, watched.          ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /transactions       - Score a transaction")
	fmt.Println("    GET  /transactions       - List recent assessments")
	fmt.Println("    GET  /alerts             - List active alerts")
	fmt.Println("    POST /alerts/acknowledge - Acknowledge an alert")
	fmt.Println("    GET  /patterns           - Pattern detection counts")
	fmt.Println("    GET  /export             - Download compliance report")
	fmt.Println("    GET  /rules              - List custom rules")
	fmt.Println("    POST /rules              - Create a custom rule")
	fmt.Println("    POST /rules/reload       - Hot-reload rules from store")
	fmt.Println("    GET  /stream             - Live WebSocket feed")
	fmt.Println("    GET  /health             - Health check")
	fmt.Println()
}
