package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	natsadapter "github.com/samirrijal/geosampler/internal/adapters/nats"
	"github.com/samirrijal/geosampler/internal/adapters/postgres"
	"github.com/samirrijal/geosampler/internal/adapters/statsapi"
	"github.com/samirrijal/geosampler/internal/adapters/valkey"
	"github.com/samirrijal/geosampler/internal/core/ports"
	"github.com/samirrijal/geosampler/internal/core/usecases"
	"github.com/samirrijal/geosampler/internal/pkg/config"
	"github.com/samirrijal/geosampler/internal/pkg/logging"
	"github.com/samirrijal/geosampler/internal/pkg/telemetry"
	"github.com/samirrijal/geosampler/internal/workflows"
)

func main() {
	cfg, err := config.Load("geosampler-extractor")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "info"
	}
	logging.Setup(level, "json", "geosampler-extractor")

	ctx := context.Background()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Sessions are shared with the API, so the worker needs the database.
	if !cfg.Database.Enabled() {
		log.Fatal("database.host is required by the extraction worker")
	}
	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	sessions := postgres.NewSessionRepo(db)

	var cache ports.CacheService
	if cfg.Valkey.Addr != "" {
		vc, err := valkey.New(cfg.Valkey.Addr, cfg.Valkey.KeyPrefix)
		if err != nil {
			slog.Warn("valkey unavailable", "error", err)
		} else {
			defer vc.Close()
			cache = vc
		}
	}

	var publisher ports.EventPublisher
	if cfg.NATS.URL != "" {
		pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats unavailable", "error", err)
		} else {
			defer pub.Close()
			publisher = pub
		}
	}

	provider := statsapi.New(cfg.Stats.BaseURL, time.Duration(cfg.Stats.TimeoutSeconds)*time.Second)
	extraction := usecases.NewExtractionService(sessions, provider, publisher, cache, cfg.Stats.CacheTTLSeconds)

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    slog.Default(),
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})

	w.RegisterWorkflow(workflows.ExtractionWorkflow)
	w.RegisterActivity(&workflows.ExtractionActivities{
		Sessions:   sessions,
		Extraction: extraction,
	})

	slog.Info("extraction worker started", "task_queue", cfg.Temporal.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
