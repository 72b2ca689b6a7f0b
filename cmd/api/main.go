package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/robfig/cron/v3"
	"go.temporal.io/sdk/client"

	"github.com/samirrijal/geosampler/internal/adapters/http"
	"github.com/samirrijal/geosampler/internal/adapters/memory"
	natsadapter "github.com/samirrijal/geosampler/internal/adapters/nats"
	"github.com/samirrijal/geosampler/internal/adapters/postgres"
	"github.com/samirrijal/geosampler/internal/adapters/s3"
	"github.com/samirrijal/geosampler/internal/adapters/statsapi"
	"github.com/samirrijal/geosampler/internal/adapters/valkey"
	"github.com/samirrijal/geosampler/internal/core/domain"
	"github.com/samirrijal/geosampler/internal/core/ports"
	"github.com/samirrijal/geosampler/internal/core/usecases"
	"github.com/samirrijal/geosampler/internal/pkg/config"
	"github.com/samirrijal/geosampler/internal/pkg/logging"
	"github.com/samirrijal/geosampler/internal/pkg/metrics"
	"github.com/samirrijal/geosampler/internal/pkg/telemetry"
	"github.com/samirrijal/geosampler/internal/report"
	"github.com/samirrijal/geosampler/internal/workflows"
)

func main() {
	cfg, err := config.Load("geosampler-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logging.Setup(envOr("LOG_LEVEL", "info"), envOr("LOG_FORMAT", "json"), "geosampler-api")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	deps := &http.Dependencies{
		Grid: http.GridLimits{
			DefaultSpacing:  cfg.Grid.DefaultSpacing,
			FallbackSpacing: cfg.Grid.FallbackSpacing,
			MinSpacing:      cfg.Grid.MinSpacing,
			MaxSpacing:      cfg.Grid.MaxSpacing,
		},
		ExtractTimeout: time.Duration(cfg.Stats.TimeoutSeconds+5) * time.Second,
	}

	// Session store: Postgres when configured, otherwise process memory
	var sessions ports.SessionRepository
	var db *postgres.DB
	if cfg.Database.Enabled() {
		db, err = postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer db.Close()
		sessions = postgres.NewSessionRepo(db)
		deps.DB = db
	} else {
		slog.Warn("database.host not set, sessions are kept in memory")
		sessions = memory.NewSessionRepo()
	}

	// Cache
	var cache ports.CacheService
	if cfg.Valkey.Addr != "" {
		vc, err := valkey.New(cfg.Valkey.Addr, cfg.Valkey.KeyPrefix)
		if err != nil {
			slog.Warn("valkey unavailable", "error", err)
		} else {
			defer vc.Close()
			cache = vc
			deps.Cache = vc
		}
	}

	// NATS
	var publisher ports.EventPublisher
	if cfg.NATS.URL != "" {
		pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats unavailable", "error", err)
		} else {
			defer pub.Close()
			publisher = pub
		}

		// Raw NATS connection for WebSocket relay
		natsConn, err := natsadapter.RawConn(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats ws conn unavailable", "error", err)
		} else {
			defer natsConn.Close()
			deps.NATS = natsConn
		}
	}

	// Export archive
	var archiver ports.ExportArchiver
	if cfg.Export.S3Bucket != "" {
		a, err := s3.New(ctx, s3.Options{
			Bucket:   cfg.Export.S3Bucket,
			Region:   cfg.Export.S3Region,
			Endpoint: cfg.Export.S3Endpoint,
		})
		if err != nil {
			slog.Warn("export archive unavailable", "error", err)
		} else {
			archiver = a
		}
	}

	// Use cases
	provider := statsapi.New(cfg.Stats.BaseURL, time.Duration(cfg.Stats.TimeoutSeconds)*time.Second)
	deps.Sessions = usecases.NewSessionService(sessions, publisher, cfg.Grid.MaxPoints)
	deps.Extraction = usecases.NewExtractionService(sessions, provider, publisher, cache, cfg.Stats.CacheTTLSeconds)
	deps.Exports = usecases.NewExportService(sessions, archiver, cfg.Export.S3Prefix)

	// Async extraction runs in cmd/extractor, which needs the shared database.
	if cfg.Temporal.Enabled {
		if db == nil {
			slog.Warn("temporal.enabled ignored: async extraction requires database.host")
		} else {
			tc, err := client.Dial(client.Options{
				HostPort:  cfg.Temporal.HostPort,
				Namespace: cfg.Temporal.Namespace,
				Logger:    slog.Default(),
			})
			if err != nil {
				slog.Warn("temporal unavailable", "error", err)
			} else {
				defer tc.Close()
				deps.Extraction.WithStarter(workflows.NewStarter(tc, cfg.Temporal.TaskQueue))
			}
		}
	}

	// Archive a CSV copy of every attached statistics set.
	if archiver != nil && publisher != nil {
		sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
		if err != nil {
			slog.Warn("export archive subscriber unavailable", "error", err)
		} else {
			defer sub.Close()
			if err := sub.SubscribeStatsAttached(ctx, cfg.NATS.ArchiveDurable, archiveOnAttach(deps.Exports)); err != nil {
				slog.Warn("subscribe stats.attached failed", "error", err)
			}
		}
	}

	// Janitor: purge idle sessions, refresh pool gauges
	janitor := cron.New()
	idleTTL := time.Duration(cfg.Sessions.IdleTTLMinutes) * time.Minute
	if _, err := janitor.AddFunc(cfg.Sessions.PurgeSchedule, func() {
		n, err := deps.Sessions.PurgeIdle(ctx, idleTTL)
		if err != nil {
			slog.Error("purge idle sessions", "error", err)
			return
		}
		if n > 0 {
			slog.Info("purged idle sessions", "count", n, "ttl", idleTTL.String())
		}
	}); err != nil {
		log.Fatalf("sessions.purge_schedule: %v", err)
	}
	if db != nil {
		_, _ = janitor.AddFunc("@every 15s", func() {
			metrics.UpdateDBPoolMetrics(db.Pool.Stat())
		})
	}
	janitor.Start()

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    4 * 1024 * 1024, // drawn ROIs can carry many vertices
		AppName:      "GeoSampler API",
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.CORSOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, If-None-Match",
		ExposeHeaders:    "Content-Disposition, Link, ETag, X-Archive-Location",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	<-janitor.Stop().Done()

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}

// archiveOnAttach stores a CSV export when a session's statistics are
// attached. Sessions that lost their stats or were deleted since are skipped.
func archiveOnAttach(exports *usecases.ExportService) func(context.Context, natsadapter.SessionEvent) error {
	return func(ctx context.Context, event natsadapter.SessionEvent) error {
		file, err := exports.Export(ctx, event.SessionID, report.FormatCSV)
		if errors.Is(err, domain.ErrNoData) || errors.Is(err, domain.ErrSessionNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		location, err := exports.Archive(ctx, event.SessionID, file)
		if err != nil {
			slog.Warn("archive export failed", "session_id", event.SessionID, "error", err)
			return err
		}
		slog.Info("export archived", "session_id", event.SessionID, "generation", event.Generation, "location", location)
		return nil
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
