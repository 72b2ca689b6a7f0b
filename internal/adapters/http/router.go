package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/geosampler/internal/pkg/metrics"
)

const requestTimeout = 15 * time.Second

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	app.Use(requestid.New())
	app.Use(RequestIDLogMiddleware())
	app.Use(AccessLogMiddleware())

	// Rate limiting: 120 requests per minute per IP
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited",
				"too many requests, please try again later")
		},
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	app.Use(ETagMiddleware())
	app.Use(CachingMiddleware())

	// Health & readiness (no timeout, fast internal checks)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	withTimeout := func(h fiber.Handler) fiber.Handler {
		return timeout.NewWithContext(h, requestTimeout)
	}

	extractTimeout := deps.ExtractTimeout
	if extractTimeout <= 0 {
		extractTimeout = requestTimeout
	}

	sessions := app.Group("/v1/sessions")
	sessions.Post("/", withTimeout(CreateSessionHandler(deps)))
	sessions.Get("/:id", withTimeout(GetSessionHandler(deps)))
	sessions.Delete("/:id", withTimeout(DeleteSessionHandler(deps)))
	sessions.Put("/:id/roi", withTimeout(ReplaceROIHandler(deps)))
	sessions.Post("/:id/raster", withTimeout(MarkRasterHandler(deps)))
	sessions.Post("/:id/grid", withTimeout(GenerateGridHandler(deps)))
	sessions.Get("/:id/grid", withTimeout(GetGridHandler(deps)))
	sessions.Delete("/:id/grid", withTimeout(ClearGridHandler(deps)))
	sessions.Get("/:id/grid/estimate", withTimeout(EstimateGridHandler(deps)))
	sessions.Get("/:id/points/nearest", withTimeout(NearestPointHandler(deps)))
	sessions.Post("/:id/extract", timeout.NewWithContext(ExtractHandler(deps), extractTimeout))
	sessions.Get("/:id/table", withTimeout(TableHandler(deps)))
	sessions.Get("/:id/export", withTimeout(ExportHandler(deps)))

	app.Post("/graphql", GraphQLHandler(deps))

	// API documentation (Swagger UI)
	SetupDocs(app)

	// WebSocket session events need NATS
	if deps.NATS == nil {
		app.Get("/ws", func(c *fiber.Ctx) error {
			return errUnavailable(c, "live session events are not configured")
		})
		return
	}
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(WebSocketHandler(deps.NATS)))
}
