package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/geoviewer/internal/pkg/metrics"
)

const requestTimeout = 30 * time.Second

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

	// Rate limiting: 600 requests per minute per IP. Camera moves are chatty.
	app.Use(limiter.New(limiter.Config{
		Max:        600,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, 429, "rate_limited", "too many requests, please try again later")
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

	v1 := app.Group("/v1")
	v1.Get("/sessions", ListSessionsHandler(deps))
	v1.Get("/sessions/history", timeout.NewWithContext(SessionHistoryHandler(deps), requestTimeout))
	v1.Post("/sessions/analysis/:id", timeout.NewWithContext(OpenAnalysisHandler(deps), requestTimeout))
	v1.Post("/sessions/comparison", timeout.NewWithContext(OpenComparisonHandler(deps), requestTimeout))
	v1.Get("/sessions/:id", GetSessionHandler(deps))
	v1.Put("/sessions/:id/panes/:pane/camera", timeout.NewWithContext(MoveCameraHandler(deps), requestTimeout))
	v1.Post("/sessions/:id/refresh", timeout.NewWithContext(RefreshSessionHandler(deps), requestTimeout))
	v1.Post("/sessions/:id/resume", timeout.NewWithContext(ResumeSessionHandler(deps), requestTimeout))
	v1.Delete("/sessions/:id", timeout.NewWithContext(CloseSessionHandler(deps), requestTimeout))

	app.Post("/graphql", GraphQLHandler(deps))

	SetupDocs(app)

	// WebSocket camera stream for one session
	app.Use("/ws/sessions/:id", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		if _, err := deps.Sessions.Get(c.Params("id")); err != nil {
			return errFromDomain(c, err)
		}
		return c.Next()
	})
	app.Get("/ws/sessions/:id", websocket.New(WebSocketHandler(deps)))
}
