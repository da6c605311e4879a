package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/samirrijal/geoviewer/internal/adapters/analysisapi"
	"github.com/samirrijal/geoviewer/internal/adapters/headless"
	"github.com/samirrijal/geoviewer/internal/adapters/http"
	natsadapter "github.com/samirrijal/geoviewer/internal/adapters/nats"
	"github.com/samirrijal/geoviewer/internal/adapters/postgres"
	"github.com/samirrijal/geoviewer/internal/adapters/valkey"
	"github.com/samirrijal/geoviewer/internal/core/domain"
	"github.com/samirrijal/geoviewer/internal/core/ports"
	"github.com/samirrijal/geoviewer/internal/core/usecases"
	"github.com/samirrijal/geoviewer/internal/core/viewport"
	"github.com/samirrijal/geoviewer/internal/pkg/config"
	"github.com/samirrijal/geoviewer/internal/pkg/logging"
	"github.com/samirrijal/geoviewer/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("geoviewer-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logging.Setup(cfg.Telemetry.ServiceName, cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer func() {
				sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer scancel()
				_ = shutdown(sctx)
			}()
		}
	}

	// Database (session snapshots)
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	go db.ReportPoolMetrics(ctx, 15*time.Second)

	// Cache (previews)
	var previewCache ports.CacheService
	cache, err := valkey.New(cfg.Valkey.Addr, "geoviewer:")
	if err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		defer cache.Close()
		previewCache = cache
	}

	// NATS
	var publisher ports.EventPublisher
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		defer pub.Close()
		publisher = pub
	}

	var subscriber ports.CameraSubscriber
	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats subscriber unavailable, streaming from local sessions", "error", err)
	} else {
		defer sub.Close()
		subscriber = sub
	}

	// Map engines
	var fetcher headless.TileFetcher
	if cfg.Viewer.TilePrefetch {
		fetcher = headless.NewHTTPTileFetcher(cfg.Viewer.UserAgent, cfg.Viewer.TileTimeout)
	}
	factory := headless.NewFactory(fetcher, 0)

	// Use cases
	previews := usecases.NewPreviewService(
		analysisapi.New(cfg.Analysis.BaseURL, cfg.Analysis.Timeout),
		previewCache,
		cfg.Analysis.CacheTTL,
	)
	sessions := usecases.NewSessionService(previews, factory, postgres.NewSessionRepo(db), publisher, usecases.SessionConfig{
		Viewport:      viewerOptions(cfg.Viewer),
		SettleTimeout: cfg.Viewer.SettleTimeout,
		MaxSessions:   cfg.Viewer.MaxSessions,
	})

	deps := &http.Dependencies{
		Sessions:   sessions,
		Subscriber: subscriber,
		DB:         db,
		Cache:      cache,
	}
	if pub != nil {
		deps.NATS = pub.Conn()
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "Geoviewer API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
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

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	// Close live sessions so their final cameras are persisted.
	if err := sessions.Shutdown(shutdownCtx); err != nil {
		slog.Error("session shutdown", "error", err)
	}

	slog.Info("server stopped")
}

func viewerOptions(v config.ViewerConfig) viewport.Options {
	opts := viewport.DefaultOptions()
	opts.Container = domain.Container{Width: v.Width, Height: v.Height}
	opts.Tiles = domain.TileSource{
		URL:         v.TileURL,
		TileSize:    v.TileSize,
		Attribution: v.Attribution,
		MinZoom:     v.MinZoom,
		MaxZoom:     v.MaxZoom,
	}
	opts.DefaultCenter = domain.GeoPoint{Lon: v.DefaultLon, Lat: v.DefaultLat}
	opts.Fit = domain.FitOptions{Padding: v.FitPadding, Duration: v.FitDuration}
	return opts
}
