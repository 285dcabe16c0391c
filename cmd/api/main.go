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

	"github.com/samirrijal/pingsphere/internal/adapters/http"
	natsadapter "github.com/samirrijal/pingsphere/internal/adapters/nats"
	"github.com/samirrijal/pingsphere/internal/adapters/postgres"
	"github.com/samirrijal/pingsphere/internal/adapters/valkey"
	"github.com/samirrijal/pingsphere/internal/core/ports"
	"github.com/samirrijal/pingsphere/internal/core/usecases"
	"github.com/samirrijal/pingsphere/internal/engine"
	"github.com/samirrijal/pingsphere/internal/pkg/config"
	"github.com/samirrijal/pingsphere/internal/pkg/logging"
	"github.com/samirrijal/pingsphere/internal/pkg/metrics"
	"github.com/samirrijal/pingsphere/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("pingsphere-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	closeLog := logging.Setup(cfg.Log.Level, cfg.Log.Format, cfg.Log.File)
	defer closeLog()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr, cfg.Telemetry.SampleRatio)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer telemetry.Shutdown(shutdown)
		}
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Cache
	cache, err := valkey.New(cfg.Valkey)
	if err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		defer cache.Close()
	}

	// NATS. Interfaces stay nil when a connection is missing.
	var publisher ports.EventPublisher
	var cacheSvc ports.CacheService
	nc, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable, events will not be broadcast", "error", err)
	} else {
		publisher = nc
		defer nc.Close()
	}
	if cache != nil {
		cacheSvc = cache
	}

	// Raw NATS connection for WebSocket relay
	natsConn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats ws conn unavailable", "error", err)
	} else {
		defer natsConn.Close()
	}

	// Repos
	presenceRepo := postgres.NewPresenceRepo(db)
	pingRepo := postgres.NewPingRepo(db)

	// Use cases
	frames := usecases.NewFrameCache(cacheSvc, cfg.Valkey.FrameTTL)
	deps := &http.Dependencies{
		Presences: usecases.NewPresenceService(presenceRepo, publisher),
		Pings:     usecases.NewPingService(pingRepo, publisher, cfg.Engine.Lifetime),
		Frames:    frames,
		NATS:      natsConn,
		DB:        db,
		Cache:     cache,
	}

	if cfg.Engine.Embedded {
		runner, stop := startEmbeddedEngine(ctx, cfg, presenceRepo, pingRepo, publisher, frames)
		defer stop()
		deps.Scene = runner.Scene
	}

	go poolMetrics(ctx, db)

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    64 * 1024, // heartbeats and pings are tiny
		AppName:      "PingSphere API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "*",
		AllowMethods:     "GET,POST,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "embedded_engine", cfg.Engine.Embedded)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())
	cancel()

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}

// startEmbeddedEngine runs a scene in this process, fed from the same NATS
// streams as a standalone realtime node.
func startEmbeddedEngine(
	ctx context.Context,
	cfg *config.Config,
	presences ports.PresenceRepository,
	pings ports.PingRepository,
	publisher ports.EventPublisher,
	frames *usecases.FrameCache,
) (*engine.Runner, func()) {
	opts := engine.Options{
		Config:    cfg.Engine,
		Presences: presences,
		Pings:     pings,
		Publisher: publisher,
		Frames:    frames,
		Metrics:   metrics.Scene{},
	}

	hostname, _ := os.Hostname()
	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL, "api-"+hostname)
	if err != nil {
		slog.Warn("embedded engine runs without event stream", "error", err)
	} else {
		opts.Subscriber = sub
	}

	runner, err := engine.New(opts)
	if err != nil {
		log.Fatalf("engine: %v", err)
	}
	if err := runner.Start(ctx); err != nil {
		log.Fatalf("engine start: %v", err)
	}
	go func() {
		if err := runner.Run(ctx); err != nil {
			slog.Error("embedded engine stopped", "error", err)
		}
	}()

	return runner, func() {
		if sub != nil {
			sub.Close()
		}
	}
}

// poolMetrics refreshes the pgx pool gauges until ctx is done.
func poolMetrics(ctx context.Context, db *postgres.DB) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.UpdateDBPoolMetrics(db.Pool.Stat())
		}
	}
}
