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

// realtime runs the scene engine: presence and ping events in from
// JetStream, frames, cues and evictions out on core NATS, and the latest
// frame in valkey for API nodes.
func main() {
	cfg, err := config.Load("pingsphere-realtime")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	closeLog := logging.Setup(cfg.Log.Level, cfg.Log.Format, cfg.Log.File)
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr, cfg.Telemetry.SampleRatio)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer telemetry.Shutdown(shutdown)
		}
	}

	// Database is only needed for the warm start; a node without it begins empty.
	var presences ports.PresenceRepository
	var pings ports.PingRepository
	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		slog.Warn("database unavailable, starting with an empty scene", "error", err)
	} else {
		defer db.Close()
		presences = postgres.NewPresenceRepo(db)
		pings = postgres.NewPingRepo(db)
	}

	var frames *usecases.FrameCache
	cache, err := valkey.New(cfg.Valkey)
	if err != nil {
		slog.Warn("valkey unavailable, frames will not be cached", "error", err)
	} else {
		defer cache.Close()
		frames = usecases.NewFrameCache(cache, cfg.Valkey.FrameTTL)
	}

	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats publisher: %v", err)
	}
	defer pub.Close()

	// Each node keeps its own durable consumers so every node sees every event.
	hostname, _ := os.Hostname()
	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL, "scene-"+hostname)
	if err != nil {
		log.Fatalf("nats subscriber: %v", err)
	}
	defer sub.Close()

	runner, err := engine.New(engine.Options{
		Config:     cfg.Engine,
		Presences:  presences,
		Pings:      pings,
		Publisher:  pub,
		Subscriber: sub,
		Frames:     frames,
		Metrics:    metrics.Scene{},
	})
	if err != nil {
		log.Fatalf("engine: %v", err)
	}
	if err := runner.Start(ctx); err != nil {
		log.Fatalf("engine start: %v", err)
	}

	go serveMetrics(ctx, cfg.Server.Port, db)

	slog.Info("PingSphere realtime engine started", "node", hostname, "tick", cfg.Engine.TickInterval.String())
	if err := runner.Run(ctx); err != nil {
		slog.Error("engine stopped", "error", err)
	}
	slog.Info("realtime engine stopped")
}

// serveMetrics exposes /metrics and a liveness check on the server port and
// refreshes the pool gauges.
func serveMetrics(ctx context.Context, port int, db *postgres.DB) {
	app := fiber.New(fiber.Config{DisableStartupMessage: true, AppName: "PingSphere realtime"})
	app.Get("/metrics", metrics.Handler())
	app.Get("/v1/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy"})
	})

	go func() {
		if err := app.Listen(fmt.Sprintf(":%d", port)); err != nil {
			slog.Error("metrics listener stopped", "error", err)
		}
	}()

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = app.Shutdown()
			return
		case <-ticker.C:
			if db != nil {
				metrics.UpdateDBPoolMetrics(db.Pool.Stat())
			}
		}
	}
}
