// Package engine assembles a running scene: lifecycle state, warm start
// from storage, inbound event handlers and the tick loop.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/samirrijal/pingsphere/internal/core/domain"
	"github.com/samirrijal/pingsphere/internal/core/lifecycle"
	"github.com/samirrijal/pingsphere/internal/core/ports"
	"github.com/samirrijal/pingsphere/internal/core/usecases"
	"github.com/samirrijal/pingsphere/internal/pkg/config"
)

// Options configures a Runner. Everything except Config may be nil.
type Options struct {
	Config     config.EngineConfig
	Presences  ports.PresenceRepository
	Pings      ports.PingRepository
	Publisher  ports.EventPublisher
	Subscriber ports.EventSubscriber
	Frames     *usecases.FrameCache
	Metrics    ports.SceneMetrics
}

// Runner owns one SceneService and feeds it.
type Runner struct {
	Scene *usecases.SceneService

	opts Options
	now  func() time.Time
}

// New builds the registry, engine and scene described by opts.
func New(opts Options) (*Runner, error) {
	pings, err := lifecycle.NewPingEngine(opts.Config.Lifecycle())
	if err != nil {
		return nil, fmt.Errorf("ping engine: %w", err)
	}
	presences := lifecycle.NewPresenceRegistry(opts.Config.PresenceLifetime)

	scene := usecases.NewSceneService(presences, pings, opts.Publisher, opts.Frames, opts.Metrics)
	return &Runner{Scene: scene, opts: opts, now: time.Now}, nil
}

// Start restores persisted entities and then subscribes to inbound events.
// Warming first means replayed events for restored pings are rejected as
// duplicates instead of re-animating them.
func (r *Runner) Start(ctx context.Context) error {
	if r.opts.Presences != nil || r.opts.Pings != nil {
		np, nr, err := r.Scene.Warm(ctx, r.opts.Presences, r.opts.Pings, r.now())
		if err != nil {
			return fmt.Errorf("warm scene: %w", err)
		}
		slog.Info("scene warmed", "presences", np, "pings", nr)
	}

	if r.opts.Subscriber == nil {
		return nil
	}
	if err := r.opts.Subscriber.SubscribePresenceEvents(ctx, r.HandlePresenceEvent); err != nil {
		return fmt.Errorf("subscribe presence events: %w", err)
	}
	if err := r.opts.Subscriber.SubscribePingEvents(ctx, r.HandlePingEvent); err != nil {
		return fmt.Errorf("subscribe ping events: %w", err)
	}
	return nil
}

// HandlePresenceEvent applies an inbound presence change at the current time.
func (r *Runner) HandlePresenceEvent(ctx context.Context, ev *domain.PresenceEvent) error {
	if err := r.Scene.ApplyPresenceEvent(ctx, ev, r.now()); err != nil {
		slog.Warn("presence event rejected", "id", ev.ID, "type", ev.Type, "error", err)
		return err
	}
	return nil
}

// HandlePingEvent admits an inbound ping at the current time.
func (r *Runner) HandlePingEvent(ctx context.Context, ev *domain.PingEvent) error {
	id, err := r.Scene.ApplyPingEvent(ctx, ev, r.now())
	if err != nil {
		slog.Warn("ping event rejected", "id", ev.ID, "error", err)
		return err
	}
	if id == "" {
		slog.Debug("ping event already expired", "id", ev.ID)
	}
	return nil
}

// Run ticks the scene until ctx is cancelled. Cancellation is a clean stop.
func (r *Runner) Run(ctx context.Context) error {
	slog.Info("scene engine running", "tick", r.opts.Config.TickInterval.String())
	err := r.Scene.Run(ctx, r.opts.Config.TickInterval)
	if ctx.Err() != nil {
		return nil
	}
	return err
}
