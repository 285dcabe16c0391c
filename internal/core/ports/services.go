package ports

import (
	"context"

	"github.com/samirrijal/pingsphere/internal/core/domain"
)

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishPresenceEvent(ctx context.Context, ev *domain.PresenceEvent) error
	PublishPingEvent(ctx context.Context, ev *domain.PingEvent) error
	PublishFrame(ctx context.Context, frame *domain.Frame) error
	PublishTransition(ctx context.Context, tr *domain.PhaseTransition) error
	PublishEviction(ctx context.Context, ev *domain.Eviction) error
	PublishPath(ctx context.Context, p *domain.PingPath) error
}

// EventSubscriber subscribes to domain events from a message broker.
type EventSubscriber interface {
	SubscribePresenceEvents(ctx context.Context, handler func(ctx context.Context, ev *domain.PresenceEvent) error) error
	SubscribePingEvents(ctx context.Context, handler func(ctx context.Context, ev *domain.PingEvent) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// SceneMetrics records engine activity. Implementations must be cheap; they
// are called on every tick.
type SceneMetrics interface {
	ObserveTick(seconds float64)
	SetActive(presences, pings int)
	PhaseEntered(phase domain.Phase)
	Evicted(kind domain.EntityKind)
	PingCreated(origin string)
	InvalidInput(kind domain.EntityKind)
}
