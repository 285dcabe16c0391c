package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/samirrijal/pingsphere/internal/core/domain"
	"github.com/samirrijal/pingsphere/internal/core/ports"
)

// PingService accepts ping requests and broadcasts them to every scene.
type PingService struct {
	pings     ports.PingRepository
	publisher ports.EventPublisher
	lifetime  time.Duration
	now       func() time.Time
}

// NewPingService creates a new PingService. Pings older than lifetime are
// no longer listed.
func NewPingService(pings ports.PingRepository, publisher ports.EventPublisher, lifetime time.Duration) *PingService {
	if lifetime <= 0 {
		lifetime = 24 * time.Hour
	}
	return &PingService{pings: pings, publisher: publisher, lifetime: lifetime, now: time.Now}
}

// Send validates and rounds both endpoints, stores the ping and broadcasts it.
func (s *PingService) Send(ctx context.Context, from, to domain.GeoPoint, involvesLocalActor bool) (*domain.Ping, error) {
	ctx, span := tracer.Start(ctx, "PingService.Send")
	defer span.End()

	if err := from.Validate(); err != nil {
		return nil, fmt.Errorf("from: %w", err)
	}
	if err := to.Validate(); err != nil {
		return nil, fmt.Errorf("to: %w", err)
	}

	p := &domain.Ping{
		ID:                 uuid.NewString(),
		From:               from.Rounded(),
		To:                 to.Rounded(),
		CreatedAt:          s.now().UTC(),
		InvolvesLocalActor: involvesLocalActor,
	}
	span.SetAttributes(attribute.String("ping.id", p.ID))

	if err := s.pings.Insert(ctx, p); err != nil {
		return nil, fmt.Errorf("insert ping: %w", err)
	}

	if s.publisher != nil {
		created := p.CreatedAt
		ev := &domain.PingEvent{
			ID:                 p.ID,
			From:               p.From,
			To:                 p.To,
			InvolvesLocalActor: p.InvolvesLocalActor,
			CreatedAt:          &created,
		}
		if err := s.publisher.PublishPingEvent(ctx, ev); err != nil {
			return p, fmt.Errorf("publish ping: %w", err)
		}
	}
	return p, nil
}

// Recent lists pings that are still within their lifetime, newest first.
func (s *PingService) Recent(ctx context.Context, limit int) ([]domain.Ping, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.pings.ListSince(ctx, s.now().Add(-s.lifetime), limit)
}

// GetByID returns a single ping.
func (s *PingService) GetByID(ctx context.Context, id string) (*domain.Ping, error) {
	return s.pings.GetByID(ctx, id)
}
