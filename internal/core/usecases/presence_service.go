package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/samirrijal/pingsphere/internal/core/domain"
	"github.com/samirrijal/pingsphere/internal/core/lifecycle"
	"github.com/samirrijal/pingsphere/internal/core/ports"
)

var tracer = otel.Tracer("github.com/samirrijal/pingsphere/internal/core/usecases")

// PresenceService records activity heartbeats and forwards them to the scene.
type PresenceService struct {
	presences ports.PresenceRepository
	publisher ports.EventPublisher
	now       func() time.Time
}

// NewPresenceService creates a new PresenceService.
func NewPresenceService(presences ports.PresenceRepository, publisher ports.EventPublisher) *PresenceService {
	return &PresenceService{presences: presences, publisher: publisher, now: time.Now}
}

// Heartbeat marks a presence as active at its (rounded) location.
// An empty id allocates a new presence.
func (s *PresenceService) Heartbeat(ctx context.Context, id string, loc domain.GeoPoint, online bool) (*domain.Presence, error) {
	ctx, span := tracer.Start(ctx, "PresenceService.Heartbeat")
	defer span.End()

	if err := loc.Validate(); err != nil {
		return nil, err
	}

	evType := domain.PresenceUpdate
	if id == "" {
		id = uuid.NewString()
		evType = domain.PresenceInsert
	} else if _, err := s.presences.GetByID(ctx, id); errors.Is(err, domain.ErrNotFound) {
		evType = domain.PresenceInsert
	} else if err != nil {
		return nil, fmt.Errorf("lookup presence: %w", err)
	}
	span.SetAttributes(attribute.String("presence.id", id), attribute.String("presence.event", string(evType)))

	p := &domain.Presence{
		ID:           id,
		Location:     loc.Rounded(),
		LastActiveAt: s.now().UTC(),
		IsOnline:     online,
	}
	if err := s.presences.Upsert(ctx, p); err != nil {
		return nil, fmt.Errorf("upsert presence: %w", err)
	}

	s.publish(ctx, presenceEvent(evType, p))
	return p, nil
}

// Disconnect marks a presence offline; it starts fading from now.
func (s *PresenceService) Disconnect(ctx context.Context, id string) (*domain.Presence, error) {
	ctx, span := tracer.Start(ctx, "PresenceService.Disconnect")
	defer span.End()

	p, err := s.presences.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	p.IsOnline = false
	p.LastActiveAt = s.now().UTC()
	if err := s.presences.Upsert(ctx, p); err != nil {
		return nil, fmt.Errorf("upsert presence: %w", err)
	}

	s.publish(ctx, presenceEvent(domain.PresenceUpdate, p))
	return p, nil
}

// Delete removes a presence immediately, without waiting for it to fade.
func (s *PresenceService) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "PresenceService.Delete")
	defer span.End()

	if err := s.presences.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, &domain.PresenceEvent{Type: domain.PresenceDelete, ID: id})
	return nil
}

// ListActive returns every stored presence that is still visible, with its
// current brightness.
func (s *PresenceService) ListActive(ctx context.Context) ([]domain.PresenceState, error) {
	now := s.now()
	list, err := s.presences.ListActive(ctx, now.Add(-lifecycle.DecayWindow))
	if err != nil {
		return nil, err
	}
	out := make([]domain.PresenceState, 0, len(list))
	for _, p := range list {
		b := lifecycle.Brightness(p.LastActiveAt, p.IsOnline, now)
		if b <= 0 {
			continue
		}
		out = append(out, domain.PresenceState{Presence: p, Brightness: b})
	}
	return out, nil
}

func (s *PresenceService) publish(ctx context.Context, ev *domain.PresenceEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishPresenceEvent(ctx, ev); err != nil {
		slog.WarnContext(ctx, "publish presence event failed", "id", ev.ID, "type", ev.Type, "error", err)
	}
}

func presenceEvent(t domain.PresenceEventType, p *domain.Presence) *domain.PresenceEvent {
	loc := p.Location
	last := p.LastActiveAt
	online := p.IsOnline
	return &domain.PresenceEvent{
		Type:         t,
		ID:           p.ID,
		Location:     &loc,
		LastActiveAt: &last,
		IsOnline:     &online,
	}
}
