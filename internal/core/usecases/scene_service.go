package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/samirrijal/pingsphere/internal/core/domain"
	"github.com/samirrijal/pingsphere/internal/core/lifecycle"
	"github.com/samirrijal/pingsphere/internal/core/ports"
)

// SceneService is the single owner of the live presence registry and ping
// engine. Event handlers and the tick loop all go through it, so the
// lifecycle state has exactly one writer.
type SceneService struct {
	mu        sync.Mutex
	presences *lifecycle.PresenceRegistry
	pings     *lifecycle.PingEngine

	publisher ports.EventPublisher
	frames    *FrameCache
	metrics   ports.SceneMetrics
}

// NewSceneService wires a registry and engine to the outbound ports.
// publisher, frames and metrics may be nil.
func NewSceneService(
	presences *lifecycle.PresenceRegistry,
	pings *lifecycle.PingEngine,
	publisher ports.EventPublisher,
	frames *FrameCache,
	metrics ports.SceneMetrics,
) *SceneService {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &SceneService{
		presences: presences,
		pings:     pings,
		publisher: publisher,
		frames:    frames,
		metrics:   metrics,
	}
}

// ApplyPresenceEvent merges an inbound presence change into the registry.
// Updates for an unknown id are treated as inserts.
func (s *SceneService) ApplyPresenceEvent(ctx context.Context, ev *domain.PresenceEvent, now time.Time) error {
	if ev.ID == "" {
		s.metrics.InvalidInput(domain.KindPresence)
		return fmt.Errorf("%w: presence event without id", domain.ErrInvalidInput)
	}

	switch ev.Type {
	case domain.PresenceDelete:
		s.mu.Lock()
		removed := s.presences.Remove(ev.ID)
		s.mu.Unlock()
		if removed {
			s.metrics.Evicted(domain.KindPresence)
			s.publishEviction(ctx, domain.Eviction{Kind: domain.KindPresence, ID: ev.ID, At: now})
		}
		return nil

	case domain.PresenceInsert, domain.PresenceUpdate:
		s.mu.Lock()
		defer s.mu.Unlock()

		p, known := s.presences.Get(ev.ID)
		if !known {
			p = domain.Presence{ID: ev.ID, LastActiveAt: now, IsOnline: true}
			if ev.Location == nil {
				s.metrics.InvalidInput(domain.KindPresence)
				return fmt.Errorf("%w: presence %s has no location", domain.ErrInvalidInput, ev.ID)
			}
		}
		if ev.Location != nil {
			p.Location = *ev.Location
		}
		if ev.LastActiveAt != nil {
			p.LastActiveAt = *ev.LastActiveAt
		}
		if ev.IsOnline != nil {
			p.IsOnline = *ev.IsOnline
		}
		if err := p.Validate(); err != nil {
			s.metrics.InvalidInput(domain.KindPresence)
			return err
		}
		s.presences.Upsert(p)
		return nil

	default:
		s.metrics.InvalidInput(domain.KindPresence)
		return fmt.Errorf("%w: unknown presence event type %q", domain.ErrInvalidInput, ev.Type)
	}
}

// ApplyPingEvent admits a ping into the engine and returns its id.
// Events stamped long enough ago that the ping would already be past its
// visible phases are restored silently, so replays never re-fire cues.
// The ping's path is announced once, separately from frames.
func (s *SceneService) ApplyPingEvent(ctx context.Context, ev *domain.PingEvent, now time.Time) (string, error) {
	ctx, span := tracer.Start(ctx, "SceneService.ApplyPingEvent")
	defer span.End()

	s.mu.Lock()
	id, origin, pp, err := s.admitLocked(ev, now)
	s.mu.Unlock()
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			s.metrics.InvalidInput(domain.KindPing)
		}
		return "", err
	}
	if id == "" {
		return "", nil
	}

	span.SetAttributes(attribute.String("ping.id", id), attribute.String("ping.origin", origin))
	s.metrics.PingCreated(origin)
	s.announcePath(ctx, pp, now)
	return id, nil
}

func (s *SceneService) admitLocked(ev *domain.PingEvent, now time.Time) (string, string, *domain.PingPath, error) {
	cfg := s.pings.Config()
	created := now
	if ev.CreatedAt != nil && !ev.CreatedAt.IsZero() {
		created = *ev.CreatedAt
	}
	origin := "local"
	if ev.ID != "" {
		origin = "remote"
	}

	var err error
	id := ev.ID
	switch {
	case now.Sub(created) >= cfg.Drawing+cfg.Glowing+cfg.Fading:
		if id == "" {
			id = uuid.NewString()
		}
		var live bool
		live, err = s.pings.Restore(domain.Ping{
			ID:                 id,
			From:               ev.From,
			To:                 ev.To,
			CreatedAt:          created,
			InvolvesLocalActor: ev.InvolvesLocalActor,
		}, now)
		if err == nil && !live {
			return "", "", nil, nil
		}
		origin = "replay"
	case id == "":
		id, err = s.pings.Create(ev.From, ev.To, ev.InvolvesLocalActor, created)
	default:
		err = s.pings.CreateWithID(id, ev.From, ev.To, ev.InvolvesLocalActor, created)
	}
	if err != nil {
		return "", "", nil, err
	}
	return id, origin, s.pathLocked(id, created), nil
}

func (s *SceneService) pathLocked(id string, created time.Time) *domain.PingPath {
	path, ok := s.pings.Path(id)
	if !ok {
		return nil
	}
	return &domain.PingPath{PingID: id, Path: path, ExpiresAt: created.Add(s.pings.Config().Lifetime)}
}

// announcePath publishes a newly admitted ping's path and caches it for
// viewers that join later.
func (s *SceneService) announcePath(ctx context.Context, pp *domain.PingPath, now time.Time) {
	if pp == nil {
		return
	}
	if s.publisher != nil {
		if err := s.publisher.PublishPath(ctx, pp); err != nil {
			slog.WarnContext(ctx, "publish path failed", "ping_id", pp.PingID, "error", err)
		}
	}
	if s.frames != nil {
		if err := s.frames.StorePath(ctx, pp, now); err != nil {
			slog.DebugContext(ctx, "cache path failed", "ping_id", pp.PingID, "error", err)
		}
	}
}

// Path returns the arc of a live ping.
func (s *SceneService) Path(id string) (*domain.Path, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	path, ok := s.pings.Path(id)
	if !ok {
		return nil, false
	}
	return &path, true
}

// RemovePing drops a ping mid-animation.
func (s *SceneService) RemovePing(ctx context.Context, id string, now time.Time) bool {
	s.mu.Lock()
	removed := s.pings.Remove(id)
	s.mu.Unlock()
	if removed {
		s.metrics.Evicted(domain.KindPing)
		s.publishEviction(ctx, domain.Eviction{Kind: domain.KindPing, ID: id, At: now})
	}
	return removed
}

// Tick advances every entity to now, publishes the resulting transitions,
// evictions and frame, and returns the frame.
func (s *SceneService) Tick(ctx context.Context, now time.Time) *domain.Frame {
	start := time.Now()

	s.mu.Lock()
	gone := s.presences.Tick(now)
	res := s.pings.Tick(now)
	frame := s.frameLocked(now)
	s.mu.Unlock()

	s.metrics.ObserveTick(time.Since(start).Seconds())
	s.metrics.SetActive(len(frame.Presences), len(frame.Pings))

	for i := range res.Transitions {
		tr := res.Transitions[i]
		s.metrics.PhaseEntered(tr.To)
		if s.publisher != nil {
			if err := s.publisher.PublishTransition(ctx, &tr); err != nil {
				slog.WarnContext(ctx, "publish transition failed", "ping_id", tr.PingID, "phase", tr.To.String(), "error", err)
			}
		}
	}
	for _, id := range gone {
		s.metrics.Evicted(domain.KindPresence)
		s.publishEviction(ctx, domain.Eviction{Kind: domain.KindPresence, ID: id, At: now})
	}
	for _, id := range res.Evicted {
		s.metrics.Evicted(domain.KindPing)
		s.publishEviction(ctx, domain.Eviction{Kind: domain.KindPing, ID: id, At: now})
	}

	if s.publisher != nil {
		if err := s.publisher.PublishFrame(ctx, frame); err != nil {
			slog.WarnContext(ctx, "publish frame failed", "error", err)
		}
	}
	if s.frames != nil {
		if err := s.frames.Store(ctx, frame); err != nil {
			slog.DebugContext(ctx, "cache frame failed", "error", err)
		}
	}
	return frame
}

// Frame returns the scene at now without advancing any state. Paths are
// left out; fetch them with Path.
func (s *SceneService) Frame(now time.Time) *domain.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frameLocked(now)
}

// Counts reports how many presences and pings are live.
func (s *SceneService) Counts() (presences, pings int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presences.Len(), s.pings.Len()
}

func (s *SceneService) frameLocked(now time.Time) *domain.Frame {
	return &domain.Frame{
		Time:      now,
		Presences: s.presences.Snapshot(now),
		Pings:     s.pings.Snapshot(now, false),
	}
}

// Warm loads persisted entities so a restarted engine resumes where the
// previous one stopped. Either repository may be nil.
func (s *SceneService) Warm(ctx context.Context, presences ports.PresenceRepository, pings ports.PingRepository, now time.Time) (int, int, error) {
	var np, nr int

	if presences != nil {
		list, err := presences.ListActive(ctx, now.Add(-lifecycle.DecayWindow))
		if err != nil {
			return 0, 0, fmt.Errorf("load presences: %w", err)
		}
		s.mu.Lock()
		for _, p := range list {
			if p.Validate() != nil {
				continue
			}
			s.presences.Upsert(p)
			np++
		}
		s.mu.Unlock()
	}

	if pings != nil {
		list, err := pings.ListSince(ctx, now.Add(-s.pings.Config().Lifetime), 0)
		if err != nil {
			return np, 0, fmt.Errorf("load pings: %w", err)
		}
		restored := make([]*domain.PingPath, 0, len(list))
		s.mu.Lock()
		for _, p := range list {
			live, err := s.pings.Restore(p, now)
			if err != nil {
				slog.WarnContext(ctx, "skip stored ping", "id", p.ID, "error", err)
				continue
			}
			if live {
				restored = append(restored, s.pathLocked(p.ID, p.CreatedAt))
				nr++
			}
		}
		s.mu.Unlock()
		// Viewers that saw these pings before the restart keep their paths;
		// the cache serves everyone else.
		for _, pp := range restored {
			if err := s.frames.StorePath(ctx, pp, now); err != nil {
				slog.DebugContext(ctx, "cache path failed", "ping_id", pp.PingID, "error", err)
			}
		}
	}

	return np, nr, nil
}

// Run ticks the scene every interval until ctx is cancelled.
func (s *SceneService) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("tick interval must be positive, got %s", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			s.Tick(ctx, now)
		}
	}
}

func (s *SceneService) publishEviction(ctx context.Context, ev domain.Eviction) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishEviction(ctx, &ev); err != nil {
		slog.WarnContext(ctx, "publish eviction failed", "kind", ev.Kind, "id", ev.ID, "error", err)
	}
}

type noopMetrics struct{}

func (noopMetrics) ObserveTick(float64)            {}
func (noopMetrics) SetActive(int, int)             {}
func (noopMetrics) PhaseEntered(domain.Phase)      {}
func (noopMetrics) Evicted(domain.EntityKind)      {}
func (noopMetrics) PingCreated(string)             {}
func (noopMetrics) InvalidInput(domain.EntityKind) {}
