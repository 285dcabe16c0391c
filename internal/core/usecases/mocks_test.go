package usecases_test

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/samirrijal/pingsphere/internal/core/domain"
)

// --- Mock PresenceRepository ---

type mockPresenceRepo struct {
	upsertFn     func(ctx context.Context, p *domain.Presence) error
	getByIDFn    func(ctx context.Context, id string) (*domain.Presence, error)
	deleteFn     func(ctx context.Context, id string) error
	listActiveFn func(ctx context.Context, since time.Time) ([]domain.Presence, error)
}

func (m *mockPresenceRepo) Upsert(ctx context.Context, p *domain.Presence) error {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, p)
	}
	return nil
}

func (m *mockPresenceRepo) GetByID(ctx context.Context, id string) (*domain.Presence, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *mockPresenceRepo) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockPresenceRepo) ListActive(ctx context.Context, since time.Time) ([]domain.Presence, error) {
	if m.listActiveFn != nil {
		return m.listActiveFn(ctx, since)
	}
	return nil, nil
}

func (m *mockPresenceRepo) DeleteOfflineBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

// --- Mock PingRepository ---

type mockPingRepo struct {
	insertFn    func(ctx context.Context, p *domain.Ping) error
	getByIDFn   func(ctx context.Context, id string) (*domain.Ping, error)
	listSinceFn func(ctx context.Context, since time.Time, limit int) ([]domain.Ping, error)
}

func (m *mockPingRepo) Insert(ctx context.Context, p *domain.Ping) error {
	if m.insertFn != nil {
		return m.insertFn(ctx, p)
	}
	return nil
}

func (m *mockPingRepo) GetByID(ctx context.Context, id string) (*domain.Ping, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *mockPingRepo) ListSince(ctx context.Context, since time.Time, limit int) ([]domain.Ping, error) {
	if m.listSinceFn != nil {
		return m.listSinceFn(ctx, since, limit)
	}
	return nil, nil
}

func (m *mockPingRepo) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

// --- Recording EventPublisher ---

type recordingPublisher struct {
	mu          sync.Mutex
	presences   []domain.PresenceEvent
	pings       []domain.PingEvent
	frames      int
	lastFrame   []byte
	paths       []domain.PingPath
	transitions []domain.PhaseTransition
	evictions   []domain.Eviction
	err         error
}

func (p *recordingPublisher) PublishPresenceEvent(ctx context.Context, ev *domain.PresenceEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.presences = append(p.presences, *ev)
	return p.err
}

func (p *recordingPublisher) PublishPingEvent(ctx context.Context, ev *domain.PingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pings = append(p.pings, *ev)
	return p.err
}

func (p *recordingPublisher) PublishFrame(ctx context.Context, frame *domain.Frame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frames++
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	p.lastFrame = data
	return p.err
}

func (p *recordingPublisher) PublishTransition(ctx context.Context, tr *domain.PhaseTransition) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.transitions = append(p.transitions, *tr)
	return p.err
}

func (p *recordingPublisher) PublishEviction(ctx context.Context, ev *domain.Eviction) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.evictions = append(p.evictions, *ev)
	return p.err
}

func (p *recordingPublisher) PublishPath(ctx context.Context, pp *domain.PingPath) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paths = append(p.paths, *pp)
	return p.err
}

// --- In-memory CacheService ---

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]int
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte), ttls: make(map[string]int)}
}

func (c *memCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return v, nil
}

func (c *memCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	c.ttls[key] = ttlSeconds
	return nil
}

func (c *memCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}
