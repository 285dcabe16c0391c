package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/samirrijal/pingsphere/internal/core/domain"
	"github.com/samirrijal/pingsphere/internal/core/ports"
)

const (
	latestFrameKey = "scene:frame:latest"
	pathKeyPrefix  = "scene:path:"
)

// FrameCache keeps the most recent scene frame in a shared cache so that
// API nodes can serve it without running an engine.
type FrameCache struct {
	cache      ports.CacheService
	ttlSeconds int
}

// NewFrameCache creates a FrameCache. Frames expire after ttlSeconds so a
// stopped engine does not leave a stale scene behind.
func NewFrameCache(cache ports.CacheService, ttlSeconds int) *FrameCache {
	if ttlSeconds <= 0 {
		ttlSeconds = 5
	}
	return &FrameCache{cache: cache, ttlSeconds: ttlSeconds}
}

// Store serialises and caches frame.
func (c *FrameCache) Store(ctx context.Context, frame *domain.Frame) error {
	if c == nil || c.cache == nil {
		return nil
	}
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	return c.cache.Set(ctx, latestFrameKey, data, c.ttlSeconds)
}

// Load returns the cached frame, or domain.ErrNotFound if none is cached.
func (c *FrameCache) Load(ctx context.Context) (*domain.Frame, error) {
	if c == nil || c.cache == nil {
		return nil, domain.ErrNotFound
	}
	data, err := c.cache.Get(ctx, latestFrameKey)
	if err != nil || len(data) == 0 {
		return nil, fmt.Errorf("%w: no cached frame", domain.ErrNotFound)
	}
	var frame domain.Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("unmarshal frame: %w", err)
	}
	return &frame, nil
}

// StorePath caches a ping's arc until the ping expires.
func (c *FrameCache) StorePath(ctx context.Context, pp *domain.PingPath, now time.Time) error {
	if c == nil || c.cache == nil {
		return nil
	}
	ttl := int(pp.ExpiresAt.Sub(now).Seconds())
	if ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(pp.Path)
	if err != nil {
		return fmt.Errorf("marshal path: %w", err)
	}
	return c.cache.Set(ctx, pathKeyPrefix+pp.PingID, data, ttl)
}

// LoadPath returns the cached arc of a ping, or domain.ErrNotFound.
func (c *FrameCache) LoadPath(ctx context.Context, id string) (*domain.Path, error) {
	if c == nil || c.cache == nil {
		return nil, domain.ErrNotFound
	}
	data, err := c.cache.Get(ctx, pathKeyPrefix+id)
	if err != nil || len(data) == 0 {
		return nil, fmt.Errorf("%w: no cached path for %s", domain.ErrNotFound, id)
	}
	var path domain.Path
	if err := json.Unmarshal(data, &path); err != nil {
		return nil, fmt.Errorf("unmarshal path: %w", err)
	}
	return &path, nil
}
