package valkey

import (
	"context"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/samirrijal/pingsphere/internal/core/domain"
	"github.com/samirrijal/pingsphere/internal/pkg/config"
	"github.com/samirrijal/pingsphere/internal/pkg/metrics"
)

// Cache implements ports.CacheService on Valkey. Keys are namespaced with
// a prefix so several deployments can share one server. When a local TTL
// is configured, reads go through valkey-go's server-assisted client-side
// cache, which suits many API nodes polling the same scene frame.
type Cache struct {
	client   valkey.Client
	prefix   string
	localTTL time.Duration
}

// New connects to the server named in cfg.
func New(cfg config.ValkeyConfig) (*Cache, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress:  []string{cfg.Addr},
		DisableCache: cfg.ClientCacheMS <= 0,
	})
	if err != nil {
		return nil, fmt.Errorf("valkey connect: %w", err)
	}
	return &Cache{
		client:   client,
		prefix:   cfg.Prefix,
		localTTL: time.Duration(cfg.ClientCacheMS) * time.Millisecond,
	}, nil
}

func (c *Cache) key(k string) string { return c.prefix + k }

// Get retrieves a value by key. A missing key yields domain.ErrNotFound.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	var res valkey.ValkeyResult
	if c.localTTL > 0 {
		res = c.client.DoCache(ctx, c.client.B().Get().Key(c.key(key)).Cache(), c.localTTL)
	} else {
		res = c.client.Do(ctx, c.client.B().Get().Key(c.key(key)).Build())
	}

	b, err := res.AsBytes()
	if valkey.IsValkeyNil(err) {
		metrics.CacheMisses.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: cache key %s", domain.ErrNotFound, key)
	}
	if err != nil {
		return nil, err
	}
	op := "get"
	if res.IsCacheHit() {
		op = "get_local"
	}
	metrics.CacheHits.WithLabelValues(op).Inc()
	return b, nil
}

// Set stores a value that expires after ttlSeconds.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	cmd := c.client.B().Set().Key(c.key(key)).Value(valkey.BinaryString(value)).
		Ex(time.Duration(ttlSeconds) * time.Second).Build()
	return c.client.Do(ctx, cmd).Error()
}

// Delete removes a key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.client.Do(ctx, c.client.B().Del().Key(c.key(key)).Build()).Error()
}

// Ping checks connectivity.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Do(ctx, c.client.B().Ping().Build()).Error()
}

// Close releases the client.
func (c *Cache) Close() {
	c.client.Close()
}
