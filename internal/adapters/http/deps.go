package http

import (
	"context"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/pingsphere/internal/adapters/postgres"
	"github.com/samirrijal/pingsphere/internal/adapters/valkey"
	"github.com/samirrijal/pingsphere/internal/core/domain"
	"github.com/samirrijal/pingsphere/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Presences *usecases.PresenceService
	Pings     *usecases.PingService
	Frames    *usecases.FrameCache
	// Scene is set when the engine runs in-process; /v1/scene then reads it
	// directly instead of the shared frame cache.
	Scene *usecases.SceneService
	NATS  *nats.Conn
	DB    *postgres.DB
	Cache *valkey.Cache
}

// lookupPath finds a live ping's arc in the in-process engine, falling back
// to the paths the engine cached for other nodes.
func (d *Dependencies) lookupPath(ctx context.Context, id string) (*domain.Path, error) {
	if d.Scene != nil {
		if p, ok := d.Scene.Path(id); ok {
			return p, nil
		}
	}
	return d.Frames.LoadPath(ctx, id)
}
