package ports

import (
	"context"
	"time"

	"github.com/samirrijal/pingsphere/internal/core/domain"
)

// PresenceRepository persists presences.
type PresenceRepository interface {
	Upsert(ctx context.Context, p *domain.Presence) error
	GetByID(ctx context.Context, id string) (*domain.Presence, error)
	Delete(ctx context.Context, id string) error
	// ListActive returns presences that are online or were last active after since.
	ListActive(ctx context.Context, since time.Time) ([]domain.Presence, error)
	// DeleteOfflineBefore removes offline presences last active before cutoff.
	DeleteOfflineBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// PingRepository persists pings.
type PingRepository interface {
	Insert(ctx context.Context, p *domain.Ping) error
	GetByID(ctx context.Context, id string) (*domain.Ping, error)
	// ListSince returns pings created after since, newest first.
	ListSince(ctx context.Context, since time.Time, limit int) ([]domain.Ping, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
