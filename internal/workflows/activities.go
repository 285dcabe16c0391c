package workflows

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/samirrijal/pingsphere/internal/core/ports"
)

// RetentionActivities purges rows that no scene will ever show again.
type RetentionActivities struct {
	Presences ports.PresenceRepository
	Pings     ports.PingRepository
}

// PurgeExpiredPresences deletes offline presences last active before cutoff.
func (a *RetentionActivities) PurgeExpiredPresences(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := a.Presences.DeleteOfflineBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge presences before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	slog.Info("purged presences", "count", n, "cutoff", cutoff)
	return n, nil
}

// PurgeExpiredPings deletes pings created before cutoff.
func (a *RetentionActivities) PurgeExpiredPings(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := a.Pings.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge pings before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	slog.Info("purged pings", "count", n, "cutoff", cutoff)
	return n, nil
}
