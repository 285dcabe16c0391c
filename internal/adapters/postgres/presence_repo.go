package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/pingsphere/internal/core/domain"
)

// PresenceRepo implements ports.PresenceRepository with pgx.
type PresenceRepo struct {
	db *DB
}

// NewPresenceRepo creates a new PresenceRepo.
func NewPresenceRepo(db *DB) *PresenceRepo {
	return &PresenceRepo{db: db}
}

// Upsert inserts or overwrites a presence.
func (r *PresenceRepo) Upsert(ctx context.Context, p *domain.Presence) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO presences (id, lat, lon, last_active_at, is_online, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (id) DO UPDATE
		SET lat = EXCLUDED.lat, lon = EXCLUDED.lon,
		    last_active_at = EXCLUDED.last_active_at,
		    is_online = EXCLUDED.is_online,
		    updated_at = now()
	`, p.ID, p.Location.Lat, p.Location.Lon, p.LastActiveAt, p.IsOnline)
	return mapErr(err, "presence "+p.ID)
}

// GetByID returns a presence by id.
func (r *PresenceRepo) GetByID(ctx context.Context, id string) (*domain.Presence, error) {
	var p domain.Presence
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, lat, lon, last_active_at, is_online
		FROM presences WHERE id = $1
	`, id).Scan(&p.ID, &p.Location.Lat, &p.Location.Lon, &p.LastActiveAt, &p.IsOnline)
	if err != nil {
		return nil, mapErr(err, "presence "+id)
	}
	return &p, nil
}

// Delete removes a presence. Deleting an unknown id reports domain.ErrNotFound.
func (r *PresenceRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM presences WHERE id = $1`, id)
	if err != nil {
		return mapErr(err, "presence "+id)
	}
	if tag.RowsAffected() == 0 {
		return mapErr(pgx.ErrNoRows, "presence "+id)
	}
	return nil
}

// ListActive returns presences that are online or were active at or after since.
func (r *PresenceRepo) ListActive(ctx context.Context, since time.Time) ([]domain.Presence, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, lat, lon, last_active_at, is_online
		FROM presences
		WHERE is_online OR last_active_at >= $1
		ORDER BY last_active_at DESC
	`, since)
	if err != nil {
		return nil, mapErr(err, "list presences")
	}
	defer rows.Close()

	var out []domain.Presence
	for rows.Next() {
		var p domain.Presence
		if err := rows.Scan(&p.ID, &p.Location.Lat, &p.Location.Lon, &p.LastActiveAt, &p.IsOnline); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeleteOfflineBefore purges offline presences last active before cutoff.
func (r *PresenceRepo) DeleteOfflineBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `
		DELETE FROM presences WHERE NOT is_online AND last_active_at < $1
	`, cutoff)
	if err != nil {
		return 0, mapErr(err, "purge presences")
	}
	return tag.RowsAffected(), nil
}
