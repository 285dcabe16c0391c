package postgres

import (
	"context"
	"time"

	"github.com/samirrijal/pingsphere/internal/core/domain"
)

// PingRepo implements ports.PingRepository with pgx.
type PingRepo struct {
	db *DB
}

// NewPingRepo creates a new PingRepo.
func NewPingRepo(db *DB) *PingRepo {
	return &PingRepo{db: db}
}

// Insert stores a new ping. Reusing an id reports domain.ErrDuplicate.
func (r *PingRepo) Insert(ctx context.Context, p *domain.Ping) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO pings (id, from_lat, from_lon, to_lat, to_lon, involves_local_actor, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, p.ID, p.From.Lat, p.From.Lon, p.To.Lat, p.To.Lon, p.InvolvesLocalActor, p.CreatedAt)
	return mapErr(err, "ping "+p.ID)
}

// GetByID returns a ping by id.
func (r *PingRepo) GetByID(ctx context.Context, id string) (*domain.Ping, error) {
	var p domain.Ping
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, from_lat, from_lon, to_lat, to_lon, involves_local_actor, created_at
		FROM pings WHERE id = $1
	`, id).Scan(&p.ID, &p.From.Lat, &p.From.Lon, &p.To.Lat, &p.To.Lon, &p.InvolvesLocalActor, &p.CreatedAt)
	if err != nil {
		return nil, mapErr(err, "ping "+id)
	}
	return &p, nil
}

// ListSince returns pings created at or after since, newest first.
// limit <= 0 returns every match.
func (r *PingRepo) ListSince(ctx context.Context, since time.Time, limit int) ([]domain.Ping, error) {
	if limit < 0 {
		limit = 0
	}
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, from_lat, from_lon, to_lat, to_lon, involves_local_actor, created_at
		FROM pings
		WHERE created_at >= $1
		ORDER BY created_at DESC
		LIMIT NULLIF($2, 0)
	`, since, limit)
	if err != nil {
		return nil, mapErr(err, "list pings")
	}
	defer rows.Close()

	var out []domain.Ping
	for rows.Next() {
		var p domain.Ping
		if err := rows.Scan(&p.ID, &p.From.Lat, &p.From.Lon, &p.To.Lat, &p.To.Lon, &p.InvolvesLocalActor, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeleteBefore purges pings created before cutoff.
func (r *PingRepo) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM pings WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, mapErr(err, "purge pings")
	}
	return tag.RowsAffected(), nil
}
