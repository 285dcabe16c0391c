package postgres

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Migrate applies (direction "up") every pending *.up.sql file in fsys in
// name order, or reverts (direction "down") the most recent one. Applied
// versions are tracked in schema_migrations. It returns the versions touched.
func Migrate(ctx context.Context, db *DB, fsys fs.FS, direction string) ([]string, error) {
	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return nil, err
	}

	switch direction {
	case "up":
		versions, err := listVersions(fsys)
		if err != nil {
			return nil, err
		}
		var done []string
		for _, v := range versions {
			if applied[v] {
				continue
			}
			if err := runFile(ctx, db, fsys, v+".up.sql", `INSERT INTO schema_migrations (version) VALUES ($1)`, v); err != nil {
				return done, err
			}
			done = append(done, v)
		}
		return done, nil

	case "down":
		var latest string
		for v := range applied {
			if v > latest {
				latest = v
			}
		}
		if latest == "" {
			return nil, nil
		}
		if err := runFile(ctx, db, fsys, latest+".down.sql", `DELETE FROM schema_migrations WHERE version = $1`, latest); err != nil {
			return nil, err
		}
		return []string{latest}, nil

	default:
		return nil, fmt.Errorf("unknown migration direction %q", direction)
	}
}

// MigrationState reports whether one schema version is applied.
type MigrationState struct {
	Version string
	Applied bool
}

// MigrationStatus lists every version in fsys, plus applied versions whose
// files are gone, in version order.
func MigrationStatus(ctx context.Context, db *DB, fsys fs.FS) ([]MigrationState, error) {
	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return nil, err
	}
	versions, err := listVersions(fsys)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(versions))
	out := make([]MigrationState, 0, len(versions))
	for _, v := range versions {
		seen[v] = true
		out = append(out, MigrationState{Version: v, Applied: applied[v]})
	}
	for v := range applied {
		if !seen[v] {
			out = append(out, MigrationState{Version: v, Applied: true})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func appliedVersions(ctx context.Context, db *DB) (map[string]bool, error) {
	if _, err := db.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}

	rows, err := db.Pool.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("read schema_migrations: %w", err)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out[v] = true
	}
	return out, rows.Err()
}

func listVersions(fsys fs.FS) ([]string, error) {
	files, err := fs.Glob(fsys, "*.up.sql")
	if err != nil {
		return nil, err
	}
	versions := make([]string, 0, len(files))
	for _, f := range files {
		versions = append(versions, strings.TrimSuffix(f, ".up.sql"))
	}
	sort.Strings(versions)
	return versions, nil
}

func runFile(ctx context.Context, db *DB, fsys fs.FS, name, record, version string) error {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	return pgx.BeginFunc(ctx, db.Pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, string(data)); err != nil {
			return fmt.Errorf("exec %s: %w", name, err)
		}
		if _, err := tx.Exec(ctx, record, version); err != nil {
			return fmt.Errorf("record %s: %w", version, err)
		}
		return nil
	})
}
