//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/samirrijal/pingsphere/internal/adapters/postgres"
	"github.com/samirrijal/pingsphere/internal/core/domain"
	"github.com/samirrijal/pingsphere/migrations"
)

var testDB *postgres.DB

// TestMain starts a throwaway Postgres container and applies the schema.
func TestMain(m *testing.M) {
	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "pingsphere",
				"POSTGRES_PASSWORD": "pingsphere",
				"POSTGRES_DB":       "pingsphere",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("start postgres container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		log.Fatalf("container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		log.Fatalf("container port: %v", err)
	}

	dsn := fmt.Sprintf("postgres://pingsphere:pingsphere@%s:%s/pingsphere?sslmode=disable", host, port.Port())
	testDB, err = postgres.New(ctx, dsn, 5)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	if _, err := postgres.Migrate(ctx, testDB, migrations.FS, "up"); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	code := m.Run()

	testDB.Close()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func TestMigrate_UpIsIdempotent(t *testing.T) {
	applied, err := postgres.Migrate(context.Background(), testDB, migrations.FS, "up")
	if err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if len(applied) != 0 {
		t.Errorf("second up applied %v, want nothing", applied)
	}

	states, err := postgres.MigrationStatus(context.Background(), testDB, migrations.FS)
	if err != nil {
		t.Fatalf("MigrationStatus: %v", err)
	}
	if len(states) != 2 {
		t.Fatalf("expected 2 versions, got %+v", states)
	}
	for _, s := range states {
		if !s.Applied {
			t.Errorf("version %s not applied", s.Version)
		}
	}
}

func TestPresenceRepo(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewPresenceRepo(testDB)
	now := time.Now().UTC().Truncate(time.Microsecond)

	fresh := &domain.Presence{ID: "it-fresh", Location: domain.GeoPoint{Lat: 43.26, Lon: -2.93}, LastActiveAt: now.Add(-time.Hour)}
	stale := &domain.Presence{ID: "it-stale", Location: domain.GeoPoint{Lat: 1, Lon: 1}, LastActiveAt: now.Add(-48 * time.Hour)}
	online := &domain.Presence{ID: "it-online", Location: domain.GeoPoint{Lat: 2, Lon: 2}, LastActiveAt: now.Add(-72 * time.Hour), IsOnline: true}
	for _, p := range []*domain.Presence{fresh, stale, online} {
		if err := repo.Upsert(ctx, p); err != nil {
			t.Fatalf("Upsert %s: %v", p.ID, err)
		}
	}

	got, err := repo.GetByID(ctx, "it-fresh")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Location != fresh.Location || !got.LastActiveAt.Equal(fresh.LastActiveAt) {
		t.Errorf("GetByID = %+v, want %+v", got, fresh)
	}

	if _, err := repo.GetByID(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("missing presence: got %v, want ErrNotFound", err)
	}

	active, err := repo.ListActive(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	ids := map[string]bool{}
	for _, p := range active {
		ids[p.ID] = true
	}
	if !ids["it-fresh"] || !ids["it-online"] || ids["it-stale"] {
		t.Errorf("ListActive ids = %v", ids)
	}

	n, err := repo.DeleteOfflineBefore(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteOfflineBefore: %v", err)
	}
	if n != 1 {
		t.Errorf("purged %d, want 1", n)
	}

	if err := repo.Delete(ctx, "it-fresh"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := repo.Delete(ctx, "it-fresh"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("second delete: got %v, want ErrNotFound", err)
	}
}

func TestPingRepo(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewPingRepo(testDB)
	now := time.Now().UTC().Truncate(time.Microsecond)

	for i, age := range []time.Duration{time.Minute, time.Hour, 30 * time.Hour} {
		p := &domain.Ping{
			ID:        fmt.Sprintf("it-ping-%d", i),
			From:      domain.GeoPoint{Lat: 40.42, Lon: -3.7},
			To:        domain.GeoPoint{Lat: 35.68, Lon: 139.65},
			CreatedAt: now.Add(-age),
		}
		if err := repo.Insert(ctx, p); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	dup := &domain.Ping{ID: "it-ping-0", CreatedAt: now}
	if err := repo.Insert(ctx, dup); !errors.Is(err, domain.ErrDuplicate) {
		t.Errorf("duplicate insert: got %v, want ErrDuplicate", err)
	}

	all, err := repo.ListSince(ctx, now.Add(-24*time.Hour), 0)
	if err != nil {
		t.Fatalf("ListSince: %v", err)
	}
	if len(all) != 2 || all[0].ID != "it-ping-0" {
		t.Errorf("ListSince = %+v, want 2 pings newest first", all)
	}

	one, err := repo.ListSince(ctx, now.Add(-24*time.Hour), 1)
	if err != nil || len(one) != 1 {
		t.Errorf("ListSince limit 1 = %d pings, %v", len(one), err)
	}

	n, err := repo.DeleteBefore(ctx, now.Add(-24*time.Hour))
	if err != nil || n != 1 {
		t.Errorf("DeleteBefore = %d, %v; want 1", n, err)
	}
	if _, err := repo.GetByID(ctx, "it-ping-2"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("purged ping: got %v, want ErrNotFound", err)
	}
}
