package usecases_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/samirrijal/pingsphere/internal/core/domain"
	"github.com/samirrijal/pingsphere/internal/core/usecases"
)

func TestPresenceService_Heartbeat_NewPresence(t *testing.T) {
	var stored *domain.Presence
	repo := &mockPresenceRepo{
		upsertFn: func(ctx context.Context, p *domain.Presence) error {
			stored = p
			return nil
		},
	}
	pub := &recordingPublisher{}
	svc := usecases.NewPresenceService(repo, pub)

	p, err := svc.Heartbeat(context.Background(), "", domain.GeoPoint{Lat: 43.26312, Lon: -2.93456}, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID == "" {
		t.Error("expected an id to be allocated")
	}
	if p.Location.Lat != 43.26 || p.Location.Lon != -2.93 {
		t.Errorf("location not rounded: %+v", p.Location)
	}
	if stored == nil || stored.ID != p.ID {
		t.Fatal("presence not persisted")
	}
	if len(pub.presences) != 1 || pub.presences[0].Type != domain.PresenceInsert {
		t.Fatalf("expected one insert event, got %+v", pub.presences)
	}
	if pub.presences[0].IsOnline == nil || !*pub.presences[0].IsOnline {
		t.Error("event should carry online=true")
	}
}

func TestPresenceService_Heartbeat_KnownPresenceIsUpdate(t *testing.T) {
	repo := &mockPresenceRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Presence, error) {
			return &domain.Presence{ID: id}, nil
		},
	}
	pub := &recordingPublisher{}
	svc := usecases.NewPresenceService(repo, pub)

	if _, err := svc.Heartbeat(context.Background(), "p1", domain.GeoPoint{Lat: 1, Lon: 2}, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pub.presences) != 1 || pub.presences[0].Type != domain.PresenceUpdate {
		t.Fatalf("expected one update event, got %+v", pub.presences)
	}
}

func TestPresenceService_Heartbeat_InvalidLocation(t *testing.T) {
	called := false
	repo := &mockPresenceRepo{
		upsertFn: func(ctx context.Context, p *domain.Presence) error {
			called = true
			return nil
		},
	}
	svc := usecases.NewPresenceService(repo, nil)

	_, err := svc.Heartbeat(context.Background(), "p1", domain.GeoPoint{Lat: 95, Lon: 0}, true)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if called {
		t.Error("invalid presence must not be stored")
	}
}

func TestPresenceService_Disconnect(t *testing.T) {
	repo := &mockPresenceRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Presence, error) {
			return &domain.Presence{ID: id, IsOnline: true, Location: domain.GeoPoint{Lat: 1, Lon: 1}}, nil
		},
	}
	pub := &recordingPublisher{}
	svc := usecases.NewPresenceService(repo, pub)

	p, err := svc.Disconnect(context.Background(), "p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.IsOnline {
		t.Error("expected presence offline")
	}
	if len(pub.presences) != 1 || *pub.presences[0].IsOnline {
		t.Errorf("expected offline update event, got %+v", pub.presences)
	}
}

func TestPresenceService_Delete_PublishesDelete(t *testing.T) {
	pub := &recordingPublisher{}
	svc := usecases.NewPresenceService(&mockPresenceRepo{}, pub)

	if err := svc.Delete(context.Background(), "p1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pub.presences) != 1 || pub.presences[0].Type != domain.PresenceDelete {
		t.Errorf("expected delete event, got %+v", pub.presences)
	}
}

func TestPresenceService_ListActive_FiltersDark(t *testing.T) {
	now := time.Now()
	repo := &mockPresenceRepo{
		listActiveFn: func(ctx context.Context, since time.Time) ([]domain.Presence, error) {
			return []domain.Presence{
				{ID: "fresh", LastActiveAt: now.Add(-6 * time.Hour)},
				{ID: "dark", LastActiveAt: now.Add(-25 * time.Hour)},
				{ID: "online", LastActiveAt: now.Add(-72 * time.Hour), IsOnline: true},
			}, nil
		},
	}
	svc := usecases.NewPresenceService(repo, nil)

	list, err := svc.ListActive(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 visible presences, got %d", len(list))
	}
	for _, p := range list {
		if p.ID == "dark" {
			t.Error("dark presence should be filtered out")
		}
	}
}
