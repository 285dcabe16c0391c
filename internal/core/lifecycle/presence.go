package lifecycle

import (
	"time"

	"github.com/samirrijal/pingsphere/internal/core/domain"
)

// PresenceRegistry owns the set of live presence points.
// It is not safe for concurrent use; a single owner drives it.
type PresenceRegistry struct {
	window  time.Duration
	entries map[string]*domain.Presence
}

// NewPresenceRegistry creates a registry whose offline entries fade over window.
// A non-positive window falls back to DecayWindow.
func NewPresenceRegistry(window time.Duration) *PresenceRegistry {
	if window <= 0 {
		window = DecayWindow
	}
	return &PresenceRegistry{
		window:  window,
		entries: make(map[string]*domain.Presence),
	}
}

// Upsert inserts p or overwrites the location and activity of an existing entry.
func (r *PresenceRegistry) Upsert(p domain.Presence) {
	if cur, ok := r.entries[p.ID]; ok {
		cur.Location = p.Location
		cur.LastActiveAt = p.LastActiveAt
		cur.IsOnline = p.IsOnline
		return
	}
	cp := p
	r.entries[p.ID] = &cp
}

// Remove drops an entry regardless of its brightness.
func (r *PresenceRegistry) Remove(id string) bool {
	if _, ok := r.entries[id]; !ok {
		return false
	}
	delete(r.entries, id)
	return true
}

// Get returns a copy of the entry with the given id.
func (r *PresenceRegistry) Get(id string) (domain.Presence, bool) {
	p, ok := r.entries[id]
	if !ok {
		return domain.Presence{}, false
	}
	return *p, true
}

// Len returns the number of live entries.
func (r *PresenceRegistry) Len() int { return len(r.entries) }

// Brightness returns the derived brightness of p at now.
func (r *PresenceRegistry) Brightness(p domain.Presence, now time.Time) float64 {
	return brightnessOver(p.LastActiveAt, p.IsOnline, now, r.window)
}

// Tick evicts every entry whose brightness has reached zero and returns
// the evicted ids.
func (r *PresenceRegistry) Tick(now time.Time) []string {
	var evicted []string
	for id, p := range r.entries {
		if r.Brightness(*p, now) <= 0 {
			delete(r.entries, id)
			evicted = append(evicted, id)
		}
	}
	return evicted
}

// Snapshot returns the render state of every live entry. Order is unspecified.
func (r *PresenceRegistry) Snapshot(now time.Time) []domain.PresenceState {
	out := make([]domain.PresenceState, 0, len(r.entries))
	for _, p := range r.entries {
		out = append(out, domain.PresenceState{
			Presence:   *p,
			Brightness: r.Brightness(*p, now),
		})
	}
	return out
}
