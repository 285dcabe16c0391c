package http

import (
	"sync"

	"github.com/samirrijal/pingsphere/internal/core/domain"
	"github.com/samirrijal/pingsphere/internal/pkg/geospatial"
)

const (
	// localTolerance is how close (in degrees) a ping endpoint must be to the
	// viewer's own coordinate for the ping to count as the viewer's.
	localTolerance = 0.01

	// pathBatch caps how many missing paths one frame asks the relay to look up.
	pathBatch = 64
)

// sideEntry is what a viewer remembers about a ping it has been sent.
type sideEntry struct {
	from, to  domain.GeoPoint
	pathSent  bool
	requested bool
	// early is set when the path arrived before any frame listed the ping.
	early bool
}

// viewer is the per-connection side table of the WebSocket relay. Ping
// paths never change, so each one is sent once per connection; entries are
// dropped as soon as the ping is evicted or stops appearing in frames.
type viewer struct {
	mu    sync.Mutex
	seen  map[string]*sideEntry
	local *domain.GeoPoint
}

func newViewer() *viewer {
	return &viewer{seen: make(map[string]*sideEntry)}
}

// locate sets the viewer's own coordinate.
func (v *viewer) locate(p domain.GeoPoint) {
	v.mu.Lock()
	defer v.mu.Unlock()
	r := p.Rounded()
	v.local = &r
}

// frame rewrites f for this viewer: pings near the viewer are flagged local
// and side entries for pings that vanished are disposed. It also returns
// up to pathBatch ids whose path this viewer still needs. f itself is not
// modified.
func (v *viewer) frame(f *domain.Frame) (*domain.Frame, []string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	out := &domain.Frame{
		Time:      f.Time,
		Presences: f.Presences,
		Pings:     make([]domain.PingState, len(f.Pings)),
	}
	var missing []string
	present := make(map[string]struct{}, len(f.Pings))
	for i, p := range f.Pings {
		present[p.ID] = struct{}{}
		e, ok := v.seen[p.ID]
		if !ok {
			e = &sideEntry{}
			v.seen[p.ID] = e
		}
		e.from, e.to, e.early = p.From, p.To, false
		if !e.pathSent && !e.requested && len(missing) < pathBatch {
			e.requested = true
			missing = append(missing, p.ID)
		}
		p.Path = nil
		p.Local = p.InvolvesLocalActor || v.isLocalLocked(p.From, p.To)
		out.Pings[i] = p
	}
	for id, e := range v.seen {
		if _, ok := present[id]; ok {
			continue
		}
		if e.early {
			e.early = false
			continue
		}
		delete(v.seen, id)
	}
	return out, missing
}

// path reports whether pp should be forwarded and marks it delivered.
func (v *viewer) path(pp *domain.PingPath) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	e, ok := v.seen[pp.PingID]
	if !ok {
		v.seen[pp.PingID] = &sideEntry{pathSent: true, early: true}
		return true
	}
	if e.pathSent {
		return false
	}
	e.pathSent = true
	return true
}

// cue reports whether a phase transition concerns this viewer.
func (v *viewer) cue(tr *domain.PhaseTransition) bool {
	if tr.InvolvesLocalActor {
		return true
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	e, ok := v.seen[tr.PingID]
	return ok && !e.early && v.isLocalLocked(e.from, e.to)
}

// evict disposes the side entry for an evicted ping.
func (v *viewer) evict(ev *domain.Eviction) {
	if ev.Kind != domain.KindPing {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.seen, ev.ID)
}

// reset forgets every delivered path, for a client that stopped frames.
func (v *viewer) reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.seen = make(map[string]*sideEntry)
}

func (v *viewer) size() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.seen)
}

func (v *viewer) isLocalLocked(from, to domain.GeoPoint) bool {
	if v.local == nil {
		return false
	}
	return geospatial.Near(from, *v.local, localTolerance) || geospatial.Near(to, *v.local, localTolerance)
}
