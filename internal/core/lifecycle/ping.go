package lifecycle

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/samirrijal/pingsphere/internal/core/domain"
	"github.com/samirrijal/pingsphere/internal/pkg/geospatial"
)

type livePing struct {
	ping  domain.Ping
	path  domain.Path
	state domain.PhaseState
}

// TickResult reports what changed during one PingEngine.Tick.
type TickResult struct {
	Transitions []domain.PhaseTransition
	Evicted     []string
}

// PingEngine drives every live ping through Drawing, Glowing, Fading and
// Decaying. Phases only move forward, at most one step per tick, so each
// phase entry is reported exactly once. Not safe for concurrent use.
type PingEngine struct {
	cfg   Config
	base  colorful.Color
	white colorful.Color
	pings map[string]*livePing
}

// NewPingEngine validates cfg and returns an empty engine.
func NewPingEngine(cfg Config) (*PingEngine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	base, err := colorful.Hex(cfg.PingColor)
	if err != nil {
		return nil, fmt.Errorf("ping color: %w", err)
	}
	return &PingEngine{
		cfg:   cfg,
		base:  base,
		white: colorful.Color{R: 1, G: 1, B: 1},
		pings: make(map[string]*livePing),
	}, nil
}

// Config returns the engine's timings.
func (e *PingEngine) Config() Config { return e.cfg }

// Create starts a new ping in the Drawing phase and returns its id.
func (e *PingEngine) Create(from, to domain.GeoPoint, involvesLocalActor bool, now time.Time) (string, error) {
	id := uuid.NewString()
	if err := e.CreateWithID(id, from, to, involvesLocalActor, now); err != nil {
		return "", err
	}
	return id, nil
}

// CreateWithID is Create with a caller-chosen id, used for pings that
// arrive from other nodes.
func (e *PingEngine) CreateWithID(id string, from, to domain.GeoPoint, involvesLocalActor bool, now time.Time) error {
	if id == "" {
		return fmt.Errorf("%w: ping id is required", domain.ErrInvalidInput)
	}
	if now.IsZero() {
		return fmt.Errorf("%w: ping creation time is required", domain.ErrInvalidInput)
	}
	p := domain.Ping{ID: id, From: from, To: to, CreatedAt: now, InvolvesLocalActor: involvesLocalActor}
	if err := p.Validate(); err != nil {
		return err
	}
	if _, ok := e.pings[id]; ok {
		return fmt.Errorf("%w: ping %s", domain.ErrDuplicate, id)
	}

	e.pings[id] = &livePing{
		ping:  p,
		path:  geospatial.BuildArc(from, to, e.cfg.Arc),
		state: domain.PhaseState{Current: domain.PhaseDrawing, EnteredAt: now},
	}
	return nil
}

// Restore re-admits a persisted ping directly into the phase matching its
// age at now, without reporting the phases it already went through.
// It returns false when the ping is already past its lifetime.
func (e *PingEngine) Restore(p domain.Ping, now time.Time) (bool, error) {
	if err := p.Validate(); err != nil {
		return false, err
	}
	if p.ID == "" || p.CreatedAt.IsZero() {
		return false, fmt.Errorf("%w: restored ping needs id and created_at", domain.ErrInvalidInput)
	}
	if _, ok := e.pings[p.ID]; ok {
		return false, fmt.Errorf("%w: ping %s", domain.ErrDuplicate, p.ID)
	}
	if now.Sub(p.CreatedAt) >= e.cfg.Lifetime {
		return false, nil
	}

	state := domain.PhaseState{Current: domain.PhaseDrawing, EnteredAt: p.CreatedAt}
	for state.Current != domain.PhaseDecaying {
		d := e.cfg.Duration(state.Current)
		if now.Sub(state.EnteredAt) < d {
			break
		}
		state = domain.PhaseState{Current: state.Current.Next(), EnteredAt: state.EnteredAt.Add(d)}
	}

	e.pings[p.ID] = &livePing{
		ping:  p,
		path:  geospatial.BuildArc(p.From, p.To, e.cfg.Arc),
		state: state,
	}
	return true, nil
}

// Remove drops a ping immediately, whatever its phase.
func (e *PingEngine) Remove(id string) bool {
	if _, ok := e.pings[id]; !ok {
		return false
	}
	delete(e.pings, id)
	return true
}

// Len returns the number of live pings.
func (e *PingEngine) Len() int { return len(e.pings) }

// Phase returns the current phase state of a ping.
func (e *PingEngine) Phase(id string) (domain.PhaseState, bool) {
	lp, ok := e.pings[id]
	if !ok {
		return domain.PhaseState{}, false
	}
	return lp.state, true
}

// Tick advances each ping by at most one phase and evicts pings that have
// reached the end of Decaying. A phase's entry time is the scheduled
// boundary, not the tick time, so late ticks do not stretch the timeline.
func (e *PingEngine) Tick(now time.Time) TickResult {
	var res TickResult
	for id, lp := range e.pings {
		if cur := lp.state.Current; cur != domain.PhaseDecaying {
			d := e.cfg.Duration(cur)
			if now.Sub(lp.state.EnteredAt) >= d {
				lp.state = domain.PhaseState{Current: cur.Next(), EnteredAt: lp.state.EnteredAt.Add(d)}
				res.Transitions = append(res.Transitions, domain.PhaseTransition{
					PingID:             id,
					From:               cur,
					To:                 lp.state.Current,
					At:                 lp.state.EnteredAt,
					InvolvesLocalActor: lp.ping.InvolvesLocalActor,
				})
			}
		}
		if lp.state.Current == domain.PhaseDecaying && now.Sub(lp.ping.CreatedAt) >= e.cfg.Lifetime {
			delete(e.pings, id)
			res.Evicted = append(res.Evicted, id)
		}
	}
	return res
}

// Snapshot returns the render state of every live ping. Paths are only
// attached when withPath is set, since they never change after creation.
func (e *PingEngine) Snapshot(now time.Time, withPath bool) []domain.PingState {
	out := make([]domain.PingState, 0, len(e.pings))
	for _, lp := range e.pings {
		out = append(out, e.render(lp, now, withPath))
	}
	return out
}

// Path returns the arc geometry of a live ping.
func (e *PingEngine) Path(id string) (domain.Path, bool) {
	lp, ok := e.pings[id]
	if !ok {
		return domain.Path{}, false
	}
	return lp.path, true
}

// Get returns the render state of a single ping, including its path.
func (e *PingEngine) Get(id string, now time.Time) (domain.PingState, bool) {
	lp, ok := e.pings[id]
	if !ok {
		return domain.PingState{}, false
	}
	return e.render(lp, now, true), true
}
