package lifecycle_test

import (
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/samirrijal/pingsphere/internal/core/domain"
	"github.com/samirrijal/pingsphere/internal/core/lifecycle"
)

var (
	origin  = domain.GeoPoint{Lat: 0, Lon: 0}
	quarter = domain.GeoPoint{Lat: 0, Lon: 90}
)

func newEngine(t *testing.T) *lifecycle.PingEngine {
	t.Helper()
	e, err := lifecycle.NewPingEngine(lifecycle.DefaultConfig())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return e
}

func phaseOf(t *testing.T, e *lifecycle.PingEngine, id string) domain.Phase {
	t.Helper()
	st, ok := e.Phase(id)
	if !ok {
		t.Fatalf("ping %s not live", id)
	}
	return st.Current
}

func TestPingEngine_PhaseTimeline(t *testing.T) {
	e := newEngine(t)
	cfg := e.Config()
	id, err := e.Create(origin, quarter, false, t0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	const eps = time.Millisecond
	steps := []struct {
		at   time.Duration
		want domain.Phase
	}{
		{0, domain.PhaseDrawing},
		{cfg.Drawing + eps, domain.PhaseGlowing},
		{cfg.Drawing + cfg.Glowing + eps, domain.PhaseFading},
		{cfg.Drawing + cfg.Glowing + cfg.Fading + eps, domain.PhaseDecaying},
	}
	for _, s := range steps {
		e.Tick(t0.Add(s.at))
		if got := phaseOf(t, e, id); got != s.want {
			t.Fatalf("at +%s: phase %s, want %s", s.at, got, s.want)
		}
	}

	res := e.Tick(t0.Add(cfg.Lifetime + eps))
	if len(res.Evicted) != 1 || res.Evicted[0] != id {
		t.Fatalf("expected eviction at +24h, got %+v", res)
	}
	if e.Len() != 0 {
		t.Errorf("engine still holds %d pings", e.Len())
	}
}

func TestPingEngine_NoEvictionBeforeLifetime(t *testing.T) {
	e := newEngine(t)
	id, _ := e.Create(origin, quarter, false, t0)
	for _, d := range []time.Duration{time.Hour, 2 * time.Hour, 3 * time.Hour, 23 * time.Hour} {
		e.Tick(t0.Add(d))
	}
	res := e.Tick(t0.Add(e.Config().Lifetime - time.Nanosecond))
	if len(res.Evicted) != 0 {
		t.Fatalf("evicted early: %v", res.Evicted)
	}
	if phaseOf(t, e, id) != domain.PhaseDecaying {
		t.Errorf("expected Decaying just before lifetime")
	}
}

func TestPingEngine_OneAdvancePerTick(t *testing.T) {
	e := newEngine(t)
	id, _ := e.Create(origin, quarter, false, t0)

	// a single very late tick must not skip phases
	late := t0.Add(25 * time.Hour)
	assertInvisible := func(stage string) {
		t.Helper()
		st, ok := e.Get(id, late)
		if !ok {
			t.Fatalf("%s: ping should still be live", stage)
		}
		if st.PrimaryOpacity != 0 || st.GlowOpacity != 0 {
			t.Errorf("%s: ping past its lifetime rendered primary=%.2f glow=%.2f in %s",
				stage, st.PrimaryOpacity, st.GlowOpacity, st.Phase)
		}
	}
	assertInvisible("before first tick")

	want := []domain.Phase{domain.PhaseGlowing, domain.PhaseFading, domain.PhaseDecaying}
	for i, w := range want {
		res := e.Tick(late)
		if len(res.Transitions) != 1 {
			t.Fatalf("tick %d: expected 1 transition, got %d", i, len(res.Transitions))
		}
		if res.Transitions[0].To != w {
			t.Fatalf("tick %d: entered %s, want %s", i, res.Transitions[0].To, w)
		}
		if i < len(want)-1 {
			if phaseOf(t, e, id) != w {
				t.Fatalf("tick %d: phase mismatch", i)
			}
			assertInvisible("catch-up into " + w.String())
		}
	}
	if e.Len() != 0 {
		t.Error("ping should be evicted on the tick that reaches Decaying past its lifetime")
	}
}

func TestPingEngine_TransitionTimesAreScheduledBoundaries(t *testing.T) {
	e := newEngine(t)
	cfg := e.Config()
	_, _ = e.Create(origin, quarter, true, t0)

	res := e.Tick(t0.Add(time.Minute))
	if len(res.Transitions) != 1 {
		t.Fatalf("expected one transition, got %d", len(res.Transitions))
	}
	tr := res.Transitions[0]
	if !tr.At.Equal(t0.Add(cfg.Drawing)) {
		t.Errorf("glowing entered at %v, want %v", tr.At, t0.Add(cfg.Drawing))
	}
	if !tr.InvolvesLocalActor {
		t.Error("transition should carry the local actor flag")
	}
}

// Irregular, bursty ticks: every phase is entered exactly once, in order,
// and the Glowing cue fires exactly once.
func TestPingEngine_CueExactlyOnceUnderIrregularTicks(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for run := 0; run < 50; run++ {
		e := newEngine(t)
		id, _ := e.Create(origin, quarter, false, t0)

		entered := map[domain.Phase]int{}
		last := domain.PhaseDrawing
		now := t0
		for e.Len() > 0 {
			switch rng.Intn(4) {
			case 0: // burst: several ticks at the same instant
			case 1:
				now = now.Add(time.Duration(rng.Intn(500)) * time.Millisecond)
			case 2:
				now = now.Add(time.Duration(rng.Intn(20)) * time.Second)
			default:
				now = now.Add(time.Duration(rng.Intn(6)) * time.Hour)
			}
			res := e.Tick(now)
			for _, tr := range res.Transitions {
				if tr.PingID != id {
					t.Fatalf("unexpected ping id %s", tr.PingID)
				}
				if tr.To <= last || tr.To != tr.From.Next() || tr.From != last {
					t.Fatalf("run %d: bad transition %s -> %s after %s", run, tr.From, tr.To, last)
				}
				last = tr.To
				entered[tr.To]++
			}
			if now.Sub(t0) > 100*time.Hour {
				t.Fatalf("run %d: ping never evicted", run)
			}
		}

		for _, p := range []domain.Phase{domain.PhaseGlowing, domain.PhaseFading, domain.PhaseDecaying} {
			if entered[p] != 1 {
				t.Fatalf("run %d: phase %s entered %d times", run, p, entered[p])
			}
		}
	}
}

func TestPingEngine_EntitiesAreIndependent(t *testing.T) {
	e := newEngine(t)
	cfg := e.Config()
	a, _ := e.Create(origin, quarter, false, t0)
	b, _ := e.Create(quarter, origin, false, t0.Add(cfg.Drawing))

	e.Tick(t0.Add(cfg.Drawing + time.Millisecond))
	if phaseOf(t, e, a) != domain.PhaseGlowing {
		t.Error("a should be glowing")
	}
	if phaseOf(t, e, b) != domain.PhaseDrawing {
		t.Error("b should still be drawing")
	}

	e.Remove(a)
	e.Tick(t0.Add(2*cfg.Drawing + time.Millisecond))
	if phaseOf(t, e, b) != domain.PhaseGlowing {
		t.Error("removing a must not affect b")
	}
}

func TestPingEngine_RejectsInvalidCoordinates(t *testing.T) {
	e := newEngine(t)
	bad := []domain.GeoPoint{
		{Lat: 91, Lon: 0},
		{Lat: -90.5, Lon: 0},
		{Lat: 0, Lon: 180.01},
		{Lat: math.NaN(), Lon: 0},
	}
	for _, p := range bad {
		if _, err := e.Create(origin, p, false, t0); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("to=%v: expected ErrInvalidInput, got %v", p, err)
		}
		if _, err := e.Create(p, origin, false, t0); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("from=%v: expected ErrInvalidInput, got %v", p, err)
		}
	}
	if e.Len() != 0 {
		t.Errorf("invalid pings entered the engine: %d", e.Len())
	}
}

func TestPingEngine_DuplicateID(t *testing.T) {
	e := newEngine(t)
	if err := e.CreateWithID("x", origin, quarter, false, t0); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := e.CreateWithID("x", origin, quarter, false, t0); !errors.Is(err, domain.ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}
}

func TestPingEngine_ApexHeightScalesWithDistance(t *testing.T) {
	e := newEngine(t)
	arc := e.Config().Arc

	far, _ := e.Create(origin, quarter, false, t0)
	near, err := e.Create(origin, domain.GeoPoint{Lat: 0, Lon: 0.001}, false, t0)
	if err != nil {
		t.Fatalf("near-coincident ping: %v", err)
	}
	same, err := e.Create(origin, origin, false, t0)
	if err != nil {
		t.Fatalf("coincident ping: %v", err)
	}

	farState, _ := e.Get(far, t0)
	nearState, _ := e.Get(near, t0)
	sameState, _ := e.Get(same, t0)
	if farState.Path.ApexHeight != arc.MaxHeight {
		t.Errorf("far apex %f, want %f", farState.Path.ApexHeight, arc.MaxHeight)
	}
	if nearState.Path.ApexHeight != arc.MinHeight {
		t.Errorf("near apex %f, want %f", nearState.Path.ApexHeight, arc.MinHeight)
	}
	if len(sameState.Path.Points) != arc.Segments+1 {
		t.Errorf("coincident path has %d points", len(sameState.Path.Points))
	}
}

func TestPingEngine_SnapshotVisuals(t *testing.T) {
	e := newEngine(t)
	cfg := e.Config()
	id, _ := e.Create(origin, quarter, false, t0)

	get := func(now time.Time) domain.PingState {
		t.Helper()
		for _, s := range e.Snapshot(now, false) {
			if s.ID == id {
				if s.Path != nil {
					t.Error("snapshot without path should not carry one")
				}
				return s
			}
		}
		t.Fatalf("ping missing from snapshot")
		return domain.PingState{}
	}

	// Drawing, halfway
	s := get(t0.Add(cfg.Drawing / 2))
	if math.Abs(s.RevealFraction-0.5) > 1e-9 || s.GlowOpacity != 0 || s.PrimaryOpacity != 1 {
		t.Errorf("drawing visuals wrong: %+v", s)
	}
	if s.ColorBlend != 0 || s.Color != "#3ddcff" {
		t.Errorf("drawing color wrong: %f %s", s.ColorBlend, s.Color)
	}

	// Glowing: pulse stays within [0.1, 0.7]
	e.Tick(t0.Add(cfg.Drawing))
	for ms := 0; ms < int(cfg.Glowing/time.Millisecond); ms += 37 {
		s = get(t0.Add(cfg.Drawing + time.Duration(ms)*time.Millisecond))
		if s.Phase != domain.PhaseGlowing || s.RevealFraction != 1 {
			t.Fatalf("expected full reveal while glowing: %+v", s)
		}
		if s.GlowOpacity < 0.1-1e-9 || s.GlowOpacity > 0.7+1e-9 {
			t.Fatalf("glow opacity out of range: %f", s.GlowOpacity)
		}
	}

	// Fading, halfway: opacity halfway between ceiling and 10%
	fadeStart := cfg.Drawing + cfg.Glowing
	e.Tick(t0.Add(fadeStart))
	s = get(t0.Add(fadeStart + cfg.Fading/2))
	if math.Abs(s.PrimaryOpacity-0.55) > 1e-9 {
		t.Errorf("fading primary %f, want 0.55", s.PrimaryOpacity)
	}
	if math.Abs(s.GlowOpacity-0.385) > 1e-9 {
		t.Errorf("fading glow %f, want 0.385", s.GlowOpacity)
	}
	if math.Abs(s.ColorBlend-0.5) > 1e-9 {
		t.Errorf("fading blend %f, want 0.5", s.ColorBlend)
	}

	// Decaying: starts at 10%, reaches 0 at the lifetime mark
	decayStart := fadeStart + cfg.Fading
	e.Tick(t0.Add(decayStart))
	s = get(t0.Add(decayStart))
	if math.Abs(s.PrimaryOpacity-0.1) > 1e-9 || s.ColorBlend != 1 || s.Color != "#ffffff" {
		t.Errorf("decay start visuals wrong: %+v", s)
	}
	s = get(t0.Add(cfg.Lifetime))
	if s.PrimaryOpacity != 0 || s.GlowOpacity != 0 {
		t.Errorf("decay end should be fully transparent: %+v", s)
	}
}

func TestPingEngine_Restore(t *testing.T) {
	e := newEngine(t)
	cfg := e.Config()
	now := t0.Add(time.Hour)

	tests := []struct {
		name    string
		created time.Time
		want    domain.Phase
		live    bool
	}{
		{"fresh", now, domain.PhaseDrawing, true},
		{"glowing", now.Add(-cfg.Drawing - time.Second), domain.PhaseGlowing, true},
		{"fading", now.Add(-cfg.Drawing - cfg.Glowing - time.Second), domain.PhaseFading, true},
		{"decaying", now.Add(-2 * time.Hour), domain.PhaseDecaying, true},
		{"expired", now.Add(-cfg.Lifetime), 0, false},
	}
	for _, tt := range tests {
		p := domain.Ping{ID: tt.name, From: origin, To: quarter, CreatedAt: tt.created}
		live, err := e.Restore(p, now)
		if err != nil {
			t.Fatalf("%s: restore: %v", tt.name, err)
		}
		if live != tt.live {
			t.Fatalf("%s: live=%v, want %v", tt.name, live, tt.live)
		}
		if live && phaseOf(t, e, tt.name) != tt.want {
			t.Errorf("%s: phase %s, want %s", tt.name, phaseOf(t, e, tt.name), tt.want)
		}
	}

	// restored pings report no transitions for phases they skipped
	res := e.Tick(now)
	if len(res.Transitions) != 0 {
		t.Errorf("restore leaked transitions: %+v", res.Transitions)
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := lifecycle.DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	cfg.Lifetime = cfg.Drawing
	cfg.PingColor = "not-a-color"
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error")
	}
}

func TestPingEngine_LateSnapshotHidesExpiredPings(t *testing.T) {
	e := newEngine(t)
	cfg := e.Config()
	stale, _ := e.Create(origin, quarter, false, t0)
	fresh, _ := e.Create(origin, quarter, false, t0.Add(cfg.Lifetime))

	// First tick arrives long after the stale ping should have gone.
	now := t0.Add(cfg.Lifetime + time.Hour)
	e.Tick(now)

	for _, st := range e.Snapshot(now, false) {
		switch st.ID {
		case stale:
			if st.PrimaryOpacity != 0 || st.GlowOpacity != 0 {
				t.Errorf("expired ping visible in %s: primary=%v glow=%v", st.Phase, st.PrimaryOpacity, st.GlowOpacity)
			}
		case fresh:
			if st.PrimaryOpacity == 0 {
				t.Error("live ping should stay visible")
			}
		}
	}

	for i := 0; i < 3 && e.Len() > 1; i++ {
		e.Tick(now)
	}
	if _, ok := e.Phase(stale); ok {
		t.Error("expired ping should be evicted once it reaches Decaying")
	}
	if _, ok := e.Phase(fresh); !ok {
		t.Error("live ping was evicted")
	}
}

func TestPingEngine_PathIsFixedAtCreation(t *testing.T) {
	e := newEngine(t)
	id, _ := e.Create(origin, quarter, false, t0)

	p, ok := e.Path(id)
	if !ok {
		t.Fatal("expected a path for a live ping")
	}
	if len(p.Points) != e.Config().Arc.Segments+1 {
		t.Errorf("path has %d points", len(p.Points))
	}
	for _, st := range e.Snapshot(t0, false) {
		if st.Path != nil {
			t.Error("snapshot without paths carried one")
		}
	}
	if _, ok := e.Path("missing"); ok {
		t.Error("unknown id should report no path")
	}
}
