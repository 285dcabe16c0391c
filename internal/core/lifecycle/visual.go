package lifecycle

import (
	"math"
	"time"

	"github.com/samirrijal/pingsphere/internal/core/domain"
)

// render derives the visual parameters of a ping from its phase and the
// time spent in it.
func (e *PingEngine) render(lp *livePing, now time.Time, withPath bool) domain.PingState {
	st := domain.PingState{Ping: lp.ping, Phase: lp.state.Current}
	elapsed := now.Sub(lp.state.EnteredAt)
	if elapsed < 0 {
		elapsed = 0
	}
	floor := e.cfg.FadeFloor

	switch lp.state.Current {
	case domain.PhaseDrawing:
		st.RevealFraction = fraction(elapsed, e.cfg.Drawing)
		st.PrimaryOpacity = primaryLevel

	case domain.PhaseGlowing:
		st.RevealFraction = 1
		st.PrimaryOpacity = primaryLevel
		st.GlowOpacity = glowBase + glowAmplitude*math.Sin(2*math.Pi*elapsed.Seconds()/e.cfg.PulsePeriod.Seconds())

	case domain.PhaseFading:
		f := fraction(elapsed, e.cfg.Fading)
		keep := 1 - (1-floor)*f
		st.RevealFraction = 1
		st.PrimaryOpacity = primaryLevel * keep
		st.GlowOpacity = glowCeiling * keep
		st.ColorBlend = f

	case domain.PhaseDecaying:
		d := fraction(elapsed, e.cfg.Duration(domain.PhaseDecaying))
		keep := floor * (1 - d)
		st.RevealFraction = 1
		st.PrimaryOpacity = primaryLevel * keep
		st.GlowOpacity = glowCeiling * keep
		st.ColorBlend = 1
	}

	// A ping ticked late can still be catching up through its phases.
	if now.Sub(lp.ping.CreatedAt) >= e.cfg.Lifetime {
		st.PrimaryOpacity, st.GlowOpacity = 0, 0
	}

	st.Color = e.base.BlendRgb(e.white, st.ColorBlend).Clamped().Hex()
	if withPath {
		path := lp.path
		st.Path = &path
	}
	return st
}

func fraction(elapsed, total time.Duration) float64 {
	if total <= 0 {
		return 1
	}
	return clamp01(float64(elapsed) / float64(total))
}
