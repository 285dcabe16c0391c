// Package lifecycle holds the time-driven state of every live entity on the
// globe: decaying presence points and phased ping arcs. Nothing in here
// performs I/O or reads the wall clock; callers pass `now` explicitly.
package lifecycle

import (
	"fmt"
	"strings"
	"time"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/samirrijal/pingsphere/internal/core/domain"
	"github.com/samirrijal/pingsphere/internal/pkg/geospatial"
)

// DecayWindow is how long an offline presence takes to fade out.
const DecayWindow = 24 * time.Hour

const (
	glowBase      = 0.4
	glowAmplitude = 0.3
	glowCeiling   = glowBase + glowAmplitude
	primaryLevel  = 1.0
)

// Config holds per-phase durations and visual parameters for ping arcs.
type Config struct {
	Drawing     time.Duration
	Glowing     time.Duration
	Fading      time.Duration
	Lifetime    time.Duration // total age at which a ping is evicted
	PulsePeriod time.Duration
	FadeFloor   float64 // fraction of full opacity left when Fading ends
	PingColor   string
	Arc         geospatial.ArcConfig
}

// DefaultConfig returns the stock lifecycle timings.
func DefaultConfig() Config {
	return Config{
		Drawing:     3 * time.Second,
		Glowing:     5 * time.Second,
		Fading:      10 * time.Second,
		Lifetime:    24 * time.Hour,
		PulsePeriod: 1500 * time.Millisecond,
		FadeFloor:   0.1,
		PingColor:   "#3ddcff",
		Arc:         geospatial.DefaultArcConfig(),
	}
}

// Validate checks that the phase timeline is well formed.
func (c Config) Validate() error {
	var errs []string
	if c.Drawing <= 0 || c.Glowing <= 0 || c.Fading <= 0 {
		errs = append(errs, "phase durations must be positive")
	}
	if c.Lifetime <= c.activeSpan() {
		errs = append(errs, fmt.Sprintf("lifetime %s must exceed drawing+glowing+fading (%s)", c.Lifetime, c.activeSpan()))
	}
	if c.PulsePeriod <= 0 {
		errs = append(errs, "pulse period must be positive")
	}
	if c.FadeFloor < 0 || c.FadeFloor > 1 {
		errs = append(errs, "fade floor must be within [0, 1]")
	}
	if _, err := colorful.Hex(c.PingColor); err != nil {
		errs = append(errs, fmt.Sprintf("ping color %q: %v", c.PingColor, err))
	}
	if c.Arc.Segments < 1 {
		errs = append(errs, "arc segments must be at least 1")
	}
	if c.Arc.MinHeight < 0 || c.Arc.MaxHeight < c.Arc.MinHeight {
		errs = append(errs, "arc heights must satisfy 0 <= min <= max")
	}
	if len(errs) > 0 {
		return fmt.Errorf("lifecycle config invalid:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Duration returns how long a ping stays in phase p.
func (c Config) Duration(p domain.Phase) time.Duration {
	switch p {
	case domain.PhaseDrawing:
		return c.Drawing
	case domain.PhaseGlowing:
		return c.Glowing
	case domain.PhaseFading:
		return c.Fading
	default:
		return c.Lifetime - c.activeSpan()
	}
}

// activeSpan is the age at which a ping enters Decaying.
func (c Config) activeSpan() time.Duration {
	return c.Drawing + c.Glowing + c.Fading
}
