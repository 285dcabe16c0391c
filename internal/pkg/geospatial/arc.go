package geospatial

import (
	"math"

	"github.com/samirrijal/pingsphere/internal/core/domain"
)

// ArcConfig shapes the path of a ping arc.
type ArcConfig struct {
	Segments      int
	Radius        float64
	MinHeight     float64
	MaxHeight     float64
	MinDistanceKm float64
	MaxDistanceKm float64
}

// DefaultArcConfig returns the arc shape used when nothing is configured.
func DefaultArcConfig() ArcConfig {
	return ArcConfig{
		Segments:      64,
		Radius:        1,
		MinHeight:     0.02,
		MaxHeight:     0.35,
		MinDistanceKm: 500,
		MaxDistanceKm: 10000,
	}
}

// ApexHeight scales the peak height of an arc linearly between MinHeight and
// MaxHeight across the [MinDistanceKm, MaxDistanceKm] band.
func (c ArcConfig) ApexHeight(distanceKm float64) float64 {
	span := c.MaxDistanceKm - c.MinDistanceKm
	if span <= 0 {
		if distanceKm >= c.MaxDistanceKm {
			return c.MaxHeight
		}
		return c.MinHeight
	}
	t := (distanceKm - c.MinDistanceKm) / span
	switch {
	case t <= 0:
		return c.MinHeight
	case t >= 1:
		return c.MaxHeight
	}
	return c.MinHeight + t*(c.MaxHeight-c.MinHeight)
}

// BuildArc computes the render path of an arc from a to b. The arc follows
// the great circle and lifts off the surface by apex·sin(πt).
func BuildArc(a, b domain.GeoPoint, cfg ArcConfig) domain.Path {
	dist := DistanceKm(a, b)
	apex := cfg.ApexHeight(dist)

	ground := InterpolateGreatCircle(a, b, cfg.Segments)
	n := len(ground) - 1
	points := make([]domain.Vec3, len(ground))
	for i, p := range ground {
		t := float64(i) / float64(n)
		points[i] = Project(p, cfg.Radius+apex*math.Sin(math.Pi*t))
	}

	return domain.Path{Points: points, ApexHeight: apex, DistanceKm: dist}
}
