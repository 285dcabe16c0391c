package geospatial

import (
	"math"

	"github.com/samirrijal/pingsphere/internal/core/domain"
)

// minAngle is the angular distance below which two points are treated as coincident.
const minAngle = 1e-9

// unit is a point on the unit sphere in earth-centred coordinates.
type unit struct{ x, y, z float64 }

func toUnit(p domain.GeoPoint) unit {
	lat, lon := toRad(p.Lat), toRad(p.Lon)
	return unit{
		x: math.Cos(lat) * math.Cos(lon),
		y: math.Cos(lat) * math.Sin(lon),
		z: math.Sin(lat),
	}
}

func (u unit) geo() domain.GeoPoint {
	return domain.GeoPoint{
		Lat: toDeg(math.Atan2(u.z, math.Hypot(u.x, u.y))),
		Lon: toDeg(math.Atan2(u.y, u.x)),
	}
}

// AngularDistance returns the central angle between a and b in radians.
func AngularDistance(a, b domain.GeoPoint) float64 {
	return centralAngle(a.Lat, a.Lon, b.Lat, b.Lon)
}

// InterpolateGreatCircle returns n+1 points on the shortest spherical path
// from a to b, both endpoints included. Coincident endpoints yield n+1
// copies of a.
func InterpolateGreatCircle(a, b domain.GeoPoint, n int) []domain.GeoPoint {
	if n < 1 {
		n = 1
	}
	out := make([]domain.GeoPoint, n+1)

	d := AngularDistance(a, b)
	if d < minAngle {
		for i := range out {
			out[i] = a
		}
		return out
	}

	ua, ub := toUnit(a), toUnit(b)
	sinD := math.Sin(d)
	for i := 0; i <= n; i++ {
		t := float64(i) / float64(n)
		ka := math.Sin((1-t)*d) / sinD
		kb := math.Sin(t*d) / sinD
		out[i] = unit{
			x: ka*ua.x + kb*ub.x,
			y: ka*ua.y + kb*ub.y,
			z: ka*ua.z + kb*ub.z,
		}.geo()
	}
	// keep the exact endpoints rather than their round-tripped values
	out[0], out[n] = a, b
	return out
}

// Project maps a coordinate onto a sphere of the given radius in render space.
// Longitude is offset by 180 degrees; every projection in the system goes
// through this function so points and arcs line up.
func Project(p domain.GeoPoint, radius float64) domain.Vec3 {
	phi := toRad(90 - p.Lat)
	theta := toRad(p.Lon + 180)
	return domain.Vec3{
		X: -radius * math.Sin(phi) * math.Cos(theta),
		Y: radius * math.Cos(phi),
		Z: radius * math.Sin(phi) * math.Sin(theta),
	}
}
