package geospatial

import (
	"math"

	"github.com/samirrijal/pingsphere/internal/core/domain"
)

const earthRadiusKm = 6371.0

// Haversine calculates the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	return earthRadiusKm * centralAngle(lat1, lon1, lat2, lon2) * 1000 // meters
}

// centralAngle is the haversine central angle in radians.
func centralAngle(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	return 2 * math.Asin(math.Sqrt(math.Min(1, h)))
}

// DistanceKm returns the great-circle distance between two points in kilometres.
func DistanceKm(a, b domain.GeoPoint) float64 {
	return Haversine(a.Lat, a.Lon, b.Lat, b.Lon) / 1000
}

// BoundingBox returns a box enclosing every point within radiusKm of center.
// Boxes that reach a pole span all longitudes; boxes that cross the
// antimeridian have MinLon > MaxLon.
func BoundingBox(center domain.GeoPoint, radiusKm float64) domain.Bounds {
	latDelta := toDeg(radiusKm / earthRadiusKm)
	b := domain.Bounds{
		MinLat: math.Max(center.Lat-latDelta, -90),
		MaxLat: math.Min(center.Lat+latDelta, 90),
		MinLon: -180,
		MaxLon: 180,
	}
	if b.MinLat == -90 || b.MaxLat == 90 {
		return b
	}

	lonDelta := latDelta / math.Cos(toRad(center.Lat))
	if lonDelta >= 180 {
		return b
	}
	b.MinLon = wrapLon(center.Lon - lonDelta)
	b.MaxLon = wrapLon(center.Lon + lonDelta)
	return b
}

func wrapLon(lon float64) float64 {
	switch {
	case lon < -180:
		return lon + 360
	case lon > 180:
		return lon - 360
	}
	return lon
}

// Near reports whether two points match within tol degrees on both axes.
// Longitudes are compared across the antimeridian.
func Near(a, b domain.GeoPoint, tol float64) bool {
	dLon := math.Abs(a.Lon - b.Lon)
	if dLon > 180 {
		dLon = 360 - dLon
	}
	// small slack so 2-decimal rounding noise does not flip the result
	const eps = 1e-9
	return math.Abs(a.Lat-b.Lat) <= tol+eps && dLon <= tol+eps
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}

func toDeg(rad float64) float64 {
	return rad * 180 / math.Pi
}
