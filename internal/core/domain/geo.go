package domain

import (
	"fmt"
	"math"
)

// CoordinatePrecision is the number of decimal places kept on a coordinate
// before it is shared with other clients.
const CoordinatePrecision = 2

// GeoPoint represents a geographic coordinate (WGS 84).
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Validate reports ErrInvalidInput when the point is outside the lat/lon range.
func (p GeoPoint) Validate() error {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lon, 0) {
		return fmt.Errorf("%w: coordinate is not a finite number", ErrInvalidInput)
	}
	if p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("%w: latitude %.4f outside [-90, 90]", ErrInvalidInput, p.Lat)
	}
	if p.Lon < -180 || p.Lon > 180 {
		return fmt.Errorf("%w: longitude %.4f outside [-180, 180]", ErrInvalidInput, p.Lon)
	}
	return nil
}

// Rounded returns the point truncated to CoordinatePrecision decimals.
func (p GeoPoint) Rounded() GeoPoint {
	scale := math.Pow(10, CoordinatePrecision)
	return GeoPoint{
		Lat: math.Round(p.Lat*scale) / scale,
		Lon: math.Round(p.Lon*scale) / scale,
	}
}

// Vec3 is a point in render space.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Norm returns the Euclidean norm of the vector.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Path is the ordered arc geometry of a ping, start -> apex -> end.
type Path struct {
	Points     []Vec3  `json:"points"`
	ApexHeight float64 `json:"apex_height"`
	DistanceKm float64 `json:"distance_km"`
}

// Bounds represents a geographic bounding box. A box with MinLon > MaxLon
// crosses the antimeridian.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// Contains reports whether p lies inside the box.
func (b Bounds) Contains(p GeoPoint) bool {
	if p.Lat < b.MinLat || p.Lat > b.MaxLat {
		return false
	}
	if b.MinLon <= b.MaxLon {
		return p.Lon >= b.MinLon && p.Lon <= b.MaxLon
	}
	return p.Lon >= b.MinLon || p.Lon <= b.MaxLon
}

// Validate checks that both corners are valid coordinates and the box is
// not inverted in latitude.
func (b Bounds) Validate() error {
	for _, p := range []GeoPoint{{Lat: b.MinLat, Lon: b.MinLon}, {Lat: b.MaxLat, Lon: b.MaxLon}} {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	if b.MinLat > b.MaxLat {
		return fmt.Errorf("%w: min_lat %.4f is above max_lat %.4f", ErrInvalidInput, b.MinLat, b.MaxLat)
	}
	return nil
}
