package http

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/pingsphere/internal/core/domain"
	"github.com/samirrijal/pingsphere/internal/pkg/geospatial"
)

// maxRadiusKm bounds ?radius_km=; half the equator covers the globe.
const maxRadiusKm = 20037.5

// parseBounds reads an optional area filter: either
// ?bbox=minLat,minLon,maxLat,maxLon or ?near=lat,lon&radius_km=R.
// It returns nil when neither is given.
func parseBounds(c *fiber.Ctx) (*domain.Bounds, error) {
	bbox, near := c.Query("bbox"), c.Query("near")
	switch {
	case bbox != "" && near != "":
		return nil, fiber.NewError(fiber.StatusBadRequest, "use either bbox or near, not both")

	case bbox != "":
		parts := strings.Split(bbox, ",")
		if len(parts) != 4 {
			return nil, fiber.NewError(fiber.StatusBadRequest, "bbox must be minLat,minLon,maxLat,maxLon")
		}
		var v [4]float64
		for i, s := range parts {
			f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, fiber.NewError(fiber.StatusBadRequest, "bbox values must be numbers")
			}
			v[i] = f
		}
		b := domain.Bounds{MinLat: v[0], MinLon: v[1], MaxLat: v[2], MaxLon: v[3]}
		if err := b.Validate(); err != nil {
			return nil, err
		}
		return &b, nil

	case near != "":
		lat, lon, ok := strings.Cut(near, ",")
		if !ok {
			return nil, fiber.NewError(fiber.StatusBadRequest, "near must be lat,lon")
		}
		center, err := parseGeoPoint(strings.TrimSpace(lat), strings.TrimSpace(lon))
		if err != nil {
			return nil, err
		}
		radius, err := strconv.ParseFloat(c.Query("radius_km", "100"), 64)
		if err != nil || radius <= 0 || radius > maxRadiusKm {
			return nil, fiber.NewError(fiber.StatusBadRequest, "radius_km must be a positive number of kilometres")
		}
		b := geospatial.BoundingBox(center, radius)
		return &b, nil
	}
	return nil, nil
}

// filterFrame keeps the presences inside b and the pings with either
// endpoint inside b.
func filterFrame(f *domain.Frame, b *domain.Bounds) {
	if b == nil {
		return
	}
	presences := f.Presences[:0]
	for _, p := range f.Presences {
		if b.Contains(p.Location) {
			presences = append(presences, p)
		}
	}
	f.Presences = presences

	pings := f.Pings[:0]
	for _, p := range f.Pings {
		if b.Contains(p.From) || b.Contains(p.To) {
			pings = append(pings, p)
		}
	}
	f.Pings = pings
}

// loadScene returns the current frame from the in-process engine or the
// shared cache, narrowed to b. Paths are looked up only for the pings kept.
func loadScene(ctx context.Context, deps *Dependencies, b *domain.Bounds, withPaths bool) (*domain.Frame, error) {
	var frame *domain.Frame
	if deps.Scene != nil {
		frame = deps.Scene.Frame(time.Now())
	} else {
		f, err := deps.Frames.Load(ctx)
		if err != nil {
			return nil, err
		}
		frame = f
	}
	filterFrame(frame, b)
	if withPaths {
		for i := range frame.Pings {
			if p, err := deps.lookupPath(ctx, frame.Pings[i].ID); err == nil {
				frame.Pings[i].Path = p
			}
		}
	}
	return frame, nil
}
