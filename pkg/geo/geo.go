// Package geo provides geographic utility functions for ride pooling.
//
// All distance calculations use the Haversine formula on WGS-84 coordinates.
// Point-to-polyline distance uses a local equirectangular projection, which is
// accurate to well under 1% at the sub-5km scales the matcher cares about.
package geo

import (
	"math"

	"github.com/shiva/ridepool/internal/model"
)

// ─── Constants ──────────────────────────────────────────────

const (
	// EarthRadiusKm is the mean radius of Earth in kilometers.
	EarthRadiusKm = 6371.0

	// EarthRadiusM is the mean radius of Earth in meters.
	EarthRadiusM = 6_371_000.0
)

// ─── Distance ───────────────────────────────────────────────

// HaversineKm returns the great-circle distance between two points in kilometers.
//
// Complexity: O(1)
func HaversineKm(a, b model.Location) float64 {
	dLat := degToRad(b.Lat - a.Lat)
	dLng := degToRad(b.Lng - a.Lng)

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)

	h := sinLat*sinLat +
		math.Cos(degToRad(a.Lat))*math.Cos(degToRad(b.Lat))*sinLng*sinLng

	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(h))
}

// HaversineM returns the great-circle distance between two points in meters.
func HaversineM(a, b model.Location) float64 {
	return HaversineKm(a, b) * 1000.0
}

// ─── Point-to-polyline ──────────────────────────────────────

// PointToPolylineKm returns the minimum distance in kilometers from point p to
// the polyline, taken over every segment between consecutive vertices.
//
// A polyline with a single vertex degrades to plain point distance; an empty
// polyline returns +Inf so callers treat it as "nowhere near".
//
// Complexity: O(S) where S = number of vertices.
func PointToPolylineKm(p model.Location, line []model.Location) float64 {
	switch len(line) {
	case 0:
		return math.Inf(1)
	case 1:
		return HaversineKm(p, line[0])
	}

	min := math.Inf(1)
	for i := 0; i < len(line)-1; i++ {
		if d := pointToSegmentKm(p, line[i], line[i+1]); d < min {
			min = d
		}
	}
	return min
}

// pointToSegmentKm returns the distance from p to the segment [a, b].
//
// The three points are projected onto a plane tangent at a (equirectangular),
// then the standard closest-point-on-segment computation applies.
func pointToSegmentKm(p, a, b model.Location) float64 {
	cosLat := math.Cos(degToRad(a.Lat))

	ax, ay := 0.0, 0.0
	bx := degToRad(b.Lng-a.Lng) * cosLat * EarthRadiusKm
	by := degToRad(b.Lat-a.Lat) * EarthRadiusKm
	px := degToRad(p.Lng-a.Lng) * cosLat * EarthRadiusKm
	py := degToRad(p.Lat-a.Lat) * EarthRadiusKm

	dx, dy := bx-ax, by-ay
	segLenSq := dx*dx + dy*dy
	if segLenSq == 0 {
		return math.Hypot(px-ax, py-ay)
	}

	// Parametric position of the projection, clamped to the segment.
	t := ((px-ax)*dx + (py-ay)*dy) / segLenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}

	cx := ax + t*dx
	cy := ay + t*dy
	return math.Hypot(px-cx, py-cy)
}

// ─── Route Calculations ─────────────────────────────────────

// RouteDistanceKm returns the total distance of an ordered route in kilometers.
//
// Complexity: O(S)
func RouteDistanceKm(route []model.Location) float64 {
	total := 0.0
	for i := 0; i < len(route)-1; i++ {
		total += HaversineKm(route[i], route[i+1])
	}
	return total
}

// ─── Helpers ────────────────────────────────────────────────

func degToRad(deg float64) float64 {
	return deg * (math.Pi / 180.0)
}
