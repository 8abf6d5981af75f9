// Package geo implements the bounding-box prefilter and exact Haversine
// filter used for nearby searches.
package geo

import (
	"math"
	"sort"
)

const (
	earthRadiusKm = 6371.0
	kmPerDegree   = 111.32
	// boxSlack widens the prefilter so the degree approximation never drops
	// a point that the exact distance would keep.
	boxSlack = 1.2
	// minCosLat avoids an unbounded longitude span near the poles.
	minCosLat = 0.01
)

type Point struct {
	Lat float64
	Lon float64
}

// Box is an axis-aligned latitude/longitude range.
type Box struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

func (b Box) Contains(p Point) bool {
	if p.Lat < b.MinLat || p.Lat > b.MaxLat {
		return false
	}
	if b.MinLon <= b.MaxLon {
		return p.Lon >= b.MinLon && p.Lon <= b.MaxLon
	}
	// box crosses the antimeridian
	return p.Lon >= b.MinLon || p.Lon <= b.MaxLon
}

// BoundingBox returns a box around center that is looser than radiusKm.
func BoundingBox(center Point, radiusKm float64) Box {
	r := math.Max(radiusKm, 0) * boxSlack
	dLat := r / kmPerDegree

	cosLat := math.Cos(center.Lat * math.Pi / 180)
	if cosLat < minCosLat {
		cosLat = minCosLat
	}
	dLon := r / (kmPerDegree * cosLat)

	box := Box{
		MinLat: math.Max(center.Lat-dLat, -90),
		MaxLat: math.Min(center.Lat+dLat, 90),
		MinLon: center.Lon - dLon,
		MaxLon: center.Lon + dLon,
	}
	if dLon >= 180 {
		box.MinLon, box.MaxLon = -180, 180
		return box
	}
	if box.MinLon < -180 {
		box.MinLon += 360
	}
	if box.MaxLon > 180 {
		box.MaxLon -= 360
	}
	return box
}

// HaversineKm returns the great-circle distance between a and b.
func HaversineKm(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusKm * c
}

// Hit is a candidate within range together with its distance.
type Hit[T any] struct {
	Item       T
	DistanceKm float64
}

// FilterNearby keeps candidates within radiusKm of center, nearest first,
// truncated to limit (limit <= 0 keeps all).
func FilterNearby[T any](center Point, radiusKm float64, limit int, candidates []T, loc func(T) Point) []Hit[T] {
	hits := make([]Hit[T], 0, len(candidates))
	for _, c := range candidates {
		d := HaversineKm(center, loc(c))
		if d <= radiusKm {
			hits = append(hits, Hit[T]{Item: c, DistanceKm: d})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].DistanceKm < hits[j].DistanceKm
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}
