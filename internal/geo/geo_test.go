package geo

import (
	"math"
	"testing"
)

type place struct {
	name string
	p    Point
}

func loc(p place) Point { return p.p }

func TestHaversineKnownDistance(t *testing.T) {
	// Paris to London is roughly 344 km.
	d := HaversineKm(Point{48.8566, 2.3522}, Point{51.5074, -0.1278})
	if math.Abs(d-343.5) > 2 {
		t.Fatalf("distance = %.1f km, want about 343.5", d)
	}
}

func TestFilterNearbyIncludesCenter(t *testing.T) {
	center := Point{40.7128, -74.0060}
	hits := FilterNearby(center, 0, 10, []place{{"here", center}}, loc)
	if len(hits) != 1 || hits[0].DistanceKm != 0 {
		t.Fatalf("point at the center must be included at radius 0, got %+v", hits)
	}
}

func TestFilterNearbyExcludesJustOutside(t *testing.T) {
	center := Point{0, 0}
	// 0.1 degree of latitude on the sphere used by HaversineKm.
	edge := Point{0.1, 0}
	radius := HaversineKm(center, edge)

	if hits := FilterNearby(center, radius, 0, []place{{"edge", edge}}, loc); len(hits) != 1 {
		t.Fatalf("point at exactly radius should be kept")
	}
	if hits := FilterNearby(center, radius-1e-6, 0, []place{{"edge", edge}}, loc); len(hits) != 0 {
		t.Fatalf("point beyond radius should be dropped")
	}
}

func TestFilterNearbySortsAndTruncates(t *testing.T) {
	center := Point{10, 10}
	candidates := []place{
		{"far", Point{10.2, 10}},
		{"near", Point{10.01, 10}},
		{"mid", Point{10.05, 10}},
		{"out", Point{12, 10}},
	}
	hits := FilterNearby(center, 30, 2, candidates, loc)
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].Item.name != "near" || hits[1].Item.name != "mid" {
		t.Fatalf("unexpected order: %s, %s", hits[0].Item.name, hits[1].Item.name)
	}
}

func TestBoundingBoxContainsRadius(t *testing.T) {
	tests := []struct {
		name   string
		center Point
		radius float64
	}{
		{"equator", Point{0, 0}, 10},
		{"mid latitude", Point{45, 7}, 25},
		{"high latitude", Point{69.6, 18.9}, 50},
		{"antimeridian", Point{-17.7, 179.9}, 40},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			box := BoundingBox(tt.center, tt.radius)
			// Sample points on the circle; every one must fall inside the box.
			for deg := 0.0; deg < 360; deg += 15 {
				p := destination(tt.center, tt.radius, deg)
				if !box.Contains(p) {
					t.Fatalf("bearing %.0f: %+v outside box %+v", deg, p, box)
				}
			}
		})
	}
}

func TestBoundingBoxExcludesFarPoints(t *testing.T) {
	box := BoundingBox(Point{45, 7}, 5)
	if box.Contains(Point{46, 7}) {
		t.Fatal("a point 111 km away should fall outside a 5 km box")
	}
}

// destination returns the point distKm from p along bearing deg.
func destination(p Point, distKm, deg float64) Point {
	lat1 := p.Lat * math.Pi / 180
	lon1 := p.Lon * math.Pi / 180
	brng := deg * math.Pi / 180
	ang := distKm / earthRadiusKm

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(ang) + math.Cos(lat1)*math.Sin(ang)*math.Cos(brng))
	lon2 := lon1 + math.Atan2(math.Sin(brng)*math.Sin(ang)*math.Cos(lat1), math.Cos(ang)-math.Sin(lat1)*math.Sin(lat2))

	lon := lon2 * 180 / math.Pi
	if lon > 180 {
		lon -= 360
	}
	if lon < -180 {
		lon += 360
	}
	return Point{Lat: lat2 * 180 / math.Pi, Lon: lon}
}
