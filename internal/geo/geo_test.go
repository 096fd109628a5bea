package geo

import (
	"testing"

	"github.com/example/partner-dispatch/internal/models"
)

func TestDistanceZero(t *testing.T) {
	p := models.Coord{Lat: 28.6, Lon: 77.2}
	if d := DistanceKm(p, p); d != 0 {
		t.Fatalf("expected 0, got %f", d)
	}
}

func TestDistanceSymmetric(t *testing.T) {
	a := models.Coord{Lat: 28.60, Lon: 77.20}
	b := models.Coord{Lat: 12.97, Lon: 77.59}
	if DistanceKm(a, b) != DistanceKm(b, a) {
		t.Fatalf("distance not symmetric: %f vs %f", DistanceKm(a, b), DistanceKm(b, a))
	}
}

func TestDistanceKnownPair(t *testing.T) {
	a := models.Coord{Lat: 28.60, Lon: 77.20}
	b := models.Coord{Lat: 28.61, Lon: 77.21}
	d := DistanceKm(a, b)
	if d < 1.3 || d > 1.6 {
		t.Fatalf("expected roughly 1.5 km, got %f", d)
	}
}
