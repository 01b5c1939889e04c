package geocode

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/Chedly25/newTrip/internal/domain"
)

func TestGeocodeExplicitCoordinates(t *testing.T) {
	g := New("", 0)
	coords, err := g.Geocode(context.Background(), "cascade near 45.8992, 6.1294 above the lake")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(coords.Lat-45.8992) > 1e-6 || math.Abs(coords.Lon-6.1294) > 1e-6 {
		t.Fatalf("unexpected coordinates %+v", coords)
	}
}

func TestGeocodeGazetteerCity(t *testing.T) {
	g := New("", 0)
	coords, err := g.Geocode(context.Background(), "Annecy")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if coords.Lat == 0 || coords.Lon == 0 {
		t.Fatalf("expected Annecy center, got %+v", coords)
	}
}

func TestGeocodeGazetteerInsideHint(t *testing.T) {
	g := New("", 0)
	coords, err := g.Geocode(context.Background(), "vieille ville de Lyon")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(coords.Lat-45.7640) > 1e-3 {
		t.Fatalf("expected Lyon center, got %+v", coords)
	}
}

func TestGeocodeUnresolvableWithoutNetwork(t *testing.T) {
	g := New("", 0)
	_, err := g.Geocode(context.Background(), "behind the old mill")
	if !errors.Is(err, domain.ErrGeocodeUnresolvable) {
		t.Fatalf("expected ErrGeocodeUnresolvable, got %v", err)
	}
}

func TestGeocodeEmptyHint(t *testing.T) {
	g := New("", 0)
	_, err := g.Geocode(context.Background(), "")
	if !errors.Is(err, domain.ErrGeocodeUnresolvable) {
		t.Fatalf("expected ErrGeocodeUnresolvable, got %v", err)
	}
}

func TestRegionOf(t *testing.T) {
	g := New("", 0)
	if got := g.RegionOf("Ajaccio"); got != "Corse" {
		t.Fatalf("expected Corse, got %q", got)
	}
	if got := g.RegionOf("Atlantis"); got != "" {
		t.Fatalf("expected empty region for unknown city, got %q", got)
	}
}
