package repo

import (
	"testing"

	"github.com/Chedly25/newTrip/internal/domain"
)

func TestCreationLockKeyFloorsNegativeCoordinates(t *testing.T) {
	// Biarritz, west of the Greenwich meridian. Truncation would put the
	// lock one cell east of the geocell the unique index computes.
	key := creationLockKey("rocher de la vierge", domain.Coordinates{Lat: 43.4833, Lon: -1.5676})
	if key != "place:rocher de la vierge:4348:-157" {
		t.Fatalf("key = %q", key)
	}
}

func TestCreationLockKeySharedWithinCell(t *testing.T) {
	a := creationLockKey("rocher de la vierge", domain.Coordinates{Lat: 43.4833, Lon: -1.5676})
	b := creationLockKey("rocher de la vierge", domain.Coordinates{Lat: 43.4801, Lon: -1.5699})
	if a != b {
		t.Fatalf("same cell produced different keys: %q vs %q", a, b)
	}
}
