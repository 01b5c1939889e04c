package resolver

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/google/uuid"

	"github.com/Chedly25/newTrip/internal/domain"
)

// Options are the matching policy knobs. Thresholds are configuration, not
// architectural invariants.
type Options struct {
	NameWeight         float64
	ProximityWeight    float64
	AcceptThreshold    float64
	AmbiguousThreshold float64
	CollisionRadiusM   float64
	SearchRadiusM      float64
	Region             Region
}

// Region is the bounding box canonical places must fall into.
type Region struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

// Contains reports whether c lies inside the region.
func (r Region) Contains(c domain.Coordinates) bool {
	return c.Lat >= r.MinLat && c.Lat <= r.MaxLat && c.Lon >= r.MinLon && c.Lon <= r.MaxLon
}

// Resolver matches candidates against the canonical place registry by name
// similarity and geographic proximity.
type Resolver struct {
	places   domain.PlaceRepo
	geocoder domain.Geocoder
	opts     Options
}

var _ domain.Resolver = (*Resolver)(nil)

// New creates a resolver.
func New(places domain.PlaceRepo, geocoder domain.Geocoder, opts Options) *Resolver {
	if opts.NameWeight <= 0 && opts.ProximityWeight <= 0 {
		opts.NameWeight, opts.ProximityWeight = 0.6, 0.4
	}
	if opts.CollisionRadiusM <= 0 {
		opts.CollisionRadiusM = 150
	}
	if opts.SearchRadiusM <= 0 {
		opts.SearchRadiusM = 500
	}
	return &Resolver{places: places, geocoder: geocoder, opts: opts}
}

// Resolve decides merge, create, ambiguous or pending for one candidate.
func (r *Resolver) Resolve(ctx context.Context, cand domain.PlaceCandidate) (domain.Resolution, error) {
	normName := NormalizeName(cand.Name)
	if normName == "" {
		return domain.Resolution{Pending: true}, nil
	}

	coords, precise, err := r.locate(ctx, cand)
	if err != nil {
		if errors.Is(err, domain.ErrGeocodeUnresolvable) {
			return domain.Resolution{Pending: true}, nil
		}
		return domain.Resolution{}, err
	}

	var nearby []domain.Place
	if precise {
		nearby, err = r.places.FindNearby(ctx, coords, r.opts.SearchRadiusM)
	} else {
		nearby, err = r.places.FindByCity(ctx, cand.City)
	}
	if err != nil {
		return domain.Resolution{}, fmt.Errorf("query nearby places: %w", err)
	}

	matches := r.scoreMatches(normName, coords, precise, nearby)

	if len(matches) > 0 {
		best := matches[0]
		switch {
		case best.Combined >= r.opts.AcceptThreshold:
			return domain.Resolution{PlaceID: best.PlaceID, Matches: topMatches(matches, 2)}, nil
		case best.Combined >= r.opts.AmbiguousThreshold:
			return domain.Resolution{IsAmbiguous: true, Matches: topMatches(matches, 2)}, nil
		}
	}

	if !precise {
		// Name-only search found nothing close enough; a later mention may
		// carry usable coordinates.
		return domain.Resolution{Pending: true}, nil
	}

	// Canonical names stay unique inside the collision radius: an exact
	// normalized-name twin nearby is the same place, whatever its score.
	for _, p := range nearby {
		if p.NormName == normName && HaversineM(coords, p.Coords) <= r.opts.CollisionRadiusM {
			return domain.Resolution{PlaceID: p.ID, Matches: topMatches(matches, 2)}, nil
		}
	}

	if !r.opts.Region.Contains(coords) {
		return domain.Resolution{}, fmt.Errorf("create %q at (%.4f, %.4f): %w", cand.Name, coords.Lat, coords.Lon, domain.ErrOutOfRegion)
	}

	place := &domain.Place{
		ID:        uuid.New(),
		Name:      cand.Name,
		NormName:  normName,
		Coords:    coords,
		Type:      cand.Type,
		City:      cand.City,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	return domain.Resolution{NewPlace: place, IsNew: true, Matches: topMatches(matches, 2)}, nil
}

// locate finds coordinates for a candidate. precise is false when only a
// city-level position is known.
func (r *Resolver) locate(ctx context.Context, cand domain.PlaceCandidate) (domain.Coordinates, bool, error) {
	if cand.Coords != nil {
		return *cand.Coords, true, nil
	}
	if cand.LocationHint != "" {
		coords, err := r.geocoder.Geocode(ctx, cand.LocationHint)
		if err == nil {
			return coords, true, nil
		}
		if !errors.Is(err, domain.ErrGeocodeUnresolvable) {
			return domain.Coordinates{}, false, err
		}
	}
	if cand.City != "" {
		coords, err := r.geocoder.Geocode(ctx, cand.City)
		if err == nil {
			return coords, false, nil
		}
		if !errors.Is(err, domain.ErrGeocodeUnresolvable) {
			return domain.Coordinates{}, false, err
		}
	}
	return domain.Coordinates{}, false, domain.ErrGeocodeUnresolvable
}

func (r *Resolver) scoreMatches(normName string, coords domain.Coordinates, precise bool, nearby []domain.Place) []domain.MatchScore {
	matches := make([]domain.MatchScore, 0, len(nearby))
	for _, p := range nearby {
		sim := nameSimilarity(normName, p.NormName)
		var prox, combined float64
		if precise {
			dist := HaversineM(coords, p.Coords)
			if dist > r.opts.SearchRadiusM {
				continue
			}
			prox = proximity(dist, r.opts.SearchRadiusM)
			combined = r.opts.NameWeight*sim + r.opts.ProximityWeight*prox
		} else {
			// City-scope search carries no positional evidence, so the
			// name similarity decides alone.
			combined = sim
		}
		matches = append(matches, domain.MatchScore{
			PlaceID:      p.ID,
			PlaceName:    p.Name,
			NameSim:      sim,
			Proximity:    prox,
			Combined:     combined,
			MentionCount: p.MentionCount,
		})
	}
	// Equal scores prefer the better-established place.
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Combined != matches[j].Combined {
			return matches[i].Combined > matches[j].Combined
		}
		return matches[i].MentionCount > matches[j].MentionCount
	})
	return matches
}

// nameSimilarity is an edit-distance similarity normalized to [0,1].
func nameSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	la, lb := len([]rune(a)), len([]rune(b))
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 0
	}
	dist := levenshtein.ComputeDistance(a, b)
	sim := 1 - float64(dist)/float64(longest)
	if sim < 0 {
		return 0
	}
	return sim
}

func topMatches(matches []domain.MatchScore, n int) []domain.MatchScore {
	if len(matches) <= n {
		return matches
	}
	return matches[:n]
}
