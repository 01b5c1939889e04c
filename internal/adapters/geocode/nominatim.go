package geocode

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/Chedly25/newTrip/internal/domain"
	"github.com/Chedly25/newTrip/internal/infra/metrics"
)

// coordPattern matches explicit "45.8992, 6.1294" style pairs inside hints.
var coordPattern = regexp.MustCompile(`(-?\d{1,2}\.\d+)\s*,\s*(-?\d{1,3}\.\d+)`)

// Nominatim geocodes free-text hints: explicit coordinates first, then the
// gazetteer, then the HTTP geocoding endpoint.
type Nominatim struct {
	client    *resty.Client
	gazetteer *Gazetteer
}

var _ domain.Geocoder = (*Nominatim)(nil)

// New creates the geocoder. An empty baseURL disables the network fallback,
// leaving only the offline paths.
func New(baseURL string, timeout time.Duration) *Nominatim {
	var client *resty.Client
	if baseURL != "" {
		client = resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("User-Agent", "newtrip-pipeline/1.0")
	}
	return &Nominatim{client: client, gazetteer: NewGazetteer()}
}

type nominatimResult struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Geocode resolves a hint to coordinates or ErrGeocodeUnresolvable.
func (n *Nominatim) Geocode(ctx context.Context, hint string) (domain.Coordinates, error) {
	if hint == "" {
		return domain.Coordinates{}, domain.ErrGeocodeUnresolvable
	}

	if m := coordPattern.FindStringSubmatch(hint); m != nil {
		lat, errLat := strconv.ParseFloat(m[1], 64)
		lon, errLon := strconv.ParseFloat(m[2], 64)
		if errLat == nil && errLon == nil {
			return domain.Coordinates{Lat: lat, Lon: lon}, nil
		}
	}

	if coords, ok := n.gazetteer.Lookup(hint); ok {
		return coords, nil
	}

	if n.client == nil {
		return domain.Coordinates{}, domain.ErrGeocodeUnresolvable
	}

	var results []nominatimResult
	start := time.Now()
	resp, err := n.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":            hint,
			"format":       "json",
			"countrycodes": "fr",
			"limit":        "1",
		}).
		SetResult(&results).
		Get("/search")
	metrics.ObserveNetworkRequest("nominatim", "search", "geocode", start, err)
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("geocode request: %w", err)
	}
	if resp.IsError() || len(results) == 0 {
		return domain.Coordinates{}, domain.ErrGeocodeUnresolvable
	}

	lat, errLat := strconv.ParseFloat(results[0].Lat, 64)
	lon, errLon := strconv.ParseFloat(results[0].Lon, 64)
	if errLat != nil || errLon != nil {
		return domain.Coordinates{}, domain.ErrGeocodeUnresolvable
	}
	return domain.Coordinates{Lat: lat, Lon: lon}, nil
}

// RegionOf exposes the gazetteer's region lookup for place creation.
func (n *Nominatim) RegionOf(city string) string {
	return n.gazetteer.Region(city)
}
