package geocode

import (
	"strings"

	"github.com/Chedly25/newTrip/internal/adapters/resolver"
	"github.com/Chedly25/newTrip/internal/domain"
)

// cityEntry is one seed city of the gazetteer.
type cityEntry struct {
	Name   string
	Region string
	Coords domain.Coordinates
}

// seedCities are the monitored French cities and their centers.
var seedCities = []cityEntry{
	{"Paris", "Île-de-France", domain.Coordinates{Lat: 48.8566, Lon: 2.3522}},
	{"Lyon", "Auvergne-Rhône-Alpes", domain.Coordinates{Lat: 45.7640, Lon: 4.8357}},
	{"Marseille", "Provence-Alpes-Côte d'Azur", domain.Coordinates{Lat: 43.2965, Lon: 5.3698}},
	{"Annecy", "Auvergne-Rhône-Alpes", domain.Coordinates{Lat: 45.8992, Lon: 6.1294}},
	{"Nice", "Provence-Alpes-Côte d'Azur", domain.Coordinates{Lat: 43.7102, Lon: 7.2620}},
	{"Bordeaux", "Nouvelle-Aquitaine", domain.Coordinates{Lat: 44.8378, Lon: -0.5792}},
	{"Strasbourg", "Grand Est", domain.Coordinates{Lat: 48.5734, Lon: 7.7521}},
	{"Toulouse", "Occitanie", domain.Coordinates{Lat: 43.6047, Lon: 1.4442}},
	{"Nantes", "Pays de la Loire", domain.Coordinates{Lat: 47.2184, Lon: -1.5536}},
	{"Lille", "Hauts-de-France", domain.Coordinates{Lat: 50.6292, Lon: 3.0573}},
	{"Montpellier", "Occitanie", domain.Coordinates{Lat: 43.6108, Lon: 3.8767}},
	{"Rennes", "Bretagne", domain.Coordinates{Lat: 48.1173, Lon: -1.6778}},
	{"Grenoble", "Auvergne-Rhône-Alpes", domain.Coordinates{Lat: 45.1885, Lon: 5.7245}},
	{"Ajaccio", "Corse", domain.Coordinates{Lat: 41.9192, Lon: 8.7386}},
	{"Bastia", "Corse", domain.Coordinates{Lat: 42.6977, Lon: 9.4509}},
}

// Gazetteer resolves known city names to their centers without a network call.
type Gazetteer struct {
	byNorm map[string]cityEntry
}

// NewGazetteer builds the lookup from the seed list.
func NewGazetteer() *Gazetteer {
	byNorm := make(map[string]cityEntry, len(seedCities))
	for _, c := range seedCities {
		byNorm[resolver.NormalizeName(c.Name)] = c
	}
	return &Gazetteer{byNorm: byNorm}
}

// Lookup finds a city mentioned anywhere inside a free-text hint.
func (g *Gazetteer) Lookup(hint string) (domain.Coordinates, bool) {
	norm := resolver.NormalizeName(hint)
	if c, ok := g.byNorm[norm]; ok {
		return c.Coords, true
	}
	for _, token := range strings.Fields(norm) {
		if c, ok := g.byNorm[token]; ok {
			return c.Coords, true
		}
	}
	return domain.Coordinates{}, false
}

// Region returns the administrative region of a known city.
func (g *Gazetteer) Region(city string) string {
	if c, ok := g.byNorm[resolver.NormalizeName(city)]; ok {
		return c.Region
	}
	return ""
}
