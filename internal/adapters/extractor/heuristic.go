package extractor

import (
	"context"
	"regexp"
	"strings"

	"github.com/Chedly25/newTrip/internal/domain"
)

// Heuristic is a deterministic fallback extractor. It relies on French
// recommendation phrasing and venue vocabulary instead of a model, so it
// keeps the pipeline alive when the oracle is unavailable.
type Heuristic struct{}

var _ domain.Extractor = (*Heuristic)(nil)

// NewHeuristic creates the fallback extractor.
func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

var (
	// "je vous recommande Le Cochon Volant", "il faut visiter la Dune du Pilat"
	recommendPattern = regexp.MustCompile(`(?i)(?:recommande|conseille|faut (?:aller (?:à|au|aux)|essayer|visiter|tester)|découvrez|allez (?:à|au|aux)|testez)\s+(?:le |la |les |l')?([A-ZÀ-Ý][\p{L}'’\- ]{2,40})`)
	// "Le Comptoir du Marché est super", "la Cascade d'Angon est magnifique"
	praisePattern = regexp.MustCompile(`(?i)(?:le |la |les |l')?([A-ZÀ-Ý][\p{L}'’\- ]{2,40}?)\s+est\s+(?:super|génial|top|incroyable|magnifique|excellent|parfait|sublime)`)
	// "un petit restaurant, Chez Simone" and similar appositions
	venuePattern = regexp.MustCompile(`(?i)(restaurant|café|bar|bistrot|boulangerie|crêperie|brasserie|auberge|sentier|cascade|belvédère|plage|marché)\s+(?:le |la |les |l'|chez )?([A-ZÀ-Ý][\p{L}'’\- ]{2,40})`)

	negativePattern = regexp.MustCompile(`(?i)décevant|bondé|éviter|attrape-touriste|surcoté|moyen|cher pour ce que c'est`)
)

var venueTypes = map[string]domain.PlaceType{
	"restaurant":  domain.PlaceRestaurant,
	"café":        domain.PlaceRestaurant,
	"bar":         domain.PlaceRestaurant,
	"bistrot":     domain.PlaceRestaurant,
	"brasserie":   domain.PlaceRestaurant,
	"crêperie":    domain.PlaceRestaurant,
	"auberge":     domain.PlaceRestaurant,
	"boulangerie": domain.PlaceShop,
	"marché":      domain.PlaceShop,
	"sentier":     domain.PlaceTrail,
	"cascade":     domain.PlaceViewpoint,
	"belvédère":   domain.PlaceViewpoint,
	"plage":       domain.PlaceViewpoint,
}

// Extract scans the text with the phrase patterns. Candidates carry a low
// confidence so the pipeline floor can still discard weak ones.
func (h *Heuristic) Extract(_ context.Context, m domain.Mention) ([]domain.PlaceCandidate, error) {
	text := strings.TrimSpace(m.Text)
	if text == "" {
		return nil, nil
	}
	sentiment := 0.4
	if negativePattern.MatchString(text) {
		sentiment = -0.4
	}

	seen := make(map[string]struct{})
	var cands []domain.PlaceCandidate

	add := func(name string, ptype domain.PlaceType, confidence float64) {
		name = trimCandidateName(name)
		if name == "" {
			return
		}
		key := strings.ToLower(name)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		cands = append(cands, domain.PlaceCandidate{
			Name:       name,
			Type:       ptype,
			City:       m.Channel,
			Sentiment:  sentiment,
			Confidence: confidence,
			SourceID:   m.SourceID,
		})
	}

	for _, match := range venuePattern.FindAllStringSubmatch(text, -1) {
		ptype := venueTypes[strings.ToLower(match[1])]
		if ptype == "" {
			ptype = domain.PlaceOther
		}
		add(match[2], ptype, 0.55)
	}
	for _, match := range recommendPattern.FindAllStringSubmatch(text, -1) {
		add(match[1], domain.PlaceOther, 0.5)
	}
	for _, match := range praisePattern.FindAllStringSubmatch(text, -1) {
		add(match[1], domain.PlaceOther, 0.45)
	}
	return cands, nil
}

// trimCandidateName cuts a match at the first clause boundary and drops
// trailing connective words the greedy capture tends to swallow.
func trimCandidateName(raw string) string {
	for _, sep := range []string{",", ".", "!", "?", ";", ":", " qui ", " que ", " est ", " à ", " dans ", " près "} {
		if i := strings.Index(raw, sep); i >= 0 {
			raw = raw[:i]
		}
	}
	raw = strings.TrimSpace(raw)
	if len([]rune(raw)) < 3 {
		return ""
	}
	return raw
}
