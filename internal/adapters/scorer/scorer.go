package scorer

import (
	"math"
	"time"

	"github.com/Chedly25/newTrip/internal/domain"
)

// Weights are the tunable signal weights of the hidden-gem score.
// The exact weighting is a business rule, never hardcoded inline.
type Weights struct {
	Frequency    float64
	Sentiment    float64
	Authenticity float64
	Recency      float64

	// FrequencySaturation is the mention count at which the frequency
	// signal reaches 1.
	FrequencySaturation int
	// DecayHalfLife controls the exponential recency decay.
	DecayHalfLife time.Duration
	// LocalWeight and MainstreamWeight scale per-mention contributions to
	// the authenticity signal by channel kind.
	LocalWeight      float64
	MainstreamWeight float64
	// TouristyCeiling caps the score of mainstream-dominated places.
	TouristyCeiling float64
	// DeactivateFloor soft-hides places that stay below it.
	DeactivateFloor float64
}

// DefaultWeights returns the baseline tuning.
func DefaultWeights() Weights {
	return Weights{
		Frequency:           0.25,
		Sentiment:           0.25,
		Authenticity:        0.35,
		Recency:             0.15,
		FrequencySaturation: 50,
		DecayHalfLife:       90 * 24 * time.Hour,
		LocalWeight:         1.0,
		MainstreamWeight:    0.25,
		TouristyCeiling:     55,
		DeactivateFloor:     20,
	}
}

// Scorer recomputes hidden-gem scores from the full mention history of a
// place. Full recomputation, never incremental patching.
type Scorer struct {
	w Weights
}

var _ domain.Scorer = (*Scorer)(nil)

// New creates a scorer.
func New(w Weights) *Scorer {
	if w.Frequency+w.Sentiment+w.Authenticity+w.Recency <= 0 {
		w = DefaultWeights()
	}
	if w.FrequencySaturation <= 0 {
		w.FrequencySaturation = 50
	}
	if w.DecayHalfLife <= 0 {
		w.DecayHalfLife = 90 * 24 * time.Hour
	}
	return &Scorer{w: w}
}

// Rescore computes a snapshot over the place's full mention set.
func (s *Scorer) Rescore(place domain.Place, mentions []domain.AttachedMention, now time.Time) domain.ScoreSnapshot {
	snap := domain.ScoreSnapshot{
		PlaceID:      place.ID,
		MentionCount: len(mentions),
		ComputedAt:   now,
	}
	if len(mentions) == 0 {
		return snap
	}

	snap.Frequency = s.frequencySignal(len(mentions))
	snap.Sentiment = s.sentimentSignal(mentions)
	snap.Authenticity = s.authenticitySignal(mentions)
	snap.Recency = s.recencySignal(mentions, now)

	total := s.w.Frequency + s.w.Sentiment + s.w.Authenticity + s.w.Recency
	score := 100 * (s.w.Frequency*snap.Frequency +
		s.w.Sentiment*snap.Sentiment +
		s.w.Authenticity*snap.Authenticity +
		s.w.Recency*snap.Recency) / total

	if s.mainstreamShare(mentions) > 0.5 && score > s.w.TouristyCeiling {
		score = s.w.TouristyCeiling
	}

	snap.Score = clamp(score, 0, 100)
	return snap
}

// ShouldDeactivate reports whether a place stays under the score floor.
func (s *Scorer) ShouldDeactivate(snap domain.ScoreSnapshot) bool {
	return snap.MentionCount > 0 && snap.Score < s.w.DeactivateFloor
}

// frequencySignal grows with diminishing returns along a logarithmic curve.
func (s *Scorer) frequencySignal(count int) float64 {
	v := math.Log1p(float64(count)) / math.Log1p(float64(s.w.FrequencySaturation))
	return clamp(v, 0, 1)
}

// sentimentSignal is the engagement-weighted mean sentiment mapped to [0,1].
func (s *Scorer) sentimentSignal(mentions []domain.AttachedMention) float64 {
	var sum, weight float64
	for _, m := range mentions {
		w := engagementWeight(m.Mention.Engagement)
		sum += w * clamp(m.Sentiment, -1, 1)
		weight += w
	}
	if weight == 0 {
		return 0.5
	}
	return clamp((sum/weight+1)/2, 0, 1)
}

// authenticitySignal is the inverse of touristiness: each mention
// contributes its channel-kind weight, normalized against an all-local
// history. All-local → 1, all-mainstream → MainstreamWeight/LocalWeight.
func (s *Scorer) authenticitySignal(mentions []domain.AttachedMention) float64 {
	var got, max float64
	for _, m := range mentions {
		w := engagementWeight(m.Mention.Engagement)
		switch m.Mention.Kind {
		case domain.ChannelLocal:
			got += w * s.w.LocalWeight
		case domain.ChannelMainstream:
			got += w * s.w.MainstreamWeight
		default:
			got += w * (s.w.LocalWeight + s.w.MainstreamWeight) / 2
		}
		max += w * s.w.LocalWeight
	}
	if max == 0 {
		return 0.5
	}
	return clamp(got/max, 0, 1)
}

// recencySignal is the mean exponential decay of mention ages.
func (s *Scorer) recencySignal(mentions []domain.AttachedMention, now time.Time) float64 {
	var sum float64
	for _, m := range mentions {
		age := now.Sub(m.Mention.PostedAt)
		if age < 0 {
			age = 0
		}
		sum += math.Exp2(-age.Hours() / s.w.DecayHalfLife.Hours())
	}
	return clamp(sum/float64(len(mentions)), 0, 1)
}

// mainstreamShare is the engagement-weighted share of mainstream mentions.
func (s *Scorer) mainstreamShare(mentions []domain.AttachedMention) float64 {
	var mainstream, total float64
	for _, m := range mentions {
		w := engagementWeight(m.Mention.Engagement)
		if m.Mention.Kind == domain.ChannelMainstream {
			mainstream += w
		}
		total += w
	}
	if total == 0 {
		return 0
	}
	return mainstream / total
}

// engagementWeight keeps buried and downvoted mentions at a floor of 1 so
// every observation counts at least once.
func engagementWeight(engagement int) float64 {
	if engagement < 1 {
		return 1
	}
	return 1 + math.Log1p(float64(engagement))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
