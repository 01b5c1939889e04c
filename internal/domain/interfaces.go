package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Extractor is the pluggable extraction oracle: one mention in, zero or
// more structured candidates out.
type Extractor interface {
	Extract(ctx context.Context, m Mention) ([]PlaceCandidate, error)
}

// Geocoder resolves a free-text location hint to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, hint string) (Coordinates, error)
}

// Resolver matches a candidate against the canonical place registry.
type Resolver interface {
	Resolve(ctx context.Context, cand PlaceCandidate) (Resolution, error)
}

// RescoreFunc recomputes a place score from its full mention history.
// Called inside the attach transaction so recomputations serialize per place.
type RescoreFunc func(place Place, mentions []AttachedMention, now time.Time) ScoreSnapshot

// Scorer maintains the hidden-gem score.
type Scorer interface {
	Rescore(place Place, mentions []AttachedMention, now time.Time) ScoreSnapshot
}

// ExtractionCache memoizes extraction results keyed by content hash.
type ExtractionCache interface {
	Get(ctx context.Context, hash string) ([]PlaceCandidate, bool, error)
	Set(ctx context.Context, hash string, cands []PlaceCandidate, ttl time.Duration) error
}

// MentionRepo manages raw mentions.
type MentionRepo interface {
	// InsertMention stores a mention and returns false when the source
	// identifier is already known (idempotent ingestion).
	InsertMention(ctx context.Context, m Mention) (bool, error)
	GetMention(ctx context.Context, sourceID string) (Mention, error)
	// GetMentionStatus reports how far the pipeline got with a stored
	// mention, so redeliveries can tell finished work from interrupted work.
	GetMentionStatus(ctx context.Context, sourceID string) (MentionStatus, error)
	SetMentionStatus(ctx context.Context, sourceID string, status MentionStatus) error
}

// AttachRequest describes one attach-or-create decision to persist.
type AttachRequest struct {
	// PlaceID of the existing place to attach to; ignored when NewPlace is set.
	PlaceID uuid.UUID
	// NewPlace is the draft for a place created on first unmatched candidate.
	NewPlace  *Place
	Mention   Mention
	Candidate PlaceCandidate
}

// PlaceRepo manages canonical places and score snapshots.
type PlaceRepo interface {
	GetPlace(ctx context.Context, id uuid.UUID) (Place, error)
	// FindNearby returns places inside a bounding box around c; the caller
	// filters by exact distance.
	FindNearby(ctx context.Context, c Coordinates, radiusM float64) ([]Place, error)
	FindByCity(ctx context.Context, city string) ([]Place, error)
	ListPlaces(ctx context.Context, filter PlaceFilter) ([]Place, error)
	ListMentionsForPlace(ctx context.Context, placeID uuid.UUID) ([]AttachedMention, error)
	LatestSnapshot(ctx context.Context, placeID uuid.UUID) (ScoreSnapshot, error)
	// AttachAndRescore runs the transactional boundary of §resolve-and-score:
	// lock place, link mention, recompute the score over the full history and
	// persist a new snapshot. Rolled back entirely on failure.
	AttachAndRescore(ctx context.Context, req AttachRequest, rescore RescoreFunc) (Place, ScoreSnapshot, error)
}

// PlaceFilter narrows serving-layer place queries.
type PlaceFilter struct {
	Region   string
	City     string
	MinScore float64
	Limit    int
}

// ReviewRepo persists ambiguous-match items for the forced-resolution flow.
type ReviewRepo interface {
	CreateReviewItem(ctx context.Context, item ReviewItem) error
	GetReviewItem(ctx context.Context, id uuid.UUID) (ReviewItem, error)
	ListPendingReviews(ctx context.Context, limit int) ([]ReviewItem, error)
	SetReviewStatus(ctx context.Context, id uuid.UUID, status ReviewStatus) error
}

// DeadLetterRepo parks mentions that exhausted extraction retries.
type DeadLetterRepo interface {
	Park(ctx context.Context, dl DeadLetter) error
	ListDeadLetters(ctx context.Context, limit int) ([]DeadLetter, error)
	// Take removes a parked mention and returns it for reprocessing.
	Take(ctx context.Context, sourceID string) (DeadLetter, error)
}

// PendingRepo holds candidates waiting for a usable location.
type PendingRepo interface {
	SavePending(ctx context.Context, pc PendingCandidate) error
	// TakePendingByName removes and returns held candidates for a normalized name.
	TakePendingByName(ctx context.Context, normName string) ([]PendingCandidate, error)
}

// Alerter delivers operator-facing alerts. Best effort, never fails the pipeline.
type Alerter interface {
	Alert(ctx context.Context, subject, message string)
}
