package domain

import (
	"time"

	"github.com/google/uuid"
)

// ChannelKind classifies a source channel for the authenticity signal.
type ChannelKind string

const (
	// ChannelLocal marks channels tagged as local-interest.
	ChannelLocal ChannelKind = "local"
	// ChannelMainstream marks channels tagged as mainstream/touristy.
	ChannelMainstream ChannelKind = "mainstream"
	// ChannelUnknown marks channels without a tag.
	ChannelUnknown ChannelKind = "unknown"
)

// Mention is one raw observation of a place reference. Immutable once ingested.
type Mention struct {
	SourceID   string      `json:"source_id"`
	Channel    string      `json:"channel"`
	Kind       ChannelKind `json:"kind"`
	Text       string      `json:"text"`
	Author     string      `json:"author"`
	PostedAt   time.Time   `json:"posted_at"`
	Engagement int         `json:"engagement"`
	Lang       string      `json:"lang"`
}

// PlaceType enumerates candidate categories.
type PlaceType string

const (
	PlaceRestaurant PlaceType = "restaurant"
	PlaceViewpoint  PlaceType = "viewpoint"
	PlaceTrail      PlaceType = "trail"
	PlaceShop       PlaceType = "shop"
	PlaceOther      PlaceType = "other"
)

// Coordinates is a WGS84 point.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// PlaceCandidate is the extraction oracle's structured interpretation of a
// mention. Transient: consumed by the resolver, never persisted on its own.
type PlaceCandidate struct {
	Name         string       `json:"name"`
	Type         PlaceType    `json:"type"`
	LocationHint string       `json:"location_hint"`
	City         string       `json:"city,omitempty"`
	Coords       *Coordinates `json:"coords,omitempty"`
	Sentiment    float64      `json:"sentiment"`
	Confidence   float64      `json:"confidence"`
	SourceID     string       `json:"source_id"`
}

// Place is a canonical, deduplicated real-world location.
type Place struct {
	ID           uuid.UUID
	Name         string
	NormName     string
	Coords       Coordinates
	Type         PlaceType
	City         string
	Region       string
	MentionCount int
	Score        float64
	ScoredAt     time.Time
	Active       bool
	CreatedAt    time.Time
}

// AttachedMention is a mention linked to a place together with the
// per-mention signals recorded at attach time.
type AttachedMention struct {
	Mention    Mention
	Sentiment  float64
	Confidence float64
	AttachedAt time.Time
}

// ScoreSnapshot holds the inputs and result of one scoring computation.
// Snapshots are append-only; the place keeps a reference to the latest.
type ScoreSnapshot struct {
	PlaceID      uuid.UUID
	Score        float64
	Frequency    float64
	Sentiment    float64
	Authenticity float64
	Recency      float64
	MentionCount int
	ComputedAt   time.Time
}

// MatchScore describes how well a candidate matched one existing place.
type MatchScore struct {
	PlaceID      uuid.UUID `json:"place_id"`
	PlaceName    string    `json:"place_name"`
	NameSim      float64   `json:"name_similarity"`
	Proximity    float64   `json:"proximity"`
	Combined     float64   `json:"combined"`
	MentionCount int       `json:"mention_count"`
}

// Resolution is the resolver's decision for one candidate.
type Resolution struct {
	PlaceID     uuid.UUID
	NewPlace    *Place
	IsNew       bool
	IsAmbiguous bool
	Pending     bool
	Matches     []MatchScore
}

// ReviewStatus tracks the lifecycle of an ambiguous-match item.
type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewAccepted ReviewStatus = "accepted"
	ReviewRejected ReviewStatus = "rejected"
)

// ReviewItem is one ambiguous match routed to manual review.
type ReviewItem struct {
	ID        uuid.UUID      `json:"id"`
	Candidate PlaceCandidate `json:"candidate"`
	Matches   []MatchScore   `json:"matches"`
	Reason    string         `json:"reason"`
	Status    ReviewStatus   `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
}

// DeadLetter is a mention parked after exhausting extraction retries.
type DeadLetter struct {
	Mention  Mention
	Reason   string
	Attempts int
	ParkedAt time.Time
}

// PendingCandidate is a candidate held until a usable location appears.
type PendingCandidate struct {
	Candidate PlaceCandidate
	NormName  string
	HeldAt    time.Time
}

// MentionStatus records the terminal outcome of pipeline processing.
type MentionStatus string

const (
	MentionStatusNew        MentionStatus = "new"
	MentionStatusProcessed  MentionStatus = "processed"
	MentionStatusDeadLetter MentionStatus = "dead_letter"
)
