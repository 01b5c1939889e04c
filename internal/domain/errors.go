package domain

import "errors"

// ErrExtractionUnavailable reports that the extraction capability is
// unreachable or returned a malformed response. Transient: retry.
var ErrExtractionUnavailable = errors.New("extraction capability unavailable")

// ErrExtractionRateLimited reports that the external extraction quota is
// exhausted. Transient: retry with backoff.
var ErrExtractionRateLimited = errors.New("extraction quota exhausted")

// ErrGeocodeUnresolvable reports that a location hint cannot be geocoded.
// The candidate is held pending, not surfaced to the operator.
var ErrGeocodeUnresolvable = errors.New("location hint cannot be geocoded")

// ErrOutOfRegion reports coordinates outside the configured bounding region.
var ErrOutOfRegion = errors.New("coordinates outside configured region")

// ErrPlaceNotFound is returned for lookups of an unknown place.
var ErrPlaceNotFound = errors.New("place not found")

// ErrMentionNotFound is returned for lookups of an unknown mention.
var ErrMentionNotFound = errors.New("mention not found")

// ErrReviewNotFound is returned for lookups of an unknown review item.
var ErrReviewNotFound = errors.New("review item not found")

// ErrReviewResolved is returned when resolving an already resolved item.
var ErrReviewResolved = errors.New("review item already resolved")
