package review

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Chedly25/newTrip/internal/adapters/resolver"
	"github.com/Chedly25/newTrip/internal/domain"
)

// Service resolves ambiguous matches by operator decision, bypassing the
// automatic matcher entirely.
type Service struct {
	reviews  domain.ReviewRepo
	places   domain.PlaceRepo
	mentions domain.MentionRepo
	scorer   domain.Scorer
	geocoder domain.Geocoder
	regionOf func(city string) string
	log      zerolog.Logger
}

// NewService creates the review service.
func NewService(reviews domain.ReviewRepo, places domain.PlaceRepo, mentions domain.MentionRepo, scorer domain.Scorer, geocoder domain.Geocoder, regionOf func(city string) string, log zerolog.Logger) *Service {
	return &Service{
		reviews:  reviews,
		places:   places,
		mentions: mentions,
		scorer:   scorer,
		geocoder: geocoder,
		regionOf: regionOf,
		log:      log,
	}
}

// ListPending returns items waiting for a decision.
func (s *Service) ListPending(ctx context.Context, limit int) ([]domain.ReviewItem, error) {
	return s.reviews.ListPendingReviews(ctx, limit)
}

// Get returns one review item.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (domain.ReviewItem, error) {
	return s.reviews.GetReviewItem(ctx, id)
}

// Accept attaches the held candidate to the chosen place.
func (s *Service) Accept(ctx context.Context, id, placeID uuid.UUID) (domain.Place, error) {
	item, err := s.pendingItem(ctx, id)
	if err != nil {
		return domain.Place{}, err
	}
	if _, err := s.places.GetPlace(ctx, placeID); err != nil {
		return domain.Place{}, err
	}
	place, err := s.attach(ctx, item, domain.AttachRequest{PlaceID: placeID})
	if err != nil {
		return domain.Place{}, err
	}
	if err := s.reviews.SetReviewStatus(ctx, id, domain.ReviewAccepted); err != nil {
		return domain.Place{}, err
	}
	s.log.Info().Str("review_id", id.String()).Str("place_id", placeID.String()).Msg("review accepted")
	return place, nil
}

// CreatePlace materializes the candidate as a brand new place.
func (s *Service) CreatePlace(ctx context.Context, id uuid.UUID) (domain.Place, error) {
	item, err := s.pendingItem(ctx, id)
	if err != nil {
		return domain.Place{}, err
	}
	coords, err := s.locate(ctx, item.Candidate)
	if err != nil {
		return domain.Place{}, fmt.Errorf("locate %q: %w", item.Candidate.Name, err)
	}

	draft := &domain.Place{
		ID:        uuid.New(),
		Name:      item.Candidate.Name,
		NormName:  resolver.NormalizeName(item.Candidate.Name),
		Coords:    coords,
		Type:      item.Candidate.Type,
		City:      item.Candidate.City,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	if s.regionOf != nil {
		draft.Region = s.regionOf(draft.City)
	}

	place, err := s.attach(ctx, item, domain.AttachRequest{NewPlace: draft})
	if err != nil {
		return domain.Place{}, err
	}
	if err := s.reviews.SetReviewStatus(ctx, id, domain.ReviewAccepted); err != nil {
		return domain.Place{}, err
	}
	s.log.Info().Str("review_id", id.String()).Str("place_id", place.ID.String()).Msg("review resolved by creation")
	return place, nil
}

// Reject discards the candidate without touching the registry.
func (s *Service) Reject(ctx context.Context, id uuid.UUID) error {
	if _, err := s.pendingItem(ctx, id); err != nil {
		return err
	}
	if err := s.reviews.SetReviewStatus(ctx, id, domain.ReviewRejected); err != nil {
		return err
	}
	s.log.Info().Str("review_id", id.String()).Msg("review rejected")
	return nil
}

func (s *Service) pendingItem(ctx context.Context, id uuid.UUID) (domain.ReviewItem, error) {
	item, err := s.reviews.GetReviewItem(ctx, id)
	if err != nil {
		return domain.ReviewItem{}, err
	}
	if item.Status != domain.ReviewPending {
		return domain.ReviewItem{}, domain.ErrReviewResolved
	}
	return item, nil
}

func (s *Service) attach(ctx context.Context, item domain.ReviewItem, req domain.AttachRequest) (domain.Place, error) {
	m, err := s.mentions.GetMention(ctx, item.Candidate.SourceID)
	if err != nil {
		return domain.Place{}, fmt.Errorf("mention for review %s: %w", item.ID, err)
	}
	req.Mention = m
	req.Candidate = item.Candidate
	place, _, err := s.places.AttachAndRescore(ctx, req, s.scorer.Rescore)
	if err != nil {
		return domain.Place{}, fmt.Errorf("attach reviewed candidate: %w", err)
	}
	return place, nil
}

func (s *Service) locate(ctx context.Context, cand domain.PlaceCandidate) (domain.Coordinates, error) {
	if cand.Coords != nil {
		return *cand.Coords, nil
	}
	if cand.LocationHint != "" {
		coords, err := s.geocoder.Geocode(ctx, cand.LocationHint)
		if err == nil {
			return coords, nil
		}
		if !errors.Is(err, domain.ErrGeocodeUnresolvable) {
			return domain.Coordinates{}, err
		}
	}
	if cand.City != "" {
		return s.geocoder.Geocode(ctx, cand.City)
	}
	return domain.Coordinates{}, domain.ErrGeocodeUnresolvable
}
