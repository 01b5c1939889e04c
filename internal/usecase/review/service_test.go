package review

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Chedly25/newTrip/internal/adapters/scorer"
	"github.com/Chedly25/newTrip/internal/domain"
)

type stubReviews struct {
	items map[uuid.UUID]domain.ReviewItem
}

func (r *stubReviews) CreateReviewItem(_ context.Context, item domain.ReviewItem) error {
	r.items[item.ID] = item
	return nil
}

func (r *stubReviews) GetReviewItem(_ context.Context, id uuid.UUID) (domain.ReviewItem, error) {
	item, ok := r.items[id]
	if !ok {
		return domain.ReviewItem{}, domain.ErrReviewNotFound
	}
	return item, nil
}

func (r *stubReviews) ListPendingReviews(_ context.Context, _ int) ([]domain.ReviewItem, error) {
	var out []domain.ReviewItem
	for _, item := range r.items {
		if item.Status == domain.ReviewPending {
			out = append(out, item)
		}
	}
	return out, nil
}

func (r *stubReviews) SetReviewStatus(_ context.Context, id uuid.UUID, status domain.ReviewStatus) error {
	item, ok := r.items[id]
	if !ok {
		return domain.ErrReviewNotFound
	}
	if item.Status != domain.ReviewPending {
		return domain.ErrReviewResolved
	}
	item.Status = status
	r.items[id] = item
	return nil
}

type stubPlaces struct {
	places   map[uuid.UUID]domain.Place
	attached map[uuid.UUID][]domain.AttachedMention
}

func (r *stubPlaces) GetPlace(_ context.Context, id uuid.UUID) (domain.Place, error) {
	p, ok := r.places[id]
	if !ok {
		return domain.Place{}, domain.ErrPlaceNotFound
	}
	return p, nil
}

func (r *stubPlaces) FindNearby(context.Context, domain.Coordinates, float64) ([]domain.Place, error) {
	return nil, nil
}

func (r *stubPlaces) FindByCity(context.Context, string) ([]domain.Place, error) { return nil, nil }

func (r *stubPlaces) ListPlaces(context.Context, domain.PlaceFilter) ([]domain.Place, error) {
	return nil, nil
}

func (r *stubPlaces) ListMentionsForPlace(_ context.Context, placeID uuid.UUID) ([]domain.AttachedMention, error) {
	return r.attached[placeID], nil
}

func (r *stubPlaces) LatestSnapshot(context.Context, uuid.UUID) (domain.ScoreSnapshot, error) {
	return domain.ScoreSnapshot{}, domain.ErrPlaceNotFound
}

func (r *stubPlaces) AttachAndRescore(_ context.Context, req domain.AttachRequest, rescore domain.RescoreFunc) (domain.Place, domain.ScoreSnapshot, error) {
	var place domain.Place
	if req.NewPlace != nil {
		place = *req.NewPlace
		r.places[place.ID] = place
	} else {
		existing, ok := r.places[req.PlaceID]
		if !ok {
			return domain.Place{}, domain.ScoreSnapshot{}, domain.ErrPlaceNotFound
		}
		place = existing
	}
	r.attached[place.ID] = append(r.attached[place.ID], domain.AttachedMention{
		Mention:    req.Mention,
		Sentiment:  req.Candidate.Sentiment,
		Confidence: req.Candidate.Confidence,
		AttachedAt: time.Now().UTC(),
	})
	snap := rescore(place, r.attached[place.ID], time.Now().UTC())
	snap.PlaceID = place.ID
	place.MentionCount = snap.MentionCount
	place.Score = snap.Score
	r.places[place.ID] = place
	return place, snap, nil
}

type stubMentions struct {
	mentions map[string]domain.Mention
}

func (r *stubMentions) InsertMention(context.Context, domain.Mention) (bool, error) { return true, nil }

func (r *stubMentions) GetMention(_ context.Context, sourceID string) (domain.Mention, error) {
	m, ok := r.mentions[sourceID]
	if !ok {
		return domain.Mention{}, domain.ErrMentionNotFound
	}
	return m, nil
}

func (r *stubMentions) GetMentionStatus(context.Context, string) (domain.MentionStatus, error) {
	return domain.MentionStatusNew, nil
}

func (r *stubMentions) SetMentionStatus(context.Context, string, domain.MentionStatus) error {
	return nil
}

type stubGeocoder struct{}

func (stubGeocoder) Geocode(_ context.Context, hint string) (domain.Coordinates, error) {
	if strings.Contains(strings.ToLower(hint), "annecy") {
		return domain.Coordinates{Lat: 45.8992, Lon: 6.1294}, nil
	}
	return domain.Coordinates{}, domain.ErrGeocodeUnresolvable
}

func newTestService() (*Service, *stubReviews, *stubPlaces, *stubMentions) {
	reviews := &stubReviews{items: map[uuid.UUID]domain.ReviewItem{}}
	places := &stubPlaces{places: map[uuid.UUID]domain.Place{}, attached: map[uuid.UUID][]domain.AttachedMention{}}
	mentions := &stubMentions{mentions: map[string]domain.Mention{}}
	svc := NewService(reviews, places, mentions, scorer.New(scorer.DefaultWeights()), stubGeocoder{},
		func(string) string { return "Auvergne-Rhône-Alpes" }, zerolog.Nop())
	return svc, reviews, places, mentions
}

func seedItem(reviews *stubReviews, mentions *stubMentions, cand domain.PlaceCandidate) uuid.UUID {
	id := uuid.New()
	reviews.items[id] = domain.ReviewItem{
		ID:        id,
		Candidate: cand,
		Status:    domain.ReviewPending,
		CreatedAt: time.Now().UTC(),
	}
	mentions.mentions[cand.SourceID] = domain.Mention{
		SourceID:   cand.SourceID,
		Channel:    "annecy",
		Kind:       domain.ChannelLocal,
		Text:       "avis",
		PostedAt:   time.Now().UTC(),
		Engagement: 3,
	}
	return id
}

func TestAcceptAttachesToChosenPlace(t *testing.T) {
	svc, reviews, places, mentions := newTestService()
	target := domain.Place{ID: uuid.New(), Name: "Le Petit Bouillon", NormName: "le petit bouillon", Active: true}
	places.places[target.ID] = target
	id := seedItem(reviews, mentions, domain.PlaceCandidate{Name: "Le Petit Bouillon Paris", SourceID: "reddit:r1", Sentiment: 0.5, Confidence: 0.7})

	place, err := svc.Accept(context.Background(), id, target.ID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if place.ID != target.ID {
		t.Fatalf("attached to wrong place: %s", place.ID)
	}
	if len(places.attached[target.ID]) != 1 {
		t.Fatalf("mention not attached")
	}
	if reviews.items[id].Status != domain.ReviewAccepted {
		t.Fatalf("status not accepted: %v", reviews.items[id].Status)
	}
}

func TestAcceptUnknownPlace(t *testing.T) {
	svc, reviews, _, mentions := newTestService()
	id := seedItem(reviews, mentions, domain.PlaceCandidate{Name: "X", SourceID: "reddit:r1"})

	_, err := svc.Accept(context.Background(), id, uuid.New())
	if !errors.Is(err, domain.ErrPlaceNotFound) {
		t.Fatalf("expected place not found, got %v", err)
	}
	if reviews.items[id].Status != domain.ReviewPending {
		t.Fatalf("failed accept must keep the item pending")
	}
}

func TestCreatePlaceFromCandidate(t *testing.T) {
	svc, reviews, places, mentions := newTestService()
	id := seedItem(reviews, mentions, domain.PlaceCandidate{
		Name:       "Crêperie du Lac",
		Type:       domain.PlaceRestaurant,
		City:       "Annecy",
		SourceID:   "reddit:r1",
		Sentiment:  0.6,
		Confidence: 0.7,
	})

	place, err := svc.CreatePlace(context.Background(), id)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if place.NormName != "creperie du lac" {
		t.Fatalf("norm name = %q", place.NormName)
	}
	if place.Region != "Auvergne-Rhône-Alpes" {
		t.Fatalf("region = %q", place.Region)
	}
	if len(places.attached[place.ID]) != 1 {
		t.Fatalf("mention not attached to created place")
	}
	if reviews.items[id].Status != domain.ReviewAccepted {
		t.Fatalf("status = %v", reviews.items[id].Status)
	}
}

func TestCreatePlaceWithoutLocation(t *testing.T) {
	svc, reviews, _, mentions := newTestService()
	id := seedItem(reviews, mentions, domain.PlaceCandidate{Name: "Lieu Mystère", SourceID: "reddit:r1"})

	_, err := svc.CreatePlace(context.Background(), id)
	if !errors.Is(err, domain.ErrGeocodeUnresolvable) {
		t.Fatalf("expected unresolvable, got %v", err)
	}
}

func TestRejectLeavesRegistryUntouched(t *testing.T) {
	svc, reviews, places, mentions := newTestService()
	id := seedItem(reviews, mentions, domain.PlaceCandidate{Name: "X", SourceID: "reddit:r1"})

	if err := svc.Reject(context.Background(), id); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if len(places.places) != 0 {
		t.Fatalf("reject created a place")
	}
	if reviews.items[id].Status != domain.ReviewRejected {
		t.Fatalf("status = %v", reviews.items[id].Status)
	}
	// A second decision on the same item must fail.
	if err := svc.Reject(context.Background(), id); !errors.Is(err, domain.ErrReviewResolved) {
		t.Fatalf("expected already resolved, got %v", err)
	}
}
