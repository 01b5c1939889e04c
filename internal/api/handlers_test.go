package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Chedly25/newTrip/internal/adapters/scorer"
	"github.com/Chedly25/newTrip/internal/domain"
	"github.com/Chedly25/newTrip/internal/usecase/review"
)

type fakePlaces struct {
	places   map[uuid.UUID]domain.Place
	snaps    map[uuid.UUID]domain.ScoreSnapshot
	attached map[uuid.UUID][]domain.AttachedMention
}

func (f *fakePlaces) GetPlace(_ context.Context, id uuid.UUID) (domain.Place, error) {
	p, ok := f.places[id]
	if !ok {
		return domain.Place{}, domain.ErrPlaceNotFound
	}
	return p, nil
}

func (f *fakePlaces) FindNearby(context.Context, domain.Coordinates, float64) ([]domain.Place, error) {
	return nil, nil
}

func (f *fakePlaces) FindByCity(context.Context, string) ([]domain.Place, error) { return nil, nil }

func (f *fakePlaces) ListPlaces(_ context.Context, filter domain.PlaceFilter) ([]domain.Place, error) {
	var out []domain.Place
	for _, p := range f.places {
		if filter.MinScore > 0 && p.Score < filter.MinScore {
			continue
		}
		if filter.City != "" && !strings.EqualFold(p.City, filter.City) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (f *fakePlaces) ListMentionsForPlace(_ context.Context, id uuid.UUID) ([]domain.AttachedMention, error) {
	return f.attached[id], nil
}

func (f *fakePlaces) LatestSnapshot(_ context.Context, id uuid.UUID) (domain.ScoreSnapshot, error) {
	snap, ok := f.snaps[id]
	if !ok {
		return domain.ScoreSnapshot{}, domain.ErrPlaceNotFound
	}
	return snap, nil
}

func (f *fakePlaces) AttachAndRescore(_ context.Context, req domain.AttachRequest, rescore domain.RescoreFunc) (domain.Place, domain.ScoreSnapshot, error) {
	place := f.places[req.PlaceID]
	if req.NewPlace != nil {
		place = *req.NewPlace
		f.places[place.ID] = place
	}
	snap := rescore(place, []domain.AttachedMention{{Mention: req.Mention}}, time.Now().UTC())
	return place, snap, nil
}

type fakeMentions struct{}

func (fakeMentions) InsertMention(context.Context, domain.Mention) (bool, error) { return true, nil }

func (fakeMentions) GetMention(_ context.Context, sourceID string) (domain.Mention, error) {
	return domain.Mention{SourceID: sourceID, PostedAt: time.Now().UTC()}, nil
}

func (fakeMentions) GetMentionStatus(context.Context, string) (domain.MentionStatus, error) {
	return domain.MentionStatusNew, nil
}

func (fakeMentions) SetMentionStatus(context.Context, string, domain.MentionStatus) error { return nil }

type fakeReviews struct {
	items map[uuid.UUID]domain.ReviewItem
}

func (f *fakeReviews) CreateReviewItem(_ context.Context, item domain.ReviewItem) error {
	f.items[item.ID] = item
	return nil
}

func (f *fakeReviews) GetReviewItem(_ context.Context, id uuid.UUID) (domain.ReviewItem, error) {
	item, ok := f.items[id]
	if !ok {
		return domain.ReviewItem{}, domain.ErrReviewNotFound
	}
	return item, nil
}

func (f *fakeReviews) ListPendingReviews(context.Context, int) ([]domain.ReviewItem, error) {
	var out []domain.ReviewItem
	for _, item := range f.items {
		if item.Status == domain.ReviewPending {
			out = append(out, item)
		}
	}
	return out, nil
}

func (f *fakeReviews) SetReviewStatus(_ context.Context, id uuid.UUID, status domain.ReviewStatus) error {
	item, ok := f.items[id]
	if !ok {
		return domain.ErrReviewNotFound
	}
	item.Status = status
	f.items[id] = item
	return nil
}

type fakeDead struct {
	parked map[string]domain.DeadLetter
}

func (f *fakeDead) Park(_ context.Context, dl domain.DeadLetter) error {
	f.parked[dl.Mention.SourceID] = dl
	return nil
}

func (f *fakeDead) ListDeadLetters(context.Context, int) ([]domain.DeadLetter, error) {
	var out []domain.DeadLetter
	for _, dl := range f.parked {
		out = append(out, dl)
	}
	return out, nil
}

func (f *fakeDead) Take(_ context.Context, sourceID string) (domain.DeadLetter, error) {
	dl, ok := f.parked[sourceID]
	if !ok {
		return domain.DeadLetter{}, domain.ErrMentionNotFound
	}
	delete(f.parked, sourceID)
	return dl, nil
}

type fakeQueue struct {
	jobs []domain.MentionJob
}

func (f *fakeQueue) Enqueue(_ context.Context, job domain.MentionJob) error {
	f.jobs = append(f.jobs, job)
	return nil
}

func (f *fakeQueue) Receive(context.Context) (domain.MentionJob, domain.AckFunc, error) {
	return domain.MentionJob{}, nil, context.Canceled
}

type fakeGeocoder struct{}

func (fakeGeocoder) Geocode(context.Context, string) (domain.Coordinates, error) {
	return domain.Coordinates{Lat: 45.9, Lon: 6.1}, nil
}

func newTestRouter(places *fakePlaces, dead *fakeDead, queue *fakeQueue, reviews *fakeReviews) chi.Router {
	reviewSvc := review.NewService(reviews, places, fakeMentions{}, scorer.New(scorer.DefaultWeights()),
		fakeGeocoder{}, nil, zerolog.Nop())
	h := NewHandler(places, reviewSvc, dead, queue, zerolog.Nop())
	r := chi.NewRouter()
	h.Mount(r)
	return r
}

func TestListPlacesFiltersByScore(t *testing.T) {
	places := &fakePlaces{places: map[uuid.UUID]domain.Place{}, snaps: map[uuid.UUID]domain.ScoreSnapshot{}}
	low := domain.Place{ID: uuid.New(), Name: "Spot Connu", Score: 30, Active: true}
	high := domain.Place{ID: uuid.New(), Name: "Pépite", Score: 80, Active: true}
	places.places[low.ID] = low
	places.places[high.ID] = high
	router := newTestRouter(places, &fakeDead{parked: map[string]domain.DeadLetter{}}, &fakeQueue{}, &fakeReviews{items: map[uuid.UUID]domain.ReviewItem{}})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/places?min_score=50", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Places []placeView `json:"places"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Places) != 1 || body.Places[0].Name != "Pépite" {
		t.Fatalf("unexpected places: %+v", body.Places)
	}
}

func TestGetPlaceWithSnapshot(t *testing.T) {
	places := &fakePlaces{
		places:   map[uuid.UUID]domain.Place{},
		snaps:    map[uuid.UUID]domain.ScoreSnapshot{},
		attached: map[uuid.UUID][]domain.AttachedMention{},
	}
	p := domain.Place{ID: uuid.New(), Name: "Cascade d'Angon", Score: 74, Active: true}
	places.places[p.ID] = p
	places.snaps[p.ID] = domain.ScoreSnapshot{PlaceID: p.ID, Score: 74, MentionCount: 5, ComputedAt: time.Now().UTC()}
	places.attached[p.ID] = []domain.AttachedMention{
		{Mention: domain.Mention{SourceID: "reddit:a1", Channel: "annecy", Text: "cascade incroyable", PostedAt: time.Now().UTC()}, AttachedAt: time.Now().UTC()},
	}
	router := newTestRouter(places, &fakeDead{parked: map[string]domain.DeadLetter{}}, &fakeQueue{}, &fakeReviews{items: map[uuid.UUID]domain.ReviewItem{}})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/places/"+p.ID.String(), nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var detail struct {
		Name     string        `json:"name"`
		Snapshot *snapshotView `json:"snapshot"`
		Mentions []mentionView `json:"mentions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &detail); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if detail.Snapshot == nil || detail.Snapshot.MentionCount != 5 {
		t.Fatalf("snapshot missing: %+v", detail)
	}
	if len(detail.Mentions) != 1 || detail.Mentions[0].SourceID != "reddit:a1" {
		t.Fatalf("mention history missing: %+v", detail.Mentions)
	}
}

func TestGetPlaceNotFound(t *testing.T) {
	places := &fakePlaces{places: map[uuid.UUID]domain.Place{}, snaps: map[uuid.UUID]domain.ScoreSnapshot{}}
	router := newTestRouter(places, &fakeDead{parked: map[string]domain.DeadLetter{}}, &fakeQueue{}, &fakeReviews{items: map[uuid.UUID]domain.ReviewItem{}})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/places/"+uuid.NewString(), nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestDecideReviewReject(t *testing.T) {
	places := &fakePlaces{places: map[uuid.UUID]domain.Place{}, snaps: map[uuid.UUID]domain.ScoreSnapshot{}}
	reviews := &fakeReviews{items: map[uuid.UUID]domain.ReviewItem{}}
	id := uuid.New()
	reviews.items[id] = domain.ReviewItem{ID: id, Candidate: domain.PlaceCandidate{Name: "X", SourceID: "s1"}, Status: domain.ReviewPending}
	router := newTestRouter(places, &fakeDead{parked: map[string]domain.DeadLetter{}}, &fakeQueue{}, reviews)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/review/"+id.String(), strings.NewReader(`{"action":"reject"}`))
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if reviews.items[id].Status != domain.ReviewRejected {
		t.Fatalf("status = %v", reviews.items[id].Status)
	}
}

func TestDecideReviewBadAction(t *testing.T) {
	places := &fakePlaces{places: map[uuid.UUID]domain.Place{}, snaps: map[uuid.UUID]domain.ScoreSnapshot{}}
	router := newTestRouter(places, &fakeDead{parked: map[string]domain.DeadLetter{}}, &fakeQueue{}, &fakeReviews{items: map[uuid.UUID]domain.ReviewItem{}})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/review/"+uuid.NewString(), strings.NewReader(`{"action":"merge"}`))
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRequeueDeadLetter(t *testing.T) {
	places := &fakePlaces{places: map[uuid.UUID]domain.Place{}, snaps: map[uuid.UUID]domain.ScoreSnapshot{}}
	dead := &fakeDead{parked: map[string]domain.DeadLetter{
		"reddit:x1": {Mention: domain.Mention{SourceID: "reddit:x1", Channel: "annecy"}, Reason: "oracle down", Attempts: 5},
	}}
	queue := &fakeQueue{}
	router := newTestRouter(places, dead, queue, &fakeReviews{items: map[uuid.UUID]domain.ReviewItem{}})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/deadletter/reddit:x1/requeue", nil))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if len(queue.jobs) != 1 || !queue.jobs[0].Requeued {
		t.Fatalf("job not requeued: %+v", queue.jobs)
	}
	if len(dead.parked) != 0 {
		t.Fatalf("dead letter not removed")
	}
}
