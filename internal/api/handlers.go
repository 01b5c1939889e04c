package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Chedly25/newTrip/internal/domain"
	"github.com/Chedly25/newTrip/internal/usecase/review"
)

// Handler serves the discovery API.
type Handler struct {
	places  domain.PlaceRepo
	reviews *review.Service
	dead    domain.DeadLetterRepo
	queue   domain.MentionQueue
	log     zerolog.Logger
}

// NewHandler creates the API handler.
func NewHandler(places domain.PlaceRepo, reviews *review.Service, dead domain.DeadLetterRepo, queue domain.MentionQueue, log zerolog.Logger) *Handler {
	return &Handler{places: places, reviews: reviews, dead: dead, queue: queue, log: log}
}

// Mount registers the routes.
func (h *Handler) Mount(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.Get("/places", h.listPlaces)
		r.Get("/places/{id}", h.getPlace)
		r.Get("/review", h.listReviews)
		r.Post("/review/{id}", h.decideReview)
		r.Get("/deadletter", h.listDeadLetters)
		r.Post("/deadletter/{sourceID}/requeue", h.requeueDeadLetter)
	})
}

type placeView struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Type         string    `json:"type"`
	City         string    `json:"city,omitempty"`
	Region       string    `json:"region,omitempty"`
	Lat          float64   `json:"lat"`
	Lon          float64   `json:"lon"`
	Score        float64   `json:"score"`
	MentionCount int       `json:"mention_count"`
	ScoredAt     time.Time `json:"scored_at"`
	CreatedAt    time.Time `json:"created_at"`
}

func toPlaceView(p domain.Place) placeView {
	return placeView{
		ID:           p.ID,
		Name:         p.Name,
		Type:         string(p.Type),
		City:         p.City,
		Region:       p.Region,
		Lat:          p.Coords.Lat,
		Lon:          p.Coords.Lon,
		Score:        p.Score,
		MentionCount: p.MentionCount,
		ScoredAt:     p.ScoredAt,
		CreatedAt:    p.CreatedAt,
	}
}

type placeDetail struct {
	placeView
	Snapshot *snapshotView `json:"snapshot,omitempty"`
	Mentions []mentionView `json:"mentions"`
}

type mentionView struct {
	SourceID   string    `json:"source_id"`
	Channel    string    `json:"channel"`
	Kind       string    `json:"kind"`
	Author     string    `json:"author,omitempty"`
	Text       string    `json:"text"`
	PostedAt   time.Time `json:"posted_at"`
	Engagement int       `json:"engagement"`
	Sentiment  float64   `json:"sentiment"`
	AttachedAt time.Time `json:"attached_at"`
}

type snapshotView struct {
	Score        float64   `json:"score"`
	Frequency    float64   `json:"frequency"`
	Sentiment    float64   `json:"sentiment"`
	Authenticity float64   `json:"authenticity"`
	Recency      float64   `json:"recency"`
	MentionCount int       `json:"mention_count"`
	ComputedAt   time.Time `json:"computed_at"`
}

func (h *Handler) listPlaces(w http.ResponseWriter, r *http.Request) {
	filter := domain.PlaceFilter{
		Region: r.URL.Query().Get("region"),
		City:   r.URL.Query().Get("city"),
	}
	if raw := r.URL.Query().Get("min_score"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			h.respondError(w, http.StatusBadRequest, "invalid min_score")
			return
		}
		filter.MinScore = v
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			h.respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = v
	}

	places, err := h.places.ListPlaces(r.Context(), filter)
	if err != nil {
		h.internalError(w, err, "list places")
		return
	}
	views := make([]placeView, 0, len(places))
	for _, p := range places {
		views = append(views, toPlaceView(p))
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"places": views})
}

func (h *Handler) getPlace(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid place id")
		return
	}
	place, err := h.places.GetPlace(r.Context(), id)
	if errors.Is(err, domain.ErrPlaceNotFound) {
		h.respondError(w, http.StatusNotFound, "place not found")
		return
	}
	if err != nil {
		h.internalError(w, err, "get place")
		return
	}

	detail := placeDetail{placeView: toPlaceView(place), Mentions: []mentionView{}}
	attached, err := h.places.ListMentionsForPlace(r.Context(), id)
	if err != nil {
		h.internalError(w, err, "list place mentions")
		return
	}
	for _, am := range attached {
		detail.Mentions = append(detail.Mentions, mentionView{
			SourceID:   am.Mention.SourceID,
			Channel:    am.Mention.Channel,
			Kind:       string(am.Mention.Kind),
			Author:     am.Mention.Author,
			Text:       am.Mention.Text,
			PostedAt:   am.Mention.PostedAt,
			Engagement: am.Mention.Engagement,
			Sentiment:  am.Sentiment,
			AttachedAt: am.AttachedAt,
		})
	}
	if snap, err := h.places.LatestSnapshot(r.Context(), id); err == nil {
		detail.Snapshot = &snapshotView{
			Score:        snap.Score,
			Frequency:    snap.Frequency,
			Sentiment:    snap.Sentiment,
			Authenticity: snap.Authenticity,
			Recency:      snap.Recency,
			MentionCount: snap.MentionCount,
			ComputedAt:   snap.ComputedAt,
		}
	}
	h.respondJSON(w, http.StatusOK, detail)
}

func (h *Handler) listReviews(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			limit = v
		}
	}
	items, err := h.reviews.ListPending(r.Context(), limit)
	if err != nil {
		h.internalError(w, err, "list reviews")
		return
	}
	if items == nil {
		items = []domain.ReviewItem{}
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"items": items})
}

type reviewDecision struct {
	Action  string `json:"action"`
	PlaceID string `json:"place_id,omitempty"`
}

func (h *Handler) decideReview(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid review id")
		return
	}
	var decision reviewDecision
	if err := json.NewDecoder(r.Body).Decode(&decision); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid body")
		return
	}

	switch decision.Action {
	case "accept":
		placeID, err := uuid.Parse(decision.PlaceID)
		if err != nil {
			h.respondError(w, http.StatusBadRequest, "accept requires place_id")
			return
		}
		place, err := h.reviews.Accept(r.Context(), id, placeID)
		if err != nil {
			h.reviewError(w, err)
			return
		}
		h.respondJSON(w, http.StatusOK, map[string]any{"status": "accepted", "place": toPlaceView(place)})

	case "create":
		place, err := h.reviews.CreatePlace(r.Context(), id)
		if err != nil {
			h.reviewError(w, err)
			return
		}
		h.respondJSON(w, http.StatusOK, map[string]any{"status": "created", "place": toPlaceView(place)})

	case "reject":
		if err := h.reviews.Reject(r.Context(), id); err != nil {
			h.reviewError(w, err)
			return
		}
		h.respondJSON(w, http.StatusOK, map[string]any{"status": "rejected"})

	default:
		h.respondError(w, http.StatusBadRequest, "action must be accept, create or reject")
	}
}

type deadLetterView struct {
	SourceID string    `json:"source_id"`
	Channel  string    `json:"channel"`
	Reason   string    `json:"reason"`
	Attempts int       `json:"attempts"`
	ParkedAt time.Time `json:"parked_at"`
}

func (h *Handler) listDeadLetters(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			limit = v
		}
	}
	letters, err := h.dead.ListDeadLetters(r.Context(), limit)
	if err != nil {
		h.internalError(w, err, "list dead letters")
		return
	}
	views := make([]deadLetterView, 0, len(letters))
	for _, dl := range letters {
		views = append(views, deadLetterView{
			SourceID: dl.Mention.SourceID,
			Channel:  dl.Mention.Channel,
			Reason:   dl.Reason,
			Attempts: dl.Attempts,
			ParkedAt: dl.ParkedAt,
		})
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"dead_letters": views})
}

func (h *Handler) requeueDeadLetter(w http.ResponseWriter, r *http.Request) {
	sourceID := chi.URLParam(r, "sourceID")
	dl, err := h.dead.Take(r.Context(), sourceID)
	if errors.Is(err, domain.ErrMentionNotFound) {
		h.respondError(w, http.StatusNotFound, "dead letter not found")
		return
	}
	if err != nil {
		h.internalError(w, err, "take dead letter")
		return
	}

	job := domain.MentionJob{
		ID:         uuid.NewString(),
		Mention:    dl.Mention,
		EnqueuedAt: time.Now().UTC(),
		Requeued:   true,
	}
	if err := h.queue.Enqueue(r.Context(), job); err != nil {
		// The letter is already removed; put it back so it is not lost.
		if parkErr := h.dead.Park(r.Context(), dl); parkErr != nil {
			h.log.Error().Err(parkErr).Str("source_id", sourceID).Msg("failed to re-park dead letter")
		}
		h.internalError(w, err, "requeue dead letter")
		return
	}
	h.respondJSON(w, http.StatusAccepted, map[string]any{"status": "requeued", "source_id": sourceID})
}

func (h *Handler) reviewError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrReviewNotFound):
		h.respondError(w, http.StatusNotFound, "review item not found")
	case errors.Is(err, domain.ErrReviewResolved):
		h.respondError(w, http.StatusConflict, "review item already resolved")
	case errors.Is(err, domain.ErrPlaceNotFound):
		h.respondError(w, http.StatusNotFound, "place not found")
	case errors.Is(err, domain.ErrGeocodeUnresolvable):
		h.respondError(w, http.StatusUnprocessableEntity, "candidate has no resolvable location")
	default:
		h.internalError(w, err, "review decision")
	}
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Error().Err(err).Msg("encode response")
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}

func (h *Handler) internalError(w http.ResponseWriter, err error, op string) {
	h.log.Error().Err(err).Str("op", op).Msg("request failed")
	h.respondError(w, http.StatusInternalServerError, "internal error")
}
