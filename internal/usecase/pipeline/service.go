package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/Chedly25/newTrip/internal/adapters/extractor"
	"github.com/Chedly25/newTrip/internal/adapters/resolver"
	"github.com/Chedly25/newTrip/internal/domain"
	"github.com/Chedly25/newTrip/internal/infra/metrics"
)

// Outcome is the terminal state of one processed mention.
type Outcome string

const (
	OutcomeProcessed  Outcome = "processed"
	OutcomeDuplicate  Outcome = "duplicate"
	OutcomeDeadLetter Outcome = "dead_letter"
	OutcomeFailed     Outcome = "failed"
)

// Config tunes the pipeline behavior.
type Config struct {
	ConfidenceFloor float64
	CacheTTL        time.Duration
	// MaxInflight caps concurrent extraction calls across all workers.
	MaxInflight int
	// MaxAttempts bounds extraction retries before the mention is parked.
	MaxAttempts          int
	AttachRetries        int
	RetryInitialInterval time.Duration
}

// Deps wires the pipeline ports.
type Deps struct {
	Mentions    domain.MentionRepo
	Places      domain.PlaceRepo
	Reviews     domain.ReviewRepo
	DeadLetters domain.DeadLetterRepo
	Pending     domain.PendingRepo
	Cache       domain.ExtractionCache
	Extractor   domain.Extractor
	Resolver    domain.Resolver
	Scorer      domain.Scorer
	ReviewQueue domain.ReviewQueue
	Alerter     domain.Alerter
	// RegionOf maps a city to its administrative region for new places.
	RegionOf func(city string) string
}

// Service runs mentions through extraction, resolution and scoring.
type Service struct {
	deps   Deps
	cfg    Config
	log    zerolog.Logger
	sem    chan struct{}
	flight singleflight.Group
}

// NewService creates the pipeline.
func NewService(deps Deps, cfg Config, log zerolog.Logger) *Service {
	if cfg.MaxInflight <= 0 {
		cfg.MaxInflight = 4
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.AttachRetries <= 0 {
		cfg.AttachRetries = 3
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 14 * 24 * time.Hour
	}
	if cfg.RetryInitialInterval <= 0 {
		cfg.RetryInitialInterval = 500 * time.Millisecond
	}
	return &Service{
		deps: deps,
		cfg:  cfg,
		log:  log,
		sem:  make(chan struct{}, cfg.MaxInflight),
	}
}

// Run consumes the mention queue with a fixed worker pool until ctx ends.
func (s *Service) Run(ctx context.Context, queue domain.MentionQueue, workers int) {
	if workers <= 0 {
		workers = 1
	}
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			s.worker(ctx, queue, worker)
		}(i)
	}
	wg.Wait()
}

func (s *Service) worker(ctx context.Context, queue domain.MentionQueue, worker int) {
	log := s.log.With().Int("worker", worker).Logger()
	for {
		job, ack, err := queue.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Msg("receive mention job")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		outcome, err := s.Process(ctx, job.Mention)
		metrics.MentionsProcessed.WithLabelValues(string(outcome)).Inc()
		if err != nil {
			log.Error().Err(err).Str("source_id", job.Mention.SourceID).Bool("requeued", job.Requeued).Msg("mention processing failed, requeueing")
			if ackErr := ack(false); ackErr != nil {
				log.Error().Err(ackErr).Msg("nack mention job")
			}
			continue
		}
		log.Info().Str("source_id", job.Mention.SourceID).Str("outcome", string(outcome)).Bool("requeued", job.Requeued).Msg("mention processed")
		if ackErr := ack(true); ackErr != nil {
			log.Error().Err(ackErr).Msg("ack mention job")
		}
	}
}

// Process runs one mention through the full pipeline. A nil error means the
// mention reached a terminal state and must be acked; an error asks for
// redelivery.
func (s *Service) Process(ctx context.Context, m domain.Mention) (Outcome, error) {
	inserted, err := s.deps.Mentions.InsertMention(ctx, m)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("store mention: %w", err)
	}
	if !inserted {
		status, err := s.deps.Mentions.GetMentionStatus(ctx, m.SourceID)
		if err != nil {
			return OutcomeFailed, fmt.Errorf("mention status: %w", err)
		}
		if status == domain.MentionStatusProcessed {
			return OutcomeDuplicate, nil
		}
		// A known but unfinished mention is a redelivery: nacked mid-run,
		// interrupted by shutdown, or requeued from the dead-letter store.
		// Attaching is idempotent, so the pipeline resumes from extraction.
		s.log.Info().Str("source_id", m.SourceID).Str("status", string(status)).Msg("resuming redelivered mention")
	}

	cands, err := s.extract(ctx, m)
	if err != nil {
		if ctx.Err() != nil {
			return OutcomeFailed, err
		}
		return s.parkMention(ctx, m, err)
	}

	for _, cand := range cands {
		if cand.Confidence < s.cfg.ConfidenceFloor {
			s.log.Debug().Str("name", cand.Name).Float64("confidence", cand.Confidence).Msg("candidate below confidence floor")
			continue
		}
		if err := s.resolveAndAttach(ctx, m, cand); err != nil {
			return OutcomeFailed, err
		}
	}

	if err := s.deps.Mentions.SetMentionStatus(ctx, m.SourceID, domain.MentionStatusProcessed); err != nil {
		return OutcomeFailed, fmt.Errorf("mark mention processed: %w", err)
	}
	return OutcomeProcessed, nil
}

// extract returns candidates from the cache or the oracle. Only successful
// extractions enter the cache.
func (s *Service) extract(ctx context.Context, m domain.Mention) ([]domain.PlaceCandidate, error) {
	hash := contentHash(m.Text)
	cands, hit, err := s.deps.Cache.Get(ctx, hash)
	if err != nil {
		s.log.Warn().Err(err).Msg("extraction cache read failed")
	}
	if hit {
		metrics.ExtractionCacheHits.Inc()
		return stampSource(cands, m.SourceID), nil
	}
	metrics.ExtractionCacheMisses.Inc()

	// Workers racing on identical content collapse into one oracle call and
	// share its result.
	ch := s.flight.DoChan(hash, func() (interface{}, error) {
		return s.extractAndCache(ctx, m, hash)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return stampSource(res.Val.([]domain.PlaceCandidate), m.SourceID), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Service) extractAndCache(ctx context.Context, m domain.Mention, hash string) ([]domain.PlaceCandidate, error) {
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-s.sem }()

	cands, err := s.extractWithRetry(ctx, m)
	if err != nil {
		return nil, err
	}

	if err := s.deps.Cache.Set(ctx, hash, cands, s.cfg.CacheTTL); err != nil {
		s.log.Warn().Err(err).Msg("extraction cache write failed")
	}
	return cands, nil
}

func (s *Service) extractWithRetry(ctx context.Context, m domain.Mention) ([]domain.PlaceCandidate, error) {
	var cands []domain.PlaceCandidate
	op := func() error {
		var err error
		cands, err = s.deps.Extractor.Extract(ctx, m)
		if err == nil {
			return nil
		}
		if errors.Is(err, domain.ErrExtractionRateLimited) || errors.Is(err, domain.ErrExtractionUnavailable) {
			return err
		}
		return backoff.Permanent(err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.cfg.RetryInitialInterval
	bo.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(s.cfg.MaxAttempts-1)), ctx)

	err := backoff.RetryNotify(op, policy, func(err error, next time.Duration) {
		metrics.ExtractionRetries.Inc()
		s.log.Warn().Err(err).Dur("next_attempt_in", next).Str("source_id", m.SourceID).Msg("extraction retry")
	})
	if err != nil {
		return nil, err
	}
	return cands, nil
}

// parkMention moves a mention that exhausted extraction retries to the
// dead-letter store. Parking is terminal, so the job is acked.
func (s *Service) parkMention(ctx context.Context, m domain.Mention, cause error) (Outcome, error) {
	dl := domain.DeadLetter{
		Mention:  m,
		Reason:   cause.Error(),
		Attempts: s.cfg.MaxAttempts,
		ParkedAt: time.Now().UTC(),
	}
	if err := s.deps.DeadLetters.Park(ctx, dl); err != nil {
		return OutcomeFailed, fmt.Errorf("park mention: %w", err)
	}
	if err := s.deps.Mentions.SetMentionStatus(ctx, m.SourceID, domain.MentionStatusDeadLetter); err != nil {
		return OutcomeFailed, fmt.Errorf("mark mention dead-lettered: %w", err)
	}
	s.alert(ctx, "mention dead-lettered",
		fmt.Sprintf("source: %s\nchannel: %s\ncause: %v", m.SourceID, m.Channel, cause))
	return OutcomeDeadLetter, nil
}

func (s *Service) resolveAndAttach(ctx context.Context, m domain.Mention, cand domain.PlaceCandidate) error {
	res, err := s.deps.Resolver.Resolve(ctx, cand)
	if err != nil {
		if errors.Is(err, domain.ErrOutOfRegion) {
			metrics.OutOfRegion.Inc()
			s.log.Warn().Str("name", cand.Name).Msg("candidate outside served region, dropped")
			return nil
		}
		return fmt.Errorf("resolve %q: %w", cand.Name, err)
	}

	switch {
	case res.Pending:
		pc := domain.PendingCandidate{
			Candidate: cand,
			NormName:  resolver.NormalizeName(cand.Name),
			HeldAt:    time.Now().UTC(),
		}
		if err := s.deps.Pending.SavePending(ctx, pc); err != nil {
			return fmt.Errorf("hold pending candidate %q: %w", cand.Name, err)
		}
		return nil

	case res.IsAmbiguous:
		return s.routeToReview(ctx, cand, res)

	default:
		return s.attach(ctx, m, cand, res)
	}
}

func (s *Service) routeToReview(ctx context.Context, cand domain.PlaceCandidate, res domain.Resolution) error {
	item := domain.ReviewItem{
		ID:        uuid.New(),
		Candidate: cand,
		Matches:   res.Matches,
		Reason:    "match score in the ambiguous band",
		Status:    domain.ReviewPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.deps.Reviews.CreateReviewItem(ctx, item); err != nil {
		return fmt.Errorf("create review item for %q: %w", cand.Name, err)
	}
	metrics.AmbiguousCandidates.Inc()
	if s.deps.ReviewQueue != nil {
		if err := s.deps.ReviewQueue.Publish(ctx, item); err != nil {
			s.log.Warn().Err(err).Str("review_id", item.ID.String()).Msg("review queue publish failed")
		}
	}
	return nil
}

func (s *Service) attach(ctx context.Context, m domain.Mention, cand domain.PlaceCandidate, res domain.Resolution) error {
	req := domain.AttachRequest{
		PlaceID:   res.PlaceID,
		NewPlace:  res.NewPlace,
		Mention:   m,
		Candidate: cand,
	}
	if req.NewPlace != nil && req.NewPlace.Region == "" && s.deps.RegionOf != nil {
		req.NewPlace.Region = s.deps.RegionOf(req.NewPlace.City)
	}

	place, err := s.attachWithRetry(ctx, req)
	if err != nil {
		s.alert(ctx, "attach failed",
			fmt.Sprintf("candidate: %s\nmention: %s\nerror: %v", cand.Name, m.SourceID, err))
		return fmt.Errorf("attach %q: %w", cand.Name, err)
	}

	s.log.Info().
		Str("place", place.Name).
		Str("place_id", place.ID.String()).
		Float64("score", place.Score).
		Int("mentions", place.MentionCount).
		Msg("mention attached")

	// Merged attaches drain too: the place a hold waited for may predate
	// the hold or come out of an exact-name collision.
	return s.drainPending(ctx, place)
}

func (s *Service) attachWithRetry(ctx context.Context, req domain.AttachRequest) (domain.Place, error) {
	var (
		place domain.Place
		err   error
	)
	for attempt := 1; attempt <= s.cfg.AttachRetries; attempt++ {
		place, _, err = s.deps.Places.AttachAndRescore(ctx, req, s.deps.Scorer.Rescore)
		if err == nil {
			return place, nil
		}
		if ctx.Err() != nil {
			return domain.Place{}, err
		}
		s.log.Warn().Err(err).Int("attempt", attempt).Str("name", req.Candidate.Name).Msg("attach failed")
		if attempt < s.cfg.AttachRetries {
			select {
			case <-ctx.Done():
				return domain.Place{}, ctx.Err()
			case <-time.After(time.Duration(attempt) * s.cfg.RetryInitialInterval):
			}
		}
	}
	return domain.Place{}, err
}

// drainPending attaches candidates that waited for a place with this
// normalized name to exist. Held candidates carry no usable location, so
// they attach to the resolved place directly instead of re-resolving.
func (s *Service) drainPending(ctx context.Context, place domain.Place) error {
	held, err := s.deps.Pending.TakePendingByName(ctx, place.NormName)
	if err != nil {
		return fmt.Errorf("take pending %q: %w", place.NormName, err)
	}
	for _, pc := range held {
		m, err := s.deps.Mentions.GetMention(ctx, pc.Candidate.SourceID)
		if err != nil {
			s.log.Warn().Err(err).Str("source_id", pc.Candidate.SourceID).Msg("pending candidate lost its mention")
			continue
		}
		req := domain.AttachRequest{PlaceID: place.ID, Mention: m, Candidate: pc.Candidate}
		if _, err := s.attachWithRetry(ctx, req); err != nil {
			return fmt.Errorf("attach pending %q: %w", pc.Candidate.Name, err)
		}
	}
	return nil
}

func (s *Service) alert(ctx context.Context, subject, message string) {
	if s.deps.Alerter != nil {
		s.deps.Alerter.Alert(ctx, subject, message)
	}
}

// contentHash keys the extraction cache by normalized content, so the same
// text reposted across channels reuses one extraction.
func contentHash(text string) string {
	return extractor.ContentHash(extractor.NormalizeText(text))
}

// stampSource rebinds cached candidates to the mention being processed.
func stampSource(cands []domain.PlaceCandidate, sourceID string) []domain.PlaceCandidate {
	out := make([]domain.PlaceCandidate, len(cands))
	for i, c := range cands {
		c.SourceID = sourceID
		out[i] = c
	}
	return out
}
