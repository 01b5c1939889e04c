package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Chedly25/newTrip/internal/domain"
	"github.com/Chedly25/newTrip/internal/infra/metrics"
)

// Postgres implements the persistence ports on top of pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
	// deactivate decides whether a place drops out of serving after a
	// rescore. Nil keeps every place active.
	deactivate func(domain.ScoreSnapshot) bool
}

var (
	_ domain.MentionRepo    = (*Postgres)(nil)
	_ domain.PlaceRepo      = (*Postgres)(nil)
	_ domain.ReviewRepo     = (*Postgres)(nil)
	_ domain.DeadLetterRepo = (*Postgres)(nil)
	_ domain.PendingRepo    = (*Postgres)(nil)
)

// NewPostgres creates the database adapter.
func NewPostgres(pool *pgxpool.Pool, deactivate func(domain.ScoreSnapshot) bool) *Postgres {
	return &Postgres{pool: pool, deactivate: deactivate}
}

func (p *Postgres) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// InsertMention implements domain.MentionRepo. Returns false for a source
// identifier that is already stored.
func (p *Postgres) InsertMention(ctx context.Context, m domain.Mention) (bool, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
INSERT INTO mentions (source_id, channel, kind, body, author, posted_at, engagement, lang, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (source_id) DO NOTHING
`, m.SourceID, m.Channel, string(m.Kind), m.Text, m.Author, m.PostedAt, m.Engagement, m.Lang, string(domain.MentionStatusNew))
	metrics.ObserveNetworkRequest("postgres", "mentions_insert", "mentions", start, err)
	if err != nil {
		return false, fmt.Errorf("insert mention: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// GetMention implements domain.MentionRepo.
func (p *Postgres) GetMention(ctx context.Context, sourceID string) (domain.Mention, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var (
		m    domain.Mention
		kind string
	)
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT source_id, channel, kind, body, author, posted_at, engagement, lang
FROM mentions WHERE source_id=$1
`, sourceID).Scan(&m.SourceID, &m.Channel, &kind, &m.Text, &m.Author, &m.PostedAt, &m.Engagement, &m.Lang)
	metrics.ObserveNetworkRequest("postgres", "mentions_get", "mentions", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Mention{}, domain.ErrMentionNotFound
	}
	if err != nil {
		return domain.Mention{}, fmt.Errorf("get mention: %w", err)
	}
	m.Kind = domain.ChannelKind(kind)
	return m, nil
}

// GetMentionStatus implements domain.MentionRepo.
func (p *Postgres) GetMentionStatus(ctx context.Context, sourceID string) (domain.MentionStatus, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var status string
	start := time.Now()
	err := p.pool.QueryRow(ctx, `SELECT status FROM mentions WHERE source_id=$1`, sourceID).Scan(&status)
	metrics.ObserveNetworkRequest("postgres", "mentions_get_status", "mentions", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", domain.ErrMentionNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get mention status: %w", err)
	}
	return domain.MentionStatus(status), nil
}

// SetMentionStatus implements domain.MentionRepo.
func (p *Postgres) SetMentionStatus(ctx context.Context, sourceID string, status domain.MentionStatus) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `UPDATE mentions SET status=$2, updated_at=now() WHERE source_id=$1`, sourceID, string(status))
	metrics.ObserveNetworkRequest("postgres", "mentions_set_status", "mentions", start, err)
	if err != nil {
		return fmt.Errorf("set mention status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrMentionNotFound
	}
	return nil
}

const placeColumns = `id, name, norm_name, lat, lon, type, city, region, mention_count, score, scored_at, active, created_at`

func scanPlace(row pgx.Row) (domain.Place, error) {
	var (
		pl    domain.Place
		ptype string
	)
	err := row.Scan(&pl.ID, &pl.Name, &pl.NormName, &pl.Coords.Lat, &pl.Coords.Lon, &ptype, &pl.City, &pl.Region, &pl.MentionCount, &pl.Score, &pl.ScoredAt, &pl.Active, &pl.CreatedAt)
	if err != nil {
		return domain.Place{}, err
	}
	pl.Type = domain.PlaceType(ptype)
	return pl, nil
}

// GetPlace implements domain.PlaceRepo.
func (p *Postgres) GetPlace(ctx context.Context, id uuid.UUID) (domain.Place, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	row := p.pool.QueryRow(ctx, `SELECT `+placeColumns+` FROM places WHERE id=$1`, id)
	pl, err := scanPlace(row)
	metrics.ObserveNetworkRequest("postgres", "places_get", "places", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Place{}, domain.ErrPlaceNotFound
	}
	if err != nil {
		return domain.Place{}, fmt.Errorf("get place: %w", err)
	}
	return pl, nil
}

// FindNearby implements domain.PlaceRepo with a degree-delta bounding box.
// Exact haversine filtering stays with the caller.
func (p *Postgres) FindNearby(ctx context.Context, c domain.Coordinates, radiusM float64) ([]domain.Place, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	latDelta := radiusM / 111320.0
	cosLat := math.Cos(c.Lat * math.Pi / 180)
	if cosLat < 0.01 {
		cosLat = 0.01
	}
	lonDelta := radiusM / (111320.0 * cosLat)

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT `+placeColumns+`
FROM places
WHERE lat BETWEEN $1 AND $2 AND lon BETWEEN $3 AND $4
ORDER BY mention_count DESC
`, c.Lat-latDelta, c.Lat+latDelta, c.Lon-lonDelta, c.Lon+lonDelta)
	metrics.ObserveNetworkRequest("postgres", "places_find_nearby", "places", start, err)
	if err != nil {
		return nil, fmt.Errorf("find nearby: %w", err)
	}
	defer rows.Close()
	return collectPlaces(rows)
}

// FindByCity implements domain.PlaceRepo.
func (p *Postgres) FindByCity(ctx context.Context, city string) ([]domain.Place, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT `+placeColumns+` FROM places WHERE lower(city)=lower($1) ORDER BY mention_count DESC
`, city)
	metrics.ObserveNetworkRequest("postgres", "places_find_by_city", "places", start, err)
	if err != nil {
		return nil, fmt.Errorf("find by city: %w", err)
	}
	defer rows.Close()
	return collectPlaces(rows)
}

// ListPlaces implements domain.PlaceRepo for the serving layer.
func (p *Postgres) ListPlaces(ctx context.Context, filter domain.PlaceFilter) ([]domain.Place, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT `+placeColumns+`
FROM places
WHERE active
  AND ($1 = '' OR lower(region) = lower($1))
  AND ($2 = '' OR lower(city) = lower($2))
  AND score >= $3
ORDER BY score DESC, mention_count DESC
LIMIT $4
`, filter.Region, filter.City, filter.MinScore, limit)
	metrics.ObserveNetworkRequest("postgres", "places_list", "places", start, err)
	if err != nil {
		return nil, fmt.Errorf("list places: %w", err)
	}
	defer rows.Close()
	return collectPlaces(rows)
}

func collectPlaces(rows pgx.Rows) ([]domain.Place, error) {
	var out []domain.Place
	for rows.Next() {
		pl, err := scanPlace(rows)
		if err != nil {
			return nil, fmt.Errorf("scan place: %w", err)
		}
		out = append(out, pl)
	}
	return out, rows.Err()
}

// ListMentionsForPlace implements domain.PlaceRepo.
func (p *Postgres) ListMentionsForPlace(ctx context.Context, placeID uuid.UUID) ([]domain.AttachedMention, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, mentionHistorySQL, placeID)
	metrics.ObserveNetworkRequest("postgres", "place_mentions_list", "place_mentions", start, err)
	if err != nil {
		return nil, fmt.Errorf("list mentions for place: %w", err)
	}
	defer rows.Close()
	return collectAttached(rows)
}

const mentionHistorySQL = `
SELECT m.source_id, m.channel, m.kind, m.body, m.author, m.posted_at, m.engagement, m.lang,
       pm.sentiment, pm.confidence, pm.attached_at
FROM place_mentions pm
JOIN mentions m ON m.source_id = pm.source_id
WHERE pm.place_id = $1
ORDER BY m.posted_at
`

func collectAttached(rows pgx.Rows) ([]domain.AttachedMention, error) {
	var out []domain.AttachedMention
	for rows.Next() {
		var (
			am   domain.AttachedMention
			kind string
		)
		err := rows.Scan(&am.Mention.SourceID, &am.Mention.Channel, &kind, &am.Mention.Text, &am.Mention.Author,
			&am.Mention.PostedAt, &am.Mention.Engagement, &am.Mention.Lang, &am.Sentiment, &am.Confidence, &am.AttachedAt)
		if err != nil {
			return nil, fmt.Errorf("scan attached mention: %w", err)
		}
		am.Mention.Kind = domain.ChannelKind(kind)
		out = append(out, am)
	}
	return out, rows.Err()
}

// LatestSnapshot implements domain.PlaceRepo.
func (p *Postgres) LatestSnapshot(ctx context.Context, placeID uuid.UUID) (domain.ScoreSnapshot, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var snap domain.ScoreSnapshot
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT place_id, score, frequency, sentiment, authenticity, recency, mention_count, computed_at
FROM score_snapshots WHERE place_id=$1 ORDER BY computed_at DESC, id DESC LIMIT 1
`, placeID).Scan(&snap.PlaceID, &snap.Score, &snap.Frequency, &snap.Sentiment, &snap.Authenticity, &snap.Recency, &snap.MentionCount, &snap.ComputedAt)
	metrics.ObserveNetworkRequest("postgres", "snapshots_latest", "score_snapshots", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ScoreSnapshot{}, domain.ErrPlaceNotFound
	}
	if err != nil {
		return domain.ScoreSnapshot{}, fmt.Errorf("latest snapshot: %w", err)
	}
	return snap, nil
}

// AttachAndRescore links a mention to its place and recomputes the score in
// one transaction. A per-place advisory lock serializes concurrent attaches;
// creation takes a lock on the normalized name and coarse grid cell so two
// workers cannot create the same place twice.
func (p *Postgres) AttachAndRescore(ctx context.Context, req domain.AttachRequest, rescore domain.RescoreFunc) (domain.Place, domain.ScoreSnapshot, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
	}

	start := time.Now()
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	metrics.ObserveNetworkRequest("postgres", "begin_tx", "places", start, err)
	if err != nil {
		return domain.Place{}, domain.ScoreSnapshot{}, fmt.Errorf("begin attach tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	place, err := p.lockPlace(ctx, tx, req)
	if err != nil {
		return domain.Place{}, domain.ScoreSnapshot{}, err
	}

	start = time.Now()
	_, err = tx.Exec(ctx, `
INSERT INTO place_mentions (place_id, source_id, sentiment, confidence, attached_at)
VALUES ($1, $2, $3, $4, now())
ON CONFLICT (place_id, source_id) DO NOTHING
`, place.ID, req.Mention.SourceID, req.Candidate.Sentiment, req.Candidate.Confidence)
	metrics.ObserveNetworkRequest("postgres", "place_mentions_insert", "place_mentions", start, err)
	if err != nil {
		return domain.Place{}, domain.ScoreSnapshot{}, fmt.Errorf("attach mention: %w", err)
	}

	start = time.Now()
	rows, err := tx.Query(ctx, mentionHistorySQL, place.ID)
	metrics.ObserveNetworkRequest("postgres", "place_mentions_history", "place_mentions", start, err)
	if err != nil {
		return domain.Place{}, domain.ScoreSnapshot{}, fmt.Errorf("load mention history: %w", err)
	}
	history, err := collectAttached(rows)
	rows.Close()
	if err != nil {
		return domain.Place{}, domain.ScoreSnapshot{}, err
	}

	rescoreStart := time.Now()
	snap := rescore(place, history, time.Now().UTC())
	metrics.RescoreSeconds.Observe(time.Since(rescoreStart).Seconds())
	snap.PlaceID = place.ID

	start = time.Now()
	_, err = tx.Exec(ctx, `
INSERT INTO score_snapshots (place_id, score, frequency, sentiment, authenticity, recency, mention_count, computed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`, snap.PlaceID, snap.Score, snap.Frequency, snap.Sentiment, snap.Authenticity, snap.Recency, snap.MentionCount, snap.ComputedAt)
	metrics.ObserveNetworkRequest("postgres", "snapshots_insert", "score_snapshots", start, err)
	if err != nil {
		return domain.Place{}, domain.ScoreSnapshot{}, fmt.Errorf("insert snapshot: %w", err)
	}

	active := true
	if p.deactivate != nil && p.deactivate(snap) {
		active = false
	}
	start = time.Now()
	_, err = tx.Exec(ctx, `
UPDATE places SET mention_count=$2, score=$3, scored_at=$4, active=$5 WHERE id=$1
`, place.ID, snap.MentionCount, snap.Score, snap.ComputedAt, active)
	metrics.ObserveNetworkRequest("postgres", "places_update_score", "places", start, err)
	if err != nil {
		return domain.Place{}, domain.ScoreSnapshot{}, fmt.Errorf("update place score: %w", err)
	}

	start = time.Now()
	err = tx.Commit(ctx)
	metrics.ObserveNetworkRequest("postgres", "commit", "places", start, err)
	if err != nil {
		return domain.Place{}, domain.ScoreSnapshot{}, fmt.Errorf("commit attach tx: %w", err)
	}

	place.MentionCount = snap.MentionCount
	place.Score = snap.Score
	place.ScoredAt = snap.ComputedAt
	place.Active = active
	metrics.PlaceScore.Observe(snap.Score)
	return place, snap, nil
}

// creationLockKey names the grid cell a new place lands in. Floor keeps the
// key aligned with the geocell column for negative coordinates, where integer
// truncation would pick the neighboring cell.
func creationLockKey(normName string, c domain.Coordinates) string {
	return fmt.Sprintf("place:%s:%d:%d", normName, int64(math.Floor(c.Lat*100)), int64(math.Floor(c.Lon*100)))
}

// lockPlace takes the advisory lock and returns the locked place, creating it
// first when the request carries a draft.
func (p *Postgres) lockPlace(ctx context.Context, tx pgx.Tx, req domain.AttachRequest) (domain.Place, error) {
	if req.NewPlace != nil {
		draft := *req.NewPlace
		key := creationLockKey(draft.NormName, draft.Coords)
		start := time.Now()
		_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key)
		metrics.ObserveNetworkRequest("postgres", "advisory_lock_create", "places", start, err)
		if err != nil {
			return domain.Place{}, fmt.Errorf("creation lock: %w", err)
		}

		if draft.ID == uuid.Nil {
			draft.ID = uuid.New()
		}
		start = time.Now()
		row := tx.QueryRow(ctx, `
INSERT INTO places (id, name, norm_name, lat, lon, type, city, region, mention_count, score, scored_at, active)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, 0, now(), true)
ON CONFLICT (norm_name, geocell) DO UPDATE SET name = places.name
RETURNING `+placeColumns, draft.ID, draft.Name, draft.NormName, draft.Coords.Lat, draft.Coords.Lon, string(draft.Type), draft.City, draft.Region)
		place, err := scanPlace(row)
		metrics.ObserveNetworkRequest("postgres", "places_insert", "places", start, err)
		if err != nil {
			return domain.Place{}, fmt.Errorf("create place: %w", err)
		}
		if place.ID == draft.ID {
			metrics.PlacesCreated.Inc()
		}
		return place, p.lockByID(ctx, tx, place.ID)
	}

	start := time.Now()
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1::text, 0))`, req.PlaceID)
	metrics.ObserveNetworkRequest("postgres", "advisory_lock_place", "places", start, err)
	if err != nil {
		return domain.Place{}, fmt.Errorf("place lock: %w", err)
	}
	start = time.Now()
	row := tx.QueryRow(ctx, `SELECT `+placeColumns+` FROM places WHERE id=$1`, req.PlaceID)
	place, err := scanPlace(row)
	metrics.ObserveNetworkRequest("postgres", "places_get_locked", "places", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Place{}, domain.ErrPlaceNotFound
	}
	if err != nil {
		return domain.Place{}, fmt.Errorf("load place: %w", err)
	}
	return place, nil
}

func (p *Postgres) lockByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	start := time.Now()
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1::text, 0))`, id)
	metrics.ObserveNetworkRequest("postgres", "advisory_lock_place", "places", start, err)
	if err != nil {
		return fmt.Errorf("place lock: %w", err)
	}
	return nil
}

// CreateReviewItem implements domain.ReviewRepo.
func (p *Postgres) CreateReviewItem(ctx context.Context, item domain.ReviewItem) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	candidate, err := json.Marshal(item.Candidate)
	if err != nil {
		return fmt.Errorf("marshal candidate: %w", err)
	}
	matches, err := json.Marshal(item.Matches)
	if err != nil {
		return fmt.Errorf("marshal matches: %w", err)
	}
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	start := time.Now()
	_, err = p.pool.Exec(ctx, `
INSERT INTO review_items (id, candidate, matches, reason, status)
VALUES ($1, $2, $3, $4, $5)
`, item.ID, candidate, matches, item.Reason, string(domain.ReviewPending))
	metrics.ObserveNetworkRequest("postgres", "review_insert", "review_items", start, err)
	if err != nil {
		return fmt.Errorf("create review item: %w", err)
	}
	return nil
}

// GetReviewItem implements domain.ReviewRepo.
func (p *Postgres) GetReviewItem(ctx context.Context, id uuid.UUID) (domain.ReviewItem, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var (
		item      domain.ReviewItem
		candidate []byte
		matches   []byte
		status    string
	)
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT id, candidate, matches, reason, status, created_at FROM review_items WHERE id=$1
`, id).Scan(&item.ID, &candidate, &matches, &item.Reason, &status, &item.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "review_get", "review_items", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ReviewItem{}, domain.ErrReviewNotFound
	}
	if err != nil {
		return domain.ReviewItem{}, fmt.Errorf("get review item: %w", err)
	}
	if err := json.Unmarshal(candidate, &item.Candidate); err != nil {
		return domain.ReviewItem{}, fmt.Errorf("decode candidate: %w", err)
	}
	if len(matches) > 0 {
		if err := json.Unmarshal(matches, &item.Matches); err != nil {
			return domain.ReviewItem{}, fmt.Errorf("decode matches: %w", err)
		}
	}
	item.Status = domain.ReviewStatus(status)
	return item, nil
}

// ListPendingReviews implements domain.ReviewRepo.
func (p *Postgres) ListPendingReviews(ctx context.Context, limit int) ([]domain.ReviewItem, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	if limit <= 0 || limit > 200 {
		limit = 50
	}
	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, candidate, matches, reason, status, created_at
FROM review_items WHERE status=$1 ORDER BY created_at LIMIT $2
`, string(domain.ReviewPending), limit)
	metrics.ObserveNetworkRequest("postgres", "review_list_pending", "review_items", start, err)
	if err != nil {
		return nil, fmt.Errorf("list pending reviews: %w", err)
	}
	defer rows.Close()

	var out []domain.ReviewItem
	for rows.Next() {
		var (
			item      domain.ReviewItem
			candidate []byte
			matches   []byte
			status    string
		)
		if err := rows.Scan(&item.ID, &candidate, &matches, &item.Reason, &status, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan review item: %w", err)
		}
		if err := json.Unmarshal(candidate, &item.Candidate); err != nil {
			return nil, fmt.Errorf("decode candidate: %w", err)
		}
		if len(matches) > 0 {
			if err := json.Unmarshal(matches, &item.Matches); err != nil {
				return nil, fmt.Errorf("decode matches: %w", err)
			}
		}
		item.Status = domain.ReviewStatus(status)
		out = append(out, item)
	}
	return out, rows.Err()
}

// SetReviewStatus implements domain.ReviewRepo. Only pending items can move.
func (p *Postgres) SetReviewStatus(ctx context.Context, id uuid.UUID, status domain.ReviewStatus) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
UPDATE review_items SET status=$2, resolved_at=now() WHERE id=$1 AND status=$3
`, id, string(status), string(domain.ReviewPending))
	metrics.ObserveNetworkRequest("postgres", "review_set_status", "review_items", start, err)
	if err != nil {
		return fmt.Errorf("set review status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, getErr := p.GetReviewItem(ctx, id); getErr != nil {
			return getErr
		}
		return domain.ErrReviewResolved
	}
	return nil
}

// Park implements domain.DeadLetterRepo.
func (p *Postgres) Park(ctx context.Context, dl domain.DeadLetter) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	mention, err := json.Marshal(dl.Mention)
	if err != nil {
		return fmt.Errorf("marshal mention: %w", err)
	}
	start := time.Now()
	_, err = p.pool.Exec(ctx, `
INSERT INTO dead_letters (source_id, mention, reason, attempts, parked_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (source_id) DO UPDATE SET mention=EXCLUDED.mention, reason=EXCLUDED.reason, attempts=EXCLUDED.attempts, parked_at=EXCLUDED.parked_at
`, dl.Mention.SourceID, mention, dl.Reason, dl.Attempts, dl.ParkedAt)
	metrics.ObserveNetworkRequest("postgres", "dead_letters_park", "dead_letters", start, err)
	if err != nil {
		return fmt.Errorf("park dead letter: %w", err)
	}
	metrics.DeadLettered.Inc()
	return nil
}

// ListDeadLetters implements domain.DeadLetterRepo.
func (p *Postgres) ListDeadLetters(ctx context.Context, limit int) ([]domain.DeadLetter, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	if limit <= 0 || limit > 200 {
		limit = 50
	}
	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT mention, reason, attempts, parked_at FROM dead_letters ORDER BY parked_at LIMIT $1
`, limit)
	metrics.ObserveNetworkRequest("postgres", "dead_letters_list", "dead_letters", start, err)
	if err != nil {
		return nil, fmt.Errorf("list dead letters: %w", err)
	}
	defer rows.Close()

	var out []domain.DeadLetter
	for rows.Next() {
		var (
			dl      domain.DeadLetter
			mention []byte
		)
		if err := rows.Scan(&mention, &dl.Reason, &dl.Attempts, &dl.ParkedAt); err != nil {
			return nil, fmt.Errorf("scan dead letter: %w", err)
		}
		if err := json.Unmarshal(mention, &dl.Mention); err != nil {
			return nil, fmt.Errorf("decode dead letter: %w", err)
		}
		out = append(out, dl)
	}
	return out, rows.Err()
}

// Take implements domain.DeadLetterRepo.
func (p *Postgres) Take(ctx context.Context, sourceID string) (domain.DeadLetter, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var (
		dl      domain.DeadLetter
		mention []byte
	)
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
DELETE FROM dead_letters WHERE source_id=$1 RETURNING mention, reason, attempts, parked_at
`, sourceID).Scan(&mention, &dl.Reason, &dl.Attempts, &dl.ParkedAt)
	metrics.ObserveNetworkRequest("postgres", "dead_letters_take", "dead_letters", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.DeadLetter{}, domain.ErrMentionNotFound
	}
	if err != nil {
		return domain.DeadLetter{}, fmt.Errorf("take dead letter: %w", err)
	}
	if err := json.Unmarshal(mention, &dl.Mention); err != nil {
		return domain.DeadLetter{}, fmt.Errorf("decode dead letter: %w", err)
	}
	return dl, nil
}

// SavePending implements domain.PendingRepo.
func (p *Postgres) SavePending(ctx context.Context, pc domain.PendingCandidate) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	candidate, err := json.Marshal(pc.Candidate)
	if err != nil {
		return fmt.Errorf("marshal candidate: %w", err)
	}
	start := time.Now()
	_, err = p.pool.Exec(ctx, `
INSERT INTO pending_candidates (norm_name, candidate, held_at) VALUES ($1, $2, $3)
`, pc.NormName, candidate, pc.HeldAt)
	metrics.ObserveNetworkRequest("postgres", "pending_save", "pending_candidates", start, err)
	if err != nil {
		return fmt.Errorf("save pending candidate: %w", err)
	}
	metrics.PendingCandidates.Inc()
	return nil
}

// TakePendingByName implements domain.PendingRepo.
func (p *Postgres) TakePendingByName(ctx context.Context, normName string) ([]domain.PendingCandidate, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
DELETE FROM pending_candidates WHERE norm_name=$1 RETURNING norm_name, candidate, held_at
`, normName)
	metrics.ObserveNetworkRequest("postgres", "pending_take", "pending_candidates", start, err)
	if err != nil {
		return nil, fmt.Errorf("take pending candidates: %w", err)
	}
	defer rows.Close()

	var out []domain.PendingCandidate
	for rows.Next() {
		var (
			pc        domain.PendingCandidate
			candidate []byte
		)
		if err := rows.Scan(&pc.NormName, &candidate, &pc.HeldAt); err != nil {
			return nil, fmt.Errorf("scan pending candidate: %w", err)
		}
		if err := json.Unmarshal(candidate, &pc.Candidate); err != nil {
			return nil, fmt.Errorf("decode pending candidate: %w", err)
		}
		out = append(out, pc)
	}
	return out, rows.Err()
}
