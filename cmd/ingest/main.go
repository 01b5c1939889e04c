package main

import (
	"context"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Chedly25/newTrip/internal/adapters/sources"
	"github.com/Chedly25/newTrip/internal/domain"
	"github.com/Chedly25/newTrip/internal/infra/config"
	applog "github.com/Chedly25/newTrip/internal/infra/log"
	"github.com/Chedly25/newTrip/internal/infra/metrics"
	"github.com/Chedly25/newTrip/internal/infra/queue"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv).With().Str("service", "ingest").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.MustRegister(prometheus.DefaultRegisterer)
	go metrics.StartServer(ctx, logger, cfg.MetricsAddr)

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	mentionQueue, err := buildMentionQueue(cfg, redisClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("mention queue init failed")
	}

	reddit := sources.NewReddit(cfg.Ingest.UserAgent,
		sources.KindMap(cfg.Ingest.LocalChannels, cfg.Ingest.MainstreamChannels))
	subreddits := splitList(cfg.Ingest.Subreddits)
	if len(subreddits) == 0 {
		logger.Fatal().Msg("no subreddits configured")
	}

	logger.Info().Strs("subreddits", subreddits).Dur("interval", cfg.Ingest.Interval).Msg("ingest started")

	// First sweep immediately, then on the ticker.
	sweep(ctx, logger, reddit, mentionQueue, subreddits, cfg.Ingest.BatchLimit)
	ticker := time.NewTicker(cfg.Ingest.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("ingest stopped")
			return
		case <-ticker.C:
			sweep(ctx, logger, reddit, mentionQueue, subreddits, cfg.Ingest.BatchLimit)
		}
	}
}

func sweep(ctx context.Context, logger zerolog.Logger, reddit *sources.Reddit, q domain.MentionQueue, subreddits []string, limit int) {
	for _, subreddit := range subreddits {
		mentions, err := reddit.Fetch(ctx, subreddit, limit)
		if err != nil {
			logger.Error().Err(err).Str("subreddit", subreddit).Msg("fetch failed")
			continue
		}
		enqueued := 0
		for _, m := range mentions {
			job := domain.MentionJob{
				ID:         uuid.NewString(),
				Mention:    m,
				EnqueuedAt: time.Now().UTC(),
			}
			if err := q.Enqueue(ctx, job); err != nil {
				logger.Error().Err(err).Str("source_id", m.SourceID).Msg("enqueue failed")
				continue
			}
			enqueued++
		}
		logger.Info().Str("subreddit", subreddit).Int("fetched", len(mentions)).Int("enqueued", enqueued).Msg("sweep done")
	}
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func buildMentionQueue(cfg config.AppConfig, redisClient *redis.Client) (domain.MentionQueue, error) {
	if cfg.RabbitURL != "" {
		return queue.NewRabbitMentionQueue(cfg.RabbitURL, cfg.Queues.Mentions)
	}
	return queue.NewRedisMentionQueue(redisClient, cfg.Queues.Mentions), nil
}
