package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/Chedly25/newTrip/internal/adapters/alert"
	"github.com/Chedly25/newTrip/internal/adapters/extractor"
	"github.com/Chedly25/newTrip/internal/adapters/geocode"
	"github.com/Chedly25/newTrip/internal/adapters/repo"
	"github.com/Chedly25/newTrip/internal/adapters/resolver"
	"github.com/Chedly25/newTrip/internal/adapters/scorer"
	"github.com/Chedly25/newTrip/internal/domain"
	"github.com/Chedly25/newTrip/internal/infra/cache"
	"github.com/Chedly25/newTrip/internal/infra/config"
	"github.com/Chedly25/newTrip/internal/infra/db"
	applog "github.com/Chedly25/newTrip/internal/infra/log"
	"github.com/Chedly25/newTrip/internal/infra/metrics"
	"github.com/Chedly25/newTrip/internal/infra/openai"
	"github.com/Chedly25/newTrip/internal/infra/queue"
	"github.com/Chedly25/newTrip/internal/usecase/pipeline"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv).With().Str("service", "pipeline").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.MustRegister(prometheus.DefaultRegisterer)
	go metrics.StartServer(ctx, logger, cfg.MetricsAddr)

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection failed")
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	sc := scorer.New(scorer.Weights{
		Frequency:           cfg.Score.FrequencyWeight,
		Sentiment:           cfg.Score.SentimentWeight,
		Authenticity:        cfg.Score.AuthenticityWeight,
		Recency:             cfg.Score.RecencyWeight,
		FrequencySaturation: cfg.Score.FrequencySaturation,
		DecayHalfLife:       time.Duration(cfg.Score.DecayHalfLifeDays * 24 * float64(time.Hour)),
		LocalWeight:         cfg.Score.LocalWeight,
		MainstreamWeight:    cfg.Score.MainstreamWeight,
		TouristyCeiling:     cfg.Score.TouristyCeiling,
		DeactivateFloor:     cfg.Score.DeactivateFloor,
	})
	store := repo.NewPostgres(pool, sc.ShouldDeactivate)

	geocoder := geocode.New(cfg.Geocoder.BaseURL, cfg.Geocoder.Timeout)
	matcher := resolver.New(store, geocoder, resolver.Options{
		NameWeight:         cfg.Resolver.NameWeight,
		ProximityWeight:    cfg.Resolver.ProximityWeight,
		AcceptThreshold:    cfg.Resolver.AcceptThreshold,
		AmbiguousThreshold: cfg.Resolver.AmbiguousThreshold,
		CollisionRadiusM:   cfg.Resolver.CollisionRadiusM,
		SearchRadiusM:      cfg.Resolver.SearchRadiusM,
		Region: resolver.Region{
			MinLat: cfg.Region.MinLat,
			MaxLat: cfg.Region.MaxLat,
			MinLon: cfg.Region.MinLon,
			MaxLon: cfg.Region.MaxLon,
		},
	})

	var oracle domain.Extractor
	if cfg.OpenAI.APIKey != "" {
		client := openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Timeout)
		oracle = extractor.NewOpenAI(client, cfg.OpenAI.Model, cfg.OpenAI.Timeout, cfg.Extraction.MaxTextRunes)
	} else {
		logger.Warn().Msg("no OpenAI key configured, using the heuristic extractor")
		oracle = extractor.NewHeuristic()
	}

	alerter, err := alert.NewTelegram(cfg.Telegram.Token, cfg.Telegram.OpsChatID, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("telegram alerter init failed")
	}

	mentionQueue, err := buildMentionQueue(cfg, redisClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("mention queue init failed")
	}

	svc := pipeline.NewService(pipeline.Deps{
		Mentions:    store,
		Places:      store,
		Reviews:     store,
		DeadLetters: store,
		Pending:     store,
		Cache:       cache.NewRedisExtractionCache(redisClient),
		Extractor:   oracle,
		Resolver:    matcher,
		Scorer:      sc,
		ReviewQueue: queue.NewRedisReviewQueue(redisClient, cfg.Queues.Review),
		Alerter:     alerter,
		RegionOf:    geocoder.RegionOf,
	}, pipeline.Config{
		ConfidenceFloor: cfg.Extraction.ConfidenceFloor,
		CacheTTL:        cfg.Extraction.CacheTTL,
		MaxInflight:     cfg.Extraction.MaxInflight,
		MaxAttempts:     cfg.Extraction.MaxAttempts,
		AttachRetries:   cfg.Pipeline.AttachRetries,
	}, logger)

	logger.Info().Int("workers", cfg.Pipeline.Workers).Msg("pipeline started")
	svc.Run(ctx, mentionQueue, cfg.Pipeline.Workers)
	logger.Info().Msg("pipeline stopped")
}

func buildMentionQueue(cfg config.AppConfig, redisClient *redis.Client) (domain.MentionQueue, error) {
	if cfg.RabbitURL != "" {
		return queue.NewRabbitMentionQueue(cfg.RabbitURL, cfg.Queues.Mentions)
	}
	return queue.NewRedisMentionQueue(redisClient, cfg.Queues.Mentions), nil
}
