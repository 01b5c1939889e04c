package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/Chedly25/newTrip/internal/adapters/geocode"
	"github.com/Chedly25/newTrip/internal/adapters/repo"
	"github.com/Chedly25/newTrip/internal/adapters/scorer"
	"github.com/Chedly25/newTrip/internal/api"
	"github.com/Chedly25/newTrip/internal/domain"
	"github.com/Chedly25/newTrip/internal/infra/config"
	"github.com/Chedly25/newTrip/internal/infra/db"
	apphttp "github.com/Chedly25/newTrip/internal/infra/http"
	applog "github.com/Chedly25/newTrip/internal/infra/log"
	"github.com/Chedly25/newTrip/internal/infra/metrics"
	"github.com/Chedly25/newTrip/internal/infra/queue"
	"github.com/Chedly25/newTrip/internal/usecase/review"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv).With().Str("service", "api").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.MustRegister(prometheus.DefaultRegisterer)

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

	mentionQueue, err := buildMentionQueue(cfg, redisClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("mention queue init failed")
	}

	reviewSvc := review.NewService(store, store, store, sc, geocoder, geocoder.RegionOf, logger)
	handler := api.NewHandler(store, reviewSvc, store, mentionQueue, logger)

	server := apphttp.NewServer(logger)
	handler.Mount(server.Router)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("server shutdown failed")
		}
	}()

	if err := server.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil {
		logger.Fatal().Err(err).Msg("http server failed")
	}
	logger.Info().Msg("api stopped")
}

func buildMentionQueue(cfg config.AppConfig, redisClient *redis.Client) (domain.MentionQueue, error) {
	if cfg.RabbitURL != "" {
		return queue.NewRabbitMentionQueue(cfg.RabbitURL, cfg.Queues.Mentions)
	}
	return queue.NewRedisMentionQueue(redisClient, cfg.Queues.Mentions), nil
}
