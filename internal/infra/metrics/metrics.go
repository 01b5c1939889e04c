package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	MentionsProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mentions_processed_total",
		Help: "Mentions processed by the pipeline, by outcome",
	}, []string{"outcome"})

	ExtractionCacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "extraction_cache_hits_total",
		Help: "Extraction cache hits",
	})
	ExtractionCacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "extraction_cache_misses_total",
		Help: "Extraction cache misses",
	})
	ExtractionRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "extraction_retries_total",
		Help: "Retried extraction calls after transient failures",
	})

	PlacesCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "places_created_total",
		Help: "Canonical places created by the resolver",
	})
	AmbiguousCandidates = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ambiguous_candidates_total",
		Help: "Candidates routed to manual review",
	})
	PendingCandidates = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pending_candidates_total",
		Help: "Candidates held in the location-pending state",
	})
	OutOfRegion = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "out_of_region_total",
		Help: "Place creations rejected by the bounding region",
	})
	DeadLettered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dead_letter_total",
		Help: "Mentions parked in the dead-letter state",
	})

	PlaceScore = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "place_score",
		Help:    "Distribution of computed hidden-gem scores",
		Buckets: prometheus.LinearBuckets(0, 10, 11),
	})
	RescoreSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "rescore_seconds",
		Help:    "Duration of the attach and rescore transaction",
		Buckets: prometheus.DefBuckets,
	})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Duration of network requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Count of network requests",
	}, []string{"component", "operation", "target", "status"})

	LLMGenerationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "llm_generation_duration_seconds",
		Help:    "Duration of LLM generations",
		Buckets: prometheus.DefBuckets,
	}, []string{"model"})

	LLMTokensTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_tokens_total",
		Help: "Tokens consumed by the LLM",
	}, []string{"model", "type"})
)

// MustRegister registers all metrics.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		MentionsProcessed,
		ExtractionCacheHits,
		ExtractionCacheMisses,
		ExtractionRetries,
		PlacesCreated,
		AmbiguousCandidates,
		PendingCandidates,
		OutOfRegion,
		DeadLettered,
		PlaceScore,
		RescoreSeconds,
		NetworkRequestDuration,
		NetworkRequestTotal,
		LLMGenerationDuration,
		LLMTokensTotal,
	)
}

// StartServer runs an HTTP server exposing /metrics.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownTimeout); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: graceful shutdown failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: server stopped")
		}
	}()
}

// ObserveNetworkRequest records the duration and status of a network call.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}

// ObserveLLMGeneration records LLM generation duration and token usage.
func ObserveLLMGeneration(model string, duration time.Duration, promptTokens, completionTokens, totalTokens int) {
	if model == "" {
		model = "unknown"
	}
	LLMGenerationDuration.WithLabelValues(model).Observe(duration.Seconds())
	if promptTokens > 0 {
		LLMTokensTotal.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		LLMTokensTotal.WithLabelValues(model, "completion").Add(float64(completionTokens))
	}
	if totalTokens <= 0 {
		totalTokens = promptTokens + completionTokens
	}
	if totalTokens > 0 {
		LLMTokensTotal.WithLabelValues(model, "total").Add(float64(totalTokens))
	}
}
