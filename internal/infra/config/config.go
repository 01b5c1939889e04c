package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig describes the configuration of all services.
type AppConfig struct {
	AppEnv      string `envconfig:"APP_ENV" default:"dev"`
	Port        int    `envconfig:"PORT" default:"8080"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`

	PGDSN     string `envconfig:"PG_DSN"`
	RedisAddr string `envconfig:"REDIS_ADDR"`
	RabbitURL string `envconfig:"RABBITMQ_URL"`

	Queues struct {
		Mentions string `envconfig:"MENTION_QUEUE_KEY" default:"mention_jobs"`
		Review   string `envconfig:"REVIEW_QUEUE_KEY" default:"review_items"`
	} `envconfig:""`

	OpenAI struct {
		APIKey  string        `envconfig:"OPENAI_API_KEY"`
		BaseURL string        `envconfig:"OPENAI_BASE_URL"`
		Model   string        `envconfig:"OPENAI_MODEL" default:"gpt-4.1-mini"`
		Timeout time.Duration `envconfig:"OPENAI_TIMEOUT" default:"30s"`
	} `envconfig:""`

	Extraction struct {
		MaxTextRunes    int           `envconfig:"EXTRACTION_MAX_TEXT_RUNES" default:"2000"`
		ConfidenceFloor float64       `envconfig:"EXTRACTION_CONFIDENCE_FLOOR" default:"0.35"`
		CacheTTL        time.Duration `envconfig:"EXTRACTION_CACHE_TTL" default:"336h"`
		MaxInflight     int           `envconfig:"EXTRACTION_MAX_INFLIGHT" default:"4"`
		MaxAttempts     int           `envconfig:"EXTRACTION_MAX_ATTEMPTS" default:"5"`
	} `envconfig:""`

	Resolver struct {
		NameWeight         float64 `envconfig:"RESOLVER_NAME_WEIGHT" default:"0.6"`
		ProximityWeight    float64 `envconfig:"RESOLVER_PROXIMITY_WEIGHT" default:"0.4"`
		AcceptThreshold    float64 `envconfig:"RESOLVER_ACCEPT_THRESHOLD" default:"0.82"`
		AmbiguousThreshold float64 `envconfig:"RESOLVER_AMBIGUOUS_THRESHOLD" default:"0.62"`
		CollisionRadiusM   float64 `envconfig:"RESOLVER_COLLISION_RADIUS_M" default:"150"`
		SearchRadiusM      float64 `envconfig:"RESOLVER_SEARCH_RADIUS_M" default:"500"`
	} `envconfig:""`

	// Region bounds mainland France plus Corsica.
	Region struct {
		MinLat float64 `envconfig:"REGION_MIN_LAT" default:"41.0"`
		MaxLat float64 `envconfig:"REGION_MAX_LAT" default:"51.5"`
		MinLon float64 `envconfig:"REGION_MIN_LON" default:"-5.5"`
		MaxLon float64 `envconfig:"REGION_MAX_LON" default:"9.9"`
	} `envconfig:""`

	Score struct {
		FrequencyWeight     float64 `envconfig:"SCORE_FREQUENCY_WEIGHT" default:"0.25"`
		SentimentWeight     float64 `envconfig:"SCORE_SENTIMENT_WEIGHT" default:"0.25"`
		AuthenticityWeight  float64 `envconfig:"SCORE_AUTHENTICITY_WEIGHT" default:"0.35"`
		RecencyWeight       float64 `envconfig:"SCORE_RECENCY_WEIGHT" default:"0.15"`
		FrequencySaturation int     `envconfig:"SCORE_FREQUENCY_SATURATION" default:"50"`
		DecayHalfLifeDays   float64 `envconfig:"SCORE_DECAY_HALF_LIFE_DAYS" default:"90"`
		LocalWeight         float64 `envconfig:"SCORE_LOCAL_CHANNEL_WEIGHT" default:"1.0"`
		MainstreamWeight    float64 `envconfig:"SCORE_MAINSTREAM_CHANNEL_WEIGHT" default:"0.25"`
		TouristyCeiling     float64 `envconfig:"SCORE_TOURISTY_CEILING" default:"55"`
		DeactivateFloor     float64 `envconfig:"SCORE_DEACTIVATE_FLOOR" default:"20"`
	} `envconfig:""`

	Pipeline struct {
		Workers       int `envconfig:"PIPELINE_WORKERS" default:"8"`
		AttachRetries int `envconfig:"PIPELINE_ATTACH_RETRIES" default:"3"`
	} `envconfig:""`

	Geocoder struct {
		BaseURL string        `envconfig:"GEOCODER_BASE_URL" default:"https://nominatim.openstreetmap.org"`
		Timeout time.Duration `envconfig:"GEOCODER_TIMEOUT" default:"10s"`
	} `envconfig:""`

	Ingest struct {
		Subreddits string        `envconfig:"INGEST_SUBREDDITS" default:"france,paris,lyon,annecy"`
		// LocalChannels and MainstreamChannels tag sources for the
		// authenticity signal; untagged channels stay unknown.
		LocalChannels      string        `envconfig:"INGEST_LOCAL_CHANNELS" default:"annecy,lyon"`
		MainstreamChannels string        `envconfig:"INGEST_MAINSTREAM_CHANNELS" default:"france,paris"`
		UserAgent          string        `envconfig:"INGEST_USER_AGENT" default:"newtrip-ingest/1.0"`
		Interval           time.Duration `envconfig:"INGEST_INTERVAL" default:"15m"`
		BatchLimit         int           `envconfig:"INGEST_BATCH_LIMIT" default:"50"`
	} `envconfig:""`

	Telegram struct {
		Token     string `envconfig:"TG_BOT_TOKEN"`
		OpsChatID int64  `envconfig:"TG_OPS_CHAT_ID"`
	} `envconfig:""`
}

// Load reads the config from the environment.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}
