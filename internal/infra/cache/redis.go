package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Chedly25/newTrip/internal/domain"
)

// RedisExtractionCache implements domain.ExtractionCache on Redis.
type RedisExtractionCache struct {
	client *redis.Client
	prefix string
}

var _ domain.ExtractionCache = (*RedisExtractionCache)(nil)

// NewRedisExtractionCache creates the cache.
func NewRedisExtractionCache(client *redis.Client) *RedisExtractionCache {
	return &RedisExtractionCache{client: client, prefix: "extract:"}
}

// Get returns the memoized candidate list for a content hash.
func (c *RedisExtractionCache) Get(ctx context.Context, hash string) ([]domain.PlaceCandidate, bool, error) {
	raw, err := c.client.Get(ctx, c.prefix+hash).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}
	var cands []domain.PlaceCandidate
	if err := json.Unmarshal(raw, &cands); err != nil {
		// A corrupt entry behaves like a miss so extraction runs again.
		return nil, false, nil
	}
	return cands, true, nil
}

// Set stores a candidate list under a content hash with a TTL.
func (c *RedisExtractionCache) Set(ctx context.Context, hash string, cands []domain.PlaceCandidate, ttl time.Duration) error {
	raw, err := json.Marshal(cands)
	if err != nil {
		return fmt.Errorf("cache marshal: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+hash, raw, ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}
