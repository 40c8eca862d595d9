package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/outcomelabs/marketd/internal/domain"
)

// ObservationCache implements domain.ObservationCache. Entries expire after
// a short TTL so resolve attempts never act on observations older than the
// configured window.
type ObservationCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewObservationCache creates an ObservationCache with the given entry TTL.
func NewObservationCache(c *Client, ttl time.Duration) *ObservationCache {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &ObservationCache{rdb: c.Underlying(), ttl: ttl}
}

func observationKey(feedID string) string {
	return "observation:" + feedID
}

// Set stores an observation keyed by its feed id.
func (oc *ObservationCache) Set(ctx context.Context, obs domain.Observation) error {
	data, err := json.Marshal(obs)
	if err != nil {
		return fmt.Errorf("redis: marshal observation %s: %w", obs.FeedID, err)
	}
	if err := oc.rdb.Set(ctx, observationKey(obs.FeedID), data, oc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set observation %s: %w", obs.FeedID, err)
	}
	return nil
}

// Get retrieves the cached observation for a feed. It returns
// domain.ErrNotFound on a miss.
func (oc *ObservationCache) Get(ctx context.Context, feedID string) (domain.Observation, error) {
	data, err := oc.rdb.Get(ctx, observationKey(feedID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Observation{}, domain.ErrNotFound
		}
		return domain.Observation{}, fmt.Errorf("redis: get observation %s: %w", feedID, err)
	}

	var obs domain.Observation
	if err := json.Unmarshal(data, &obs); err != nil {
		return domain.Observation{}, fmt.Errorf("redis: unmarshal observation %s: %w", feedID, err)
	}
	return obs, nil
}

var _ domain.ObservationCache = (*ObservationCache)(nil)
