package oracle

import (
	"context"
	"errors"

	"github.com/outcomelabs/marketd/internal/domain"
)

// CachedSource fronts an ObservationSource with an ObservationCache so
// repeated resolve attempts within the cache TTL do not refetch the feed.
// Cache failures fall through to the inner source.
type CachedSource struct {
	inner domain.ObservationSource
	cache domain.ObservationCache
}

// NewCachedSource wraps inner with the given cache.
func NewCachedSource(inner domain.ObservationSource, cache domain.ObservationCache) *CachedSource {
	return &CachedSource{inner: inner, cache: cache}
}

// GetObservation returns the cached observation when present, otherwise
// fetches from the inner source and populates the cache.
func (s *CachedSource) GetObservation(ctx context.Context, feedID string) (domain.Observation, error) {
	obs, err := s.cache.Get(ctx, feedID)
	if err == nil {
		return obs, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		// A broken cache must not block resolution.
		obs, innerErr := s.inner.GetObservation(ctx, feedID)
		if innerErr != nil {
			return domain.Observation{}, innerErr
		}
		return obs, nil
	}

	obs, err = s.inner.GetObservation(ctx, feedID)
	if err != nil {
		return domain.Observation{}, err
	}
	_ = s.cache.Set(ctx, obs)
	return obs, nil
}

var _ domain.ObservationSource = (*CachedSource)(nil)
