package oracle

import (
	"context"
	"fmt"
	"sync"

	"github.com/outcomelabs/marketd/internal/domain"
)

// StaticSource serves fixed observations from memory. It doubles as a
// manually-driven height source, which makes it useful for development and
// operator-controlled deployments where an external feed does not exist.
type StaticSource struct {
	mu     sync.RWMutex
	feeds  map[string]int64
	height uint64
}

// NewStaticSource creates a StaticSource with the given feed values and
// starting height.
func NewStaticSource(feeds map[string]int64, height uint64) *StaticSource {
	copied := make(map[string]int64, len(feeds))
	for k, v := range feeds {
		copied[k] = v
	}
	return &StaticSource{feeds: copied, height: height}
}

// GetObservation returns the configured value for a feed at the current
// height with full confidence.
func (s *StaticSource) GetObservation(_ context.Context, feedID string) (domain.Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.feeds[feedID]
	if !ok {
		return domain.Observation{}, fmt.Errorf("static feed %s: %w", feedID, domain.ErrNotFound)
	}
	return domain.Observation{
		FeedID:     feedID,
		Value:      value,
		Confidence: 1.0,
		AsOf:       s.height,
	}, nil
}

// Height returns the current manually-set height.
func (s *StaticSource) Height(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.height, nil
}

// SetHeight advances the clock. Heights never move backwards; a lower value
// is ignored.
func (s *StaticSource) SetHeight(h uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h > s.height {
		s.height = h
	}
}

// SetFeed sets or overwrites a feed value.
func (s *StaticSource) SetFeed(feedID string, value int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feeds[feedID] = value
}

var (
	_ domain.ObservationSource = (*StaticSource)(nil)
	_ domain.HeightSource      = (*StaticSource)(nil)
)
