package domain

import "context"

// Observation is a single authenticated oracle reading for a feed.
type Observation struct {
	FeedID     string  `json:"feed_id"`
	Value      int64   `json:"value"`
	Confidence float64 `json:"confidence"` // 0..1
	AsOf       uint64  `json:"as_of"`      // height the reading was taken at
}

// ObservationSource fetches the latest observation for a feed. Failures at
// the resolve boundary surface as ErrExternalCall.
type ObservationSource interface {
	GetObservation(ctx context.Context, feedID string) (Observation, error)
}

// HeightSource reports the current value of the external monotonic clock
// that markets resolve against.
type HeightSource interface {
	Height(ctx context.Context) (uint64, error)
}
