// Package engine implements the accounting core of the prediction market:
// market registry, complete-set issuance, constant-product AMM pricing,
// the share ledger, resolution, and proportional redemption/refund.
//
// Every public operation runs inside a single store transaction and either
// applies all of its state changes or none of them. The engine performs no
// locking of its own; the store serializes writers.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/outcomelabs/marketd/internal/domain"
)

// Params holds the operating parameters of the engine.
type Params struct {
	// Owner may always create markets; Creators is the additional allow-list.
	Owner    string
	Creators []string

	// FeeRecipient receives AMM share fees and flat collateral taxes.
	FeeRecipient string

	// FlatTax is an optional fixed collateral amount skimmed on the
	// buy/sell composite operations. Zero disables it.
	FlatTax uint64

	// ResolutionWindow is the number of height steps starting at the
	// resolution height during which an outcome may be finalized.
	ResolutionWindow uint64

	// CancelTimeout is the number of height steps past the resolution
	// window after which anyone may cancel an unresolved market.
	CancelTimeout uint64

	// MinConfidence rejects oracle observations below this confidence.
	MinConfidence float64

	// MaxObservationLag rejects observations taken more than this many
	// height steps before the current height.
	MaxObservationLag uint64
}

// DefaultParams returns the engine parameters used when config omits them.
func DefaultParams() Params {
	return Params{
		FeeRecipient:      "treasury",
		ResolutionWindow:  2,
		CancelTimeout:     100,
		MinConfidence:     0.5,
		MaxObservationLag: 10,
	}
}

// Engine executes market operations against a transactional store.
type Engine struct {
	store    domain.Store
	oracle   domain.ObservationSource
	heights  domain.HeightSource
	params   Params
	creators map[string]bool
	logger   *slog.Logger
}

// New creates an Engine. The oracle may be nil if resolution always goes
// through Resolve with an explicit observation.
func New(store domain.Store, oracle domain.ObservationSource, heights domain.HeightSource, params Params, logger *slog.Logger) *Engine {
	creators := make(map[string]bool, len(params.Creators))
	for _, c := range params.Creators {
		creators[c] = true
	}
	return &Engine{
		store:    store,
		oracle:   oracle,
		heights:  heights,
		params:   params,
		creators: creators,
		logger:   logger.With(slog.String("component", "engine")),
	}
}

// Params returns a copy of the engine's operating parameters.
func (e *Engine) Params() Params {
	return e.params
}

// currentHeight reads the external clock, mapping failures to ErrExternalCall.
func (e *Engine) currentHeight(ctx context.Context) (uint64, error) {
	h, err := e.heights.Height(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: height source: %v", domain.ErrExternalCall, err)
	}
	return h, nil
}

// openMarket loads a market and verifies it still accepts trading.
func openMarket(ctx context.Context, tx domain.Tx, id uint64) (domain.Market, error) {
	m, err := tx.GetMarket(ctx, id)
	if err != nil {
		return domain.Market{}, err
	}
	if !m.Open() {
		return domain.Market{}, fmt.Errorf("%w: market %d is %s", domain.ErrState, id, m.Status())
	}
	return m, nil
}
