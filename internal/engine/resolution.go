package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/outcomelabs/marketd/internal/domain"
)

// Resolve finalizes a market outcome from an observed value submitted at
// atHeight. The observation is accepted only within the resolution window
// [resolution_height, resolution_height + window - 1]. The transition is
// permanent: a resolved market can never be traded, re-resolved, or
// cancelled.
func (e *Engine) Resolve(ctx context.Context, marketID uint64, observed int64, atHeight uint64) (domain.Market, error) {
	var market domain.Market
	err := e.store.Update(ctx, func(tx domain.Tx) error {
		m, err := tx.GetMarket(ctx, marketID)
		if err != nil {
			return err
		}
		if !m.Open() {
			return fmt.Errorf("%w: market %d already %s", domain.ErrState, marketID, m.Status())
		}
		if atHeight < m.ResolutionHeight {
			return fmt.Errorf("%w: height %d before resolution height %d",
				domain.ErrTooEarly, atHeight, m.ResolutionHeight)
		}
		lastValid := m.ResolutionHeight + e.params.ResolutionWindow - 1
		if atHeight > lastValid {
			return fmt.Errorf("%w: height %d past resolution window ending at %d",
				domain.ErrTooLate, atHeight, lastValid)
		}

		outcome := m.Comparator.Eval(observed, m.Threshold)
		m.Resolved = true
		m.Outcome = &outcome
		m.UpdatedAt = time.Now().UTC()
		market = m
		return tx.PutMarket(ctx, m)
	})
	if err != nil {
		return domain.Market{}, fmt.Errorf("engine: resolve: %w", err)
	}

	e.logger.InfoContext(ctx, "market resolved",
		slog.Uint64("market_id", marketID),
		slog.Int64("observed", observed),
		slog.Bool("outcome", *market.Outcome),
	)
	return market, nil
}

// ResolveFromOracle fetches the market's oracle feed, verifies the
// observation is fresh and confident enough, and resolves against it. A
// failed fetch or a rejected observation surfaces as ErrExternalCall and
// leaves the market untouched; the caller may retry with fresh data.
func (e *Engine) ResolveFromOracle(ctx context.Context, marketID uint64) (domain.Market, domain.Observation, error) {
	if e.oracle == nil {
		return domain.Market{}, domain.Observation{}, fmt.Errorf("engine: resolve: %w: no observation source configured", domain.ErrExternalCall)
	}

	var feedID string
	err := e.store.View(ctx, func(tx domain.Tx) error {
		m, err := tx.GetMarket(ctx, marketID)
		if err != nil {
			return err
		}
		feedID = m.OracleFeedID
		return nil
	})
	if err != nil {
		return domain.Market{}, domain.Observation{}, fmt.Errorf("engine: resolve: %w", err)
	}

	height, err := e.currentHeight(ctx)
	if err != nil {
		return domain.Market{}, domain.Observation{}, fmt.Errorf("engine: resolve: %w", err)
	}

	obs, err := e.oracle.GetObservation(ctx, feedID)
	if err != nil {
		return domain.Market{}, domain.Observation{}, fmt.Errorf("engine: resolve: %w: feed %s: %v", domain.ErrExternalCall, feedID, err)
	}
	if obs.Confidence < e.params.MinConfidence {
		return domain.Market{}, domain.Observation{}, fmt.Errorf("engine: resolve: %w: feed %s confidence %.2f below %.2f",
			domain.ErrExternalCall, feedID, obs.Confidence, e.params.MinConfidence)
	}
	if obs.AsOf < height && height-obs.AsOf > e.params.MaxObservationLag {
		return domain.Market{}, domain.Observation{}, fmt.Errorf("engine: resolve: %w: feed %s observation at height %d is stale (current %d)",
			domain.ErrExternalCall, feedID, obs.AsOf, height)
	}

	m, err := e.Resolve(ctx, marketID, obs.Value, height)
	if err != nil {
		return domain.Market{}, domain.Observation{}, err
	}
	return m, obs, nil
}
