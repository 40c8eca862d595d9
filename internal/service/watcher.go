package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/outcomelabs/marketd/internal/domain"
)

// watcherPageSize bounds how many open markets each tick examines per page.
const watcherPageSize = 200

// SettlementWatcher polls the height source and drives due markets to a
// terminal state: markets inside their resolution window are resolved from
// their oracle feed, and markets past the cancel deadline are cancelled.
// Every attempt goes through the engine, which re-validates heights and
// observation quality, so a rejected attempt is simply retried next tick.
type SettlementWatcher struct {
	settlement *SettlementService
	markets    *MarketService
	heights    domain.HeightSource
	window     uint64
	timeout    uint64
	interval   time.Duration
	logger     *slog.Logger
}

// NewSettlementWatcher creates a SettlementWatcher. window and timeout must
// match the engine's resolution window and cancel timeout.
func NewSettlementWatcher(
	settlement *SettlementService,
	markets *MarketService,
	heights domain.HeightSource,
	window, timeout uint64,
	interval time.Duration,
	logger *slog.Logger,
) *SettlementWatcher {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &SettlementWatcher{
		settlement: settlement,
		markets:    markets,
		heights:    heights,
		window:     window,
		timeout:    timeout,
		interval:   interval,
		logger:     logger.With(slog.String("component", "settlement_watcher")),
	}
}

// Run ticks until the context is cancelled. Each tick is best effort; a
// failing height source or store read is logged and retried.
func (w *SettlementWatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Sweep(ctx); err != nil {
				w.logger.WarnContext(ctx, "sweep failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Sweep runs one pass over all open markets at the current height.
func (w *SettlementWatcher) Sweep(ctx context.Context) error {
	height, err := w.heights.Height(ctx)
	if err != nil {
		return err
	}

	for offset := 0; ; offset += watcherPageSize {
		page, err := w.markets.ListMarkets(ctx, domain.ListOpts{
			Status: domain.MarketStatusOpen,
			Limit:  watcherPageSize,
			Offset: offset,
		})
		if err != nil {
			return err
		}

		for _, m := range page {
			w.settle(ctx, m, height)
		}

		if len(page) < watcherPageSize {
			return nil
		}
	}
}

// settle attempts the appropriate terminal transition for one market.
func (w *SettlementWatcher) settle(ctx context.Context, m domain.Market, height uint64) {
	if height < m.ResolutionHeight {
		return
	}

	deadline := m.ResolutionHeight + w.window + w.timeout

	if height >= deadline {
		if _, err := w.settlement.Cancel(ctx, m.ID); err != nil && !errors.Is(err, domain.ErrState) {
			w.logger.WarnContext(ctx, "auto-cancel failed",
				slog.Uint64("market_id", m.ID),
				slog.String("error", err.Error()),
			)
		}
		return
	}

	if height <= m.ResolutionHeight+w.window-1 {
		_, _, err := w.settlement.ResolveFromOracle(ctx, m.ID)
		switch {
		case err == nil:
			w.logger.InfoContext(ctx, "auto-resolved market",
				slog.Uint64("market_id", m.ID),
				slog.Uint64("height", height),
			)
		case errors.Is(err, domain.ErrState), errors.Is(err, domain.ErrLockHeld):
			// Raced with another resolver; nothing to do.
		default:
			// Low confidence, stale observation, or oracle failure. The
			// market stays open and the next tick retries.
			w.logger.DebugContext(ctx, "auto-resolve deferred",
				slog.Uint64("market_id", m.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}
