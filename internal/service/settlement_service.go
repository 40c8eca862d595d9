package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/outcomelabs/marketd/internal/domain"
	"github.com/outcomelabs/marketd/internal/engine"
	"github.com/outcomelabs/marketd/internal/notify"
)

// SettlementService drives markets through their terminal transitions and
// pays out positions afterwards. Resolution and cancellation notify
// operators and trigger an archive snapshot when an archiver is configured.
type SettlementService struct {
	engine   *engine.Engine
	markets  *MarketService
	locks    domain.LockManager
	sink     Sink
	notifier *notify.Notifier
	archiver domain.Archiver
	logger   *slog.Logger
}

// NewSettlementService creates a SettlementService. notifier and archiver
// may be nil.
func NewSettlementService(
	eng *engine.Engine,
	markets *MarketService,
	locks domain.LockManager,
	sink Sink,
	notifier *notify.Notifier,
	archiver domain.Archiver,
	logger *slog.Logger,
) *SettlementService {
	return &SettlementService{
		engine:   eng,
		markets:  markets,
		locks:    locks,
		sink:     sink,
		notifier: notifier,
		archiver: archiver,
		logger:   logger.With(slog.String("component", "settlement_service")),
	}
}

func (s *SettlementService) withMarketLock(ctx context.Context, marketID uint64, fn func() error) error {
	unlock, err := s.locks.Acquire(ctx, marketLockKey(marketID), lockTTL)
	if err != nil {
		return err
	}
	defer unlock()
	return fn()
}

// afterTerminal runs the shared post-transition work: cache invalidation,
// event emission, operator notification, and the archive snapshot. Only the
// state transition itself can fail; everything here is best effort.
func (s *SettlementService) afterTerminal(ctx context.Context, evt domain.Event) {
	s.markets.invalidate(ctx, evt.MarketID)
	s.sink.Emit(ctx, evt)

	if s.notifier != nil {
		if err := s.notifier.NotifyEvent(ctx, evt); err != nil {
			s.logger.WarnContext(ctx, "notify failed",
				slog.Uint64("market_id", evt.MarketID),
				slog.String("error", err.Error()),
			)
		}
	}

	if s.archiver != nil {
		if _, err := s.archiver.ArchiveMarket(ctx, evt.MarketID); err != nil {
			s.logger.WarnContext(ctx, "archive snapshot failed",
				slog.Uint64("market_id", evt.MarketID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// Resolve settles a market against a manually supplied observation at the
// given height.
func (s *SettlementService) Resolve(ctx context.Context, marketID uint64, observed int64, atHeight uint64) (domain.Market, error) {
	var market domain.Market
	err := s.withMarketLock(ctx, marketID, func() error {
		var err error
		market, err = s.engine.Resolve(ctx, marketID, observed, atHeight)
		return err
	})
	if err != nil {
		return domain.Market{}, err
	}

	s.afterTerminal(ctx, domain.Event{
		Type:     domain.EventMarketResolved,
		MarketID: marketID,
		Detail: map[string]any{
			"observed":  observed,
			"at_height": atHeight,
			"outcome":   *market.Outcome,
		},
		At: time.Now().UTC(),
	})
	return market, nil
}

// ResolveFromOracle settles a market using its configured observation feed.
func (s *SettlementService) ResolveFromOracle(ctx context.Context, marketID uint64) (domain.Market, domain.Observation, error) {
	var (
		market domain.Market
		obs    domain.Observation
	)
	err := s.withMarketLock(ctx, marketID, func() error {
		var err error
		market, obs, err = s.engine.ResolveFromOracle(ctx, marketID)
		return err
	})
	if err != nil {
		return domain.Market{}, domain.Observation{}, err
	}

	s.afterTerminal(ctx, domain.Event{
		Type:     domain.EventMarketResolved,
		MarketID: marketID,
		Detail: map[string]any{
			"feed_id":    obs.FeedID,
			"observed":   obs.Value,
			"confidence": obs.Confidence,
			"as_of":      obs.AsOf,
			"outcome":    *market.Outcome,
		},
		At: time.Now().UTC(),
	})
	return market, obs, nil
}

// Cancel voids a market whose resolution window elapsed without settlement.
func (s *SettlementService) Cancel(ctx context.Context, marketID uint64) (domain.Market, error) {
	var market domain.Market
	err := s.withMarketLock(ctx, marketID, func() error {
		var err error
		market, err = s.engine.Cancel(ctx, marketID)
		return err
	})
	if err != nil {
		return domain.Market{}, err
	}

	s.afterTerminal(ctx, domain.Event{
		Type:     domain.EventMarketCancelled,
		MarketID: marketID,
		Detail: map[string]any{
			"resolution_height": market.ResolutionHeight,
		},
		At: time.Now().UTC(),
	})
	return market, nil
}

// Redeem pays out an account's winning-side position on a resolved market.
func (s *SettlementService) Redeem(ctx context.Context, marketID uint64, account string) (engine.RedeemResult, error) {
	var result engine.RedeemResult
	err := s.withMarketLock(ctx, marketID, func() error {
		var err error
		result, err = s.engine.Redeem(ctx, marketID, account)
		return err
	})
	if err != nil {
		return engine.RedeemResult{}, err
	}

	s.markets.invalidate(ctx, marketID)
	s.sink.Emit(ctx, domain.Event{
		Type:     domain.EventRedeemed,
		MarketID: marketID,
		Account:  account,
		Detail: map[string]any{
			"side":          string(result.Side),
			"shares_burned": result.SharesBurned,
			"payout":        result.Payout,
		},
		At: time.Now().UTC(),
	})
	return result, nil
}

// Refund returns an account's proportional share of the vault on a
// cancelled market.
func (s *SettlementService) Refund(ctx context.Context, marketID uint64, account string) (engine.RefundResult, error) {
	var result engine.RefundResult
	err := s.withMarketLock(ctx, marketID, func() error {
		var err error
		result, err = s.engine.Refund(ctx, marketID, account)
		return err
	})
	if err != nil {
		return engine.RefundResult{}, err
	}

	s.markets.invalidate(ctx, marketID)
	s.sink.Emit(ctx, domain.Event{
		Type:     domain.EventRefunded,
		MarketID: marketID,
		Account:  account,
		Detail: map[string]any{
			"yes_burned": result.YesBurned,
			"no_burned":  result.NoBurned,
			"refund":     result.Refund,
		},
		At: time.Now().UTC(),
	})
	return result, nil
}
