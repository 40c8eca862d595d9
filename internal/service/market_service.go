package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/outcomelabs/marketd/internal/domain"
	"github.com/outcomelabs/marketd/internal/engine"
)

// marketLockKey names the per-market mutation lock.
func marketLockKey(id uint64) string {
	return "market:" + strconv.FormatUint(id, 10)
}

// MarketService handles market creation and read paths. Reads go through
// the market cache when one is configured.
type MarketService struct {
	engine *engine.Engine
	cache  domain.MarketCache
	sink   Sink
	logger *slog.Logger
}

// NewMarketService creates a MarketService. cache may be nil.
func NewMarketService(eng *engine.Engine, cache domain.MarketCache, sink Sink, logger *slog.Logger) *MarketService {
	return &MarketService{
		engine: eng,
		cache:  cache,
		sink:   sink,
		logger: logger.With(slog.String("component", "market_service")),
	}
}

// CreateMarket opens a new market and emits a market_created event.
func (s *MarketService) CreateMarket(ctx context.Context, p engine.CreateMarketParams) (domain.Market, error) {
	market, err := s.engine.CreateMarket(ctx, p)
	if err != nil {
		return domain.Market{}, err
	}

	s.sink.Emit(ctx, domain.Event{
		Type:     domain.EventMarketCreated,
		MarketID: market.ID,
		Account:  market.Creator,
		Detail: map[string]any{
			"question":          market.Question,
			"resolution_height": market.ResolutionHeight,
			"initial_liquidity": market.InitialLiquidity,
			"fee_bps":           market.FeeBps,
		},
		At: time.Now().UTC(),
	})

	return market, nil
}

// GetMarket retrieves a market by id, checking the cache first and falling
// back to the store on a miss.
func (s *MarketService) GetMarket(ctx context.Context, id uint64) (domain.Market, error) {
	if s.cache != nil {
		if m, err := s.cache.Get(ctx, id); err == nil {
			return m, nil
		}
	}

	m, err := s.engine.GetMarket(ctx, id)
	if err != nil {
		return domain.Market{}, err
	}

	if s.cache != nil {
		if cacheErr := s.cache.Set(ctx, m); cacheErr != nil {
			s.logger.WarnContext(ctx, "cache set failed",
				slog.Uint64("market_id", id),
				slog.String("error", cacheErr.Error()),
			)
		}
	}
	return m, nil
}

// invalidate drops a market's cache entry after a mutation. Non-fatal: the
// entry expires on its own.
func (s *MarketService) invalidate(ctx context.Context, id uint64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.logger.WarnContext(ctx, "cache invalidate failed",
			slog.Uint64("market_id", id),
			slog.String("error", err.Error()),
		)
	}
}

// ListMarkets returns markets directly from the store.
func (s *MarketService) ListMarkets(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	markets, err := s.engine.ListMarkets(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("market_service: list: %w", err)
	}
	return markets, nil
}

// CountMarkets returns the total number of markets.
func (s *MarketService) CountMarkets(ctx context.Context) (int64, error) {
	count, err := s.engine.CountMarkets(ctx)
	if err != nil {
		return 0, fmt.Errorf("market_service: count: %w", err)
	}
	return count, nil
}

// GetBalance returns an account's yes/no share balances on a market.
func (s *MarketService) GetBalance(ctx context.Context, marketID uint64, account string) (domain.BalancePair, error) {
	return s.engine.GetBalance(ctx, marketID, account)
}

// GetRedemptionInfo previews the proportional payout ratio for a market.
func (s *MarketService) GetRedemptionInfo(ctx context.Context, marketID uint64) (domain.RedemptionInfo, error) {
	return s.engine.GetRedemptionInfo(ctx, marketID)
}

// GetMarketFees reports cumulative AMM fees for a market.
func (s *MarketService) GetMarketFees(ctx context.Context, marketID uint64) (domain.MarketFees, error) {
	return s.engine.GetMarketFees(ctx, marketID)
}
