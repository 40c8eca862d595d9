package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/outcomelabs/marketd/internal/domain"
	"github.com/outcomelabs/marketd/internal/engine"
)

// TradeService handles every collateral- and share-moving operation on open
// markets. Each mutation takes the per-market lock so concurrent requests
// across replicas stay serialized, then invalidates the market cache and
// emits an event.
type TradeService struct {
	engine  *engine.Engine
	markets *MarketService
	locks   domain.LockManager
	sink    Sink
	logger  *slog.Logger
}

// NewTradeService creates a TradeService.
func NewTradeService(eng *engine.Engine, markets *MarketService, locks domain.LockManager, sink Sink, logger *slog.Logger) *TradeService {
	return &TradeService{
		engine:  eng,
		markets: markets,
		locks:   locks,
		sink:    sink,
		logger:  logger.With(slog.String("component", "trade_service")),
	}
}

// withMarketLock runs fn while holding the market's mutation lock.
func (s *TradeService) withMarketLock(ctx context.Context, marketID uint64, fn func() error) error {
	unlock, err := s.locks.Acquire(ctx, marketLockKey(marketID), lockTTL)
	if err != nil {
		return err
	}
	defer unlock()
	return fn()
}

// DepositCollateral credits an account's collateral balance and returns the
// new balance. Deposits are account-level so no market lock is needed.
func (s *TradeService) DepositCollateral(ctx context.Context, account string, amount uint64) (uint64, error) {
	return s.engine.DepositCollateral(ctx, account, amount)
}

// WithdrawCollateral debits an account's collateral balance and returns the
// new balance.
func (s *TradeService) WithdrawCollateral(ctx context.Context, account string, amount uint64) (uint64, error) {
	return s.engine.WithdrawCollateral(ctx, account, amount)
}

// GetCollateral returns an account's collateral balance.
func (s *TradeService) GetCollateral(ctx context.Context, account string) (uint64, error) {
	return s.engine.GetCollateral(ctx, account)
}

// MintSet locks one collateral unit per set and credits equal YES and NO
// share balances.
func (s *TradeService) MintSet(ctx context.Context, marketID uint64, account string, amount uint64) (domain.Market, error) {
	var market domain.Market
	err := s.withMarketLock(ctx, marketID, func() error {
		var err error
		market, err = s.engine.MintCompleteSet(ctx, marketID, account, amount)
		return err
	})
	if err != nil {
		return domain.Market{}, err
	}

	s.markets.invalidate(ctx, marketID)
	s.sink.Emit(ctx, domain.Event{
		Type:     domain.EventSetMinted,
		MarketID: marketID,
		Account:  account,
		Detail:   map[string]any{"amount": amount, "vault": market.Vault},
		At:       time.Now().UTC(),
	})
	return market, nil
}

// BurnSet burns equal YES and NO share balances and releases the backing
// collateral.
func (s *TradeService) BurnSet(ctx context.Context, marketID uint64, account string, amount uint64) (domain.Market, error) {
	var market domain.Market
	err := s.withMarketLock(ctx, marketID, func() error {
		var err error
		market, err = s.engine.BurnCompleteSet(ctx, marketID, account, amount)
		return err
	})
	if err != nil {
		return domain.Market{}, err
	}

	s.markets.invalidate(ctx, marketID)
	s.sink.Emit(ctx, domain.Event{
		Type:     domain.EventSetBurned,
		MarketID: marketID,
		Account:  account,
		Detail:   map[string]any{"amount": amount, "vault": market.Vault},
		At:       time.Now().UTC(),
	})
	return market, nil
}

// Swap trades shares of one side for the other against the AMM.
func (s *TradeService) Swap(ctx context.Context, marketID uint64, account string, fromSide domain.Side, amountIn uint64) (engine.SwapResult, error) {
	var result engine.SwapResult
	err := s.withMarketLock(ctx, marketID, func() error {
		var err error
		result, err = s.engine.Swap(ctx, marketID, account, fromSide, amountIn)
		return err
	})
	if err != nil {
		return engine.SwapResult{}, err
	}

	s.markets.invalidate(ctx, marketID)
	s.sink.Emit(ctx, domain.Event{
		Type:     domain.EventSwapExecuted,
		MarketID: marketID,
		Account:  account,
		Detail: map[string]any{
			"from_side":  string(fromSide),
			"amount_in":  result.AmountIn,
			"fee":        result.Fee,
			"amount_out": result.AmountOut,
		},
		At: time.Now().UTC(),
	})
	return result, nil
}

// Buy takes a one-sided position funded purely by collateral.
func (s *TradeService) Buy(ctx context.Context, marketID uint64, account string, side domain.Side, amount uint64) (engine.BuyResult, error) {
	var result engine.BuyResult
	err := s.withMarketLock(ctx, marketID, func() error {
		var err error
		result, err = s.engine.BuyShares(ctx, marketID, account, side, amount)
		return err
	})
	if err != nil {
		return engine.BuyResult{}, err
	}

	s.markets.invalidate(ctx, marketID)
	s.sink.Emit(ctx, domain.Event{
		Type:     domain.EventSwapExecuted,
		MarketID: marketID,
		Account:  account,
		Detail: map[string]any{
			"op":     "buy",
			"side":   string(side),
			"spent":  result.Spent,
			"tax":    result.Tax,
			"shares": result.Shares,
		},
		At: time.Now().UTC(),
	})
	return result, nil
}

// Sell converts a one-sided position back into collateral.
func (s *TradeService) Sell(ctx context.Context, marketID uint64, account string, side domain.Side, amount uint64) (engine.SellResult, error) {
	var result engine.SellResult
	err := s.withMarketLock(ctx, marketID, func() error {
		var err error
		result, err = s.engine.SellShares(ctx, marketID, account, side, amount)
		return err
	})
	if err != nil {
		return engine.SellResult{}, err
	}

	s.markets.invalidate(ctx, marketID)
	s.sink.Emit(ctx, domain.Event{
		Type:     domain.EventSwapExecuted,
		MarketID: marketID,
		Account:  account,
		Detail: map[string]any{
			"op":       "sell",
			"side":     string(side),
			"sold":     result.Sold,
			"burned":   result.Burned,
			"tax":      result.Tax,
			"proceeds": result.Proceeds,
		},
		At: time.Now().UTC(),
	})
	return result, nil
}
