package engine

import (
	"context"
	"fmt"

	"github.com/outcomelabs/marketd/internal/domain"
)

// GetMarket returns a market by id.
func (e *Engine) GetMarket(ctx context.Context, id uint64) (domain.Market, error) {
	var m domain.Market
	err := e.store.View(ctx, func(tx domain.Tx) error {
		var err error
		m, err = tx.GetMarket(ctx, id)
		return err
	})
	if err != nil {
		return domain.Market{}, fmt.Errorf("engine: get market %d: %w", id, err)
	}
	return m, nil
}

// ListMarkets returns markets with pagination and optional status filtering.
func (e *Engine) ListMarkets(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	var markets []domain.Market
	err := e.store.View(ctx, func(tx domain.Tx) error {
		var err error
		markets, err = tx.ListMarkets(ctx, opts)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("engine: list markets: %w", err)
	}
	return markets, nil
}

// CountMarkets returns the total number of markets.
func (e *Engine) CountMarkets(ctx context.Context) (int64, error) {
	var count int64
	err := e.store.View(ctx, func(tx domain.Tx) error {
		var err error
		count, err = tx.CountMarkets(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("engine: count markets: %w", err)
	}
	return count, nil
}

// GetBalance returns an account's share balances on both sides of a market.
func (e *Engine) GetBalance(ctx context.Context, marketID uint64, account string) (domain.BalancePair, error) {
	pair := domain.BalancePair{MarketID: marketID, Account: account}
	err := e.store.View(ctx, func(tx domain.Tx) error {
		if _, err := tx.GetMarket(ctx, marketID); err != nil {
			return err
		}
		var err error
		if pair.Yes, err = tx.Balance(ctx, marketID, account, domain.SideYes); err != nil {
			return err
		}
		pair.No, err = tx.Balance(ctx, marketID, account, domain.SideNo)
		return err
	})
	if err != nil {
		return domain.BalancePair{}, fmt.Errorf("engine: get balance: %w", err)
	}
	return pair, nil
}

// GetCollateral returns an account's free collateral balance.
func (e *Engine) GetCollateral(ctx context.Context, account string) (uint64, error) {
	var balance uint64
	err := e.store.View(ctx, func(tx domain.Tx) error {
		var err error
		balance, err = tx.Collateral(ctx, account)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("engine: get collateral: %w", err)
	}
	return balance, nil
}

// GetRedemptionInfo previews the payout ratio: vault over winning-side
// circulating supply for resolved markets, vault over combined circulating
// supply for cancelled ones. The ratio is zero while the market is open.
func (e *Engine) GetRedemptionInfo(ctx context.Context, marketID uint64) (domain.RedemptionInfo, error) {
	var info domain.RedemptionInfo
	err := e.store.View(ctx, func(tx domain.Tx) error {
		m, err := tx.GetMarket(ctx, marketID)
		if err != nil {
			return err
		}
		info = domain.RedemptionInfo{
			MarketID: marketID,
			Status:   m.Status(),
			Vault:    m.Vault,
		}
		switch {
		case m.Resolved:
			side, _ := m.WinningSide()
			info.WinningSide = &side
			info.TotalShares = m.Circulating(side)
		case m.Cancelled:
			info.TotalShares = m.YesCirculating + m.NoCirculating
		}
		if info.TotalShares > 0 {
			info.Ratio = float64(m.Vault) / float64(info.TotalShares)
		}
		return nil
	})
	if err != nil {
		return domain.RedemptionInfo{}, fmt.Errorf("engine: redemption info: %w", err)
	}
	return info, nil
}

// GetMarketFees returns cumulative AMM fees for a market.
func (e *Engine) GetMarketFees(ctx context.Context, marketID uint64) (domain.MarketFees, error) {
	var fees domain.MarketFees
	err := e.store.View(ctx, func(tx domain.Tx) error {
		m, err := tx.GetMarket(ctx, marketID)
		if err != nil {
			return err
		}
		fees = domain.MarketFees{
			MarketID: marketID,
			FeesYes:  m.FeesYes,
			FeesNo:   m.FeesNo,
			FeeBps:   m.FeeBps,
		}
		return nil
	})
	if err != nil {
		return domain.MarketFees{}, fmt.Errorf("engine: market fees: %w", err)
	}
	return fees, nil
}
