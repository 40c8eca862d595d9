package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/outcomelabs/marketd/internal/domain"
)

// BuyResult reports a collateral-funded position purchase.
type BuyResult struct {
	MarketID uint64      `json:"market_id"`
	Account  string      `json:"account"`
	Side     domain.Side `json:"side"`
	Spent    uint64      `json:"spent"`
	Tax      uint64      `json:"tax"`
	Shares   uint64      `json:"shares"`
}

// SellResult reports a position sale back into collateral.
type SellResult struct {
	MarketID uint64      `json:"market_id"`
	Account  string      `json:"account"`
	Side     domain.Side `json:"side"`
	Sold     uint64      `json:"sold"`
	Burned   uint64      `json:"burned"`
	Tax      uint64      `json:"tax"`
	Proceeds uint64      `json:"proceeds"`
}

// BuyShares takes a one-sided position using only collateral: it mints a
// complete set and immediately swaps the unwanted side away, all in one
// atomic operation. An optional flat tax is skimmed to the fee recipient
// before minting.
func (e *Engine) BuyShares(ctx context.Context, marketID uint64, account string, side domain.Side, amount uint64) (BuyResult, error) {
	if !side.Valid() {
		return BuyResult{}, fmt.Errorf("engine: buy: %w: unknown side %q", domain.ErrValidation, side)
	}
	if amount == 0 {
		return BuyResult{}, fmt.Errorf("engine: buy: %w: amount must be positive", domain.ErrValidation)
	}

	var res BuyResult
	err := e.store.Update(ctx, func(tx domain.Tx) error {
		m, err := openMarket(ctx, tx, marketID)
		if err != nil {
			return err
		}

		tax := e.params.FlatTax
		if tax > 0 {
			if err := debitCollateral(ctx, tx, account, tax); err != nil {
				return err
			}
			if err := creditCollateral(ctx, tx, e.params.FeeRecipient, tax); err != nil {
				return err
			}
		}

		if err := mintSet(ctx, tx, &m, account, amount); err != nil {
			return err
		}
		swap, err := e.applySwap(ctx, tx, &m, account, side.Other(), amount)
		if err != nil {
			return err
		}

		shares, err := addU64(amount, swap.AmountOut)
		if err != nil {
			return err
		}
		m.UpdatedAt = time.Now().UTC()
		res = BuyResult{
			MarketID: marketID,
			Account:  account,
			Side:     side,
			Spent:    amount,
			Tax:      tax,
			Shares:   shares,
		}
		return tx.PutMarket(ctx, m)
	})
	if err != nil {
		return BuyResult{}, fmt.Errorf("engine: buy: %w", err)
	}

	e.logger.DebugContext(ctx, "shares bought",
		slog.Uint64("market_id", marketID),
		slog.String("account", account),
		slog.String("side", string(side)),
		slog.Uint64("shares", res.Shares),
	)
	return res, nil
}

// SellShares unwinds a one-sided position back into collateral: it swaps
// amount shares of side to the opposite side, then burns every matched
// YES/NO pair the account then holds. An optional flat tax comes out of
// the burn proceeds.
func (e *Engine) SellShares(ctx context.Context, marketID uint64, account string, side domain.Side, amount uint64) (SellResult, error) {
	if !side.Valid() {
		return SellResult{}, fmt.Errorf("engine: sell: %w: unknown side %q", domain.ErrValidation, side)
	}
	if amount == 0 {
		return SellResult{}, fmt.Errorf("engine: sell: %w: amount must be positive", domain.ErrValidation)
	}

	var res SellResult
	err := e.store.Update(ctx, func(tx domain.Tx) error {
		m, err := openMarket(ctx, tx, marketID)
		if err != nil {
			return err
		}

		if _, err := e.applySwap(ctx, tx, &m, account, side, amount); err != nil {
			return err
		}

		yesBal, err := tx.Balance(ctx, marketID, account, domain.SideYes)
		if err != nil {
			return err
		}
		noBal, err := tx.Balance(ctx, marketID, account, domain.SideNo)
		if err != nil {
			return err
		}
		// Only matched pairs convert back to collateral. Selling an
		// entire one-sided position can leave zero pairs; that is a
		// successful sale with zero proceeds, not an error.
		matched := min(yesBal, noBal)
		if matched > 0 {
			if err := burnSet(ctx, tx, &m, account, matched); err != nil {
				return err
			}
		}

		tax := min(e.params.FlatTax, matched)
		if tax > 0 {
			if err := debitCollateral(ctx, tx, account, tax); err != nil {
				return err
			}
			if err := creditCollateral(ctx, tx, e.params.FeeRecipient, tax); err != nil {
				return err
			}
		}

		m.UpdatedAt = time.Now().UTC()
		res = SellResult{
			MarketID: marketID,
			Account:  account,
			Side:     side,
			Sold:     amount,
			Burned:   matched,
			Tax:      tax,
			Proceeds: matched - tax,
		}
		return tx.PutMarket(ctx, m)
	})
	if err != nil {
		return SellResult{}, fmt.Errorf("engine: sell: %w", err)
	}

	e.logger.DebugContext(ctx, "shares sold",
		slog.Uint64("market_id", marketID),
		slog.String("account", account),
		slog.String("side", string(side)),
		slog.Uint64("proceeds", res.Proceeds),
	)
	return res, nil
}
