package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/outcomelabs/marketd/internal/domain"
)

// SwapResult reports the outcome of an AMM swap.
type SwapResult struct {
	MarketID  uint64      `json:"market_id"`
	FromSide  domain.Side `json:"from_side"`
	AmountIn  uint64      `json:"amount_in"`
	Fee       uint64      `json:"fee"`
	AmountOut uint64      `json:"amount_out"`
}

// swapQuote computes the constant-product output for tradeIn moving from
// reserveFrom toward reserveTo. The new output-side reserve is
// floor(Rf*Rt/(Rf+tradeIn)); reserves strictly decrease on the output side
// or the swap is rejected as degenerate.
func swapQuote(reserveFrom, reserveTo, tradeIn uint64) (newFrom, newTo, amountOut uint64, err error) {
	newFrom, err = addU64(reserveFrom, tradeIn)
	if err != nil {
		return 0, 0, 0, err
	}
	newTo, err = mulDiv(reserveFrom, reserveTo, newFrom)
	if err != nil {
		return 0, 0, 0, err
	}
	if newTo >= reserveTo {
		return 0, 0, 0, fmt.Errorf("%w: degenerate reserves, output side would not decrease", domain.ErrState)
	}
	return newFrom, newTo, reserveTo - newTo, nil
}

// applySwap executes a swap of amountIn shares of fromSide for shares of
// the opposite side. The bps fee is minted to the fee recipient on the
// input side without collateral backing, which is why circulating supply
// may legitimately exceed issued supply.
func (e *Engine) applySwap(ctx context.Context, tx domain.Tx, m *domain.Market, account string, fromSide domain.Side, amountIn uint64) (SwapResult, error) {
	if amountIn == 0 {
		return SwapResult{}, fmt.Errorf("%w: amount must be positive", domain.ErrValidation)
	}
	fee, err := mulDiv(amountIn, uint64(m.FeeBps), feeDenominator)
	if err != nil {
		return SwapResult{}, err
	}
	if fee > amountIn {
		fee = amountIn
	}
	tradeIn := amountIn - fee
	if tradeIn == 0 {
		return SwapResult{}, fmt.Errorf("%w: amount %d is consumed entirely by fees", domain.ErrValidation, amountIn)
	}

	toSide := fromSide.Other()
	newFrom, newTo, amountOut, err := swapQuote(m.Reserve(fromSide), m.Reserve(toSide), tradeIn)
	if err != nil {
		return SwapResult{}, err
	}

	if err := burnShares(ctx, tx, m, account, fromSide, amountIn); err != nil {
		return SwapResult{}, err
	}
	if fee > 0 {
		if err := mintShares(ctx, tx, m, e.params.FeeRecipient, fromSide, fee); err != nil {
			return SwapResult{}, err
		}
		m.AddFees(fromSide, fee)
	}
	if err := mintShares(ctx, tx, m, account, toSide, amountOut); err != nil {
		return SwapResult{}, err
	}
	m.SetReserve(fromSide, newFrom)
	m.SetReserve(toSide, newTo)

	return SwapResult{
		MarketID:  m.ID,
		FromSide:  fromSide,
		AmountIn:  amountIn,
		Fee:       fee,
		AmountOut: amountOut,
	}, nil
}

// Swap trades amountIn of fromSide for the opposite side at the current
// AMM price. The market must be open and the account must hold amountIn
// shares on fromSide.
func (e *Engine) Swap(ctx context.Context, marketID uint64, account string, fromSide domain.Side, amountIn uint64) (SwapResult, error) {
	if !fromSide.Valid() {
		return SwapResult{}, fmt.Errorf("engine: swap: %w: unknown side %q", domain.ErrValidation, fromSide)
	}
	var res SwapResult
	err := e.store.Update(ctx, func(tx domain.Tx) error {
		m, err := openMarket(ctx, tx, marketID)
		if err != nil {
			return err
		}
		res, err = e.applySwap(ctx, tx, &m, account, fromSide, amountIn)
		if err != nil {
			return err
		}
		m.UpdatedAt = time.Now().UTC()
		return tx.PutMarket(ctx, m)
	})
	if err != nil {
		return SwapResult{}, fmt.Errorf("engine: swap: %w", err)
	}

	e.logger.DebugContext(ctx, "swap executed",
		slog.Uint64("market_id", marketID),
		slog.String("from_side", string(fromSide)),
		slog.Uint64("amount_in", res.AmountIn),
		slog.Uint64("amount_out", res.AmountOut),
		slog.Uint64("fee", res.Fee),
	)
	return res, nil
}
