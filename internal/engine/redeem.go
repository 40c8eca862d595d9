package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/outcomelabs/marketd/internal/domain"
)

// RedeemResult reports a winning-side payout.
type RedeemResult struct {
	MarketID     uint64      `json:"market_id"`
	Account      string      `json:"account"`
	Side         domain.Side `json:"side"`
	SharesBurned uint64      `json:"shares_burned"`
	Payout       uint64      `json:"payout"`
}

// RefundResult reports a cancelled-market refund.
type RefundResult struct {
	MarketID  uint64 `json:"market_id"`
	Account   string `json:"account"`
	YesBurned uint64 `json:"yes_burned"`
	NoBurned  uint64 `json:"no_burned"`
	Refund    uint64 `json:"refund"`
}

// Redeem pays out an account's entire winning-side position on a resolved
// market. The payout is floor(shares * vault / circulating): proportional,
// not 1:1, because AMM fee minting lets circulating supply exceed the
// vault's backing. The vault and the circulating supply shrink in the same
// ratio, so redemption order gives no advantage. Floor rounding may strand
// dust in the vault permanently; that is the intended behavior.
func (e *Engine) Redeem(ctx context.Context, marketID uint64, account string) (RedeemResult, error) {
	var res RedeemResult
	err := e.store.Update(ctx, func(tx domain.Tx) error {
		m, err := tx.GetMarket(ctx, marketID)
		if err != nil {
			return err
		}
		side, ok := m.WinningSide()
		if !ok {
			return fmt.Errorf("%w: market %d is not resolved", domain.ErrState, marketID)
		}

		shares, err := tx.Balance(ctx, marketID, account, side)
		if err != nil {
			return err
		}
		if shares == 0 {
			return fmt.Errorf("%w: account %s holds no %s shares", domain.ErrNothingToRedeem, account, side)
		}
		total := m.Circulating(side)
		if total == 0 || m.Vault == 0 {
			return fmt.Errorf("%w: market %d has nothing left to pay out", domain.ErrState, marketID)
		}

		payout, err := mulDiv(shares, m.Vault, total)
		if err != nil {
			return err
		}
		if err := burnShares(ctx, tx, &m, account, side, shares); err != nil {
			return err
		}
		vault, err := subU64(m.Vault, payout)
		if err != nil {
			return err
		}
		m.Vault = vault
		if err := creditCollateral(ctx, tx, account, payout); err != nil {
			return err
		}

		m.UpdatedAt = time.Now().UTC()
		res = RedeemResult{
			MarketID:     marketID,
			Account:      account,
			Side:         side,
			SharesBurned: shares,
			Payout:       payout,
		}
		return tx.PutMarket(ctx, m)
	})
	if err != nil {
		return RedeemResult{}, fmt.Errorf("engine: redeem: %w", err)
	}

	e.logger.InfoContext(ctx, "redeemed",
		slog.Uint64("market_id", marketID),
		slog.String("account", account),
		slog.Uint64("payout", res.Payout),
	)
	return res, nil
}

// Cancel marks an unresolved market cancelled. Anyone may call it, but only
// once the resolution window plus the cancel timeout have fully elapsed.
func (e *Engine) Cancel(ctx context.Context, marketID uint64) (domain.Market, error) {
	height, err := e.currentHeight(ctx)
	if err != nil {
		return domain.Market{}, fmt.Errorf("engine: cancel: %w", err)
	}

	var market domain.Market
	err = e.store.Update(ctx, func(tx domain.Tx) error {
		m, err := tx.GetMarket(ctx, marketID)
		if err != nil {
			return err
		}
		if !m.Open() {
			return fmt.Errorf("%w: market %d already %s", domain.ErrState, marketID, m.Status())
		}
		earliest := m.ResolutionHeight + e.params.ResolutionWindow + e.params.CancelTimeout
		if height < earliest {
			return fmt.Errorf("%w: cancellation opens at height %d, current %d",
				domain.ErrTooEarly, earliest, height)
		}

		m.Cancelled = true
		m.UpdatedAt = time.Now().UTC()
		market = m
		return tx.PutMarket(ctx, m)
	})
	if err != nil {
		return domain.Market{}, fmt.Errorf("engine: cancel: %w", err)
	}

	e.logger.InfoContext(ctx, "market cancelled",
		slog.Uint64("market_id", marketID),
		slog.Uint64("height", height),
	)
	return market, nil
}

// Refund returns an account's proportional share of the vault on a
// cancelled market: floor((yes+no) * vault / (yes_circ+no_circ)). Issued
// supply drops only by the matched pairs burned, min(yes, no), so the
// backing relationship for any remaining open positions is preserved.
func (e *Engine) Refund(ctx context.Context, marketID uint64, account string) (RefundResult, error) {
	var res RefundResult
	err := e.store.Update(ctx, func(tx domain.Tx) error {
		m, err := tx.GetMarket(ctx, marketID)
		if err != nil {
			return err
		}
		if !m.Cancelled {
			return fmt.Errorf("%w: market %d is not cancelled", domain.ErrState, marketID)
		}

		yesBal, err := tx.Balance(ctx, marketID, account, domain.SideYes)
		if err != nil {
			return err
		}
		noBal, err := tx.Balance(ctx, marketID, account, domain.SideNo)
		if err != nil {
			return err
		}
		userTotal, err := addU64(yesBal, noBal)
		if err != nil {
			return err
		}
		if userTotal == 0 {
			return fmt.Errorf("%w: account %s holds no shares", domain.ErrNothingToRedeem, account)
		}
		circTotal, err := addU64(m.YesCirculating, m.NoCirculating)
		if err != nil {
			return err
		}
		if circTotal == 0 {
			return fmt.Errorf("%w: market %d has no circulating shares", domain.ErrState, marketID)
		}

		refund, err := mulDiv(userTotal, m.Vault, circTotal)
		if err != nil {
			return err
		}
		if yesBal > 0 {
			if err := burnShares(ctx, tx, &m, account, domain.SideYes, yesBal); err != nil {
				return err
			}
		}
		if noBal > 0 {
			if err := burnShares(ctx, tx, &m, account, domain.SideNo, noBal); err != nil {
				return err
			}
		}

		matched := min(yesBal, noBal)
		vault, err := subU64(m.Vault, refund)
		if err != nil {
			return err
		}
		yesIssued, err := subU64(m.YesIssued, matched)
		if err != nil {
			return err
		}
		noIssued, err := subU64(m.NoIssued, matched)
		if err != nil {
			return err
		}
		m.Vault, m.YesIssued, m.NoIssued = vault, yesIssued, noIssued

		if err := creditCollateral(ctx, tx, account, refund); err != nil {
			return err
		}

		m.UpdatedAt = time.Now().UTC()
		res = RefundResult{
			MarketID:  marketID,
			Account:   account,
			YesBurned: yesBal,
			NoBurned:  noBal,
			Refund:    refund,
		}
		return tx.PutMarket(ctx, m)
	})
	if err != nil {
		return RefundResult{}, fmt.Errorf("engine: refund: %w", err)
	}

	e.logger.InfoContext(ctx, "refunded",
		slog.Uint64("market_id", marketID),
		slog.String("account", account),
		slog.Uint64("refund", res.Refund),
	)
	return res, nil
}
