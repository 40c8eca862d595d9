package engine

import (
	"context"
	"fmt"

	"github.com/outcomelabs/marketd/internal/domain"
)

// The ledger primitives below are the only code that touches per-account
// share balances. Each adjusts the balance and the matching circulating
// counter by the same amount, so the invariant "circulating equals the sum
// of balances per side" is enforced in one place. All other components are
// written in terms of mintShares/burnShares plus vault transfers.

// mintShares credits amount shares of side to account and raises the side's
// circulating counter. The market is mutated in place; the caller persists
// it when its whole operation succeeds.
func mintShares(ctx context.Context, tx domain.Tx, m *domain.Market, account string, side domain.Side, amount uint64) error {
	bal, err := tx.Balance(ctx, m.ID, account, side)
	if err != nil {
		return err
	}
	newBal, err := addU64(bal, amount)
	if err != nil {
		return err
	}
	newCirc, err := addU64(m.Circulating(side), amount)
	if err != nil {
		return err
	}
	if err := tx.SetBalance(ctx, m.ID, account, side, newBal); err != nil {
		return err
	}
	m.SetCirculating(side, newCirc)
	return nil
}

// burnShares debits amount shares of side from account and lowers the
// side's circulating counter. It fails with ErrInsufficientBalance when the
// account holds fewer than amount shares.
func burnShares(ctx context.Context, tx domain.Tx, m *domain.Market, account string, side domain.Side, amount uint64) error {
	bal, err := tx.Balance(ctx, m.ID, account, side)
	if err != nil {
		return err
	}
	if bal < amount {
		return fmt.Errorf("%w: account %s holds %d %s shares, need %d",
			domain.ErrInsufficientBalance, account, bal, side, amount)
	}
	newCirc, err := subU64(m.Circulating(side), amount)
	if err != nil {
		return err
	}
	if err := tx.SetBalance(ctx, m.ID, account, side, bal-amount); err != nil {
		return err
	}
	m.SetCirculating(side, newCirc)
	return nil
}

// debitCollateral moves amount out of an account's collateral balance.
func debitCollateral(ctx context.Context, tx domain.Tx, account string, amount uint64) error {
	bal, err := tx.Collateral(ctx, account)
	if err != nil {
		return err
	}
	if bal < amount {
		return fmt.Errorf("%w: account %s has %d collateral, need %d",
			domain.ErrInsufficientBalance, account, bal, amount)
	}
	return tx.SetCollateral(ctx, account, bal-amount)
}

// creditCollateral moves amount into an account's collateral balance.
func creditCollateral(ctx context.Context, tx domain.Tx, account string, amount uint64) error {
	bal, err := tx.Collateral(ctx, account)
	if err != nil {
		return err
	}
	newBal, err := addU64(bal, amount)
	if err != nil {
		return err
	}
	return tx.SetCollateral(ctx, account, newBal)
}
