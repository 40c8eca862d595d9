package engine

import (
	"context"
	"fmt"

	"github.com/outcomelabs/marketd/internal/domain"
)

// DepositCollateral credits an account's collateral balance. Funding is how
// external value enters the engine; everything downstream (minting, taxes,
// payouts) moves between these accounts and market vaults.
func (e *Engine) DepositCollateral(ctx context.Context, account string, amount uint64) (uint64, error) {
	if account == "" {
		return 0, fmt.Errorf("engine: deposit: %w: account must not be empty", domain.ErrValidation)
	}
	if amount == 0 {
		return 0, fmt.Errorf("engine: deposit: %w: amount must be positive", domain.ErrValidation)
	}
	var balance uint64
	err := e.store.Update(ctx, func(tx domain.Tx) error {
		if err := creditCollateral(ctx, tx, account, amount); err != nil {
			return err
		}
		var err error
		balance, err = tx.Collateral(ctx, account)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("engine: deposit: %w", err)
	}
	return balance, nil
}

// WithdrawCollateral debits an account's collateral balance.
func (e *Engine) WithdrawCollateral(ctx context.Context, account string, amount uint64) (uint64, error) {
	if amount == 0 {
		return 0, fmt.Errorf("engine: withdraw: %w: amount must be positive", domain.ErrValidation)
	}
	var balance uint64
	err := e.store.Update(ctx, func(tx domain.Tx) error {
		if err := debitCollateral(ctx, tx, account, amount); err != nil {
			return err
		}
		var err error
		balance, err = tx.Collateral(ctx, account)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("engine: withdraw: %w", err)
	}
	return balance, nil
}
