package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/outcomelabs/marketd/internal/domain"
)

// mintSet deposits amount collateral into the vault and credits the account
// amount shares on both sides. This is the only path that raises issued
// supply; the two issued counters and the vault always move together.
func mintSet(ctx context.Context, tx domain.Tx, m *domain.Market, account string, amount uint64) error {
	if amount == 0 {
		return fmt.Errorf("%w: amount must be positive", domain.ErrValidation)
	}
	if err := debitCollateral(ctx, tx, account, amount); err != nil {
		return err
	}
	vault, err := addU64(m.Vault, amount)
	if err != nil {
		return err
	}
	yes, err := addU64(m.YesIssued, amount)
	if err != nil {
		return err
	}
	no, err := addU64(m.NoIssued, amount)
	if err != nil {
		return err
	}
	if err := mintShares(ctx, tx, m, account, domain.SideYes, amount); err != nil {
		return err
	}
	if err := mintShares(ctx, tx, m, account, domain.SideNo, amount); err != nil {
		return err
	}
	m.Vault, m.YesIssued, m.NoIssued = vault, yes, no
	return nil
}

// burnSet debits amount shares on both sides and withdraws amount collateral
// from the vault back to the account.
func burnSet(ctx context.Context, tx domain.Tx, m *domain.Market, account string, amount uint64) error {
	if amount == 0 {
		return fmt.Errorf("%w: amount must be positive", domain.ErrValidation)
	}
	if err := burnShares(ctx, tx, m, account, domain.SideYes, amount); err != nil {
		return err
	}
	if err := burnShares(ctx, tx, m, account, domain.SideNo, amount); err != nil {
		return err
	}
	vault, err := subU64(m.Vault, amount)
	if err != nil {
		return err
	}
	yes, err := subU64(m.YesIssued, amount)
	if err != nil {
		return err
	}
	no, err := subU64(m.NoIssued, amount)
	if err != nil {
		return err
	}
	if err := creditCollateral(ctx, tx, account, amount); err != nil {
		return err
	}
	m.Vault, m.YesIssued, m.NoIssued = vault, yes, no
	return nil
}

// MintCompleteSet converts amount collateral into amount YES + amount NO
// shares for account. The market must be open.
func (e *Engine) MintCompleteSet(ctx context.Context, marketID uint64, account string, amount uint64) (domain.Market, error) {
	var market domain.Market
	err := e.store.Update(ctx, func(tx domain.Tx) error {
		m, err := openMarket(ctx, tx, marketID)
		if err != nil {
			return err
		}
		if err := mintSet(ctx, tx, &m, account, amount); err != nil {
			return err
		}
		m.UpdatedAt = time.Now().UTC()
		market = m
		return tx.PutMarket(ctx, m)
	})
	if err != nil {
		return domain.Market{}, fmt.Errorf("engine: mint complete set: %w", err)
	}
	return market, nil
}

// BurnCompleteSet converts amount matched YES/NO share pairs back into
// amount collateral for account. The market must be open.
func (e *Engine) BurnCompleteSet(ctx context.Context, marketID uint64, account string, amount uint64) (domain.Market, error) {
	var market domain.Market
	err := e.store.Update(ctx, func(tx domain.Tx) error {
		m, err := openMarket(ctx, tx, marketID)
		if err != nil {
			return err
		}
		if err := burnSet(ctx, tx, &m, account, amount); err != nil {
			return err
		}
		m.UpdatedAt = time.Now().UTC()
		market = m
		return tx.PutMarket(ctx, m)
	})
	if err != nil {
		return domain.Market{}, fmt.Errorf("engine: burn complete set: %w", err)
	}
	return market, nil
}
