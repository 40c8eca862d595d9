package domain

import "context"

// ListOpts provides pagination and filtering for market list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Status MarketStatus // empty means all
}

// Tx is the view of engine state inside one transaction. All keys are
// explicit: markets by id, share balances by (market, account, side), and
// collateral accounts by account name. Absent entries read as zero; writing
// a zero balance deletes the entry.
type Tx interface {
	NextMarketID(ctx context.Context) (uint64, error)
	GetMarket(ctx context.Context, id uint64) (Market, error)
	PutMarket(ctx context.Context, m Market) error
	ListMarkets(ctx context.Context, opts ListOpts) ([]Market, error)
	CountMarkets(ctx context.Context) (int64, error)

	Balance(ctx context.Context, marketID uint64, account string, side Side) (uint64, error)
	SetBalance(ctx context.Context, marketID uint64, account string, side Side, amount uint64) error

	Collateral(ctx context.Context, account string) (uint64, error)
	SetCollateral(ctx context.Context, account string, amount uint64) error
}

// Store runs functions against engine state with all-or-nothing semantics.
// Update applies every write made by fn or none of them; View is read-only.
// Operations on the store are serialized by the implementation, so the
// engine itself performs no locking.
type Store interface {
	Update(ctx context.Context, fn func(Tx) error) error
	View(ctx context.Context, fn func(Tx) error) error
	Close()
}
