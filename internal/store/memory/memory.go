// Package memory implements domain.Store with in-process maps. It backs the
// dev mode and the engine test suite; the postgres store is the production
// backend. Writes are staged per transaction and merged only when the
// transaction function returns nil, giving the same all-or-nothing semantics
// as a database transaction. A single mutex serializes all transactions.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/outcomelabs/marketd/internal/domain"
)

type balanceKey struct {
	marketID uint64
	account  string
	side     domain.Side
}

// Store is an in-memory implementation of domain.Store.
type Store struct {
	mu         sync.Mutex
	markets    map[uint64]domain.Market
	balances   map[balanceKey]uint64
	collateral map[string]uint64
	nextID     uint64
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		markets:    make(map[uint64]domain.Market),
		balances:   make(map[balanceKey]uint64),
		collateral: make(map[string]uint64),
		nextID:     1,
	}
}

// Update runs fn in a transaction and merges its writes only on success.
func (s *Store) Update(ctx context.Context, fn func(domain.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := newTx(s)
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

// View runs fn against a read snapshot. Writes made by fn are discarded.
func (s *Store) View(ctx context.Context, fn func(domain.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(newTx(s))
}

// Close releases nothing; it exists to satisfy domain.Store.
func (s *Store) Close() {}

// tx stages writes on top of the store's base maps.
type tx struct {
	s          *Store
	markets    map[uint64]domain.Market
	balances   map[balanceKey]uint64
	collateral map[string]uint64
	nextID     uint64
	idTaken    bool
}

func newTx(s *Store) *tx {
	return &tx{
		s:          s,
		markets:    make(map[uint64]domain.Market),
		balances:   make(map[balanceKey]uint64),
		collateral: make(map[string]uint64),
		nextID:     s.nextID,
	}
}

func (t *tx) commit() {
	for id, m := range t.markets {
		t.s.markets[id] = m
	}
	for k, v := range t.balances {
		if v == 0 {
			delete(t.s.balances, k)
		} else {
			t.s.balances[k] = v
		}
	}
	for k, v := range t.collateral {
		if v == 0 {
			delete(t.s.collateral, k)
		} else {
			t.s.collateral[k] = v
		}
	}
	if t.idTaken {
		t.s.nextID = t.nextID
	}
}

func (t *tx) NextMarketID(ctx context.Context) (uint64, error) {
	id := t.nextID
	t.nextID++
	t.idTaken = true
	return id, nil
}

func (t *tx) GetMarket(ctx context.Context, id uint64) (domain.Market, error) {
	if m, ok := t.markets[id]; ok {
		return m, nil
	}
	if m, ok := t.s.markets[id]; ok {
		return m, nil
	}
	return domain.Market{}, fmt.Errorf("%w: market %d", domain.ErrNotFound, id)
}

func (t *tx) PutMarket(ctx context.Context, m domain.Market) error {
	t.markets[m.ID] = m
	return nil
}

func (t *tx) ListMarkets(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	seen := make(map[uint64]bool, len(t.markets))
	var all []domain.Market
	for id, m := range t.markets {
		seen[id] = true
		all = append(all, m)
	}
	for id, m := range t.s.markets {
		if !seen[id] {
			all = append(all, m)
		}
	}

	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })

	var out []domain.Market
	skipped := 0
	for _, m := range all {
		if opts.Status != "" && m.Status() != opts.Status {
			continue
		}
		if skipped < opts.Offset {
			skipped++
			continue
		}
		out = append(out, m)
		if opts.Limit > 0 && len(out) >= opts.Limit {
			break
		}
	}
	return out, nil
}

func (t *tx) CountMarkets(ctx context.Context) (int64, error) {
	count := int64(len(t.s.markets))
	for id := range t.markets {
		if _, ok := t.s.markets[id]; !ok {
			count++
		}
	}
	return count, nil
}

func (t *tx) Balance(ctx context.Context, marketID uint64, account string, side domain.Side) (uint64, error) {
	k := balanceKey{marketID, account, side}
	if v, ok := t.balances[k]; ok {
		return v, nil
	}
	return t.s.balances[k], nil
}

func (t *tx) SetBalance(ctx context.Context, marketID uint64, account string, side domain.Side, amount uint64) error {
	t.balances[balanceKey{marketID, account, side}] = amount
	return nil
}

func (t *tx) Collateral(ctx context.Context, account string) (uint64, error) {
	if v, ok := t.collateral[account]; ok {
		return v, nil
	}
	return t.s.collateral[account], nil
}

func (t *tx) SetCollateral(ctx context.Context, account string, amount uint64) error {
	t.collateral[account] = amount
	return nil
}

var _ domain.Store = (*Store)(nil)
