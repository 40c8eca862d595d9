package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/outcomelabs/marketd/internal/domain"
)

// Store implements domain.Store on top of a PostgreSQL connection pool.
// Update calls are serialized with a process-local mutex so the engine's
// read-modify-write transactions never race each other; the daemon is the
// sole writer of its database.
type Store struct {
	pool *pgxpool.Pool
	mu   sync.Mutex
}

// NewStore creates a Store backed by the given client.
func NewStore(client *Client) *Store {
	return &Store{pool: client.Pool()}
}

var _ domain.Store = (*Store)(nil)

// Update runs fn inside a read-write transaction. On error every write is
// rolled back, including market id allocation.
func (s *Store) Update(ctx context.Context, fn func(domain.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run(ctx, pgx.TxOptions{}, fn)
}

// View runs fn inside a read-only transaction.
func (s *Store) View(ctx context.Context, fn func(domain.Tx) error) error {
	return s.run(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly}, fn)
}

func (s *Store) run(ctx context.Context, opts pgx.TxOptions, fn func(domain.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}

	if err := fn(&pgTx{tx: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit tx: %w", err)
	}
	return nil
}

// Close releases the pool. The pool is owned by the Client, so Close here is
// a no-op; callers close the Client instead.
func (s *Store) Close() {}

// pgTx adapts a pgx transaction to domain.Tx.
type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) NextMarketID(ctx context.Context) (uint64, error) {
	var id int64
	err := t.tx.QueryRow(ctx,
		`UPDATE counters SET value = value + 1 WHERE name = 'market_id' RETURNING value`,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("postgres: next market id: %w", err)
	}
	return uint64(id), nil
}

const marketCols = `id, question, resolution_height, oracle_feed_id, threshold,
	comparator, creator, vault, yes_issued, no_issued,
	yes_circulating, no_circulating, reserve_yes, reserve_no,
	initial_liquidity, fee_bps, fees_yes, fees_no,
	resolved, outcome, cancelled, created_at, updated_at`

func scanMarket(row pgx.Row) (domain.Market, error) {
	var m domain.Market
	var comparator string
	err := row.Scan(
		&m.ID, &m.Question, &m.ResolutionHeight, &m.OracleFeedID, &m.Threshold,
		&comparator, &m.Creator, &m.Vault, &m.YesIssued, &m.NoIssued,
		&m.YesCirculating, &m.NoCirculating, &m.ReserveYes, &m.ReserveNo,
		&m.InitialLiquidity, &m.FeeBps, &m.FeesYes, &m.FeesNo,
		&m.Resolved, &m.Outcome, &m.Cancelled, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return domain.Market{}, err
	}
	m.Comparator = domain.Comparator(comparator)
	return m, nil
}

func (t *pgTx) GetMarket(ctx context.Context, id uint64) (domain.Market, error) {
	row := t.tx.QueryRow(ctx,
		`SELECT `+marketCols+` FROM markets WHERE id = $1`, id)
	m, err := scanMarket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market %d: %w", id, err)
	}
	return m, nil
}

func (t *pgTx) PutMarket(ctx context.Context, m domain.Market) error {
	const query = `
		INSERT INTO markets (
			id, question, resolution_height, oracle_feed_id, threshold,
			comparator, creator, vault, yes_issued, no_issued,
			yes_circulating, no_circulating, reserve_yes, reserve_no,
			initial_liquidity, fee_bps, fees_yes, fees_no,
			resolved, outcome, cancelled, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12, $13, $14,
			$15, $16, $17, $18,
			$19, $20, $21, $22, NOW()
		)
		ON CONFLICT (id) DO UPDATE SET
			vault           = EXCLUDED.vault,
			yes_issued      = EXCLUDED.yes_issued,
			no_issued       = EXCLUDED.no_issued,
			yes_circulating = EXCLUDED.yes_circulating,
			no_circulating  = EXCLUDED.no_circulating,
			reserve_yes     = EXCLUDED.reserve_yes,
			reserve_no      = EXCLUDED.reserve_no,
			fees_yes        = EXCLUDED.fees_yes,
			fees_no         = EXCLUDED.fees_no,
			resolved        = EXCLUDED.resolved,
			outcome         = EXCLUDED.outcome,
			cancelled       = EXCLUDED.cancelled,
			updated_at      = NOW()`

	_, err := t.tx.Exec(ctx, query,
		m.ID, m.Question, m.ResolutionHeight, m.OracleFeedID, m.Threshold,
		string(m.Comparator), m.Creator, m.Vault, m.YesIssued, m.NoIssued,
		m.YesCirculating, m.NoCirculating, m.ReserveYes, m.ReserveNo,
		m.InitialLiquidity, m.FeeBps, m.FeesYes, m.FeesNo,
		m.Resolved, m.Outcome, m.Cancelled, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: put market %d: %w", m.ID, err)
	}
	return nil
}

func (t *pgTx) ListMarkets(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	query := `SELECT ` + marketCols + ` FROM markets`
	args := []any{}
	argIdx := 1

	switch opts.Status {
	case domain.MarketStatusOpen:
		query += " WHERE NOT resolved AND NOT cancelled"
	case domain.MarketStatusResolved:
		query += " WHERE resolved"
	case domain.MarketStatusCancelled:
		query += " WHERE cancelled"
	}

	query += " ORDER BY id DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list markets: %w", err)
	}
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list markets rows: %w", err)
	}
	return markets, nil
}

func (t *pgTx) CountMarkets(ctx context.Context) (int64, error) {
	var count int64
	if err := t.tx.QueryRow(ctx, "SELECT COUNT(*) FROM markets").Scan(&count); err != nil {
		return 0, fmt.Errorf("postgres: count markets: %w", err)
	}
	return count, nil
}

func (t *pgTx) Balance(ctx context.Context, marketID uint64, account string, side domain.Side) (uint64, error) {
	var amount uint64
	err := t.tx.QueryRow(ctx,
		`SELECT amount FROM balances WHERE market_id = $1 AND account = $2 AND side = $3`,
		marketID, account, string(side),
	).Scan(&amount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("postgres: balance %d/%s/%s: %w", marketID, account, side, err)
	}
	return amount, nil
}

func (t *pgTx) SetBalance(ctx context.Context, marketID uint64, account string, side domain.Side, amount uint64) error {
	if amount == 0 {
		_, err := t.tx.Exec(ctx,
			`DELETE FROM balances WHERE market_id = $1 AND account = $2 AND side = $3`,
			marketID, account, string(side))
		if err != nil {
			return fmt.Errorf("postgres: delete balance %d/%s/%s: %w", marketID, account, side, err)
		}
		return nil
	}

	_, err := t.tx.Exec(ctx, `
		INSERT INTO balances (market_id, account, side, amount)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (market_id, account, side) DO UPDATE SET amount = EXCLUDED.amount`,
		marketID, account, string(side), amount)
	if err != nil {
		return fmt.Errorf("postgres: set balance %d/%s/%s: %w", marketID, account, side, err)
	}
	return nil
}

func (t *pgTx) Collateral(ctx context.Context, account string) (uint64, error) {
	var amount uint64
	err := t.tx.QueryRow(ctx,
		`SELECT amount FROM collateral_accounts WHERE account = $1`, account,
	).Scan(&amount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("postgres: collateral %s: %w", account, err)
	}
	return amount, nil
}

func (t *pgTx) SetCollateral(ctx context.Context, account string, amount uint64) error {
	if amount == 0 {
		_, err := t.tx.Exec(ctx,
			`DELETE FROM collateral_accounts WHERE account = $1`, account)
		if err != nil {
			return fmt.Errorf("postgres: delete collateral %s: %w", account, err)
		}
		return nil
	}

	_, err := t.tx.Exec(ctx, `
		INSERT INTO collateral_accounts (account, amount)
		VALUES ($1, $2)
		ON CONFLICT (account) DO UPDATE SET amount = EXCLUDED.amount`,
		account, amount)
	if err != nil {
		return fmt.Errorf("postgres: set collateral %s: %w", account, err)
	}
	return nil
}
