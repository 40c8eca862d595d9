package engine

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/outcomelabs/marketd/internal/domain"
	"github.com/outcomelabs/marketd/internal/store/memory"
)

type stubHeights struct {
	height uint64
	err    error
}

func (s *stubHeights) Height(ctx context.Context) (uint64, error) {
	return s.height, s.err
}

type stubOracle struct {
	obs domain.Observation
	err error
}

func (s *stubOracle) GetObservation(ctx context.Context, feedID string) (domain.Observation, error) {
	return s.obs, s.err
}

type testEnv struct {
	engine  *Engine
	store   *memory.Store
	heights *stubHeights
	oracle  *stubOracle
}

func testParams() Params {
	p := DefaultParams()
	p.Owner = "owner"
	p.Creators = []string{"alice"}
	return p
}

func newTestEnv(t *testing.T, params Params) *testEnv {
	t.Helper()
	store := memory.New()
	heights := &stubHeights{height: 10}
	oracle := &stubOracle{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &testEnv{
		engine:  New(store, oracle, heights, params, logger),
		store:   store,
		heights: heights,
		oracle:  oracle,
	}
}

// newFundedMarket creates a market with the given fee and gives each listed
// account plenty of collateral.
func (env *testEnv) newFundedMarket(t *testing.T, feeBps uint32, accounts ...string) domain.Market {
	t.Helper()
	ctx := context.Background()
	m, err := env.engine.CreateMarket(ctx, CreateMarketParams{
		Question:         "will the observed value clear the threshold",
		ResolutionHeight: 1000,
		OracleFeedID:     "feed-1",
		Threshold:        500,
		Comparator:       domain.ComparatorGE,
		InitialLiquidity: 100_000,
		FeeBps:           feeBps,
		Creator:          "owner",
	})
	require.NoError(t, err)
	for _, acct := range accounts {
		_, err := env.engine.DepositCollateral(ctx, acct, 1_000_000)
		require.NoError(t, err)
	}
	return m
}

// setMarket rewrites market fields directly in the store, bypassing the
// engine, to stage states (like fee over-issuance) without replaying the
// swap history that produces them.
func (env *testEnv) setMarket(t *testing.T, marketID uint64, mutate func(*domain.Market)) {
	t.Helper()
	err := env.store.Update(context.Background(), func(tx domain.Tx) error {
		m, err := tx.GetMarket(context.Background(), marketID)
		if err != nil {
			return err
		}
		mutate(&m)
		return tx.PutMarket(context.Background(), m)
	})
	require.NoError(t, err)
}

// setBalance writes a share balance directly, bypassing the ledger.
func (env *testEnv) setBalance(t *testing.T, marketID uint64, account string, side domain.Side, amount uint64) {
	t.Helper()
	err := env.store.Update(context.Background(), func(tx domain.Tx) error {
		return tx.SetBalance(context.Background(), marketID, account, side, amount)
	})
	require.NoError(t, err)
}

// checkInvariants verifies the at-rest accounting identities for a market:
// issued supplies match each other and the vault, reserves stay positive
// while the market is open, and each circulating counter equals the sum of
// the named accounts' balances on that side.
func (env *testEnv) checkInvariants(t *testing.T, marketID uint64, accounts ...string) {
	t.Helper()
	ctx := context.Background()

	m, err := env.engine.GetMarket(ctx, marketID)
	require.NoError(t, err)

	require.Equal(t, m.YesIssued, m.NoIssued, "issued supplies must match")
	require.Equal(t, m.Vault, m.YesIssued, "vault must back issued shares 1:1")
	if m.Open() {
		require.Positive(t, m.ReserveYes, "yes reserve must stay positive")
		require.Positive(t, m.ReserveNo, "no reserve must stay positive")
	}

	var sumYes, sumNo uint64
	for _, acct := range accounts {
		pair, err := env.engine.GetBalance(ctx, marketID, acct)
		require.NoError(t, err)
		sumYes += pair.Yes
		sumNo += pair.No
	}
	require.Equal(t, sumYes, m.YesCirculating, "yes circulating must equal balance sum")
	require.Equal(t, sumNo, m.NoCirculating, "no circulating must equal balance sum")
}

func TestDepositWithdrawCollateral(t *testing.T) {
	env := newTestEnv(t, testParams())
	ctx := context.Background()

	bal, err := env.engine.DepositCollateral(ctx, "bob", 500)
	require.NoError(t, err)
	require.Equal(t, uint64(500), bal)

	bal, err = env.engine.WithdrawCollateral(ctx, "bob", 200)
	require.NoError(t, err)
	require.Equal(t, uint64(300), bal)

	_, err = env.engine.WithdrawCollateral(ctx, "bob", 301)
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)

	_, err = env.engine.DepositCollateral(ctx, "bob", 0)
	require.ErrorIs(t, err, domain.ErrValidation)
}
