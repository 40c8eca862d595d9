package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/outcomelabs/marketd/internal/domain"
	"github.com/outcomelabs/marketd/internal/engine"
	"github.com/outcomelabs/marketd/internal/store/memory"
)

type stubHeights struct {
	height uint64
}

func (s *stubHeights) Height(context.Context) (uint64, error) {
	return s.height, nil
}

type captureSink struct {
	mu     sync.Mutex
	events []domain.Event
}

func (c *captureSink) Emit(_ context.Context, evt domain.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
}

func (c *captureSink) types() []domain.EventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.EventType, len(c.events))
	for i, e := range c.events {
		out[i] = e.Type
	}
	return out
}

type fixture struct {
	store   domain.Store
	heights *stubHeights
	sink    *captureSink
	markets *MarketService
	trades  *TradeService
	settle  *SettlementService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.New()
	t.Cleanup(store.Close)

	heights := &stubHeights{height: 10}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	params := engine.DefaultParams()
	params.Owner = "owner"

	eng := engine.New(store, nil, heights, params, logger)
	sink := &captureSink{}
	locks := NewLocalLockManager()

	markets := NewMarketService(eng, nil, sink, logger)
	trades := NewTradeService(eng, markets, locks, sink, logger)
	settle := NewSettlementService(eng, markets, locks, sink, nil, nil, logger)

	return &fixture{
		store:   store,
		heights: heights,
		sink:    sink,
		markets: markets,
		trades:  trades,
		settle:  settle,
	}
}

func (f *fixture) createMarket(t *testing.T) domain.Market {
	t.Helper()
	market, err := f.markets.CreateMarket(context.Background(), engine.CreateMarketParams{
		Question:         "will it settle?",
		ResolutionHeight: 1000,
		OracleFeedID:     "feed-1",
		Threshold:        500,
		Comparator:       domain.ComparatorGE,
		InitialLiquidity: 100_000,
		Creator:          "owner",
	})
	require.NoError(t, err)
	return market
}

func TestTradeFlowEmitsEvents(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	market := f.createMarket(t)

	_, err := f.trades.DepositCollateral(ctx, "alice", 100_000)
	require.NoError(t, err)

	_, err = f.trades.MintSet(ctx, market.ID, "alice", 10_000)
	require.NoError(t, err)

	_, err = f.trades.Swap(ctx, market.ID, "alice", domain.SideNo, 1_000)
	require.NoError(t, err)

	_, err = f.trades.BurnSet(ctx, market.ID, "alice", 5_000)
	require.NoError(t, err)

	require.Equal(t, []domain.EventType{
		domain.EventMarketCreated,
		domain.EventSetMinted,
		domain.EventSwapExecuted,
		domain.EventSetBurned,
	}, f.sink.types())
}

func TestSettlementFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	market := f.createMarket(t)

	_, err := f.trades.DepositCollateral(ctx, "alice", 100_000)
	require.NoError(t, err)
	_, err = f.trades.MintSet(ctx, market.ID, "alice", 10_000)
	require.NoError(t, err)

	f.heights.height = 1000
	resolved, err := f.settle.Resolve(ctx, market.ID, 750, 1000)
	require.NoError(t, err)
	require.True(t, resolved.Resolved)
	require.NotNil(t, resolved.Outcome)
	require.True(t, *resolved.Outcome)

	result, err := f.settle.Redeem(ctx, market.ID, "alice")
	require.NoError(t, err)
	require.Equal(t, uint64(10_000), result.Payout)

	types := f.sink.types()
	require.Contains(t, types, domain.EventMarketResolved)
	require.Contains(t, types, domain.EventRedeemed)
}

func TestCancelAndRefund(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	market := f.createMarket(t)

	_, err := f.trades.DepositCollateral(ctx, "alice", 100_000)
	require.NoError(t, err)
	_, err = f.trades.MintSet(ctx, market.ID, "alice", 4_000)
	require.NoError(t, err)

	// Past resolution window plus cancel timeout.
	f.heights.height = 1102
	cancelled, err := f.settle.Cancel(ctx, market.ID)
	require.NoError(t, err)
	require.True(t, cancelled.Cancelled)

	result, err := f.settle.Refund(ctx, market.ID, "alice")
	require.NoError(t, err)
	require.Equal(t, uint64(4_000), result.Refund)

	require.Contains(t, f.sink.types(), domain.EventMarketCancelled)
	require.Contains(t, f.sink.types(), domain.EventRefunded)
}

func TestMarketLockBlocksConcurrentMutation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	market := f.createMarket(t)

	locks := NewLocalLockManager()
	unlock, err := locks.Acquire(ctx, marketLockKey(market.ID), lockTTL)
	require.NoError(t, err)

	_, err = locks.Acquire(ctx, marketLockKey(market.ID), lockTTL)
	require.ErrorIs(t, err, domain.ErrLockHeld)

	unlock()
	unlock() // safe to call twice

	unlock2, err := locks.Acquire(ctx, marketLockKey(market.ID), lockTTL)
	require.NoError(t, err)
	unlock2()
}

func TestFanoutSkipsNilSinks(t *testing.T) {
	a := &captureSink{}
	b := &captureSink{}
	f := NewFanout(a, nil, b)

	f.Emit(context.Background(), domain.Event{Type: domain.EventRedeemed, At: time.Now()})
	require.Len(t, a.events, 1)
	require.Len(t, b.events, 1)
}
