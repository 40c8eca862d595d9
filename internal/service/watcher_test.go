package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/outcomelabs/marketd/internal/domain"
	"github.com/outcomelabs/marketd/internal/engine"
	"github.com/outcomelabs/marketd/internal/store/memory"
)

type stubOracle struct {
	obs domain.Observation
	err error
}

func (s *stubOracle) GetObservation(context.Context, string) (domain.Observation, error) {
	return s.obs, s.err
}

type watcherFixture struct {
	*fixture
	oracle  *stubOracle
	watcher *SettlementWatcher
}

func newWatcherFixture(t *testing.T) *watcherFixture {
	t.Helper()

	store := memory.New()
	t.Cleanup(store.Close)

	heights := &stubHeights{height: 10}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	src := &stubOracle{}

	params := engine.DefaultParams()
	params.Owner = "owner"

	eng := engine.New(store, src, heights, params, logger)
	sink := &captureSink{}
	locks := NewLocalLockManager()

	markets := NewMarketService(eng, nil, sink, logger)
	trades := NewTradeService(eng, markets, locks, sink, logger)
	settle := NewSettlementService(eng, markets, locks, sink, nil, nil, logger)

	f := &fixture{
		store:   store,
		heights: heights,
		sink:    sink,
		markets: markets,
		trades:  trades,
		settle:  settle,
	}

	watcher := NewSettlementWatcher(
		settle, markets, heights,
		params.ResolutionWindow, params.CancelTimeout,
		time.Second, logger,
	)

	return &watcherFixture{fixture: f, oracle: src, watcher: watcher}
}

func TestWatcherResolvesDueMarket(t *testing.T) {
	ctx := context.Background()
	f := newWatcherFixture(t)
	market := f.createMarket(t)

	f.oracle.obs = domain.Observation{
		FeedID:     "feed-1",
		Value:      750,
		Confidence: 1.0,
		AsOf:       1000,
	}
	f.heights.height = 1000

	require.NoError(t, f.watcher.Sweep(ctx))

	got, err := f.markets.GetMarket(ctx, market.ID)
	require.NoError(t, err)
	require.True(t, got.Resolved)
	require.NotNil(t, got.Outcome)
	require.True(t, *got.Outcome)
}

func TestWatcherLeavesEarlyMarketOpen(t *testing.T) {
	ctx := context.Background()
	f := newWatcherFixture(t)
	market := f.createMarket(t)

	f.heights.height = 999

	require.NoError(t, f.watcher.Sweep(ctx))

	got, err := f.markets.GetMarket(ctx, market.ID)
	require.NoError(t, err)
	require.True(t, got.Open())
}

func TestWatcherDefersOnLowConfidence(t *testing.T) {
	ctx := context.Background()
	f := newWatcherFixture(t)
	market := f.createMarket(t)

	f.oracle.obs = domain.Observation{
		FeedID:     "feed-1",
		Value:      750,
		Confidence: 0.1,
		AsOf:       1000,
	}
	f.heights.height = 1000

	require.NoError(t, f.watcher.Sweep(ctx))

	got, err := f.markets.GetMarket(ctx, market.ID)
	require.NoError(t, err)
	require.True(t, got.Open())
}

func TestWatcherCancelsOverdueMarket(t *testing.T) {
	ctx := context.Background()
	f := newWatcherFixture(t)
	market := f.createMarket(t)

	// Past resolution_height + window + cancel_timeout.
	f.heights.height = 1102

	require.NoError(t, f.watcher.Sweep(ctx))

	got, err := f.markets.GetMarket(ctx, market.ID)
	require.NoError(t, err)
	require.True(t, got.Cancelled)
}
