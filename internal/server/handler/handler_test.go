package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outcomelabs/marketd/internal/domain"
	"github.com/outcomelabs/marketd/internal/engine"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeMarketService struct {
	createFn  func(ctx context.Context, p engine.CreateMarketParams) (domain.Market, error)
	getFn     func(ctx context.Context, id uint64) (domain.Market, error)
	listFn    func(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error)
	countFn   func(ctx context.Context) (int64, error)
	balanceFn func(ctx context.Context, marketID uint64, account string) (domain.BalancePair, error)
	redeemFn  func(ctx context.Context, marketID uint64) (domain.RedemptionInfo, error)
	feesFn    func(ctx context.Context, marketID uint64) (domain.MarketFees, error)
}

func (f *fakeMarketService) CreateMarket(ctx context.Context, p engine.CreateMarketParams) (domain.Market, error) {
	return f.createFn(ctx, p)
}

func (f *fakeMarketService) GetMarket(ctx context.Context, id uint64) (domain.Market, error) {
	return f.getFn(ctx, id)
}

func (f *fakeMarketService) ListMarkets(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	return f.listFn(ctx, opts)
}

func (f *fakeMarketService) CountMarkets(ctx context.Context) (int64, error) {
	return f.countFn(ctx)
}

func (f *fakeMarketService) GetBalance(ctx context.Context, marketID uint64, account string) (domain.BalancePair, error) {
	return f.balanceFn(ctx, marketID, account)
}

func (f *fakeMarketService) GetRedemptionInfo(ctx context.Context, marketID uint64) (domain.RedemptionInfo, error) {
	return f.redeemFn(ctx, marketID)
}

func (f *fakeMarketService) GetMarketFees(ctx context.Context, marketID uint64) (domain.MarketFees, error) {
	return f.feesFn(ctx, marketID)
}

func marketMux(svc MarketService) *http.ServeMux {
	h := NewMarketHandler(svc, discardLogger())
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/markets", h.CreateMarket)
	mux.HandleFunc("GET /api/markets", h.ListMarkets)
	mux.HandleFunc("GET /api/markets/{id}", h.GetMarket)
	mux.HandleFunc("GET /api/markets/{id}/balances/{account}", h.GetBalance)
	return mux
}

func TestCreateMarket(t *testing.T) {
	svc := &fakeMarketService{
		createFn: func(_ context.Context, p engine.CreateMarketParams) (domain.Market, error) {
			assert.Equal(t, "Will height 1000 observe >= 500?", p.Question)
			assert.Equal(t, uint64(1000), p.ResolutionHeight)
			assert.Equal(t, domain.ComparatorGE, p.Comparator)
			return domain.Market{ID: 1, Question: p.Question, Creator: p.Creator}, nil
		},
	}

	body := `{
		"question": "Will height 1000 observe >= 500?",
		"resolution_height": 1000,
		"oracle_feed_id": "feed-1",
		"threshold": 500,
		"comparator": "ge",
		"initial_liquidity": 100000,
		"fee_bps": 30,
		"creator": "alice"
	}`

	req := httptest.NewRequest(http.MethodPost, "/api/markets", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	marketMux(svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var got domain.Market
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, uint64(1), got.ID)
}

func TestCreateMarketRejectsUnknownFields(t *testing.T) {
	svc := &fakeMarketService{
		createFn: func(context.Context, engine.CreateMarketParams) (domain.Market, error) {
			t.Fatal("service should not be called")
			return domain.Market{}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/markets", bytes.NewBufferString(`{"bogus": true}`))
	rec := httptest.NewRecorder()
	marketMux(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListMarketsPagination(t *testing.T) {
	svc := &fakeMarketService{
		listFn: func(_ context.Context, opts domain.ListOpts) ([]domain.Market, error) {
			assert.Equal(t, 10, opts.Limit)
			assert.Equal(t, 20, opts.Offset)
			assert.Equal(t, domain.MarketStatusOpen, opts.Status)
			return []domain.Market{{ID: 30}}, nil
		},
		countFn: func(context.Context) (int64, error) { return 42, nil },
	}

	req := httptest.NewRequest(http.MethodGet, "/api/markets?limit=10&offset=20&status=open", nil)
	rec := httptest.NewRecorder()
	marketMux(svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var got listMarketsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, int64(42), got.Total)
	require.Len(t, got.Markets, 1)
	assert.Equal(t, uint64(30), got.Markets[0].ID)
}

func TestListMarketsEmptyIsNotNull(t *testing.T) {
	svc := &fakeMarketService{
		listFn: func(context.Context, domain.ListOpts) ([]domain.Market, error) {
			return nil, nil
		},
		countFn: func(context.Context) (int64, error) { return 0, nil },
	}

	req := httptest.NewRequest(http.MethodGet, "/api/markets", nil)
	rec := httptest.NewRecorder()
	marketMux(svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"markets":[]`)
}

func TestGetMarketInvalidID(t *testing.T) {
	svc := &fakeMarketService{
		getFn: func(context.Context, uint64) (domain.Market, error) {
			t.Fatal("service should not be called")
			return domain.Market{}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/markets/notanumber", nil)
	rec := httptest.NewRecorder()
	marketMux(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetBalance(t *testing.T) {
	svc := &fakeMarketService{
		balanceFn: func(_ context.Context, marketID uint64, account string) (domain.BalancePair, error) {
			assert.Equal(t, uint64(7), marketID)
			assert.Equal(t, "alice", account)
			return domain.BalancePair{MarketID: 7, Account: "alice", Yes: 100, No: 50}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/markets/7/balances/alice", nil)
	rec := httptest.NewRecorder()
	marketMux(svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var got domain.BalancePair
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, uint64(100), got.Yes)
	assert.Equal(t, uint64(50), got.No)
}

func TestDomainErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", fmt.Errorf("bad input: %w", domain.ErrValidation), http.StatusBadRequest},
		{"unauthorized", fmt.Errorf("not creator: %w", domain.ErrUnauthorized), http.StatusForbidden},
		{"not found", fmt.Errorf("market 9: %w", domain.ErrNotFound), http.StatusNotFound},
		{"state", fmt.Errorf("market resolved: %w", domain.ErrState), http.StatusConflict},
		{"too early", fmt.Errorf("height 10: %w", domain.ErrTooEarly), http.StatusConflict},
		{"too late", fmt.Errorf("height 99: %w", domain.ErrTooLate), http.StatusConflict},
		{"nothing to redeem", domain.ErrNothingToRedeem, http.StatusConflict},
		{"insufficient", fmt.Errorf("need 100: %w", domain.ErrInsufficientBalance), http.StatusUnprocessableEntity},
		{"lock held", domain.ErrLockHeld, http.StatusTooManyRequests},
		{"external call", fmt.Errorf("oracle: %w", domain.ErrExternalCall), http.StatusBadGateway},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeMarketService{
				getFn: func(context.Context, uint64) (domain.Market, error) {
					return domain.Market{}, tt.err
				},
			}

			req := httptest.NewRequest(http.MethodGet, "/api/markets/1", nil)
			rec := httptest.NewRecorder()
			marketMux(svc).ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestUnknownErrorBodyIsOpaque(t *testing.T) {
	svc := &fakeMarketService{
		getFn: func(context.Context, uint64) (domain.Market, error) {
			return domain.Market{}, fmt.Errorf("pgx: connection refused to 10.0.0.5")
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/markets/1", nil)
	rec := httptest.NewRecorder()
	marketMux(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.5")
}

type fakeTradeService struct {
	mintFn func(ctx context.Context, marketID uint64, account string, amount uint64) (domain.Market, error)
	burnFn func(ctx context.Context, marketID uint64, account string, amount uint64) (domain.Market, error)
	swapFn func(ctx context.Context, marketID uint64, account string, fromSide domain.Side, amountIn uint64) (engine.SwapResult, error)
	buyFn  func(ctx context.Context, marketID uint64, account string, side domain.Side, amount uint64) (engine.BuyResult, error)
	sellFn func(ctx context.Context, marketID uint64, account string, side domain.Side, amount uint64) (engine.SellResult, error)
}

func (f *fakeTradeService) MintSet(ctx context.Context, marketID uint64, account string, amount uint64) (domain.Market, error) {
	return f.mintFn(ctx, marketID, account, amount)
}

func (f *fakeTradeService) BurnSet(ctx context.Context, marketID uint64, account string, amount uint64) (domain.Market, error) {
	return f.burnFn(ctx, marketID, account, amount)
}

func (f *fakeTradeService) Swap(ctx context.Context, marketID uint64, account string, fromSide domain.Side, amountIn uint64) (engine.SwapResult, error) {
	return f.swapFn(ctx, marketID, account, fromSide, amountIn)
}

func (f *fakeTradeService) Buy(ctx context.Context, marketID uint64, account string, side domain.Side, amount uint64) (engine.BuyResult, error) {
	return f.buyFn(ctx, marketID, account, side, amount)
}

func (f *fakeTradeService) Sell(ctx context.Context, marketID uint64, account string, side domain.Side, amount uint64) (engine.SellResult, error) {
	return f.sellFn(ctx, marketID, account, side, amount)
}

func tradeMux(svc TradeService) *http.ServeMux {
	h := NewTradeHandler(svc, discardLogger())
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/markets/{id}/mint", h.MintSet)
	mux.HandleFunc("POST /api/markets/{id}/burn", h.BurnSet)
	mux.HandleFunc("POST /api/markets/{id}/swap", h.Swap)
	mux.HandleFunc("POST /api/markets/{id}/buy", h.Buy)
	mux.HandleFunc("POST /api/markets/{id}/sell", h.Sell)
	return mux
}

func TestMintSet(t *testing.T) {
	svc := &fakeTradeService{
		mintFn: func(_ context.Context, marketID uint64, account string, amount uint64) (domain.Market, error) {
			assert.Equal(t, uint64(3), marketID)
			assert.Equal(t, "alice", account)
			assert.Equal(t, uint64(5000), amount)
			return domain.Market{ID: 3, Vault: 5000}, nil
		},
	}

	body := `{"account": "alice", "amount": 5000}`
	req := httptest.NewRequest(http.MethodPost, "/api/markets/3/mint", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	tradeMux(svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var got domain.Market
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, uint64(5000), got.Vault)
}

func TestSwapParsesSide(t *testing.T) {
	svc := &fakeTradeService{
		swapFn: func(_ context.Context, marketID uint64, account string, fromSide domain.Side, amountIn uint64) (engine.SwapResult, error) {
			assert.Equal(t, domain.SideYes, fromSide)
			return engine.SwapResult{MarketID: marketID, FromSide: fromSide, AmountIn: amountIn, AmountOut: 980}, nil
		},
	}

	body := `{"account": "alice", "side": "yes", "amount": 1000}`
	req := httptest.NewRequest(http.MethodPost, "/api/markets/3/swap", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	tradeMux(svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var got engine.SwapResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, uint64(980), got.AmountOut)
}

func TestSwapRejectsBadSide(t *testing.T) {
	svc := &fakeTradeService{
		swapFn: func(context.Context, uint64, string, domain.Side, uint64) (engine.SwapResult, error) {
			t.Fatal("service should not be called")
			return engine.SwapResult{}, nil
		},
	}

	body := `{"account": "alice", "side": "maybe", "amount": 1000}`
	req := httptest.NewRequest(http.MethodPost, "/api/markets/3/swap", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	tradeMux(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBuyReturnsResult(t *testing.T) {
	svc := &fakeTradeService{
		buyFn: func(_ context.Context, marketID uint64, account string, side domain.Side, amount uint64) (engine.BuyResult, error) {
			return engine.BuyResult{MarketID: marketID, Account: account, Side: side, Spent: amount, Shares: 1950}, nil
		},
	}

	body := `{"account": "bob", "side": "no", "amount": 1000}`
	req := httptest.NewRequest(http.MethodPost, "/api/markets/9/buy", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	tradeMux(svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var got engine.BuyResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, domain.SideNo, got.Side)
	assert.Equal(t, uint64(1950), got.Shares)
}

type fakeSettlementService struct {
	resolveFn       func(ctx context.Context, marketID uint64, observed int64, atHeight uint64) (domain.Market, error)
	resolveOracleFn func(ctx context.Context, marketID uint64) (domain.Market, domain.Observation, error)
	cancelFn        func(ctx context.Context, marketID uint64) (domain.Market, error)
	redeemFn        func(ctx context.Context, marketID uint64, account string) (engine.RedeemResult, error)
	refundFn        func(ctx context.Context, marketID uint64, account string) (engine.RefundResult, error)
}

func (f *fakeSettlementService) Resolve(ctx context.Context, marketID uint64, observed int64, atHeight uint64) (domain.Market, error) {
	return f.resolveFn(ctx, marketID, observed, atHeight)
}

func (f *fakeSettlementService) ResolveFromOracle(ctx context.Context, marketID uint64) (domain.Market, domain.Observation, error) {
	return f.resolveOracleFn(ctx, marketID)
}

func (f *fakeSettlementService) Cancel(ctx context.Context, marketID uint64) (domain.Market, error) {
	return f.cancelFn(ctx, marketID)
}

func (f *fakeSettlementService) Redeem(ctx context.Context, marketID uint64, account string) (engine.RedeemResult, error) {
	return f.redeemFn(ctx, marketID, account)
}

func (f *fakeSettlementService) Refund(ctx context.Context, marketID uint64, account string) (engine.RefundResult, error) {
	return f.refundFn(ctx, marketID, account)
}

func settlementMux(svc SettlementService) *http.ServeMux {
	h := NewSettlementHandler(svc, discardLogger())
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/markets/{id}/resolve", h.Resolve)
	mux.HandleFunc("POST /api/markets/{id}/cancel", h.Cancel)
	mux.HandleFunc("POST /api/markets/{id}/redeem", h.Redeem)
	mux.HandleFunc("POST /api/markets/{id}/refund", h.Refund)
	return mux
}

func TestResolveManual(t *testing.T) {
	svc := &fakeSettlementService{
		resolveFn: func(_ context.Context, marketID uint64, observed int64, atHeight uint64) (domain.Market, error) {
			assert.Equal(t, int64(750), observed)
			assert.Equal(t, uint64(1000), atHeight)
			outcome := true
			return domain.Market{ID: marketID, Resolved: true, Outcome: &outcome}, nil
		},
	}

	body := `{"observed": 750, "at_height": 1000}`
	req := httptest.NewRequest(http.MethodPost, "/api/markets/5/resolve", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	settlementMux(svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var got resolveResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.True(t, got.Market.Resolved)
	assert.Nil(t, got.Observation)
}

func TestResolveFromOracle(t *testing.T) {
	svc := &fakeSettlementService{
		resolveOracleFn: func(_ context.Context, marketID uint64) (domain.Market, domain.Observation, error) {
			outcome := false
			return domain.Market{ID: marketID, Resolved: true, Outcome: &outcome},
				domain.Observation{FeedID: "feed-1", Value: 480, Confidence: 0.9, AsOf: 1001},
				nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/markets/5/resolve", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	settlementMux(svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var got resolveResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.NotNil(t, got.Observation)
	assert.Equal(t, "feed-1", got.Observation.FeedID)
}

func TestResolveRejectsPartialObservation(t *testing.T) {
	svc := &fakeSettlementService{
		resolveFn: func(context.Context, uint64, int64, uint64) (domain.Market, error) {
			t.Fatal("service should not be called")
			return domain.Market{}, nil
		},
		resolveOracleFn: func(context.Context, uint64) (domain.Market, domain.Observation, error) {
			t.Fatal("service should not be called")
			return domain.Market{}, domain.Observation{}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/markets/5/resolve", bytes.NewBufferString(`{"observed": 750}`))
	rec := httptest.NewRecorder()
	settlementMux(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRedeem(t *testing.T) {
	svc := &fakeSettlementService{
		redeemFn: func(_ context.Context, marketID uint64, account string) (engine.RedeemResult, error) {
			assert.Equal(t, "alice", account)
			return engine.RedeemResult{MarketID: marketID, Account: account, SharesBurned: 100, Payout: 97}, nil
		},
	}

	body := `{"account": "alice"}`
	req := httptest.NewRequest(http.MethodPost, "/api/markets/5/redeem", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	settlementMux(svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var got engine.RedeemResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, uint64(97), got.Payout)
}

type fakeAccountService struct {
	depositFn  func(ctx context.Context, account string, amount uint64) (uint64, error)
	withdrawFn func(ctx context.Context, account string, amount uint64) (uint64, error)
	getFn      func(ctx context.Context, account string) (uint64, error)
}

func (f *fakeAccountService) DepositCollateral(ctx context.Context, account string, amount uint64) (uint64, error) {
	return f.depositFn(ctx, account, amount)
}

func (f *fakeAccountService) WithdrawCollateral(ctx context.Context, account string, amount uint64) (uint64, error) {
	return f.withdrawFn(ctx, account, amount)
}

func (f *fakeAccountService) GetCollateral(ctx context.Context, account string) (uint64, error) {
	return f.getFn(ctx, account)
}

func accountMux(svc AccountService) *http.ServeMux {
	h := NewAccountHandler(svc, discardLogger())
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/accounts/{account}/collateral", h.GetCollateral)
	mux.HandleFunc("POST /api/accounts/{account}/deposit", h.Deposit)
	mux.HandleFunc("POST /api/accounts/{account}/withdraw", h.Withdraw)
	return mux
}

func TestDeposit(t *testing.T) {
	svc := &fakeAccountService{
		depositFn: func(_ context.Context, account string, amount uint64) (uint64, error) {
			assert.Equal(t, "alice", account)
			assert.Equal(t, uint64(10000), amount)
			return 10000, nil
		},
	}

	body := `{"amount": 10000}`
	req := httptest.NewRequest(http.MethodPost, "/api/accounts/alice/deposit", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	accountMux(svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var got collateralResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, uint64(10000), got.Collateral)
}

func TestWithdrawInsufficient(t *testing.T) {
	svc := &fakeAccountService{
		withdrawFn: func(context.Context, string, uint64) (uint64, error) {
			return 0, fmt.Errorf("have 5, want 10: %w", domain.ErrInsufficientBalance)
		},
	}

	body := `{"amount": 10}`
	req := httptest.NewRequest(http.MethodPost, "/api/accounts/alice/withdraw", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	accountMux(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestGetCollateral(t *testing.T) {
	svc := &fakeAccountService{
		getFn: func(_ context.Context, account string) (uint64, error) {
			return 7777, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/accounts/alice/collateral", nil)
	rec := httptest.NewRecorder()
	accountMux(svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var got collateralResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, uint64(7777), got.Collateral)
	assert.Equal(t, "alice", got.Account)
}

type fakeEventStore struct {
	msgs []domain.StreamMessage
	err  error
}

func (f *fakeEventStore) StreamRead(_ context.Context, stream, lastID string, count int) ([]domain.StreamMessage, error) {
	return f.msgs, f.err
}

func TestEventsList(t *testing.T) {
	store := &fakeEventStore{
		msgs: []domain.StreamMessage{
			{ID: "1-0", Payload: []byte(`{"type":"market_created"}`)},
			{ID: "2-0", Payload: []byte(`{"type":"set_minted"}`)},
		},
	}

	h := NewEventsHandler(store, discardLogger())
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/events", h.List)

	req := httptest.NewRequest(http.MethodGet, "/api/events?after=0", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var got eventsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Events, 2)
	assert.Equal(t, "1-0", got.Events[0].ID)
	assert.JSONEq(t, `{"type":"market_created"}`, string(got.Events[0].Payload))
}

func TestHealthOK(t *testing.T) {
	checks := map[string]HealthCheckFunc{
		"postgres": func(context.Context) error { return nil },
	}
	h := NewHealthHandler(checks, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	h.HealthCheck(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "ok", got["status"])
	assert.Equal(t, "marketd", got["service"])
	deps, ok := got["dependencies"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ok", deps["postgres"])
}

func TestHealthDegraded(t *testing.T) {
	checks := map[string]HealthCheckFunc{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return fmt.Errorf("connection refused") },
	}
	h := NewHealthHandler(checks, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	h.HealthCheck(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "degraded", got["status"])
	deps, ok := got["dependencies"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ok", deps["postgres"])
	assert.Equal(t, "connection refused", deps["redis"])
}
