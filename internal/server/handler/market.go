package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/outcomelabs/marketd/internal/domain"
	"github.com/outcomelabs/marketd/internal/engine"
)

// MarketService defines the methods the market handler requires from the
// service layer.
type MarketService interface {
	CreateMarket(ctx context.Context, p engine.CreateMarketParams) (domain.Market, error)
	GetMarket(ctx context.Context, id uint64) (domain.Market, error)
	ListMarkets(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error)
	CountMarkets(ctx context.Context) (int64, error)
	GetBalance(ctx context.Context, marketID uint64, account string) (domain.BalancePair, error)
	GetRedemptionInfo(ctx context.Context, marketID uint64) (domain.RedemptionInfo, error)
	GetMarketFees(ctx context.Context, marketID uint64) (domain.MarketFees, error)
}

// MarketHandler serves market registry and query endpoints.
type MarketHandler struct {
	markets MarketService
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(markets MarketService, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		markets: markets,
		logger:  logger,
	}
}

// createMarketRequest is the JSON body for market creation.
type createMarketRequest struct {
	Question         string `json:"question"`
	ResolutionHeight uint64 `json:"resolution_height"`
	OracleFeedID     string `json:"oracle_feed_id"`
	Threshold        int64  `json:"threshold"`
	Comparator       string `json:"comparator"`
	InitialLiquidity uint64 `json:"initial_liquidity"`
	FeeBps           uint32 `json:"fee_bps"`
	Creator          string `json:"creator"`
}

// CreateMarket opens a new market.
// POST /api/markets
func (h *MarketHandler) CreateMarket(w http.ResponseWriter, r *http.Request) {
	var req createMarketRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	market, err := h.markets.CreateMarket(r.Context(), engine.CreateMarketParams{
		Question:         req.Question,
		ResolutionHeight: req.ResolutionHeight,
		OracleFeedID:     req.OracleFeedID,
		Threshold:        req.Threshold,
		Comparator:       domain.Comparator(strings.ToUpper(req.Comparator)),
		InitialLiquidity: req.InitialLiquidity,
		FeeBps:           req.FeeBps,
		Creator:          req.Creator,
	})
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, market)
}

// listMarketsResponse wraps the list endpoint output with metadata.
type listMarketsResponse struct {
	Markets []domain.Market `json:"markets"`
	Total   int64           `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

// ListMarkets returns markets with pagination and optional status filter.
// GET /api/markets?limit=50&offset=0&status=open
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	markets, err := h.markets.ListMarkets(r.Context(), opts)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	if markets == nil {
		markets = []domain.Market{}
	}

	total, err := h.markets.CountMarkets(r.Context())
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, listMarketsResponse{
		Markets: markets,
		Total:   total,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
	})
}

// GetMarket returns a single market by id.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}

	market, err := h.markets.GetMarket(r.Context(), id)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, market)
}

// GetBalance returns an account's yes/no share balances on a market.
// GET /api/markets/{id}/balances/{account}
func (h *MarketHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}
	account := pathParam(r, "account")
	if account == "" {
		writeError(w, http.StatusBadRequest, "missing account")
		return
	}

	balance, err := h.markets.GetBalance(r.Context(), id, account)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, balance)
}

// GetRedemptionInfo previews the proportional payout ratio for a market.
// GET /api/markets/{id}/redemption
func (h *MarketHandler) GetRedemptionInfo(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}

	info, err := h.markets.GetRedemptionInfo(r.Context(), id)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, info)
}

// GetFees reports cumulative AMM fees for a market.
// GET /api/markets/{id}/fees
func (h *MarketHandler) GetFees(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}

	fees, err := h.markets.GetMarketFees(r.Context(), id)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, fees)
}
