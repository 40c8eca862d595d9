package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/outcomelabs/marketd/internal/domain"
	"github.com/outcomelabs/marketd/internal/engine"
)

// TradeService defines the methods the trade handler requires from the
// service layer.
type TradeService interface {
	MintSet(ctx context.Context, marketID uint64, account string, amount uint64) (domain.Market, error)
	BurnSet(ctx context.Context, marketID uint64, account string, amount uint64) (domain.Market, error)
	Swap(ctx context.Context, marketID uint64, account string, fromSide domain.Side, amountIn uint64) (engine.SwapResult, error)
	Buy(ctx context.Context, marketID uint64, account string, side domain.Side, amount uint64) (engine.BuyResult, error)
	Sell(ctx context.Context, marketID uint64, account string, side domain.Side, amount uint64) (engine.SellResult, error)
}

// TradeHandler serves complete-set and AMM trading endpoints.
type TradeHandler struct {
	trades TradeService
	logger *slog.Logger
}

// NewTradeHandler creates a TradeHandler.
func NewTradeHandler(trades TradeService, logger *slog.Logger) *TradeHandler {
	return &TradeHandler{
		trades: trades,
		logger: logger,
	}
}

// setRequest is the JSON body for mint and burn.
type setRequest struct {
	Account string `json:"account"`
	Amount  uint64 `json:"amount"`
}

// sideRequest is the JSON body for swap, buy, and sell.
type sideRequest struct {
	Account string `json:"account"`
	Side    string `json:"side"`
	Amount  uint64 `json:"amount"`
}

// MintSet locks collateral and mints matched YES/NO share pairs.
// POST /api/markets/{id}/mint
func (h *TradeHandler) MintSet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}

	var req setRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	market, err := h.trades.MintSet(r.Context(), id, req.Account, req.Amount)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, market)
}

// BurnSet burns matched share pairs and releases collateral.
// POST /api/markets/{id}/burn
func (h *TradeHandler) BurnSet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}

	var req setRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	market, err := h.trades.BurnSet(r.Context(), id, req.Account, req.Amount)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, market)
}

// Swap trades shares of one side for the other against the AMM.
// POST /api/markets/{id}/swap
func (h *TradeHandler) Swap(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}

	var req sideRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	side, err := domain.ParseSide(req.Side)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	result, err := h.trades.Swap(r.Context(), id, req.Account, side, req.Amount)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Buy takes a one-sided position funded by collateral.
// POST /api/markets/{id}/buy
func (h *TradeHandler) Buy(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}

	var req sideRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	side, err := domain.ParseSide(req.Side)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	result, err := h.trades.Buy(r.Context(), id, req.Account, side, req.Amount)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Sell converts a one-sided position back into collateral.
// POST /api/markets/{id}/sell
func (h *TradeHandler) Sell(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}

	var req sideRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	side, err := domain.ParseSide(req.Side)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	result, err := h.trades.Sell(r.Context(), id, req.Account, side, req.Amount)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
