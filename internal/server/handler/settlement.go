package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/outcomelabs/marketd/internal/domain"
	"github.com/outcomelabs/marketd/internal/engine"
)

// SettlementService defines the methods the settlement handler requires
// from the service layer.
type SettlementService interface {
	Resolve(ctx context.Context, marketID uint64, observed int64, atHeight uint64) (domain.Market, error)
	ResolveFromOracle(ctx context.Context, marketID uint64) (domain.Market, domain.Observation, error)
	Cancel(ctx context.Context, marketID uint64) (domain.Market, error)
	Redeem(ctx context.Context, marketID uint64, account string) (engine.RedeemResult, error)
	Refund(ctx context.Context, marketID uint64, account string) (engine.RefundResult, error)
}

// SettlementHandler serves resolution, cancellation, and payout endpoints.
type SettlementHandler struct {
	settle SettlementService
	logger *slog.Logger
}

// NewSettlementHandler creates a SettlementHandler.
func NewSettlementHandler(settle SettlementService, logger *slog.Logger) *SettlementHandler {
	return &SettlementHandler{
		settle: settle,
		logger: logger,
	}
}

// resolveRequest is the JSON body for manual resolution. When Observed and
// AtHeight are both absent the market's configured oracle feed is consulted
// instead.
type resolveRequest struct {
	Observed *int64  `json:"observed,omitempty"`
	AtHeight *uint64 `json:"at_height,omitempty"`
}

// resolveResponse reports the settled market and, for oracle-driven
// resolution, the observation used.
type resolveResponse struct {
	Market      domain.Market       `json:"market"`
	Observation *domain.Observation `json:"observation,omitempty"`
}

// Resolve settles a market, either from an explicit observation or from the
// market's oracle feed.
// POST /api/markets/{id}/resolve
func (h *SettlementHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}

	var req resolveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if req.Observed == nil != (req.AtHeight == nil) {
		writeError(w, http.StatusBadRequest, "observed and at_height must be provided together")
		return
	}

	if req.Observed != nil {
		market, err := h.settle.Resolve(r.Context(), id, *req.Observed, *req.AtHeight)
		if err != nil {
			writeDomainError(w, h.logger, r, err)
			return
		}
		writeJSON(w, http.StatusOK, resolveResponse{Market: market})
		return
	}

	market, obs, err := h.settle.ResolveFromOracle(r.Context(), id)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resolveResponse{Market: market, Observation: &obs})
}

// Cancel voids a market whose resolution window elapsed without settlement.
// POST /api/markets/{id}/cancel
func (h *SettlementHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}

	market, err := h.settle.Cancel(r.Context(), id)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, market)
}

// accountRequest is the JSON body for redeem and refund.
type accountRequest struct {
	Account string `json:"account"`
}

// Redeem pays out an account's winning-side position on a resolved market.
// POST /api/markets/{id}/redeem
func (h *SettlementHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}

	var req accountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	result, err := h.settle.Redeem(r.Context(), id, req.Account)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Refund returns an account's proportional vault share on a cancelled market.
// POST /api/markets/{id}/refund
func (h *SettlementHandler) Refund(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}

	var req accountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	result, err := h.settle.Refund(r.Context(), id, req.Account)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
