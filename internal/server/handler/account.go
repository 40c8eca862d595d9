package handler

import (
	"context"
	"log/slog"
	"net/http"
)

// AccountService defines the methods the account handler requires from the
// service layer.
type AccountService interface {
	DepositCollateral(ctx context.Context, account string, amount uint64) (uint64, error)
	WithdrawCollateral(ctx context.Context, account string, amount uint64) (uint64, error)
	GetCollateral(ctx context.Context, account string) (uint64, error)
}

// ArchiveService triggers archive snapshots and exports of terminal markets.
type ArchiveService interface {
	ArchiveTerminal(ctx context.Context) (int64, error)
	ExportTerminal(ctx context.Context) (string, error)
}

// AccountHandler serves collateral funding endpoints.
type AccountHandler struct {
	accounts AccountService
	logger   *slog.Logger
}

// NewAccountHandler creates an AccountHandler.
func NewAccountHandler(accounts AccountService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		accounts: accounts,
		logger:   logger,
	}
}

// amountRequest is the JSON body for deposits and withdrawals.
type amountRequest struct {
	Amount uint64 `json:"amount"`
}

// collateralResponse reports an account's collateral balance.
type collateralResponse struct {
	Account    string `json:"account"`
	Collateral uint64 `json:"collateral"`
}

// GetCollateral returns an account's collateral balance.
// GET /api/accounts/{account}/collateral
func (h *AccountHandler) GetCollateral(w http.ResponseWriter, r *http.Request) {
	account := pathParam(r, "account")
	if account == "" {
		writeError(w, http.StatusBadRequest, "missing account")
		return
	}

	balance, err := h.accounts.GetCollateral(r.Context(), account)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, collateralResponse{Account: account, Collateral: balance})
}

// Deposit credits an account's collateral balance.
// POST /api/accounts/{account}/deposit
func (h *AccountHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.mutateCollateral(w, r, h.accounts.DepositCollateral)
}

// Withdraw debits an account's collateral balance.
// POST /api/accounts/{account}/withdraw
func (h *AccountHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.mutateCollateral(w, r, h.accounts.WithdrawCollateral)
}

func (h *AccountHandler) mutateCollateral(w http.ResponseWriter, r *http.Request, op func(context.Context, string, uint64) (uint64, error)) {
	account := pathParam(r, "account")
	if account == "" {
		writeError(w, http.StatusBadRequest, "missing account")
		return
	}

	var req amountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	balance, err := op(r.Context(), account, req.Amount)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, collateralResponse{Account: account, Collateral: balance})
}

// ArchiveHandler serves the manual archive trigger.
type ArchiveHandler struct {
	archive ArchiveService
	logger  *slog.Logger
}

// NewArchiveHandler creates an ArchiveHandler.
func NewArchiveHandler(archive ArchiveService, logger *slog.Logger) *ArchiveHandler {
	return &ArchiveHandler{
		archive: archive,
		logger:  logger,
	}
}

// Trigger snapshots every unarchived terminal market.
// POST /api/archive/trigger
func (h *ArchiveHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	count, err := h.archive.ArchiveTerminal(r.Context())
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"archived": count})
}

// Export writes all terminal markets into a single export object.
// POST /api/archive/export
func (h *ArchiveHandler) Export(w http.ResponseWriter, r *http.Request) {
	path, err := h.archive.ExportTerminal(r.Context())
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"path": path})
}
