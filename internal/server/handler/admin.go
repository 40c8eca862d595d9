package handler

import (
	"log/slog"
	"net/http"
)

// ManualOracle is the admin surface of the static observation source used in
// development deployments: the current height and feed values are set by
// hand instead of polled from a feed service.
type ManualOracle interface {
	SetHeight(h uint64)
	SetFeed(feedID string, value int64)
}

// AdminHandler serves the manual oracle endpoints. It is registered only
// when the oracle source is static.
type AdminHandler struct {
	oracle ManualOracle
	logger *slog.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(oracle ManualOracle, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		oracle: oracle,
		logger: logger,
	}
}

type setHeightRequest struct {
	Height uint64 `json:"height"`
}

// SetHeight advances the manual height clock. Lowering the height is
// silently ignored by the source; heights only move forward.
// POST /api/admin/height
func (h *AdminHandler) SetHeight(w http.ResponseWriter, r *http.Request) {
	var req setHeightRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	h.oracle.SetHeight(req.Height)
	h.logger.InfoContext(r.Context(), "manual height set", slog.Uint64("height", req.Height))

	writeJSON(w, http.StatusOK, map[string]uint64{"height": req.Height})
}

type setFeedRequest struct {
	Value int64 `json:"value"`
}

// SetFeed sets the value served for one feed.
// POST /api/admin/feeds/{id}
func (h *AdminHandler) SetFeed(w http.ResponseWriter, r *http.Request) {
	feedID := pathParam(r, "id")
	if feedID == "" {
		writeError(w, http.StatusBadRequest, "missing feed id")
		return
	}

	var req setFeedRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	h.oracle.SetFeed(feedID, req.Value)
	h.logger.InfoContext(r.Context(), "manual feed set",
		slog.String("feed_id", feedID),
		slog.Int64("value", req.Value),
	)

	writeJSON(w, http.StatusOK, map[string]any{"feed_id": feedID, "value": req.Value})
}
