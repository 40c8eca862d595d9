package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/outcomelabs/marketd/internal/domain"
)

const eventsStream = "events"

// EventStore reads durable event history.
type EventStore interface {
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]domain.StreamMessage, error)
}

// EventsHandler serves the durable event history endpoint.
type EventsHandler struct {
	events EventStore
	logger *slog.Logger
}

// NewEventsHandler creates an EventsHandler.
func NewEventsHandler(events EventStore, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{
		events: events,
		logger: logger,
	}
}

type eventEntry struct {
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

type eventsResponse struct {
	Events []eventEntry `json:"events"`
}

// List returns events appended after the given stream id.
// GET /api/events?after=0&limit=100
func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	after := r.URL.Query().Get("after")
	if after == "" {
		after = "0"
	}

	opts := parseListOpts(r)

	msgs, err := h.events.StreamRead(r.Context(), eventsStream, after, opts.Limit)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	entries := make([]eventEntry, 0, len(msgs))
	for _, m := range msgs {
		entries = append(entries, eventEntry{ID: m.ID, Payload: json.RawMessage(m.Payload)})
	}

	writeJSON(w, http.StatusOK, eventsResponse{Events: entries})
}
