package domain

import "time"

// EventType classifies engine lifecycle events.
type EventType string

const (
	EventMarketCreated   EventType = "market_created"
	EventSetMinted       EventType = "set_minted"
	EventSetBurned       EventType = "set_burned"
	EventSwapExecuted    EventType = "swap_executed"
	EventMarketResolved  EventType = "market_resolved"
	EventMarketCancelled EventType = "market_cancelled"
	EventRedeemed        EventType = "redeemed"
	EventRefunded        EventType = "refunded"
)

// Event is emitted after an engine operation commits. Detail carries
// operation-specific fields (amounts, sides, outcome).
type Event struct {
	Type     EventType      `json:"type"`
	MarketID uint64         `json:"market_id"`
	Account  string         `json:"account,omitempty"`
	Detail   map[string]any `json:"detail,omitempty"`
	At       time.Time      `json:"at"`
}
