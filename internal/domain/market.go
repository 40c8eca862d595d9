package domain

import "time"

// MarketStatus represents the lifecycle state of a market.
type MarketStatus string

const (
	MarketStatusOpen      MarketStatus = "open"
	MarketStatusResolved  MarketStatus = "resolved"
	MarketStatusCancelled MarketStatus = "cancelled"
)

// Comparator is the five-way comparison applied to an oracle observation
// against the market threshold at resolution time.
type Comparator string

const (
	ComparatorGE Comparator = "GE"
	ComparatorGT Comparator = "GT"
	ComparatorLE Comparator = "LE"
	ComparatorLT Comparator = "LT"
	ComparatorEQ Comparator = "EQ"
)

// Valid reports whether c is one of the five enumerated comparators.
func (c Comparator) Valid() bool {
	switch c {
	case ComparatorGE, ComparatorGT, ComparatorLE, ComparatorLT, ComparatorEQ:
		return true
	}
	return false
}

// Eval applies the comparator to an observed value and the threshold.
// Callers must validate c first; an unknown comparator evaluates to false.
func (c Comparator) Eval(observed, threshold int64) bool {
	switch c {
	case ComparatorGE:
		return observed >= threshold
	case ComparatorGT:
		return observed > threshold
	case ComparatorLE:
		return observed <= threshold
	case ComparatorLT:
		return observed < threshold
	case ComparatorEQ:
		return observed == threshold
	}
	return false
}

// Market is a binary-outcome prediction market. Collateral accounting (vault,
// issued supplies) moves only through complete-set operations; circulating
// supplies additionally move through AMM swaps, so circulating may exceed
// issued. Reserves are virtual AMM quantities, never redeemable collateral.
type Market struct {
	ID               uint64       `json:"id"`
	Question         string       `json:"question"`
	ResolutionHeight uint64       `json:"resolution_height"`
	OracleFeedID     string       `json:"oracle_feed_id"`
	Threshold        int64        `json:"threshold"`
	Comparator       Comparator   `json:"comparator"`
	Creator          string       `json:"creator"`

	Vault     uint64 `json:"vault"`
	YesIssued uint64 `json:"yes_issued"`
	NoIssued  uint64 `json:"no_issued"`

	YesCirculating uint64 `json:"yes_circulating"`
	NoCirculating  uint64 `json:"no_circulating"`

	ReserveYes       uint64 `json:"reserve_yes"`
	ReserveNo        uint64 `json:"reserve_no"`
	InitialLiquidity uint64 `json:"initial_liquidity"`
	FeeBps           uint32 `json:"fee_bps"`
	FeesYes          uint64 `json:"fees_yes"`
	FeesNo           uint64 `json:"fees_no"`

	Resolved  bool  `json:"resolved"`
	Outcome   *bool `json:"outcome,omitempty"`
	Cancelled bool  `json:"cancelled"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Status derives the lifecycle state from the terminal flags.
func (m Market) Status() MarketStatus {
	switch {
	case m.Resolved:
		return MarketStatusResolved
	case m.Cancelled:
		return MarketStatusCancelled
	}
	return MarketStatusOpen
}

// Open reports whether the market still accepts trading operations.
func (m Market) Open() bool {
	return !m.Resolved && !m.Cancelled
}

// Reserve returns the virtual AMM reserve for the given side.
func (m Market) Reserve(s Side) uint64 {
	if s == SideYes {
		return m.ReserveYes
	}
	return m.ReserveNo
}

// SetReserve sets the virtual AMM reserve for the given side.
func (m *Market) SetReserve(s Side, v uint64) {
	if s == SideYes {
		m.ReserveYes = v
	} else {
		m.ReserveNo = v
	}
}

// Circulating returns the outstanding share count for the given side.
func (m Market) Circulating(s Side) uint64 {
	if s == SideYes {
		return m.YesCirculating
	}
	return m.NoCirculating
}

// SetCirculating sets the outstanding share count for the given side.
func (m *Market) SetCirculating(s Side, v uint64) {
	if s == SideYes {
		m.YesCirculating = v
	} else {
		m.NoCirculating = v
	}
}

// AddFees accumulates AMM fees collected on the given side.
func (m *Market) AddFees(s Side, v uint64) {
	if s == SideYes {
		m.FeesYes += v
	} else {
		m.FeesNo += v
	}
}

// WinningSide returns the side that pays out on a resolved market.
// The second return is false while the market is unresolved.
func (m Market) WinningSide() (Side, bool) {
	if !m.Resolved || m.Outcome == nil {
		return SideYes, false
	}
	if *m.Outcome {
		return SideYes, true
	}
	return SideNo, true
}

// RedemptionInfo previews the proportional payout ratio for a market. For
// resolved markets TotalShares is the winning side's circulating supply; for
// cancelled markets it is the combined circulating supply of both sides.
type RedemptionInfo struct {
	MarketID    uint64       `json:"market_id"`
	Status      MarketStatus `json:"status"`
	WinningSide *Side        `json:"winning_side,omitempty"`
	Vault       uint64       `json:"vault"`
	TotalShares uint64       `json:"total_shares"`
	Ratio       float64      `json:"ratio"`
}

// MarketFees reports cumulative AMM fees per side.
type MarketFees struct {
	MarketID uint64 `json:"market_id"`
	FeesYes  uint64 `json:"fees_yes"`
	FeesNo   uint64 `json:"fees_no"`
	FeeBps   uint32 `json:"fee_bps"`
}
