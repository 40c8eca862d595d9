package domain

import "fmt"

// Side identifies one leg of a binary market.
type Side string

const (
	SideYes Side = "yes"
	SideNo  Side = "no"
)

// ParseSide converts a wire string into a Side.
func ParseSide(s string) (Side, error) {
	switch Side(s) {
	case SideYes:
		return SideYes, nil
	case SideNo:
		return SideNo, nil
	}
	return "", fmt.Errorf("%w: unknown side %q", ErrValidation, s)
}

// Other returns the opposite side.
func (s Side) Other() Side {
	if s == SideYes {
		return SideNo
	}
	return SideYes
}

// Valid reports whether s is yes or no.
func (s Side) Valid() bool {
	return s == SideYes || s == SideNo
}

// BalancePair holds one account's share balances on both sides of a market.
type BalancePair struct {
	MarketID uint64 `json:"market_id"`
	Account  string `json:"account"`
	Yes      uint64 `json:"yes"`
	No       uint64 `json:"no"`
}
