package model

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Signal is the outcome of one strategy evaluation. It is produced once per
// bar and consumed immediately by the order executor.
type Signal struct {
	Do     bool   `json:"do"`
	Side   Side   `json:"side"`
	Qty    int    `json:"qty"`
	Symbol string `json:"symbol,omitempty"`
}

// NoAction is the signal emitted when a bar does not qualify for a trade.
func NoAction() Signal {
	return Signal{Do: false, Side: SideBuy}
}

// SignedQty converts side plus unsigned quantity into a signed position
// delta (positive long, negative short).
func (s Signal) SignedQty() int {
	if s.Side == SideSell {
		return -s.Qty
	}
	return s.Qty
}
