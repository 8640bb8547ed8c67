package orderbook

type Side string

const (
	BUY  Side = "BUY"
	SELL Side = "SELL"
)

// Opposite 返回对手方向。
func (s Side) Opposite() Side {
	if s == BUY {
		return SELL
	}
	return BUY
}

type OrderType string

const (
	LIMIT  OrderType = "LIMIT"
	MARKET OrderType = "MARKET"
)

// MarketOrderPolicy controls what happens to a market order that exhausts
// all resting liquidity before it is fully filled.
type MarketOrderPolicy string

const (
	// PartialFill keeps whatever fills were produced and cancels the
	// remainder (default).
	PartialFill MarketOrderPolicy = "partial"
	// RejectUnfillable refuses the whole order unless the opposing side has
	// enough resting quantity to fill it completely; a refused order produces
	// no fills.
	RejectUnfillable MarketOrderPolicy = "reject"
)

// Order is a limit or market order owned by the book once submitted.
// Remaining is mutated only by the matching pass; everything else is
// immutable after Submit.
type Order struct {
	ID        string
	Symbol    string
	Side      Side
	Type      OrderType
	Price     float64 // ignored for MARKET
	Qty       float64
	Remaining float64
	AgentID   string
	Seq       uint64 // arrival sequence, assigned by the book
}

// Fill is the immutable record of one trade between two orders.
// Buy/Sell agent IDs are carried so the execution engine can settle both
// accounts without a lookup table.
type Fill struct {
	ID          uint64
	Symbol      string
	BuyOrderID  string
	SellOrderID string
	BuyAgentID  string
	SellAgentID string
	Price       float64
	Qty         float64
	Tick        uint64
	TimestampNs int64
}

// Level is one aggregated price level, best price first in Depth results.
type Level struct {
	Price float64
	Qty   float64
}
