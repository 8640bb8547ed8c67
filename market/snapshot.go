package market

// State is the read-only per-tick view handed to agents. Agents never see
// the order book itself; mutating the book is the execution engine's job.
type State struct {
	Symbol      string
	Tick        uint64
	Mid         float64
	Vol         float64
	BestBid     float64
	BestAsk     float64
	Spread      float64
	TimestampNs int64
}
