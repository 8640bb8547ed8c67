// Package analytics aggregates per-symbol book statistics into periodic
// snapshots for the OLAP sink. The recorder runs inside the tick loop but
// only ever hands snapshots to a non-blocking sink, so a slow or dead
// analytics store can never stall the simulation.
package analytics

import (
	"time"

	"prism-sim/market"
	"prism-sim/orderbook"
)

// Snapshot is one analytics record per symbol per flush window.
type Snapshot struct {
	ID        uint64    `gorm:"column:id;primaryKey;autoIncrement" yaml:"-"`
	Symbol    string    `gorm:"column:symbol;index"`
	Timestamp time.Time `gorm:"column:ts;index"`
	Tick      uint64    `gorm:"column:tick"`
	BestBid   float64   `gorm:"column:best_bid"`
	BestAsk   float64   `gorm:"column:best_ask"`
	Spread    float64   `gorm:"column:spread"`
	CumVolume float64   `gorm:"column:cum_volume"`
	FillCount uint64    `gorm:"column:fill_count"`
	// Depth aggregated over the configured number of levels per side.
	DepthLevels int     `gorm:"column:depth_levels"`
	BidDepth    float64 `gorm:"column:bid_depth"`
	AskDepth    float64 `gorm:"column:ask_depth"`
	Imbalance   float64 `gorm:"column:imbalance"`
	// OHLCV over the flush window; zero when the window saw no trades.
	Open         float64 `gorm:"column:open"`
	High         float64 `gorm:"column:high"`
	Low          float64 `gorm:"column:low"`
	Close        float64 `gorm:"column:close"`
	WindowVolume float64 `gorm:"column:window_volume"`
}

// TableName 指定 OLAP 库中的目标表。
func (Snapshot) TableName() string { return "market_snapshots" }

// SnapshotSink accepts snapshots without blocking; the analytics sink's
// drop-oldest queue sits behind this.
type SnapshotSink interface {
	Enqueue(Snapshot)
}

// BookStats is the per-tick input the recorder samples from the engine.
type BookStats struct {
	CumVolume float64
	FillCount uint64
}

// Recorder captures a Snapshot every flushInterval ticks.
type Recorder struct {
	symbol        string
	flushInterval uint64
	depthLevels   int
	agg           *market.KlineAggregator
	sink          SnapshotSink
	now           func() time.Time
}

func NewRecorder(symbol string, flushInterval uint64, depthLevels int, sink SnapshotSink) *Recorder {
	if flushInterval == 0 {
		flushInterval = 1
	}
	if depthLevels <= 0 {
		depthLevels = 5
	}
	return &Recorder{
		symbol:        symbol,
		flushInterval: flushInterval,
		depthLevels:   depthLevels,
		agg:           market.NewKlineAggregator(),
		sink:          sink,
		now:           time.Now,
	}
}

// SetClock 注入时间源，便于测试。
func (r *Recorder) SetClock(now func() time.Time) { r.now = now }

// OnFill feeds the window's OHLCV aggregation.
func (r *Recorder) OnFill(f orderbook.Fill) {
	r.agg.OnTrade(f.Price, f.Qty)
}

// Observe is called once per tick; on flush boundaries it builds a snapshot
// and hands it to the sink. Returns the snapshot for observability, nil on
// non-flush ticks.
func (r *Recorder) Observe(tick uint64, book *orderbook.Book, stats BookStats) *Snapshot {
	if tick == 0 || tick%r.flushInterval != 0 {
		return nil
	}
	bid, _ := book.BestBid()
	ask, _ := book.BestAsk()
	snap := Snapshot{
		Symbol:      r.symbol,
		Timestamp:   r.now(),
		Tick:        tick,
		BestBid:     bid,
		BestAsk:     ask,
		Spread:      book.Spread(),
		CumVolume:   stats.CumVolume,
		FillCount:   stats.FillCount,
		DepthLevels: r.depthLevels,
		BidDepth:    book.DepthQty(orderbook.BUY, r.depthLevels),
		AskDepth:    book.DepthQty(orderbook.SELL, r.depthLevels),
	}
	snap.Imbalance = market.CalculateImbalance(snap.BidDepth, snap.AskDepth)
	if k, ok := r.agg.Flush(); ok {
		snap.Open, snap.High, snap.Low, snap.Close = k.Open, k.High, k.Low, k.Close
		snap.WindowVolume = k.Volume
	}
	if r.sink != nil {
		r.sink.Enqueue(snap)
	}
	return &snap
}
