package sink

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"prism-sim/analytics"
)

// NopFillWriter discards fills; used when no time-series store is
// configured (dry runs, determinism checks).
type NopFillWriter struct{}

func (NopFillWriter) Append(context.Context, FillRecord) error { return nil }

// NopSnapshotWriter discards snapshots.
type NopSnapshotWriter struct{}

func (NopSnapshotWriter) WriteBatch(context.Context, []analytics.Snapshot) error { return nil }

// LogFillWriter 将每笔成交打到日志，供 dry-run 观察。
type LogFillWriter struct {
	Log *zap.Logger
}

func (w LogFillWriter) Append(_ context.Context, rec FillRecord) error {
	w.Log.Info("fill",
		zap.String("symbol", rec.Symbol),
		zap.Float64("price", rec.Price),
		zap.Float64("quantity", rec.Quantity),
		zap.String("buy_order_id", rec.BuyOrderID),
		zap.String("sell_order_id", rec.SellOrderID),
		zap.Int64("timestamp_ns", rec.TimestampNs))
	return nil
}

// LogSnapshotWriter 将快照批次打到日志。
type LogSnapshotWriter struct {
	Log *zap.Logger
}

func (w LogSnapshotWriter) WriteBatch(_ context.Context, batch []analytics.Snapshot) error {
	for _, s := range batch {
		w.Log.Info("snapshot",
			zap.String("symbol", s.Symbol),
			zap.Uint64("tick", s.Tick),
			zap.Float64("best_bid", s.BestBid),
			zap.Float64("best_ask", s.BestAsk),
			zap.Float64("spread", s.Spread),
			zap.Float64("cum_volume", s.CumVolume),
			zap.Uint64("fill_count", s.FillCount))
	}
	return nil
}

// MemoryFillWriter collects records in memory; test double.
type MemoryFillWriter struct {
	mu   sync.Mutex
	recs []FillRecord
}

func (w *MemoryFillWriter) Append(_ context.Context, rec FillRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.recs = append(w.recs, rec)
	return nil
}

func (w *MemoryFillWriter) Records() []FillRecord {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]FillRecord, len(w.recs))
	copy(out, w.recs)
	return out
}

// MemorySnapshotWriter collects snapshot batches in memory; test double.
type MemorySnapshotWriter struct {
	mu    sync.Mutex
	snaps []analytics.Snapshot
}

func (w *MemorySnapshotWriter) WriteBatch(_ context.Context, batch []analytics.Snapshot) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.snaps = append(w.snaps, batch...)
	return nil
}

func (w *MemorySnapshotWriter) Snapshots() []analytics.Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]analytics.Snapshot, len(w.snaps))
	copy(out, w.snaps)
	return out
}
