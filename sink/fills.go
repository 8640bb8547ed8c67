// Package sink hosts the two persistence pipelines. Both run off the
// critical tick path on background workers consuming bounded queues, with
// different backpressure contracts: the fills queue blocks and retries
// (lossless), the analytics queue drops oldest on overflow (best effort).
package sink

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"

	"prism-sim/orderbook"
)

// FillRecord is the wire shape appended to the time-series store, one per
// fill.
type FillRecord struct {
	Symbol      string
	Price       float64
	Quantity    float64
	BuyOrderID  string
	SellOrderID string
	TimestampNs int64
}

// FillWriter appends one record to the backing time-series store.
type FillWriter interface {
	Append(ctx context.Context, rec FillRecord) error
}

// FillsSinkConfig 控制队列大小与重试/健康策略。
type FillsSinkConfig struct {
	QueueSize int `yaml:"queueSize"`
	// MaxRetryIntervalMs caps the exponential backoff between attempts.
	MaxRetryIntervalMs int64 `yaml:"maxRetryIntervalMs"`
	// UnhealthyAfter is the consecutive-failure count that trips Healthy().
	UnhealthyAfter int `yaml:"unhealthyAfter"`
}

func (c *FillsSinkConfig) defaults() {
	if c.QueueSize <= 0 {
		c.QueueSize = 4096
	}
	if c.MaxRetryIntervalMs <= 0 {
		c.MaxRetryIntervalMs = 5000
	}
	if c.UnhealthyAfter <= 0 {
		c.UnhealthyAfter = 3
	}
}

func (c *FillsSinkConfig) maxRetryInterval() time.Duration {
	return time.Duration(c.MaxRetryIntervalMs) * time.Millisecond
}

// FillsSink is the lossless pipeline: every fill is eventually appended.
// Enqueue blocks once the bounded queue is full, and the worker retries a
// failing write indefinitely with capped backoff. A persistent outage
// surfaces through Healthy(), never as a dropped record or a crash.
type FillsSink struct {
	cfg    FillsSinkConfig
	writer FillWriter
	log    *zap.Logger

	ch       chan FillRecord
	wg       sync.WaitGroup
	cancel   context.CancelFunc
	closed   atomic.Bool
	written  atomic.Uint64
	failures atomic.Int64 // consecutive
}

func NewFillsSink(writer FillWriter, cfg FillsSinkConfig, log *zap.Logger) *FillsSink {
	cfg.defaults()
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &FillsSink{
		cfg:    cfg,
		writer: writer,
		log:    log,
		ch:     make(chan FillRecord, cfg.QueueSize),
		cancel: cancel,
	}
	s.wg.Add(1)
	go s.run(ctx)
	return s
}

// Enqueue converts and queues one fill. It blocks when the queue is full;
// the fills pipeline trades latency for losslessness by contract.
func (s *FillsSink) Enqueue(f orderbook.Fill) {
	if s.closed.Load() {
		return
	}
	s.ch <- FillRecord{
		Symbol:      f.Symbol,
		Price:       f.Price,
		Quantity:    f.Qty,
		BuyOrderID:  f.BuyOrderID,
		SellOrderID: f.SellOrderID,
		TimestampNs: f.TimestampNs,
	}
}

func (s *FillsSink) run(ctx context.Context) {
	defer s.wg.Done()
	for rec := range s.ch {
		s.writeWithRetry(ctx, rec)
	}
}

func (s *FillsSink) writeWithRetry(ctx context.Context, rec FillRecord) {
	boff := backoff.NewExponentialBackOff()
	boff.MaxInterval = s.cfg.maxRetryInterval()
	boff.MaxElapsedTime = 0 // retry until the write lands or we shut down

	op := func() error {
		err := s.writer.Append(ctx, rec)
		if err != nil {
			n := s.failures.Add(1)
			if n == int64(s.cfg.UnhealthyAfter) {
				s.log.Error("fills sink unhealthy",
					zap.Int64("consecutive_failures", n),
					zap.Error(err))
			} else {
				s.log.Warn("fills append failed, retrying", zap.Error(err))
			}
			return err
		}
		s.failures.Store(0)
		s.written.Add(1)
		return nil
	}
	// BackOffContext stops retrying on shutdown so Close cannot hang on a
	// dead store; the undelivered record is counted against health.
	if err := backoff.Retry(op, backoff.WithContext(boff, ctx)); err != nil {
		s.log.Error("fill not persisted before shutdown",
			zap.String("symbol", rec.Symbol),
			zap.Error(err))
	}
}

// Healthy reports whether the last writes are landing.
func (s *FillsSink) Healthy() bool {
	return s.failures.Load() < int64(s.cfg.UnhealthyAfter)
}

// Written 返回成功落库的记录数。
func (s *FillsSink) Written() uint64 { return s.written.Load() }

// Pending 返回仍在队列中的记录数。
func (s *FillsSink) Pending() int { return len(s.ch) }

// Close drains the queue and stops the worker. ctx bounds how long the
// drain may take against a failing store.
func (s *FillsSink) Close(ctx context.Context) error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(s.ch)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel() // abort in-flight retries
		<-done
		return ctx.Err()
	}
}
