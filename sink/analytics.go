package sink

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"

	"prism-sim/analytics"
)

// SnapshotWriter bulk-inserts one batch into the OLAP store.
type SnapshotWriter interface {
	WriteBatch(ctx context.Context, batch []analytics.Snapshot) error
}

// AnalyticsSinkConfig 控制缓冲、批量与刷新节奏。
type AnalyticsSinkConfig struct {
	QueueSize    int   `yaml:"queueSize"`
	BatchSize    int   `yaml:"batchSize"`
	FlushEveryMs int64 `yaml:"flushEveryMs"`
	// MaxRetryElapsedMs bounds how long one batch is retried before it goes
	// back to the queue (where overflow may drop it).
	MaxRetryElapsedMs int64 `yaml:"maxRetryElapsedMs"`
	UnhealthyAfter    int   `yaml:"unhealthyAfter"`
}

func (c *AnalyticsSinkConfig) defaults() {
	if c.QueueSize <= 0 {
		c.QueueSize = 1024
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.FlushEveryMs <= 0 {
		c.FlushEveryMs = 2000
	}
	if c.MaxRetryElapsedMs <= 0 {
		c.MaxRetryElapsedMs = 10000
	}
	if c.UnhealthyAfter <= 0 {
		c.UnhealthyAfter = 3
	}
}

func (c *AnalyticsSinkConfig) flushEvery() time.Duration {
	return time.Duration(c.FlushEveryMs) * time.Millisecond
}

func (c *AnalyticsSinkConfig) maxRetryElapsed() time.Duration {
	return time.Duration(c.MaxRetryElapsedMs) * time.Millisecond
}

// AnalyticsSink is the best-effort pipeline. Enqueue never blocks: when the
// bounded buffer is full the oldest snapshot is dropped and counted. A
// failing store therefore backs pressure into the buffer, not into the
// simulation.
type AnalyticsSink struct {
	cfg    AnalyticsSinkConfig
	writer SnapshotWriter
	log    *zap.Logger

	mu    sync.Mutex
	queue []analytics.Snapshot

	notify   chan struct{}
	stop     chan struct{}
	wg       sync.WaitGroup
	closed   atomic.Bool
	written  atomic.Uint64
	dropped  atomic.Uint64
	failures atomic.Int64 // consecutive batch failures
}

func NewAnalyticsSink(writer SnapshotWriter, cfg AnalyticsSinkConfig, log *zap.Logger) *AnalyticsSink {
	cfg.defaults()
	if log == nil {
		log = zap.NewNop()
	}
	s := &AnalyticsSink{
		cfg:    cfg,
		writer: writer,
		log:    log,
		queue:  make([]analytics.Snapshot, 0, cfg.QueueSize),
		notify: make(chan struct{}, 1),
		stop:   make(chan struct{}),
	}
	s.wg.Add(1)
	go s.run()
	return s
}

// Enqueue buffers one snapshot, dropping the oldest entry on overflow.
func (s *AnalyticsSink) Enqueue(snap analytics.Snapshot) {
	if s.closed.Load() {
		return
	}
	s.mu.Lock()
	if len(s.queue) >= s.cfg.QueueSize {
		s.queue = s.queue[1:]
		s.dropped.Add(1)
	}
	s.queue = append(s.queue, snap)
	full := len(s.queue) >= s.cfg.BatchSize
	s.mu.Unlock()

	if full {
		select {
		case s.notify <- struct{}{}:
		default:
		}
	}
}

func (s *AnalyticsSink) run() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.flushEvery())
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
		case <-s.notify:
		}
		s.flushOnce(context.Background())
	}
}

// flushOnce takes one batch off the queue and writes it with bounded
// retries. On final failure the batch is put back at the head so overflow
// trims the oldest data first.
func (s *AnalyticsSink) flushOnce(ctx context.Context) {
	s.mu.Lock()
	if len(s.queue) == 0 {
		s.mu.Unlock()
		return
	}
	n := len(s.queue)
	if n > s.cfg.BatchSize {
		n = s.cfg.BatchSize
	}
	batch := make([]analytics.Snapshot, n)
	copy(batch, s.queue[:n])
	s.queue = s.queue[n:]
	s.mu.Unlock()

	boff := backoff.NewExponentialBackOff()
	boff.MaxElapsedTime = s.cfg.maxRetryElapsed()
	err := backoff.Retry(func() error {
		return s.writer.WriteBatch(ctx, batch)
	}, backoff.WithContext(boff, ctx))
	if err != nil {
		fails := s.failures.Add(1)
		s.log.Warn("analytics batch failed, requeueing",
			zap.Int("batch", len(batch)),
			zap.Int64("consecutive_failures", fails),
			zap.Error(err))
		s.requeue(batch)
		return
	}
	s.failures.Store(0)
	s.written.Add(uint64(len(batch)))
}

func (s *AnalyticsSink) requeue(batch []analytics.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(batch, s.queue...)
	if over := len(s.queue) - s.cfg.QueueSize; over > 0 {
		s.queue = s.queue[over:]
		s.dropped.Add(uint64(over))
	}
}

// Healthy reports whether recent batches are landing.
func (s *AnalyticsSink) Healthy() bool {
	return s.failures.Load() < int64(s.cfg.UnhealthyAfter)
}

// Written 返回成功写入的快照数。
func (s *AnalyticsSink) Written() uint64 { return s.written.Load() }

// Dropped 返回因溢出丢弃的快照数。
func (s *AnalyticsSink) Dropped() uint64 { return s.dropped.Load() }

// Pending 返回当前缓冲的快照数。
func (s *AnalyticsSink) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Close stops the worker and attempts one final bounded flush of whatever
// is buffered. Best-effort: ctx expiry abandons the remainder.
func (s *AnalyticsSink) Close(ctx context.Context) error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(s.stop)
	s.wg.Wait()

	for {
		s.mu.Lock()
		remaining := len(s.queue)
		s.mu.Unlock()
		if remaining == 0 {
			return nil
		}
		if ctx.Err() != nil {
			s.log.Warn("abandoning buffered analytics on shutdown",
				zap.Int("remaining", remaining))
			return ctx.Err()
		}
		before := s.written.Load()
		s.flushOnce(ctx)
		if s.written.Load() == before {
			// The store is still down; don't spin on it.
			s.log.Warn("final analytics flush failed",
				zap.Int("remaining", remaining))
			return nil
		}
	}
}
