package sim

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// State is the simulation lifecycle phase.
type State int32

const (
	StateInit State = iota
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

var (
	ErrNotRunning     = errors.New("simulation is not running")
	ErrAlreadyStarted = errors.New("simulation already started")
)

// HealthReporter 汇报某条下游链路是否健康。
type HealthReporter interface {
	Healthy() bool
}

// Simulation drives every symbol runner on its own goroutine at a shared
// tick interval. Transitions are one way: init -> running -> stopping ->
// stopped. A stopping world always finishes its in-flight tick, so no fill
// is half settled at shutdown.
type Simulation struct {
	runners  []*SymbolRunner
	interval time.Duration
	maxTicks uint64
	log      *zap.Logger

	state  atomic.Int32
	stopCh chan struct{}
	wg     sync.WaitGroup

	mu       sync.Mutex
	health   map[string]HealthReporter
	shutdown []func(context.Context) error
}

// SymbolStatus 单个标的的运行状态。
type SymbolStatus struct {
	Tick      uint64
	Fills     uint64
	CumVolume float64
	Rejected  uint64
	Agents    map[string]int
}

// Status 整体状态快照，供运维接口与日志使用。
type Status struct {
	State   string
	Symbols map[string]SymbolStatus
	Sinks   map[string]bool
}

func NewSimulation(runners []*SymbolRunner, tickInterval time.Duration, maxTicks uint64, log *zap.Logger) *Simulation {
	if log == nil {
		log = zap.NewNop()
	}
	return &Simulation{
		runners:  runners,
		interval: tickInterval,
		maxTicks: maxTicks,
		log:      log,
		stopCh:   make(chan struct{}),
		health:   make(map[string]HealthReporter),
	}
}

// RegisterHealth 注册一条需要出现在 Status 里的链路。
func (s *Simulation) RegisterHealth(name string, h HealthReporter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.health[name] = h
}

// OnShutdown registers a hook run during Stop, in registration order. Sinks
// register their Close here so the final flush happens after the last tick.
func (s *Simulation) OnShutdown(fn func(context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdown = append(s.shutdown, fn)
}

// State 返回当前生命周期阶段。
func (s *Simulation) State() State { return State(s.state.Load()) }

// Start launches the per-symbol tick loops. Valid only from init.
func (s *Simulation) Start() error {
	if !s.state.CompareAndSwap(int32(StateInit), int32(StateRunning)) {
		return ErrAlreadyStarted
	}
	for _, r := range s.runners {
		if r.Engine().AgentCount() == 0 {
			// 无 agent 的标的只记录一次，不起循环
			s.log.Warn("symbol has no agents, skipping", zap.String("symbol", r.Symbol))
			continue
		}
		s.wg.Add(1)
		go s.loop(r)
	}
	s.log.Info("simulation started",
		zap.Int("symbols", len(s.runners)),
		zap.Duration("tick_interval", s.interval),
		zap.Uint64("max_ticks", s.maxTicks))
	return nil
}

func (s *Simulation) loop(r *SymbolRunner) {
	defer s.wg.Done()
	var ticker *time.Ticker
	if s.interval > 0 {
		ticker = time.NewTicker(s.interval)
		defer ticker.Stop()
	}
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}
		r.Step()
		if s.maxTicks > 0 && r.Tick() >= s.maxTicks {
			s.log.Info("symbol reached max ticks",
				zap.String("symbol", r.Symbol),
				zap.Uint64("ticks", r.Tick()))
			return
		}
		if ticker != nil {
			select {
			case <-s.stopCh:
				return
			case <-ticker.C:
			}
		}
	}
}

// Wait blocks until every symbol loop has exited (max ticks reached or the
// simulation was stopped).
func (s *Simulation) Wait() {
	s.wg.Wait()
}

// Stop transitions running -> stopping, waits for in-flight ticks, runs the
// shutdown hooks and lands in stopped. Safe to call once; ctx bounds the
// hook phase (sink flushes).
func (s *Simulation) Stop(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		return ErrNotRunning
	}
	s.log.Info("simulation stopping")
	close(s.stopCh)
	s.wg.Wait()

	s.mu.Lock()
	hooks := make([]func(context.Context) error, len(s.shutdown))
	copy(hooks, s.shutdown)
	s.mu.Unlock()

	var firstErr error
	for _, fn := range hooks {
		if err := fn(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.state.Store(int32(StateStopped))
	s.log.Info("simulation stopped")
	return firstErr
}

// Status 汇总全部标的与链路的状态。
func (s *Simulation) Status() Status {
	st := Status{
		State:   s.State().String(),
		Symbols: make(map[string]SymbolStatus, len(s.runners)),
		Sinks:   make(map[string]bool),
	}
	for _, r := range s.runners {
		st.Symbols[r.Symbol] = SymbolStatus{
			Tick:      r.Tick(),
			Fills:     r.Engine().FillCount(),
			CumVolume: r.Engine().CumVolume(),
			Rejected:  r.Engine().RejectedCount(),
			Agents:    r.Engine().AgentCountByKind(),
		}
	}
	s.mu.Lock()
	names := make([]string, 0, len(s.health))
	for name := range s.health {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		st.Sinks[name] = s.health[name].Healthy()
	}
	s.mu.Unlock()
	return st
}
