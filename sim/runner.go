// Package sim owns the simulation lifecycle: it assembles one world per
// symbol, drives the shared tick loop and exposes the state machine that
// cmd/prism runs. Each symbol advances independently on its own goroutine;
// nothing is shared between symbol worlds except the sinks.
package sim

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"prism-sim/analytics"
	"prism-sim/engine"
	"prism-sim/market"
	"prism-sim/metrics"
	"prism-sim/orderbook"
	"prism-sim/posttrade"
	"prism-sim/risk"
)

// SymbolRunner 将价格过程->流动性->撮合->分析串成单个 tick。
type SymbolRunner struct {
	Symbol string

	price    *market.PriceProcess
	vol      *market.VolEstimator
	liq      *market.LiquidityModel
	book     *orderbook.Book
	engine   *engine.Engine
	recorder *analytics.Recorder
	breaker  *risk.CircuitBreaker
	markout  *posttrade.Analyzer
	log      *zap.Logger

	tick         atomic.Uint64
	lastRejected uint64
	nowNs        func() int64
}

func NewSymbolRunner(symbol string, price *market.PriceProcess, vol *market.VolEstimator,
	liq *market.LiquidityModel, book *orderbook.Book, eng *engine.Engine,
	rec *analytics.Recorder, log *zap.Logger) *SymbolRunner {
	if log == nil {
		log = zap.NewNop()
	}
	return &SymbolRunner{
		Symbol:   symbol,
		price:    price,
		vol:      vol,
		liq:      liq,
		book:     book,
		engine:   eng,
		recorder: rec,
		log:      log,
		nowNs:    func() int64 { return time.Now().UnixNano() },
	}
}

// SetClock 注入时间源，便于测试。
func (r *SymbolRunner) SetClock(nowNs func() int64) {
	r.nowNs = nowNs
	r.book.SetClock(nowNs)
}

// SetCircuitBreaker 启用熔断：触发后暂停撮合若干 tick。
func (r *SymbolRunner) SetCircuitBreaker(cb *risk.CircuitBreaker) { r.breaker = cb }

// SetMarkoutAnalyzer attaches post-trade markout tracking; the analyzer's
// OnFill must already be registered with the engine.
func (r *SymbolRunner) SetMarkoutAnalyzer(a *posttrade.Analyzer) { r.markout = a }

// MarkoutStats 返回事后成交质量统计；仅在模拟停止后读取。
func (r *SymbolRunner) MarkoutStats() posttrade.Stats {
	if r.markout == nil {
		return posttrade.Stats{}
	}
	return r.markout.Stats()
}

// Engine exposes the matching engine for fill-handler registration.
func (r *SymbolRunner) Engine() *engine.Engine { return r.engine }

// Book exposes the symbol's order book.
func (r *SymbolRunner) Book() *orderbook.Book { return r.book }

// Tick 返回已执行的 tick 数。
func (r *SymbolRunner) Tick() uint64 { return r.tick.Load() }

// Step advances the world by exactly one tick: new reference price, updated
// volatility, a fresh market state for the agents, one engine pass, one
// recorder observation. Deterministic given the seeds wired at build time.
func (r *SymbolRunner) Step() []orderbook.Fill {
	start := time.Now()
	tick := r.tick.Add(1)

	mid := r.price.Advance()
	r.vol.AddPrice(mid)
	vol := r.vol.Realized()

	bestBid, _ := r.book.BestBid()
	bestAsk, _ := r.book.BestAsk()
	st := market.State{
		Symbol:      r.Symbol,
		Tick:        tick,
		Mid:         mid,
		Vol:         vol,
		BestBid:     bestBid,
		BestAsk:     bestAsk,
		Spread:      r.book.Spread(),
		TimestampNs: r.nowNs(),
	}

	var fills []orderbook.Fill
	halted := false
	if r.breaker != nil {
		var window string
		halted, window = r.breaker.OnTick(tick, mid)
		if window != "" {
			r.log.Warn("circuit breaker tripped, halting matching",
				zap.String("symbol", r.Symbol),
				zap.String("window", window),
				zap.Uint64("tick", tick),
				zap.Float64("mid", mid))
		}
	}
	if !halted {
		fills = r.engine.Tick(st)
	}

	if r.markout != nil {
		r.markout.OnTick(tick, mid)
	}
	if r.recorder != nil {
		r.recorder.Observe(tick, r.book, analytics.BookStats{
			CumVolume: r.engine.CumVolume(),
			FillCount: r.engine.FillCount(),
		})
	}

	metrics.TicksTotal.WithLabelValues(r.Symbol).Inc()
	if n := len(fills); n > 0 {
		metrics.FillsTotal.WithLabelValues(r.Symbol).Add(float64(n))
	}
	if rej := r.engine.RejectedCount(); rej > r.lastRejected {
		metrics.RejectedOrdersTotal.WithLabelValues(r.Symbol).Add(float64(rej - r.lastRejected))
		r.lastRejected = rej
	}
	metrics.UpdateBookMetrics(r.Symbol, mid, r.book.Spread())
	metrics.TickDuration.WithLabelValues(r.Symbol).Observe(time.Since(start).Seconds())
	return fills
}
