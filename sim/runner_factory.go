package sim

import (
	"fmt"

	"go.uber.org/zap"

	"prism-sim/agent"
	"prism-sim/analytics"
	"prism-sim/config"
	"prism-sim/engine"
	"prism-sim/market"
	"prism-sim/orderbook"
	"prism-sim/posttrade"
	"prism-sim/risk"
)

// BuildRunner 基于配置组装一个标的的完整世界。
// 同一 (seed, symbol) 组合产生的随机源完全一致，保证回放可复现。
func BuildRunner(symbol string, sc config.SymbolConfig, app config.AppConfig,
	snapSink analytics.SnapshotSink, log *zap.Logger) (*SymbolRunner, error) {
	if log == nil {
		log = zap.NewNop()
	}
	baseSeed := app.Seed + symbolSeed(symbol)
	constraints := sc.Constraints()

	price := market.NewPriceProcess(sc.Price, baseSeed)
	volWindow := sc.Price.ReturnWindow
	if volWindow < 2 {
		volWindow = 20
	}
	vol := market.NewVolEstimator(volWindow)
	liq := market.NewLiquidityModel(sc.Liquidity)

	book := orderbook.New(symbol, orderbook.MarketOrderPolicy(app.MarketOrderPolicy))

	agents, err := buildAgents(symbol, sc, price, liq, baseSeed, constraints)
	if err != nil {
		return nil, err
	}

	eng := engine.New(symbol, book, agents,
		engine.SubmissionPolicy(app.SubmissionPolicy), baseSeed+1, log)

	var rec *analytics.Recorder
	if snapSink != nil {
		rec = analytics.NewRecorder(symbol, app.AnalyticsFlushTicks, app.DepthLevels, snapSink)
		eng.OnFill(rec.OnFill)
	}

	r := NewSymbolRunner(symbol, price, vol, liq, book, eng, rec, log)

	if sc.Halt.Enabled() {
		r.SetCircuitBreaker(risk.NewCircuitBreaker(
			sc.Halt.ShortWindow, sc.Halt.ShortThresh,
			sc.Halt.LongWindow, sc.Halt.LongThresh,
			sc.Halt.HaltTicks))
	}

	markout := posttrade.NewAnalyzer(sc.Markout.ShortTicks, sc.Markout.LongTicks)
	eng.OnFill(markout.OnFill)
	r.SetMarkoutAnalyzer(markout)

	return r, nil
}

// buildAgents instantiates each archetype population in a fixed order so
// round robin submission is stable across runs.
func buildAgents(symbol string, sc config.SymbolConfig, price *market.PriceProcess,
	liq *market.LiquidityModel, baseSeed int64, constraints orderbook.Constraints) ([]agent.Agent, error) {
	total := sc.Agents.Total()
	if total == 0 {
		return nil, nil
	}
	agents := make([]agent.Agent, 0, total)
	seed := baseSeed + 100

	for i := 0; i < sc.Agents.MarketMakers.Count; i++ {
		id := fmt.Sprintf("mm-%d", i+1)
		agents = append(agents, agent.NewMarketMaker(id, symbol, sc.Agents.MarketMakers.Params, liq, seed, constraints))
		seed++
	}
	for i := 0; i < sc.Agents.Noise.Count; i++ {
		id := fmt.Sprintf("noise-%d", i+1)
		agents = append(agents, agent.NewNoiseTrader(id, symbol, sc.Agents.Noise.Params, seed, constraints))
		seed++
	}
	for i := 0; i < sc.Agents.Informed.Count; i++ {
		id := fmt.Sprintf("informed-%d", i+1)
		agents = append(agents, agent.NewInformedTrader(id, symbol, sc.Agents.Informed.Params, price, seed, constraints))
		seed++
	}
	for i := 0; i < sc.Agents.Momentum.Count; i++ {
		id := fmt.Sprintf("momentum-%d", i+1)
		agents = append(agents, agent.NewMomentumTrader(id, symbol, sc.Agents.Momentum.Params, seed, constraints))
		seed++
	}
	return agents, nil
}

// symbolSeed derives a stable per-symbol offset so multi-symbol runs do not
// share random streams. FNV-1a over the symbol name.
func symbolSeed(symbol string) int64 {
	var h uint64 = 14695981039346656037
	for i := 0; i < len(symbol); i++ {
		h ^= uint64(symbol[i])
		h *= 1099511628211
	}
	return int64(h % 1000003)
}
