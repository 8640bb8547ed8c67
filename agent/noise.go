package agent

import (
	"math"

	"prism-sim/market"
	"prism-sim/orderbook"
	"prism-sim/risk"
)

// NoiseParams 控制噪声交易者的下单分布。
type NoiseParams struct {
	TradeProb       float64     `yaml:"tradeProb"`       // 每 tick 下单概率
	BaseQty         float64     `yaml:"baseQty"`         // 对数正态 size 的基准
	QtySigma        float64     `yaml:"qtySigma"`        // 对数正态 sigma
	MaxOffsetRatio  float64     `yaml:"maxOffsetRatio"`  // 限价相对 mid 的最大偏移
	MarketOrderProb float64     `yaml:"marketOrderProb"` // 市价单占比
	StartingCash    float64     `yaml:"startingCash"`
	Limits          risk.Limits `yaml:"limits"`
}

// NoiseTrader submits orders with random side, log-normal size and a
// uniform price offset around mid, independent of fundamentals. It supplies
// the baseline volume everyone else trades against.
type NoiseTrader struct {
	base
	params NoiseParams
}

func NewNoiseTrader(id, symbol string, params NoiseParams, seed int64, constraints orderbook.Constraints) *NoiseTrader {
	if params.TradeProb <= 0 {
		params.TradeProb = 0.5
	}
	if params.BaseQty <= 0 {
		params.BaseQty = 1
	}
	return &NoiseTrader{
		base:   newBase(id, KindNoise, symbol, params.StartingCash, params.Limits, seed, constraints),
		params: params,
	}
}

func (n *NoiseTrader) Decide(st market.State) Decision {
	if st.Mid <= 0 || n.rng.Float64() > n.params.TradeProb {
		return Decision{}
	}

	side := orderbook.BUY
	if n.rng.Float64() < 0.5 {
		side = orderbook.SELL
	}
	qty := n.params.BaseQty * math.Exp(n.params.QtySigma*n.rng.NormFloat64())

	var d Decision
	if n.rng.Float64() < n.params.MarketOrderProb {
		if o, ok := n.marketOrder(side, qty, st.Mid); ok {
			d.Orders = append(d.Orders, o)
		}
		return d
	}

	offset := (2*n.rng.Float64() - 1) * n.params.MaxOffsetRatio
	if o, ok := n.limitOrder(side, st.Mid*(1+offset), qty); ok {
		d.Orders = append(d.Orders, o)
	}
	return d
}
