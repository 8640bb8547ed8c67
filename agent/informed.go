package agent

import (
	"math"

	"prism-sim/market"
	"prism-sim/orderbook"
	"prism-sim/risk"
)

// Signal is a private forward-looking view of the reference price, one step
// ahead of what the public MarketState shows. The price process implements
// it by exposing the deterministic component of its next move.
type Signal interface {
	PeekDrift() float64
}

// InformedParams 控制知情交易者的信号响应。
type InformedParams struct {
	NoiseScale   float64     `yaml:"noiseScale"`   // 信号归一化尺度（通常取过程 sigma）
	MinSignal    float64     `yaml:"minSignal"`    // 低于该置信度不下单
	MaxQty       float64     `yaml:"maxQty"`       // 满置信度时的下单数量
	StartingCash float64     `yaml:"startingCash"`
	Limits       risk.Limits `yaml:"limits"`
}

// InformedTrader trades in the direction of its private signal, sized
// proportionally to signal confidence.
type InformedTrader struct {
	base
	signal Signal
	params InformedParams
}

func NewInformedTrader(id, symbol string, params InformedParams, signal Signal, seed int64, constraints orderbook.Constraints) *InformedTrader {
	if params.NoiseScale <= 0 {
		params.NoiseScale = 0.01
	}
	if params.MaxQty <= 0 {
		params.MaxQty = 1
	}
	return &InformedTrader{
		base:   newBase(id, KindInformed, symbol, params.StartingCash, params.Limits, seed, constraints),
		signal: signal,
		params: params,
	}
}

func (a *InformedTrader) Decide(st market.State) Decision {
	if st.Mid <= 0 || a.signal == nil {
		return Decision{}
	}
	sig := a.signal.PeekDrift()
	confidence := math.Min(math.Abs(sig)/a.params.NoiseScale, 1)
	if confidence < a.params.MinSignal {
		return Decision{}
	}

	side := orderbook.BUY
	if sig < 0 {
		side = orderbook.SELL
	}
	var d Decision
	if o, ok := a.marketOrder(side, a.params.MaxQty*confidence, st.Mid); ok {
		d.Orders = append(d.Orders, o)
	}
	return d
}
