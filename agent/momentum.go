package agent

import (
	"prism-sim/market"
	"prism-sim/orderbook"
	"prism-sim/risk"
)

// MomentumParams 控制趋势跟随者的进出场。
type MomentumParams struct {
	Window       int         `yaml:"window"`       // 趋势回看窗口（tick）
	EntryReturn  float64     `yaml:"entryReturn"`  // 进场所需的窗口收益阈值
	OrderQty     float64     `yaml:"orderQty"`     // 每次进场数量
	StartingCash float64     `yaml:"startingCash"`
	Limits       risk.Limits `yaml:"limits"`
}

// MomentumTrader computes a trailing return over its window and trades with
// the trend, flattening its position as soon as the trend reverses against
// the side it holds.
type MomentumTrader struct {
	base
	params MomentumParams
	mids   []float64
}

func NewMomentumTrader(id, symbol string, params MomentumParams, seed int64, constraints orderbook.Constraints) *MomentumTrader {
	if params.Window <= 1 {
		params.Window = 10
	}
	if params.OrderQty <= 0 {
		params.OrderQty = 1
	}
	if params.EntryReturn <= 0 {
		params.EntryReturn = 0.002
	}
	return &MomentumTrader{
		base:   newBase(id, KindMomentum, symbol, params.StartingCash, params.Limits, seed, constraints),
		params: params,
	}
}

func (m *MomentumTrader) Decide(st market.State) Decision {
	if st.Mid <= 0 {
		return Decision{}
	}
	m.mids = append(m.mids, st.Mid)
	if len(m.mids) > m.params.Window {
		m.mids = m.mids[1:]
	}
	if len(m.mids) < m.params.Window {
		return Decision{}
	}
	trend := (m.mids[len(m.mids)-1] - m.mids[0]) / m.mids[0]

	var d Decision
	pos := m.acct.Position()

	// 趋势反转时先平仓。
	if (pos > 0 && trend < 0) || (pos < 0 && trend > 0) {
		side := orderbook.SELL
		qty := pos
		if pos < 0 {
			side = orderbook.BUY
			qty = -pos
		}
		if o, ok := m.marketOrder(side, qty, st.Mid); ok {
			d.Orders = append(d.Orders, o)
		}
		return d
	}

	if trend >= m.params.EntryReturn {
		if o, ok := m.marketOrder(orderbook.BUY, m.params.OrderQty, st.Mid); ok {
			d.Orders = append(d.Orders, o)
		}
	} else if trend <= -m.params.EntryReturn {
		if o, ok := m.marketOrder(orderbook.SELL, m.params.OrderQty, st.Mid); ok {
			d.Orders = append(d.Orders, o)
		}
	}
	return d
}
