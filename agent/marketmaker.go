package agent

import (
	"math"

	"prism-sim/market"
	"prism-sim/orderbook"
	"prism-sim/risk"
)

// MarketMakerParams 控制做市商的报价与库存风险行为。
type MarketMakerParams struct {
	InventoryLimit float64     `yaml:"inventoryLimit"` // 超过该仓位后开始偏移报价
	SkewFactor     float64     `yaml:"skewFactor"`     // 报价中心偏移量（spread 的倍数）
	StartingCash   float64     `yaml:"startingCash"`
	Limits         risk.Limits `yaml:"limits"`
}

// MarketMaker cancels its previous quotes and posts a fresh symmetric
// two-sided quote around mid each tick, using the liquidity model's spread
// and size. When inventory exceeds the configured limit the quote center is
// skewed against the position so fills work the book back toward flat.
type MarketMaker struct {
	base
	liq     *market.LiquidityModel
	params  MarketMakerParams
	resting []string
}

func NewMarketMaker(id, symbol string, params MarketMakerParams, liq *market.LiquidityModel, seed int64, constraints orderbook.Constraints) *MarketMaker {
	if params.SkewFactor <= 0 {
		params.SkewFactor = 0.25
	}
	return &MarketMaker{
		base:   newBase(id, KindMarketMaker, symbol, params.StartingCash, params.Limits, seed, constraints),
		liq:    liq,
		params: params,
	}
}

func (m *MarketMaker) Decide(st market.State) Decision {
	d := Decision{Cancels: m.resting}
	m.resting = nil
	if st.Mid <= 0 {
		return d
	}

	spread := m.liq.Spread(st.Mid, st.Vol)
	size := m.liq.QuoteSize(st.Vol)

	// 库存偏移：多头过重下移报价中心，空头过重上移。
	center := st.Mid
	pos := m.acct.Position()
	if m.params.InventoryLimit > 0 && math.Abs(pos) > m.params.InventoryLimit {
		skew := spread * m.params.SkewFactor
		if pos > 0 {
			center -= skew
		} else {
			center += skew
		}
	}

	if bid, ok := m.limitOrder(orderbook.BUY, center-spread/2, size); ok {
		d.Orders = append(d.Orders, bid)
		m.resting = append(m.resting, bid.ID)
	}
	if ask, ok := m.limitOrder(orderbook.SELL, center+spread/2, size); ok {
		d.Orders = append(d.Orders, ask)
		m.resting = append(m.resting, ask.ID)
	}
	return d
}
