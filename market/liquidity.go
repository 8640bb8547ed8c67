package market

import "math"

// LiquidityParams maps the volatility regime to quote shape.
type LiquidityParams struct {
	MinSpreadBps     float64 `yaml:"minSpreadBps"`     // spread floor in basis points of mid
	VolCoeff         float64 `yaml:"volCoeff"`         // vol contribution to spread
	MaxSpreadRatio   float64 `yaml:"maxSpreadRatio"`   // spread cap as a fraction of mid
	BaseQuoteSize    float64 `yaml:"baseQuoteSize"`    // quote size under calm conditions
	DepthSensitivity float64 `yaml:"depthSensitivity"` // how fast size shrinks as vol rises
	MinQuoteSize     float64 `yaml:"minQuoteSize"`     // size floor under stressed conditions
}

// LiquidityModel derives target spread and quote depth from the current
// realized-volatility estimate: higher vol widens the spread and thins the
// quotes, lower vol does the opposite. Consumed by market makers when
// forming quotes.
type LiquidityModel struct {
	params LiquidityParams
}

func NewLiquidityModel(params LiquidityParams) *LiquidityModel {
	if params.MinSpreadBps <= 0 {
		params.MinSpreadBps = 5
	}
	if params.MaxSpreadRatio <= 0 {
		params.MaxSpreadRatio = 0.05
	}
	if params.BaseQuoteSize <= 0 {
		params.BaseQuoteSize = 1
	}
	return &LiquidityModel{params: params}
}

// Spread 基于波动率计算目标 spread（绝对价格）。
func (m *LiquidityModel) Spread(mid, vol float64) float64 {
	// 基础：最小价差
	spread := mid * (m.params.MinSpreadBps / 10000.0)
	// 波动率项，受上限约束
	spread += mid * m.params.VolCoeff * vol
	if maxSpread := mid * m.params.MaxSpreadRatio; spread > maxSpread {
		spread = maxSpread
	}
	if spread <= 0 {
		return mid * 0.0005
	}
	return spread
}

// QuoteSize 返回当前波动率下的单边挂单数量。
func (m *LiquidityModel) QuoteSize(vol float64) float64 {
	size := m.params.BaseQuoteSize / (1 + m.params.DepthSensitivity*math.Max(vol, 0))
	if size < m.params.MinQuoteSize {
		size = m.params.MinQuoteSize
	}
	return size
}
