package market

import (
	"math/rand"
)

// PriceParams configures one symbol's reference price process.
type PriceParams struct {
	AnchorPrice    float64 `yaml:"anchorPrice"`    // long-run mean the price reverts to
	Volatility     float64 `yaml:"volatility"`     // per-tick diffusion sigma
	MomentumWeight float64 `yaml:"momentumWeight"` // weight on the trailing return
	MeanReversion  float64 `yaml:"meanReversion"`  // pull strength toward the anchor
	PriceFloor     float64 `yaml:"priceFloor"`     // hard positive floor after clamping
	ReturnWindow   int     `yaml:"returnWindow"`   // trailing-return lookback in ticks
}

// PriceProcess advances one symbol's reference price each tick. It owns an
// explicitly seeded RNG so a run replays identically under the same
// configuration; no global randomness is consulted anywhere.
type PriceProcess struct {
	params  PriceParams
	price   float64
	rng     *rand.Rand
	returns []float64
}

func NewPriceProcess(params PriceParams, seed int64) *PriceProcess {
	if params.ReturnWindow <= 0 {
		params.ReturnWindow = 10
	}
	if params.PriceFloor <= 0 {
		params.PriceFloor = 0.01
	}
	return &PriceProcess{
		params:  params,
		price:   params.AnchorPrice,
		rng:     rand.New(rand.NewSource(seed)),
		returns: make([]float64, 0, params.ReturnWindow),
	}
}

// Advance applies diffusion + momentum + mean reversion and returns the new
// reference price, clamped to the configured floor.
func (p *PriceProcess) Advance() float64 {
	shock := p.params.Volatility * p.rng.NormFloat64()
	next := p.price * (1 + shock + p.drift())
	if next < p.params.PriceFloor {
		next = p.params.PriceFloor
	}

	ret := 0.0
	if p.price > 0 {
		ret = (next - p.price) / p.price
	}
	p.returns = append(p.returns, ret)
	if len(p.returns) > p.params.ReturnWindow {
		p.returns = p.returns[1:]
	}

	p.price = next
	return next
}

// drift is the deterministic component of the next step: momentum on the
// trailing realized return plus reversion toward the anchor.
func (p *PriceProcess) drift() float64 {
	mom := p.params.MomentumWeight * p.TrailingReturn()
	rev := 0.0
	if p.price > 0 {
		rev = p.params.MeanReversion * (p.params.AnchorPrice - p.price) / p.price
	}
	return mom + rev
}

// PeekDrift exposes the deterministic part of the next move without
// advancing the process. Informed traders consume it as their private
// forward-looking signal; the diffusion term stays hidden.
func (p *PriceProcess) PeekDrift() float64 { return p.drift() }

// Price 返回当前参考价。
func (p *PriceProcess) Price() float64 { return p.price }

// TrailingReturn 返回窗口内的平均单 tick 收益。
func (p *PriceProcess) TrailingReturn() float64 {
	if len(p.returns) == 0 {
		return 0
	}
	sum := 0.0
	for _, r := range p.returns {
		sum += r
	}
	return sum / float64(len(p.returns))
}
