package orderbook

import (
	"fmt"
	"math"
)

// Constraints 描述交易对的步长与名义限制。
type Constraints struct {
	TickSize    float64 `yaml:"tickSize"`
	StepSize    float64 `yaml:"stepSize"`
	MinQty      float64 `yaml:"minQty"`
	MaxQty      float64 `yaml:"maxQty"`
	MinNotional float64 `yaml:"minNotional"`
}

// Validate 检查订单价格/数量是否符合精度与最小名义。
func (c Constraints) Validate(price, qty float64) error {
	if c.TickSize > 0 && !isMultiple(price, c.TickSize) {
		return fmt.Errorf("price %.8f not aligned to tickSize %.8f", price, c.TickSize)
	}
	if c.StepSize > 0 && !isMultiple(qty, c.StepSize) {
		return fmt.Errorf("qty %.8f not aligned to stepSize %.8f", qty, c.StepSize)
	}
	if c.MinQty > 0 && qty < c.MinQty {
		return fmt.Errorf("qty %.8f < minQty %.8f", qty, c.MinQty)
	}
	if c.MaxQty > 0 && qty > c.MaxQty {
		return fmt.Errorf("qty %.8f > maxQty %.8f", qty, c.MaxQty)
	}
	if c.MinNotional > 0 && price*qty < c.MinNotional {
		return fmt.Errorf("%w: %.8f < %.8f", ErrBelowNotional, price*qty, c.MinNotional)
	}
	return nil
}

// RoundPrice snaps a raw model price to the tick grid (round half away
// handled by math.Round; agents quote on-grid prices before submitting).
func (c Constraints) RoundPrice(price float64) float64 {
	if c.TickSize <= 0 {
		return price
	}
	return math.Round(price/c.TickSize) * c.TickSize
}

// RoundQty floors a raw size to the step grid so a rounded order never
// exceeds the size the agent intended.
func (c Constraints) RoundQty(qty float64) float64 {
	if c.StepSize <= 0 {
		return qty
	}
	return math.Floor(qty/c.StepSize) * c.StepSize
}

func isMultiple(value, step float64) bool {
	if step <= 0 {
		return true
	}
	ratio := value / step
	return math.Abs(ratio-math.Round(ratio)) <= 1e-8
}
