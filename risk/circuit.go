package risk

// CircuitBreaker 基于参考价短期涨跌幅触发熔断（交易暂停）。
// 窗口以 tick 计数，触发后市场停止撮合 HaltTicks 个 tick。
type CircuitBreaker struct {
	// 阈值：短窗、长窗相对涨跌幅
	ShortWindow int
	ShortThresh float64
	LongWindow  int
	LongThresh  float64
	HaltTicks   uint64

	prices      []float64
	haltedUntil uint64
	trips       uint64
}

func NewCircuitBreaker(shortWindow int, shortThresh float64, longWindow int, longThresh float64, haltTicks uint64) *CircuitBreaker {
	if longWindow < shortWindow {
		longWindow = shortWindow
	}
	if haltTicks == 0 {
		haltTicks = 1
	}
	return &CircuitBreaker{
		ShortWindow: shortWindow,
		ShortThresh: shortThresh,
		LongWindow:  longWindow,
		LongThresh:  longThresh,
		HaltTicks:   haltTicks,
		prices:      make([]float64, 0, longWindow+1),
	}
}

// OnTick 返回 (是否处于熔断, 触发窗口 "short"/"long"/"")。
// 已在熔断期内时返回 (true, "") 且不重复触发。
func (c *CircuitBreaker) OnTick(tick uint64, price float64) (bool, string) {
	c.prices = append(c.prices, price)
	if max := c.LongWindow + 1; max > 0 && len(c.prices) > max {
		c.prices = c.prices[len(c.prices)-max:]
	}

	if tick < c.haltedUntil {
		return true, ""
	}
	if trip := c.check(c.ShortWindow, c.ShortThresh); trip {
		c.trip(tick)
		return true, "short"
	}
	if trip := c.check(c.LongWindow, c.LongThresh); trip {
		c.trip(tick)
		return true, "long"
	}
	return false, ""
}

// Halted 返回当前 tick 是否处于熔断期。
func (c *CircuitBreaker) Halted(tick uint64) bool { return tick < c.haltedUntil }

// Trips 返回累计触发次数。
func (c *CircuitBreaker) Trips() uint64 { return c.trips }

func (c *CircuitBreaker) trip(tick uint64) {
	c.haltedUntil = tick + c.HaltTicks + 1
	c.trips++
}

func (c *CircuitBreaker) check(window int, thresh float64) bool {
	if thresh <= 0 || window <= 0 || len(c.prices) <= window {
		return false
	}
	first := c.prices[len(c.prices)-1-window]
	last := c.prices[len(c.prices)-1]
	if first == 0 {
		return false
	}
	change := (last - first) / first
	if change > thresh || change < -thresh {
		return true
	}
	return false
}
