package market

// Kline represents OHLCV data over one analytics window.
type Kline struct {
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// KlineAggregator 从成交流生成分析窗口内的 Kline。
// Not goroutine-safe: it lives inside one symbol's tick loop.
type KlineAggregator struct {
	current Kline
	hasData bool
}

func NewKlineAggregator() *KlineAggregator {
	return &KlineAggregator{}
}

// OnTrade 更新当前窗口的 OHLCV。
func (a *KlineAggregator) OnTrade(price, qty float64) {
	if !a.hasData {
		a.current = Kline{Open: price, High: price, Low: price, Close: price}
		a.hasData = true
	} else {
		if price > a.current.High {
			a.current.High = price
		}
		if price < a.current.Low {
			a.current.Low = price
		}
		a.current.Close = price
	}
	a.current.Volume += qty
}

// Flush 关闭当前窗口并重置；窗口内无成交时返回 false。
func (a *KlineAggregator) Flush() (Kline, bool) {
	if !a.hasData {
		return Kline{}, false
	}
	closed := a.current
	a.current = Kline{}
	a.hasData = false
	return closed, true
}
