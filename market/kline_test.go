package market

import "testing"

func TestKlineAggregatorWindow(t *testing.T) {
	a := NewKlineAggregator()
	if _, ok := a.Flush(); ok {
		t.Fatalf("empty window must not produce a kline")
	}

	a.OnTrade(100, 1)
	a.OnTrade(104, 2)
	a.OnTrade(98, 1)
	a.OnTrade(101, 0.5)

	k, ok := a.Flush()
	if !ok {
		t.Fatalf("window with trades must flush")
	}
	if k.Open != 100 || k.High != 104 || k.Low != 98 || k.Close != 101 {
		t.Fatalf("unexpected OHLC: %+v", k)
	}
	if k.Volume != 4.5 {
		t.Fatalf("volume = %v, want 4.5", k.Volume)
	}

	// Flush 重置窗口
	if _, ok := a.Flush(); ok {
		t.Fatalf("window must be empty after flush")
	}
	a.OnTrade(50, 1)
	k, _ = a.Flush()
	if k.Open != 50 || k.Close != 50 {
		t.Fatalf("next window must start clean: %+v", k)
	}
}
