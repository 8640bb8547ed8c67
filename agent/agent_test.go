package agent

import (
	"math"
	"strings"
	"testing"

	"prism-sim/market"
	"prism-sim/orderbook"
	"prism-sim/risk"
)

func testState(mid, vol float64) market.State {
	return market.State{Symbol: "BTCUSDT", Mid: mid, Vol: vol, BestBid: mid - 1, BestAsk: mid + 1, Spread: 2}
}

func testLiquidity() *market.LiquidityModel {
	return market.NewLiquidityModel(market.LiquidityParams{
		MinSpreadBps:     20,
		VolCoeff:         0.5,
		MaxSpreadRatio:   0.05,
		BaseQuoteSize:    10,
		DepthSensitivity: 2,
		MinQuoteSize:     0.5,
	})
}

func TestMarketMakerQuotesSymmetricAroundMid(t *testing.T) {
	mm := NewMarketMaker("mm-1", "BTCUSDT", MarketMakerParams{StartingCash: 1e6}, testLiquidity(), 1, orderbook.Constraints{})
	d := mm.Decide(testState(100, 0.001))
	if len(d.Cancels) != 0 {
		t.Fatalf("first tick should have nothing to cancel")
	}
	if len(d.Orders) != 2 {
		t.Fatalf("expected two-sided quote, got %d orders", len(d.Orders))
	}
	bid, ask := d.Orders[0], d.Orders[1]
	if bid.Side != orderbook.BUY || ask.Side != orderbook.SELL {
		t.Fatalf("expected bid then ask, got %s then %s", bid.Side, ask.Side)
	}
	if bid.Price >= ask.Price {
		t.Fatalf("quote crossed: bid=%.4f ask=%.4f", bid.Price, ask.Price)
	}
	if got := (bid.Price + ask.Price) / 2; math.Abs(got-100) > 1e-9 {
		t.Fatalf("quote center should be mid, got %.6f", got)
	}
}

func TestMarketMakerCancelsPriorQuotes(t *testing.T) {
	mm := NewMarketMaker("mm-1", "BTCUSDT", MarketMakerParams{StartingCash: 1e6}, testLiquidity(), 1, orderbook.Constraints{})
	first := mm.Decide(testState(100, 0.001))
	second := mm.Decide(testState(101, 0.001))
	if len(second.Cancels) != 2 {
		t.Fatalf("expected both prior quotes cancelled, got %d", len(second.Cancels))
	}
	want := map[string]bool{first.Orders[0].ID: true, first.Orders[1].ID: true}
	for _, id := range second.Cancels {
		if !want[id] {
			t.Fatalf("cancel %s does not match a prior quote", id)
		}
	}
}

func TestMarketMakerSkewsAgainstInventory(t *testing.T) {
	params := MarketMakerParams{StartingCash: 1e6, InventoryLimit: 5, SkewFactor: 0.25}
	long := NewMarketMaker("mm-long", "BTCUSDT", params, testLiquidity(), 1, orderbook.Constraints{})
	long.Account().ApplyFill(10, 100) // heavy long

	flat := NewMarketMaker("mm-flat", "BTCUSDT", params, testLiquidity(), 1, orderbook.Constraints{})

	dLong := long.Decide(testState(100, 0.001))
	dFlat := flat.Decide(testState(100, 0.001))
	if len(dLong.Orders) != 2 || len(dFlat.Orders) != 2 {
		t.Fatalf("both makers should quote two-sided")
	}
	// Long inventory pushes both quotes down to attract buyers of its stock.
	if dLong.Orders[0].Price >= dFlat.Orders[0].Price {
		t.Fatalf("long maker should bid lower: %.4f vs %.4f", dLong.Orders[0].Price, dFlat.Orders[0].Price)
	}
	if dLong.Orders[1].Price >= dFlat.Orders[1].Price {
		t.Fatalf("long maker should offer lower: %.4f vs %.4f", dLong.Orders[1].Price, dFlat.Orders[1].Price)
	}
}

func TestAgentSelfVetoOnPositionLimit(t *testing.T) {
	// A noise trader whose next buy would breach MaxPosition emits nothing
	// instead of erroring.
	params := NoiseParams{
		TradeProb:       1,
		BaseQty:         10,
		MarketOrderProb: 1,
		StartingCash:    1e9,
		Limits:          risk.Limits{MaxPosition: 5},
	}
	n := NewNoiseTrader("nt-1", "BTCUSDT", params, 3, orderbook.Constraints{})
	for i := 0; i < 100; i++ {
		d := n.Decide(testState(100, 0.001))
		for _, o := range d.Orders {
			if o.Qty > 5 {
				t.Fatalf("order qty %.2f breaches the agent's own limit", o.Qty)
			}
		}
	}
}

func TestNoiseTraderDeterministicPerSeed(t *testing.T) {
	params := NoiseParams{TradeProb: 0.6, BaseQty: 2, QtySigma: 0.4, MaxOffsetRatio: 0.01, MarketOrderProb: 0.3, StartingCash: 1e9}
	a := NewNoiseTrader("nt-1", "BTCUSDT", params, 9, orderbook.Constraints{})
	b := NewNoiseTrader("nt-1", "BTCUSDT", params, 9, orderbook.Constraints{})
	for i := 0; i < 200; i++ {
		da, db := a.Decide(testState(100, 0.001)), b.Decide(testState(100, 0.001))
		if len(da.Orders) != len(db.Orders) {
			t.Fatalf("tick %d: same seed produced different decisions", i)
		}
		for j := range da.Orders {
			if da.Orders[j] != db.Orders[j] {
				t.Fatalf("tick %d: order %d differs: %+v vs %+v", i, j, da.Orders[j], db.Orders[j])
			}
		}
	}
}

type stubSignal struct{ drift float64 }

func (s stubSignal) PeekDrift() float64 { return s.drift }

func TestInformedTraderFollowsSignal(t *testing.T) {
	params := InformedParams{NoiseScale: 0.01, MinSignal: 0.2, MaxQty: 10, StartingCash: 1e9}

	up := NewInformedTrader("it-1", "BTCUSDT", params, stubSignal{drift: 0.02}, 1, orderbook.Constraints{})
	d := up.Decide(testState(100, 0.001))
	if len(d.Orders) != 1 || d.Orders[0].Side != orderbook.BUY {
		t.Fatalf("positive signal should buy, got %+v", d.Orders)
	}
	// Saturated confidence trades full size.
	if d.Orders[0].Qty != 10 {
		t.Fatalf("expected full size 10, got %.2f", d.Orders[0].Qty)
	}

	down := NewInformedTrader("it-2", "BTCUSDT", params, stubSignal{drift: -0.005}, 1, orderbook.Constraints{})
	d = down.Decide(testState(100, 0.001))
	if len(d.Orders) != 1 || d.Orders[0].Side != orderbook.SELL {
		t.Fatalf("negative signal should sell, got %+v", d.Orders)
	}
	if got := d.Orders[0].Qty; math.Abs(got-5) > 1e-9 { // |−0.005|/0.01 = 0.5 confidence
		t.Fatalf("expected half size 5, got %.2f", got)
	}

	weak := NewInformedTrader("it-3", "BTCUSDT", params, stubSignal{drift: 0.001}, 1, orderbook.Constraints{})
	if d := weak.Decide(testState(100, 0.001)); len(d.Orders) != 0 {
		t.Fatalf("sub-threshold signal should stay out, got %+v", d.Orders)
	}
}

func TestMomentumTraderEntersWithTrendAndExitsOnReversal(t *testing.T) {
	params := MomentumParams{Window: 3, EntryReturn: 0.01, OrderQty: 2, StartingCash: 1e9}
	m := NewMomentumTrader("mo-1", "BTCUSDT", params, 1, orderbook.Constraints{})

	// Warm up below window; no trades.
	if d := m.Decide(testState(100, 0)); len(d.Orders) != 0 {
		t.Fatalf("window not full yet")
	}
	m.Decide(testState(101, 0))
	d := m.Decide(testState(103, 0)) // trend (103-100)/100 = 3% > 1%
	if len(d.Orders) != 1 || d.Orders[0].Side != orderbook.BUY {
		t.Fatalf("uptrend should buy, got %+v", d.Orders)
	}
	m.Account().ApplyFill(2, 103) // engine settles the entry

	// Price rolls over: window turns negative, position flattens.
	m.Decide(testState(102, 0))
	d = m.Decide(testState(100, 0))
	if len(d.Orders) != 1 || d.Orders[0].Side != orderbook.SELL || d.Orders[0].Qty != 2 {
		t.Fatalf("reversal should flatten long of 2, got %+v", d.Orders)
	}
}

func TestOrderIDsCarryAgentPrefix(t *testing.T) {
	mm := NewMarketMaker("mm-7", "BTCUSDT", MarketMakerParams{StartingCash: 1e6}, testLiquidity(), 1, orderbook.Constraints{})
	d := mm.Decide(testState(100, 0.001))
	for _, o := range d.Orders {
		if !strings.HasPrefix(o.ID, "mm-7-") {
			t.Fatalf("order id %s missing agent prefix", o.ID)
		}
		if o.AgentID != "mm-7" {
			t.Fatalf("order %s has wrong agent id %s", o.ID, o.AgentID)
		}
	}
}
