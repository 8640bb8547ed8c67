package orderbook

import (
	"math"
	"testing"
)

func limitOrder(id, agent string, side Side, price, qty float64) Order {
	return Order{ID: id, Symbol: "BTCUSDT", Side: side, Type: LIMIT, Price: price, Qty: qty, AgentID: agent}
}

func marketOrder(id, agent string, side Side, qty float64) Order {
	return Order{ID: id, Symbol: "BTCUSDT", Side: side, Type: MARKET, Qty: qty, AgentID: agent}
}

func mustSubmit(t *testing.T, b *Book, o Order) []Fill {
	t.Helper()
	fills, err := b.Submit(o)
	if err != nil {
		t.Fatalf("submit %s: %v", o.ID, err)
	}
	return fills
}

func TestMarketBuyAgainstSingleAsk(t *testing.T) {
	// MM posts bid 100x10 / ask 102x10; market buy 5 trades once at 102.
	b := New("BTCUSDT", PartialFill)
	mustSubmit(t, b, limitOrder("mm-1", "mm", BUY, 100, 10))
	mustSubmit(t, b, limitOrder("mm-2", "mm", SELL, 102, 10))

	fills := mustSubmit(t, b, marketOrder("nt-1", "noise", BUY, 5))
	if len(fills) != 1 {
		t.Fatalf("expected 1 fill, got %d", len(fills))
	}
	if fills[0].Price != 102 || fills[0].Qty != 5 {
		t.Fatalf("expected fill 5@102, got %.2f@%.2f", fills[0].Qty, fills[0].Price)
	}
	if got := b.RestingQty("mm-2"); got != 5 {
		t.Fatalf("resting ask should reduce to 5, got %.2f", got)
	}
	bid, _ := b.BestBid()
	ask, _ := b.BestAsk()
	if bid >= ask {
		t.Fatalf("book crossed at rest: bid=%.2f ask=%.2f", bid, ask)
	}
}

func TestFIFOWithinLevel(t *testing.T) {
	// Two bids at 100: A first, B second. Market sell 15 consumes all of A
	// before touching B.
	b := New("BTCUSDT", PartialFill)
	mustSubmit(t, b, limitOrder("A", "a1", BUY, 100, 10))
	mustSubmit(t, b, limitOrder("B", "a2", BUY, 100, 10))

	fills := mustSubmit(t, b, marketOrder("S", "a3", SELL, 15))
	if len(fills) != 2 {
		t.Fatalf("expected 2 fills, got %d", len(fills))
	}
	if fills[0].BuyOrderID != "A" || fills[0].Qty != 10 {
		t.Fatalf("first fill should consume A fully, got %s qty %.2f", fills[0].BuyOrderID, fills[0].Qty)
	}
	if fills[1].BuyOrderID != "B" || fills[1].Qty != 5 {
		t.Fatalf("second fill should take 5 from B, got %s qty %.2f", fills[1].BuyOrderID, fills[1].Qty)
	}
	if b.RestingQty("A") != 0 {
		t.Fatalf("A should be fully removed")
	}
	if got := b.RestingQty("B"); got != 5 {
		t.Fatalf("B should have 5 remaining, got %.2f", got)
	}
}

func TestConservationAcrossLevels(t *testing.T) {
	b := New("BTCUSDT", PartialFill)
	mustSubmit(t, b, limitOrder("s1", "a", SELL, 101, 3))
	mustSubmit(t, b, limitOrder("s2", "a", SELL, 102, 4))
	mustSubmit(t, b, limitOrder("s3", "a", SELL, 103, 5))
	before := b.availableQty(SELL)

	fills := mustSubmit(t, b, limitOrder("b1", "b", BUY, 102.5, 9))
	total := 0.0
	for _, f := range fills {
		total += f.Qty
	}
	if total != 7 { // 3@101 + 4@102; 103 not crossable
		t.Fatalf("expected total matched 7, got %.2f", total)
	}
	if got := before - b.availableQty(SELL); math.Abs(got-total) > 1e-9 {
		t.Fatalf("quantity not conserved: removed %.2f, filled %.2f", got, total)
	}
	// Remainder rests at the limit price without crossing.
	if got := b.RestingQty("b1"); got != 2 {
		t.Fatalf("remainder should rest with 2, got %.2f", got)
	}
	bid, _ := b.BestBid()
	ask, _ := b.BestAsk()
	if bid >= ask {
		t.Fatalf("book crossed at rest: bid=%.2f ask=%.2f", bid, ask)
	}
}

func TestFillPriceWithinBothLimits(t *testing.T) {
	b := New("BTCUSDT", PartialFill)
	mustSubmit(t, b, limitOrder("rest", "a", SELL, 101, 10))
	fills := mustSubmit(t, b, limitOrder("aggr", "b", BUY, 105, 10))
	if len(fills) != 1 {
		t.Fatalf("expected 1 fill, got %d", len(fills))
	}
	// Trades at the resting price: improvement goes to the aggressor.
	if fills[0].Price != 101 {
		t.Fatalf("expected fill at resting price 101, got %.2f", fills[0].Price)
	}
	if fills[0].Price > 105 {
		t.Fatalf("fill violates aggressor limit")
	}
}

func TestMarketOrderPartialFillPolicy(t *testing.T) {
	b := New("BTCUSDT", PartialFill)
	mustSubmit(t, b, limitOrder("s1", "a", SELL, 101, 4))

	fills := mustSubmit(t, b, marketOrder("m1", "b", BUY, 10))
	if len(fills) != 1 || fills[0].Qty != 4 {
		t.Fatalf("expected partial fill of 4, got %+v", fills)
	}
	// Remainder is cancelled, never rests.
	if b.RestingQty("m1") != 0 {
		t.Fatalf("market remainder must not rest")
	}
	if _, ok := b.BestAsk(); ok {
		t.Fatalf("ask side should be empty")
	}
}

func TestMarketOrderRejectPolicy(t *testing.T) {
	b := New("BTCUSDT", RejectUnfillable)
	mustSubmit(t, b, limitOrder("s1", "a", SELL, 101, 4))

	if _, err := b.Submit(marketOrder("m1", "b", BUY, 10)); err != ErrNoLiquidity {
		t.Fatalf("expected ErrNoLiquidity, got %v", err)
	}
	// Book untouched by the rejected order.
	if got := b.RestingQty("s1"); got != 4 {
		t.Fatalf("resting ask should be intact, got %.2f", got)
	}
	// A fully coverable market order goes through.
	fills := mustSubmit(t, b, marketOrder("m2", "b", BUY, 4))
	if len(fills) != 1 || fills[0].Qty != 4 {
		t.Fatalf("expected full fill of 4, got %+v", fills)
	}
}

func TestInvalidOrdersRejectedAtBoundary(t *testing.T) {
	b := New("BTCUSDT", PartialFill)
	cases := []struct {
		name string
		o    Order
		want error
	}{
		{"zero qty", limitOrder("x1", "a", BUY, 100, 0), ErrInvalidQty},
		{"negative qty", limitOrder("x2", "a", BUY, 100, -1), ErrInvalidQty},
		{"zero price", limitOrder("x3", "a", BUY, 0, 1), ErrInvalidPrice},
		{"empty id", Order{Side: BUY, Type: LIMIT, Price: 1, Qty: 1}, ErrEmptyID},
		{"bad side", Order{ID: "x4", Side: "HOLD", Type: LIMIT, Price: 1, Qty: 1}, ErrUnknownSide},
		{"bad type", Order{ID: "x5", Side: BUY, Type: "STOP", Price: 1, Qty: 1}, ErrUnknownType},
	}
	for _, tc := range cases {
		if _, err := b.Submit(tc.o); err != tc.want {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
	if b.RestingCount() != 0 {
		t.Fatalf("no invalid order may enter the book")
	}
}

func TestCancelRemovesOrderAndPreservesFIFO(t *testing.T) {
	b := New("BTCUSDT", PartialFill)
	mustSubmit(t, b, limitOrder("A", "a", BUY, 100, 5))
	mustSubmit(t, b, limitOrder("B", "b", BUY, 100, 5))
	mustSubmit(t, b, limitOrder("C", "c", BUY, 100, 5))

	if !b.Cancel("B") {
		t.Fatalf("cancel of resting order should succeed")
	}
	if b.Cancel("B") {
		t.Fatalf("second cancel should be a no-op")
	}
	if b.Cancel("ghost") {
		t.Fatalf("cancel of unknown id should report false")
	}

	fills := mustSubmit(t, b, marketOrder("S", "s", SELL, 10))
	if len(fills) != 2 {
		t.Fatalf("expected 2 fills, got %d", len(fills))
	}
	if fills[0].BuyOrderID != "A" || fills[1].BuyOrderID != "C" {
		t.Fatalf("expected A then C, got %s then %s", fills[0].BuyOrderID, fills[1].BuyOrderID)
	}
}

func TestCancelLastOrderAtLevelUpdatesBest(t *testing.T) {
	b := New("BTCUSDT", PartialFill)
	mustSubmit(t, b, limitOrder("A", "a", BUY, 100, 5))
	mustSubmit(t, b, limitOrder("B", "b", BUY, 99, 5))

	b.Cancel("A")
	bid, ok := b.BestBid()
	if !ok || bid != 99 {
		t.Fatalf("best bid should fall back to 99, got %.2f ok=%v", bid, ok)
	}
}

func TestDuplicateRestingID(t *testing.T) {
	b := New("BTCUSDT", PartialFill)
	mustSubmit(t, b, limitOrder("A", "a", BUY, 100, 5))
	if _, err := b.Submit(limitOrder("A", "a", BUY, 99, 5)); err != ErrDuplicateID {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
}

func TestDepthAggregation(t *testing.T) {
	b := New("BTCUSDT", PartialFill)
	mustSubmit(t, b, limitOrder("b1", "a", BUY, 100, 2))
	mustSubmit(t, b, limitOrder("b2", "a", BUY, 100, 3))
	mustSubmit(t, b, limitOrder("b3", "a", BUY, 99, 4))
	mustSubmit(t, b, limitOrder("b4", "a", BUY, 98, 1))

	levels := b.Depth(BUY, 2)
	if len(levels) != 2 {
		t.Fatalf("expected 2 levels, got %d", len(levels))
	}
	if levels[0].Price != 100 || levels[0].Qty != 5 {
		t.Fatalf("level 0 should be 5@100, got %.2f@%.2f", levels[0].Qty, levels[0].Price)
	}
	if levels[1].Price != 99 || levels[1].Qty != 4 {
		t.Fatalf("level 1 should be 4@99, got %.2f@%.2f", levels[1].Qty, levels[1].Price)
	}
	if got := b.DepthQty(BUY, 3); got != 10 {
		t.Fatalf("depth qty over 3 levels should be 10, got %.2f", got)
	}
}

func TestMidAndSpread(t *testing.T) {
	b := New("BTCUSDT", PartialFill)
	if b.Mid() != 0 || b.Spread() != 0 {
		t.Fatalf("empty book should report 0 mid/spread")
	}
	mustSubmit(t, b, limitOrder("b1", "a", BUY, 100, 1))
	mustSubmit(t, b, limitOrder("s1", "a", SELL, 102, 1))
	if b.Mid() != 101 {
		t.Fatalf("mid should be 101, got %.2f", b.Mid())
	}
	if b.Spread() != 2 {
		t.Fatalf("spread should be 2, got %.2f", b.Spread())
	}
}

func TestConstraintsRounding(t *testing.T) {
	c := Constraints{TickSize: 0.5, StepSize: 0.1, MinQty: 0.1}
	if got := c.RoundPrice(100.26); got != 100.5 {
		t.Fatalf("expected 100.5, got %.4f", got)
	}
	if got := c.RoundQty(0.27); math.Abs(got-0.2) > 1e-9 {
		t.Fatalf("qty should floor to 0.2, got %.4f", got)
	}
	if err := c.Validate(100.5, 0.2); err != nil {
		t.Fatalf("rounded order should validate: %v", err)
	}
	if err := c.Validate(100.3, 0.2); err == nil {
		t.Fatalf("off-grid price should fail validation")
	}
}
