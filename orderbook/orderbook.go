package orderbook

import (
	"container/heap"
	"math"
	"sort"
	"time"

	"github.com/gammazero/deque"
)

// Book is a per-symbol limit order book with strict FIFO price-time
// priority. It is exclusively owned by one symbol's execution engine and is
// never shared across goroutines, so it carries no lock; agents only ever
// see read-only snapshots derived from it.
type Book struct {
	symbol string
	policy MarketOrderPolicy

	bids map[float64]*deque.Deque[*Order]
	asks map[float64]*deque.Deque[*Order]

	bidHeap *PriceHeap // max-heap
	askHeap *PriceHeap // min-heap

	// resting indexes live orders by ID for O(1) cancel routing.
	resting map[string]*Order

	seq     uint64
	fillSeq uint64
	tick    uint64

	nowNs func() int64
}

func New(symbol string, policy MarketOrderPolicy) *Book {
	if policy == "" {
		policy = PartialFill
	}
	return &Book{
		symbol:  symbol,
		policy:  policy,
		bids:    make(map[float64]*deque.Deque[*Order]),
		asks:    make(map[float64]*deque.Deque[*Order]),
		bidHeap: NewPriceHeap(func(i, j float64) bool { return i > j }),
		askHeap: NewPriceHeap(func(i, j float64) bool { return i < j }),
		resting: make(map[string]*Order),
		nowNs:   func() int64 { return time.Now().UnixNano() },
	}
}

// SetClock 注入时间源，便于确定性测试。
func (b *Book) SetClock(nowNs func() int64) { b.nowNs = nowNs }

// SetTick advances the logical tick stamped onto fills.
func (b *Book) SetTick(tick uint64) { b.tick = tick }

func (b *Book) Symbol() string { return b.symbol }

// Submit validates the order, matches it against the opposing side and, for
// limit orders, rests any remainder. It returns one Fill per match, in
// match order. Matching always trades at the resting order's price.
func (b *Book) Submit(o Order) ([]Fill, error) {
	if err := b.validate(&o); err != nil {
		return nil, err
	}
	if _, ok := b.resting[o.ID]; ok {
		return nil, ErrDuplicateID
	}

	b.seq++
	o.Seq = b.seq
	o.Remaining = o.Qty
	ord := &o

	if ord.Type == MARKET && b.policy == RejectUnfillable {
		if b.availableQty(ord.Side.Opposite()) < ord.Qty {
			return nil, ErrNoLiquidity
		}
	}

	fills := b.match(ord)

	if ord.Type == LIMIT && ord.Remaining > 0 {
		b.rest(ord)
	}
	// Market remainder is cancelled (PartialFill) or was pre-checked above.
	return fills, nil
}

func (b *Book) validate(o *Order) error {
	if o.ID == "" {
		return ErrEmptyID
	}
	if o.Side != BUY && o.Side != SELL {
		return ErrUnknownSide
	}
	if o.Qty <= 0 {
		return ErrInvalidQty
	}
	switch o.Type {
	case LIMIT:
		if o.Price <= 0 {
			return ErrInvalidPrice
		}
	case MARKET:
	default:
		return ErrUnknownType
	}
	return nil
}

func (b *Book) match(ord *Order) []Fill {
	var fills []Fill

	counterBook := b.asks
	counterHeap := b.askHeap
	crossable := func(limit, best float64) bool { return limit >= best }
	if ord.Side == SELL {
		counterBook = b.bids
		counterHeap = b.bidHeap
		crossable = func(limit, best float64) bool { return limit <= best }
	}

	limit := ord.Price
	if ord.Type == MARKET {
		limit = math.MaxFloat64
		if ord.Side == SELL {
			limit = 0
		}
	}

	for ord.Remaining > 0 {
		best, ok := counterHeap.Peek()
		if !ok || !crossable(limit, best) {
			break
		}
		q := counterBook[best]
		if q == nil || q.Len() == 0 {
			heap.Pop(counterHeap)
			delete(counterBook, best)
			continue
		}

		// FIFO 时间优先：同价位先到先成交。
		restingOrd := q.Front()
		matchQty := math.Min(ord.Remaining, restingOrd.Remaining)
		ord.Remaining -= matchQty
		restingOrd.Remaining -= matchQty

		b.fillSeq++
		fill := Fill{
			ID:          b.fillSeq,
			Symbol:      b.symbol,
			Price:       best, // resting price; improvement favors the aggressor
			Qty:         matchQty,
			Tick:        b.tick,
			TimestampNs: b.nowNs(),
		}
		if ord.Side == BUY {
			fill.BuyOrderID, fill.BuyAgentID = ord.ID, ord.AgentID
			fill.SellOrderID, fill.SellAgentID = restingOrd.ID, restingOrd.AgentID
		} else {
			fill.BuyOrderID, fill.BuyAgentID = restingOrd.ID, restingOrd.AgentID
			fill.SellOrderID, fill.SellAgentID = ord.ID, ord.AgentID
		}
		fills = append(fills, fill)

		if restingOrd.Remaining <= 0 {
			q.PopFront()
			delete(b.resting, restingOrd.ID)
			if q.Len() == 0 {
				heap.Pop(counterHeap)
				delete(counterBook, best)
			}
		}
	}
	return fills
}

func (b *Book) rest(ord *Order) {
	book, priceHeap := b.bids, b.bidHeap
	if ord.Side == SELL {
		book, priceHeap = b.asks, b.askHeap
	}
	if book[ord.Price] == nil {
		book[ord.Price] = &deque.Deque[*Order]{}
		heap.Push(priceHeap, ord.Price)
	}
	book[ord.Price].PushBack(ord)
	b.resting[ord.ID] = ord
}

// Cancel removes a resting order. It reports false for unknown (already
// filled or never rested) IDs, which self-requoting agents treat as a no-op.
func (b *Book) Cancel(orderID string) bool {
	ord, ok := b.resting[orderID]
	if !ok {
		return false
	}
	delete(b.resting, orderID)

	book := b.bids
	if ord.Side == SELL {
		book = b.asks
	}
	q := book[ord.Price]
	if q == nil {
		return true
	}
	// Rebuild the level without the cancelled order; levels are short in
	// practice so the linear pass is fine at simulation cadence.
	n := q.Len()
	for i := 0; i < n; i++ {
		cur := q.PopFront()
		if cur.ID == orderID {
			continue
		}
		q.PushBack(cur)
	}
	if q.Len() == 0 {
		delete(book, ord.Price)
		// Heap entry is cleaned lazily on the next peek.
	}
	return true
}

// cleanTop pops heap entries whose level no longer exists.
func (b *Book) cleanTop(priceHeap *PriceHeap, book map[float64]*deque.Deque[*Order]) (float64, bool) {
	for {
		best, ok := priceHeap.Peek()
		if !ok {
			return 0, false
		}
		if q := book[best]; q != nil && q.Len() > 0 {
			return best, true
		}
		heap.Pop(priceHeap)
	}
}

func (b *Book) BestBid() (float64, bool) { return b.cleanTop(b.bidHeap, b.bids) }

func (b *Book) BestAsk() (float64, bool) { return b.cleanTop(b.askHeap, b.asks) }

// Mid 返回中间价；若缺失任一侧返回 0。
func (b *Book) Mid() float64 {
	bid, okB := b.BestBid()
	ask, okA := b.BestAsk()
	if !okB || !okA {
		return 0
	}
	return (bid + ask) / 2
}

// Spread 返回买卖价差；若缺失任一侧返回 0。
func (b *Book) Spread() float64 {
	bid, okB := b.BestBid()
	ask, okA := b.BestAsk()
	if !okB || !okA {
		return 0
	}
	return ask - bid
}

// Depth returns up to maxLevels aggregated levels, best price first.
func (b *Book) Depth(side Side, maxLevels int) []Level {
	book := b.bids
	if side == SELL {
		book = b.asks
	}
	prices := make([]float64, 0, len(book))
	for p, q := range book {
		if q != nil && q.Len() > 0 {
			prices = append(prices, p)
		}
	}
	if side == BUY {
		sort.Sort(sort.Reverse(sort.Float64Slice(prices)))
	} else {
		sort.Float64s(prices)
	}
	if maxLevels > 0 && len(prices) > maxLevels {
		prices = prices[:maxLevels]
	}
	levels := make([]Level, 0, len(prices))
	for _, p := range prices {
		q := book[p]
		total := 0.0
		for i := 0; i < q.Len(); i++ {
			total += q.At(i).Remaining
		}
		levels = append(levels, Level{Price: p, Qty: total})
	}
	return levels
}

// DepthQty sums remaining quantity across the top maxLevels of one side.
func (b *Book) DepthQty(side Side, maxLevels int) float64 {
	total := 0.0
	for _, lvl := range b.Depth(side, maxLevels) {
		total += lvl.Qty
	}
	return total
}

// RestingCount reports the number of live resting orders.
func (b *Book) RestingCount() int { return len(b.resting) }

// RestingQty returns the remaining quantity of a resting order, or 0.
func (b *Book) RestingQty(orderID string) float64 {
	if ord, ok := b.resting[orderID]; ok {
		return ord.Remaining
	}
	return 0
}

func (b *Book) availableQty(side Side) float64 {
	book := b.bids
	if side == SELL {
		book = b.asks
	}
	total := 0.0
	for _, q := range book {
		for i := 0; i < q.Len(); i++ {
			total += q.At(i).Remaining
		}
	}
	return total
}
