// Package engine drives one symbol's tick: it collects agent decisions,
// routes them into the order book and settles every resulting fill against
// both participants' accounts. All of this runs strictly serialized inside
// the symbol's tick loop; the engine owns the book exclusively.
package engine

import (
	"errors"
	"math/rand"
	"sync"

	"go.uber.org/zap"

	"prism-sim/agent"
	"prism-sim/market"
	"prism-sim/orderbook"
)

// SubmissionPolicy fixes the order in which agent decisions reach the book
// each tick. Both policies are deterministic under a fixed seed.
type SubmissionPolicy string

const (
	// RoundRobin submits in agent construction order, every tick the same.
	RoundRobin SubmissionPolicy = "round_robin"
	// Shuffle re-draws the agent order each tick from the engine's own
	// seeded RNG, so no agent is permanently first in the queue.
	Shuffle SubmissionPolicy = "shuffle"
)

// FillHandler consumes fills off the matching path (sinks, feed, metrics).
type FillHandler func(orderbook.Fill)

type Engine struct {
	symbol string
	book   *orderbook.Book
	agents []agent.Agent
	byID   map[string]agent.Agent
	policy SubmissionPolicy
	rng    *rand.Rand
	log    *zap.Logger

	handlers []FillHandler

	// counters are read from outside the tick loop by status reporting
	statsMu   sync.Mutex
	cumVolume float64
	fillCount uint64
	rejected  uint64
}

func New(symbol string, book *orderbook.Book, agents []agent.Agent, policy SubmissionPolicy, seed int64, log *zap.Logger) *Engine {
	if policy == "" {
		policy = RoundRobin
	}
	if log == nil {
		log = zap.NewNop()
	}
	byID := make(map[string]agent.Agent, len(agents))
	for _, a := range agents {
		byID[a.ID()] = a
	}
	return &Engine{
		symbol: symbol,
		book:   book,
		agents: agents,
		byID:   byID,
		policy: policy,
		rng:    rand.New(rand.NewSource(seed)),
		log:    log,
	}
}

// OnFill registers a handler invoked synchronously for every fill. Handlers
// must not block; persistence hands off to a bounded queue.
func (e *Engine) OnFill(h FillHandler) {
	e.handlers = append(e.handlers, h)
}

func (e *Engine) Book() *orderbook.Book { return e.book }

func (e *Engine) AgentCount() int { return len(e.agents) }

// AgentCountByKind 按类型统计 agent 数量，供状态上报使用。
func (e *Engine) AgentCountByKind() map[string]int {
	counts := make(map[string]int)
	for _, a := range e.agents {
		counts[string(a.Kind())]++
	}
	return counts
}

// Tick runs one full decision/matching/settlement pass. Decisions are
// collected and submitted in the policy's order; all cancels land before
// any new order so cancel-and-replace quoting takes effect within the tick.
func (e *Engine) Tick(st market.State) []orderbook.Fill {
	e.book.SetTick(st.Tick)

	ordered := e.submissionOrder()
	decisions := make([]agent.Decision, len(ordered))
	for i, a := range ordered {
		decisions[i] = a.Decide(st)
	}

	for _, d := range decisions {
		for _, id := range d.Cancels {
			e.book.Cancel(id)
		}
	}

	var fills []orderbook.Fill
	for i, d := range decisions {
		for _, o := range d.Orders {
			got, err := e.book.Submit(o)
			if err != nil {
				// Invalid or unfillable orders are dropped at the boundary;
				// the agent's slot for this tick is simply discarded.
				e.statsMu.Lock()
				e.rejected++
				e.statsMu.Unlock()
				if !errors.Is(err, orderbook.ErrNoLiquidity) {
					e.log.Debug("order rejected",
						zap.String("symbol", e.symbol),
						zap.String("agent", ordered[i].ID()),
						zap.String("order", o.ID),
						zap.Error(err))
				}
				continue
			}
			for _, f := range got {
				e.settle(f)
			}
			fills = append(fills, got...)
		}
	}
	return fills
}

// settle updates both sides' cash and inventory synchronously, then fans
// the fill out to the registered handlers.
func (e *Engine) settle(f orderbook.Fill) {
	if buyer, ok := e.byID[f.BuyAgentID]; ok {
		buyer.Account().ApplyFill(f.Qty, f.Price)
	}
	if seller, ok := e.byID[f.SellAgentID]; ok {
		seller.Account().ApplyFill(-f.Qty, f.Price)
	}
	e.statsMu.Lock()
	e.cumVolume += f.Qty
	e.fillCount++
	e.statsMu.Unlock()
	for _, h := range e.handlers {
		h(f)
	}
}

func (e *Engine) submissionOrder() []agent.Agent {
	if e.policy != Shuffle || len(e.agents) < 2 {
		return e.agents
	}
	shuffled := make([]agent.Agent, len(e.agents))
	copy(shuffled, e.agents)
	e.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled
}

// CumVolume 返回累计成交量。
func (e *Engine) CumVolume() float64 {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	return e.cumVolume
}

// FillCount 返回累计成交笔数。
func (e *Engine) FillCount() uint64 {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	return e.fillCount
}

// RejectedCount 返回被订单簿边界拒绝的订单数。
func (e *Engine) RejectedCount() uint64 {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	return e.rejected
}
