// Package agent implements the heterogeneous trading policies that populate
// a simulated market. Each agent owns its account, its risk guard and its
// seeded RNG stream; a proposed order that would breach the agent's own
// limits is silently omitted for the tick.
package agent

import (
	"fmt"
	"math/rand"

	"prism-sim/inventory"
	"prism-sim/market"
	"prism-sim/orderbook"
	"prism-sim/risk"
)

type Kind string

const (
	KindMarketMaker Kind = "market_maker"
	KindNoise       Kind = "noise"
	KindInformed    Kind = "informed"
	KindMomentum    Kind = "momentum"
)

// Decision is one agent's output for a tick: cancels are processed before
// new orders so cancel-and-replace quoting works within a single tick.
type Decision struct {
	Cancels []string
	Orders  []orderbook.Order
}

// Agent is the common capability shared by all archetypes.
type Agent interface {
	ID() string
	Kind() Kind
	Account() *inventory.Account
	Decide(st market.State) Decision
}

// base carries what every archetype shares: identity, account, risk guard,
// private RNG and the symbol's quoting constraints.
type base struct {
	id          string
	kind        Kind
	symbol      string
	acct        *inventory.Account
	guard       risk.Guard
	rng         *rand.Rand
	constraints orderbook.Constraints
	seq         uint64
}

func newBase(id string, kind Kind, symbol string, cash float64, limits risk.Limits, seed int64, constraints orderbook.Constraints) base {
	acct := inventory.NewAccount(cash)
	return base{
		id:          id,
		kind:        kind,
		symbol:      symbol,
		acct:        acct,
		guard:       risk.NewLimitChecker(limits, acct),
		rng:         rand.New(rand.NewSource(seed)),
		constraints: constraints,
	}
}

func (b *base) ID() string                  { return b.id }
func (b *base) Kind() Kind                  { return b.kind }
func (b *base) Account() *inventory.Account { return b.acct }

// nextOrderID ids are allocated from the agent's own sequence so the agent
// can cancel its prior quotes without a callback from the engine.
func (b *base) nextOrderID() string {
	b.seq++
	return fmt.Sprintf("%s-%d", b.id, b.seq)
}

// limitOrder rounds the quote to the symbol grid and runs the risk guard.
// A veto or a degenerate rounded order returns ok=false; the caller drops
// the slot without raising anything.
func (b *base) limitOrder(side orderbook.Side, price, qty float64) (orderbook.Order, bool) {
	price = b.constraints.RoundPrice(price)
	qty = b.constraints.RoundQty(qty)
	if price <= 0 || qty <= 0 {
		return orderbook.Order{}, false
	}
	if !b.allow(side, price, qty) {
		return orderbook.Order{}, false
	}
	return orderbook.Order{
		ID:      b.nextOrderID(),
		Symbol:  b.symbol,
		Side:    side,
		Type:    orderbook.LIMIT,
		Price:   price,
		Qty:     qty,
		AgentID: b.id,
	}, true
}

// marketOrder guards against the reference price since a market order has
// no limit of its own.
func (b *base) marketOrder(side orderbook.Side, qty, refPrice float64) (orderbook.Order, bool) {
	qty = b.constraints.RoundQty(qty)
	if qty <= 0 {
		return orderbook.Order{}, false
	}
	if !b.allow(side, refPrice, qty) {
		return orderbook.Order{}, false
	}
	return orderbook.Order{
		ID:      b.nextOrderID(),
		Symbol:  b.symbol,
		Side:    side,
		Type:    orderbook.MARKET,
		Qty:     qty,
		AgentID: b.id,
	}, true
}

func (b *base) allow(side orderbook.Side, price, qty float64) bool {
	if b.guard == nil {
		return true
	}
	delta := qty
	if side == orderbook.SELL {
		delta = -qty
	}
	return b.guard.PreOrder(delta, price) == nil
}
