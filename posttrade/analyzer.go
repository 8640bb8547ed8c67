// Package posttrade measures fill quality after the fact: for every fill it
// compares the mid a few ticks later against the fill price. In a market
// where informed traders peek at the next move, passive fills against them
// should show systematically negative markouts; this is where that shows up.
package posttrade

import (
	"prism-sim/orderbook"
)

// Stats contains statistics computed by the analyzer. Markouts are from the
// buyer's perspective: positive means the price rose after the fill.
type Stats struct {
	TotalFills    int
	AnalyzedFills int
	// AvgMarkoutShort/Long are mean relative mid moves at the two horizons.
	AvgMarkoutShort float64
	AvgMarkoutLong  float64
	// AdverseToSellerRate is the fraction of fills whose short markout is
	// positive, i.e. the seller would have done better by waiting.
	AdverseToSellerRate float64
}

type pendingFill struct {
	price     float64
	fillTick  uint64
	shortMid  float64
	shortDone bool
}

// Analyzer tracks per-fill markouts at two tick horizons.
type Analyzer struct {
	shortHorizon uint64
	longHorizon  uint64

	pending []pendingFill

	total        int
	analyzed     int
	sumShort     float64
	sumLong      float64
	adverseShort int
}

// NewAnalyzer 以 tick 为单位设置两个观察窗口。
func NewAnalyzer(shortHorizon, longHorizon uint64) *Analyzer {
	if shortHorizon == 0 {
		shortHorizon = 1
	}
	if longHorizon <= shortHorizon {
		longHorizon = shortHorizon + 4
	}
	return &Analyzer{shortHorizon: shortHorizon, longHorizon: longHorizon}
}

// OnFill records a filled order for later markout evaluation.
func (a *Analyzer) OnFill(f orderbook.Fill) {
	a.total++
	a.pending = append(a.pending, pendingFill{price: f.Price, fillTick: f.Tick})
}

// OnTick resolves any pending fills whose horizons have passed. Called once
// per tick with the current reference mid, after matching.
func (a *Analyzer) OnTick(tick uint64, mid float64) {
	if mid <= 0 {
		return
	}
	kept := a.pending[:0]
	for _, p := range a.pending {
		if !p.shortDone && tick >= p.fillTick+a.shortHorizon {
			p.shortMid = mid
			p.shortDone = true
		}
		if tick >= p.fillTick+a.longHorizon {
			a.resolve(p, mid)
			continue
		}
		kept = append(kept, p)
	}
	a.pending = kept
}

func (a *Analyzer) resolve(p pendingFill, longMid float64) {
	if p.price <= 0 || !p.shortDone {
		return
	}
	short := (p.shortMid - p.price) / p.price
	long := (longMid - p.price) / p.price
	a.analyzed++
	a.sumShort += short
	a.sumLong += long
	if short > 0 {
		a.adverseShort++
	}
}

// Stats computes and returns statistics over all resolved fills.
func (a *Analyzer) Stats() Stats {
	stats := Stats{
		TotalFills:    a.total,
		AnalyzedFills: a.analyzed,
	}
	if a.analyzed == 0 {
		return stats
	}
	stats.AvgMarkoutShort = a.sumShort / float64(a.analyzed)
	stats.AvgMarkoutLong = a.sumLong / float64(a.analyzed)
	stats.AdverseToSellerRate = float64(a.adverseShort) / float64(a.analyzed)
	return stats
}

// Pending 返回尚未走完观察窗口的成交数。
func (a *Analyzer) Pending() int { return len(a.pending) }
