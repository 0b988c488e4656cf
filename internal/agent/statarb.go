package agent

import (
	"math/rand"

	"marketsim/internal/domain"
	"marketsim/pkg/quant"
)

// StatArb fades deviations of the traded price from the background
// reference: when the market trades rich it sells, when cheap it buys,
// expecting reversion.
type StatArb struct {
	NopAgent
	symbol   string
	entryBps int64 // deviation to open, in basis points of reference
	clipQty  quant.Qty
	maxPos   quant.Qty
}

// NewStatArb creates a mean-reversion strategy entering at entryBps
// deviation from reference.
func NewStatArb(symbol string, entryBps int64, clipQty, maxPos quant.Qty) *StatArb {
	if entryBps <= 0 {
		panic("StatArb: entryBps must be positive")
	}
	return &StatArb{symbol: symbol, entryBps: entryBps, clipQty: clipQty, maxPos: maxPos}
}

// OnTick compares mid to reference and fades rich/cheap markets with
// passive limit orders at the reference side of the touch.
func (s *StatArb) OnTick(view *MarketView, rng *rand.Rand) []Action {
	if view.Halted[s.symbol] {
		return nil
	}
	q := view.Quotes[s.symbol]
	mid, ref := q.Mid(), q.RefPrice
	if mid == 0 || ref == 0 {
		return nil
	}

	devBps := (int64(mid) - int64(ref)) * 10_000 / int64(ref)
	pos := view.Position(s.symbol).NetQty
	inst := view.Instruments[s.symbol]
	qty := inst.SnapQty(s.clipQty)
	if qty == 0 {
		return nil
	}

	switch {
	case devBps >= s.entryBps && pos > -s.maxPos:
		// market rich: hit the bid
		if q.BidPrice == 0 {
			return nil
		}
		return []Action{{
			Type: ActionSubmit, Symbol: s.symbol, Side: domain.Sell,
			OrderType: domain.TypeLimit, TIF: domain.IOC, Price: q.BidPrice, Qty: qty,
		}}
	case devBps <= -s.entryBps && pos < s.maxPos:
		if q.AskPrice == 0 {
			return nil
		}
		return []Action{{
			Type: ActionSubmit, Symbol: s.symbol, Side: domain.Buy,
			OrderType: domain.TypeLimit, TIF: domain.IOC, Price: q.AskPrice, Qty: qty,
		}}
	}
	return nil
}
