package agent

import (
	"math/rand"

	"marketsim/internal/domain"
	"marketsim/pkg/quant"
)

// Sniper is the HFT strategy family: it latches onto order book
// imbalance and takes liquidity aggressively when one side dominates,
// betting on short-term continuation.
type Sniper struct {
	NopAgent
	symbol    string
	threshold float64 // imbalance trigger, 0..1
	clipQty   quant.Qty
	maxPos    quant.Qty
}

// NewSniper creates a sniper firing clipQty IOC orders when the depth
// imbalance exceeds threshold.
func NewSniper(symbol string, threshold float64, clipQty, maxPos quant.Qty) *Sniper {
	if threshold <= 0 || threshold >= 1 {
		panic("Sniper: threshold must be in (0, 1)")
	}
	return &Sniper{symbol: symbol, threshold: threshold, clipQty: clipQty, maxPos: maxPos}
}

// OnTick fires at imbalance extremes.
func (s *Sniper) OnTick(view *MarketView, rng *rand.Rand) []Action {
	if view.Halted[s.symbol] {
		return nil
	}
	depth := view.Depths[s.symbol]
	imb := depth.Imbalance()
	if imb < s.threshold && imb > -s.threshold {
		return nil
	}

	pos := view.Position(s.symbol).NetQty
	side := domain.Buy
	if imb < 0 {
		side = domain.Sell
	}
	// don't pyramid past the cap
	if side == domain.Buy && pos >= s.maxPos {
		return nil
	}
	if side == domain.Sell && pos <= -s.maxPos {
		return nil
	}

	q := view.Quotes[s.symbol]
	limit := q.AskPrice
	if side == domain.Sell {
		limit = q.BidPrice
	}
	if limit == 0 {
		return nil
	}
	// quoted prices are on-grid already; only the clip needs aligning
	inst := view.Instruments[s.symbol]
	qty := inst.SnapQty(s.clipQty)
	if qty == 0 {
		return nil
	}
	return []Action{{
		Type: ActionSubmit, Symbol: s.symbol, Side: side,
		OrderType: domain.TypeLimit, TIF: domain.IOC, Price: limit, Qty: qty,
	}}
}
