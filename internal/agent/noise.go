package agent

import (
	"math/rand"

	"marketsim/internal/domain"
	"marketsim/pkg/quant"
)

// NoiseTrader submits small randomized limit orders around the mid.
// It provides the background order flow that gives the book texture.
type NoiseTrader struct {
	NopAgent
	symbols   []string
	activity  float64 // probability of acting on a tick
	maxQty    quant.Qty
	spreadPct int64 // max limit offset from mid, percent
}

// NewNoiseTrader creates a noise trader active on the given symbols.
func NewNoiseTrader(symbols []string, activity float64, maxQty quant.Qty) *NoiseTrader {
	if activity <= 0 || activity > 1 {
		panic("NoiseTrader: activity must be in (0, 1]")
	}
	return &NoiseTrader{symbols: symbols, activity: activity, maxQty: maxQty, spreadPct: 2}
}

// OnTick occasionally places a random small limit order near the mid.
func (n *NoiseTrader) OnTick(view *MarketView, rng *rand.Rand) []Action {
	if rng.Float64() > n.activity || len(n.symbols) == 0 {
		return nil
	}
	sym := n.symbols[rng.Intn(len(n.symbols))]
	if view.Halted[sym] {
		return nil
	}
	mid := view.Quotes[sym].Mid()
	if mid == 0 {
		return nil
	}

	side := domain.Buy
	if rng.Intn(2) == 1 {
		side = domain.Sell
	}
	// offset up to spreadPct% away from mid, passive side
	offset := quant.PriceMicros(rng.Int63n(int64(mid)*n.spreadPct/100 + 1))
	price := mid - offset
	if side == domain.Sell {
		price = mid + offset
	}
	inst := view.Instruments[sym]
	price = inst.SnapToTick(price, side)
	qty := inst.SnapQty(quant.Qty(rng.Int63n(int64(n.maxQty))) + 1)
	if qty == 0 {
		qty = inst.SnapQty(inst.MinQty)
	}
	if qty == 0 {
		return nil
	}

	return []Action{{
		Type: ActionSubmit, Symbol: sym, Side: side,
		OrderType: domain.TypeLimit, TIF: domain.GTC, Price: price, Qty: qty,
	}}
}

// RetailTrader is noise flow with retail texture: infrequent, mostly
// market orders, occasionally a stop loss on an open position.
type RetailTrader struct {
	NopAgent
	symbols  []string
	activity float64
	maxQty   quant.Qty
}

// NewRetailTrader creates a retail flow generator.
func NewRetailTrader(symbols []string, activity float64, maxQty quant.Qty) *RetailTrader {
	if activity <= 0 || activity > 1 {
		panic("RetailTrader: activity must be in (0, 1]")
	}
	return &RetailTrader{symbols: symbols, activity: activity, maxQty: maxQty}
}

// OnTick sends the occasional market order, and sometimes protects a
// long position with a trailing stop.
func (r *RetailTrader) OnTick(view *MarketView, rng *rand.Rand) []Action {
	if rng.Float64() > r.activity || len(r.symbols) == 0 {
		return nil
	}
	sym := r.symbols[rng.Intn(len(r.symbols))]
	if view.Halted[sym] {
		return nil
	}
	mid := view.Quotes[sym].Mid()
	if mid == 0 {
		return nil
	}
	inst := view.Instruments[sym]
	qty := inst.SnapQty(quant.Qty(rng.Int63n(int64(r.maxQty))) + 1)
	if qty == 0 {
		qty = inst.SnapQty(inst.MinQty)
	}
	if qty == 0 {
		return nil
	}

	pos := view.Position(sym).NetQty
	if pos > 0 && rng.Float64() < 0.2 {
		if stopQty := inst.SnapQty(pos); stopQty > 0 {
			// protect the position with a trailing stop one percent wide
			return []Action{{
				Type: ActionSubmit, Symbol: sym, Side: domain.Sell,
				OrderType: domain.TypeTrailingStop, TIF: domain.GTC,
				TrailOffset: mid / 100, Qty: stopQty,
			}}
		}
	}

	side := domain.Buy
	if rng.Intn(2) == 1 && pos > 0 {
		side = domain.Sell
		if qty > pos {
			qty = inst.SnapQty(pos)
			if qty == 0 {
				return nil
			}
		}
	}
	return []Action{{
		Type: ActionSubmit, Symbol: sym, Side: side,
		OrderType: domain.TypeMarket, TIF: domain.IOC, Qty: qty,
	}}
}
