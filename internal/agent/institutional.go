package agent

import (
	"math/rand"

	"marketsim/internal/domain"
	"marketsim/pkg/quant"
)

// VWAPExecutor is the institutional execution algorithm: it works a
// parent order over a configured horizon, slicing child orders so the
// executed quantity tracks the elapsed-time schedule.
type VWAPExecutor struct {
	NopAgent
	symbol    string
	side      domain.Side
	parentQty quant.Qty
	start     quant.TimeStamp
	end       quant.TimeStamp
	maxSlice  quant.Qty

	executed quant.Qty
	working  quant.Qty // child quantity live in the market
}

// NewVWAPExecutor creates an executor working parentQty between start
// and end of the logical clock.
func NewVWAPExecutor(symbol string, side domain.Side, parentQty quant.Qty, start, end quant.TimeStamp, maxSlice quant.Qty) *VWAPExecutor {
	if end <= start {
		panic("VWAPExecutor: end must be after start")
	}
	if maxSlice <= 0 {
		maxSlice = parentQty / 10
	}
	return &VWAPExecutor{
		symbol: symbol, side: side, parentQty: parentQty,
		start: start, end: end, maxSlice: maxSlice,
	}
}

// Done reports whether the parent order has completed.
func (v *VWAPExecutor) Done() bool { return v.executed >= v.parentQty }

// OnTick sends the next child slice when execution lags the schedule.
func (v *VWAPExecutor) OnTick(view *MarketView, rng *rand.Rand) []Action {
	if v.Done() || view.Now < v.start || view.Halted[v.symbol] {
		return nil
	}

	// target quantity grows linearly over the horizon
	elapsed := view.Now - v.start
	horizon := v.end - v.start
	if elapsed > horizon {
		elapsed = horizon
	}
	target := quant.Qty(int64(v.parentQty) * int64(elapsed) / int64(horizon))

	behind := target - v.executed - v.working
	if behind <= 0 {
		return nil
	}
	slice := behind
	if slice > v.maxSlice {
		slice = v.maxSlice
	}
	if remaining := v.parentQty - v.executed - v.working; slice > remaining {
		slice = remaining
	}
	if slice <= 0 {
		return nil
	}
	inst := view.Instruments[v.symbol]
	slice = inst.SnapQty(slice)
	if slice <= 0 {
		return nil
	}

	q := view.Quotes[v.symbol]
	limit := q.AskPrice
	if v.side == domain.Sell {
		limit = q.BidPrice
	}
	if limit == 0 {
		return nil
	}
	v.working += slice
	return []Action{{
		Type: ActionSubmit, Symbol: v.symbol, Side: v.side,
		OrderType: domain.TypeLimit, TIF: domain.IOC, Price: limit, Qty: slice,
	}}
}

// OnFill moves filled child quantity from working to executed.
func (v *VWAPExecutor) OnFill(f Fill) {
	if f.Symbol != v.symbol {
		return
	}
	v.executed += f.Qty
	v.working -= f.Qty
	if v.working < 0 {
		v.working = 0
	}
}

// OnCancel releases the unfilled remainder of a child slice.
func (v *VWAPExecutor) OnCancel(_ int64, remaining quant.Qty) {
	v.working -= remaining
	if v.working < 0 {
		v.working = 0
	}
}
