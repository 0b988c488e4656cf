package agent

import (
	"math/rand"

	"marketsim/internal/domain"
	"marketsim/pkg/quant"
)

// MarketMaker quotes both sides around the mid with an inventory skew:
// as its position grows long it shades quotes down to shed, and vice
// versa. Quotes are refreshed every tick by cancelling and re-quoting.
type MarketMaker struct {
	NopAgent
	symbol     string
	halfSpread quant.PriceMicros
	quoteQty   quant.Qty
	maxInv     quant.Qty

	liveOrders []int64
}

// NewMarketMaker creates a maker quoting quoteQty at mid±halfSpread
// with inventory capped at maxInv.
func NewMarketMaker(symbol string, halfSpread quant.PriceMicros, quoteQty, maxInv quant.Qty) *MarketMaker {
	if halfSpread <= 0 || quoteQty <= 0 || maxInv <= 0 {
		panic("MarketMaker: spread, quantity and inventory cap must be positive")
	}
	return &MarketMaker{symbol: symbol, halfSpread: halfSpread, quoteQty: quoteQty, maxInv: maxInv}
}

// OnTick refreshes the two-sided quote.
func (m *MarketMaker) OnTick(view *MarketView, rng *rand.Rand) []Action {
	q := view.Quotes[m.symbol]
	mid := q.Mid()
	if mid == 0 || view.Halted[m.symbol] {
		return nil
	}

	actions := make([]Action, 0, len(m.liveOrders)+2)
	for _, id := range m.liveOrders {
		actions = append(actions, Action{Type: ActionCancel, Symbol: m.symbol, OrderID: id})
	}
	m.liveOrders = m.liveOrders[:0]

	// inventory skew shades both quotes against the position
	inv := view.Position(m.symbol).NetQty
	skew := quant.PriceMicros(int64(m.halfSpread) * int64(inv) / int64(m.maxInv))
	inst := view.Instruments[m.symbol]
	bid := inst.SnapToTick(mid-m.halfSpread-skew, domain.Buy)
	ask := inst.SnapToTick(mid+m.halfSpread-skew, domain.Sell)
	qty := inst.SnapQty(m.quoteQty)
	if qty == 0 {
		return actions
	}

	if inv < m.maxInv && bid > 0 {
		actions = append(actions, Action{
			Type: ActionSubmit, Symbol: m.symbol, Side: domain.Buy,
			OrderType: domain.TypeLimit, TIF: domain.GTC, Price: bid, Qty: qty,
		})
	}
	if inv > -m.maxInv {
		actions = append(actions, Action{
			Type: ActionSubmit, Symbol: m.symbol, Side: domain.Sell,
			OrderType: domain.TypeLimit, TIF: domain.GTC, Price: ask, Qty: qty,
		})
	}
	return actions
}

// OnOrderAccepted tracks live quote ids for next-tick cancellation.
func (m *MarketMaker) OnOrderAccepted(o domain.Order) {
	if o.IsOpen() {
		m.liveOrders = append(m.liveOrders, o.ID)
	}
}

// OnCancel forgets a dead quote.
func (m *MarketMaker) OnCancel(orderID int64, _ quant.Qty) {
	for i, id := range m.liveOrders {
		if id == orderID {
			m.liveOrders = append(m.liveOrders[:i], m.liveOrders[i+1:]...)
			return
		}
	}
}

// OnFill drops fully filled quotes from tracking.
func (m *MarketMaker) OnFill(f Fill) {
	if f.Remaining > 0 {
		return
	}
	m.OnCancel(f.OrderID, 0)
}
