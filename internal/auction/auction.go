// Package auction implements the call-auction engine: it accumulates
// auction-eligible orders per instrument during the call phases and
// uncrosses them at the single price that maximizes executable volume.
package auction

import (
	"sort"

	"marketsim/internal/domain"
	"marketsim/pkg/quant"
)

// Call is the open order collection for one instrument's auction.
type call struct {
	symbol string
	orders []*domain.Order // arrival order preserved for time priority
}

// Outcome is the result of uncrossing one call.
type Outcome struct {
	Symbol    string
	Price     quant.PriceMicros
	Volume    quant.Qty
	Imbalance quant.Qty
	Trades    []*domain.Trade
	Unfilled  []*domain.Order // leftovers, cancelled by the caller
}

// Engine runs call auctions. Trade ids come from the shared generator
// so clearing sees one id space across auction and continuous trades.
type Engine struct {
	calls       map[string]*call
	nextTradeID func() int64
}

// New creates an auction engine. nextTradeID must be the venue-wide
// trade id source.
func New(nextTradeID func() int64) *Engine {
	return &Engine{
		calls:       make(map[string]*call),
		nextTradeID: nextTradeID,
	}
}

// AddOrder collects a validated, risk-approved order into the call.
// Only market and limit style orders are auction-eligible; the
// exchange filters the rest before routing here.
func (e *Engine) AddOrder(o *domain.Order) {
	c, ok := e.calls[o.Symbol]
	if !ok {
		c = &call{symbol: o.Symbol}
		e.calls[o.Symbol] = c
	}
	o.Remaining = o.TotalQty
	c.orders = append(c.orders, o)
}

// OpenOrders returns the number of collected orders for a symbol.
func (e *Engine) OpenOrders(symbol string) int {
	if c, ok := e.calls[symbol]; ok {
		return len(c.orders)
	}
	return 0
}

// Indicative computes the clearing price and volume the call would
// produce if it fired now. ok is false when no cross exists.
func (e *Engine) Indicative(symbol string, ref quant.PriceMicros) (quant.PriceMicros, quant.Qty, bool) {
	c, ok := e.calls[symbol]
	if !ok {
		return 0, 0, false
	}
	price, volume, _, found := clearingPrice(c.orders, ref)
	return price, volume, found
}

// Execute uncrosses the call and clears it for the next session.
// Every resulting trade executes at the single clearing price. Returns
// nil when no price crosses.
func (e *Engine) Execute(symbol string, ref quant.PriceMicros, ts quant.TimeStamp) *Outcome {
	c, ok := e.calls[symbol]
	if !ok || len(c.orders) == 0 {
		return nil
	}
	defer delete(e.calls, symbol)

	price, volume, imbalance, found := clearingPrice(c.orders, ref)
	if !found || volume == 0 {
		return &Outcome{Symbol: symbol, Unfilled: c.orders}
	}

	buys := eligible(c.orders, domain.Buy, price)
	sells := eligible(c.orders, domain.Sell, price)

	out := &Outcome{Symbol: symbol, Price: price, Volume: volume, Imbalance: imbalance}
	bi, si := 0, 0
	for bi < len(buys) && si < len(sells) {
		b, s := buys[bi], sells[si]
		qty := b.Remaining
		if s.Remaining < qty {
			qty = s.Remaining
		}
		b.Fill(qty, ts)
		s.Fill(qty, ts)
		out.Trades = append(out.Trades, &domain.Trade{
			ID:           e.nextTradeID(),
			Symbol:       symbol,
			Price:        price,
			Qty:          qty,
			Aggressor:    domain.Buy, // no aggressor in a call; flagged below
			BuyOrderID:   b.ID,
			SellOrderID:  s.ID,
			BuyerID:      b.ParticipantID,
			SellerID:     s.ParticipantID,
			Timestamp:    ts,
			AuctionTrade: true,
		})
		if b.Remaining == 0 {
			bi++
		}
		if s.Remaining == 0 {
			si++
		}
	}

	for _, o := range c.orders {
		if o.Remaining > 0 {
			out.Unfilled = append(out.Unfilled, o)
		}
	}
	return out
}

// eligible returns the orders on side willing to trade at price, in
// execution priority: market orders first, then best price, then
// arrival order (the collection preserves arrival).
func eligible(orders []*domain.Order, side domain.Side, price quant.PriceMicros) []*domain.Order {
	out := make([]*domain.Order, 0, len(orders))
	for _, o := range orders {
		if o.Side != side || o.Remaining == 0 {
			continue
		}
		if willTrade(o, price) {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		mi, mj := out[i].Type == domain.TypeMarket, out[j].Type == domain.TypeMarket
		if mi != mj {
			return mi
		}
		if mi {
			return false // both market: keep arrival order
		}
		if side == domain.Buy {
			return out[i].Price > out[j].Price
		}
		return out[i].Price < out[j].Price
	})
	return out
}

func willTrade(o *domain.Order, price quant.PriceMicros) bool {
	if o.Type == domain.TypeMarket {
		return true
	}
	if o.Side == domain.Buy {
		return o.Price >= price
	}
	return o.Price <= price
}

// clearingPrice implements the standard call-auction rule: among
// candidate prices (the distinct limit prices present), choose the one
// clearing the greatest matched quantity; break ties toward minimum
// imbalance, then toward proximity to the reference price.
func clearingPrice(orders []*domain.Order, ref quant.PriceMicros) (quant.PriceMicros, quant.Qty, quant.Qty, bool) {
	prices := make(map[quant.PriceMicros]struct{})
	for _, o := range orders {
		if o.Type != domain.TypeMarket && o.Price > 0 {
			prices[o.Price] = struct{}{}
		}
	}
	if len(prices) == 0 {
		return 0, 0, 0, false
	}
	candidates := make([]quant.PriceMicros, 0, len(prices))
	for p := range prices {
		candidates = append(candidates, p)
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i] < candidates[j] })

	var bestPrice quant.PriceMicros
	var bestVol quant.Qty
	var bestImb quant.Qty
	found := false

	for _, p := range candidates {
		var demand, supply quant.Qty
		for _, o := range orders {
			if o.Remaining == 0 {
				continue
			}
			qty := o.Remaining
			switch o.Side {
			case domain.Buy:
				if willTrade(o, p) {
					demand += qty
				}
			case domain.Sell:
				if willTrade(o, p) {
					supply += qty
				}
			}
		}
		vol := demand
		if supply < vol {
			vol = supply
		}
		imb := demand - supply
		if imb < 0 {
			imb = -imb
		}
		if !found || vol > bestVol ||
			(vol == bestVol && imb < bestImb) ||
			(vol == bestVol && imb == bestImb && closer(p, bestPrice, ref)) {
			bestPrice, bestVol, bestImb = p, vol, imb
			found = true
		}
	}
	if bestVol == 0 {
		return 0, 0, 0, false
	}
	return bestPrice, bestVol, bestImb, true
}

func closer(a, b, ref quant.PriceMicros) bool {
	if ref == 0 {
		return false
	}
	da, db := a-ref, b-ref
	if da < 0 {
		da = -da
	}
	if db < 0 {
		db = -db
	}
	return da < db
}
