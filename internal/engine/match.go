package engine

import (
	"marketsim/internal/domain"
	"marketsim/internal/event"
	"marketsim/pkg/quant"
)

// matchAndPlace runs the continuous-trading path for an accepted
// non-stop order: FOK liquidity precheck, the matching walk, then the
// resting or cancel outcome demanded by the order type and TIF.
func (e *MatchingEngine) matchAndPlace(o *domain.Order, ts quant.TimeStamp, res *Result) {
	b := e.books[o.Symbol]
	limit := o.Price
	if o.Type == domain.TypeMarket || o.Type == domain.TypeMarketToLimit {
		limit = 0
	}

	// FOK: all-or-nothing, decided before any fill. Self-owned resting
	// liquidity is excluded because the walk will not touch it.
	if o.TIF == domain.FOK {
		if b.AvailableWithin(o.Side, limit, o.ParticipantID) < o.Remaining {
			o.Status = domain.StatusCancelled
			res.Reason = domain.ReasonInsufficientLiquidity
			res.push(&event.OrderCancelled{
				Base: event.Base{Ts: ts}, OrderID: o.ID,
				ParticipantID: o.ParticipantID, Symbol: o.Symbol, Remaining: o.Remaining,
			})
			return
		}
	}

	if o.Type == domain.TypeMarketToLimit {
		e.matchMarketToLimit(o, ts, res)
		return
	}

	e.walk(o, limit, ts, res)

	if o.Remaining == 0 {
		return
	}

	switch {
	case o.Type == domain.TypeMarket:
		// market remainders never rest
		e.cancelRemainder(o, ts, res)
	case o.TIF == domain.IOC || o.TIF == domain.FOK:
		e.cancelRemainder(o, ts, res)
	case e.wouldSelfCross(o):
		// the only way a remainder can still cross is against the
		// participant's own resting order; cancel-newest rather than
		// resting a crossed book
		e.cancelRemainder(o, ts, res)
	default:
		e.rest(o)
	}
}

// walk consumes opposite-side liquidity best-to-worst up to limit
// (0 = no limit), FIFO within each level, skipping resting orders
// owned by the aggressor's participant.
func (e *MatchingEngine) walk(o *domain.Order, limit quant.PriceMicros, ts quant.TimeStamp, res *Result) {
	b := e.books[o.Symbol]
	opp := o.Side.Opposite()
	blocked := 0 // levels holding only self-owned orders, already passed

	for o.Remaining > 0 {
		levels := b.Levels(opp)
		if blocked >= len(levels) {
			return
		}
		lvl := levels[blocked]
		price := lvl.Price()
		if limit != 0 {
			if o.Side == domain.Buy && price > limit {
				return
			}
			if o.Side == domain.Sell && price < limit {
				return
			}
		}
		resting := lvl.FirstEligible(o.ParticipantID)
		if resting == nil {
			blocked++
			continue
		}

		qty := o.Remaining
		if v := resting.VisibleQty(); v < qty {
			qty = v
		}
		e.execute(o, resting, price, qty, ts, res)
	}
}

// matchMarketToLimit executes against the best price level only, then
// rests the remainder as a limit at the fill price, or cancels
// outright when nothing filled.
func (e *MatchingEngine) matchMarketToLimit(o *domain.Order, ts quant.TimeStamp, res *Result) {
	b := e.books[o.Symbol]
	opp := o.Side.Opposite()

	best := b.BestLevel(opp)
	var bestPrice quant.PriceMicros
	if best != nil {
		bestPrice = best.Price()
	}
	for o.Remaining > 0 {
		lvl := b.BestLevel(opp)
		if lvl == nil || lvl.Price() != bestPrice {
			break
		}
		resting := lvl.FirstEligible(o.ParticipantID)
		if resting == nil {
			break
		}
		qty := o.Remaining
		if v := resting.VisibleQty(); v < qty {
			qty = v
		}
		e.execute(o, resting, bestPrice, qty, ts, res)
	}

	if o.Remaining == 0 {
		return
	}
	if o.FilledQty == 0 {
		e.cancelRemainder(o, ts, res)
		return
	}
	// remainder converts to a resting limit at the last fill price
	o.Type = domain.TypeLimit
	o.Price = bestPrice
	if e.wouldSelfCross(o) {
		e.cancelRemainder(o, ts, res)
		return
	}
	e.rest(o)
}

// execute books one fill: both orders mutate, a trade is recorded, and
// trailing stops see the new last price.
func (e *MatchingEngine) execute(aggr, resting *domain.Order, price quant.PriceMicros, qty quant.Qty, ts quant.TimeStamp, res *Result) {
	b := e.books[aggr.Symbol]

	buyOrder, sellOrder := aggr, resting
	if aggr.Side == domain.Sell {
		buyOrder, sellOrder = resting, aggr
	}

	trade := &domain.Trade{
		ID:           e.tradeIDs.Next(),
		Symbol:       aggr.Symbol,
		Price:        price,
		Qty:          qty,
		Aggressor:    aggr.Side,
		BuyOrderID:   buyOrder.ID,
		SellOrderID:  sellOrder.ID,
		BuyerID:      buyOrder.ParticipantID,
		SellerID:     sellOrder.ParticipantID,
		Timestamp:    ts,
		MakerOrderID: resting.ID,
		TakerOrderID: aggr.ID,
	}

	b.ApplyFill(resting.ID, qty, ts)
	aggr.Fill(qty, ts)
	b.RecordTrade(price, qty)
	e.updateTrailing(aggr.Symbol, price)

	res.Trades = append(res.Trades, trade)
	res.push(&event.TradeExecuted{Base: event.Base{Ts: ts}, Trade: *trade})
}

// rest places the remainder in the book and tracks pegs for re-pricing.
func (e *MatchingEngine) rest(o *domain.Order) {
	e.books[o.Symbol].Insert(o)
	if o.Type == domain.TypePegged {
		e.pegged[o.Symbol] = append(e.pegged[o.Symbol], o.ID)
	}
}

func (e *MatchingEngine) cancelRemainder(o *domain.Order, ts quant.TimeStamp, res *Result) {
	o.Cancel(ts)
	res.push(&event.OrderCancelled{
		Base: event.Base{Ts: ts}, OrderID: o.ID,
		ParticipantID: o.ParticipantID, Symbol: o.Symbol, Remaining: o.Remaining,
	})
}

// wouldSelfCross reports whether resting o at o.Price would lock or
// cross the opposite top of book. After a full walk the only liquidity
// left inside the limit belongs to the same participant.
func (e *MatchingEngine) wouldSelfCross(o *domain.Order) bool {
	b := e.books[o.Symbol]
	opp := b.BestLevel(o.Side.Opposite())
	if opp == nil {
		return false
	}
	if o.Side == domain.Buy {
		return o.Price >= opp.Price()
	}
	return o.Price <= opp.Price()
}
