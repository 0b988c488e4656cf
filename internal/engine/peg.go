package engine

import (
	"marketsim/internal/domain"
	"marketsim/internal/event"
	"marketsim/pkg/quant"
)

// pegPrice resolves the working price of a pegged order from the
// current book, rounded to a valid tick toward the passive side.
// ok is false when the reference point does not exist yet.
func (e *MatchingEngine) pegPrice(o *domain.Order) (quant.PriceMicros, bool) {
	b := e.books[o.Symbol]
	bid, _, haveBid := b.BestBid()
	ask, _, haveAsk := b.BestAsk()

	var ref quant.PriceMicros
	switch o.Peg {
	case domain.PegMidpoint:
		if !haveBid || !haveAsk {
			return 0, false
		}
		ref = (bid + ask) / 2
	case domain.PegPrimary:
		if o.Side == domain.Buy {
			if !haveBid {
				return 0, false
			}
			ref = bid
		} else {
			if !haveAsk {
				return 0, false
			}
			ref = ask
		}
	case domain.PegMarket:
		if o.Side == domain.Buy {
			if !haveAsk {
				return 0, false
			}
			ref = ask
		} else {
			if !haveBid {
				return 0, false
			}
			ref = bid
		}
	default:
		return 0, false
	}

	if o.Side == domain.Buy {
		ref += o.PegOffset
	} else {
		ref -= o.PegOffset
	}
	if ref <= 0 {
		return 0, false
	}
	return e.instruments[o.Symbol].SnapToTick(ref, o.Side), true
}

// repegSymbol re-prices resting pegged orders after the top of book
// moves. Re-pegging is cancel plus reinsert with a new id, resetting
// time priority; the replacement goes back through the matching path.
func (e *MatchingEngine) repegSymbol(symbol string, ts quant.TimeStamp, res *Result) {
	ids := e.pegged[symbol]
	if len(ids) == 0 || e.repegging {
		return
	}
	e.repegging = true
	defer func() { e.repegging = false }()
	b := e.books[symbol]

	for _, id := range append([]int64(nil), ids...) {
		o, ok := b.GetOrder(id)
		if !ok {
			e.untrackPeg(symbol, id)
			continue
		}
		// with the order still resting: an unchanged target means no
		// repeg, so queue position at the level survives
		if target, haveRef := e.pegPrice(o); haveRef && target == o.Price {
			continue
		}
		// pull the peg before recomputing its target, so an order
		// pegged to a point it itself defines never chases its own price
		b.Cancel(id)
		target, haveRef := e.pegPrice(o)
		if haveRef && target == o.Price {
			b.Insert(o)
			continue
		}

		o.Cancel(ts)
		e.untrackPeg(symbol, id)
		res.push(&event.OrderCancelled{
			Base: event.Base{Ts: ts}, OrderID: id,
			ParticipantID: o.ParticipantID, Symbol: symbol, Remaining: o.Remaining,
		})
		if !haveRef {
			// reference vanished (side emptied); the order dies with
			// the cancel above
			continue
		}

		replacement := &domain.Order{
			ID:            e.orderIDs.Next(),
			ParticipantID: o.ParticipantID,
			Symbol:        symbol,
			Side:          o.Side,
			Type:          domain.TypePegged,
			TIF:           o.TIF,
			Peg:           o.Peg,
			PegOffset:     o.PegOffset,
			TotalQty:      o.Remaining,
		}
		sub := e.Submit(replacement, ts)
		res.Trades = append(res.Trades, sub.Trades...)
		res.Events = append(res.Events, sub.Events...)
	}
}

func (e *MatchingEngine) untrackPeg(symbol string, orderID int64) {
	ids := e.pegged[symbol]
	for i, id := range ids {
		if id == orderID {
			e.pegged[symbol] = append(ids[:i:i], ids[i+1:]...)
			return
		}
	}
}
