package engine

import (
	"marketsim/internal/domain"
	"marketsim/internal/event"
	"marketsim/pkg/quant"
)

// Stop-family orders rest outside the book until the last trade price
// crosses their trigger: buy stops fire on last >= stop, sell stops on
// last <= stop. A triggered order converts and re-enters matching with
// a fresh id, which resets its time priority.

func stopTriggered(o *domain.Order, last quant.PriceMicros) bool {
	if last == 0 {
		return false
	}
	if o.Side == domain.Buy {
		return last >= o.StopPrice
	}
	return last <= o.StopPrice
}

// initTrailing seeds a trailing stop's trigger from its offset when
// the submitter left the stop price unset.
func (e *MatchingEngine) initTrailing(o *domain.Order) {
	if o.StopPrice != 0 {
		return
	}
	last := e.books[o.Symbol].LastPrice()
	if last == 0 {
		if inst := e.instruments[o.Symbol]; inst != nil {
			last = inst.RefPrice
		}
	}
	if o.Side == domain.Buy {
		o.StopPrice = last + o.TrailOffset
	} else {
		o.StopPrice = last - o.TrailOffset
	}
}

// updateTrailing tightens trailing stops toward the market after a
// trade. A trailing stop only ever moves in the favorable direction:
// buy stops ratchet down as the market falls, sell stops ratchet up as
// it rises.
func (e *MatchingEngine) updateTrailing(symbol string, last quant.PriceMicros) {
	for _, o := range e.stops[symbol] {
		if o.Type != domain.TypeTrailingStop {
			continue
		}
		if o.Side == domain.Buy {
			if candidate := last + o.TrailOffset; candidate < o.StopPrice {
				o.StopPrice = candidate
			}
		} else {
			if candidate := last - o.TrailOffset; candidate > o.StopPrice {
				o.StopPrice = candidate
			}
		}
	}
}

// processTriggers converts stops whose trigger the last trade price
// crossed and re-enters them through the full matching path. The
// resulting trades can trigger further stops, so this loops until a
// pass fires nothing.
func (e *MatchingEngine) processTriggers(symbol string, ts quant.TimeStamp, res *Result) {
	for {
		last := e.books[symbol].LastPrice()
		var fired *domain.Order
		queue := e.stops[symbol]
		for i, o := range queue {
			if stopTriggered(o, last) {
				fired = o
				e.stops[symbol] = append(queue[:i:i], queue[i+1:]...)
				break
			}
		}
		if fired == nil {
			return
		}

		// the pending-trigger id is retired; the conversion re-enters
		// matching under a fresh id with fresh time priority
		fired.Cancel(ts)
		res.push(&event.OrderCancelled{
			Base: event.Base{Ts: ts}, OrderID: fired.ID,
			ParticipantID: fired.ParticipantID, Symbol: symbol, Remaining: fired.Remaining,
		})

		converted := &domain.Order{
			ID:            e.orderIDs.Next(),
			ParticipantID: fired.ParticipantID,
			Symbol:        symbol,
			Side:          fired.Side,
			TIF:           fired.TIF,
			TotalQty:      fired.Remaining,
		}
		if fired.Type == domain.TypeStopLimit {
			converted.Type = domain.TypeLimit
			converted.Price = fired.Price
		} else {
			converted.Type = domain.TypeMarket
		}

		sub := e.Submit(converted, ts)
		res.Trades = append(res.Trades, sub.Trades...)
		res.Events = append(res.Events, sub.Events...)
	}
}

// OnUncross runs the post-trade evaluation after an auction prints at
// last: trailing stops ratchet, triggered stops convert, pegged orders
// re-price. Auction trades never pass through Submit, so the exchange
// calls this once per uncrossed symbol.
func (e *MatchingEngine) OnUncross(symbol string, last quant.PriceMicros, ts quant.TimeStamp) *Result {
	res := &Result{}
	e.updateTrailing(symbol, last)
	e.processTriggers(symbol, ts, res)
	e.repegSymbol(symbol, ts, res)
	return res
}

// removeStop pulls an untriggered stop owned by participant. Returns
// nil for unknown ids or non-owners.
func (e *MatchingEngine) removeStop(symbol string, orderID, participantID int64) *domain.Order {
	queue := e.stops[symbol]
	for i, o := range queue {
		if o.ID == orderID {
			if o.ParticipantID != participantID {
				return nil
			}
			e.stops[symbol] = append(queue[:i:i], queue[i+1:]...)
			return o
		}
	}
	return nil
}

// PendingStops returns the count of untriggered stop orders for a
// symbol.
func (e *MatchingEngine) PendingStops(symbol string) int {
	return len(e.stops[symbol])
}
