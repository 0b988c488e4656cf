// Package engine implements the price-time priority matching engine.
// It owns every order book and turns each incoming order into a
// sequence of domain events; it holds no participant or risk state.
package engine

import (
	"log/slog"
	"sort"

	"marketsim/internal/book"
	"marketsim/internal/domain"
	"marketsim/internal/event"
	"marketsim/pkg/idgen"
	"marketsim/pkg/quant"
)

// Result is everything one submission produced, in order. The caller
// appends Events to the log and routes Trades to clearing; nothing
// here has a sequence number yet.
type Result struct {
	Accepted bool
	Reason   domain.RejectReason
	Order    *domain.Order
	Trades   []*domain.Trade
	Events   []event.SimEvent
}

func (r *Result) push(ev event.SimEvent) {
	r.Events = append(r.Events, ev)
}

// MatchingEngine owns all books plus the stop and peg order state that
// lives outside them. Single-threaded by design; the exchange drives
// it in a fixed per-tick sequence.
type MatchingEngine struct {
	instruments map[string]*domain.Instrument
	books       map[string]*book.Book
	stops       map[string][]*domain.Order // untriggered stop/stop-limit/trailing, FIFO
	pegged      map[string][]int64         // resting pegged order ids per symbol
	orderIDs    *idgen.Generator
	tradeIDs    *idgen.Generator
	repegging   bool // guards against re-entrant re-peg cascades
}

// New creates an engine with no instruments registered.
func New() *MatchingEngine {
	return &MatchingEngine{
		instruments: make(map[string]*domain.Instrument),
		books:       make(map[string]*book.Book),
		stops:       make(map[string][]*domain.Order),
		pegged:      make(map[string][]int64),
		orderIDs:    idgen.New(),
		tradeIDs:    idgen.New(),
	}
}

// RegisterInstrument installs an instrument and its empty book.
func (e *MatchingEngine) RegisterInstrument(inst *domain.Instrument) error {
	if _, ok := e.instruments[inst.Symbol]; ok {
		return domain.ErrDuplicateInstrument
	}
	e.instruments[inst.Symbol] = inst
	e.books[inst.Symbol] = book.New(inst.Symbol)
	slog.Debug("instrument registered", slog.String("symbol", inst.Symbol))
	return nil
}

// Instrument returns a registered instrument, or nil.
func (e *MatchingEngine) Instrument(symbol string) *domain.Instrument {
	return e.instruments[symbol]
}

// Book returns the live book for a symbol, or nil for unknown symbols.
func (e *MatchingEngine) Book(symbol string) *book.Book {
	return e.books[symbol]
}

// Symbols returns all registered symbols (unordered).
func (e *MatchingEngine) Symbols() []string {
	out := make([]string, 0, len(e.instruments))
	for s := range e.instruments {
		out = append(out, s)
	}
	return out
}

// NextOrderID issues an order id. The exchange uses this when building
// orders from agent actions; the engine uses it internally for stop
// triggers, re-pegs, and modifies, all of which reset time priority.
func (e *MatchingEngine) NextOrderID() int64 { return e.orderIDs.Next() }

// NextTradeID issues a trade id from the venue-wide generator, shared
// with the auction engine so every print lives in one id space.
func (e *MatchingEngine) NextTradeID() int64 { return e.tradeIDs.Next() }

// Validate runs the pre-book checks without touching the book. The
// exchange uses it for auction submissions, which bypass Submit.
func (e *MatchingEngine) Validate(o *domain.Order) domain.RejectReason {
	return e.validate(o)
}

// validate runs every pre-book check. A failed validation rejects the
// order with a typed reason and never touches the book.
func (e *MatchingEngine) validate(o *domain.Order) domain.RejectReason {
	inst, ok := e.instruments[o.Symbol]
	if !ok {
		return domain.ReasonUnknownInstrument
	}
	if !inst.ValidQty(o.TotalQty) {
		return domain.ReasonInvalidQuantity
	}
	if o.Type == domain.TypeIceberg && (o.DisplayQty <= 0 || o.DisplayQty > o.TotalQty) {
		return domain.ReasonInvalidQuantity
	}

	// price checks apply to any order carrying a limit price
	if hasLimitPrice(o.Type) {
		if o.Price <= 0 {
			return domain.ReasonInvalidPrice
		}
		if !inst.ValidTick(o.Price) {
			return domain.ReasonTickViolation
		}
		if !inst.WithinBand(o.Price) {
			return domain.ReasonPriceOutsideBand
		}
	}
	if hasStopPrice(o.Type) {
		// trailing stops may omit the trigger; it is derived from the
		// offset at acceptance
		if o.Type == domain.TypeTrailingStop && o.StopPrice == 0 {
			if o.TrailOffset <= 0 {
				return domain.ReasonInvalidPrice
			}
		} else {
			if o.StopPrice <= 0 {
				return domain.ReasonInvalidPrice
			}
			if !inst.ValidTick(o.StopPrice) {
				return domain.ReasonTickViolation
			}
		}
	}
	if o.Type == domain.TypeTrailingStop && o.TrailOffset <= 0 {
		return domain.ReasonInvalidPrice
	}
	return domain.ReasonNone
}

func hasLimitPrice(t domain.OrderType) bool {
	switch t {
	case domain.TypeLimit, domain.TypeIceberg, domain.TypeStopLimit:
		return true
	}
	return false
}

func hasStopPrice(t domain.OrderType) bool {
	switch t {
	case domain.TypeStop, domain.TypeStopLimit, domain.TypeTrailingStop:
		return true
	}
	return false
}

// Submit validates, accepts and matches one incoming order. All
// downstream effects (stop triggers, trailing updates, re-pegs) are
// folded into the returned Result in the order they occurred.
func (e *MatchingEngine) Submit(o *domain.Order, ts quant.TimeStamp) *Result {
	res := &Result{Order: o}

	if reason := e.validate(o); reason != domain.ReasonNone {
		o.Status = domain.StatusRejected
		res.Reason = reason
		res.push(&event.OrderRejected{Base: event.Base{Ts: ts}, Order: *o, Reason: reason})
		return res
	}

	o.Remaining = o.TotalQty
	o.CreatedAt = ts
	o.UpdatedAt = ts
	res.Accepted = true

	// stop-family orders rest untriggered outside the book
	if hasStopPrice(o.Type) {
		o.Status = domain.StatusPendingTrigger
		if o.Type == domain.TypeTrailingStop {
			e.initTrailing(o)
		}
		e.stops[o.Symbol] = append(e.stops[o.Symbol], o)
		res.push(&event.OrderAccepted{Base: event.Base{Ts: ts}, Order: *o})
		return res
	}

	// pegged orders resolve their working price from the current book
	if o.Type == domain.TypePegged {
		price, ok := e.pegPrice(o)
		if !ok {
			o.Status = domain.StatusRejected
			res.Accepted = false
			res.Reason = domain.ReasonInvalidPrice
			res.push(&event.OrderRejected{Base: event.Base{Ts: ts}, Order: *o, Reason: domain.ReasonInvalidPrice})
			return res
		}
		o.Price = price
	}

	res.push(&event.OrderAccepted{Base: event.Base{Ts: ts}, Order: *o})
	e.matchAndPlace(o, ts, res)

	// one submission can move the market: fire stops, then re-peg
	e.processTriggers(o.Symbol, ts, res)
	e.repegSymbol(o.Symbol, ts, res)
	return res
}

// Cancel removes a working order (book or stop) owned by participant.
// Non-owner and unknown-id cancels are silent no-ops: they indicate a
// caller bug, not a market condition.
func (e *MatchingEngine) Cancel(symbol string, orderID, participantID int64, ts quant.TimeStamp) *Result {
	res := &Result{}
	b, ok := e.books[symbol]
	if !ok {
		return res
	}
	if o, found := b.GetOrder(orderID); found {
		if o.ParticipantID != participantID {
			return res
		}
		b.Cancel(orderID)
		o.Cancel(ts)
		e.untrackPeg(symbol, orderID)
		res.Order = o
		res.push(&event.OrderCancelled{
			Base: event.Base{Ts: ts}, OrderID: orderID,
			ParticipantID: participantID, Symbol: symbol, Remaining: o.Remaining,
		})
		return res
	}
	if o := e.removeStop(symbol, orderID, participantID); o != nil {
		o.Cancel(ts)
		res.Order = o
		res.push(&event.OrderCancelled{
			Base: event.Base{Ts: ts}, OrderID: orderID,
			ParticipantID: participantID, Symbol: symbol, Remaining: o.Remaining,
		})
	}
	return res
}

// Modify is cancel-and-replace: the replacement gets a fresh id and
// new time priority, and re-enters the full matching path. Non-owner
// or unknown-id modifies are silent no-ops.
func (e *MatchingEngine) Modify(symbol string, orderID, participantID int64, newPrice quant.PriceMicros, newQty quant.Qty, ts quant.TimeStamp) *Result {
	res := &Result{}
	b, ok := e.books[symbol]
	if !ok {
		return res
	}
	old, found := b.GetOrder(orderID)
	if !found || old.ParticipantID != participantID {
		return res
	}

	b.Cancel(orderID)
	old.Cancel(ts)
	e.untrackPeg(symbol, orderID)

	replacement := &domain.Order{
		ID:            e.orderIDs.Next(),
		ParticipantID: participantID,
		Symbol:        symbol,
		Side:          old.Side,
		Type:          old.Type,
		TIF:           old.TIF,
		Price:         newPrice,
		TotalQty:      newQty,
		DisplayQty:    old.DisplayQty,
		Peg:           old.Peg,
		PegOffset:     old.PegOffset,
	}

	sub := e.Submit(replacement, ts)
	res.Order = sub.Order
	res.Accepted = sub.Accepted
	res.Reason = sub.Reason
	res.Trades = sub.Trades
	res.push(&event.OrderModified{Base: event.Base{Ts: ts}, OldOrderID: orderID, NewOrder: *replacement})
	res.Events = append(res.Events, sub.Events...)
	return res
}

// GetOrder finds a working order by id across book and stop storage.
func (e *MatchingEngine) GetOrder(symbol string, orderID int64) (*domain.Order, bool) {
	b, ok := e.books[symbol]
	if !ok {
		return nil, false
	}
	if o, found := b.GetOrder(orderID); found {
		return o, true
	}
	for _, o := range e.stops[symbol] {
		if o.ID == orderID {
			return o, true
		}
	}
	return nil, false
}

// CancelAllFor pulls every working order of one participant, used when
// the kill switch fires.
func (e *MatchingEngine) CancelAllFor(participantID int64, ts quant.TimeStamp) *Result {
	res := &Result{}
	syms := make([]string, 0, len(e.books))
	for sym := range e.books {
		syms = append(syms, sym)
	}
	sort.Strings(syms)
	for _, sym := range syms {
		b := e.books[sym]
		var ids []int64
		for _, lv := range b.Levels(domain.Buy) {
			for i := 0; i < lv.Len(); i++ {
				if o := lv.OrderAt(i); o.ParticipantID == participantID {
					ids = append(ids, o.ID)
				}
			}
		}
		for _, lv := range b.Levels(domain.Sell) {
			for i := 0; i < lv.Len(); i++ {
				if o := lv.OrderAt(i); o.ParticipantID == participantID {
					ids = append(ids, o.ID)
				}
			}
		}
		for _, id := range ids {
			c := e.Cancel(sym, id, participantID, ts)
			res.Events = append(res.Events, c.Events...)
		}
		var keep []*domain.Order
		for _, o := range e.stops[sym] {
			if o.ParticipantID == participantID {
				o.Cancel(ts)
				res.push(&event.OrderCancelled{
					Base: event.Base{Ts: ts}, OrderID: o.ID,
					ParticipantID: participantID, Symbol: sym, Remaining: o.Remaining,
				})
				continue
			}
			keep = append(keep, o)
		}
		e.stops[sym] = keep
	}
	return res
}
