package book

import (
	"fmt"

	"marketsim/internal/domain"
	"marketsim/pkg/quant"
)

// LevelView is one row of an L2 depth projection.
type LevelView struct {
	Price  quant.PriceMicros `json:"price"`
	Qty    quant.Qty         `json:"qty"`
	Orders int               `json:"orders"`
}

// Book is the canonical order book for one instrument. Orders handed
// to Insert are owned by the book until they fill or cancel; all
// mutation goes through the methods below so the level volumes and the
// id index stay consistent.
type Book struct {
	symbol string
	bids   *bookSide
	asks   *bookSide
	orders map[int64]*domain.Order

	lastPrice quant.PriceMicros
	lastQty   quant.Qty
	dayVolume quant.Qty
	dayTrades int64
	dayHigh   quant.PriceMicros
	dayLow    quant.PriceMicros
}

// New creates an empty book for symbol.
func New(symbol string) *Book {
	return &Book{
		symbol: symbol,
		bids:   newBookSide(domain.Buy),
		asks:   newBookSide(domain.Sell),
		orders: make(map[int64]*domain.Order),
	}
}

// Symbol returns the instrument this book serves.
func (b *Book) Symbol() string { return b.symbol }

func (b *Book) sideOf(s domain.Side) *bookSide {
	if s == domain.Buy {
		return b.bids
	}
	return b.asks
}

// Insert rests an order at its price level, last in time priority.
// Iceberg hidden quantity is derived here from the display size.
func (b *Book) Insert(o *domain.Order) {
	if o.Type == domain.TypeIceberg && o.DisplayQty > 0 && o.DisplayQty < o.Remaining {
		o.HiddenQty = o.Remaining - o.DisplayQty
	}
	b.sideOf(o.Side).getLevel(o.Price).addOrder(o)
	b.orders[o.ID] = o
	b.verifyUncrossed()
}

// GetOrder looks up a resting order by id. Unknown ids are a routine
// not-found, never an error.
func (b *Book) GetOrder(id int64) (*domain.Order, bool) {
	o, ok := b.orders[id]
	return o, ok
}

// Cancel removes an order from the book. Returns the removed order, or
// nil if the id is unknown (no-op).
func (b *Book) Cancel(id int64) *domain.Order {
	o, ok := b.orders[id]
	if !ok {
		return nil
	}
	side := b.sideOf(o.Side)
	level := side.getLevel(o.Price)
	level.removeOrder(id)
	side.dropEmpty(o.Price)
	delete(b.orders, id)
	return o
}

// Reduce lowers a resting order's quantity in place, preserving time
// priority (amend-down only). Reducing to or past zero cancels.
// Unknown ids are a no-op returning nil.
func (b *Book) Reduce(id int64, qty quant.Qty, now quant.TimeStamp) *domain.Order {
	o, ok := b.orders[id]
	if !ok {
		return nil
	}
	level := b.sideOf(o.Side).getLevel(o.Price)
	before := o.VisibleQty()
	o.Reduce(qty, now)
	if o.Status == domain.StatusCancelled {
		level.removeOrder(id)
		b.sideOf(o.Side).dropEmpty(o.Price)
		delete(b.orders, id)
		return o
	}
	level.volume -= before - o.VisibleQty()
	return o
}

// ApplyFill consumes qty from a resting order's visible quantity,
// removing it once complete and replenishing icebergs with hidden
// remainder (which re-queues them at the back of the level).
func (b *Book) ApplyFill(id int64, qty quant.Qty, now quant.TimeStamp) {
	o, ok := b.orders[id]
	if !ok {
		return
	}
	if qty > o.VisibleQty() {
		panic(fmt.Sprintf("BOOK_FILL_EXCEEDS_VISIBLE: order %d qty %d visible %d", id, qty, o.VisibleQty()))
	}
	side := b.sideOf(o.Side)
	level := side.getLevel(o.Price)
	o.Fill(qty, now)
	level.volume -= qty

	switch {
	case o.Remaining == 0:
		level.removeOrder(id)
		side.dropEmpty(o.Price)
		delete(b.orders, id)
	case o.VisibleQty() == 0:
		// iceberg slice exhausted: expose the next display tranche and
		// reset time priority within the level
		refill := o.DisplayQty
		if refill > o.HiddenQty {
			refill = o.HiddenQty
		}
		o.HiddenQty -= refill
		level.volume += o.VisibleQty()
		level.requeue(id)
	}
}

// BestLevel returns the top-of-book level on side, or nil.
func (b *Book) BestLevel(s domain.Side) *PriceLevel {
	return b.sideOf(s).best()
}

// Levels exposes the sorted level list of one side for the matching
// walk. Callers must not mutate levels directly; fills and removals go
// through ApplyFill and Cancel so the index stays consistent.
func (b *Book) Levels(s domain.Side) []*PriceLevel {
	return b.sideOf(s).levels
}

// BestBid returns the best bid price and visible quantity.
func (b *Book) BestBid() (quant.PriceMicros, quant.Qty, bool) {
	l := b.bids.best()
	if l == nil {
		return 0, 0, false
	}
	return l.price, l.volume, true
}

// BestAsk returns the best ask price and visible quantity.
func (b *Book) BestAsk() (quant.PriceMicros, quant.Qty, bool) {
	l := b.asks.best()
	if l == nil {
		return 0, 0, false
	}
	return l.price, l.volume, true
}

// Spread returns ask-bid. ok is false when either side is empty.
func (b *Book) Spread() (quant.PriceMicros, bool) {
	bid, _, okB := b.BestBid()
	ask, _, okA := b.BestAsk()
	if !okB || !okA {
		return 0, false
	}
	return ask - bid, true
}

// Midpoint returns (bid+ask)/2. ok is false when either side is empty.
func (b *Book) Midpoint() (quant.PriceMicros, bool) {
	bid, _, okB := b.BestBid()
	ask, _, okA := b.BestAsk()
	if !okB || !okA {
		return 0, false
	}
	return (bid + ask) / 2, true
}

// AvailableWithin reports opposite-side liquidity reachable by an
// aggressive order on side priced at limit (0 = market), excluding
// orders owned by exclude. Counts hidden iceberg size.
func (b *Book) AvailableWithin(aggressorSide domain.Side, limit quant.PriceMicros, exclude int64) quant.Qty {
	return b.sideOf(aggressorSide.Opposite()).availableWithin(limit, exclude)
}

// Depth returns up to n levels per side, best first.
func (b *Book) Depth(n int) (bids, asks []LevelView) {
	return b.bids.depth(n), b.asks.depth(n)
}

// VisibleVolume returns total visible resting quantity per side.
func (b *Book) VisibleVolume() (bidQty, askQty quant.Qty) {
	return b.bids.totalVisible(), b.asks.totalVisible()
}

// RecordTrade updates last-trade and daily statistics.
func (b *Book) RecordTrade(price quant.PriceMicros, qty quant.Qty) {
	b.lastPrice = price
	b.lastQty = qty
	b.dayVolume += qty
	b.dayTrades++
	if b.dayHigh == 0 || price > b.dayHigh {
		b.dayHigh = price
	}
	if b.dayLow == 0 || price < b.dayLow {
		b.dayLow = price
	}
}

// LastPrice returns the most recent trade price, zero before any
// trade.
func (b *Book) LastPrice() quant.PriceMicros { return b.lastPrice }

// DayStats returns traded volume, trade count, high and low since the
// last reset.
func (b *Book) DayStats() (quant.Qty, int64, quant.PriceMicros, quant.PriceMicros) {
	return b.dayVolume, b.dayTrades, b.dayHigh, b.dayLow
}

// ResetDaily clears daily statistics at session roll.
func (b *Book) ResetDaily() {
	b.dayVolume = 0
	b.dayTrades = 0
	b.dayHigh = 0
	b.dayLow = 0
}

// OpenOrders returns the number of resting orders.
func (b *Book) OpenOrders() int { return len(b.orders) }

// verifyUncrossed panics if both sides exist and bid >= ask. The
// matching engine resolves crosses before resting, so a crossed book
// is state corruption.
func (b *Book) verifyUncrossed() {
	bid, _, okB := b.BestBid()
	ask, _, okA := b.BestAsk()
	if okB && okA && bid >= ask {
		panic(fmt.Sprintf("BOOK_CROSSED: %s bid %d >= ask %d", b.symbol, bid, ask))
	}
}
