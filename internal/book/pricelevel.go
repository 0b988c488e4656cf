// Package book implements the canonical per-instrument limit order
// book: price-time priority resting orders, L1/L2 projections, and
// daily trade statistics.
package book

import (
	"marketsim/internal/domain"
	"marketsim/pkg/quant"
)

// PriceLevel holds the FIFO queue of resting orders at one price.
// volume tracks the sum of visible quantities only; iceberg hidden
// size never shows in depth.
type PriceLevel struct {
	price  quant.PriceMicros
	orders []*domain.Order
	volume quant.Qty
}

func newPriceLevel(price quant.PriceMicros) *PriceLevel {
	return &PriceLevel{price: price, orders: make([]*domain.Order, 0, 4)}
}

// Price returns the level's price.
func (l *PriceLevel) Price() quant.PriceMicros { return l.price }

// Volume returns the visible resting quantity at this level.
func (l *PriceLevel) Volume() quant.Qty { return l.volume }

// Len returns the number of resting orders at this level.
func (l *PriceLevel) Len() int { return len(l.orders) }

// OrderAt returns the i-th order in time priority. Read-only access
// for walks that need participant attribution.
func (l *PriceLevel) OrderAt(i int) *domain.Order { return l.orders[i] }

// FirstEligible returns the earliest resting order not owned by
// exclude, or nil. Used by the matching walk for self-trade skips.
// exclude <= 0 disables the filter; participant ids start at 1.
func (l *PriceLevel) FirstEligible(exclude int64) *domain.Order {
	for _, o := range l.orders {
		if exclude <= 0 || o.ParticipantID != exclude {
			return o
		}
	}
	return nil
}

// addOrder appends at the back of the time-priority queue.
func (l *PriceLevel) addOrder(o *domain.Order) {
	l.orders = append(l.orders, o)
	l.volume += o.VisibleQty()
}

// removeOrder drops an order from the queue, preserving FIFO order of
// the rest. No-op if the order is not at this level.
func (l *PriceLevel) removeOrder(id int64) *domain.Order {
	for i, o := range l.orders {
		if o.ID == id {
			l.volume -= o.VisibleQty()
			copy(l.orders[i:], l.orders[i+1:])
			l.orders = l.orders[:len(l.orders)-1]
			return o
		}
	}
	return nil
}

// requeue moves an order to the back of the queue. Iceberg
// replenishment resets time priority within the level.
func (l *PriceLevel) requeue(id int64) {
	for i, o := range l.orders {
		if o.ID == id {
			copy(l.orders[i:], l.orders[i+1:])
			l.orders[len(l.orders)-1] = o
			return
		}
	}
}

// availableQty sums total remaining (visible plus hidden) quantity of
// orders not owned by exclude. FOK liquidity checks count hidden size
// because a sweep reaches it through replenishment.
func (l *PriceLevel) availableQty(exclude int64) quant.Qty {
	var total quant.Qty
	for _, o := range l.orders {
		if exclude <= 0 || o.ParticipantID != exclude {
			total += o.Remaining
		}
	}
	return total
}
