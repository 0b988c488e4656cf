package book

import (
	"sort"

	"marketsim/internal/domain"
	"marketsim/pkg/quant"
)

// bookSide keeps the price levels of one side sorted best-first:
// descending prices for bids, ascending for asks.
type bookSide struct {
	side   domain.Side
	levels []*PriceLevel
}

func newBookSide(side domain.Side) *bookSide {
	return &bookSide{side: side, levels: make([]*PriceLevel, 0, 16)}
}

// better reports whether price a is closer to the top of book than b.
func (s *bookSide) better(a, b quant.PriceMicros) bool {
	if s.side == domain.Buy {
		return a > b
	}
	return a < b
}

// getLevel returns the level at price, creating and inserting it in
// sorted position when absent.
func (s *bookSide) getLevel(price quant.PriceMicros) *PriceLevel {
	i := sort.Search(len(s.levels), func(i int) bool {
		return !s.better(s.levels[i].price, price)
	})
	if i < len(s.levels) && s.levels[i].price == price {
		return s.levels[i]
	}
	l := newPriceLevel(price)
	s.levels = append(s.levels, nil)
	copy(s.levels[i+1:], s.levels[i:])
	s.levels[i] = l
	return l
}

// best returns the top-of-book level, or nil when the side is empty.
func (s *bookSide) best() *PriceLevel {
	if len(s.levels) == 0 {
		return nil
	}
	return s.levels[0]
}

// dropEmpty removes a level once its queue drains.
func (s *bookSide) dropEmpty(price quant.PriceMicros) {
	for i, l := range s.levels {
		if l.price == price {
			if len(l.orders) == 0 {
				copy(s.levels[i:], s.levels[i+1:])
				s.levels = s.levels[:len(s.levels)-1]
			}
			return
		}
	}
}

// availableWithin sums remaining liquidity at levels an aggressive
// order priced at limit could reach. limit 0 means no price limit
// (market order).
func (s *bookSide) availableWithin(limit quant.PriceMicros, exclude int64) quant.Qty {
	var total quant.Qty
	for _, l := range s.levels {
		if limit != 0 && s.better(limit, l.price) {
			break
		}
		total += l.availableQty(exclude)
	}
	return total
}

// depth returns up to n levels from the top as (price, visible qty)
// pairs.
func (s *bookSide) depth(n int) []LevelView {
	if n <= 0 || n > len(s.levels) {
		n = len(s.levels)
	}
	out := make([]LevelView, 0, n)
	for _, l := range s.levels[:n] {
		out = append(out, LevelView{Price: l.price, Qty: l.volume, Orders: len(l.orders)})
	}
	return out
}

// totalVisible sums visible volume across all levels.
func (s *bookSide) totalVisible() quant.Qty {
	var total quant.Qty
	for _, l := range s.levels {
		total += l.volume
	}
	return total
}
