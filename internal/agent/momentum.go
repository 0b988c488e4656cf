package agent

import (
	"math/rand"

	"marketsim/internal/domain"
	"marketsim/pkg/quant"
	"marketsim/pkg/safe"
)

// Momentum trades moving-average crossovers of the mid price. It is
// stateful and deterministic, using a ring buffer so the hotpath stays
// allocation-free.
type Momentum struct {
	NopAgent
	symbol      string
	shortPeriod int
	longPeriod  int
	clipQty     quant.Qty

	// ring buffer state
	prices []int64
	head   int
	count  int
	sum    int64 // running sum over the long period

	prevShortSMA int64
	prevLongSMA  int64
}

// NewMomentum creates a crossover strategy over mid-price ticks.
func NewMomentum(symbol string, shortPeriod, longPeriod int, clipQty quant.Qty) *Momentum {
	if shortPeriod >= longPeriod {
		panic("Momentum: shortPeriod must be less than longPeriod")
	}
	return &Momentum{
		symbol:      symbol,
		shortPeriod: shortPeriod,
		longPeriod:  longPeriod,
		clipQty:     clipQty,
		prices:      make([]int64, longPeriod),
	}
}

// OnTick folds the current mid into the window and trades crossovers:
// buy the golden cross, sell the dead cross.
func (m *Momentum) OnTick(view *MarketView, rng *rand.Rand) []Action {
	if view.Halted[m.symbol] {
		return nil
	}
	mid := int64(view.Quotes[m.symbol].Mid())
	if mid == 0 {
		return nil
	}

	if m.count == m.longPeriod {
		m.sum = safe.SafeSub(m.sum, m.prices[m.head])
	}
	m.prices[m.head] = mid
	m.sum = safe.SafeAdd(m.sum, mid)
	m.head = (m.head + 1) % m.longPeriod
	if m.count < m.longPeriod {
		m.count++
	}
	if m.count < m.longPeriod {
		return nil
	}

	currLong := safe.SafeDiv(m.sum, int64(m.longPeriod))
	currShort := m.shortSMA()

	var actions []Action
	inst := view.Instruments[m.symbol]
	qty := inst.SnapQty(m.clipQty)
	if qty > 0 && m.prevShortSMA != 0 && m.prevLongSMA != 0 {
		if m.prevShortSMA <= m.prevLongSMA && currShort > currLong {
			actions = append(actions, m.order(domain.Buy, qty))
		}
		if m.prevShortSMA >= m.prevLongSMA && currShort < currLong {
			actions = append(actions, m.order(domain.Sell, qty))
		}
	}

	m.prevShortSMA = currShort
	m.prevLongSMA = currLong
	return actions
}

func (m *Momentum) order(side domain.Side, qty quant.Qty) Action {
	return Action{
		Type: ActionSubmit, Symbol: m.symbol, Side: side,
		OrderType: domain.TypeMarket, TIF: domain.IOC, Qty: qty,
	}
}

// shortSMA walks the ring backwards from the latest write.
func (m *Momentum) shortSMA() int64 {
	var sum int64
	idx := m.head
	for i := 0; i < m.shortPeriod; i++ {
		idx--
		if idx < 0 {
			idx = m.longPeriod - 1
		}
		sum = safe.SafeAdd(sum, m.prices[idx])
	}
	return safe.SafeDiv(sum, int64(m.shortPeriod))
}
