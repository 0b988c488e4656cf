package agent

import (
	"sync"

	"marketsim/internal/domain"
	"marketsim/internal/marketdata"
	"marketsim/pkg/quant"
)

// MarketView is the point-in-time, read-only projection each agent
// observes on a tick. Views are pooled scratch: the exchange acquires
// one per agent per tick and releases it afterwards, so agents must
// not retain them.
type MarketView struct {
	Now         quant.TimeStamp
	Quotes      map[string]marketdata.Quote
	Depths      map[string]marketdata.DepthSnapshot
	Halted      map[string]bool
	Instruments map[string]domain.Instrument

	// the observing participant's own state
	ParticipantID int64
	Cash          int64
	Positions     map[string]domain.Position
	OpenOrders    []domain.Order

	RecentTrades []domain.Trade
}

// Position returns the observer's position in symbol, zero when flat.
func (v *MarketView) Position(symbol string) domain.Position {
	if p, ok := v.Positions[symbol]; ok {
		return p
	}
	return domain.Position{Symbol: symbol}
}

var viewPool = sync.Pool{
	New: func() interface{} {
		return &MarketView{
			Quotes:      make(map[string]marketdata.Quote),
			Depths:      make(map[string]marketdata.DepthSnapshot),
			Halted:      make(map[string]bool),
			Instruments: make(map[string]domain.Instrument),
			Positions:   make(map[string]domain.Position),
		}
	},
}

// AcquireView gets a cleared MarketView from the pool.
func AcquireView() *MarketView {
	return viewPool.Get().(*MarketView)
}

// ReleaseView resets a view and returns it to the pool. Call only
// after every reference from the tick is gone.
func ReleaseView(v *MarketView) {
	if v == nil {
		return
	}
	v.Now = 0
	v.ParticipantID = 0
	v.Cash = 0
	clear(v.Quotes)
	clear(v.Depths)
	clear(v.Halted)
	clear(v.Instruments)
	clear(v.Positions)
	v.OpenOrders = v.OpenOrders[:0]
	v.RecentTrades = v.RecentTrades[:0]
	viewPool.Put(v)
}
