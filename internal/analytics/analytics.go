// Package analytics derives running statistics from the event stream.
// Everything updates incrementally on append; nothing rescans the log.
package analytics

import (
	"sort"

	"marketsim/internal/event"
	"marketsim/pkg/quant"
	"marketsim/pkg/safe"
)

// InstrumentStats accumulate per-symbol market quality measures.
type InstrumentStats struct {
	Symbol      string            `json:"symbol"`
	Volume      quant.Qty         `json:"volume"`
	Trades      int64             `json:"trades"`
	VWAP        quant.PriceMicros `json:"vwap"`
	LastPrice   quant.PriceMicros `json:"last_price"`
	SpreadEWMA  float64           `json:"spread_ewma"`  // micros
	DepthEWMA   float64           `json:"depth_ewma"`   // visible qty, both sides
	AuctionVol  quant.Qty         `json:"auction_volume"`
	Halts       int64             `json:"halts"`

	notional int64 // vwap numerator
}

// MessageCounts split the event flow by category.
type MessageCounts struct {
	Orders   int64 `json:"orders"`
	Rejects  int64 `json:"rejects"`
	Cancels  int64 `json:"cancels"`
	Modifies int64 `json:"modifies"`
	Trades   int64 `json:"trades"`
	Total    int64 `json:"total"`
}

// ewmaAlpha weights new spread/depth observations.
const ewmaAlpha = 0.05

// Tracker is the analytics engine. Register it as an event log
// observer; feed it quote observations once per tick.
type Tracker struct {
	instruments map[string]*InstrumentStats
	messages    MessageCounts
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{instruments: make(map[string]*InstrumentStats)}
}

func (t *Tracker) stats(symbol string) *InstrumentStats {
	s, ok := t.instruments[symbol]
	if !ok {
		s = &InstrumentStats{Symbol: symbol}
		t.instruments[symbol] = s
	}
	return s
}

// OnEvent folds one appended event into the running statistics.
func (t *Tracker) OnEvent(ev event.SimEvent) {
	t.messages.Total++
	switch e := ev.(type) {
	case *event.OrderAccepted:
		t.messages.Orders++
	case *event.OrderRejected:
		t.messages.Rejects++
	case *event.OrderCancelled:
		t.messages.Cancels++
	case *event.OrderModified:
		t.messages.Modifies++
	case *event.TradeExecuted:
		t.messages.Trades++
		s := t.stats(e.Trade.Symbol)
		s.Volume += e.Trade.Qty
		s.Trades++
		s.LastPrice = e.Trade.Price
		s.notional = safe.SafeAdd(s.notional, e.Trade.Notional())
		s.VWAP = quant.PriceMicros(safe.SafeDiv(s.notional, int64(s.Volume)))
		if e.Trade.AuctionTrade {
			s.AuctionVol += e.Trade.Qty
		}
	case *event.CircuitBreakerTriggered:
		t.stats(e.Symbol).Halts++
	}
}

// ObserveQuote feeds one tick's spread and depth observation for EWMA
// tracking. Zero spread (one-sided book) is skipped.
func (t *Tracker) ObserveQuote(symbol string, spread quant.PriceMicros, depth quant.Qty) {
	s := t.stats(symbol)
	if spread > 0 {
		if s.SpreadEWMA == 0 {
			s.SpreadEWMA = float64(spread)
		} else {
			s.SpreadEWMA += ewmaAlpha * (float64(spread) - s.SpreadEWMA)
		}
	}
	if s.DepthEWMA == 0 {
		s.DepthEWMA = float64(depth)
	} else {
		s.DepthEWMA += ewmaAlpha * (float64(depth) - s.DepthEWMA)
	}
}

// Instrument returns a copy of one symbol's stats.
func (t *Tracker) Instrument(symbol string) InstrumentStats {
	if s, ok := t.instruments[symbol]; ok {
		return *s
	}
	return InstrumentStats{Symbol: symbol}
}

// Instruments returns all stats sorted by symbol.
func (t *Tracker) Instruments() []InstrumentStats {
	out := make([]InstrumentStats, 0, len(t.instruments))
	for _, s := range t.instruments {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Messages returns the message count breakdown.
func (t *Tracker) Messages() MessageCounts { return t.messages }
