// Package marketdata projects live book state into the read-only L1
// and L2 views agents and snapshots consume.
package marketdata

import (
	"sort"

	"marketsim/internal/book"
	"marketsim/internal/domain"
	"marketsim/pkg/quant"
)

// Quote is the top-of-book (L1) view for one instrument.
type Quote struct {
	Symbol    string             `json:"symbol"`
	BidPrice  quant.PriceMicros  `json:"bid_price"`
	BidQty    quant.Qty          `json:"bid_qty"`
	AskPrice  quant.PriceMicros  `json:"ask_price"`
	AskQty    quant.Qty          `json:"ask_qty"`
	LastPrice quant.PriceMicros  `json:"last_price"`
	RefPrice  quant.PriceMicros  `json:"ref_price"`
	Phase     domain.MarketPhase `json:"phase"`
	UpdatedAt quant.TimeStamp    `json:"updated_at"`
}

// Mid returns the midpoint, falling back to last then reference price
// when a side is missing.
func (q Quote) Mid() quant.PriceMicros {
	if q.BidPrice > 0 && q.AskPrice > 0 {
		return (q.BidPrice + q.AskPrice) / 2
	}
	if q.LastPrice > 0 {
		return q.LastPrice
	}
	return q.RefPrice
}

// Spread returns ask-bid, zero when either side is empty.
func (q Quote) Spread() quant.PriceMicros {
	if q.BidPrice > 0 && q.AskPrice > 0 {
		return q.AskPrice - q.BidPrice
	}
	return 0
}

// DepthSnapshot is the bounded L2 view for one instrument.
type DepthSnapshot struct {
	Symbol    string           `json:"symbol"`
	Bids      []book.LevelView `json:"bids"`
	Asks      []book.LevelView `json:"asks"`
	UpdatedAt quant.TimeStamp  `json:"updated_at"`
}

// Imbalance returns (bidVol-askVol)/(bidVol+askVol) over the snapshot
// levels, in the range [-1, 1]. Zero on an empty book.
func (d DepthSnapshot) Imbalance() float64 {
	var bid, ask quant.Qty
	for _, l := range d.Bids {
		bid += l.Qty
	}
	for _, l := range d.Asks {
		ask += l.Qty
	}
	total := bid + ask
	if total == 0 {
		return 0
	}
	return float64(bid-ask) / float64(total)
}

// Feed holds the current market data projections for every
// instrument. Refreshed once per tick by the exchange, read by agents
// and snapshots.
type Feed struct {
	depthLevels int
	quotes      map[string]*Quote
	depth       map[string]*DepthSnapshot
}

// NewFeed creates a feed projecting depthLevels L2 rows per side.
func NewFeed(depthLevels int) *Feed {
	if depthLevels <= 0 {
		depthLevels = 5
	}
	return &Feed{
		depthLevels: depthLevels,
		quotes:      make(map[string]*Quote),
		depth:       make(map[string]*DepthSnapshot),
	}
}

// Refresh re-projects one book into its L1/L2 views.
func (f *Feed) Refresh(b *book.Book, ref quant.PriceMicros, phase domain.MarketPhase, ts quant.TimeStamp) {
	sym := b.Symbol()
	q, ok := f.quotes[sym]
	if !ok {
		q = &Quote{Symbol: sym}
		f.quotes[sym] = q
	}
	q.BidPrice, q.BidQty, _ = b.BestBid()
	q.AskPrice, q.AskQty, _ = b.BestAsk()
	q.LastPrice = b.LastPrice()
	q.RefPrice = ref
	q.Phase = phase
	q.UpdatedAt = ts

	bids, asks := b.Depth(f.depthLevels)
	f.depth[sym] = &DepthSnapshot{Symbol: sym, Bids: bids, Asks: asks, UpdatedAt: ts}
}

// Quote returns the L1 view for a symbol. Unknown symbols return a
// zero quote.
func (f *Feed) Quote(symbol string) Quote {
	if q, ok := f.quotes[symbol]; ok {
		return *q
	}
	return Quote{Symbol: symbol}
}

// Depth returns the L2 view for a symbol, or an empty snapshot.
func (f *Feed) Depth(symbol string) DepthSnapshot {
	if d, ok := f.depth[symbol]; ok {
		return *d
	}
	return DepthSnapshot{Symbol: symbol}
}

// Quotes returns all L1 views sorted by symbol for stable output.
func (f *Feed) Quotes() []Quote {
	out := make([]Quote, 0, len(f.quotes))
	for _, q := range f.quotes {
		out = append(out, *q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}
