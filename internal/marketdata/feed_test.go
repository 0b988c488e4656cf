package marketdata

import (
	"testing"

	"marketsim/internal/book"
	"marketsim/internal/domain"
	"marketsim/pkg/quant"
)

const cent = quant.PriceMicros(10_000)

func seededBook() *book.Book {
	b := book.New("TST")
	id := int64(0)
	add := func(side domain.Side, price quant.PriceMicros, qty quant.Qty) {
		id++
		o := &domain.Order{
			ID: id, ParticipantID: id, Symbol: "TST",
			Side: side, Type: domain.TypeLimit,
			Price: price, TotalQty: qty, Remaining: qty,
		}
		b.Insert(o)
	}
	add(domain.Buy, 999*cent, 30)
	add(domain.Buy, 998*cent, 50)
	add(domain.Sell, 1001*cent, 20)
	add(domain.Sell, 1002*cent, 40)
	add(domain.Sell, 1003*cent, 10)
	return b
}

func TestRefreshProjectsQuote(t *testing.T) {
	f := NewFeed(5)
	f.Refresh(seededBook(), 1000*cent, domain.PhaseContinuous, 42)

	q := f.Quote("TST")
	if q.BidPrice != 999*cent || q.BidQty != 30 {
		t.Fatalf("bid %d x %d", q.BidPrice, q.BidQty)
	}
	if q.AskPrice != 1001*cent || q.AskQty != 20 {
		t.Fatalf("ask %d x %d", q.AskPrice, q.AskQty)
	}
	if q.RefPrice != 1000*cent || q.Phase != domain.PhaseContinuous || q.UpdatedAt != 42 {
		t.Fatalf("quote metadata %+v", q)
	}
	if q.Mid() != 1000*cent {
		t.Fatalf("mid = %d", q.Mid())
	}
	if q.Spread() != 2*cent {
		t.Fatalf("spread = %d", q.Spread())
	}
}

func TestDepthBounded(t *testing.T) {
	f := NewFeed(2)
	f.Refresh(seededBook(), 1000*cent, domain.PhaseContinuous, 1)

	d := f.Depth("TST")
	if len(d.Bids) != 2 || len(d.Asks) != 2 {
		t.Fatalf("depth %d x %d, want 2 x 2", len(d.Bids), len(d.Asks))
	}
	if d.Bids[0].Price != 999*cent || d.Bids[1].Price != 998*cent {
		t.Fatal("bids must descend from best")
	}
	if d.Asks[0].Price != 1001*cent || d.Asks[1].Price != 1002*cent {
		t.Fatal("asks must ascend from best")
	}
}

func TestMidFallbacks(t *testing.T) {
	q := Quote{RefPrice: 1000 * cent}
	if q.Mid() != 1000*cent {
		t.Fatal("empty quote must fall back to reference")
	}
	q.LastPrice = 1005 * cent
	if q.Mid() != 1005*cent {
		t.Fatal("one-sided quote must fall back to last")
	}
	if q.Spread() != 0 {
		t.Fatal("spread on a one-sided quote must be zero")
	}
}

func TestImbalance(t *testing.T) {
	d := DepthSnapshot{
		Bids: []book.LevelView{{Price: 999 * cent, Qty: 60}},
		Asks: []book.LevelView{{Price: 1001 * cent, Qty: 20}},
	}
	if got := d.Imbalance(); got != 0.5 {
		t.Fatalf("imbalance = %v, want 0.5", got)
	}
	empty := DepthSnapshot{}
	if empty.Imbalance() != 0 {
		t.Fatal("empty book imbalance must be zero")
	}
}

func TestUnknownSymbolZeroViews(t *testing.T) {
	f := NewFeed(5)
	q := f.Quote("NOPE")
	if q.Symbol != "NOPE" || q.BidPrice != 0 {
		t.Fatalf("unknown quote %+v", q)
	}
	d := f.Depth("NOPE")
	if len(d.Bids) != 0 || len(d.Asks) != 0 {
		t.Fatal("unknown depth must be empty")
	}
}

func TestQuotesSorted(t *testing.T) {
	f := NewFeed(5)
	f.Refresh(book.New("ZZZ"), cent, domain.PhasePreOpen, 1)
	f.Refresh(book.New("AAA"), cent, domain.PhasePreOpen, 1)
	qs := f.Quotes()
	if len(qs) != 2 || qs[0].Symbol != "AAA" || qs[1].Symbol != "ZZZ" {
		t.Fatalf("quotes not sorted: %+v", qs)
	}
}

// Views travel by value through per-tick maps; the accessors must be
// callable directly on a map index without taking an address.
func TestViewsUsableByValue(t *testing.T) {
	f := NewFeed(5)
	f.Refresh(seededBook(), 1000*cent, domain.PhaseContinuous, 42)

	quotes := map[string]Quote{"TST": f.Quote("TST")}
	depths := map[string]DepthSnapshot{"TST": f.Depth("TST")}

	if got := quotes["TST"].Mid(); got != 1000*cent {
		t.Fatalf("mid = %d, want 10.00", got)
	}
	if got := quotes["TST"].Spread(); got != 2*cent {
		t.Fatalf("spread = %d, want 0.02", got)
	}
	if got := depths["TST"].Imbalance(); got <= 0 {
		t.Fatalf("imbalance = %f, want bid-heavy positive", got)
	}
}
