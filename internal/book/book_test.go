package book

import (
	"testing"

	"marketsim/internal/domain"
	"marketsim/pkg/quant"
)

const cent = quant.PriceMicros(10_000)

func mkOrder(id int64, side domain.Side, price quant.PriceMicros, qty quant.Qty) *domain.Order {
	return &domain.Order{
		ID:        id,
		Symbol:    "TST",
		Side:      side,
		Type:      domain.TypeLimit,
		Price:     price,
		TotalQty:  qty,
		Remaining: qty,
	}
}

func TestInsertAndBest(t *testing.T) {
	b := New("TST")
	b.Insert(mkOrder(1, domain.Buy, 999*cent, 10))
	b.Insert(mkOrder(2, domain.Buy, 1000*cent, 20))
	b.Insert(mkOrder(3, domain.Sell, 1001*cent, 30))
	b.Insert(mkOrder(4, domain.Sell, 1002*cent, 40))

	bid, bidQty, ok := b.BestBid()
	if !ok || bid != 1000*cent || bidQty != 20 {
		t.Fatalf("best bid = %d/%d, want 10.00/20", bid, bidQty)
	}
	ask, askQty, ok := b.BestAsk()
	if !ok || ask != 1001*cent || askQty != 30 {
		t.Fatalf("best ask = %d/%d, want 10.01/30", ask, askQty)
	}
	if sp, _ := b.Spread(); sp != cent {
		t.Fatalf("spread = %d, want one tick", sp)
	}
	if mid, _ := b.Midpoint(); mid != 1000*cent+cent/2 {
		t.Fatalf("midpoint = %d", mid)
	}
}

func TestEmptySideAccessors(t *testing.T) {
	b := New("TST")
	if _, _, ok := b.BestBid(); ok {
		t.Fatal("empty book reported a bid")
	}
	if _, ok := b.Spread(); ok {
		t.Fatal("empty book reported a spread")
	}
	if o := b.Cancel(42); o != nil {
		t.Fatal("cancel of unknown id must be a no-op")
	}
}

func TestCrossedInsertPanics(t *testing.T) {
	b := New("TST")
	b.Insert(mkOrder(1, domain.Buy, 1000*cent, 10))
	defer func() {
		if recover() == nil {
			t.Fatal("crossed insert must panic")
		}
	}()
	b.Insert(mkOrder(2, domain.Sell, 999*cent, 10))
}

func TestApplyFillRemovesCompleted(t *testing.T) {
	b := New("TST")
	b.Insert(mkOrder(1, domain.Sell, 1000*cent, 30))
	b.ApplyFill(1, 30, 5)

	if _, ok := b.GetOrder(1); ok {
		t.Fatal("filled order still indexed")
	}
	if _, _, ok := b.BestAsk(); ok {
		t.Fatal("empty level not dropped")
	}
}

func TestPartialFillKeepsPriority(t *testing.T) {
	b := New("TST")
	b.Insert(mkOrder(1, domain.Sell, 1000*cent, 30))
	b.Insert(mkOrder(2, domain.Sell, 1000*cent, 30))
	b.ApplyFill(1, 10, 5)

	lvl := b.BestLevel(domain.Sell)
	if lvl.OrderAt(0).ID != 1 {
		t.Fatalf("partial fill moved order to back of queue")
	}
	if lvl.Volume() != 50 {
		t.Fatalf("level volume = %d, want 50", lvl.Volume())
	}
}

func TestIcebergDerivesHiddenAndRequeues(t *testing.T) {
	b := New("TST")
	ice := mkOrder(1, domain.Sell, 1000*cent, 100)
	ice.Type = domain.TypeIceberg
	ice.DisplayQty = 10
	b.Insert(ice)
	b.Insert(mkOrder(2, domain.Sell, 1000*cent, 50))

	if ice.HiddenQty != 90 {
		t.Fatalf("hidden = %d, want 90", ice.HiddenQty)
	}
	if _, askQty, _ := b.BestAsk(); askQty != 60 {
		t.Fatalf("visible volume = %d, want 10+50", askQty)
	}

	// exhausting the display slice replenishes and re-queues last
	b.ApplyFill(1, 10, 5)
	if ice.VisibleQty() != 10 || ice.HiddenQty != 80 {
		t.Fatalf("after replenish visible=%d hidden=%d", ice.VisibleQty(), ice.HiddenQty)
	}
	lvl := b.BestLevel(domain.Sell)
	if lvl.OrderAt(0).ID != 2 {
		t.Fatal("replenished iceberg must lose time priority")
	}
}

func TestReduceKeepsPriority(t *testing.T) {
	b := New("TST")
	b.Insert(mkOrder(1, domain.Buy, 1000*cent, 50))
	b.Insert(mkOrder(2, domain.Buy, 1000*cent, 50))

	b.Reduce(1, 20, 5)
	lvl := b.BestLevel(domain.Buy)
	if lvl.OrderAt(0).ID != 1 {
		t.Fatal("amend-down must keep time priority")
	}
	if lvl.Volume() != 80 {
		t.Fatalf("level volume = %d, want 80", lvl.Volume())
	}

	// reducing to zero cancels
	b.Reduce(2, 50, 6)
	if _, ok := b.GetOrder(2); ok {
		t.Fatal("reduce-to-zero must cancel")
	}
}

func TestAvailableWithin(t *testing.T) {
	b := New("TST")
	b.Insert(mkOrder(1, domain.Sell, 1000*cent, 30))
	b.Insert(mkOrder(2, domain.Sell, 1001*cent, 40))
	ice := mkOrder(3, domain.Sell, 1000*cent, 100)
	ice.Type = domain.TypeIceberg
	ice.DisplayQty = 5
	b.Insert(ice)
	b.Insert(mkOrder(4, domain.Sell, 1002*cent, 25))

	// hidden iceberg quantity counts; the walk reaches it
	if got := b.AvailableWithin(domain.Buy, 1000*cent, 0); got != 130 {
		t.Fatalf("within 10.00 = %d, want 130", got)
	}
	if got := b.AvailableWithin(domain.Buy, 1001*cent, 0); got != 170 {
		t.Fatalf("within 10.01 = %d, want 170", got)
	}
	// market (0) reaches everything
	if got := b.AvailableWithin(domain.Buy, 0, 0); got != 195 {
		t.Fatalf("market reach = %d, want 195", got)
	}
	// self-owned excluded
	ice.ParticipantID = 7
	if got := b.AvailableWithin(domain.Buy, 1000*cent, 7); got != 30 {
		t.Fatalf("excluding owner = %d, want 30", got)
	}
}

func TestDepthViews(t *testing.T) {
	b := New("TST")
	for i := int64(0); i < 8; i++ {
		b.Insert(mkOrder(i+1, domain.Sell, quant.PriceMicros(1000+int64(i))*cent, 10))
	}
	_, asks := b.Depth(5)
	if len(asks) != 5 {
		t.Fatalf("depth rows = %d, want 5", len(asks))
	}
	if asks[0].Price != 1000*cent || asks[4].Price != 1004*cent {
		t.Fatalf("depth not best-first: %+v", asks)
	}
}

func TestDayStats(t *testing.T) {
	b := New("TST")
	b.RecordTrade(1000*cent, 10)
	b.RecordTrade(1005*cent, 20)
	b.RecordTrade(998*cent, 5)

	vol, trades, high, low := b.DayStats()
	if vol != 35 || trades != 3 || high != 1005*cent || low != 998*cent {
		t.Fatalf("day stats = %d/%d/%d/%d", vol, trades, high, low)
	}
	if b.LastPrice() != 998*cent {
		t.Fatalf("last = %d", b.LastPrice())
	}
	b.ResetDaily()
	if vol, trades, _, _ := b.DayStats(); vol != 0 || trades != 0 {
		t.Fatal("reset did not clear day stats")
	}
}
