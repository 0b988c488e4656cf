package domain

import (
	"testing"

	"marketsim/pkg/quant"
)

const (
	cent = quant.PriceMicros(10_000)
	px   = quant.PriceMicros(1_000_000)
)

func TestTickTableResolution(t *testing.T) {
	inst := Instrument{
		Symbol:   "TST",
		TickSize: cent,
		TickTable: []TickBand{
			{Upper: 10 * px, Tick: cent},
			{Upper: 100 * px, Tick: 5 * cent},
			{Upper: 0, Tick: 10 * cent}, // open-ended top band
		},
	}
	if got := inst.TickAt(5 * px); got != cent {
		t.Fatalf("tick at 5.00 = %d", got)
	}
	if got := inst.TickAt(50 * px); got != 5*cent {
		t.Fatalf("tick at 50.00 = %d", got)
	}
	if got := inst.TickAt(500 * px); got != 10*cent {
		t.Fatalf("tick at 500.00 = %d", got)
	}

	if !inst.ValidTick(50 * px) {
		t.Fatal("50.00 aligns to a 0.05 tick")
	}
	if inst.ValidTick(50*px + cent) {
		t.Fatal("50.01 does not align to a 0.05 tick")
	}
}

func TestValidQty(t *testing.T) {
	inst := Instrument{LotSize: 10, MinQty: 10, MaxQty: 1000}
	cases := []struct {
		qty quant.Qty
		ok  bool
	}{
		{10, true}, {990, true}, {1000, true},
		{0, false}, {5, false}, {15, false}, {1010, false},
	}
	for _, c := range cases {
		if got := inst.ValidQty(c.qty); got != c.ok {
			t.Errorf("ValidQty(%d) = %v, want %v", c.qty, got, c.ok)
		}
	}
}

func TestPriceBand(t *testing.T) {
	inst := Instrument{RefPrice: 100 * px, PriceBandPct: 20}
	low, high, ok := inst.BandLimits()
	if !ok || low != 80*px || high != 120*px {
		t.Fatalf("band [%d, %d] ok=%v", low, high, ok)
	}
	if !inst.WithinBand(80*px) || !inst.WithinBand(120*px) {
		t.Fatal("band bounds are inclusive")
	}
	if inst.WithinBand(80*px-1) || inst.WithinBand(120*px+1) {
		t.Fatal("prices outside the band must fail")
	}

	unbanded := Instrument{RefPrice: 100 * px}
	if !unbanded.WithinBand(1) {
		t.Fatal("zero band pct disables banding")
	}
}

func TestOrderFillLifecycle(t *testing.T) {
	o := Order{TotalQty: 100, Remaining: 100, Status: StatusNew}
	o.Fill(40, 10)
	if o.Status != StatusPartiallyFilled || o.Remaining != 60 || o.FilledQty != 40 {
		t.Fatalf("after partial: %+v", o)
	}
	if !o.IsOpen() {
		t.Fatal("partially filled order is still open")
	}
	o.Fill(60, 20)
	if o.Status != StatusFilled || o.IsOpen() {
		t.Fatalf("after full fill: %+v", o)
	}
}

func TestOrderOverfillPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("overfill must panic")
		}
	}()
	o := Order{TotalQty: 10, Remaining: 10}
	o.Fill(11, 1)
}

func TestIcebergVisibleQty(t *testing.T) {
	o := Order{Type: TypeIceberg, TotalQty: 100, Remaining: 100, DisplayQty: 10, HiddenQty: 90}
	if got := o.VisibleQty(); got != 10 {
		t.Fatalf("visible = %d, want 10", got)
	}
	plain := Order{Type: TypeLimit, Remaining: 70}
	if got := plain.VisibleQty(); got != 70 {
		t.Fatalf("plain visible = %d", got)
	}
}

func TestPositionAverageCost(t *testing.T) {
	p := Position{Symbol: "TST"}

	if r := p.ApplyFill(Buy, 10, 100*px); r != 0 {
		t.Fatalf("opening realizes %d", r)
	}
	if p.NetQty != 10 || p.AvgPrice != 100*px {
		t.Fatalf("after open: %+v", p)
	}

	// adding blends the basis: (10*100 + 10*110) / 20 = 105
	p.ApplyFill(Buy, 10, 110*px)
	if p.NetQty != 20 || p.AvgPrice != 105*px {
		t.Fatalf("after add: %+v", p)
	}

	// reducing realizes against the blended basis
	if r := p.ApplyFill(Sell, 5, 115*px); r != 5*int64(10*px) {
		t.Fatalf("realized %d, want 50.00", r)
	}
	if p.NetQty != 15 || p.AvgPrice != 105*px {
		t.Fatalf("after reduce: %+v", p)
	}
}

func TestPositionCrossThroughFlat(t *testing.T) {
	p := Position{Symbol: "TST"}
	p.ApplyFill(Buy, 10, 100*px)

	// sell 15 at 90: realize -100.00 on the closed 10, go short 5 at 90
	realized := p.ApplyFill(Sell, 15, 90*px)
	if realized != -10*int64(10*px) {
		t.Fatalf("realized %d", realized)
	}
	if p.NetQty != -5 || p.AvgPrice != 90*px {
		t.Fatalf("after cross: %+v", p)
	}

	// closing the short at 80 gains 10 per unit
	if r := p.ApplyFill(Buy, 5, 80*px); r != 5*int64(10*px) {
		t.Fatalf("short close realized %d", r)
	}
	if p.NetQty != 0 || p.AvgPrice != 0 {
		t.Fatalf("flat position keeps state: %+v", p)
	}
}

func TestMarkToMarket(t *testing.T) {
	p := Position{Symbol: "TST"}
	p.ApplyFill(Buy, 10, 100*px)
	p.MarkToMarket(103 * px)
	if p.UnrealizedPnL != 10*int64(3*px) {
		t.Fatalf("unrealized %d", p.UnrealizedPnL)
	}
	p.ApplyFill(Sell, 10, 103*px)
	p.MarkToMarket(200 * px)
	if p.UnrealizedPnL != 0 {
		t.Fatal("flat position has no unrealized pnl")
	}
}

func TestEquityMarksOpenPositions(t *testing.T) {
	a := NewParticipantAccount(1, "t", ParticipantRetail, 1_000*int64(px), TierRetail)
	a.Position("TST").ApplyFill(Buy, 10, 100*px)
	a.Debit(10 * int64(100*px)) // settle the purchase

	marks := map[string]quant.PriceMicros{"TST": 110 * px}
	want := 1_000*int64(px) - 1_000*int64(px) + 10*int64(110*px)
	if got := a.Equity(marks); got != want {
		t.Fatalf("equity = %d, want %d", got, want)
	}
}

func TestTradeNotional(t *testing.T) {
	tr := Trade{Price: 10 * px, Qty: 100}
	if got := tr.Notional(); got != int64(10*px)*100 {
		t.Fatalf("notional = %d", got)
	}
	if tr.ParticipantOf(Buy) != tr.BuyerID || tr.ParticipantOf(Sell) != tr.SellerID {
		t.Fatal("participant lookup by side")
	}
}
