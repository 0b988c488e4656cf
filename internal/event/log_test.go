package event

import (
	"errors"
	"testing"

	"marketsim/internal/domain"
	"marketsim/pkg/quant"
)

func accepted(ts quant.TimeStamp, orderID int64) *OrderAccepted {
	return &OrderAccepted{Base: Base{Ts: ts}, Order: domain.Order{ID: orderID, Symbol: "TST"}}
}

func TestAppendStampsSequence(t *testing.T) {
	l := NewLog(0)
	for i := int64(1); i <= 5; i++ {
		seq := l.Append(accepted(quant.TimeStamp(i), i))
		if seq != uint64(i) {
			t.Fatalf("seq = %d, want %d", seq, i)
		}
	}
	evs := l.Events()
	if len(evs) != 5 {
		t.Fatalf("len = %d", len(evs))
	}
	for i, ev := range evs {
		if ev.GetSeq() != uint64(i+1) {
			t.Fatalf("event %d carries seq %d", i, ev.GetSeq())
		}
	}
	if l.NextSeq() != 6 {
		t.Fatalf("next seq = %d", l.NextSeq())
	}
}

type captureSink struct {
	spilled []SimEvent
	fail    bool
}

func (s *captureSink) SpillEvents(evs []SimEvent) error {
	if s.fail {
		return errors.New("sink down")
	}
	s.spilled = append(s.spilled, evs...)
	return nil
}

func TestCapacityEvictsToSink(t *testing.T) {
	sink := &captureSink{}
	l := NewLog(3)
	l.SetSink(sink)
	for i := int64(1); i <= 5; i++ {
		l.Append(accepted(quant.TimeStamp(i), i))
	}
	if l.Len() != 3 {
		t.Fatalf("in-memory window = %d, want 3", l.Len())
	}
	if len(sink.spilled) != 2 {
		t.Fatalf("spilled = %d, want 2", len(sink.spilled))
	}
	if sink.spilled[0].GetSeq() != 1 || sink.spilled[1].GetSeq() != 2 {
		t.Fatal("oldest events must spill first")
	}
	// the window starts where the spill ended
	if evs := l.Events(); evs[0].GetSeq() != 3 {
		t.Fatalf("window starts at seq %d, want 3", evs[0].GetSeq())
	}
}

func TestEvictionWithoutSinkDrops(t *testing.T) {
	l := NewLog(2)
	for i := int64(1); i <= 4; i++ {
		l.Append(accepted(quant.TimeStamp(i), i))
	}
	if l.Len() != 2 {
		t.Fatalf("window = %d, want 2", l.Len())
	}
}

func TestFailingSinkDropsWindow(t *testing.T) {
	sink := &captureSink{fail: true}
	l := NewLog(2)
	l.SetSink(sink)
	for i := int64(1); i <= 4; i++ {
		l.Append(accepted(quant.TimeStamp(i), i))
	}
	// spill failure must not corrupt the window
	if l.Len() != 2 {
		t.Fatalf("window = %d, want 2", l.Len())
	}
	if l.Events()[0].GetSeq() != 3 {
		t.Fatal("eviction must advance even when the sink fails")
	}
}

func TestEventsSince(t *testing.T) {
	l := NewLog(0)
	for i := int64(1); i <= 5; i++ {
		l.Append(accepted(quant.TimeStamp(i), i))
	}
	evs := l.EventsSince(3)
	if len(evs) != 2 || evs[0].GetSeq() != 4 {
		t.Fatalf("since 3: got %d events starting at %d", len(evs), evs[0].GetSeq())
	}
	if got := l.EventsSince(5); got != nil {
		t.Fatalf("since head: got %d events", len(got))
	}
	if got := l.EventsSince(0); len(got) != 5 {
		t.Fatalf("since 0: got %d events", len(got))
	}
}

func TestEventsSinceAfterEviction(t *testing.T) {
	l := NewLog(3)
	for i := int64(1); i <= 5; i++ {
		l.Append(accepted(quant.TimeStamp(i), i))
	}
	// asking before the window clamps to what is retained
	evs := l.EventsSince(0)
	if len(evs) != 3 || evs[0].GetSeq() != 3 {
		t.Fatalf("got %d events starting at %d, want window from 3", len(evs), evs[0].GetSeq())
	}
}

func TestObserversRunOnAppend(t *testing.T) {
	l := NewLog(0)
	var seen []uint64
	l.Observe(func(ev SimEvent) { seen = append(seen, ev.GetSeq()) })
	l.Append(accepted(1, 1))
	l.Append(accepted(2, 2))
	if len(seen) != 2 || seen[0] != 1 || seen[1] != 2 {
		t.Fatalf("observer saw %v", seen)
	}
}

func TestReplayOrder(t *testing.T) {
	l := NewLog(0)
	for i := int64(1); i <= 3; i++ {
		l.Append(accepted(quant.TimeStamp(i), i))
	}
	var last uint64
	l.Replay(func(ev SimEvent) {
		if ev.GetSeq() <= last {
			t.Fatalf("replay out of order: %d after %d", ev.GetSeq(), last)
		}
		last = ev.GetSeq()
	})
	if last != 3 {
		t.Fatalf("replay ended at %d", last)
	}
}

func TestTypeStrings(t *testing.T) {
	if TypeTradeExecuted.String() != "TRADE_EXECUTED" {
		t.Fatal(TypeTradeExecuted.String())
	}
	if Type(99).String() != "UNKNOWN" {
		t.Fatal("unknown type must stringify safely")
	}
}
