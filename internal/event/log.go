package event

import "log/slog"

// Sink receives events evicted from the in-memory window, letting a
// storage layer retain the full history without unbounded growth here.
type Sink interface {
	SpillEvents(evs []SimEvent) error
}

// Log is the append-only ledger of everything that happened in a run.
// Appends stamp a monotonically increasing sequence number. When a
// capacity is set the log keeps only the most recent window in memory
// and spills evicted events to the sink, if one is attached.
type Log struct {
	events    []SimEvent
	nextSeq   uint64
	capacity  int // 0 means unbounded
	sink      Sink
	observers []func(SimEvent)
	firstSeq  uint64 // seq of events[0]
}

// NewLog creates a log. capacity 0 keeps the whole run in memory.
func NewLog(capacity int) *Log {
	return &Log{
		events:   make([]SimEvent, 0, 1024),
		nextSeq:  1,
		firstSeq: 1,
		capacity: capacity,
	}
}

// SetSink attaches a spill target for evicted events.
func (l *Log) SetSink(s Sink) { l.sink = s }

// Observe registers a callback invoked synchronously on every append.
// Analytics derive their running statistics here instead of rescanning.
func (l *Log) Observe(fn func(SimEvent)) {
	l.observers = append(l.observers, fn)
}

// Append stamps the event with the next sequence number and records
// it. Returns the assigned sequence.
func (l *Log) Append(ev SimEvent) uint64 {
	seq := l.nextSeq
	if s, ok := ev.(sequenced); ok {
		s.setSeq(seq)
	}
	l.nextSeq++
	l.events = append(l.events, ev)

	if l.capacity > 0 && len(l.events) > l.capacity {
		l.evict(len(l.events) - l.capacity)
	}

	for _, fn := range l.observers {
		fn(ev)
	}
	return seq
}

func (l *Log) evict(n int) {
	spilled := l.events[:n]
	if l.sink != nil {
		if err := l.sink.SpillEvents(spilled); err != nil {
			slog.Warn("event spill failed, dropping window", slog.Any("error", err), slog.Int("count", n))
		}
	}
	l.events = append(l.events[:0:0], l.events[n:]...)
	l.firstSeq += uint64(n)
}

// Len returns the number of events currently held in memory.
func (l *Log) Len() int { return len(l.events) }

// NextSeq returns the sequence the next append will receive.
func (l *Log) NextSeq() uint64 { return l.nextSeq }

// Events returns the in-memory window in append order. The slice is a
// copy; the events themselves are immutable by contract.
func (l *Log) Events() []SimEvent {
	out := make([]SimEvent, len(l.events))
	copy(out, l.events)
	return out
}

// EventsSince returns in-memory events with seq > after.
func (l *Log) EventsSince(after uint64) []SimEvent {
	if after+1 < l.firstSeq {
		after = l.firstSeq - 1
	}
	start := int(after + 1 - l.firstSeq)
	if start >= len(l.events) {
		return nil
	}
	out := make([]SimEvent, len(l.events)-start)
	copy(out, l.events[start:])
	return out
}

// Replay invokes fn over the in-memory window in sequence order.
func (l *Log) Replay(fn func(SimEvent)) {
	for _, ev := range l.events {
		fn(ev)
	}
}
