package infra

import (
	"sync/atomic"
	"time"
)

// Metrics provides lightweight process observability without external
// dependencies. Uses atomic operations for thread-safety: the run loop
// writes while a reporting goroutine may read.
type Metrics struct {
	// Counters
	ticksProcessed atomic.Uint64
	tradesSettled  atomic.Uint64
	eventsSpilled  atomic.Uint64
	errorsTotal    atomic.Uint64

	// Wall-clock tick latency tracking
	tickLatencySumNs atomic.Int64
	tickLatencyCount atomic.Uint64
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = &Metrics{}

// RecordTick records one tick's wall-clock duration.
func (m *Metrics) RecordTick(d time.Duration) {
	m.ticksProcessed.Add(1)
	m.tickLatencySumNs.Add(d.Nanoseconds())
	m.tickLatencyCount.Add(1)
}

// RecordSettlements records a batch of settled trades.
func (m *Metrics) RecordSettlements(n int) {
	if n > 0 {
		m.tradesSettled.Add(uint64(n))
	}
}

// RecordSpill records events flushed to external storage.
func (m *Metrics) RecordSpill(n int) {
	if n > 0 {
		m.eventsSpilled.Add(uint64(n))
	}
}

// RecordError records an error occurrence.
func (m *Metrics) RecordError() {
	m.errorsTotal.Add(1)
}

// Ticks returns the number of ticks processed.
func (m *Metrics) Ticks() uint64 { return m.ticksProcessed.Load() }

// Errors returns the error count.
func (m *Metrics) Errors() uint64 { return m.errorsTotal.Load() }

// Spilled returns the count of externalized events.
func (m *Metrics) Spilled() uint64 { return m.eventsSpilled.Load() }

// AvgTickLatency returns the mean wall-clock tick duration, zero
// before the first tick.
func (m *Metrics) AvgTickLatency() time.Duration {
	count := m.tickLatencyCount.Load()
	if count == 0 {
		return 0
	}
	return time.Duration(m.tickLatencySumNs.Load() / int64(count))
}

// Reset zeroes all counters, for tests.
func (m *Metrics) Reset() {
	m.ticksProcessed.Store(0)
	m.tradesSettled.Store(0)
	m.eventsSpilled.Store(0)
	m.errorsTotal.Store(0)
	m.tickLatencySumNs.Store(0)
	m.tickLatencyCount.Store(0)
}
