package app

import (
	"sync/atomic"
	"time"
)

// Metrics counts traffic through the client.
type Metrics struct {
	// User input
	inputCount    atomic.Uint64
	internalCount atomic.Uint64
	inputTotalNs  atomic.Int64

	// Session data
	dataChunks atomic.Uint64
	dataBytes  atomic.Uint64

	// Timer ticks
	ticks atomic.Uint64

	startTime time.Time
}

// NewMetrics creates a new metrics tracker.
func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

// RecordInput records one interpreted line and how long it took.
func (m *Metrics) RecordInput(internal bool, duration time.Duration) {
	if internal {
		m.internalCount.Add(1)
	} else {
		m.inputCount.Add(1)
	}
	m.inputTotalNs.Add(duration.Nanoseconds())
}

// RecordData records a chunk of text received from a session.
func (m *Metrics) RecordData(n int) {
	m.dataChunks.Add(1)
	m.dataBytes.Add(uint64(n))
}

// RecordTick records a timer tick and returns the tick number.
func (m *Metrics) RecordTick() uint64 {
	return m.ticks.Add(1)
}

// Snapshot returns a snapshot of current metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	inputs := m.inputCount.Load()
	internal := m.internalCount.Load()

	var avgInput time.Duration
	if total := inputs + internal; total > 0 {
		avgInput = time.Duration(m.inputTotalNs.Load() / int64(total))
	}

	return MetricsSnapshot{
		Uptime:        time.Since(m.startTime),
		InputCount:    inputs,
		InternalCount: internal,
		AvgInputTime:  avgInput,
		DataChunks:    m.dataChunks.Load(),
		DataBytes:     m.dataBytes.Load(),
		Ticks:         m.ticks.Load(),
	}
}

// MetricsSnapshot is a point-in-time view of metrics.
type MetricsSnapshot struct {
	Uptime        time.Duration
	InputCount    uint64
	InternalCount uint64
	AvgInputTime  time.Duration
	DataChunks    uint64
	DataBytes     uint64
	Ticks         uint64
}

// DataKB returns received data in kilobytes.
func (s MetricsSnapshot) DataKB() float64 {
	return float64(s.DataBytes) / 1024
}
