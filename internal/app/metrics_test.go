package app

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetrics_Snapshot(t *testing.T) {
	m := NewMetrics()

	s := m.Snapshot()
	assert.Zero(t, s.InputCount)
	assert.Zero(t, s.AvgInputTime)

	m.RecordInput(false, 10*time.Millisecond)
	m.RecordInput(false, 20*time.Millisecond)
	m.RecordInput(true, 30*time.Millisecond)
	m.RecordData(512)
	m.RecordData(1536)
	assert.Equal(t, uint64(1), m.RecordTick())
	assert.Equal(t, uint64(2), m.RecordTick())

	s = m.Snapshot()
	assert.Equal(t, uint64(2), s.InputCount)
	assert.Equal(t, uint64(1), s.InternalCount)
	assert.Equal(t, 20*time.Millisecond, s.AvgInputTime)
	assert.Equal(t, uint64(2), s.DataChunks)
	assert.Equal(t, uint64(2048), s.DataBytes)
	assert.InDelta(t, 2.0, s.DataKB(), 0.001)
	assert.Equal(t, uint64(2), s.Ticks)
	assert.GreaterOrEqual(t, s.Uptime, time.Duration(0))
}

func TestMetrics_Concurrent(t *testing.T) {
	m := NewMetrics()

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				m.RecordInput(false, time.Microsecond)
				m.RecordData(1)
			}
		}()
	}
	wg.Wait()

	s := m.Snapshot()
	assert.Equal(t, uint64(800), s.InputCount)
	assert.Equal(t, uint64(800), s.DataBytes)
}
