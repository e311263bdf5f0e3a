package modulator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMonitor(clock *time.Time) *PriceMonitor {
	m := NewPriceMonitor(0.05, 5*time.Minute, 10*time.Minute)
	m.now = func() time.Time { return *clock }
	return m
}

func TestMonitorThrottlesOnSharpMove(t *testing.T) {
	clock := time.Now()
	m := newTestMonitor(&clock)

	m.AddPrice(1.00, 1)
	clock = clock.Add(time.Minute)
	m.AddPrice(1.10, 1) // +10% inside the window

	assert.True(t, m.Throttling())
}

func TestMonitorThrottlesOnDropToo(t *testing.T) {
	clock := time.Now()
	m := newTestMonitor(&clock)

	m.AddPrice(1.00, 1)
	clock = clock.Add(time.Minute)
	m.AddPrice(0.90, 1)

	assert.True(t, m.Throttling())
}

func TestMonitorIgnoresSmallMoves(t *testing.T) {
	clock := time.Now()
	m := newTestMonitor(&clock)

	m.AddPrice(1.00, 1)
	clock = clock.Add(time.Minute)
	m.AddPrice(1.02, 1)

	assert.False(t, m.Throttling())
}

func TestThrottleReleasesAfterDuration(t *testing.T) {
	clock := time.Now()
	m := newTestMonitor(&clock)

	m.AddPrice(1.00, 1)
	clock = clock.Add(time.Minute)
	m.AddPrice(1.20, 1)
	require.True(t, m.Throttling())

	clock = clock.Add(10*time.Minute + time.Second)
	assert.False(t, m.Throttling())
}

func TestMonitorHistoryBounded(t *testing.T) {
	clock := time.Now()
	m := newTestMonitor(&clock)

	for i := 0; i < priceMonitorHistory*2; i++ {
		m.AddPrice(1.00, 1)
	}
	assert.LessOrEqual(t, len(m.history), priceMonitorHistory)
}
