package modulator

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWave(t *testing.T, seed int64, clock *time.Time) *VolumeWave {
	t.Helper()
	w := NewVolumeWave(2, 4, rand.New(rand.NewSource(seed)))
	w.now = func() time.Time { return *clock }
	w.phaseStarted = *clock
	return w
}

func TestWaveHoldsPhaseUntilDurationElapses(t *testing.T) {
	clock := time.Now()
	w := newTestWave(t, 1, &clock)
	w.phase = PhaseActive

	clock = clock.Add(w.activeDuration - time.Minute)
	assert.Equal(t, PhaseActive, w.CurrentPhase())

	clock = clock.Add(2 * time.Minute)
	next := w.CurrentPhase()
	assert.NotEqual(t, PhaseActive, next)
}

func TestBurstAlwaysFollowedBySlow(t *testing.T) {
	clock := time.Now()
	for seed := int64(0); seed < 10; seed++ {
		w := newTestWave(t, seed, &clock)
		w.phase = PhaseBurst
		w.phaseStarted = clock

		clock = clock.Add(burstDuration + time.Second)
		assert.Equal(t, PhaseSlow, w.CurrentPhase())
	}
}

func TestDormantAlwaysFollowedByActive(t *testing.T) {
	clock := time.Now()
	for seed := int64(0); seed < 10; seed++ {
		w := newTestWave(t, seed, &clock)
		w.phase = PhaseDormant
		w.phaseStarted = clock

		clock = clock.Add(dormantDuration + time.Second)
		assert.Equal(t, PhaseActive, w.CurrentPhase())
	}
}

func TestActiveTransitionsToSlowOrBurst(t *testing.T) {
	clock := time.Now()
	seen := make(map[Phase]bool)
	for seed := int64(0); seed < 50; seed++ {
		w := newTestWave(t, seed, &clock)
		w.phase = PhaseActive
		w.phaseStarted = clock

		clock = clock.Add(w.activeDuration + time.Second)
		next := w.CurrentPhase()
		require.Contains(t, []Phase{PhaseSlow, PhaseBurst}, next)
		seen[next] = true
	}
	// Across 50 seeds both outcomes should appear.
	assert.True(t, seen[PhaseSlow])
	assert.True(t, seen[PhaseBurst])
}

func TestSlowTransitionsToActiveOrDormant(t *testing.T) {
	clock := time.Now()
	seen := make(map[Phase]bool)
	for seed := int64(0); seed < 100; seed++ {
		w := newTestWave(t, seed, &clock)
		w.phase = PhaseSlow
		w.phaseStarted = clock

		clock = clock.Add(w.slowDuration + time.Second)
		next := w.CurrentPhase()
		require.Contains(t, []Phase{PhaseActive, PhaseDormant}, next)
		seen[next] = true
	}
	assert.True(t, seen[PhaseActive])
	assert.True(t, seen[PhaseDormant])
}

func TestWaveMultipliersPerPhase(t *testing.T) {
	clock := time.Now()
	w := newTestWave(t, 1, &clock)

	tests := []struct {
		phase  Phase
		freq   float64
		amount float64
	}{
		{PhaseActive, 0.8, 1.0},
		{PhaseSlow, 1.8, 0.6},
		{PhaseBurst, 0.3, 1.5},
		{PhaseDormant, 4.0, 0.3},
	}
	for _, tt := range tests {
		w.phase = tt.phase
		w.phaseStarted = clock // keep the phase from transitioning
		assert.Equal(t, tt.freq, w.FrequencyMultiplier(), tt.phase.String())
		assert.Equal(t, tt.amount, w.AmountMultiplier(), tt.phase.String())
	}
}

func TestWaveInfo(t *testing.T) {
	clock := time.Now()
	w := newTestWave(t, 1, &clock)
	w.phase = PhaseBurst
	w.phaseStarted = clock

	clock = clock.Add(5 * time.Minute)
	info := w.Info()
	assert.Equal(t, PhaseBurst, info.Phase)
	assert.Equal(t, 5*time.Minute, info.TimeInPhase)
	assert.Equal(t, 10*time.Minute, info.TimeRemaining)
}
