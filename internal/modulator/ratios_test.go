package modulator

import (
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRatioStaysWithinBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	clock := time.Now()
	r := NewDynamicRatio(0.5, 0.8, time.Hour, rng)
	r.now = func() time.Time { return clock }

	for i := 0; i < 200; i++ {
		clock = clock.Add(90 * time.Minute) // force a redraw each query
		ratio := r.BuyRatio()
		require.GreaterOrEqual(t, ratio, 0.5)
		require.LessOrEqual(t, ratio, 0.8)
	}
}

func TestRatiosDrawConcurrentlyWithOwnSources(t *testing.T) {
	// Each modulator owns a seeded source, the wiring used at startup. A
	// zero change interval forces a redraw on every query so the sources
	// are hammered while both goroutines run.
	ratios := []*DynamicRatio{
		NewDynamicRatio(0.5, 0.8, 0, rand.New(rand.NewSource(11))),
		NewDynamicRatio(0.5, 0.8, 0, rand.New(rand.NewSource(12))),
	}

	var wg sync.WaitGroup
	for _, r := range ratios {
		wg.Add(1)
		go func(r *DynamicRatio) {
			defer wg.Done()
			for i := 0; i < 1_000; i++ {
				ratio := r.BuyRatio()
				if ratio < 0.5 || ratio > 0.8 {
					t.Errorf("ratio %v escaped bounds", ratio)
					return
				}
			}
		}(r)
	}
	wg.Wait()
}

func TestRatioSwapsMisorderedBounds(t *testing.T) {
	r := NewDynamicRatio(0.9, 0.2, time.Hour, rand.New(rand.NewSource(1)))
	st := r.Stats()
	assert.Equal(t, 0.2, st.MinBuyRatio)
	assert.Equal(t, 0.9, st.MaxBuyRatio)
}

func TestRatioOnlyChangesAfterInterval(t *testing.T) {
	clock := time.Now()
	r := NewDynamicRatio(0.0, 1.0, time.Hour, rand.New(rand.NewSource(5)))
	r.now = func() time.Time { return clock }
	r.lastChange = clock

	first := r.BuyRatio()
	clock = clock.Add(30 * time.Minute)
	assert.Equal(t, first, r.BuyRatio())

	clock = clock.Add(31 * time.Minute)
	r.BuyRatio()
	st := r.Stats()
	assert.Less(t, st.LastChangeAgo, time.Minute)
}

func TestTrendBiasClampedToBounds(t *testing.T) {
	r := NewDynamicRatio(0.5, 0.8, time.Hour, rand.New(rand.NewSource(2)))

	for i := 0; i < 10; i++ {
		r.ApplyTrendBias(BullishStrong)
	}
	assert.Equal(t, 0.8, r.Stats().BuyRatio)

	for i := 0; i < 10; i++ {
		r.ApplyTrendBias(BearishStrong)
	}
	assert.Equal(t, 0.5, r.Stats().BuyRatio)
}

func TestTrendBiasNeutralIsNoop(t *testing.T) {
	r := NewDynamicRatio(0.5, 0.8, time.Hour, rand.New(rand.NewSource(2)))
	before := r.Stats().BuyRatio
	r.ApplyTrendBias(Neutral)
	assert.Equal(t, before, r.Stats().BuyRatio)
}

func TestWeeklyRatioChangesOnSundayBoundary(t *testing.T) {
	// Saturday 2026-01-03 23:00 UTC; the next day is a new week.
	clock := time.Date(2026, 1, 3, 23, 0, 0, 0, time.UTC)
	r := NewWeeklyRatio(0.0, 1.0, rand.New(rand.NewSource(9)))
	r.now = func() time.Time { return clock }

	first := r.BuyRatio()
	clock = clock.Add(30 * time.Minute) // still Saturday
	assert.Equal(t, first, r.BuyRatio())

	clock = clock.Add(2 * time.Hour) // Sunday 01:30
	second := r.BuyRatio()
	clock = clock.Add(24 * time.Hour) // Monday, same week
	assert.Equal(t, second, r.BuyRatio())
}

func TestSetBoundsPullsCurrentInside(t *testing.T) {
	r := NewDynamicRatio(0.0, 1.0, time.Hour, rand.New(rand.NewSource(4)))
	r.SetBounds(0.7, 0.7)
	assert.Equal(t, 0.7, r.Stats().BuyRatio)
}
