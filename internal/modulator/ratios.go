package modulator

import (
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"solmaker/pkg/logger"
)

// TrendBias nudges the buy ratio toward market conditions.
type TrendBias int

const (
	BullishStrong TrendBias = iota
	BullishMild
	Neutral
	BearishMild
	BearishStrong
)

func (b TrendBias) factor() float64 {
	switch b {
	case BullishStrong:
		return 0.1
	case BullishMild:
		return 0.05
	case BearishMild:
		return -0.05
	case BearishStrong:
		return -0.1
	}
	return 0
}

// DynamicRatio drifts the buy/sell split inside configured bounds, changing
// on a fixed interval or, in weekly mode, on each new calendar week (Sunday
// boundary, UTC).
type DynamicRatio struct {
	mu sync.Mutex

	current    float64
	minRatio   float64
	maxRatio   float64
	lastChange time.Time
	interval   time.Duration

	weekly     bool
	lastSunday time.Time

	rng *rand.Rand
	now func() time.Time
	log zerolog.Logger
}

// NewDynamicRatio creates a ratio manager. Misordered bounds are swapped;
// both are clamped to [0,1].
func NewDynamicRatio(minRatio, maxRatio float64, interval time.Duration, rng *rand.Rand) *DynamicRatio {
	minRatio = clamp01(minRatio)
	maxRatio = clamp01(maxRatio)
	if minRatio > maxRatio {
		minRatio, maxRatio = maxRatio, minRatio
	}
	r := &DynamicRatio{
		minRatio: minRatio,
		maxRatio: maxRatio,
		interval: interval,
		rng:      rng,
		now:      time.Now,
		log:      logger.New("dynamic-ratios"),
	}
	r.current = r.draw()
	r.lastChange = r.now()
	r.log.Info().Float64("buy_ratio", r.current).Msg("dynamic ratio manager initialized")
	return r
}

// NewWeeklyRatio creates a ratio manager that redraws every Sunday (UTC).
func NewWeeklyRatio(minRatio, maxRatio float64, rng *rand.Rand) *DynamicRatio {
	r := NewDynamicRatio(minRatio, maxRatio, 168*time.Hour, rng)
	r.weekly = true
	return r
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func (r *DynamicRatio) draw() float64 {
	return r.minRatio + (r.maxRatio-r.minRatio)*r.rng.Float64()
}

// lastSundayOf truncates a time to the most recent Sunday date in UTC.
func lastSundayOf(t time.Time) time.Time {
	t = t.UTC()
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return d.AddDate(0, 0, -int(d.Weekday()))
}

// BuyRatio returns the current buy ratio, redrawing first if due.
func (r *DynamicRatio) BuyRatio() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if r.weekly {
		sunday := lastSundayOf(now)
		if r.lastSunday.IsZero() || !r.lastSunday.Equal(sunday) {
			r.redraw(now)
			r.lastSunday = sunday
		}
	} else if now.Sub(r.lastChange) >= r.interval {
		r.redraw(now)
	}
	return r.current
}

func (r *DynamicRatio) redraw(now time.Time) {
	old := r.current
	r.current = r.draw()
	r.lastChange = now
	r.log.Info().
		Float64("from", old).
		Float64("to", r.current).
		Msg("buy ratio changed")
}

// ApplyTrendBias shifts the current ratio once, clamped to bounds.
func (r *DynamicRatio) ApplyTrendBias(bias TrendBias) {
	r.mu.Lock()
	defer r.mu.Unlock()

	biased := r.current + bias.factor()
	if biased < r.minRatio {
		biased = r.minRatio
	}
	if biased > r.maxRatio {
		biased = r.maxRatio
	}
	if biased != r.current {
		r.log.Info().Float64("from", r.current).Float64("to", biased).Msg("trend bias applied")
		r.current = biased
	}
}

// SetBounds replaces the ratio bounds, swapping if misordered; the current
// ratio is pulled back inside the new bounds if needed.
func (r *DynamicRatio) SetBounds(minRatio, maxRatio float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	minRatio = clamp01(minRatio)
	maxRatio = clamp01(maxRatio)
	if minRatio > maxRatio {
		minRatio, maxRatio = maxRatio, minRatio
	}
	r.minRatio, r.maxRatio = minRatio, maxRatio
	if r.current < r.minRatio {
		r.current = r.minRatio
	}
	if r.current > r.maxRatio {
		r.current = r.maxRatio
	}
}

// RatioStats is a reporting snapshot of the ratio state.
type RatioStats struct {
	BuyRatio      float64
	SellRatio     float64
	MinBuyRatio   float64
	MaxBuyRatio   float64
	LastChangeAgo time.Duration
	NextChangeIn  time.Duration
}

// Stats returns the current ratio state for reports.
func (r *DynamicRatio) Stats() RatioStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	elapsed := r.now().Sub(r.lastChange)
	next := r.interval - elapsed
	if next < 0 {
		next = 0
	}
	return RatioStats{
		BuyRatio:      r.current,
		SellRatio:     1 - r.current,
		MinBuyRatio:   r.minRatio,
		MaxBuyRatio:   r.maxRatio,
		LastChangeAgo: elapsed,
		NextChangeIn:  next,
	}
}
