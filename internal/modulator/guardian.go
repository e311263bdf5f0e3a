// Package modulator contains the independent state machines whose multipliers
// and biases shape trade timing, size and direction.
package modulator

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"solmaker/pkg/logger"
)

// InterventionStrength grades a guardian response.
type InterventionStrength int

const (
	StrengthNone InterventionStrength = iota
	StrengthLight
	StrengthMedium
	StrengthStrong
)

func (s InterventionStrength) String() string {
	switch s {
	case StrengthLight:
		return "light"
	case StrengthMedium:
		return "medium"
	case StrengthStrong:
		return "strong"
	}
	return "none"
}

const (
	guardianHistoryWindow = 30 * time.Minute
	guardianDuration      = 30 * time.Minute
	guardianCooldown      = 2 * time.Hour
	minHistoryPoints      = 5
)

type pricePoint struct {
	price  float64
	volume float64
	at     time.Time
}

// Guardian watches for rapid price drops and, when triggered, escalates
// trading: faster cycles, larger sizes, and a bias toward buying. Once the
// active window ends it re-arms only after a cooldown.
type Guardian struct {
	mu sync.Mutex

	enabled       bool
	dropThreshold float64

	history          []pricePoint
	active           bool
	activatedAt      time.Time
	strength         InterventionStrength
	lastIntervention time.Time

	now func() time.Time
	log zerolog.Logger
}

// NewGuardian creates a guardian with the given drop threshold (e.g. 0.10 for
// a 10% drop over five minutes).
func NewGuardian(enabled bool, dropThreshold float64) *Guardian {
	g := &Guardian{
		enabled:       enabled,
		dropThreshold: dropThreshold,
		now:           time.Now,
		log:           logger.New("guardian"),
	}
	if enabled {
		g.log.Info().Float64("drop_threshold", dropThreshold).Msg("guardian mode initialized")
	} else {
		g.log.Info().Msg("guardian mode disabled")
	}
	return g
}

// AddPricePoint feeds a new observation, prunes stale history and evaluates
// the activation triggers.
func (g *Guardian) AddPricePoint(price, volume float64) {
	if !g.enabled {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	g.history = append(g.history, pricePoint{price: price, volume: volume, at: now})
	g.prune(now)
	g.checkActivation(now)
	g.checkExpiry(now)
}

func (g *Guardian) prune(now time.Time) {
	cutoff := now.Add(-guardianHistoryWindow)
	i := 0
	for i < len(g.history) && g.history[i].at.Before(cutoff) {
		i++
	}
	g.history = g.history[i:]
}

func (g *Guardian) checkActivation(now time.Time) {
	if g.active || len(g.history) < minHistoryPoints {
		return
	}
	if !g.lastIntervention.IsZero() && now.Sub(g.lastIntervention) < guardianCooldown {
		return
	}

	fiveMin := g.dropOver(now, 5*time.Minute)
	tenMin := g.dropOver(now, 10*time.Minute)
	fifteenMin := g.dropOver(now, 15*time.Minute)

	// Longer windows get relaxed thresholds: sustained smaller drawdowns are
	// also actionable.
	if fiveMin <= g.dropThreshold &&
		tenMin <= g.dropThreshold*0.8 &&
		fifteenMin <= g.dropThreshold*0.7 {
		return
	}

	g.active = true
	g.activatedAt = now
	g.lastIntervention = now
	switch {
	case fiveMin > g.dropThreshold*1.5:
		g.strength = StrengthStrong
	case fiveMin > g.dropThreshold*1.2:
		g.strength = StrengthMedium
	default:
		g.strength = StrengthLight
	}

	g.log.Warn().
		Str("strength", g.strength.String()).
		Float64("drop_5m", fiveMin).
		Float64("drop_10m", tenMin).
		Float64("drop_15m", fifteenMin).
		Msg("guardian mode activated")
}

func (g *Guardian) checkExpiry(now time.Time) {
	if g.active && now.Sub(g.activatedAt) >= guardianDuration {
		g.active = false
		g.log.Info().Msg("guardian mode deactivated")
	}
}

// dropOver returns the relative drop between the earliest price inside the
// window and the latest price. Positive means falling.
func (g *Guardian) dropOver(now time.Time, window time.Duration) float64 {
	cutoff := now.Add(-window)
	var earliest *pricePoint
	for i := range g.history {
		if !g.history[i].at.Before(cutoff) {
			earliest = &g.history[i]
			break
		}
	}
	if earliest == nil || len(g.history) == 0 || earliest.price <= 0 {
		return 0
	}
	latest := g.history[len(g.history)-1]
	return (earliest.price - latest.price) / earliest.price
}

// Active reports whether the guardian is currently intervening.
func (g *Guardian) Active() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.checkExpiry(g.now())
	return g.active
}

// Strength returns the current intervention strength, StrengthNone when idle.
func (g *Guardian) Strength() InterventionStrength {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.checkExpiry(g.now())
	if !g.active {
		return StrengthNone
	}
	return g.strength
}

// FrequencyMultiplier shortens trade intervals while intervening.
func (g *Guardian) FrequencyMultiplier() float64 {
	switch g.Strength() {
	case StrengthLight:
		return 0.7
	case StrengthMedium:
		return 0.5
	case StrengthStrong:
		return 0.3
	}
	return 1.0
}

// BuyBias is an additive boost to buy probability while intervening.
func (g *Guardian) BuyBias() float64 {
	switch g.Strength() {
	case StrengthLight:
		return 0.1
	case StrengthMedium:
		return 0.2
	case StrengthStrong:
		return 0.3
	}
	return 0.0
}

// AmountMultiplier enlarges trades while intervening.
func (g *Guardian) AmountMultiplier() float64 {
	switch g.Strength() {
	case StrengthLight:
		return 1.2
	case StrengthMedium:
		return 1.5
	case StrengthStrong:
		return 2.0
	}
	return 1.0
}

// GuardianStatus is a reporting snapshot.
type GuardianStatus struct {
	Enabled           bool
	Active            bool
	Strength          InterventionStrength
	TimeRemaining     time.Duration
	CooldownRemaining time.Duration
	RecentDrop        float64
}

// Status returns the current guardian state for reports and notifications.
func (g *Guardian) Status() GuardianStatus {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	g.checkExpiry(now)

	st := GuardianStatus{
		Enabled:    g.enabled,
		Active:     g.active,
		RecentDrop: g.dropOver(now, 5*time.Minute),
	}
	if g.active {
		st.Strength = g.strength
		st.TimeRemaining = guardianDuration - now.Sub(g.activatedAt)
	}
	if !g.lastIntervention.IsZero() {
		if remaining := guardianCooldown - now.Sub(g.lastIntervention); remaining > 0 {
			st.CooldownRemaining = remaining
		}
	}
	return st
}
