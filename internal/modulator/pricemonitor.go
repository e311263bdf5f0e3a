package modulator

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"solmaker/pkg/logger"
)

const priceMonitorHistory = 100

// PriceMonitor tracks recent prices and throttles trading when the price
// moves too sharply inside its window.
type PriceMonitor struct {
	mu sync.Mutex

	history         []pricePoint
	window          time.Duration
	changeThreshold float64

	throttling   bool
	lastThrottle time.Time
	throttleFor  time.Duration

	now func() time.Time
	log zerolog.Logger
}

// NewPriceMonitor creates a monitor that flags throttling when the relative
// price change inside window exceeds changeThreshold.
func NewPriceMonitor(changeThreshold float64, window, throttleDuration time.Duration) *PriceMonitor {
	return &PriceMonitor{
		window:          window,
		changeThreshold: changeThreshold,
		throttleFor:     throttleDuration,
		now:             time.Now,
		log:             logger.New("price-monitor"),
	}
}

// AddPrice records an observation and re-evaluates the throttle flag.
func (m *PriceMonitor) AddPrice(price, volumeSOL float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.history = append(m.history, pricePoint{price: price, volume: volumeSOL, at: now})
	if len(m.history) > priceMonitorHistory {
		m.history = m.history[len(m.history)-priceMonitorHistory:]
	}

	if m.throttling {
		if now.Sub(m.lastThrottle) >= m.throttleFor {
			m.throttling = false
			m.log.Info().Msg("throttle released")
		}
		return
	}

	change := m.relativeChange(now)
	if change > m.changeThreshold {
		m.throttling = true
		m.lastThrottle = now
		m.log.Warn().
			Float64("change", change).
			Float64("threshold", m.changeThreshold).
			Msg("sharp price move, throttling trade frequency")
	}
}

// relativeChange returns |latest-earliest|/earliest over the window.
func (m *PriceMonitor) relativeChange(now time.Time) float64 {
	cutoff := now.Add(-m.window)
	var earliest *pricePoint
	for i := range m.history {
		if !m.history[i].at.Before(cutoff) {
			earliest = &m.history[i]
			break
		}
	}
	if earliest == nil || earliest.price <= 0 {
		return 0
	}
	latest := m.history[len(m.history)-1]
	change := (latest.price - earliest.price) / earliest.price
	if change < 0 {
		change = -change
	}
	return change
}

// Throttling reports whether trading frequency is currently suppressed.
func (m *PriceMonitor) Throttling() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.throttling && m.now().Sub(m.lastThrottle) >= m.throttleFor {
		m.throttling = false
	}
	return m.throttling
}
