package modulator

import (
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"solmaker/pkg/logger"
)

// Phase is the current volume-wave activity phase.
type Phase int

const (
	PhaseActive Phase = iota
	PhaseSlow
	PhaseBurst
	PhaseDormant
)

func (p Phase) String() string {
	switch p {
	case PhaseActive:
		return "active"
	case PhaseSlow:
		return "slow"
	case PhaseBurst:
		return "burst"
	case PhaseDormant:
		return "dormant"
	}
	return "unknown"
}

const (
	burstDuration   = 15 * time.Minute
	dormantDuration = 60 * time.Minute
)

// VolumeWave cycles trading activity through phases so volume looks like
// organic ebb and flow instead of a constant drip. Transitions are evaluated
// lazily on the next query once the phase duration has elapsed.
type VolumeWave struct {
	mu sync.Mutex

	phase        Phase
	phaseStarted time.Time

	activeDuration time.Duration
	slowDuration   time.Duration

	rng *rand.Rand
	now func() time.Time
	log zerolog.Logger
}

// NewVolumeWave creates the manager. Active/slow durations come from
// configuration; burst and dormant are fixed.
func NewVolumeWave(activeHours, slowHours float64, rng *rand.Rand) *VolumeWave {
	w := &VolumeWave{
		activeDuration: time.Duration(activeHours * float64(time.Hour)),
		slowDuration:   time.Duration(slowHours * float64(time.Hour)),
		rng:            rng,
		now:            time.Now,
		log:            logger.New("volume-waves"),
	}
	if rng.Float64() < 0.6 {
		w.phase = PhaseActive
	} else {
		w.phase = PhaseSlow
	}
	w.phaseStarted = w.now()
	w.log.Info().Str("phase", w.phase.String()).Msg("volume wave manager initialized")
	return w
}

// CurrentPhase returns the phase, transitioning first if the current phase
// has run its course.
func (w *VolumeWave) CurrentPhase() Phase {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.maybeTransition()
	return w.phase
}

func (w *VolumeWave) phaseDuration(p Phase) time.Duration {
	switch p {
	case PhaseActive:
		return w.activeDuration
	case PhaseSlow:
		return w.slowDuration
	case PhaseBurst:
		return burstDuration
	default:
		return dormantDuration
	}
}

func (w *VolumeWave) maybeTransition() {
	now := w.now()
	if now.Sub(w.phaseStarted) < w.phaseDuration(w.phase) {
		return
	}

	old := w.phase
	switch w.phase {
	case PhaseActive:
		if w.rng.Float64() < 0.15 {
			w.phase = PhaseBurst
		} else {
			w.phase = PhaseSlow
		}
	case PhaseSlow:
		if w.rng.Float64() < 0.10 {
			w.phase = PhaseDormant
		} else {
			w.phase = PhaseActive
		}
	case PhaseBurst:
		w.phase = PhaseSlow
	case PhaseDormant:
		w.phase = PhaseActive
	}
	w.phaseStarted = now

	w.log.Info().
		Str("from", old.String()).
		Str("to", w.phase.String()).
		Dur("duration", w.phaseDuration(w.phase)).
		Msg("phase transition")
}

// FrequencyMultiplier scales the trade interval for the current phase.
func (w *VolumeWave) FrequencyMultiplier() float64 {
	switch w.CurrentPhase() {
	case PhaseActive:
		return 0.8
	case PhaseSlow:
		return 1.8
	case PhaseBurst:
		return 0.3
	default:
		return 4.0
	}
}

// AmountMultiplier scales the trade size for the current phase.
func (w *VolumeWave) AmountMultiplier() float64 {
	switch w.CurrentPhase() {
	case PhaseActive:
		return 1.0
	case PhaseSlow:
		return 0.6
	case PhaseBurst:
		return 1.5
	default:
		return 0.3
	}
}

// WaveInfo is a reporting snapshot of the wave state.
type WaveInfo struct {
	Phase               Phase
	TimeInPhase         time.Duration
	TimeRemaining       time.Duration
	FrequencyMultiplier float64
	AmountMultiplier    float64
}

// Info returns the current wave state for reports.
func (w *VolumeWave) Info() WaveInfo {
	freq := w.FrequencyMultiplier()
	amount := w.AmountMultiplier()

	w.mu.Lock()
	defer w.mu.Unlock()
	elapsed := w.now().Sub(w.phaseStarted)
	remaining := w.phaseDuration(w.phase) - elapsed
	if remaining < 0 {
		remaining = 0
	}
	return WaveInfo{
		Phase:               w.phase,
		TimeInPhase:         elapsed,
		TimeRemaining:       remaining,
		FrequencyMultiplier: freq,
		AmountMultiplier:    amount,
	}
}
