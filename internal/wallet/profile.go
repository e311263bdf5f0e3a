// Package wallet manages the pool of signing identities and their behavioral
// profiles.
package wallet

import (
	"math/rand"
	"time"
)

// Profile determines how a wallet trades. Assigned once at creation and
// immutable thereafter.
type Profile int

const (
	FrequentSeller Profile = iota
	LongTermHolder
	BalancedTrader
	Aggressive
	Conservative
)

func (p Profile) String() string {
	switch p {
	case FrequentSeller:
		return "frequent-seller"
	case LongTermHolder:
		return "long-term-holder"
	case BalancedTrader:
		return "balanced-trader"
	case Aggressive:
		return "aggressive"
	case Conservative:
		return "conservative"
	}
	return "unknown"
}

// SellProbability is the chance this wallet agrees to a sell when selected.
func (p Profile) SellProbability() float64 {
	switch p {
	case FrequentSeller:
		return 0.45
	case LongTermHolder:
		return 0.15
	case BalancedTrader:
		return 0.30
	case Aggressive:
		return 0.35
	case Conservative:
		return 0.25
	}
	return 0.30
}

// MinHold is the minimum time a position is held before a sell is considered.
func (p Profile) MinHold() time.Duration {
	switch p {
	case FrequentSeller:
		return 6 * time.Hour
	case LongTermHolder:
		return 72 * time.Hour
	case BalancedTrader:
		return 24 * time.Hour
	case Aggressive:
		return 4 * time.Hour
	case Conservative:
		return 48 * time.Hour
	}
	return 24 * time.Hour
}

// MaxHold is the hold time after which a sell is forced into consideration.
func (p Profile) MaxHold() time.Duration {
	switch p {
	case FrequentSeller:
		return 48 * time.Hour
	case LongTermHolder:
		return 168 * time.Hour
	case BalancedTrader:
		return 96 * time.Hour
	case Aggressive:
		return 24 * time.Hour
	case Conservative:
		return 120 * time.Hour
	}
	return 96 * time.Hour
}

// AmountMultiplier scales base trade size for this wallet.
func (p Profile) AmountMultiplier() float64 {
	switch p {
	case FrequentSeller:
		return 0.8
	case LongTermHolder:
		return 1.2
	case BalancedTrader:
		return 1.0
	case Aggressive:
		return 1.5
	case Conservative:
		return 0.6
	}
	return 1.0
}

// FrequencyMultiplier scales the base trade interval (lower = more frequent).
func (p Profile) FrequencyMultiplier() float64 {
	switch p {
	case FrequentSeller:
		return 0.7
	case LongTermHolder:
		return 2.0
	case BalancedTrader:
		return 1.0
	case Aggressive:
		return 0.5
	case Conservative:
		return 1.5
	}
	return 1.0
}

// RandomProfile draws a profile with the distribution observed in organic
// retail populations: 20/15/35/15/15.
func RandomProfile(rng *rand.Rand) Profile {
	x := rng.Float64()
	switch {
	case x < 0.20:
		return FrequentSeller
	case x < 0.35:
		return LongTermHolder
	case x < 0.70:
		return BalancedTrader
	case x < 0.85:
		return Aggressive
	default:
		return Conservative
	}
}
