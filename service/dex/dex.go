// Package dex abstracts the supported trading venues behind one capability
// interface: quote calculation and swap instruction construction.
package dex

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"

	solsvc "solmaker/service/solana"
)

// Side is a trade direction.
type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Sell {
		return "sell"
	}
	return "buy"
}

// Kind identifies a venue variant.
type Kind string

const (
	KindPumpFun          Kind = "pumpfun"
	KindRaydiumCPMM      Kind = "raydium-cpmm"
	KindRaydiumLaunchpad Kind = "raydium-launchpad"
)

// Typed failures. Data-integrity errors abort a trade before signing; they
// must never degrade into a zero-value instruction.
var (
	ErrZeroReserves    = errors.New("dex: pool has zero reserves")
	ErrAccountNotFound = errors.New("dex: account not found")
	ErrOwnerMismatch   = errors.New("dex: account owner mismatch")
	ErrMintMismatch    = errors.New("dex: account mint mismatch")
	ErrCurveComplete   = errors.New("dex: bonding curve is complete")
)

// SwapConfig describes one swap to build.
type SwapConfig struct {
	Mint        solana.PublicKey
	Side        Side
	AmountIn    uint64 // lamports for buys, token base units for sells
	SlippageBps uint64
}

// SwapPlan is a ready-to-sign swap: the instruction list and the price the
// venue implied at build time.
type SwapPlan struct {
	Payer        solana.PublicKey
	Instructions []solana.Instruction
	Price        float64
}

// Venue is the capability set every supported protocol implements.
type Venue interface {
	Kind() Kind
	// ProgramID is the on-chain program the venue trades through, used to
	// filter the live feed subscription.
	ProgramID() solana.PublicKey
	// Quote predicts the output amount for the given input amount and mints.
	Quote(ctx context.Context, inputMint, outputMint solana.PublicKey, amount uint64) (uint64, error)
	// ImpliedPrice is the instantaneous reserve-ratio price, used to feed
	// the price-sensitive modulators.
	ImpliedPrice(ctx context.Context) (float64, error)
	// BuildSwap resolves accounts and constructs the swap instructions for
	// the given signer identity.
	BuildSwap(ctx context.Context, signer solana.PublicKey, cfg SwapConfig) (*SwapPlan, error)
}

// New constructs the venue for the configured kind.
func New(kind Kind, chain *solsvc.Service, mint solana.PublicKey, creator solana.PublicKey, poolID, poolBase, poolQuote solana.PublicKey) (Venue, error) {
	switch kind {
	case KindPumpFun:
		return NewPumpFun(chain, mint, creator), nil
	case KindRaydiumCPMM:
		return NewRaydiumCPMM(chain, mint, poolID, poolBase, poolQuote), nil
	case KindRaydiumLaunchpad:
		return NewRaydiumLaunchpad(chain, mint, poolID, poolBase, poolQuote), nil
	default:
		return nil, fmt.Errorf("unknown venue kind %q", kind)
	}
}

// WSOL is the wrapped native mint.
var WSOL = solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
