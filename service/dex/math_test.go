package dex

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSellSolOutInitialReserves(t *testing.T) {
	// 1000 token base units against a fresh curve round down to nothing:
	// floor(1000 * 30_000_000_000 / (1_073_000_000_000_000 + 1000)) = 0.
	got := SellSolOut(1000, initialVirtualSolReserves, initialVirtualTokenReserves)
	require.Equal(t, uint64(0), got)

	// A meaningful position produces an exact quotient:
	// floor(1e12 * 30_000_000_000 / (1_073_000_000_000_000 + 1e12)) = 27_932_960.
	got = SellSolOut(1_000_000_000_000, initialVirtualSolReserves, initialVirtualTokenReserves)
	require.Equal(t, uint64(27_932_960), got)
}

func TestSellSolOutZeroInputs(t *testing.T) {
	assert.Zero(t, SellSolOut(0, 100, 100))
	assert.Zero(t, SellSolOut(100, 0, 100))
	assert.Zero(t, SellSolOut(100, 100, 0))
}

func TestSellSolOutNoOverflow(t *testing.T) {
	max := uint64(math.MaxUint64)
	// The widened intermediate must not wrap even at extreme inputs, and the
	// output can never exceed the sol reserve.
	got := SellSolOut(max, max, max)
	assert.LessOrEqual(t, got, max)
	assert.NotZero(t, got)
}

func TestSellSolOutMonotonic(t *testing.T) {
	prev := uint64(0)
	for _, in := range []uint64{1, 10, 1_000, 1_000_000, 1_000_000_000, 1_000_000_000_000} {
		out := SellSolOut(in, initialVirtualSolReserves, initialVirtualTokenReserves)
		assert.GreaterOrEqual(t, out, prev, "selling more must never return less")
		prev = out
	}
}

func TestBuyTokensOut(t *testing.T) {
	// Buying with the entire sol reserve takes half the token reserve.
	got := BuyTokensOut(1_000, 1_000, 500_000)
	assert.Equal(t, uint64(250_000), got)

	assert.Zero(t, BuyTokensOut(0, 1_000, 500_000))
	assert.Zero(t, BuyTokensOut(1_000, 0, 500_000))
	assert.Zero(t, BuyTokensOut(1_000, 1_000, 0))
}

func TestBuySellRoundTripLoses(t *testing.T) {
	vSol := initialVirtualSolReserves
	vToken := initialVirtualTokenReserves
	solIn := uint64(1_000_000_000)

	tokens := BuyTokensOut(solIn, vSol, vToken)
	require.NotZero(t, tokens)
	// Selling back against the post-buy reserves can never mint value.
	back := SellSolOut(tokens, vSol+solIn, vToken-tokens)
	assert.LessOrEqual(t, back, solIn)
}

func TestConstantProductOut(t *testing.T) {
	// No fee: floor(100 * 1000 / (1000 + 100)) = 90.
	assert.Equal(t, uint64(90), ConstantProductOut(100, 1000, 1000, 0))
	// 25 bps fee shrinks the effective input first.
	withFee := ConstantProductOut(100, 1000, 1000, 25)
	assert.LessOrEqual(t, withFee, uint64(90))
	assert.NotZero(t, withFee)

	assert.Zero(t, ConstantProductOut(0, 1000, 1000, 0))
	assert.Zero(t, ConstantProductOut(100, 0, 1000, 0))
	assert.Zero(t, ConstantProductOut(100, 1000, 0, 0))
	assert.Zero(t, ConstantProductOut(100, 1000, 1000, 10_000))
}

func TestPriceFromReserves(t *testing.T) {
	assert.InDelta(t, 2.7959e-5, PriceFromReserves(initialVirtualSolReserves, initialVirtualTokenReserves), 1e-8)
	assert.Zero(t, PriceFromReserves(100, 0))
}

func TestSlippageBounds(t *testing.T) {
	// 500 bps pad: 1000 * 10500 / 10000 = 1050.
	assert.Equal(t, uint64(1050), MaxWithSlippage(1000, 500))
	// Truncation, never rounding: 999 * 10001 / 10000 = 999.
	assert.Equal(t, uint64(999), MaxWithSlippage(999, 1))

	assert.Equal(t, uint64(950), MinWithSlippage(1000, 500))
	assert.Zero(t, MinWithSlippage(1000, 10_000))
}

func TestDecodeBondingCurve(t *testing.T) {
	data := make([]byte, bondingCurveAccountSize)
	putU64 := func(off int, v uint64) {
		for i := 0; i < 8; i++ {
			data[off+i] = byte(v >> (8 * i))
		}
	}
	putU64(8, 111)
	putU64(16, 222)
	putU64(24, 333)
	putU64(32, 444)
	putU64(40, 555)
	data[48] = 1

	state, err := DecodeBondingCurve(data)
	require.NoError(t, err)
	assert.Equal(t, uint64(111), state.VirtualTokenReserves)
	assert.Equal(t, uint64(222), state.VirtualSolReserves)
	assert.Equal(t, uint64(333), state.RealTokenReserves)
	assert.Equal(t, uint64(444), state.RealSolReserves)
	assert.Equal(t, uint64(555), state.TokenTotalSupply)
	assert.True(t, state.Complete)

	_, err = DecodeBondingCurve(data[:40])
	assert.Error(t, err)
}
