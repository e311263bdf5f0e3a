package dex

import (
	"math/big"
	"math/bits"
)

// mulDiv computes floor(a*b/d) with a 128-bit intermediate. Saturates to
// MaxUint64 when the quotient does not fit.
func mulDiv(a, b, d uint64) uint64 {
	if d == 0 {
		return 0
	}
	hi, lo := bits.Mul64(a, b)
	if hi >= d {
		return ^uint64(0)
	}
	q, _ := bits.Div64(hi, lo, d)
	return q
}

// ratioOut computes floor(in * reserveOut / (reserveIn + in)) exactly. The
// quotient always fits in uint64 because it is bounded by reserveOut; only
// the denominator can overflow, which falls back to arbitrary precision.
func ratioOut(in, reserveOut, reserveIn uint64) uint64 {
	denom, carry := bits.Add64(reserveIn, in, 0)
	if carry == 0 {
		return mulDiv(in, reserveOut, denom)
	}
	num := new(big.Int).Mul(new(big.Int).SetUint64(in), new(big.Int).SetUint64(reserveOut))
	den := new(big.Int).Add(new(big.Int).SetUint64(reserveIn), new(big.Int).SetUint64(in))
	return num.Div(num, den).Uint64()
}

// SellSolOut returns the lamports received for selling tokenIn against the
// given virtual reserves: floor(tokenIn * vSol / (vToken + tokenIn)).
// Zero inputs or zero reserves yield zero rather than a panic.
func SellSolOut(tokenIn, vSol, vToken uint64) uint64 {
	if tokenIn == 0 || vSol == 0 || vToken == 0 {
		return 0
	}
	return ratioOut(tokenIn, vSol, vToken)
}

// BuyTokensOut returns the token base units received for spending solIn
// lamports: floor(solIn * vToken / (vSol + solIn)).
func BuyTokensOut(solIn, vSol, vToken uint64) uint64 {
	if solIn == 0 || vSol == 0 || vToken == 0 {
		return 0
	}
	return ratioOut(solIn, vToken, vSol)
}

// ConstantProductOut quotes out = inAfterFee * reserveOut / (reserveIn +
// inAfterFee) where the fee is taken from the input side in basis points.
func ConstantProductOut(amountIn, reserveIn, reserveOut, feeBps uint64) uint64 {
	if amountIn == 0 || reserveIn == 0 || reserveOut == 0 {
		return 0
	}
	if feeBps >= 10_000 {
		return 0
	}
	inAfterFee := mulDiv(amountIn, 10_000-feeBps, 10_000)
	return ratioOut(inAfterFee, reserveOut, reserveIn)
}

// PriceFromReserves is the instantaneous price implied by the reserves as a
// raw ratio. Zero token reserves read as a zero price.
func PriceFromReserves(vSol, vToken uint64) float64 {
	if vToken == 0 {
		return 0
	}
	return float64(vSol) / float64(vToken)
}

// MaxWithSlippage pads an input upward by slippageBps, truncating:
// amount * (10000 + bps) / 10000.
func MaxWithSlippage(amount, slippageBps uint64) uint64 {
	return mulDiv(amount, 10_000+slippageBps, 10_000)
}

// MinWithSlippage shaves an expected output downward by slippageBps,
// truncating: amount * (10000 - bps) / 10000.
func MinWithSlippage(amount, slippageBps uint64) uint64 {
	if slippageBps >= 10_000 {
		return 0
	}
	return mulDiv(amount, 10_000-slippageBps, 10_000)
}
