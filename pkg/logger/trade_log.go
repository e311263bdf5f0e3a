package logger

import (
	"github.com/rs/zerolog"
)

// TradeLogger records every trade attempt outcome: amount, venue, wallet and
// the resulting signature or error.
type TradeLogger struct {
	log zerolog.Logger
}

// NewTradeLogger creates a trade logger on top of the root logger.
func NewTradeLogger() *TradeLogger {
	return &TradeLogger{log: New("trades")}
}

func (tl *TradeLogger) event(status string) *zerolog.Event {
	return tl.log.Info().Str("status", status)
}

// Attempt logs the start of a trade.
func (tl *TradeLogger) Attempt(side, venue, wallet string, amountSOL float64) {
	tl.event("attempt").
		Str("side", side).
		Str("venue", venue).
		Str("wallet", wallet).
		Float64("amount_sol", amountSOL).
		Msg("trade attempt")
}

// Success logs a confirmed trade with its transaction signature.
func (tl *TradeLogger) Success(side, venue, wallet string, amountSOL float64, signature string) {
	tl.event("success").
		Str("side", side).
		Str("venue", venue).
		Str("wallet", wallet).
		Float64("amount_sol", amountSOL).
		Str("signature", signature).
		Msg("trade confirmed")
}

// Failure logs a failed trade with the error that aborted it.
func (tl *TradeLogger) Failure(side, venue, wallet string, amountSOL float64, err error) {
	tl.log.Error().
		Str("status", "failed").
		Str("side", side).
		Str("venue", venue).
		Str("wallet", wallet).
		Float64("amount_sol", amountSOL).
		Err(err).
		Msg("trade failed")
}
