// Package jupiter resolves reference prices through the Jupiter Aggregator
// quote API.
package jupiter

import (
	"context"
	"fmt"

	"github.com/ilkamo/jupiter-go/jupiter"
	"github.com/rs/zerolog"

	"solmaker/pkg/logger"
)

const (
	wsolMint = "So11111111111111111111111111111111111111112"
	usdcMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"

	// One SOL in lamports, quoted against USDC (6 decimals).
	oneSolLamports  = 1_000_000_000
	usdcPerUnit     = 1_000_000
	quoteSlippageBs = 50
)

// Service quotes SOL against USDC for activity reporting. It never submits
// swaps; the venues own execution.
type Service struct {
	client *jupiter.ClientWithResponses
	log    zerolog.Logger
}

func NewService() (*Service, error) {
	client, err := jupiter.NewClientWithResponses(jupiter.DefaultAPIURL)
	if err != nil {
		return nil, fmt.Errorf("create jupiter client: %w", err)
	}
	return &Service{
		client: client,
		log:    logger.New("jupiter"),
	}, nil
}

// SOLPriceUSD returns the current USD value of one SOL.
func (s *Service) SOLPriceUSD(ctx context.Context) (float64, error) {
	slippage := quoteSlippageBs
	resp, err := s.client.GetQuoteWithResponse(ctx, &jupiter.GetQuoteParams{
		InputMint:   wsolMint,
		OutputMint:  usdcMint,
		Amount:      jupiter.AmountParameter(oneSolLamports),
		SlippageBps: &slippage,
	})
	if err != nil {
		return 0, fmt.Errorf("get SOL/USDC quote: %w", err)
	}
	if resp.JSON200 == nil {
		return 0, fmt.Errorf("get SOL/USDC quote: unexpected response status %s", resp.Status())
	}

	var outAmount uint64
	if _, err := fmt.Sscanf(resp.JSON200.OutAmount, "%d", &outAmount); err != nil {
		return 0, fmt.Errorf("parse quote out amount %q: %w", resp.JSON200.OutAmount, err)
	}

	price := float64(outAmount) / usdcPerUnit
	s.log.Debug().Float64("sol_usd", price).Msg("reference price refreshed")
	return price, nil
}
