// Package maker runs the trading loop: it composes the modulator outputs
// into trade timing, sizing and direction, rotates wallets, and executes
// swaps through the configured venue.
package maker

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"solmaker/internal/cache"
	"solmaker/internal/datatypes"
	"solmaker/internal/modulator"
	"solmaker/internal/parser"
	"solmaker/internal/wallet"
	"solmaker/pkg/logger"
	"solmaker/service/dex"
	"solmaker/service/jupiter"
	solsvc "solmaker/service/solana"
	"solmaker/service/telegram"
)

const (
	reportInterval = 10 * time.Minute

	// Trend bias is evaluated over rolling windows of feed observations.
	trendWindow          = 20
	trendStrongImbalance = 10
	trendMildImbalance   = 4
)

// Modulators bundles the four behavioral state machines.
type Modulators struct {
	Guardian     *modulator.Guardian
	Wave         *modulator.VolumeWave
	Ratio        *modulator.DynamicRatio
	PriceMonitor *modulator.PriceMonitor
}

// Service is the market-maker orchestrator. Trade cycles are strictly
// sequential; the feed path only updates modulator observations.
type Service struct {
	cfg       *datatypes.Config
	mint      solana.PublicKey
	venue     dex.Venue
	chain     *solsvc.Service
	pool      *wallet.Pool
	positions *cache.Positions
	mods      Modulators
	notifier  *telegram.Service
	prices    *jupiter.Service // nil disables USD reporting

	observations <-chan *parser.Observation

	rng      *rand.Rand
	tradeLog *logger.TradeLogger
	log      zerolog.Logger

	mu                sync.Mutex
	buys              int
	sells             int
	failures          int
	volumeSOL         float64
	feedBuys          int
	feedSells         int
	lastGuardianState bool
	lastProfileFreq   float64
}

func NewService(
	cfg *datatypes.Config,
	mint solana.PublicKey,
	venue dex.Venue,
	chain *solsvc.Service,
	pool *wallet.Pool,
	positions *cache.Positions,
	mods Modulators,
	observations <-chan *parser.Observation,
	notifier *telegram.Service,
	prices *jupiter.Service,
	rng *rand.Rand,
) *Service {
	return &Service{
		cfg:          cfg,
		mint:         mint,
		venue:        venue,
		chain:        chain,
		pool:         pool,
		positions:    positions,
		mods:         mods,
		observations: observations,
		notifier:     notifier,
		prices:       prices,
		rng:          rng,
		tradeLog:     logger.NewTradeLogger(),
		log:          logger.New("maker"),
	}
}

// Start runs the trading loop until ctx is canceled. The feed consumer and
// the periodic activity report run alongside it.
func (s *Service) Start(ctx context.Context) error {
	go s.consumeFeed(ctx)
	go s.reportLoop(ctx)

	s.log.Info().
		Str("venue", string(s.venue.Kind())).
		Str("mint", s.mint.String()).
		Int("wallets", s.pool.Len()).
		Msg("trading loop started")

	for {
		interval := s.drawInterval()
		s.log.Debug().Dur("interval", interval).Msg("waiting for next cycle")
		select {
		case <-ctx.Done():
			s.log.Info().Msg("trading loop stopped")
			return ctx.Err()
		case <-time.After(interval):
		}

		if err := s.runCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// Failures are not retried within the cycle; the next cycle's
			// fresh interval provides natural backoff.
			s.mu.Lock()
			s.failures++
			s.mu.Unlock()
			s.log.Warn().Err(err).Msg("trade cycle failed")
		}
	}
}

// drawInterval draws the next wait from the configured bounds and scales it
// by the composed frequency multipliers, where lower means faster trading.
func (s *Service) drawInterval() time.Duration {
	minI := s.cfg.MinTradeInterval
	maxI := s.cfg.MaxTradeInterval
	base := minI + time.Duration(s.rng.Int63n(int64(maxI-minI)+1))

	freq := s.mods.Guardian.FrequencyMultiplier() * s.mods.Wave.FrequencyMultiplier()
	s.mu.Lock()
	if s.lastProfileFreq > 0 {
		freq *= s.lastProfileFreq
	}
	s.mu.Unlock()
	if s.mods.PriceMonitor.Throttling() {
		freq *= 2
	}
	if freq <= 0 {
		freq = 1
	}

	interval := time.Duration(float64(base) * freq)
	if interval < minI {
		interval = minI
	}
	return interval
}

// runCycle executes one full trade: direction draw, wallet pick, size
// computation, swap build and submission, and bookkeeping.
func (s *Service) runCycle(ctx context.Context) error {
	side := s.drawSide()
	tradeType := wallet.Buy
	if side == dex.Sell {
		tradeType = wallet.Sell
	}

	w, err := s.pool.SelectForTrade(tradeType)
	if err != nil {
		return fmt.Errorf("select wallet: %w", err)
	}
	pub := w.PublicKey()

	// The chosen wallet's pacing shapes the next interval draw.
	s.mu.Lock()
	s.lastProfileFreq = w.Profile.FrequencyMultiplier()
	s.mu.Unlock()

	if side == dex.Sell {
		pos, ok := s.positions.Get(pub, s.mint.String())
		if !ok {
			s.log.Debug().Str("wallet", pub.String()).Msg("no open position, buying instead")
			side = dex.Buy
		} else if time.Since(pos.BuyTime) < s.cfg.SellingDelay {
			s.log.Debug().Str("wallet", pub.String()).Dur("held", time.Since(pos.BuyTime)).Msg("post-buy hold not elapsed, buying instead")
			side = dex.Buy
		}
	}

	switch side {
	case dex.Buy:
		return s.executeBuy(ctx, w)
	default:
		return s.executeSell(ctx, w)
	}
}

// drawSide composes the dynamic ratio with the guardian's buy bias.
func (s *Service) drawSide() dex.Side {
	buyProb := s.mods.Ratio.BuyRatio() + s.mods.Guardian.BuyBias()
	if buyProb > 1 {
		buyProb = 1
	}
	if s.rng.Float64() < buyProb {
		return dex.Buy
	}
	return dex.Sell
}

// tradeAmountSOL computes the buy size from the configured range and the
// composed amount multipliers.
func (s *Service) tradeAmountSOL(w *wallet.Wallet) float64 {
	base := s.cfg.MinBuyAmountSOL + s.rng.Float64()*(s.cfg.MaxBuyAmountSOL-s.cfg.MinBuyAmountSOL)
	amount := base *
		s.mods.Guardian.AmountMultiplier() *
		s.mods.Wave.AmountMultiplier() *
		w.Profile.AmountMultiplier()
	if amount < s.cfg.MinBuyAmountSOL {
		amount = s.cfg.MinBuyAmountSOL
	}
	return amount
}

func (s *Service) executeBuy(ctx context.Context, w *wallet.Wallet) error {
	pub := w.PublicKey()
	amountSOL := s.tradeAmountSOL(w)
	lamports := uint64(amountSOL * float64(solana.LAMPORTS_PER_SOL))

	s.tradeLog.Attempt("buy", string(s.venue.Kind()), pub.String(), amountSOL)

	plan, err := s.venue.BuildSwap(ctx, pub, dex.SwapConfig{
		Mint:        s.mint,
		Side:        dex.Buy,
		AmountIn:    lamports,
		SlippageBps: s.cfg.SlippageBps,
	})
	if err != nil {
		s.tradeLog.Failure("buy", string(s.venue.Kind()), pub.String(), amountSOL, err)
		return fmt.Errorf("build buy: %w", err)
	}

	sig, err := s.chain.SendAndConfirm(ctx, w.Key, plan.Instructions)
	if err != nil {
		s.tradeLog.Failure("buy", string(s.venue.Kind()), pub.String(), amountSOL, err)
		return fmt.Errorf("submit buy: %w", err)
	}

	s.afterTrade(ctx, dex.Buy, w, amountSOL, sig, plan.Price)
	return nil
}

func (s *Service) executeSell(ctx context.Context, w *wallet.Wallet) error {
	pub := w.PublicKey()

	ata, err := s.chain.ATA(pub, s.mint)
	if err != nil {
		return err
	}
	tokenAmount, _, err := s.chain.TokenBalance(ctx, ata)
	if err != nil {
		return fmt.Errorf("read position balance: %w", err)
	}
	if tokenAmount == 0 {
		s.positions.Remove(pub, s.mint.String())
		return fmt.Errorf("wallet %s has no tokens to sell", pub)
	}

	solOut, err := s.venue.Quote(ctx, s.mint, dex.WSOL, tokenAmount)
	if err != nil {
		return fmt.Errorf("quote sell: %w", err)
	}
	amountSOL := float64(solOut) / float64(solana.LAMPORTS_PER_SOL)

	s.tradeLog.Attempt("sell", string(s.venue.Kind()), pub.String(), amountSOL)

	plan, err := s.venue.BuildSwap(ctx, pub, dex.SwapConfig{
		Mint:        s.mint,
		Side:        dex.Sell,
		AmountIn:    tokenAmount,
		SlippageBps: s.cfg.SlippageBps,
	})
	if err != nil {
		s.tradeLog.Failure("sell", string(s.venue.Kind()), pub.String(), amountSOL, err)
		return fmt.Errorf("build sell: %w", err)
	}

	sig, err := s.chain.SendAndConfirm(ctx, w.Key, plan.Instructions)
	if err != nil {
		s.tradeLog.Failure("sell", string(s.venue.Kind()), pub.String(), amountSOL, err)
		return fmt.Errorf("submit sell: %w", err)
	}

	s.chain.InvalidateAccount(ata)
	s.afterTrade(ctx, dex.Sell, w, amountSOL, sig, plan.Price)
	return nil
}

// afterTrade records a confirmed trade into the pool, positions, modulators
// and notification sink.
func (s *Service) afterTrade(ctx context.Context, side dex.Side, w *wallet.Wallet, amountSOL float64, sig solana.Signature, price float64) {
	pub := w.PublicKey()

	switch side {
	case dex.Buy:
		s.pool.RecordBuy(pub)
		ata, _ := s.chain.ATA(pub, s.mint)
		s.positions.Add(cache.Position{
			Mint:         s.mint.String(),
			TokenAccount: ata,
			Wallet:       pub,
			Amount:       amountSOL,
			BuyTime:      time.Now(),
			BuySignature: sig.String(),
			Venue:        string(s.venue.Kind()),
		})
	case dex.Sell:
		s.pool.RecordSell(pub)
		s.positions.Remove(pub, s.mint.String())
	}

	s.mu.Lock()
	if side == dex.Buy {
		s.buys++
	} else {
		s.sells++
	}
	s.volumeSOL += amountSOL
	s.mu.Unlock()

	if price > 0 {
		s.mods.Guardian.AddPricePoint(price, amountSOL)
		s.mods.PriceMonitor.AddPrice(price, amountSOL)
	}

	s.tradeLog.Success(side.String(), string(s.venue.Kind()), pub.String(), amountSOL, sig.String())
	s.notifier.NotifyTrade(ctx, side.String(), string(s.venue.Kind()), pub.String(), amountSOL, sig.String())
	s.maybeNotifyGuardian(ctx)
}

// consumeFeed turns observations of competing trades into modulator input.
func (s *Service) consumeFeed(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case obs, ok := <-s.observations:
			if !ok {
				return
			}
			s.observe(ctx, obs)
		}
	}
}

func (s *Service) observe(ctx context.Context, obs *parser.Observation) {
	price, err := s.venue.ImpliedPrice(ctx)
	if err != nil {
		s.log.Debug().Err(err).Msg("implied price unavailable for observation")
		price = 0
	}
	if price > 0 {
		s.mods.Guardian.AddPricePoint(price, obs.VolumeSOL)
		s.mods.PriceMonitor.AddPrice(price, obs.VolumeSOL)
	}

	s.mu.Lock()
	if obs.IsBuy {
		s.feedBuys++
	} else {
		s.feedSells++
	}
	total := s.feedBuys + s.feedSells
	var bias modulator.TrendBias = modulator.Neutral
	if total >= trendWindow {
		imbalance := s.feedBuys - s.feedSells
		switch {
		case imbalance >= trendStrongImbalance:
			bias = modulator.BullishStrong
		case imbalance >= trendMildImbalance:
			bias = modulator.BullishMild
		case imbalance <= -trendStrongImbalance:
			bias = modulator.BearishStrong
		case imbalance <= -trendMildImbalance:
			bias = modulator.BearishMild
		}
		s.feedBuys, s.feedSells = 0, 0
	}
	s.mu.Unlock()

	if bias != modulator.Neutral {
		s.mods.Ratio.ApplyTrendBias(bias)
	}
	s.maybeNotifyGuardian(ctx)
}

// maybeNotifyGuardian sends a notification on guardian state edges.
func (s *Service) maybeNotifyGuardian(ctx context.Context) {
	active := s.mods.Guardian.Active()

	s.mu.Lock()
	changed := active != s.lastGuardianState
	s.lastGuardianState = active
	s.mu.Unlock()

	if changed {
		s.notifier.NotifyGuardian(ctx, active, s.mods.Guardian.Strength().String())
	}
}

// reportLoop logs a periodic activity summary.
func (s *Service) reportLoop(ctx context.Context) {
	ticker := time.NewTicker(reportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.logReport()
		}
	}
}

func (s *Service) logReport() {
	s.mu.Lock()
	buys, sells, failures, volume := s.buys, s.sells, s.failures, s.volumeSOL
	s.mu.Unlock()

	guardian := s.mods.Guardian.Status()
	wave := s.mods.Wave.Info()
	ratio := s.mods.Ratio.Stats()

	volumeUSD := 0.0
	if s.prices != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if solUSD, err := s.prices.SOLPriceUSD(ctx); err == nil {
			volumeUSD = volume * solUSD
		}
		cancel()
	}

	s.log.Info().
		Int("buys", buys).
		Int("sells", sells).
		Int("failures", failures).
		Float64("volume_sol", volume).
		Float64("volume_usd", volumeUSD).
		Int("open_positions", s.positions.Len()).
		Bool("guardian_active", guardian.Active).
		Str("guardian_strength", guardian.Strength.String()).
		Str("wave_phase", wave.Phase.String()).
		Float64("buy_ratio", ratio.BuyRatio).
		Bool("throttling", s.mods.PriceMonitor.Throttling()).
		Msg("activity report")
}

// Stats is a snapshot of trading activity for external inspection.
type Stats struct {
	Buys          int
	Sells         int
	Failures      int
	VolumeSOL     float64
	OpenPositions int
}

func (s *Service) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Buys:          s.buys,
		Sells:         s.sells,
		Failures:      s.failures,
		VolumeSOL:     s.volumeSOL,
		OpenPositions: s.positions.Len(),
	}
}
