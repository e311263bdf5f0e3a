// Main entry point for the market maker
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"solmaker/internal/cache"
	"solmaker/internal/datatypes"
	"solmaker/internal/modulator"
	"solmaker/internal/parser"
	"solmaker/internal/wallet"
	"solmaker/pkg/logger"
	"solmaker/service/dex"
	"solmaker/service/fund"
	"solmaker/service/jupiter"
	"solmaker/service/maker"
	"solmaker/service/monitor"
	"solmaker/service/telegram"

	solanaService "solmaker/service/solana"
)

const cacheSweepInterval = 60 * time.Second

func main() {
	genWallets := flag.Bool("wallet", false, "generate pool wallets and exit")
	wrap := flag.Bool("wrap", false, "wrap SOL to WSOL for every pool wallet and exit")
	unwrap := flag.Bool("unwrap", false, "unwrap WSOL back to SOL for every pool wallet and exit")
	distribute := flag.Bool("distribute", false, "distribute SOL from the main wallet to the pool and exit")
	collect := flag.Bool("collect", false, "collect all funds back to the main wallet and exit")
	closeAccounts := flag.Bool("close", false, "close pool token accounts and exit")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: no .env file loaded: %v\n", err)
	}

	cfg, err := datatypes.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.LogFile, cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	log := logger.New("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Each stochastic component gets its own rand.Rand so the maker's trade
	// loop and the report loop never contend on one source's internal state.
	seed := time.Now().UnixNano()
	newRNG := func() *rand.Rand {
		seed++
		return rand.New(rand.NewSource(seed))
	}
	caches, err := cache.New()
	if err != nil {
		log.Fatal().Err(err).Msg("cache init failed")
	}

	client := rpc.New(cfg.RPCEndpoint)
	chain := solanaService.NewService(client, caches)
	fundSvc := fund.NewService(chain)

	if *genWallets {
		if err := fundSvc.GenerateWallets(cfg.WalletsDir, cfg.WalletCount); err != nil {
			log.Fatal().Err(err).Msg("wallet generation failed")
		}
		log.Info().Int("count", cfg.WalletCount).Str("dir", cfg.WalletsDir).Msg("wallets generated")
		return
	}

	pool := wallet.NewPool(cfg.RotationFrequency, cfg.MaxConsecutiveSame, newRNG())
	if err := wallet.LoadDir(pool, cfg.WalletsDir); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.WalletsDir).Msg("wallet load failed")
	}
	log.Info().Int("wallets", pool.Len()).Msg("wallet pool loaded")

	mint := solana.MustPublicKeyFromBase58(cfg.TargetTokenMint)

	switch {
	case *wrap:
		runFundOp(log, "wrap", func() error {
			for _, key := range pool.Keys() {
				if err := fundSvc.Wrap(ctx, key, cfg.WrapAmountSOL); err != nil {
					return err
				}
			}
			return nil
		})
		return
	case *unwrap:
		runFundOp(log, "unwrap", func() error {
			for _, key := range pool.Keys() {
				if err := fundSvc.Unwrap(ctx, key); err != nil {
					return err
				}
			}
			return nil
		})
		return
	case *distribute:
		funder := mustMainWallet(cfg)
		runFundOp(log, "distribute", func() error {
			return fundSvc.Distribute(ctx, funder, pool, cfg.DistributeAmount)
		})
		return
	case *collect:
		funder := mustMainWallet(cfg)
		runFundOp(log, "collect", func() error {
			return fundSvc.Collect(ctx, pool, funder.PublicKey())
		})
		return
	case *closeAccounts:
		runFundOp(log, "close", func() error {
			return fundSvc.CloseTokenAccounts(ctx, pool, mint, dex.WSOL)
		})
		return
	}

	// Default mode: the trading loop.
	creator := solana.PublicKey{}
	if cfg.CoinCreator != "" {
		creator = solana.MustPublicKeyFromBase58(cfg.CoinCreator)
	}
	poolID, poolBase, poolQuote := optionalKey(cfg.PoolID), optionalKey(cfg.PoolBaseAccount), optionalKey(cfg.PoolQuoteAccount)

	venue, err := dex.New(dex.Kind(cfg.DexType), chain, mint, creator, poolID, poolBase, poolQuote)
	if err != nil {
		log.Fatal().Err(err).Msg("venue init failed")
	}

	mods := maker.Modulators{
		Guardian:     modulator.NewGuardian(cfg.GuardianEnabled, cfg.GuardianDropThreshold),
		Wave:         modulator.NewVolumeWave(cfg.WaveActiveHours, cfg.WaveSlowHours, newRNG()),
		PriceMonitor: modulator.NewPriceMonitor(cfg.PriceChangeThreshold, 5*time.Minute, cfg.ThrottleDuration),
	}
	if cfg.WeeklyRatioChanges {
		mods.Ratio = modulator.NewWeeklyRatio(cfg.MinBuyRatio, cfg.MaxBuyRatio, newRNG())
	} else {
		interval := time.Duration(cfg.RatioChangeHours * float64(time.Hour))
		mods.Ratio = modulator.NewDynamicRatio(cfg.MinBuyRatio, cfg.MaxBuyRatio, interval, newRNG())
	}

	// The bonding curve address counts as pool-side when classifying feed
	// balance changes.
	var poolOwners []solana.PublicKey
	if curve, err := dex.BondingCurvePDA(mint); err == nil {
		poolOwners = append(poolOwners, curve)
	}
	feedParser := parser.New(mint, poolOwners...)
	feed := monitor.NewService(cfg.StreamEndpoint, cfg.StreamToken, client, venue.ProgramID(), feedParser)

	notifier := telegram.NewService(cfg.TelegramBotToken, cfg.TelegramChatID)
	positions := cache.NewPositions()

	prices, err := jupiter.NewService()
	if err != nil {
		log.Warn().Err(err).Msg("jupiter price service unavailable, USD reporting disabled")
		prices = nil
	}

	chain.Start(ctx)
	feed.Start(ctx)
	go sweepCaches(ctx, caches)

	makerSvc := maker.NewService(cfg, mint, venue, chain, pool, positions, mods, feed.Observations(), notifier, prices, newRNG())
	if err := makerSvc.Start(ctx); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("trading loop failed")
	}
	log.Info().Msg("shutdown complete")
}

func runFundOp(log zerolog.Logger, name string, op func() error) {
	if err := op(); err != nil {
		log.Fatal().Err(err).Msg(name + " failed")
	}
	log.Info().Msg(name + " complete")
}

func mustMainWallet(cfg *datatypes.Config) solana.PrivateKey {
	if cfg.MainWalletKey == "" {
		fmt.Fprintln(os.Stderr, "MAIN_WALLET_PRIVATE_KEY is required for this operation")
		os.Exit(1)
	}
	return solana.MustPrivateKeyFromBase58(cfg.MainWalletKey)
}

func optionalKey(s string) solana.PublicKey {
	if s == "" {
		return solana.PublicKey{}
	}
	return solana.MustPublicKeyFromBase58(s)
}

func sweepCaches(ctx context.Context, caches *cache.Caches) {
	ticker := time.NewTicker(cacheSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			caches.ClearExpired()
		}
	}
}
