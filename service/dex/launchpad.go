package dex

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"solmaker/internal/cache"
	"solmaker/pkg/logger"
	solsvc "solmaker/service/solana"
)

var (
	launchpadProgramID      = solana.MustPublicKeyFromBase58("LanMV9sAd7wArD4vJFi2qDdfnVhFxYSUg6eADduJ3uj")
	launchpadAuthority      = solana.MustPublicKeyFromBase58("WLHv2UAZm6z4KyaaELi5pjdbJh6RESMva1Rnn8pJVVh")
	launchpadGlobalConfig   = solana.MustPublicKeyFromBase58("6s1xP3hpbAfFoNtUNF8mfHsjr2Bd97JxFJRWLbL6aHuX")
	launchpadPlatformConfig = solana.MustPublicKeyFromBase58("FfYek5vEz23cMkWsdJwG2oa6EphsvXSHrGpdALN4g6W1")
	launchpadEventAuthority = solana.MustPublicKeyFromBase58("2DPAtwB8L12vrMRExbLuyGnC7n2J5LNoZQSejeQGpwkr")
)

var (
	buyExactInDiscriminator  = [8]byte{250, 234, 13, 123, 213, 156, 19, 236}
	sellExactInDiscriminator = [8]byte{149, 39, 222, 155, 211, 124, 152, 26}
)

const poolVaultSeed = "pool_vault"

// RaydiumLaunchpad trades against a Raydium launchpad pool. Pool vaults come
// from configuration when supplied, otherwise they are derived from the
// pool state PDA seeds.
type RaydiumLaunchpad struct {
	chain      *solsvc.Service
	mint       solana.PublicKey
	poolState  solana.PublicKey
	baseVault  solana.PublicKey
	quoteVault solana.PublicKey
	log        zerolog.Logger
}

func NewRaydiumLaunchpad(chain *solsvc.Service, mint, poolState, baseVault, quoteVault solana.PublicKey) *RaydiumLaunchpad {
	v := &RaydiumLaunchpad{
		chain:      chain,
		mint:       mint,
		poolState:  poolState,
		baseVault:  baseVault,
		quoteVault: quoteVault,
		log:        logger.New("raydium-launchpad"),
	}
	if v.baseVault.IsZero() {
		v.baseVault, _ = PoolVaultPDA(poolState, mint)
		v.log.Info().Str("vault", v.baseVault.String()).Msg("base vault derived from pool seeds")
	}
	if v.quoteVault.IsZero() {
		v.quoteVault, _ = PoolVaultPDA(poolState, WSOL)
		v.log.Info().Str("vault", v.quoteVault.String()).Msg("quote vault derived from pool seeds")
	}
	return v
}

func (r *RaydiumLaunchpad) Kind() Kind { return KindRaydiumLaunchpad }

func (r *RaydiumLaunchpad) ProgramID() solana.PublicKey { return launchpadProgramID }

// PoolVaultPDA derives a launchpad pool vault for the given pool and mint.
func PoolVaultPDA(poolState, mint solana.PublicKey) (solana.PublicKey, error) {
	pda, _, err := solana.FindProgramAddress(
		[][]byte{[]byte(poolVaultSeed), poolState.Bytes(), mint.Bytes()},
		launchpadProgramID,
	)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive pool vault for %s/%s: %w", poolState, mint, err)
	}
	return pda, nil
}

func (r *RaydiumLaunchpad) reserves(ctx context.Context) (solReserve, tokenReserve uint64, err error) {
	if snap, ok := r.chain.Caches().Pools.Get(r.poolState); ok {
		return snap.QuoteReserve, snap.BaseReserve, nil
	}

	quoteAcc, err := r.chain.TokenAccount(ctx, r.quoteVault, WSOL)
	if err != nil {
		return 0, 0, fmt.Errorf("quote vault: %w", err)
	}
	baseAcc, err := r.chain.TokenAccount(ctx, r.baseVault, r.mint)
	if err != nil {
		return 0, 0, fmt.Errorf("base vault: %w", err)
	}

	r.chain.Caches().Pools.Insert(r.poolState, cache.PoolSnapshot{
		BaseReserve:  baseAcc.Amount,
		QuoteReserve: quoteAcc.Amount,
		FetchedAt:    time.Now(),
	}, cache.PoolTTL)
	return quoteAcc.Amount, baseAcc.Amount, nil
}

// ImpliedPrice is the current vault reserve ratio.
func (r *RaydiumLaunchpad) ImpliedPrice(ctx context.Context) (float64, error) {
	solReserve, tokenReserve, err := r.reserves(ctx)
	if err != nil {
		return 0, err
	}
	return PriceFromReserves(solReserve, tokenReserve), nil
}

func (r *RaydiumLaunchpad) Quote(ctx context.Context, inputMint, outputMint solana.PublicKey, amount uint64) (uint64, error) {
	solReserve, tokenReserve, err := r.reserves(ctx)
	if err != nil {
		return 0, err
	}
	if solReserve == 0 || tokenReserve == 0 {
		return 0, ErrZeroReserves
	}
	if inputMint.Equals(WSOL) {
		return ConstantProductOut(amount, solReserve, tokenReserve, 0), nil
	}
	return ConstantProductOut(amount, tokenReserve, solReserve, 0), nil
}

func (r *RaydiumLaunchpad) BuildSwap(ctx context.Context, signer solana.PublicKey, cfg SwapConfig) (*SwapPlan, error) {
	solReserve, tokenReserve, err := r.reserves(ctx)
	if err != nil {
		return nil, err
	}
	if solReserve == 0 || tokenReserve == 0 {
		return nil, ErrZeroReserves
	}

	var instructions []solana.Instruction
	quoteATA, createQuote, err := r.chain.EnsureATA(ctx, signer, signer, WSOL)
	if err != nil {
		return nil, err
	}
	if createQuote != nil {
		instructions = append(instructions, createQuote)
	}
	baseATA, createBase, err := r.chain.EnsureATA(ctx, signer, signer, cfg.Mint)
	if err != nil {
		return nil, err
	}
	if createBase != nil {
		instructions = append(instructions, createBase)
	}

	var discriminator [8]byte
	var expectedOut uint64
	switch cfg.Side {
	case Buy:
		discriminator = buyExactInDiscriminator
		expectedOut = ConstantProductOut(cfg.AmountIn, solReserve, tokenReserve, 0)
	case Sell:
		discriminator = sellExactInDiscriminator
		expectedOut = ConstantProductOut(cfg.AmountIn, tokenReserve, solReserve, 0)
	default:
		return nil, fmt.Errorf("unknown swap side %d", cfg.Side)
	}
	if expectedOut == 0 {
		return nil, fmt.Errorf("swap of %d quotes zero output", cfg.AmountIn)
	}
	minOut := MinWithSlippage(expectedOut, cfg.SlippageBps)

	// amount_in, minimum_amount_out, share_fee_rate
	data := make([]byte, 32)
	copy(data[0:8], discriminator[:])
	binary.LittleEndian.PutUint64(data[8:16], cfg.AmountIn)
	binary.LittleEndian.PutUint64(data[16:24], minOut)
	binary.LittleEndian.PutUint64(data[24:32], 0)

	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(signer, true, true),
		solana.NewAccountMeta(launchpadAuthority, false, false),
		solana.NewAccountMeta(launchpadGlobalConfig, false, false),
		solana.NewAccountMeta(launchpadPlatformConfig, false, false),
		solana.NewAccountMeta(r.poolState, true, false),
		solana.NewAccountMeta(baseATA, true, false),
		solana.NewAccountMeta(quoteATA, true, false),
		solana.NewAccountMeta(r.baseVault, true, false),
		solana.NewAccountMeta(r.quoteVault, true, false),
		solana.NewAccountMeta(cfg.Mint, false, false),
		solana.NewAccountMeta(WSOL, false, false),
		solana.NewAccountMeta(solsvc.TokenProgramID, false, false),
		solana.NewAccountMeta(solsvc.TokenProgramID, false, false),
		solana.NewAccountMeta(launchpadEventAuthority, false, false),
		solana.NewAccountMeta(launchpadProgramID, false, false),
	}
	instructions = append(instructions, solana.NewInstruction(launchpadProgramID, accounts, data))

	return &SwapPlan{
		Payer:        signer,
		Instructions: instructions,
		Price:        PriceFromReserves(solReserve, tokenReserve),
	}, nil
}
