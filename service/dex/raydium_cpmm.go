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
	cpmmProgramID        = solana.MustPublicKeyFromBase58("CPMMoo8L3F4NbTegBCKVNunggL7H1ZpdTHKxQB5qKP1C")
	cpmmVaultAuthority   = solana.MustPublicKeyFromBase58("GpMZbSM2GgvTKHJirzeGfMFoaZ8UR2X7F4v8vHTvxFbL")
	cpmmAMMConfig        = solana.MustPublicKeyFromBase58("D4FPEruKEHrG5TenZ2mpDGEfu1iUvTiqBxvpU8HLBvC2")
	cpmmObservationState = solana.MustPublicKeyFromBase58("52z4oFKcZvJ3qcUxujZUhvC5FsWf5m8CGeqL2E9y8T3B")
)

var swapBaseInputDiscriminator = [8]byte{143, 190, 90, 218, 196, 30, 51, 222}

// cpmmTradeFeeBps is the standard trade fee tier of the configured AMM.
const cpmmTradeFeeBps uint64 = 25

// RaydiumCPMM trades against a Raydium constant-product pool. The pool and
// its two vaults are fixed at construction from configuration.
type RaydiumCPMM struct {
	chain      *solsvc.Service
	mint       solana.PublicKey
	poolState  solana.PublicKey
	solVault   solana.PublicKey
	tokenVault solana.PublicKey
	log        zerolog.Logger
}

func NewRaydiumCPMM(chain *solsvc.Service, mint, poolState, solVault, tokenVault solana.PublicKey) *RaydiumCPMM {
	return &RaydiumCPMM{
		chain:      chain,
		mint:       mint,
		poolState:  poolState,
		solVault:   solVault,
		tokenVault: tokenVault,
		log:        logger.New("raydium-cpmm"),
	}
}

func (r *RaydiumCPMM) Kind() Kind { return KindRaydiumCPMM }

func (r *RaydiumCPMM) ProgramID() solana.PublicKey { return cpmmProgramID }

// reserves reads both vault balances, serving from the pool snapshot cache
// when fresh. Vault mints are validated on the cold path.
func (r *RaydiumCPMM) reserves(ctx context.Context) (solReserve, tokenReserve uint64, err error) {
	if snap, ok := r.chain.Caches().Pools.Get(r.poolState); ok {
		return snap.QuoteReserve, snap.BaseReserve, nil
	}

	solAcc, err := r.chain.TokenAccount(ctx, r.solVault, WSOL)
	if err != nil {
		return 0, 0, fmt.Errorf("sol vault: %w", err)
	}
	tokenAcc, err := r.chain.TokenAccount(ctx, r.tokenVault, r.mint)
	if err != nil {
		return 0, 0, fmt.Errorf("token vault: %w", err)
	}
	r.log.Debug().Uint64("sol_reserve", solAcc.Amount).Uint64("token_reserve", tokenAcc.Amount).Msg("pool reserves refreshed")

	r.chain.Caches().Pools.Insert(r.poolState, cache.PoolSnapshot{
		BaseReserve:  tokenAcc.Amount,
		QuoteReserve: solAcc.Amount,
		FetchedAt:    time.Now(),
	}, cache.PoolTTL)
	return solAcc.Amount, tokenAcc.Amount, nil
}

// ImpliedPrice is the current vault reserve ratio.
func (r *RaydiumCPMM) ImpliedPrice(ctx context.Context) (float64, error) {
	solReserve, tokenReserve, err := r.reserves(ctx)
	if err != nil {
		return 0, err
	}
	return PriceFromReserves(solReserve, tokenReserve), nil
}

func (r *RaydiumCPMM) Quote(ctx context.Context, inputMint, outputMint solana.PublicKey, amount uint64) (uint64, error) {
	solReserve, tokenReserve, err := r.reserves(ctx)
	if err != nil {
		return 0, err
	}
	if solReserve == 0 || tokenReserve == 0 {
		return 0, ErrZeroReserves
	}
	if inputMint.Equals(WSOL) {
		return ConstantProductOut(amount, solReserve, tokenReserve, cpmmTradeFeeBps), nil
	}
	return ConstantProductOut(amount, tokenReserve, solReserve, cpmmTradeFeeBps), nil
}

func (r *RaydiumCPMM) BuildSwap(ctx context.Context, signer solana.PublicKey, cfg SwapConfig) (*SwapPlan, error) {
	solReserve, tokenReserve, err := r.reserves(ctx)
	if err != nil {
		return nil, err
	}
	if solReserve == 0 || tokenReserve == 0 {
		return nil, ErrZeroReserves
	}

	var instructions []solana.Instruction
	wsolATA, createWSOL, err := r.chain.EnsureATA(ctx, signer, signer, WSOL)
	if err != nil {
		return nil, err
	}
	if createWSOL != nil {
		instructions = append(instructions, createWSOL)
	}
	tokenATA, createToken, err := r.chain.EnsureATA(ctx, signer, signer, cfg.Mint)
	if err != nil {
		return nil, err
	}
	if createToken != nil {
		instructions = append(instructions, createToken)
	}

	var (
		inputAccount, outputAccount solana.PublicKey
		inputVault, outputVault     solana.PublicKey
		inputMint, outputMint       solana.PublicKey
		expectedOut                 uint64
	)
	switch cfg.Side {
	case Buy:
		inputAccount, outputAccount = wsolATA, tokenATA
		inputVault, outputVault = r.solVault, r.tokenVault
		inputMint, outputMint = WSOL, cfg.Mint
		expectedOut = ConstantProductOut(cfg.AmountIn, solReserve, tokenReserve, cpmmTradeFeeBps)
	case Sell:
		inputAccount, outputAccount = tokenATA, wsolATA
		inputVault, outputVault = r.tokenVault, r.solVault
		inputMint, outputMint = cfg.Mint, WSOL
		expectedOut = ConstantProductOut(cfg.AmountIn, tokenReserve, solReserve, cpmmTradeFeeBps)
	default:
		return nil, fmt.Errorf("unknown swap side %d", cfg.Side)
	}
	if expectedOut == 0 {
		return nil, fmt.Errorf("swap of %d quotes zero output", cfg.AmountIn)
	}
	minOut := MinWithSlippage(expectedOut, cfg.SlippageBps)

	data := make([]byte, 24)
	copy(data[0:8], swapBaseInputDiscriminator[:])
	binary.LittleEndian.PutUint64(data[8:16], cfg.AmountIn)
	binary.LittleEndian.PutUint64(data[16:24], minOut)

	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(signer, true, true),
		solana.NewAccountMeta(cpmmVaultAuthority, false, false),
		solana.NewAccountMeta(cpmmAMMConfig, false, false),
		solana.NewAccountMeta(r.poolState, true, false),
		solana.NewAccountMeta(inputAccount, true, false),
		solana.NewAccountMeta(outputAccount, true, false),
		solana.NewAccountMeta(inputVault, true, false),
		solana.NewAccountMeta(outputVault, true, false),
		solana.NewAccountMeta(solsvc.TokenProgramID, false, false),
		solana.NewAccountMeta(solsvc.TokenProgramID, false, false),
		solana.NewAccountMeta(inputMint, false, false),
		solana.NewAccountMeta(outputMint, false, false),
		solana.NewAccountMeta(cpmmObservationState, true, false),
	}
	instructions = append(instructions, solana.NewInstruction(cpmmProgramID, accounts, data))

	return &SwapPlan{
		Payer:        signer,
		Instructions: instructions,
		Price:        PriceFromReserves(solReserve, tokenReserve),
	}, nil
}
