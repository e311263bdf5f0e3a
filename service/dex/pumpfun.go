package dex

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"solmaker/internal/cache"
	"solmaker/pkg/logger"
	solsvc "solmaker/service/solana"
)

var (
	pumpProgramID      = solana.MustPublicKeyFromBase58("6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P")
	pumpGlobal         = solana.MustPublicKeyFromBase58("4wTV1YmiEkRvAtNtsSGPtUrqRYQMe5SKy2uB4Jjaxnjf")
	pumpFeeRecipient   = solana.MustPublicKeyFromBase58("CebN5WGQ4jvEPvsVU4EoHEpgzq1VV7AbicfhtW4xC9iM")
	pumpEventAuthority = solana.MustPublicKeyFromBase58("Ce6TQqeHC9p8KetsN6JsjHK7UTZk7nasjjnr7XxXp9F1")
)

const (
	pumpBuyMethod  uint64 = 16927863322537952870
	pumpSellMethod uint64 = 12502976635542562355

	bondingCurveSeed = "bonding-curve"
	creatorVaultSeed = "creator-vault"

	// Reserves every bonding curve starts with.
	initialVirtualSolReserves   uint64 = 30_000_000_000
	initialVirtualTokenReserves uint64 = 1_073_000_000_000_000

	bondingCurveAccountSize = 81 // 8 disc + 5*8 reserves/supply + 1 complete + 32 creator
)

// BondingCurveState is the decoded on-chain bonding curve account.
type BondingCurveState struct {
	VirtualTokenReserves uint64
	VirtualSolReserves   uint64
	RealTokenReserves    uint64
	RealSolReserves      uint64
	TokenTotalSupply     uint64
	Complete             bool
	Creator              solana.PublicKey
}

// PumpFun trades against a pump.fun bonding curve.
type PumpFun struct {
	chain      *solsvc.Service
	mint       solana.PublicKey
	creator    solana.PublicKey
	curveCache *cache.TTLCache[solana.PublicKey, BondingCurveState]
	log        zerolog.Logger
}

func NewPumpFun(chain *solsvc.Service, mint, creator solana.PublicKey) *PumpFun {
	return &PumpFun{
		chain:      chain,
		mint:       mint,
		creator:    creator,
		curveCache: cache.NewTTLCache[solana.PublicKey, BondingCurveState](cache.PoolTTL),
		log:        logger.New("pumpfun"),
	}
}

func (p *PumpFun) Kind() Kind { return KindPumpFun }

func (p *PumpFun) ProgramID() solana.PublicKey { return pumpProgramID }

// BondingCurvePDA derives the curve account address for a mint.
func BondingCurvePDA(mint solana.PublicKey) (solana.PublicKey, error) {
	pda, _, err := solana.FindProgramAddress(
		[][]byte{[]byte(bondingCurveSeed), mint.Bytes()},
		pumpProgramID,
	)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive bonding curve for %s: %w", mint, err)
	}
	return pda, nil
}

func creatorVaultPDA(creator solana.PublicKey) (solana.PublicKey, error) {
	pda, _, err := solana.FindProgramAddress(
		[][]byte{[]byte(creatorVaultSeed), creator.Bytes()},
		pumpProgramID,
	)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive creator vault for %s: %w", creator, err)
	}
	return pda, nil
}

// DecodeBondingCurve parses the raw curve account data.
func DecodeBondingCurve(data []byte) (*BondingCurveState, error) {
	if len(data) < bondingCurveAccountSize {
		return nil, fmt.Errorf("bonding curve account: short data (%d bytes)", len(data))
	}
	return &BondingCurveState{
		VirtualTokenReserves: binary.LittleEndian.Uint64(data[8:16]),
		VirtualSolReserves:   binary.LittleEndian.Uint64(data[16:24]),
		RealTokenReserves:    binary.LittleEndian.Uint64(data[24:32]),
		RealSolReserves:      binary.LittleEndian.Uint64(data[32:40]),
		TokenTotalSupply:     binary.LittleEndian.Uint64(data[40:48]),
		Complete:             data[48] != 0,
		Creator:              solana.PublicKeyFromBytes(data[49:81]),
	}, nil
}

// curveState fetches and decodes the bonding curve, validating the owner.
// A freshly launched token whose curve is not yet visible reads as the
// initial reserves.
func (p *PumpFun) curveState(ctx context.Context) (solana.PublicKey, *BondingCurveState, error) {
	curve, err := BondingCurvePDA(p.mint)
	if err != nil {
		return solana.PublicKey{}, nil, err
	}
	if cached, ok := p.curveCache.Get(curve); ok {
		return curve, &cached, nil
	}

	data, owner, err := p.chain.AccountData(ctx, curve)
	if err != nil {
		p.log.Debug().Err(err).Str("curve", curve.String()).Msg("curve account unreadable, assuming initial reserves")
		return curve, &BondingCurveState{
			VirtualTokenReserves: initialVirtualTokenReserves,
			VirtualSolReserves:   initialVirtualSolReserves,
		}, nil
	}
	if !owner.Equals(pumpProgramID) {
		return solana.PublicKey{}, nil, fmt.Errorf("%w: curve %s owned by %s", ErrOwnerMismatch, curve, owner)
	}

	state, err := DecodeBondingCurve(data)
	if err != nil {
		return solana.PublicKey{}, nil, err
	}
	p.curveCache.Insert(curve, *state, cache.PoolTTL)
	return curve, state, nil
}

// ImpliedPrice is the current virtual reserve ratio.
func (p *PumpFun) ImpliedPrice(ctx context.Context) (float64, error) {
	_, state, err := p.curveState(ctx)
	if err != nil {
		return 0, err
	}
	return PriceFromReserves(state.VirtualSolReserves, state.VirtualTokenReserves), nil
}

// Quote predicts the output of a swap against the current virtual reserves.
func (p *PumpFun) Quote(ctx context.Context, inputMint, outputMint solana.PublicKey, amount uint64) (uint64, error) {
	_, state, err := p.curveState(ctx)
	if err != nil {
		return 0, err
	}
	if state.VirtualSolReserves == 0 || state.VirtualTokenReserves == 0 {
		return 0, ErrZeroReserves
	}
	if inputMint.Equals(WSOL) {
		return BuyTokensOut(amount, state.VirtualSolReserves, state.VirtualTokenReserves), nil
	}
	return SellSolOut(amount, state.VirtualSolReserves, state.VirtualTokenReserves), nil
}

// BuildSwap assembles the buy or sell instruction sequence against the curve.
func (p *PumpFun) BuildSwap(ctx context.Context, signer solana.PublicKey, cfg SwapConfig) (*SwapPlan, error) {
	curve, state, err := p.curveState(ctx)
	if err != nil {
		return nil, err
	}
	if state.Complete {
		return nil, ErrCurveComplete
	}
	if state.VirtualSolReserves == 0 || state.VirtualTokenReserves == 0 {
		return nil, ErrZeroReserves
	}

	creator := p.creator
	if !state.Creator.IsZero() {
		creator = state.Creator
	}
	creatorVault, err := creatorVaultPDA(creator)
	if err != nil {
		return nil, err
	}

	curveATA, err := p.chain.ATA(curve, cfg.Mint)
	if err != nil {
		return nil, err
	}

	var instructions []solana.Instruction
	userATA, createIx, err := p.chain.EnsureATA(ctx, signer, signer, cfg.Mint)
	if err != nil {
		return nil, err
	}
	if createIx != nil {
		instructions = append(instructions, createIx)
	}

	var data []byte
	var accounts solana.AccountMetaSlice
	switch cfg.Side {
	case Buy:
		tokensOut := BuyTokensOut(cfg.AmountIn, state.VirtualSolReserves, state.VirtualTokenReserves)
		if tokensOut == 0 {
			return nil, fmt.Errorf("buy of %d lamports quotes zero tokens", cfg.AmountIn)
		}
		maxSolCost := MaxWithSlippage(cfg.AmountIn, cfg.SlippageBps)
		data = encodePumpArgs(pumpBuyMethod, tokensOut, maxSolCost)
		accounts = solana.AccountMetaSlice{
			solana.NewAccountMeta(pumpGlobal, false, false),
			solana.NewAccountMeta(pumpFeeRecipient, true, false),
			solana.NewAccountMeta(cfg.Mint, false, false),
			solana.NewAccountMeta(curve, true, false),
			solana.NewAccountMeta(curveATA, true, false),
			solana.NewAccountMeta(userATA, true, false),
			solana.NewAccountMeta(signer, true, true),
			solana.NewAccountMeta(solana.SystemProgramID, false, false),
			solana.NewAccountMeta(solsvc.TokenProgramID, false, false),
			solana.NewAccountMeta(creatorVault, true, false),
			solana.NewAccountMeta(pumpEventAuthority, false, false),
			solana.NewAccountMeta(pumpProgramID, false, false),
		}
	case Sell:
		solOut := SellSolOut(cfg.AmountIn, state.VirtualSolReserves, state.VirtualTokenReserves)
		minSolOut := MinWithSlippage(solOut, cfg.SlippageBps)
		data = encodePumpArgs(pumpSellMethod, cfg.AmountIn, minSolOut)
		accounts = solana.AccountMetaSlice{
			solana.NewAccountMeta(pumpGlobal, false, false),
			solana.NewAccountMeta(pumpFeeRecipient, true, false),
			solana.NewAccountMeta(cfg.Mint, false, false),
			solana.NewAccountMeta(curve, true, false),
			solana.NewAccountMeta(curveATA, true, false),
			solana.NewAccountMeta(userATA, true, false),
			solana.NewAccountMeta(signer, true, true),
			solana.NewAccountMeta(solana.SystemProgramID, false, false),
			solana.NewAccountMeta(creatorVault, true, false),
			solana.NewAccountMeta(solsvc.TokenProgramID, false, false),
			solana.NewAccountMeta(pumpEventAuthority, false, false),
			solana.NewAccountMeta(pumpProgramID, false, false),
		}
	default:
		return nil, fmt.Errorf("unknown swap side %d", cfg.Side)
	}

	instructions = append(instructions, solana.NewInstruction(pumpProgramID, accounts, data))

	return &SwapPlan{
		Payer:        signer,
		Instructions: instructions,
		Price:        PriceFromReserves(state.VirtualSolReserves, state.VirtualTokenReserves),
	}, nil
}

// encodePumpArgs packs the 8-byte method selector and two u64 arguments.
func encodePumpArgs(method, a, b uint64) []byte {
	data := make([]byte, 24)
	binary.LittleEndian.PutUint64(data[0:8], method)
	binary.LittleEndian.PutUint64(data[8:16], a)
	binary.LittleEndian.PutUint64(data[16:24], b)
	return data
}
