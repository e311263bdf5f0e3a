// Package parser turns raw streamed transaction updates into structured
// trade observations for the target token.
package parser

import (
	"encoding/base64"
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog"

	"solmaker/pkg/logger"
)

// Accounts that sit on the pool side of a swap. Token deltas on accounts
// owned by these are pool inventory moves, not user trades.
var poolAuthorities = map[solana.PublicKey]struct{}{
	solana.MustPublicKeyFromBase58("GpMZbSM2GgvTKHJirzeGfMFoaZ8UR2X7F4v8vHTvxFbL"): {},
	solana.MustPublicKeyFromBase58("WLHv2UAZm6z4KyaaELi5pjdbJh6RESMva1Rnn8pJVVh"): {},
	solana.MustPublicKeyFromBase58("6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"): {},
}

// pump.fun trade event emitted via "Program data:" logs.
var pumpTradeEventDiscriminator = [8]byte{189, 219, 127, 211, 78, 230, 97, 238}

const (
	programDataPrefix  = "Program data: "
	pumpTradeEventSize = 8 + 32 + 8 + 8 + 1 + 32
)

// Venue tags carried on observations.
const (
	VenuePumpFun          = "pumpfun"
	VenueRaydiumCPMM      = "raydium-cpmm"
	VenueRaydiumLaunchpad = "raydium-launchpad"
)

// SwapEvent is the decoded on-chain swap event when the venue emits one.
type SwapEvent struct {
	SolAmount   uint64
	TokenAmount uint64
	IsBuy       bool
	User        solana.PublicKey
}

// Observation is one competing trade seen on the feed.
type Observation struct {
	Mint      solana.PublicKey
	IsBuy     bool
	AmountIn  uint64
	AmountOut uint64
	User      solana.PublicKey
	VolumeSOL float64 // absolute base-asset amount moved
	Venue     string
	Event     *SwapEvent
}

// Parser extracts observations about a single target mint.
type Parser struct {
	mint       solana.PublicKey
	poolOwners map[solana.PublicKey]struct{}
	log        zerolog.Logger
}

// New builds a parser for the target mint. poolOwners lists additional
// pool-side account owners beyond the fixed venue authorities, such as the
// mint's bonding curve address.
func New(mint solana.PublicKey, poolOwners ...solana.PublicKey) *Parser {
	owners := make(map[solana.PublicKey]struct{}, len(poolAuthorities)+len(poolOwners))
	for k := range poolAuthorities {
		owners[k] = struct{}{}
	}
	for _, k := range poolOwners {
		if !k.IsZero() {
			owners[k] = struct{}{}
		}
	}
	return &Parser{mint: mint, poolOwners: owners, log: logger.New("parser")}
}

// Parse produces an observation iff the update's logs are recognizable as a
// swap and at least one token balance change touches the target mint. The
// swap-event direction and the balance-delta direction must agree; a
// disagreement discards the update rather than guessing.
func (p *Parser) Parse(tx *rpc.GetTransactionResult) *Observation {
	if tx == nil || tx.Meta == nil {
		return nil
	}
	meta := tx.Meta

	venue, event, logDirection := p.scanLogs(meta.LogMessages)
	if venue == "" {
		return nil
	}

	poolDelta, userKey, found := p.tokenDeltas(meta)
	if !found {
		return nil
	}
	// Pool inventory shrinking means tokens flowed out to a buyer.
	deltaIsBuy := poolDelta < 0

	if logDirection != nil && *logDirection != deltaIsBuy {
		p.log.Debug().
			Bool("log_direction_buy", *logDirection).
			Bool("delta_direction_buy", deltaIsBuy).
			Msg("direction sources disagree, dropping observation")
		return nil
	}
	if event != nil && event.IsBuy != deltaIsBuy {
		p.log.Debug().
			Bool("event_buy", event.IsBuy).
			Bool("delta_direction_buy", deltaIsBuy).
			Msg("swap event and balance deltas disagree, dropping observation")
		return nil
	}

	obs := &Observation{
		Mint:  p.mint,
		IsBuy: deltaIsBuy,
		User:  userKey,
		Venue: venue,
		Event: event,
	}
	if event != nil {
		if !event.User.IsZero() {
			obs.User = event.User
		}
		obs.VolumeSOL = float64(event.SolAmount) / float64(solana.LAMPORTS_PER_SOL)
		if event.IsBuy {
			obs.AmountIn, obs.AmountOut = event.SolAmount, event.TokenAmount
		} else {
			obs.AmountIn, obs.AmountOut = event.TokenAmount, event.SolAmount
		}
	} else {
		obs.VolumeSOL = p.solMoved(meta)
	}
	return obs
}

const instructionLogPrefix = "Program log: Instruction: "

// scanLogs classifies the update by its program logs. The returned direction
// is nil when the instruction name alone cannot determine it.
func (p *Parser) scanLogs(logs []string) (venue string, event *SwapEvent, direction *bool) {
	boolPtr := func(b bool) *bool { return &b }

	for _, line := range logs {
		if strings.HasPrefix(line, programDataPrefix) {
			if ev := decodeTradeEvent(strings.TrimPrefix(line, programDataPrefix)); ev != nil {
				event = ev
			}
			continue
		}
		idx := strings.Index(line, instructionLogPrefix)
		if idx < 0 {
			continue
		}
		// Instruction names distinguish the venues; exact matching keeps
		// Buy from swallowing BuyExactIn.
		switch line[idx+len(instructionLogPrefix):] {
		case "Buy":
			venue = VenuePumpFun
			direction = boolPtr(true)
		case "Sell":
			venue = VenuePumpFun
			direction = boolPtr(false)
		case "SwapBaseInput":
			venue = VenueRaydiumCPMM
		case "BuyExactIn":
			venue = VenueRaydiumLaunchpad
			direction = boolPtr(true)
		case "SellExactIn":
			venue = VenueRaydiumLaunchpad
			direction = boolPtr(false)
		}
	}
	return venue, event, direction
}

// decodeTradeEvent parses a base64 pump.fun trade event payload. Returns nil
// for payloads with a different discriminator.
func decodeTradeEvent(b64 string) *SwapEvent {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil || len(raw) < pumpTradeEventSize {
		return nil
	}
	if [8]byte(raw[0:8]) != pumpTradeEventDiscriminator {
		return nil
	}
	return &SwapEvent{
		SolAmount:   binary.LittleEndian.Uint64(raw[40:48]),
		TokenAmount: binary.LittleEndian.Uint64(raw[48:56]),
		IsBuy:       raw[56] != 0,
		User:        solana.PublicKeyFromBytes(raw[57:89]),
	}
}

type balanceDelta struct {
	pre, post uint64
	owner     *solana.PublicKey
}

// tokenDeltas aggregates the target-mint balance changes, splitting pool
// inventory from user accounts. Returns the net pool-side delta and the
// owner of the largest user-side change. Accounts closed during the
// transaction appear only on the pre side and count as draining to zero.
func (p *Parser) tokenDeltas(meta *rpc.TransactionMeta) (poolDelta int64, user solana.PublicKey, found bool) {
	byIndex := make(map[uint16]*balanceDelta)
	for i, b := range meta.PreTokenBalances {
		if b.Mint.Equals(p.mint) {
			byIndex[b.AccountIndex] = &balanceDelta{
				pre:   parseRawAmount(b.UiTokenAmount),
				owner: meta.PreTokenBalances[i].Owner,
			}
		}
	}
	for i, b := range meta.PostTokenBalances {
		if !b.Mint.Equals(p.mint) {
			continue
		}
		entry := byIndex[b.AccountIndex]
		if entry == nil {
			entry = &balanceDelta{}
			byIndex[b.AccountIndex] = entry
		}
		entry.post = parseRawAmount(b.UiTokenAmount)
		if entry.owner == nil {
			entry.owner = meta.PostTokenBalances[i].Owner
		}
	}

	var largestUserDelta int64
	for _, entry := range byIndex {
		delta := int64(entry.post) - int64(entry.pre)
		if delta == 0 {
			continue
		}
		found = true
		if entry.owner == nil {
			continue
		}
		if _, isPool := p.poolOwners[*entry.owner]; isPool {
			poolDelta += delta
			continue
		}
		if abs64(delta) > abs64(largestUserDelta) {
			largestUserDelta = delta
			user = *entry.owner
		}
	}
	return poolDelta, user, found
}

// solMoved reports the absolute native balance change on the pool side of
// the swap, used when no decoded event carries the amount.
func (p *Parser) solMoved(meta *rpc.TransactionMeta) float64 {
	var largest int64
	for i := range meta.PostBalances {
		if i >= len(meta.PreBalances) {
			break
		}
		// Index 0 is the fee payer; its delta includes the fee as well as
		// the traded amount, which is the closest available proxy.
		if i == 0 {
			continue
		}
		delta := int64(meta.PostBalances[i]) - int64(meta.PreBalances[i])
		if abs64(delta) > abs64(largest) {
			largest = delta
		}
	}
	return float64(abs64(largest)) / float64(solana.LAMPORTS_PER_SOL)
}

func parseRawAmount(ui *rpc.UiTokenAmount) uint64 {
	if ui == nil {
		return 0
	}
	v, err := strconv.ParseUint(ui.Amount, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
