package parser

import (
	"encoding/base64"
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testMint  = solana.NewWallet().PublicKey()
	testCurve = solana.NewWallet().PublicKey()
	testUser  = solana.NewWallet().PublicKey()
)

func makeTradeEventLog(solAmount, tokenAmount uint64, isBuy bool, user solana.PublicKey) string {
	raw := make([]byte, pumpTradeEventSize)
	copy(raw[0:8], pumpTradeEventDiscriminator[:])
	copy(raw[8:40], testMint.Bytes())
	binary.LittleEndian.PutUint64(raw[40:48], solAmount)
	binary.LittleEndian.PutUint64(raw[48:56], tokenAmount)
	if isBuy {
		raw[56] = 1
	}
	copy(raw[57:89], user.Bytes())
	return programDataPrefix + base64.StdEncoding.EncodeToString(raw)
}

func tokenBalance(index uint16, mint solana.PublicKey, owner solana.PublicKey, amount string) rpc.TokenBalance {
	return rpc.TokenBalance{
		AccountIndex: index,
		Mint:         mint,
		Owner:        &owner,
		UiTokenAmount: &rpc.UiTokenAmount{
			Amount:   amount,
			Decimals: 6,
		},
	}
}

func buyTx() *rpc.GetTransactionResult {
	return &rpc.GetTransactionResult{
		Meta: &rpc.TransactionMeta{
			LogMessages: []string{
				"Program 6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P invoke [1]",
				"Program log: Instruction: Buy",
				makeTradeEventLog(2_000_000_000, 50_000_000, true, testUser),
				"Program 6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P success",
			},
			PreTokenBalances: []rpc.TokenBalance{
				tokenBalance(1, testMint, testCurve, "1000000000"),
				tokenBalance(2, testMint, testUser, "0"),
			},
			PostTokenBalances: []rpc.TokenBalance{
				tokenBalance(1, testMint, testCurve, "950000000"),
				tokenBalance(2, testMint, testUser, "50000000"),
			},
		},
	}
}

func TestParseBuy(t *testing.T) {
	p := New(testMint, testCurve)

	obs := p.Parse(buyTx())
	require.NotNil(t, obs)
	assert.True(t, obs.IsBuy)
	assert.Equal(t, testUser, obs.User)
	assert.Equal(t, VenuePumpFun, obs.Venue)
	assert.Equal(t, uint64(2_000_000_000), obs.AmountIn)
	assert.Equal(t, uint64(50_000_000), obs.AmountOut)
	assert.InDelta(t, 2.0, obs.VolumeSOL, 1e-9)
	require.NotNil(t, obs.Event)
}

func TestParseSellFromDeltasOnly(t *testing.T) {
	p := New(testMint, testCurve)

	tx := &rpc.GetTransactionResult{
		Meta: &rpc.TransactionMeta{
			LogMessages: []string{
				"Program CPMMoo8L3F4NbTegBCKVNunggL7H1ZpdTHKxQB5qKP1C invoke [1]",
				"Program log: Instruction: SwapBaseInput",
			},
			PreTokenBalances: []rpc.TokenBalance{
				tokenBalance(1, testMint, parserPoolAuthority(), "1000000"),
				tokenBalance(2, testMint, testUser, "500000"),
			},
			PostTokenBalances: []rpc.TokenBalance{
				tokenBalance(1, testMint, parserPoolAuthority(), "1500000"),
				tokenBalance(2, testMint, testUser, "0"),
			},
			PreBalances:  []uint64{10_000_000_000, 5_000_000_000},
			PostBalances: []uint64{9_999_995_000, 5_300_000_000},
		},
	}

	obs := p.Parse(tx)
	require.NotNil(t, obs)
	assert.False(t, obs.IsBuy)
	assert.Equal(t, testUser, obs.User)
	assert.Equal(t, VenueRaydiumCPMM, obs.Venue)
	assert.InDelta(t, 0.3, obs.VolumeSOL, 1e-9)
	assert.Nil(t, obs.Event)
}

func TestParseDropsOnDirectionDisagreement(t *testing.T) {
	p := New(testMint, testCurve)

	// Event claims buy, but the pool gained tokens (a sell).
	tx := &rpc.GetTransactionResult{
		Meta: &rpc.TransactionMeta{
			LogMessages: []string{
				"Program log: Instruction: Buy",
				makeTradeEventLog(1_000_000_000, 10_000, true, testUser),
			},
			PreTokenBalances: []rpc.TokenBalance{
				tokenBalance(1, testMint, testCurve, "1000000"),
			},
			PostTokenBalances: []rpc.TokenBalance{
				tokenBalance(1, testMint, testCurve, "1010000"),
			},
		},
	}
	assert.Nil(t, p.Parse(tx))
}

func TestParseIgnoresUnrecognizedLogs(t *testing.T) {
	p := New(testMint, testCurve)

	tx := &rpc.GetTransactionResult{
		Meta: &rpc.TransactionMeta{
			LogMessages: []string{
				"Program 11111111111111111111111111111111 invoke [1]",
				"Program log: Instruction: Transfer",
			},
			PreTokenBalances: []rpc.TokenBalance{
				tokenBalance(1, testMint, testCurve, "100"),
			},
			PostTokenBalances: []rpc.TokenBalance{
				tokenBalance(1, testMint, testCurve, "50"),
			},
		},
	}
	assert.Nil(t, p.Parse(tx))
}

func TestParseIgnoresOtherMints(t *testing.T) {
	p := New(testMint, testCurve)
	other := solana.NewWallet().PublicKey()

	tx := &rpc.GetTransactionResult{
		Meta: &rpc.TransactionMeta{
			LogMessages: []string{"Program log: Instruction: Buy"},
			PreTokenBalances: []rpc.TokenBalance{
				tokenBalance(1, other, testCurve, "100"),
			},
			PostTokenBalances: []rpc.TokenBalance{
				tokenBalance(1, other, testCurve, "50"),
			},
		},
	}
	assert.Nil(t, p.Parse(tx))
}

func TestParseLaunchpadBuy(t *testing.T) {
	p := New(testMint, testCurve)

	tx := &rpc.GetTransactionResult{
		Meta: &rpc.TransactionMeta{
			LogMessages: []string{
				"Program LanMV9sAd7wArD4vJFi2qDdfnVhFxYSUg6eADduJ3uj invoke [1]",
				"Program log: Instruction: BuyExactIn",
			},
			PreTokenBalances: []rpc.TokenBalance{
				tokenBalance(1, testMint, launchpadAuthority(), "2000000"),
				tokenBalance(2, testMint, testUser, "0"),
			},
			PostTokenBalances: []rpc.TokenBalance{
				tokenBalance(1, testMint, launchpadAuthority(), "1900000"),
				tokenBalance(2, testMint, testUser, "100000"),
			},
			PreBalances:  []uint64{1_000_000_000, 4_000_000_000},
			PostBalances: []uint64{899_995_000, 4_100_000_000},
		},
	}

	obs := p.Parse(tx)
	require.NotNil(t, obs)
	assert.True(t, obs.IsBuy)
	assert.Equal(t, VenueRaydiumLaunchpad, obs.Venue)
	assert.Equal(t, testUser, obs.User)
}

func TestParseNilMeta(t *testing.T) {
	p := New(testMint)
	assert.Nil(t, p.Parse(nil))
	assert.Nil(t, p.Parse(&rpc.GetTransactionResult{}))
}

func TestDecodeTradeEventRejectsForeignPayload(t *testing.T) {
	assert.Nil(t, decodeTradeEvent("not-base64!"))
	assert.Nil(t, decodeTradeEvent(base64.StdEncoding.EncodeToString([]byte("short"))))

	raw := make([]byte, pumpTradeEventSize)
	raw[0] = 0xFF
	assert.Nil(t, decodeTradeEvent(base64.StdEncoding.EncodeToString(raw)))
}

// parserPoolAuthority returns the fixed CPMM vault authority.
func parserPoolAuthority() solana.PublicKey {
	return solana.MustPublicKeyFromBase58("GpMZbSM2GgvTKHJirzeGfMFoaZ8UR2X7F4v8vHTvxFbL")
}

func launchpadAuthority() solana.PublicKey {
	return solana.MustPublicKeyFromBase58("WLHv2UAZm6z4KyaaELi5pjdbJh6RESMva1Rnn8pJVVh")
}
