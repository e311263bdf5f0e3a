package wallet

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPool(t *testing.T, wallets, maxConsecutive int) *Pool {
	t.Helper()
	pool := NewPool(3, maxConsecutive, rand.New(rand.NewSource(42)))
	for i := 0; i < wallets; i++ {
		require.NoError(t, pool.Add(solana.NewWallet().PrivateKey))
	}
	return pool
}

func TestPoolRejectsDuplicates(t *testing.T) {
	pool := NewPool(3, 2, rand.New(rand.NewSource(1)))
	key := solana.NewWallet().PrivateKey
	require.NoError(t, pool.Add(key))
	assert.Error(t, pool.Add(key))
	assert.Equal(t, 1, pool.Len())
}

func TestSelectForTradeEmptyPool(t *testing.T) {
	pool := NewPool(3, 2, rand.New(rand.NewSource(1)))
	_, err := pool.SelectForTrade(Buy)
	assert.Error(t, err)
}

func TestMaxConsecutiveSameWallet(t *testing.T) {
	pool := newTestPool(t, 5, 2)

	// Drive selection until some wallet is chosen twice in a row, then the
	// next pick must exclude it.
	var prev solana.PublicKey
	streak := 0
	for i := 0; i < 100; i++ {
		w, err := pool.SelectForTrade(Buy)
		require.NoError(t, err)
		pool.RecordBuy(w.PublicKey())

		if w.PublicKey() == prev {
			streak++
		} else {
			prev = w.PublicKey()
			streak = 1
		}
		require.LessOrEqual(t, streak, 2, "wallet %s selected more than twice in a row", prev)
	}
}

func TestSelectPrefersLeastUsed(t *testing.T) {
	pool := newTestPool(t, 3, 5)

	// Burn usage on two wallets directly.
	keys := pool.Wallets()
	for i := 0; i < 4; i++ {
		pool.RecordBuy(keys[0])
		pool.RecordBuy(keys[1])
	}

	w, err := pool.SelectForTrade(Buy)
	require.NoError(t, err)
	assert.Equal(t, keys[2], w.PublicKey())
}

func TestSellHonorsHoldWindow(t *testing.T) {
	pool := newTestPool(t, 1, 5)
	now := time.Now()
	pool.now = func() time.Time { return now }

	keys := pool.Wallets()
	pool.RecordBuy(keys[0])

	w := pool.index[keys[0]]

	// Inside the minimum hold the wallet is not sell-eligible.
	now = now.Add(w.Profile.MinHold() - time.Minute)
	assert.False(t, pool.sellEligible(w))

	// Past the maximum hold it always is.
	now = w.LastBuyTime.Add(w.Profile.MaxHold() + time.Minute)
	assert.True(t, pool.sellEligible(w))
}

func TestSellRequiresPriorBuy(t *testing.T) {
	pool := newTestPool(t, 1, 5)
	w := pool.index[pool.Wallets()[0]]
	assert.False(t, pool.sellEligible(w))
}

func TestRecordUpdatesCounters(t *testing.T) {
	pool := newTestPool(t, 1, 5)
	pub := pool.Wallets()[0]

	pool.RecordBuy(pub)
	pool.RecordSell(pub)

	w := pool.index[pub]
	assert.Equal(t, 1, w.TotalBuys)
	assert.Equal(t, 1, w.TotalSells)
	assert.Equal(t, 2, w.UsageCount)
	assert.False(t, w.LastBuyTime.IsZero())
	assert.False(t, w.LastSellTime.IsZero())
}

func TestProfileDistribution(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	counts := make(map[Profile]int)
	for i := 0; i < 10000; i++ {
		counts[RandomProfile(rng)]++
	}
	// Balanced traders are the most common bucket at 35%.
	assert.Greater(t, counts[BalancedTrader], counts[FrequentSeller])
	assert.Greater(t, counts[BalancedTrader], counts[LongTermHolder])
	assert.InDelta(t, 3500, counts[BalancedTrader], 400)
}

func TestLoadKeyFile(t *testing.T) {
	dir := t.TempDir()

	key := solana.NewWallet().PrivateKey
	good := filepath.Join(dir, "w1.key")
	require.NoError(t, os.WriteFile(good, []byte(key.String()+"\n"), 0o600))

	loaded, err := LoadKeyFile(good)
	require.NoError(t, err)
	assert.Equal(t, key.PublicKey(), loaded.PublicKey())

	short := filepath.Join(dir, "w2.key")
	require.NoError(t, os.WriteFile(short, []byte("tooshort"), 0o600))
	_, err = LoadKeyFile(short)
	assert.Error(t, err)
}

func TestLoadDirHardFailsOnMalformed(t *testing.T) {
	dir := t.TempDir()
	key := solana.NewWallet().PrivateKey
	require.NoError(t, os.WriteFile(filepath.Join(dir, "w1.key"), []byte(key.String()), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "w2.key"), []byte("garbage"), 0o600))

	pool := NewPool(3, 2, rand.New(rand.NewSource(1)))
	assert.Error(t, LoadDir(pool, dir))
}
