package cache

import (
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTTLCacheGetInsert(t *testing.T) {
	c := NewTTLCache[string, int](time.Minute)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Insert("a", 1, 0)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	// Unconditional overwrite.
	c.Insert("a", 2, 0)
	v, _ = c.Get("a")
	assert.Equal(t, 2, v)
}

func TestTTLCacheExpiryWithoutSweep(t *testing.T) {
	now := time.Now()
	c := NewTTLCache[string, int](time.Minute)
	c.now = func() time.Time { return now }

	c.Insert("a", 1, 30*time.Second)

	// Advance past the TTL. Get must report absent even though ClearExpired
	// never ran, and the entry is still physically present.
	now = now.Add(31 * time.Second)
	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len())
}

func TestTTLCacheSweep(t *testing.T) {
	now := time.Now()
	c := NewTTLCache[string, int](time.Minute)
	c.now = func() time.Time { return now }

	c.Insert("short", 1, 10*time.Second)
	c.Insert("long", 2, 10*time.Minute)

	now = now.Add(time.Minute)
	c.ClearExpired()

	assert.Equal(t, 1, c.Len())
	_, ok := c.Get("long")
	assert.True(t, ok)
}

func TestTTLCacheRemove(t *testing.T) {
	c := NewTTLCache[string, int](time.Minute)
	c.Insert("a", 1, 0)
	c.Remove("a")
	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestATACacheEviction(t *testing.T) {
	c, err := NewATACache(2)
	require.NoError(t, err)

	a := solana.NewWallet().PublicKey()
	b := solana.NewWallet().PublicKey()
	d := solana.NewWallet().PublicKey()

	c.MarkExists(a)
	c.MarkExists(b)
	assert.True(t, c.Known(a))

	// Touch a so b becomes the eviction candidate.
	c.Known(a)
	c.MarkExists(d)

	assert.True(t, c.Known(a))
	assert.False(t, c.Known(b))
	assert.True(t, c.Known(d))
}

func TestPositions(t *testing.T) {
	p := NewPositions()
	w := solana.NewWallet().PublicKey()

	pos := Position{Mint: "mint", Wallet: w, Amount: 1.5, BuyTime: time.Now()}
	p.Add(pos)

	got, ok := p.Get(w, "mint")
	require.True(t, ok)
	assert.Equal(t, 1.5, got.Amount)
	assert.Equal(t, 1, p.Len())

	p.Remove(w, "mint")
	_, ok = p.Get(w, "mint")
	assert.False(t, ok)
}
