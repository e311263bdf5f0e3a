package cache

import (
	"github.com/gagliardetto/solana-go"
	lru "github.com/hashicorp/golang-lru/v2"
)

const ataCacheSize = 1000

// ATACache remembers which associated token accounts are known to exist,
// saving a GetAccountInfo round-trip before every swap. Bounded with
// least-recently-used eviction.
type ATACache struct {
	inner *lru.Cache[solana.PublicKey, bool]
}

// NewATACache creates the cache with a fixed capacity.
func NewATACache(size int) (*ATACache, error) {
	inner, err := lru.New[solana.PublicKey, bool](size)
	if err != nil {
		return nil, err
	}
	return &ATACache{inner: inner}, nil
}

// Known reports whether the account was previously confirmed to exist.
func (c *ATACache) Known(account solana.PublicKey) bool {
	exists, ok := c.inner.Get(account)
	return ok && exists
}

// MarkExists records a confirmed account.
func (c *ATACache) MarkExists(account solana.PublicKey) {
	c.inner.Add(account, true)
}

// Forget drops an account, e.g. after closing it.
func (c *ATACache) Forget(account solana.PublicKey) {
	c.inner.Remove(account)
}

// Len reports the current number of tracked accounts.
func (c *ATACache) Len() int {
	return c.inner.Len()
}
