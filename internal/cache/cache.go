// Package cache provides short-lived lookup caches that keep on-chain account
// reads off the trading hot path.
package cache

import (
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
)

// Default TTLs per entity. Account and pool state churn with every trade;
// mint metadata is near-immutable.
const (
	AccountTTL = 60 * time.Second
	MintTTL    = 300 * time.Second
	PoolTTL    = 30 * time.Second
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

func (e entry[V]) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// TTLCache is a time-boxed map. Expired entries are invisible to Get but are
// only removed by ClearExpired, which an external maintenance task invokes
// periodically.
type TTLCache[K comparable, V any] struct {
	mu         sync.RWMutex
	entries    map[K]entry[V]
	defaultTTL time.Duration

	now func() time.Time
}

// NewTTLCache creates an empty cache with the given default TTL.
func NewTTLCache[K comparable, V any](defaultTTL time.Duration) *TTLCache[K, V] {
	return &TTLCache[K, V]{
		entries:    make(map[K]entry[V]),
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

// Get returns the cached value, or false if the key is absent or expired.
// A stale value is never returned, even before the sweep has run.
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || e.expired(c.now()) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Insert stores a value, overwriting unconditionally. A zero ttl uses the
// cache default.
func (c *TTLCache[K, V]) Insert(key K, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[V]{value: value, expiresAt: c.now().Add(ttl)}
}

// Remove drops a key, typically after a trade invalidates the cached state.
func (c *TTLCache[K, V]) Remove(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// ClearExpired sweeps out every expired entry.
func (c *TTLCache[K, V]) ClearExpired() {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, k)
		}
	}
}

// Len reports the number of stored entries, expired ones included.
func (c *TTLCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// TokenAccountState is the decoded slice of an SPL token account we care about.
type TokenAccountState struct {
	Mint   solana.PublicKey
	Owner  solana.PublicKey
	Amount uint64
}

// MintState is the decoded slice of an SPL mint account we care about.
type MintState struct {
	Supply   uint64
	Decimals uint8
}

// PoolSnapshot is a venue reserve snapshot keyed by mint.
type PoolSnapshot struct {
	BaseReserve  uint64
	QuoteReserve uint64
	FetchedAt    time.Time
}

// Caches bundles the per-entity caches. Constructed once at startup and
// passed by reference; no package-level instances.
type Caches struct {
	Accounts *TTLCache[solana.PublicKey, TokenAccountState]
	Mints    *TTLCache[solana.PublicKey, MintState]
	Pools    *TTLCache[solana.PublicKey, PoolSnapshot]
	ATAs     *ATACache
}

// New creates the cache bundle with the default TTLs.
func New() (*Caches, error) {
	atas, err := NewATACache(ataCacheSize)
	if err != nil {
		return nil, err
	}
	return &Caches{
		Accounts: NewTTLCache[solana.PublicKey, TokenAccountState](AccountTTL),
		Mints:    NewTTLCache[solana.PublicKey, MintState](MintTTL),
		Pools:    NewTTLCache[solana.PublicKey, PoolSnapshot](PoolTTL),
		ATAs:     atas,
	}, nil
}

// ClearExpired sweeps every TTL cache in the bundle.
func (c *Caches) ClearExpired() {
	c.Accounts.ClearExpired()
	c.Mints.ClearExpired()
	c.Pools.ClearExpired()
}
