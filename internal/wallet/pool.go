package wallet

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"solmaker/pkg/logger"
)

// TradeType distinguishes the two trade directions.
type TradeType int

const (
	Buy TradeType = iota
	Sell
)

func (t TradeType) String() string {
	if t == Sell {
		return "sell"
	}
	return "buy"
}

// Wallet is one signing identity with its behavioral profile and usage stats.
type Wallet struct {
	Key     solana.PrivateKey
	Profile Profile

	UsageCount   int
	TotalBuys    int
	TotalSells   int
	LastBuyTime  time.Time
	LastSellTime time.Time
	CreatedAt    time.Time
}

// PublicKey returns the wallet's signing identity.
func (w *Wallet) PublicKey() solana.PublicKey {
	return w.Key.PublicKey()
}

// Pool is the rotating set of wallets. All mutation goes through its lock;
// record methods update counters and timestamps atomically.
type Pool struct {
	mu      sync.Mutex
	wallets []*Wallet
	index   map[solana.PublicKey]*Wallet

	lastSelected    solana.PublicKey
	consecutiveUses int
	tradeCounter    int

	rotationFrequency  int
	maxConsecutiveSame int

	rng *rand.Rand
	now func() time.Time
	log zerolog.Logger
}

// NewPool creates a pool with the given rotation settings. The random source
// is injected so selection is reproducible in tests.
func NewPool(rotationFrequency, maxConsecutiveSame int, rng *rand.Rand) *Pool {
	if rotationFrequency < 1 {
		rotationFrequency = 1
	}
	if maxConsecutiveSame < 1 {
		maxConsecutiveSame = 1
	}
	return &Pool{
		index:              make(map[solana.PublicKey]*Wallet),
		rotationFrequency:  rotationFrequency,
		maxConsecutiveSame: maxConsecutiveSame,
		rng:                rng,
		now:                time.Now,
		log:                logger.New("wallet-pool"),
	}
}

// Add inserts a wallet with a freshly drawn profile. Duplicate pubkeys are
// rejected to keep the pool invariant.
func (p *Pool) Add(key solana.PrivateKey) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	pub := key.PublicKey()
	if _, exists := p.index[pub]; exists {
		return fmt.Errorf("wallet %s already in pool", pub)
	}
	w := &Wallet{
		Key:       key,
		Profile:   RandomProfile(p.rng),
		CreatedAt: p.now(),
	}
	p.wallets = append(p.wallets, w)
	p.index[pub] = w
	p.log.Debug().Str("wallet", pub.String()).Str("profile", w.Profile.String()).Msg("wallet added")
	return nil
}

// Len reports the number of wallets in the pool.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.wallets)
}

// SelectForTrade picks a wallet for the given trade direction, honoring
// profile sell probability, hold-time windows and rotation limits.
func (p *Pool) SelectForTrade(tradeType TradeType) (*Wallet, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.wallets) == 0 {
		return nil, fmt.Errorf("wallet pool is empty")
	}

	candidates := make([]*Wallet, 0, len(p.wallets))
	for _, w := range p.wallets {
		if tradeType == Sell && !p.sellEligible(w) {
			continue
		}
		candidates = append(candidates, w)
	}
	if len(candidates) == 0 {
		// Nothing passed the sell filters; fall back to the whole pool so a
		// trade cycle never stalls on wallet selection.
		candidates = append(candidates, p.wallets...)
	}

	// Exclude the wallet that already ran too many consecutive trades,
	// as long as an alternative exists.
	if p.consecutiveUses >= p.maxConsecutiveSame && len(candidates) > 1 {
		filtered := candidates[:0]
		for _, w := range candidates {
			if w.PublicKey() != p.lastSelected {
				filtered = append(filtered, w)
			}
		}
		candidates = filtered
	}

	chosen := p.pickLeastUsed(candidates)

	if chosen.PublicKey() == p.lastSelected {
		p.consecutiveUses++
	} else {
		p.lastSelected = chosen.PublicKey()
		p.consecutiveUses = 1
	}
	p.tradeCounter++
	return chosen, nil
}

// sellEligible applies the profile's hold-time window and sell probability.
func (p *Pool) sellEligible(w *Wallet) bool {
	if w.LastBuyTime.IsZero() {
		return false // nothing bought, nothing to sell
	}
	held := p.now().Sub(w.LastBuyTime)
	if held < w.Profile.MinHold() {
		return false
	}
	if held >= w.Profile.MaxHold() {
		return true // overdue, force consideration
	}
	return p.rng.Float64() < w.Profile.SellProbability()
}

// pickLeastUsed prefers wallets with the lowest usage count; ties are broken
// randomly so selection does not become a fixed ordering.
func (p *Pool) pickLeastUsed(candidates []*Wallet) *Wallet {
	sorted := make([]*Wallet, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].UsageCount < sorted[j].UsageCount
	})

	least := sorted[0].UsageCount
	tied := 0
	for _, w := range sorted {
		if w.UsageCount != least {
			break
		}
		tied++
	}

	// Rotation gate: every rotationFrequency trades, jump anywhere in the
	// least-used tier instead of sticking with the front.
	if p.tradeCounter%p.rotationFrequency == 0 || tied > 1 {
		return sorted[p.rng.Intn(tied)]
	}
	return sorted[0]
}

// RecordBuy updates a wallet's counters after a confirmed buy.
func (p *Pool) RecordBuy(pub solana.PublicKey) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if w, ok := p.index[pub]; ok {
		w.UsageCount++
		w.TotalBuys++
		w.LastBuyTime = p.now()
	}
}

// RecordSell updates a wallet's counters after a confirmed sell.
func (p *Pool) RecordSell(pub solana.PublicKey) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if w, ok := p.index[pub]; ok {
		w.UsageCount++
		w.TotalSells++
		w.LastSellTime = p.now()
	}
}

// UsageStats returns usage counts per wallet pubkey.
func (p *Pool) UsageStats() map[string]int {
	p.mu.Lock()
	defer p.mu.Unlock()
	stats := make(map[string]int, len(p.wallets))
	for _, w := range p.wallets {
		stats[w.PublicKey().String()] = w.UsageCount
	}
	return stats
}

// ProfileStats returns the wallet count per profile.
func (p *Pool) ProfileStats() map[Profile]int {
	p.mu.Lock()
	defer p.mu.Unlock()
	stats := make(map[Profile]int)
	for _, w := range p.wallets {
		stats[w.Profile]++
	}
	return stats
}

// Wallets returns a snapshot of the pool's public keys.
func (p *Pool) Wallets() []solana.PublicKey {
	p.mu.Lock()
	defer p.mu.Unlock()
	keys := make([]solana.PublicKey, len(p.wallets))
	for i, w := range p.wallets {
		keys[i] = w.PublicKey()
	}
	return keys
}

// Keys returns a snapshot of the pool's private keys, for fund operations.
func (p *Pool) Keys() []solana.PrivateKey {
	p.mu.Lock()
	defer p.mu.Unlock()
	keys := make([]solana.PrivateKey, len(p.wallets))
	for i, w := range p.wallets {
		keys[i] = w.Key
	}
	return keys
}
