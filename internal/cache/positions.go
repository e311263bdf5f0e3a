package cache

import (
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
)

// Position records a completed buy that has not been sold yet.
type Position struct {
	Mint         string
	TokenAccount solana.PublicKey
	Wallet       solana.PublicKey
	Amount       float64
	BuyTime      time.Time
	BuySignature string
	Venue        string
}

// Positions tracks open positions per wallet+mint so the sell leg knows what
// it is allowed to unwind.
type Positions struct {
	mu        sync.RWMutex
	positions map[string]Position
}

// NewPositions creates an empty tracker.
func NewPositions() *Positions {
	return &Positions{positions: make(map[string]Position)}
}

func positionKey(wallet solana.PublicKey, mint string) string {
	return wallet.String() + "/" + mint
}

// Add records a new open position, replacing any previous one for the same
// wallet and mint.
func (p *Positions) Add(pos Position) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.positions[positionKey(pos.Wallet, pos.Mint)] = pos
}

// Get returns the open position for a wallet and mint.
func (p *Positions) Get(wallet solana.PublicKey, mint string) (Position, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	pos, ok := p.positions[positionKey(wallet, mint)]
	return pos, ok
}

// Remove closes out a position after the sell confirms.
func (p *Positions) Remove(wallet solana.PublicKey, mint string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.positions, positionKey(wallet, mint))
}

// All returns a snapshot of every open position.
func (p *Positions) All() []Position {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Position, 0, len(p.positions))
	for _, pos := range p.positions {
		out = append(out, pos)
	}
	return out
}

// Len reports the number of open positions.
func (p *Positions) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.positions)
}
