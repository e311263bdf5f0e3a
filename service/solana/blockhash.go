package solana

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"solmaker/pkg/logger"
)

const blockhashRefreshInterval = 20 * time.Second

// BlockhashProvider keeps a recent blockhash warm in the background so
// transaction assembly never blocks on an extra RPC round trip.
type BlockhashProvider struct {
	client *rpc.Client

	mu        sync.RWMutex
	current   solana.Hash
	fetchedAt time.Time
}

func NewBlockhashProvider(client *rpc.Client) *BlockhashProvider {
	return &BlockhashProvider{client: client}
}

// Start refreshes the cached blockhash on a ticker until ctx is canceled.
func (p *BlockhashProvider) Start(ctx context.Context) {
	log := logger.New("blockhash")
	go func() {
		ticker := time.NewTicker(blockhashRefreshInterval)
		defer ticker.Stop()

		if err := p.refresh(ctx); err != nil {
			log.Warn().Err(err).Msg("initial blockhash fetch failed")
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := p.refresh(ctx); err != nil {
					log.Warn().Err(err).Msg("blockhash refresh failed")
				}
			}
		}
	}()
}

// Current returns the cached blockhash, fetching synchronously when the
// cache is empty or older than the refresh interval allows.
func (p *BlockhashProvider) Current(ctx context.Context) (solana.Hash, error) {
	p.mu.RLock()
	hash, at := p.current, p.fetchedAt
	p.mu.RUnlock()

	if !hash.IsZero() && time.Since(at) < 2*blockhashRefreshInterval {
		return hash, nil
	}
	if err := p.refresh(ctx); err != nil {
		return solana.Hash{}, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current, nil
}

func (p *BlockhashProvider) refresh(ctx context.Context) error {
	out, err := p.client.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return fmt.Errorf("get latest blockhash: %w", err)
	}
	p.mu.Lock()
	p.current = out.Value.Blockhash
	p.fetchedAt = time.Now()
	p.mu.Unlock()
	return nil
}
