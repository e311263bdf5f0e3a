// Package solana wraps the RPC client with cached account reads and a
// sign-send-confirm pipeline shared by every venue.
package solana

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog"

	"solmaker/internal/cache"
	"solmaker/pkg/logger"
)

const (
	splTokenAccountSize = 165
	splMintSize         = 82

	confirmPollInterval = 500 * time.Millisecond
	confirmTimeout      = 45 * time.Second
)

var (
	// TokenProgramID is the SPL token program.
	TokenProgramID = solana.MustPublicKeyFromBase58("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	// ATAProgramID is the associated token account program.
	ATAProgramID = solana.MustPublicKeyFromBase58("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")

	ErrAccountNotFound = errors.New("solana: account not found")
	ErrOwnerMismatch   = errors.New("solana: unexpected account owner")
	ErrMintMismatch    = errors.New("solana: unexpected token account mint")
	ErrNotConfirmed    = errors.New("solana: transaction not confirmed before deadline")
)

// Service is the chain access layer. All account reads are served through the
// TTL caches so repeated quoting inside one trade interval costs one RPC call.
type Service struct {
	client    *rpc.Client
	caches    *cache.Caches
	blockhash *BlockhashProvider
	log       zerolog.Logger
}

// NewService wires the RPC client to the shared caches.
func NewService(client *rpc.Client, caches *cache.Caches) *Service {
	return &Service{
		client:    client,
		caches:    caches,
		blockhash: NewBlockhashProvider(client),
		log:       logger.New("solana"),
	}
}

// Client exposes the underlying RPC client for callers that need raw access.
func (s *Service) Client() *rpc.Client { return s.client }

// Caches exposes the shared cache bundle.
func (s *Service) Caches() *cache.Caches { return s.caches }

// Start launches the background blockhash refresher.
func (s *Service) Start(ctx context.Context) {
	s.blockhash.Start(ctx)
}

// AccountData fetches raw account data and its owner program, bypassing the
// caches.
func (s *Service) AccountData(ctx context.Context, account solana.PublicKey) ([]byte, solana.PublicKey, error) {
	info, err := s.client.GetAccountInfo(ctx, account)
	if err != nil {
		return nil, solana.PublicKey{}, fmt.Errorf("get account info for %s: %w", account, err)
	}
	if info == nil || info.Value == nil {
		return nil, solana.PublicKey{}, fmt.Errorf("%w: %s", ErrAccountNotFound, account)
	}
	data := info.Value.Data.GetBinary()
	return data, info.Value.Owner, nil
}

// TokenAccount returns the decoded SPL token account state, cached. When
// expectMint is nonzero the account's mint must match or the read fails.
func (s *Service) TokenAccount(ctx context.Context, account solana.PublicKey, expectMint solana.PublicKey) (cache.TokenAccountState, error) {
	if state, ok := s.caches.Accounts.Get(account); ok {
		if !expectMint.IsZero() && !state.Mint.Equals(expectMint) {
			return cache.TokenAccountState{}, fmt.Errorf("%w: %s holds %s", ErrMintMismatch, account, state.Mint)
		}
		return state, nil
	}

	data, owner, err := s.AccountData(ctx, account)
	if err != nil {
		return cache.TokenAccountState{}, err
	}
	if !owner.Equals(TokenProgramID) {
		return cache.TokenAccountState{}, fmt.Errorf("%w: %s owned by %s", ErrOwnerMismatch, account, owner)
	}
	if len(data) < splTokenAccountSize {
		return cache.TokenAccountState{}, fmt.Errorf("token account %s: short data (%d bytes)", account, len(data))
	}

	state := cache.TokenAccountState{
		Mint:   solana.PublicKeyFromBytes(data[0:32]),
		Owner:  solana.PublicKeyFromBytes(data[32:64]),
		Amount: binary.LittleEndian.Uint64(data[64:72]),
	}
	if !expectMint.IsZero() && !state.Mint.Equals(expectMint) {
		return cache.TokenAccountState{}, fmt.Errorf("%w: %s holds %s", ErrMintMismatch, account, state.Mint)
	}

	s.caches.Accounts.Insert(account, state, cache.AccountTTL)
	return state, nil
}

// Mint returns the decoded SPL mint state, cached.
func (s *Service) Mint(ctx context.Context, mint solana.PublicKey) (cache.MintState, error) {
	if state, ok := s.caches.Mints.Get(mint); ok {
		return state, nil
	}

	data, owner, err := s.AccountData(ctx, mint)
	if err != nil {
		return cache.MintState{}, err
	}
	if !owner.Equals(TokenProgramID) {
		return cache.MintState{}, fmt.Errorf("%w: mint %s owned by %s", ErrOwnerMismatch, mint, owner)
	}
	if len(data) < splMintSize {
		return cache.MintState{}, fmt.Errorf("mint %s: short data (%d bytes)", mint, len(data))
	}

	state := cache.MintState{
		Supply:   binary.LittleEndian.Uint64(data[36:44]),
		Decimals: data[44],
	}
	s.caches.Mints.Insert(mint, state, cache.MintTTL)
	return state, nil
}

// SOLBalance returns the native balance of a wallet in SOL.
func (s *Service) SOLBalance(ctx context.Context, wallet solana.PublicKey) (float64, error) {
	out, err := s.client.GetBalance(ctx, wallet, rpc.CommitmentConfirmed)
	if err != nil {
		return 0, fmt.Errorf("get balance for %s: %w", wallet, err)
	}
	return float64(out.Value) / float64(solana.LAMPORTS_PER_SOL), nil
}

// TokenBalance returns both the raw base-unit amount and the UI amount held
// by a token account. A missing account reads as zero; any other RPC failure
// propagates so callers never mistake a transient outage for an empty wallet.
func (s *Service) TokenBalance(ctx context.Context, tokenAccount solana.PublicKey) (uint64, float64, error) {
	out, err := s.client.GetTokenAccountBalance(ctx, tokenAccount, rpc.CommitmentConfirmed)
	if err != nil {
		if isAccountNotFound(err) {
			return 0, 0, nil
		}
		return 0, 0, fmt.Errorf("token balance for %s: %w", tokenAccount, err)
	}
	var raw uint64
	if _, err := fmt.Sscanf(out.Value.Amount, "%d", &raw); err != nil {
		return 0, 0, fmt.Errorf("parse token amount %q: %w", out.Value.Amount, err)
	}
	ui := 0.0
	if out.Value.UiAmount != nil {
		ui = *out.Value.UiAmount
	}
	return raw, ui, nil
}

// isAccountNotFound matches the node's responses for a token account that
// does not exist on chain, as opposed to a transport or node failure.
func isAccountNotFound(err error) bool {
	if errors.Is(err, rpc.ErrNotFound) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "could not find account")
}

// ATA derives the associated token address for a wallet and mint.
func (s *Service) ATA(owner, mint solana.PublicKey) (solana.PublicKey, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive ata for %s/%s: %w", owner, mint, err)
	}
	return ata, nil
}

// EnsureATA derives the associated token account and, when its existence is
// not already known, returns an idempotent create instruction to prepend.
// The returned instruction is nil when the account is known to exist.
func (s *Service) EnsureATA(ctx context.Context, payer, owner, mint solana.PublicKey) (solana.PublicKey, solana.Instruction, error) {
	ata, err := s.ATA(owner, mint)
	if err != nil {
		return solana.PublicKey{}, nil, err
	}
	if s.caches.ATAs.Known(ata) {
		return ata, nil, nil
	}

	if _, err := s.TokenAccount(ctx, ata, mint); err == nil {
		s.caches.ATAs.MarkExists(ata)
		return ata, nil, nil
	}

	// CreateIdempotent succeeds whether or not the account already exists,
	// so a racing creation by another wallet is harmless.
	ix := solana.NewInstruction(
		ATAProgramID,
		solana.AccountMetaSlice{
			solana.NewAccountMeta(payer, true, true),
			solana.NewAccountMeta(ata, true, false),
			solana.NewAccountMeta(owner, false, false),
			solana.NewAccountMeta(mint, false, false),
			solana.NewAccountMeta(solana.SystemProgramID, false, false),
			solana.NewAccountMeta(TokenProgramID, false, false),
		},
		[]byte{1},
	)
	return ata, ix, nil
}

// MarkATACreated records a successfully landed associated token account so
// later swaps skip the create instruction.
func (s *Service) MarkATACreated(ata solana.PublicKey) {
	s.caches.ATAs.MarkExists(ata)
}

// InvalidateAccount drops a cached token account after a trade mutates it.
func (s *Service) InvalidateAccount(account solana.PublicKey) {
	s.caches.Accounts.Remove(account)
}

// SendAndConfirm signs the instructions with the given key, submits with
// preflight skipped, and polls signature status until confirmation.
func (s *Service) SendAndConfirm(ctx context.Context, signer solana.PrivateKey, instructions []solana.Instruction) (solana.Signature, error) {
	blockhash, err := s.blockhash.Current(ctx)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("fetch blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(
		instructions,
		blockhash,
		solana.TransactionPayer(signer.PublicKey()),
	)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("build transaction: %w", err)
	}

	_, err = tx.Sign(func(pub solana.PublicKey) *solana.PrivateKey {
		if pub.Equals(signer.PublicKey()) {
			return &signer
		}
		return nil
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("sign transaction: %w", err)
	}

	sig, err := s.client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       true,
		PreflightCommitment: rpc.CommitmentProcessed,
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("send transaction: %w", err)
	}

	s.log.Debug().Str("signature", sig.String()).Msg("transaction submitted")
	if err := s.confirm(ctx, sig); err != nil {
		return sig, err
	}
	return sig, nil
}

func (s *Service) confirm(ctx context.Context, sig solana.Signature) error {
	deadline := time.Now().Add(confirmTimeout)
	ticker := time.NewTicker(confirmPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %s", ErrNotConfirmed, sig)
		}

		statuses, err := s.client.GetSignatureStatuses(ctx, true, sig)
		if err != nil || len(statuses.Value) == 0 || statuses.Value[0] == nil {
			continue
		}
		status := statuses.Value[0]
		if status.Err != nil {
			return fmt.Errorf("transaction %s failed on chain: %v", sig, status.Err)
		}
		switch status.ConfirmationStatus {
		case rpc.ConfirmationStatusConfirmed, rpc.ConfirmationStatusFinalized:
			return nil
		}
	}
}
