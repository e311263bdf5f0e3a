// Package fund implements wallet provisioning and treasury operations:
// generating wallet key files, wrapping and unwrapping the native asset,
// distributing SOL across the pool, and collecting it back.
package fund

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/rs/zerolog"

	"solmaker/internal/wallet"
	"solmaker/pkg/logger"
	solsvc "solmaker/service/solana"
)

// txFeeReserve is kept behind in each wallet when collecting so the
// transfer transaction itself can pay its fee.
const txFeeReserve uint64 = 10_000

var wsolMint = solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")

// Service performs fund movements on behalf of the pool wallets.
type Service struct {
	chain *solsvc.Service
	log   zerolog.Logger
}

func NewService(chain *solsvc.Service) *Service {
	return &Service{
		chain: chain,
		log:   logger.New("fund"),
	}
}

// GenerateWallets creates count fresh keypairs under dir, one base58 key
// file per wallet. Existing files are never overwritten.
func (s *Service) GenerateWallets(dir string, count int) error {
	if count <= 0 {
		return fmt.Errorf("wallet count must be positive, got %d", count)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create wallet dir %s: %w", dir, err)
	}

	created := 0
	for i := 0; created < count; i++ {
		path := filepath.Join(dir, fmt.Sprintf("wallet_%d.key", i+1))
		if _, err := os.Stat(path); err == nil {
			continue
		}
		w := solana.NewWallet()
		if err := os.WriteFile(path, []byte(w.PrivateKey.String()), 0o600); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		s.log.Info().Str("file", path).Str("pubkey", w.PublicKey().String()).Msg("wallet generated")
		created++
	}
	return nil
}

// Wrap converts amountSOL of native balance into WSOL in the wallet's
// associated token account.
func (s *Service) Wrap(ctx context.Context, signer solana.PrivateKey, amountSOL float64) error {
	if amountSOL <= 0 {
		return fmt.Errorf("wrap amount must be positive, got %f", amountSOL)
	}
	owner := signer.PublicKey()
	lamports := uint64(amountSOL * float64(solana.LAMPORTS_PER_SOL))

	ata, createIx, err := s.chain.EnsureATA(ctx, owner, owner, wsolMint)
	if err != nil {
		return err
	}

	var instructions []solana.Instruction
	if createIx != nil {
		instructions = append(instructions, createIx)
	}
	instructions = append(instructions,
		system.NewTransferInstruction(lamports, owner, ata).Build(),
		token.NewSyncNativeInstruction(ata).Build(),
	)

	sig, err := s.chain.SendAndConfirm(ctx, signer, instructions)
	if err != nil {
		return fmt.Errorf("wrap %f SOL for %s: %w", amountSOL, owner, err)
	}
	s.chain.MarkATACreated(ata)
	s.log.Info().Str("wallet", owner.String()).Float64("amount_sol", amountSOL).Str("signature", sig.String()).Msg("wrapped")
	return nil
}

// Unwrap closes the wallet's WSOL account, returning its whole balance to
// the native balance. A missing account is not an error.
func (s *Service) Unwrap(ctx context.Context, signer solana.PrivateKey) error {
	owner := signer.PublicKey()
	ata, err := s.chain.ATA(owner, wsolMint)
	if err != nil {
		return err
	}
	if _, err := s.chain.TokenAccount(ctx, ata, wsolMint); err != nil {
		s.log.Debug().Str("wallet", owner.String()).Msg("no WSOL account to unwrap")
		return nil
	}

	closeIx := token.NewCloseAccountInstruction(ata, owner, owner, nil).Build()
	sig, err := s.chain.SendAndConfirm(ctx, signer, []solana.Instruction{closeIx})
	if err != nil {
		return fmt.Errorf("unwrap WSOL for %s: %w", owner, err)
	}
	s.chain.InvalidateAccount(ata)
	s.log.Info().Str("wallet", owner.String()).Str("signature", sig.String()).Msg("unwrapped")
	return nil
}

// Distribute sends amountSOL from the funder to every pool wallet.
// Failures on individual wallets are reported together after all transfers
// are attempted.
func (s *Service) Distribute(ctx context.Context, funder solana.PrivateKey, pool *wallet.Pool, amountSOL float64) error {
	if amountSOL <= 0 {
		return fmt.Errorf("distribution amount must be positive, got %f", amountSOL)
	}
	lamports := uint64(amountSOL * float64(solana.LAMPORTS_PER_SOL))

	var failed int
	for _, pub := range pool.Wallets() {
		ix := system.NewTransferInstruction(lamports, funder.PublicKey(), pub).Build()
		sig, err := s.chain.SendAndConfirm(ctx, funder, []solana.Instruction{ix})
		if err != nil {
			failed++
			s.log.Error().Err(err).Str("wallet", pub.String()).Msg("distribution transfer failed")
			continue
		}
		s.log.Info().Str("wallet", pub.String()).Float64("amount_sol", amountSOL).Str("signature", sig.String()).Msg("funded")
	}
	if failed > 0 {
		return fmt.Errorf("distribution incomplete: %d of %d transfers failed", failed, pool.Len())
	}
	return nil
}

// Collect unwraps any WSOL and sweeps each wallet's native balance, minus a
// fee reserve, to the destination. Wallets that fail are skipped so a single
// bad wallet cannot strand the rest.
func (s *Service) Collect(ctx context.Context, pool *wallet.Pool, destination solana.PublicKey) error {
	var failed int
	for _, key := range pool.Keys() {
		if err := s.collectOne(ctx, key, destination); err != nil {
			failed++
			s.log.Error().Err(err).Str("wallet", key.PublicKey().String()).Msg("collect failed")
		}
	}
	if failed > 0 {
		return fmt.Errorf("collection incomplete: %d of %d wallets failed", failed, pool.Len())
	}
	return nil
}

func (s *Service) collectOne(ctx context.Context, signer solana.PrivateKey, destination solana.PublicKey) error {
	if err := s.Unwrap(ctx, signer); err != nil {
		return err
	}

	owner := signer.PublicKey()
	balanceSOL, err := s.chain.SOLBalance(ctx, owner)
	if err != nil {
		return err
	}
	lamports := uint64(balanceSOL * float64(solana.LAMPORTS_PER_SOL))
	if lamports <= txFeeReserve {
		s.log.Debug().Str("wallet", owner.String()).Msg("balance below fee reserve, nothing to collect")
		return nil
	}

	ix := system.NewTransferInstruction(lamports-txFeeReserve, owner, destination).Build()
	sig, err := s.chain.SendAndConfirm(ctx, signer, []solana.Instruction{ix})
	if err != nil {
		return fmt.Errorf("sweep %s: %w", owner, err)
	}
	s.log.Info().Str("wallet", owner.String()).Uint64("lamports", lamports-txFeeReserve).Str("signature", sig.String()).Msg("collected")
	return nil
}

// CloseTokenAccounts closes each wallet's associated accounts for the given
// mints, reclaiming their rent.
func (s *Service) CloseTokenAccounts(ctx context.Context, pool *wallet.Pool, mints ...solana.PublicKey) error {
	var failed int
	for _, key := range pool.Keys() {
		owner := key.PublicKey()
		for _, mint := range mints {
			ata, err := s.chain.ATA(owner, mint)
			if err != nil {
				return err
			}
			if _, err := s.chain.TokenAccount(ctx, ata, mint); err != nil {
				continue
			}
			closeIx := token.NewCloseAccountInstruction(ata, owner, owner, nil).Build()
			sig, err := s.chain.SendAndConfirm(ctx, key, []solana.Instruction{closeIx})
			if err != nil {
				failed++
				s.log.Error().Err(err).Str("wallet", owner.String()).Str("mint", mint.String()).Msg("close failed")
				continue
			}
			s.chain.InvalidateAccount(ata)
			s.log.Info().Str("wallet", owner.String()).Str("mint", mint.String()).Str("signature", sig.String()).Msg("account closed")
		}
	}
	if failed > 0 {
		return fmt.Errorf("close incomplete: %d accounts failed", failed)
	}
	return nil
}
