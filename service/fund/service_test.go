package fund

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateWalletsCreatesKeyFiles(t *testing.T) {
	dir := t.TempDir()
	s := NewService(nil)

	require.NoError(t, s.GenerateWallets(dir, 3))

	for i := 1; i <= 3; i++ {
		path := filepath.Join(dir, fmt.Sprintf("wallet_%d.key", i))
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		key, err := solana.PrivateKeyFromBase58(string(raw))
		require.NoError(t, err)
		assert.True(t, key.IsValid())
	}
}

func TestGenerateWalletsNeverOverwrites(t *testing.T) {
	dir := t.TempDir()
	s := NewService(nil)

	require.NoError(t, s.GenerateWallets(dir, 1))
	first, err := os.ReadFile(filepath.Join(dir, "wallet_1.key"))
	require.NoError(t, err)

	// A second run skips the existing file and fills in new ones.
	require.NoError(t, s.GenerateWallets(dir, 2))
	again, err := os.ReadFile(filepath.Join(dir, "wallet_1.key"))
	require.NoError(t, err)
	assert.Equal(t, first, again)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestGenerateWalletsRejectsNonPositiveCount(t *testing.T) {
	s := NewService(nil)
	assert.Error(t, s.GenerateWallets(t.TempDir(), 0))
	assert.Error(t, s.GenerateWallets(t.TempDir(), -1))
}
