package wallet

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// minKeyLength is the shortest base58 encoding of a 64-byte keypair.
const minKeyLength = 85

// LoadKeyFile reads a single base58-encoded private key file. Malformed files
// are a hard error, never skipped.
func LoadKeyFile(path string) (solana.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read wallet file %s: %w", path, err)
	}
	encoded := strings.TrimSpace(string(raw))
	if len(encoded) < minKeyLength {
		return nil, fmt.Errorf("wallet file %s: invalid private key length %d", path, len(encoded))
	}
	key, err := solana.PrivateKeyFromBase58(encoded)
	if err != nil {
		return nil, fmt.Errorf("wallet file %s: %w", path, err)
	}
	return key, nil
}

// LoadDir loads every *.key file in dir into the pool.
func LoadDir(pool *Pool, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read wallets directory: %w", err)
	}
	loaded := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".key") {
			continue
		}
		key, err := LoadKeyFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return err
		}
		if err := pool.Add(key); err != nil {
			return err
		}
		loaded++
	}
	if loaded == 0 {
		return fmt.Errorf("no wallet files found in %s", dir)
	}
	return nil
}
