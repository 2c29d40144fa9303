package keys

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mr-tron/base58"

	"github.com/obscura-markets/darkpool/pkg/pda"
)

// Wallet holds an ed25519 keypair. The public key doubles as the owner
// identity on the ledger (32 bytes, base58 text form).
type Wallet struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
	addr pda.Address
}

// Generate creates a new random keypair.
func Generate() (*Wallet, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate keypair: %w", err)
	}
	return fromKeys(pub, priv)
}

// FromSeedBase58 reconstructs a wallet from a base58-encoded 32-byte seed.
func FromSeedBase58(s string) (*Wallet, error) {
	seed, err := base58.Decode(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return fromKeys(priv.Public().(ed25519.PublicKey), priv)
}

func fromKeys(pub ed25519.PublicKey, priv ed25519.PrivateKey) (*Wallet, error) {
	addr, err := pda.AddressFromBytes(pub)
	if err != nil {
		return nil, err
	}
	return &Wallet{priv: priv, pub: pub, addr: addr}, nil
}

// Load reads a base58 seed from a keypair file.
func Load(path string) (*Wallet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keypair file: %w", err)
	}
	return FromSeedBase58(string(raw))
}

// Save writes the base58 seed to path with owner-only permissions.
func (w *Wallet) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create key dir: %w", err)
		}
	}
	seed := base58.Encode(w.priv.Seed())
	if err := os.WriteFile(path, []byte(seed+"\n"), 0600); err != nil {
		return fmt.Errorf("write keypair file: %w", err)
	}
	return nil
}

// Identity returns the owner address derived from the public key.
func (w *Wallet) Identity() pda.Address { return w.addr }

// Sign signs an arbitrary message. ed25519 hashes internally, so no
// pre-hashing step is needed.
func (w *Wallet) Sign(message []byte) ([]byte, error) {
	return ed25519.Sign(w.priv, message), nil
}

// Verify reports whether signature was produced by the holder of addr's key.
func Verify(addr pda.Address, message, signature []byte) bool {
	if len(signature) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(addr[:]), message, signature)
}
