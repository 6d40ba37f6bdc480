// Package wallet holds ed25519 signing identities for administrators and
// counterparties. Keypairs are passed explicitly to whatever needs to sign;
// nothing here is process-global.
package wallet

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/ed25519"

	"github.com/atmx/bond-market/internal/address"
)

var (
	ErrInvalidSecretKey = errors.New("wallet: invalid secret key")
	ErrInvalidSeed      = errors.New("wallet: seed must be 32 bytes")
)

// Keypair is an ed25519 signing identity.
type Keypair struct {
	priv ed25519.PrivateKey
}

// Generate creates a fresh random keypair.
func Generate() (*Keypair, error) {
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, fmt.Errorf("wallet: generate key: %w", err)
	}
	return &Keypair{priv: priv}, nil
}

// FromSeed derives a keypair from a 32-byte seed. Tests use it for
// reproducible identities.
func FromSeed(seed []byte) (*Keypair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, ErrInvalidSeed
	}
	return &Keypair{priv: ed25519.NewKeyFromSeed(seed)}, nil
}

// FromSecretKey accepts the 64-byte seed||public encoding and checks that
// both halves agree.
func FromSecretKey(secret []byte) (*Keypair, error) {
	if len(secret) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidSecretKey, len(secret))
	}
	kp, err := FromSeed(secret[:ed25519.SeedSize])
	if err != nil {
		return nil, err
	}
	if string(kp.priv[ed25519.SeedSize:]) != string(secret[ed25519.SeedSize:]) {
		return nil, fmt.Errorf("%w: public half does not match seed", ErrInvalidSecretKey)
	}
	return kp, nil
}

// ParseSecretKeyJSON reads a secret key written as a JSON array of 64 byte
// values, e.g. "[12,250,...]".
func ParseSecretKeyJSON(s string) (*Keypair, error) {
	var values []int
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &values); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSecretKey, err)
	}
	secret := make([]byte, len(values))
	for i, v := range values {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("%w: value %d at index %d", ErrInvalidSecretKey, v, i)
		}
		secret[i] = byte(v)
	}
	return FromSecretKey(secret)
}

// LoadFile reads a keypair file in the JSON array format.
func LoadFile(path string) (*Keypair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("wallet: read %s: %w", path, err)
	}
	return ParseSecretKeyJSON(string(data))
}

// SaveFile writes the keypair in the JSON array format, readable only by
// the owner.
func (k *Keypair) SaveFile(path string) error {
	data, err := k.SecretKeyJSON()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// SecretKeyJSON encodes the 64-byte secret key as a JSON array.
func (k *Keypair) SecretKeyJSON() ([]byte, error) {
	values := make([]int, len(k.priv))
	for i, b := range k.priv {
		values[i] = int(b)
	}
	return json.Marshal(values)
}

// Public returns the identity's ledger identifier.
func (k *Keypair) Public() address.ID {
	return address.FromPublicKey(k.priv.Public().(ed25519.PublicKey))
}

// Sign signs msg.
func (k *Keypair) Sign(msg []byte) []byte {
	return ed25519.Sign(k.priv, msg)
}

// Verify reports whether sig is signer's signature over msg.
func Verify(signer address.ID, msg, sig []byte) bool {
	if len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(signer[:]), msg, sig)
}
