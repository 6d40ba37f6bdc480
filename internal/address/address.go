// Package address implements the 32-byte account identifiers used by the
// settlement ledger and the program-derived address scheme that binds a
// market's accounts together.
//
// A program-derived address is the SHA-256 of an ordered list of seeds, the
// owning program's identifier and a fixed marker. Candidates that decode to a
// valid ed25519 point are rejected: such an address could have a private key,
// so an external actor might be able to sign for it. Only digests that lie
// off the curve are accepted, which makes them controllable by the program
// alone.
package address

import (
	"crypto/ed25519"
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

const (
	// Size is the length of an identifier in bytes.
	Size = 32

	// MaxSeedLength is the longest seed accepted by CreateProgramAddress.
	MaxSeedLength = 32

	// MaxSeeds is the largest number of seeds, nonce included.
	MaxSeeds = 16
)

var pdaMarker = []byte("ProgramDerivedAddress")

var (
	ErrInvalidLength   = errors.New("address: identifier must be 32 bytes")
	ErrInvalidEncoding = errors.New("address: invalid base-58 encoding")
	ErrMaxSeedLength   = errors.New("address: seed exceeds 32 bytes")
	ErrTooManySeeds    = errors.New("address: too many seeds")

	// ErrOnCurve is returned when a candidate digest is a valid ed25519
	// public key and therefore cannot serve as a program-derived address.
	ErrOnCurve = errors.New("address: candidate lies on the ed25519 curve")

	// ErrNoViableNonce is returned only after all 256 nonces were tried.
	ErrNoViableNonce = errors.New("address: no viable nonce")
)

// ID identifies an account on the ledger: a market, a mint, a token account,
// a program or a signing principal.
type ID [Size]byte

// Zero is the unset identifier.
var Zero ID

// FromBytes copies b into an ID.
func FromBytes(b []byte) (ID, error) {
	var id ID
	if len(b) != Size {
		return id, fmt.Errorf("%w: got %d", ErrInvalidLength, len(b))
	}
	copy(id[:], b)
	return id, nil
}

// FromPublicKey returns the identifier of a signing principal.
func FromPublicKey(pub ed25519.PublicKey) ID {
	var id ID
	copy(id[:], pub)
	return id
}

// Parse decodes the base-58 text form of an identifier.
func Parse(s string) (ID, error) {
	b, err := base58.Decode(s)
	if err != nil || len(s) == 0 {
		return Zero, fmt.Errorf("%w: %q", ErrInvalidEncoding, s)
	}
	return FromBytes(b)
}

// MustParse is Parse for package-level constants. It panics on error.
func MustParse(s string) ID {
	id, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return id
}

// Namespace returns a well-known identifier for a named program.
func Namespace(name string) ID {
	return ID(sha256.Sum256([]byte(name)))
}

func (id ID) String() string { return base58.Encode(id[:]) }

// Bytes returns a copy of the raw identifier.
func (id ID) Bytes() []byte {
	b := make([]byte, Size)
	copy(b, id[:])
	return b
}

func (id ID) IsZero() bool { return id == Zero }

// IsOnCurve reports whether id decodes to a valid ed25519 point.
func (id ID) IsOnCurve() bool {
	_, err := new(edwards25519.Point).SetBytes(id[:])
	return err == nil
}

func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *ID) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// CreateProgramAddress hashes seeds under program and returns the resulting
// identifier, or ErrOnCurve if it has a possible private key.
func CreateProgramAddress(seeds [][]byte, program ID) (ID, error) {
	if len(seeds) > MaxSeeds {
		return Zero, ErrTooManySeeds
	}

	h := sha256.New()
	for _, seed := range seeds {
		if len(seed) > MaxSeedLength {
			return Zero, fmt.Errorf("%w: %d bytes", ErrMaxSeedLength, len(seed))
		}
		h.Write(seed)
	}
	h.Write(program[:])
	h.Write(pdaMarker)

	var id ID
	copy(id[:], h.Sum(nil))
	if id.IsOnCurve() {
		return Zero, ErrOnCurve
	}
	return id, nil
}

// FindProgramAddress searches nonces from 255 down to 0, appending each as a
// final one-byte seed, and returns the first off-curve identifier together
// with the nonce that produced it. The search is deterministic: the same
// seeds and program always yield the same pair.
func FindProgramAddress(seeds [][]byte, program ID) (ID, uint8, error) {
	if len(seeds) >= MaxSeeds {
		return Zero, 0, ErrTooManySeeds
	}

	candidate := make([][]byte, len(seeds)+1)
	copy(candidate, seeds)

	for nonce := 255; nonce >= 0; nonce-- {
		candidate[len(seeds)] = []byte{byte(nonce)}
		id, err := CreateProgramAddress(candidate, program)
		switch {
		case err == nil:
			return id, uint8(nonce), nil
		case errors.Is(err, ErrOnCurve):
			continue
		default:
			return Zero, 0, err
		}
	}
	return Zero, 0, ErrNoViableNonce
}
