package account

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Size is the byte length of an account identifier.
const Size = 32

// ErrInvalidAccount is returned when an account string cannot be decoded.
var ErrInvalidAccount = errors.New("invalid account")

// ID identifies a ledger account. The zero value is the null address.
type ID [Size]byte

// Zero is the null address.
var Zero ID

// Parse decodes a hex account identifier, with or without a 0x prefix.
func Parse(s string) (ID, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	if len(s) != Size*2 {
		return ID{}, fmt.Errorf("%w: expected %d hex digits, got %d", ErrInvalidAccount, Size*2, len(s))
	}
	var id ID
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return ID{}, fmt.Errorf("%w: %v", ErrInvalidAccount, err)
	}
	return id, nil
}

// MustParse is Parse for constants and tests.
func MustParse(s string) ID {
	id, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return id
}

// FromBytes copies a raw 32 byte identifier.
func FromBytes(b []byte) (ID, error) {
	if len(b) != Size {
		return ID{}, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidAccount, Size, len(b))
	}
	var id ID
	copy(id[:], b)
	return id, nil
}

// FromPublicKey derives the account owned by an ed25519 public key.
func FromPublicKey(pub ed25519.PublicKey) (ID, error) {
	if len(pub) != ed25519.PublicKeySize {
		return ID{}, fmt.Errorf("%w: public key must be %d bytes", ErrInvalidAccount, ed25519.PublicKeySize)
	}
	return ID(blake2b.Sum256(pub)), nil
}

// IsZero reports whether id is the null address.
func (id ID) IsZero() bool {
	return id == Zero
}

// Bytes returns a copy of the identifier bytes.
func (id ID) Bytes() []byte {
	b := make([]byte, Size)
	copy(b, id[:])
	return b
}

func (id ID) String() string {
	return "0x" + hex.EncodeToString(id[:])
}

// MarshalText implements encoding.TextMarshaler.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
