package domain

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
	"golang.org/x/crypto/sha3"
)

// AccountLength is the size of an account identity in bytes.
const AccountLength = 20

// Account is an opaque 160-bit account identity.
// The zero value is NullAccount.
type Account [AccountLength]byte

// NullAccount is the reserved sentinel that can never hold a balance.
var NullAccount = Account{}

// Account parsing errors.
var (
	ErrInvalidAccount   = errors.New("invalid account")
	ErrInvalidPublicKey = errors.New("invalid public key")
)

// IsNull reports whether a is the null sentinel.
func (a Account) IsNull() bool {
	return a == NullAccount
}

// String returns the 0x-prefixed lowercase hex form.
func (a Account) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// MarshalText implements encoding.TextMarshaler.
func (a Account) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Account) UnmarshalText(text []byte) error {
	parsed, err := ParseAccount(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ParseAccount parses a hex account with or without the 0x prefix.
func ParseAccount(s string) (Account, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s) != AccountLength*2 {
		return Account{}, fmt.Errorf("%w: want %d hex chars, got %d", ErrInvalidAccount, AccountLength*2, len(s))
	}

	raw, err := hex.DecodeString(s)
	if err != nil {
		return Account{}, fmt.Errorf("%w: %v", ErrInvalidAccount, err)
	}

	var a Account
	copy(a[:], raw)
	return a, nil
}

// MustParseAccount is ParseAccount for constants and tests. Panics on error.
func MustParseAccount(s string) Account {
	a, err := ParseAccount(s)
	if err != nil {
		panic(err)
	}
	return a
}

// ParsePublicKey decodes a base58 ed25519 public key.
func ParsePublicKey(s string) ([]byte, error) {
	pub, err := base58.Decode(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("%w: decode base58: %v", ErrInvalidPublicKey, err)
	}
	if len(pub) != 32 {
		return nil, fmt.Errorf("%w: want 32 bytes, got %d", ErrInvalidPublicKey, len(pub))
	}
	return pub, nil
}

// AccountFromPublicKey derives an account from an ed25519 public key.
// The key must be a point on the curve; the account is the last 20 bytes
// of its Keccak-256 digest.
func AccountFromPublicKey(pub []byte) (Account, error) {
	if !isOnCurve(pub) {
		return Account{}, ErrInvalidPublicKey
	}

	h := sha3.NewLegacyKeccak256()
	h.Write(pub)
	digest := h.Sum(nil)

	var a Account
	copy(a[:], digest[len(digest)-AccountLength:])
	if a.IsNull() {
		return Account{}, ErrInvalidPublicKey
	}
	return a, nil
}

func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}
