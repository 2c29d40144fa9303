package pda

import (
	"bytes"
	"fmt"

	"github.com/mr-tron/base58"
)

// AddressLen is the fixed byte length of every on-ledger identifier.
const AddressLen = 32

// Address is a 32-byte account identifier with a base58 text form.
// The zero value is never a valid account.
type Address [AddressLen]byte

// ParseAddress decodes a base58 string and enforces the 32-byte length.
func ParseAddress(s string) (Address, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return Address{}, fmt.Errorf("decode address %q: %w", s, err)
	}
	if len(raw) != AddressLen {
		return Address{}, fmt.Errorf("address %q: expected %d bytes, got %d", s, AddressLen, len(raw))
	}
	var a Address
	copy(a[:], raw)
	return a, nil
}

// MustParseAddress is ParseAddress that panics on malformed input.
// Only for constants and tests.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// AddressFromBytes copies a 32-byte slice into an Address.
func AddressFromBytes(b []byte) (Address, error) {
	if len(b) != AddressLen {
		return Address{}, fmt.Errorf("address: expected %d bytes, got %d", AddressLen, len(b))
	}
	var a Address
	copy(a[:], b)
	return a, nil
}

func (a Address) String() string { return base58.Encode(a[:]) }

func (a Address) Bytes() []byte { return a[:] }

// IsZero reports whether the address is the all-zero value.
func (a Address) IsZero() bool { return a == Address{} }

func (a Address) Equal(b Address) bool { return bytes.Equal(a[:], b[:]) }

// MarshalText / UnmarshalText make Address usable as a JSON string and map key.
func (a Address) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
