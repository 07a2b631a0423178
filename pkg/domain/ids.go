// Package domain defines the typed identifiers shared across the portrait
// registries. Parsing happens at trust boundaries (HTTP, storage); services
// only ever see validated values.
package domain

import (
	"bytes"
	"encoding/hex"
	"strconv"
	"strings"

	dErrors "portrait/pkg/domain-errors"
)

// Address is a 20-byte account address. The zero value is the "no account"
// sentinel and is never a valid owner, delegate, or signer.
type Address [20]byte

// ZeroAddress is the all-zero account address.
var ZeroAddress Address

// ParseAddress parses a 0x-prefixed, 40-hex-digit account address.
func ParseAddress(s string) (Address, error) {
	var a Address
	if len(s) != 42 || !strings.HasPrefix(s, "0x") {
		return a, dErrors.New(dErrors.CodeInvalidAddress, "address must be 0x-prefixed and 20 bytes")
	}
	raw, err := hex.DecodeString(s[2:])
	if err != nil {
		return a, dErrors.Wrap(err, dErrors.CodeInvalidAddress, "address is not valid hex")
	}
	copy(a[:], raw)
	return a, nil
}

// AddressFromBytes builds an Address from a raw 20-byte slice.
func AddressFromBytes(b []byte) (Address, error) {
	var a Address
	if len(b) != 20 {
		return a, dErrors.New(dErrors.CodeInvalidAddress, "address must be exactly 20 bytes")
	}
	copy(a[:], b)
	return a, nil
}

// String renders the address as 0x-prefixed lowercase hex.
func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// IsZero reports whether the address is the no-account sentinel.
func (a Address) IsZero() bool {
	return a == ZeroAddress
}

// Bytes returns a copy of the raw address bytes.
func (a Address) Bytes() []byte {
	out := make([]byte, len(a))
	copy(out, a[:])
	return out
}

// MarshalText implements encoding.TextMarshaler for JSON payloads.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler for JSON payloads.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Hash is a 32-byte digest. Rendered as 0x-prefixed lowercase hex of fixed
// width everywhere, including inside signed messages, so the encoding is part
// of the wire contract.
type Hash [32]byte

// ZeroHash is the all-zero digest, used as the "no reservation" sentinel.
var ZeroHash Hash

// ParseHash parses a 0x-prefixed, 64-hex-digit digest.
func ParseHash(s string) (Hash, error) {
	var h Hash
	if len(s) != 66 || !strings.HasPrefix(s, "0x") {
		return h, dErrors.New(dErrors.CodeBadRequest, "hash must be 0x-prefixed and 32 bytes")
	}
	raw, err := hex.DecodeString(s[2:])
	if err != nil {
		return h, dErrors.Wrap(err, dErrors.CodeBadRequest, "hash is not valid hex")
	}
	copy(h[:], raw)
	return h, nil
}

// HashFromBytes builds a Hash from a raw 32-byte slice.
func HashFromBytes(b []byte) (Hash, error) {
	var h Hash
	if len(b) != 32 {
		return h, dErrors.New(dErrors.CodeBadRequest, "hash must be exactly 32 bytes")
	}
	copy(h[:], b)
	return h, nil
}

// String renders the digest as 0x-prefixed lowercase hex.
func (h Hash) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

// IsZero reports whether the digest is all zero.
func (h Hash) IsZero() bool {
	return bytes.Equal(h[:], ZeroHash[:])
}

// MarshalText implements encoding.TextMarshaler for JSON payloads.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler for JSON payloads.
func (h *Hash) UnmarshalText(text []byte) error {
	parsed, err := ParseHash(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// PortraitID is the numeric decentralized-identity handle. IDs are assigned
// sequentially starting at 1; zero is never issued and always means "no
// portrait".
type PortraitID uint64

// ParsePortraitID parses a decimal portrait ID, rejecting zero.
func ParsePortraitID(s string) (PortraitID, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeBadRequest, "portrait id must be a decimal integer")
	}
	if n == 0 {
		return 0, dErrors.New(dErrors.CodeNonExistentPortraitID, "portrait id 0 is never assigned")
	}
	return PortraitID(n), nil
}

// IsValid reports whether the ID could ever have been issued.
func (p PortraitID) IsValid() bool {
	return p != 0
}

// String renders the ID as decimal digits.
func (p PortraitID) String() string {
	return strconv.FormatUint(uint64(p), 10)
}
