// Copyright 2025 Certen Protocol
//
// Package hashtypes defines the fixed-size identifiers shared across the
// guardian: the 64-byte SHA3-512 revision hash and the 20-byte Ethereum-style
// address. A Hash round-trips through lowercase hex without a "0x" prefix; an
// Address renders as "0x"-prefixed lowercase hex and parses with or without
// the prefix.
package hashtypes

import (
	"encoding/hex"
	"fmt"
)

// HashSize is the length in bytes of a verification hash (SHA3-512 digest).
const HashSize = 64

// Hash is a 64-byte SHA3-512 digest, the identifier of a revision.
type Hash [HashSize]byte

// ZeroHash is the all-zero hash, never a valid revision identifier.
var ZeroHash Hash

// String renders the hash as lowercase hex, no prefix.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// MarshalText implements encoding.TextMarshaler.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hash) UnmarshalText(text []byte) error {
	parsed, err := ParseHash(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// ParseHash decodes a lowercase (or mixed-case) hex string into a Hash.
func ParseHash(s string) (Hash, error) {
	var h Hash
	raw, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("hashtypes: invalid hex hash %q: %w", s, err)
	}
	if len(raw) != HashSize {
		return h, fmt.Errorf("hashtypes: hash %q has %d bytes, want %d", s, len(raw), HashSize)
	}
	copy(h[:], raw)
	return h, nil
}

// IsZero reports whether h is the zero hash.
func (h Hash) IsZero() bool {
	return h == ZeroHash
}
