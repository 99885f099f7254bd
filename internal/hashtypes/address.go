// Copyright 2025 Certen Protocol

package hashtypes

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// AddressSize is the length in bytes of an Ethereum-style address.
const AddressSize = 20

// Address is the last 20 bytes of Keccak-256 over an uncompressed secp256k1
// public key (minus its leading 0x04 tag byte).
type Address [AddressSize]byte

// Poisoned is the sentinel address recorded when two effective contracts
// disagree about the same key.
var Poisoned = Address{
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
}

// String renders the address as "0x"-prefixed lowercase hex, the convention
// used inside contract parameters (sender=0x.../receiver=0x...).
func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ParseAddress decodes a 0x-prefixed or bare hex address.
func ParseAddress(s string) (Address, error) {
	var a Address
	s = strings.TrimPrefix(s, "0x")
	s = strings.TrimPrefix(s, "0X")
	raw, err := hex.DecodeString(s)
	if err != nil {
		return a, fmt.Errorf("hashtypes: invalid hex address %q: %w", s, err)
	}
	if len(raw) != AddressSize {
		return a, fmt.Errorf("hashtypes: address %q has %d bytes, want %d", s, len(raw), AddressSize)
	}
	copy(a[:], raw)
	return a, nil
}

// AddressFromPublicKey derives the Ethereum-style address of an uncompressed
// secp256k1 public key (65 bytes, leading 0x04 tag included).
func AddressFromPublicKey(pubkey []byte) (Address, error) {
	var a Address
	if len(pubkey) != 65 || pubkey[0] != 0x04 {
		return a, fmt.Errorf("hashtypes: expected 65-byte uncompressed public key, got %d bytes", len(pubkey))
	}
	digest := crypto.Keccak256(pubkey[1:])
	copy(a[:], digest[len(digest)-AddressSize:])
	return a, nil
}

// IsPoisoned reports whether a is the POISONED sentinel.
func (a Address) IsPoisoned() bool {
	return a == Poisoned
}
