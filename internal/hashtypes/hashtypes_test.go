// Copyright 2025 Certen Protocol

package hashtypes

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
)

func TestHashRoundTrip(t *testing.T) {
	var want Hash
	for i := range want {
		want[i] = byte(i)
	}

	got, err := ParseHash(want.String())
	if err != nil {
		t.Fatalf("ParseHash: %v", err)
	}
	if got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestParseHashRejectsWrongLength(t *testing.T) {
	if _, err := ParseHash("abcd"); err == nil {
		t.Fatal("expected error for short hash")
	}
}

func TestParseHashRejectsInvalidHex(t *testing.T) {
	if _, err := ParseHash(strings.Repeat("zz", HashSize)); err == nil {
		t.Fatal("expected error for non-hex input")
	}
}

func TestHashIsZero(t *testing.T) {
	var h Hash
	if !h.IsZero() {
		t.Error("zero-value Hash should be IsZero")
	}
	h[0] = 1
	if h.IsZero() {
		t.Error("non-zero Hash reported as IsZero")
	}
}

func TestHashTextMarshalRoundTrip(t *testing.T) {
	var h Hash
	h[0] = 0xab
	text, err := h.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}

	var back Hash
	if err := back.UnmarshalText(text); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if back != h {
		t.Errorf("got %s, want %s", back, h)
	}
}

func TestAddressRoundTripWithAndWithoutPrefix(t *testing.T) {
	var want Address
	for i := range want {
		want[i] = byte(i + 1)
	}

	got, err := ParseAddress(want.String())
	if err != nil {
		t.Fatalf("ParseAddress(prefixed): %v", err)
	}
	if got != want {
		t.Errorf("got %s, want %s", got, want)
	}

	bare := strings.TrimPrefix(want.String(), "0x")
	got2, err := ParseAddress(bare)
	if err != nil {
		t.Fatalf("ParseAddress(bare): %v", err)
	}
	if got2 != want {
		t.Errorf("got %s, want %s", got2, want)
	}
}

func TestAddressFromPublicKey(t *testing.T) {
	priv, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	pub := crypto.FromECDSAPub(&priv.PublicKey)

	addr, err := AddressFromPublicKey(pub)
	if err != nil {
		t.Fatalf("AddressFromPublicKey: %v", err)
	}

	want := crypto.PubkeyToAddress(priv.PublicKey)
	if !bytes.Equal(addr[:], want.Bytes()) {
		t.Errorf("address mismatch: got %s want %s", addr, want.Hex())
	}
}

func TestAddressFromPublicKeyRejectsWrongShape(t *testing.T) {
	if _, err := AddressFromPublicKey(make([]byte, 64)); err == nil {
		t.Fatal("expected error for 64-byte (compressed-missing-tag) key")
	}
	bad := make([]byte, 65)
	bad[0] = 0x02
	if _, err := AddressFromPublicKey(bad); err == nil {
		t.Fatal("expected error for non-0x04-tagged key")
	}
}

func TestPoisonedSentinel(t *testing.T) {
	if !Poisoned.IsPoisoned() {
		t.Error("Poisoned.IsPoisoned() should be true")
	}
	var zero Address
	if zero.IsPoisoned() {
		t.Error("zero-value Address should not be poisoned")
	}
}
