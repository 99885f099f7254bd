// Copyright 2025 Certen Protocol

package revision

import (
	"testing"

	"github.com/inblockio/guardian-node/internal/hashtypes"
)

func hashOf(b byte) hashtypes.Hash {
	var h hashtypes.Hash
	h[0] = b
	return h
}

func TestRevisionHashReturnsVerificationHash(t *testing.T) {
	r := &Revision{Metadata: Metadata{VerificationHash: hashOf(7)}}
	if r.Hash() != hashOf(7) {
		t.Errorf("Hash() = %s, want %s", r.Hash(), hashOf(7))
	}
}

func TestRevisionPreviousHash(t *testing.T) {
	r := &Revision{}
	if _, ok := r.PreviousHash(); ok {
		t.Error("genesis revision reported a previous hash")
	}

	prev := hashOf(3)
	r.Metadata.PreviousVerificationHash = &prev
	got, ok := r.PreviousHash()
	if !ok || got != prev {
		t.Errorf("PreviousHash() = %s, %v; want %s, true", got, ok, prev)
	}
}

func TestToCanonicalGenesisHasNilPrev(t *testing.T) {
	rev := &Revision{Content: Content{ContentHash: hashOf(1)}, Metadata: Metadata{VerificationHash: hashOf(2)}}
	c := ToCanonical(rev, nil)
	if c.Prev != nil {
		t.Error("ToCanonical with nil prev should leave Prev nil")
	}
	if c.Content.ContentHash != rev.Content.ContentHash {
		t.Error("ToCanonical did not carry Content forward")
	}
}

func TestToCanonicalLiftsPreviousAuthentication(t *testing.T) {
	sig := &Signature{}
	wit := &Witness{}
	prevRev := &Revision{
		Metadata:  Metadata{VerificationHash: hashOf(9)},
		Signature: sig,
		Witness:   wit,
	}
	rev := &Revision{Metadata: Metadata{VerificationHash: hashOf(10)}}

	c := ToCanonical(rev, prevRev)
	if c.Prev == nil {
		t.Fatal("expected non-nil Prev")
	}
	if c.Prev.Hash != hashOf(9) {
		t.Errorf("Prev.Hash = %s, want %s", c.Prev.Hash, hashOf(9))
	}
	if c.Prev.Signature != sig {
		t.Error("Prev.Signature was not lifted from the previous revision")
	}
	if c.Prev.Witness != wit {
		t.Error("Prev.Witness was not lifted from the previous revision")
	}
}
