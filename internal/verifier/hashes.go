// Copyright 2025 Certen Protocol

package verifier

import (
	"golang.org/x/crypto/sha3"

	"github.com/inblockio/guardian-node/internal/hashtypes"
	"github.com/inblockio/guardian-node/internal/revision"
)

// newHasher returns a fresh SHA3-512 hasher, the one primitive every hash
// relation below is built from.
func newHasher() *sha3Hasher {
	return &sha3Hasher{h: sha3.New512()}
}

type sha3Hasher struct {
	h interface {
		Write(p []byte) (int, error)
		Sum(b []byte) []byte
	}
}

func (s *sha3Hasher) update(data ...string) *sha3Hasher {
	for _, d := range data {
		_, _ = s.h.Write([]byte(d))
	}
	return s
}

func (s *sha3Hasher) finalize() hashtypes.Hash {
	var out hashtypes.Hash
	copy(out[:], s.h.Sum(nil))
	return out
}

// ContentHash computes SHA3-512 over every value of content, in key-iteration
// order.
func ContentHash(content *revision.OrderedMap) hashtypes.Hash {
	h := newHasher()
	for _, v := range content.Values() {
		h.update(v)
	}
	return h.finalize()
}

// MetadataHash computes SHA3-512(domain_id || timestamp || previous_verification_hash?).
func MetadataHash(domainID string, ts revision.Timestamp, prevVerificationHash *hashtypes.Hash) hashtypes.Hash {
	h := newHasher().update(domainID, ts.String())
	if prevVerificationHash != nil {
		h.update(prevVerificationHash.String())
	}
	return h.finalize()
}

// SignatureHash computes SHA3-512(hex(signature) || hex(public_key)).
func SignatureHash(sig [65]byte, pubkey [65]byte) hashtypes.Hash {
	return newHasher().update(hexString(sig[:]), hexString(pubkey[:])).finalize()
}

// WitnessHash computes SHA3-512(genesis_snapshot || merkle_root || network || tx_hash).
func WitnessHash(genesisSnapshot, merkleRoot hashtypes.Hash, network, txHash string) hashtypes.Hash {
	return newHasher().update(genesisSnapshot.String(), merkleRoot.String(), network, txHash).finalize()
}

// VerificationHash computes
// SHA3-512(content_hash || metadata_hash || prev.signature_hash? || prev.witness_hash?).
// The *previous* revision's signature/witness hashes contribute here, never
// this revision's own.
func VerificationHash(contentHash, metadataHash hashtypes.Hash, prevSignatureHash, prevWitnessHash *hashtypes.Hash) hashtypes.Hash {
	h := newHasher().update(contentHash.String(), metadataHash.String())
	if prevSignatureHash != nil {
		h.update(prevSignatureHash.String())
	}
	if prevWitnessHash != nil {
		h.update(prevWitnessHash.String())
	}
	return h.finalize()
}

func hexString(b []byte) string {
	const hextable = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[i*2] = hextable[c>>4]
		out[i*2+1] = hextable[c&0x0f]
	}
	return string(out)
}
