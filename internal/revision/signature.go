// Copyright 2025 Certen Protocol

package revision

import "github.com/inblockio/guardian-node/internal/hashtypes"

// Signature is a secp256k1 signature over the Ethereum-signed-message digest
// of the previous revision's verification hash, plus the public key that
// produced it and a hash binding both together.
//
// Sig is the 65-byte [R || S || V] form, V in Ethereum RPC convention
// (27-30). PublicKey is the 65-byte uncompressed secp256k1 public key
// (0x04 prefix included).
type Signature struct {
	Sig           [65]byte       `json:"signature"`
	PublicKey     [65]byte       `json:"public_key"`
	SignatureHash hashtypes.Hash `json:"signature_hash"`
}

// SignerAddress returns the Ethereum-style address of the declared public
// key, independent of whether the signature itself verifies.
func (s *Signature) SignerAddress() (hashtypes.Address, error) {
	return hashtypes.AddressFromPublicKey(s.PublicKey[:])
}
