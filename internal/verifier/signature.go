// Copyright 2025 Certen Protocol

package verifier

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/inblockio/guardian-node/internal/hashtypes"
)

// ethSignedMessagePrefix is the exact ASCII prefix a revision's signature is
// computed over: `"\x19Ethereum Signed Message:\n177I sign the following
// page verification_hash: [0x" || hex(previous.verification_hash) || "]"`.
// Grounded on original_source/verifier/src/v1_1/signature.rs.
const ethSignedMessagePrefix = "\x19Ethereum Signed Message:\n177I sign the following page verification_hash: [0x"

// recoveryIDOffset is the Ethereum RPC convention storing recovery id as
// 27-30; it must be subtracted before passing the id to secp256k1 recovery.
const recoveryIDOffset = 27

// signedMessageHash returns the Keccak-256 digest that a revision's
// signature is computed over, given the *previous* revision's verification
// hash (the thing actually being attested to).
func signedMessageHash(prevVerificationHash hashtypes.Hash) [32]byte {
	msg := ethSignedMessagePrefix + prevVerificationHash.String() + "]"
	var out [32]byte
	copy(out[:], crypto.Keccak256([]byte(msg)))
	return out
}

// recoverSigner recovers the public key that produced sig over
// prevVerificationHash, and reports whether it equals declaredPubkey.
// Returns SignatureError if the signature itself is malformed or
// unrecoverable; PublicKeyMismatch is a separate flag in the caller.
func recoverSigner(sig [65]byte, declaredPubkey [65]byte, prevVerificationHash hashtypes.Hash) (recovered [65]byte, matches bool, err error) {
	if sig[64] < recoveryIDOffset || sig[64] > recoveryIDOffset+3 {
		return recovered, false, fmt.Errorf("verifier: recovery id %d out of Ethereum RPC range [27,30]", sig[64])
	}
	normalized := sig
	normalized[64] = sig[64] - recoveryIDOffset

	digest := signedMessageHash(prevVerificationHash)
	pubkey, err := crypto.Ecrecover(digest[:], normalized[:])
	if err != nil {
		return recovered, false, fmt.Errorf("verifier: ecrecover: %w", err)
	}
	copy(recovered[:], pubkey)
	return recovered, bytes.Equal(recovered[:], declaredPubkey[:]), nil
}
