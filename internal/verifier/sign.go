// Copyright 2025 Certen Protocol

package verifier

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/inblockio/guardian-node/internal/hashtypes"
	"github.com/inblockio/guardian-node/internal/revision"
)

// Sign produces the revision.Signature attesting to prevVerificationHash
// under priv, using the same Ethereum-signed-message convention
// verifySignature checks on the way back in. Used when a guardian mints its
// own revisions (identity/servitude declarations) rather than verifying
// someone else's.
func Sign(priv *ecdsa.PrivateKey, prevVerificationHash hashtypes.Hash) (revision.Signature, error) {
	digest := signedMessageHash(prevVerificationHash)
	sig, err := crypto.Sign(digest[:], priv)
	if err != nil {
		return revision.Signature{}, fmt.Errorf("verifier: sign: %w", err)
	}
	sig[64] += recoveryIDOffset

	var out revision.Signature
	copy(out.Sig[:], sig)
	copy(out.PublicKey[:], crypto.FromECDSAPub(&priv.PublicKey))
	out.SignatureHash = SignatureHash(out.Sig, out.PublicKey)
	return out, nil
}
