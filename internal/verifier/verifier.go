// Copyright 2025 Certen Protocol

package verifier

import (
	"golang.org/x/crypto/sha3"

	"github.com/inblockio/guardian-node/internal/hashtypes"
	"github.com/inblockio/guardian-node/internal/revision"
)

// Verify recomputes every hash relation for rev given its (already-verified)
// previous revision, if any, and returns the set of integrity flags that
// hold. An empty result means every invariant holds.
// Grounded on original_source/verifier/src/v1_1/mod.rs's revision_integrity,
// which simply ORs together the verification/signature/witness sub-checks.
func Verify(rev *revision.Revision, prev *revision.Revision) FlagSet {
	var flags FlagSet
	flags |= verifyHashChain(rev, prev)
	flags |= verifySignature(rev, prev)
	flags |= verifyWitness(rev, prev)
	return flags
}

func verifyHashChain(rev *revision.Revision, prev *revision.Revision) FlagSet {
	var flags FlagSet

	// 1. previous_verification_hash
	claimed, hasClaim := rev.PreviousHash()
	switch {
	case hasClaim && prev == nil:
		flags = flags.Set(NoPrevRevision)
	case hasClaim && prev != nil && prev.Hash() != claimed:
		flags = flags.Set(PrevVerificationHashMismatch)
	case !hasClaim && prev != nil:
		flags = flags.Set(PrevVerificationHashMismatch)
	}

	// 2. file_hash
	fileHashDeclared, hasFileHashField := rev.Content.Fields.Get(revision.FileHashKey)
	switch {
	case len(rev.Content.File) > 0 && !hasFileHashField:
		flags = flags.Set(FileHashMismatch)
	case len(rev.Content.File) > 0 && hasFileHashField:
		h := sha3.New512()
		h.Write(rev.Content.File)
		var digest hashtypes.Hash
		copy(digest[:], h.Sum(nil))
		if digest.String() != fileHashDeclared {
			flags = flags.Set(FileHashMismatch)
		}
	case len(rev.Content.File) == 0 && hasFileHashField:
		flags = flags.Set(NoFile)
	}

	// 3. content_hash
	if ContentHash(rev.Content.Fields) != rev.Content.ContentHash {
		flags = flags.Set(ContentHashMismatch)
	}

	// 4. metadata_hash
	if MetadataHash(rev.Metadata.DomainID, rev.Metadata.Timestamp, rev.Metadata.PreviousVerificationHash) != rev.Metadata.MetadataHash {
		flags = flags.Set(MetadataHashMismatch)
	}

	// 5. verification_hash — built from THIS revision's content/metadata
	// hashes plus THIS revision's OWN signature_hash/witness_hash, paired
	// with the previous revision only for chain identity. A genesis
	// revision (prev == nil) has nothing to pair its own signature with, so
	// neither component is folded in.
	var sigHash, witnessHash *hashtypes.Hash
	if prev != nil {
		if rev.Signature != nil {
			h := rev.Signature.SignatureHash
			sigHash = &h
		}
		if rev.Witness != nil {
			h := rev.Witness.WitnessHash
			witnessHash = &h
		}
	}
	if VerificationHash(rev.Content.ContentHash, rev.Metadata.MetadataHash, sigHash, witnessHash) != rev.Metadata.VerificationHash {
		flags = flags.Set(VerificationHashMismatch)
	}

	return flags
}

func verifySignature(rev *revision.Revision, prev *revision.Revision) FlagSet {
	if rev.Signature == nil {
		return FlagSet(0).Set(NoSignature)
	}
	if prev == nil {
		return FlagSet(0).Set(NoPrevRevision)
	}

	var flags FlagSet
	recovered, matches, err := recoverSigner(rev.Signature.Sig, rev.Signature.PublicKey, prev.Hash())
	if err != nil {
		return flags.Set(SignatureError)
	}
	if !matches {
		_ = recovered
		flags = flags.Set(PublicKeyMismatch)
	}
	if SignatureHash(rev.Signature.Sig, rev.Signature.PublicKey) != rev.Signature.SignatureHash {
		flags = flags.Set(SignatureHashMismatch)
	}
	return flags
}

func verifyWitness(rev *revision.Revision, prev *revision.Revision) FlagSet {
	if rev.Witness == nil {
		return FlagSet(0).Set(NoWitness)
	}
	if prev == nil {
		return FlagSet(0).Set(NoPrevRevision)
	}

	var flags FlagSet
	w := rev.Witness
	flags |= verifyMerkleProof(w.MerkleRoot, w.MerkleProof, prev.Hash())
	if WitnessHash(w.GenesisSnapshotHash, w.MerkleRoot, w.Network, w.TxHash) != w.WitnessHash {
		flags = flags.Set(WitnessHashMismatch)
	}
	return flags
}
