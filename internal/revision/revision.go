// Copyright 2025 Certen Protocol
//
// Package revision defines the wire (v1.1) and canonical (v1.2) forms of an
// Aqua-chain revision, and the ordered field map its content_hash is defined
// over. Grounded on
// original_source/guardian-common/src/custom_types/revision.rs.
package revision

import "github.com/inblockio/guardian-node/internal/hashtypes"

// Revision is the on-wire (v1.1) form: signature and witness are attached to
// the revision that carries them, not the revision they authenticate.
type Revision struct {
	Content   Content    `json:"content"`
	Metadata  Metadata   `json:"metadata"`
	Signature *Signature `json:"signature,omitempty"`
	Witness   *Witness   `json:"witness,omitempty"`
}

// Hash returns the revision's identifying hash (its verification hash).
func (r *Revision) Hash() hashtypes.Hash {
	return r.Metadata.VerificationHash
}

// PreviousHash returns the claimed previous-revision hash, if any.
func (r *Revision) PreviousHash() (hashtypes.Hash, bool) {
	if r.Metadata.PreviousVerificationHash == nil {
		return hashtypes.Hash{}, false
	}
	return *r.Metadata.PreviousVerificationHash, true
}

// Canonical is the v1.2 canonical form used internally by the verifier,
// contract interpreter, and state engine: the current revision's content and
// metadata, plus its own authentication artifacts lifted onto a Prev
// reference alongside the previous revision's identifying hash.
// verification_hash is defined over content_hash, metadata_hash, and Prev's
// signature_hash/witness_hash — this revision's own signature/witness, keyed
// to its predecessor's hash, never the predecessor's own signature/witness.
type Canonical struct {
	Content  Content
	Metadata Metadata
	// Prev pairs the previous revision's identifying hash with this
	// revision's own authentication artifacts, lifted forward so
	// verification_hash can be recomputed without a second round trip to
	// storage at every check site. Nil for a genesis revision.
	Prev *PrevReference
}

// PrevReference is the previous revision's hash, paired with the *current*
// revision's own signature/witness — the artifacts that physically ride
// along on rev, not on the predecessor it names. The signer recovered from
// Signature is this revision's own signer, used for contract
// sequence-number derivation (internal/contract.SequenceNumber).
type PrevReference struct {
	Hash      hashtypes.Hash
	Signature *Signature
	Witness   *Witness
}

// ToCanonical lifts rev (v1.1, wire form) into its v1.2 canonical form given
// the already-verified previous revision, if any. rev's own signature and
// witness travel with it; prev contributes only its identifying hash.
func ToCanonical(rev *Revision, prev *Revision) *Canonical {
	c := &Canonical{Content: rev.Content, Metadata: rev.Metadata}
	if prev != nil {
		c.Prev = &PrevReference{
			Hash:      prev.Hash(),
			Signature: rev.Signature,
			Witness:   rev.Witness,
		}
	}
	return c
}
