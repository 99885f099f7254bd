// Copyright 2025 Certen Protocol

package verifier

import (
	"github.com/inblockio/guardian-node/internal/hashtypes"
	"github.com/inblockio/guardian-node/internal/revision"
)

// verifyMerkleProof runs a three-set reconciliation over a structured
// merkle proof, and reports whether prevVerificationHash (the hash the
// witness actually attests to) is included under merkleRoot.
//
// Grounded on original_source/verifier/src/v1_1/witness.rs, function for
// function: A is "free leafs", B is "free roots", C is "matched".
func verifyMerkleProof(merkleRoot hashtypes.Hash, proof []revision.MerkleStep, prevVerificationHash hashtypes.Hash) FlagSet {
	var flags FlagSet

	a := map[hashtypes.Hash]struct{}{merkleRoot: {}}
	b := map[hashtypes.Hash]struct{}{}
	c := map[hashtypes.Hash]struct{}{}

	moveToMatched := func(h hashtypes.Hash) {
		if _, ok := b[h]; ok {
			delete(b, h)
			c[h] = struct{}{}
		} else {
			a[h] = struct{}{}
		}
	}

	for _, step := range proof {
		_, inC := c[step.Left]
		_, inA := a[step.Left]
		if inC || inA {
			flags = flags.Set(DuplicateMerkleLeaf)
		}
		_, inC2 := c[step.Right]
		_, inA2 := a[step.Right]
		if inC2 || inA2 {
			flags = flags.Set(DuplicateMerkleLeaf)
		}

		moveToMatched(step.Left)
		moveToMatched(step.Right)

		parent := newHasher().update(step.Left.String(), step.Right.String()).finalize()

		_, pInC := c[parent]
		_, pInB := b[parent]
		if pInC || pInB {
			flags = flags.Set(DuplicateMerkleLeaf)
		}

		if _, ok := a[parent]; ok {
			delete(a, parent)
			c[parent] = struct{}{}
		} else {
			b[parent] = struct{}{}
		}
	}

	if _, ok := a[prevVerificationHash]; !ok {
		flags = flags.Set(VerificationHashNotInMerkleTree)
	}
	if len(b) != 0 {
		flags = flags.Set(MerkleTreeIncomplete)
	}
	if _, ok := c[merkleRoot]; !ok {
		flags = flags.Set(MerkleTreeIncomplete)
	}

	return flags
}
