// Copyright 2025 Certen Protocol

package revision

import "github.com/inblockio/guardian-node/internal/hashtypes"

// MerkleStep is one level of a structured merkle inclusion proof: the left
// and right children hashed together to produce the parent at this level.
// Grounded on original_source/verifier/src/v1_1/witness.rs's
// "structured_merkle_proof" walk.
type MerkleStep struct {
	Left  hashtypes.Hash `json:"left_leaf"`
	Right hashtypes.Hash `json:"right_leaf"`
}

// Witness is the on-chain publication of a merkle root containing this
// revision's (previous, per the v1.2 lifting rule) verification hash.
type Witness struct {
	GenesisSnapshotHash hashtypes.Hash `json:"domain_snapshot_genesis_hash"`
	MerkleRoot          hashtypes.Hash `json:"merkle_root"`
	Network             string         `json:"witness_network"`
	TxHash               string         `json:"witness_event_transaction_hash"`
	MerkleProof         []MerkleStep   `json:"structured_merkle_proof"`
	WitnessHash         hashtypes.Hash `json:"witness_hash"`
}
