// Copyright 2025 Certen Protocol

package revision

import "github.com/inblockio/guardian-node/internal/hashtypes"

// Metadata carries the domain id, timestamp, chain linkage, and the two
// hashes computed over it. Grounded on
// original_source/guardian-common/src/custom_types/revision/metadata.rs.
type Metadata struct {
	DomainID                 string         `json:"domain_id"`
	Timestamp                Timestamp      `json:"time_stamp"`
	PreviousVerificationHash *hashtypes.Hash `json:"previous_verification_hash,omitempty"`
	MetadataHash             hashtypes.Hash `json:"metadata_hash"`
	VerificationHash         hashtypes.Hash `json:"verification_hash"`
}
