// Copyright 2025 Certen Protocol

package revision

import (
	"github.com/inblockio/guardian-node/internal/hashtypes"
)

// Content is a revision's body: an ordered field map, an optional inline
// file blob, and the content_hash covering every value in key order.
// Grounded on original_source/guardian-common/src/custom_types/revision/content.rs.
type Content struct {
	Fields      *OrderedMap `json:"content"`
	File        []byte      `json:"file,omitempty"`
	ContentHash hashtypes.Hash `json:"content_hash"`
}

// FileHashKey is the well-known content field naming the hash of the inline
// file blob, when one is attached.
const FileHashKey = "file_hash"
