// Copyright 2025 Certen Protocol

package state

import (
	"reflect"

	"github.com/inblockio/guardian-node/internal/contract"
)

// contractsEqual reports whether a and b describe the exact same contract
// declaration. A contract's signing chain is a dedicated page whose every
// revision re-states identical contract content, so structural equality is
// what ties a sequence of seqno-bearing revisions back to one contract.
//
// No pack library offers value equality for arbitrary structs; reflect is
// stdlib's own answer to this and is the right tool here, matching what the
// derived PartialEq on the contract structs does in the original.
func contractsEqual(a, b *contract.Contract) bool {
	if a == nil || b == nil {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}
