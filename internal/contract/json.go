// Copyright 2025 Certen Protocol

package contract

import (
	"encoding/json"

	"golang.org/x/crypto/sha3"

	"github.com/inblockio/guardian-node/internal/hashtypes"
	"github.com/inblockio/guardian-node/internal/revision"
)

func decodeJSON(s string, v any) error {
	return json.Unmarshal([]byte(s), v)
}

func encodeJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic("contract: marshal of internal transclusion list failed: " + err.Error())
	}
	return string(b)
}

// contentHashOf mirrors internal/verifier.ContentHash without importing the
// verifier package: SHA3-512 over every content value, in key order.
func contentHashOf(fields *revision.OrderedMap) hashtypes.Hash {
	h := sha3.New512()
	for _, v := range fields.Values() {
		h.Write([]byte(v))
	}
	var out hashtypes.Hash
	copy(out[:], h.Sum(nil))
	return out
}
