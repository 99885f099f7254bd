// Copyright 2025 Certen Protocol

package state

import "github.com/inblockio/guardian-node/internal/hashtypes"

// Remove detaches hash's StateNode from the graph, provided it has no
// children (a node with live children is still reachable and is left
// alone). Returns the node and true iff it was actually detached.
func (s *GuardianState) Remove(hash hashtypes.Hash) (*StateNode, bool) {
	node, ok := s.stateForest.get(hash)
	if !ok {
		return nil, false
	}
	if node.leafCount() != 0 {
		return node, false
	}

	if prev := node.Prev.Value(); prev != nil {
		prev.removeLeaf(hash)
		if prev.leafCount() == 0 {
			for _, addr := range prev.sharedAddresses() {
				prev.sharedFor(addr).each(func(_ hashtypes.Hash, cn *ContractNode) {
					cn.latests.set(prev.Hash, prev)
				})
			}
		}
	} else {
		s.mu.Lock()
		delete(s.genesisMap, hash)
		s.mu.Unlock()
	}

	s.stateForest.remove(hash)
	if node.Contract != nil && node.Contract.Effective != nil {
		s.tearDownContract(hash, node.Contract.Effective)
	}

	return node, true
}

// tearDownContract removes the index entries that only an explicit removal
// (not GC) should clear: guardian_identities has no weak-keyed realization
// in Go (see weakmap.go), so a TlsIdentityClaim's entry must be dropped here
// rather than relying on the ContractNode's collection. GuardianServitude's
// entry instead holds a weak.Pointer to the ContractNode and self-heals once
// it is collected, so it needs no explicit handling.
func (s *GuardianState) tearDownContract(hash hashtypes.Hash, cn *ContractNode) {
	s.contracts.remove(hash)

	if cn.Effect.TlsIdentityClaim == nil {
		return
	}
	tic := cn.Contract.TlsIdentityClaim
	s.identitiesMu.Lock()
	if existing, ok := s.guardianIdentities[string(tic.Cert)]; ok && existing.guardian == tic.Guardian {
		delete(s.guardianIdentities, string(tic.Cert))
	}
	s.identitiesMu.Unlock()
}
