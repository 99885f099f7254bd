// Copyright 2025 Certen Protocol

package state

import (
	"context"
	"fmt"
	"weak"

	"github.com/inblockio/guardian-node/internal/contract"
	"github.com/inblockio/guardian-node/internal/hashtypes"
	"github.com/inblockio/guardian-node/internal/revision"
	"github.com/inblockio/guardian-node/internal/verifier"
)

// Add verifies and ingests rev, identified by hash, into the reachability
// graph. It is idempotent: adding a hash already present verifies rev again
// and then returns the existing node.
func (s *GuardianState) Add(ctx context.Context, hash hashtypes.Hash, rev *revision.Revision) (*StateNode, error) {
	var prevNode *StateNode
	var prevWire *revision.Revision
	if claimed, ok := rev.PreviousHash(); ok {
		node, ok := s.GetNode(claimed)
		if !ok {
			return nil, ErrPrevNotInState
		}
		wire, err := s.storage.ReadRevision(ctx, claimed)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorage, err)
		}
		prevNode, prevWire = node, wire
	}

	integrity := verifier.Verify(rev, prevWire).IgnoreAbsent()
	if !integrity.IsEmpty() {
		return nil, fmt.Errorf("%w [%s]: %s", ErrVerification, hash, integrity)
	}

	if already, ok := s.GetNode(hash); ok {
		return already, nil
	}

	// The contract sequence number is keyed off this revision's own signer
	// (not its predecessor's): rev physically carries its own signature,
	// and only pairs with prevNode for chain identity.
	var signer *hashtypes.Address
	if prevNode != nil && rev.Signature != nil {
		addr, err := rev.Signature.SignerAddress()
		if err == nil {
			signer = &addr
		}
	}

	contractInfo := s.recognizeContract(hash, &rev.Content, signer, prevNode)

	node := newStateNode(hash, prevNode, contractInfo)

	// Inherit the parent's shared-contract map: every address/contract that
	// could see the parent can, for now, see this child too.
	if prevNode != nil {
		for _, addr := range prevNode.sharedAddresses() {
			prevNode.sharedFor(addr).cloneInto(node.sharedFor(addr))
		}
	}

	s.mu.Lock()
	if prevNode == nil {
		s.genesisMap[hash] = node
	} else {
		prevNode.addLeaf(node)
	}
	s.stateForest.set(hash, node)
	s.mu.Unlock()

	// Revisions sharing us existed before we did: a contract covering a page
	// that hadn't been added yet.
	s.sharedRevsFor(hash).each(func(key sharedRevKey, cn *ContractNode) {
		s.addContractTo(key.contractHash, cn, key.addr, hash)
	})

	if contractInfo != nil && contractInfo.Effective != nil {
		s.applyEffect(hash, node, contractInfo.Effective)
	}

	for _, addr := range node.sharedAddresses() {
		node.sharedFor(addr).each(func(_ hashtypes.Hash, cn *ContractNode) {
			if prevNode != nil {
				cn.latests.remove(prevNode.Hash)
			}
			cn.latests.set(hash, node)
		})
	}

	return node, nil
}

// recognizeContract parses content as a contract (if it is one), computes
// its sequence number, and — if the contract's whole signing chain now
// matches an acceptance pattern — builds and registers the resulting
// ContractNode.
func (s *GuardianState) recognizeContract(hash hashtypes.Hash, content *revision.Content, signer *hashtypes.Address, prevNode *StateNode) *ContractInfo {
	c, err := contract.FromRevision(content)
	if err != nil {
		return nil
	}
	seq := c.Sequenced()
	if seq == nil {
		return nil
	}
	seqNo := seq.SequenceNumber(signer)

	info := &ContractInfo{Data: c, SeqNo: seqNo}

	effect, ok := s.computeContractEffect(c, seqNo, prevNode)
	if !ok {
		return info
	}

	node := newContractNode(c, effect)
	s.contracts.set(hash, node)
	info.Effective = node
	return info
}

// computeContractEffect walks from the new revision back through every
// ancestor, requiring each to carry the identical contract declaration, and
// evaluates the resulting newest-first sequence-number pattern.
func (s *GuardianState) computeContractEffect(c *contract.Contract, selfSeq *uint8, prevNode *StateNode) (Effect, bool) {
	seq := []*uint8{selfSeq}
	cur := prevNode
	for cur != nil {
		if cur.Contract == nil || !contractsEqual(cur.Contract.Data, c) {
			return Effect{}, false
		}
		seq = append(seq, cur.Contract.SeqNo)
		cur = cur.Prev.Value()
	}

	switch {
	case c.AccessAgreement != nil:
		if e := c.AccessAgreement.IsEffective(seq); e != nil {
			return Effect{AccessAgreement: e}, true
		}
	case c.GuardianServitude != nil:
		if e := c.GuardianServitude.IsEffective(seq); e != nil {
			return Effect{GuardianServitude: e}, true
		}
	case c.TlsIdentityClaim != nil:
		if e := c.TlsIdentityClaim.IsEffective(seq); e != nil {
			return Effect{TlsIdentityClaim: e}, true
		}
	}
	return Effect{}, false
}

// addContractTo propagates a now-effective contract (contractHash, node)
// onto every revision reachable from pageHash's node: up to the root (so a
// later descendant of the shared page also inherits it via its own Add
// call's parent-cloning step) and down through every existing descendant,
// registering each current leaf as one of the contract's latests.
func (s *GuardianState) addContractTo(contractHash hashtypes.Hash, node *ContractNode, addr hashtypes.Address, pageHash hashtypes.Hash) {
	s.sharedRevsFor(pageHash).set(sharedRevKey{addr: addr, contractHash: contractHash}, node)

	root, ok := s.GetNode(pageHash)
	if !ok {
		return
	}

	for p := root.Prev.Value(); p != nil; p = p.Prev.Value() {
		p.sharedFor(addr).set(contractHash, node)
	}

	stack := []*StateNode{root}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		cur.sharedFor(addr).set(contractHash, node)

		leafs := cur.leafValues()
		if len(leafs) == 0 {
			node.latests.set(cur.Hash, cur)
			continue
		}
		stack = append(stack, leafs...)
	}
}

// applyEffect dispatches a newly-effective contract to the indices its
// effect type makes it relevant to: accessible-latests lookups for
// AccessAgreement, servitude assignment for GuardianServitude, identity
// claim for TlsIdentityClaim.
func (s *GuardianState) applyEffect(hash hashtypes.Hash, node *StateNode, cn *ContractNode) {
	switch {
	case cn.Effect.AccessAgreement != nil:
		aa := cn.Contract.AccessAgreement
		switch *cn.Effect.AccessAgreement {
		case contract.AccessAgreementGranted, contract.AccessAgreementAccepted:
			for _, page := range aa.Pages {
				s.addContractTo(hash, cn, aa.Receiver, page.TranscludedHash)
			}
			s.userLookupFor(aa.Receiver).set(hash, cn)
		}
		switch *cn.Effect.AccessAgreement {
		case contract.AccessAgreementOffered:
			s.addContractTo(hash, cn, aa.Receiver, node.Hash)
			s.userLookupFor(aa.Receiver).set(hash, cn)
		case contract.AccessAgreementAccepted:
			s.addContractTo(hash, cn, aa.Sender, node.Hash)
			s.userLookupFor(aa.Sender).set(hash, cn)
		}

	case cn.Effect.GuardianServitude != nil:
		gs := cn.Contract.GuardianServitude
		if *cn.Effect.GuardianServitude == contract.GuardianServitudeAccepted {
			s.servitudeMu.Lock()
			existing, ok := s.guardianServitude[gs.Guardian]
			if ok && !existing.user.IsPoisoned() && existing.contract.Value() == nil {
				ok = false // the contract behind this entry has been collected
			}
			switch {
			case ok && existing.user != gs.User && !existing.user.IsPoisoned():
				s.guardianServitude[gs.Guardian] = guardianServitudeEntry{user: hashtypes.Poisoned}
			case !ok:
				s.guardianServitude[gs.Guardian] = guardianServitudeEntry{user: gs.User, contract: weak.Make(cn)}
			}
			s.servitudeMu.Unlock()
		}

	case cn.Effect.TlsIdentityClaim != nil:
		tic := cn.Contract.TlsIdentityClaim
		if *cn.Effect.TlsIdentityClaim == contract.TlsIdentityClaimed {
			s.identitiesMu.Lock()
			key := string(tic.Cert)
			existing, ok := s.guardianIdentities[key]
			if ok && existing.guardian != tic.Guardian {
				s.guardianIdentities[key] = guardianIdentityEntry{guardian: hashtypes.Poisoned}
			} else if !ok {
				s.guardianIdentities[key] = guardianIdentityEntry{guardian: tic.Guardian, host: tic.Host, port: tic.Port}
			}
			s.identitiesMu.Unlock()
		}
	}
}
