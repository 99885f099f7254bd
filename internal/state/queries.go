// Copyright 2025 Certen Protocol

package state

import (
	"strconv"

	"github.com/inblockio/guardian-node/internal/contract"
	"github.com/inblockio/guardian-node/internal/hashtypes"
)

// AccessibleLatests returns the hashes currently visible to user on owner's
// chains: the leaves of every AccessAgreement granted/accepted by owner to
// user, plus the contract hash itself for an Offered/Accepted agreement (so
// the counterparty can at least see that the negotiation happened).
// Grounded on original_source/src/lib.rs's accessible_latests.
func (s *GuardianState) AccessibleLatests(user, owner hashtypes.Address) []hashtypes.Hash {
	seen := make(map[hashtypes.Hash]struct{})
	var out []hashtypes.Hash
	add := func(h hashtypes.Hash) {
		if _, ok := seen[h]; ok {
			return
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}

	s.userLookupFor(user).each(func(contractHash hashtypes.Hash, cn *ContractNode) {
		aa := cn.Contract.AccessAgreement
		if aa == nil || cn.Effect.AccessAgreement == nil {
			return
		}
		switch *cn.Effect.AccessAgreement {
		case contract.AccessAgreementGranted, contract.AccessAgreementAccepted:
			if aa.Sender == owner {
				for _, h := range cn.Latests() {
					add(h)
				}
			}
		}
		switch *cn.Effect.AccessAgreement {
		case contract.AccessAgreementOffered:
			if aa.Sender == owner {
				add(contractHash)
			}
		case contract.AccessAgreementAccepted:
			if aa.Receiver == owner {
				add(contractHash)
			}
		}
	})

	return out
}

// RevAccessible reports whether hash is currently visible to user on owner's
// chain, returning the underlying StateNode if so. Only an AccessAgreement
// whose sender/receiver align with (user, owner) contributes; servitude and
// identity-claim contracts never grant revision visibility.
func (s *GuardianState) RevAccessible(user hashtypes.Address, hash hashtypes.Hash, owner hashtypes.Address) (*StateNode, bool) {
	node, ok := s.GetNode(hash)
	if !ok {
		return nil, false
	}

	var found bool
	node.sharedFor(user).each(func(_ hashtypes.Hash, cn *ContractNode) {
		if found {
			return
		}
		aa := cn.Contract.AccessAgreement
		if aa == nil {
			return
		}
		if aa.Sender == owner && aa.Receiver == user {
			found = true
		}
	})
	if !found {
		return nil, false
	}
	return node, true
}

// AccessibleBranch returns the leaf-first sequence of hashes from hash back
// to genesis, provided RevAccessible(user, hash, owner) holds.
func (s *GuardianState) AccessibleBranch(user hashtypes.Address, hash hashtypes.Hash, owner hashtypes.Address) ([]hashtypes.Hash, bool) {
	node, ok := s.RevAccessible(user, hash, owner)
	if !ok {
		return nil, false
	}

	var out []hashtypes.Hash
	for cur := node; cur != nil; cur = cur.Prev.Value() {
		out = append(out, cur.Hash)
	}
	return out, true
}

// GuardianServitudeFor returns the user a guardian currently serves, or
// false if there is no live, unpoisoned servitude for it.
func (s *GuardianState) GuardianServitudeFor(guardian hashtypes.Address) (hashtypes.Address, bool) {
	s.servitudeMu.Lock()
	entry, ok := s.guardianServitude[guardian]
	s.servitudeMu.Unlock()
	if !ok || entry.user.IsPoisoned() {
		return hashtypes.Address{}, false
	}
	if entry.contract.Value() == nil {
		return hashtypes.Address{}, false
	}
	return entry.user, true
}

// GuardianIdentityFor resolves a raw certificate DER blob to the guardian
// address that claimed it, or false if there is no live, unpoisoned claim.
func (s *GuardianState) GuardianIdentityFor(cert []byte) (hashtypes.Address, bool) {
	s.identitiesMu.Lock()
	entry, ok := s.guardianIdentities[string(cert)]
	s.identitiesMu.Unlock()
	if !ok || entry.guardian.IsPoisoned() {
		return hashtypes.Address{}, false
	}
	return entry.guardian, true
}

// PeerInfo is a snapshot of one live guardian identity: its address, raw
// certificate bytes, and the URL it is reachable on.
type PeerInfo struct {
	Guardian hashtypes.Address
	Cert     []byte
	URL      string
}

// Peers returns every guardian identity currently known (excluding self),
// for the peer-sync loop to discover who to replicate from.
func (s *GuardianState) Peers(self hashtypes.Address) []PeerInfo {
	s.identitiesMu.Lock()
	defer s.identitiesMu.Unlock()
	var out []PeerInfo
	for certBytes, entry := range s.guardianIdentities {
		if entry.guardian.IsPoisoned() || entry.guardian == self {
			continue
		}
		out = append(out, PeerInfo{
			Guardian: entry.guardian,
			Cert:     []byte(certBytes),
			URL:      "https://" + entry.host + ":" + strconv.Itoa(int(entry.port)),
		})
	}
	return out
}

// TrustedCertificates returns the raw DER bytes of every certificate
// currently backing a live, unpoisoned TlsIdentityClaim — the mTLS server's
// trust anchor set.
func (s *GuardianState) TrustedCertificates() [][]byte {
	s.identitiesMu.Lock()
	defer s.identitiesMu.Unlock()
	out := make([][]byte, 0, len(s.guardianIdentities))
	for certBytes, entry := range s.guardianIdentities {
		if entry.guardian.IsPoisoned() {
			continue
		}
		out = append(out, []byte(certBytes))
	}
	return out
}

// GuardianURLFor resolves a raw certificate DER blob to the "https://host:port"
// URL the guardian that claimed it is reachable on.
func (s *GuardianState) GuardianURLFor(cert []byte) (string, bool) {
	s.identitiesMu.Lock()
	entry, ok := s.guardianIdentities[string(cert)]
	s.identitiesMu.Unlock()
	if !ok || entry.guardian.IsPoisoned() {
		return "", false
	}
	return "https://" + entry.host + ":" + strconv.Itoa(int(entry.port)), true
}
