// Copyright 2025 Certen Protocol
//
// Package state builds and queries the guardian's in-memory reachability
// graph over Aqua-chain revisions: which revisions exist, which are
// contracts, and which contracts make which revisions accessible to which
// users. Grounded on original_source/src/lib.rs's GuardianState/StateNode/
// ContractNode, realized with Go 1.24's weak.Pointer in place of the
// weak_table crate's WeakValueHashMap/WeakKeyHashMap.
package state

import (
	"context"
	"sync"
	"weak"

	"github.com/inblockio/guardian-node/internal/contract"
	"github.com/inblockio/guardian-node/internal/hashtypes"
	"github.com/inblockio/guardian-node/internal/revision"
)

// Poisoned is re-exported for callers that only import this package.
var Poisoned = hashtypes.Poisoned

// Storage is the subset of PKC access the state engine needs: reading a
// previously-added revision's wire form, so a new revision's claimed
// previous-hash and signature (which authenticates over the predecessor's
// hash) can be checked against it. Aqua-chain v1.2 would carry the
// predecessor's identifying hash forward on the revision itself and make
// this unnecessary; v1.1 does not.
type Storage interface {
	ReadRevision(ctx context.Context, hash hashtypes.Hash) (*revision.Revision, error)
}

// ContractInfo records a recognized contract on a specific revision: the
// parsed contract data, the revision's position in that contract's signing
// sequence, and — if the contract is now effective — the ContractNode
// it produced. Effective is the one strong reference to that ContractNode;
// every other map in this package holds it weakly, so the node disappears
// once the StateNode that declared it is torn down.
type ContractInfo struct {
	Data      *contract.Contract
	SeqNo     *uint8
	Effective *ContractNode
}

// StateNode is one revision's place in the reachability graph.
type StateNode struct {
	Hash hashtypes.Hash

	// Prev is a weak reference to the previous revision's StateNode:
	// children do not keep their parent alive. The parent keeps children
	// alive via Leafs instead, so a chain survives as long as its genesis
	// entry in genesisMap does.
	Prev weak.Pointer[StateNode]

	// Contract is non-nil when this revision's content itself parses as one
	// of the recognized contract templates.
	Contract *ContractInfo

	mu sync.Mutex
	// Shared maps an address to the contracts (by contract revision hash)
	// that make this node visible to that address. Propagated down from
	// ancestors at insertion time.
	Shared map[hashtypes.Address]*weakMap[hashtypes.Hash, ContractNode]
	// Leafs are this node's child revisions, held strongly: a node's
	// children are what keep it reachable from genesis.
	Leafs map[hashtypes.Hash]*StateNode
}

func newStateNode(hash hashtypes.Hash, prev *StateNode, ci *ContractInfo) *StateNode {
	n := &StateNode{
		Hash:     hash,
		Contract: ci,
		Shared:   make(map[hashtypes.Address]*weakMap[hashtypes.Hash, ContractNode]),
		Leafs:    make(map[hashtypes.Hash]*StateNode),
	}
	if prev != nil {
		n.Prev = weak.Make(prev)
	}
	return n
}

func (n *StateNode) sharedFor(addr hashtypes.Address) *weakMap[hashtypes.Hash, ContractNode] {
	n.mu.Lock()
	defer n.mu.Unlock()
	m, ok := n.Shared[addr]
	if !ok {
		m = newWeakMap[hashtypes.Hash, ContractNode]()
		n.Shared[addr] = m
	}
	return m
}

func (n *StateNode) sharedAddresses() []hashtypes.Address {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]hashtypes.Address, 0, len(n.Shared))
	for a := range n.Shared {
		out = append(out, a)
	}
	return out
}

func (n *StateNode) addLeaf(child *StateNode) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Leafs[child.Hash] = child
}

func (n *StateNode) removeLeaf(hash hashtypes.Hash) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.Leafs, hash)
}

func (n *StateNode) leafCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.Leafs)
}

func (n *StateNode) leafValues() []*StateNode {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]*StateNode, 0, len(n.Leafs))
	for _, c := range n.Leafs {
		out = append(out, c)
	}
	return out
}

// Effect is the sum of the three contracts' effect enumerations, tagging
// which member is populated.
type Effect struct {
	AccessAgreement   *contract.AccessAgreementEffect
	GuardianServitude *contract.GuardianServitudeEffect
	TlsIdentityClaim  *contract.TlsIdentityClaimEffect
}

// ContractNode is an effective contract: it exists only once its signing
// sequence matches one of the contract's acceptance patterns (a partial
// sequence for some effects, such as a Suggested GuardianServitude), and it
// tracks every currently-latest revision still governed by it.
type ContractNode struct {
	Contract *contract.Contract
	Effect   Effect

	mu      sync.Mutex
	latests *weakMap[hashtypes.Hash, StateNode]
}

func newContractNode(c *contract.Contract, effect Effect) *ContractNode {
	return &ContractNode{Contract: c, Effect: effect, latests: newWeakMap[hashtypes.Hash, StateNode]()}
}

// Latests returns the hashes of the revisions currently at the tip of a
// branch this contract governs.
func (cn *ContractNode) Latests() []hashtypes.Hash {
	var out []hashtypes.Hash
	cn.latests.each(func(h hashtypes.Hash, _ *StateNode) {
		out = append(out, h)
	})
	return out
}

// guardianServitudeEntry tracks which user a guardian currently serves, and
// a weak reference to the contract that grants it — once that contract is
// torn down the servitude no longer holds.
type guardianServitudeEntry struct {
	user     hashtypes.Address
	contract weak.Pointer[ContractNode]
}

// guardianIdentityEntry tracks which guardian/URL a TLS certificate belongs
// to. Go has no weak map *keys* (unlike weak_table's WeakKeyHashMap), so
// this is realized as a strong map explicitly pruned when the owning
// TlsIdentityClaim's StateNode is torn down, rather than left to a GC weak
// key. See Remove.
type guardianIdentityEntry struct {
	guardian hashtypes.Address
	host     string
	port     uint16
}

// GuardianState is the guardian's whole reachability graph: every known
// revision, every recognized contract, and the indices used to answer
// "what can user U see of owner O's chains" without walking the graph.
type GuardianState struct {
	storage Storage

	mu          sync.Mutex
	genesisMap  map[hashtypes.Hash]*StateNode
	stateForest *weakMap[hashtypes.Hash, StateNode]

	contracts *weakMap[hashtypes.Hash, ContractNode]

	sharedRevsMu sync.Mutex
	sharedRevs   map[hashtypes.Hash]*weakMap[sharedRevKey, ContractNode]

	servitudeMu       sync.Mutex
	guardianServitude map[hashtypes.Address]guardianServitudeEntry

	identitiesMu       sync.Mutex
	guardianIdentities map[string]guardianIdentityEntry // keyed by raw cert DER bytes

	userLookup map[hashtypes.Address]*weakMap[hashtypes.Hash, ContractNode]
}

type sharedRevKey struct {
	addr         hashtypes.Address
	contractHash hashtypes.Hash
}

// New returns an empty guardian state backed by storage (used only to fetch
// a previous revision's v1.1 authentication artifacts during Add).
func New(storage Storage) *GuardianState {
	return &GuardianState{
		storage:            storage,
		genesisMap:         make(map[hashtypes.Hash]*StateNode),
		stateForest:        newWeakMap[hashtypes.Hash, StateNode](),
		contracts:          newWeakMap[hashtypes.Hash, ContractNode](),
		sharedRevs:         make(map[hashtypes.Hash]*weakMap[sharedRevKey, ContractNode]),
		guardianServitude:  make(map[hashtypes.Address]guardianServitudeEntry),
		guardianIdentities: make(map[string]guardianIdentityEntry),
		userLookup:         make(map[hashtypes.Address]*weakMap[hashtypes.Hash, ContractNode]),
	}
}

// GetNode resolves hash to its StateNode, if one is currently reachable.
func (s *GuardianState) GetNode(hash hashtypes.Hash) (*StateNode, bool) {
	return s.stateForest.get(hash)
}

func (s *GuardianState) sharedRevsFor(pageHash hashtypes.Hash) *weakMap[sharedRevKey, ContractNode] {
	s.sharedRevsMu.Lock()
	defer s.sharedRevsMu.Unlock()
	m, ok := s.sharedRevs[pageHash]
	if !ok {
		m = newWeakMap[sharedRevKey, ContractNode]()
		s.sharedRevs[pageHash] = m
	}
	return m
}

func (s *GuardianState) userLookupFor(user hashtypes.Address) *weakMap[hashtypes.Hash, ContractNode] {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.userLookup[user]
	if !ok {
		m = newWeakMap[hashtypes.Hash, ContractNode]()
		s.userLookup[user] = m
	}
	return m
}
