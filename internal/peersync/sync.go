// Copyright 2025 Certen Protocol
//
// Package peersync keeps a guardian's reachability graph current: it polls
// its own local storage for inserts/deletes the state engine hasn't seen
// yet, and runs one task per known peer guardian pulling whatever that peer
// is willing to disclose. Grounded on the teacher's pkg/batch/scheduler.go
// ticker+context run-loop idiom, generalized from one timer to a
// discover/spawn/reap supervisor over a dynamic peer set.
package peersync

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/inblockio/guardian-node/internal/hashtypes"
	"github.com/inblockio/guardian-node/internal/metrics"
	"github.com/inblockio/guardian-node/internal/revision"
	"github.com/inblockio/guardian-node/internal/rpc"
	"github.com/inblockio/guardian-node/internal/state"
	"github.com/inblockio/guardian-node/internal/storage"
)

const (
	peerDiscoverInterval = 3 * time.Second
	peerPullInterval     = 3 * time.Second
	localPollInterval    = 1 * time.Second
)

// Manager discovers peer guardians from the state engine's live
// TlsIdentityClaims and keeps one sync task running per peer, alongside a
// single loop that ingests this node's own local storage changes.
type Manager struct {
	state    *state.GuardianState
	storage  *storage.Client
	identity tls.Certificate
	self     hashtypes.Address
	metrics  *metrics.Registry
	logger   *log.Logger

	mu    sync.Mutex
	tasks map[hashtypes.Address]context.CancelFunc

	lastLocal revision.Timestamp
}

// New returns a Manager for self, using identity as the mTLS client
// certificate presented to every peer.
func New(st *state.GuardianState, stor *storage.Client, identity tls.Certificate, self hashtypes.Address, reg *metrics.Registry, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.New(log.Writer(), "[peersync] ", log.LstdFlags)
	}
	return &Manager{
		state:     st,
		storage:   stor,
		identity:  identity,
		self:      self,
		metrics:   reg,
		logger:    logger,
		tasks:     make(map[hashtypes.Address]context.CancelFunc),
		lastLocal: revision.NewTimestamp(time.Now()),
	}
}

// Run blocks, running the peer-discovery loop and the local-change poll
// until ctx is cancelled. Every spawned peer task is stopped before Run
// returns.
func (m *Manager) Run(ctx context.Context) {
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		m.discoverLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		m.localPollLoop(ctx)
	}()

	wg.Wait()

	m.mu.Lock()
	for _, cancel := range m.tasks {
		cancel()
	}
	m.mu.Unlock()
}

// InitialSweep builds the reachability graph from scratch out of every
// chain currently in local storage, ingesting oldest-to-newest so each
// revision's previous hash is already in state by the time it is added.
// Grounded on original_source/src/lib.rs's Campfire build/burn: a guardian's
// first run has no state at all, only whatever the local PKC already holds.
func InitialSweep(ctx context.Context, st *state.GuardianState, stor *storage.Client, reg *metrics.Registry, logger *log.Logger) error {
	latests, err := stor.ListLatest(ctx)
	if err != nil {
		return fmt.Errorf("peersync: initial sweep: list_latest: %w", err)
	}

	for _, leaf := range latests {
		if _, ok := st.GetNode(leaf); ok {
			continue
		}
		if err := sweepBranch(ctx, st, stor, reg, leaf); err != nil {
			logger.Printf("initial sweep: branch %s: %v", leaf, err)
			reg.PeerSyncErrors.WithLabelValues("initial_sweep").Inc()
		}
	}
	return nil
}

func sweepBranch(ctx context.Context, st *state.GuardianState, stor *storage.Client, reg *metrics.Registry, leaf hashtypes.Hash) error {
	branch, err := stor.GetBranch(ctx, leaf)
	if err != nil {
		return fmt.Errorf("get_branch: %w", err)
	}

	var missing []hashtypes.Hash
	for _, h := range branch.Hashes {
		if _, ok := st.GetNode(h); ok {
			break
		}
		missing = append(missing, h)
	}

	for i := len(missing) - 1; i >= 0; i-- {
		hash := missing[i]
		rev, err := stor.GetRevision(ctx, hash)
		if err != nil {
			return fmt.Errorf("get_revision %s: %w", hash, err)
		}
		if _, err := st.Add(ctx, hash, rev); err != nil {
			reg.RevisionsRejected.WithLabelValues("initial_sweep").Inc()
			return fmt.Errorf("add %s: %w", hash, err)
		}
		reg.RevisionsIngested.Inc()
	}
	return nil
}

// discoverLoop spawns a peerTask for every newly-seen guardian and stops the
// task for any guardian state.Peers no longer reports (its TlsIdentityClaim
// was revoked or superseded).
func (m *Manager) discoverLoop(ctx context.Context) {
	ticker := time.NewTicker(peerDiscoverInterval)
	defer ticker.Stop()

	for {
		m.reconcilePeers(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (m *Manager) reconcilePeers(ctx context.Context) {
	current := m.state.Peers(m.self)
	seen := make(map[hashtypes.Address]struct{}, len(current))

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, peer := range current {
		seen[peer.Guardian] = struct{}{}
		if _, running := m.tasks[peer.Guardian]; running {
			continue
		}

		peerCtx, cancel := context.WithCancel(ctx)
		m.tasks[peer.Guardian] = cancel
		m.metrics.PeerTasksActive.Inc()
		go func(peer state.PeerInfo) {
			defer func() {
				m.mu.Lock()
				delete(m.tasks, peer.Guardian)
				m.mu.Unlock()
				m.metrics.PeerTasksActive.Dec()
			}()
			m.peerTask(peerCtx, peer)
		}(peer)
	}

	for guardian, cancel := range m.tasks {
		if _, ok := seen[guardian]; !ok {
			cancel()
		}
	}
}

// peerTask pulls list/get_branch/get_revision from one peer on a fixed
// interval, verifying and ingesting anything new, until ctx is cancelled.
func (m *Manager) peerTask(ctx context.Context, peer state.PeerInfo) {
	client, err := rpc.NewClient(peer.URL, m.identity, peer.Cert)
	if err != nil {
		m.logger.Printf("peer %s: build client: %v", peer.Guardian, err)
		m.metrics.PeerSyncErrors.WithLabelValues("dial").Inc()
		return
	}

	ticker := time.NewTicker(peerPullInterval)
	defer ticker.Stop()

	for {
		if err := m.pullFrom(ctx, client, peer); err != nil {
			m.logger.Printf("peer %s: %v", peer.Guardian, err)
			m.metrics.PeerSyncErrors.WithLabelValues("pull").Inc()
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (m *Manager) pullFrom(ctx context.Context, client *rpc.Client, peer state.PeerInfo) error {
	latests, err := client.List(ctx)
	if err != nil {
		return fmt.Errorf("list: %w", err)
	}

	for _, leaf := range latests {
		if _, ok := m.state.GetNode(leaf); ok {
			continue
		}
		if err := m.pullBranch(ctx, client, leaf); err != nil {
			m.logger.Printf("peer %s: branch %s: %v", peer.Guardian, leaf, err)
			m.metrics.PeerSyncErrors.WithLabelValues("branch").Inc()
		}
	}
	return nil
}

// pullBranch fetches the leaf-first hash sequence ending in leaf and ingests
// whichever prefix of it this node doesn't already have, oldest first (Add
// requires a revision's previous hash to already be in state).
func (m *Manager) pullBranch(ctx context.Context, client *rpc.Client, leaf hashtypes.Hash) error {
	branchCtx, hashes, err := client.GetBranch(ctx, leaf)
	if err != nil {
		return fmt.Errorf("get_branch: %w", err)
	}

	var missing []hashtypes.Hash
	for _, h := range hashes {
		if _, ok := m.state.GetNode(h); ok {
			break
		}
		missing = append(missing, h)
	}

	for i := len(missing) - 1; i >= 0; i-- {
		hash := missing[i]
		rev, err := client.GetRevision(ctx, hash)
		if err != nil {
			return fmt.Errorf("get_revision %s: %w", hash, err)
		}

		if _, err := m.state.Add(ctx, hash, rev); err != nil {
			m.metrics.RevisionsRejected.WithLabelValues("peer_sync").Inc()
			return fmt.Errorf("add %s: %w", hash, err)
		}
		if err := m.storage.Import(ctx, branchCtx, rev, true); err != nil {
			return fmt.Errorf("import %s: %w", hash, err)
		}
		m.metrics.RevisionsIngested.Inc()
	}

	return nil
}

// localPollLoop watches this node's own storage for inserts/deletes other
// writers (the wiki UI, a direct API client) made, feeding them into the
// state engine the same way a peer's revisions are.
func (m *Manager) localPollLoop(ctx context.Context) {
	ticker := time.NewTicker(localPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.pollLocal(ctx)
		}
	}
}

func (m *Manager) pollLocal(ctx context.Context) {
	changes, err := m.storage.RecentChanges(ctx, m.lastLocal, true)
	if err != nil {
		m.logger.Printf("local poll: %v", err)
		m.metrics.PeerSyncErrors.WithLabelValues("local_poll").Inc()
		return
	}

	for _, change := range changes {
		switch change.Type {
		case "delete":
			if _, ok := m.state.Remove(change.Hash); ok {
				m.metrics.RevisionsRemoved.Inc()
			}
		default:
			if _, ok := m.state.GetNode(change.Hash); ok {
				continue
			}
			rev, err := m.storage.GetRevision(ctx, change.Hash)
			if err != nil {
				m.logger.Printf("local poll: fetch %s: %v", change.Hash, err)
				continue
			}
			if _, err := m.state.Add(ctx, change.Hash, rev); err != nil {
				m.logger.Printf("local poll: add %s: %v", change.Hash, err)
				m.metrics.RevisionsRejected.WithLabelValues("local").Inc()
				continue
			}
			m.metrics.RevisionsIngested.Inc()
		}
	}

	m.lastLocal = revision.NewTimestamp(time.Now())
}
