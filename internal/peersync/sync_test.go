// Copyright 2025 Certen Protocol

package peersync

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/inblockio/guardian-node/internal/hashtypes"
	"github.com/inblockio/guardian-node/internal/metrics"
	"github.com/inblockio/guardian-node/internal/revision"
	"github.com/inblockio/guardian-node/internal/state"
	"github.com/inblockio/guardian-node/internal/storage"
	"github.com/inblockio/guardian-node/internal/verifier"
)

// memStorage is a minimal state.Storage backed by the same revision set the
// test's fake PKC server serves, so Add's prev-lookup succeeds.
type memStorage struct {
	revs map[hashtypes.Hash]*revision.Revision
}

func (m *memStorage) ReadRevision(_ context.Context, hash hashtypes.Hash) (*revision.Revision, error) {
	rev, ok := m.revs[hash]
	if !ok {
		return nil, errNotFound
	}
	return rev, nil
}

type notFoundErr struct{}

func (notFoundErr) Error() string { return "peersync test: not found" }

var errNotFound = notFoundErr{}

func plainContent(t *testing.T, v string) revision.Content {
	t.Helper()
	m := revision.NewOrderedMap()
	m.Set("a", v)
	return revision.Content{Fields: m, ContentHash: verifier.ContentHash(m)}
}

func buildTwoNodeChain(t *testing.T) (genesisHash, leafHash hashtypes.Hash, revs map[hashtypes.Hash]*revision.Revision) {
	t.Helper()
	revs = make(map[hashtypes.Hash]*revision.Revision)
	ts := revision.NewTimestamp(time.Now())

	content := plainContent(t, "genesis")
	metaHash := verifier.MetadataHash("Main_Page", ts, nil)
	vHash := verifier.VerificationHash(content.ContentHash, metaHash, nil, nil)
	genesis := &revision.Revision{
		Content: content,
		Metadata: revision.Metadata{
			DomainID:         "Main_Page",
			Timestamp:        ts,
			MetadataHash:     metaHash,
			VerificationHash: vHash,
		},
	}
	genesisHash = genesis.Hash()
	revs[genesisHash] = genesis

	leafContent := plainContent(t, "leaf")
	leafMetaHash := verifier.MetadataHash("Main_Page", ts, &genesisHash)
	leafVHash := verifier.VerificationHash(leafContent.ContentHash, leafMetaHash, nil, nil)
	leaf := &revision.Revision{
		Content: leafContent,
		Metadata: revision.Metadata{
			DomainID:                 "Main_Page",
			Timestamp:                ts,
			PreviousVerificationHash: &genesisHash,
			MetadataHash:             leafMetaHash,
			VerificationHash:         leafVHash,
		},
	}
	leafHash = leaf.Hash()
	revs[leafHash] = leaf

	return genesisHash, leafHash, revs
}

// newFakePKC serves just enough of the PKC HTTP surface for InitialSweep:
// one page whose latest revision is leafHash, a get_branch returning both
// hashes leaf-first, and get_revision for each.
func newFakePKC(t *testing.T, leafHash hashtypes.Hash, revs map[hashtypes.Hash]*revision.Revision) *httptest.Server {
	t.Helper()
	hashes := make([]hashtypes.Hash, 0, len(revs))
	// leaf-first: walk backward from leafHash.
	cur := revs[leafHash]
	curHash := leafHash
	for {
		hashes = append(hashes, curHash)
		prev, ok := cur.PreviousHash()
		if !ok {
			break
		}
		curHash = prev
		cur = revs[prev]
	}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api.php":
			json.NewEncoder(w).Encode(map[string]any{
				"query": map[string]any{"allpages": []map[string]any{{"pageid": 1, "title": "Main_Page"}}},
			})
		case r.URL.Path == "/rest.php/data_accounting/get_page_last_rev":
			json.NewEncoder(w).Encode(map[string]any{
				"page_title":        "Main_Page",
				"verification_hash": leafHash.String(),
			})
		case r.URL.Path == "/rest.php/data_accounting/get_branch/"+leafHash.String():
			json.NewEncoder(w).Encode(map[string]any{
				"context": map[string]any{"namespace": 0, "title": "Main_Page"},
				"hashes":  hashes,
			})
		default:
			for h, rev := range revs {
				if r.URL.Path == "/rest.php/data_accounting/get_revision/"+h.String() {
					json.NewEncoder(w).Encode(rev)
					return
				}
			}
			http.NotFound(w, r)
		}
	}))
}

func TestInitialSweepIngestsEveryChainFromStorage(t *testing.T) {
	genesisHash, leafHash, revs := buildTwoNodeChain(t)
	srv := newFakePKC(t, leafHash, revs)
	defer srv.Close()

	stor, err := storage.New(srv.URL, nil)
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	st := state.New(&memStorage{revs: revs})
	reg := metrics.New(prometheus.NewRegistry())
	logger := log.New(log.Writer(), "", 0)

	if err := InitialSweep(context.Background(), st, stor, reg, logger); err != nil {
		t.Fatalf("InitialSweep: %v", err)
	}

	if _, ok := st.GetNode(genesisHash); !ok {
		t.Error("genesis not ingested")
	}
	if _, ok := st.GetNode(leafHash); !ok {
		t.Error("leaf not ingested")
	}
}

func TestInitialSweepSkipsAlreadyKnownLeaves(t *testing.T) {
	genesisHash, leafHash, revs := buildTwoNodeChain(t)
	srv := newFakePKC(t, leafHash, revs)
	defer srv.Close()

	stor, err := storage.New(srv.URL, nil)
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	st := state.New(&memStorage{revs: revs})
	if _, err := st.Add(context.Background(), genesisHash, revs[genesisHash]); err != nil {
		t.Fatalf("Add(genesis): %v", err)
	}
	if _, err := st.Add(context.Background(), leafHash, revs[leafHash]); err != nil {
		t.Fatalf("Add(leaf): %v", err)
	}

	reg := metrics.New(prometheus.NewRegistry())
	logger := log.New(log.Writer(), "", 0)
	if err := InitialSweep(context.Background(), st, stor, reg, logger); err != nil {
		t.Fatalf("InitialSweep (idempotent): %v", err)
	}
}
