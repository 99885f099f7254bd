// Copyright 2025 Certen Protocol
//
// Package trustseed parses the optional clients.yaml peer-trust seed: a
// local-dev/test stand-in for spec.md §6's clients.pem, listing guardian
// peers to log and pre-fetch on startup before sync has discovered them on
// its own. Grounded on the teacher's pkg/config YAML loader
// (gopkg.in/yaml.v3 + os.ReadFile), trimmed to this package's one document
// shape.
package trustseed

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/inblockio/guardian-node/internal/hashtypes"
)

// Peer is one entry of a clients.yaml seed file.
type Peer struct {
	// Address is the peer guardian's Ethereum-style address.
	Address hashtypes.Address
	// URL is the peer's RPC base URL, e.g. "https://guardian2.example:9443".
	URL string
	// CertFile is a path to the peer's PEM-encoded leaf certificate, used
	// to pin the mTLS connection before any revision chain has named it.
	CertFile string
}

type rawPeer struct {
	Address  string `yaml:"address"`
	URL      string `yaml:"url"`
	CertFile string `yaml:"cert_file"`
}

type document struct {
	Peers []rawPeer `yaml:"peers"`
}

// Load reads and parses a clients.yaml seed file. A missing file is not an
// error: seeding is always optional, so callers can unconditionally try a
// well-known path and proceed with an empty seed.
func Load(path string) ([]Peer, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("trustseed: read %s: %w", path, err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("trustseed: parse %s: %w", path, err)
	}

	peers := make([]Peer, 0, len(doc.Peers))
	for i, raw := range doc.Peers {
		if raw.URL == "" {
			return nil, fmt.Errorf("trustseed: peer %d: url is required", i)
		}
		addr, err := hashtypes.ParseAddress(raw.Address)
		if err != nil {
			return nil, fmt.Errorf("trustseed: peer %d: address: %w", i, err)
		}
		peers = append(peers, Peer{Address: addr, URL: raw.URL, CertFile: raw.CertFile})
	}
	return peers, nil
}
