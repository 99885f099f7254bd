// Copyright 2025 Certen Protocol

package rpc

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/inblockio/guardian-node/internal/hashtypes"
	"github.com/inblockio/guardian-node/internal/revision"
	"github.com/inblockio/guardian-node/internal/storage"
)

// Client calls another guardian's mTLS RPC surface. One Client is built per
// peer, pinned to that peer's own certificate as its sole trust anchor (the
// same discipline the server uses in reverse) so a compromised third party
// can't impersonate a known peer even if it otherwise holds a valid chain.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient dials peerURL using identity as this guardian's own client
// certificate, trusting only peerCert (the DER bytes recorded against that
// guardian's TlsIdentityClaim) as the expected server certificate.
func NewClient(peerURL string, identity tls.Certificate, peerCert []byte) (*Client, error) {
	want, err := x509.ParseCertificate(peerCert)
	if err != nil {
		return nil, fmt.Errorf("rpc: client: parse peer certificate: %w", err)
	}

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{identity},
		// VerifyPeerCertificate pins to the specific certificate recorded for
		// this guardian rather than chain-of-trust verification: the trust
		// decision already happened when the TlsIdentityClaim became
		// effective, so InsecureSkipVerify plus an exact-match check is the
		// correct tool, not a shortcut around one.
		InsecureSkipVerify: true,
		VerifyPeerCertificate: func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			if len(rawCerts) == 0 {
				return fmt.Errorf("rpc: client: no peer certificate presented")
			}
			if !want.Equal(mustParse(rawCerts[0])) {
				return fmt.Errorf("rpc: client: peer certificate does not match pinned identity")
			}
			return nil
		},
	}

	return &Client{
		httpClient: &http.Client{
			Transport: &http.Transport{TLSClientConfig: tlsConfig},
			Timeout:   30 * time.Second,
		},
		baseURL: peerURL,
	}, nil
}

func mustParse(der []byte) *x509.Certificate {
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil
	}
	return cert
}

// List fetches the hashes currently visible to this guardian's served user
// on the peer's admin user's chains.
func (c *Client) List(ctx context.Context) ([]hashtypes.Hash, error) {
	var out []hashtypes.Hash
	if err := c.getJSON(ctx, "/list", &out); err != nil {
		return nil, fmt.Errorf("rpc: list: %w", err)
	}
	return out, nil
}

// getBranchResult mirrors the server's getBranchResponse wire shape.
type getBranchResult struct {
	Metadata storage.BranchContext `json:"metadata"`
	Hashes   []hashtypes.Hash      `json:"hashes"`
}

// GetBranch fetches the leaf-first hash sequence and page context backing
// hash, as the peer's server is willing to disclose it.
func (c *Client) GetBranch(ctx context.Context, hash hashtypes.Hash) (storage.BranchContext, []hashtypes.Hash, error) {
	var out getBranchResult
	if err := c.getJSON(ctx, "/get_branch?hash="+hash.String(), &out); err != nil {
		return storage.BranchContext{}, nil, fmt.Errorf("rpc: get_branch %s: %w", hash, err)
	}
	return out.Metadata, out.Hashes, nil
}

// GetRevision fetches the full revision body identified by hash.
func (c *Client) GetRevision(ctx context.Context, hash hashtypes.Hash) (*revision.Revision, error) {
	var rev revision.Revision
	if err := c.getJSON(ctx, "/get_revision?hash="+hash.String(), &rev); err != nil {
		return nil, fmt.Errorf("rpc: get_revision %s: %w", hash, err)
	}
	return &rev, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error != "" {
			return fmt.Errorf("http %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("http %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
