// Copyright 2025 Certen Protocol
//
// Package storage is the HTTP client for the local PKC (the wiki-like
// storage backend that actually persists revisions). Grounded on
// original_source/pkc-api/src/{storage,da}.rs for the endpoint shapes and
// on the teacher's pkg/batch/peer_manager.go for the Go HTTP-client-struct
// idiom (one *http.Client, one method per endpoint, fmt.Errorf("...: %w")).
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/inblockio/guardian-node/internal/hashtypes"
	"github.com/inblockio/guardian-node/internal/revision"
)

// Client is the guardian's local PKC adapter: list latest hashes, fetch a
// branch or a single revision, poll recent changes, and push a verified
// revision back in.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *log.Logger
}

// New returns a Client talking to baseURL, with a cookie jar so a SIWE login
// session (set up by Login) is carried on every subsequent request.
func New(baseURL string, logger *log.Logger) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("storage: cookie jar: %w", err)
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[storage] ", log.LstdFlags)
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Jar: jar, Timeout: 30 * time.Second},
		logger:     logger,
	}, nil
}

// BranchContext is the wiki page context accompanying a branch fetch:
// namespace/title identify the page the chain lives on, in addition to the
// leaf-first hash sequence itself.
type BranchContext struct {
	Namespace int    `json:"namespace"`
	Title     string `json:"title"`
}

// Branch is the result of GetBranch: leaf-first revision hashes plus the
// page context they belong to.
type Branch struct {
	Context BranchContext    `json:"context"`
	Hashes  []hashtypes.Hash `json:"hashes"`
}

// RecentChange is one entry of the recent-changes feed: a revision hash and
// whether it was inserted or deleted.
type RecentChange struct {
	Hash hashtypes.Hash `json:"hash"`
	Type string         `json:"type"` // "insert" or "delete"
}

// pageInfo mirrors one entry of the MediaWiki allpages API's result.
type pageInfo struct {
	ID    int    `json:"pageid"`
	NS    int    `json:"ns"`
	Title string `json:"title"`
}

type allPagesQuery struct {
	AllPages []pageInfo `json:"allpages"`
}

type allPagesResponse struct {
	Query allPagesQuery `json:"query"`
}

type lastRevision struct {
	Title            string         `json:"page_title"`
	PageID           int            `json:"page_id"`
	RevID            int            `json:"rev_id"`
	VerificationHash hashtypes.Hash `json:"verification_hash"`
}

// ListLatest enumerates every page's current revision hash: the MediaWiki
// list-all-pages API followed by one get_page_last_rev call per page.
// Grounded on original_source/pkc-api/src/mw/allpages.rs and
// original_source/pkc-api/src/da/get_page_last_rev.rs.
func (c *Client) ListLatest(ctx context.Context) ([]hashtypes.Hash, error) {
	var pages allPagesResponse
	q := url.Values{"action": {"query"}, "list": {"allpages"}, "aplimit": {"max"}, "format": {"json"}}
	if err := c.getJSON(ctx, "/api.php", q, &pages); err != nil {
		return nil, fmt.Errorf("storage: list_latest: allpages: %w", err)
	}

	var out []hashtypes.Hash
	for _, page := range pages.Query.AllPages {
		var rev lastRevision
		q := url.Values{"page_title": {page.Title}}
		if err := c.getJSON(ctx, "/rest.php/data_accounting/get_page_last_rev", q, &rev); err != nil {
			c.logger.Printf("list_latest: skipping %q: %v", page.Title, err)
			continue
		}
		out = append(out, rev.VerificationHash)
	}
	return out, nil
}

// GetBranch fetches the leaf-first hash sequence and page context for the
// chain ending in hash.
func (c *Client) GetBranch(ctx context.Context, hash hashtypes.Hash) (*Branch, error) {
	var branch Branch
	path := "/rest.php/data_accounting/get_branch/" + hash.String()
	if err := c.getJSON(ctx, path, nil, &branch); err != nil {
		return nil, fmt.Errorf("storage: get_branch %s: %w", hash, err)
	}
	return &branch, nil
}

// GetRevision fetches the full revision body identified by hash.
func (c *Client) GetRevision(ctx context.Context, hash hashtypes.Hash) (*revision.Revision, error) {
	var rev revision.Revision
	path := "/rest.php/data_accounting/get_revision/" + hash.String()
	if err := c.getJSON(ctx, path, nil, &rev); err != nil {
		return nil, fmt.Errorf("storage: get_revision %s: %w", hash, err)
	}
	return &rev, nil
}

// ReadRevision implements internal/state.Storage.
func (c *Client) ReadRevision(ctx context.Context, hash hashtypes.Hash) (*revision.Revision, error) {
	return c.GetRevision(ctx, hash)
}

// RecentChanges lists every insert/delete since the given wire-format
// timestamp. includeDeleted controls whether deletions are reported at all.
func (c *Client) RecentChanges(ctx context.Context, since revision.Timestamp, includeDeleted bool) ([]RecentChange, error) {
	var out []RecentChange
	q := url.Values{
		"since":           {since.String()},
		"include_deleted": {fmt.Sprintf("%t", includeDeleted)},
	}
	if err := c.getJSON(ctx, "/rest.php/data_accounting/recent_changes", q, &out); err != nil {
		return nil, fmt.Errorf("storage: recent_changes: %w", err)
	}
	return out, nil
}

// importRequest mirrors the POST body of the PKC's import endpoint.
type importRequest struct {
	Context BranchContext      `json:"context"`
	Revision *revision.Revision `json:"revision"`
}

// importResponse is the PKC's acknowledgement of an import.
type importResponse struct {
	Status string `json:"status"`
}

// Import pushes a verified revision into the local PKC. direct skips the
// backend's own re-verification pass (used by peer sync, which has already
// verified the revision itself).
func (c *Client) Import(ctx context.Context, branchCtx BranchContext, rev *revision.Revision, direct bool) error {
	body, err := json.Marshal(importRequest{Context: branchCtx, Revision: rev})
	if err != nil {
		return fmt.Errorf("storage: import: marshal: %w", err)
	}

	path := fmt.Sprintf("/rest.php/data_accounting/import?direct=%t", direct)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("storage: import: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("storage: import: %w", err)
	}
	defer resp.Body.Close()

	var out importResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("storage: import: decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || out.Status != "ok" {
		return fmt.Errorf("storage: import: backend reported status %q (http %d)", out.Status, resp.StatusCode)
	}
	return nil
}

// Login performs the SIWE flow against
// /index.php?title=Special:UserLogin&returnto=Special:PluggableAuthLogin,
// leaving the resulting session cookie in the client's jar for every
// subsequent request. The actual SIWE message signing is delegated to sign,
// which is handed the exact challenge string to sign over.
func (c *Client) Login(ctx context.Context, address hashtypes.Address, sign func(message string) ([]byte, error)) error {
	loginURL := c.baseURL + "/index.php?title=Special:UserLogin&returnto=Special:PluggableAuthLogin"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, loginURL, nil)
	if err != nil {
		return fmt.Errorf("storage: login: request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("storage: login: %w", err)
	}
	defer resp.Body.Close()
	challenge, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("storage: login: read challenge: %w", err)
	}

	sig, err := sign(string(challenge))
	if err != nil {
		return fmt.Errorf("storage: login: sign challenge: %w", err)
	}

	form := url.Values{"address": {address.String()}, "signature": {fmt.Sprintf("%x", sig)}}
	submitReq, err := http.NewRequestWithContext(ctx, http.MethodPost, loginURL, bytes.NewBufferString(form.Encode()))
	if err != nil {
		return fmt.Errorf("storage: login: submit request: %w", err)
	}
	submitReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	submitResp, err := c.httpClient.Do(submitReq)
	if err != nil {
		return fmt.Errorf("storage: login: submit: %w", err)
	}
	defer submitResp.Body.Close()
	if submitResp.StatusCode != http.StatusOK {
		return fmt.Errorf("storage: login: backend returned http %d", submitResp.StatusCode)
	}
	c.logger.Printf("logged in as %s", address)
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("http %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
