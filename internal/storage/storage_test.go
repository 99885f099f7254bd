// Copyright 2025 Certen Protocol

package storage

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/inblockio/guardian-node/internal/hashtypes"
	"github.com/inblockio/guardian-node/internal/revision"
)

func testHash(t *testing.T, b byte) hashtypes.Hash {
	t.Helper()
	var h hashtypes.Hash
	h[0] = b
	return h
}

func TestListLatest(t *testing.T) {
	h := testHash(t, 0x11)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api.php":
			json.NewEncoder(w).Encode(allPagesResponse{Query: allPagesQuery{AllPages: []pageInfo{{ID: 1, Title: "Main Page"}}}})
		case "/rest.php/data_accounting/get_page_last_rev":
			if r.URL.Query().Get("page_title") != "Main Page" {
				t.Errorf("unexpected page_title %q", r.URL.Query().Get("page_title"))
			}
			json.NewEncoder(w).Encode(lastRevision{Title: "Main Page", VerificationHash: h})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c, err := New(srv.URL, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	hashes, err := c.ListLatest(context.Background())
	if err != nil {
		t.Fatalf("ListLatest: %v", err)
	}
	if len(hashes) != 1 || hashes[0] != h {
		t.Fatalf("got %v, want [%s]", hashes, h)
	}
}

func TestListLatestSkipsFailedLookups(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api.php":
			json.NewEncoder(w).Encode(allPagesResponse{Query: allPagesQuery{AllPages: []pageInfo{
				{Title: "Broken"}, {Title: "Fine"},
			}}})
		case "/rest.php/data_accounting/get_page_last_rev":
			if r.URL.Query().Get("page_title") == "Broken" {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			json.NewEncoder(w).Encode(lastRevision{Title: "Fine", VerificationHash: testHash(t, 0x42)})
		}
	}))
	defer srv.Close()

	c, err := New(srv.URL, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	hashes, err := c.ListLatest(context.Background())
	if err != nil {
		t.Fatalf("ListLatest: %v", err)
	}
	if len(hashes) != 1 || hashes[0] != testHash(t, 0x42) {
		t.Fatalf("got %v, want one surviving hash", hashes)
	}
}

func TestGetBranch(t *testing.T) {
	h := testHash(t, 0x22)
	want := Branch{Context: BranchContext{Namespace: 0, Title: "Main Page"}, Hashes: []hashtypes.Hash{h}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest.php/data_accounting/get_branch/"+h.String() {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(want)
	}))
	defer srv.Close()

	c, err := New(srv.URL, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := c.GetBranch(context.Background(), h)
	if err != nil {
		t.Fatalf("GetBranch: %v", err)
	}
	if got.Context.Title != want.Context.Title || len(got.Hashes) != 1 || got.Hashes[0] != h {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestRecentChanges(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("since") != "20250101000000" {
			t.Errorf("unexpected since=%q", q.Get("since"))
		}
		if q.Get("include_deleted") != "true" {
			t.Errorf("unexpected include_deleted=%q", q.Get("include_deleted"))
		}
		json.NewEncoder(w).Encode([]RecentChange{{Hash: testHash(t, 0x33), Type: "insert"}})
	}))
	defer srv.Close()

	c, err := New(srv.URL, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ts := revision.NewTimestamp(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	out, err := c.RecentChanges(context.Background(), ts, true)
	if err != nil {
		t.Fatalf("RecentChanges: %v", err)
	}
	if len(out) != 1 || out[0].Type != "insert" {
		t.Fatalf("got %v", out)
	}
}

func TestImportRejectsNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("direct") != "true" {
			t.Errorf("unexpected direct=%q", r.URL.Query().Get("direct"))
		}
		json.NewEncoder(w).Encode(importResponse{Status: "rejected"})
	}))
	defer srv.Close()

	c, err := New(srv.URL, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	err = c.Import(context.Background(), BranchContext{Title: "Main Page"}, &revision.Revision{}, true)
	if err == nil {
		t.Fatal("expected error on rejected import")
	}
}

func TestImportSucceeds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body importRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body.Context.Title != "Main Page" {
			t.Errorf("unexpected context %+v", body.Context)
		}
		json.NewEncoder(w).Encode(importResponse{Status: "ok"})
	}))
	defer srv.Close()

	c, err := New(srv.URL, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Import(context.Background(), BranchContext{Title: "Main Page"}, &revision.Revision{}, false); err != nil {
		t.Fatalf("Import: %v", err)
	}
}

func TestLoginPostsSignatureOverChallenge(t *testing.T) {
	addr, err := hashtypes.ParseAddress("0x1111111111111111111111111111111111111111")
	if err != nil {
		t.Fatalf("ParseAddress: %v", err)
	}
	var gotChallenge string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.Write([]byte("sign-this-challenge"))
		case http.MethodPost:
			body, _ := url.ParseQuery(mustReadBody(t, r))
			gotChallenge = body.Get("address")
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	c, err := New(srv.URL, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	var signedOver string
	sign := func(message string) ([]byte, error) {
		signedOver = message
		return []byte{0xde, 0xad}, nil
	}
	if err := c.Login(context.Background(), addr, sign); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if signedOver != "sign-this-challenge" {
		t.Fatalf("signed over %q, want the served challenge", signedOver)
	}
	if gotChallenge != addr.String() {
		t.Fatalf("posted address %q, want %q", gotChallenge, addr.String())
	}
}

func mustReadBody(t *testing.T, r *http.Request) string {
	t.Helper()
	buf, err := io.ReadAll(r.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(buf)
}
