// Copyright 2025 Certen Protocol

package auditlog

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"

	"github.com/inblockio/guardian-node/internal/hashtypes"
)

var testDB *sql.DB

func TestMain(m *testing.M) {
	connStr := os.Getenv("GUARDIAN_TEST_DB")
	if connStr == "" {
		os.Exit(0)
	}

	var err error
	testDB, err = sql.Open("postgres", connStr)
	if err != nil {
		panic("failed to connect to test database: " + err.Error())
	}

	code := m.Run()
	testDB.Close()
	os.Exit(code)
}

func testHash(b byte) hashtypes.Hash {
	var h hashtypes.Hash
	h[0] = b
	return h
}

func TestAppendAndSinceRoundTrip(t *testing.T) {
	if testDB == nil {
		t.Skip("test database not configured")
	}
	ctx := context.Background()
	c := &Client{db: testDB}

	cutoff := time.Now().Add(-time.Second)
	h := testHash(0x7a)
	if err := c.Append(ctx, Entry{Kind: EventRevisionAdded, Hash: h, Detail: "genesis"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	entries, err := c.Since(ctx, cutoff)
	if err != nil {
		t.Fatalf("Since: %v", err)
	}

	var found bool
	for _, e := range entries {
		if e.Hash == h && e.Kind == EventRevisionAdded && e.Detail == "genesis" {
			found = true
		}
	}
	if !found {
		t.Fatal("appended entry not found in Since results")
	}
}

func TestAppendToleratesRepeatedEntriesWithoutExplicitID(t *testing.T) {
	if testDB == nil {
		t.Skip("test database not configured")
	}
	ctx := context.Background()
	c := &Client{db: testDB}

	e := Entry{Kind: EventRPCDenied, Hash: testHash(0x01), Detail: "unauthorized"}
	if err := c.Append(ctx, e); err != nil {
		t.Fatalf("Append (first): %v", err)
	}
	if err := c.Append(ctx, e); err != nil {
		t.Fatalf("Append (second): %v", err)
	}
}
