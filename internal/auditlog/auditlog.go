// Copyright 2025 Certen Protocol
//
// Package auditlog persists an append-only record of every state-engine
// transition a guardian makes, independent of and outliving the in-memory
// reachability graph, for after-the-fact incident review. Grounded on the
// teacher's pkg/database Client/Repository split (connection pooling in
// Client, one table's operations per Repository).
package auditlog

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq"

	"github.com/google/uuid"

	"github.com/inblockio/guardian-node/internal/hashtypes"
)

// Client owns the connection pool to the audit database.
type Client struct {
	db     *sql.DB
	logger *log.Logger
}

// New opens a connection pool against databaseURL (a postgres:// DSN) and
// verifies it with a ping.
func New(ctx context.Context, databaseURL string, logger *log.Logger) (*Client, error) {
	if logger == nil {
		logger = log.New(log.Writer(), "[auditlog] ", log.LstdFlags)
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("auditlog: open: %w", err)
	}
	db.SetMaxOpenConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("auditlog: ping: %w", err)
	}

	return &Client{db: db, logger: logger}, nil
}

// Close releases the connection pool.
func (c *Client) Close() error {
	return c.db.Close()
}

// EventKind tags which state-engine transition an audit entry records.
type EventKind string

const (
	EventRevisionAdded   EventKind = "revision_added"
	EventRevisionRemoved EventKind = "revision_removed"
	EventContractEffective EventKind = "contract_effective"
	EventRPCDenied       EventKind = "rpc_denied"
)

// Entry is one append-only audit record.
type Entry struct {
	ID        uuid.UUID
	Kind      EventKind
	Hash      hashtypes.Hash
	Detail    string
	CreatedAt time.Time
}

// Append records entry, assigning it an ID and timestamp if unset.
func (c *Client) Append(ctx context.Context, e Entry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	const query = `
		INSERT INTO guardian_audit_log (id, kind, hash, detail, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := c.db.ExecContext(ctx, query, e.ID, string(e.Kind), e.Hash.String(), e.Detail, e.CreatedAt); err != nil {
		return fmt.Errorf("auditlog: append: %w", err)
	}
	return nil
}

// Since returns every entry recorded at or after t, oldest first.
func (c *Client) Since(ctx context.Context, t time.Time) ([]Entry, error) {
	const query = `
		SELECT id, kind, hash, detail, created_at
		FROM guardian_audit_log
		WHERE created_at >= $1
		ORDER BY created_at ASC`
	rows, err := c.db.QueryContext(ctx, query, t)
	if err != nil {
		return nil, fmt.Errorf("auditlog: since: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var hashStr string
		if err := rows.Scan(&e.ID, &e.Kind, &hashStr, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("auditlog: since: scan: %w", err)
		}
		hash, err := hashtypes.ParseHash(hashStr)
		if err != nil {
			return nil, fmt.Errorf("auditlog: since: parse hash %q: %w", hashStr, err)
		}
		e.Hash = hash
		out = append(out, e)
	}
	return out, rows.Err()
}
