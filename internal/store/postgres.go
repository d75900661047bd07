// Package store handles handshake state and the audit trail.
//
// postgres.go -- pgxpool connection setup and audit log queries.
// Optional: the coordinator runs without it. Only outcomes are recorded,
// never tokens or magic codes. All queries use parameterized statements.
package store

import (
	"context"
	"fmt"

	"github.com/MGallo-Code/botauth/internal/provider"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore writes handshake outcomes to Postgres.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a verified connection pool.
// Call once at startup from main.go...the returned store is safe for concurrent use.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &PostgresStore{pool}, nil
}

// Close shuts down the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// CheckHealth pings Postgres.
func (s *PostgresStore) CheckHealth(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// InsertAuditLog records one handshake event. A zero ID gets a fresh UUIDv7.
func (s *PostgresStore) InsertAuditLog(ctx context.Context, e AuditEntry) error {
	if e.ID.IsNil() {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("generating audit id: %w", err)
		}
		e.ID = id
	}

	var providerCol *string
	if e.Provider != "" {
		p := e.Provider.String()
		providerCol = &p
	}
	var metadata []byte
	if len(e.Metadata) > 0 {
		metadata = e.Metadata
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO handshake_audit_logs (id, conversation_id, provider, action, metadata)
		 VALUES ($1, $2, $3, $4, $5)`,
		e.ID, e.ConversationID, providerCol, e.Action, metadata,
	)
	if err != nil {
		return fmt.Errorf("inserting audit log: %w", err)
	}
	return nil
}

// ListAuditLogs returns the newest entries for a conversation, newest first.
func (s *PostgresStore) ListAuditLogs(ctx context.Context, conversationID string, limit int) ([]AuditEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, conversation_id, provider, action, metadata, created_at
		 FROM handshake_audit_logs
		 WHERE conversation_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`,
		conversationID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying audit logs: %w", err)
	}
	defer rows.Close()

	var out []AuditEntry
	for rows.Next() {
		var (
			e    AuditEntry
			pid  *string
			meta []byte
		)
		if err := rows.Scan(&e.ID, &e.ConversationID, &pid, &e.Action, &meta, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning audit log: %w", err)
		}
		e.Metadata = meta
		if pid != nil {
			e.Provider = provider.ID(*pid)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit logs: %w", err)
	}
	return out, nil
}
