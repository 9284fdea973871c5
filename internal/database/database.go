// AccessMux - Tenant-Scoped Access Control Event Multiplexer
// Copyright 2026 the AccessMux authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/accessmux/accessmux

// Package database provides the DuckDB-backed persistence layer: tenants,
// members, accounts, access events, and provision jobs.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/accessmux/accessmux/internal/config"
	"github.com/accessmux/accessmux/internal/logging"
)

// DB wraps the DuckDB connection and provides data access methods.
type DB struct {
	conn *sql.DB
	cfg  *config.DatabaseConfig
}

// New creates a new database connection and initializes the schema. An empty
// cfg.Path opens an in-memory database, used by tests.
func New(cfg *config.DatabaseConfig) (*DB, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	connStr := ""
	if cfg.Path != "" && cfg.Path != ":memory:" {
		// Ensure parent directory exists for the database file
		dbDir := filepath.Dir(cfg.Path)
		if dbDir != "" && dbDir != "." {
			if err := os.MkdirAll(dbDir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
			}
		}
		connStr = fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s",
			cfg.Path, numThreads, cfg.MaxMemory)
	}

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// DuckDB is an in-process database; a single connection avoids write
	// contention between concurrent transactions.
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn, cfg: cfg}

	if err := db.createSchema(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Int("threads", numThreads).
		Msg("Database initialized")

	return db, nil
}

// Close closes the underlying connection.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	return db.conn.Close()
}

// Ping verifies the connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	return db.conn.PingContext(ctx)
}

// ensureContext guarantees queries run with a deadline even when callers
// pass nil or an unbounded context.
func (db *DB) ensureContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return context.WithTimeout(context.Background(), 30*time.Second)
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		return context.WithTimeout(ctx, 30*time.Second)
	}
	return ctx, func() {}
}

// schemaContext returns a context with timeout for schema operations.
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// createSchema creates sequences and tables.
func (db *DB) createSchema() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, query := range schemaQueries() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %s: %w", query, err)
		}
	}
	return nil
}

// schemaQueries returns the schema DDL statements in dependency order.
func schemaQueries() []string {
	return []string{
		`CREATE SEQUENCE IF NOT EXISTS seq_tenants START 1`,
		`CREATE SEQUENCE IF NOT EXISTS seq_members START 1`,
		`CREATE SEQUENCE IF NOT EXISTS seq_accounts START 1`,
		`CREATE SEQUENCE IF NOT EXISTS seq_access_events START 1`,
		`CREATE SEQUENCE IF NOT EXISTS seq_provision_jobs START 1`,

		`CREATE TABLE IF NOT EXISTS tenants (
			id BIGINT PRIMARY KEY DEFAULT nextval('seq_tenants'),
			name TEXT NOT NULL,
			api_key TEXT NOT NULL UNIQUE,
			edge_secret TEXT NOT NULL UNIQUE,
			timezone TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS members (
			id BIGINT PRIMARY KEY DEFAULT nextval('seq_members'),
			tenant_id BIGINT NOT NULL,
			first_name TEXT NOT NULL,
			last_name TEXT NOT NULL,
			phone TEXT,
			employee_no TEXT NOT NULL,
			photo_path TEXT,
			status TEXT NOT NULL DEFAULT 'pending',
			last_error TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS accounts (
			id BIGINT PRIMARY KEY DEFAULT nextval('seq_accounts'),
			username TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL,
			tenant_id BIGINT,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			last_login_at TIMESTAMP
		)`,

		// event_id carries the idempotency key; the UNIQUE constraint is the
		// arbiter for INSERT ... ON CONFLICT DO NOTHING.
		`CREATE TABLE IF NOT EXISTS access_events (
			id BIGINT PRIMARY KEY DEFAULT nextval('seq_access_events'),
			event_id TEXT NOT NULL UNIQUE,
			tenant_id BIGINT NOT NULL,
			member_id BIGINT,
			employee_no TEXT,
			device_id TEXT,
			event_type TEXT NOT NULL,
			payload TEXT,
			ts TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS provision_jobs (
			id BIGINT PRIMARY KEY DEFAULT nextval('seq_provision_jobs'),
			tenant_id BIGINT NOT NULL,
			member_id BIGINT NOT NULL,
			job_type TEXT NOT NULL,
			payload TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			error TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_members_tenant ON members(tenant_id)`,
		`CREATE INDEX IF NOT EXISTS idx_members_employee_no ON members(tenant_id, employee_no)`,
		`CREATE INDEX IF NOT EXISTS idx_events_tenant_ts ON access_events(tenant_id, ts)`,
		`CREATE INDEX IF NOT EXISTS idx_events_member ON access_events(tenant_id, member_id)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_tenant_status ON provision_jobs(tenant_id, status)`,
	}
}
