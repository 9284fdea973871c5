// AccessMux - Tenant-Scoped Access Control Event Multiplexer
// Copyright 2026 the AccessMux authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/accessmux/accessmux

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/accessmux/accessmux/internal/models"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

const tenantColumns = `id, name, api_key, edge_secret, timezone, created_at`

// CreateTenant inserts a tenant and returns it with its assigned id.
func (db *DB) CreateTenant(ctx context.Context, name, apiKey, edgeSecret, timezone string) (*models.Tenant, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx,
		`INSERT INTO tenants (name, api_key, edge_secret, timezone)
		 VALUES (?, ?, ?, ?)
		 RETURNING `+tenantColumns,
		name, apiKey, edgeSecret, timezone)

	tenant, err := scanTenant(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create tenant: %w", err)
	}
	return tenant, nil
}

// GetTenant fetches a tenant by id.
func (db *DB) GetTenant(ctx context.Context, id int64) (*models.Tenant, error) {
	return db.getTenantBy(ctx, "id", id)
}

// GetTenantByAPIKey fetches a tenant by its subscriber API key.
func (db *DB) GetTenantByAPIKey(ctx context.Context, apiKey string) (*models.Tenant, error) {
	return db.getTenantBy(ctx, "api_key", apiKey)
}

// GetTenantByEdgeSecret fetches a tenant by its gateway edge secret.
func (db *DB) GetTenantByEdgeSecret(ctx context.Context, edgeSecret string) (*models.Tenant, error) {
	return db.getTenantBy(ctx, "edge_secret", edgeSecret)
}

func (db *DB) getTenantBy(ctx context.Context, column string, value interface{}) (*models.Tenant, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE `+column+` = ?`, value)

	tenant, err := scanTenant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant by %s: %w", column, err)
	}
	return tenant, nil
}

// ListTenants returns all tenants ordered by id.
func (db *DB) ListTenants(ctx context.Context) ([]models.Tenant, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+tenantColumns+` FROM tenants ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tenants []models.Tenant
	for rows.Next() {
		tenant, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tenant: %w", err)
		}
		tenants = append(tenants, *tenant)
	}
	return tenants, rows.Err()
}

// UpdateTenant updates mutable tenant fields.
func (db *DB) UpdateTenant(ctx context.Context, id int64, name, timezone string) (*models.Tenant, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx,
		`UPDATE tenants SET name = ?, timezone = ? WHERE id = ?
		 RETURNING `+tenantColumns,
		name, timezone, id)

	tenant, err := scanTenant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update tenant: %w", err)
	}
	return tenant, nil
}

// RotateTenantKeys replaces both credentials of a tenant. Existing realtime
// connections authenticated with the old keys stay up until they drop.
func (db *DB) RotateTenantKeys(ctx context.Context, id int64, apiKey, edgeSecret string) (*models.Tenant, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx,
		`UPDATE tenants SET api_key = ?, edge_secret = ? WHERE id = ?
		 RETURNING `+tenantColumns,
		apiKey, edgeSecret, id)

	tenant, err := scanTenant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to rotate tenant keys: %w", err)
	}
	return tenant, nil
}

// DeleteTenant removes a tenant row. Dependent rows are left to the caller,
// which cascades deletes explicitly.
func (db *DB) DeleteTenant(ctx context.Context, id int64) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	res, err := db.conn.ExecContext(ctx, `DELETE FROM tenants WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete tenant: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// scanner abstracts *sql.Row and *sql.Rows for shared scan helpers.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTenant(s scanner) (*models.Tenant, error) {
	var t models.Tenant
	if err := s.Scan(&t.ID, &t.Name, &t.APIKey, &t.EdgeSecret, &t.Timezone, &t.CreatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}
