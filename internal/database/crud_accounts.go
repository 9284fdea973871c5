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

const accountColumns = `id, username, password_hash, role, tenant_id, is_active, created_at, last_login_at`

// CreateAccount inserts a login account. Admin accounts have a nil tenant id,
// owner accounts are bound to one tenant.
func (db *DB) CreateAccount(ctx context.Context, username, passwordHash, role string, tenantID *int64) (*models.Account, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx,
		`INSERT INTO accounts (username, password_hash, role, tenant_id)
		 VALUES (?, ?, ?, ?)
		 RETURNING `+accountColumns,
		username, passwordHash, role, tenantID)

	account, err := scanAccount(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	return account, nil
}

// GetAccount fetches an account by id.
func (db *DB) GetAccount(ctx context.Context, id int64) (*models.Account, error) {
	return db.getAccountBy(ctx, "id", id)
}

// GetAccountByUsername fetches an account by username.
func (db *DB) GetAccountByUsername(ctx context.Context, username string) (*models.Account, error) {
	return db.getAccountBy(ctx, "username", username)
}

func (db *DB) getAccountBy(ctx context.Context, column string, value interface{}) (*models.Account, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE `+column+` = ?`, value)

	account, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account by %s: %w", column, err)
	}
	return account, nil
}

// UpdateAccountPassword replaces the stored bcrypt hash.
func (db *DB) UpdateAccountPassword(ctx context.Context, id int64, passwordHash string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	res, err := db.conn.ExecContext(ctx,
		`UPDATE accounts SET password_hash = ? WHERE id = ?`, passwordHash, id)
	if err != nil {
		return fmt.Errorf("failed to update account password: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchAccountLogin records a successful login.
func (db *DB) TouchAccountLogin(ctx context.Context, id int64) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if _, err := db.conn.ExecContext(ctx,
		`UPDATE accounts SET last_login_at = CURRENT_TIMESTAMP WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to record login: %w", err)
	}
	return nil
}

// DeleteTenantAccounts removes owner accounts of a deleted tenant.
func (db *DB) DeleteTenantAccounts(ctx context.Context, tenantID int64) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if _, err := db.conn.ExecContext(ctx,
		`DELETE FROM accounts WHERE tenant_id = ?`, tenantID); err != nil {
		return fmt.Errorf("failed to delete tenant accounts: %w", err)
	}
	return nil
}

func scanAccount(s scanner) (*models.Account, error) {
	var a models.Account
	if err := s.Scan(&a.ID, &a.Username, &a.PasswordHash, &a.Role, &a.TenantID,
		&a.IsActive, &a.CreatedAt, &a.LastLoginAt); err != nil {
		return nil, err
	}
	return &a, nil
}
