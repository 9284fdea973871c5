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
	"strings"

	"github.com/accessmux/accessmux/internal/models"
)

const memberColumns = `id, tenant_id, first_name, last_name, phone, employee_no, photo_path, status, last_error, created_at, updated_at`

// CreateMember inserts a member. The employee_no is assigned by the caller
// after the id is known, so the row is created with a placeholder first and
// then finalized; assignEmployeeNo closes that window inside one transaction.
func (db *DB) CreateMember(ctx context.Context, m *models.Member, encodeEmployeeNo func(tenantID, memberID int64) string) (*models.Member, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var id int64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO members (tenant_id, first_name, last_name, phone, employee_no, photo_path, status)
		 VALUES (?, ?, ?, ?, '', ?, ?)
		 RETURNING id`,
		m.TenantID, m.FirstName, m.LastName, m.Phone, m.PhotoPath, models.MemberStatusPending).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to create member: %w", err)
	}

	employeeNo := encodeEmployeeNo(m.TenantID, id)
	row := tx.QueryRowContext(ctx,
		`UPDATE members SET employee_no = ? WHERE id = ?
		 RETURNING `+memberColumns,
		employeeNo, id)

	created, err := scanMember(row)
	if err != nil {
		return nil, fmt.Errorf("failed to assign employee number: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit member creation: %w", err)
	}
	return created, nil
}

// GetMember fetches a member by id scoped to a tenant.
func (db *DB) GetMember(ctx context.Context, tenantID, id int64) (*models.Member, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM members WHERE tenant_id = ? AND id = ?`,
		tenantID, id)

	member, err := scanMember(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return member, nil
}

// GetMemberByEmployeeNo fetches a member by the stored employee_no string
// within a tenant. Used as the secondary ingest lookup for identifiers that
// do not decode as composite tokens.
func (db *DB) GetMemberByEmployeeNo(ctx context.Context, tenantID int64, employeeNo string) (*models.Member, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM members WHERE tenant_id = ? AND employee_no = ?`,
		tenantID, employeeNo)

	member, err := scanMember(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member by employee_no: %w", err)
	}
	return member, nil
}

// MemberFilter narrows ListMembers.
type MemberFilter struct {
	Status string
	Search string // matches first name, last name, or phone
	Page   int
	Limit  int
}

// ListMembers returns one page of a tenant's members plus the total match
// count, newest first.
func (db *DB) ListMembers(ctx context.Context, tenantID int64, filter MemberFilter) ([]models.Member, int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	conditions := []string{"tenant_id = ?"}
	args := []interface{}{tenantID}

	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Search != "" {
		conditions = append(conditions, "(first_name ILIKE ? OR last_name ILIKE ? OR phone ILIKE ?)")
		pattern := "%" + filter.Search + "%"
		args = append(args, pattern, pattern, pattern)
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	var total int64
	if err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM members `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count members: %w", err)
	}

	page, limit := normalizePage(filter.Page, filter.Limit)
	query := fmt.Sprintf(`SELECT %s FROM members %s ORDER BY id DESC LIMIT %d OFFSET %d`,
		memberColumns, where, limit, (page-1)*limit)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list members: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var members []models.Member
	for rows.Next() {
		member, err := scanMember(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, *member)
	}
	return members, total, rows.Err()
}

// UpdateMember updates mutable member fields, resets last_error, and moves
// the member back to pending so the gateway re-provisions it.
func (db *DB) UpdateMember(ctx context.Context, tenantID, id int64, firstName, lastName string, phone, photoPath *string) (*models.Member, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx,
		`UPDATE members
		 SET first_name = ?, last_name = ?, phone = ?, photo_path = ?,
		     status = ?, last_error = NULL, updated_at = CURRENT_TIMESTAMP
		 WHERE tenant_id = ? AND id = ?
		 RETURNING `+memberColumns,
		firstName, lastName, phone, photoPath, models.MemberStatusPending, tenantID, id)

	member, err := scanMember(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update member: %w", err)
	}
	return member, nil
}

// SetMemberStatus transitions a member's provisioning status and records the
// gateway error, if any.
func (db *DB) SetMemberStatus(ctx context.Context, tenantID, id int64, status string, lastError *string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	res, err := db.conn.ExecContext(ctx,
		`UPDATE members SET status = ?, last_error = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE tenant_id = ? AND id = ?`,
		status, lastError, tenantID, id)
	if err != nil {
		return fmt.Errorf("failed to set member status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteMember removes a member row.
func (db *DB) DeleteMember(ctx context.Context, tenantID, id int64) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM members WHERE tenant_id = ? AND id = ?`, tenantID, id)
	if err != nil {
		return fmt.Errorf("failed to delete member: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteTenantMembers removes every member of a tenant. Used when a tenant
// is deleted.
func (db *DB) DeleteTenantMembers(ctx context.Context, tenantID int64) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if _, err := db.conn.ExecContext(ctx,
		`DELETE FROM members WHERE tenant_id = ?`, tenantID); err != nil {
		return fmt.Errorf("failed to delete tenant members: %w", err)
	}
	return nil
}

func scanMember(s scanner) (*models.Member, error) {
	var m models.Member
	if err := s.Scan(&m.ID, &m.TenantID, &m.FirstName, &m.LastName, &m.Phone,
		&m.EmployeeNo, &m.PhotoPath, &m.Status, &m.LastError,
		&m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

// normalizePage clamps pagination parameters to sane bounds.
func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 100
	}
	if limit > 500 {
		limit = 500
	}
	return page, limit
}
