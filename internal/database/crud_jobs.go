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

	"github.com/goccy/go-json"

	"github.com/accessmux/accessmux/internal/models"
)

const jobColumns = `id, tenant_id, member_id, job_type, payload, status, error, created_at, updated_at`

// CreateJob enqueues a provision job in pending state.
func (db *DB) CreateJob(ctx context.Context, tenantID, memberID int64, jobType string, payload models.MemberPayload) (*models.ProvisionJob, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode job payload: %w", err)
	}

	row := db.conn.QueryRowContext(ctx,
		`INSERT INTO provision_jobs (tenant_id, member_id, job_type, payload, status)
		 VALUES (?, ?, ?, ?, ?)
		 RETURNING `+jobColumns,
		tenantID, memberID, jobType, string(payloadJSON), models.JobStatusPending)

	job, err := scanJob(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	return job, nil
}

// GetJob fetches a job by id.
func (db *DB) GetJob(ctx context.Context, id int64) (*models.ProvisionJob, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM provision_jobs WHERE id = ?`, id)

	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// ListPendingJobs returns a tenant's pending jobs oldest first, the order
// they are dispatched in when the gateway connects.
func (db *DB) ListPendingJobs(ctx context.Context, tenantID int64) ([]models.ProvisionJob, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM provision_jobs
		 WHERE tenant_id = ? AND status = ?
		 ORDER BY id`,
		tenantID, models.JobStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var jobs []models.ProvisionJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// MarkJobSent moves a pending job to sent after a successful write to the
// gateway socket.
func (db *DB) MarkJobSent(ctx context.Context, id int64) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	res, err := db.conn.ExecContext(ctx,
		`UPDATE provision_jobs SET status = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status = ?`,
		models.JobStatusSent, id, models.JobStatusPending)
	if err != nil {
		return fmt.Errorf("failed to mark job sent: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// FinishJob moves a job to a terminal state. Jobs already in a terminal
// state are left untouched and ErrNotFound is returned, making duplicate
// acknowledgements harmless.
func (db *DB) FinishJob(ctx context.Context, id int64, status string, jobError *string) error {
	if !models.IsTerminalJobStatus(status) {
		return fmt.Errorf("status %q is not terminal", status)
	}

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	res, err := db.conn.ExecContext(ctx,
		`UPDATE provision_jobs SET status = ?, error = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status IN (?, ?)`,
		status, jobError, id, models.JobStatusPending, models.JobStatusSent)
	if err != nil {
		return fmt.Errorf("failed to finish job: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteTenantJobs removes every job of a tenant.
func (db *DB) DeleteTenantJobs(ctx context.Context, tenantID int64) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if _, err := db.conn.ExecContext(ctx,
		`DELETE FROM provision_jobs WHERE tenant_id = ?`, tenantID); err != nil {
		return fmt.Errorf("failed to delete tenant jobs: %w", err)
	}
	return nil
}

func scanJob(s scanner) (*models.ProvisionJob, error) {
	var j models.ProvisionJob
	var payloadJSON string
	if err := s.Scan(&j.ID, &j.TenantID, &j.MemberID, &j.JobType, &payloadJSON,
		&j.Status, &j.Error, &j.CreatedAt, &j.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(payloadJSON), &j.Payload); err != nil {
		return nil, fmt.Errorf("failed to decode job payload: %w", err)
	}
	return &j, nil
}
