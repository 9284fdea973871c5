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
	"time"

	"github.com/goccy/go-json"

	"github.com/accessmux/accessmux/internal/models"
)

const eventColumns = `id, event_id, tenant_id, member_id, employee_no, device_id, event_type, payload, ts, created_at`

// InsertEventIfAbsent atomically inserts an access event keyed by its
// idempotency key. The UNIQUE constraint on event_id arbitrates races:
// exactly one of any set of concurrent identical inserts lands, the rest
// observe the existing row. Returns the stored event and whether this call
// inserted it.
func (db *DB) InsertEventIfAbsent(ctx context.Context, e *models.AccessEvent) (*models.AccessEvent, bool, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	payloadJSON, err := marshalPayload(e.Payload)
	if err != nil {
		return nil, false, fmt.Errorf("failed to encode event payload: %w", err)
	}

	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO access_events (event_id, tenant_id, member_id, employee_no, device_id, event_type, payload, ts)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (event_id) DO NOTHING`,
		e.EventID, e.TenantID, e.MemberID, e.EmployeeNo, e.DeviceID, e.EventType, payloadJSON, e.TS.UTC())
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert event: %w", err)
	}

	inserted := false
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		inserted = true
	}

	stored, err := db.GetEventByKey(ctx, e.EventID)
	if err != nil {
		return nil, false, err
	}
	return stored, inserted, nil
}

// GetEventByKey fetches an event by its idempotency key.
func (db *DB) GetEventByKey(ctx context.Context, eventID string) (*models.AccessEvent, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM access_events WHERE event_id = ?`, eventID)

	event, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return event, nil
}

// EventFilter narrows ListEvents.
type EventFilter struct {
	MemberID   *int64
	EmployeeNo string
	DeviceID   string
	EventType  string
	HasMember  *bool
	Start      *time.Time
	End        *time.Time
	Search     string // substring over employee_no, device_id, event_type
	Sort       string // ts, -ts, id, -id; default -ts
	Page       int
	Limit      int
}

// ListEvents returns one page of a tenant's events plus the total match
// count.
func (db *DB) ListEvents(ctx context.Context, tenantID int64, filter EventFilter) ([]models.AccessEvent, int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	conditions := []string{"tenant_id = ?"}
	args := []interface{}{tenantID}

	if filter.MemberID != nil {
		conditions = append(conditions, "member_id = ?")
		args = append(args, *filter.MemberID)
	}
	if filter.EmployeeNo != "" {
		conditions = append(conditions, "employee_no = ?")
		args = append(args, filter.EmployeeNo)
	}
	if filter.DeviceID != "" {
		conditions = append(conditions, "device_id = ?")
		args = append(args, filter.DeviceID)
	}
	if filter.EventType != "" {
		conditions = append(conditions, "event_type = ?")
		args = append(args, filter.EventType)
	}
	if filter.HasMember != nil {
		if *filter.HasMember {
			conditions = append(conditions, "member_id IS NOT NULL")
		} else {
			conditions = append(conditions, "member_id IS NULL")
		}
	}
	if filter.Start != nil {
		conditions = append(conditions, "ts >= ?")
		args = append(args, filter.Start.UTC())
	}
	if filter.End != nil {
		conditions = append(conditions, "ts < ?")
		args = append(args, filter.End.UTC())
	}
	if filter.Search != "" {
		conditions = append(conditions, "(employee_no ILIKE ? OR device_id ILIKE ? OR event_type ILIKE ?)")
		pattern := "%" + filter.Search + "%"
		args = append(args, pattern, pattern, pattern)
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	var total int64
	if err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM access_events `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count events: %w", err)
	}

	page, limit := normalizePage(filter.Page, filter.Limit)
	query := fmt.Sprintf(`SELECT %s FROM access_events %s ORDER BY %s LIMIT %d OFFSET %d`,
		eventColumns, where, eventOrderBy(filter.Sort), limit, (page-1)*limit)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []models.AccessEvent
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, *event)
	}
	return events, total, rows.Err()
}

// ListTenantEventsBetween returns all of a tenant's events in [start, end)
// ordered by ts, used by attendance aggregation.
func (db *DB) ListTenantEventsBetween(ctx context.Context, tenantID int64, start, end time.Time) ([]models.AccessEvent, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM access_events
		 WHERE tenant_id = ? AND member_id IS NOT NULL AND ts >= ? AND ts < ?
		 ORDER BY ts`,
		tenantID, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list events for attendance: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []models.AccessEvent
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, *event)
	}
	return events, rows.Err()
}

// DeleteTenantEvents removes every event of a tenant.
func (db *DB) DeleteTenantEvents(ctx context.Context, tenantID int64) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if _, err := db.conn.ExecContext(ctx,
		`DELETE FROM access_events WHERE tenant_id = ?`, tenantID); err != nil {
		return fmt.Errorf("failed to delete tenant events: %w", err)
	}
	return nil
}

// eventOrderBy maps the API sort token to an ORDER BY clause. Ids break ties
// so pagination is stable.
func eventOrderBy(sort string) string {
	switch sort {
	case "ts":
		return "ts ASC, id ASC"
	case "id":
		return "id ASC"
	case "-id":
		return "id DESC"
	default:
		return "ts DESC, id DESC"
	}
}

func scanEvent(s scanner) (*models.AccessEvent, error) {
	var e models.AccessEvent
	var payloadJSON sql.NullString
	if err := s.Scan(&e.ID, &e.EventID, &e.TenantID, &e.MemberID, &e.EmployeeNo,
		&e.DeviceID, &e.EventType, &payloadJSON, &e.TS, &e.CreatedAt); err != nil {
		return nil, err
	}
	if payloadJSON.Valid && payloadJSON.String != "" {
		if err := json.Unmarshal([]byte(payloadJSON.String), &e.Payload); err != nil {
			return nil, fmt.Errorf("failed to decode event payload: %w", err)
		}
	}
	return &e, nil
}

func marshalPayload(payload map[string]interface{}) (interface{}, error) {
	if payload == nil {
		return nil, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}
