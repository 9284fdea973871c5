// AccessMux - Tenant-Scoped Access Control Event Multiplexer
// Copyright 2026 the AccessMux authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/accessmux/accessmux

// Package attendance folds a raw access-event stream into per-member
// per-day presence rows.
package attendance

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/accessmux/accessmux/internal/models"
)

// DayRow is one member's presence on one local calendar day.
type DayRow struct {
	MemberID        int64     `json:"member_id"`
	Date            string    `json:"date"` // local calendar date, YYYY-MM-DD
	Count           int       `json:"count"`
	FirstIn         time.Time `json:"first_in"`
	LastOut         time.Time `json:"last_out"`
	DurationMinutes *int64    `json:"duration_minutes"` // null for a single touch
}

// EventSource is the event query surface the aggregator needs.
type EventSource interface {
	ListTenantEventsBetween(ctx context.Context, tenantID int64, start, end time.Time) ([]models.AccessEvent, error)
}

// Aggregator computes attendance rows in a tenant's local time zone.
type Aggregator struct {
	events     EventSource
	defaultLoc *time.Location
}

// New creates an Aggregator. defaultTimezone applies to tenants that have
// no zone configured of their own.
func New(events EventSource, defaultTimezone string) (*Aggregator, error) {
	loc, err := time.LoadLocation(defaultTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid default timezone %q: %w", defaultTimezone, err)
	}
	return &Aggregator{events: events, defaultLoc: loc}, nil
}

// Location resolves the zone attendance days are bucketed in for a tenant.
func (a *Aggregator) Location(tenant *models.Tenant) *time.Location {
	if tenant.Timezone != "" {
		if loc, err := time.LoadLocation(tenant.Timezone); err == nil {
			return loc
		}
	}
	return a.defaultLoc
}

// Aggregate folds all mapped events of a tenant in [start, end) into one
// row per (member, local day). memberIDs, when non-empty, restricts the
// fold to those members.
//
// Rows are ordered by local date descending, then member id descending.
// Callers paginate over this ordering, so it is part of the contract.
func (a *Aggregator) Aggregate(ctx context.Context, tenant *models.Tenant, start, end time.Time, memberIDs []int64) ([]DayRow, error) {
	events, err := a.events.ListTenantEventsBetween(ctx, tenant.ID, start, end)
	if err != nil {
		return nil, err
	}

	wanted := make(map[int64]bool, len(memberIDs))
	for _, id := range memberIDs {
		wanted[id] = true
	}

	loc := a.Location(tenant)

	type bucketKey struct {
		memberID int64
		date     string
	}
	buckets := make(map[bucketKey]*DayRow)

	for i := range events {
		e := &events[i]
		if e.MemberID == nil {
			continue
		}
		if len(wanted) > 0 && !wanted[*e.MemberID] {
			continue
		}

		local := e.TS.In(loc)
		key := bucketKey{memberID: *e.MemberID, date: local.Format("2006-01-02")}

		row, ok := buckets[key]
		if !ok {
			buckets[key] = &DayRow{
				MemberID: key.memberID,
				Date:     key.date,
				Count:    1,
				FirstIn:  e.TS,
				LastOut:  e.TS,
			}
			continue
		}
		row.Count++
		if e.TS.Before(row.FirstIn) {
			row.FirstIn = e.TS
		}
		if e.TS.After(row.LastOut) {
			row.LastOut = e.TS
		}
	}

	rows := make([]DayRow, 0, len(buckets))
	for _, row := range buckets {
		if row.Count > 1 {
			minutes := int64(row.LastOut.Sub(row.FirstIn).Seconds()) / 60
			row.DurationMinutes = &minutes
		}
		rows = append(rows, *row)
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Date != rows[j].Date {
			return rows[i].Date > rows[j].Date
		}
		return rows[i].MemberID > rows[j].MemberID
	})

	return rows, nil
}

// Paginate slices a fully-aggregated result. Returns the requested page and
// the total row count before slicing.
func Paginate(rows []DayRow, page, limit int) ([]DayRow, int64) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 100
	}
	if limit > 500 {
		limit = 500
	}

	total := int64(len(rows))
	start := (page - 1) * limit
	if start >= len(rows) {
		return []DayRow{}, total
	}
	end := start + limit
	if end > len(rows) {
		end = len(rows)
	}
	return rows[start:end], total
}
