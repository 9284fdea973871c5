// AccessMux - Tenant-Scoped Access Control Event Multiplexer
// Copyright 2026 the AccessMux authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/accessmux/accessmux

package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/accessmux/accessmux/internal/attendance"
	"github.com/accessmux/accessmux/internal/database"
	"github.com/accessmux/accessmux/internal/models"
)

// AttendanceDays returns per-member per-day presence rows over a date
// range, defaulting to the last seven local days.
func (h *Handler) AttendanceDays(w http.ResponseWriter, r *http.Request) {
	tenant, apiErr := h.requestTenant(r)
	if apiErr != nil {
		respondError(w, http.StatusForbidden, apiErr.Code, apiErr.Message, nil)
		return
	}

	loc := h.attendance.Location(tenant)

	start, err := parseTimeParam(r.URL.Query().Get("start"), loc)
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "start must be RFC 3339 or YYYY-MM-DD", nil)
		return
	}
	end, err := parseTimeParam(r.URL.Query().Get("end"), loc)
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "end must be RFC 3339 or YYYY-MM-DD", nil)
		return
	}

	// Default window: the last 7 local days, today included.
	if end == nil {
		now := time.Now().In(loc)
		midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1).UTC()
		end = &midnight
	}
	if start == nil {
		from := end.AddDate(0, 0, -7)
		start = &from
	}

	memberIDs, apiErr2 := h.attendanceMemberFilter(r, tenant.ID)
	if apiErr2 != nil {
		respondError(w, http.StatusBadRequest, apiErr2.Code, apiErr2.Message, nil)
		return
	}

	rows, err := h.attendance.Aggregate(r.Context(), tenant, *start, *end, memberIDs)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to aggregate attendance", err)
		return
	}

	page, total := attendance.Paginate(rows, getIntParam(r, "page", 1), getIntParam(r, "limit", 100))
	respondSuccess(w, http.StatusOK, models.Page{Total: total, Items: page})
}

// attendanceMemberFilter resolves the optional member restriction: explicit
// member_id values and/or a name/phone search.
func (h *Handler) attendanceMemberFilter(r *http.Request, tenantID int64) ([]int64, *models.APIError) {
	var memberIDs []int64

	if raw := r.URL.Query().Get("member_id"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
			if err != nil {
				return nil, &models.APIError{Code: "VALIDATION_ERROR", Message: "member_id must be numeric"}
			}
			memberIDs = append(memberIDs, id)
		}
	}

	if search := r.URL.Query().Get("q"); search != "" {
		members, _, err := h.db.ListMembers(r.Context(), tenantID, database.MemberFilter{Search: search, Limit: 500})
		if err != nil {
			return nil, &models.APIError{Code: "INTERNAL_ERROR", Message: "member search failed"}
		}
		if len(members) == 0 {
			// Search matched nobody; restrict to an impossible id instead
			// of silently dropping the filter.
			return []int64{-1}, nil
		}
		for _, m := range members {
			memberIDs = append(memberIDs, m.ID)
		}
	}

	return memberIDs, nil
}
