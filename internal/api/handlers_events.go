// AccessMux - Tenant-Scoped Access Control Event Multiplexer
// Copyright 2026 the AccessMux authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/accessmux/accessmux

package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/accessmux/accessmux/internal/database"
	"github.com/accessmux/accessmux/internal/ingest"
	"github.com/accessmux/accessmux/internal/models"
)

// IngestEvent accepts a direct event submission from an authenticated
// tenant channel.
func (h *Handler) IngestEvent(w http.ResponseWriter, r *http.Request) {
	tenant, apiErr := h.requestTenant(r)
	if apiErr != nil {
		respondError(w, http.StatusForbidden, apiErr.Code, apiErr.Message, nil)
		return
	}

	var in ingest.DirectEvent
	if err := decodeBody(r, &in); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "request body is not valid JSON", nil)
		return
	}

	draft, err := h.normalizer.NormalizeDirect(r.Context(), tenant, &in)
	if err != nil {
		code, status := ingestErrorStatus(err)
		if code == "" {
			respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to ingest event", err)
			return
		}
		respondError(w, status, code, err.Error(), nil)
		return
	}

	stored, _, err := h.pipeline.Ingest(r.Context(), draft, ingest.SourceHTTP)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to ingest event", err)
		return
	}
	respondSuccess(w, http.StatusCreated, stored)
}

// ingestErrorStatus maps normalization rejections to API errors. Returns
// an empty code for errors that are not rejections.
func ingestErrorStatus(err error) (string, int) {
	switch {
	case errors.Is(err, ingest.ErrMissingIdentifier):
		return "VALIDATION_ERROR", http.StatusBadRequest
	case errors.Is(err, ingest.ErrInvalidIdentifier):
		return "VALIDATION_ERROR", http.StatusBadRequest
	case errors.Is(err, ingest.ErrTenantMismatch):
		return "FORBIDDEN", http.StatusForbidden
	case errors.Is(err, ingest.ErrMemberNotFound):
		return "NOT_FOUND", http.StatusNotFound
	default:
		return "", 0
	}
}

type listEventsQuery struct {
	Limit int    `validate:"min=1,max=500"`
	Page  int    `validate:"min=1"`
	Sort  string `validate:"omitempty,oneof=ts -ts id -id"`
}

// ListEvents returns one page of the tenant's events.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	tenant, apiErr := h.requestTenant(r)
	if apiErr != nil {
		respondError(w, http.StatusForbidden, apiErr.Code, apiErr.Message, nil)
		return
	}

	q := listEventsQuery{
		Limit: getIntParam(r, "limit", 100),
		Page:  getIntParam(r, "page", 1),
		Sort:  r.URL.Query().Get("sort"),
	}
	if apiErr := validateRequest(&q); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	filter := database.EventFilter{
		EmployeeNo: r.URL.Query().Get("employee_no"),
		DeviceID:   r.URL.Query().Get("device_id"),
		EventType:  r.URL.Query().Get("event_type"),
		Search:     r.URL.Query().Get("q"),
		Sort:       q.Sort,
		Page:       q.Page,
		Limit:      q.Limit,
	}

	if raw := r.URL.Query().Get("member_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "member_id must be numeric", nil)
			return
		}
		filter.MemberID = &id
	}
	if raw := r.URL.Query().Get("has_member"); raw != "" {
		hasMember := raw == "true" || raw == "1"
		filter.HasMember = &hasMember
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
	filter.Start, filter.End = start, end

	events, total, err := h.db.ListEvents(r.Context(), tenant.ID, filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to list events", err)
		return
	}
	if events == nil {
		events = []models.AccessEvent{}
	}

	// Payloads can be large; omit them unless explicitly requested.
	if r.URL.Query().Get("include_payload") != "true" {
		for i := range events {
			events[i].Payload = nil
		}
	}

	respondSuccess(w, http.StatusOK, models.Page{Total: total, Items: events})
}
