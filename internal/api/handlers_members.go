// AccessMux - Tenant-Scoped Access Control Event Multiplexer
// Copyright 2026 the AccessMux authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/accessmux/accessmux

package api

import (
	"errors"
	"net/http"

	"github.com/accessmux/accessmux/internal/database"
	"github.com/accessmux/accessmux/internal/hub"
	"github.com/accessmux/accessmux/internal/identity"
	"github.com/accessmux/accessmux/internal/logging"
	"github.com/accessmux/accessmux/internal/models"
)

type memberRequest struct {
	FirstName string  `json:"first_name" validate:"required,max=100"`
	LastName  string  `json:"last_name" validate:"required,max=100"`
	Phone     *string `json:"phone" validate:"omitempty,max=32"`
	PhotoPath *string `json:"photo_path" validate:"omitempty,max=500"`
}

func memberPayload(m *models.Member) models.MemberPayload {
	return models.MemberPayload{
		FirstName:  m.FirstName,
		LastName:   m.LastName,
		Phone:      m.Phone,
		EmployeeNo: m.EmployeeNo,
		PhotoPath:  m.PhotoPath,
	}
}

// CreateMember creates a member, assigns its device-facing employee number,
// queues gateway provisioning, and notifies subscribers.
func (h *Handler) CreateMember(w http.ResponseWriter, r *http.Request) {
	tenant, apiErr := h.requestTenant(r)
	if apiErr != nil {
		respondError(w, http.StatusForbidden, apiErr.Code, apiErr.Message, nil)
		return
	}

	var req memberRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "request body is not valid JSON", nil)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	member, err := h.db.CreateMember(r.Context(), &models.Member{
		TenantID:  tenant.ID,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		PhotoPath: req.PhotoPath,
	}, identity.EncodeEmployeeNo)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to create member", err)
		return
	}

	if _, err := h.queue.Enqueue(r.Context(), tenant.ID, member.ID, models.JobTypeCreate, memberPayload(member)); err != nil {
		logging.Error().Err(err).Int64("member_id", member.ID).Msg("Failed to enqueue provision job")
	}
	h.hub.BroadcastToClients(tenant.ID, &hub.Message{Type: hub.MsgUsersCreated, Data: member})

	respondSuccess(w, http.StatusCreated, member)
}

// GetMember returns one member.
func (h *Handler) GetMember(w http.ResponseWriter, r *http.Request) {
	tenant, apiErr := h.requestTenant(r)
	if apiErr != nil {
		respondError(w, http.StatusForbidden, apiErr.Code, apiErr.Message, nil)
		return
	}
	id, err := getIDParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "member id must be numeric", nil)
		return
	}

	member, err := h.db.GetMember(r.Context(), tenant.ID, id)
	if errors.Is(err, database.ErrNotFound) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "member not found", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to get member", err)
		return
	}
	respondSuccess(w, http.StatusOK, member)
}

// ListMembers returns one page of the tenant's members.
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	tenant, apiErr := h.requestTenant(r)
	if apiErr != nil {
		respondError(w, http.StatusForbidden, apiErr.Code, apiErr.Message, nil)
		return
	}

	members, total, err := h.db.ListMembers(r.Context(), tenant.ID, database.MemberFilter{
		Status: r.URL.Query().Get("status"),
		Search: r.URL.Query().Get("q"),
		Page:   getIntParam(r, "page", 1),
		Limit:  getIntParam(r, "limit", 100),
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to list members", err)
		return
	}
	if members == nil {
		members = []models.Member{}
	}
	respondSuccess(w, http.StatusOK, models.Page{Total: total, Items: members})
}

// UpdateMember updates a member, re-queues provisioning, and notifies
// subscribers.
func (h *Handler) UpdateMember(w http.ResponseWriter, r *http.Request) {
	tenant, apiErr := h.requestTenant(r)
	if apiErr != nil {
		respondError(w, http.StatusForbidden, apiErr.Code, apiErr.Message, nil)
		return
	}
	id, err := getIDParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "member id must be numeric", nil)
		return
	}

	var req memberRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "request body is not valid JSON", nil)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	member, err := h.db.UpdateMember(r.Context(), tenant.ID, id, req.FirstName, req.LastName, req.Phone, req.PhotoPath)
	if errors.Is(err, database.ErrNotFound) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "member not found", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to update member", err)
		return
	}

	if _, err := h.queue.Enqueue(r.Context(), tenant.ID, member.ID, models.JobTypeUpdate, memberPayload(member)); err != nil {
		logging.Error().Err(err).Int64("member_id", member.ID).Msg("Failed to enqueue provision job")
	}
	h.hub.BroadcastToClients(tenant.ID, &hub.Message{Type: hub.MsgUsersUpdated, Data: member})

	respondSuccess(w, http.StatusOK, member)
}

// DeleteMember queues removal from the tenant's devices and notifies
// subscribers. The row is kept; its status reflects the gateway's
// acknowledgement of the delete job.
func (h *Handler) DeleteMember(w http.ResponseWriter, r *http.Request) {
	tenant, apiErr := h.requestTenant(r)
	if apiErr != nil {
		respondError(w, http.StatusForbidden, apiErr.Code, apiErr.Message, nil)
		return
	}
	id, err := getIDParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "member id must be numeric", nil)
		return
	}

	member, err := h.db.GetMember(r.Context(), tenant.ID, id)
	if errors.Is(err, database.ErrNotFound) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "member not found", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to delete member", err)
		return
	}

	if _, err := h.queue.Enqueue(r.Context(), tenant.ID, member.ID, models.JobTypeDelete, memberPayload(member)); err != nil {
		logging.Error().Err(err).Int64("member_id", member.ID).Msg("Failed to enqueue provision job")
	}
	h.hub.BroadcastToClients(tenant.ID, &hub.Message{Type: hub.MsgUsersDeleted, Data: map[string]interface{}{"id": member.ID}})

	respondSuccess(w, http.StatusOK, map[string]string{"result": "delete queued"})
}
