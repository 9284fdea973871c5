// AccessMux - Tenant-Scoped Access Control Event Multiplexer
// Copyright 2026 the AccessMux authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/accessmux/accessmux

package api

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"

	"github.com/accessmux/accessmux/internal/auth"
	"github.com/accessmux/accessmux/internal/database"
	"github.com/accessmux/accessmux/internal/logging"
	"github.com/accessmux/accessmux/internal/models"
)

// newSecret generates a 32-byte hex credential.
func newSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

type createTenantRequest struct {
	Name     string `json:"name" validate:"required,max=200"`
	Timezone string `json:"timezone" validate:"omitempty,timezone"`
}

// CreateTenant provisions a tenant with freshly generated credentials.
func (h *Handler) CreateTenant(w http.ResponseWriter, r *http.Request) {
	var req createTenantRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "request body is not valid JSON", nil)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	apiKey, err := newSecret()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to create tenant", err)
		return
	}
	edgeSecret, err := newSecret()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to create tenant", err)
		return
	}

	tenant, err := h.db.CreateTenant(r.Context(), req.Name, apiKey, edgeSecret, req.Timezone)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to create tenant", err)
		return
	}

	logging.Info().Int64("tenant_id", tenant.ID).Str("name", sanitizeLogValue(tenant.Name)).Msg("Tenant created")
	respondSuccess(w, http.StatusCreated, tenant)
}

// ListTenants returns all tenants.
func (h *Handler) ListTenants(w http.ResponseWriter, r *http.Request) {
	tenants, err := h.db.ListTenants(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to list tenants", err)
		return
	}
	respondSuccess(w, http.StatusOK, tenants)
}

// GetTenant returns one tenant.
func (h *Handler) GetTenant(w http.ResponseWriter, r *http.Request) {
	id, err := getIDParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "tenant id must be numeric", nil)
		return
	}

	tenant, err := h.db.GetTenant(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "tenant not found", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to get tenant", err)
		return
	}
	respondSuccess(w, http.StatusOK, tenant)
}

type updateTenantRequest struct {
	Name     *string `json:"name" validate:"omitempty,max=200"`
	Timezone *string `json:"timezone" validate:"omitempty,timezone"`
}

// UpdateTenant patches mutable tenant fields.
func (h *Handler) UpdateTenant(w http.ResponseWriter, r *http.Request) {
	id, err := getIDParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "tenant id must be numeric", nil)
		return
	}

	var req updateTenantRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "request body is not valid JSON", nil)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	current, err := h.db.GetTenant(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "tenant not found", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to update tenant", err)
		return
	}

	name := current.Name
	if req.Name != nil {
		name = *req.Name
	}
	timezone := current.Timezone
	if req.Timezone != nil {
		timezone = *req.Timezone
	}

	tenant, err := h.db.UpdateTenant(r.Context(), id, name, timezone)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to update tenant", err)
		return
	}
	respondSuccess(w, http.StatusOK, tenant)
}

// RotateTenantKeys replaces a tenant's API key and edge secret.
func (h *Handler) RotateTenantKeys(w http.ResponseWriter, r *http.Request) {
	id, err := getIDParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "tenant id must be numeric", nil)
		return
	}

	apiKey, err := newSecret()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to rotate keys", err)
		return
	}
	edgeSecret, err := newSecret()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to rotate keys", err)
		return
	}

	tenant, err := h.db.RotateTenantKeys(r.Context(), id, apiKey, edgeSecret)
	if errors.Is(err, database.ErrNotFound) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "tenant not found", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to rotate keys", err)
		return
	}

	logging.Info().Int64("tenant_id", id).Msg("Tenant credentials rotated")
	respondSuccess(w, http.StatusOK, tenant)
}

// DeleteTenant removes a tenant and everything scoped to it.
func (h *Handler) DeleteTenant(w http.ResponseWriter, r *http.Request) {
	id, err := getIDParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "tenant id must be numeric", nil)
		return
	}

	if err := h.db.DeleteTenant(r.Context(), id); errors.Is(err, database.ErrNotFound) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "tenant not found", nil)
		return
	} else if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to delete tenant", err)
		return
	}

	// Explicit cascade; DuckDB schema carries no FK actions.
	for _, cleanup := range []func() error{
		func() error { return h.db.DeleteTenantMembers(r.Context(), id) },
		func() error { return h.db.DeleteTenantEvents(r.Context(), id) },
		func() error { return h.db.DeleteTenantJobs(r.Context(), id) },
		func() error { return h.db.DeleteTenantAccounts(r.Context(), id) },
	} {
		if err := cleanup(); err != nil {
			logging.Error().Err(err).Int64("tenant_id", id).Msg("Tenant cascade cleanup failed")
		}
	}

	logging.Info().Int64("tenant_id", id).Msg("Tenant deleted")
	respondSuccess(w, http.StatusOK, map[string]string{"result": "deleted"})
}

type createOwnerRequest struct {
	Username string `json:"username" validate:"required,max=100"`
	Password string `json:"password" validate:"required,min=8,max=200"`
}

// CreateOwner creates an owner account bound to a tenant.
func (h *Handler) CreateOwner(w http.ResponseWriter, r *http.Request) {
	tenantID, err := getIDParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "tenant id must be numeric", nil)
		return
	}
	if _, err := h.db.GetTenant(r.Context(), tenantID); errors.Is(err, database.ErrNotFound) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "tenant not found", nil)
		return
	} else if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to create owner", err)
		return
	}

	var req createOwnerRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "request body is not valid JSON", nil)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to create owner", err)
		return
	}

	account, err := h.db.CreateAccount(r.Context(), req.Username, hash, models.RoleOwner, &tenantID)
	if err != nil {
		respondError(w, http.StatusConflict, "CONFLICT", "username already exists", err)
		return
	}

	logging.Info().Int64("tenant_id", tenantID).Str("username", sanitizeLogValue(req.Username)).Msg("Owner account created")
	respondSuccess(w, http.StatusCreated, accountView{
		ID:       account.ID,
		Username: account.Username,
		Role:     account.Role,
		TenantID: account.TenantID,
	})
}
