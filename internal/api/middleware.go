// AccessMux - Tenant-Scoped Access Control Event Multiplexer
// Copyright 2026 the AccessMux authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/accessmux/accessmux

package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/accessmux/accessmux/internal/auth"
	"github.com/accessmux/accessmux/internal/models"
)

type ctxKey string

const claimsKey ctxKey = "claims"

// Authenticate requires a valid Bearer token and stores its claims in the
// request context.
func (h *Handler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token", nil)
			return
		}

		claims, err := h.jwt.ValidateToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired token", nil)
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin allows only platform admin accounts through.
func (h *Handler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFrom(r.Context())
		if claims == nil || claims.Role != models.RoleAdmin {
			respondError(w, http.StatusForbidden, "FORBIDDEN", "admin role required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// claimsFrom extracts authenticated claims from a request context.
func claimsFrom(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsKey).(*auth.Claims)
	return claims
}

// requestTenant resolves the tenant a tenant-scoped request operates on.
// Owner accounts are bound to their own tenant; admin accounts name one via
// the tenant_id query parameter.
func (h *Handler) requestTenant(r *http.Request) (*models.Tenant, *models.APIError) {
	claims := claimsFrom(r.Context())
	if claims == nil {
		return nil, &models.APIError{Code: "UNAUTHORIZED", Message: "authentication required"}
	}

	var tenantID int64
	switch claims.Role {
	case models.RoleOwner:
		if claims.TenantID == nil {
			return nil, &models.APIError{Code: "FORBIDDEN", Message: "account is not bound to a tenant"}
		}
		tenantID = *claims.TenantID
	case models.RoleAdmin:
		raw := r.URL.Query().Get("tenant_id")
		if raw == "" {
			return nil, &models.APIError{Code: "VALIDATION_ERROR", Message: "tenant_id is required for admin access"}
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, &models.APIError{Code: "VALIDATION_ERROR", Message: "tenant_id must be numeric"}
		}
		tenantID = id
	default:
		return nil, &models.APIError{Code: "FORBIDDEN", Message: "unknown role"}
	}

	tenant, err := h.db.GetTenant(r.Context(), tenantID)
	if err != nil {
		return nil, &models.APIError{Code: "NOT_FOUND", Message: "tenant not found"}
	}
	return tenant, nil
}
