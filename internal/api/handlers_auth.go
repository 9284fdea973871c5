// AccessMux - Tenant-Scoped Access Control Event Multiplexer
// Copyright 2026 the AccessMux authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/accessmux/accessmux

package api

import (
	"errors"
	"net/http"

	"github.com/accessmux/accessmux/internal/auth"
	"github.com/accessmux/accessmux/internal/database"
	"github.com/accessmux/accessmux/internal/logging"
)

type loginRequest struct {
	Username string `json:"username" validate:"required,max=100"`
	Password string `json:"password" validate:"required,max=200"`
}

type loginResponse struct {
	Token   string      `json:"token"`
	Account accountView `json:"account"`
}

type accountView struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	TenantID *int64 `json:"tenant_id,omitempty"`
}

// Login exchanges credentials for a session token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "request body is not valid JSON", nil)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	account, err := h.db.GetAccountByUsername(r.Context(), req.Username)
	if errors.Is(err, database.ErrNotFound) || (err == nil && (!account.IsActive || !auth.CheckPassword(account.PasswordHash, req.Password))) {
		logging.Warn().Str("username", sanitizeLogValue(req.Username)).Msg("Failed login attempt")
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid username or password", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "login failed", err)
		return
	}

	token, err := h.jwt.GenerateToken(account)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "login failed", err)
		return
	}
	if err := h.db.TouchAccountLogin(r.Context(), account.ID); err != nil {
		logging.Warn().Err(err).Int64("account_id", account.ID).Msg("Failed to record login time")
	}

	respondSuccess(w, http.StatusOK, loginResponse{
		Token: token,
		Account: accountView{
			ID:       account.ID,
			Username: account.Username,
			Role:     account.Role,
			TenantID: account.TenantID,
		},
	})
}

// Me returns the authenticated account.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	accountID, err := claims.AccountID()
	if err != nil {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token subject", nil)
		return
	}

	account, err := h.db.GetAccount(r.Context(), accountID)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "account no longer exists", nil)
		return
	}

	respondSuccess(w, http.StatusOK, accountView{
		ID:       account.ID,
		Username: account.Username,
		Role:     account.Role,
		TenantID: account.TenantID,
	})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=200"`
}

// ChangePassword replaces the authenticated account's password.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "request body is not valid JSON", nil)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	claims := claimsFrom(r.Context())
	accountID, err := claims.AccountID()
	if err != nil {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token subject", nil)
		return
	}

	account, err := h.db.GetAccount(r.Context(), accountID)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "account no longer exists", nil)
		return
	}
	if !auth.CheckPassword(account.PasswordHash, req.CurrentPassword) {
		respondError(w, http.StatusForbidden, "FORBIDDEN", "current password is incorrect", nil)
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to change password", err)
		return
	}
	if err := h.db.UpdateAccountPassword(r.Context(), account.ID, hash); err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to change password", err)
		return
	}

	logging.Info().Int64("account_id", account.ID).Msg("Password changed")
	respondSuccess(w, http.StatusOK, map[string]string{"result": "password changed"})
}
