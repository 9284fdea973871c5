// AccessMux - Tenant-Scoped Access Control Event Multiplexer
// Copyright 2026 the AccessMux authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/accessmux/accessmux

package api

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/accessmux/accessmux/internal/database"
)

// ServeMedia hands member photos to edge terminals, gated by the tenant's
// edge secret.
func (h *Handler) ServeMedia(w http.ResponseWriter, r *http.Request) {
	edgeSecret := r.URL.Query().Get("edge_secret")
	if edgeSecret == "" {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "edge_secret is required", nil)
		return
	}
	if _, err := h.db.GetTenantByEdgeSecret(r.Context(), edgeSecret); errors.Is(err, database.ErrNotFound) {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unknown edge secret", nil)
		return
	} else if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "media lookup failed", err)
		return
	}

	filename := chi.URLParam(r, "filename")

	// Confine serving to the media directory.
	cleaned := filepath.Base(filepath.Clean(filename))
	if cleaned != filename || strings.HasPrefix(cleaned, ".") {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid filename", nil)
		return
	}

	path := filepath.Join(h.cfg.Media.Dir, cleaned)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "file not found", nil)
		return
	}

	http.ServeFile(w, r, path)
}
