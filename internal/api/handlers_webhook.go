// AccessMux - Tenant-Scoped Access Control Event Multiplexer
// Copyright 2026 the AccessMux authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/accessmux/accessmux

package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/accessmux/accessmux/internal/database"
	"github.com/accessmux/accessmux/internal/ingest"
	"github.com/accessmux/accessmux/internal/logging"
)

// maxWebhookBody bounds a device push body. Photo-bearing multipart pushes
// from access controllers run to a few megabytes.
const maxWebhookBody = 8 << 20

// DeviceWebhook ingests a raw device push authenticated only by the edge
// secret in the URL path. Devices retry on any non-200, so every outcome
// except an unknown secret answers 200, including bodies we cannot parse.
func (h *Handler) DeviceWebhook(w http.ResponseWriter, r *http.Request) {
	edgeSecret := chi.URLParam(r, "edgeSecret")

	tenant, err := h.db.GetTenantByEdgeSecret(r.Context(), edgeSecret)
	if errors.Is(err, database.ErrNotFound) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "unknown edge secret", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "webhook lookup failed", err)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to read body", err)
		return
	}
	defer func() { _ = r.Body.Close() }()

	doc, drop := ingest.DecodeWebhookBody(body, r.Header.Get("Content-Type"))
	if drop {
		logging.Debug().Int64("tenant_id", tenant.ID).Msg("Webhook body without usable JSON dropped")
		w.WriteHeader(http.StatusOK)
		return
	}

	draft, err := h.normalizer.NormalizeWebhook(r.Context(), tenant, doc)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to normalize event", err)
		return
	}

	if _, _, err := h.pipeline.Ingest(r.Context(), draft, ingest.SourceWebhook); err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to ingest event", err)
		return
	}

	w.WriteHeader(http.StatusOK)
}
