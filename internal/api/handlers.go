// AccessMux - Tenant-Scoped Access Control Event Multiplexer
// Copyright 2026 the AccessMux authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/accessmux/accessmux

// Package api implements the HTTP and websocket surface: management API,
// ingestion entry points, realtime channels, and media serving.
package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/accessmux/accessmux/internal/attendance"
	"github.com/accessmux/accessmux/internal/auth"
	"github.com/accessmux/accessmux/internal/config"
	"github.com/accessmux/accessmux/internal/database"
	"github.com/accessmux/accessmux/internal/hub"
	"github.com/accessmux/accessmux/internal/ingest"
	"github.com/accessmux/accessmux/internal/jobqueue"
	"github.com/accessmux/accessmux/internal/logging"
	"github.com/accessmux/accessmux/internal/models"
	"github.com/accessmux/accessmux/internal/validation"
)

// Handler carries the wired collaborators for every endpoint.
type Handler struct {
	db         *database.DB
	cfg        *config.Config
	hub        *hub.Hub
	queue      *jobqueue.Queue
	pipeline   *ingest.Pipeline
	normalizer *ingest.Normalizer
	attendance *attendance.Aggregator
	jwt        *auth.JWTManager
	startTime  time.Time
}

// NewHandler creates a Handler.
func NewHandler(db *database.DB, cfg *config.Config, h *hub.Hub, queue *jobqueue.Queue, jwtManager *auth.JWTManager) (*Handler, error) {
	agg, err := attendance.New(db, cfg.Attendance.Timezone)
	if err != nil {
		return nil, err
	}
	return &Handler{
		db:         db,
		cfg:        cfg,
		hub:        h,
		queue:      queue,
		pipeline:   ingest.NewPipeline(db, h),
		normalizer: ingest.NewNormalizer(db),
		attendance: agg,
		jwt:        jwtManager,
		startTime:  time.Now(),
	}, nil
}

// sanitizeLogValue removes control characters from strings to prevent log
// injection through attacker-controlled values.
func sanitizeLogValue(s string) string {
	var result strings.Builder
	result.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			result.WriteString(fmt.Sprintf("\\x%02x", r))
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// respondJSON sends a JSON response with proper headers.
func respondJSON(w http.ResponseWriter, status int, response *models.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")

	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// respondSuccess wraps data in the standard success envelope.
func respondSuccess(w http.ResponseWriter, status int, data interface{}) {
	respondJSON(w, status, &models.APIResponse{
		Status:   "success",
		Data:     data,
		Metadata: models.Metadata{Timestamp: time.Now()},
	})
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, code, message string, err error) {
	if err != nil {
		logging.Error().Str("code", sanitizeLogValue(code)).Str("error", sanitizeLogValue(err.Error())).Msg("API Error")
	}

	respondJSON(w, status, &models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now()},
		Error: &models.APIError{
			Code:    code,
			Message: message,
		},
	})
}

// validateRequest validates a tagged struct, translating failures into the
// VALIDATION_ERROR envelope.
func validateRequest(v interface{}) *models.APIError {
	err := validation.ValidateStruct(v)
	if err == nil {
		return nil
	}
	if verrs, ok := err.(*validation.Errors); ok {
		return verrs.ToAPIError()
	}
	return &models.APIError{Code: "VALIDATION_ERROR", Message: err.Error()}
}

// decodeBody decodes a JSON request body into dst.
func decodeBody(r *http.Request, dst interface{}) error {
	defer func() { _ = r.Body.Close() }()
	return json.NewDecoder(r.Body).Decode(dst)
}

// getIntParam extracts an integer query parameter with a default.
func getIntParam(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

// getIDParam parses a numeric chi path parameter.
func getIDParam(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

// parseTimeParam parses a query parameter as RFC 3339 or a bare local date.
// A bare date is taken as local midnight in loc.
func parseTimeParam(raw string, loc *time.Location) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		utc := ts.UTC()
		return &utc, nil
	}
	if day, err := time.ParseInLocation("2006-01-02", raw, loc); err == nil {
		utc := day.UTC()
		return &utc, nil
	}
	return nil, fmt.Errorf("invalid time %q", raw)
}
