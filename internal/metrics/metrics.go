// AccessMux - Tenant-Scoped Access Control Event Multiplexer
// Copyright 2026 the AccessMux authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/accessmux/accessmux

// Package metrics provides Prometheus instrumentation for ingestion,
// realtime fan-out, provisioning jobs, and the HTTP API.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingestion metrics
	EventsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accessmux_events_ingested_total",
			Help: "Total number of access events stored, by ingest source",
		},
		[]string{"source"}, // "http", "gateway", "webhook"
	)

	EventsDuplicate = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accessmux_events_duplicate_total",
			Help: "Total number of ingest submissions collapsed onto an existing event",
		},
		[]string{"source"},
	)

	EventsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accessmux_events_rejected_total",
			Help: "Total number of ingest submissions rejected during normalization",
		},
		[]string{"source", "reason"},
	)

	// Realtime hub metrics
	ClientConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "accessmux_ws_clients",
			Help: "Current number of connected subscriber clients",
		},
	)

	GatewayConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "accessmux_ws_gateways",
			Help: "Current number of connected edge gateways",
		},
	)

	BroadcastsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accessmux_broadcasts_total",
			Help: "Total number of messages written to realtime connections",
		},
		[]string{"channel"}, // "client", "gateway"
	)

	BroadcastErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accessmux_broadcast_errors_total",
			Help: "Total number of failed realtime connection writes",
		},
		[]string{"channel"},
	)

	// Provisioning job metrics
	JobTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accessmux_job_transitions_total",
			Help: "Total number of provision job state transitions",
		},
		[]string{"to"}, // "pending", "sent", "acked", "failed"
	)

	// API metrics
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "accessmux_api_request_duration_seconds",
			Help:    "Duration of HTTP API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accessmux_api_requests_total",
			Help: "Total number of HTTP API requests",
		},
		[]string{"method", "path", "status"},
	)
)

// RecordAPIRequest records one completed HTTP request.
func RecordAPIRequest(method, path, status string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, path, status).Inc()
	APIRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordIngest records the outcome of one ingest submission.
func RecordIngest(source string, inserted bool) {
	if inserted {
		EventsIngested.WithLabelValues(source).Inc()
	} else {
		EventsDuplicate.WithLabelValues(source).Inc()
	}
}
