// AccessMux - Tenant-Scoped Access Control Event Multiplexer
// Copyright 2026 the AccessMux authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/accessmux/accessmux

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/accessmux/accessmux/internal/middleware"
)

// Router configures the HTTP route tree around a Handler.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to every route in order.
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: h.cfg.Security.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         86400,
	}))

	// Probes and metrics stay unthrottled so monitoring never trips the
	// limiter.
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Get("/", h.Health)
		r.Get("/live", h.Live)
		r.Get("/ready", h.Ready)
	})
	r.Handle("/metrics", promhttp.Handler())

	// Login gets a strict per-IP budget independent of the general limit.
	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(middleware.PrometheusMetrics)
		r.With(httprate.LimitByIP(10, h.cfg.Security.RateLimitWindow)).Post("/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(h.Authenticate)
			r.Get("/me", h.Me)
			r.Post("/change-password", h.ChangePassword)
		})
	})

	// Tenant-scoped management API.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.LimitByIP(h.cfg.Security.RateLimitReqs, h.cfg.Security.RateLimitWindow))
		r.Use(middleware.PrometheusMetrics)
		r.Use(h.Authenticate)

		r.Route("/members", func(r chi.Router) {
			r.Post("/", h.CreateMember)
			r.Get("/", h.ListMembers)
			r.Get("/{id}", h.GetMember)
			r.Put("/{id}", h.UpdateMember)
			r.Delete("/{id}", h.DeleteMember)
		})

		r.Post("/events", h.IngestEvent)
		r.Get("/events", h.ListEvents)

		r.Get("/attendance/days", h.AttendanceDays)
	})

	// Platform administration.
	r.Route("/api/v1/admin", func(r chi.Router) {
		r.Use(httprate.LimitByIP(h.cfg.Security.RateLimitReqs, h.cfg.Security.RateLimitWindow))
		r.Use(middleware.PrometheusMetrics)
		r.Use(h.Authenticate)
		r.Use(h.RequireAdmin)

		r.Route("/tenants", func(r chi.Router) {
			r.Post("/", h.CreateTenant)
			r.Get("/", h.ListTenants)
			r.Get("/{id}", h.GetTenant)
			r.Patch("/{id}", h.UpdateTenant)
			r.Delete("/{id}", h.DeleteTenant)
			r.Post("/{id}/rotate-keys", h.RotateTenantKeys)
			r.Post("/{id}/owners", h.CreateOwner)
		})
	})

	// Device-facing surfaces authenticate with per-tenant secrets, not JWTs.
	r.Post("/hooks/devices/{edgeSecret}/events", h.DeviceWebhook)
	r.Get("/media/{filename}", h.ServeMedia)

	// Realtime channels. Upgraded connections outlive any request timeout,
	// so they bypass the rate limiter and metrics wrapper.
	r.Get("/ws/tenants/{id}", h.ClientWS)
	r.Get("/ws/edge/{edgeSecret}", h.GatewayWS)

	return r
}
