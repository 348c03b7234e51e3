// Fleetwatch - Fleet Tracking and Live Vehicle Location Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/fleetwatch/internal/auth"
	"github.com/tomtom215/fleetwatch/internal/middleware"
)

// Router wires handlers and middleware.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
	auth          *auth.Middleware
}

// NewRouter creates a Router.
func NewRouter(handler *Handler, jwtManager *auth.JWTManager) *Router {
	return &Router{
		handler:       handler,
		chiMiddleware: NewChiMiddleware(ChiMiddlewareConfigFrom(&handler.cfg.Security)),
		auth:          auth.NewMiddleware(jwtManager, respondAuthError),
	}
}

// Setup configures all HTTP routes.
func (router *Router) Setup() http.Handler {
	h := router.handler
	r := chi.NewRouter()

	// Global Middleware Stack
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS())
	r.Use(middleware.PrometheusMetrics)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusMethodNotAllowed, ErrCodeBadRequest, "method not allowed", nil)
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Get("/live", h.HealthLive)
		r.Get("/ready", h.HealthReady)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.auth.Authenticate)

		r.Get("/ws", h.WebSocket)

		r.With(
			router.auth.RequireRole(auth.RoleDriver, auth.RoleTracker, auth.RoleAdmin),
			router.chiMiddleware.RateLimitReports(),
		).Post("/location/update", h.UpdateLocation)

		r.Group(func(r chi.Router) {
			r.Use(router.auth.RequireRole(auth.RoleFleetOwner, auth.RoleAdmin))
			r.Use(chimiddleware.Compress(5, "application/json"))

			r.Get("/location/live/{vehicleId}", h.LiveLocation)
			r.Get("/location/history/{tripId}", h.TripHistory)
			r.Get("/location/history", h.VehicleHistory)
			r.Get("/vehicles/status", h.VehiclesStatus)
			r.Get("/trips/{tripId}/remaining", h.TripRemaining)
		})
	})

	return r
}
