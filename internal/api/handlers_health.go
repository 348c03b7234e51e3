// Fleetwatch - Fleet Tracking and Live Vehicle Location Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package api

import (
	"context"
	"net/http"
	"time"
)

const readinessTimeout = 2 * time.Second

// HealthResponse reports component checks.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
	Topics int               `json:"topics"`
}

// HealthLive reports that the process is serving.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, r, HealthResponse{Status: "ok", Topics: h.topicCount()})
}

// HealthReady pings the position store and the directory.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	checks := map[string]string{"store": "ok", "directory": "ok"}
	ready := true
	if err := h.positions.Ping(ctx); err != nil {
		checks["store"], ready = err.Error(), false
	}
	if h.trips != nil {
		if err := h.trips.Ping(ctx); err != nil {
			checks["directory"], ready = err.Error(), false
		}
	}

	if !ready {
		respondErrorDetails(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "not ready", checks, nil)
		return
	}
	respondSuccess(w, r, HealthResponse{Status: "ready", Checks: checks, Topics: h.topicCount()})
}

func (h *Handler) topicCount() int {
	if h.wsHub == nil {
		return 0
	}
	return h.wsHub.TopicCount()
}
