// Fleetwatch - Fleet Tracking and Live Vehicle Location Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/fleetwatch/internal/authz"
	"github.com/tomtom215/fleetwatch/internal/ingest"
	"github.com/tomtom215/fleetwatch/internal/models"
	"github.com/tomtom215/fleetwatch/internal/staleness"
	"github.com/tomtom215/fleetwatch/internal/validation"
)

// maxReportBody bounds POST /location/update bodies.
const maxReportBody = 64 << 10

// defaultHistoryWindow applies when from is omitted.
const defaultHistoryWindow = 24 * time.Hour

// LiveLocationResponse is the payload of GET /location/live/{vehicleId}.
type LiveLocationResponse struct {
	Snapshot models.LiveSnapshot `json:"snapshot"`
	Status   staleness.State     `json:"status"`
	Active   bool                `json:"active"`
	Label    string              `json:"label"`
}

// TripHistoryResponse is the payload of GET /location/history/{tripId}.
type TripHistoryResponse struct {
	TripID    string                 `json:"tripId"`
	VehicleID string                 `json:"vehicleId"`
	Status    models.TripStatus      `json:"status"`
	Distance  float64                `json:"distance"`
	Locations []models.LocationPoint `json:"locations"`
}

// VehicleHistoryResponse is the payload of GET /location/history.
type VehicleHistoryResponse struct {
	VehicleID string                 `json:"vehicleId"`
	From      time.Time              `json:"from"`
	To        time.Time              `json:"to"`
	Locations []models.LocationPoint `json:"locations"`
}

type historyQuery struct {
	VehicleID string `json:"vehicle_id" validate:"required,max=128"`
	From      string `json:"from" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	To        string `json:"to" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

// UpdateLocation accepts a position report over REST.
func (h *Handler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	var report models.PositionReport
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxReportBody))
	if err := dec.Decode(&report); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body", nil)
		return
	}

	ack, err := h.reporter.Report(r.Context(), principal(r), report, ingest.Source{Transport: ingest.TransportREST})
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondSuccess(w, r, ack)
}

// LiveLocation returns a vehicle's snapshot with its staleness class.
func (h *Handler) LiveLocation(w http.ResponseWriter, r *http.Request) {
	vehicleID := strings.TrimSpace(chi.URLParam(r, "vehicleId"))
	if err := h.authorizer.CanView(r.Context(), principal(r), authz.ObjectLocation, vehicleID); err != nil {
		writeError(w, r, err)
		return
	}

	snap, found, err := h.positions.GetSnapshot(r.Context(), vehicleID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !found {
		writeError(w, r, fmt.Errorf("%w: %s", errSnapshotNotFound, vehicleID))
		return
	}

	now := h.now()
	last := snap.LastSampleTime()
	state := h.staleness.Classify(last, now)
	respondSuccess(w, r, LiveLocationResponse{
		Snapshot: snap,
		Status:   state,
		Active:   staleness.Active(state),
		Label:    h.staleness.Label(last, now),
	})
}

// TripHistory returns the full trip-scoped history in timestamp order.
func (h *Handler) TripHistory(w http.ResponseWriter, r *http.Request) {
	trip, ok := h.viewTrip(w, r)
	if !ok {
		return
	}

	samples, err := h.positions.GetHistory(r.Context(), models.TripScope(trip.ID), nil)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondSuccess(w, r, TripHistoryResponse{
		TripID:    trip.ID,
		VehicleID: trip.VehicleID,
		Status:    trip.Status,
		Distance:  trip.Distance(),
		Locations: models.Points(samples),
	})
}

// VehicleHistory merges every scope of a vehicle inside [from, to].
func (h *Handler) VehicleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := historyQuery{
		VehicleID: strings.TrimSpace(q.Get("vehicle_id")),
		From:      q.Get("from"),
		To:        q.Get("to"),
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		apiErr := verr.ToAPIError()
		respondErrorDetails(w, r, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details, nil)
		return
	}

	rng, err := parseRange(req.From, req.To, h.now())
	if err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeValidationFailed, err.Error(), nil)
		return
	}

	if err := h.authorizer.CanView(r.Context(), principal(r), authz.ObjectLocation, req.VehicleID); err != nil {
		writeError(w, r, err)
		return
	}

	samples, err := h.positions.GetHistoryAcrossScopes(r.Context(), req.VehicleID, rng)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondSuccess(w, r, VehicleHistoryResponse{
		VehicleID: req.VehicleID,
		From:      rng.From,
		To:        rng.To,
		Locations: models.Points(samples),
	})
}

// parseRange reads RFC 3339 bounds. to defaults to now and from to 24h
// before to.
func parseRange(fromStr, toStr string, now time.Time) (models.TimeRange, error) {
	to := now.UTC()
	if toStr != "" {
		t, err := time.Parse(time.RFC3339Nano, toStr)
		if err != nil {
			return models.TimeRange{}, fmt.Errorf("to: %w", err)
		}
		to = t.UTC()
	}
	from := to.Add(-defaultHistoryWindow)
	if fromStr != "" {
		t, err := time.Parse(time.RFC3339Nano, fromStr)
		if err != nil {
			return models.TimeRange{}, fmt.Errorf("from: %w", err)
		}
		from = t.UTC()
	}
	if from.After(to) {
		return models.TimeRange{}, fmt.Errorf("from must not be after to")
	}
	return models.TimeRange{From: from, To: to}, nil
}

// viewTrip loads the {tripId} trip and checks the caller may view it.
func (h *Handler) viewTrip(w http.ResponseWriter, r *http.Request) (models.Trip, bool) {
	tripID := strings.TrimSpace(chi.URLParam(r, "tripId"))
	trip, err := h.trips.Trip(r.Context(), tripID)
	if err != nil {
		writeError(w, r, err)
		return models.Trip{}, false
	}
	if err := h.authorizer.CanView(r.Context(), principal(r), authz.ObjectTrip, trip.VehicleID); err != nil {
		writeError(w, r, err)
		return models.Trip{}, false
	}
	return trip, true
}
