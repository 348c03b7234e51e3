// Fleetwatch - Fleet Tracking and Live Vehicle Location Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package api

import (
	"net/http"
	"strconv"

	"github.com/tomtom215/fleetwatch/internal/logging"
	"github.com/tomtom215/fleetwatch/internal/models"
	"github.com/tomtom215/fleetwatch/internal/projection"
)

// RemainingRouteResponse is the payload of GET /trips/{tripId}/remaining.
// Degraded responses carry no remaining path; clients show the traveled
// history only.
type RemainingRouteResponse struct {
	TripID    string                 `json:"tripId"`
	VehicleID string                 `json:"vehicleId"`
	Position  models.Coordinate      `json:"position"`
	Remaining []models.Coordinate    `json:"remaining"`
	Traveled  []models.LocationPoint `json:"traveled"`
	Degraded  bool                   `json:"degraded"`
	Reason    string                 `json:"reason,omitempty"`
}

// TripRemaining projects the remaining reference path from ?lat=&lng=.
func (h *Handler) TripRemaining(w http.ResponseWriter, r *http.Request) {
	pos, ok := parsePosition(r)
	if !ok {
		respondError(w, r, http.StatusBadRequest, ErrCodeValidationFailed, "lat and lng must be valid coordinates", nil)
		return
	}

	trip, ok := h.viewTrip(w, r)
	if !ok {
		return
	}

	traveled, err := h.positions.GetHistory(r.Context(), models.TripScope(trip.ID), nil)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := RemainingRouteResponse{
		TripID:    trip.ID,
		VehicleID: trip.VehicleID,
		Position:  pos,
		Remaining: []models.Coordinate{},
		Traveled:  models.Points(traveled),
	}

	switch {
	case h.routes == nil:
		resp.Degraded, resp.Reason = true, "routing disabled"
	case !trip.HasWaypoints():
		resp.Degraded, resp.Reason = true, "trip has no waypoints"
	default:
		path, err := h.routes.ReferencePath(r.Context(), trip)
		if err != nil {
			logging.Ctx(r.Context()).Warn().Err(err).Str("trip_id", trip.ID).Msg("Reference path unavailable")
			resp.Degraded, resp.Reason = true, "routing unavailable"
			break
		}
		var engine projection.Engine
		engine.SetReferencePath(path)
		resp.Remaining = engine.Update(pos)
	}

	respondSuccess(w, r, resp)
}

func parsePosition(r *http.Request) (models.Coordinate, bool) {
	q := r.URL.Query()
	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil {
		return models.Coordinate{}, false
	}
	lng, err := strconv.ParseFloat(q.Get("lng"), 64)
	if err != nil {
		return models.Coordinate{}, false
	}
	c := models.Coordinate{Lat: lat, Lng: lng}
	return c, c.Valid()
}
