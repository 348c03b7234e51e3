// Fleetwatch - Fleet Tracking and Live Vehicle Location Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package api

import (
	"net/http"
	"sort"
	"time"

	"github.com/tomtom215/fleetwatch/internal/models"
	"github.com/tomtom215/fleetwatch/internal/staleness"
)

// VehicleStatus is one row of the status board.
type VehicleStatus struct {
	VehicleID string                `json:"vehicleId"`
	Status    staleness.State       `json:"status"`
	Label     string                `json:"label"`
	LastSeen  *time.Time            `json:"lastSeen,omitempty"`
	Location  *models.LocationPoint `json:"location,omitempty"`
	TripID    string                `json:"tripId,omitempty"`
}

// VehicleStatusBoard groups visible vehicles by liveness.
type VehicleStatusBoard struct {
	Active   []VehicleStatus `json:"active"`
	Inactive []VehicleStatus `json:"inactive"`
}

// VehiclesStatus classifies every visible vehicle. Owned vehicles that
// never reported are listed as inactive with status "never".
func (h *Handler) VehiclesStatus(w http.ResponseWriter, r *http.Request) {
	all, visible, err := h.authorizer.VisibleVehicles(r.Context(), principal(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	snapshots, err := h.positions.ListSnapshots(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	respondSuccess(w, r, h.buildStatusBoard(snapshots, all, visible, h.now()))
}

func (h *Handler) buildStatusBoard(snapshots []models.LiveSnapshot, all bool, visible map[string]struct{}, now time.Time) VehicleStatusBoard {
	board := VehicleStatusBoard{Active: []VehicleStatus{}, Inactive: []VehicleStatus{}}
	seen := make(map[string]struct{}, len(snapshots))

	for i := range snapshots {
		snap := &snapshots[i]
		if _, ok := visible[snap.VehicleID]; !all && !ok {
			continue
		}
		seen[snap.VehicleID] = struct{}{}

		last := snap.LastSampleTime()
		point := snap.Point()
		row := VehicleStatus{
			VehicleID: snap.VehicleID,
			Status:    h.staleness.Classify(last, now),
			Label:     h.staleness.Label(last, now),
			LastSeen:  last,
			Location:  &point,
			TripID:    snap.TripID,
		}
		if staleness.Active(row.Status) {
			board.Active = append(board.Active, row)
		} else {
			board.Inactive = append(board.Inactive, row)
		}
	}

	for id := range visible {
		if _, ok := seen[id]; ok {
			continue
		}
		board.Inactive = append(board.Inactive, VehicleStatus{
			VehicleID: id,
			Status:    staleness.Never,
			Label:     h.staleness.Label(nil, now),
		})
	}

	sortStatuses(board.Active)
	sortStatuses(board.Inactive)
	return board
}

func sortStatuses(rows []VehicleStatus) {
	sort.Slice(rows, func(i, j int) bool { return rows[i].VehicleID < rows[j].VehicleID })
}
