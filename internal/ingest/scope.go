// Fleetwatch - Fleet Tracking and Live Vehicle Location Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/fleetwatch/internal/directory"
	"github.com/tomtom215/fleetwatch/internal/logging"
	"github.com/tomtom215/fleetwatch/internal/models"
)

// TripLookup reads trips from the vehicle directory.
type TripLookup interface {
	Trip(ctx context.Context, tripID string) (models.Trip, error)
}

// ScopeResolver picks the history scope for writes and catch-up reads.
// Directory failures fall back to the day scope so reporting never depends
// on trip metadata being reachable.
type ScopeResolver struct {
	trips TripLookup
}

// NewScopeResolver creates a resolver. A nil lookup always yields day scopes.
func NewScopeResolver(trips TripLookup) *ScopeResolver {
	return &ScopeResolver{trips: trips}
}

// ForReport returns the scope for a new sample: the trip scope when tripID
// names an ongoing trip of vehicleID, otherwise the UTC day of receipt.
func (r *ScopeResolver) ForReport(ctx context.Context, vehicleID, tripID string, receivedAt time.Time) models.ScopeKey {
	if r.ongoing(ctx, vehicleID, tripID) {
		return models.TripScope(tripID)
	}
	return models.DayScope(vehicleID, receivedAt)
}

// Active returns the scope catch-up history is read from: the trip the
// latest snapshot was reported under while that trip is still ongoing,
// otherwise today's day scope.
func (r *ScopeResolver) Active(ctx context.Context, vehicleID string, snap *models.LiveSnapshot, now time.Time) models.ScopeKey {
	if snap != nil && r.ongoing(ctx, vehicleID, snap.TripID) {
		return models.TripScope(snap.TripID)
	}
	return models.DayScope(vehicleID, now)
}

func (r *ScopeResolver) ongoing(ctx context.Context, vehicleID, tripID string) bool {
	if tripID == "" || r.trips == nil {
		return false
	}
	trip, err := r.trips.Trip(ctx, tripID)
	if err != nil {
		if !errors.Is(err, directory.ErrNotFound) {
			logging.Ctx(ctx).Warn().Err(err).Str("trip_id", tripID).Msg("Trip lookup failed, using day scope")
		}
		return false
	}
	return trip.VehicleID == vehicleID && trip.IsOngoing()
}
