// Fleetwatch - Fleet Tracking and Live Vehicle Location Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package directory

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tomtom215/fleetwatch/internal/models"
)

// UpsertVehicle inserts or replaces a vehicle row.
func (d *Directory) UpsertVehicle(ctx context.Context, v models.Vehicle) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO vehicles (id, owner_id, name, registration_number)
		VALUES (?, ?, ?, ?)`,
		v.ID, v.OwnerID, v.Name, v.RegistrationNumber)
	if err != nil {
		return fmt.Errorf("failed to upsert vehicle %s: %w", v.ID, err)
	}
	return nil
}

// UpsertDriver inserts or replaces a driver row.
func (d *Directory) UpsertDriver(ctx context.Context, drv models.Driver) error {
	var assigned sql.NullString
	if drv.AssignedVehicleID != "" {
		assigned = sql.NullString{String: drv.AssignedVehicleID, Valid: true}
	}
	_, err := d.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO drivers (id, user_id, name, assigned_vehicle_id)
		VALUES (?, ?, ?, ?)`,
		drv.ID, drv.UserID, drv.Name, assigned)
	if err != nil {
		return fmt.Errorf("failed to upsert driver %s: %w", drv.ID, err)
	}
	return nil
}

// UpsertTrip inserts or replaces a trip row.
func (d *Directory) UpsertTrip(ctx context.Context, t models.Trip) error {
	var startLat, startLng, endLat, endLng, endMileage sql.NullFloat64
	if t.StartPoint != nil {
		startLat = sql.NullFloat64{Float64: t.StartPoint.Lat, Valid: true}
		startLng = sql.NullFloat64{Float64: t.StartPoint.Lng, Valid: true}
	}
	if t.EndPoint != nil {
		endLat = sql.NullFloat64{Float64: t.EndPoint.Lat, Valid: true}
		endLng = sql.NullFloat64{Float64: t.EndPoint.Lng, Valid: true}
	}
	if t.EndMileage != nil {
		endMileage = sql.NullFloat64{Float64: *t.EndMileage, Valid: true}
	}
	var endTime sql.NullString
	if t.EndTime != nil {
		endTime = sql.NullString{String: t.EndTime.UTC().Format(time.RFC3339), Valid: true}
	}
	if t.Status == "" {
		t.Status = models.TripOngoing
	}

	_, err := d.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO trips
		(id, vehicle_id, driver_id, start_location, end_location, start_lat, start_lng, end_lat, end_lng,
		 status, start_mileage, end_mileage, start_time, end_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.VehicleID, t.DriverID, t.StartLocation, t.EndLocation,
		startLat, startLng, endLat, endLng,
		string(t.Status), t.StartMileage, endMileage, t.StartTime.UTC().Format(time.RFC3339), endTime)
	if err != nil {
		return fmt.Errorf("failed to upsert trip %s: %w", t.ID, err)
	}
	return nil
}
