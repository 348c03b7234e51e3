// Fleetwatch - Fleet Tracking and Live Vehicle Location Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package models

import (
	"time"
)

// TripStatus is the lifecycle state of a trip.
type TripStatus string

const (
	TripOngoing   TripStatus = "Ongoing"
	TripCompleted TripStatus = "Completed"
)

// Vehicle is a directory row. Fleetwatch never writes it.
type Vehicle struct {
	ID                 string `json:"id"`
	OwnerID            string `json:"ownerId"`
	Name               string `json:"name"`
	RegistrationNumber string `json:"registrationNumber"`
}

// Driver is a directory row linking a user account to a vehicle.
type Driver struct {
	ID                string `json:"id"`
	UserID            string `json:"userId"`
	Name              string `json:"name"`
	AssignedVehicleID string `json:"assignedVehicleId,omitempty"`
}

// Trip is a planned or completed journey.
type Trip struct {
	ID            string      `json:"id"`
	VehicleID     string      `json:"vehicleId"`
	DriverID      string      `json:"driverId"`
	StartLocation string      `json:"startLocation"`
	EndLocation   string      `json:"endLocation"`
	StartPoint    *Coordinate `json:"startPoint,omitempty"`
	EndPoint      *Coordinate `json:"endPoint,omitempty"`
	Status        TripStatus  `json:"status"`
	StartMileage  float64     `json:"startMileage"`
	EndMileage    *float64    `json:"endMileage,omitempty"`
	StartTime     time.Time   `json:"startTime"`
	EndTime       *time.Time  `json:"endTime,omitempty"`
}

// IsOngoing reports whether the trip accepts trip-scoped history.
func (t *Trip) IsOngoing() bool {
	return t != nil && t.Status == TripOngoing
}

// Distance is endMileage - startMileage. It is zero without an end reading
// and never negative.
func (t *Trip) Distance() float64 {
	if t == nil || t.EndMileage == nil {
		return 0
	}
	d := *t.EndMileage - t.StartMileage
	if d < 0 {
		return 0
	}
	return d
}

// HasWaypoints reports whether both ends carry coordinates.
func (t *Trip) HasWaypoints() bool {
	return t != nil && t.StartPoint != nil && t.EndPoint != nil
}
