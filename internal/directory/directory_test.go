// Fleetwatch - Fleet Tracking and Live Vehicle Location Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package directory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/fleetwatch/internal/models"
)

func newTestDirectory(t *testing.T) *Directory {
	t.Helper()
	d, err := Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func seed(t *testing.T, d *Directory) {
	t.Helper()
	ctx := context.Background()
	for _, v := range []models.Vehicle{
		{ID: "V1", OwnerID: "owner-1", Name: "Tata Ace", RegistrationNumber: "MH12AB1234"},
		{ID: "V2", OwnerID: "owner-1", Name: "Eicher Pro"},
		{ID: "V3", OwnerID: "owner-2"},
	} {
		if err := d.UpsertVehicle(ctx, v); err != nil {
			t.Fatal(err)
		}
	}
	if err := d.UpsertDriver(ctx, models.Driver{ID: "D1", UserID: "user-d1", Name: "Ravi", AssignedVehicleID: "V1"}); err != nil {
		t.Fatal(err)
	}
	if err := d.UpsertDriver(ctx, models.Driver{ID: "D2", UserID: "user-d2"}); err != nil {
		t.Fatal(err)
	}
}

func TestVehicleLookups(t *testing.T) {
	d := newTestDirectory(t)
	seed(t, d)
	ctx := context.Background()

	owner, err := d.VehicleOwner(ctx, "V1")
	if err != nil || owner != "owner-1" {
		t.Errorf("VehicleOwner(V1) = %q, %v", owner, err)
	}

	if _, err := d.VehicleOwner(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("VehicleOwner(missing) error = %v, want ErrNotFound", err)
	}

	vehicles, err := d.VehiclesByOwner(ctx, "owner-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(vehicles) != 2 || vehicles[0].ID != "V1" || vehicles[1].ID != "V2" {
		t.Errorf("VehiclesByOwner = %+v", vehicles)
	}
}

func TestAssignedVehicle(t *testing.T) {
	d := newTestDirectory(t)
	seed(t, d)
	ctx := context.Background()

	tests := []struct {
		user    string
		want    string
		wantErr error
	}{
		{"user-d1", "V1", nil},
		{"user-d2", "", ErrNotFound},
		{"nobody", "", ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.user, func(t *testing.T) {
			got, err := d.AssignedVehicle(ctx, tt.user)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("AssignedVehicle(%s) = %q, %v; want %q", tt.user, got, err, tt.want)
			}
		})
	}
}

func TestTrips(t *testing.T) {
	d := newTestDirectory(t)
	seed(t, d)
	ctx := context.Background()

	start := time.Date(2026, 5, 10, 6, 0, 0, 0, time.UTC)
	end := start.Add(3 * time.Hour)
	endMileage := 12450.0

	completed := models.Trip{
		ID: "T1", VehicleID: "V1", DriverID: "D1",
		StartLocation: "Pune", EndLocation: "Mumbai",
		Status: models.TripCompleted, StartMileage: 12300, EndMileage: &endMileage,
		StartTime: start, EndTime: &end,
	}
	ongoing := models.Trip{
		ID: "T2", VehicleID: "V1", DriverID: "D1",
		StartLocation: "Mumbai", EndLocation: "Nashik",
		StartPoint: &models.Coordinate{Lat: 19.07, Lng: 72.87},
		EndPoint:   &models.Coordinate{Lat: 19.99, Lng: 73.78},
		Status:     models.TripOngoing, StartMileage: 12450,
		StartTime: end.Add(time.Hour),
	}
	for _, trip := range []models.Trip{completed, ongoing} {
		if err := d.UpsertTrip(ctx, trip); err != nil {
			t.Fatal(err)
		}
	}

	got, err := d.Trip(ctx, "T1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Distance() != 150 {
		t.Errorf("Distance() = %v, want 150", got.Distance())
	}
	if got.EndTime == nil || !got.EndTime.Equal(end) {
		t.Errorf("EndTime = %v, want %v", got.EndTime, end)
	}

	on, err := d.OngoingTrip(ctx, "V1")
	if err != nil {
		t.Fatal(err)
	}
	if on == nil || on.ID != "T2" || !on.HasWaypoints() {
		t.Errorf("OngoingTrip(V1) = %+v", on)
	}

	none, err := d.OngoingTrip(ctx, "V2")
	if err != nil || none != nil {
		t.Errorf("OngoingTrip(V2) = %+v, %v; want nil, nil", none, err)
	}

	if _, err := d.Trip(ctx, "T404"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Trip(T404) error = %v, want ErrNotFound", err)
	}
}
