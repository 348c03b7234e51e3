// Fleetwatch - Fleet Tracking and Live Vehicle Location Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

// Package directory reads vehicle, driver and trip rows owned by the fleet
// management application. The tracking path only reads; the Upsert methods
// exist for fleetctl seeding and tests.
package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/tomtom215/fleetwatch/internal/models"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("directory: not found")

// Directory is the sqlite-backed lookup service.
type Directory struct {
	db *sql.DB
}

// Open opens the sqlite database at path and ensures the schema exists.
// Use ":memory:" for an ephemeral directory.
func Open(ctx context.Context, path string) (*Directory, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open directory database: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent and avoids
	// SQLITE_BUSY under concurrent seeding.
	db.SetMaxOpenConns(1)

	d := &Directory{db: db}
	if err := d.Init(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize directory: %w", err)
	}
	return d, nil
}

// Init creates tables and indexes.
func (d *Directory) Init(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS vehicles (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		registration_number TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS drivers (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL DEFAULT '',
		assigned_vehicle_id TEXT
	);

	CREATE TABLE IF NOT EXISTS trips (
		id TEXT PRIMARY KEY,
		vehicle_id TEXT NOT NULL,
		driver_id TEXT NOT NULL,
		start_location TEXT NOT NULL DEFAULT '',
		end_location TEXT NOT NULL DEFAULT '',
		start_lat REAL,
		start_lng REAL,
		end_lat REAL,
		end_lng REAL,
		status TEXT NOT NULL,
		start_mileage REAL NOT NULL DEFAULT 0,
		end_mileage REAL,
		start_time TEXT NOT NULL,
		end_time TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_vehicles_owner ON vehicles(owner_id);
	CREATE INDEX IF NOT EXISTS idx_trips_vehicle_status ON trips(vehicle_id, status);
	`
	_, err := d.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database.
func (d *Directory) Close() error {
	return d.db.Close()
}

// Ping checks the connection.
func (d *Directory) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Vehicle returns one vehicle by id.
func (d *Directory) Vehicle(ctx context.Context, id string) (models.Vehicle, error) {
	var v models.Vehicle
	err := d.db.QueryRowContext(ctx,
		`SELECT id, owner_id, name, registration_number FROM vehicles WHERE id = ?`, id,
	).Scan(&v.ID, &v.OwnerID, &v.Name, &v.RegistrationNumber)
	if errors.Is(err, sql.ErrNoRows) {
		return v, fmt.Errorf("vehicle %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return v, fmt.Errorf("query vehicle: %w", err)
	}
	return v, nil
}

// VehicleOwner resolves vehicleId to ownerId.
func (d *Directory) VehicleOwner(ctx context.Context, vehicleID string) (string, error) {
	v, err := d.Vehicle(ctx, vehicleID)
	if err != nil {
		return "", err
	}
	return v.OwnerID, nil
}

// VehiclesByOwner lists an owner's vehicles ordered by id.
func (d *Directory) VehiclesByOwner(ctx context.Context, ownerID string) ([]models.Vehicle, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, owner_id, name, registration_number FROM vehicles WHERE owner_id = ? ORDER BY id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query vehicles: %w", err)
	}
	defer rows.Close()

	var out []models.Vehicle
	for rows.Next() {
		var v models.Vehicle
		if err := rows.Scan(&v.ID, &v.OwnerID, &v.Name, &v.RegistrationNumber); err != nil {
			return nil, fmt.Errorf("scan vehicle: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// DriverByUser returns the driver row linked to a user account.
func (d *Directory) DriverByUser(ctx context.Context, userID string) (models.Driver, error) {
	var (
		drv      models.Driver
		assigned sql.NullString
	)
	err := d.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, assigned_vehicle_id FROM drivers WHERE user_id = ?`, userID,
	).Scan(&drv.ID, &drv.UserID, &drv.Name, &assigned)
	if errors.Is(err, sql.ErrNoRows) {
		return drv, fmt.Errorf("driver for user %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return drv, fmt.Errorf("query driver: %w", err)
	}
	drv.AssignedVehicleID = assigned.String
	return drv, nil
}

// AssignedVehicle resolves a driver's user id to the vehicle they drive.
// A driver with no assignment yields ErrNotFound.
func (d *Directory) AssignedVehicle(ctx context.Context, userID string) (string, error) {
	drv, err := d.DriverByUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if drv.AssignedVehicleID == "" {
		return "", fmt.Errorf("no vehicle assigned to user %s: %w", userID, ErrNotFound)
	}
	return drv.AssignedVehicleID, nil
}

const tripColumns = `id, vehicle_id, driver_id, start_location, end_location,
	start_lat, start_lng, end_lat, end_lng, status, start_mileage, end_mileage, start_time, end_time`

// Trip returns one trip by id.
func (d *Directory) Trip(ctx context.Context, tripID string) (models.Trip, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+tripColumns+` FROM trips WHERE id = ?`, tripID)
	trip, err := scanTrip(row)
	if errors.Is(err, sql.ErrNoRows) {
		return trip, fmt.Errorf("trip %s: %w", tripID, ErrNotFound)
	}
	return trip, err
}

// OngoingTrip returns the vehicle's most recently started ongoing trip, or
// nil when it has none.
func (d *Directory) OngoingTrip(ctx context.Context, vehicleID string) (*models.Trip, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT `+tripColumns+` FROM trips WHERE vehicle_id = ? AND status = ? ORDER BY start_time DESC LIMIT 1`,
		vehicleID, string(models.TripOngoing))
	trip, err := scanTrip(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &trip, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrip(row rowScanner) (models.Trip, error) {
	var (
		t                                  models.Trip
		status, startTime                  string
		startLat, startLng, endLat, endLng sql.NullFloat64
		endMileage                         sql.NullFloat64
		endTime                            sql.NullString
	)
	err := row.Scan(&t.ID, &t.VehicleID, &t.DriverID, &t.StartLocation, &t.EndLocation,
		&startLat, &startLng, &endLat, &endLng, &status, &t.StartMileage, &endMileage, &startTime, &endTime)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return t, err
		}
		return t, fmt.Errorf("scan trip: %w", err)
	}

	t.Status = models.TripStatus(status)
	if startLat.Valid && startLng.Valid {
		t.StartPoint = &models.Coordinate{Lat: startLat.Float64, Lng: startLng.Float64}
	}
	if endLat.Valid && endLng.Valid {
		t.EndPoint = &models.Coordinate{Lat: endLat.Float64, Lng: endLng.Float64}
	}
	if endMileage.Valid {
		v := endMileage.Float64
		t.EndMileage = &v
	}
	if t.StartTime, err = time.Parse(time.RFC3339, startTime); err != nil {
		return t, fmt.Errorf("parse trip start time: %w", err)
	}
	if endTime.Valid && endTime.String != "" {
		et, err := time.Parse(time.RFC3339, endTime.String)
		if err != nil {
			return t, fmt.Errorf("parse trip end time: %w", err)
		}
		t.EndTime = &et
	}
	return t, nil
}
