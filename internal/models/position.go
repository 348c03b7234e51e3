// Fleetwatch - Fleet Tracking and Live Vehicle Location Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

// Package models defines the position, scope, trip and wire types shared
// by the store, hub, ingest and API layers.
package models

import (
	"time"
)

// Coordinate bounds.
const (
	MinLatitude  = -90.0
	MaxLatitude  = 90.0
	MinLongitude = -180.0
	MaxLongitude = 180.0
)

// Coordinate is a WGS84 point in degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether both components are inside their ranges.
func (c Coordinate) Valid() bool {
	return c.Lat >= MinLatitude && c.Lat <= MaxLatitude &&
		c.Lng >= MinLongitude && c.Lng <= MaxLongitude
}

// PositionSample is one accepted GPS reading. Samples are immutable once
// persisted.
type PositionSample struct {
	VehicleID string    `json:"vehicleId"`
	DriverID  string    `json:"driverId,omitempty"`
	TripID    string    `json:"tripId,omitempty"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Speed     float64   `json:"speed"` // km/h, never negative
	Timestamp time.Time `json:"timestamp"`

	// ReceivedAt is the server receipt instant. It orders nothing; arrival
	// order is the write order.
	ReceivedAt time.Time `json:"receivedAt"`
}

// Coordinate returns the sample position.
func (s PositionSample) Coordinate() Coordinate {
	return Coordinate{Lat: s.Latitude, Lng: s.Longitude}
}

// Point converts the sample to its wire form.
func (s PositionSample) Point() LocationPoint {
	return LocationPoint{
		Lat:       s.Latitude,
		Lng:       s.Longitude,
		Timestamp: s.Timestamp,
		Speed:     s.Speed,
	}
}

// LiveSnapshot is the last known position of a vehicle. Exactly one exists
// per vehicle once it has reported, and each accepted sample replaces it
// entirely.
type LiveSnapshot struct {
	PositionSample
	ReportingDriverID string    `json:"reportingDriverId,omitempty"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// LastSampleTime returns the snapshot timestamp as a pointer for the
// staleness evaluator. A nil snapshot yields nil.
func (s *LiveSnapshot) LastSampleTime() *time.Time {
	if s == nil {
		return nil
	}
	ts := s.Timestamp
	return &ts
}

// TimeRange bounds a history query. Both ends are inclusive and a zero
// value leaves that end open.
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Contains reports whether t falls inside the range.
func (r TimeRange) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && t.After(r.To) {
		return false
	}
	return true
}
