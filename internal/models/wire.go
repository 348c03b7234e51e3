// Fleetwatch - Fleet Tracking and Live Vehicle Location Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package models

import (
	"time"
)

// PositionReport is the inbound wire shape shared by REST and WebSocket.
//
//	{"vehicleId":"V1","latitude":18.52,"longitude":73.86,"timestamp":"2026-01-02T10:00:00Z","speed":40}
//
// Range checks on the coordinates happen in the ingest service so both
// transports reject them the same way.
type PositionReport struct {
	VehicleID string   `json:"vehicleId" validate:"required,max=128"`
	Latitude  *float64 `json:"latitude" validate:"required"`
	Longitude *float64 `json:"longitude" validate:"required"`
	Timestamp string   `json:"timestamp,omitempty"`
	Speed     *float64 `json:"speed,omitempty"`
	TripID    string   `json:"tripId,omitempty" validate:"max=128"`
}

// LocationPoint is the compact point used in broadcasts and history payloads.
type LocationPoint struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Timestamp time.Time `json:"timestamp"`
	Speed     float64   `json:"speed"`
}

// BroadcastEvent is delivered to every subscriber of a vehicle topic.
type BroadcastEvent struct {
	VehicleID string        `json:"vehicleId"`
	Location  LocationPoint `json:"location"`
}

// RouteHistoryPayload is the catch-up history sent after a subscribe.
type RouteHistoryPayload struct {
	VehicleID string          `json:"vehicleId"`
	Scope     ScopeKey        `json:"scope"`
	Locations []LocationPoint `json:"locations"`
}

// Ack confirms an accepted report.
type Ack struct {
	VehicleID  string    `json:"vehicleId"`
	Scope      ScopeKey  `json:"scope"`
	Timestamp  time.Time `json:"timestamp"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// NewBroadcastEvent wraps a sample for fan-out.
func NewBroadcastEvent(s PositionSample) BroadcastEvent {
	return BroadcastEvent{VehicleID: s.VehicleID, Location: s.Point()}
}

// Points converts samples to wire points, preserving order.
func Points(samples []PositionSample) []LocationPoint {
	out := make([]LocationPoint, len(samples))
	for i, s := range samples {
		out[i] = s.Point()
	}
	return out
}
