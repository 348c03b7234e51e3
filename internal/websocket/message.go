// Fleetwatch - Fleet Tracking and Live Vehicle Location Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package websocket

import (
	"github.com/goccy/go-json"

	"github.com/tomtom215/fleetwatch/internal/models"
)

// Message types for WebSocket communication
const (
	MessageTypeJoinVehicle  = "join_vehicle"
	MessageTypeLeaveVehicle = "leave_vehicle"
	MessageTypeSendLocation = "send_location"
	MessageTypePing         = "ping"

	MessageTypeReceiveLocation     = "receive_location"
	MessageTypeReceiveRouteHistory = "receive_route_history"
	MessageTypeAck                 = "ack"
	MessageTypeError               = "error"
	MessageTypePong                = "pong"
)

// Message is an outbound frame.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// inboundMessage is a frame read from a client. Data is decoded per type.
type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// VehiclePayload is the body of join_vehicle and leave_vehicle.
type VehiclePayload struct {
	VehicleID string `json:"vehicleId"`
}

// ErrorPayload is the body of an error frame.
type ErrorPayload struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	VehicleID string `json:"vehicleId,omitempty"`
}

// legacyLocation is the nested form older driver apps send.
type legacyLocation struct {
	Lat       *float64 `json:"lat"`
	Lng       *float64 `json:"lng"`
	Timestamp string   `json:"timestamp,omitempty"`
	Speed     *float64 `json:"speed,omitempty"`
}

type sendLocationPayload struct {
	models.PositionReport
	Location *legacyLocation `json:"location,omitempty"`
}

// decodeSendLocation accepts both the flat report and the legacy nested
// {"vehicleId","location":{"lat","lng"}} form. Flat fields win when both
// are present.
func decodeSendLocation(data []byte) (models.PositionReport, error) {
	var payload sendLocationPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return models.PositionReport{}, err
	}
	report := payload.PositionReport
	if loc := payload.Location; loc != nil {
		if report.Latitude == nil {
			report.Latitude = loc.Lat
		}
		if report.Longitude == nil {
			report.Longitude = loc.Lng
		}
		if report.Timestamp == "" {
			report.Timestamp = loc.Timestamp
		}
		if report.Speed == nil {
			report.Speed = loc.Speed
		}
	}
	return report, nil
}

func locationMessage(sample models.PositionSample) Message {
	return Message{Type: MessageTypeReceiveLocation, Data: models.NewBroadcastEvent(sample)}
}

func errorMessage(code, message, vehicleID string) Message {
	return Message{Type: MessageTypeError, Data: ErrorPayload{Code: code, Message: message, VehicleID: vehicleID}}
}

// MarshalMessage converts a message to JSON
func MarshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
