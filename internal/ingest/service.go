// Fleetwatch - Fleet Tracking and Live Vehicle Location Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

// Package ingest accepts position reports from drivers and trackers.
//
// Report is the single write path for both the REST endpoint and the
// WebSocket send_location message. For each accepted report it commits the
// snapshot and history entry through the position store and only then fans
// the sample out to live observers and the event relay.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/fleetwatch/internal/auth"
	"github.com/tomtom215/fleetwatch/internal/authz"
	"github.com/tomtom215/fleetwatch/internal/keylock"
	"github.com/tomtom215/fleetwatch/internal/logging"
	"github.com/tomtom215/fleetwatch/internal/metrics"
	"github.com/tomtom215/fleetwatch/internal/models"
	"github.com/tomtom215/fleetwatch/internal/validation"
)

// Transports reported in metrics and logs.
const (
	TransportREST      = "rest"
	TransportWebSocket = "websocket"
)

// Source identifies where a report came from. ObserverID is the hub
// observer of the sending connection (0 for REST) and is excluded from the
// resulting broadcast.
type Source struct {
	Transport  string
	ObserverID uint64
}

// Store commits accepted samples.
type Store interface {
	Commit(ctx context.Context, scope models.ScopeKey, sample models.PositionSample) (models.LiveSnapshot, error)
}

// Broadcaster fans a committed sample out to live observers.
type Broadcaster interface {
	Publish(vehicleID string, sample models.PositionSample, originID uint64)
}

// Relay forwards committed samples to downstream consumers.
type Relay interface {
	Publish(ctx context.Context, sample models.PositionSample) error
}

// Authorizer decides whether a principal may report for a vehicle.
type Authorizer interface {
	CanReport(ctx context.Context, p auth.Principal, vehicleID string) error
}

// Service is the location ingest service.
type Service struct {
	store      Store
	hub        Broadcaster
	relay      Relay
	authorizer Authorizer
	scopes     *ScopeResolver
	locks      keylock.Map
	now        func() time.Time
}

// Deps are the collaborators of a Service. Relay may be nil.
type Deps struct {
	Store      Store
	Hub        Broadcaster
	Relay      Relay
	Authorizer Authorizer
	Scopes     *ScopeResolver
}

// NewService creates a Service.
func NewService(deps Deps) *Service {
	scopes := deps.Scopes
	if scopes == nil {
		scopes = NewScopeResolver(nil)
	}
	return &Service{
		store:      deps.Store,
		hub:        deps.Hub,
		relay:      deps.Relay,
		authorizer: deps.Authorizer,
		scopes:     scopes,
		now:        time.Now,
	}
}

// Report validates, persists and publishes one position report for the
// calling principal.
func (s *Service) Report(ctx context.Context, p auth.Principal, report models.PositionReport, src Source) (models.Ack, error) {
	start := time.Now()
	ack, err := s.report(ctx, p, report, src)
	if err != nil {
		metrics.RecordIngest(src.Transport, metricResult(err), time.Since(start))
		return models.Ack{}, err
	}
	metrics.RecordIngest(src.Transport, "accepted", time.Since(start))
	return ack, nil
}

func (s *Service) report(ctx context.Context, p auth.Principal, report models.PositionReport, src Source) (models.Ack, error) {
	if p.IsZero() {
		return models.Ack{}, ErrUnauthorized
	}

	// Reject malformed input before touching the directory.
	receivedAt := s.now().UTC()
	sample, err := normalize(report, receivedAt)
	if err != nil {
		return models.Ack{}, err
	}

	if err := s.authorizer.CanReport(ctx, p, sample.VehicleID); err != nil {
		if !errors.Is(err, authz.ErrDenied) {
			return models.Ack{}, fmt.Errorf("authorize report: %w", err)
		}
		logging.Ctx(ctx).Debug().Err(err).Str("vehicle_id", sample.VehicleID).Str("user_id", p.UserID).Msg("Report rejected")
		return models.Ack{}, fmt.Errorf("%w: %w", ErrForbidden, err)
	}
	if p.Role == auth.RoleDriver {
		sample.DriverID = p.UserID
	}

	scope := s.scopes.ForReport(ctx, sample.VehicleID, sample.TripID, receivedAt)
	if scope.Kind() != models.ScopeTrip {
		sample.TripID = ""
	}

	unlock := s.locks.Lock(sample.VehicleID)
	if _, err := s.store.Commit(ctx, scope, sample); err != nil {
		unlock()
		logging.Ctx(ctx).Warn().Err(err).Str("vehicle_id", sample.VehicleID).Msg("Failed to commit position")
		return models.Ack{}, err
	}
	// Publishing under the vehicle lock keeps fan-out in commit order.
	s.hub.Publish(sample.VehicleID, sample, src.ObserverID)
	unlock()

	if s.relay != nil {
		if err := s.relay.Publish(ctx, sample); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("vehicle_id", sample.VehicleID).Msg("Relay publish failed")
		}
	}

	return models.Ack{
		VehicleID:  sample.VehicleID,
		Scope:      scope,
		Timestamp:  sample.Timestamp,
		ReceivedAt: receivedAt,
	}, nil
}

// normalize applies the required-field, range and default rules.
func normalize(report models.PositionReport, receivedAt time.Time) (models.PositionSample, error) {
	report.VehicleID = strings.TrimSpace(report.VehicleID)
	if verr := validation.ValidateStruct(&report); verr != nil {
		fields := verr.Errors()
		return models.PositionSample{}, &ValidationError{
			Field:  fields[0].Field,
			Reason: fields[0].Message,
			Fields: fields,
			Err:    ErrInvalidReport,
		}
	}

	coord := models.Coordinate{Lat: *report.Latitude, Lng: *report.Longitude}
	if !(coord.Lat >= models.MinLatitude && coord.Lat <= models.MaxLatitude) {
		return models.PositionSample{}, invalidField("latitude", "must be between -90 and 90", ErrInvalidCoordinate)
	}
	if !(coord.Lng >= models.MinLongitude && coord.Lng <= models.MaxLongitude) {
		return models.PositionSample{}, invalidField("longitude", "must be between -180 and 180", ErrInvalidCoordinate)
	}

	ts := receivedAt
	if report.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339Nano, report.Timestamp)
		if err != nil {
			return models.PositionSample{}, invalidField("timestamp", "must be an RFC 3339 timestamp", ErrInvalidReport)
		}
		ts = parsed.UTC()
	}

	speed := 0.0
	if report.Speed != nil && *report.Speed > 0 {
		speed = *report.Speed
	}

	return models.PositionSample{
		VehicleID:  report.VehicleID,
		TripID:     strings.TrimSpace(report.TripID),
		Latitude:   coord.Lat,
		Longitude:  coord.Lng,
		Speed:      speed,
		Timestamp:  ts,
		ReceivedAt: receivedAt,
	}, nil
}
