// Fleetwatch - Fleet Tracking and Live Vehicle Location Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/tomtom215/fleetwatch/internal/auth"
	"github.com/tomtom215/fleetwatch/internal/config"
	"github.com/tomtom215/fleetwatch/internal/ingest"
	"github.com/tomtom215/fleetwatch/internal/models"
	"github.com/tomtom215/fleetwatch/internal/staleness"
	ws "github.com/tomtom215/fleetwatch/internal/websocket"
)

// Reporter is the ingest entry point shared with the websocket transport.
type Reporter interface {
	Report(ctx context.Context, p auth.Principal, report models.PositionReport, src ingest.Source) (models.Ack, error)
}

// PositionReader is the read side of the position store.
type PositionReader interface {
	GetSnapshot(ctx context.Context, vehicleID string) (models.LiveSnapshot, bool, error)
	ListSnapshots(ctx context.Context) ([]models.LiveSnapshot, error)
	GetHistory(ctx context.Context, scope models.ScopeKey, rng *models.TimeRange) ([]models.PositionSample, error)
	GetHistoryAcrossScopes(ctx context.Context, vehicleID string, rng models.TimeRange) ([]models.PositionSample, error)
	Ping(ctx context.Context) error
}

// Authorizer scopes reads to the vehicles a principal may see.
type Authorizer interface {
	CanView(ctx context.Context, p auth.Principal, object, vehicleID string) error
	VisibleVehicles(ctx context.Context, p auth.Principal) (bool, map[string]struct{}, error)
}

// TripDirectory looks up trips.
type TripDirectory interface {
	Trip(ctx context.Context, tripID string) (models.Trip, error)
	Ping(ctx context.Context) error
}

// RouteSource fetches reference paths. Nil disables remaining-route
// projection.
type RouteSource interface {
	ReferencePath(ctx context.Context, trip models.Trip) ([]models.Coordinate, error)
}

// HandlerDeps are the collaborators of a Handler.
type HandlerDeps struct {
	Config     *config.Config
	Reporter   Reporter
	Positions  PositionReader
	Authorizer Authorizer
	Trips      TripDirectory
	Routes     RouteSource
	Hub        *ws.Hub
}

// Handler holds the HTTP handlers.
type Handler struct {
	cfg        *config.Config
	reporter   Reporter
	positions  PositionReader
	authorizer Authorizer
	trips      TripDirectory
	routes     RouteSource
	wsHub      *ws.Hub
	staleness  staleness.Evaluator
	clientOpts ws.ClientOptions
	upgrader   websocket.Upgrader
	now        func() time.Time
}

// NewHandler creates a Handler.
func NewHandler(deps HandlerDeps) *Handler {
	tracking := deps.Config.Tracking
	h := &Handler{
		cfg:        deps.Config,
		reporter:   deps.Reporter,
		positions:  deps.Positions,
		authorizer: deps.Authorizer,
		trips:      deps.Trips,
		routes:     deps.Routes,
		wsHub:      deps.Hub,
		staleness:  staleness.New(tracking.LiveThreshold, tracking.RecentWindow),
		clientOpts: ws.ClientOptions{
			QueueSize: tracking.ObserverQueueSize,
			SendBurst: tracking.SendBurst,
		},
		now: time.Now,
	}
	if tracking.SendRate > 0 {
		h.clientOpts.SendRate = rate.Limit(tracking.SendRate)
	}
	h.upgrader = h.newUpgrader()
	return h
}

// principal returns the authenticated caller. Routes are mounted behind
// auth.Middleware.Authenticate so a missing principal is a wiring bug.
func principal(r *http.Request) auth.Principal {
	p, _ := auth.PrincipalFromContext(r.Context())
	return p
}
