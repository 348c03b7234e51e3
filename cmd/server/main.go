// Fleetwatch - Fleet Tracking and Live Vehicle Location Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/fleetwatch/internal/api"
	"github.com/tomtom215/fleetwatch/internal/auth"
	"github.com/tomtom215/fleetwatch/internal/authz"
	"github.com/tomtom215/fleetwatch/internal/config"
	"github.com/tomtom215/fleetwatch/internal/directory"
	"github.com/tomtom215/fleetwatch/internal/events"
	"github.com/tomtom215/fleetwatch/internal/ingest"
	"github.com/tomtom215/fleetwatch/internal/logging"
	"github.com/tomtom215/fleetwatch/internal/routing"
	"github.com/tomtom215/fleetwatch/internal/store"
	"github.com/tomtom215/fleetwatch/internal/supervisor"
	"github.com/tomtom215/fleetwatch/internal/supervisor/services"
	ws "github.com/tomtom215/fleetwatch/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})
	logging.Info().
		Str("environment", cfg.Server.Environment).
		Str("store_path", cfg.Store.Path).
		Bool("store_in_memory", cfg.Store.InMemory).
		Str("directory_path", cfg.Directory.Path).
		Msg("Starting Fleetwatch")

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("Fleetwatch exited with error")
	}
	logging.Info().Msg("Application stopped gracefully")
}

func run(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	positions, err := store.Open(store.Options{
		Path:     cfg.Store.Path,
		InMemory: cfg.Store.InMemory,
		Logger:   store.NewBadgerLogger(),
	})
	if err != nil {
		return err
	}
	defer closeLogged("position store", positions.Close)

	dir, err := directory.Open(ctx, cfg.Directory.Path)
	if err != nil {
		return err
	}
	defer closeLogged("directory", dir.Close)

	enforcer, err := authz.NewEnforcer(cfg.Security.PolicyPath)
	if err != nil {
		return err
	}
	authorizer := authz.NewAuthorizer(enforcer, dir)

	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		return err
	}

	scopes := ingest.NewScopeResolver(dir)
	hub := ws.NewHub(ws.HubConfig{
		Store:        positions,
		Scopes:       scopes,
		HistoryLimit: cfg.Tracking.HistoryCap,
	})

	deps := ingest.Deps{
		Store:      positions,
		Hub:        hub,
		Authorizer: authorizer,
		Scopes:     scopes,
	}
	var relay *events.Relay
	if cfg.Events.Enabled {
		relay, err = events.NewRelay(&cfg.Events)
		if err != nil {
			return err
		}
		defer closeLogged("event relay", relay.Close)
		deps.Relay = relay
		logging.Info().Bool("nats", relay.UsesNATS()).Str("instance_id", relay.InstanceID()).Msg("Event relay enabled")
	}
	reporter := ingest.NewService(deps)

	handlerDeps := api.HandlerDeps{
		Config:     cfg,
		Reporter:   reporter,
		Positions:  positions,
		Authorizer: authorizer,
		Trips:      dir,
		Hub:        hub,
	}
	if cfg.Routing.Enabled {
		routes, err := routing.NewClient(&cfg.Routing)
		if err != nil {
			return err
		}
		defer routes.Close()
		handlerDeps.Routes = routes
		logging.Info().Str("base_url", cfg.Routing.BaseURL).Msg("Routing enabled")
	}

	router := api.NewRouter(api.NewHandler(handlerDeps), jwtManager)
	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout + 5*time.Second,
	})
	if err != nil {
		return err
	}

	if cfg.Store.GCInterval > 0 && !cfg.Store.InMemory {
		tree.AddDataService(services.NewStoreGCService(positions, cfg.Store.GCInterval))
	}
	tree.AddRealtimeService(services.NewHubService(hub))
	if relay != nil && relay.UsesNATS() {
		feed := events.NewFeed(relay, hub, relay.WildcardTopic())
		tree.AddRealtimeService(services.NewRelayFeedService(feed))
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	logging.Info().Str("addr", server.Addr).Msg("Starting supervisor tree")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}
	return nil
}

func closeLogged(name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logging.Error().Err(err).Str("component", name).Msg("Error during close")
	}
}

