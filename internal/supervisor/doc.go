// Fleetwatch - Fleet Tracking and Live Vehicle Location Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

/*
Package supervisor runs Fleetwatch's long-lived services under suture v4.

The tree is split into three layers so a failure in one restarts only that
layer:

	fleetwatch
	├── data-layer
	│   └── store-gc          (badger value-log GC, if store.gc_interval > 0)
	├── realtime-layer
	│   ├── broadcast-hub     (observer registry, closes clients on shutdown)
	│   └── relay-feed        (cross-instance samples, NATS only)
	└── api-layer
	    └── http-server

Supervisor events (service start, failure, restart, backoff) are logged
through sutureslog using the slog bridge from the logging package.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddRealtimeService(services.NewHubService(hub))
	tree.AddAPIService(services.NewHTTPServerService(srv, cfg.Server.ShutdownTimeout))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err = tree.Serve(ctx)

Services return ctx.Err() when the tree shuts down. Any other return value
counts as a failure and the service is restarted with backoff.
*/
package supervisor
