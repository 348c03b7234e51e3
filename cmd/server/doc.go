// Fleetwatch - Fleet Tracking and Live Vehicle Location Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

/*
Package main is the Fleetwatch server.

Fleetwatch accepts GPS reports from drivers and trackers, keeps the latest
position of every vehicle plus its per-trip and per-day history, and pushes
accepted positions to fleet owners over WebSocket.

# Startup

 1. Configuration: koanf defaults, optional YAML file, environment
 2. Logging: zerolog, JSON or console
 3. Position store: BadgerDB (in-memory when STORE_IN_MEMORY=true)
 4. Directory: SQLite vehicles, drivers and trips
 5. Authorization: embedded Casbin policy, or POLICY_PATH
 6. Relay: Watermill gochannel, or NATS when EVENTS_NATS_URL is set
 7. Routing: OSRM client when ROUTING_ENABLED=true
 8. Supervisor tree and HTTP server

# Supervisor Tree

	fleetwatch
	├── data-layer:     store-gc
	├── realtime-layer: broadcast-hub, relay-feed (NATS only)
	└── api-layer:      http-server

SIGINT or SIGTERM cancels the tree. The HTTP server drains for
SHUTDOWN_TIMEOUT, the hub closes every observer, then the store and the
directory are closed.
*/
package main
