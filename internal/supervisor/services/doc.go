// Fleetwatch - Fleet Tracking and Live Vehicle Location Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

/*
Package services adapts Fleetwatch components to suture.Service.

	HTTPServerService   *http.Server with graceful Shutdown on cancel
	RunnerService       anything with Serve(ctx) error, given a stable name
	                    (broadcast hub, relay feed)
	StoreGCService      periodic badger value-log GC

Every wrapper implements fmt.Stringer so suture logs a readable name, and
returns ctx.Err() on a clean stop.
*/
package services
