// Fleetwatch - Fleet Tracking and Live Vehicle Location Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

/*
Package api exposes the Fleetwatch HTTP surface on a chi router.

Routes (all under /api/v1 unless noted):

	POST /location/update                 driver, tracker, admin
	GET  /location/live/{vehicleId}       fleet_owner, admin
	GET  /location/history/{tripId}       fleet_owner, admin
	GET  /location/history?vehicle_id=&from=&to=
	GET  /vehicles/status                 fleet_owner, admin
	GET  /trips/{tripId}/remaining?lat=&lng=
	GET  /ws                              any authenticated principal
	GET  /health/live, /health/ready      unauthenticated
	GET  /metrics                         unauthenticated (root)

Every JSON response uses the envelope

	{"success":true,"data":{...},"meta":{"timestamp":"...","request_id":"..."}}
	{"success":false,"error":{"code":"...","message":"...","details":...},"meta":{...}}

Errors from ingest, the store and the directory are mapped to status codes
and envelope codes in errors.go. Store failures are 503 SERVICE_UNAVAILABLE
with Retry-After so devices resend the report.

Fleet owners only see vehicles they own. Admins see every vehicle.
*/
package api
