// Fleetwatch - Fleet Tracking and Live Vehicle Location Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

/*
Package events relays accepted position samples over Watermill.

Every sample committed by ingest is published as JSON to
"<prefix>.<vehicleId>" (default prefix "fleet.location"). Two backends are
supported:

  - gochannel: in-process pub/sub, the default. Useful for local consumers
    and tests.
  - NATS core (watermill-nats, JetStream disabled) when events.nats_url is
    set. Each instance also runs a Feed on "<prefix>.>" so observers on one
    instance see samples ingested by another.

Publishing goes through a gobreaker circuit breaker. Relay failures are
logged by the caller and never fail a report.

Message metadata:

	vehicle_id       vehicle the sample belongs to
	origin_instance  random id of the publishing process
*/
package events
