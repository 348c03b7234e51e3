// Fleetwatch - Fleet Tracking and Live Vehicle Location Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

/*
Package websocket implements the realtime broadcast hub and the WebSocket
transport used by tracking dashboards and driver devices.

Key Components:

  - Hub: per-vehicle topics mapping a vehicle id to its current observers
  - Client: one WebSocket connection; an Observer with a bounded send queue
  - Handler: upgrades authenticated HTTP requests into Clients
  - RelayFeed: republishes samples accepted by other instances into the hub

Protocol:

Every frame is a JSON object {"type": ..., "data": ...}.

Client to server:

  - join_vehicle {"vehicleId"}: subscribe; answered with catch-up
  - leave_vehicle {"vehicleId"}: unsubscribe
  - send_location: a position report, flat or {"vehicleId","location":{"lat","lng"}}
  - ping

Server to client:

  - receive_location: {"vehicleId","location":{"lat","lng","timestamp","speed"}}
  - receive_route_history: {"vehicleId","scope","locations":[...]}
  - ack: reply to send_location
  - error: {"code","message"}
  - pong

Catch-up:

Subscribe holds the topic lock while it reads the snapshot and recent
history and registers the observer. A publish for the same vehicle waits
for it, so a new observer receives the then-current snapshot before any
live event. A sample committed just before the subscribe may arrive twice,
once in catch-up and once live; none is missed.

Slow observers:

Publish never blocks. An observer whose queue is full is dropped from
every topic and its connection is closed.
*/
package websocket
