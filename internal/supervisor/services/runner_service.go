// Fleetwatch - Fleet Tracking and Live Vehicle Location Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package services

import "context"

// Runner is a component that already follows the suture Serve contract.
//
// Satisfied by *websocket.Hub and *events.Feed.
type Runner interface {
	Serve(ctx context.Context) error
}

// RunnerService gives a Runner a stable name in supervisor logs.
type RunnerService struct {
	runner Runner
	name   string
}

// NewRunnerService names runner.
func NewRunnerService(name string, runner Runner) *RunnerService {
	return &RunnerService{runner: runner, name: name}
}

// NewHubService supervises the broadcast hub. Canceling it closes every
// connected observer.
func NewHubService(hub Runner) *RunnerService {
	return NewRunnerService("broadcast-hub", hub)
}

// NewRelayFeedService supervises the cross-instance relay feed.
func NewRelayFeedService(feed Runner) *RunnerService {
	return NewRunnerService("relay-feed", feed)
}

func (r *RunnerService) Serve(ctx context.Context) error {
	return r.runner.Serve(ctx)
}

func (r *RunnerService) String() string {
	return r.name
}
