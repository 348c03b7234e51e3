// Fleetwatch - Fleet Tracking and Live Vehicle Location Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

// Package staleness classifies how fresh a vehicle's last position is.
package staleness

import (
	"time"

	"github.com/dustin/go-humanize"
)

// DefaultLiveThreshold separates Live from Stale.
const DefaultLiveThreshold = 5 * time.Minute

// State is a freshness class.
type State string

const (
	Never  State = "never"
	Live   State = "live"
	Recent State = "recent"
	Stale  State = "stale"
)

// Active reports whether s counts as an active vehicle on status boards.
func Active(s State) bool {
	return s == Live
}

// Evaluator classifies last-sample times against a clock supplied by the
// caller. The zero value uses DefaultLiveThreshold with no Recent bucket.
type Evaluator struct {
	// LiveThreshold is the maximum age of a Live sample (exclusive).
	LiveThreshold time.Duration

	// RecentWindow, when greater than LiveThreshold, labels ages in
	// [LiveThreshold, RecentWindow) as Recent instead of Stale.
	RecentWindow time.Duration
}

// New returns an Evaluator. A non-positive live threshold falls back to
// DefaultLiveThreshold.
func New(liveThreshold, recentWindow time.Duration) Evaluator {
	if liveThreshold <= 0 {
		liveThreshold = DefaultLiveThreshold
	}
	return Evaluator{LiveThreshold: liveThreshold, RecentWindow: recentWindow}
}

func (e Evaluator) live() time.Duration {
	if e.LiveThreshold <= 0 {
		return DefaultLiveThreshold
	}
	return e.LiveThreshold
}

// Classify returns the state of a vehicle whose latest sample was taken at
// last. A nil last means the vehicle never reported. Timestamps in the
// future (device clock skew) are Live.
func (e Evaluator) Classify(last *time.Time, now time.Time) State {
	if last == nil {
		return Never
	}
	age := now.Sub(*last)
	live := e.live()
	switch {
	case age < live:
		return Live
	case e.RecentWindow > live && age < e.RecentWindow:
		return Recent
	default:
		return Stale
	}
}

// Label renders a short human description such as "3 minutes ago".
func (e Evaluator) Label(last *time.Time, now time.Time) string {
	if last == nil {
		return "never reported"
	}
	if !last.Before(now) {
		return "just now"
	}
	return humanize.RelTime(*last, now, "ago", "from now")
}
