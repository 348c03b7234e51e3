// Fleetwatch - Fleet Tracking and Live Vehicle Location Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package models

import (
	"strings"
	"time"
)

// ScopeKind partitions route history.
type ScopeKind string

const (
	ScopeTrip ScopeKind = "trip"
	ScopeDay  ScopeKind = "day"
)

// dayLayout is the UTC calendar day used in day scope keys.
const dayLayout = "2006-01-02"

// ScopeKey identifies one route history sequence:
//
//	trip:<tripId>
//	day:<vehicleId>:<YYYY-MM-DD>
type ScopeKey string

// TripScope returns the scope for trip-bound tracking.
func TripScope(tripID string) ScopeKey {
	return ScopeKey(string(ScopeTrip) + ":" + tripID)
}

// DayScope returns the scope for the UTC day containing at.
func DayScope(vehicleID string, at time.Time) ScopeKey {
	return ScopeKey(string(ScopeDay) + ":" + vehicleID + ":" + at.UTC().Format(dayLayout))
}

// Kind returns the scope kind, or "" for a malformed key.
func (k ScopeKey) Kind() ScopeKind {
	switch {
	case strings.HasPrefix(string(k), string(ScopeTrip)+":"):
		return ScopeTrip
	case strings.HasPrefix(string(k), string(ScopeDay)+":"):
		return ScopeDay
	default:
		return ""
	}
}

// Valid reports whether the key has a known kind and a non-empty body.
func (k ScopeKey) Valid() bool {
	kind := k.Kind()
	if kind == "" {
		return false
	}
	body := strings.TrimPrefix(string(k), string(kind)+":")
	if kind == ScopeDay {
		i := strings.LastIndex(body, ":")
		if i <= 0 {
			return false
		}
		_, err := time.Parse(dayLayout, body[i+1:])
		return err == nil
	}
	return body != ""
}

func (k ScopeKey) String() string {
	return string(k)
}

// ScopeMeta describes one history sequence.
type ScopeMeta struct {
	Key         ScopeKey  `json:"key"`
	VehicleID   string    `json:"vehicleId"`
	Kind        ScopeKind `json:"kind"`
	CreatedAt   time.Time `json:"createdAt"`
	LastTouched time.Time `json:"lastTouched"`
	Count       int64     `json:"count"`
}
