// Fleetwatch - Fleet Tracking and Live Vehicle Location Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

// Package projection derives the remaining route of a trip from its
// reference path and the vehicle's current position.
package projection

import (
	"math"
	"sync"

	"github.com/tomtom215/fleetwatch/internal/models"
)

// earthRadiusMeters is the mean Earth radius used by Haversine.
const earthRadiusMeters = 6371000.0

// Haversine returns the great-circle distance between a and b in meters.
func Haversine(a, b models.Coordinate) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMeters * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Nearest returns the index of the path point closest to pos, or -1 for
// an empty path. The first index wins ties.
func Nearest(path []models.Coordinate, pos models.Coordinate) int {
	best, bestDist := -1, math.Inf(1)
	for i, p := range path {
		if d := Haversine(p, pos); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// Remaining returns pos followed by path from its nearest point to the end.
// An empty path yields just [pos]. The result never aliases path.
func Remaining(path []models.Coordinate, pos models.Coordinate) []models.Coordinate {
	i := Nearest(path, pos)
	if i < 0 {
		return []models.Coordinate{pos}
	}
	out := make([]models.Coordinate, 0, len(path)-i+1)
	out = append(out, pos)
	return append(out, path[i:]...)
}

// Engine holds one trip's reference path. It is safe for concurrent use.
type Engine struct {
	mu   sync.RWMutex
	path []models.Coordinate
	set  bool
}

// SetReferencePath replaces the reference path. A nil path unsets it.
func (e *Engine) SetReferencePath(path []models.Coordinate) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if path == nil {
		e.path, e.set = nil, false
		return
	}
	e.path = append(make([]models.Coordinate, 0, len(path)), path...)
	e.set = true
}

// HasReferencePath reports whether a path is set.
func (e *Engine) HasReferencePath() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.set
}

// Update computes the remaining path for pos. Without a reference path it
// returns nil.
func (e *Engine) Update(pos models.Coordinate) []models.Coordinate {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.set {
		return nil
	}
	return Remaining(e.path, pos)
}
