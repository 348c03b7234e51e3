// Fleetwatch - Fleet Tracking and Live Vehicle Location Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package projection

import (
	"math"
	"reflect"
	"sync"
	"testing"

	"github.com/tomtom215/fleetwatch/internal/models"
)

func line() []models.Coordinate {
	return []models.Coordinate{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 1}, {Lat: 0, Lng: 2}, {Lat: 0, Lng: 3}}
}

func TestHaversine(t *testing.T) {
	// One degree of longitude on the equator.
	got := Haversine(models.Coordinate{Lat: 0, Lng: 0}, models.Coordinate{Lat: 0, Lng: 1})
	want := earthRadiusMeters * math.Pi / 180
	if math.Abs(got-want) > 0.001 {
		t.Errorf("Haversine() = %v, want %v", got, want)
	}
	if d := Haversine(models.Coordinate{Lat: 18.5, Lng: 73.8}, models.Coordinate{Lat: 18.5, Lng: 73.8}); d != 0 {
		t.Errorf("Haversine(same) = %v", d)
	}
}

func TestEngine_Update(t *testing.T) {
	pos := models.Coordinate{Lat: 0, Lng: 1.1}

	tests := []struct {
		name string
		path []models.Coordinate
		set  bool
		want []models.Coordinate
	}{
		{"unset", nil, false, nil},
		{"empty path", []models.Coordinate{}, true, []models.Coordinate{pos}},
		{"truncates at nearest", line(), true, []models.Coordinate{pos, {Lat: 0, Lng: 1}, {Lat: 0, Lng: 2}, {Lat: 0, Lng: 3}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var e Engine
			if tt.set {
				e.SetReferencePath(tt.path)
			}
			got := e.Update(pos)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Update() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEngine_Idempotent(t *testing.T) {
	var e Engine
	e.SetReferencePath(line())
	pos := models.Coordinate{Lat: 0.2, Lng: 2.4}

	first := e.Update(pos)
	second := e.Update(pos)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Update not idempotent: %v vs %v", first, second)
	}
}

func TestNearest_FirstIndexWinsTies(t *testing.T) {
	path := []models.Coordinate{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 2}, {Lat: 0, Lng: 2}}
	if got := Nearest(path, models.Coordinate{Lat: 0, Lng: 1.9}); got != 1 {
		t.Errorf("Nearest() = %d, want 1", got)
	}
	if got := Nearest(nil, models.Coordinate{}); got != -1 {
		t.Errorf("Nearest(nil) = %d, want -1", got)
	}
}

func TestSetReferencePath_Copies(t *testing.T) {
	path := line()
	var e Engine
	e.SetReferencePath(path)
	path[3] = models.Coordinate{Lat: 45, Lng: 45}

	got := e.Update(models.Coordinate{Lat: 0, Lng: 3})
	if got[len(got)-1] != (models.Coordinate{Lat: 0, Lng: 3}) {
		t.Errorf("engine observed caller mutation: %v", got)
	}

	e.SetReferencePath(nil)
	if e.HasReferencePath() || e.Update(models.Coordinate{}) != nil {
		t.Error("nil path should unset")
	}
}

func TestEngine_Concurrent(t *testing.T) {
	var e Engine
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			e.SetReferencePath(line())
		}()
		go func(i int) {
			defer wg.Done()
			_ = e.Update(models.Coordinate{Lat: 0, Lng: float64(i) / 4})
		}(i)
	}
	wg.Wait()
}
