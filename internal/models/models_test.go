// Fleetwatch - Fleet Tracking and Live Vehicle Location Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package models

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func TestScopeKeys(t *testing.T) {
	at := time.Date(2026, 3, 4, 23, 30, 0, 0, time.FixedZone("IST", 5*3600+1800))

	tests := []struct {
		name  string
		key   ScopeKey
		kind  ScopeKind
		valid bool
		str   string
	}{
		{"trip", TripScope("T1"), ScopeTrip, true, "trip:T1"},
		{"day uses UTC", DayScope("V1", at), ScopeDay, true, "day:V1:2026-03-04"},
		{"empty trip", TripScope(""), ScopeTrip, false, "trip:"},
		{"bad day", ScopeKey("day:V1:yesterday"), ScopeDay, false, "day:V1:yesterday"},
		{"unknown kind", ScopeKey("week:V1"), "", false, "week:V1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.key.String() != tt.str {
				t.Errorf("String() = %q, want %q", tt.key, tt.str)
			}
			if tt.key.Kind() != tt.kind {
				t.Errorf("Kind() = %q, want %q", tt.key.Kind(), tt.kind)
			}
			if tt.key.Valid() != tt.valid {
				t.Errorf("Valid() = %v, want %v", tt.key.Valid(), tt.valid)
			}
		})
	}
}

func TestCoordinateValid(t *testing.T) {
	tests := []struct {
		c    Coordinate
		want bool
	}{
		{Coordinate{0, 0}, true},
		{Coordinate{90, 180}, true},
		{Coordinate{-90, -180}, true},
		{Coordinate{90.0001, 0}, false},
		{Coordinate{0, -180.5}, false},
	}
	for _, tt := range tests {
		if got := tt.c.Valid(); got != tt.want {
			t.Errorf("%+v.Valid() = %v, want %v", tt.c, got, tt.want)
		}
	}
}

func TestTimeRangeContains(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	r := TimeRange{From: t0, To: t0.Add(time.Hour)}

	if !r.Contains(t0) || !r.Contains(t0.Add(time.Hour)) {
		t.Error("bounds must be inclusive")
	}
	if r.Contains(t0.Add(-time.Nanosecond)) || r.Contains(t0.Add(time.Hour+time.Nanosecond)) {
		t.Error("outside points must be excluded")
	}
	if !(TimeRange{From: t0}).Contains(t0.Add(1000 * time.Hour)) {
		t.Error("zero To must be open-ended")
	}
}

func TestTripDistance(t *testing.T) {
	end := 1250.5
	back := 900.0
	tests := []struct {
		name string
		trip *Trip
		want float64
	}{
		{"completed", &Trip{StartMileage: 1000, EndMileage: &end}, 250.5},
		{"no end reading", &Trip{StartMileage: 1000}, 0},
		{"odometer rollback", &Trip{StartMileage: 1000, EndMileage: &back}, 0},
		{"nil trip", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.trip.Distance(); got != tt.want {
				t.Errorf("Distance() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBroadcastEventWireShape(t *testing.T) {
	ts := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	ev := NewBroadcastEvent(PositionSample{VehicleID: "V1", Latitude: 18.52, Longitude: 73.86, Speed: 40, Timestamp: ts})

	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"vehicleId":"V1","location":{"lat":18.52,"lng":73.86,"timestamp":"2026-01-02T10:00:00Z","speed":40}}`
	if string(data) != want {
		t.Errorf("got %s\nwant %s", data, want)
	}
}

func TestLastSampleTime(t *testing.T) {
	var nilSnap *LiveSnapshot
	if nilSnap.LastSampleTime() != nil {
		t.Error("nil snapshot must yield nil")
	}
	ts := time.Now()
	snap := &LiveSnapshot{PositionSample: PositionSample{Timestamp: ts}}
	if got := snap.LastSampleTime(); got == nil || !got.Equal(ts) {
		t.Errorf("LastSampleTime() = %v", got)
	}
}
