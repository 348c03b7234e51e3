// Fleetwatch - Fleet Tracking and Live Vehicle Location Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/fleetwatch/internal/auth"
	"github.com/tomtom215/fleetwatch/internal/config"
	"github.com/tomtom215/fleetwatch/internal/directory"
	"github.com/tomtom215/fleetwatch/internal/models"
	"github.com/tomtom215/fleetwatch/internal/store"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestTokenCmd(t *testing.T) {
	out, err := execute(t, "token", "--user", "user-d1", "--role", "driver", "--secret", testSecret)
	if err != nil {
		t.Fatalf("token error = %v", err)
	}

	jwtManager, _ := auth.NewJWTManager(&config.SecurityConfig{JWTSecret: testSecret})
	claims, err := jwtManager.ValidateToken(strings.TrimSpace(out))
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if claims.UserID != "user-d1" || claims.Role != auth.RoleDriver {
		t.Errorf("claims = %+v", claims)
	}

	if _, err := execute(t, "token", "--user", "u", "--role", "superuser", "--secret", testSecret); err == nil {
		t.Error("expected error for unknown role")
	}
}

func TestSeedCmd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "directory.db")

	steps := [][]string{
		{"seed", "vehicle", "--directory", path, "--id", "V1", "--owner", "owner-1", "--name", "Van 1"},
		{"seed", "driver", "--directory", path, "--id", "D1", "--user", "user-d1", "--vehicle", "V1"},
		{"seed", "trip", "--directory", path, "--id", "T1", "--vehicle", "V1", "--driver", "D1",
			"--start-point", "18.52,73.85", "--end-point", "18.60,73.90", "--start", "2026-05-10T08:00:00Z"},
	}
	for _, args := range steps {
		if out, err := execute(t, args...); err != nil {
			t.Fatalf("%v error = %v (%s)", args, err, out)
		}
	}

	ctx := context.Background()
	dir, err := directory.Open(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	defer dir.Close()

	if owner, err := dir.VehicleOwner(ctx, "V1"); err != nil || owner != "owner-1" {
		t.Errorf("VehicleOwner() = %q, %v", owner, err)
	}
	if v, err := dir.AssignedVehicle(ctx, "user-d1"); err != nil || v != "V1" {
		t.Errorf("AssignedVehicle() = %q, %v", v, err)
	}
	trip, err := dir.Trip(ctx, "T1")
	if err != nil {
		t.Fatal(err)
	}
	if !trip.IsOngoing() || !trip.HasWaypoints() || trip.StartPoint.Lat != 18.52 {
		t.Errorf("trip = %+v", trip)
	}
}

func TestSeedTripCmd_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "directory.db")
	tests := []struct {
		name string
		args []string
	}{
		{"bad status", []string{"--status", "Paused"}},
		{"bad start", []string{"--start", "yesterday"}},
		{"short point", []string{"--start-point", "18.5"}},
		{"out of range", []string{"--end-point", "95,10"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"seed", "trip", "--directory", path, "--id", "T9", "--vehicle", "V1", "--driver", "D1"}, tt.args...)
			if _, err := execute(t, args...); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestHistoryCmd(t *testing.T) {
	path := t.TempDir()
	s, err := store.Open(store.Options{Path: path})
	if err != nil {
		t.Fatal(err)
	}
	now := time.Now().UTC().Truncate(time.Second)
	sample := models.PositionSample{VehicleID: "V1", Latitude: 18.52, Longitude: 73.85, Speed: 42, Timestamp: now, ReceivedAt: now}
	if _, err := s.Commit(context.Background(), models.DayScope("V1", now), sample); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "history", "--store", path, "--vehicle", "V1")
	if err != nil {
		t.Fatalf("history error = %v", err)
	}
	if !strings.Contains(out, "18.520000") || !strings.Contains(out, "1 positions") {
		t.Errorf("output = %s", out)
	}

	out, err = execute(t, "history", "--store", path, "--vehicle", "V1", "--json")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `"lat": 18.52`) {
		t.Errorf("json output = %s", out)
	}
}
