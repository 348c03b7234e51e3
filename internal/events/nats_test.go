// Fleetwatch - Fleet Tracking and Live Vehicle Location Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package events

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"

	"github.com/tomtom215/fleetwatch/internal/config"
	"github.com/tomtom215/fleetwatch/internal/models"
)

// runNATS starts an embedded core NATS server on a random port.
func runNATS(t *testing.T) string {
	t.Helper()
	ns, err := server.NewServer(&server.Options{
		Host:   "127.0.0.1",
		Port:   server.RANDOM_PORT,
		NoLog:  true,
		NoSigs: true,
	})
	if err != nil {
		t.Fatalf("nats server: %v", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		ns.Shutdown()
		t.Fatal("nats server not ready")
	}
	t.Cleanup(ns.Shutdown)
	return ns.ClientURL()
}

func newNATSRelay(t *testing.T, url string) *Relay {
	t.Helper()
	r, err := NewRelay(&config.EventsConfig{Enabled: true, NATSURL: url})
	if err != nil {
		t.Fatalf("NewRelay() error = %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestFeed_CrossInstanceOverNATS(t *testing.T) {
	url := runNATS(t)
	a := newNATSRelay(t, url)
	b := newNATSRelay(t, url)
	if !a.UsesNATS() || a.InstanceID() == b.InstanceID() {
		t.Fatalf("relays not distinct NATS instances")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hubA, hubB := &recordingHub{}, &recordingHub{}
	go func() { _ = NewFeed(a, hubA, a.WildcardTopic()).Serve(ctx) }()
	go func() { _ = NewFeed(b, hubB, b.WildcardTopic()).Serve(ctx) }()

	sample := models.PositionSample{VehicleID: "V1", Latitude: 18.52, Longitude: 73.86, Timestamp: testTime}

	// Subscriptions are registered asynchronously; keep publishing until
	// the other instance sees one.
	deadline := time.Now().Add(5 * time.Second)
	for hubB.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("sample never reached the other instance")
		}
		if err := a.Publish(ctx, sample); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
		time.Sleep(50 * time.Millisecond)
	}

	hubB.mu.Lock()
	got := hubB.samples[0]
	hubB.mu.Unlock()
	if got.VehicleID != "V1" || got.Latitude != 18.52 {
		t.Errorf("forwarded sample = %+v", got)
	}

	time.Sleep(100 * time.Millisecond)
	if n := hubA.count(); n != 0 {
		t.Errorf("publishing instance re-broadcast %d of its own samples", n)
	}
}
