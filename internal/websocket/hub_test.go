// Fleetwatch - Fleet Tracking and Live Vehicle Location Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package websocket

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/fleetwatch/internal/logging"
	"github.com/tomtom215/fleetwatch/internal/models"
	"github.com/tomtom215/fleetwatch/internal/store"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{
		Level:  "info",
		Format: "console",
		Output: io.Discard,
	})
}

// fakeObserver records delivered frames in order.
type fakeObserver struct {
	id       uint64
	capacity int

	mu      sync.Mutex
	msgs    []Message
	dropped bool
}

func newObserver(capacity int) *fakeObserver {
	return &fakeObserver{id: clientIDCounter.Add(1), capacity: capacity}
}

func (o *fakeObserver) ID() uint64 { return o.id }

func (o *fakeObserver) Deliver(msg Message) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.dropped || len(o.msgs) >= o.capacity {
		return false
	}
	o.msgs = append(o.msgs, msg)
	return true
}

func (o *fakeObserver) Drop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.dropped = true
}

func (o *fakeObserver) messages() []Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Message(nil), o.msgs...)
}

func (o *fakeObserver) isDropped() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.dropped
}

type dayScopes struct{}

func (dayScopes) Active(_ context.Context, vehicleID string, _ *models.LiveSnapshot, now time.Time) models.ScopeKey {
	return models.DayScope(vehicleID, now)
}

var hubNow = time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

func setupHub(t *testing.T) (*Hub, *store.Store) {
	t.Helper()
	st, err := store.Open(store.Options{InMemory: true})
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	hub := NewHub(HubConfig{Store: st, Scopes: dayScopes{}})
	hub.now = func() time.Time { return hubNow }
	return hub, st
}

func sample(vehicleID string, lat float64, ts time.Time) models.PositionSample {
	return models.PositionSample{VehicleID: vehicleID, Latitude: lat, Longitude: 73.86, Speed: 40, Timestamp: ts, ReceivedAt: ts}
}

func commit(t *testing.T, st *store.Store, s models.PositionSample) {
	t.Helper()
	if _, err := st.Commit(context.Background(), models.DayScope(s.VehicleID, hubNow), s); err != nil {
		t.Fatal(err)
	}
}

func TestSubscribe_CatchUp(t *testing.T) {
	hub, st := setupHub(t)
	t0 := hubNow.Add(-time.Minute)
	commit(t, st, sample("V1", 18.52, t0))

	obs := newObserver(16)
	sub, err := hub.Subscribe(context.Background(), "V1", obs)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if sub.VehicleID() != "V1" {
		t.Errorf("VehicleID() = %s", sub.VehicleID())
	}

	msgs := obs.messages()
	if len(msgs) != 2 {
		t.Fatalf("catch-up frames = %d, want 2", len(msgs))
	}
	if msgs[0].Type != MessageTypeReceiveLocation {
		t.Errorf("first frame = %s", msgs[0].Type)
	}
	loc := msgs[0].Data.(models.BroadcastEvent)
	if loc.Location.Lat != 18.52 || !loc.Location.Timestamp.Equal(t0) {
		t.Errorf("snapshot frame = %+v", loc)
	}
	history := msgs[1].Data.(models.RouteHistoryPayload)
	if msgs[1].Type != MessageTypeReceiveRouteHistory || len(history.Locations) != 1 {
		t.Errorf("history frame = %s %+v", msgs[1].Type, history)
	}
}

func TestSubscribe_NeverReported(t *testing.T) {
	hub, _ := setupHub(t)
	obs := newObserver(16)
	if _, err := hub.Subscribe(context.Background(), "V9", obs); err != nil {
		t.Fatal(err)
	}
	msgs := obs.messages()
	if len(msgs) != 1 || msgs[0].Type != MessageTypeReceiveRouteHistory {
		t.Fatalf("frames = %+v, want only an empty history", msgs)
	}
	if n := len(msgs[0].Data.(models.RouteHistoryPayload).Locations); n != 0 {
		t.Errorf("history length = %d", n)
	}
}

func TestSubscribe_HistoryCapped(t *testing.T) {
	hub, st := setupHub(t)
	for i := 0; i < 150; i++ {
		commit(t, st, sample("V1", float64(i)/1000, hubNow.Add(time.Duration(i)*time.Second)))
	}

	obs := newObserver(16)
	if _, err := hub.Subscribe(context.Background(), "V1", obs); err != nil {
		t.Fatal(err)
	}
	history := obs.messages()[1].Data.(models.RouteHistoryPayload)
	if len(history.Locations) != store.DefaultRecentLimit {
		t.Fatalf("catch-up history = %d, want %d", len(history.Locations), store.DefaultRecentLimit)
	}
	if history.Locations[0].Lat != 0.05 || history.Locations[99].Lat != 0.149 {
		t.Errorf("window = %v..%v, want the most recent 100", history.Locations[0].Lat, history.Locations[99].Lat)
	}

	all, _ := st.GetHistory(context.Background(), models.DayScope("V1", hubNow), nil)
	if len(all) != 150 {
		t.Errorf("persisted history = %d, want 150", len(all))
	}
}

func TestPublish_FanOutExcludesOrigin(t *testing.T) {
	hub, _ := setupHub(t)
	ctx := context.Background()

	a, b, other := newObserver(16), newObserver(16), newObserver(16)
	for _, o := range []*fakeObserver{a, b} {
		if _, err := hub.Subscribe(ctx, "V1", o); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := hub.Subscribe(ctx, "V2", other); err != nil {
		t.Fatal(err)
	}

	hub.Publish("V1", sample("V1", 1, hubNow), a.ID())

	if n := len(a.messages()); n != 1 {
		t.Errorf("origin got %d frames, want catch-up only", n)
	}
	bm := b.messages()
	if len(bm) != 2 || bm[1].Type != MessageTypeReceiveLocation {
		t.Errorf("subscriber frames = %+v", bm)
	}
	if n := len(other.messages()); n != 1 {
		t.Errorf("other vehicle got %d frames", n)
	}
}

func TestPublish_Ordering(t *testing.T) {
	hub, _ := setupHub(t)
	obs := newObserver(256)
	if _, err := hub.Subscribe(context.Background(), "V1", obs); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 50; i++ {
		hub.Publish("V1", sample("V1", float64(i), hubNow), 0)
	}
	msgs := obs.messages()[1:]
	for i, m := range msgs {
		if got := m.Data.(models.BroadcastEvent).Location.Lat; got != float64(i) {
			t.Fatalf("frame %d lat = %v", i, got)
		}
	}
}

func TestPublish_DropsSlowObserver(t *testing.T) {
	hub, _ := setupHub(t)
	ctx := context.Background()

	slow := newObserver(2) // catch-up uses one slot
	fast := newObserver(64)
	if _, err := hub.Subscribe(ctx, "V1", slow); err != nil {
		t.Fatal(err)
	}
	// The second catch-up fills the queue.
	if _, err := hub.Subscribe(ctx, "V2", slow); err != nil {
		t.Fatal(err)
	}
	if _, err := hub.Subscribe(ctx, "V1", fast); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 5; i++ {
		hub.Publish("V1", sample("V1", float64(i), hubNow), 0)
	}

	if !slow.isDropped() {
		t.Error("slow observer should be dropped")
	}
	if hub.SubscriberCount("V1") != 1 || hub.SubscriberCount("V2") != 0 {
		t.Errorf("subscribers V1=%d V2=%d", hub.SubscriberCount("V1"), hub.SubscriberCount("V2"))
	}
	if n := len(fast.messages()); n != 6 {
		t.Errorf("fast observer frames = %d, want 6", n)
	}
}

func TestUnsubscribe_Idempotent(t *testing.T) {
	hub, _ := setupHub(t)
	obs := newObserver(16)
	sub, err := hub.Subscribe(context.Background(), "V1", obs)
	if err != nil {
		t.Fatal(err)
	}

	sub.Unsubscribe()
	sub.Unsubscribe()

	if hub.SubscriberCount("V1") != 0 || hub.TopicCount() != 0 {
		t.Errorf("topic not reaped: count=%d topics=%d", hub.SubscriberCount("V1"), hub.TopicCount())
	}
	hub.Publish("V1", sample("V1", 1, hubNow), 0)
	if n := len(obs.messages()); n != 1 {
		t.Errorf("unsubscribed observer got %d frames", n)
	}
}

func TestUnsubscribeAll(t *testing.T) {
	hub, _ := setupHub(t)
	obs := newObserver(16)
	for _, v := range []string{"V1", "V2", "V3"} {
		if _, err := hub.Subscribe(context.Background(), v, obs); err != nil {
			t.Fatal(err)
		}
	}
	hub.UnsubscribeAll(obs)
	hub.UnsubscribeAll(obs)
	if hub.TopicCount() != 0 {
		t.Errorf("TopicCount() = %d, want 0", hub.TopicCount())
	}
}

func TestSubscribe_RepeatReturnsSameSubscription(t *testing.T) {
	hub, _ := setupHub(t)
	obs := newObserver(16)
	first, _ := hub.Subscribe(context.Background(), "V1", obs)
	second, _ := hub.Subscribe(context.Background(), "V1", obs)
	if first != second {
		t.Error("repeat subscribe should reuse the subscription")
	}
	if hub.SubscriberCount("V1") != 1 {
		t.Errorf("SubscriberCount() = %d", hub.SubscriberCount("V1"))
	}
}

type brokenStore struct{}

func (brokenStore) GetSnapshot(context.Context, string) (models.LiveSnapshot, bool, error) {
	return models.LiveSnapshot{}, false, fmt.Errorf("%w: closed", store.ErrUnavailable)
}

func (brokenStore) RecentHistory(context.Context, models.ScopeKey, int) ([]models.PositionSample, error) {
	return nil, nil
}

func TestSubscribe_StoreFailure(t *testing.T) {
	hub := NewHub(HubConfig{Store: brokenStore{}})
	obs := newObserver(16)
	if _, err := hub.Subscribe(context.Background(), "V1", obs); !errors.Is(err, store.ErrUnavailable) {
		t.Fatalf("error = %v, want ErrUnavailable", err)
	}
	if hub.TopicCount() != 0 {
		t.Error("failed subscribe left a topic behind")
	}
}

// TestSubscribe_ConcurrentPublish checks that an observer joining while a
// vehicle is reporting never misses the latest committed sample.
func TestSubscribe_ConcurrentPublish(t *testing.T) {
	hub, st := setupHub(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			s := sample("V1", float64(i)/1000, hubNow)
			if _, err := st.Commit(ctx, models.DayScope("V1", hubNow), s); err != nil {
				t.Error(err)
				return
			}
			hub.Publish("V1", s, 0)
		}
	}()

	observers := make([]*fakeObserver, 10)
	for i := range observers {
		observers[i] = newObserver(1024)
		if _, err := hub.Subscribe(ctx, "V1", observers[i]); err != nil {
			t.Fatal(err)
		}
	}
	wg.Wait()

	for i, o := range observers {
		var lastLat float64 = -1
		for _, m := range o.messages() {
			if m.Type == MessageTypeReceiveLocation {
				lastLat = m.Data.(models.BroadcastEvent).Location.Lat
			}
		}
		if lastLat != 0.199 {
			t.Errorf("observer %d last lat = %v, want 0.199", i, lastLat)
		}
	}
}

func TestServe_ClosesObservers(t *testing.T) {
	hub, _ := setupHub(t)
	obs := newObserver(16)
	if _, err := hub.Subscribe(context.Background(), "V1", obs); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.Serve(ctx) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve did not return")
	}
	if !obs.isDropped() {
		t.Error("observer not closed at shutdown")
	}
	if _, err := hub.Subscribe(context.Background(), "V1", newObserver(4)); !errors.Is(err, ErrHubClosed) {
		t.Errorf("Subscribe after shutdown error = %v", err)
	}
}
