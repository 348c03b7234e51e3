// Fleetwatch - Fleet Tracking and Live Vehicle Location Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package websocket

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tomtom215/fleetwatch/internal/logging"
	"github.com/tomtom215/fleetwatch/internal/metrics"
	"github.com/tomtom215/fleetwatch/internal/models"
	"github.com/tomtom215/fleetwatch/internal/store"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled is the normal graceful path (SIGTERM).
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline may indicate a hung shutdown.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// ErrHubClosed is returned by Subscribe after shutdown.
var ErrHubClosed = errors.New("hub closed")

// Observer receives frames for the vehicles it subscribed to.
type Observer interface {
	// ID is unique per observer and orders delivery within a publish.
	ID() uint64

	// Deliver enqueues msg without blocking. It reports false when the
	// observer's queue is full or already closed.
	Deliver(msg Message) bool

	// Drop closes the observer after a failed delivery or at shutdown.
	Drop()
}

// CatchUpStore is the read side of the position store used for catch-up.
type CatchUpStore interface {
	GetSnapshot(ctx context.Context, vehicleID string) (models.LiveSnapshot, bool, error)
	RecentHistory(ctx context.Context, scope models.ScopeKey, limit int) ([]models.PositionSample, error)
}

// ScopeResolver picks the history scope delivered as catch-up.
type ScopeResolver interface {
	Active(ctx context.Context, vehicleID string, snap *models.LiveSnapshot, now time.Time) models.ScopeKey
}

// topic is the observer set of one vehicle.
type topic struct {
	mu        sync.Mutex
	observers map[uint64]Observer
	closed    atomic.Bool // set once empty and detached from the hub
}

// Subscription is one observer's membership in a vehicle topic.
type Subscription struct {
	hub       *Hub
	vehicleID string
	observer  Observer
	once      sync.Once
}

// VehicleID returns the subscribed vehicle.
func (s *Subscription) VehicleID() string {
	return s.vehicleID
}

// Unsubscribe removes the subscription. Calling it again is a no-op.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.hub.remove(s.vehicleID, s.observer)
	})
}

// HubConfig configures a Hub.
type HubConfig struct {
	Store        CatchUpStore
	Scopes       ScopeResolver
	HistoryLimit int
}

// Hub is the per-vehicle publish/subscribe fan-out. It holds no durable
// state; every delivery goes to an in-memory observer queue.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]*topic
	subs   map[uint64]map[string]*Subscription // observer -> vehicle
	closed bool

	store        CatchUpStore
	scopes       ScopeResolver
	historyLimit int
	now          func() time.Time
}

// NewHub creates a Hub.
func NewHub(cfg HubConfig) *Hub {
	limit := cfg.HistoryLimit
	if limit <= 0 {
		limit = store.DefaultRecentLimit
	}
	return &Hub{
		topics:       make(map[string]*topic),
		subs:         make(map[uint64]map[string]*Subscription),
		store:        cfg.Store,
		scopes:       cfg.Scopes,
		historyLimit: limit,
		now:          time.Now,
	}
}

// Subscribe adds observer to vehicleID's topic and delivers the catch-up
// payload (snapshot, then recent history) before any live event. A repeat
// subscribe by the same observer returns the existing subscription after
// sending a fresh catch-up.
func (h *Hub) Subscribe(ctx context.Context, vehicleID string, observer Observer) (*Subscription, error) {
	for {
		t, err := h.topicFor(vehicleID)
		if err != nil {
			return nil, err
		}

		t.mu.Lock()
		if t.closed.Load() {
			// Detached between lookup and lock; fetch the replacement.
			t.mu.Unlock()
			continue
		}

		catchUp, err := h.catchUp(ctx, vehicleID)
		if err != nil {
			t.mu.Unlock()
			h.releaseIfEmpty(vehicleID, t)
			return nil, err
		}
		for _, msg := range catchUp {
			if !observer.Deliver(msg) {
				t.mu.Unlock()
				h.releaseIfEmpty(vehicleID, t)
				return nil, fmt.Errorf("observer %d queue full during catch-up", observer.ID())
			}
		}

		_, existed := t.observers[observer.ID()]
		t.observers[observer.ID()] = observer
		t.mu.Unlock()

		return h.track(vehicleID, observer, existed), nil
	}
}

// topicFor returns the live topic for vehicleID, creating it when absent
// or when the previous one was detached.
func (h *Hub) topicFor(vehicleID string) (*topic, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrHubClosed
	}
	t, ok := h.topics[vehicleID]
	if !ok || t.closed.Load() {
		t = &topic{observers: make(map[uint64]Observer)}
		h.topics[vehicleID] = t
		metrics.HubTopics.Set(float64(len(h.topics)))
	}
	return t, nil
}

func (h *Hub) track(vehicleID string, observer Observer, existed bool) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	byVehicle, ok := h.subs[observer.ID()]
	if !ok {
		byVehicle = make(map[string]*Subscription)
		h.subs[observer.ID()] = byVehicle
	}
	if sub, ok := byVehicle[vehicleID]; ok && existed {
		return sub
	}
	sub := &Subscription{hub: h, vehicleID: vehicleID, observer: observer}
	byVehicle[vehicleID] = sub
	metrics.HubSubscriptions.Inc()
	return sub
}

func (h *Hub) catchUp(ctx context.Context, vehicleID string) ([]Message, error) {
	if h.store == nil {
		return nil, nil
	}
	snap, found, err := h.store.GetSnapshot(ctx, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("catch-up snapshot: %w", err)
	}

	var snapPtr *models.LiveSnapshot
	var msgs []Message
	if found {
		snapPtr = &snap
		msgs = append(msgs, locationMessage(snap.PositionSample))
	}

	now := h.now()
	scope := models.DayScope(vehicleID, now)
	if h.scopes != nil {
		scope = h.scopes.Active(ctx, vehicleID, snapPtr, now)
	}
	history, err := h.store.RecentHistory(ctx, scope, h.historyLimit)
	if err != nil {
		return nil, fmt.Errorf("catch-up history: %w", err)
	}
	msgs = append(msgs, Message{
		Type: MessageTypeReceiveRouteHistory,
		Data: models.RouteHistoryPayload{
			VehicleID: vehicleID,
			Scope:     scope,
			Locations: models.Points(history),
		},
	})
	return msgs, nil
}

// Publish delivers sample to every observer of its vehicle except the one
// with originID (0 excludes nobody). It never blocks on an observer; those
// with a full queue are dropped.
func (h *Hub) Publish(vehicleID string, sample models.PositionSample, originID uint64) {
	h.mu.RLock()
	t, ok := h.topics[vehicleID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	msg := locationMessage(sample)
	var failed []Observer

	t.mu.Lock()
	// Deliver in id order so fan-out is reproducible.
	ids := make([]uint64, 0, len(t.observers))
	for id := range t.observers {
		if id != originID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		observer := t.observers[id]
		if observer.Deliver(msg) {
			metrics.HubEventsPublished.Inc()
			continue
		}
		failed = append(failed, observer)
	}
	t.mu.Unlock()

	for _, observer := range failed {
		logging.Warn().Uint64("observer_id", observer.ID()).Str("vehicle_id", vehicleID).
			Msg("dropping slow websocket observer")
		metrics.HubObserversDropped.Inc()
		h.UnsubscribeAll(observer)
		observer.Drop()
	}
}

// UnsubscribeAll removes every subscription held by observer. Clients call
// it when their connection closes.
func (h *Hub) UnsubscribeAll(observer Observer) {
	h.mu.RLock()
	byVehicle := h.subs[observer.ID()]
	subs := make([]*Subscription, 0, len(byVehicle))
	for _, sub := range byVehicle {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
}

func (h *Hub) remove(vehicleID string, observer Observer) {
	h.mu.Lock()
	t := h.topics[vehicleID]
	if byVehicle, ok := h.subs[observer.ID()]; ok {
		if _, ok := byVehicle[vehicleID]; ok {
			delete(byVehicle, vehicleID)
			metrics.HubSubscriptions.Dec()
		}
		if len(byVehicle) == 0 {
			delete(h.subs, observer.ID())
		}
	}
	h.mu.Unlock()

	if t == nil {
		return
	}
	t.mu.Lock()
	delete(t.observers, observer.ID())
	t.mu.Unlock()
	h.releaseIfEmpty(vehicleID, t)
}

// releaseIfEmpty detaches t from the hub once it has no observers.
func (h *Hub) releaseIfEmpty(vehicleID string, t *topic) {
	t.mu.Lock()
	empty := len(t.observers) == 0
	if empty {
		t.closed.Store(true)
	}
	t.mu.Unlock()
	if !empty {
		return
	}

	h.mu.Lock()
	if h.topics[vehicleID] == t {
		delete(h.topics, vehicleID)
		metrics.HubTopics.Set(float64(len(h.topics)))
	}
	h.mu.Unlock()
}

// SubscriberCount returns the number of observers of vehicleID.
func (h *Hub) SubscriberCount(vehicleID string) int {
	h.mu.RLock()
	t, ok := h.topics[vehicleID]
	h.mu.RUnlock()
	if !ok {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.observers)
}

// TopicCount returns the number of vehicles with at least one observer.
func (h *Hub) TopicCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics)
}

// Serve blocks until ctx is canceled, then drops every observer. It is the
// hub's suture service entry point.
func (h *Hub) Serve(ctx context.Context) error {
	<-ctx.Done()
	h.logGracefulShutdown(ctx)
	return ctx.Err()
}

func (h *Hub) logGracefulShutdown(ctx context.Context) {
	closed := h.closeAll()
	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(getShutdownReason(ctx))).
		Int("observers_closed", closed).
		Msg("websocket hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ShutdownReasonContextDeadline
	}
	return ShutdownReasonContextCanceled
}

// closeAll detaches every topic and drops each observer once, in id order.
func (h *Hub) closeAll() int {
	h.mu.Lock()
	h.closed = true
	topics := h.topics
	h.topics = make(map[string]*topic)
	h.subs = make(map[uint64]map[string]*Subscription)
	h.mu.Unlock()

	observers := make(map[uint64]Observer)
	for _, t := range topics {
		t.mu.Lock()
		t.closed.Store(true)
		for id, o := range t.observers {
			observers[id] = o
		}
		t.observers = make(map[uint64]Observer)
		t.mu.Unlock()
	}

	ids := make([]uint64, 0, len(observers))
	for id := range observers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		observers[id].Drop()
	}

	metrics.HubTopics.Set(0)
	metrics.HubSubscriptions.Set(0)
	return len(ids)
}
