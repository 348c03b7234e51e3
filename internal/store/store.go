// Fleetwatch - Fleet Tracking and Live Vehicle Location Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

// Package store persists live snapshots and scoped route history in BadgerDB.
//
// Key layout:
//
//	snap:<vehicleId>                    LiveSnapshot (JSON)
//	scope:<scopeKey>                    ScopeMeta (JSON)
//	vscope:<vehicleId>\x00<scopeKey>    index of scopes per vehicle
//	hist:<scopeKey>\x00<seq %020d>      PositionSample (JSON), arrival order
//
// Writes for one vehicle are serialized so a snapshot and its history
// entry always land together.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/fleetwatch/internal/keylock"
	"github.com/tomtom215/fleetwatch/internal/metrics"
)

const (
	snapshotKeyPrefix     = "snap:"
	scopeKeyPrefix        = "scope:"
	vehicleScopeKeyPrefix = "vscope:"
	historyKeyPrefix      = "hist:"
	keySeparator          = "\x00"
)

// DefaultRecentLimit is the catch-up history cap.
const DefaultRecentLimit = 100

var (
	// ErrUnavailable wraps every persistence failure. Callers may retry.
	ErrUnavailable = errors.New("position store unavailable")

	// ErrInvalidScope is returned for malformed scope keys.
	ErrInvalidScope = errors.New("invalid scope key")
)

// Options configures Open.
type Options struct {
	Path     string
	InMemory bool

	// Logger receives badger's internal log lines. Nil silences them.
	Logger badger.Logger
}

// Store is the BadgerDB-backed position store.
type Store struct {
	db    *badger.DB
	locks keylock.Map
	owned bool
	now   func() time.Time
}

// Open opens (or creates) a store at opts.Path.
func Open(opts Options) (*Store, error) {
	bopts := badger.DefaultOptions(opts.Path)
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	}
	bopts.Logger = opts.Logger

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", opts.Path, err)
	}
	s := New(db)
	s.owned = true
	return s, nil
}

// New wraps an already open database. Close on the returned store does not
// close db.
func New(db *badger.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Close releases the database if Open created it.
func (s *Store) Close() error {
	if !s.owned || s.db.IsClosed() {
		return nil
	}
	return s.db.Close()
}

// Ping reports ErrUnavailable when the database is closed.
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.db.IsClosed() {
		return fmt.Errorf("%w: %w", ErrUnavailable, badger.ErrDBClosed)
	}
	return nil
}

// unavailable wraps err so errors.Is matches both ErrUnavailable and the cause.
func unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUnavailable) || errors.Is(err, ErrInvalidScope) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
}

// observe records duration and failure of a store operation.
func observe(op string, start time.Time, err error) {
	metrics.RecordStoreOperation(op, time.Since(start), err)
}

func snapshotKey(vehicleID string) []byte {
	return []byte(snapshotKeyPrefix + vehicleID)
}

func scopeMetaKey(scope string) []byte {
	return []byte(scopeKeyPrefix + scope)
}

func vehicleScopePrefix(vehicleID string) []byte {
	return []byte(vehicleScopeKeyPrefix + vehicleID + keySeparator)
}

func vehicleScopeKey(vehicleID, scope string) []byte {
	return []byte(vehicleScopeKeyPrefix + vehicleID + keySeparator + scope)
}

func historyPrefix(scope string) []byte {
	return []byte(historyKeyPrefix + scope + keySeparator)
}

func historyKey(scope string, seq int64) []byte {
	return []byte(fmt.Sprintf("%s%s%s%020d", historyKeyPrefix, scope, keySeparator, seq))
}

// RunValueLogGC reclaims value-log space until badger reports nothing left
// to rewrite. In-memory stores have no value log and return nil.
func (s *Store) RunValueLogGC(ctx context.Context, discardRatio float64) (int, error) {
	if s.db.Opts().InMemory {
		return 0, nil
	}
	runs := 0
	for ctx.Err() == nil {
		err := s.db.RunValueLogGC(discardRatio)
		if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrRejected) {
			return runs, nil
		}
		if err != nil {
			return runs, unavailable("value_log_gc", err)
		}
		runs++
	}
	return runs, ctx.Err()
}
