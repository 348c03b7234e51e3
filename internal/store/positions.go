// Fleetwatch - Fleet Tracking and Live Vehicle Location Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/fleetwatch/internal/models"
)

// maxConflictRetries bounds retries when two writers for different vehicles
// touch the same scope and badger reports a transaction conflict.
const maxConflictRetries = 5

// update runs fn in a read-write transaction, retrying on conflicts.
func (s *Store) update(fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

// UpsertSnapshot replaces the vehicle's snapshot with sample. Arrival order
// wins: the sample timestamp is not compared with the existing snapshot.
func (s *Store) UpsertSnapshot(ctx context.Context, sample models.PositionSample) (models.LiveSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return models.LiveSnapshot{}, err
	}
	start := time.Now()
	unlock := s.locks.Lock(sample.VehicleID)
	defer unlock()

	var snap models.LiveSnapshot
	err := s.update(func(txn *badger.Txn) error {
		var err error
		snap, err = s.putSnapshot(txn, sample)
		return err
	})
	observe("upsert_snapshot", start, err)
	if err != nil {
		return models.LiveSnapshot{}, unavailable("upsert snapshot", err)
	}
	return snap, nil
}

// AppendHistory appends sample to scope, creating the scope on first use.
func (s *Store) AppendHistory(ctx context.Context, scope models.ScopeKey, sample models.PositionSample) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !scope.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidScope, scope)
	}
	start := time.Now()
	unlock := s.locks.Lock(sample.VehicleID)
	defer unlock()

	err := s.update(func(txn *badger.Txn) error {
		return s.appendHistory(txn, scope, sample)
	})
	observe("append_history", start, err)
	return unavailable("append history", err)
}

// Commit upserts the snapshot and appends to scope in one transaction.
// Either both writes land or neither does.
func (s *Store) Commit(ctx context.Context, scope models.ScopeKey, sample models.PositionSample) (models.LiveSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return models.LiveSnapshot{}, err
	}
	if !scope.Valid() {
		return models.LiveSnapshot{}, fmt.Errorf("%w: %q", ErrInvalidScope, scope)
	}
	start := time.Now()
	unlock := s.locks.Lock(sample.VehicleID)
	defer unlock()

	var snap models.LiveSnapshot
	err := s.update(func(txn *badger.Txn) error {
		var err error
		if snap, err = s.putSnapshot(txn, sample); err != nil {
			return err
		}
		return s.appendHistory(txn, scope, sample)
	})
	observe("commit", start, err)
	if err != nil {
		return models.LiveSnapshot{}, unavailable("commit", err)
	}
	return snap, nil
}

func (s *Store) putSnapshot(txn *badger.Txn, sample models.PositionSample) (models.LiveSnapshot, error) {
	snap := models.LiveSnapshot{
		PositionSample:    sample,
		ReportingDriverID: sample.DriverID,
		UpdatedAt:         s.now().UTC(),
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return models.LiveSnapshot{}, fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := txn.Set(snapshotKey(sample.VehicleID), data); err != nil {
		return models.LiveSnapshot{}, fmt.Errorf("set snapshot: %w", err)
	}
	return snap, nil
}

func (s *Store) appendHistory(txn *badger.Txn, scope models.ScopeKey, sample models.PositionSample) error {
	meta, found, err := getScopeMeta(txn, scope)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	if !found {
		meta = models.ScopeMeta{
			Key:       scope,
			VehicleID: sample.VehicleID,
			Kind:      scope.Kind(),
			CreatedAt: now,
		}
	}

	meta.Count++
	data, err := json.Marshal(sample)
	if err != nil {
		return fmt.Errorf("marshal sample: %w", err)
	}
	if err := txn.Set(historyKey(string(scope), meta.Count), data); err != nil {
		return fmt.Errorf("set history entry: %w", err)
	}

	// LastTouched covers both receipt time and sample time so range scans by
	// sample timestamp never skip a scope holding future-dated points.
	for _, t := range []time.Time{now, sample.Timestamp.UTC()} {
		if t.After(meta.LastTouched) {
			meta.LastTouched = t
		}
	}
	metaData, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal scope meta: %w", err)
	}
	if err := txn.Set(scopeMetaKey(string(scope)), metaData); err != nil {
		return fmt.Errorf("set scope meta: %w", err)
	}
	if err := txn.Set(vehicleScopeKey(sample.VehicleID, string(scope)), []byte(scope)); err != nil {
		return fmt.Errorf("set scope index: %w", err)
	}
	return nil
}

func getScopeMeta(txn *badger.Txn, scope models.ScopeKey) (models.ScopeMeta, bool, error) {
	var meta models.ScopeMeta
	item, err := txn.Get(scopeMetaKey(string(scope)))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return meta, false, nil
	}
	if err != nil {
		return meta, false, fmt.Errorf("get scope meta: %w", err)
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &meta)
	})
	if err != nil {
		return meta, false, fmt.Errorf("decode scope meta: %w", err)
	}
	return meta, true, nil
}

// GetSnapshot returns the vehicle's snapshot. found is false when the
// vehicle has never reported.
func (s *Store) GetSnapshot(ctx context.Context, vehicleID string) (snap models.LiveSnapshot, found bool, err error) {
	if err := ctx.Err(); err != nil {
		return snap, false, err
	}
	start := time.Now()
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(snapshotKey(vehicleID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get snapshot: %w", err)
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &snap)
		})
	})
	observe("get_snapshot", start, err)
	if err != nil {
		return models.LiveSnapshot{}, false, unavailable("get snapshot", err)
	}
	return snap, found, nil
}

// ListSnapshots returns every snapshot ordered by vehicle id.
func (s *Store) ListSnapshots(ctx context.Context) ([]models.LiveSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	var out []models.LiveSnapshot
	err := s.db.View(func(txn *badger.Txn) error {
		return iteratePrefix(txn, []byte(snapshotKeyPrefix), func(val []byte) error {
			var snap models.LiveSnapshot
			if err := json.Unmarshal(val, &snap); err != nil {
				return fmt.Errorf("decode snapshot: %w", err)
			}
			out = append(out, snap)
			return nil
		})
	})
	observe("list_snapshots", start, err)
	if err != nil {
		return nil, unavailable("list snapshots", err)
	}
	return out, nil
}

// GetHistory returns the scope's samples. Without a range they come back in
// arrival order. With a range, only samples whose timestamp falls inside the
// inclusive bounds are returned, sorted ascending by timestamp.
func (s *Store) GetHistory(ctx context.Context, scope models.ScopeKey, rng *models.TimeRange) ([]models.PositionSample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !scope.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidScope, scope)
	}
	start := time.Now()
	var out []models.PositionSample
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		out, err = readHistory(txn, scope, rng)
		return err
	})
	observe("get_history", start, err)
	if err != nil {
		return nil, unavailable("get history", err)
	}
	if rng != nil {
		sortByTimestamp(out)
	}
	return out, nil
}

// RecentHistory returns at most limit of the newest samples in scope, oldest
// first. A limit of zero or less uses DefaultRecentLimit.
func (s *Store) RecentHistory(ctx context.Context, scope models.ScopeKey, limit int) ([]models.PositionSample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !scope.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidScope, scope)
	}
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	start := time.Now()
	out := make([]models.PositionSample, 0, limit)
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := historyPrefix(string(scope))
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.Reverse = true
		opts.PrefetchSize = limit
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := append(append([]byte{}, prefix...), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(prefix) && len(out) < limit; it.Next() {
			var sample models.PositionSample
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &sample)
			})
			if err != nil {
				return fmt.Errorf("decode history entry: %w", err)
			}
			out = append(out, sample)
		}
		return nil
	})
	observe("recent_history", start, err)
	if err != nil {
		return nil, unavailable("recent history", err)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// GetHistoryAcrossScopes merges every scope of the vehicle last touched at or
// after rng.From, filtered to rng and sorted by timestamp.
func (s *Store) GetHistoryAcrossScopes(ctx context.Context, vehicleID string, rng models.TimeRange) ([]models.PositionSample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	var out []models.PositionSample
	err := s.db.View(func(txn *badger.Txn) error {
		metas, err := vehicleScopes(txn, vehicleID)
		if err != nil {
			return err
		}
		for _, meta := range metas {
			if !rng.From.IsZero() && meta.LastTouched.Before(rng.From) {
				continue
			}
			points, err := readHistory(txn, meta.Key, &rng)
			if err != nil {
				return err
			}
			for _, p := range points {
				if p.VehicleID == vehicleID {
					out = append(out, p)
				}
			}
		}
		return nil
	})
	observe("history_across_scopes", start, err)
	if err != nil {
		return nil, unavailable("history across scopes", err)
	}
	sortByTimestamp(out)
	return out, nil
}

// Scopes lists the history scopes a vehicle has written to.
func (s *Store) Scopes(ctx context.Context, vehicleID string) ([]models.ScopeMeta, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []models.ScopeMeta
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		out, err = vehicleScopes(txn, vehicleID)
		return err
	})
	if err != nil {
		return nil, unavailable("list scopes", err)
	}
	return out, nil
}

func vehicleScopes(txn *badger.Txn, vehicleID string) ([]models.ScopeMeta, error) {
	var keys []models.ScopeKey
	err := iteratePrefix(txn, vehicleScopePrefix(vehicleID), func(val []byte) error {
		keys = append(keys, models.ScopeKey(val))
		return nil
	})
	if err != nil {
		return nil, err
	}

	metas := make([]models.ScopeMeta, 0, len(keys))
	for _, key := range keys {
		meta, found, err := getScopeMeta(txn, key)
		if err != nil {
			return nil, err
		}
		if found {
			metas = append(metas, meta)
		}
	}
	return metas, nil
}

func readHistory(txn *badger.Txn, scope models.ScopeKey, rng *models.TimeRange) ([]models.PositionSample, error) {
	var out []models.PositionSample
	err := iteratePrefix(txn, historyPrefix(string(scope)), func(val []byte) error {
		var sample models.PositionSample
		if err := json.Unmarshal(val, &sample); err != nil {
			return fmt.Errorf("decode history entry: %w", err)
		}
		if rng == nil || rng.Contains(sample.Timestamp) {
			out = append(out, sample)
		}
		return nil
	})
	return out, err
}

func iteratePrefix(txn *badger.Txn, prefix []byte, fn func(val []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err := it.Item().Value(fn); err != nil {
			return err
		}
	}
	return nil
}

// sortByTimestamp is stable so equal timestamps keep arrival order.
func sortByTimestamp(samples []models.PositionSample) {
	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].Timestamp.Before(samples[j].Timestamp)
	})
}
