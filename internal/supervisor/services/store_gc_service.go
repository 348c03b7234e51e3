// Fleetwatch - Fleet Tracking and Live Vehicle Location Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package services

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/fleetwatch/internal/logging"
)

// DefaultDiscardRatio is the value-log space fraction that must be
// reclaimable before a file is rewritten.
const DefaultDiscardRatio = 0.5

// ValueLogCollector is satisfied by *store.Store.
type ValueLogCollector interface {
	RunValueLogGC(ctx context.Context, discardRatio float64) (int, error)
}

// StoreGCService runs value-log GC on a fixed interval.
type StoreGCService struct {
	store        ValueLogCollector
	interval     time.Duration
	discardRatio float64
	name         string
}

// NewStoreGCService runs GC on store every interval.
func NewStoreGCService(store ValueLogCollector, interval time.Duration) *StoreGCService {
	return &StoreGCService{
		store:        store,
		interval:     interval,
		discardRatio: DefaultDiscardRatio,
		name:         "store-gc",
	}
}

// Serve implements suture.Service. A GC failure is returned so the
// supervisor backs off; the store stays usable either way.
func (s *StoreGCService) Serve(ctx context.Context) error {
	if s.interval <= 0 {
		return fmt.Errorf("store gc interval must be positive, got %s", s.interval)
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			start := time.Now()
			runs, err := s.store.RunValueLogGC(ctx, s.discardRatio)
			if err != nil && ctx.Err() == nil {
				return fmt.Errorf("value log gc: %w", err)
			}
			if runs == 0 {
				logging.Debug().Msg("Value log GC found nothing to rewrite")
				continue
			}
			logging.Info().
				Int("rewritten", runs).
				Dur("took", time.Since(start)).
				Msg("Value log GC reclaimed space")
		}
	}
}

func (s *StoreGCService) String() string {
	return s.name
}
