// Fleetwatch - Fleet Tracking and Live Vehicle Location Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

// Package routing fetches reference paths for trips from an OSRM-compatible
// routing service. Results are cached per trip and waypoint pair, and calls
// go through a circuit breaker so a dead router fails fast.
package routing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/fleetwatch/internal/config"
	"github.com/tomtom215/fleetwatch/internal/logging"
	"github.com/tomtom215/fleetwatch/internal/metrics"
	"github.com/tomtom215/fleetwatch/internal/models"
)

// ErrRoutingUnavailable is returned for any failed or rejected lookup.
// Callers degrade to history-only display.
var ErrRoutingUnavailable = errors.New("routing unavailable")

// ErrNoWaypoints is returned for trips without start and end coordinates.
var ErrNoWaypoints = errors.New("trip has no waypoints")

const breakerName = "routing"

// maxResponseBytes bounds the OSRM body read.
const maxResponseBytes = 8 << 20

// Client is the routing collaborator.
type Client struct {
	baseURL string
	http    *http.Client
	cb      *gobreaker.CircuitBreaker[interface{}]
	cache   *ristretto.Cache[string, []models.Coordinate]
}

// NewClient builds a client from cfg.
func NewClient(cfg *config.RoutingConfig) (*Client, error) {
	cacheSize := cfg.CacheSize
	if cacheSize <= 0 {
		cacheSize = 1000
	}
	cache, err := ristretto.NewCache(&ristretto.Config[string, []models.Coordinate]{
		NumCounters: cacheSize * 10,
		MaxCost:     cacheSize,
		BufferItems: 64,

		// Cost is one per path, so MaxCost is an entry count.
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create route cache: %w", err)
	}

	maxFailures := cfg.BreakerMaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}

	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)
	cb := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("[CIRCUIT BREAKER] State transition")
			metrics.RecordCircuitBreakerTransition(name, from.String(), to.String())
		},
	})

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		cb:      cb,
		cache:   cache,
	}, nil
}

// Close releases the cache.
func (c *Client) Close() {
	c.cache.Close()
}

// ReferencePath returns the planned path for trip, from cache when the
// waypoints are unchanged.
func (c *Client) ReferencePath(ctx context.Context, trip models.Trip) ([]models.Coordinate, error) {
	if !trip.HasWaypoints() {
		return nil, ErrNoWaypoints
	}
	key := cacheKey(trip)
	if path, ok := c.cache.Get(key); ok {
		metrics.RoutingRequests.WithLabelValues("cache_hit").Inc()
		return path, nil
	}

	path, err := c.Route(ctx, *trip.StartPoint, *trip.EndPoint)
	if err != nil {
		return nil, err
	}
	if c.cache.Set(key, path, 1) {
		c.cache.Wait()
	} else {
		logging.Ctx(ctx).Debug().Str("trip_id", trip.ID).Msg("Route cache rejected path")
	}
	return path, nil
}

// Route fetches a driving route between two points.
func (c *Client) Route(ctx context.Context, from, to models.Coordinate) ([]models.Coordinate, error) {
	result, err := c.cb.Execute(func() (interface{}, error) {
		return c.fetch(ctx, from, to)
	})
	if err != nil {
		metrics.RoutingRequests.WithLabelValues("unavailable").Inc()
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			logging.Ctx(ctx).Warn().Err(err).Msg("[CIRCUIT BREAKER] Routing request rejected")
		} else {
			logging.Ctx(ctx).Warn().Err(err).Msg("Routing request failed")
		}
		return nil, fmt.Errorf("%w: %w", ErrRoutingUnavailable, err)
	}
	metrics.RoutingRequests.WithLabelValues("fetched").Inc()

	path, ok := result.([]models.Coordinate)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected result type %T", ErrRoutingUnavailable, result)
	}
	return path, nil
}

type osrmResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Geometry struct {
			Coordinates [][]float64 `json:"coordinates"` // [lng, lat]
		} `json:"geometry"`
	} `json:"routes"`
}

func (c *Client) fetch(ctx context.Context, from, to models.Coordinate) ([]models.Coordinate, error) {
	url := fmt.Sprintf("%s/route/v1/driving/%f,%f;%f,%f?overview=full&geometries=geojson",
		c.baseURL, from.Lng, from.Lat, to.Lng, to.Lat)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request route: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("router returned status %d", resp.StatusCode)
	}

	var body osrmResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode route: %w", err)
	}
	if body.Code != "Ok" || len(body.Routes) == 0 {
		return nil, fmt.Errorf("router returned %q: %s", body.Code, body.Message)
	}

	coords := body.Routes[0].Geometry.Coordinates
	path := make([]models.Coordinate, 0, len(coords))
	for _, pair := range coords {
		if len(pair) < 2 {
			continue
		}
		path = append(path, models.Coordinate{Lat: pair[1], Lng: pair[0]})
	}
	return path, nil
}

func cacheKey(trip models.Trip) string {
	return fmt.Sprintf("%s|%f,%f|%f,%f", trip.ID,
		trip.StartPoint.Lat, trip.StartPoint.Lng, trip.EndPoint.Lat, trip.EndPoint.Lng)
}
