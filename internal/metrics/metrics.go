// Fleetwatch - Fleet Tracking and Live Vehicle Location Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

// Package metrics holds the Prometheus collectors for Fleetwatch.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingest Metrics
	IngestReportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_reports_total",
			Help: "Total number of position reports by transport and outcome",
		},
		[]string{"transport", "result"}, // result: accepted, invalid, unauthorized, forbidden, store_error
	)

	IngestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ingest_report_duration_seconds",
			Help:    "Time from report receipt to commit and publish",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
	)

	// Store Metrics
	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "position_store_operation_duration_seconds",
			Help:    "Duration of position store operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "position_store_errors_total",
			Help: "Total number of position store failures",
		},
		[]string{"operation"},
	)

	// Hub Metrics
	HubSubscriptions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hub_subscriptions",
			Help: "Current number of vehicle topic subscriptions",
		},
	)

	HubTopics = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hub_topics",
			Help: "Current number of vehicle topics with at least one subscriber",
		},
	)

	HubEventsPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_events_published_total",
			Help: "Total number of location events enqueued to observers",
		},
	)

	HubObserversDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_observers_dropped_total",
			Help: "Total number of observers dropped for a full send queue",
		},
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_messages_received_total",
			Help: "Total number of WebSocket messages received",
		},
		[]string{"type"},
	)

	WSErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
		[]string{"error_type"},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	// Routing Metrics
	RoutingRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "routing_requests_total",
			Help: "Total number of reference path lookups",
		},
		[]string{"result"}, // cache_hit, fetched, unavailable
	)

	// Event Relay Metrics
	RelayPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "event_relay_published_total",
			Help: "Total number of location events published to the relay",
		},
	)

	RelayErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "event_relay_errors_total",
			Help: "Total number of relay publish failures",
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)
)

// RecordIngest records the outcome of one report.
func RecordIngest(transport, result string, duration time.Duration) {
	IngestReportsTotal.WithLabelValues(transport, result).Inc()
	if result == "accepted" {
		IngestDuration.Observe(duration.Seconds())
	}
}

// RecordStoreOperation records a store call and counts failures.
func RecordStoreOperation(operation string, duration time.Duration, err error) {
	StoreOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		StoreErrors.WithLabelValues(operation).Inc()
	}
}

// RecordAPIRequest records an API request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest adjusts the in-flight request gauge.
func TrackActiveRequest(start bool) {
	if start {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordCircuitBreakerTransition records a breaker state change. States
// use the gobreaker names: closed, half-open, open.
func RecordCircuitBreakerTransition(name, from, to string) {
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
	CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
}

func breakerStateValue(state string) float64 {
	switch state {
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return 0
	}
}
