// Fleetwatch - Fleet Tracking and Live Vehicle Location Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

/*
Package middleware provides HTTP middleware shared by the API router.

  - RequestID: reuses or generates X-Request-ID and seeds the logging
    context with request and correlation ids.
  - PrometheusMetrics: records request counts, durations and in-flight
    requests. The endpoint label is the chi route pattern so path
    parameters such as vehicle ids do not explode label cardinality.

Both are plain func(http.Handler) http.Handler and can be passed to
chi.Router.Use directly.

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)

The response wrapper implements Unwrap so http.ResponseController and the
gorilla websocket upgrader can still hijack the connection.
*/
package middleware
