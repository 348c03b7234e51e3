// Fleetwatch - Fleet Tracking and Live Vehicle Location Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/fleetwatch/internal/store"
	"github.com/tomtom215/fleetwatch/internal/validation"
)

var (
	// ErrInvalidReport covers missing or malformed fields.
	ErrInvalidReport = errors.New("invalid position report")

	// ErrInvalidCoordinate is returned for latitude or longitude out of range.
	ErrInvalidCoordinate = errors.New("invalid coordinate")

	// ErrUnauthorized is returned when no principal is attached.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned when the principal may not report for the vehicle.
	ErrForbidden = errors.New("forbidden")
)

// ValidationError rejects a report before any write.
type ValidationError struct {
	Field  string
	Reason string
	Fields []validation.FieldError
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalidField(field, reason string, sentinel error) *ValidationError {
	return &ValidationError{Field: field, Reason: reason, Err: sentinel}
}

// Error codes shared by the REST envelope and WebSocket error frames.
const (
	CodeValidationFailed   = "VALIDATION_FAILED"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeCanceled           = "REQUEST_CANCELED"
	CodeInternal           = "INTERNAL_ERROR"
)

// ErrorCode classifies an error returned by Report.
func ErrorCode(err error) string {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return CodeValidationFailed
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, ErrForbidden):
		return CodeForbidden
	case errors.Is(err, store.ErrUnavailable):
		return CodeServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return CodeCanceled
	default:
		return CodeInternal
	}
}

// metricResult maps an error to the ingest_reports_total result label.
func metricResult(err error) string {
	switch ErrorCode(err) {
	case CodeValidationFailed:
		return "invalid"
	case CodeUnauthorized:
		return "unauthorized"
	case CodeForbidden:
		return "forbidden"
	case CodeServiceUnavailable:
		return "store_error"
	case CodeCanceled:
		return "canceled"
	default:
		return "error"
	}
}
