// Fleetwatch - Fleet Tracking and Live Vehicle Location Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/tomtom215/fleetwatch/internal/authz"
	"github.com/tomtom215/fleetwatch/internal/directory"
	"github.com/tomtom215/fleetwatch/internal/ingest"
	"github.com/tomtom215/fleetwatch/internal/store"
)

// errSnapshotNotFound is returned for vehicles that never reported.
var errSnapshotNotFound = errors.New("no position reported for vehicle")

// retryAfterSeconds is sent with SERVICE_UNAVAILABLE.
const retryAfterSeconds = "1"

// statusClientClosedRequest is the nginx convention for a caller that went
// away before the response was written.
const statusClientClosedRequest = 499

// writeError maps domain errors to the envelope. This is the only place
// the mapping lives.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *ingest.ValidationError
	switch {
	case errors.As(err, &verr):
		respondErrorDetails(w, r, http.StatusBadRequest, ErrCodeValidationFailed, verr.Error(), validationDetails(verr), nil)
	case errors.Is(err, ingest.ErrInvalidReport), errors.Is(err, ingest.ErrInvalidCoordinate):
		respondError(w, r, http.StatusBadRequest, ErrCodeValidationFailed, err.Error(), nil)
	case errors.Is(err, store.ErrInvalidScope):
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "invalid history scope", err)
	case errors.Is(err, ingest.ErrUnauthorized):
		respondError(w, r, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required", nil)
	case errors.Is(err, ingest.ErrForbidden), errors.Is(err, authz.ErrDenied):
		respondError(w, r, http.StatusForbidden, ErrCodeForbidden, "not permitted for this vehicle", err)
	case errors.Is(err, directory.ErrNotFound):
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "not found", nil)
	case errors.Is(err, errSnapshotNotFound):
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, err.Error(), nil)
	case errors.Is(err, store.ErrUnavailable):
		w.Header().Set("Retry-After", retryAfterSeconds)
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "position store unavailable, retry later", err)
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, r, http.StatusGatewayTimeout, ErrCodeRequestCanceled, "request deadline exceeded", nil)
	case errors.Is(err, context.Canceled):
		respondError(w, r, statusClientClosedRequest, ErrCodeRequestCanceled, "request canceled", nil)
	default:
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "internal error", err)
	}
}

func validationDetails(verr *ingest.ValidationError) interface{} {
	if len(verr.Fields) == 0 {
		return map[string]interface{}{
			"fields": []map[string]string{{"field": verr.Field, "message": verr.Reason}},
		}
	}
	fields := make([]map[string]string, len(verr.Fields))
	for i, fe := range verr.Fields {
		fields[i] = map[string]string{"field": fe.Field, "tag": fe.Tag, "message": fe.Message}
	}
	return map[string]interface{}{"fields": fields}
}

// respondAuthError adapts auth middleware failures to the envelope.
func respondAuthError(w http.ResponseWriter, r *http.Request, status int, message string) {
	code := ErrCodeUnauthorized
	if status == http.StatusForbidden {
		code = ErrCodeForbidden
	}
	respondError(w, r, status, code, message, nil)
}
