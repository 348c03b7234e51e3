// Fleetwatch - Fleet Tracking and Live Vehicle Location Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package auth

import "context"

// Roles known to the policy.
const (
	RoleDriver     = "driver"
	RoleTracker    = "tracker" // vehicle-attached device; UserID is the vehicle id
	RoleFleetOwner = "fleet_owner"
	RoleAdmin      = "admin"
)

// Principal is the authenticated caller.
type Principal struct {
	UserID string
	Role   string
}

// IsZero reports whether no caller was resolved.
func (p Principal) IsZero() bool {
	return p.UserID == "" && p.Role == ""
}

type contextKey string

// PrincipalContextKey stores the Principal on the request context.
const PrincipalContextKey contextKey = "principal"

// ContextWithPrincipal returns ctx carrying p.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, PrincipalContextKey, p)
}

// PrincipalFromContext returns the caller, if authenticated.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(PrincipalContextKey).(Principal)
	return p, ok
}
