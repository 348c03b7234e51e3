// Fleetwatch - Fleet Tracking and Live Vehicle Location Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/fleetwatch/internal/auth"
	"github.com/tomtom215/fleetwatch/internal/directory"
	"github.com/tomtom215/fleetwatch/internal/models"
)

// ErrDenied is returned when the principal may not act on the vehicle.
var ErrDenied = errors.New("access denied")

// Directory is the subset of the vehicle directory used for scoping.
type Directory interface {
	VehicleOwner(ctx context.Context, vehicleID string) (string, error)
	AssignedVehicle(ctx context.Context, userID string) (string, error)
	VehiclesByOwner(ctx context.Context, ownerID string) ([]models.Vehicle, error)
}

// Authorizer combines role policy with per-vehicle scoping.
type Authorizer struct {
	enforcer *Enforcer
	dir      Directory
}

// NewAuthorizer creates an Authorizer.
func NewAuthorizer(enforcer *Enforcer, dir Directory) *Authorizer {
	return &Authorizer{enforcer: enforcer, dir: dir}
}

// CanReport checks that p may submit positions for vehicleID. Drivers are
// limited to their assigned vehicle and trackers to the vehicle named by
// their token subject.
func (a *Authorizer) CanReport(ctx context.Context, p auth.Principal, vehicleID string) error {
	if err := a.enforce(p.Role, ObjectLocation, ActionReport); err != nil {
		return err
	}

	switch p.Role {
	case auth.RoleDriver:
		assigned, err := a.dir.AssignedVehicle(ctx, p.UserID)
		if errors.Is(err, directory.ErrNotFound) {
			return fmt.Errorf("%w: driver %s has no assigned vehicle", ErrDenied, p.UserID)
		}
		if err != nil {
			return fmt.Errorf("resolve assigned vehicle: %w", err)
		}
		if assigned != vehicleID {
			return fmt.Errorf("%w: driver %s is not assigned to %s", ErrDenied, p.UserID, vehicleID)
		}
		return nil
	case auth.RoleTracker:
		if p.UserID != vehicleID {
			return fmt.Errorf("%w: tracker %s cannot report for %s", ErrDenied, p.UserID, vehicleID)
		}
		return a.vehicleExists(ctx, vehicleID)
	case auth.RoleAdmin:
		return a.vehicleExists(ctx, vehicleID)
	default:
		return fmt.Errorf("%w: role %s", ErrDenied, p.Role)
	}
}

// CanView checks that p may read object for vehicleID. Fleet owners only
// see their own vehicles.
func (a *Authorizer) CanView(ctx context.Context, p auth.Principal, object, vehicleID string) error {
	if err := a.enforce(p.Role, object, ActionView); err != nil {
		return err
	}
	if p.Role == auth.RoleAdmin {
		return nil
	}

	owner, err := a.dir.VehicleOwner(ctx, vehicleID)
	if errors.Is(err, directory.ErrNotFound) {
		return fmt.Errorf("%w: unknown vehicle %s", ErrDenied, vehicleID)
	}
	if err != nil {
		return fmt.Errorf("resolve vehicle owner: %w", err)
	}
	if owner != p.UserID {
		return fmt.Errorf("%w: %s does not own %s", ErrDenied, p.UserID, vehicleID)
	}
	return nil
}

// VisibleVehicles returns the vehicle ids p may view. all is true for
// principals without an ownership restriction.
func (a *Authorizer) VisibleVehicles(ctx context.Context, p auth.Principal) (all bool, ids map[string]struct{}, err error) {
	if err := a.enforce(p.Role, ObjectVehicle, ActionView); err != nil {
		return false, nil, err
	}
	if p.Role == auth.RoleAdmin {
		return true, nil, nil
	}

	vehicles, err := a.dir.VehiclesByOwner(ctx, p.UserID)
	if err != nil {
		return false, nil, fmt.Errorf("list owned vehicles: %w", err)
	}
	ids = make(map[string]struct{}, len(vehicles))
	for _, v := range vehicles {
		ids[v.ID] = struct{}{}
	}
	return false, ids, nil
}

func (a *Authorizer) enforce(role, object, action string) error {
	allowed, err := a.enforcer.Enforce(role, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		return fmt.Errorf("%w: role %q cannot %s %s", ErrDenied, role, action, object)
	}
	return nil
}

func (a *Authorizer) vehicleExists(ctx context.Context, vehicleID string) error {
	_, err := a.dir.VehicleOwner(ctx, vehicleID)
	if errors.Is(err, directory.ErrNotFound) {
		return fmt.Errorf("%w: unknown vehicle %s", ErrDenied, vehicleID)
	}
	if err != nil {
		return fmt.Errorf("resolve vehicle: %w", err)
	}
	return nil
}
