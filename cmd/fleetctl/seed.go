// Fleetwatch - Fleet Tracking and Live Vehicle Location Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/fleetwatch/internal/directory"
	"github.com/tomtom215/fleetwatch/internal/models"
)

func seedCmd() *cobra.Command {
	var dirPath string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert or replace directory rows",
	}
	cmd.PersistentFlags().StringVar(&dirPath, "directory", "/data/directory.db", "Path to the SQLite directory")

	withDirectory := func(ctx context.Context, fn func(*directory.Directory) error) error {
		dir, err := directory.Open(ctx, dirPath)
		if err != nil {
			return err
		}
		defer dir.Close()
		return fn(dir)
	}

	cmd.AddCommand(seedVehicleCmd(withDirectory))
	cmd.AddCommand(seedDriverCmd(withDirectory))
	cmd.AddCommand(seedTripCmd(withDirectory))
	return cmd
}

type directoryFunc func(ctx context.Context, fn func(*directory.Directory) error) error

func seedVehicleCmd(with directoryFunc) *cobra.Command {
	var v models.Vehicle

	cmd := &cobra.Command{
		Use:   "vehicle",
		Short: "Register a vehicle under an owner",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return with(cmd.Context(), func(d *directory.Directory) error {
				if err := d.UpsertVehicle(cmd.Context(), v); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "vehicle %s saved (owner %s)\n", v.ID, v.OwnerID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&v.ID, "id", "", "Vehicle id")
	cmd.Flags().StringVar(&v.OwnerID, "owner", "", "Owner user id")
	cmd.Flags().StringVar(&v.Name, "name", "", "Display name")
	cmd.Flags().StringVar(&v.RegistrationNumber, "registration", "", "Registration number")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

func seedDriverCmd(with directoryFunc) *cobra.Command {
	var drv models.Driver

	cmd := &cobra.Command{
		Use:   "driver",
		Short: "Register a driver and optionally assign a vehicle",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return with(cmd.Context(), func(d *directory.Directory) error {
				if err := d.UpsertDriver(cmd.Context(), drv); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "driver %s saved (user %s)\n", drv.ID, drv.UserID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&drv.ID, "id", "", "Driver id")
	cmd.Flags().StringVar(&drv.UserID, "user", "", "User id the driver signs in with")
	cmd.Flags().StringVar(&drv.Name, "name", "", "Display name")
	cmd.Flags().StringVar(&drv.AssignedVehicleID, "vehicle", "", "Assigned vehicle id")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func seedTripCmd(with directoryFunc) *cobra.Command {
	var (
		t          models.Trip
		status     string
		start      string
		startPoint []float64
		endPoint   []float64
	)

	cmd := &cobra.Command{
		Use:   "trip",
		Short: "Create or update a trip",
		RunE: func(cmd *cobra.Command, _ []string) error {
			t.Status = models.TripStatus(status)
			if t.Status != models.TripOngoing && t.Status != models.TripCompleted {
				return fmt.Errorf("status must be %s or %s", models.TripOngoing, models.TripCompleted)
			}
			t.StartTime = time.Now().UTC()
			if start != "" {
				ts, err := time.Parse(time.RFC3339, start)
				if err != nil {
					return fmt.Errorf("start time: %w", err)
				}
				t.StartTime = ts
			}
			var err error
			if t.StartPoint, err = coordinateFlag("start-point", startPoint); err != nil {
				return err
			}
			if t.EndPoint, err = coordinateFlag("end-point", endPoint); err != nil {
				return err
			}

			return with(cmd.Context(), func(d *directory.Directory) error {
				if err := d.UpsertTrip(cmd.Context(), t); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "trip %s saved (%s, vehicle %s)\n", t.ID, t.Status, t.VehicleID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&t.ID, "id", "", "Trip id")
	cmd.Flags().StringVar(&t.VehicleID, "vehicle", "", "Vehicle id")
	cmd.Flags().StringVar(&t.DriverID, "driver", "", "Driver id")
	cmd.Flags().StringVar(&t.StartLocation, "from", "", "Start location label")
	cmd.Flags().StringVar(&t.EndLocation, "to", "", "Destination label")
	cmd.Flags().StringVar(&status, "status", string(models.TripOngoing), "Ongoing or Completed")
	cmd.Flags().StringVar(&start, "start", "", "Start time, RFC3339 (default: now)")
	cmd.Flags().Float64SliceVar(&startPoint, "start-point", nil, "Start waypoint as lat,lng")
	cmd.Flags().Float64SliceVar(&endPoint, "end-point", nil, "End waypoint as lat,lng")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("vehicle")
	_ = cmd.MarkFlagRequired("driver")
	return cmd
}

func coordinateFlag(name string, v []float64) (*models.Coordinate, error) {
	if len(v) == 0 {
		return nil, nil
	}
	if len(v) != 2 {
		return nil, fmt.Errorf("--%s wants lat,lng", name)
	}
	c := models.Coordinate{Lat: v[0], Lng: v[1]}
	if !c.Valid() {
		return nil, fmt.Errorf("--%s is out of range", name)
	}
	return &c, nil
}
