// Fleetwatch - Fleet Tracking and Live Vehicle Location Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/tomtom215/fleetwatch/internal/models"
	"github.com/tomtom215/fleetwatch/internal/store"
)

func historyCmd() *cobra.Command {
	var (
		storePath string
		vehicleID string
		since     time.Duration
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print a vehicle's stored positions",
		Long: `Open the position store directly and print the vehicle's history across
all scopes. The server must be stopped; badger holds an exclusive lock.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := store.Open(store.Options{Path: storePath})
			if err != nil {
				return err
			}
			defer s.Close()

			now := time.Now()
			samples, err := s.GetHistoryAcrossScopes(cmd.Context(), vehicleID, models.TimeRange{From: now.Add(-since), To: now})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(models.Points(samples))
			}

			scopes, err := s.Scopes(cmd.Context(), vehicleID)
			if err != nil {
				return err
			}
			for _, m := range scopes {
				fmt.Fprintf(out, "scope %-40s %6s points, last %s\n",
					m.Key, humanize.Comma(m.Count), humanize.Time(m.LastTouched))
			}
			for _, p := range samples {
				fmt.Fprintf(out, "%s  %10.6f %11.6f  %5.1f km/h\n",
					p.Timestamp.UTC().Format(time.RFC3339), p.Latitude, p.Longitude, p.Speed)
			}
			fmt.Fprintf(out, "%d positions in the last %s\n", len(samples), since)
			return nil
		},
	}
	cmd.Flags().StringVar(&storePath, "store", "/data/positions", "Badger position store directory")
	cmd.Flags().StringVar(&vehicleID, "vehicle", "", "Vehicle id")
	cmd.Flags().DurationVar(&since, "since", 24*time.Hour, "How far back to read")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print location points as JSON")
	_ = cmd.MarkFlagRequired("vehicle")
	return cmd
}
