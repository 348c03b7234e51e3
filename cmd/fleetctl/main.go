// Fleetwatch - Fleet Tracking and Live Vehicle Location Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

// Command fleetctl is the Fleetwatch operator tool. It issues tokens for
// testing, seeds the vehicle directory and dumps stored position history.
//
//	fleetctl token --user user-d1 --role driver
//	fleetctl seed vehicle --id V1 --owner owner-1
//	fleetctl seed driver --id D1 --user user-d1 --vehicle V1
//	fleetctl seed trip --id T1 --vehicle V1 --driver D1
//	fleetctl history --vehicle V1 --store /data/positions
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tomtom215/fleetwatch/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:           "fleetctl",
		Short:         "Fleetwatch operator tool",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			logging.Init(logging.Config{Level: logLevel, Format: "console"})
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level")

	root.AddCommand(tokenCmd())
	root.AddCommand(seedCmd())
	root.AddCommand(historyCmd())
	return root
}
