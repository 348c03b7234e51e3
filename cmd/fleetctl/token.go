// Fleetwatch - Fleet Tracking and Live Vehicle Location Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package main

import (
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/fleetwatch/internal/auth"
	"github.com/tomtom215/fleetwatch/internal/config"
)

var knownRoles = []string{auth.RoleDriver, auth.RoleTracker, auth.RoleFleetOwner, auth.RoleAdmin}

func tokenCmd() *cobra.Command {
	var (
		userID string
		role   string
		secret string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed access token",
		Long: `Issue an HS256 token for a principal. The secret defaults to JWT_SECRET
from the server configuration.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !slices.Contains(knownRoles, role) {
				return fmt.Errorf("unknown role %q, want one of %v", role, knownRoles)
			}
			sec := config.SecurityConfig{JWTSecret: secret, TokenTTL: ttl}
			if sec.JWTSecret == "" {
				cfg, err := config.Load()
				if err != nil {
					return fmt.Errorf("load configuration: %w", err)
				}
				sec.JWTSecret = cfg.Security.JWTSecret
				if ttl == 0 {
					sec.TokenTTL = cfg.Security.TokenTTL
				}
			}

			jwtManager, err := auth.NewJWTManager(&sec)
			if err != nil {
				return err
			}
			token, err := jwtManager.GenerateToken(userID, role)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "User id carried in the token")
	cmd.Flags().StringVar(&role, "role", auth.RoleFleetOwner, "Role: driver, tracker, fleet_owner or admin")
	cmd.Flags().StringVar(&secret, "secret", "", "Signing secret (default: JWT_SECRET)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (default: TOKEN_TTL)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
