// Fleetwatch - Fleet Tracking and Live Vehicle Location Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package config

import (
	"fmt"
	"strings"
)

// minJWTSecretLength matches the HS256 key size.
const minJWTSecretLength = 32

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateServer,
		c.validateSecurity,
		c.validateStore,
		c.validateTracking,
		c.validateRouting,
		c.validateLogging,
	}
	for _, v := range validators {
		if err := v(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateSecurity() error {
	if len(c.Security.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters", minJWTSecretLength)
	}
	if c.Security.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive")
	}
	if !c.Security.RateLimitDisabled && c.Security.RateLimitReqs <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be positive when rate limiting is enabled")
	}
	if c.Server.IsProduction() {
		for _, origin := range c.Security.CORSOrigins {
			if origin == "*" {
				return fmt.Errorf("CORS_ORIGINS must not contain * in production")
			}
		}
	}
	return nil
}

func (c *Config) validateStore() error {
	if !c.Store.InMemory && c.Store.Path == "" {
		return fmt.Errorf("STORE_PATH is required unless STORE_IN_MEMORY is set")
	}
	if c.Store.GCInterval < 0 {
		return fmt.Errorf("STORE_GC_INTERVAL must not be negative")
	}
	return nil
}

func (c *Config) validateTracking() error {
	t := c.Tracking
	if t.LiveThreshold <= 0 {
		return fmt.Errorf("LIVE_THRESHOLD must be positive")
	}
	if t.RecentWindow != 0 && t.RecentWindow <= t.LiveThreshold {
		return fmt.Errorf("RECENT_WINDOW (%s) must exceed LIVE_THRESHOLD (%s)", t.RecentWindow, t.LiveThreshold)
	}
	if t.HistoryCap <= 0 {
		return fmt.Errorf("HISTORY_CAP must be positive, got %d", t.HistoryCap)
	}
	if t.ObserverQueueSize <= 0 {
		return fmt.Errorf("OBSERVER_QUEUE_SIZE must be positive, got %d", t.ObserverQueueSize)
	}
	if t.SendRate <= 0 || t.SendBurst <= 0 {
		return fmt.Errorf("WS_SEND_RATE and WS_SEND_BURST must be positive")
	}
	return nil
}

func (c *Config) validateRouting() error {
	if !c.Routing.Enabled {
		return nil
	}
	if !strings.HasPrefix(c.Routing.BaseURL, "http://") && !strings.HasPrefix(c.Routing.BaseURL, "https://") {
		return fmt.Errorf("ROUTING_URL must start with http:// or https://")
	}
	if c.Routing.CacheSize <= 0 {
		return fmt.Errorf("ROUTING_CACHE_SIZE must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error; got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console; got %q", c.Logging.Format)
	}
	return nil
}
