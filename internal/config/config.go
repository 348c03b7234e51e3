// Fleetwatch - Fleet Tracking and Live Vehicle Location Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

// Package config loads Fleetwatch configuration.
//
// Loading order (Koanf v2):
//  1. Built-in defaults
//  2. Optional YAML file (config.yaml, /etc/fleetwatch/config.yaml, or CONFIG_PATH)
//  3. Environment variables (see envTransformFunc for the mapping)
//
// Example:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    logging.Fatal().Err(err).Msg("Failed to load config")
//	}
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
	Security  SecurityConfig  `koanf:"security"`
	Store     StoreConfig     `koanf:"store"`
	Directory DirectoryConfig `koanf:"directory"`
	Tracking  TrackingConfig  `koanf:"tracking"`
	Routing   RoutingConfig   `koanf:"routing"`
	Events    EventsConfig    `koanf:"events"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Host            string        `koanf:"host"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	Environment     string        `koanf:"environment"` // development, staging, production
}

// LoggingConfig mirrors logging.Config for the koanf layer.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// SecurityConfig holds authentication and request limiting settings.
type SecurityConfig struct {
	JWTSecret         string        `koanf:"jwt_secret"`
	TokenTTL          time.Duration `koanf:"token_ttl"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`

	// PolicyPath optionally replaces the embedded Casbin role policy.
	PolicyPath string `koanf:"policy_path"`
}

// StoreConfig configures the badger position store.
type StoreConfig struct {
	Path     string `koanf:"path"`
	InMemory bool   `koanf:"in_memory"`

	// GCInterval is how often badger value-log GC runs. Zero disables it.
	GCInterval time.Duration `koanf:"gc_interval"`
}

// DirectoryConfig configures the sqlite vehicle/driver/trip directory.
type DirectoryConfig struct {
	Path string `koanf:"path"`
}

// TrackingConfig holds live tracking tunables.
type TrackingConfig struct {
	// LiveThreshold is the age below which a vehicle counts as live.
	LiveThreshold time.Duration `koanf:"live_threshold"`

	// RecentWindow enables the Recent bucket when greater than LiveThreshold.
	// Zero disables it.
	RecentWindow time.Duration `koanf:"recent_window"`

	// HistoryCap bounds recent history delivered to subscribers.
	HistoryCap int `koanf:"history_cap"`

	// ObserverQueueSize is the per-connection outbound buffer.
	ObserverQueueSize int `koanf:"observer_queue_size"`

	// SendRate and SendBurst throttle send_location per connection.
	SendRate  float64 `koanf:"send_rate"`
	SendBurst int     `koanf:"send_burst"`
}

// RoutingConfig configures the external routing collaborator.
type RoutingConfig struct {
	Enabled   bool          `koanf:"enabled"`
	BaseURL   string        `koanf:"base_url"`
	Timeout   time.Duration `koanf:"timeout"`
	CacheSize int64         `koanf:"cache_size"`

	// Circuit breaker
	BreakerMaxFailures uint32        `koanf:"breaker_max_failures"`
	BreakerTimeout     time.Duration `koanf:"breaker_timeout"`
}

// EventsConfig configures the location event relay.
type EventsConfig struct {
	Enabled     bool   `koanf:"enabled"`
	NATSURL     string `koanf:"nats_url"` // empty keeps the relay in-process
	TopicPrefix string `koanf:"topic_prefix"`
}

// Addr returns host:port for http.Server.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// IsProduction reports whether the environment is production.
func (s ServerConfig) IsProduction() bool {
	return s.Environment == "production"
}

// Load reads configuration using defaults, optional file and environment.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
