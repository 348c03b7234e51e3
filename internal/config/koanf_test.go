// Fleetwatch - Fleet Tracking and Live Vehicle Location Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Tracking.LiveThreshold != 5*time.Minute {
		t.Errorf("Tracking.LiveThreshold = %v, want 5m", cfg.Tracking.LiveThreshold)
	}
	if cfg.Tracking.HistoryCap != 100 {
		t.Errorf("Tracking.HistoryCap = %d, want 100", cfg.Tracking.HistoryCap)
	}
	if cfg.Tracking.RecentWindow != 0 {
		t.Errorf("Tracking.RecentWindow = %v, want disabled", cfg.Tracking.RecentWindow)
	}
	if cfg.Events.NATSURL != "" {
		t.Errorf("Events.NATSURL = %q, want in-process default", cfg.Events.NATSURL)
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"HTTP_PORT", "server.port"},
		{"JWT_SECRET", "security.jwt_secret"},
		{"STORE_PATH", "store.path"},
		{"LIVE_THRESHOLD", "tracking.live_threshold"},
		{"NATS_URL", "events.nats_url"},
		{"ROUTING_URL", "routing.base_url"},
		{"PATH", ""},
		{"UNKNOWN_VAR", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := envTransformFunc(tt.input); got != tt.want {
				t.Errorf("envTransformFunc(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestLoadWithKoanf_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("HISTORY_CAP", "50")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Tracking.HistoryCap != 50 {
		t.Errorf("Tracking.HistoryCap = %d, want 50", cfg.Tracking.HistoryCap)
	}
	want := []string{"https://a.example", "https://b.example"}
	if len(cfg.Security.CORSOrigins) != 2 || cfg.Security.CORSOrigins[0] != want[0] || cfg.Security.CORSOrigins[1] != want[1] {
		t.Errorf("CORSOrigins = %v, want %v", cfg.Security.CORSOrigins, want)
	}
}

func TestLoadWithKoanf_File(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	yaml := `
security:
  jwt_secret: ` + testSecret + `
tracking:
  recent_window: 30m
store:
  in_memory: true
`
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}
	if cfg.Tracking.RecentWindow != 30*time.Minute {
		t.Errorf("RecentWindow = %v, want 30m", cfg.Tracking.RecentWindow)
	}
	if !cfg.Store.InMemory {
		t.Error("expected in-memory store from file")
	}
}

func TestFindConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	if got := findConfigFile(); got != "" {
		t.Errorf("findConfigFile() = %q, want empty", got)
	}

	custom := filepath.Join(dir, "custom.yaml")
	if err := os.WriteFile(custom, []byte("{}"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, custom)
	if got := findConfigFile(); got != custom {
		t.Errorf("findConfigFile() = %q, want %q", got, custom)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid defaults", func(c *Config) {}, ""},
		{"short secret", func(c *Config) { c.Security.JWTSecret = "short" }, "JWT_SECRET"},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "HTTP_PORT"},
		{"recent inside live", func(c *Config) { c.Tracking.RecentWindow = time.Minute }, "RECENT_WINDOW"},
		{"zero history cap", func(c *Config) { c.Tracking.HistoryCap = 0 }, "HISTORY_CAP"},
		{"wildcard cors in production", func(c *Config) { c.Server.Environment = "production" }, "CORS_ORIGINS"},
		{"routing bad url", func(c *Config) { c.Routing.Enabled = true; c.Routing.BaseURL = "osrm" }, "ROUTING_URL"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "LOG_FORMAT"},
		{"store path missing", func(c *Config) { c.Store.Path = "" }, "STORE_PATH"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.Security.JWTSecret = testSecret
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}

func TestServerConfigAddr(t *testing.T) {
	s := ServerConfig{Host: "127.0.0.1", Port: 8080}
	if got := s.Addr(); got != "127.0.0.1:8080" {
		t.Errorf("Addr() = %q", got)
	}
}
