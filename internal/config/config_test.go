// AccessMux - Tenant-Scoped Access Control Event Multiplexer
// Copyright 2026 the AccessMux authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/accessmux/accessmux

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Server.Port != 8460 {
		t.Errorf("default port = %d, want 8460", cfg.Server.Port)
	}
	if cfg.Security.SessionTimeout != 24*time.Hour {
		t.Errorf("default session timeout = %v, want 24h", cfg.Security.SessionTimeout)
	}
	if cfg.Attendance.Timezone != "UTC" {
		t.Errorf("default timezone = %q, want UTC", cfg.Attendance.Timezone)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config failed validation: %v", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	// Run from a directory with no config file so only defaults apply.
	t.Chdir(t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Port != 8460 {
		t.Errorf("port = %d, want 8460", cfg.Server.Port)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("log level = %q, want info", cfg.Logging.Level)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HTTP_PORT", "9999")
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("ATTENDANCE_TIMEZONE", "Asia/Tashkent")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Security.JWTSecret != "0123456789abcdef0123456789abcdef" {
		t.Errorf("jwt secret not applied from env")
	}
	if cfg.Attendance.Timezone != "Asia/Tashkent" {
		t.Errorf("timezone = %q, want Asia/Tashkent", cfg.Attendance.Timezone)
	}
	want := []string{"https://a.example", "https://b.example"}
	if len(cfg.Security.CORSOrigins) != len(want) {
		t.Fatalf("cors origins = %v, want %v", cfg.Security.CORSOrigins, want)
	}
	for i, origin := range want {
		if cfg.Security.CORSOrigins[i] != origin {
			t.Errorf("cors origin[%d] = %q, want %q", i, cfg.Security.CORSOrigins[i], origin)
		}
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := strings.Join([]string{
		"server:",
		"  port: 8888",
		"attendance:",
		"  timezone: Europe/Berlin",
	}, "\n")
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Chdir(t.TempDir())
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Port != 8888 {
		t.Errorf("port = %d, want 8888", cfg.Server.Port)
	}
	if cfg.Attendance.Timezone != "Europe/Berlin" {
		t.Errorf("timezone = %q, want Europe/Berlin", cfg.Attendance.Timezone)
	}
	// Untouched sections keep defaults.
	if cfg.Media.Dir != "/data/media" {
		t.Errorf("media dir = %q, want default", cfg.Media.Dir)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port zero", func(c *Config) { c.Server.Port = 0 }},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }},
		{"short jwt secret", func(c *Config) { c.Security.JWTSecret = "short" }},
		{"zero rate limit", func(c *Config) { c.Security.RateLimitReqs = 0 }},
		{"bad timezone", func(c *Config) { c.Attendance.Timezone = "Mars/Olympus" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestEnvTransformFuncDropsUnknown(t *testing.T) {
	if got := envTransformFunc("PATH"); got != "" {
		t.Errorf("envTransformFunc(PATH) = %q, want empty", got)
	}
	if got := envTransformFunc("JWT_SECRET"); got != "security.jwt_secret" {
		t.Errorf("envTransformFunc(JWT_SECRET) = %q", got)
	}
}

func TestAddr(t *testing.T) {
	cfg := defaultConfig()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 8460
	if got := cfg.Addr(); got != "127.0.0.1:8460" {
		t.Errorf("Addr() = %q", got)
	}
}
