// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the gateway.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Gateway GatewayConfig `yaml:"gateway"`
	Log     LogConfig     `yaml:"log"`
}

// ServerConfig holds HTTP listener configuration.
type ServerConfig struct {
	HTTPAddr        string        `yaml:"http_addr"`
	TLSEnabled      bool          `yaml:"tls_enabled"`
	TLSCertFile     string        `yaml:"tls_cert_file"`
	TLSKeyFile      string        `yaml:"tls_key_file"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	HealthEnabled   bool          `yaml:"health_enabled"`
}

// GatewayConfig holds per-request session settings.
type GatewayConfig struct {
	// Maximum request body size in bytes, both input modes.
	MaxBodySize int64 `yaml:"max_body_size"`

	// How long a subscribe session waits for the first message.
	SubscribeTimeout time.Duration `yaml:"subscribe_timeout"`

	// Broker connect handshake bound.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// Grace period granted to the broker client on disconnect.
	DisconnectGrace time.Duration `yaml:"disconnect_grace"`

	// Prefix for the random per-session MQTT client ID.
	ClientIDPrefix string `yaml:"client_id_prefix"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr:        ":8080",
			TLSEnabled:      false,
			ShutdownTimeout: 10 * time.Second,
			HealthEnabled:   true,
		},
		Gateway: GatewayConfig{
			MaxBodySize:      16 << 20,
			SubscribeTimeout: 5 * time.Minute,
			ConnectTimeout:   30 * time.Second,
			DisconnectGrace:  250 * time.Millisecond,
			ClientIDPrefix:   "fluxgate-",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file.
// If the file doesn't exist, returns default configuration.
func Load(filename string) (*Config, error) {
	if filename == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr cannot be empty")
	}
	if c.Server.TLSEnabled {
		if c.Server.TLSCertFile == "" {
			return fmt.Errorf("server.tls_cert_file required when TLS is enabled")
		}
		if c.Server.TLSKeyFile == "" {
			return fmt.Errorf("server.tls_key_file required when TLS is enabled")
		}
	}

	if c.Gateway.MaxBodySize < 1024 {
		return fmt.Errorf("gateway.max_body_size must be at least 1KB")
	}
	if c.Gateway.SubscribeTimeout < time.Second {
		return fmt.Errorf("gateway.subscribe_timeout must be at least 1 second")
	}
	if c.Gateway.ConnectTimeout < time.Second {
		return fmt.Errorf("gateway.connect_timeout must be at least 1 second")
	}
	if c.Gateway.DisconnectGrace < 0 {
		return fmt.Errorf("gateway.disconnect_grace cannot be negative")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Log.Level] {
		return fmt.Errorf("log.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		return fmt.Errorf("log.format must be one of: text, json")
	}

	return nil
}
