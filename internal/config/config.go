// Package config defines tuttid's configuration structure. It uses
// strict YAML decoding and explicit defaults.
package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete server configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Room   RoomConfig   `yaml:"room"`
}

// ServerConfig defines the ports each surface listens on.
type ServerConfig struct {
	HealthPort    int `yaml:"health_port"`    // Port for the /healthz endpoint
	HTTPPort      int `yaml:"http_port"`       // Port for the room REST API
	TransportPort int `yaml:"transport_port"`  // Port for the reference websocket+UDP transport
}

// RoomConfig defines the limits and timeouts every room in the fixed
// roster is created with. Durations are expressed in whole seconds
// rather than time.Duration, since yaml.v3 decodes a plain int scalar
// but has no special case for Go's duration-string suffixes.
type RoomConfig struct {
	MaxParticipants         int `yaml:"max_participants"`
	RingCapacity            int `yaml:"ring_capacity"`
	UnboundTimeoutSeconds    int `yaml:"unbound_timeout_seconds"`
	InactivityTimeoutSeconds int `yaml:"inactivity_timeout_seconds"`
	ReaperSweepSeconds       int `yaml:"reaper_sweep_seconds"`
}

// UnboundTimeout returns the configured unbound participant timeout.
func (r RoomConfig) UnboundTimeout() time.Duration {
	return time.Duration(r.UnboundTimeoutSeconds) * time.Second
}

// InactivityTimeout returns the configured bound inactivity timeout.
func (r RoomConfig) InactivityTimeout() time.Duration {
	return time.Duration(r.InactivityTimeoutSeconds) * time.Second
}

// ReaperSweepPeriod returns the configured reaper sweep interval.
func (r RoomConfig) ReaperSweepPeriod() time.Duration {
	return time.Duration(r.ReaperSweepSeconds) * time.Second
}

// Load reads configuration from a YAML file.
// Returns an error if the file cannot be read or decoded.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields

	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.setDefaults()

	return &cfg, nil
}

// setDefaults applies explicit default values to unset fields.
func (c *Config) setDefaults() {
	if c.Server.HealthPort == 0 {
		c.Server.HealthPort = 8080
	}
	if c.Server.HTTPPort == 0 {
		c.Server.HTTPPort = 8081
	}
	if c.Server.TransportPort == 0 {
		c.Server.TransportPort = 8082
	}
	if c.Room.MaxParticipants == 0 {
		c.Room.MaxParticipants = 4
	}
	if c.Room.RingCapacity == 0 {
		c.Room.RingCapacity = 64
	}
	if c.Room.UnboundTimeoutSeconds == 0 {
		c.Room.UnboundTimeoutSeconds = 30
	}
	if c.Room.InactivityTimeoutSeconds == 0 {
		c.Room.InactivityTimeoutSeconds = 60
	}
	if c.Room.ReaperSweepSeconds == 0 {
		c.Room.ReaperSweepSeconds = 5
	}
}
