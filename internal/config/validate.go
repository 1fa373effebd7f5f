package config

import "fmt"

// Validate checks that all configuration values are within acceptable
// ranges. Returns an error describing the first validation failure
// found.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if err := c.Room.Validate(); err != nil {
		return fmt.Errorf("room config: %w", err)
	}
	return nil
}

// Validate checks server port configuration.
func (s *ServerConfig) Validate() error {
	if s.HealthPort <= 0 || s.HealthPort > 65535 {
		return fmt.Errorf("health_port must be between 1 and 65535, got %d", s.HealthPort)
	}
	if s.HTTPPort <= 0 || s.HTTPPort > 65535 {
		return fmt.Errorf("http_port must be between 1 and 65535, got %d", s.HTTPPort)
	}
	if s.TransportPort <= 0 || s.TransportPort > 65535 {
		return fmt.Errorf("transport_port must be between 1 and 65535, got %d", s.TransportPort)
	}
	if s.HealthPort == s.HTTPPort {
		return fmt.Errorf("health_port and http_port must be different, both are %d", s.HealthPort)
	}
	if s.HealthPort == s.TransportPort {
		return fmt.Errorf("health_port and transport_port must be different, both are %d", s.HealthPort)
	}
	if s.HTTPPort == s.TransportPort {
		return fmt.Errorf("http_port and transport_port must be different, both are %d", s.HTTPPort)
	}
	return nil
}

// Validate checks room limit and timeout configuration.
func (r *RoomConfig) Validate() error {
	if r.MaxParticipants <= 0 {
		return fmt.Errorf("max_participants must be positive, got %d", r.MaxParticipants)
	}
	if r.RingCapacity <= 0 {
		return fmt.Errorf("ring_capacity must be positive, got %d", r.RingCapacity)
	}
	if r.UnboundTimeoutSeconds <= 0 {
		return fmt.Errorf("unbound_timeout_seconds must be positive, got %d", r.UnboundTimeoutSeconds)
	}
	if r.InactivityTimeoutSeconds <= 0 {
		return fmt.Errorf("inactivity_timeout_seconds must be positive, got %d", r.InactivityTimeoutSeconds)
	}
	if r.ReaperSweepSeconds <= 0 {
		return fmt.Errorf("reaper_sweep_seconds must be positive, got %d", r.ReaperSweepSeconds)
	}
	return nil
}
