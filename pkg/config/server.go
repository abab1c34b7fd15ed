package config

import "fmt"

// ServerConfig configures the HTTP API listener.
type ServerConfig struct {
	Addr                    string
	GracefulShutdownTimeout int // seconds
}

// DefaultServerConfig returns the baseline ServerConfig.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:                    ":8080",
		GracefulShutdownTimeout: 30,
	}
}

// Validate reports whether c is well-formed.
func (c ServerConfig) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr must not be empty")
	}
	if c.GracefulShutdownTimeout <= 0 {
		return fmt.Errorf("graceful_shutdown_timeout must be positive")
	}
	return nil
}
