package config

import (
	"errors"
	"fmt"

	"go.uber.org/zap/zapcore"

	"github.com/omochice/toy-socket-relay/internal/endpoint"
)

// Validate checks that all values are usable.
func (c *Config) Validate() error {
	if _, err := endpoint.FromPage(c.Client.Page); err != nil {
		return fmt.Errorf("client.page: %w", err)
	}

	switch c.Client.Transport {
	case TransportGorilla, TransportGobwas:
	default:
		return fmt.Errorf("client.transport must be %q or %q, got %q", TransportGorilla, TransportGobwas, c.Client.Transport)
	}

	if c.Client.DialTimeout < 0 {
		return errors.New("client.dial_timeout must be >= 0")
	}

	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}

	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}

	return nil
}
