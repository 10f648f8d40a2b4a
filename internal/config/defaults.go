package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultPage        = "http://localhost:8080"
	DefaultTransport   = TransportGorilla
	DefaultDialTimeout = 10 * time.Second
	DefaultServerAddr  = ":8080"
	DefaultLogLevel    = "info"
)

// Supported client transports.
const (
	TransportGorilla = "gorilla"
	TransportGobwas  = "gobwas"
)

func (c *Config) applyDefaults() {
	if c.Client.Page == "" {
		c.Client.Page = DefaultPage
	}
	if c.Client.Transport == "" {
		c.Client.Transport = DefaultTransport
	}
	if c.Client.DialTimeout == 0 {
		c.Client.DialTimeout = DefaultDialTimeout
	}

	if c.Server.Addr == "" {
		c.Server.Addr = DefaultServerAddr
	}

	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
}
