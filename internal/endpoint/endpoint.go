// Package endpoint derives the relay WebSocket endpoint from the page address.
package endpoint

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Path is the fixed relay path on the serving host.
const Path = "/ws"

// ErrNoHost is returned when the page address has no host.
var ErrNoHost = errors.New("page address has no host")

// FromPage returns the endpoint for a page served at page.
// A page served over https maps to wss; anything else maps to ws.
// A bare host:port is treated as an http page.
func FromPage(page string) (*url.URL, error) {
	if !strings.Contains(page, "://") {
		page = "http://" + page
	}

	u, err := url.Parse(page)
	if err != nil {
		return nil, fmt.Errorf("invalid page address %q: %w", page, err)
	}
	if u.Host == "" {
		return nil, ErrNoHost
	}

	scheme := "ws"
	if IsSecure(u) {
		scheme = "wss"
	}

	return &url.URL{Scheme: scheme, Host: u.Host, Path: Path}, nil
}

// IsSecure reports whether the page transport is secure.
func IsSecure(page *url.URL) bool {
	switch strings.ToLower(page.Scheme) {
	case "https", "wss":
		return true
	default:
		return false
	}
}
