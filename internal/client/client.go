// Package client owns the single live relay connection.
package client

import (
	"context"
	"errors"

	"github.com/omochice/toy-socket-relay/pkg/protocol"
)

var (
	// ErrNotConnected is returned by Send when no connection is open.
	ErrNotConnected = errors.New("not connected to server")
	// ErrShutdown is returned by Open after Shutdown.
	ErrShutdown = errors.New("session shut down")
	// ErrOpenCanceled is returned by Open when its dial was canceled
	// before the connection could be installed.
	ErrOpenCanceled = errors.New("open canceled")
)

// State is the lifecycle state of the connection.
type State int

const (
	StateClosed State = iota
	StateOpen
)

// String returns the string representation of State
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Manager is the connection manager contract used by the relay controller.
type Manager interface {
	Open(ctx context.Context) error
	Close()
	IsOpen() bool
	State() State
	Send(ctx context.Context, text string) error
	Events() <-chan protocol.Event
}

var _ Manager = (*Session)(nil)
