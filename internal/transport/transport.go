// Package transport defines the connection abstraction used by the relay session.
// Concrete dialers live in the gorilla and gobwas subpackages.
package transport

import (
	"context"
	"errors"
	"fmt"

	"github.com/omochice/toy-socket-relay/pkg/protocol"
)

// Conn is a single bidirectional WebSocket connection.
type Conn interface {
	// Read blocks until the next data frame arrives.
	// A close frame from the peer is reported as *CloseError.
	// Close unblocks a pending Read.
	Read(ctx context.Context) (protocol.Frame, error)

	// WriteText sends s as one text frame, verbatim.
	WriteText(ctx context.Context, s string) error

	// Close sends a close frame with code and reason and releases the connection.
	Close(code int, reason string) error
}

// Dialer opens connections.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, url string) (Conn, error)

// Dial calls f(ctx, url).
func (f DialerFunc) Dial(ctx context.Context, url string) (Conn, error) {
	return f(ctx, url)
}

// CloseError is returned by Read when the peer sent a close frame.
type CloseError struct {
	Code   int
	Reason string
}

func (e *CloseError) Error() string {
	return fmt.Sprintf("connection closed by peer: code=%d reason=%q", e.Code, e.Reason)
}

// CloseInfoFromError maps a Read failure to close information.
// A close handshake is clean; anything else is an abnormal closure.
func CloseInfoFromError(err error) protocol.CloseInfo {
	var ce *CloseError
	if errors.As(err, &ce) {
		return protocol.CloseInfo{Code: ce.Code, Reason: ce.Reason, Clean: true}
	}
	return protocol.CloseInfo{Code: protocol.CloseAbnormalClosure}
}
