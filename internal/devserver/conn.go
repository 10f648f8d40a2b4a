// Package devserver is a development relay server: every frame a client
// sends on /ws is broadcast, kind preserved, to every connected client.
package devserver

import (
	"context"

	"nhooyr.io/websocket"

	"github.com/omochice/toy-socket-relay/pkg/protocol"
)

// Conn adapts nhooyr.io/websocket to relay frames.
type Conn struct {
	conn       *websocket.Conn
	remoteAddr string
}

// NewConn wraps a websocket.Conn with the specified remote address.
func NewConn(conn *websocket.Conn, addr string) *Conn {
	return &Conn{conn: conn, remoteAddr: addr}
}

// Read reads one frame, text or binary.
func (c *Conn) Read(ctx context.Context) (protocol.Frame, error) {
	typ, data, err := c.conn.Read(ctx)
	if err != nil {
		return protocol.Frame{}, err
	}
	if typ == websocket.MessageBinary {
		return protocol.BinaryFrame(data), nil
	}
	return protocol.TextFrame(string(data)), nil
}

// Write writes f with its kind preserved.
func (c *Conn) Write(ctx context.Context, f protocol.Frame) error {
	typ := websocket.MessageText
	if f.Kind == protocol.FrameBinary {
		typ = websocket.MessageBinary
	}
	return c.conn.Write(ctx, typ, f.Data)
}

// Close performs the close handshake with code and reason.
func (c *Conn) Close(code int, reason string) error {
	return c.conn.Close(websocket.StatusCode(code), reason)
}

// RemoteAddr returns the remote address for logging.
func (c *Conn) RemoteAddr() string {
	return c.remoteAddr
}
