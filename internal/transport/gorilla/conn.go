// Package gorilla provides the default relay transport on gorilla/websocket.
package gorilla

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/omochice/toy-socket-relay/internal/transport"
	"github.com/omochice/toy-socket-relay/pkg/protocol"
)

const closeWriteWait = time.Second

// Dialer opens gorilla/websocket connections.
type Dialer struct {
	HandshakeTimeout time.Duration
}

// NewDialer returns a Dialer with a 10 second handshake timeout.
func NewDialer() *Dialer {
	return &Dialer{HandshakeTimeout: 10 * time.Second}
}

// Dial implements transport.Dialer.
func (d *Dialer) Dial(ctx context.Context, url string) (transport.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: d.HandshakeTimeout}

	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to server: %w", err)
	}
	return NewConn(conn), nil
}

// Conn adapts *websocket.Conn to transport.Conn.
type Conn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// NewConn wraps an established gorilla connection.
func NewConn(conn *websocket.Conn) *Conn {
	return &Conn{conn: conn}
}

// Read implements transport.Conn.
// gorilla has no context-aware read; a pending Read is released by Close.
func (c *Conn) Read(ctx context.Context) (protocol.Frame, error) {
	if err := ctx.Err(); err != nil {
		return protocol.Frame{}, err
	}

	messageType, data, err := c.conn.ReadMessage()
	if err != nil {
		var ce *websocket.CloseError
		if errors.As(err, &ce) {
			return protocol.Frame{}, &transport.CloseError{Code: ce.Code, Reason: ce.Text}
		}
		return protocol.Frame{}, err
	}

	if messageType == websocket.BinaryMessage {
		return protocol.BinaryFrame(data), nil
	}
	return protocol.TextFrame(string(data)), nil
}

// WriteText implements transport.Conn.
func (c *Conn) WriteText(ctx context.Context, s string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline, _ := ctx.Deadline()
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, []byte(s))
}

// Close implements transport.Conn.
func (c *Conn) Close(code int, reason string) error {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteWait))
	return c.conn.Close()
}
