// Package gobwas provides a relay transport on gobwas/ws.
package gobwas

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/omochice/toy-socket-relay/internal/transport"
	"github.com/omochice/toy-socket-relay/pkg/protocol"
)

// Dialer opens gobwas/ws connections.
type Dialer struct {
	Timeout time.Duration
}

// NewDialer returns a Dialer with a 10 second timeout.
func NewDialer() *Dialer {
	return &Dialer{Timeout: 10 * time.Second}
}

// Dial implements transport.Dialer.
func (d *Dialer) Dial(ctx context.Context, url string) (transport.Conn, error) {
	dialer := ws.Dialer{Timeout: d.Timeout}

	conn, br, _, err := dialer.Dial(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to server: %w", err)
	}
	return NewConn(conn, br), nil
}

// Conn adapts a client-side net.Conn speaking WebSocket to transport.Conn.
type Conn struct {
	conn    net.Conn
	src     io.Reader
	writeMu sync.Mutex
}

// NewConn wraps conn. br holds bytes the handshake read past the
// response and may be nil.
func NewConn(conn net.Conn, br *bufio.Reader) *Conn {
	c := &Conn{conn: conn, src: conn}
	if br != nil {
		c.src = br
	}
	return c
}

// Read implements transport.Conn.
func (c *Conn) Read(ctx context.Context) (protocol.Frame, error) {
	if err := ctx.Err(); err != nil {
		return protocol.Frame{}, err
	}

	control := c.controlHandler()
	rd := &wsutil.Reader{
		Source:         c.src,
		State:          ws.StateClientSide,
		OnIntermediate: control,
	}

	for {
		hdr, err := rd.NextFrame()
		if err != nil {
			return protocol.Frame{}, mapError(err)
		}

		if hdr.OpCode.IsControl() {
			if err := control(hdr, rd); err != nil {
				return protocol.Frame{}, mapError(err)
			}
			continue
		}

		data, err := io.ReadAll(rd)
		if err != nil {
			return protocol.Frame{}, mapError(err)
		}

		if hdr.OpCode == ws.OpBinary {
			return protocol.BinaryFrame(data), nil
		}
		return protocol.TextFrame(string(data)), nil
	}
}

// WriteText implements transport.Conn.
func (c *Conn) WriteText(ctx context.Context, s string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline, _ := ctx.Deadline()
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return wsutil.WriteClientText(c.conn, []byte(s))
}

// Close implements transport.Conn.
func (c *Conn) Close(code int, reason string) error {
	c.writeMu.Lock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(time.Second))
	_ = wsutil.WriteClientMessage(c.conn, ws.OpClose, ws.NewCloseFrameBody(ws.StatusCode(code), reason))
	c.writeMu.Unlock()

	return c.conn.Close()
}

// controlHandler answers pings and close frames. Replies share the write
// lock with WriteText so frames are never interleaved.
func (c *Conn) controlHandler() wsutil.FrameHandlerFunc {
	return func(hdr ws.Header, r io.Reader) error {
		c.writeMu.Lock()
		defer c.writeMu.Unlock()
		return wsutil.ControlFrameHandler(c.conn, ws.StateClientSide)(hdr, r)
	}
}

func mapError(err error) error {
	var closed wsutil.ClosedError
	if errors.As(err, &closed) {
		return &transport.CloseError{Code: int(closed.Code), Reason: closed.Reason}
	}
	return err
}
