// Package transporttest provides in-memory transport fakes for tests.
package transporttest

import (
	"context"
	"net"
	"sync"

	"github.com/omochice/toy-socket-relay/internal/transport"
	"github.com/omochice/toy-socket-relay/pkg/protocol"
)

type item struct {
	frame protocol.Frame
	err   error
}

// Conn is a fake transport.Conn driven by the test.
type Conn struct {
	inbound   chan item
	closed    chan struct{}
	closeOnce sync.Once

	mu        sync.Mutex
	written   []string
	closeCode int
	closeText string
	writeErr  error
}

// NewConn returns an open fake connection.
func NewConn() *Conn {
	return &Conn{
		inbound: make(chan item, 64),
		closed:  make(chan struct{}),
	}
}

// Push queues an inbound frame.
func (c *Conn) Push(f protocol.Frame) {
	c.inbound <- item{frame: f}
}

// PeerClose queues a close frame from the peer.
func (c *Conn) PeerClose(code int, reason string) {
	c.inbound <- item{err: &transport.CloseError{Code: code, Reason: reason}}
}

// Drop queues an abrupt connection failure.
func (c *Conn) Drop() {
	c.inbound <- item{err: net.ErrClosed}
}

// FailWrites makes every following WriteText return err.
func (c *Conn) FailWrites(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeErr = err
}

// Read implements transport.Conn.
func (c *Conn) Read(ctx context.Context) (protocol.Frame, error) {
	select {
	case it := <-c.inbound:
		return it.frame, it.err
	case <-c.closed:
		return protocol.Frame{}, net.ErrClosed
	case <-ctx.Done():
		return protocol.Frame{}, ctx.Err()
	}
}

// WriteText implements transport.Conn.
func (c *Conn) WriteText(ctx context.Context, s string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.IsClosed() {
		return net.ErrClosed
	}
	if c.writeErr != nil {
		return c.writeErr
	}
	c.written = append(c.written, s)
	return nil
}

// Close implements transport.Conn.
func (c *Conn) Close(code int, reason string) error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closeCode = code
		c.closeText = reason
		c.mu.Unlock()
		close(c.closed)
	})
	return nil
}

// Written returns every text frame sent so far.
func (c *Conn) Written() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.written...)
}

// IsClosed reports whether Close was called.
func (c *Conn) IsClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// CloseCode returns the code passed to Close.
func (c *Conn) CloseCode() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCode
}

// Dialer hands out fake connections and remembers them.
type Dialer struct {
	mu    sync.Mutex
	conns []*Conn
	urls  []string
	err   error
}

// NewDialer returns a Dialer that always succeeds.
func NewDialer() *Dialer {
	return &Dialer{}
}

// FailWith makes every following Dial return err.
func (d *Dialer) FailWith(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
}

// Dial implements transport.Dialer.
func (d *Dialer) Dial(ctx context.Context, url string) (transport.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.err != nil {
		return nil, d.err
	}
	c := NewConn()
	d.conns = append(d.conns, c)
	d.urls = append(d.urls, url)
	return c, nil
}

// Conns returns every connection dialed so far.
func (d *Dialer) Conns() []*Conn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Conn(nil), d.conns...)
}

// Last returns the most recent connection or nil.
func (d *Dialer) Last() *Conn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

// URLs returns the addresses passed to Dial.
func (d *Dialer) URLs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.urls...)
}

var (
	_ transport.Conn   = (*Conn)(nil)
	_ transport.Dialer = (*Dialer)(nil)
)
