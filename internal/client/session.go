package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/omochice/toy-socket-relay/internal/transport"
	"github.com/omochice/toy-socket-relay/pkg/protocol"
)

const defaultEventBuffer = 64

// link is one dialed connection and its reader.
type link struct {
	conn transport.Conn
	gen  uint64
	stop chan struct{}
	done chan struct{}
}

// Session holds at most one open connection to the relay endpoint.
//
// Opening while a connection is already open closes the previous one first
// and waits for its reader to exit, so a handle is never leaked. The dial
// itself runs without holding the lifecycle lock: Close, Shutdown or a newer
// Open cancel a pending dial instead of waiting for it.
type Session struct {
	dialer transport.Dialer
	url    string
	logger *zap.Logger
	now    func() time.Time
	events chan protocol.Event

	// lifecycle serializes Open, Close and Shutdown.
	lifecycle sync.Mutex

	mu   sync.RWMutex
	cur  *link
	gen  uint64
	quit chan struct{}
	wg   sync.WaitGroup

	// dial is the pending dial, nil when none.
	dial *pendingDial
}

type pendingDial struct {
	cancel context.CancelFunc
}

// Option configures a Session.
type Option func(*Session)

// WithEventBuffer sets the capacity of the events channel.
func WithEventBuffer(n int) Option {
	return func(s *Session) {
		s.events = make(chan protocol.Event, n)
	}
}

// WithClock replaces the clock used to stamp received frames.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

// New creates a Session that dials url with dialer.
func New(dialer transport.Dialer, url string, logger *zap.Logger, opts ...Option) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Session{
		dialer: dialer,
		url:    url,
		logger: logger,
		now:    time.Now,
		events: make(chan protocol.Event, defaultEventBuffer),
		quit:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// URL returns the endpoint the session dials.
func (s *Session) URL() string {
	return s.url
}

// Open dials the endpoint and starts reading from it.
func (s *Session) Open(ctx context.Context) error {
	pd, dctx, err := s.beginDial(ctx)
	if err != nil {
		return err
	}
	defer pd.cancel()

	conn, err := s.dialer.Dial(dctx, s.url)

	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if !s.finishDial(pd) {
		if err == nil {
			_ = conn.Close(protocol.CloseNormalClosure, "")
		}
		s.logger.Debug("dial canceled", zap.String("url", s.url))
		return ErrOpenCanceled
	}
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.gen++
	l := &link{
		conn: conn,
		gen:  s.gen,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	s.cur = l
	s.mu.Unlock()

	s.wg.Add(1)
	go s.readLoop(l)

	s.logger.Info("connection opened", zap.String("url", s.url), zap.Uint64("gen", l.gen))
	return nil
}

// beginDial replaces any open connection or pending dial with a new pending dial.
func (s *Session) beginDial(ctx context.Context) (*pendingDial, context.Context, error) {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	select {
	case <-s.quit:
		return nil, nil, ErrShutdown
	default:
	}

	s.cancelDial()
	if s.detachAndClose(protocol.CloseNormalClosure, "") {
		s.logger.Debug("replaced open connection", zap.String("url", s.url))
	}

	dctx, cancel := context.WithCancel(ctx)
	pd := &pendingDial{cancel: cancel}

	s.mu.Lock()
	s.dial = pd
	s.mu.Unlock()

	return pd, dctx, nil
}

// finishDial reports whether pd is still the pending dial and clears it.
// Callers hold the lifecycle lock.
func (s *Session) finishDial(pd *pendingDial) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dial != pd {
		return false
	}
	s.dial = nil
	return true
}

// cancelDial aborts the pending dial, if any. Callers hold the lifecycle lock.
func (s *Session) cancelDial() {
	s.mu.Lock()
	pd := s.dial
	s.dial = nil
	s.mu.Unlock()

	if pd != nil {
		pd.cancel()
	}
}

// Close closes the open connection, if any, and resets to the closed state.
// It is a no-op when nothing is open.
func (s *Session) Close() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.cancelDial()
	if s.detachAndClose(protocol.CloseNormalClosure, "") {
		s.logger.Info("connection closed", zap.String("url", s.url))
	}
}

// Shutdown closes the open connection and stops every reader.
// The session cannot be opened again afterwards.
func (s *Session) Shutdown() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	select {
	case <-s.quit:
		return
	default:
	}

	s.cancelDial()
	s.detachAndClose(protocol.CloseGoingAway, "")
	close(s.quit)
	s.wg.Wait()
}

// IsOpen reports whether a connection is open.
func (s *Session) IsOpen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur != nil
}

// State returns the lifecycle state.
func (s *Session) State() State {
	if s.IsOpen() {
		return StateOpen
	}
	return StateClosed
}

// Send writes text verbatim as one text frame.
func (s *Session) Send(ctx context.Context, text string) error {
	s.mu.RLock()
	l := s.cur
	s.mu.RUnlock()

	if l == nil {
		return ErrNotConnected
	}

	if err := l.conn.WriteText(ctx, text); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// Events returns the inbound event channel.
func (s *Session) Events() <-chan protocol.Event {
	return s.events
}

// detachAndClose resets the current link and tears it down.
// It reports whether there was one.
func (s *Session) detachAndClose(code int, reason string) bool {
	s.mu.Lock()
	l := s.cur
	s.cur = nil
	s.mu.Unlock()

	if l == nil {
		return false
	}

	close(l.stop)
	if err := l.conn.Close(code, reason); err != nil {
		s.logger.Debug("close failed", zap.Uint64("gen", l.gen), zap.Error(err))
	}
	<-l.done
	return true
}

// detach resets the current link if it is still l.
func (s *Session) detach(l *link) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cur != l {
		return false
	}
	s.cur = nil
	return true
}

func (s *Session) readLoop(l *link) {
	defer s.wg.Done()
	defer close(l.done)

	for {
		f, err := l.conn.Read(context.Background())
		at := s.now()

		if err != nil {
			// A local Close already detached the link; nothing to surface.
			if !s.detach(l) {
				return
			}

			info := transport.CloseInfoFromError(err)
			s.logger.Info("connection closed by peer",
				zap.Uint64("gen", l.gen),
				zap.Int("code", info.Code),
				zap.String("reason", info.Reason),
				zap.Bool("clean", info.Clean),
			)
			_ = l.conn.Close(protocol.CloseNormalClosure, "")

			select {
			case s.events <- protocol.ClosedEvent(l.gen, info, at):
			case <-s.quit:
			}
			return
		}

		select {
		case s.events <- protocol.FrameEvent(l.gen, f, at):
		case <-l.stop:
			return
		case <-s.quit:
			return
		}
	}
}
