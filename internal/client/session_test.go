package client_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"nhooyr.io/websocket"

	"github.com/omochice/toy-socket-relay/internal/client"
	"github.com/omochice/toy-socket-relay/internal/transport"
	"github.com/omochice/toy-socket-relay/internal/transport/gorilla"
	"github.com/omochice/toy-socket-relay/internal/transport/transporttest"
	"github.com/omochice/toy-socket-relay/pkg/protocol"
)

const testURL = "ws://relay.test/ws"

func nextEvent(t *testing.T, s *client.Session) protocol.Event {
	t.Helper()
	select {
	case ev := <-s.Events():
		return ev
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
		return protocol.Event{}
	}
}

func TestSession_InitialState(t *testing.T) {
	s := client.New(transporttest.NewDialer(), testURL, nil)
	defer s.Shutdown()

	assert.False(t, s.IsOpen())
	assert.Equal(t, client.StateClosed, s.State())
	assert.Equal(t, testURL, s.URL())
}

func TestSession_OpenAndClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	dialer := transporttest.NewDialer()
	s := client.New(dialer, testURL, nil)
	defer s.Shutdown()

	require.NoError(t, s.Open(context.Background()))
	assert.True(t, s.IsOpen())
	assert.Equal(t, client.StateOpen, s.State())
	assert.Equal(t, []string{testURL}, dialer.URLs())

	s.Close()
	assert.False(t, s.IsOpen())
	assert.True(t, dialer.Last().IsClosed())
	assert.Equal(t, protocol.CloseNormalClosure, dialer.Last().CloseCode())
}

func TestSession_Close_NotOpen(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := client.New(transporttest.NewDialer(), testURL, nil)
	defer s.Shutdown()

	assert.NotPanics(t, func() {
		s.Close()
		s.Close()
	})
	assert.False(t, s.IsOpen())
}

func TestSession_DoubleOpenReplacesConnection(t *testing.T) {
	defer goleak.VerifyNone(t)

	dialer := transporttest.NewDialer()
	s := client.New(dialer, testURL, nil)
	defer s.Shutdown()

	require.NoError(t, s.Open(context.Background()))
	require.NoError(t, s.Open(context.Background()))

	conns := dialer.Conns()
	require.Len(t, conns, 2)
	assert.True(t, conns[0].IsClosed(), "first connection must be closed")
	assert.False(t, conns[1].IsClosed())
	assert.True(t, s.IsOpen())

	require.NoError(t, s.Send(context.Background(), "x"))
	assert.Empty(t, conns[0].Written())
	assert.Equal(t, []string{"x"}, conns[1].Written())
}

func TestSession_OpenFailure(t *testing.T) {
	dialer := transporttest.NewDialer()
	dialer.FailWith(errors.New("refused"))
	s := client.New(dialer, testURL, nil)
	defer s.Shutdown()

	err := s.Open(context.Background())
	assert.EqualError(t, err, "refused")
	assert.False(t, s.IsOpen())
}

// blockingDialer blocks every dial until its context is canceled or release
// is closed, then returns conn.
type blockingDialer struct {
	started chan struct{}
	release chan struct{}
	conn    *transporttest.Conn
}

func newBlockingDialer() *blockingDialer {
	return &blockingDialer{
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
		conn:    transporttest.NewConn(),
	}
}

func (d *blockingDialer) honoringContext() transport.DialerFunc {
	return func(ctx context.Context, _ string) (transport.Conn, error) {
		d.started <- struct{}{}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-d.release:
			return d.conn, nil
		}
	}
}

func (d *blockingDialer) ignoringContext() transport.DialerFunc {
	return func(context.Context, string) (transport.Conn, error) {
		d.started <- struct{}{}
		<-d.release
		return d.conn, nil
	}
}

func startOpen(t *testing.T, s *client.Session, d *blockingDialer) <-chan error {
	t.Helper()

	result := make(chan error, 1)
	go func() { result <- s.Open(context.Background()) }()

	select {
	case <-d.started:
	case <-time.After(time.Second):
		t.Fatal("dial did not start")
	}
	return result
}

func returnsWithin(fn func(), d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		fn()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(d):
		return false
	}
}

func TestSession_CloseDuringDial(t *testing.T) {
	defer goleak.VerifyNone(t)

	d := newBlockingDialer()
	s := client.New(d.honoringContext(), testURL, nil)
	defer s.Shutdown()

	result := startOpen(t, s, d)

	require.True(t, returnsWithin(s.Close, 500*time.Millisecond), "Close blocked on a pending dial")
	assert.ErrorIs(t, <-result, client.ErrOpenCanceled)
	assert.False(t, s.IsOpen())
}

func TestSession_CloseDuringDial_LateConnection(t *testing.T) {
	defer goleak.VerifyNone(t)

	d := newBlockingDialer()
	s := client.New(d.ignoringContext(), testURL, nil)
	defer s.Shutdown()

	result := startOpen(t, s, d)

	require.True(t, returnsWithin(s.Close, 500*time.Millisecond), "Close blocked on a pending dial")
	close(d.release)

	assert.ErrorIs(t, <-result, client.ErrOpenCanceled)
	assert.False(t, s.IsOpen())
	assert.True(t, d.conn.IsClosed(), "connection dialed after Close must be closed")
}

func TestSession_ShutdownDuringDial(t *testing.T) {
	defer goleak.VerifyNone(t)

	d := newBlockingDialer()
	s := client.New(d.honoringContext(), testURL, nil)

	result := startOpen(t, s, d)

	require.True(t, returnsWithin(s.Shutdown, 500*time.Millisecond), "Shutdown blocked on a pending dial")
	assert.ErrorIs(t, <-result, client.ErrOpenCanceled)
	assert.False(t, s.IsOpen())
}

func TestSession_OpenCancelsPendingDial(t *testing.T) {
	defer goleak.VerifyNone(t)

	d := newBlockingDialer()
	dials := 0
	dialer := transport.DialerFunc(func(ctx context.Context, url string) (transport.Conn, error) {
		dials++
		if dials == 1 {
			return d.honoringContext()(ctx, url)
		}
		return transporttest.NewConn(), nil
	})
	s := client.New(dialer, testURL, nil)
	defer s.Shutdown()

	first := startOpen(t, s, d)

	require.NoError(t, s.Open(context.Background()))
	assert.ErrorIs(t, <-first, client.ErrOpenCanceled)
	assert.True(t, s.IsOpen())
}

func TestSession_Send_NotConnected(t *testing.T) {
	s := client.New(transporttest.NewDialer(), testURL, nil)
	defer s.Shutdown()

	err := s.Send(context.Background(), "hello")
	assert.ErrorIs(t, err, client.ErrNotConnected)
}

func TestSession_Send_WriteFailure(t *testing.T) {
	dialer := transporttest.NewDialer()
	s := client.New(dialer, testURL, nil)
	defer s.Shutdown()

	require.NoError(t, s.Open(context.Background()))
	dialer.Last().FailWrites(errors.New("broken pipe"))

	err := s.Send(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to send message")
}

func TestSession_ReceiveFrames(t *testing.T) {
	defer goleak.VerifyNone(t)

	at := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	dialer := transporttest.NewDialer()
	s := client.New(dialer, testURL, nil, client.WithClock(func() time.Time { return at }))
	defer s.Shutdown()

	require.NoError(t, s.Open(context.Background()))
	conn := dialer.Last()
	conn.Push(protocol.TextFrame("ping"))
	conn.Push(protocol.BinaryFrame([]byte("abc")))

	ev := nextEvent(t, s)
	assert.Equal(t, protocol.EventText, ev.Type)
	assert.Equal(t, "ping", string(ev.Data))
	assert.Equal(t, at, ev.ReceivedAt)
	assert.Equal(t, uint64(1), ev.Gen)

	ev = nextEvent(t, s)
	assert.Equal(t, protocol.EventBinary, ev.Type)
	assert.Equal(t, "abc", string(ev.Data))
}

func TestSession_PeerClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	dialer := transporttest.NewDialer()
	s := client.New(dialer, testURL, nil)
	defer s.Shutdown()

	require.NoError(t, s.Open(context.Background()))
	dialer.Last().PeerClose(1000, "bye")

	ev := nextEvent(t, s)
	assert.Equal(t, protocol.EventClosed, ev.Type)
	assert.Equal(t, protocol.CloseInfo{Code: 1000, Reason: "bye", Clean: true}, ev.Close)
	assert.False(t, s.IsOpen())
	assert.True(t, dialer.Last().IsClosed())

	// Nothing left to close.
	s.Close()
	assert.ErrorIs(t, s.Send(context.Background(), "x"), client.ErrNotConnected)
}

func TestSession_AbnormalClose(t *testing.T) {
	dialer := transporttest.NewDialer()
	s := client.New(dialer, testURL, nil)
	defer s.Shutdown()

	require.NoError(t, s.Open(context.Background()))
	dialer.Last().Drop()

	ev := nextEvent(t, s)
	assert.Equal(t, protocol.EventClosed, ev.Type)
	assert.Equal(t, protocol.CloseAbnormalClosure, ev.Close.Code)
	assert.False(t, ev.Close.Clean)
	assert.False(t, s.IsOpen())
}

func TestSession_LocalCloseEmitsNothing(t *testing.T) {
	dialer := transporttest.NewDialer()
	s := client.New(dialer, testURL, nil)
	defer s.Shutdown()

	require.NoError(t, s.Open(context.Background()))
	s.Close()

	select {
	case ev := <-s.Events():
		t.Fatalf("unexpected event after local close: %v", ev.Type)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSession_CloseWithUnreadEvents(t *testing.T) {
	defer goleak.VerifyNone(t)

	dialer := transporttest.NewDialer()
	s := client.New(dialer, testURL, nil, client.WithEventBuffer(0))
	defer s.Shutdown()

	require.NoError(t, s.Open(context.Background()))
	dialer.Last().Push(protocol.TextFrame("never read"))
	time.Sleep(20 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		s.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close blocked on an undelivered event")
	}
}

func TestSession_OpenAfterShutdown(t *testing.T) {
	s := client.New(transporttest.NewDialer(), testURL, nil)
	s.Shutdown()
	s.Shutdown()

	assert.ErrorIs(t, s.Open(context.Background()), client.ErrShutdown)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", client.StateClosed.String())
	assert.Equal(t, "open", client.StateOpen.String())
	assert.Equal(t, "unknown", client.State(9).String())
}

func TestSession_WithWebSocketServer(t *testing.T) {
	received := make(chan string, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("failed to accept: %v", err)
			return
		}
		defer c.CloseNow()

		ctx := context.Background()
		_, data, err := c.Read(ctx)
		if err != nil {
			return
		}
		received <- string(data)

		_ = c.Write(ctx, websocket.MessageText, []byte("welcome"))
		c.Close(websocket.StatusNormalClosure, "bye")
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	s := client.New(gorilla.NewDialer(), wsURL, nil)
	defer s.Shutdown()

	require.NoError(t, s.Open(context.Background()))
	require.NoError(t, s.Send(context.Background(), "hello"))

	select {
	case got := <-received:
		assert.Equal(t, "hello", got)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}

	ev := nextEvent(t, s)
	assert.Equal(t, protocol.EventText, ev.Type)
	assert.Equal(t, "welcome", string(ev.Data))

	ev = nextEvent(t, s)
	assert.Equal(t, protocol.EventClosed, ev.Type)
	assert.Equal(t, 1000, ev.Close.Code)
	assert.Equal(t, "bye", ev.Close.Reason)
	assert.True(t, ev.Close.Clean)
	assert.False(t, s.IsOpen())
}
