package devserver

import (
	"testing"

	"github.com/omochice/toy-socket-relay/pkg/protocol"
)

func newTestClient(id string, buffer int) *Client {
	return &Client{
		ID:       id,
		Outgoing: make(chan protocol.Frame, buffer),
	}
}

func TestHub_Register(t *testing.T) {
	hub := NewHub(nil)
	hub.Register(newTestClient("a", 1))

	if got := hub.ClientCount(); got != 1 {
		t.Errorf("ClientCount() = %d, want 1", got)
	}
}

func TestHub_Unregister(t *testing.T) {
	hub := NewHub(nil)
	client := newTestClient("a", 1)
	hub.Register(client)

	hub.Unregister(client)
	hub.Unregister(client)

	if got := hub.ClientCount(); got != 0 {
		t.Errorf("ClientCount() = %d, want 0", got)
	}
	if _, ok := <-client.Outgoing; ok {
		t.Error("Outgoing should be closed after Unregister")
	}
}

func TestHub_Broadcast(t *testing.T) {
	hub := NewHub(nil)
	clients := []*Client{newTestClient("a", 1), newTestClient("b", 1), newTestClient("c", 1)}
	for _, c := range clients {
		hub.Register(c)
	}

	hub.Broadcast(protocol.TextFrame("hi"))

	for _, c := range clients {
		select {
		case f := <-c.Outgoing:
			if string(f.Data) != "hi" || f.Kind != protocol.FrameText {
				t.Errorf("client %s got %+v", c.ID, f)
			}
		default:
			t.Errorf("client %s did not receive the frame", c.ID)
		}
	}
}

func TestHub_Broadcast_SkipsFullClient(t *testing.T) {
	hub := NewHub(nil)
	full := newTestClient("full", 1)
	hub.Register(full)

	hub.Broadcast(protocol.TextFrame("first"))
	hub.Broadcast(protocol.TextFrame("second"))

	f := <-full.Outgoing
	if string(f.Data) != "first" {
		t.Errorf("got %q, want %q", f.Data, "first")
	}
	select {
	case f := <-full.Outgoing:
		t.Errorf("unexpected frame %q", f.Data)
	default:
	}
}
