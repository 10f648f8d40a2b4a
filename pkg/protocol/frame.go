// Package protocol defines the frames and events that flow through a relay connection.
// Payloads are opaque: there is no envelope, versioning or length prefix.
package protocol

import (
	"fmt"
	"time"
)

// FrameKind tells text frames from binary frames.
type FrameKind int

const (
	FrameText FrameKind = iota
	FrameBinary
)

// String returns the string representation of FrameKind
func (k FrameKind) String() string {
	switch k {
	case FrameText:
		return "text"
	case FrameBinary:
		return "binary"
	default:
		return "unknown"
	}
}

// Frame is one discrete message unit received or sent over a connection.
type Frame struct {
	Kind FrameKind
	Data []byte
}

// TextFrame returns a text frame carrying s verbatim.
func TextFrame(s string) Frame {
	return Frame{Kind: FrameText, Data: []byte(s)}
}

// BinaryFrame returns a binary frame carrying data.
func BinaryFrame(data []byte) Frame {
	return Frame{Kind: FrameBinary, Data: data}
}

// Close status codes used by the relay.
const (
	CloseNormalClosure    = 1000
	CloseGoingAway        = 1001
	CloseNoStatusReceived = 1005
	CloseAbnormalClosure  = 1006
)

// CloseInfo describes how a connection ended.
type CloseInfo struct {
	Code   int
	Reason string
	Clean  bool
}

// String renders the close information as key=value pairs.
func (c CloseInfo) String() string {
	return fmt.Sprintf("code=%d reason=%s clean=%t", c.Code, c.Reason, c.Clean)
}

// EventType is the tag of an Event.
type EventType int

const (
	EventText EventType = iota
	EventBinary
	EventClosed
	EventDecoded
)

// String returns the string representation of EventType
func (t EventType) String() string {
	switch t {
	case EventText:
		return "TEXT"
	case EventBinary:
		return "BINARY"
	case EventClosed:
		return "CLOSED"
	case EventDecoded:
		return "DECODED"
	default:
		return "UNKNOWN"
	}
}

// Event is a tagged inbound notification consumed by a single handler loop.
//
// Gen identifies the connection that produced the event. It is carried for
// logging only: frames already received from a replaced connection are still
// rendered.
type Event struct {
	Type       EventType
	Gen        uint64
	ReceivedAt time.Time

	// Data is the raw payload of EventText and EventBinary.
	Data []byte

	// Text and Err carry the outcome of an EventDecoded.
	Text string
	Err  error

	// Close is set on EventClosed.
	Close CloseInfo
}

// FrameEvent wraps a received frame into an Event.
func FrameEvent(gen uint64, f Frame, at time.Time) Event {
	t := EventText
	if f.Kind == FrameBinary {
		t = EventBinary
	}
	return Event{Type: t, Gen: gen, ReceivedAt: at, Data: f.Data}
}

// ClosedEvent returns the event emitted when the peer ends a connection.
func ClosedEvent(gen uint64, info CloseInfo, at time.Time) Event {
	return Event{Type: EventClosed, Gen: gen, ReceivedAt: at, Close: info}
}
