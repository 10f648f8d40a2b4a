// Package relay wires the connection manager to the display log and the input form.
package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/omochice/toy-socket-relay/pkg/protocol"
)

// ErrDecode wraps every binary decoding failure.
var ErrDecode = errors.New("binary decode failed")

// DecodeFunc converts a binary payload to text.
type DecodeFunc func(data []byte) (string, error)

// DecodeLenient decodes UTF-8, dropping a leading byte order mark and
// replacing invalid sequences with U+FFFD. It never fails.
func DecodeLenient(data []byte) (string, error) {
	out, err := unicode.UTF8BOM.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return string(out), nil
}

// DecodeStrict decodes UTF-8 and fails on the first invalid sequence.
func DecodeStrict(data []byte) (string, error) {
	out, _, err := transform.Bytes(encoding.UTF8Validator, data)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return string(out), nil
}

// Decoder turns binary events into decoded events on a single worker,
// one payload at a time, in submission order.
type Decoder struct {
	decode  DecodeFunc
	results chan protocol.Event

	mu      sync.Mutex
	queue   []protocol.Event
	pending chan struct{}
}

// NewDecoder creates a Decoder using fn. A nil fn means DecodeLenient.
func NewDecoder(fn DecodeFunc) *Decoder {
	if fn == nil {
		fn = DecodeLenient
	}
	return &Decoder{
		decode:  fn,
		results: make(chan protocol.Event),
		pending: make(chan struct{}, 1),
	}
}

// Submit queues a binary event. It never blocks.
func (d *Decoder) Submit(ev protocol.Event) {
	d.mu.Lock()
	d.queue = append(d.queue, ev)
	d.mu.Unlock()

	select {
	case d.pending <- struct{}{}:
	default:
	}
}

// Results delivers EventDecoded events in submission order.
func (d *Decoder) Results() <-chan protocol.Event {
	return d.results
}

// Run decodes queued payloads until ctx is done.
func (d *Decoder) Run(ctx context.Context) error {
	for {
		ev, ok := d.next()
		if !ok {
			select {
			case <-d.pending:
				continue
			case <-ctx.Done():
				return nil
			}
		}

		text, err := d.decode(ev.Data)
		ev.Type = protocol.EventDecoded
		ev.Text = text
		ev.Err = err

		select {
		case d.results <- ev:
		case <-ctx.Done():
			return nil
		}
	}
}

func (d *Decoder) next() (protocol.Event, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.queue) == 0 {
		return protocol.Event{}, false
	}
	ev := d.queue[0]
	d.queue[0] = protocol.Event{}
	d.queue = d.queue[1:]
	return ev, true
}
