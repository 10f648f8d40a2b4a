package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/omochice/toy-socket-relay/internal/display"
	"github.com/omochice/toy-socket-relay/pkg/protocol"
)

// Dispatcher is the single handler loop for inbound events.
//
// Text payloads are rendered as soon as they arrive. Binary payloads are
// rendered when their decode completes, so a text frame received after a
// binary frame can be rendered before it. Order within each kind is kept.
type Dispatcher struct {
	events  <-chan protocol.Event
	decoder *Decoder
	sink    display.Sink
	logger  *zap.Logger
}

// NewDispatcher creates a Dispatcher reading from events and rendering into sink.
func NewDispatcher(events <-chan protocol.Event, decoder *Decoder, sink display.Sink, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		events:  events,
		decoder: decoder,
		sink:    sink,
		logger:  logger,
	}
}

// Run handles events until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return d.decoder.Run(gctx)
	})
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case ev := <-d.events:
				d.handle(ev)
			case ev := <-d.decoder.Results():
				d.handle(ev)
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (d *Dispatcher) handle(ev protocol.Event) {
	switch ev.Type {
	case protocol.EventText:
		d.render(ev, display.KindText, "text: "+string(ev.Data))
	case protocol.EventBinary:
		d.decoder.Submit(ev)
	case protocol.EventDecoded:
		if ev.Err != nil {
			d.logger.Warn("dropping undecodable binary frame",
				zap.Uint64("gen", ev.Gen),
				zap.Int("bytes", len(ev.Data)),
				zap.Error(ev.Err),
			)
			d.render(ev, display.KindError, ev.Err.Error())
			return
		}
		d.render(ev, display.KindBinary, "binary: "+jsonString(ev.Text))
	case protocol.EventClosed:
		d.render(ev, display.KindClosed, "closed: "+ev.Close.String())
	default:
		d.logger.Debug("ignoring event", zap.Stringer("type", ev.Type))
	}
}

func (d *Dispatcher) render(ev protocol.Event, kind display.Kind, text string) {
	d.sink.Append(display.Entry{At: ev.ReceivedAt, Kind: kind, Text: text})
}

// jsonString quotes s the way a JSON serializer would, leaving HTML characters alone.
// U+2028 and U+2029 are still written as \u2028 and \u2029.
func jsonString(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return `""`
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
