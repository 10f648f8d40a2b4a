package relay

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/omochice/toy-socket-relay/internal/client"
	"github.com/omochice/toy-socket-relay/internal/display"
)

// Options configures a Controller.
type Options struct {
	// StrictUTF8 renders an error entry for binary payloads that are not
	// valid UTF-8 instead of substituting U+FFFD.
	StrictUTF8 bool
}

// Controller owns one connection manager and everything rendering it.
type Controller struct {
	manager    client.Manager
	sink       display.Sink
	dispatcher *Dispatcher
	form       *Form
	logger     *zap.Logger
}

// NewController wires manager, sink and a decoder together.
func NewController(manager client.Manager, sink display.Sink, opts Options, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}

	decode := DecodeLenient
	if opts.StrictUTF8 {
		decode = DecodeStrict
	}

	return &Controller{
		manager:    manager,
		sink:       sink,
		dispatcher: NewDispatcher(manager.Events(), NewDecoder(decode), sink, logger.Named("dispatcher")),
		form:       NewForm(manager, logger.Named("form")),
		logger:     logger,
	}
}

// Run dispatches inbound events until ctx is done.
func (c *Controller) Run(ctx context.Context) error {
	return c.dispatcher.Run(ctx)
}

// Open opens the connection. A failure is also rendered as an error entry;
// an open canceled by Close is not.
func (c *Controller) Open(ctx context.Context) error {
	err := c.manager.Open(ctx)
	if errors.Is(err, client.ErrOpenCanceled) {
		return err
	}
	if err != nil {
		c.logger.Warn("open failed", zap.Error(err))
		c.sink.Append(display.Entry{Kind: display.KindError, Text: "open failed: " + err.Error()})
		return err
	}
	return nil
}

// Close closes the connection if one is open.
func (c *Controller) Close() {
	c.manager.Close()
}

// Submit forwards the field content when a connection is open.
func (c *Controller) Submit(ctx context.Context, field Field) bool {
	return c.form.Submit(ctx, field)
}

// State returns the connection state.
func (c *Controller) State() client.State {
	return c.manager.State()
}
