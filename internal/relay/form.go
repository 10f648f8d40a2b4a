package relay

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/omochice/toy-socket-relay/internal/client"
)

// Field is the text input of the submission form.
type Field interface {
	Value() string
	Reset()
}

// Sender delivers one text frame.
type Sender interface {
	Send(ctx context.Context, text string) error
}

// Form forwards submitted text to the open connection.
type Form struct {
	sender Sender
	logger *zap.Logger
}

// NewForm creates a Form sending through sender.
func NewForm(sender Sender, logger *zap.Logger) *Form {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Form{sender: sender, logger: logger}
}

// Submit sends the field content verbatim and clears the field.
// With no open connection it does nothing and the field is left as is.
// It reports whether a frame was sent.
func (f *Form) Submit(ctx context.Context, field Field) bool {
	if err := f.sender.Send(ctx, field.Value()); err != nil {
		if !errors.Is(err, client.ErrNotConnected) {
			f.logger.Warn("send failed", zap.Error(err))
		}
		return false
	}

	field.Reset()
	return true
}

// TextField is a plain in-memory Field.
type TextField struct {
	value string
}

// NewTextField returns a field holding value.
func NewTextField(value string) *TextField {
	return &TextField{value: value}
}

// Set replaces the field content.
func (t *TextField) Set(value string) {
	t.value = value
}

// Value implements Field.
func (t *TextField) Value() string {
	return t.value
}

// Reset implements Field.
func (t *TextField) Reset() {
	t.value = ""
}
