// Package display holds the append-only log the relay renders into.
package display

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind classifies a log entry.
type Kind string

const (
	KindText   Kind = "text"
	KindBinary Kind = "binary"
	KindClosed Kind = "closed"
	KindError  Kind = "error"
	KindInfo   Kind = "info"
)

// Entry is one rendered line of the log.
type Entry struct {
	ID   string
	At   time.Time
	Kind Kind
	Text string
}

// Format renders e as "HH:MM:SS.mmm text".
func Format(e Entry) string {
	return e.At.Format("15:04:05.000") + " " + e.Text
}

// Sink receives rendered entries.
type Sink interface {
	Append(e Entry)
}

// Log is an unbounded, append-only, in-memory Sink.
// Subscribers are signalled after every append.
type Log struct {
	mu      sync.RWMutex
	entries []Entry
	subs    []chan struct{}
	now     func() time.Time
}

// NewLog creates an empty Log.
func NewLog() *Log {
	return &Log{now: time.Now}
}

// Append adds e to the end of the log. A missing ID or timestamp is filled in.
func (l *Log) Append(e Entry) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	l.mu.Lock()
	if e.At.IsZero() {
		e.At = l.now()
	}
	l.entries = append(l.entries, e)
	subs := l.subs
	l.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- struct{}{}:
		default:
			// a signal is already pending
		}
	}
}

// Subscribe returns a channel signalled after appends. Signals coalesce.
func (l *Log) Subscribe() <-chan struct{} {
	ch := make(chan struct{}, 1)

	l.mu.Lock()
	l.subs = append(l.subs, ch)
	l.mu.Unlock()

	return ch
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Entries returns a copy of every entry in append order.
func (l *Log) Entries() []Entry {
	return l.Since(0)
}

// Since returns a copy of the entries from index n onward.
func (l *Log) Since(n int) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n < 0 {
		n = 0
	}
	if n >= len(l.entries) {
		return nil
	}
	out := make([]Entry, len(l.entries)-n)
	copy(out, l.entries[n:])
	return out
}

// Render returns every entry formatted, one per line.
func (l *Log) Render() string {
	entries := l.Entries()

	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = Format(e)
	}
	return strings.Join(lines, "\n")
}

// WriterSink prints each entry as a line on an io.Writer.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterSink returns a Sink writing to w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// Append implements Sink.
func (s *WriterSink) Append(e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.w, Format(e))
}

var (
	_ Sink = (*Log)(nil)
	_ Sink = (*WriterSink)(nil)
)
