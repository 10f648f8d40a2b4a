package ui

import (
	"bufio"
	"context"
	"io"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/omochice/toy-socket-relay/internal/display"
	"github.com/omochice/toy-socket-relay/internal/relay"
)

// Plain-mode commands. Any other line is submitted as-is.
const (
	cmdOpen  = "/open"
	cmdClose = "/close"
	cmdQuit  = "/quit"
)

// RunPlain runs the page on line-oriented streams: entries are printed to
// out as they are appended and each line read from in is submitted.
// It returns when in is exhausted, /quit is read, or ctx is done.
func RunPlain(ctx context.Context, ctrl Controller, log *display.Log, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	updates := log.Subscribe()
	sink := display.NewWriterSink(out)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		printed := 0
		flush := func() {
			for _, e := range log.Since(printed) {
				sink.Append(e)
				printed++
			}
		}
		// entries appended before the subscription
		flush()
		for {
			select {
			case <-gctx.Done():
				flush()
				return nil
			case <-updates:
				flush()
			}
		}
	})

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-gctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	g.Go(func() error {
		defer cancel()

		if err := ctrl.Open(gctx); err != nil {
			log.Append(display.Entry{Kind: display.KindInfo, Text: "type " + cmdOpen + " to retry"})
		}

		for {
			select {
			case <-gctx.Done():
				return nil
			case line, ok := <-lines:
				if !ok {
					select {
					case err := <-readErr:
						return err
					default:
						return nil
					}
				}
				switch strings.TrimSpace(line) {
				case cmdQuit:
					return nil
				case cmdOpen:
					_ = ctrl.Open(gctx)
				case cmdClose:
					ctrl.Close()
				default:
					ctrl.Submit(gctx, relay.NewTextField(line))
				}
			}
		}
	})

	return g.Wait()
}
