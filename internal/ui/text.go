package ui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// Text is a plain line-oriented console. Engine messages and errors are
// prefixed so they stand apart from session output.
type Text struct {
	mu     sync.Mutex
	out    io.Writer
	in     io.Reader
	prefix string
}

// TextOption configures a Text console.
type TextOption func(*Text)

// WithOutput sets the writer the console renders to.
func WithOutput(w io.Writer) TextOption {
	return func(t *Text) {
		t.out = w
	}
}

// WithInput sets the reader user lines are read from.
func WithInput(r io.Reader) TextOption {
	return func(t *Text) {
		t.in = r
	}
}

// WithMessagePrefix sets the marker printed before engine messages.
func WithMessagePrefix(p string) TextOption {
	return func(t *Text) {
		t.prefix = p
	}
}

// NewText creates a console reading stdin and writing stdout.
func NewText(opts ...TextOption) *Text {
	t := &Text{
		out:    os.Stdout,
		in:     os.Stdin,
		prefix: "mudcore: ",
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// WriteOutput implements Sink.
func (t *Text) WriteOutput(text string) {
	t.write(text)
}

// WriteMessage implements Sink.
func (t *Text) WriteMessage(text string) {
	t.write(t.prefix + text)
}

// WriteError implements Sink.
func (t *Text) WriteError(text string) {
	t.write(t.prefix + "error: " + text)
}

// WriteDiagnostic implements Sink.
func (t *Text) WriteDiagnostic(text, context string) {
	t.write(t.prefix + "error: " + text)
	if context != "" {
		t.write(strings.TrimRight(context, "\n"))
	}
}

func (t *Text) write(s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	_, _ = io.WriteString(t.out, s)
}

// Run reads lines until EOF or ctx is done. Trailing CR/LF are stripped
// before submit is called; an empty line is submitted as "".
func (t *Text) Run(ctx context.Context, submit func(line string)) error {
	lines := make(chan string)
	errc := make(chan error, 1)

	go func() {
		scanner := bufio.NewScanner(t.in)
		for scanner.Scan() {
			select {
			case lines <- Chomp(scanner.Text()):
			case <-ctx.Done():
				return
			}
		}
		errc <- scanner.Err()
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				if err := <-errc; err != nil {
					return fmt.Errorf("reading input: %w", err)
				}
				return io.EOF
			}
			submit(line)
		}
	}
}

// Close implements UI. The text console holds no resources.
func (t *Text) Close() error {
	return nil
}

// Chomp strips trailing carriage returns and newlines.
func Chomp(s string) string {
	return strings.TrimRight(s, "\r\n")
}
