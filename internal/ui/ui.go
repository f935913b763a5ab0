// Package ui defines the output sink the engine writes to and provides the
// line-oriented text console. The full-screen terminal UI lives in
// ui/tcellui.
package ui

import "context"

// Sink receives everything the engine shows to the user.
// Implementations must be safe for concurrent use: the dispatcher writes
// from its own goroutine while producers may report connection problems
// from theirs.
type Sink interface {
	// WriteOutput displays session or echoed user text unchanged.
	WriteOutput(text string)

	// WriteMessage displays an informational engine message.
	WriteMessage(text string)

	// WriteError displays an error report.
	WriteError(text string)

	// WriteDiagnostic displays an error report together with detailed
	// context such as a stack trace or script traceback.
	WriteDiagnostic(text, context string)
}

// UI is a Sink that also owns an input loop. Run blocks reading user input
// and passes each completed line to submit until ctx is done or input ends.
type UI interface {
	Sink
	Run(ctx context.Context, submit func(line string)) error
	Close() error
}

// Kind classifies a line written to a Sink.
type Kind int

const (
	KindOutput Kind = iota
	KindMessage
	KindError
	KindDiagnostic
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindOutput:
		return "output"
	case KindMessage:
		return "message"
	case KindError:
		return "error"
	case KindDiagnostic:
		return "diagnostic"
	default:
		return "unknown"
	}
}

// Discard is a Sink that drops everything.
var Discard Sink = discard{}

type discard struct{}

func (discard) WriteOutput(string)             {}
func (discard) WriteMessage(string)            {}
func (discard) WriteError(string)              {}
func (discard) WriteDiagnostic(string, string) {}
