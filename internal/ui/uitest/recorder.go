// Package uitest provides a recording ui.Sink for tests.
package uitest

import (
	"strings"
	"sync"

	"github.com/dshills/mudcore/internal/ui"
)

// Entry is one recorded write.
type Entry struct {
	Kind    ui.Kind
	Text    string
	Context string
}

// Recorder records every write in order.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

// New creates an empty Recorder.
func New() *Recorder {
	return &Recorder{}
}

func (r *Recorder) add(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

// WriteOutput implements ui.Sink.
func (r *Recorder) WriteOutput(text string) {
	r.add(Entry{Kind: ui.KindOutput, Text: text})
}

// WriteMessage implements ui.Sink.
func (r *Recorder) WriteMessage(text string) {
	r.add(Entry{Kind: ui.KindMessage, Text: text})
}

// WriteError implements ui.Sink.
func (r *Recorder) WriteError(text string) {
	r.add(Entry{Kind: ui.KindError, Text: text})
}

// WriteDiagnostic implements ui.Sink.
func (r *Recorder) WriteDiagnostic(text, context string) {
	r.add(Entry{Kind: ui.KindDiagnostic, Text: text, Context: context})
}

// Entries returns a copy of everything recorded so far.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}

// Texts returns the text of every entry of the given kind.
func (r *Recorder) Texts(kind ui.Kind) []string {
	var out []string
	for _, e := range r.Entries() {
		if e.Kind == kind {
			out = append(out, e.Text)
		}
	}
	return out
}

// Contains reports whether any entry of the given kind contains substr.
func (r *Recorder) Contains(kind ui.Kind, substr string) bool {
	for _, text := range r.Texts(kind) {
		if strings.Contains(text, substr) {
			return true
		}
	}
	return false
}

// Failures returns the error and diagnostic entries.
func (r *Recorder) Failures() []Entry {
	var out []Entry
	for _, e := range r.Entries() {
		if e.Kind == ui.KindError || e.Kind == ui.KindDiagnostic {
			out = append(out, e)
		}
	}
	return out
}

// Reset clears the recording.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = nil
}
