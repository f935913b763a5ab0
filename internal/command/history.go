package command

import "sync"

// History is a bounded list of input lines, oldest first.
type History struct {
	mu    sync.Mutex
	lines []string
	size  int
}

// NewHistory creates a history holding at most size lines. A size of zero
// or less disables recording.
func NewHistory(size int) *History {
	return &History{size: size}
}

// Add records line, dropping the oldest entry when full.
func (h *History) Add(line string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.size <= 0 {
		return
	}
	if len(h.lines) == h.size {
		copy(h.lines, h.lines[1:])
		h.lines = h.lines[:h.size-1]
	}
	h.lines = append(h.lines, line)
}

// Last returns the most recent line.
func (h *History) Last() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.lines) == 0 {
		return "", false
	}
	return h.lines[len(h.lines)-1], true
}

// Lines returns a copy of the recorded lines, oldest first.
func (h *History) Lines() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]string, len(h.lines))
	copy(out, h.lines)
	return out
}

// Len returns the number of recorded lines.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.lines)
}
