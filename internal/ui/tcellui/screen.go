// Package tcellui is a full-screen terminal UI: a scrollback pane above a
// single input line.
package tcellui

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/mudcore/internal/logging"
	"github.com/dshills/mudcore/internal/ui"
)

// DefaultScrollback is the number of lines kept for scrolling.
const DefaultScrollback = 2000

var styles = map[ui.Kind]tcell.Style{
	ui.KindOutput:     tcell.StyleDefault,
	ui.KindMessage:    tcell.StyleDefault.Foreground(tcell.ColorTeal),
	ui.KindError:      tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true),
	ui.KindDiagnostic: tcell.StyleDefault.Foreground(tcell.ColorYellow),
}

type line struct {
	text  string
	style tcell.Style
}

// Screen implements ui.UI on a tcell.Screen.
type Screen struct {
	mu      sync.Mutex
	screen  tcell.Screen
	prompt  string
	logger  *logging.Logger
	closed  bool
	closeMu sync.Once

	lines      []line
	scrollback int
	scroll     int // rows scrolled up from the bottom

	input   []rune
	cursor  int
	history []string
	recall  int
}

// Option configures a Screen.
type Option func(*Screen)

// WithScreen uses s instead of the terminal. Tests pass a
// tcell.SimulationScreen.
func WithScreen(s tcell.Screen) Option {
	return func(sc *Screen) {
		sc.screen = s
	}
}

// WithPrompt sets the text shown before the input line.
func WithPrompt(p string) Option {
	return func(sc *Screen) {
		sc.prompt = p
	}
}

// WithScrollback sets how many lines are kept.
func WithScrollback(n int) Option {
	return func(sc *Screen) {
		if n > 0 {
			sc.scrollback = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(sc *Screen) {
		if l != nil {
			sc.logger = l
		}
	}
}

// New initializes the terminal and returns the UI.
func New(opts ...Option) (*Screen, error) {
	sc := &Screen{
		prompt:     "> ",
		scrollback: DefaultScrollback,
		logger:     logging.Nop(),
	}
	for _, opt := range opts {
		opt(sc)
	}

	if sc.screen == nil {
		s, err := tcell.NewScreen()
		if err != nil {
			return nil, err
		}
		sc.screen = s
	}
	if err := sc.screen.Init(); err != nil {
		return nil, err
	}
	sc.screen.EnablePaste()
	sc.screen.Clear()

	sc.mu.Lock()
	sc.drawLocked()
	sc.mu.Unlock()
	return sc, nil
}

// WriteOutput implements ui.Sink.
func (sc *Screen) WriteOutput(text string) {
	sc.append(text, styles[ui.KindOutput])
}

// WriteMessage implements ui.Sink.
func (sc *Screen) WriteMessage(text string) {
	sc.append(text, styles[ui.KindMessage])
}

// WriteError implements ui.Sink.
func (sc *Screen) WriteError(text string) {
	sc.append("error: "+text, styles[ui.KindError])
}

// WriteDiagnostic implements ui.Sink.
func (sc *Screen) WriteDiagnostic(text, context string) {
	sc.append("error: "+text, styles[ui.KindError])
	if context != "" {
		sc.append(context, styles[ui.KindDiagnostic])
	}
}

func (sc *Screen) append(text string, style tcell.Style) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.closed {
		return
	}

	text = strings.TrimRight(text, "\n")
	for _, l := range strings.Split(text, "\n") {
		sc.lines = append(sc.lines, line{text: strings.TrimRight(l, "\r"), style: style})
	}
	if over := len(sc.lines) - sc.scrollback; over > 0 {
		sc.lines = append(sc.lines[:0:0], sc.lines[over:]...)
	}
	sc.drawLocked()
}

// Lines returns the scrollback text, oldest first.
func (sc *Screen) Lines() []string {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	out := make([]string, len(sc.lines))
	for i, l := range sc.lines {
		out[i] = l.text
	}
	return out
}

// Run reads keys until ctx is done, the screen is closed, or the user
// presses Ctrl-D on an empty line, which returns io.EOF.
func (sc *Screen) Run(ctx context.Context, submit func(line string)) error {
	stop := context.AfterFunc(ctx, func() {
		_ = sc.screen.PostEvent(tcell.NewEventInterrupt(nil))
	})
	defer stop()

	for {
		ev := sc.screen.PollEvent()
		if ev == nil {
			return nil
		}

		switch ev := ev.(type) {
		case *tcell.EventInterrupt:
			if ctx.Err() != nil {
				return nil
			}
		case *tcell.EventResize:
			sc.screen.Sync()
			sc.redraw()
		case *tcell.EventKey:
			line, done, eof := sc.key(ev)
			if eof {
				return io.EOF
			}
			if done {
				submit(line)
			}
		}
	}
}

// key edits the input line. It returns the completed line when Enter is
// pressed.
func (sc *Screen) key(ev *tcell.EventKey) (line string, done, eof bool) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	switch ev.Key() {
	case tcell.KeyEnter:
		line = string(sc.input)
		if line != "" {
			sc.history = append(sc.history, line)
		}
		sc.recall = len(sc.history)
		sc.input = sc.input[:0]
		sc.cursor = 0
		sc.scroll = 0
		done = true
	case tcell.KeyCtrlD:
		if len(sc.input) == 0 {
			return "", false, true
		}
		sc.deleteAt(sc.cursor)
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		if sc.cursor > 0 {
			sc.cursor--
			sc.deleteAt(sc.cursor)
		}
	case tcell.KeyDelete:
		sc.deleteAt(sc.cursor)
	case tcell.KeyLeft:
		if sc.cursor > 0 {
			sc.cursor--
		}
	case tcell.KeyRight:
		if sc.cursor < len(sc.input) {
			sc.cursor++
		}
	case tcell.KeyHome, tcell.KeyCtrlA:
		sc.cursor = 0
	case tcell.KeyEnd, tcell.KeyCtrlE:
		sc.cursor = len(sc.input)
	case tcell.KeyCtrlU:
		sc.input = sc.input[:0]
		sc.cursor = 0
	case tcell.KeyUp:
		sc.recallLocked(-1)
	case tcell.KeyDown:
		sc.recallLocked(1)
	case tcell.KeyPgUp:
		limit := max(len(sc.lines)-sc.pageLocked(), 0)
		sc.scroll = min(sc.scroll+sc.pageLocked(), limit)
	case tcell.KeyPgDn:
		sc.scroll = max(sc.scroll-sc.pageLocked(), 0)
	case tcell.KeyRune:
		sc.input = append(sc.input, 0)
		copy(sc.input[sc.cursor+1:], sc.input[sc.cursor:])
		sc.input[sc.cursor] = ev.Rune()
		sc.cursor++
	default:
		return "", false, false
	}

	sc.drawLocked()
	return line, done, false
}

func (sc *Screen) deleteAt(i int) {
	if i < len(sc.input) {
		sc.input = append(sc.input[:i], sc.input[i+1:]...)
	}
}

func (sc *Screen) recallLocked(delta int) {
	n := sc.recall + delta
	if n < 0 || n > len(sc.history) {
		return
	}
	sc.recall = n
	if n == len(sc.history) {
		sc.input = sc.input[:0]
	} else {
		sc.input = []rune(sc.history[n])
	}
	sc.cursor = len(sc.input)
}

func (sc *Screen) pageLocked() int {
	_, h := sc.screen.Size()
	return max(h-2, 1)
}

func (sc *Screen) redraw() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.drawLocked()
}

// drawLocked paints the scrollback bottom-up above the input row.
func (sc *Screen) drawLocked() {
	if sc.closed {
		return
	}
	w, h := sc.screen.Size()
	if w <= 0 || h <= 0 {
		return
	}
	sc.screen.Clear()

	rows := wrap(sc.lines, w)
	end := max(len(rows)-sc.scroll, 0)
	start := max(end-(h-1), 0)
	for y, r := range rows[start:end] {
		sc.screen.PutStrStyled(0, y, r.text, r.style)
	}

	prompt := []rune(sc.prompt)
	in := append(prompt, sc.input...)
	off := 0
	if cur := len(prompt) + sc.cursor; cur >= w {
		off = cur - w + 1
	}
	sc.screen.PutStr(0, h-1, string(in[off:]))
	sc.screen.ShowCursor(len(prompt)+sc.cursor-off, h-1)
	sc.screen.Show()
}

// wrap splits lines into rows at most width runes wide.
func wrap(lines []line, width int) []line {
	var rows []line
	for _, l := range lines {
		r := []rune(l.text)
		if len(r) == 0 {
			rows = append(rows, l)
			continue
		}
		for len(r) > 0 {
			n := min(width, len(r))
			rows = append(rows, line{text: string(r[:n]), style: l.style})
			r = r[n:]
		}
	}
	return rows
}

// Close restores the terminal. It is safe to call more than once.
func (sc *Screen) Close() error {
	sc.closeMu.Do(func() {
		sc.mu.Lock()
		sc.closed = true
		sc.mu.Unlock()
		sc.screen.Fini()
		sc.logger.Debug("terminal restored")
	})
	return nil
}

var _ ui.UI = (*Screen)(nil)
