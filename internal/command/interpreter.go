package command

import (
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"unicode"

	"github.com/dshills/mudcore/internal/hook"
	"github.com/dshills/mudcore/internal/logging"
	"github.com/dshills/mudcore/internal/session"
)

// DefaultCommandChar marks a line of input as a command.
const DefaultCommandChar = "#"

// Spammer fans arguments out to a hook.
type Spammer interface {
	Spam(name string, args hook.Args) []hook.Result
}

// Sender delivers non-command input to a session.
type Sender func(ses *session.Session, text string) error

// Interpreter turns lines of input into command calls or session sends.
// It runs on the dispatcher goroutine.
type Interpreter struct {
	registry    *Registry
	commandChar string
	history     *History
	hooks       Spammer
	send        Sender
	logger      *logging.Logger
}

// InterpreterOption configures an Interpreter.
type InterpreterOption func(*Interpreter)

// WithCommandChar sets the command prefix.
func WithCommandChar(c string) InterpreterOption {
	return func(i *Interpreter) {
		if c != "" {
			i.commandChar = c
		}
	}
}

// WithHistorySize sets how many input lines are remembered.
func WithHistorySize(n int) InterpreterOption {
	return func(i *Interpreter) {
		i.history = NewHistory(n)
	}
}

// WithSpammer sets where user_input_hook is spammed.
func WithSpammer(s Spammer) InterpreterOption {
	return func(i *Interpreter) {
		i.hooks = s
	}
}

// WithSender sets how non-command input reaches a session.
func WithSender(s Sender) InterpreterOption {
	return func(i *Interpreter) {
		i.send = s
	}
}

// WithInterpreterLogger sets the logger.
func WithInterpreterLogger(l *logging.Logger) InterpreterOption {
	return func(i *Interpreter) {
		if l != nil {
			i.logger = l
		}
	}
}

// NewInterpreter creates an interpreter over registry.
func NewInterpreter(registry *Registry, opts ...InterpreterOption) *Interpreter {
	i := &Interpreter{
		registry:    registry,
		commandChar: DefaultCommandChar,
		history:     NewHistory(100),
		logger:      logging.Nop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// CommandChar returns the command prefix.
func (i *Interpreter) CommandChar() string {
	return i.commandChar
}

// History returns the input history.
func (i *Interpreter) History() *History {
	return i.history
}

// Interpret handles one line of input. Lines starting with the command
// char run a command; anything else is sent to ses. Only non-internal
// input is recorded in history.
func (i *Interpreter) Interpret(text string, internal bool, ses *session.Session) error {
	if !internal {
		i.history.Add(text)
	}
	if i.hooks != nil {
		i.hooks.Spam(hook.UserInput, hook.Args{"text": text, "internal": internal, "session": ses})
	}

	if line, ok := strings.CutPrefix(text, i.commandChar); ok {
		return i.execute(line, internal, ses)
	}
	if i.send == nil {
		return fmt.Errorf("%w: %s", session.ErrNotConnected, sessionLabel(ses))
	}
	return i.send(ses, text)
}

func (i *Interpreter) execute(line string, internal bool, ses *session.Session) error {
	line = strings.TrimLeftFunc(line, unicode.IsSpace)
	name, raw := line, ""
	if idx := strings.IndexFunc(line, unicode.IsSpace); idx >= 0 {
		name, raw = line[:idx], strings.TrimLeftFunc(line[idx:], unicode.IsSpace)
	}
	if name == "" {
		return &UnknownCommandError{Name: name}
	}

	cmd, err := i.registry.Resolve(name)
	if err != nil {
		return err
	}

	inv := &Invocation{
		Name:     cmd.Name,
		Raw:      raw,
		Internal: internal,
		Session:  ses,
		Args:     Args{},
	}
	if cmd.Spec != nil {
		args, err := cmd.Spec.Parse(raw)
		if err != nil {
			var perr *ArgumentParseError
			if errors.As(err, &perr) {
				perr.Usage = i.commandChar + cmd.Usage()
			}
			return err
		}
		inv.Args = args
	}

	i.logger.Debug("command %s %q", cmd.Name, raw)
	return call(cmd, inv)
}

// call runs the handler with panic recovery.
func call(cmd *Command, inv *Invocation) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &HandlerError{
				Command:  cmd.Name,
				Err:      fmt.Errorf("%v", r),
				Panicked: true,
				Stack:    debug.Stack(),
			}
		}
	}()

	if herr := cmd.Handler(inv); herr != nil {
		return &HandlerError{Command: cmd.Name, Err: herr}
	}
	return nil
}

func sessionLabel(ses *session.Session) string {
	if ses == nil {
		return "no session"
	}
	return ses.Name()
}
