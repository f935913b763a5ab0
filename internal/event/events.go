package event

import (
	"fmt"

	"github.com/dshills/mudcore/internal/hook"
	"github.com/dshills/mudcore/internal/session"
	"github.com/dshills/mudcore/internal/ui"
)

// Event is a unit of work executed by the dispatcher.
type Event interface {
	// Execute performs the event's effect against env. Returning
	// ErrShutdown stops the dispatcher; any other error is reported and
	// the dispatcher continues.
	Execute(env Env) error

	fmt.Stringer
}

// Env is the part of the engine that events act on.
type Env interface {
	// Spam fans args out to the named hook.
	Spam(name string, args hook.Args) []hook.Result

	// SetEcho sets the process-wide echo state.
	SetEcho(on bool)

	// Sink returns the UI output sink.
	Sink() ui.Sink

	// Interpret submits text to command interpretation.
	Interpret(text string, internal bool, ses *session.Session) error

	// HandleData routes text received from a session.
	HandleData(ses *session.Session, data string) error

	// DefaultInput is what an empty line of user input is replaced with.
	DefaultInput() string
}

// Shutdown stops the dispatcher. Events queued behind it are not executed.
type Shutdown struct{}

func (Shutdown) Execute(Env) error { return ErrShutdown }

func (Shutdown) String() string { return "ShutdownEvent" }

// EchoToggle is raised when the remote side turns local echo on or off,
// usually around password prompts.
type EchoToggle struct {
	On bool
}

func (e EchoToggle) Execute(env Env) error {
	env.SetEcho(e.On)
	env.Spam(hook.MudEcho, hook.Args{"yesno": e.On})
	return nil
}

func (e EchoToggle) String() string {
	return fmt.Sprintf("EchoToggleEvent: %t", e.On)
}

// IncomingData carries text received from a session.
type IncomingData struct {
	Session *session.Session
	Data    string
}

func (e IncomingData) Execute(env Env) error {
	env.Spam(hook.FromMud, hook.Args{"session": e.Session, "data": e.Data})
	return env.HandleData(e.Session, e.Data)
}

func (e IncomingData) String() string {
	return fmt.Sprintf("IncomingDataEvent: %s: %q", sessionName(e.Session), e.Data)
}

// UserInput carries a line to be interpreted. Internal input is produced
// by the engine itself and is not echoed back to the user.
type UserInput struct {
	Text     string
	Internal bool
	Session  *session.Session
}

func (e UserInput) Execute(env Env) error {
	text := e.Text
	if text == "" {
		text = env.DefaultInput()
	}
	if !e.Internal {
		env.Sink().WriteOutput(text)
	}
	return env.Interpret(text, e.Internal, e.Session)
}

func (e UserInput) String() string {
	return fmt.Sprintf("UserInputEvent: %q (internal=%t)", e.Text, e.Internal)
}

// Output writes text to the UI. Routing output through the queue keeps it
// ordered relative to the events around it.
type Output struct {
	Text string
}

func (e Output) Execute(env Env) error {
	env.Sink().WriteOutput(e.Text)
	env.Spam(hook.ToUser, hook.Args{"text": e.Text})
	return nil
}

func (e Output) String() string {
	return fmt.Sprintf("OutputEvent: %q", e.Text)
}

// HookSpam defers a hook fan-out to the dispatcher.
type HookSpam struct {
	Hook string
	Args hook.Args
}

func (e HookSpam) Execute(env Env) error {
	env.Spam(e.Hook, e.Args)
	return nil
}

func (e HookSpam) String() string {
	return "HookSpamEvent: " + e.Hook
}

func sessionName(s *session.Session) string {
	if s == nil {
		return "-"
	}
	return s.Name()
}
