package command

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the command package. The typed errors below match
// them via errors.Is.
var (
	ErrDuplicateCommand = errors.New("command already exists")
	ErrUnknownCommand   = errors.New("unknown command")
	ErrAmbiguousCommand = errors.New("ambiguous command")
	ErrArgumentParse    = errors.New("argument parse error")
	ErrInvalidSpec      = errors.New("invalid argument spec")
	ErrInvalidName      = errors.New("invalid command name")
	ErrNilHandler       = errors.New("command handler cannot be nil")
	ErrHandler          = errors.New("command failed")
)

// DuplicateCommandError is returned when adding a name that is already
// bound.
type DuplicateCommandError struct {
	Name  string
	Owner string
}

func (e *DuplicateCommandError) Error() string {
	if e.Owner != "" {
		return fmt.Sprintf("command %q already exists (owned by %s)", e.Name, e.Owner)
	}
	return fmt.Sprintf("command %q already exists", e.Name)
}

func (e *DuplicateCommandError) Is(target error) bool {
	return target == ErrDuplicateCommand
}

// UnknownCommandError is returned when a name is not bound.
type UnknownCommandError struct {
	Name        string
	Suggestions []string
}

func (e *UnknownCommandError) Error() string {
	msg := fmt.Sprintf("unknown command %q", e.Name)
	if len(e.Suggestions) > 0 {
		msg += "; did you mean " + strings.Join(e.Suggestions, ", ") + "?"
	}
	return msg
}

func (e *UnknownCommandError) Is(target error) bool {
	return target == ErrUnknownCommand
}

// AmbiguousCommandError is returned when a prefix matches more than one
// command.
type AmbiguousCommandError struct {
	Prefix  string
	Matches []string
}

func (e *AmbiguousCommandError) Error() string {
	return fmt.Sprintf("ambiguous command %q matches: %s", e.Prefix, strings.Join(e.Matches, ", "))
}

func (e *AmbiguousCommandError) Is(target error) bool {
	return target == ErrAmbiguousCommand
}

// ArgumentParseError names the token that could not be parsed.
type ArgumentParseError struct {
	Token  string
	Reason string

	// Usage is filled in by the interpreter when the command is known.
	Usage string
}

func (e *ArgumentParseError) Error() string {
	return fmt.Sprintf("argument parse error at %q: %s", e.Token, e.Reason)
}

func (e *ArgumentParseError) Is(target error) bool {
	return target == ErrArgumentParse
}

// SpecError reports a malformed argument spec.
type SpecError struct {
	Spec   string
	Token  string
	Reason string
}

func (e *SpecError) Error() string {
	return fmt.Sprintf("invalid argument spec %q at %q: %s", e.Spec, e.Token, e.Reason)
}

func (e *SpecError) Is(target error) bool {
	return target == ErrInvalidSpec
}

// HandlerError wraps a failure or panic inside a command handler.
type HandlerError struct {
	Command  string
	Err      error
	Panicked bool
	Stack    []byte
}

func (e *HandlerError) Error() string {
	if e.Panicked {
		return fmt.Sprintf("command %s panicked: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("command %s: %v", e.Command, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

func (e *HandlerError) Is(target error) bool {
	return target == ErrHandler
}
