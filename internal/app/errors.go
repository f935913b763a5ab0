package app

import (
	"errors"
	"fmt"

	"github.com/dshills/mudcore/internal/command"
	"github.com/dshills/mudcore/internal/lua"
	"github.com/dshills/mudcore/internal/script"
)

// Application errors.
var (
	// ErrAlreadyRunning indicates the application is already running.
	ErrAlreadyRunning = errors.New("application already running")

	// ErrUnknownUI indicates the configured UI kind is not supported.
	ErrUnknownUI = errors.New("unknown ui kind")
)

// InitError represents an initialization error.
type InitError struct {
	Component string
	Err       error
}

func (e *InitError) Error() string {
	return "init " + e.Component + ": " + e.Err.Error()
}

func (e *InitError) Unwrap() error {
	return e.Err
}

// report shows a failed input line to the user. Script failures have
// already been reported by the console with their traceback.
func (app *Application) report(err error) {
	var (
		xerr *script.ExecutionError
		herr *command.HandlerError
		perr *command.ArgumentParseError
	)
	sink := app.Sink()

	switch {
	case errors.As(err, &xerr):
		return
	case errors.As(err, &herr) && herr.Panicked:
		sink.WriteDiagnostic(err.Error(), string(herr.Stack))
	case lua.Traceback(err) != "":
		sink.WriteDiagnostic(err.Error(), lua.Traceback(err))
	case errors.As(err, &perr) && perr.Usage != "":
		sink.WriteError(fmt.Sprintf("%v\nusage: %s", err, perr.Usage))
	default:
		sink.WriteError(err.Error())
	}
	app.logger.Debug("input failed: %v", err)
}
