package event

import (
	"errors"
	"fmt"
)

// Sentinel errors for the event package.
var (
	// ErrShutdown is returned by the Shutdown event. The dispatcher stops
	// when it sees it and returns it from Run.
	ErrShutdown = errors.New("shutdown requested")

	// ErrQueueClosed is returned when pushing to or draining a closed queue.
	ErrQueueClosed = errors.New("event queue is closed")

	// ErrNilEvent is returned when a nil event is pushed.
	ErrNilEvent = errors.New("nil event")

	// ErrAlreadyRunning is returned when Run is called on a running dispatcher.
	ErrAlreadyRunning = errors.New("dispatcher is already running")

	// ErrExecution matches every ExecutionError via errors.Is.
	ErrExecution = errors.New("event execution failed")
)

// ExecutionError reports an event whose execution returned an error or
// panicked. The dispatcher reports it and moves on to the next event.
type ExecutionError struct {
	Event    string
	Seq      uint64
	Err      error
	Panicked bool
	Stack    []byte
}

func (e *ExecutionError) Error() string {
	if e.Panicked {
		return fmt.Sprintf("event %s (#%d) panicked: %v", e.Event, e.Seq, e.Err)
	}
	return fmt.Sprintf("event %s (#%d): %v", e.Event, e.Seq, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// Is matches ErrExecution.
func (e *ExecutionError) Is(target error) bool {
	return target == ErrExecution
}
