package script

import (
	"errors"
	"fmt"
)

// ErrExecution matches every ExecutionError.
var ErrExecution = errors.New("script execution failed")

// ExecutionError is a statement that failed to compile or run.
type ExecutionError struct {
	Statement string
	Err       error
	Traceback string
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("@: error in %q: %v", e.Statement, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

func (e *ExecutionError) Is(target error) bool {
	return target == ErrExecution
}
