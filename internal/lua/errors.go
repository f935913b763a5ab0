package lua

import (
	"errors"

	lua "github.com/yuin/gopher-lua"
)

// Errors for Lua state operations.
var (
	// ErrStateClosed is returned when operating on a closed state.
	ErrStateClosed = errors.New("lua state is closed")

	// ErrNotFunction is returned when calling a global that is not a function.
	ErrNotFunction = errors.New("not a lua function")
)

// Error is a failed compile or call inside a named chunk.
type Error struct {
	Chunk string
	Err   error
}

func (e *Error) Error() string {
	var apiErr *lua.ApiError
	if errors.As(e.Err, &apiErr) && apiErr.Object != nil {
		return apiErr.Object.String()
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}
