package extension

import (
	"errors"
	"fmt"
)

// Extension system errors.
var (
	// ErrLoad matches every LoadError.
	ErrLoad = errors.New("extension load failed")

	// ErrUnload matches every UnloadError.
	ErrUnload = errors.New("extension unload failed")

	// ErrUnknownExtension is returned when an id is not loaded.
	ErrUnknownExtension = errors.New("extension is not loaded")

	// ErrNotFound is returned by a Resolver that has no unit for an id.
	ErrNotFound = errors.New("extension not found")

	// ErrInvalidID is returned for ids that cannot name a unit.
	ErrInvalidID = errors.New("invalid extension id")

	// ErrNotOwner is returned when an extension removes a command it does
	// not own.
	ErrNotOwner = errors.New("command is owned by another extension")
)

// Load phases reported in LoadError.
const (
	PhaseResolve = "resolve"
	PhaseReload  = "reload"
	PhaseLoad    = "load"
)

// LoadError reports a failure while loading id. Only PhaseResolve
// failures abort a load; the others are reported and the load completes.
type LoadError struct {
	ID       string
	Phase    string
	Err      error
	Panicked bool
	Stack    []byte
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load: extension %s: %s: %v", e.ID, e.Phase, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

func (e *LoadError) Is(target error) bool {
	return target == ErrLoad
}

// UnloadError reports a failing unload callback. The unload itself still
// happens.
type UnloadError struct {
	ID       string
	Err      error
	Panicked bool
	Stack    []byte
}

func (e *UnloadError) Error() string {
	return fmt.Sprintf("unload: extension %s didn't unload properly: %v", e.ID, e.Err)
}

func (e *UnloadError) Unwrap() error {
	return e.Err
}

func (e *UnloadError) Is(target error) bool {
	return target == ErrUnload
}

// UnknownExtensionError is returned when id is not loaded.
type UnknownExtensionError struct {
	ID string
}

func (e *UnknownExtensionError) Error() string {
	return fmt.Sprintf("extension %s is not loaded", e.ID)
}

func (e *UnknownExtensionError) Is(target error) bool {
	return target == ErrUnknownExtension
}
