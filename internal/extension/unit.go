package extension

import (
	"sort"
	"time"
)

// Unit is one resolved instance of an extension. The lifecycle callbacks
// are optional; a unit implements whichever of Loader, Unloader, Reloader
// and io.Closer it needs.
type Unit interface {
	// Origin describes where the unit came from, such as a file path.
	Origin() string
}

// Loader is implemented by units that register commands or hooks.
type Loader interface {
	OnLoad(api *API) error
}

// Unloader is implemented by units that need to clean up before their
// commands and hooks are removed.
type Unloader interface {
	OnUnload() error
}

// Reloader is implemented by units that take over state from the instance
// they replace. It is called on the new instance before OnLoad.
type Reloader interface {
	OnReloadFromPrevious(prev Unit) error
}

// State represents the lifecycle state of an extension.
type State int

const (
	StateUnloaded State = iota
	StateLoaded
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoaded:
		return "loaded"
	default:
		return "unknown"
	}
}

// Extension is the manager's record of one loaded unit.
type Extension struct {
	ID       string
	Unit     Unit
	State    State
	LoadedAt time.Time

	api *API
}

// Commands returns the sorted names of the commands attributed to the
// extension.
func (e *Extension) Commands() []string {
	names := append([]string(nil), e.api.commands...)
	sort.Strings(names)
	return names
}

// Hooks returns the number of hook subscriptions the extension holds.
func (e *Extension) Hooks() int {
	return len(e.api.hooks)
}
