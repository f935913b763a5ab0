package lua

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"
)

// State wraps a gopher-lua state.
//
// gopher-lua's LState is not goroutine-safe. The engine only touches a
// State from the dispatcher goroutine; the mutex guards the rare Go-side
// access from elsewhere (tests, shutdown).
type State struct {
	L *lua.LState

	mu     sync.Mutex
	name   string
	print  func(string)
	closed bool
}

// StateOption configures a State.
type StateOption func(*State)

// WithName sets the chunk name used in error messages and tracebacks.
func WithName(name string) StateOption {
	return func(s *State) {
		s.name = name
	}
}

// WithPrint redirects Lua's print. Arguments are converted with tostring
// and joined by tabs, as the stock print does.
func WithPrint(fn func(string)) StateOption {
	return func(s *State) {
		s.print = fn
	}
}

// NewState creates a Lua state with the standard libraries open.
func NewState(opts ...StateOption) *State {
	s := &State{name: "chunk"}
	for _, opt := range opts {
		opt(s)
	}

	s.L = lua.NewState()
	if s.print != nil {
		s.L.SetGlobal("print", s.L.NewFunction(s.luaPrint))
	}
	return s
}

func (s *State) luaPrint(L *lua.LState) int {
	n := L.GetTop()
	parts := make([]string, n)
	for i := 1; i <= n; i++ {
		parts[i-1] = L.ToStringMeta(L.Get(i)).String()
	}
	s.print(strings.Join(parts, "\t"))
	return 0
}

// Name returns the chunk name.
func (s *State) Name() string {
	return s.name
}

// DoString runs code in the global environment.
func (s *State) DoString(code string) error {
	_, err := s.Eval(code, s.name, nil)
	return err
}

// DoFile runs the file at path in the global environment.
func (s *State) DoFile(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStateClosed
	}
	return s.protect(func() error {
		return s.L.DoFile(path)
	})
}

// Compile loads code as a function without running it.
func (s *State) Compile(code, chunkName string) (*lua.LFunction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStateClosed
	}
	fn, err := s.L.Load(strings.NewReader(code), chunkName)
	if err != nil {
		return nil, &Error{Chunk: chunkName, Err: err}
	}
	return fn, nil
}

// Eval compiles and runs code. When env is non-nil the chunk sees env as
// its global table. It returns every value the chunk returns.
func (s *State) Eval(code, chunkName string, env *lua.LTable) ([]lua.LValue, error) {
	fn, err := s.Compile(code, chunkName)
	if err != nil {
		return nil, err
	}
	if env != nil {
		fn.Env = env
	}
	return s.CallFunction(fn)
}

// Call calls the global function named fn.
// It returns ErrNotFunction if the global is missing or not a function.
func (s *State) Call(fn string, args ...lua.LValue) ([]lua.LValue, error) {
	v := s.GetGlobal(fn)
	f, ok := v.(*lua.LFunction)
	if !ok {
		return nil, fmt.Errorf("%w: %s (got %s)", ErrNotFunction, fn, v.Type())
	}
	return s.CallFunction(f, args...)
}

// HasFunction reports whether the global name is a function.
func (s *State) HasFunction(name string) bool {
	_, ok := s.GetGlobal(name).(*lua.LFunction)
	return ok
}

// CallFunction calls fn in protected mode and returns its results.
// Returns an empty slice (not nil) if the function returns no values.
func (s *State) CallFunction(fn *lua.LFunction, args ...lua.LValue) ([]lua.LValue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStateClosed
	}

	// Record stack top before pushing anything
	stackTop := s.L.GetTop()

	s.L.Push(fn)
	for _, arg := range args {
		s.L.Push(arg)
	}

	if err := s.protect(func() error {
		return s.L.PCall(len(args), lua.MultRet, nil)
	}); err != nil {
		s.L.SetTop(stackTop)
		return nil, err
	}

	nRet := s.L.GetTop() - stackTop
	if nRet <= 0 {
		return []lua.LValue{}, nil
	}
	results := make([]lua.LValue, nRet)
	for i := 0; i < nRet; i++ {
		results[i] = s.L.Get(stackTop + i + 1)
	}
	s.L.Pop(nRet)
	return results, nil
}

// protect converts Lua errors and Go panics into *Error.
func (s *State) protect(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &Error{Chunk: s.name, Err: fmt.Errorf("lua panic: %v", r)}
		}
	}()
	if callErr := fn(); callErr != nil {
		return &Error{Chunk: s.name, Err: callErr}
	}
	return nil
}

// GetGlobal returns a global variable value.
func (s *State) GetGlobal(name string) lua.LValue {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return lua.LNil
	}
	return s.L.GetGlobal(name)
}

// SetGlobal sets a global variable.
func (s *State) SetGlobal(name string, value lua.LValue) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.L.SetGlobal(name, value)
}

// Globals returns the global table.
func (s *State) Globals() *lua.LTable {
	return s.L.G.Global
}

// RegisterModule sets a global table holding funcs.
func (s *State) RegisterModule(name string, funcs map[string]lua.LGFunction) *lua.LTable {
	s.mu.Lock()
	defer s.mu.Unlock()

	mod := s.L.SetFuncs(s.L.NewTable(), funcs)
	if !s.closed {
		s.L.SetGlobal(name, mod)
	}
	return mod
}

// IsClosed returns true if the state has been closed.
func (s *State) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close releases the Lua state. Closing twice is a no-op.
func (s *State) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.L.Close()
	s.closed = true
	return nil
}

// Traceback returns the Lua stack trace carried by err, if any.
func Traceback(err error) string {
	var apiErr *lua.ApiError
	if errors.As(err, &apiErr) {
		return apiErr.StackTrace
	}
	return ""
}
