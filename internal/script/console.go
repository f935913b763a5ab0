// Package script runs ad hoc Lua statements typed by the user.
//
// Statements run in a persistent Context. When the user extension is
// loaded its Lua state is the primary one, so statements can see and call
// everything the extension defines; otherwise a fallback state owned by
// the Console is used.
package script

import (
	"strings"

	glua "github.com/yuin/gopher-lua"

	"github.com/dshills/mudcore/internal/logging"
	"github.com/dshills/mudcore/internal/lua"
	"github.com/dshills/mudcore/internal/session"
	"github.com/dshills/mudcore/internal/ui"
)

// FallbackNotice is reported the first time the fallback state is used.
const FallbackNotice = "No user extension loaded--executing in fallback context."

// Primary returns the Lua state statements should run in, or nil.
type Primary func() *lua.State

// Console evaluates statements. It is not safe for concurrent use; all
// evaluation happens on the dispatcher goroutine.
type Console struct {
	primary Primary
	setup   func(*lua.State)
	sink    ui.Sink
	logger  *logging.Logger

	fallback *lua.State
	ctx      *Context
}

// Option configures a Console.
type Option func(*Console)

// WithPrimary sets where the primary state comes from.
func WithPrimary(p Primary) Option {
	return func(c *Console) {
		c.primary = p
	}
}

// WithSetup sets a function run once on the fallback state after it is
// created, typically to install engine functions.
func WithSetup(fn func(*lua.State)) Option {
	return func(c *Console) {
		c.setup = fn
	}
}

// WithSink sets the sink for results and failures.
func WithSink(s ui.Sink) Option {
	return func(c *Console) {
		if s != nil {
			c.sink = s
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Console) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewConsole creates a console. The fallback state is created on first
// use.
func NewConsole(opts ...Option) *Console {
	c := &Console{
		sink:   ui.Discard,
		logger: logging.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Evaluate runs statement for ses. A statement starting with "=" is an
// expression whose values are written to the sink. Failures are reported
// to the sink with the Lua traceback and returned as *ExecutionError.
func (c *Console) Evaluate(ses *session.Session, statement string) error {
	statement = strings.TrimSpace(statement)
	if statement == "" {
		return nil
	}

	ctx := c.Context()
	ctx.bind(ses)

	code := statement
	if rest, ok := strings.CutPrefix(statement, "="); ok {
		code = "return " + rest
	}

	results, err := ctx.state.Eval(code, "@", ctx.env)
	if err != nil {
		xerr := &ExecutionError{Statement: statement, Err: err, Traceback: lua.Traceback(err)}
		c.logger.Warn("%v", xerr)
		c.sink.WriteDiagnostic("@: error in script statement: "+err.Error(), xerr.Traceback)
		return xerr
	}

	if len(results) > 0 {
		parts := make([]string, len(results))
		for i, v := range results {
			parts[i] = tostring(ctx.state.L, v)
		}
		c.sink.WriteOutput(strings.Join(parts, "\t"))
	}
	return nil
}

// Context returns the context the next statement will run in. There is
// one context for the life of the Console; when the state under it
// changes, as on a reload of the user extension, its names move to the
// new state.
func (c *Console) Context() *Context {
	state := c.state()
	switch {
	case c.ctx == nil:
		c.ctx = newContext(state)
	case c.ctx.state != state:
		if dropped := c.ctx.moveTo(state); len(dropped) > 0 {
			c.logger.Debug("console names not carried to new state: %v", dropped)
		}
	}
	return c.ctx
}

// state picks the primary state if there is one, else the fallback.
func (c *Console) state() *lua.State {
	if c.primary != nil {
		if s := c.primary(); s != nil && !s.IsClosed() {
			return s
		}
	}

	if c.fallback == nil {
		c.fallback = lua.NewState(
			lua.WithName("console"),
			lua.WithPrint(func(s string) { c.sink.WriteOutput(s) }),
		)
		if c.setup != nil {
			c.setup(c.fallback)
		}
		c.sink.WriteError(FallbackNotice)
	}
	return c.fallback
}

// Close releases the fallback state. The context survives and moves to
// whichever state is used next.
func (c *Console) Close() error {
	if c.fallback == nil {
		return nil
	}
	err := c.fallback.Close()
	c.fallback = nil
	return err
}

func tostring(L *glua.LState, v glua.LValue) string {
	return L.ToStringMeta(v).String()
}
