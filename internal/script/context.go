package script

import (
	glua "github.com/yuin/gopher-lua"

	"github.com/dshills/mudcore/internal/lua"
	"github.com/dshills/mudcore/internal/session"
)

// Context is the persistent namespace statements run in. Names a
// statement assigns land in the context; names it only reads fall through
// to the globals of the underlying Lua state.
type Context struct {
	state   *lua.State
	env     *glua.LTable
	session string
}

func newContext(s *lua.State) *Context {
	return &Context{state: s, env: newEnv(s)}
}

func newEnv(s *lua.State) *glua.LTable {
	L := s.L
	env := L.NewTable()
	mt := L.NewTable()
	mt.RawSetString("__index", s.Globals())
	L.SetMetatable(env, mt)
	return env
}

// moveTo rebuilds the context on s, carrying over every assigned name
// whose value can cross Lua states. Functions cannot and are dropped; it
// returns their names.
func (c *Context) moveTo(s *lua.State) []string {
	env := newEnv(s)
	var dropped []string
	c.env.ForEach(func(k, v glua.LValue) {
		if k.String() == "session" {
			return
		}
		gv := lua.ToGoValue(v)
		if gv == nil {
			dropped = append(dropped, k.String())
			return
		}
		env.RawSet(lua.ToLuaValue(s.L, lua.ToGoValue(k)), lua.ToLuaValue(s.L, gv))
	})
	c.state = s
	c.env = env
	return dropped
}

// bind sets the session the next statement runs for.
func (c *Context) bind(ses *session.Session) {
	c.session = ""
	if ses != nil {
		c.session = ses.Name()
	}
	c.env.RawSetString("session", lua.ToLuaValue(c.state.L, ses))
}

// Session returns the name of the session last bound, or "".
func (c *Context) Session() string {
	return c.session
}

// Get returns the Go value of a name assigned in the context.
func (c *Context) Get(name string) any {
	return lua.ToGoValue(c.env.RawGetString(name))
}

// Names returns the names assigned in the context.
func (c *Context) Names() []string {
	var names []string
	c.env.ForEach(func(k, _ glua.LValue) {
		if s, ok := k.(glua.LString); ok {
			names = append(names, string(s))
		}
	})
	return names
}
