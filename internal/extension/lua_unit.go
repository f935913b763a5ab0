package extension

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	glua "github.com/yuin/gopher-lua"

	"github.com/dshills/mudcore/internal/command"
	"github.com/dshills/mudcore/internal/hook"
	"github.com/dshills/mudcore/internal/lua"
	"github.com/dshills/mudcore/internal/ui"
)

// LuaResolver resolves ids to Lua units found on its search paths, either
// <path>/<id>.lua or <path>/<id>/init.lua. Earlier paths win.
type LuaResolver struct {
	paths []string
	sink  ui.Sink
}

// LuaOption configures a LuaResolver.
type LuaOption func(*LuaResolver)

// WithLuaSink sets where Lua print and the mud output functions write.
func WithLuaSink(s ui.Sink) LuaOption {
	return func(r *LuaResolver) {
		if s != nil {
			r.sink = s
		}
	}
}

// NewLuaResolver creates a resolver searching paths in order.
func NewLuaResolver(paths []string, opts ...LuaOption) *LuaResolver {
	r := &LuaResolver{
		paths: append([]string(nil), paths...),
		sink:  ui.Discard,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DefaultSearchPaths returns the default extension search paths.
func DefaultSearchPaths() []string {
	paths := make([]string, 0, 2)
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "mudcore", "extensions"))
	}
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, "extensions"))
	}
	return paths
}

// Paths returns the search paths.
func (r *LuaResolver) Paths() []string {
	return r.paths
}

// Find returns the entry file for id.
func (r *LuaResolver) Find(id string) (string, error) {
	if !ValidID(id) {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	for _, base := range r.paths {
		candidates := []string{
			filepath.Join(base, id+".lua"),
			filepath.Join(base, id, "init.lua"),
		}
		for _, p := range candidates {
			if info, err := os.Stat(p); err == nil && !info.IsDir() {
				return p, nil
			}
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Discover returns the sorted ids of every unit on the search paths.
func (r *LuaResolver) Discover() []string {
	seen := make(map[string]bool)
	for _, base := range r.paths {
		entries, err := os.ReadDir(base)
		if err != nil {
			continue
		}
		for _, e := range entries {
			var id string
			if e.IsDir() {
				if _, err := os.Stat(filepath.Join(base, e.Name(), "init.lua")); err != nil {
					continue
				}
				id = e.Name()
			} else if filepath.Ext(e.Name()) == ".lua" {
				id = strings.TrimSuffix(e.Name(), ".lua")
			}
			if ValidID(id) {
				seen[id] = true
			}
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Resolve runs the unit's file in a new Lua state.
func (r *LuaResolver) Resolve(id string) (Unit, error) {
	path, err := r.Find(id)
	if err != nil {
		return nil, err
	}

	u := &LuaUnit{id: id, path: path, sink: r.sink}
	u.state = lua.NewState(
		lua.WithName(id),
		lua.WithPrint(func(s string) { u.sink.WriteOutput(s) }),
	)
	u.install()
	if filepath.Base(path) == "init.lua" {
		u.extendPackagePath(filepath.Dir(path))
	}

	if err := u.state.DoFile(path); err != nil {
		_ = u.state.Close()
		return nil, err
	}
	return u, nil
}

// LuaUnit is an extension written in Lua.
//
// The file runs when the unit is resolved. The optional globals load(),
// unload() and reload(previous) are its lifecycle callbacks; previous is
// a copy of the replaced instance's persist table. The mud table is the
// unit's API.
type LuaUnit struct {
	id    string
	path  string
	sink  ui.Sink
	state *lua.State
	api   *API
}

// Origin returns the path of the unit's entry file.
func (u *LuaUnit) Origin() string {
	return u.path
}

// State returns the unit's Lua state.
func (u *LuaUnit) State() *lua.State {
	return u.state
}

func (u *LuaUnit) OnLoad(api *API) error {
	u.api = api
	if !u.state.HasFunction("load") {
		return nil
	}
	_, err := u.state.Call("load")
	return err
}

func (u *LuaUnit) OnUnload() error {
	defer func() { u.api = nil }()
	if !u.state.HasFunction("unload") {
		return nil
	}
	_, err := u.state.Call("unload")
	return err
}

func (u *LuaUnit) OnReloadFromPrevious(prev Unit) error {
	if !u.state.HasFunction("reload") {
		return nil
	}
	var previous glua.LValue = glua.LNil
	if p, ok := prev.(*LuaUnit); ok {
		// Tables cannot be shared between states, so persist is copied.
		data := lua.ToGoValue(p.state.GetGlobal("persist"))
		previous = lua.ToLuaValue(u.state.L, data)
	}
	_, err := u.state.Call("reload", previous)
	return err
}

// Close releases the Lua state.
func (u *LuaUnit) Close() error {
	return u.state.Close()
}

func (u *LuaUnit) install() {
	u.state.SetGlobal("persist", u.state.L.NewTable())
	u.state.RegisterModule("mud", map[string]glua.LGFunction{
		"add_command":     u.addCommand,
		"remove_command":  u.removeCommand,
		"hook_register":   u.hookRegister,
		"hook_unregister": u.hookUnregister,
		"write":           u.output(func(s string) { u.sink.WriteOutput(s) }),
		"message":         u.output(func(s string) { u.sink.WriteMessage(s) }),
		"error":           u.output(func(s string) { u.sink.WriteError(s) }),
		"send":            u.send,
	})
}

// extendPackagePath lets a directory unit require its own modules.
func (u *LuaUnit) extendPackagePath(dir string) {
	pkg, ok := u.state.GetGlobal("package").(*glua.LTable)
	if !ok {
		return
	}
	current := glua.LVAsString(pkg.RawGetString("path"))
	pkg.RawSetString("path", glua.LString(filepath.Join(dir, "?.lua")+";"+current))
}

// requireAPI raises a Lua error when the unit is not loaded.
func (u *LuaUnit) requireAPI(L *glua.LState, fn string) *API {
	if u.api == nil {
		L.RaiseError("mud.%s: extension %s is not loaded; call it from load()", fn, u.id)
	}
	return u.api
}

// mud.add_command(name, fn [, spec [, help]])
//
// fn is called as fn(session, args, raw).
func (u *LuaUnit) addCommand(L *glua.LState) int {
	name := L.CheckString(1)
	fn := L.CheckFunction(2)
	spec := L.OptString(3, "")
	help := L.OptString(4, "")

	api := u.requireAPI(L, "add_command")
	if err := api.AddCommand(name, u.commandHandler(fn), spec, help); err != nil {
		L.RaiseError("mud.add_command: %s", err.Error())
	}
	return 0
}

func (u *LuaUnit) commandHandler(fn *glua.LFunction) command.Handler {
	return func(inv *command.Invocation) error {
		L := u.state.L
		_, err := u.state.CallFunction(fn,
			lua.ToLuaValue(L, inv.Session),
			lua.MapToTable(L, inv.Args),
			glua.LString(inv.Raw),
		)
		return err
	}
}

// mud.remove_command(name)
func (u *LuaUnit) removeCommand(L *glua.LState) int {
	name := L.CheckString(1)
	api := u.requireAPI(L, "remove_command")
	if err := api.RemoveCommand(name); err != nil {
		L.RaiseError("mud.remove_command: %s", err.Error())
	}
	return 0
}

// mud.hook_register(name, fn) returns a subscription id. fn is called
// with the hook's argument table.
func (u *LuaUnit) hookRegister(L *glua.LState) int {
	name := L.CheckString(1)
	fn := L.CheckFunction(2)

	api := u.requireAPI(L, "hook_register")
	id, err := api.Subscribe(name, func(args hook.Args) error {
		_, err := u.state.CallFunction(fn, lua.ToLuaValue(u.state.L, args))
		return err
	})
	if err != nil {
		L.RaiseError("mud.hook_register: %s", err.Error())
	}
	L.Push(glua.LNumber(id))
	return 1
}

// mud.hook_unregister(name, id) returns whether the subscription existed.
func (u *LuaUnit) hookUnregister(L *glua.LState) int {
	name := L.CheckString(1)
	id := L.CheckInt64(2)

	api := u.requireAPI(L, "hook_unregister")
	L.Push(glua.LBool(api.Unsubscribe(name, hook.ID(id))))
	return 1
}

func (u *LuaUnit) output(write func(string)) glua.LGFunction {
	return func(L *glua.LState) int {
		write(L.ToStringMeta(L.CheckAny(1)).String())
		return 0
	}
}

// mud.send(text) queues text as internal input.
func (u *LuaUnit) send(L *glua.LState) int {
	text := L.CheckString(1)
	u.requireAPI(L, "send").Send(text)
	return 0
}
