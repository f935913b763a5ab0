package app

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	glua "github.com/yuin/gopher-lua"

	"github.com/dshills/mudcore/internal/command"
	"github.com/dshills/mudcore/internal/event"
	"github.com/dshills/mudcore/internal/extension"
	"github.com/dshills/mudcore/internal/hook"
	"github.com/dshills/mudcore/internal/lua"
)

// AdvancedUnit is the id of the built-in unit providing the core commands.
const AdvancedUnit = "advanced"

// advancedUnit registers the engine's own commands through the extension
// manager like any other unit.
type advancedUnit struct {
	app *Application
}

func (u *advancedUnit) Origin() string {
	return "builtin"
}

func (u *advancedUnit) OnLoad(api *extension.API) error {
	cmds := []struct {
		name, spec, help string
		h                command.Handler
	}{
		{"@", "statement:rest", "Execute a script statement.", u.evaluate},
		{"load", "unitId reload:boolean=true", "Load or reload an extension.", u.load},
		{"unload", "unitId", "Unload an extension.", u.unload},
		{"extensions", "", "List loaded extensions.", u.listExtensions},
		{"commands", "", "List commands.", u.listCommands},
		{"cr", "", "Send a blank line to the session.", u.cr},
		{"echo", "onoff:boolean", "Turn local echo on or off.", u.echo(api)},
		{"spam", "hook args:rest", "Spam a hook with the given text.", u.spam(api)},
		{"end", "", "Exit the client.", u.end(api)},
		{"session", "name address", "Open a session to host:port.", u.session},
		{"zap", "name", "Close a session.", u.zap},
		{"history", "count:int=20", "Show recent input.", u.history},
		{"stats", "", "Show engine statistics.", u.stats},
	}
	for _, c := range cmds {
		if err := api.AddCommand(c.name, c.h, c.spec, c.help); err != nil {
			return err
		}
	}
	return nil
}

func (u *advancedUnit) evaluate(inv *command.Invocation) error {
	return u.app.console.Evaluate(inv.Session, inv.Args.String("statement"))
}

func (u *advancedUnit) load(inv *command.Invocation) error {
	return u.app.extensions.Load(inv.Args.String("unitId"), inv.Args.Bool("reload"))
}

func (u *advancedUnit) unload(inv *command.Invocation) error {
	return u.app.extensions.Unload(inv.Args.String("unitId"))
}

func (u *advancedUnit) listExtensions(*command.Invocation) error {
	exts := u.app.extensions.List()
	if len(exts) == 0 {
		u.app.ui.WriteMessage("extensions: none loaded.")
		return nil
	}

	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "id\torigin\tcommands\thooks\tloaded")
	for _, e := range exts {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n",
			e.ID, e.Unit.Origin(), len(e.Commands()), e.Hooks(), e.LoadedAt.Format(time.TimeOnly))
	}
	_ = w.Flush()
	u.app.ui.WriteOutput(strings.TrimRight(b.String(), "\n"))
	return nil
}

func (u *advancedUnit) listCommands(*command.Invocation) error {
	u.app.ui.WriteOutput(strings.TrimRight(
		command.FormatList(u.app.commands.List(), u.app.interp.CommandChar()), "\n"))
	return nil
}

// cr sends an empty line. Without a connection there is nothing to do.
func (u *advancedUnit) cr(inv *command.Invocation) error {
	ses := inv.Session
	if ses == nil {
		ses = u.app.sessions.Current()
	}
	if !ses.Connected() {
		return nil
	}
	return ses.Send("")
}

func (u *advancedUnit) echo(api *extension.API) command.Handler {
	return func(inv *command.Invocation) error {
		api.Enqueue(event.EchoToggle{On: inv.Args.Bool("onoff")})
		return nil
	}
}

func (u *advancedUnit) spam(api *extension.API) command.Handler {
	return func(inv *command.Invocation) error {
		api.Enqueue(event.HookSpam{
			Hook: inv.Args.String("hook"),
			Args: hook.Args{"text": inv.Args.String("args"), "session": inv.Session},
		})
		return nil
	}
}

func (u *advancedUnit) end(api *extension.API) command.Handler {
	return func(*command.Invocation) error {
		api.Sink().WriteMessage("end: shutting down.")
		api.Enqueue(event.Shutdown{})
		return nil
	}
}

func (u *advancedUnit) session(inv *command.Invocation) error {
	name, addr := inv.Args.String("name"), inv.Args.String("address")
	if _, exists := u.app.sessions.Get(name); exists {
		return fmt.Errorf("session %s already exists", name)
	}
	u.app.ui.WriteMessage(fmt.Sprintf("session: connecting %s to %s.", name, addr))
	u.app.connect(u.app.runContext(), name, addr)
	return nil
}

func (u *advancedUnit) zap(inv *command.Invocation) error {
	name := inv.Args.String("name")
	if err := u.app.sessions.Remove(name); err != nil {
		return err
	}
	u.app.ui.WriteMessage(fmt.Sprintf("zap: session %s closed.", name))
	return nil
}

func (u *advancedUnit) history(inv *command.Invocation) error {
	lines := u.app.interp.History().Lines()
	if n := inv.Args.Int("count"); n >= 0 && n < len(lines) {
		lines = lines[len(lines)-n:]
	}
	if len(lines) == 0 {
		u.app.ui.WriteMessage("history: empty.")
		return nil
	}
	u.app.ui.WriteOutput(strings.Join(lines, "\n"))
	return nil
}

func (u *advancedUnit) stats(*command.Invocation) error {
	s := u.app.dispatcher.Stats()
	m := u.app.metrics.Snapshot()

	var b strings.Builder
	fmt.Fprintf(&b, "uptime: %s\n", m.Uptime.Round(time.Second))
	fmt.Fprintf(&b, "events: %d enqueued, %d processed, %d failed, %d panicked, %d pending (avg %s)\n",
		s.Enqueued, s.Processed, s.Failed, s.Panicked, s.Pending, s.AverageTime)
	fmt.Fprintf(&b, "input: %d lines, %d internal (avg %s)\n", m.InputCount, m.InternalCount, m.AvgInputTime)
	fmt.Fprintf(&b, "sessions: %d chunks, %.1f KB received\n", m.DataChunks, m.DataKB())
	fmt.Fprintf(&b, "hooks: %s", strings.Join(u.app.hooks.Names(), ", "))
	u.app.ui.WriteOutput(b.String())
	return nil
}

// userState returns the Lua state of the loaded user unit, which the
// script console evaluates in.
func (app *Application) userState() *lua.State {
	ext, ok := app.extensions.Get(app.cfg.Extensions.UserUnit)
	if !ok {
		return nil
	}
	lu, ok := ext.Unit.(*extension.LuaUnit)
	if !ok {
		return nil
	}
	return lu.State()
}

// installConsoleAPI gives the fallback console state the output half of
// the extension API.
func (app *Application) installConsoleAPI(s *lua.State) {
	out := func(write func(string)) glua.LGFunction {
		return func(L *glua.LState) int {
			write(L.CheckString(1))
			return 0
		}
	}
	s.RegisterModule("mud", map[string]glua.LGFunction{
		"write":   out(app.ui.WriteOutput),
		"message": out(app.ui.WriteMessage),
		"error":   out(app.ui.WriteError),
		"send": func(L *glua.LState) int {
			app.Enqueue(event.UserInput{Text: L.CheckString(1), Internal: true})
			return 0
		},
		"spam": func(L *glua.LState) int {
			app.Enqueue(event.HookSpam{Hook: L.CheckString(1), Args: hook.Args{"text": L.OptString(2, "")}})
			return 0
		},
	})
}
