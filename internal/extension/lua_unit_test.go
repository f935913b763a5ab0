package extension

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/mudcore/internal/command"
	"github.com/dshills/mudcore/internal/event"
	"github.com/dshills/mudcore/internal/hook"
	"github.com/dshills/mudcore/internal/ui"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

const greetUnit = `
persist.count = persist.count or 0

function load()
  mud.add_command("hello", function(session, args, raw)
    persist.count = persist.count + 1
    mud.message("hello " .. args.name .. " " .. persist.count)
  end, "name=world", "Say hello.")
end

function unload()
  mud.message("bye")
end

function reload(previous)
  persist.count = previous.count
end
`

func newLuaHarness(t *testing.T, dir string) *harness {
	t.Helper()
	h := newHarness(nil)
	h.m.resolver = NewLuaResolver([]string{dir}, WithLuaSink(h.sink))
	t.Cleanup(func() { _ = h.m.UnloadAll() })
	return h
}

func invoke(t *testing.T, h *harness, name, line string) {
	t.Helper()
	cmd, err := h.commands.Lookup(name)
	require.NoError(t, err)
	args, err := cmd.Spec.Parse(line)
	require.NoError(t, err)
	require.NoError(t, cmd.Handler(&command.Invocation{Name: name, Args: args, Raw: line}))
}

func TestLuaResolver_Find(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	writeFile(t, filepath.Join(first, "a.lua"), "")
	writeFile(t, filepath.Join(second, "a", "init.lua"), "")
	writeFile(t, filepath.Join(second, "b", "init.lua"), "")
	writeFile(t, filepath.Join(second, "notes.txt"), "")
	require.NoError(t, os.MkdirAll(filepath.Join(second, "empty"), 0o755))

	r := NewLuaResolver([]string{first, second})

	path, err := r.Find("a")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(first, "a.lua"), path)

	path, err = r.Find("b")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(second, "b", "init.lua"), path)

	_, err = r.Find("zz")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = r.Find("../a")
	assert.ErrorIs(t, err, ErrInvalidID)

	assert.Equal(t, []string{"a", "b"}, r.Discover())
}

func TestLuaUnit_CommandsAndPersistAcrossReload(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "greet.lua"), greetUnit)
	h := newLuaHarness(t, dir)

	require.NoError(t, h.m.Load("greet", true))
	cmd, err := h.commands.Lookup("hello")
	require.NoError(t, err)
	assert.Equal(t, "greet", cmd.Source)
	assert.Equal(t, "Say hello.", cmd.Help)

	invoke(t, h, "hello", "bob")
	invoke(t, h, "hello", "")
	assert.True(t, h.sink.Contains(ui.KindMessage, "hello bob 1"))
	assert.True(t, h.sink.Contains(ui.KindMessage, "hello world 2"))

	require.NoError(t, h.m.Load("greet", true))
	assert.Empty(t, h.reported)
	assert.True(t, h.sink.Contains(ui.KindMessage, "bye"))

	invoke(t, h, "hello", "amy")
	assert.True(t, h.sink.Contains(ui.KindMessage, "hello amy 3"))

	require.NoError(t, h.m.Unload("greet"))
	assert.False(t, h.commands.Has("hello"))
}

func TestLuaUnit_DirectoryUnitRequiresOwnModules(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "pkg", "helper.lua"), `return { name = "helper" }`)
	writeFile(t, filepath.Join(dir, "pkg", "init.lua"), `
local helper = require("helper")
function load()
  mud.write("using " .. helper.name)
end
`)
	h := newLuaHarness(t, dir)

	require.NoError(t, h.m.Load("pkg", true))
	assert.Empty(t, h.reported)
	assert.True(t, h.sink.Contains(ui.KindOutput, "using helper"))
}

func TestLuaUnit_APIOutsideLoadFails(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "early.lua"), `mud.add_command("x", function() end)`)
	h := newLuaHarness(t, dir)

	err := h.m.Load("early", true)
	require.ErrorIs(t, err, ErrLoad)
	assert.Contains(t, err.Error(), "not loaded")
	assert.False(t, h.m.IsLoaded("early"))
	assert.False(t, h.commands.Has("x"))
}

func TestLuaUnit_SyntaxErrorFailsResolve(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "broken.lua"), `function load(`)
	h := newLuaHarness(t, dir)

	err := h.m.Load("broken", true)
	var lerr *LoadError
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, PhaseResolve, lerr.Phase)
}

func TestLuaUnit_LoadErrorIsReported(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "bad.lua"), `
function load()
  error("cannot start")
end
`)
	h := newLuaHarness(t, dir)

	require.NoError(t, h.m.Load("bad", true))
	assert.True(t, h.m.IsLoaded("bad"))
	require.Len(t, h.reported, 1)
	assert.ErrorIs(t, h.reported[0], ErrLoad)
	assert.Contains(t, h.reported[0].Error(), "cannot start")
}

func TestLuaUnit_HooksAndSend(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "ticker.lua"), `
function load()
  id = mud.hook_register("timer_hook", function(args)
    mud.write("tick " .. args.tick)
  end)
  mud.send("look")
end
`)
	h := newLuaHarness(t, dir)

	require.NoError(t, h.m.Load("ticker", true))
	require.Equal(t, 1, h.hooks.Count(hook.Timer))

	results := h.hooks.Spam(hook.Timer, hook.Args{"tick": 3})
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	assert.True(t, h.sink.Contains(ui.KindOutput, "tick 3"))

	require.Len(t, h.queue.events, 1)
	assert.Equal(t, event.UserInput{Text: "look", Internal: true}, h.queue.events[0])

	require.NoError(t, h.m.Unload("ticker"))
	assert.Equal(t, 0, h.hooks.Count(hook.Timer))
}

func TestLuaUnit_PrintGoesToSink(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "p.lua"), `print("top", 1)`)
	h := newLuaHarness(t, dir)

	require.NoError(t, h.m.Load("p", true))
	assert.True(t, h.sink.Contains(ui.KindOutput, "top\t1"))

	ext, ok := h.m.Get("p")
	require.True(t, ok)
	lu, ok := ext.Unit.(*LuaUnit)
	require.True(t, ok)
	assert.False(t, lu.State().IsClosed())
	assert.Equal(t, filepath.Join(dir, "p.lua"), lu.Origin())
}
