package extension

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/mudcore/internal/ui"
)

func TestWatcher_TriggersForLoadedUnits(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.lua"), "-- a")
	writeFile(t, filepath.Join(dir, "b", "init.lua"), "-- b")
	writeFile(t, filepath.Join(dir, "c.lua"), "-- c")

	loaded := map[string]bool{"a": true, "b": true}
	triggered := make(chan string, 10)
	w, err := NewWatcher([]string{dir},
		func(id string) bool { return loaded[id] },
		func(id string) { triggered <- id },
		WithDebounce(50*time.Millisecond),
	)
	require.NoError(t, err)
	defer w.Close()

	// Several writes to one unit collapse into a single trigger.
	for i := 0; i < 3; i++ {
		writeFile(t, filepath.Join(dir, "a.lua"), "-- a changed")
	}
	select {
	case id := <-triggered:
		assert.Equal(t, "a", id)
	case <-time.After(2 * time.Second):
		t.Fatal("no trigger for a")
	}

	writeFile(t, filepath.Join(dir, "b", "helper.lua"), "-- helper")
	select {
	case id := <-triggered:
		assert.Equal(t, "b", id)
	case <-time.After(2 * time.Second):
		t.Fatal("no trigger for b")
	}

	// c is not loaded and notes.txt is not Lua.
	writeFile(t, filepath.Join(dir, "c.lua"), "-- c changed")
	writeFile(t, filepath.Join(dir, "notes.txt"), "x")
	select {
	case id := <-triggered:
		t.Fatalf("unexpected trigger for %s", id)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcher_UnitID(t *testing.T) {
	root := t.TempDir()
	w := &Watcher{roots: []string{root}}

	assert.Equal(t, "a", w.unitID(filepath.Join(root, "a.lua")))
	assert.Equal(t, "b", w.unitID(filepath.Join(root, "b", "lib", "x.lua")))
	assert.Equal(t, "", w.unitID(filepath.Join(filepath.Dir(root), "elsewhere.lua")))
}

func TestWatcher_SkipsMissingPaths(t *testing.T) {
	w, err := NewWatcher([]string{filepath.Join(t.TempDir(), "missing")},
		func(string) bool { return true },
		func(string) {},
	)
	require.NoError(t, err)
	assert.Empty(t, w.Roots())
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
}

func TestWatcher_ReloadsAfterBrokenSave(t *testing.T) {
	dir := t.TempDir()
	unit := func(version string) string {
		return `function load()
  mud.add_command("ver", function() mud.message("` + version + `") end, "", "Version.")
end
`
	}
	path := filepath.Join(dir, "unit.lua")
	writeFile(t, path, unit("v1"))

	h := newLuaHarness(t, dir)
	require.NoError(t, h.m.Load("unit", true))

	triggered := make(chan string, 10)
	w, err := NewWatcher([]string{dir}, h.m.IsKnown,
		func(id string) { triggered <- id },
		WithDebounce(50*time.Millisecond),
	)
	require.NoError(t, err)
	defer w.Close()

	next := func() string {
		t.Helper()
		select {
		case id := <-triggered:
			return id
		case <-time.After(2 * time.Second):
			t.Fatal("no trigger")
			return ""
		}
	}

	// A save with a syntax error leaves the old commands bound.
	writeFile(t, path, "function load( -- half written")
	require.Equal(t, "unit", next())
	require.ErrorIs(t, h.m.Load("unit", true), ErrLoad)
	assert.False(t, h.m.IsLoaded("unit"))
	assert.True(t, h.commands.Has("ver"))

	// Fixing the file is still picked up.
	writeFile(t, path, unit("v2"))
	require.Equal(t, "unit", next())
	require.NoError(t, h.m.Load("unit", true))
	assert.True(t, h.m.IsLoaded("unit"))

	invoke(t, h, "ver", "")
	assert.True(t, h.sink.Contains(ui.KindMessage, "v2"))
}
