package script

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	glua "github.com/yuin/gopher-lua"

	"github.com/dshills/mudcore/internal/lua"
	"github.com/dshills/mudcore/internal/session"
	"github.com/dshills/mudcore/internal/ui"
	"github.com/dshills/mudcore/internal/ui/uitest"
)

func commonSession(t *testing.T) *session.Session {
	t.Helper()
	m, err := session.NewManager()
	require.NoError(t, err)
	return m.Common()
}

func TestConsole_FallbackPersistsState(t *testing.T) {
	sink := uitest.New()
	c := NewConsole(WithSink(sink))
	defer c.Close()
	ses := commonSession(t)

	require.NoError(t, c.Evaluate(ses, "x = 40"))
	require.NoError(t, c.Evaluate(ses, "y = x + 2"))
	require.NoError(t, c.Evaluate(ses, "= y, session"))

	assert.Equal(t, []string{FallbackNotice}, sink.Texts(ui.KindError))
	assert.Equal(t, []string{"42\tcommon"}, sink.Texts(ui.KindOutput))

	ctx := c.Context()
	assert.Equal(t, 42, ctx.Get("y"))
	assert.Equal(t, "common", ctx.Session())
	assert.ElementsMatch(t, []string{"x", "y", "session"}, ctx.Names())
}

func TestConsole_PrintAndEmptyStatement(t *testing.T) {
	sink := uitest.New()
	c := NewConsole(WithSink(sink))
	defer c.Close()

	require.NoError(t, c.Evaluate(nil, "   "))
	assert.Empty(t, sink.Entries(), "an empty statement does not create the fallback")

	require.NoError(t, c.Evaluate(nil, `print("hi", 2)`))
	assert.True(t, sink.Contains(ui.KindOutput, "hi\t2"))
	assert.Nil(t, c.Context().Get("session"))
}

func TestConsole_FailureIsReportedAndStateSurvives(t *testing.T) {
	sink := uitest.New()
	c := NewConsole(WithSink(sink))
	defer c.Close()

	require.NoError(t, c.Evaluate(nil, "count = 1"))

	err := c.Evaluate(nil, `count = 2; error("nope")`)
	require.ErrorIs(t, err, ErrExecution)
	var xerr *ExecutionError
	require.ErrorAs(t, err, &xerr)
	assert.NotEmpty(t, xerr.Traceback)

	diags := sink.Texts(ui.KindDiagnostic)
	require.Len(t, diags, 1)
	assert.Contains(t, diags[0], "nope")

	// Partial effects of the failed statement remain.
	assert.Equal(t, 2, c.Context().Get("count"))

	err = c.Evaluate(nil, "count = = 3")
	assert.ErrorIs(t, err, ErrExecution)
	assert.Equal(t, 2, c.Context().Get("count"))
}

func TestConsole_UsesPrimaryState(t *testing.T) {
	primary := lua.NewState(lua.WithName("user"))
	defer primary.Close()
	require.NoError(t, primary.DoString(`function greet(n) return "hi " .. n end`))

	sink := uitest.New()
	var current *lua.State = primary
	c := NewConsole(WithSink(sink), WithPrimary(func() *lua.State { return current }))
	defer c.Close()

	require.NoError(t, c.Evaluate(nil, `msg = greet("bob")`))
	require.NoError(t, c.Evaluate(nil, `= msg`))
	assert.Equal(t, []string{"hi bob"}, sink.Texts(ui.KindOutput))
	assert.Empty(t, sink.Texts(ui.KindError))

	// Assignments stay in the context, not the extension's globals.
	assert.Equal(t, glua.LNil, primary.GetGlobal("msg"))

	// Once the primary goes away the fallback takes over.
	current = nil
	require.NoError(t, c.Evaluate(nil, `= type(greet), msg`))
	assert.Equal(t, []string{FallbackNotice}, sink.Texts(ui.KindError))
	assert.Equal(t, []string{"hi bob", "nil\thi bob"}, sink.Texts(ui.KindOutput))
}

func TestConsole_ContextSurvivesReload(t *testing.T) {
	first := lua.NewState()
	current := first
	sink := uitest.New()
	c := NewConsole(WithSink(sink), WithPrimary(func() *lua.State { return current }))
	defer c.Close()

	require.NoError(t, c.Evaluate(nil, `x = 41; items = {1, 2}; opts = {loud = true}`))
	require.NoError(t, c.Evaluate(nil, `function twice(n) return n * 2 end`))

	// Reloading the user extension closes its state and builds a new one.
	require.NoError(t, first.Close())
	second := lua.NewState()
	defer second.Close()
	require.NoError(t, second.DoString(`version = 2`))
	current = second

	require.NoError(t, c.Evaluate(nil, `= x, #items, opts.loud, version`))
	assert.Equal(t, []string{"41\t2\ttrue\t2"}, sink.Texts(ui.KindOutput))
	assert.Empty(t, sink.Texts(ui.KindError))

	ctx := c.Context()
	assert.Equal(t, 41, ctx.Get("x"))
	assert.Equal(t, []any{1, 2}, ctx.Get("items"))
	assert.Nil(t, ctx.Get("twice"), "functions stay with the closed state")

	// Assignments after the reload land in the same context.
	require.NoError(t, c.Evaluate(nil, `x = x + 1`))
	assert.Equal(t, 42, c.Context().Get("x"))
	assert.Equal(t, glua.LNil, second.GetGlobal("x"))
}

func TestConsole_ContextMovesBetweenFallbackAndPrimary(t *testing.T) {
	var current *lua.State
	sink := uitest.New()
	c := NewConsole(WithSink(sink), WithPrimary(func() *lua.State { return current }))
	defer c.Close()

	require.NoError(t, c.Evaluate(nil, `note = "kept"`))
	assert.Equal(t, []string{FallbackNotice}, sink.Texts(ui.KindError))

	user := lua.NewState()
	defer user.Close()
	current = user

	require.NoError(t, c.Evaluate(nil, `= note`))
	current = nil
	require.NoError(t, c.Evaluate(nil, `= note`))

	assert.Equal(t, []string{"kept", "kept"}, sink.Texts(ui.KindOutput))
	assert.Len(t, sink.Texts(ui.KindError), 1, "the fallback is announced once")
}

func TestConsole_SetupRunsOnFallback(t *testing.T) {
	sink := uitest.New()
	c := NewConsole(WithSink(sink), WithSetup(func(s *lua.State) {
		s.RegisterModule("mud", map[string]glua.LGFunction{
			"message": func(L *glua.LState) int {
				sink.WriteMessage(L.CheckString(1))
				return 0
			},
		})
	}))
	defer c.Close()

	require.NoError(t, c.Evaluate(nil, `mud.message("from console")`))
	assert.True(t, sink.Contains(ui.KindMessage, "from console"))
}
