package lua

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	glua "github.com/yuin/gopher-lua"
)

func TestNewState(t *testing.T) {
	state := NewState(WithName("test"))
	defer state.Close()

	if state.IsClosed() {
		t.Error("NewState() returned closed state")
	}
	if state.Name() != "test" {
		t.Errorf("Name() = %q, want %q", state.Name(), "test")
	}

	// Standard libraries are open.
	for _, lib := range []string{"string", "table", "math", "os", "io"} {
		if state.GetGlobal(lib) == glua.LNil {
			t.Errorf("library %s not open", lib)
		}
	}
}

func TestStateDoString(t *testing.T) {
	state := NewState()
	defer state.Close()

	if err := state.DoString(`x = 1 + 1`); err != nil {
		t.Fatalf("DoString() error = %v", err)
	}
	if v := state.GetGlobal("x"); v != glua.LNumber(2) {
		t.Errorf("x = %v, want 2", v)
	}
}

func TestStateDoStringError(t *testing.T) {
	state := NewState(WithName("unit"))
	defer state.Close()

	err := state.DoString(`error("boom")`)
	if err == nil {
		t.Fatal("DoString() expected error")
	}

	var lerr *Error
	if !errors.As(err, &lerr) {
		t.Fatalf("error type = %T, want *Error", err)
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("error = %q, want it to contain boom", err.Error())
	}
	if Traceback(err) == "" {
		t.Error("Traceback() is empty")
	}
}

func TestStateSyntaxError(t *testing.T) {
	state := NewState()
	defer state.Close()

	if _, err := state.Compile(`x = = 1`, "bad"); err == nil {
		t.Error("Compile() expected syntax error")
	}
}

func TestStateEvalWithEnv(t *testing.T) {
	state := NewState()
	defer state.Close()

	env := state.L.NewTable()
	mt := state.L.NewTable()
	mt.RawSetString("__index", state.Globals())
	state.L.SetMetatable(env, mt)

	if _, err := state.Eval(`y = tostring(40 + 2)`, "env", env); err != nil {
		t.Fatalf("Eval() error = %v", err)
	}
	if v := env.RawGetString("y"); v != glua.LString("42") {
		t.Errorf("env.y = %v, want 42", v)
	}
	if v := state.GetGlobal("y"); v != glua.LNil {
		t.Errorf("global y = %v, want nil", v)
	}

	results, err := state.Eval(`return y, 7`, "env", env)
	if err != nil {
		t.Fatalf("Eval() error = %v", err)
	}
	if len(results) != 2 || results[0] != glua.LString("42") || results[1] != glua.LNumber(7) {
		t.Errorf("results = %v", results)
	}
}

func TestStateCall(t *testing.T) {
	state := NewState()
	defer state.Close()

	if err := state.DoString(`function add(a, b) return a + b end`); err != nil {
		t.Fatalf("DoString() error = %v", err)
	}

	if !state.HasFunction("add") {
		t.Error("HasFunction(add) = false")
	}
	results, err := state.Call("add", glua.LNumber(2), glua.LNumber(3))
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if len(results) != 1 || results[0] != glua.LNumber(5) {
		t.Errorf("Call() = %v, want [5]", results)
	}

	if _, err := state.Call("missing"); !errors.Is(err, ErrNotFunction) {
		t.Errorf("Call(missing) error = %v, want ErrNotFunction", err)
	}
}

func TestStateCallKeepsStackBalanced(t *testing.T) {
	state := NewState()
	defer state.Close()

	if err := state.DoString(`function fail() error("x") end`); err != nil {
		t.Fatalf("DoString() error = %v", err)
	}
	top := state.L.GetTop()
	for i := 0; i < 3; i++ {
		if _, err := state.Call("fail"); err == nil {
			t.Fatal("Call(fail) expected error")
		}
	}
	if got := state.L.GetTop(); got != top {
		t.Errorf("stack top = %d, want %d", got, top)
	}
}

func TestStatePrintRedirect(t *testing.T) {
	var lines []string
	state := NewState(WithPrint(func(s string) { lines = append(lines, s) }))
	defer state.Close()

	if err := state.DoString(`print("a", 1, nil, true)`); err != nil {
		t.Fatalf("DoString() error = %v", err)
	}
	if len(lines) != 1 || lines[0] != "a\t1\tnil\ttrue" {
		t.Errorf("printed %q", lines)
	}
}

func TestStateDoFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.lua")
	if err := os.WriteFile(path, []byte(`loaded = true`), 0o644); err != nil {
		t.Fatal(err)
	}

	state := NewState()
	defer state.Close()

	if err := state.DoFile(path); err != nil {
		t.Fatalf("DoFile() error = %v", err)
	}
	if state.GetGlobal("loaded") != glua.LTrue {
		t.Error("loaded != true")
	}
}

func TestStateClose(t *testing.T) {
	state := NewState()
	if err := state.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := state.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := state.DoString(`x = 1`); !errors.Is(err, ErrStateClosed) {
		t.Errorf("DoString() after Close error = %v, want ErrStateClosed", err)
	}
	if state.GetGlobal("x") != glua.LNil {
		t.Error("GetGlobal() after Close should be nil")
	}
}
