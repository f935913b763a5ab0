package event

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/mudcore/internal/hook"
	"github.com/dshills/mudcore/internal/session"
	"github.com/dshills/mudcore/internal/ui"
	"github.com/dshills/mudcore/internal/ui/uitest"
)

// fakeEnv records what events do to it.
type fakeEnv struct {
	mu        sync.Mutex
	hooks     *hook.Registry
	sink      *uitest.Recorder
	echo      bool
	interpret []string
	data      []string
	failOn    string
}

func newFakeEnv() *fakeEnv {
	return &fakeEnv{
		hooks: hook.NewRegistry(),
		sink:  uitest.New(),
		echo:  true,
	}
}

func (f *fakeEnv) Spam(name string, args hook.Args) []hook.Result {
	return f.hooks.Spam(name, args)
}

func (f *fakeEnv) SetEcho(on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.echo = on
}

func (f *fakeEnv) Sink() ui.Sink { return f.sink }

func (f *fakeEnv) Interpret(text string, internal bool, _ *session.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if text == f.failOn {
		return errors.New("interpret failed: " + text)
	}
	f.interpret = append(f.interpret, fmt.Sprintf("%s|%t", text, internal))
	return nil
}

func (f *fakeEnv) HandleData(_ *session.Session, data string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data = append(f.data, data)
	return nil
}

func (f *fakeEnv) DefaultInput() string { return "#cr" }

// recordEvent appends its label to a shared log when executed.
type recordEvent struct {
	label string
	log   *[]string
}

func (e recordEvent) Execute(Env) error {
	*e.log = append(*e.log, e.label)
	return nil
}

func (e recordEvent) String() string { return "record:" + e.label }

type failEvent struct{ panics bool }

func (e failEvent) Execute(Env) error {
	if e.panics {
		panic("event blew up")
	}
	return errors.New("event failed")
}

func (failEvent) String() string { return "fail" }

func runUntilShutdown(t *testing.T, d *Dispatcher) {
	t.Helper()
	d.Enqueue(Shutdown{})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.ErrorIs(t, d.Run(ctx), ErrShutdown)
}

func TestDispatcher_ExecutesInFIFOOrder(t *testing.T) {
	d := NewDispatcher(newFakeEnv())

	var log []string
	for _, label := range []string{"a", "b", "c"} {
		d.Enqueue(recordEvent{label: label, log: &log})
	}
	runUntilShutdown(t, d)

	assert.Equal(t, []string{"a", "b", "c"}, log)
	stats := d.Stats()
	assert.Equal(t, uint64(4), stats.Enqueued)
	assert.Equal(t, uint64(4), stats.Processed)
	assert.Equal(t, 0, stats.Pending)
}

func TestDispatcher_PerProducerOrder(t *testing.T) {
	d := NewDispatcher(newFakeEnv())

	var log []string
	var wg sync.WaitGroup
	for _, p := range []string{"x", "y"} {
		wg.Add(1)
		go func(p string) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				d.Enqueue(recordEvent{label: fmt.Sprintf("%s%02d", p, i), log: &log})
			}
		}(p)
	}
	wg.Wait()
	runUntilShutdown(t, d)

	require.Len(t, log, 100)
	last := map[byte]string{}
	for _, label := range log {
		prev, ok := last[label[0]]
		if ok {
			assert.Less(t, prev, label, "producer order must be preserved")
		}
		last[label[0]] = label
	}
}

func TestDispatcher_FailureDoesNotStopLoop(t *testing.T) {
	env := newFakeEnv()
	d := NewDispatcher(env)

	var log []string
	d.Enqueue(failEvent{})
	d.Enqueue(failEvent{panics: true})
	d.Enqueue(recordEvent{label: "after", log: &log})
	runUntilShutdown(t, d)

	assert.Equal(t, []string{"after"}, log)
	assert.True(t, env.sink.Contains(ui.KindError, "event failed"))
	assert.True(t, env.sink.Contains(ui.KindDiagnostic, "event blew up"))

	stats := d.Stats()
	assert.Equal(t, uint64(2), stats.Failed)
	assert.Equal(t, uint64(1), stats.Panicked)
}

func TestDispatcher_CustomReporter(t *testing.T) {
	var reported []*ExecutionError
	d := NewDispatcher(newFakeEnv(), WithReporter(func(e *ExecutionError) {
		reported = append(reported, e)
	}))

	d.Enqueue(failEvent{})
	runUntilShutdown(t, d)

	require.Len(t, reported, 1)
	assert.ErrorIs(t, reported[0], ErrExecution)
	assert.Equal(t, "fail", reported[0].Event)
	assert.Equal(t, uint64(1), reported[0].Seq)
}

func TestDispatcher_ShutdownDoesNotDrain(t *testing.T) {
	d := NewDispatcher(newFakeEnv())

	var log []string
	d.Enqueue(recordEvent{label: "before", log: &log})
	d.Enqueue(Shutdown{})
	d.Enqueue(recordEvent{label: "after", log: &log})

	require.ErrorIs(t, d.Run(context.Background()), ErrShutdown)
	assert.Equal(t, []string{"before"}, log)
	assert.Equal(t, 1, d.Stats().Pending)
}

func TestDispatcher_StopsOnContextCancel(t *testing.T) {
	d := NewDispatcher(newFakeEnv())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	require.Eventually(t, d.IsRunning, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, d.Run(ctx), ErrAlreadyRunning)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestDispatcher_CloseDrainsThenStops(t *testing.T) {
	d := NewDispatcher(newFakeEnv())

	var log []string
	d.Enqueue(recordEvent{label: "queued", log: &log})
	d.Close()
	d.Enqueue(recordEvent{label: "late", log: &log})

	assert.ErrorIs(t, d.Run(context.Background()), ErrQueueClosed)
	assert.Equal(t, []string{"queued"}, log)
	assert.Equal(t, uint64(1), d.Stats().Dropped)
}

func TestEchoScenario(t *testing.T) {
	env := newFakeEnv()

	var seen []hook.Args
	env.hooks.Subscribe(hook.MudEcho, func(args hook.Args) error {
		seen = append(seen, args)
		return nil
	})

	d := NewDispatcher(env)
	d.Enqueue(EchoToggle{On: false})
	d.Enqueue(UserInput{Text: "password123", Internal: false})
	d.Enqueue(EchoToggle{On: true})
	runUntilShutdown(t, d)

	assert.Equal(t, []hook.Args{{"yesno": false}, {"yesno": true}}, seen)
	assert.True(t, env.echo)
	assert.Equal(t, []string{"password123|false"}, env.interpret)
}

func TestUserInput_EchoesAndNormalizesEmpty(t *testing.T) {
	env := newFakeEnv()

	require.NoError(t, UserInput{Text: "look"}.Execute(env))
	require.NoError(t, UserInput{Text: ""}.Execute(env))
	require.NoError(t, UserInput{Text: "#load x", Internal: true}.Execute(env))

	assert.Equal(t, []string{"look", "#cr"}, env.sink.Texts(ui.KindOutput))
	assert.Equal(t, []string{"look|false", "#cr|false", "#load x|true"}, env.interpret)
}

func TestUserInput_InterpretErrorIsReturned(t *testing.T) {
	env := newFakeEnv()
	env.failOn = "bad"
	assert.EqualError(t, UserInput{Text: "bad"}.Execute(env), "interpret failed: bad")
}

func TestIncomingData_SpamsAndRoutes(t *testing.T) {
	env := newFakeEnv()
	var got hook.Args
	env.hooks.Subscribe(hook.FromMud, func(args hook.Args) error {
		got = args
		return nil
	})

	require.NoError(t, IncomingData{Data: "You see a troll.\n"}.Execute(env))
	assert.Equal(t, "You see a troll.\n", got["data"])
	assert.Equal(t, []string{"You see a troll.\n"}, env.data)
}

func TestOutputAndHookSpam(t *testing.T) {
	env := newFakeEnv()

	var toUser, custom []hook.Args
	env.hooks.Subscribe(hook.ToUser, func(args hook.Args) error {
		toUser = append(toUser, args)
		return nil
	})
	env.hooks.Subscribe("custom_hook", func(args hook.Args) error {
		custom = append(custom, args)
		return nil
	})

	require.NoError(t, Output{Text: "hello"}.Execute(env))
	require.NoError(t, HookSpam{Hook: "custom_hook", Args: hook.Args{"n": 1}}.Execute(env))

	assert.Equal(t, []string{"hello"}, env.sink.Texts(ui.KindOutput))
	assert.Equal(t, []hook.Args{{"text": "hello"}}, toUser)
	assert.Equal(t, []hook.Args{{"n": 1}}, custom)
}

func TestHookSpam_SubscriberFailureIsNotEventFailure(t *testing.T) {
	env := newFakeEnv()
	env.hooks.Subscribe("h", func(hook.Args) error { return errors.New("nope") })

	assert.NoError(t, HookSpam{Hook: "h"}.Execute(env))
}

func TestEventStrings(t *testing.T) {
	assert.Equal(t, "ShutdownEvent", Shutdown{}.String())
	assert.Equal(t, "EchoToggleEvent: true", EchoToggle{On: true}.String())
	assert.Equal(t, "HookSpamEvent: timer_hook", HookSpam{Hook: hook.Timer}.String())
	assert.Contains(t, IncomingData{Data: "x"}.String(), "-")
}
