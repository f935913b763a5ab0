package extension

import (
	"fmt"

	"github.com/dshills/mudcore/internal/command"
	"github.com/dshills/mudcore/internal/event"
	"github.com/dshills/mudcore/internal/hook"
	"github.com/dshills/mudcore/internal/logging"
	"github.com/dshills/mudcore/internal/ui"
)

type subscription struct {
	hook string
	id   hook.ID
}

// API is what a unit uses to talk to the engine. Every command and hook
// subscription made through it is attributed to the unit and removed when
// the unit is unloaded or replaced.
type API struct {
	id       string
	m        *Manager
	logger   *logging.Logger
	commands []string
	hooks    []subscription
	retired  bool
}

func newAPI(m *Manager, id string) *API {
	return &API{
		id:     id,
		m:      m,
		logger: m.logger.WithField("extension", id),
	}
}

// ID returns the id of the extension that owns this API.
func (a *API) ID() string {
	return a.id
}

// AddCommand registers a command owned by the extension. spec uses the
// argument spec syntax of command.ParseSpec; an empty spec leaves argument
// parsing to the handler.
func (a *API) AddCommand(name string, h command.Handler, spec, help string) error {
	if a.retired {
		return &UnknownExtensionError{ID: a.id}
	}

	var parsed *command.Spec
	if spec != "" {
		s, err := command.ParseSpec(spec)
		if err != nil {
			return err
		}
		parsed = s
	}

	err := a.m.commands.Add(command.Command{
		Name:    name,
		Handler: h,
		Spec:    parsed,
		Source:  a.id,
		Help:    help,
	})
	if err != nil {
		return err
	}
	a.commands = append(a.commands, name)
	a.logger.Debug("added command %s", name)
	return nil
}

// RemoveCommand unbinds a command the extension owns.
func (a *API) RemoveCommand(name string) error {
	cmd, err := a.m.commands.Lookup(name)
	if err != nil {
		return err
	}
	if cmd.Source != a.id {
		return fmt.Errorf("%w: %s belongs to %s", ErrNotOwner, name, cmd.Source)
	}
	if err := a.m.commands.Remove(name); err != nil {
		return err
	}
	for i, n := range a.commands {
		if n == name {
			a.commands = append(a.commands[:i], a.commands[i+1:]...)
			break
		}
	}
	return nil
}

// Subscribe registers fn on the named hook.
func (a *API) Subscribe(name string, fn hook.Func) (hook.ID, error) {
	if a.retired {
		return 0, &UnknownExtensionError{ID: a.id}
	}
	id := a.m.hooks.Subscribe(name, fn)
	a.hooks = append(a.hooks, subscription{hook: name, id: id})
	return id, nil
}

// Unsubscribe removes a subscription made through Subscribe.
func (a *API) Unsubscribe(name string, id hook.ID) bool {
	for i, s := range a.hooks {
		if s.hook == name && s.id == id {
			a.hooks = append(a.hooks[:i], a.hooks[i+1:]...)
			return a.m.hooks.Unsubscribe(name, id)
		}
	}
	return false
}

// Sink returns the UI sink.
func (a *API) Sink() ui.Sink {
	return a.m.sink
}

// Enqueue hands e to the dispatcher.
func (a *API) Enqueue(e event.Event) {
	a.m.enqueue(e)
}

// Send queues text as internal user input, so it is interpreted on the
// dispatcher after the current event.
func (a *API) Send(text string) {
	a.m.enqueue(event.UserInput{Text: text, Internal: true})
}

// Logger returns a logger tagged with the extension id.
func (a *API) Logger() *logging.Logger {
	return a.logger
}

// retire removes everything registered through the API.
func (a *API) retire() []string {
	removed := a.m.commands.RemoveNames(a.id, a.commands)
	for _, s := range a.hooks {
		a.m.hooks.Unsubscribe(s.hook, s.id)
	}
	a.commands = nil
	a.hooks = nil
	a.retired = true
	return removed
}
