package extension

import (
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"sync"
	"time"

	"github.com/dshills/mudcore/internal/command"
	"github.com/dshills/mudcore/internal/event"
	"github.com/dshills/mudcore/internal/hook"
	"github.com/dshills/mudcore/internal/logging"
	"github.com/dshills/mudcore/internal/lua"
	"github.com/dshills/mudcore/internal/ui"
)

// Enqueuer accepts events for the dispatcher.
type Enqueuer interface {
	Enqueue(e event.Event)
}

// Reporter receives the non-fatal failures of lifecycle callbacks.
type Reporter func(err error)

// Manager loads, reloads and unloads extensions.
//
// Load and Unload call into units and mutate the command and hook
// registries, so they must run on the dispatcher goroutine. The read-only
// accessors are safe from any goroutine.
type Manager struct {
	mu     sync.RWMutex
	loaded map[string]*Extension
	// stale holds instances taken out of the loaded set by a reload whose
	// resolve failed. Their commands stay bound until the next successful
	// load of the same id.
	stale map[string]*Extension
	order []string

	commands *command.Registry
	hooks    *hook.Registry
	resolver Resolver

	sink     ui.Sink
	enqueuer Enqueuer
	reporter Reporter
	logger   *logging.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithSink sets the sink for load and unload messages.
func WithSink(s ui.Sink) Option {
	return func(m *Manager) {
		if s != nil {
			m.sink = s
		}
	}
}

// WithEnqueuer sets where API.Send and API.Enqueue deliver events.
func WithEnqueuer(e Enqueuer) Option {
	return func(m *Manager) {
		m.enqueuer = e
	}
}

// WithReporter replaces the default reporter, which writes to the sink.
func WithReporter(r Reporter) Option {
	return func(m *Manager) {
		m.reporter = r
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewManager creates a manager that registers into commands and hooks and
// resolves ids with resolver.
func NewManager(commands *command.Registry, hooks *hook.Registry, resolver Resolver, opts ...Option) *Manager {
	m := &Manager{
		loaded:   make(map[string]*Extension),
		stale:    make(map[string]*Extension),
		commands: commands,
		hooks:    hooks,
		resolver: resolver,
		sink:     ui.Discard,
		logger:   logging.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.reporter == nil {
		m.reporter = m.reportToSink
	}
	return m
}

// Load loads id. If id is already loaded and reload is false, Load only
// reports it; with reload true the loaded instance is unloaded and replaced.
//
// A resolve failure returns a LoadError and leaves id unloaded. When that
// happens during a reload, the previous instance's commands stay bound.
// Failures of the unit's callbacks are reported but do not fail the load.
func (m *Manager) Load(id string, reload bool) error {
	log := m.logger.WithField("extension", id)

	m.mu.RLock()
	current, isLoaded := m.loaded[id]
	prev := m.stale[id]
	m.mu.RUnlock()

	if isLoaded {
		if !reload {
			m.sink.WriteMessage(fmt.Sprintf("load: extension %s has already been loaded.", id))
			return nil
		}
		if u, ok := current.Unit.(Unloader); ok {
			if stack, err := protect(u.OnUnload); err != nil {
				m.reporter(&UnloadError{ID: id, Err: err, Panicked: stack != nil, Stack: stack})
			}
		}
		m.mu.Lock()
		m.dropLocked(id)
		current.State = StateUnloaded
		m.stale[id] = current
		m.mu.Unlock()
		prev = current
		m.sink.WriteMessage(fmt.Sprintf("load: reloading %s.", id))
	}

	var unit Unit
	stack, err := protect(func() error {
		var rerr error
		unit, rerr = m.resolver.Resolve(id)
		return rerr
	})
	if err != nil {
		log.Warn("resolve failed: %v", err)
		return &LoadError{ID: id, Phase: PhaseResolve, Err: err, Panicked: stack != nil, Stack: stack}
	}

	if prev != nil {
		m.mu.Lock()
		delete(m.stale, id)
		m.mu.Unlock()
		m.retire(prev)
	}

	ext := &Extension{ID: id, Unit: unit, api: newAPI(m, id)}

	if prev != nil {
		if r, ok := unit.(Reloader); ok {
			if stack, err := protect(func() error { return r.OnReloadFromPrevious(prev.Unit) }); err != nil {
				m.reporter(&LoadError{ID: id, Phase: PhaseReload, Err: err, Panicked: stack != nil, Stack: stack})
			}
		}
		m.closeUnit(prev)
	}

	if l, ok := unit.(Loader); ok {
		if stack, err := protect(func() error { return l.OnLoad(ext.api) }); err != nil {
			m.reporter(&LoadError{ID: id, Phase: PhaseLoad, Err: err, Panicked: stack != nil, Stack: stack})
		}
	}

	ext.State = StateLoaded
	ext.LoadedAt = time.Now()

	m.mu.Lock()
	m.loaded[id] = ext
	m.order = append(m.order, id)
	m.mu.Unlock()

	log.Info("loaded from %s with %d commands", unit.Origin(), len(ext.api.commands))
	m.sink.WriteMessage(fmt.Sprintf("load: extension %s loaded.", id))
	return nil
}

// Unload calls the extension's unload callback, removes every command and
// hook subscription attributed to it and marks it unloaded. A failing
// callback is reported and the unload proceeds. An id left stale by a
// failed reload has its remaining commands and hooks removed.
func (m *Manager) Unload(id string) error {
	m.mu.Lock()
	ext, ok := m.loaded[id]
	if ok {
		m.dropLocked(id)
	}
	stale, isStale := m.stale[id]
	if !ok && isStale {
		delete(m.stale, id)
	}
	m.mu.Unlock()

	if !ok {
		if !isStale {
			return &UnknownExtensionError{ID: id}
		}
		// Its unload callback already ran when the reload started.
		removed := m.retire(stale)
		m.closeUnit(stale)
		m.logger.WithField("extension", id).Info("unloaded stale instance, removed %d commands", len(removed))
		m.sink.WriteMessage(fmt.Sprintf("unload: extension %s unloaded.", id))
		return nil
	}

	if u, ok := ext.Unit.(Unloader); ok {
		if stack, err := protect(u.OnUnload); err != nil {
			m.reporter(&UnloadError{ID: id, Err: err, Panicked: stack != nil, Stack: stack})
		}
	}
	removed := m.retire(ext)
	m.closeUnit(ext)
	ext.State = StateUnloaded

	m.logger.WithField("extension", id).Info("unloaded, removed %d commands", len(removed))
	m.sink.WriteMessage(fmt.Sprintf("unload: extension %s unloaded.", id))
	return nil
}

// UnloadAll unloads every extension in reverse load order, then releases
// any instances left over from failed reloads.
func (m *Manager) UnloadAll() error {
	m.mu.RLock()
	ids := make([]string, len(m.order))
	for i, id := range m.order {
		ids[len(m.order)-1-i] = id
	}
	m.mu.RUnlock()

	var errs []error
	for _, id := range ids {
		if err := m.Unload(id); err != nil {
			errs = append(errs, err)
		}
	}

	m.mu.Lock()
	stale := m.stale
	m.stale = make(map[string]*Extension)
	m.mu.Unlock()
	for _, ext := range stale {
		m.retire(ext)
		m.closeUnit(ext)
	}

	if len(errs) > 0 {
		return fmt.Errorf("failed to unload %d extensions: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

// Get returns the loaded extension id.
func (m *Manager) Get(id string) (*Extension, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ext, ok := m.loaded[id]
	return ext, ok
}

// IsLoaded reports whether id is loaded.
func (m *Manager) IsLoaded(id string) bool {
	_, ok := m.Get(id)
	return ok
}

// IsKnown reports whether id is loaded or was left stale by a failed
// reload. Either way its files are worth reloading.
func (m *Manager) IsKnown(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, loaded := m.loaded[id]
	_, stale := m.stale[id]
	return loaded || stale
}

// List returns the loaded extensions in load order.
func (m *Manager) List() []*Extension {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Extension, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.loaded[id])
	}
	return out
}

// dropLocked removes id from the loaded set. Callers hold m.mu.
func (m *Manager) dropLocked(id string) {
	delete(m.loaded, id)
	for i, o := range m.order {
		if o == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// retire unbinds the commands and hooks attributed to ext.
func (m *Manager) retire(ext *Extension) []string {
	removed := ext.api.retire()
	if len(removed) > 0 {
		m.logger.WithField("extension", ext.ID).Debug("removed commands %v", removed)
	}
	return removed
}

func (m *Manager) closeUnit(ext *Extension) {
	c, ok := ext.Unit.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		m.logger.WithField("extension", ext.ID).Warn("close failed: %v", err)
	}
}

func (m *Manager) enqueue(e event.Event) {
	if m.enqueuer == nil {
		m.logger.Warn("no enqueuer, dropping %s", e)
		return
	}
	m.enqueuer.Enqueue(e)
}

func (m *Manager) reportToSink(err error) {
	m.logger.Warn("%v", err)

	var (
		lerr *LoadError
		uerr *UnloadError
	)
	switch {
	case errors.As(err, &lerr) && lerr.Panicked:
		m.sink.WriteDiagnostic(err.Error(), string(lerr.Stack))
	case errors.As(err, &uerr) && uerr.Panicked:
		m.sink.WriteDiagnostic(err.Error(), string(uerr.Stack))
	case lua.Traceback(err) != "":
		m.sink.WriteDiagnostic(err.Error(), lua.Traceback(err))
	default:
		m.sink.WriteError(err.Error())
	}
}

// protect runs fn, converting a panic into an error. stack is non-nil
// only when fn panicked.
func protect(fn func() error) (stack []byte, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
			stack = debug.Stack()
		}
	}()
	return nil, fn()
}
