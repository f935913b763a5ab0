// Package app wires the engine together: the event dispatcher, hooks,
// commands, extensions, the script console, sessions and the UI. It
// implements the environment events execute against and owns the
// producers that feed the dispatcher.
package app

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dshills/mudcore/internal/command"
	"github.com/dshills/mudcore/internal/config"
	"github.com/dshills/mudcore/internal/event"
	"github.com/dshills/mudcore/internal/extension"
	"github.com/dshills/mudcore/internal/hook"
	"github.com/dshills/mudcore/internal/logging"
	"github.com/dshills/mudcore/internal/script"
	"github.com/dshills/mudcore/internal/session"
	"github.com/dshills/mudcore/internal/ui"
)

// Application is the central coordinator for all components.
type Application struct {
	cfg    *config.Config
	opts   Options
	logger *logging.Logger
	logOut io.Closer

	ui         ui.UI
	sessions   *session.Manager
	hooks      *hook.Registry
	commands   *command.Registry
	interp     *command.Interpreter
	dispatcher *event.Dispatcher
	extensions *extension.Manager
	lua        *extension.LuaResolver
	console    *script.Console
	watcher    *extension.Watcher
	metrics    *Metrics

	echo    atomic.Bool
	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Options configures the application.
type Options struct {
	// Config holds the settings. Nil means config.Default().
	Config *config.Config

	// UI replaces the UI selected by Config.UI.Kind.
	UI ui.UI

	// Logger replaces the logger built from Config.Logging.
	Logger *logging.Logger

	// Dialer replaces the network dialer used for sessions.
	Dialer session.Dialer

	// Builtins are Go extension units available besides "advanced".
	Builtins extension.Builtins
}

// New creates the application. Nothing runs until Run is called.
func New(opts Options) (*Application, error) {
	if opts.Config == nil {
		opts.Config = config.Default()
	}
	app := &Application{
		cfg:     opts.Config,
		opts:    opts,
		metrics: NewMetrics(),
	}
	app.echo.Store(opts.Config.Engine.Echo)

	if err := newBootstrapper(app).bootstrap(); err != nil {
		return nil, err
	}
	return app, nil
}

// Run loads the startup extensions, starts the producers and drains the
// event queue on the calling goroutine until a Shutdown event executes or
// ctx is done. It then tears everything down.
func (app *Application) Run(ctx context.Context) error {
	if !app.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer app.running.Store(false)

	ctx, app.cancel = context.WithCancel(ctx)
	defer app.cancel()
	app.ctx = ctx

	// The dispatcher is not running yet, so loading here is still
	// single-threaded.
	app.startup(ctx)
	app.startProducers(ctx)

	err := app.dispatcher.Run(ctx)
	switch {
	case errors.Is(err, event.ErrShutdown), errors.Is(err, context.Canceled):
		err = nil
	case errors.Is(err, event.ErrQueueClosed):
		err = nil
	}

	app.shutdown()
	return err
}

// startup loads the built-in unit, the autoload list and the user unit,
// then opens the startup connection.
func (app *Application) startup(ctx context.Context) {
	ids := append([]string{AdvancedUnit}, app.cfg.Extensions.Autoload...)
	for _, id := range ids {
		if app.extensions.IsLoaded(id) {
			continue
		}
		if err := app.extensions.Load(id, false); err != nil {
			app.report(err)
		}
	}

	if id := app.cfg.Extensions.UserUnit; id != "" && !app.extensions.IsLoaded(id) {
		if _, err := app.lua.Find(id); err == nil {
			if err := app.extensions.Load(id, false); err != nil {
				app.report(err)
			}
		} else {
			app.logger.Debug("no user unit %q: %v", id, err)
		}
	}

	if addr := app.cfg.Session.Connect; addr != "" {
		app.connect(ctx, app.cfg.Session.Name, addr)
	}
}

// shutdown tears down in reverse start order. It runs on the goroutine
// that ran the dispatcher.
func (app *Application) shutdown() {
	app.cancel()
	if app.watcher != nil {
		_ = app.watcher.Close()
	}

	app.hooks.Spam(hook.Shutdown, hook.Args{})

	if err := app.extensions.UnloadAll(); err != nil {
		app.logger.Warn("%v", err)
	}
	_ = app.console.Close()

	if err := app.sessions.CloseAll(); err != nil {
		app.logger.Warn("closing sessions: %v", err)
	}
	app.dispatcher.Close()

	s := app.dispatcher.Stats()
	m := app.metrics.Snapshot()
	app.logger.WithFields(map[string]any{
		"enqueued":  s.Enqueued,
		"processed": s.Processed,
		"failed":    s.Failed,
		"panicked":  s.Panicked,
		"dropped":   s.Dropped,
		"pending":   s.Pending,
		"inputs":    m.InputCount,
		"bytes_in":  m.DataBytes,
	}).Info("shutdown after %s", m.Uptime.Round(time.Second))

	_ = app.ui.Close()
	app.wg.Wait()

	if app.logOut != nil {
		_ = app.logOut.Close()
	}
}

// runContext returns the context of the current Run.
func (app *Application) runContext() context.Context {
	if app.ctx == nil {
		return context.Background()
	}
	return app.ctx
}

// Enqueue hands e to the dispatcher. It may be called from any goroutine.
func (app *Application) Enqueue(e event.Event) {
	app.dispatcher.Enqueue(e)
}

// Echo reports the current echo state.
func (app *Application) Echo() bool {
	return app.echo.Load()
}

// IsRunning returns true if the application is running.
func (app *Application) IsRunning() bool {
	return app.running.Load()
}

// Config returns the configuration.
func (app *Application) Config() *config.Config {
	return app.cfg
}

// Dispatcher returns the dispatcher.
func (app *Application) Dispatcher() *event.Dispatcher {
	return app.dispatcher
}

// Hooks returns the hook registry.
func (app *Application) Hooks() *hook.Registry {
	return app.hooks
}

// Commands returns the command registry.
func (app *Application) Commands() *command.Registry {
	return app.commands
}

// Extensions returns the extension manager.
func (app *Application) Extensions() *extension.Manager {
	return app.extensions
}

// Sessions returns the session manager.
func (app *Application) Sessions() *session.Manager {
	return app.sessions
}

// Console returns the script console.
func (app *Application) Console() *script.Console {
	return app.console
}

// Metrics returns the application's metrics.
func (app *Application) Metrics() *Metrics {
	return app.metrics
}
