package app

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dshills/mudcore/internal/command"
	"github.com/dshills/mudcore/internal/config"
	"github.com/dshills/mudcore/internal/event"
	"github.com/dshills/mudcore/internal/extension"
	"github.com/dshills/mudcore/internal/hook"
	"github.com/dshills/mudcore/internal/logging"
	"github.com/dshills/mudcore/internal/lua"
	"github.com/dshills/mudcore/internal/script"
	"github.com/dshills/mudcore/internal/session"
	"github.com/dshills/mudcore/internal/ui"
	"github.com/dshills/mudcore/internal/ui/tcellui"
)

// bootstrapper handles component initialization with proper cleanup on failure.
type bootstrapper struct {
	app       *Application
	initOrder []string
}

func newBootstrapper(app *Application) *bootstrapper {
	return &bootstrapper{
		app:       app,
		initOrder: make([]string, 0, 8),
	}
}

// bootstrap initializes all components in dependency order.
// On failure, it cleans up already-initialized components.
func (b *bootstrapper) bootstrap() error {
	steps := []struct {
		name string
		init func() error
	}{
		{"logger", b.initLogger},
		{"ui", b.initUI},
		{"sessions", b.initSessions},
		{"registries", b.initRegistries},
		{"dispatcher", b.initDispatcher},
		{"extensions", b.initExtensions},
		{"console", b.initConsole},
	}

	for _, step := range steps {
		if err := step.init(); err != nil {
			b.cleanup()
			return &InitError{Component: step.name, Err: err}
		}
		b.initOrder = append(b.initOrder, step.name)
	}
	return nil
}

func (b *bootstrapper) initLogger() error {
	app := b.app
	if app.opts.Logger != nil {
		app.logger = app.opts.Logger
		return nil
	}

	cfg := logging.DefaultConfig()
	cfg.Level = logging.ParseLevel(app.cfg.Logging.Level)

	switch {
	case app.cfg.Logging.File != "":
		path := app.cfg.Logging.File
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		cfg.Output = f
		app.logOut = f
	case app.cfg.UI.Kind == config.UITcell:
		// stderr would draw over the screen.
		cfg.Output = io.Discard
	}

	app.logger = logging.New(cfg)
	return nil
}

func (b *bootstrapper) initUI() error {
	app := b.app
	if app.opts.UI != nil {
		app.ui = app.opts.UI
		return nil
	}

	switch app.cfg.UI.Kind {
	case config.UIText, "":
		app.ui = ui.NewText()
	case config.UITcell:
		s, err := tcellui.New(
			tcellui.WithPrompt(app.cfg.UI.Prompt),
			tcellui.WithLogger(app.logger.WithComponent("ui")),
		)
		if err != nil {
			return err
		}
		app.ui = s
	default:
		return fmt.Errorf("%w: %q", ErrUnknownUI, app.cfg.UI.Kind)
	}
	return nil
}

func (b *bootstrapper) initSessions() error {
	app := b.app
	opts := []session.Option{
		session.WithCharset(app.cfg.Session.Encoding),
		session.WithLogger(app.logger.WithComponent("session")),
	}
	if app.opts.Dialer != nil {
		opts = append(opts, session.WithDialer(app.opts.Dialer))
	}

	m, err := session.NewManager(opts...)
	if err != nil {
		return err
	}
	app.sessions = m
	return nil
}

func (b *bootstrapper) initRegistries() error {
	app := b.app
	app.hooks = hook.NewRegistry(
		hook.WithReporter(func(err *hook.SubscriberError) {
			if err.Panicked {
				app.ui.WriteDiagnostic(err.Error(), string(err.Stack))
				return
			}
			if tb := lua.Traceback(err); tb != "" {
				app.ui.WriteDiagnostic(err.Error(), tb)
				return
			}
			app.ui.WriteError(err.Error())
		}),
		hook.WithLogger(app.logger.WithComponent("hooks")),
	)
	app.commands = command.NewRegistry()
	return nil
}

func (b *bootstrapper) initDispatcher() error {
	app := b.app
	app.dispatcher = event.NewDispatcher(app,
		event.WithLogger(app.logger.WithComponent("dispatcher")),
	)
	app.interp = command.NewInterpreter(app.commands,
		command.WithCommandChar(app.cfg.Engine.CommandChar),
		command.WithHistorySize(app.cfg.Engine.HistorySize),
		command.WithSpammer(app.hooks),
		command.WithSender(app.send),
		command.WithInterpreterLogger(app.logger.WithComponent("interpreter")),
	)
	return nil
}

func (b *bootstrapper) initExtensions() error {
	app := b.app

	builtins := extension.Builtins{
		AdvancedUnit: func() (extension.Unit, error) { return &advancedUnit{app: app}, nil },
	}
	for id, f := range app.opts.Builtins {
		if _, exists := builtins[id]; exists {
			return fmt.Errorf("builtin unit %q is reserved", id)
		}
		builtins[id] = f
	}

	app.lua = extension.NewLuaResolver(app.cfg.Extensions.SearchPaths(), extension.WithLuaSink(app.ui))
	app.extensions = extension.NewManager(app.commands, app.hooks,
		extension.Chain{builtins, app.lua},
		extension.WithSink(app.ui),
		extension.WithEnqueuer(app.dispatcher),
		extension.WithLogger(app.logger.WithComponent("extensions")),
	)
	return nil
}

func (b *bootstrapper) initConsole() error {
	app := b.app
	app.console = script.NewConsole(
		script.WithSink(app.ui),
		script.WithLogger(app.logger.WithComponent("console")),
		script.WithPrimary(app.userState),
		script.WithSetup(app.installConsoleAPI),
	)
	return nil
}

// cleanup performs cleanup in reverse initialization order.
// Called when bootstrap fails partway through.
func (b *bootstrapper) cleanup() {
	for i := len(b.initOrder) - 1; i >= 0; i-- {
		switch b.initOrder[i] {
		case "ui":
			if b.app.ui != nil && b.app.opts.UI == nil {
				_ = b.app.ui.Close()
			}
		case "sessions":
			_ = b.app.sessions.CloseAll()
		case "logger":
			if b.app.logOut != nil {
				_ = b.app.logOut.Close()
				b.app.logOut = nil
			}
		}
	}
}
