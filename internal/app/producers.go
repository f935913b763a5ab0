package app

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/dshills/mudcore/internal/event"
	"github.com/dshills/mudcore/internal/extension"
	"github.com/dshills/mudcore/internal/hook"
)

// startProducers starts every goroutine that feeds the dispatcher besides
// the session readers.
func (app *Application) startProducers(ctx context.Context) {
	app.startInput(ctx)

	if interval := app.cfg.Engine.TimerInterval.Std(); interval > 0 {
		app.startTimer(ctx, interval)
	}

	if app.cfg.Extensions.AutoReload {
		if err := app.startWatcher(); err != nil {
			app.ui.WriteError("auto-reload disabled: " + err.Error())
		}
	}
}

// startInput runs the UI's input loop. The end of input shuts the client
// down.
func (app *Application) startInput(ctx context.Context) {
	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		err := app.ui.Run(ctx, func(line string) {
			app.Enqueue(event.UserInput{Text: line, Session: app.sessions.Current()})
		})
		if ctx.Err() != nil {
			return
		}
		if err != nil && !errors.Is(err, io.EOF) {
			app.logger.Error("input: %v", err)
		}
		app.Enqueue(event.Shutdown{})
	}()
}

// startTimer spams timer_hook once per interval through the queue.
func (app *Application) startTimer(ctx context.Context, interval time.Duration) {
	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tick := app.metrics.RecordTick()
				app.Enqueue(event.HookSpam{Hook: hook.Timer, Args: hook.Args{"tick": tick}})
			}
		}
	}()
}

// startWatcher reloads changed Lua units by queuing an internal load
// command, so the reload itself runs on the dispatcher.
func (app *Application) startWatcher() error {
	w, err := extension.NewWatcher(
		app.lua.Paths(),
		app.extensions.IsKnown,
		func(id string) {
			app.Enqueue(event.UserInput{
				Text:     app.interp.CommandChar() + "load " + id,
				Internal: true,
			})
		},
		extension.WithWatcherLogger(app.logger.WithComponent("watcher")),
	)
	if err != nil {
		return err
	}
	app.watcher = w
	app.logger.Info("watching %v for changes", w.Roots())
	return nil
}
