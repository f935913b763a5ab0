package app

import (
	"context"
	"fmt"
	"time"

	"github.com/dshills/mudcore/internal/event"
	"github.com/dshills/mudcore/internal/hook"
	"github.com/dshills/mudcore/internal/session"
	"github.com/dshills/mudcore/internal/ui"
)

// Spam implements event.Env.
func (app *Application) Spam(name string, args hook.Args) []hook.Result {
	return app.hooks.Spam(name, args)
}

// SetEcho implements event.Env.
func (app *Application) SetEcho(on bool) {
	app.echo.Store(on)
	app.logger.Debug("echo %t", on)
}

// Sink implements event.Env.
func (app *Application) Sink() ui.Sink {
	return app.ui
}

// Interpret implements event.Env. Failures are reported to the user here,
// so the dispatcher only sees failures of the reporting itself.
func (app *Application) Interpret(text string, internal bool, ses *session.Session) error {
	if ses == nil {
		ses = app.sessions.Current()
	}
	start := time.Now()
	err := app.interp.Interpret(text, internal, ses)
	app.metrics.RecordInput(internal, time.Since(start))
	if err != nil {
		app.report(err)
	}
	return nil
}

// HandleData implements event.Env: session text goes to the UI.
func (app *Application) HandleData(ses *session.Session, data string) error {
	app.metrics.RecordData(len(data))
	app.ui.WriteOutput(data)
	return nil
}

// DefaultInput implements event.Env.
func (app *Application) DefaultInput() string {
	return app.cfg.Engine.DefaultInput
}

// OnData implements session.Handler. It runs on the session's reader.
func (app *Application) OnData(s *session.Session, data string) {
	app.Enqueue(event.IncomingData{Session: s, Data: data})
}

// OnEcho implements session.Handler.
func (app *Application) OnEcho(s *session.Session, on bool) {
	app.Enqueue(event.EchoToggle{On: on})
}

// OnClose implements session.Handler.
func (app *Application) OnClose(s *session.Session, err error) {
	if rerr := app.sessions.Remove(s.Name()); rerr != nil {
		app.logger.Debug("remove %s: %v", s.Name(), rerr)
	}
	msg := "Lost connection to: " + s.Name()
	if err != nil {
		msg = fmt.Sprintf("%s (%v)", msg, err)
	}
	app.Enqueue(event.Output{Text: msg})
}

// send delivers non-command input to a session.
func (app *Application) send(ses *session.Session, text string) error {
	if ses == nil {
		ses = app.sessions.Current()
	}
	return ses.Send(text)
}

// connect dials addr in the background so the dispatcher never waits on
// the network.
func (app *Application) connect(ctx context.Context, name, addr string) {
	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		s, err := app.sessions.Connect(ctx, name, addr, app)
		if err != nil {
			app.ui.WriteError(err.Error())
			return
		}
		app.ui.WriteMessage(fmt.Sprintf("session: connected to %s.", s))
	}()
}

var (
	_ event.Env       = (*Application)(nil)
	_ session.Handler = (*Application)(nil)
)
