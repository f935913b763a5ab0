// Package event provides the engine's event queue and dispatcher.
//
// Producers on any goroutine (the user interface, session readers, timers)
// enqueue events; a single dispatcher goroutine executes them one at a time
// in queue order. Because every side effect runs on that one goroutine,
// hook fan-outs, command handlers and extension loads never run
// concurrently with each other.
//
// # Events
//
//   - Shutdown: stops the dispatcher; events behind it are not executed.
//   - EchoToggle: sets the echo state and spams mudecho_hook.
//   - IncomingData: spams from_mud_hook and hands the data to the engine.
//   - UserInput: echoes non-internal input and interprets it.
//   - Output: writes text to the UI in order with other events.
//   - HookSpam: runs a hook fan-out on the dispatcher goroutine.
//
// # Failure Handling
//
// An event that returns an error or panics is reported through the
// dispatcher's Reporter and the loop moves on to the next event.
//
// # Usage
//
//	d := event.NewDispatcher(env, event.WithLogger(logger))
//	go producer(d)
//	err := d.Run(ctx) // returns event.ErrShutdown after a Shutdown event
package event
