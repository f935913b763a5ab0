package event

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/dshills/mudcore/internal/logging"
)

// Reporter receives every event execution failure.
type Reporter func(err *ExecutionError)

// Dispatcher owns the event queue and executes events one at a time, in
// queue order, on the goroutine that calls Run.
type Dispatcher struct {
	queue    *Queue
	env      Env
	reporter Reporter
	logger   *logging.Logger

	running atomic.Bool
	seq     atomic.Uint64

	// Stats
	enqueued    atomic.Uint64
	processed   atomic.Uint64
	failed      atomic.Uint64
	panicked    atomic.Uint64
	dropped     atomic.Uint64
	totalTimeNs atomic.Int64
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithReporter replaces the default failure reporter, which writes to the
// env's UI sink.
func WithReporter(r Reporter) Option {
	return func(d *Dispatcher) {
		d.reporter = r
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithQueue sets the queue the dispatcher drains.
func WithQueue(q *Queue) Option {
	return func(d *Dispatcher) {
		if q != nil {
			d.queue = q
		}
	}
}

// NewDispatcher creates a dispatcher executing events against env.
func NewDispatcher(env Env, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		queue:  NewQueue(),
		env:    env,
		logger: logging.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.reporter == nil {
		d.reporter = d.reportToSink
	}
	return d
}

// Enqueue appends e to the queue. It never blocks and may be called from
// any goroutine. Events enqueued after the queue is closed are dropped.
func (d *Dispatcher) Enqueue(e Event) {
	if err := d.queue.Push(e); err != nil {
		d.dropped.Add(1)
		d.logger.Debug("dropped event %v: %v", e, err)
		return
	}
	d.enqueued.Add(1)
}

// Run executes queued events until a Shutdown event is executed, ctx is
// done, or the queue is closed and drained. It returns ErrShutdown,
// ctx.Err() or ErrQueueClosed respectively. Failures of individual events
// are reported and do not stop the loop.
func (d *Dispatcher) Run(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer d.running.Store(false)

	for {
		e, err := d.queue.Pop(ctx)
		if err != nil {
			return err
		}

		seq := d.seq.Add(1)
		err = d.execute(seq, e)
		d.processed.Add(1)
		if err == nil {
			continue
		}
		if errors.Is(err, ErrShutdown) {
			d.logger.Info("shutdown after %d events, %d still queued", seq, d.queue.Len())
			return ErrShutdown
		}

		var xerr *ExecutionError
		if errors.As(err, &xerr) {
			d.failed.Add(1)
			if xerr.Panicked {
				d.panicked.Add(1)
			}
			d.report(xerr)
		}
	}
}

// execute runs one event with panic recovery and timing.
func (d *Dispatcher) execute(seq uint64, e Event) (err error) {
	start := time.Now()

	defer func() {
		d.totalTimeNs.Add(int64(time.Since(start)))

		if r := recover(); r != nil {
			err = &ExecutionError{
				Event:    e.String(),
				Seq:      seq,
				Err:      fmt.Errorf("%v", r),
				Panicked: true,
				Stack:    debug.Stack(),
			}
		}
	}()

	if execErr := e.Execute(d.env); execErr != nil {
		if errors.Is(execErr, ErrShutdown) {
			return execErr
		}
		return &ExecutionError{Event: e.String(), Seq: seq, Err: execErr}
	}
	return nil
}

func (d *Dispatcher) report(xerr *ExecutionError) {
	d.logger.WithField("event", xerr.Event).Error("%v", xerr.Err)

	// Protect the loop from a panicking reporter.
	defer func() { _ = recover() }()
	d.reporter(xerr)
}

func (d *Dispatcher) reportToSink(xerr *ExecutionError) {
	if d.env == nil {
		return
	}
	sink := d.env.Sink()
	if xerr.Panicked {
		sink.WriteDiagnostic(xerr.Error(), string(xerr.Stack))
		return
	}
	sink.WriteError(xerr.Error())
}

// Queue returns the dispatcher's queue.
func (d *Dispatcher) Queue() *Queue {
	return d.queue
}

// Close closes the queue. A running dispatcher drains what is left and
// returns ErrQueueClosed.
func (d *Dispatcher) Close() {
	d.queue.Close()
}

// IsRunning reports whether Run is active.
func (d *Dispatcher) IsRunning() bool {
	return d.running.Load()
}

// Stats returns dispatcher statistics.
func (d *Dispatcher) Stats() Stats {
	processed := d.processed.Load()
	totalNs := d.totalTimeNs.Load()

	var avg time.Duration
	if processed > 0 {
		avg = time.Duration(totalNs / int64(processed))
	}

	return Stats{
		Enqueued:    d.enqueued.Load(),
		Processed:   processed,
		Failed:      d.failed.Load(),
		Panicked:    d.panicked.Load(),
		Dropped:     d.dropped.Load(),
		Pending:     d.queue.Len(),
		AverageTime: avg,
	}
}

// Stats contains dispatcher statistics.
type Stats struct {
	Enqueued    uint64
	Processed   uint64
	Failed      uint64
	Panicked    uint64
	Dropped     uint64
	Pending     int
	AverageTime time.Duration
}
