// Package hook provides named extension points with ordered fan-out.
//
// A hook is a name with an ordered list of subscribers. Spam calls every
// current subscriber in registration order; a failing subscriber is
// reported and skipped and never prevents its siblings from running.
package hook

import (
	"fmt"
	"runtime/debug"
	"sort"
	"sync"

	"github.com/dshills/mudcore/internal/logging"
)

// Well-known hook names.
const (
	MudEcho   = "mudecho_hook"
	FromMud   = "from_mud_hook"
	ToUser    = "to_user_hook"
	UserInput = "user_input_hook"
	Timer     = "timer_hook"
	Shutdown  = "shutdown_hook"
)

// Args is the argument mapping passed to subscribers.
type Args map[string]any

// Func is a subscriber callback. Returning an error or panicking marks this
// subscriber's invocation as failed.
type Func func(args Args) error

// ID identifies a single subscription.
type ID uint64

// Result is the outcome of one subscriber invocation during Spam.
type Result struct {
	ID  ID
	Err error
}

// Reporter receives every subscriber failure.
type Reporter func(err *SubscriberError)

type subscriber struct {
	id ID
	fn Func
}

// Registry maps hook names to ordered subscriber lists.
type Registry struct {
	mu     sync.RWMutex
	hooks  map[string][]subscriber
	nextID ID

	reporter Reporter
	logger   *logging.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithReporter sets the callback invoked for each failed subscriber.
func WithReporter(r Reporter) Option {
	return func(reg *Registry) {
		reg.reporter = r
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(reg *Registry) {
		if l != nil {
			reg.logger = l
		}
	}
}

// NewRegistry creates an empty hook registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		hooks:  make(map[string][]subscriber),
		logger: logging.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Subscribe appends fn to the hook's subscriber list and returns its ID.
// The same callback may be subscribed more than once.
func (r *Registry) Subscribe(name string, fn Func) ID {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	id := r.nextID
	r.hooks[name] = append(r.hooks[name], subscriber{id: id, fn: fn})
	return id
}

// Unsubscribe removes the subscription with the given ID from the named
// hook. It returns false if no such subscription exists.
func (r *Registry) Unsubscribe(name string, id ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs := r.hooks[name]
	for i, s := range subs {
		if s.id == id {
			// Copy so that a Spam already iterating its snapshot is unaffected.
			next := make([]subscriber, 0, len(subs)-1)
			next = append(next, subs[:i]...)
			next = append(next, subs[i+1:]...)
			if len(next) == 0 {
				delete(r.hooks, name)
			} else {
				r.hooks[name] = next
			}
			return true
		}
	}
	return false
}

// Spam invokes every current subscriber of name, in registration order,
// with args. Subscribers added or removed during the fan-out take effect on
// the next Spam. A hook with no subscribers is a no-op and returns nil.
func (r *Registry) Spam(name string, args Args) []Result {
	r.mu.RLock()
	subs := r.hooks[name]
	r.mu.RUnlock()

	if len(subs) == 0 {
		return nil
	}

	results := make([]Result, len(subs))
	for i, s := range subs {
		results[i] = Result{ID: s.id, Err: r.invoke(name, s, args)}
	}
	return results
}

// invoke calls one subscriber with panic recovery.
func (r *Registry) invoke(name string, s subscriber, args Args) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = r.fail(&SubscriberError{
				Hook:     name,
				ID:       s.id,
				Err:      fmt.Errorf("panic: %v", p),
				Panicked: true,
				Stack:    debug.Stack(),
			})
		}
	}()

	if callErr := s.fn(args); callErr != nil {
		return r.fail(&SubscriberError{Hook: name, ID: s.id, Err: callErr})
	}
	return nil
}

func (r *Registry) fail(e *SubscriberError) error {
	r.logger.WithField("hook", e.Hook).Warn("subscriber %d failed: %v", e.ID, e.Err)
	if r.reporter != nil {
		func() {
			defer func() { _ = recover() }()
			r.reporter(e)
		}()
	}
	return e
}

// Count returns the number of subscribers of name.
func (r *Registry) Count(name string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.hooks[name])
}

// Names returns the names of hooks that have at least one subscriber.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.hooks))
	for name := range r.hooks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
