package extension

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/mudcore/internal/logging"
)

// DefaultDebounce is how long the watcher waits for writes to settle.
const DefaultDebounce = 200 * time.Millisecond

// Watcher watches extension search paths and asks for a reload when the
// files of a known Lua unit change. It never reloads anything itself:
// trigger is expected to queue the reload for the dispatcher.
type Watcher struct {
	fs       *fsnotify.Watcher
	roots    []string
	delay    time.Duration
	watched  func(id string) bool
	trigger  func(id string)
	logger   *logging.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
	closed  bool
	closeCh chan struct{}
	wg      sync.WaitGroup
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets the quiet period before trigger is called.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.delay = d
		}
	}
}

// WithWatcherLogger sets the logger.
func WithWatcherLogger(l *logging.Logger) WatcherOption {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// NewWatcher starts watching paths and their unit directories. Paths that
// do not exist are skipped. trigger is called with the id of a unit that
// watched accepts once its files stop changing for the debounce period.
func NewWatcher(paths []string, watched func(string) bool, trigger func(string), opts ...WatcherOption) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fs:       fsw,
		delay:    DefaultDebounce,
		watched:  watched,
		trigger:  trigger,
		logger:   logging.Nop(),
		pending:  make(map[string]*time.Timer),
		closeCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		if err := w.addTree(abs); err != nil {
			w.logger.Debug("not watching %s: %v", abs, err)
			continue
		}
		w.roots = append(w.roots, abs)
	}

	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// addTree watches root and the unit directories directly below it.
func (w *Watcher) addTree(root string) error {
	if err := w.fs.Add(root); err != nil {
		return err
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil
	}
	for _, e := range entries {
		if e.IsDir() {
			_ = w.fs.Add(filepath.Join(root, e.Name()))
		}
	}
	return nil
}

// Roots returns the watched search paths.
func (w *Watcher) Roots() []string {
	return w.roots
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.closeCh:
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error: %v", err)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
		return
	}

	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			_ = w.fs.Add(ev.Name)
			return
		}
	}

	if filepath.Ext(ev.Name) != ".lua" {
		return
	}
	if id := w.unitID(ev.Name); id != "" {
		w.schedule(id)
	}
}

// unitID maps a changed file to the id of the unit it belongs to.
func (w *Watcher) unitID(path string) string {
	for _, root := range w.roots {
		rel, err := filepath.Rel(root, path)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		parts := strings.Split(filepath.ToSlash(rel), "/")
		id := parts[0]
		if len(parts) == 1 {
			id = strings.TrimSuffix(id, ".lua")
		}
		if ValidID(id) {
			return id
		}
	}
	return ""
}

func (w *Watcher) schedule(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	if t, ok := w.pending[id]; ok {
		t.Reset(w.delay)
		return
	}
	w.pending[id] = time.AfterFunc(w.delay, func() { w.fire(id) })
}

func (w *Watcher) fire(id string) {
	w.mu.Lock()
	delete(w.pending, id)
	closed := w.closed
	w.mu.Unlock()

	if closed || !w.watched(id) {
		return
	}
	w.logger.WithField("extension", id).Info("changed on disk, reloading")
	w.trigger(id)
}

// Close stops the watcher. Pending reloads are dropped.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	for id, t := range w.pending {
		t.Stop()
		delete(w.pending, id)
	}
	w.mu.Unlock()

	w.wg.Wait()
	return w.fs.Close()
}
