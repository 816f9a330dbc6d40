// Package watch reports changes to rendered source files so their cached
// renders can be evicted.
package watch

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/alnah/go-mdrender/internal/logging"
)

// ErrClosed is returned by Watch after Close.
var ErrClosed = errors.New("watcher closed")

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// Watcher calls OnChange with the absolute path of a watched file whenever
// it is written, created, removed or renamed.
//
// Parent directories are watched rather than files, so editors that save by
// replacing the file keep being tracked.
type Watcher struct {
	fsw      *fsnotify.Watcher
	onChange func(path string)
	logger   zerolog.Logger

	mu     sync.Mutex
	files  map[string]struct{}
	dirs   map[string]int
	closed bool

	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// New starts a Watcher. onChange runs on the watcher goroutine.
func New(onChange func(path string), opts ...Option) (*Watcher, error) {
	if onChange == nil {
		onChange = func(string) {}
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	w := &Watcher{
		fsw:      fsw,
		onChange: onChange,
		logger:   logging.Component("watch"),
		files:    make(map[string]struct{}),
		dirs:     make(map[string]int),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	go w.loop()
	return w, nil
}

// Watch registers path. Watching the same path twice is a no-op.
func (w *Watcher) Watch(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	if _, ok := w.files[abs]; ok {
		return nil
	}

	dir := filepath.Dir(abs)
	if w.dirs[dir] == 0 {
		if err := w.fsw.Add(dir); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
	}
	w.dirs[dir]++
	w.files[abs] = struct{}{}
	w.logger.Debug().Str("path", abs).Msg("watching")
	return nil
}

// Unwatch stops tracking path.
func (w *Watcher) Unwatch(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.files[abs]; !ok {
		return nil
	}
	delete(w.files, abs)

	dir := filepath.Dir(abs)
	w.dirs[dir]--
	if w.dirs[dir] > 0 {
		return nil
	}
	delete(w.dirs, dir)
	if w.closed {
		return nil
	}
	return w.fsw.Remove(dir)
}

// Watched returns the tracked paths, sorted.
func (w *Watcher) Watched() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]string, 0, len(w.files))
	for p := range w.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Close stops the watcher. It is safe to call more than once.
func (w *Watcher) Close() error {
	w.closeOnce.Do(func() {
		w.mu.Lock()
		w.closed = true
		w.mu.Unlock()

		w.closeErr = w.fsw.Close()
		<-w.done
	})
	return w.closeErr
}

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Msg("watch error")
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}

	path := filepath.Clean(event.Name)
	w.mu.Lock()
	_, tracked := w.files[path]
	w.mu.Unlock()
	if !tracked {
		return
	}

	w.logger.Debug().Str("path", path).Str("op", event.Op.String()).Msg("source changed")
	w.onChange(path)
}
