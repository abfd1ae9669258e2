package watcher

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/agentmemory/amp/internal/errors"
)

// Event is one raw filesystem change, consumed synchronously by a handler.
type Event struct {
	// Path is the absolute path of the changed file or directory.
	Path string

	// IsDir indicates whether the event is for a directory.
	IsDir bool
}

// EventHandler receives change events for one registered directory.
// Handlers are invoked from the dispatch goroutine; a panic is recovered
// at this boundary and must not take down the watch loop.
type EventHandler interface {
	HandleEvent(path string, isDir bool)
}

// registration binds one watched directory to its handler.
type registration struct {
	dir       string
	recursive bool
	handler   EventHandler
	ignoreDir func(string) bool // prune hook for recursive watches, may be nil
}

// Notifier delivers filesystem change events to registered handlers using
// fsnotify. A directory registers at most once; later claims are rejected.
type Notifier struct {
	fsw *fsnotify.Watcher

	mu      sync.Mutex
	regs    map[string]*registration
	started bool
	stopped bool

	wg sync.WaitGroup
}

// NewNotifier creates a notifier backed by an fsnotify watcher.
func NewNotifier() (*Notifier, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.New(errors.ErrCodeWatchFailed, "create filesystem watcher", err)
	}

	return &Notifier{
		fsw:  fsw,
		regs: make(map[string]*registration),
	}, nil
}

// Register starts watching dir and routes its events to h. With recursive
// set, existing subdirectories are watched too (pruned via ignoreDir) and
// newly created ones are picked up from create events.
func (n *Notifier) Register(dir string, recursive bool, h EventHandler, ignoreDir func(string) bool) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return errors.New(errors.ErrCodeInvalidPath, fmt.Sprintf("resolve watch path %s", dir), err)
	}

	n.mu.Lock()
	if n.stopped {
		n.mu.Unlock()
		return errors.New(errors.ErrCodeWatchFailed, "notifier is stopped", nil)
	}
	if _, exists := n.regs[abs]; exists {
		n.mu.Unlock()
		return errors.New(errors.ErrCodeWatchFailed,
			fmt.Sprintf("directory %s is already registered", abs), nil)
	}
	reg := &registration{dir: abs, recursive: recursive, handler: h, ignoreDir: ignoreDir}
	n.regs[abs] = reg
	n.mu.Unlock()

	if err := n.fsw.Add(abs); err != nil {
		n.mu.Lock()
		delete(n.regs, abs)
		n.mu.Unlock()
		return errors.New(errors.ErrCodeWatchFailed, fmt.Sprintf("watch %s", abs), err)
	}

	if recursive {
		n.addSubdirectories(reg)
	}

	return nil
}

// Registered reports whether dir already has a handler.
func (n *Notifier) Registered(dir string) bool {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return false
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	_, ok := n.regs[abs]
	return ok
}

// addSubdirectories watches every non-pruned directory under the
// registration root. Unreadable entries are skipped.
func (n *Notifier) addSubdirectories(reg *registration) {
	_ = filepath.WalkDir(reg.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() || path == reg.dir {
			return nil
		}
		if reg.ignoreDir != nil && reg.ignoreDir(path) {
			return fs.SkipDir
		}
		if err := n.fsw.Add(path); err != nil {
			slog.Warn("failed to watch subdirectory",
				slog.String("path", path),
				slog.String("error", err.Error()))
		}
		return nil
	})
}

// Start launches the dispatch goroutine. Call once, after initial
// registrations; further registrations may still be added while running.
func (n *Notifier) Start() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.started || n.stopped {
		return
	}
	n.started = true

	n.wg.Add(1)
	go n.dispatch()
}

// dispatch delivers raw fsnotify events serially, one handler call at a
// time, until the watcher is closed.
func (n *Notifier) dispatch() {
	defer n.wg.Done()

	for {
		select {
		case ev, ok := <-n.fsw.Events:
			if !ok {
				return
			}
			n.handleRaw(ev)
		case err, ok := <-n.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("watcher error", slog.String("error", err.Error()))
		}
	}
}

// handleRaw filters, routes, and delivers one fsnotify event.
func (n *Notifier) handleRaw(ev fsnotify.Event) {
	// Only content-bearing operations matter for propagation.
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
		return
	}

	isDir := false
	if info, err := os.Stat(ev.Name); err == nil {
		isDir = info.IsDir()
	}

	reg := n.match(ev.Name)
	if reg == nil {
		return
	}

	// Extend recursive watches to newly created directories.
	if isDir && ev.Has(fsnotify.Create) && reg.recursive {
		if reg.ignoreDir == nil || !reg.ignoreDir(ev.Name) {
			if err := n.fsw.Add(ev.Name); err != nil {
				slog.Warn("failed to watch new directory",
					slog.String("path", ev.Name),
					slog.String("error", err.Error()))
			}
		}
	}

	n.deliver(reg, Event{Path: ev.Name, IsDir: isDir})
}

// match finds the deepest registration containing path. Non-recursive
// registrations only claim direct children.
func (n *Notifier) match(path string) *registration {
	n.mu.Lock()
	defer n.mu.Unlock()

	dir := filepath.Dir(path)
	for current := dir; ; {
		if reg, ok := n.regs[current]; ok {
			if !reg.recursive && dir != reg.dir {
				return nil
			}
			return reg
		}
		parent := filepath.Dir(current)
		if parent == current {
			return nil
		}
		current = parent
	}
}

// deliver invokes the handler, containing panics so one bad callback
// cannot terminate the watch loop.
func (n *Notifier) deliver(reg *registration, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("event handler panicked",
				slog.String("directory", reg.dir),
				slog.String("path", ev.Path),
				slog.Any("panic", r))
		}
	}()

	reg.handler.HandleEvent(ev.Path, ev.IsDir)
}

// Stop closes the underlying watcher and waits for the dispatch goroutine
// (and any in-flight handler callback) to finish. Safe to call multiple
// times.
func (n *Notifier) Stop() error {
	n.mu.Lock()
	if n.stopped {
		n.mu.Unlock()
		return nil
	}
	n.stopped = true
	n.mu.Unlock()

	err := n.fsw.Close()
	n.wg.Wait()
	return err
}
