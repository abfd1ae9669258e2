package syncer

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/agentmemory/amp/internal/config"
	"github.com/agentmemory/amp/internal/gitignore"
)

// Handler owns all sync state for one watched directory: the matcher, the
// debouncer, the propagator, and the optional gitignore filter.
type Handler struct {
	cfg        *config.WatchConfig
	matcher    *Matcher
	debouncer  *Debouncer
	propagator *Propagator
	filter     *gitignore.Filter // nil when respect_gitignore is false
}

// NewHandler builds a handler for a validated configuration.
func NewHandler(cfg *config.WatchConfig) (*Handler, error) {
	return NewHandlerWithWindow(cfg, DefaultDebounceWindow)
}

// NewHandlerWithWindow builds a handler with an explicit debounce window.
func NewHandlerWithWindow(cfg *config.WatchConfig, window time.Duration) (*Handler, error) {
	h := &Handler{
		cfg:        cfg,
		matcher:    NewMatcher(cfg),
		debouncer:  NewDebouncer(window),
		propagator: NewPropagator(),
	}

	if cfg.RespectGitignore {
		filter, err := gitignore.NewFilter(cfg.Directory)
		if err != nil {
			return nil, err
		}
		h.filter = filter
	}

	return h, nil
}

// Directory returns the watched directory this handler owns.
func (h *Handler) Directory() string {
	return h.cfg.Directory
}

// Recursive reports whether the directory is watched recursively.
func (h *Handler) Recursive() bool {
	return h.cfg.Recursive
}

// Filter returns the gitignore filter, or nil when gitignore is disabled.
func (h *Handler) Filter() *gitignore.Filter {
	return h.filter
}

// HandleEvent processes one raw change event. Directory events and
// gitignore-excluded paths are dropped, bursts are debounced, and every
// resolved target is propagated. The debounce gate is released on all
// exit paths, including panics further down the stack.
func (h *Handler) HandleEvent(path string, isDir bool) {
	if isDir {
		return
	}

	slog.Debug("file modified", slog.String("path", path))

	if h.filter != nil && h.filter.IsIgnored(path) {
		slog.Debug("skipping ignored file", slog.String("path", path))
		return
	}

	if !h.debouncer.TryStart() {
		slog.Debug("debouncing event", slog.String("path", path))
		return
	}

	propagated := false
	defer func() { h.debouncer.Finish(propagated) }()

	pairs := h.matcher.Targets(path)
	if len(pairs) == 0 {
		return
	}

	synced := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		if err := h.propagator.Sync(pair.Source, pair.Target); err != nil {
			// One failed target must not abort the rest of the batch.
			slog.Error("failed to sync target",
				slog.String("source", pair.Source),
				slog.String("target", pair.Target),
				slog.String("error", err.Error()))
		}
		synced = append(synced, filepath.Base(pair.Target))
	}

	propagated = true
	h.logSynced(path, synced)
}

// InitialSync materializes every mapping once, before the directory is
// registered with the notifier.
func (h *Handler) InitialSync() {
	slog.Info("performing initial sync", slog.String("directory", h.cfg.Directory))

	for _, mp := range h.cfg.Mappings {
		h.syncInitialMapping(mp)
	}
}

// syncInitialMapping syncs one mapping: directly when the source exists at
// the config directory, otherwise via a deterministic recursive search.
func (h *Handler) syncInitialMapping(mp config.Mapping) {
	sourcePath := filepath.Join(h.cfg.Directory, mp.SourceName)

	if _, err := os.Stat(sourcePath); err == nil {
		if err := h.propagator.Sync(sourcePath, filepath.Join(h.cfg.Directory, mp.TargetRel)); err != nil {
			slog.Error("initial sync failed",
				slog.String("source", sourcePath),
				slog.String("error", err.Error()))
		}
		return
	}

	if h.cfg.Recursive {
		if found := h.findSourceRecursive(mp.SourceName); found != "" {
			target := filepath.Join(filepath.Dir(found), mp.TargetRel)
			if err := h.propagator.Sync(found, target); err != nil {
				slog.Error("initial sync failed",
					slog.String("source", found),
					slog.String("error", err.Error()))
			}
			return
		}
		slog.Warn("source file not found in directory tree, skipping initial sync",
			slog.String("source", mp.SourceName),
			slog.String("directory", h.cfg.Directory))
		return
	}

	slog.Warn("source file does not exist, skipping initial sync",
		slog.String("source", sourcePath))
}

// findSourceRecursive returns the first file named sourceName under the
// watched directory, in lexical walk order, pruning ignored directories
// and skipping ignored candidates. Empty string when nothing is found.
func (h *Handler) findSourceRecursive(sourceName string) string {
	var found string

	_ = filepath.WalkDir(h.cfg.Directory, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}

		if d.IsDir() {
			if path != h.cfg.Directory && h.filter != nil && h.filter.IsIgnored(path) {
				return fs.SkipDir
			}
			return nil
		}

		if d.Name() != sourceName {
			return nil
		}
		if h.filter != nil && h.filter.IsIgnored(path) {
			return nil
		}

		found = path
		return fs.SkipAll
	})

	return found
}

// logSynced emits the consolidated per-event summary line.
func (h *Handler) logSynced(source string, targets []string) {
	if len(targets) == 0 {
		return
	}

	display := source
	if rel, err := filepath.Rel(h.cfg.Directory, source); err == nil {
		if filepath.Dir(rel) == "." {
			display = filepath.Join(filepath.Base(h.cfg.Directory), rel)
		} else {
			display = rel
		}
	}

	slog.Info("synced",
		slog.String("source", display),
		slog.String("targets", strings.Join(targets, ", ")))
}
