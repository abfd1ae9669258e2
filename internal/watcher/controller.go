package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/agentmemory/amp/internal/config"
	"github.com/agentmemory/amp/internal/errors"
	"github.com/agentmemory/amp/internal/gitignore"
	"github.com/agentmemory/amp/internal/syncer"
)

// Controller discovers configuration files under the watch roots, builds
// one sync handler per configuration, runs the initial sync, and registers
// each directory with the notifier. It owns the registry of active
// handlers and the notifier lifecycle.
type Controller struct {
	notifier *Notifier

	mu       sync.Mutex
	handlers map[string]*syncer.Handler // keyed by watched directory
}

// NewController creates a controller with a fresh notifier.
func NewController() (*Controller, error) {
	notifier, err := NewNotifier()
	if err != nil {
		return nil, err
	}

	return &Controller{
		notifier: notifier,
		handlers: make(map[string]*syncer.Handler),
	}, nil
}

// Start resolves watch roots, discovers configurations, wires handlers,
// and starts event delivery. Startup with no valid roots or no discovered
// configurations is a fatal error.
func (c *Controller) Start(ctx context.Context) error {
	roots, err := config.WatchRoots()
	if err != nil {
		return err
	}

	slog.Info("scanning directories", slog.Any("roots", roots))

	configs, err := c.discoverConfigs(ctx, roots)
	if err != nil {
		return err
	}
	if len(configs) == 0 {
		return errors.New(errors.ErrCodeNoConfigs,
			"no directories with a configuration file were found", nil).
			WithSuggestion("create a " + config.Filename + " file in a directory under " + config.EnvPaths)
	}

	for _, configPath := range configs {
		c.addWatch(configPath)
	}

	c.notifier.Start()

	c.mu.Lock()
	count := len(c.handlers)
	c.mu.Unlock()
	slog.Info("agent memory proxy started", slog.Int("directories", count))

	return nil
}

// Run starts the controller and blocks until the context is cancelled,
// then stops event delivery and waits for in-flight work.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	return c.Stop()
}

// Stop shuts down event delivery. In-flight handler callbacks complete
// before Stop returns.
func (c *Controller) Stop() error {
	err := c.notifier.Stop()
	slog.Info("agent memory proxy stopped")
	return err
}

// WatchedDirectories returns the currently registered directories, sorted.
func (c *Controller) WatchedDirectories() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	dirs := make([]string, 0, len(c.handlers))
	for dir := range c.handlers {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	return dirs
}

// discoverConfigs scans all roots concurrently and returns the sorted set
// of configuration file paths, deterministic across runs on an unchanged
// tree.
func (c *Controller) discoverConfigs(ctx context.Context, roots []string) ([]string, error) {
	g, _ := errgroup.WithContext(ctx)

	var mu sync.Mutex
	var all []string

	for _, root := range roots {
		root := root
		g.Go(func() error {
			found := scanRoot(root)
			mu.Lock()
			all = append(all, found...)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Strings(all)
	return all, nil
}

// scanRoot walks one root looking for configuration files. Directories
// ignored by the root's gitignore rules are pruned before descending, and
// descent stops at any directory holding a configuration: one config
// governs exactly one directory, nested configs are unreachable by design.
func scanRoot(root string) []string {
	filter, err := gitignore.NewFilter(root)
	if err != nil {
		slog.Warn("failed to build gitignore filter for root",
			slog.String("root", root),
			slog.String("error", err.Error()))
		filter = nil
	}

	var configs []string

	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			slog.Warn("skipping unreadable path during scan",
				slog.String("path", path),
				slog.String("error", err.Error()))
			return nil
		}
		if !d.IsDir() {
			return nil
		}

		if path != root && filter != nil && filter.IsIgnored(path) {
			return fs.SkipDir
		}

		candidate := filepath.Join(path, config.Filename)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			configs = append(configs, candidate)
			slog.Info("found config", slog.String("path", candidate))
			return fs.SkipDir
		}

		return nil
	})

	return configs
}

// addWatch loads one configuration and brings its directory under watch.
// Failures are logged and skipped; other directories continue.
func (c *Controller) addWatch(configPath string) {
	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config",
			slog.String("path", configPath),
			slog.String("error", err.Error()))
		return
	}

	c.mu.Lock()
	if _, exists := c.handlers[cfg.Directory]; exists {
		c.mu.Unlock()
		slog.Warn("directory is already being watched, skipping config",
			slog.String("directory", cfg.Directory),
			slog.String("config", configPath))
		return
	}
	c.mu.Unlock()

	handler, err := syncer.NewHandler(cfg)
	if err != nil {
		slog.Error("failed to build handler",
			slog.String("config", configPath),
			slog.String("error", err.Error()))
		return
	}

	handler.InitialSync()

	var ignoreDir func(string) bool
	if f := handler.Filter(); f != nil {
		ignoreDir = f.IsIgnored
	}

	if err := c.notifier.Register(cfg.Directory, cfg.Recursive, handler, ignoreDir); err != nil {
		slog.Warn("failed to register directory",
			slog.String("directory", cfg.Directory),
			slog.String("error", err.Error()))
		return
	}

	c.mu.Lock()
	c.handlers[cfg.Directory] = handler
	c.mu.Unlock()

	mode := "non-recursively"
	if cfg.Recursive {
		mode = "recursively"
	}
	slog.Info("watching directory",
		slog.String("directory", cfg.Directory),
		slog.String("mode", mode))
}
