// Package watcher connects the OS filesystem notification subsystem to the
// sync engine.
//
// The Notifier wraps fsnotify and delivers raw change events, serially,
// to one registered handler per watched directory. The Controller sits on
// top: it resolves watch roots from the environment, discovers .amp.yaml
// configuration files (gitignore-aware, stopping at the first config per
// subtree), runs the initial sync for each discovered directory, and
// manages start/stop of event delivery.
//
// A directory is registered at most once: when several configurations
// claim the same directory, the first one wins and later claims are
// skipped with a warning.
package watcher
