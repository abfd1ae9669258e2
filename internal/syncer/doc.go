// Package syncer implements the event-driven synchronization engine: the
// debounced, idempotence-preserving handler that matches change events to
// configured source/target mappings and propagates truth-file content.
//
// Propagation is strictly one-directional (truth file to agent files) and
// a full overwrite; there is no diffing or merging. Each watched directory
// gets its own Handler owning a Matcher, a Debouncer, a Propagator, and an
// optional gitignore Filter, so directories never block each other.
//
// The debounce gate uses a check-and-flip acquisition (TryStart) paired
// with a deferred release (Finish) so the "is syncing" state can never be
// left stuck, including on error or panic paths.
package syncer
