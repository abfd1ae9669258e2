package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmemory/amp/internal/errors"
)

// recordingHandler captures delivered events for assertions.
type recordingHandler struct {
	mu     sync.Mutex
	events []Event
}

func (h *recordingHandler) HandleEvent(path string, isDir bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, Event{Path: path, IsDir: isDir})
}

func (h *recordingHandler) paths() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.events))
	for _, ev := range h.events {
		out = append(out, ev.Path)
	}
	return out
}

func newTestNotifier(t *testing.T) *Notifier {
	t.Helper()
	n, err := NewNotifier()
	require.NoError(t, err)
	t.Cleanup(func() { _ = n.Stop() })
	return n
}

func TestNotifier_Register_DuplicateRejected(t *testing.T) {
	// Given: a directory already registered
	n := newTestNotifier(t)
	dir := t.TempDir()
	require.NoError(t, n.Register(dir, true, &recordingHandler{}, nil))

	// When: a second claim arrives for the same directory
	err := n.Register(dir, true, &recordingHandler{}, nil)

	// Then: it is rejected, the first registration stays active
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeWatchFailed, errors.GetCode(err))
	assert.True(t, n.Registered(dir))
}

func TestNotifier_DeliversWriteEvents(t *testing.T) {
	// Given: a started notifier watching one directory
	n := newTestNotifier(t)
	h := &recordingHandler{}
	dir := t.TempDir()
	require.NoError(t, n.Register(dir, true, h, nil))
	n.Start()

	// When: a file is written in the directory
	target := filepath.Join(dir, "AGENT.md")
	require.NoError(t, os.WriteFile(target, []byte("hello"), 0o644))

	// Then: the handler receives the event
	require.Eventually(t, func() bool {
		for _, p := range h.paths() {
			if p == target {
				return true
			}
		}
		return false
	}, 3*time.Second, 20*time.Millisecond)
}

func TestNotifier_NonRecursive_IgnoresSubdirectoryEvents(t *testing.T) {
	// Given: a non-recursive registration with an existing subdirectory
	n := newTestNotifier(t)
	h := &recordingHandler{}
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))
	require.NoError(t, n.Register(dir, false, h, nil))
	n.Start()

	// When: files are written at both levels
	nested := filepath.Join(sub, "AGENT.md")
	direct := filepath.Join(dir, "AGENT.md")
	require.NoError(t, os.WriteFile(nested, []byte("nested"), 0o644))
	require.NoError(t, os.WriteFile(direct, []byte("direct"), 0o644))

	// Then: only the direct child is delivered
	require.Eventually(t, func() bool {
		for _, p := range h.paths() {
			if p == direct {
				return true
			}
		}
		return false
	}, 3*time.Second, 20*time.Millisecond)
	assert.NotContains(t, h.paths(), nested)
}

func TestNotifier_Recursive_SkipsIgnoredSubdirectories(t *testing.T) {
	// Given: a recursive registration pruning a build directory
	n := newTestNotifier(t)
	h := &recordingHandler{}
	dir := t.TempDir()
	build := filepath.Join(dir, "build")
	require.NoError(t, os.Mkdir(build, 0o755))
	ignore := func(path string) bool { return filepath.Base(path) == "build" }
	require.NoError(t, n.Register(dir, true, h, ignore))
	n.Start()

	// When: files are written inside and outside the pruned directory
	pruned := filepath.Join(build, "AGENT.md")
	kept := filepath.Join(dir, "AGENT.md")
	require.NoError(t, os.WriteFile(pruned, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(kept, []byte("y"), 0o644))

	// Then: only the non-pruned path arrives
	require.Eventually(t, func() bool {
		for _, p := range h.paths() {
			if p == kept {
				return true
			}
		}
		return false
	}, 3*time.Second, 20*time.Millisecond)
	assert.NotContains(t, h.paths(), pruned)
}

func TestNotifier_HandlerPanic_DoesNotStopDispatch(t *testing.T) {
	// Given: a handler that panics on its first event
	n := newTestNotifier(t)
	dir := t.TempDir()
	h := &panickingHandler{inner: &recordingHandler{}}
	require.NoError(t, n.Register(dir, true, h, nil))
	n.Start()

	// When: two files are written in sequence
	first := filepath.Join(dir, "first.md")
	second := filepath.Join(dir, "second.md")
	require.NoError(t, os.WriteFile(first, []byte("a"), 0o644))
	require.Eventually(t, func() bool {
		return h.calls() >= 1
	}, 3*time.Second, 20*time.Millisecond)
	require.NoError(t, os.WriteFile(second, []byte("b"), 0o644))

	// Then: events keep flowing after the panic
	require.Eventually(t, func() bool {
		for _, p := range h.inner.paths() {
			if p == second {
				return true
			}
		}
		return false
	}, 3*time.Second, 20*time.Millisecond)
}

// panickingHandler panics on the first delivery and then delegates.
type panickingHandler struct {
	mu    sync.Mutex
	n     int
	inner *recordingHandler
}

func (h *panickingHandler) HandleEvent(path string, isDir bool) {
	h.mu.Lock()
	h.n++
	first := h.n == 1
	h.mu.Unlock()

	if first {
		panic("boom")
	}
	h.inner.HandleEvent(path, isDir)
}

func (h *panickingHandler) calls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.n
}
