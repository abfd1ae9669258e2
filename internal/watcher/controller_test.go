package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmemory/amp/internal/config"
	"github.com/agentmemory/amp/internal/errors"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestScanRoot_ConfigAtRoot_StopsDescent(t *testing.T) {
	// Given: a config at the root and another nested below it
	root := t.TempDir()
	writeFile(t, filepath.Join(root, config.Filename), "agents:\n  - claude\n")
	writeFile(t, filepath.Join(root, "sub", config.Filename), "agents:\n  - gemini\n")

	// When: scanning
	configs := scanRoot(root)

	// Then: the root config claims the whole tree, the nested one is unreachable
	assert.Equal(t, []string{filepath.Join(root, config.Filename)}, configs)
}

func TestScanRoot_FindsConfigsInSiblingTrees(t *testing.T) {
	// Given: no root config, two independent project directories
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "alpha", config.Filename), "agents:\n  - claude\n")
	writeFile(t, filepath.Join(root, "beta", config.Filename), "agents:\n  - gemini\n")

	// When: scanning
	configs := scanRoot(root)

	// Then: both are discovered
	assert.ElementsMatch(t, []string{
		filepath.Join(root, "alpha", config.Filename),
		filepath.Join(root, "beta", config.Filename),
	}, configs)
}

func TestScanRoot_PrunesGitignoredDirectories(t *testing.T) {
	// Given: a config inside a gitignored directory
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".gitignore"), "vendor/\n")
	writeFile(t, filepath.Join(root, "vendor", config.Filename), "agents:\n  - claude\n")
	writeFile(t, filepath.Join(root, "app", config.Filename), "agents:\n  - claude\n")

	// When: scanning
	configs := scanRoot(root)

	// Then: the ignored tree is never descended into
	assert.Equal(t, []string{filepath.Join(root, "app", config.Filename)}, configs)
}

func TestController_AddWatch_DuplicateDirectorySkipped(t *testing.T) {
	// Given: one directory claimed by a config
	dir := t.TempDir()
	configPath := filepath.Join(dir, config.Filename)
	writeFile(t, configPath, "agents:\n  - claude\n")
	writeFile(t, filepath.Join(dir, "AGENT.md"), "hello")

	c, err := NewController()
	require.NoError(t, err)
	defer func() { _ = c.Stop() }()

	// When: the same directory is claimed twice
	c.addWatch(configPath)
	c.addWatch(configPath)

	// Then: only the first claim is active
	assert.Equal(t, []string{dir}, c.WatchedDirectories())
}

func TestController_AddWatch_InvalidConfigSkipped(t *testing.T) {
	// Given: a config naming an unsupported agent
	dir := t.TempDir()
	configPath := filepath.Join(dir, config.Filename)
	writeFile(t, configPath, "agents:\n  - copilot\n")

	c, err := NewController()
	require.NoError(t, err)
	defer func() { _ = c.Stop() }()

	// When: bringing it under watch
	c.addWatch(configPath)

	// Then: the directory is skipped, the controller keeps going
	assert.Empty(t, c.WatchedDirectories())
}

func TestController_Start_NoConfigs_Fatal(t *testing.T) {
	// Given: a valid root with no configuration files anywhere
	root := t.TempDir()
	t.Setenv(config.EnvPaths, root)

	c, err := NewController()
	require.NoError(t, err)
	defer func() { _ = c.Stop() }()

	// When: starting
	err = c.Start(context.Background())

	// Then: startup fails with the no-configs code
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeNoConfigs, errors.GetCode(err))
	assert.True(t, errors.IsFatal(err))
}

func TestController_Start_NoRoots_Fatal(t *testing.T) {
	// Given: an empty root list
	t.Setenv(config.EnvPaths, "")

	c, err := NewController()
	require.NoError(t, err)
	defer func() { _ = c.Stop() }()

	// When: starting
	err = c.Start(context.Background())

	// Then: startup fails with the no-roots code
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeNoWatchRoots, errors.GetCode(err))
}

func TestController_EndToEnd_PropagatesFileChanges(t *testing.T) {
	// Given: a running controller over one configured project
	root := t.TempDir()
	project := filepath.Join(root, "project")
	writeFile(t, filepath.Join(project, config.Filename), "agents:\n  - claude\n  - gemini\n")
	source := filepath.Join(project, "AGENT.md")
	writeFile(t, source, "v1")
	t.Setenv(config.EnvPaths, root)

	c, err := NewController()
	require.NoError(t, err)

	require.NoError(t, c.Start(context.Background()))
	defer func() { _ = c.Stop() }()

	// Then: initial sync materialized the targets before any event
	for _, name := range []string{"CLAUDE.md", "GEMINI.md"} {
		got, err := os.ReadFile(filepath.Join(project, name))
		require.NoError(t, err)
		assert.Equal(t, "v1", string(got))
	}

	// When: the truth file changes while watching. The write is re-issued
	// on each probe so a propagation that raced the debounce window still
	// converges.
	require.Eventually(t, func() bool {
		if err := os.WriteFile(source, []byte("v2"), 0o644); err != nil {
			return false
		}
		got, err := os.ReadFile(filepath.Join(project, "CLAUDE.md"))
		return err == nil && string(got) == "v2"
	}, 5*time.Second, 100*time.Millisecond, "change should propagate to CLAUDE.md")
}

func TestController_EndToEnd_NewNestedDirectoryIsWatched(t *testing.T) {
	// Given: a running recursive watch
	root := t.TempDir()
	project := filepath.Join(root, "project")
	writeFile(t, filepath.Join(project, config.Filename), "agents:\n  - claude\n")
	writeFile(t, filepath.Join(project, "AGENT.md"), "root truth")
	t.Setenv(config.EnvPaths, root)

	c, err := NewController()
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	defer func() { _ = c.Stop() }()

	// When: a directory is created after startup and a truth file lands in it
	nested := filepath.Join(project, "docs")
	require.NoError(t, os.Mkdir(nested, 0o755))
	// Give the watcher a moment to pick up the new directory.
	time.Sleep(200 * time.Millisecond)

	// Then: a truth file landing in it syncs to a colocated target
	require.Eventually(t, func() bool {
		if err := os.WriteFile(filepath.Join(nested, "AGENT.md"), []byte("docs truth"), 0o644); err != nil {
			return false
		}
		got, err := os.ReadFile(filepath.Join(nested, "CLAUDE.md"))
		return err == nil && string(got) == "docs truth"
	}, 5*time.Second, 100*time.Millisecond, "nested truth file should sync next to itself")
}
