package syncer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPropagator_Sync_CopiesContentExactly(t *testing.T) {
	// Given: a source file with arbitrary bytes
	dir := t.TempDir()
	source := filepath.Join(dir, "AGENT.md")
	target := filepath.Join(dir, "CLAUDE.md")
	content := []byte("# Project\n\nUse tabs.\n\n- rule one\n- rule two\n")
	require.NoError(t, os.WriteFile(source, content, 0o644))

	// When: syncing
	p := NewPropagator()
	require.NoError(t, p.Sync(source, target))

	// Then: the target is a byte-for-byte copy
	got, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestPropagator_Sync_OverwritesExistingTarget(t *testing.T) {
	// Given: an out-of-date target
	dir := t.TempDir()
	source := filepath.Join(dir, "AGENT.md")
	target := filepath.Join(dir, "GEMINI.md")
	require.NoError(t, os.WriteFile(source, []byte("new truth"), 0o644))
	require.NoError(t, os.WriteFile(target, []byte("stale copy with trailing leftovers"), 0o644))

	// When: syncing
	require.NoError(t, NewPropagator().Sync(source, target))

	// Then: the target holds exactly the new content, nothing stale remains
	got, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "new truth", string(got))
}

func TestPropagator_Sync_CreatesParentDirectories(t *testing.T) {
	// Given: a target under a directory that does not exist yet
	dir := t.TempDir()
	source := filepath.Join(dir, "AGENT.md")
	target := filepath.Join(dir, ".cursor", "rules", "project.mdc")
	require.NoError(t, os.WriteFile(source, []byte("cursor rules"), 0o644))

	// When: syncing
	require.NoError(t, NewPropagator().Sync(source, target))

	// Then: the parent chain was created and the file written
	got, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "cursor rules", string(got))
}

func TestPropagator_Sync_MissingSource_NoTargetCreated(t *testing.T) {
	// Given: a source that does not exist
	dir := t.TempDir()
	source := filepath.Join(dir, "AGENT.md")
	target := filepath.Join(dir, "CLAUDE.md")

	// When: syncing
	err := NewPropagator().Sync(source, target)

	// Then: not an error, and no empty target appears
	assert.NoError(t, err)
	assert.NoFileExists(t, target)
}

func TestPropagator_Sync_MissingSource_LeavesTargetUntouched(t *testing.T) {
	// Given: the source vanished after an earlier sync
	dir := t.TempDir()
	source := filepath.Join(dir, "AGENT.md")
	target := filepath.Join(dir, "CLAUDE.md")
	require.NoError(t, os.WriteFile(target, []byte("last good copy"), 0o644))

	// When: syncing
	require.NoError(t, NewPropagator().Sync(source, target))

	// Then: the existing target keeps its content
	got, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "last good copy", string(got))
}
