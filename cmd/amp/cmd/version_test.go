package cmd

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmemory/amp/pkg/version"
)

func TestVersionCmd_PlainOutput(t *testing.T) {
	// Given: the version subcommand
	cmd := newVersionCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)

	// When: running it
	require.NoError(t, cmd.Execute())

	// Then: the output names the program and version
	assert.Contains(t, out.String(), "amp")
	assert.Contains(t, out.String(), version.Short())
}

func TestVersionCmd_JSONOutput(t *testing.T) {
	// Given: the version subcommand with --json
	cmd := newVersionCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--json"})

	// When: running it
	require.NoError(t, cmd.Execute())

	// Then: the output is valid JSON with the expected fields
	var info map[string]string
	require.NoError(t, json.Unmarshal(out.Bytes(), &info))
	assert.Equal(t, version.Short(), info["version"])
	assert.Contains(t, info, "go_version")
}

func TestRootCmd_HasProxyFlags(t *testing.T) {
	cmd := NewRootCmd()
	assert.NotNil(t, cmd.Flags().Lookup("verbose"))
	assert.NotNil(t, cmd.Flags().Lookup("log-file"))
	assert.NotNil(t, cmd.Flags().Lookup("no-lock"))
}
