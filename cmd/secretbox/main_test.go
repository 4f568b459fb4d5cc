package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/secretbox/cmd/secretbox/commands"
	"github.com/systmms/secretbox/internal/logging"
)

// The root command replaces the process-wide logger, so these tests do not
// run in parallel.

func TestRootCommand_GlobalFlags(t *testing.T) {
	t.Cleanup(func() { logging.SetDefault(logging.New(false, true)) })

	g := commands.NewGlobals()
	root := newRootCommand(g)

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{
		"get", "SECRETBOX_ROOT_TEST_MISSING", "--default", "fallback",
		"--loader", "environ",
		"--option", "filename=custom.env",
		"--require-all=false",
		"--config", "does-not-exist.yaml",
	})

	err := root.Execute()

	// The explicit --config makes the missing file an error.
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration file not found")
	assert.Equal(t, []string{"environ"}, g.Loaders)
	assert.Equal(t, map[string]string{"filename": "custom.env"}, g.Options)
	require.NotNil(t, g.RequireAll)
	assert.False(t, *g.RequireAll)
	assert.True(t, g.Config.Explicit)
}

func TestRootCommand_DefaultConfigMayBeMissing(t *testing.T) {
	t.Cleanup(func() { logging.SetDefault(logging.New(false, true)) })
	t.Chdir(t.TempDir())

	g := commands.NewGlobals()
	root := newRootCommand(g)

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"get", "SECRETBOX_ROOT_TEST_MISSING", "--default", "fallback"})

	require.NoError(t, root.Execute())
	assert.Equal(t, "fallback\n", out.String())
	assert.Nil(t, g.RequireAll)
	assert.False(t, g.Config.Explicit)
}

func TestRootCommand_OptionValuesWithCommas(t *testing.T) {
	t.Cleanup(func() { logging.SetDefault(logging.New(false, true)) })
	t.Chdir(t.TempDir())

	g := commands.NewGlobals()
	root := newRootCommand(g)

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{
		"get", "SECRETBOX_ROOT_TEST_MISSING", "--default", "fallback",
		"--option", "filename=a,b.env",
		"--option", "aws_sstore_name=prod/app=v2",
	})

	require.NoError(t, root.Execute())
	assert.Equal(t, map[string]string{
		"filename":        "a,b.env",
		"aws_sstore_name": "prod/app=v2",
	}, g.Options)
}

func TestRootCommand_MalformedOption(t *testing.T) {
	t.Cleanup(func() { logging.SetDefault(logging.New(false, true)) })

	root := newRootCommand(commands.NewGlobals())
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"loaders", "--option", "no-equals-sign"})

	err := root.Execute()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --option no-equals-sign")
}

func TestRootCommand_ListsSubcommands(t *testing.T) {
	root := newRootCommand(commands.NewGlobals())

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}

	assert.Subset(t, names, []string{"load", "get", "export", "exec", "loaders", "doctor"})
}
