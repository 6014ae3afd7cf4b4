package process

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/lattice/pkg/ports"
)

func TestRunner_RunCommand(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	ctx := context.Background()

	runner := NewRunner()
	runner.Register("greet", "echo", "hello")
	runner.Register("echo_input", "cat")
	runner.Register("echo_env", "sh", "-c", "echo $"+InputEnv)
	runner.Register("fail", "sh", "-c", "echo boom >&2; exit 3")

	t.Run("Text Output", func(t *testing.T) {
		out, err := runner.RunCommand(ctx, "greet", nil)
		require.NoError(t, err)
		assert.Equal(t, "hello", out)
	})

	t.Run("JSON On Stdin", func(t *testing.T) {
		out, err := runner.RunCommand(ctx, "echo_input", map[string]any{"count": 2})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"count": json.Number("2")}, out)
	})

	t.Run("JSON In Env", func(t *testing.T) {
		out, err := runner.RunCommand(ctx, "echo_env", []any{"a"})
		require.NoError(t, err)
		assert.Equal(t, []any{"a"}, out)
	})

	t.Run("Unregistered", func(t *testing.T) {
		_, err := runner.RunCommand(ctx, "hacker_script", nil)
		assert.ErrorIs(t, err, ports.ErrCommandNotFound)
	})

	t.Run("Failure Includes Stderr", func(t *testing.T) {
		_, err := runner.RunCommand(ctx, "fail", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "boom")
	})

	assert.Equal(t, []string{"echo_env", "echo_input", "fail", "greet"}, runner.Names())
}

func TestRunner_Environment(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	runner := NewRunner(WithCommands(map[string]CommandConfig{
		"env": {Command: "sh", Args: []string{"-c", "echo $GREETING"}, Environment: map[string]string{"GREETING": "hi"}},
	}))
	out, err := runner.RunCommand(context.Background(), "env", nil)
	require.NoError(t, err)
	assert.Equal(t, "hi", out)
}

func TestLoadCommands(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "commands.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`commands:
  - name: greet
    command: echo
    args: ["hello"]
    env:
      LANG: C
`), 0o644))
	cmds, err := LoadCommands(yamlPath)
	require.NoError(t, err)
	require.Contains(t, cmds, "greet")
	assert.Equal(t, []string{"hello"}, cmds["greet"].Args)
	assert.Equal(t, "C", cmds["greet"].Environment["LANG"])

	jsonPath := filepath.Join(dir, "commands.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"commands": [{"name": "a", "command": "true"}, {"name": "a", "command": "false"}]}`), 0o644))
	_, err = LoadCommands(jsonPath)
	assert.ErrorContains(t, err, "duplicate")

	_, err = LoadCommands(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
