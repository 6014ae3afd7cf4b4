package main

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/lattice/pkg/executor"
)

const ordersFlow = `id: orders
name: Orders
nodes:
  - id: start
    type: manual_start
    settings:
      payload: {type: object, value: {count: 1}}
  - id: inc
    type: add
    settings:
      value_to_add: {type: int, value: 4}
  - id: out
    type: record
connections:
  - from: {node: start, name: count, type: int}
    to: {node: inc, name: value, type: int}
    type: int
  - from: {node: inc, name: result, type: int}
    to: {node: out, name: value, type: any}
    type: any
`

const brokenFlow = `id: broken
nodes:
  - id: inc
    type: add
  - id: out
    type: record
connections:
  - from: {node: inc, name: result, type: int}
    to: {node: out, name: value, type: any}
    type: any
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeFlow(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	_, err := execute(t, "validate", writeFlow(t, dir, "orders.yaml", ordersFlow))
	assert.NoError(t, err)

	_, err = execute(t, "validate", writeFlow(t, dir, "broken.yaml", brokenFlow))
	assert.ErrorIs(t, err, errInvalid)
}

func TestRunCommand(t *testing.T) {
	path := writeFlow(t, t.TempDir(), "orders.yaml", ordersFlow)
	_, err := execute(t, "run", path, "--node", "start", "--payload", `{"count": 2}`)
	assert.NoError(t, err)

	_, err = execute(t, "run", path, "--payload", `not json`)
	assert.Error(t, err)
}

const twoStartsFlow = `id: pair
nodes:
  - id: left
    type: manual_start
    settings:
      payload: {type: object, value: {count: 1}}
  - id: right
    type: manual_start
    settings:
      payload: {type: object, value: {count: 2}}
  - id: out
    type: record
  - id: out2
    type: record
    settings:
      key: {type: string, value: other}
connections:
  - from: {node: left, name: count, type: int}
    to: {node: out, name: value, type: any}
    type: any
  - from: {node: right, name: count, type: int}
    to: {node: out2, name: value, type: any}
    type: any
`

func TestRunCommand_PayloadWithoutNode(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, "run", writeFlow(t, dir, "orders.yaml", ordersFlow),
		"--node", "", "--payload", `{"count": 2}`, "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"result": 6`)

	_, err = execute(t, "run", writeFlow(t, dir, "pair.yaml", twoStartsFlow),
		"--node", "", "--payload", `{"count": 2}`, "--json")
	assert.ErrorIs(t, err, executor.ErrAmbiguousTrigger)
}

const execFlow = `id: shout
nodes:
  - id: start
    type: manual_start
    settings:
      payload: {type: object, value: {count: 1}}
  - id: run
    type: exec
    settings:
      command: {type: string, value: echo_input}
  - id: out
    type: record
connections:
  - from: {node: start, name: payload, type: object}
    to: {node: run, name: input, type: any}
    type: any
  - from: {node: run, name: result, type: any}
    to: {node: out, name: value, type: any}
    type: any
`

func TestRunCommand_Exec(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses cat")
	}
	dir := t.TempDir()
	commands := writeFlow(t, dir, "commands.yaml", "commands:\n  - name: echo_input\n    command: cat\n")
	t.Setenv("LATTICE_COMMANDS_FILE", commands)

	out, err := execute(t, "run", writeFlow(t, dir, "shout.yaml", execFlow),
		"--node", "start", "--payload", `{"count": 1}`, "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"count": 1`)
}

func TestGraphCommand(t *testing.T) {
	out, err := execute(t, "graph", writeFlow(t, t.TempDir(), "orders.yaml", ordersFlow))
	require.NoError(t, err)
	assert.Contains(t, out, `start -- "count -> value" --> inc`)
}

func TestConvertCommand(t *testing.T) {
	dir := t.TempDir()
	in := writeFlow(t, dir, "orders.yaml", ordersFlow)
	bin := filepath.Join(dir, "orders.lfb")

	_, err := execute(t, "convert", in, bin)
	require.NoError(t, err)

	out, err := execute(t, "graph", bin)
	require.NoError(t, err)
	assert.Contains(t, out, `inc -- "result -> value" --> out`)
}

func TestFlowsCommands(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("LATTICE_STORE_BACKEND", "file")
	t.Setenv("LATTICE_STORE_PATH", filepath.Join(dir, "store"))
	path := writeFlow(t, dir, "orders.yaml", ordersFlow)

	out, err := execute(t, "flows", "push", path)
	require.NoError(t, err)
	assert.Contains(t, out, ">>> Saved 'orders'.")

	out, err = execute(t, "flows", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "orders")
	assert.Contains(t, out, "Orders")

	out, err = execute(t, "flows", "get", "orders")
	require.NoError(t, err)
	assert.Contains(t, out, `"value_to_add"`)

	_, err = execute(t, "flows", "delete", "orders")
	require.NoError(t, err)
	_, err = execute(t, "flows", "get", "orders")
	assert.Error(t, err)

	_, err = execute(t, "flows", "push", writeFlow(t, dir, "broken.yaml", brokenFlow))
	assert.NoError(t, err, "push only checks that a flow decodes")
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "lattice version ")
}
