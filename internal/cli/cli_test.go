package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the command tree against args and returns captured stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd("test")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRunCommand_YAMLInput(t *testing.T) {
	input := writeFile(t, "input.yaml", `
service: billing
scenario: queue backlog
steps:
  - action: scale consumers
`)

	out, err := execute(t, "run", "runbook", "-f", input)

	require.NoError(t, err)
	var res map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, true, res["ok"])
	assert.NotNil(t, res["output"])
}

func TestRunCommand_ValidationFailureExitsNonZero(t *testing.T) {
	input := writeFile(t, "input.yaml", `service: billing`)

	out, err := execute(t, "run", "runbook", "-f", input)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "VALIDATION_FAILED")
	assert.Contains(t, out, `"ok": false`)
}

func TestRunCommand_TraceMarkdown(t *testing.T) {
	input := writeFile(t, "input.yaml", `
service: billing
scenario: queue backlog
steps:
  - action: scale consumers
`)

	out, err := execute(t, "run", "runbook", "-f", input, "--trace-md")

	require.NoError(t, err)
	assert.Contains(t, out, "# Execution Trace: runbook")
}

func TestRunCommand_UnknownStrategy(t *testing.T) {
	input := writeFile(t, "input.yaml", `service: billing`)

	_, err := execute(t, "run", "no-such-strategy", "-f", input)

	require.Error(t, err)
}

func TestStrategiesCommand_Table(t *testing.T) {
	out, err := execute(t, "strategies")

	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "runbook")
	assert.Contains(t, out, "decision-record")
}

func TestStrategiesCommand_JSON(t *testing.T) {
	out, err := execute(t, "strategies", "--json")

	require.NoError(t, err)
	var listing []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &listing))
	assert.Len(t, listing, 3)
}

func TestHandoffPrepareAndParse_RoundTrip(t *testing.T) {
	req := writeFile(t, "request.yaml", `
source: planner
target: executor
task: finish the migration
priority: immediate
`)

	prepared, err := execute(t, "handoff", "prepare", "-f", req)
	require.NoError(t, err)

	doc := writeFile(t, "package.json", prepared)
	parsed, err := execute(t, "handoff", "parse", doc)

	require.NoError(t, err)
	var pkg map[string]any
	require.NoError(t, json.Unmarshal([]byte(parsed), &pkg))
	assert.Equal(t, "planner", pkg["source"])
	assert.Equal(t, "executor", pkg["target"])
	assert.Equal(t, "pending", pkg["status"])
}

func TestHandoffParse_Markdown(t *testing.T) {
	req := writeFile(t, "request.yaml", `
source: planner
target: executor
task: finish the migration
`)
	prepared, err := execute(t, "handoff", "prepare", "-f", req)
	require.NoError(t, err)
	doc := writeFile(t, "package.json", prepared)

	out, err := execute(t, "handoff", "parse", doc, "--markdown")

	require.NoError(t, err)
	assert.Contains(t, out, "# Agent Handoff: planner → executor")
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")

	require.NoError(t, err)
	assert.Equal(t, "shikko test\n", out)
}
