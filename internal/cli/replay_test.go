package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCommandCapture(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestReplayCommandMatchesExpectedHash(t *testing.T) {
	dir := t.TempDir()
	eventsPath := writeTempFile(t, dir, "events.jsonl", sampleEventLog)
	statePath := filepath.Join(dir, "state.json")
	auditPath := filepath.Join(dir, "audit.jsonl")

	// First run to derive the expected hash from a real pipeline execution.
	runStatePath := filepath.Join(dir, "run-state.json")
	runAuditPath := filepath.Join(dir, "run-audit.jsonl")
	_, err := runCommandCapture(t, "run", "--events", eventsPath, "--state", runStatePath, "--audit", runAuditPath)
	require.NoError(t, err)

	stateBytes, err := os.ReadFile(runStatePath)
	require.NoError(t, err)
	require.Contains(t, string(stateBytes), "state_hash")

	hash := extractStateHash(t, string(stateBytes))
	hashPath := writeTempFile(t, dir, "expected.hash", hash)

	out, err := runCommandCapture(t, "replay", "--events", eventsPath, "--state", statePath, "--audit", auditPath, "--verify", hashPath)
	require.NoError(t, err)
	assert.Contains(t, out, "verified")
}

func TestReplayCommandFailsOnMismatchedHash(t *testing.T) {
	dir := t.TempDir()
	eventsPath := writeTempFile(t, dir, "events.jsonl", sampleEventLog)
	statePath := filepath.Join(dir, "state.json")
	auditPath := filepath.Join(dir, "audit.jsonl")
	hashPath := writeTempFile(t, dir, "expected.hash", "not-the-right-hash\n")

	_, err := runCommandCapture(t, "replay", "--events", eventsPath, "--state", statePath, "--audit", auditPath, "--verify", hashPath)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

// extractStateHash pulls the state_hash value out of a state.json document
// without pulling in a JSON decoder the test doesn't otherwise need.
func extractStateHash(t *testing.T, doc string) string {
	t.Helper()
	idx := strings.Index(doc, `"state_hash"`)
	require.Greater(t, idx, -1)
	rest := doc[idx+len(`"state_hash"`):]
	start := strings.Index(rest, `"`) + 1
	rest = rest[start:]
	end := strings.Index(rest, `"`)
	require.Greater(t, end, -1)
	return rest[:end]
}
