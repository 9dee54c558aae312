package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCommandPassesOnWellFormedLog(t *testing.T) {
	dir := t.TempDir()
	eventsPath := writeTempFile(t, dir, "events.jsonl", sampleEventLog)

	out, err := runCommandCapture(t, "validate", "--events", eventsPath)
	require.NoError(t, err)
	assert.Contains(t, out, "valid")
}

func TestValidateCommandFailsOnFirstInvalidLineByDefault(t *testing.T) {
	dir := t.TempDir()
	log := sampleEventLog + `{"event_id":"e3","item_id":"P1","timestamp":2000,"source":"BOGUS","price_cents":100}` + "\n"
	eventsPath := writeTempFile(t, dir, "events.jsonl", log)

	out, err := runCommandCapture(t, "validate", "--events", eventsPath)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "line 3")
}

func TestValidateCommandReportsEveryInvalidLineWithAll(t *testing.T) {
	dir := t.TempDir()
	log := `{"event_id":"e1","item_id":"P1","timestamp":0,"source":"BOGUS","price_cents":100}
{"event_id":"e2","item_id":"P1","timestamp":1,"source":"HISTORIC","price_cents":-5}
`
	eventsPath := writeTempFile(t, dir, "events.jsonl", log)

	out, err := runCommandCapture(t, "validate", "--events", eventsPath, "--all")
	require.Error(t, err)
	assert.Contains(t, out, "line 1")
	assert.Contains(t, out, "line 2")
}

func TestValidateCommandFailsOnMissingFile(t *testing.T) {
	dir := t.TempDir()

	_, err := runCommandCapture(t, "validate", "--events", filepath.Join(dir, "missing.jsonl"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
