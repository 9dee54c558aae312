package pipeline

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donizo-labs/truthengine/internal/engineerr"
	"github.com/donizo-labs/truthengine/internal/model"
	"github.com/donizo-labs/truthengine/internal/pricing"
)

func freshState(t *testing.T) *model.EngineState {
	t.Helper()
	s, err := model.NewEngineState(1)
	require.NoError(t, err)
	return s
}

func decodeLines(t *testing.T, out *bytes.Buffer) []map[string]any {
	t.Helper()
	var lines []map[string]any
	for _, raw := range strings.Split(strings.TrimRight(out.String(), "\n"), "\n") {
		if raw == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(raw), &m))
		lines = append(lines, m)
	}
	return lines
}

func TestRunPrefersFreshSupplierOverNewerHistoric(t *testing.T) {
	input := strings.Join([]string{
		`{"event_id":"e1","item_id":"P1","timestamp":0,"source":"HISTORIC","price_cents":10000,"outcome":"NONE"}`,
		`{"event_id":"e2","item_id":"P1","timestamp":1000,"source":"SUPPLIER","price_cents":10200,"outcome":"NONE"}`,
		`{"event_id":"e3","item_id":"P1","timestamp":2000,"source":"HISTORIC","price_cents":10100,"outcome":"NONE"}`,
	}, "\n")

	var out bytes.Buffer
	state := freshState(t)
	stats, err := Run(strings.NewReader(input), &out, state, pricing.DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Processed)

	lines := decodeLines(t, &out)
	require.Len(t, lines, 3)
	last := lines[2]
	assert.Equal(t, "e3", last["event_id"])
	assert.Equal(t, "SUPPLIER_PLUS_BIAS", last["decision"])
	assert.Equal(t, float64(10200), last["final_price_cents"])
}

func TestRunSkipsAlreadySeenEventWithNoAuditLine(t *testing.T) {
	input := `{"event_id":"e1","item_id":"P1","timestamp":0,"source":"HISTORIC","price_cents":10000,"outcome":"NONE"}` + "\n"

	state := freshState(t)
	state.MarkSeen("e1")
	require.NoError(t, state.Refresh())

	var out bytes.Buffer
	stats, err := Run(strings.NewReader(input), &out, state, pricing.DefaultParams())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Duplicate)
	assert.Equal(t, 0, stats.Processed)
	assert.Empty(t, out.String())
}

func TestRunSortsOutOfOrderInputByTimestampThenEventID(t *testing.T) {
	input := strings.Join([]string{
		`{"event_id":"e2","item_id":"P1","timestamp":1000,"source":"SUPPLIER","price_cents":10200,"outcome":"NONE"}`,
		`{"event_id":"e1","item_id":"P1","timestamp":0,"source":"HISTORIC","price_cents":10000,"outcome":"NONE"}`,
	}, "\n")

	var out bytes.Buffer
	state := freshState(t)
	_, err := Run(strings.NewReader(input), &out, state, pricing.DefaultParams())
	require.NoError(t, err)

	lines := decodeLines(t, &out)
	require.Len(t, lines, 2)
	assert.Equal(t, "e1", lines[0]["event_id"])
	assert.Equal(t, "e2", lines[1]["event_id"])
}

func TestRunAbortsEntireRunOnInvalidEventWithNoAuditOutput(t *testing.T) {
	input := strings.Join([]string{
		`{"event_id":"e1","item_id":"P1","timestamp":0,"source":"ROBOT","price_cents":10000,"outcome":"NONE"}`,
		`{"event_id":"e2","item_id":"P1","timestamp":1000,"source":"SUPPLIER","price_cents":10200,"outcome":"NONE"}`,
	}, "\n")

	var out bytes.Buffer
	state := freshState(t)
	stats, err := Run(strings.NewReader(input), &out, state, pricing.DefaultParams())
	require.Error(t, err)
	assert.True(t, engineerr.HasCode(err, engineerr.CodeInvalidEvent))

	assert.Equal(t, 1, stats.Invalid)
	assert.Equal(t, 0, stats.Processed)
	assert.Empty(t, out.String())
	assert.Empty(t, state.Items)
}

func TestRunAbortsOnEventOlderThanItemsPriorStateTimestamp(t *testing.T) {
	state := freshState(t)
	state.Items["P1"] = model.PerItemState{LastUpdatedTS: 5000}
	require.NoError(t, state.Refresh())

	input := `{"event_id":"e1","item_id":"P1","timestamp":1000,"source":"HISTORIC","price_cents":10000,"outcome":"NONE"}` + "\n"

	var out bytes.Buffer
	stats, err := Run(strings.NewReader(input), &out, state, pricing.DefaultParams())
	require.Error(t, err)
	assert.True(t, engineerr.HasCode(err, engineerr.CodeOutOfOrder))

	assert.Equal(t, 0, stats.Processed)
	assert.Empty(t, out.String())
}

func TestRunIsIdempotentAcrossTwoIdenticalRunsFromFreshState(t *testing.T) {
	input := strings.Join([]string{
		`{"event_id":"e1","item_id":"P1","timestamp":0,"source":"HISTORIC","price_cents":10000,"outcome":"NONE"}`,
		`{"event_id":"e2","item_id":"P1","timestamp":1000,"source":"SUPPLIER","price_cents":10200,"outcome":"NONE"}`,
		`{"event_id":"e3","item_id":"P1","timestamp":2000,"source":"HUMAN","price_cents":10250,"outcome":"QUOTE_ACCEPTED"}`,
	}, "\n")

	var out1, out2 bytes.Buffer
	state1 := freshState(t)
	_, err := Run(strings.NewReader(input), &out1, state1, pricing.DefaultParams())
	require.NoError(t, err)

	state2 := freshState(t)
	_, err = Run(strings.NewReader(input), &out2, state2, pricing.DefaultParams())
	require.NoError(t, err)

	assert.Equal(t, out1.String(), out2.String())
	assert.Equal(t, state1.StateHash, state2.StateHash)
}
