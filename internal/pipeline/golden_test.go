package pipeline

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/donizo-labs/truthengine/internal/pricing"
)

// TestRunGoldenAuditLog pins the exact audit_log.jsonl output for a fixed
// three-event scenario, the way the teacher's harness pins trace output.
func TestRunGoldenAuditLog(t *testing.T) {
	input := strings.Join([]string{
		`{"event_id":"e1","item_id":"P1","timestamp":0,"source":"HISTORIC","price_cents":10000,"outcome":"NONE"}`,
		`{"event_id":"e2","item_id":"P1","timestamp":1000,"source":"SUPPLIER","price_cents":10200,"outcome":"NONE"}`,
		`{"event_id":"e3","item_id":"P1","timestamp":2000,"source":"HISTORIC","price_cents":10100,"outcome":"NONE"}`,
	}, "\n")

	state := freshState(t)
	var out bytes.Buffer
	_, err := Run(strings.NewReader(input), &out, state, pricing.DefaultParams())
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "three_event_run", out.Bytes())
}
