// Package replay implements the Truth Engine's Replay Verifier: run the
// Event Pipeline from an empty state over the same event log, and confirm
// the resulting state hash matches a previously recorded one. Where the
// teacher's replay command (internal/cli/replay.go) re-runs a flow twice
// and diffs the two event sequences with reflect.DeepEqual, this verifier
// has a cheaper target to compare — a single SHA-256 fingerprint — so one
// run plus a string comparison suffices.
package replay

import (
	"fmt"
	"io"

	"github.com/donizo-labs/truthengine/internal/engineerr"
	"github.com/donizo-labs/truthengine/internal/model"
	"github.com/donizo-labs/truthengine/internal/pipeline"
	"github.com/donizo-labs/truthengine/internal/pricing"
)

// Result is the outcome of one verification run.
type Result struct {
	Stats        pipeline.Stats
	ExpectedHash string
	ActualHash   string
	Match        bool
	State        *model.EngineState
}

// Verify runs the pipeline from a fresh, empty state over the events read
// from r, writes its audit output to w, and compares the resulting state
// hash to expectedHash. A mismatch returns a non-nil *engineerr.EngineError
// with code REPLAY_MISMATCH; callers inspect err or Result.Match as they
// prefer — both carry the same information.
func Verify(r io.Reader, w io.Writer, expectedHash string, params pricing.Params) (Result, error) {
	state, err := model.NewEngineState(1)
	if err != nil {
		return Result{}, fmt.Errorf("initialize replay state: %w", err)
	}

	stats, err := pipeline.Run(r, w, state, params)
	if err != nil {
		return Result{}, fmt.Errorf("replay pipeline run: %w", err)
	}

	result := Result{
		Stats:        stats,
		ExpectedHash: expectedHash,
		ActualHash:   state.StateHash,
		Match:        state.StateHash == expectedHash,
		State:        state,
	}

	if !result.Match {
		return result, engineerr.ReplayMismatch(expectedHash, state.StateHash)
	}

	return result, nil
}
