// Package pipeline implements the Truth Engine's Event Pipeline: the
// single-writer loop that reads events, sorts them into canonical order,
// runs each one through the Per-Item Cache and Rule Evaluator, and emits
// one audit record per event. Its structure follows the teacher's engine
// Run() loop (internal/engine/engine.go) — one logging point per stage —
// adapted from a queue-fed goroutine to a single pass over a sorted batch,
// since the Truth Engine has no concurrent producers to wait on. Unlike
// the teacher's loop, a single bad event here aborts the whole run rather
// than being skipped: INVALID_EVENT and OUT_OF_ORDER are both fatal.
package pipeline

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/donizo-labs/truthengine/internal/cache"
	"github.com/donizo-labs/truthengine/internal/engineerr"
	"github.com/donizo-labs/truthengine/internal/model"
	"github.com/donizo-labs/truthengine/internal/pricing"
	"github.com/donizo-labs/truthengine/internal/validate"
)

// Stats summarizes one Run: how many events were read, skipped as
// duplicates, rejected as invalid, and successfully processed.
type Stats struct {
	Read      int
	Duplicate int
	Invalid   int
	Processed int
}

// Run reads newline-delimited JSON events from r, processes them in
// (timestamp, event_id) order against state, and writes one canonical
// audit line per non-duplicate event to w. state is mutated in place;
// callers are responsible for persisting it (see internal/statestore).
//
// An INVALID_EVENT or OUT_OF_ORDER error aborts the whole run: no audit
// line for the offending event or anything after it, and the caller must
// not persist state or the partial audit output. Duplicate event IDs
// (already in state) are silently skipped with no audit line, per §4.2.
func Run(r io.Reader, w io.Writer, state *model.EngineState, params pricing.Params) (Stats, error) {
	events, stats, err := readAndValidate(r)
	if err != nil {
		return stats, err
	}

	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Timestamp != events[j].Timestamp {
			return events[i].Timestamp < events[j].Timestamp
		}
		return events[i].EventID < events[j].EventID
	})

	c := cache.New()

	for _, ev := range events {
		if state.Seen(ev.EventID) {
			stats.Duplicate++
			slog.Debug("skipping duplicate event", "event_id", ev.EventID)
			continue
		}

		record, err := processOne(params, ev, state, c)
		if err != nil {
			return stats, fmt.Errorf("process event %s: %w", ev.EventID, err)
		}

		out, err := record.MarshalCanonical()
		if err != nil {
			return stats, fmt.Errorf("marshal audit record for event %s: %w", ev.EventID, err)
		}
		if _, err := w.Write(append(out, '\n')); err != nil {
			return stats, fmt.Errorf("write audit line for event %s: %w", ev.EventID, err)
		}

		stats.Processed++
	}

	slog.Info("pipeline run complete",
		"read", stats.Read, "duplicate", stats.Duplicate,
		"invalid", stats.Invalid, "processed", stats.Processed,
	)

	return stats, nil
}

// processOne runs one event through the cache and Rule Evaluator, commits
// the resulting PerItemState, marks the event seen, refreshes the state
// fingerprint, and returns the audit record to emit.
//
// Cache update happens before evaluation, so an event carrying its own
// HISTORIC or SUPPLIER observation can serve as its own candidate — this
// mirrors donizo_engine's engine.py, which updates its cache before
// computing eligibility for the same event.
func processOne(params pricing.Params, ev model.Event, state *model.EngineState, c *cache.Cache) (model.AuditRecord, error) {
	prior, hadPrior := state.Items[ev.ItemID]
	if hadPrior && ev.Timestamp < prior.LastUpdatedTS {
		return model.AuditRecord{}, engineerr.OutOfOrder(
			"event %s timestamp %d precedes item %s's last processed timestamp %d",
			ev.EventID, ev.Timestamp, ev.ItemID, prior.LastUpdatedTS,
		)
	}

	c.Observe(ev)

	result := pricing.Evaluate(params, ev, prior, c.Lookup(ev.ItemID))

	state.Items[ev.ItemID] = result.NewState
	state.MarkSeen(ev.EventID)

	if err := state.Refresh(); err != nil {
		return model.AuditRecord{}, fmt.Errorf("refresh state fingerprint: %w", err)
	}

	return model.AuditRecord{
		EventID:         ev.EventID,
		ItemID:          ev.ItemID,
		Timestamp:       ev.Timestamp,
		Source:          ev.Source,
		Outcome:         ev.Outcome,
		FinalPriceCents: result.FinalPriceCents,
		Decision:        result.Decision,
		Flags:           result.Flags,
		BiasCentsAfter:  result.NewState.BiasCents,
		StateHashAfter:  state.StateHash,
	}, nil
}

// readAndValidate reads every line of r, validating each as it goes. The
// first invalid line aborts the scan: INVALID_EVENT is fatal for the whole
// run, matching OUT_OF_ORDER/STATE_CORRUPT/REPLAY_MISMATCH.
func readAndValidate(r io.Reader) ([]model.Event, Stats, error) {
	var (
		events []model.Event
		stats  Stats
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		stats.Read++

		ev, err := validate.Line(raw, line)
		if err != nil {
			stats.Invalid++
			slog.Error("invalid event aborts run", "line", line, "error", err)
			return nil, stats, err
		}

		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, stats, fmt.Errorf("scan events: %w", err)
	}

	return events, stats, nil
}
