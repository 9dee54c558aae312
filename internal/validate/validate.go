// Package validate implements the Truth Engine's Event Validator: the
// formal checks behind an INVALID_EVENT rejection. It operates on raw,
// not-yet-trusted JSON so it can report the exact line a bad event came
// from before the rest of the pipeline ever sees it.
package validate

import (
	"encoding/json"

	"github.com/donizo-labs/truthengine/internal/engineerr"
	"github.com/donizo-labs/truthengine/internal/model"
)

// rawEvent mirrors model.Event but with pointer fields (numbers as
// float64) so presence and integrality can be checked before committing to
// model.Event's stricter typing.
type rawEvent struct {
	EventID    *string  `json:"event_id"`
	ItemID     *string  `json:"item_id"`
	Timestamp  *float64 `json:"timestamp"`
	Source     *string  `json:"source"`
	PriceCents *float64 `json:"price_cents"`
	Outcome    *string  `json:"outcome"`
}

// Line parses and validates one JSONL line. line is the 1-based position
// in the input file, used only for error reporting.
//
// Validation order follows §7: malformed JSON, then missing fields, then
// domain checks (unknown source/outcome, negative price, non-integer
// timestamp, outcome present on a non-HUMAN event).
func Line(raw []byte, line int) (model.Event, error) {
	var re rawEvent
	if err := json.Unmarshal(raw, &re); err != nil {
		return model.Event{}, engineerr.InvalidEvent(line, "malformed JSON: %v", err)
	}

	switch {
	case re.EventID == nil || *re.EventID == "":
		return model.Event{}, engineerr.InvalidEvent(line, "missing event_id")
	case re.ItemID == nil || *re.ItemID == "":
		return model.Event{}, engineerr.InvalidEvent(line, "missing item_id")
	case re.Timestamp == nil:
		return model.Event{}, engineerr.InvalidEvent(line, "missing timestamp")
	case re.Source == nil || *re.Source == "":
		return model.Event{}, engineerr.InvalidEvent(line, "missing source")
	case re.PriceCents == nil:
		return model.Event{}, engineerr.InvalidEvent(line, "missing price_cents")
	}

	if *re.Timestamp != float64(int64(*re.Timestamp)) {
		return model.Event{}, engineerr.InvalidEvent(line, "timestamp must be an integer, got %v", *re.Timestamp)
	}

	source := model.Source(*re.Source)
	if !model.ValidSource(source) {
		return model.Event{}, engineerr.InvalidEvent(line, "unknown source %q", *re.Source)
	}

	if *re.PriceCents < 0 || *re.PriceCents != float64(int64(*re.PriceCents)) {
		return model.Event{}, engineerr.InvalidEvent(line, "price_cents must be a non-negative integer, got %v", *re.PriceCents)
	}

	outcome := model.OutcomeNone
	if re.Outcome != nil && *re.Outcome != "" {
		outcome = model.Outcome(*re.Outcome)
		if !model.ValidOutcome(outcome) {
			return model.Event{}, engineerr.InvalidEvent(line, "unknown outcome %q", *re.Outcome)
		}
		if source != model.SourceHuman && outcome != model.OutcomeNone {
			return model.Event{}, engineerr.InvalidEvent(line, "outcome %q is only valid on HUMAN events, got source %q", outcome, source)
		}
	}

	return model.Event{
		EventID:    *re.EventID,
		ItemID:     *re.ItemID,
		Timestamp:  int64(*re.Timestamp),
		Source:     source,
		PriceCents: int64(*re.PriceCents),
		Outcome:    outcome,
	}, nil
}
