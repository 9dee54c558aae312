package model

import "github.com/donizo-labs/truthengine/internal/codec"

// Decision is the fixed-vocabulary label identifying which branch of the
// Rule Evaluator produced a final price.
type Decision string

const (
	DecisionHumanAccepted     Decision = "HUMAN_ACCEPTED"
	DecisionSupplierPlusBias  Decision = "SUPPLIER_PLUS_BIAS"
	DecisionHistoricPlusBias  Decision = "HISTORIC_PLUS_BIAS"
	DecisionAnomalyRejected   Decision = "ANOMALY_REJECTED"
	DecisionFallbackNoData    Decision = "FALLBACK_NO_DATA"
)

// Flag tags supplement a Decision with additional context about how it was
// reached.
const (
	FlagNoData           = "NO_DATA"
	FlagAnomalyRejected  = "ANOMALY_REJECTED"
)

// AuditRecord is the line-per-event output of the Event Pipeline: the
// engine's complete, replayable account of what happened to one event.
type AuditRecord struct {
	EventID         string
	ItemID          string
	Timestamp       int64
	Source          Source
	Outcome         Outcome
	FinalPriceCents int64
	Decision        Decision
	Flags           []string
	BiasCentsAfter  int64
	StateHashAfter  string
}

// ToValue produces the codec.Value the canonical codec encodes one audit
// line as.
func (r AuditRecord) ToValue() codec.Value {
	return codec.Object{
		"event_id":           codec.String(r.EventID),
		"item_id":            codec.String(r.ItemID),
		"timestamp":          codec.Int(r.Timestamp),
		"source":             codec.String(string(r.Source)),
		"outcome":            codec.String(string(r.Outcome)),
		"final_price_cents":  codec.Int(r.FinalPriceCents),
		"decision":           codec.String(string(r.Decision)),
		"flags":              codec.StringArray(r.Flags),
		"bias_cents_after":   codec.Int(r.BiasCentsAfter),
		"state_hash_after":   codec.String(r.StateHashAfter),
	}
}

// MarshalCanonical renders the record as one canonical JSON line, suitable
// for writing verbatim (plus a trailing newline) to audit_log.jsonl.
func (r AuditRecord) MarshalCanonical() ([]byte, error) {
	return codec.Marshal(r.ToValue())
}
