// Package pricing implements the Truth Engine's Rule Evaluator: Rules A
// through E of the pricing decision tree (candidate selection, decision
// tree, learning, time decay, circuit breaker). The evaluator is a total,
// pure function over (event, per-item state, per-item cache) — it has no
// side effects and reads no state beyond its arguments. Purity here
// is what makes two runs over the same input byte-identical: nothing in
// this package reaches for a clock, a random source, or float math.
package pricing

import (
	"sort"

	"github.com/donizo-labs/truthengine/internal/cache"
	"github.com/donizo-labs/truthengine/internal/model"
)

// Params carries the four tunable constants Rules A, C, D, and E are
// defined against. Defaults match spec.md exactly; see internal/config for the
// override mechanism.
type Params struct {
	SupplierFreshnessSeconds int64
	DecayThresholdSeconds    int64
	MaxDeltaHistory          int
	CircuitBreakerRatioPct   int64 // e.g. 150 means 150%
}

// DefaultParams returns the engine's hard-coded defaults.
func DefaultParams() Params {
	return Params{
		SupplierFreshnessSeconds: 3600,
		DecayThresholdSeconds:    604800,
		MaxDeltaHistory:          5,
		CircuitBreakerRatioPct:   150,
	}
}

// Result is everything the Event Pipeline needs from one evaluation: the
// final price, the decision tag, any flags, and the per-item state to
// commit. NewState is always populated: it carries the item's ID and the
// event's timestamp even when nothing was learned.
type Result struct {
	FinalPriceCents int64
	Decision        model.Decision
	Flags           []string
	NewState        model.PerItemState
}

// Evaluate runs Rules A–E for one event against the item's current state
// and cache, and returns the pricing decision plus the state to commit.
//
// state is the item's state before this event (zero value if the item has
// never been seen). Evaluate never mutates its arguments; it returns a new
// PerItemState for the caller to commit.
func Evaluate(params Params, ev model.Event, state model.PerItemState, entry *cache.ItemCache) Result {
	next := state.Clone()
	if next.ItemID == "" {
		next.ItemID = ev.ItemID
	}

	// Rule A — candidate selection.
	var historicPrice int64
	historicPresent := entry.LatestHistoric != nil
	if historicPresent {
		historicPrice = entry.LatestHistoric.PriceCents
	}

	supplierEligible := entry.LatestSupplier != nil &&
		ev.Timestamp-entry.LatestSupplier.Timestamp <= params.SupplierFreshnessSeconds
	var supplierPrice int64
	if supplierEligible {
		supplierPrice = entry.LatestSupplier.PriceCents
	}

	// Rule D — time decay, computed once, used only for this event.
	effectiveBias := state.BiasCents
	if state.LastUpdatedTS > 0 && (ev.Timestamp-state.LastUpdatedTS) > params.DecayThresholdSeconds {
		effectiveBias = floorDiv(state.BiasCents, 2)
	}

	// Rule E — circuit breaker, HUMAN events only, supplier reference required.
	anomaly := false
	if ev.Source == model.SourceHuman && supplierEligible && supplierPrice > 0 {
		anomaly = ev.PriceCents*100 > supplierPrice*params.CircuitBreakerRatioPct
	}

	var (
		finalPrice int64
		decision   model.Decision
		flags      []string
	)

	switch {
	case ev.Source == model.SourceHuman && ev.Outcome == model.OutcomeQuoteAccepted && !anomaly:
		// Case 1: ground truth. The human's number wins outright.
		finalPrice = ev.PriceCents
		decision = model.DecisionHumanAccepted

		if supplierEligible && supplierPrice > 0 {
			// Rule C — learning fires only here.
			delta := ev.PriceCents - supplierPrice
			next.AcceptedHumanDeltasCents = appendBounded(next.AcceptedHumanDeltasCents, delta, boundedCap(params.MaxDeltaHistory))
			next.BiasCents = medianInt(next.AcceptedHumanDeltasCents)
		}

	case ev.Source == model.SourceHuman && ev.Outcome == model.OutcomeQuoteAccepted && anomaly:
		// Case 2: accepted but the circuit breaker rejects it — fall back,
		// and flag the rejection; no learning.
		finalPrice, decision = fallback(supplierEligible, supplierPrice, historicPresent, historicPrice, effectiveBias, &flags)
		flags = append(flags, model.FlagAnomalyRejected)
		decision = model.DecisionAnomalyRejected

	case ev.Source == model.SourceHuman && ev.Outcome == model.OutcomeQuoteRejected:
		// Case 3: human rejected — the engine's own answer still applies.
		finalPrice, decision = fallback(supplierEligible, supplierPrice, historicPresent, historicPrice, effectiveBias, &flags)

	default:
		// Case 4: non-HUMAN, or HUMAN with no outcome.
		finalPrice, decision = fallback(supplierEligible, supplierPrice, historicPresent, historicPrice, effectiveBias, &flags)
	}

	next.LastUpdatedTS = ev.Timestamp

	return Result{
		FinalPriceCents: finalPrice,
		Decision:        decision,
		Flags:           flags,
		NewState:        next,
	}
}

// fallback implements the fallback function shared by the non-learning
// branches of Rule B: supplier+bias, else historic+bias, else no data.
func fallback(supplierEligible bool, supplierPrice int64, historicPresent bool, historicPrice int64, effectiveBias int64, flags *[]string) (int64, model.Decision) {
	if supplierEligible {
		return supplierPrice + effectiveBias, model.DecisionSupplierPlusBias
	}
	if historicPresent {
		return historicPrice + effectiveBias, model.DecisionHistoricPlusBias
	}
	*flags = append(*flags, model.FlagNoData)
	return 0, model.DecisionFallbackNoData
}

// boundedCap normalizes a non-positive configured cap to the spec default,
// so a misconfigured Params can never disable the sliding window entirely.
func boundedCap(cap int) int {
	if cap <= 0 {
		return model.MaxDeltaHistory
	}
	return cap
}

// appendBounded appends delta to deltas and, if the result exceeds cap,
// drops the oldest elements until the length equals cap.
func appendBounded(deltas []int64, delta int64, cap int) []int64 {
	deltas = append(deltas, delta)
	if len(deltas) > cap {
		deltas = deltas[len(deltas)-cap:]
	}
	return deltas
}

// floorDiv is integer division rounding toward negative infinity, matching
// the spec's definition exactly (e.g. floorDiv(-301, 2) == -151).
func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// medianInt computes the median of values per §4.4's definition: sort
// stably, for odd length return the middle element, for even length return
// floorDiv of the two middle elements' sum. Returns 0 for an empty slice.
func medianInt(values []int64) int64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := make([]int64, n)
	copy(sorted, values)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	if n%2 == 1 {
		return sorted[n/2]
	}
	a, b := sorted[n/2-1], sorted[n/2]
	return floorDiv(a+b, 2)
}
