// Package fixtures builds synthetic event streams for tests. It is
// grounded on donizo_engine/generate_events.py's intent — produce a
// plausible stream of HISTORIC/SUPPLIER/HUMAN events for a handful of
// items, with price noise drawn from a seeded PRNG the way the original
// generator seeds random.Random(seed) — without reproducing that
// script's exact sequence; the spec leaves the synthetic generator's
// output unconstrained, so this package defines its own deterministic
// sequence instead. Event IDs come from testutil's sequence clock, not
// the PRNG, so ID allocation never shifts when the noise formula
// changes. google/uuid is used only as an ID source for callers that
// explicitly opt out of the readable prefixed IDs.
package fixtures

import (
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"

	"github.com/donizo-labs/truthengine/internal/model"
	"github.com/donizo-labs/truthengine/internal/testutil"
)

// Builder produces a deterministic sequence of events for one item. It
// tracks just enough state (a sequence clock, a seeded noise source, and
// the last timestamp issued) to keep successive events well-formed and
// non-decreasing in time.
type Builder struct {
	itemID   string
	seq      *testutil.SequenceClock
	noise    *rand.Rand
	lastTS   int64
	idPrefix string
}

// NewBuilder returns a Builder for itemID. idPrefix is used to construct
// readable, deterministic event IDs (e.g. "fx"); pass "" to use UUIDs
// instead for tests that want globally unique but non-human-readable IDs.
// seed drives the builder's price-noise source; the same seed always
// produces the same noise sequence, so fixtures stay reproducible across
// runs.
func NewBuilder(itemID, idPrefix string, seed uint64) *Builder {
	return &Builder{
		itemID:   itemID,
		idPrefix: idPrefix,
		seq:      testutil.NewSequenceClock(),
		noise:    rand.New(rand.NewPCG(seed, seed)),
	}
}

// Jitter returns a pseudo-random offset in [-spread, spread], drawn from
// the builder's seeded noise source. Callers use it to perturb prices the
// way generate_events.py perturbs its base prices with rng.randint.
func (b *Builder) Jitter(spread int64) int64 {
	if spread <= 0 {
		return 0
	}
	return b.noise.Int64N(2*spread+1) - spread
}

// nextID returns the next event ID: either "<prefix>-<item>-<seq>" or, if
// no prefix was given, a fresh random UUID.
func (b *Builder) nextID() string {
	n := b.seq.Next()
	if b.idPrefix == "" {
		return uuid.NewString()
	}
	return fmt.Sprintf("%s-%s-%d", b.idPrefix, b.itemID, n)
}

// at advances the builder's clock to at least ts and returns ts. Events
// built in sequence never go backwards in time.
func (b *Builder) at(ts int64) int64 {
	if ts < b.lastTS {
		ts = b.lastTS
	}
	b.lastTS = ts
	return ts
}

// Historic returns a HISTORIC event at timestamp ts.
func (b *Builder) Historic(ts, priceCents int64) model.Event {
	return model.Event{
		EventID:    b.nextID(),
		ItemID:     b.itemID,
		Timestamp:  b.at(ts),
		Source:     model.SourceHistoric,
		PriceCents: priceCents,
		Outcome:    model.OutcomeNone,
	}
}

// Supplier returns a SUPPLIER event at timestamp ts.
func (b *Builder) Supplier(ts, priceCents int64) model.Event {
	return model.Event{
		EventID:    b.nextID(),
		ItemID:     b.itemID,
		Timestamp:  b.at(ts),
		Source:     model.SourceSupplier,
		PriceCents: priceCents,
		Outcome:    model.OutcomeNone,
	}
}

// HumanAccepted returns a HUMAN event with outcome QUOTE_ACCEPTED.
func (b *Builder) HumanAccepted(ts, priceCents int64) model.Event {
	return model.Event{
		EventID:    b.nextID(),
		ItemID:     b.itemID,
		Timestamp:  b.at(ts),
		Source:     model.SourceHuman,
		PriceCents: priceCents,
		Outcome:    model.OutcomeQuoteAccepted,
	}
}

// HumanRejected returns a HUMAN event with outcome QUOTE_REJECTED.
func (b *Builder) HumanRejected(ts, priceCents int64) model.Event {
	return model.Event{
		EventID:    b.nextID(),
		ItemID:     b.itemID,
		Timestamp:  b.at(ts),
		Source:     model.SourceHuman,
		PriceCents: priceCents,
		Outcome:    model.OutcomeQuoteRejected,
	}
}

// Sequence generates count alternating HISTORIC/SUPPLIER/HUMAN events for
// an item, spaced intervalSeconds apart starting at startTS, with price
// drifting by +1% of basePriceCents per event plus seeded noise of up to
// 5% of basePriceCents either way. Intended for volume tests and
// benchmarks where the exact values don't matter, only that they are
// well-formed and reproducible across calls with the same arguments,
// including seed.
func Sequence(itemID, idPrefix string, startTS, intervalSeconds, basePriceCents int64, count int, seed uint64) []model.Event {
	b := NewBuilder(itemID, idPrefix, seed)
	events := make([]model.Event, 0, count)
	spread := basePriceCents / 20

	for i := 0; i < count; i++ {
		ts := startTS + int64(i)*intervalSeconds
		price := basePriceCents + int64(i)*(basePriceCents/100) + b.Jitter(spread)
		if price < 1 {
			price = 1
		}

		switch i % 3 {
		case 0:
			events = append(events, b.Historic(ts, price))
		case 1:
			events = append(events, b.Supplier(ts, price))
		default:
			events = append(events, b.HumanAccepted(ts, price))
		}
	}

	return events
}
