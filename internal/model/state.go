package model

import (
	"sort"

	"github.com/donizo-labs/truthengine/internal/codec"
)

// MaxDeltaHistory is the default maximum length of an item's accepted-human
// delta window. Overridable via config; see internal/config.
const MaxDeltaHistory = 5

// PerItemState is the learning state the engine persists for one item.
// Created on first-observed event for the item; persists indefinitely.
type PerItemState struct {
	ItemID                    string  `json:"item_id"`
	LastUpdatedTS             int64   `json:"last_updated_ts"`
	AcceptedHumanDeltasCents  []int64 `json:"accepted_human_deltas_cents"`
	BiasCents                 int64   `json:"bias_cents"`
}

// Clone returns a deep copy, so callers mutating a returned state never
// alias the store's copy before committing it back.
func (s PerItemState) Clone() PerItemState {
	deltas := make([]int64, len(s.AcceptedHumanDeltasCents))
	copy(deltas, s.AcceptedHumanDeltasCents)
	s.AcceptedHumanDeltasCents = deltas
	return s
}

// ToValue produces the codec.Value the canonical codec hashes this state
// as, when nested inside an EngineState fingerprint.
func (s PerItemState) ToValue() codec.Value {
	deltas := make(codec.Array, len(s.AcceptedHumanDeltasCents))
	for i, d := range s.AcceptedHumanDeltasCents {
		deltas[i] = codec.Int(d)
	}
	return codec.Object{
		"last_updated_ts":              codec.Int(s.LastUpdatedTS),
		"accepted_human_deltas_cents":  deltas,
		"bias_cents":                   codec.Int(s.BiasCents),
	}
}

// EngineState is the persisted root: per-item learning state plus the set
// of already-processed event IDs, fingerprinted as a whole.
type EngineState struct {
	Version       int64
	Items         map[string]PerItemState
	SeenEventIDs  map[string]struct{}
	StateHash     string
}

// NewEngineState returns a fresh, empty state at the current schema
// version, with its fingerprint already computed.
func NewEngineState(version int64) (*EngineState, error) {
	s := &EngineState{
		Version:      version,
		Items:        make(map[string]PerItemState),
		SeenEventIDs: make(map[string]struct{}),
	}
	hash, err := s.Fingerprint()
	if err != nil {
		return nil, err
	}
	s.StateHash = hash
	return s, nil
}

// Seen reports whether eventID has already been processed.
func (s *EngineState) Seen(eventID string) bool {
	_, ok := s.SeenEventIDs[eventID]
	return ok
}

// MarkSeen records eventID as processed. Idempotent.
func (s *EngineState) MarkSeen(eventID string) {
	s.SeenEventIDs[eventID] = struct{}{}
}

// hashedValue builds the codec.Value for the part of the state that is
// hashed: version, items, seen_event_ids. state_hash itself is excluded —
// hashing the hash would be circular.
func (s *EngineState) hashedValue() codec.Value {
	items := make(codec.Object, len(s.Items))
	for itemID, st := range s.Items {
		items[itemID] = st.ToValue()
	}

	ids := make([]string, 0, len(s.SeenEventIDs))
	for id := range s.SeenEventIDs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return codec.Object{
		"version":        codec.Int(s.Version),
		"items":          items,
		"seen_event_ids": codec.StringArray(ids),
	}
}

// Fingerprint computes the canonical SHA-256 fingerprint of the state,
// excluding the StateHash field itself.
func (s *EngineState) Fingerprint() (string, error) {
	return codec.Fingerprint(s.hashedValue())
}

// Refresh recomputes and stores StateHash. Called after every committed
// mutation so StateHash is always at-rest-correct.
func (s *EngineState) Refresh() error {
	hash, err := s.Fingerprint()
	if err != nil {
		return err
	}
	s.StateHash = hash
	return nil
}
