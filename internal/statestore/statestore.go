// Package statestore persists the Truth Engine's EngineState to a single
// JSON file. The teacher's store package (internal/store) gets atomicity
// from SQLite transactions; this package has no database to lean on, so it
// gets the same guarantee the way a single-file store has to: write to a
// temp file in the target directory, fsync, then rename over the
// destination. A crash mid-write leaves the old file untouched.
package statestore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"

	"github.com/donizo-labs/truthengine/internal/engineerr"
	"github.com/donizo-labs/truthengine/internal/model"
)

// CurrentSchemaVersion is the state file schema version this build writes
// and expects. Bump when PerItemState or EngineState's persisted shape
// changes.
const CurrentSchemaVersion = 1

// document is the on-disk shape of a state file. Field order here doesn't
// affect the canonical fingerprint — that's computed from codec.Value, not
// from this struct — but it does fix the order encoding/json writes, which
// matters for readability of the file, not for correctness.
type document struct {
	Version      int64                         `json:"version"`
	Items        map[string]model.PerItemState `json:"items"`
	SeenEventIDs []string                      `json:"seen_event_ids"`
	StateHash    string                        `json:"state_hash"`
}

// Load reads and validates a state file. A missing file is not an error —
// it returns a fresh empty state at CurrentSchemaVersion, matching the
// pipeline's "first run" behavior. A present file whose stored state_hash
// doesn't match its own recomputed fingerprint returns a STATE_CORRUPT
// *engineerr.EngineError.
func Load(path string) (*model.EngineState, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return model.NewEngineState(CurrentSchemaVersion)
	}
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse state file: %w", err)
	}

	state := &model.EngineState{
		Version:      doc.Version,
		Items:        doc.Items,
		SeenEventIDs: make(map[string]struct{}, len(doc.SeenEventIDs)),
		StateHash:    doc.StateHash,
	}
	if state.Items == nil {
		state.Items = make(map[string]model.PerItemState)
	}
	for id, st := range state.Items {
		st.ItemID = id
		state.Items[id] = st
	}
	for _, id := range doc.SeenEventIDs {
		state.MarkSeen(id)
	}

	recomputed, err := state.Fingerprint()
	if err != nil {
		return nil, fmt.Errorf("fingerprint loaded state: %w", err)
	}
	if recomputed != state.StateHash {
		return nil, engineerr.StateCorrupt(state.StateHash, recomputed)
	}

	return state, nil
}

// Save refreshes state's fingerprint and writes it to path atomically: a
// sibling temp file is written and fsynced, then renamed over path. The
// temp name carries a random UUID suffix so concurrent Save calls against
// the same path (which the pipeline never issues, but tests might) never
// collide.
func Save(path string, state *model.EngineState) error {
	if err := state.Refresh(); err != nil {
		return fmt.Errorf("refresh state fingerprint: %w", err)
	}

	ids := make([]string, 0, len(state.SeenEventIDs))
	for id := range state.SeenEventIDs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	doc := document{
		Version:      state.Version,
		Items:        state.Items,
		SeenEventIDs: ids,
		StateHash:    state.StateHash,
	}

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state document: %w", err)
	}

	dir := filepath.Dir(path)
	tmpName := filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", filepath.Base(path), uuid.NewString()))

	f, err := os.OpenFile(tmpName, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	defer os.Remove(tmpName) // no-op once the rename below succeeds

	if _, err := f.Write(out); err != nil {
		f.Close()
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync temp state file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp state file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename temp state file into place: %w", err)
	}

	return nil
}

// Fingerprint is a thin re-export of model.EngineState.Fingerprint, so
// callers comparing expected hashes don't need to reach into model directly.
func Fingerprint(state *model.EngineState) (string, error) {
	return state.Fingerprint()
}
