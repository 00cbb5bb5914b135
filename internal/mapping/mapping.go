// Package mapping persists the one-to-one correspondence between local
// meeting IDs and Google Calendar event IDs. The table is the sync engine's
// memory of which pairs are already linked; without it every pass would
// re-create meetings it has seen before.
package mapping

import (
	"context"
	"encoding/json"
	"fmt"

	"meetsync/internal/store"
)

// Key is the KV key the mapping table persists under. The value is a JSON
// object of localID → remoteID.
const Key = "google_calendar_mappings"

// Pair is one localID ↔ remoteID link.
type Pair struct {
	LocalID  string
	RemoteID string
}

// Table is the persisted bidirectional ID map. It enforces the invariant
// that a local ID maps to at most one remote ID and vice versa.
type Table struct {
	kv store.KV
}

// NewTable creates a Table backed by the given key-value store.
func NewTable(kv store.KV) *Table {
	return &Table{kv: kv}
}

// Get returns the remote event ID linked to localID, or "" if unmapped.
func (t *Table) Get(ctx context.Context, localID string) (string, error) {
	m, err := t.load(ctx)
	if err != nil {
		return "", err
	}
	return m[localID], nil
}

// GetByRemote returns the local meeting ID linked to remoteID, or "" if
// unmapped.
func (t *Table) GetByRemote(ctx context.Context, remoteID string) (string, error) {
	m, err := t.load(ctx)
	if err != nil {
		return "", err
	}
	for localID, rid := range m {
		if rid == remoteID {
			return localID, nil
		}
	}
	return "", nil
}

// Set links localID to remoteID, overwriting any prior mapping for localID.
// Any other local ID currently holding remoteID loses it, keeping both
// directions unique.
func (t *Table) Set(ctx context.Context, localID, remoteID string) error {
	if localID == "" || remoteID == "" {
		return fmt.Errorf("mapping requires both IDs, got local=%q remote=%q", localID, remoteID)
	}
	m, err := t.load(ctx)
	if err != nil {
		return err
	}
	for lid, rid := range m {
		if rid == remoteID && lid != localID {
			delete(m, lid)
		}
	}
	m[localID] = remoteID
	return t.save(ctx, m)
}

// Remove deletes the mapping for localID. Removing an unmapped ID is a no-op.
func (t *Table) Remove(ctx context.Context, localID string) error {
	m, err := t.load(ctx)
	if err != nil {
		return err
	}
	if _, ok := m[localID]; !ok {
		return nil
	}
	delete(m, localID)
	return t.save(ctx, m)
}

// All returns every stored pair, in no particular order.
func (t *Table) All(ctx context.Context) ([]Pair, error) {
	m, err := t.load(ctx)
	if err != nil {
		return nil, err
	}
	pairs := make([]Pair, 0, len(m))
	for localID, remoteID := range m {
		pairs = append(pairs, Pair{LocalID: localID, RemoteID: remoteID})
	}
	return pairs, nil
}

func (t *Table) load(ctx context.Context) (map[string]string, error) {
	raw, err := t.kv.Get(ctx, Key)
	if err != nil {
		return nil, fmt.Errorf("reading mappings: %w", err)
	}
	if raw == "" {
		return make(map[string]string), nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("decoding mappings: %w", err)
	}
	return m, nil
}

func (t *Table) save(ctx context.Context, m map[string]string) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding mappings: %w", err)
	}
	if err := t.kv.Set(ctx, Key, string(raw)); err != nil {
		return fmt.Errorf("writing mappings: %w", err)
	}
	return nil
}
