// Package settings persists the per-user sync configuration: whether
// auto-sync runs, how often, in which direction, and when the last pass
// started. The record is a singleton; only the sync engine writes
// LastSyncTime, everything else changes through explicit user updates.
package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"meetsync/internal/store"
)

// Key is the KV key the settings record persists under.
const Key = "google_calendar_sync_settings"

// Direction controls which reconciliation phases run.
type Direction string

const (
	// DirectionBoth runs the pull and push phases.
	DirectionBoth Direction = "bidirectional"
	// DirectionPushOnly pushes local meetings to the calendar and skips
	// the pull phase.
	DirectionPushOnly Direction = "to-remote"
	// DirectionPullOnly imports calendar events and skips the push phase.
	DirectionPullOnly Direction = "from-remote"
)

// Valid reports whether d is a known direction value.
func (d Direction) Valid() bool {
	switch d {
	case DirectionBoth, DirectionPushOnly, DirectionPullOnly:
		return true
	}
	return false
}

// Settings is the persisted sync configuration.
type Settings struct {
	AutoSync            bool       `json:"autoSync"`
	SyncIntervalMinutes int        `json:"syncIntervalMinutes"`
	SyncDirection       Direction  `json:"syncDirection"`
	LastSyncTime        *time.Time `json:"lastSyncTime"`
}

// Interval returns the auto-sync interval as a duration.
func (s *Settings) Interval() time.Duration {
	return time.Duration(s.SyncIntervalMinutes) * time.Minute
}

// Defaults returns the settings used before any record has been persisted.
func Defaults() *Settings {
	return &Settings{
		AutoSync:            false,
		SyncIntervalMinutes: 15,
		SyncDirection:       DirectionBoth,
	}
}

// Store reads and writes the settings singleton.
type Store struct {
	kv store.KV
}

// NewStore creates a settings store backed by the given key-value store.
func NewStore(kv store.KV) *Store {
	return &Store{kv: kv}
}

// Load returns the persisted settings, or [Defaults] when none exist yet.
// Out-of-range persisted values are normalised rather than rejected.
func (s *Store) Load(ctx context.Context) (*Settings, error) {
	raw, err := s.kv.Get(ctx, Key)
	if err != nil {
		return nil, fmt.Errorf("reading sync settings: %w", err)
	}
	if raw == "" {
		return Defaults(), nil
	}

	var cfg Settings
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return nil, fmt.Errorf("decoding sync settings: %w", err)
	}
	if cfg.SyncIntervalMinutes < 1 {
		cfg.SyncIntervalMinutes = Defaults().SyncIntervalMinutes
	}
	if !cfg.SyncDirection.Valid() {
		cfg.SyncDirection = DirectionBoth
	}
	return &cfg, nil
}

// Save persists the full settings record.
func (s *Store) Save(ctx context.Context, cfg *Settings) error {
	if cfg.SyncIntervalMinutes < 1 {
		return fmt.Errorf("sync interval %d is below the 1 minute minimum", cfg.SyncIntervalMinutes)
	}
	if !cfg.SyncDirection.Valid() {
		return fmt.Errorf("unknown sync direction %q", cfg.SyncDirection)
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding sync settings: %w", err)
	}
	if err := s.kv.Set(ctx, Key, string(raw)); err != nil {
		return fmt.Errorf("writing sync settings: %w", err)
	}
	return nil
}

// SetLastSyncTime stamps the record with the start time of the latest pass,
// leaving all other fields untouched.
func (s *Store) SetLastSyncTime(ctx context.Context, at time.Time) error {
	cfg, err := s.Load(ctx)
	if err != nil {
		return err
	}
	at = at.UTC()
	cfg.LastSyncTime = &at
	return s.Save(ctx, cfg)
}
