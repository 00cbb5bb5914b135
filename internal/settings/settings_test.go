package settings

import (
	"context"
	"testing"
	"time"

	"meetsync/internal/store"
)

func TestLoad_DefaultsWhenUnset(t *testing.T) {
	s := NewStore(store.NewMemoryKV())
	cfg, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AutoSync {
		t.Error("AutoSync should default to off")
	}
	if cfg.SyncIntervalMinutes != 15 {
		t.Errorf("SyncIntervalMinutes = %d, want 15", cfg.SyncIntervalMinutes)
	}
	if cfg.SyncDirection != DirectionBoth {
		t.Errorf("SyncDirection = %q, want %q", cfg.SyncDirection, DirectionBoth)
	}
	if cfg.LastSyncTime != nil {
		t.Error("LastSyncTime should start nil")
	}
}

func TestSaveAndLoad(t *testing.T) {
	s := NewStore(store.NewMemoryKV())
	ctx := context.Background()

	in := &Settings{
		AutoSync:            true,
		SyncIntervalMinutes: 5,
		SyncDirection:       DirectionPushOnly,
	}
	if err := s.Save(ctx, in); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !got.AutoSync || got.SyncIntervalMinutes != 5 || got.SyncDirection != DirectionPushOnly {
		t.Errorf("round-trip mismatch: %+v", got)
	}
	if got.Interval() != 5*time.Minute {
		t.Errorf("Interval = %v, want 5m", got.Interval())
	}
}

func TestSave_RejectsBadValues(t *testing.T) {
	s := NewStore(store.NewMemoryKV())
	ctx := context.Background()

	if err := s.Save(ctx, &Settings{SyncIntervalMinutes: 0, SyncDirection: DirectionBoth}); err == nil {
		t.Error("expected error for zero interval")
	}
	if err := s.Save(ctx, &Settings{SyncIntervalMinutes: 5, SyncDirection: "sideways"}); err == nil {
		t.Error("expected error for unknown direction")
	}
}

func TestLoad_NormalisesCorruptRecord(t *testing.T) {
	kv := store.NewMemoryKV()
	ctx := context.Background()
	// Simulate a record written by an older build with out-of-range values.
	if err := kv.Set(ctx, Key, `{"autoSync":true,"syncIntervalMinutes":0,"syncDirection":"sideways"}`); err != nil {
		t.Fatalf("seed: %v", err)
	}

	cfg, err := NewStore(kv).Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SyncIntervalMinutes != 15 {
		t.Errorf("SyncIntervalMinutes = %d, want normalised 15", cfg.SyncIntervalMinutes)
	}
	if cfg.SyncDirection != DirectionBoth {
		t.Errorf("SyncDirection = %q, want normalised %q", cfg.SyncDirection, DirectionBoth)
	}
}

func TestSetLastSyncTime_PreservesOtherFields(t *testing.T) {
	s := NewStore(store.NewMemoryKV())
	ctx := context.Background()

	if err := s.Save(ctx, &Settings{AutoSync: true, SyncIntervalMinutes: 5, SyncDirection: DirectionPullOnly}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	at := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	if err := s.SetLastSyncTime(ctx, at); err != nil {
		t.Fatalf("SetLastSyncTime: %v", err)
	}

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.LastSyncTime == nil || !got.LastSyncTime.Equal(at) {
		t.Errorf("LastSyncTime = %v, want %v", got.LastSyncTime, at)
	}
	if !got.AutoSync || got.SyncIntervalMinutes != 5 || got.SyncDirection != DirectionPullOnly {
		t.Errorf("other fields changed: %+v", got)
	}
}
