package sync

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/api/calendar/v3"
)

func TestCleanupRemovesOrphanedMappings(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Valid pair: both sides exist.
	seedPair(t, env, teamSyncMeeting(), agreeingEvent())

	// Local side gone.
	if err := env.mappings.Set(ctx, "gone-local", "E2"); err != nil {
		t.Fatalf("seeding mapping: %v", err)
	}
	env.cal.add(&calendar.Event{Id: "E2", Summary: "Ghost"})

	// Remote side gone.
	ghost := teamSyncMeeting()
	ghost.ID = "L2"
	env.meetings.add(ghost)
	if err := env.mappings.Set(ctx, "L2", "gone-remote"); err != nil {
		t.Fatalf("seeding mapping: %v", err)
	}

	removed, err := env.engine.CleanupOrphanMappings(ctx)
	if err != nil {
		t.Fatalf("CleanupOrphanMappings: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 mappings removed, got %d", removed)
	}

	if remoteID, _ := env.mappings.Get(ctx, "L1"); remoteID != "E1" {
		t.Error("valid mapping must be untouched")
	}
	if remoteID, _ := env.mappings.Get(ctx, "gone-local"); remoteID != "" {
		t.Error("mapping with missing meeting must be removed")
	}
	if remoteID, _ := env.mappings.Get(ctx, "L2"); remoteID != "" {
		t.Error("mapping with missing event must be removed")
	}

	// Second run finds nothing.
	removed, err = env.engine.CleanupOrphanMappings(ctx)
	if err != nil {
		t.Fatalf("second CleanupOrphanMappings: %v", err)
	}
	if removed != 0 {
		t.Errorf("expected idempotent second run, removed %d", removed)
	}
}

func TestCleanupTreatsCancelledEventAsGone(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	cancelled := agreeingEvent()
	cancelled.Status = "cancelled"
	seedPair(t, env, teamSyncMeeting(), cancelled)

	removed, err := env.engine.CleanupOrphanMappings(ctx)
	if err != nil {
		t.Fatalf("CleanupOrphanMappings: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected cancelled event's mapping removed, got %d", removed)
	}
}

func TestCleanupAbortsWhenRemoteUnavailable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedPair(t, env, teamSyncMeeting(), agreeingEvent())
	env.cal.failGet = errors.New("not authenticated")

	if _, err := env.engine.CleanupOrphanMappings(ctx); err == nil {
		t.Fatal("expected error when events cannot be verified")
	}
	if remoteID, _ := env.mappings.Get(ctx, "L1"); remoteID != "E1" {
		t.Error("mapping must not be purged when the remote side is unverifiable")
	}
}
