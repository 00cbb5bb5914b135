package store

import (
	"context"
	"path/filepath"
	"testing"

	"meetsync/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test-meetsync.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleMeeting() *model.Meeting {
	return &model.Meeting{
		Title:           "Standup",
		Description:     "Daily sync",
		Date:            "2024-01-15",
		Time:            "09:00",
		DurationMinutes: 30,
		Location:        model.Location{Name: "Room 4", Kind: model.LocationPhysical},
		Participants:    []model.Participant{{Name: "Ada", Email: "ada@example.com"}},
		Source:          model.SourceLocal,
	}
}

func TestOpen_CreatesSchema(t *testing.T) {
	s := openTestStore(t)
	// ListMeetings queries the meetings table — fails if the schema is wrong.
	meetings, err := s.ListMeetings(context.Background())
	if err != nil {
		t.Fatalf("ListMeetings after open: %v", err)
	}
	if len(meetings) != 0 {
		t.Errorf("expected empty store, got %d meetings", len(meetings))
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meetsync.db")
	s1, err := Open(path)
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	if err := s1.Close(); err != nil {
		t.Fatalf("s1.Close: %v", err)
	}

	// Re-opening the same file must not fail or wipe data.
	s2, err := Open(path)
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	if err := s2.Close(); err != nil {
		t.Fatalf("s2.Close: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Meetings
// ---------------------------------------------------------------------------

func TestCreateAndGetMeeting(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	created, err := s.CreateMeeting(ctx, sampleMeeting())
	if err != nil {
		t.Fatalf("CreateMeeting: %v", err)
	}
	if created.ID == "" {
		t.Fatal("CreateMeeting should assign an ID")
	}
	if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
		t.Error("CreateMeeting should stamp timestamps")
	}

	got, err := s.GetMeeting(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetMeeting: %v", err)
	}
	if got == nil {
		t.Fatal("GetMeeting returned nil for existing meeting")
	}
	if got.Title != "Standup" || got.Time != "09:00" || got.DurationMinutes != 30 {
		t.Errorf("round-trip mismatch: %+v", got)
	}
	if got.Location.Name != "Room 4" {
		t.Errorf("location lost: %+v", got.Location)
	}
	if len(got.Participants) != 1 || got.Participants[0].Email != "ada@example.com" {
		t.Errorf("participants lost: %+v", got.Participants)
	}
}

func TestGetMeeting_Missing(t *testing.T) {
	s := openTestStore(t)
	got, err := s.GetMeeting(context.Background(), "no-such-id")
	if err != nil {
		t.Fatalf("GetMeeting: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for missing meeting, got %+v", got)
	}
}

func TestCreateMeeting_KeepsCallerID(t *testing.T) {
	s := openTestStore(t)
	m := sampleMeeting()
	m.ID = "L1"
	created, err := s.CreateMeeting(context.Background(), m)
	if err != nil {
		t.Fatalf("CreateMeeting: %v", err)
	}
	if created.ID != "L1" {
		t.Errorf("ID = %q, want L1", created.ID)
	}
}

func TestUpdateMeeting(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	created, err := s.CreateMeeting(ctx, sampleMeeting())
	if err != nil {
		t.Fatalf("CreateMeeting: %v", err)
	}

	created.Title = "Standup (moved)"
	created.Time = "10:00"
	created.Participants = append(created.Participants, model.Participant{Email: "bob@example.com"})
	if _, err := s.UpdateMeeting(ctx, created); err != nil {
		t.Fatalf("UpdateMeeting: %v", err)
	}

	got, err := s.GetMeeting(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetMeeting: %v", err)
	}
	if got.Title != "Standup (moved)" || got.Time != "10:00" {
		t.Errorf("update not applied: %+v", got)
	}
	if len(got.Participants) != 2 {
		t.Errorf("participants = %d, want 2", len(got.Participants))
	}
}

func TestUpdateMeeting_Missing(t *testing.T) {
	s := openTestStore(t)
	m := sampleMeeting()
	m.ID = "ghost"
	if _, err := s.UpdateMeeting(context.Background(), m); err == nil {
		t.Error("expected error updating a missing meeting")
	}
}

func TestDeleteMeeting(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	created, err := s.CreateMeeting(ctx, sampleMeeting())
	if err != nil {
		t.Fatalf("CreateMeeting: %v", err)
	}
	if err := s.DeleteMeeting(ctx, created.ID); err != nil {
		t.Fatalf("DeleteMeeting: %v", err)
	}

	got, err := s.GetMeeting(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetMeeting: %v", err)
	}
	if got != nil {
		t.Error("meeting should be gone after delete")
	}

	// Deleting again is a no-op.
	if err := s.DeleteMeeting(ctx, created.ID); err != nil {
		t.Errorf("second DeleteMeeting: %v", err)
	}
}

func TestListMeetings_OrderedByDateTime(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	later := sampleMeeting()
	later.Date = "2024-01-16"
	earlier := sampleMeeting()
	earlier.Date = "2024-01-15"

	if _, err := s.CreateMeeting(ctx, later); err != nil {
		t.Fatalf("CreateMeeting: %v", err)
	}
	if _, err := s.CreateMeeting(ctx, earlier); err != nil {
		t.Fatalf("CreateMeeting: %v", err)
	}

	meetings, err := s.ListMeetings(ctx)
	if err != nil {
		t.Fatalf("ListMeetings: %v", err)
	}
	if len(meetings) != 2 {
		t.Fatalf("meetings = %d, want 2", len(meetings))
	}
	if meetings[0].Date != "2024-01-15" {
		t.Errorf("first meeting date = %q, want 2024-01-15", meetings[0].Date)
	}
}

// ---------------------------------------------------------------------------
// KV
// ---------------------------------------------------------------------------

func TestKV_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "google_access_token", "tok-1"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := s.Get(ctx, "google_access_token")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "tok-1" {
		t.Errorf("Get = %q, want tok-1", got)
	}

	// Overwrite.
	if err := s.Set(ctx, "google_access_token", "tok-2"); err != nil {
		t.Fatalf("second Set: %v", err)
	}
	got, _ = s.Get(ctx, "google_access_token")
	if got != "tok-2" {
		t.Errorf("Get after overwrite = %q, want tok-2", got)
	}

	if err := s.Delete(ctx, "google_access_token"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	got, _ = s.Get(ctx, "google_access_token")
	if got != "" {
		t.Errorf("Get after delete = %q, want empty", got)
	}
}

func TestKV_MissingKeyReadsEmpty(t *testing.T) {
	s := openTestStore(t)
	got, err := s.Get(context.Background(), "never-set")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "" {
		t.Errorf("Get = %q, want empty", got)
	}
}

func TestMemoryKV_MatchesContract(t *testing.T) {
	var kv KV = NewMemoryKV()
	ctx := context.Background()

	if err := kv.Set(ctx, "a", "1"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := kv.Get(ctx, "a")
	if err != nil || got != "1" {
		t.Errorf("Get = %q, %v; want 1, nil", got, err)
	}
	if err := kv.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	got, _ = kv.Get(ctx, "a")
	if got != "" {
		t.Errorf("Get after delete = %q, want empty", got)
	}
}
