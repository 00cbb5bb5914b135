// Package sync implements the bidirectional reconciliation engine between
// the local meeting store and a Google Calendar. A pass pulls remote events
// into the meeting store, pushes local meetings out to the calendar, keeps
// the ID mapping table current, and reports a structured result. Individual
// item failures are recorded and isolated; they never abort the pass.
//
// The package contains three main components:
//
//   - [Engine] runs reconciliation passes and the single-meeting and
//     joint-deletion operations.
//   - [Scheduler] triggers periodic passes at the configured interval.
//   - [Linker] performs the one-time first-sync linkage of meetings and
//     events that already exist on both sides.
package sync

import (
	"context"
	"time"

	"google.golang.org/api/calendar/v3"

	"meetsync/internal/mapping"
	"meetsync/internal/model"
	"meetsync/internal/settings"
)

// MeetingStore provides CRUD access to locally persisted meetings.
// Implemented by [store.Store].
type MeetingStore interface {
	ListMeetings(ctx context.Context) ([]*model.Meeting, error)
	GetMeeting(ctx context.Context, id string) (*model.Meeting, error)
	CreateMeeting(ctx context.Context, m *model.Meeting) (*model.Meeting, error)
	UpdateMeeting(ctx context.Context, m *model.Meeting) (*model.Meeting, error)
	DeleteMeeting(ctx context.Context, id string) error
}

// RemoteCalendar provides read/write access to the remote calendar.
// Implemented by [google.Client]; see that type for the degraded-failure
// contract (empty list, nil event) the engine relies on.
type RemoteCalendar interface {
	ListEvents(ctx context.Context, timeMin, timeMax time.Time) ([]*calendar.Event, error)
	CreateEvent(ctx context.Context, ev *calendar.Event) (*calendar.Event, error)
	UpdateEvent(ctx context.Context, ev *calendar.Event) (*calendar.Event, error)
	DeleteEvent(ctx context.Context, eventID string) error
	GetEvent(ctx context.Context, eventID string) (*calendar.Event, error)
}

// MappingTable is the persisted local-ID to remote-ID correspondence.
// Implemented by [mapping.Table].
type MappingTable interface {
	Get(ctx context.Context, localID string) (string, error)
	GetByRemote(ctx context.Context, remoteID string) (string, error)
	Set(ctx context.Context, localID, remoteID string) error
	Remove(ctx context.Context, localID string) error
	All(ctx context.Context) ([]mapping.Pair, error)
}

// SettingsStore provides access to the persisted sync settings.
// Implemented by [settings.Store].
type SettingsStore interface {
	Load(ctx context.Context) (*settings.Settings, error)
	SetLastSyncTime(ctx context.Context, at time.Time) error
}

// Listener receives lifecycle notifications for meetings the engine touches,
// so dependent subsystems (reminder scheduling, UI refresh) can react to
// calendar-driven changes. Implementations must not block; the engine calls
// them inline.
type Listener interface {
	MeetingCreated(m *model.Meeting)
	MeetingUpdated(m *model.Meeting)
	MeetingDeleted(meetingID string)
}

// NopListener is a Listener that ignores every notification.
type NopListener struct{}

func (NopListener) MeetingCreated(*model.Meeting) {}
func (NopListener) MeetingUpdated(*model.Meeting) {}
func (NopListener) MeetingDeleted(string)         {}
