package sync

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"google.golang.org/api/calendar/v3"

	"meetsync/internal/model"
)

// ---------------------------------------------------------------------------
// Meeting store mock
// ---------------------------------------------------------------------------

type mockMeetings struct {
	mu       sync.Mutex
	meetings map[string]*model.Meeting
	nextID   int

	createCalls int
	updateCalls int
	deleteCalls int

	failCreate error
	failUpdate error
	failDelete error
}

func newMockMeetings() *mockMeetings {
	return &mockMeetings{meetings: make(map[string]*model.Meeting)}
}

func (m *mockMeetings) add(meeting *model.Meeting) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *meeting
	m.meetings[cp.ID] = &cp
}

func (m *mockMeetings) get(id string) *model.Meeting {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mt, ok := m.meetings[id]; ok {
		cp := *mt
		return &cp
	}
	return nil
}

func (m *mockMeetings) ListMeetings(ctx context.Context) ([]*model.Meeting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Meeting, 0, len(m.meetings))
	for _, mt := range m.meetings {
		cp := *mt
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockMeetings) GetMeeting(ctx context.Context, id string) (*model.Meeting, error) {
	return m.get(id), nil
}

func (m *mockMeetings) CreateMeeting(ctx context.Context, meeting *model.Meeting) (*model.Meeting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	if m.failCreate != nil {
		return nil, m.failCreate
	}
	cp := *meeting
	if cp.ID == "" {
		m.nextID++
		cp.ID = "local-" + strconv.Itoa(m.nextID)
	}
	m.meetings[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (m *mockMeetings) UpdateMeeting(ctx context.Context, meeting *model.Meeting) (*model.Meeting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCalls++
	if m.failUpdate != nil {
		return nil, m.failUpdate
	}
	if _, ok := m.meetings[meeting.ID]; !ok {
		return nil, fmt.Errorf("meeting %q not found", meeting.ID)
	}
	cp := *meeting
	m.meetings[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (m *mockMeetings) DeleteMeeting(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteCalls++
	if m.failDelete != nil {
		return m.failDelete
	}
	delete(m.meetings, id)
	return nil
}

// ---------------------------------------------------------------------------
// Remote calendar mock
// ---------------------------------------------------------------------------

type mockCalendar struct {
	mu     sync.Mutex
	events map[string]*calendar.Event
	nextID int

	listCalls   int
	createCalls int
	updateCalls int
	deleteCalls int

	failList   bool  // ListEvents returns empty, mirroring the client contract
	failCreate bool  // CreateEvent returns (nil, nil)
	failUpdate bool  // UpdateEvent returns (nil, nil)
	failDelete error // DeleteEvent returns this error
	failGet    error // GetEvent returns this error
}

func newMockCalendar() *mockCalendar {
	return &mockCalendar{events: make(map[string]*calendar.Event)}
}

func (c *mockCalendar) add(ev *calendar.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *ev
	c.events[cp.Id] = &cp
}

func (c *mockCalendar) get(id string) *calendar.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ev, ok := c.events[id]; ok {
		cp := *ev
		return &cp
	}
	return nil
}

func (c *mockCalendar) ListEvents(ctx context.Context, timeMin, timeMax time.Time) ([]*calendar.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listCalls++
	if c.failList {
		return nil, nil
	}
	out := make([]*calendar.Event, 0, len(c.events))
	for _, ev := range c.events {
		cp := *ev
		out = append(out, &cp)
	}
	return out, nil
}

func (c *mockCalendar) CreateEvent(ctx context.Context, ev *calendar.Event) (*calendar.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.createCalls++
	if c.failCreate {
		return nil, nil
	}
	cp := *ev
	c.nextID++
	cp.Id = "remote-" + strconv.Itoa(c.nextID)
	c.events[cp.Id] = &cp
	out := cp
	return &out, nil
}

func (c *mockCalendar) UpdateEvent(ctx context.Context, ev *calendar.Event) (*calendar.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updateCalls++
	if c.failUpdate {
		return nil, nil
	}
	if _, ok := c.events[ev.Id]; !ok {
		return nil, nil
	}
	cp := *ev
	c.events[cp.Id] = &cp
	out := cp
	return &out, nil
}

func (c *mockCalendar) DeleteEvent(ctx context.Context, eventID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleteCalls++
	if c.failDelete != nil {
		return c.failDelete
	}
	delete(c.events, eventID)
	return nil
}

func (c *mockCalendar) GetEvent(ctx context.Context, eventID string) (*calendar.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failGet != nil {
		return nil, c.failGet
	}
	if ev, ok := c.events[eventID]; ok {
		cp := *ev
		return &cp, nil
	}
	return nil, nil
}

// ---------------------------------------------------------------------------
// Listener mock
// ---------------------------------------------------------------------------

type mockListener struct {
	mu      sync.Mutex
	created []*model.Meeting
	updated []*model.Meeting
	deleted []string
}

func (l *mockListener) MeetingCreated(m *model.Meeting) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.created = append(l.created, m)
}

func (l *mockListener) MeetingUpdated(m *model.Meeting) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.updated = append(l.updated, m)
}

func (l *mockListener) MeetingDeleted(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.deleted = append(l.deleted, id)
}

func (l *mockListener) createdCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.created)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
