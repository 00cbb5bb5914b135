package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"meetsync/internal/model"
)

const meetingColumns = `
	id, title, description, date, time, duration_min,
	location, participants, source, created_at, updated_at`

// ListMeetings returns all stored meetings ordered by date and time.
func (s *Store) ListMeetings(ctx context.Context) ([]*model.Meeting, error) {
	q := `SELECT` + meetingColumns + ` FROM meetings ORDER BY date, time`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("querying meetings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var meetings []*model.Meeting
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, err
		}
		meetings = append(meetings, m)
	}
	return meetings, rows.Err()
}

// GetMeeting returns the meeting with the given ID, or (nil, nil) if no such
// meeting exists.
func (s *Store) GetMeeting(ctx context.Context, id string) (*model.Meeting, error) {
	q := `SELECT` + meetingColumns + ` FROM meetings WHERE id = ?`
	return scanMeeting(s.db.QueryRowContext(ctx, q, id))
}

// CreateMeeting inserts a new meeting. If the meeting has no ID, a fresh UUID
// is assigned. CreatedAt/UpdatedAt are stamped with the current time.
func (s *Store) CreateMeeting(ctx context.Context, m *model.Meeting) (*model.Meeting, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now

	location, participants, err := encodeMeetingJSON(m)
	if err != nil {
		return nil, err
	}

	const q = `
		INSERT INTO meetings
		    (id, title, description, date, time, duration_min,
		     location, participants, source, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, q,
		m.ID, m.Title, m.Description, m.Date, m.Time, m.DurationMinutes,
		location, participants, string(m.Source),
		formatTime(m.CreatedAt), formatTime(m.UpdatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting meeting %q: %w", m.Title, err)
	}
	return m, nil
}

// UpdateMeeting overwrites the stored meeting with the given record. The
// winning side's complete state is applied rather than a field patch, which
// matches the sync engine's semantics. UpdatedAt is stamped.
func (s *Store) UpdateMeeting(ctx context.Context, m *model.Meeting) (*model.Meeting, error) {
	m.UpdatedAt = time.Now().UTC()

	location, participants, err := encodeMeetingJSON(m)
	if err != nil {
		return nil, err
	}

	const q = `
		UPDATE meetings SET
		    title = ?, description = ?, date = ?, time = ?, duration_min = ?,
		    location = ?, participants = ?, source = ?, updated_at = ?
		WHERE id = ?`
	res, err := s.db.ExecContext(ctx, q,
		m.Title, m.Description, m.Date, m.Time, m.DurationMinutes,
		location, participants, string(m.Source), formatTime(m.UpdatedAt),
		m.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("updating meeting %q: %w", m.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, fmt.Errorf("updating meeting %q: not found", m.ID)
	}
	return m, nil
}

// DeleteMeeting removes the meeting with the given ID. Deleting an absent
// meeting is a no-op.
func (s *Store) DeleteMeeting(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM meetings WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting meeting %q: %w", id, err)
	}
	return nil
}

// --- helpers -----------------------------------------------------------------

// scanner matches both *sql.Row and *sql.Rows so scanMeeting can be reused.
type scanner interface {
	Scan(dest ...any) error
}

func scanMeeting(sc scanner) (*model.Meeting, error) {
	var m model.Meeting
	var location, participants, source, createdAt, updatedAt string

	err := sc.Scan(
		&m.ID,
		&m.Title,
		&m.Description,
		&m.Date,
		&m.Time,
		&m.DurationMinutes,
		&location,
		&participants,
		&source,
		&createdAt,
		&updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil //nolint:nilnil // intentional: "not found" sentinel
	}
	if err != nil {
		return nil, fmt.Errorf("scanning meeting row: %w", err)
	}

	if err := json.Unmarshal([]byte(location), &m.Location); err != nil {
		return nil, fmt.Errorf("decoding location for %q: %w", m.ID, err)
	}
	if err := json.Unmarshal([]byte(participants), &m.Participants); err != nil {
		return nil, fmt.Errorf("decoding participants for %q: %w", m.ID, err)
	}
	m.Source = model.Source(source)
	m.CreatedAt, _ = parseTime(createdAt)
	m.UpdatedAt, _ = parseTime(updatedAt)

	return &m, nil
}

func encodeMeetingJSON(m *model.Meeting) (location, participants string, err error) {
	locBytes, err := json.Marshal(m.Location)
	if err != nil {
		return "", "", fmt.Errorf("encoding location for %q: %w", m.ID, err)
	}
	parts := m.Participants
	if parts == nil {
		parts = []model.Participant{}
	}
	partBytes, err := json.Marshal(parts)
	if err != nil {
		return "", "", fmt.Errorf("encoding participants for %q: %w", m.ID, err)
	}
	return string(locBytes), string(partBytes), nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
