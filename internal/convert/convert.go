// Package convert maps between local meeting records and Google Calendar
// events. All functions are pure: they never touch storage or the network,
// and a malformed input degrades to a usable default instead of failing, so
// a sync pass is never aborted by bad data.
package convert

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"google.golang.org/api/calendar/v3"

	"meetsync/internal/model"
)

const (
	dateLayout     = "2006-01-02"
	clockLayout    = "15:04:05"
	combinedLayout = dateLayout + " " + clockLayout
	// localDateTime matches calendar timestamps sent without a UTC offset.
	localDateTime = "2006-01-02T15:04:05"

	// DefaultDurationMinutes applies when a meeting or event carries no
	// usable duration.
	DefaultDurationMinutes = 60

	// FallbackTitle replaces a missing event summary.
	FallbackTitle = "Untitled Event"
)

// TimeResult carries a composed timestamp plus a flag reporting whether the
// best-effort "now + 1 hour" fallback was applied. The flag exists so callers
// can log the degradation instead of it happening silently.
type TimeResult struct {
	Value        time.Time
	UsedFallback bool
}

// StartTime combines a meeting's date and time strings into a single
// timestamp in loc. Ambiguous clock values (12-hour with am/pm, bare hour,
// missing seconds) are normalised first. When the pair cannot be parsed the
// result falls back to now + 1 hour — sync must degrade, not abort.
func StartTime(m *model.Meeting, loc *time.Location, now time.Time) TimeResult {
	clock, ok := NormalizeClock(m.Time)
	if ok {
		if t, err := time.ParseInLocation(combinedLayout, m.Date+" "+clock, loc); err == nil {
			return TimeResult{Value: t}
		}
	}
	return TimeResult{Value: now.In(loc).Add(time.Hour), UsedFallback: true}
}

// NormalizeClock converts a wall-clock string to 24-hour "HH:MM:SS" form.
// Accepted inputs: "HH:MM:SS", "HH:MM", a bare hour ("9"), and 12-hour forms
// with an am/pm suffix ("2:30 PM", "2pm"). Returns ok=false when the value
// cannot be interpreted as a time of day.
func NormalizeClock(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}

	// Detect and strip an am/pm suffix.
	lower := strings.ToLower(s)
	meridiem := ""
	for _, suffix := range []string{"am", "a.m.", "pm", "p.m."} {
		if strings.HasSuffix(lower, suffix) {
			meridiem = string(suffix[0])
			s = strings.TrimSpace(s[:len(s)-len(suffix)])
			break
		}
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return "", false
	}

	hour, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return "", false
	}
	minute, second := 0, 0
	if len(parts) > 1 {
		if minute, err = strconv.Atoi(strings.TrimSpace(parts[1])); err != nil {
			return "", false
		}
	}
	if len(parts) > 2 {
		if second, err = strconv.Atoi(strings.TrimSpace(parts[2])); err != nil {
			return "", false
		}
	}

	switch meridiem {
	case "p":
		if hour < 1 || hour > 12 {
			return "", false
		}
		if hour != 12 {
			hour += 12
		}
	case "a":
		if hour < 1 || hour > 12 {
			return "", false
		}
		if hour == 12 {
			hour = 0
		}
	}

	if hour < 0 || hour > 23 || minute < 0 || minute > 59 || second < 0 || second > 59 {
		return "", false
	}
	return fmt.Sprintf("%02d:%02d:%02d", hour, minute, second), true
}

// ToRemote builds a Google Calendar event draft from a meeting. The returned
// flag reports whether the start time fell back to now + 1 hour. The event
// carries no ID; callers set one when updating an existing remote event.
func ToRemote(m *model.Meeting, loc *time.Location, now time.Time) (*calendar.Event, bool) {
	start := StartTime(m, loc, now)

	minutes := m.DurationMinutes
	if minutes <= 0 {
		minutes = DefaultDurationMinutes
	}
	end := start.Value.Add(time.Duration(minutes) * time.Minute)

	ev := &calendar.Event{
		Summary:     m.Title,
		Description: m.Description,
		Location:    m.Location.Display(),
		Start: &calendar.EventDateTime{
			DateTime: start.Value.Format(time.RFC3339),
			TimeZone: loc.String(),
		},
		End: &calendar.EventDateTime{
			DateTime: end.Format(time.RFC3339),
			TimeZone: loc.String(),
		},
	}
	for _, p := range m.Participants {
		if p.Email == "" {
			continue
		}
		ev.Attendees = append(ev.Attendees, &calendar.EventAttendee{
			Email:       p.Email,
			DisplayName: p.Name,
		})
	}
	return ev, start.UsedFallback
}

// FromRemote builds a local meeting draft from a Google Calendar event.
// Every field is read defensively: missing or malformed data degrades to a
// valid default and the function never fails. The draft has no ID; the
// meeting store assigns one on create.
func FromRemote(ev *calendar.Event, loc *time.Location, now time.Time) *model.Meeting {
	m := &model.Meeting{
		Title:           FallbackTitle,
		DurationMinutes: DefaultDurationMinutes,
		Source:          model.SourceGoogle,
	}
	if ev == nil {
		start := now.In(loc).Add(time.Hour)
		m.Date = start.Format(dateLayout)
		m.Time = start.Format(clockLayout)
		return m
	}

	if ev.Summary != "" {
		m.Title = ev.Summary
	}
	m.Description = ev.Description
	if ev.Location != "" {
		m.Location = model.Location{Name: ev.Location}
	}

	start, startOK := eventTime(ev.Start, loc)
	if !startOK {
		start = now.In(loc).Add(time.Hour)
	}
	m.Date = start.In(loc).Format(dateLayout)
	m.Time = start.In(loc).Format(clockLayout)

	if end, endOK := eventTime(ev.End, loc); startOK && endOK {
		if minutes := int(end.Sub(start).Minutes()); minutes > 0 {
			m.DurationMinutes = minutes
		}
	}

	for _, a := range ev.Attendees {
		if a == nil || a.Email == "" {
			continue
		}
		m.Participants = append(m.Participants, model.Participant{
			Name:  a.DisplayName,
			Email: a.Email,
		})
	}
	return m
}

// EventStart returns the parsed start instant of a remote event, or ok=false
// when the event has no parsable start.
func EventStart(ev *calendar.Event, loc *time.Location) (time.Time, bool) {
	if ev == nil {
		return time.Time{}, false
	}
	return eventTime(ev.Start, loc)
}

// EventEnd returns the parsed end instant of a remote event, or ok=false when
// the event has no parsable end.
func EventEnd(ev *calendar.Event, loc *time.Location) (time.Time, bool) {
	if ev == nil {
		return time.Time{}, false
	}
	return eventTime(ev.End, loc)
}

// eventTime parses a calendar EventDateTime. Timed events carry DateTime
// (RFC 3339, sometimes without an offset); all-day events carry only Date.
func eventTime(edt *calendar.EventDateTime, loc *time.Location) (time.Time, bool) {
	if edt == nil {
		return time.Time{}, false
	}
	if edt.DateTime != "" {
		if t, err := time.Parse(time.RFC3339, edt.DateTime); err == nil {
			return t, true
		}
		if t, err := time.ParseInLocation(localDateTime, edt.DateTime, loc); err == nil {
			return t, true
		}
		return time.Time{}, false
	}
	if edt.Date != "" {
		if t, err := time.ParseInLocation(dateLayout, edt.Date, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
