// Package model defines shared types used across the sync engine, stores,
// and the calendar adapter.
package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Source identifies where a meeting was originally created.
type Source string

const (
	// SourceLocal marks meetings created in the local store.
	SourceLocal Source = "local"
	// SourceGoogle marks meetings imported from Google Calendar.
	SourceGoogle Source = "google"
)

// LocationKind distinguishes structured location types.
type LocationKind string

const (
	LocationPhysical LocationKind = "physical"
	LocationVirtual  LocationKind = "virtual"
)

// Location is either a plain display string or a structured address with
// coordinates. Address being empty means only the display name is known.
type Location struct {
	Name      string       `json:"name,omitempty"`
	Address   string       `json:"address,omitempty"`
	Latitude  float64      `json:"latitude,omitempty"`
	Longitude float64      `json:"longitude,omitempty"`
	Kind      LocationKind `json:"kind,omitempty"`
}

// Display returns the single-string rendering used on the calendar side.
// Address wins over Name when both are set, since it is the more precise
// value for a calendar's location field.
func (l Location) Display() string {
	if l.Address != "" {
		return l.Address
	}
	return l.Name
}

// IsZero reports whether no location information is present.
func (l Location) IsZero() bool {
	return l.Name == "" && l.Address == ""
}

// Participant is a single meeting attendee.
type Participant struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

// Meeting is the locally stored meeting record. Date and Time are kept as the
// user-entered strings ("2006-01-02" and a wall-clock time that may be
// 12-hour, bare-hour, or missing seconds); the convert package normalises
// them when composing timestamps.
type Meeting struct {
	ID              string        `json:"id"`
	Title           string        `json:"title"`
	Description     string        `json:"description,omitempty"`
	Date            string        `json:"date"`
	Time            string        `json:"time"`
	DurationMinutes int           `json:"durationMinutes"`
	Location        Location      `json:"location,omitzero"`
	Participants    []Participant `json:"participants,omitempty"`
	Source          Source        `json:"source"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

// Syncable reports whether the meeting carries enough information to be
// placed on a calendar. Meetings without a date or time are skipped by the
// push phase, not treated as errors.
func (m *Meeting) Syncable() bool {
	return m.Date != "" && m.Time != ""
}

// ContentHash returns a deterministic SHA-256 hex digest of the fields that
// matter for change detection: title, description, date, time, duration,
// location, and participant emails. CreatedAt/UpdatedAt are intentionally
// excluded — they change on every save.
func (m *Meeting) ContentHash() string {
	h := sha256.New()
	h.Write([]byte(m.Title))
	h.Write([]byte("|"))
	h.Write([]byte(m.Description))
	h.Write([]byte("|"))
	h.Write([]byte(m.Date))
	h.Write([]byte("|"))
	h.Write([]byte(m.Time))
	h.Write([]byte("|"))
	_, _ = fmt.Fprintf(h, "%d", m.DurationMinutes)
	h.Write([]byte("|"))
	h.Write([]byte(m.Location.Display()))
	h.Write([]byte("|"))
	for _, p := range m.Participants {
		h.Write([]byte(strings.ToLower(p.Email)))
		h.Write([]byte(","))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// HasParticipant reports whether email is already in the participant list.
// Comparison is case-insensitive, as email addresses are.
func (m *Meeting) HasParticipant(email string) bool {
	for _, p := range m.Participants {
		if strings.EqualFold(p.Email, email) {
			return true
		}
	}
	return false
}
