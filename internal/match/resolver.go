// Package match finds the stored meeting an imprecise reference most likely
// means: a title someone typed, optionally narrowed by date and time. Used
// when a caller (chat intent, quick command) names a meeting without an ID.
//
// Matching is heuristic, not exact. The precedence is fixed: exact title,
// then title plus date, then title plus date and time, then substring. With
// duplicate titles the earlier, looser tiers win, which can surprise; the
// ordering is kept deliberately so reference resolution stays predictable.
package match

import (
	"strings"

	"meetsync/internal/convert"
	"meetsync/internal/model"
)

// Query describes the reference to resolve. Title is required; Date and
// Time narrow the later tiers when present.
type Query struct {
	Title string
	Date  string
	Time  string
}

// Best returns the first meeting matching the highest-precedence tier, or
// nil when nothing matches. Meetings are scanned in slice order, so callers
// wanting deterministic results pass a deterministically ordered slice.
func Best(meetings []*model.Meeting, q Query) *model.Meeting {
	title := strings.TrimSpace(q.Title)
	if title == "" {
		return nil
	}
	clock := normalizeClock(q.Time)

	// Tier 1: exact title.
	for _, m := range meetings {
		if strings.EqualFold(m.Title, title) {
			return m
		}
	}

	// Tier 2: title and date.
	if q.Date != "" {
		for _, m := range meetings {
			if titleClose(m.Title, title) && m.Date == q.Date {
				return m
			}
		}
	}

	// Tier 3: title, date, and time.
	if q.Date != "" && clock != "" {
		for _, m := range meetings {
			if titleClose(m.Title, title) && m.Date == q.Date && normalizeClock(m.Time) == clock {
				return m
			}
		}
	}

	// Tier 4: substring.
	lower := strings.ToLower(title)
	for _, m := range meetings {
		if strings.Contains(strings.ToLower(m.Title), lower) {
			return m
		}
	}
	return nil
}

// titleClose accepts an exact or prefix relationship between titles.
func titleClose(have, want string) bool {
	have = strings.ToLower(have)
	want = strings.ToLower(want)
	return have == want || strings.HasPrefix(have, want)
}

func normalizeClock(s string) string {
	if s == "" {
		return ""
	}
	norm, ok := convert.NormalizeClock(s)
	if !ok {
		return strings.TrimSpace(s)
	}
	return norm
}
