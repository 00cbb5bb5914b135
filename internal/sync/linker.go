package sync

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"meetsync/internal/convert"
)

// Linker performs the one-time first-sync linkage: when the mapping table
// is empty but meetings and events already exist on both sides, it pairs
// them up by title and start instant and seeds the mapping table, so the
// first reconciliation pass does not create duplicates of everything.
type Linker struct {
	meetings MeetingStore
	remote   RemoteCalendar
	mappings MappingTable
	loc      *time.Location
	log      *slog.Logger

	now func() time.Time
}

// NewLinker creates a Linker. loc may be nil (the system zone is used).
func NewLinker(meetings MeetingStore, remote RemoteCalendar, mappings MappingTable, loc *time.Location, logger *slog.Logger) *Linker {
	if loc == nil {
		loc = time.Local
	}
	return &Linker{
		meetings: meetings,
		remote:   remote,
		mappings: mappings,
		loc:      loc,
		log:      logger,
		now:      time.Now,
	}
}

// Run links matching pairs inside the given window and returns the number
// of mappings seeded. A non-empty mapping table means linkage already
// happened; Run then does nothing. Matching is exact: same title
// (case-insensitive) and same start instant. Anything unmatched is left for
// the reconciliation pass to create on the missing side.
func (l *Linker) Run(ctx context.Context, win Window) (int, error) {
	pairs, err := l.mappings.All(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing mappings: %w", err)
	}
	if len(pairs) > 0 {
		l.log.Debug("mapping table not empty, skipping first-sync linkage")
		return 0, nil
	}

	events, err := l.remote.ListEvents(ctx, win.From, win.To)
	if err != nil {
		return 0, fmt.Errorf("listing remote events: %w", err)
	}
	if len(events) == 0 {
		return 0, nil
	}

	meetings, err := l.meetings.ListMeetings(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing meetings: %w", err)
	}

	// Index events by lowercased title plus start instant.
	eventByKey := make(map[string]string, len(events))
	for _, ev := range events {
		if ev == nil || ev.Id == "" || ev.Summary == "" {
			continue
		}
		start, ok := convert.EventStart(ev, l.loc)
		if !ok {
			continue
		}
		eventByKey[linkKey(ev.Summary, start)] = ev.Id
	}

	linked := 0
	for _, m := range meetings {
		if !m.Syncable() {
			continue
		}
		start := convert.StartTime(m, l.loc, l.now())
		if start.UsedFallback {
			continue
		}
		key := linkKey(m.Title, start.Value)
		remoteID, ok := eventByKey[key]
		if !ok {
			continue
		}
		if err := l.mappings.Set(ctx, m.ID, remoteID); err != nil {
			return linked, fmt.Errorf("seeding mapping %q: %w", m.ID, err)
		}
		// One event links to at most one meeting.
		delete(eventByKey, key)
		linked++
		l.log.Debug("linked existing pair", "meeting", m.ID, "event", remoteID, "title", m.Title)
	}

	if linked > 0 {
		l.log.Info("first-sync linkage complete", "linked", linked)
	}
	return linked, nil
}

func linkKey(title string, start time.Time) string {
	return strings.ToLower(strings.TrimSpace(title)) + "|" + start.UTC().Format(time.RFC3339)
}
