package sync

import (
	"context"
	"fmt"

	"google.golang.org/api/calendar/v3"

	"meetsync/internal/convert"
	"meetsync/internal/model"
)

// Policy selects how a conflict is resolved.
type Policy string

const (
	// PolicyKeepLocal pushes the local meeting's data over the remote event.
	PolicyKeepLocal Policy = "keepLocal"
	// PolicyKeepRemote overwrites the local meeting with the remote event's
	// data.
	PolicyKeepRemote Policy = "keepRemote"
	// PolicyMerge keeps the local meeting as the base, fills empty
	// description and location fields from the remote event, unions the
	// participant lists, and writes the merged record to both sides.
	PolicyMerge Policy = "merge"
)

// Conflict pairs a local meeting with its mapped remote event when the two
// disagree on title, start, end, or location.
type Conflict struct {
	Local  *model.Meeting
	Remote *calendar.Event
}

// Conflicts inspects every mapped pair and reports those whose two sides
// differ. Detection is read-only; nothing is resolved. Pairs with a missing
// side are skipped (orphan cleanup owns those). A failure to fetch a remote
// event aborts detection: an unreachable calendar must not read as "no
// conflicts".
func (e *Engine) Conflicts(ctx context.Context) ([]Conflict, error) {
	pairs, err := e.mappings.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing mappings: %w", err)
	}

	var conflicts []Conflict
	for _, p := range pairs {
		local, err := e.meetings.GetMeeting(ctx, p.LocalID)
		if err != nil {
			return nil, fmt.Errorf("loading meeting %q: %w", p.LocalID, err)
		}
		if local == nil {
			continue
		}
		remote, err := e.remote.GetEvent(ctx, p.RemoteID)
		if err != nil {
			return nil, fmt.Errorf("fetching event %q: %w", p.RemoteID, err)
		}
		if remote == nil {
			continue
		}

		want, _ := convert.ToRemote(local, e.loc, e.now())
		if !remoteEventEqual(want, remote, e.loc) {
			conflicts = append(conflicts, Conflict{Local: local, Remote: remote})
		}
	}

	if len(conflicts) > 0 {
		e.cntConflicts.Add(ctx, int64(len(conflicts)))
		e.log.Info("conflicts detected", "count", len(conflicts))
	}
	return conflicts, nil
}

// Resolve applies the given policy to a conflict. The merged or chosen data
// is written through the meeting store and the remote client; the hash
// ledger is refreshed so the next pass does not treat the resolution as a
// fresh change. An unknown policy is an error.
//
// A concurrent external edit between detection and resolution can be
// overwritten; resolution is last-write-wins, not a transaction.
func (e *Engine) Resolve(ctx context.Context, c Conflict, policy Policy) error {
	if c.Local == nil || c.Remote == nil {
		return fmt.Errorf("conflict is missing a side")
	}

	switch policy {
	case PolicyKeepLocal:
		ev, _ := convert.ToRemote(c.Local, e.loc, e.now())
		ev.Id = c.Remote.Id
		pushed, err := e.remote.UpdateEvent(ctx, ev)
		if err != nil {
			return err
		}
		if pushed == nil {
			return fmt.Errorf("updating event %q failed", c.Remote.Id)
		}
		return e.recordHash(ctx, c.Local.ID, c.Local.ContentHash())

	case PolicyKeepRemote:
		draft := convert.FromRemote(c.Remote, e.loc, e.now())
		merged := applyRemote(c.Local, draft)
		updated, err := e.meetings.UpdateMeeting(ctx, merged)
		if err != nil {
			return fmt.Errorf("updating meeting %q: %w", c.Local.ID, err)
		}
		e.listener.MeetingUpdated(updated)
		return e.recordHash(ctx, updated.ID, updated.ContentHash())

	case PolicyMerge:
		merged := *c.Local
		if merged.Description == "" {
			merged.Description = c.Remote.Description
		}
		if merged.Location.IsZero() && c.Remote.Location != "" {
			merged.Location = model.Location{Name: c.Remote.Location}
		}
		for _, a := range c.Remote.Attendees {
			if a == nil || a.Email == "" || merged.HasParticipant(a.Email) {
				continue
			}
			merged.Participants = append(merged.Participants, model.Participant{
				Name:  a.DisplayName,
				Email: a.Email,
			})
		}

		updated, err := e.meetings.UpdateMeeting(ctx, &merged)
		if err != nil {
			return fmt.Errorf("updating meeting %q: %w", c.Local.ID, err)
		}
		e.listener.MeetingUpdated(updated)

		ev, _ := convert.ToRemote(updated, e.loc, e.now())
		ev.Id = c.Remote.Id
		pushed, err := e.remote.UpdateEvent(ctx, ev)
		if err != nil {
			return err
		}
		if pushed == nil {
			return fmt.Errorf("updating event %q failed", c.Remote.Id)
		}
		return e.recordHash(ctx, updated.ID, updated.ContentHash())

	default:
		return fmt.Errorf("unknown conflict policy %q", policy)
	}
}
