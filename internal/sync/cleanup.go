package sync

import (
	"context"
	"fmt"
)

// CleanupOrphanMappings removes every mapping whose local meeting or remote
// event no longer exists, and returns the number removed. It is idempotent.
// A failure to verify the remote side aborts the scan: "could not look" must
// never be treated as "does not exist", or an unauthenticated run would
// purge the whole table.
func (e *Engine) CleanupOrphanMappings(ctx context.Context) (int, error) {
	pairs, err := e.mappings.All(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing mappings: %w", err)
	}

	removed := 0
	for _, p := range pairs {
		local, err := e.meetings.GetMeeting(ctx, p.LocalID)
		if err != nil {
			return removed, fmt.Errorf("loading meeting %q: %w", p.LocalID, err)
		}

		orphaned := local == nil
		if !orphaned {
			remote, err := e.remote.GetEvent(ctx, p.RemoteID)
			if err != nil {
				return removed, fmt.Errorf("fetching event %q: %w", p.RemoteID, err)
			}
			orphaned = remote == nil || remote.Status == "cancelled"
		}
		if !orphaned {
			continue
		}

		if err := e.mappings.Remove(ctx, p.LocalID); err != nil {
			return removed, fmt.Errorf("removing mapping for %q: %w", p.LocalID, err)
		}
		if err := e.dropHash(ctx, p.LocalID); err != nil {
			return removed, err
		}
		removed++
		e.log.Debug("removed orphaned mapping", "meeting", p.LocalID, "event", p.RemoteID)
	}

	if removed > 0 {
		e.log.Info("orphan cleanup complete", "removed", removed)
	}
	return removed, nil
}
