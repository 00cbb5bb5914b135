package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/calendar/v3"

	"meetsync/internal/convert"
	"meetsync/internal/model"
	"meetsync/internal/settings"
	"meetsync/internal/store"
)

const (
	otelScope       = "meetsync/sync"
	spanPass        = "sync.pass"
	metricCreated   = "meetsync.sync.items.created"
	metricUpdated   = "meetsync.sync.items.updated"
	metricDeleted   = "meetsync.sync.items.deleted"
	metricConflicts = "meetsync.sync.conflicts"
	metricErrors    = "meetsync.sync.errors"
)

// HashKey is the KV key under which the engine persists its change-detection
// ledger: a JSON object mapping local meeting IDs to the content hash the
// meeting had when it was last written to the calendar. A meeting whose
// current hash matches the ledger entry has nothing new to push.
const HashKey = "google_calendar_sync_hashes"

// DefaultWindowDays is the span of the standard reconciliation window.
const DefaultWindowDays = 30

// Directions for error records, reported from the perspective of the data
// flow that failed.
const (
	DirPull = "from-remote"
	DirPush = "to-remote"
)

// ItemError records a single item that failed during a pass.
type ItemError struct {
	Direction string
	EntityID  string
	Message   string
}

// Result summarises one reconciliation pass. Counts aggregate both phases.
type Result struct {
	Created  int
	Updated  int
	Deleted  int
	Errors   []ItemError
	SyncTime time.Time
}

// Window bounds the remote events a pass considers.
type Window struct {
	From time.Time
	To   time.Time
}

// DefaultWindow returns the standard window: the start of today through
// DefaultWindowDays days out.
func DefaultWindow(now time.Time) Window {
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return Window{From: start, To: start.AddDate(0, 0, DefaultWindowDays)}
}

// TodayWindow returns a window covering only the current day.
func TodayWindow(now time.Time) Window {
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return Window{From: start, To: start.AddDate(0, 0, 1)}
}

// Engine orchestrates reconciliation between the meeting store and the
// remote calendar. At most one pass runs at a time; a [Engine.Sync] call
// while another pass is in flight returns (nil, nil) without doing any work.
// Create one with [NewEngine].
type Engine struct {
	meetings MeetingStore
	remote   RemoteCalendar
	mappings MappingTable
	settings SettingsStore
	kv       store.KV
	listener Listener
	loc      *time.Location
	log      *slog.Logger

	now     func() time.Time
	syncing atomic.Bool

	// OTel instruments — always non-nil (no-op when telemetry is disabled).
	tracer       trace.Tracer
	cntCreated   metric.Int64Counter
	cntUpdated   metric.Int64Counter
	cntDeleted   metric.Int64Counter
	cntConflicts metric.Int64Counter
	cntErrors    metric.Int64Counter
}

// NewEngine creates an Engine. listener may be nil (notifications are
// dropped); loc may be nil (the system zone is used).
func NewEngine(meetings MeetingStore, remote RemoteCalendar, mappings MappingTable, settingsStore SettingsStore, kv store.KV, listener Listener, loc *time.Location, logger *slog.Logger) *Engine {
	if listener == nil {
		listener = NopListener{}
	}
	if loc == nil {
		loc = time.Local
	}

	meter := otel.Meter(otelScope)
	mustCounter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		if err != nil {
			logger.Error("creating OTel counter", "name", name, "error", err)
			return noop.Int64Counter{}
		}
		return c
	}

	return &Engine{
		meetings: meetings,
		remote:   remote,
		mappings: mappings,
		settings: settingsStore,
		kv:       kv,
		listener: listener,
		loc:      loc,
		log:      logger,
		now:      time.Now,

		tracer:       otel.Tracer(otelScope),
		cntCreated:   mustCounter(metricCreated, "Number of meetings and events created during sync"),
		cntUpdated:   mustCounter(metricUpdated, "Number of meetings and events updated during sync"),
		cntDeleted:   mustCounter(metricDeleted, "Number of meetings and events deleted during sync"),
		cntConflicts: mustCounter(metricConflicts, "Number of conflicts detected between meeting pairs"),
		cntErrors:    mustCounter(metricErrors, "Number of item errors encountered during sync"),
	}
}

// Sync runs one full reconciliation pass over the given window: pull phase
// (remote events into the meeting store), then push phase (local meetings
// out to the calendar), in that order so events imported by the pull are
// visible to the push's deduplication. If a pass is already in flight the
// call is a no-op and returns (nil, nil).
//
// Item failures are recorded in the result and do not abort the pass; only
// storage-layer failures on settings, mappings, or the meeting list abort
// it with an error.
func (e *Engine) Sync(ctx context.Context, win Window) (*Result, error) {
	if !e.syncing.CompareAndSwap(false, true) {
		e.log.Debug("sync pass already in flight, skipping")
		return nil, nil
	}
	defer e.syncing.Store(false)

	ctx, span := e.tracer.Start(ctx, spanPass)
	defer span.End()

	res := &Result{SyncTime: e.now()}

	cfg, err := e.settings.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading sync settings: %w", err)
	}

	hashes, err := e.loadHashes(ctx)
	if err != nil {
		return nil, err
	}

	if cfg.SyncDirection != settings.DirectionPushOnly {
		if err := e.pull(ctx, win, res, hashes); err != nil {
			return nil, err
		}
	}
	if cfg.SyncDirection != settings.DirectionPullOnly {
		if err := e.push(ctx, res, hashes); err != nil {
			return nil, err
		}
	}

	if err := e.saveHashes(ctx, hashes); err != nil {
		return nil, err
	}
	if err := e.settings.SetLastSyncTime(ctx, res.SyncTime); err != nil {
		return nil, fmt.Errorf("recording last sync time: %w", err)
	}

	e.record(ctx, span, res)
	e.log.Info("sync pass complete",
		"created", res.Created,
		"updated", res.Updated,
		"deleted", res.Deleted,
		"errors", len(res.Errors),
	)
	return res, nil
}

// pull imports remote events: mapped events update their local meeting,
// unmapped events become new local meetings. Each successful write also
// refreshes the hash ledger so the push phase does not echo the same data
// straight back to the calendar.
func (e *Engine) pull(ctx context.Context, win Window, res *Result, hashes map[string]string) error {
	events, err := e.remote.ListEvents(ctx, win.From, win.To)
	if err != nil {
		return fmt.Errorf("listing remote events: %w", err)
	}

	for _, ev := range events {
		if ev == nil || ev.Id == "" {
			continue
		}

		localID, err := e.mappings.GetByRemote(ctx, ev.Id)
		if err != nil {
			return fmt.Errorf("reading mapping for event %q: %w", ev.Id, err)
		}

		draft := convert.FromRemote(ev, e.loc, e.now())

		if localID == "" {
			created, err := e.meetings.CreateMeeting(ctx, draft)
			if err != nil {
				e.itemError(res, DirPull, ev.Id, err)
				continue
			}
			if err := e.mappings.Set(ctx, created.ID, ev.Id); err != nil {
				e.itemError(res, DirPull, ev.Id, err)
				continue
			}
			hashes[created.ID] = created.ContentHash()
			res.Created++
			e.listener.MeetingCreated(created)
			e.log.Debug("imported remote event", "event", ev.Id, "meeting", created.ID)
			continue
		}

		existing, err := e.meetings.GetMeeting(ctx, localID)
		if err != nil {
			e.itemError(res, DirPull, ev.Id, err)
			continue
		}
		if existing == nil {
			// Mapping points at a meeting that no longer exists. Orphan
			// cleanup owns this case.
			e.log.Debug("mapped meeting missing locally, skipping", "event", ev.Id, "meeting", localID)
			continue
		}

		merged := applyRemote(existing, draft)
		// The converter spells wall-clock times as HH:MM:SS. Keep the
		// stored spelling when it denotes the same instant, so an
		// unchanged event does not read as a local edit.
		es := convert.StartTime(existing, e.loc, e.now())
		ms := convert.StartTime(merged, e.loc, e.now())
		if !es.UsedFallback && !ms.UsedFallback && es.Value.Equal(ms.Value) {
			merged.Date = existing.Date
			merged.Time = existing.Time
		}
		if merged.ContentHash() == existing.ContentHash() {
			hashes[localID] = existing.ContentHash()
			continue
		}

		updated, err := e.meetings.UpdateMeeting(ctx, merged)
		if err != nil {
			e.itemError(res, DirPull, ev.Id, err)
			continue
		}
		hashes[localID] = updated.ContentHash()
		res.Updated++
		e.listener.MeetingUpdated(updated)
		e.log.Debug("updated meeting from remote event", "event", ev.Id, "meeting", localID)
	}
	return nil
}

// push exports local meetings: mapped meetings update their remote event
// when their content changed since the last sync, unmapped meetings create
// a new event. Meetings without a date or time are skipped silently.
func (e *Engine) push(ctx context.Context, res *Result, hashes map[string]string) error {
	meetings, err := e.meetings.ListMeetings(ctx)
	if err != nil {
		return fmt.Errorf("listing meetings: %w", err)
	}

	for _, m := range meetings {
		if !m.Syncable() {
			e.log.Debug("meeting has no date or time, skipping", "meeting", m.ID)
			continue
		}

		remoteID, err := e.mappings.Get(ctx, m.ID)
		if err != nil {
			return fmt.Errorf("reading mapping for meeting %q: %w", m.ID, err)
		}

		if remoteID != "" && hashes[m.ID] == m.ContentHash() {
			continue
		}

		ev, usedFallback := convert.ToRemote(m, e.loc, e.now())
		if usedFallback {
			e.log.Warn("meeting date or time unparsable, falling back to now + 1 hour",
				"meeting", m.ID, "date", m.Date, "time", m.Time)
		}

		if remoteID != "" {
			ev.Id = remoteID
			pushed, err := e.remote.UpdateEvent(ctx, ev)
			if err != nil {
				e.itemError(res, DirPush, m.ID, err)
				continue
			}
			if pushed == nil {
				e.itemError(res, DirPush, m.ID, fmt.Errorf("remote update failed"))
				continue
			}
			hashes[m.ID] = m.ContentHash()
			res.Updated++
			continue
		}

		created, err := e.remote.CreateEvent(ctx, ev)
		if err != nil {
			e.itemError(res, DirPush, m.ID, err)
			continue
		}
		if created == nil {
			e.itemError(res, DirPush, m.ID, fmt.Errorf("remote create failed"))
			continue
		}
		if err := e.mappings.Set(ctx, m.ID, created.Id); err != nil {
			e.itemError(res, DirPush, m.ID, err)
			continue
		}
		hashes[m.ID] = m.ContentHash()
		res.Created++
		e.log.Debug("exported meeting", "meeting", m.ID, "event", created.Id)
	}
	return nil
}

// PushMeeting propagates a single meeting to the calendar immediately,
// outside a full pass. Used right after a local create or edit. Returns
// false without error when the meeting is missing or has no date/time, and
// true only when the remote write was confirmed.
func (e *Engine) PushMeeting(ctx context.Context, meetingID string) (bool, error) {
	m, err := e.meetings.GetMeeting(ctx, meetingID)
	if err != nil {
		return false, fmt.Errorf("loading meeting %q: %w", meetingID, err)
	}
	if m == nil || !m.Syncable() {
		return false, nil
	}

	remoteID, err := e.mappings.Get(ctx, m.ID)
	if err != nil {
		return false, fmt.Errorf("reading mapping for meeting %q: %w", m.ID, err)
	}

	ev, usedFallback := convert.ToRemote(m, e.loc, e.now())
	if usedFallback {
		e.log.Warn("meeting date or time unparsable, falling back to now + 1 hour",
			"meeting", m.ID, "date", m.Date, "time", m.Time)
	}

	if remoteID != "" {
		ev.Id = remoteID
		pushed, err := e.remote.UpdateEvent(ctx, ev)
		if err != nil || pushed == nil {
			return false, err
		}
	} else {
		created, err := e.remote.CreateEvent(ctx, ev)
		if err != nil || created == nil {
			return false, err
		}
		if err := e.mappings.Set(ctx, m.ID, created.Id); err != nil {
			return false, err
		}
	}

	return true, e.recordHash(ctx, m.ID, m.ContentHash())
}

// DeleteEverywhere removes a meeting from the store and, when mapped, from
// the calendar. The local deletion is authoritative: a remote failure is
// logged but never rolls it back, and the mapping is removed regardless of
// the remote outcome.
func (e *Engine) DeleteEverywhere(ctx context.Context, meetingID string) error {
	if err := e.meetings.DeleteMeeting(ctx, meetingID); err != nil {
		return fmt.Errorf("deleting meeting %q: %w", meetingID, err)
	}
	e.listener.MeetingDeleted(meetingID)
	e.cntDeleted.Add(ctx, 1)

	remoteID, err := e.mappings.Get(ctx, meetingID)
	if err != nil {
		e.log.Warn("reading mapping after local deletion failed", "meeting", meetingID, "error", err)
		remoteID = ""
	}
	if remoteID != "" {
		if err := e.remote.DeleteEvent(ctx, remoteID); err != nil {
			e.log.Warn("remote deletion failed, event left on calendar",
				"meeting", meetingID, "event", remoteID, "error", err)
		}
	}

	if err := e.mappings.Remove(ctx, meetingID); err != nil {
		return fmt.Errorf("removing mapping for %q: %w", meetingID, err)
	}
	return e.dropHash(ctx, meetingID)
}

// applyRemote copies the synchronised fields of a converted remote draft
// onto a copy of the stored meeting, preserving its identity and lifecycle
// fields.
func applyRemote(existing, draft *model.Meeting) *model.Meeting {
	merged := *existing
	merged.Title = draft.Title
	merged.Description = draft.Description
	merged.Date = draft.Date
	merged.Time = draft.Time
	merged.DurationMinutes = draft.DurationMinutes
	merged.Location = draft.Location
	merged.Participants = draft.Participants
	return &merged
}

func (e *Engine) itemError(res *Result, direction, entityID string, err error) {
	e.log.Error("sync item failed", "direction", direction, "entity", entityID, "error", err)
	res.Errors = append(res.Errors, ItemError{Direction: direction, EntityID: entityID, Message: err.Error()})
}

// record flushes pass statistics to the OTel instruments.
func (e *Engine) record(ctx context.Context, span trace.Span, res *Result) {
	if res.Created > 0 {
		e.cntCreated.Add(ctx, int64(res.Created))
	}
	if res.Updated > 0 {
		e.cntUpdated.Add(ctx, int64(res.Updated))
	}
	if res.Deleted > 0 {
		e.cntDeleted.Add(ctx, int64(res.Deleted))
	}
	if len(res.Errors) > 0 {
		e.cntErrors.Add(ctx, int64(len(res.Errors)))
	}
	span.SetAttributes(
		attribute.Int("sync.created", res.Created),
		attribute.Int("sync.updated", res.Updated),
		attribute.Int("sync.deleted", res.Deleted),
		attribute.Int("sync.errors", len(res.Errors)),
	)
}

// ---------------------------------------------------------------------------
// Hash ledger
// ---------------------------------------------------------------------------

func (e *Engine) loadHashes(ctx context.Context) (map[string]string, error) {
	raw, err := e.kv.Get(ctx, HashKey)
	if err != nil {
		return nil, fmt.Errorf("reading sync hashes: %w", err)
	}
	hashes := make(map[string]string)
	if raw == "" {
		return hashes, nil
	}
	if err := json.Unmarshal([]byte(raw), &hashes); err != nil {
		// A corrupt ledger only costs redundant updates on the next pass.
		e.log.Warn("sync hash ledger corrupt, starting fresh", "error", err)
		return make(map[string]string), nil
	}
	return hashes, nil
}

func (e *Engine) saveHashes(ctx context.Context, hashes map[string]string) error {
	raw, err := json.Marshal(hashes)
	if err != nil {
		return fmt.Errorf("encoding sync hashes: %w", err)
	}
	if err := e.kv.Set(ctx, HashKey, string(raw)); err != nil {
		return fmt.Errorf("writing sync hashes: %w", err)
	}
	return nil
}

func (e *Engine) recordHash(ctx context.Context, meetingID, hash string) error {
	hashes, err := e.loadHashes(ctx)
	if err != nil {
		return err
	}
	hashes[meetingID] = hash
	return e.saveHashes(ctx, hashes)
}

func (e *Engine) dropHash(ctx context.Context, meetingID string) error {
	hashes, err := e.loadHashes(ctx)
	if err != nil {
		return err
	}
	if _, ok := hashes[meetingID]; !ok {
		return nil
	}
	delete(hashes, meetingID)
	return e.saveHashes(ctx, hashes)
}

// remoteEventEqual reports whether the synchronised fields of two remote
// events agree: summary, location, and both time bounds as instants.
func remoteEventEqual(a, b *calendar.Event, loc *time.Location) bool {
	if a.Summary != b.Summary || a.Location != b.Location {
		return false
	}
	aStart, aOK := convert.EventStart(a, loc)
	bStart, bOK := convert.EventStart(b, loc)
	if aOK != bOK || (aOK && !aStart.Equal(bStart)) {
		return false
	}
	aEnd, aOK := convert.EventEnd(a, loc)
	bEnd, bOK := convert.EventEnd(b, loc)
	if aOK != bOK || (aOK && !aEnd.Equal(bEnd)) {
		return false
	}
	return true
}
