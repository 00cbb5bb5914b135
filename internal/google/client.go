package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"meetsync/internal/auth"
)

// Client provides sync-engine–oriented operations on a single Google
// Calendar. Expected failures degrade per operation contract:
//
//   - ListEvents returns an empty slice when unauthenticated or when the
//     API rejects the call, meaning "nothing to sync this pass".
//   - CreateEvent and UpdateEvent return (nil, nil) on failure so the
//     caller can record the item as unsynced and move on.
//   - DeleteEvent propagates failure; the caller decides what a failed
//     deletion means.
type Client struct {
	svc        *calendar.Service
	calendarID string
	tokens     *auth.Store
	log        *slog.Logger
}

// NewClient creates a Client authenticated through the token store. The
// service is constructed once; per-call token validity is handled by the
// store's TokenSource (transparent refresh, clear on refresh failure).
func NewClient(ctx context.Context, tokens *auth.Store, calendarID string, logger *slog.Logger) (*Client, error) {
	svc, err := calendar.NewService(ctx, option.WithTokenSource(tokens.TokenSource(ctx)))
	if err != nil {
		return nil, fmt.Errorf("creating calendar service: %w", err)
	}
	if calendarID == "" {
		calendarID = "primary"
	}
	return &Client{svc: svc, calendarID: calendarID, tokens: tokens, log: logger}, nil
}

// NewClientWithService creates a Client around a caller-supplied calendar
// service. Intended for tests that point the service at a local HTTP stub.
func NewClientWithService(svc *calendar.Service, tokens *auth.Store, calendarID string, logger *slog.Logger) *Client {
	if calendarID == "" {
		calendarID = "primary"
	}
	return &Client{svc: svc, calendarID: calendarID, tokens: tokens, log: logger}
}

// ListEvents returns the calendar's events between timeMin and timeMax.
// Recurring events are expanded; cancelled ones excluded. Any failure —
// missing auth, a 401/403/404, a malformed response — yields an empty
// slice, never an error: an unreachable calendar means nothing to pull,
// not a broken pass.
func (c *Client) ListEvents(ctx context.Context, timeMin, timeMax time.Time) ([]*calendar.Event, error) {
	if !c.authenticated(ctx) {
		c.log.Debug("not authenticated, skipping event listing")
		return nil, nil
	}

	var events []*calendar.Event
	pageToken := ""
	for {
		var page *calendar.Events
		err := Retry(ctx, defaultMaxAttempts, func() error {
			req := c.svc.Events.List(c.calendarID).
				ShowDeleted(false).
				SingleEvents(true).
				TimeMin(timeMin.Format(time.RFC3339)).
				TimeMax(timeMax.Format(time.RFC3339)).
				OrderBy("startTime").
				Context(ctx)
			if pageToken != "" {
				req = req.PageToken(pageToken)
			}
			var callErr error
			page, callErr = req.Do()
			return callErr
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.log.Warn("listing events failed, treating as empty", "error", err)
			return nil, nil
		}

		events = append(events, page.Items...)
		pageToken = page.NextPageToken
		if pageToken == "" {
			break
		}
	}

	c.log.Debug("listed events", "count", len(events), "calendar", c.calendarID)
	return events, nil
}

// CreateEvent inserts a new event and returns the created resource with its
// assigned ID. Returns (nil, nil) on failure — the meeting stays local-only.
func (c *Client) CreateEvent(ctx context.Context, ev *calendar.Event) (*calendar.Event, error) {
	if !c.authenticated(ctx) {
		c.log.Debug("not authenticated, skipping event creation", "summary", ev.Summary)
		return nil, nil
	}

	var created *calendar.Event
	err := Retry(ctx, defaultMaxAttempts, func() error {
		var callErr error
		created, callErr = c.svc.Events.Insert(c.calendarID, ev).Context(ctx).Do()
		return callErr
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.log.Warn("creating event failed", "summary", ev.Summary, "error", err)
		return nil, nil
	}
	return created, nil
}

// UpdateEvent overwrites the remote event identified by ev.Id. Returns
// (nil, nil) on failure, mirroring CreateEvent.
func (c *Client) UpdateEvent(ctx context.Context, ev *calendar.Event) (*calendar.Event, error) {
	if ev.Id == "" {
		return nil, fmt.Errorf("updating event: missing event ID")
	}
	if !c.authenticated(ctx) {
		c.log.Debug("not authenticated, skipping event update", "id", ev.Id)
		return nil, nil
	}

	var updated *calendar.Event
	err := Retry(ctx, defaultMaxAttempts, func() error {
		var callErr error
		updated, callErr = c.svc.Events.Update(c.calendarID, ev.Id, ev).Context(ctx).Do()
		return callErr
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.log.Warn("updating event failed", "id", ev.Id, "error", err)
		return nil, nil
	}
	return updated, nil
}

// DeleteEvent removes the remote event. An event that is already gone
// (404/410) counts as deleted; any other failure propagates to the caller.
func (c *Client) DeleteEvent(ctx context.Context, eventID string) error {
	if !c.authenticated(ctx) {
		return fmt.Errorf("deleting event %q: not authenticated", eventID)
	}

	err := Retry(ctx, defaultMaxAttempts, func() error {
		return c.svc.Events.Delete(c.calendarID, eventID).Context(ctx).Do()
	})
	if err != nil {
		if isNotFound(err) {
			c.log.Debug("event already gone", "id", eventID)
			return nil
		}
		return fmt.Errorf("deleting event %q: %w", eventID, err)
	}
	return nil
}

// GetEvent fetches a single event. Returns (nil, nil) when the event does
// not exist. Unlike ListEvents, an auth failure here is an error: callers
// (orphan cleanup, conflict detection) must not mistake "can't look" for
// "doesn't exist".
func (c *Client) GetEvent(ctx context.Context, eventID string) (*calendar.Event, error) {
	if !c.authenticated(ctx) {
		return nil, fmt.Errorf("fetching event %q: not authenticated", eventID)
	}

	var ev *calendar.Event
	err := Retry(ctx, defaultMaxAttempts, func() error {
		var callErr error
		ev, callErr = c.svc.Events.Get(c.calendarID, eventID).Context(ctx).Do()
		return callErr
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil //nolint:nilnil // intentional: "not found" sentinel
		}
		return nil, fmt.Errorf("fetching event %q: %w", eventID, err)
	}
	return ev, nil
}

// authenticated reports whether a valid access token is available, driving
// refresh through the token store as a side effect.
func (c *Client) authenticated(ctx context.Context) bool {
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		c.log.Warn("reading access token failed", "error", err)
		return false
	}
	return token != ""
}

// isAuthError reports whether err is a 401 or 403 API response.
func isAuthError(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden
	}
	return false
}

// isNotFound reports whether err is a 404 or 410 API response.
func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone
	}
	return false
}
