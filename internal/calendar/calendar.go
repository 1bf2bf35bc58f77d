package calendar

import (
	"context"
	"errors"
	"time"

	"google.golang.org/api/calendar/v3"
)

// ErrReadOnly is returned by sources that cannot create or modify events.
var ErrReadOnly = errors.New("calendar source is read-only")

// CalendarClient is a generic interface for calendar operations.
// The Google client implements all of it; ICS sources only read.
type CalendarClient interface {
	GetEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]*calendar.Event, error)
	GetEvent(ctx context.Context, calendarID, eventID string) (*calendar.Event, error)
	InsertEvent(ctx context.Context, calendarID string, event *calendar.Event) (*calendar.Event, error)
	UpdateEvent(ctx context.Context, calendarID, eventID string, event *calendar.Event) (*calendar.Event, error)
	Instances(ctx context.Context, calendarID, eventID string) ([]*calendar.Event, error)
	Search(ctx context.Context, calendarID, query string) ([]*calendar.Event, error)
}
