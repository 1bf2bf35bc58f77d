package calendar

import (
	"fmt"
	"log"
	"time"

	"google.golang.org/api/calendar/v3"

	"github.com/theyoungmaker/schedule-bot/internal/model"
)

const dateLayout = "2006-01-02"

// ToRawEvent converts a Google Calendar event into a RawEvent for venue,
// with times expressed in loc.
func ToRawEvent(event *calendar.Event, venue string, loc *time.Location) (model.RawEvent, error) {
	if event.Start == nil || event.End == nil {
		return model.RawEvent{}, fmt.Errorf("event %s has no start or end", event.Id)
	}

	raw := model.RawEvent{
		ID:          event.Id,
		Venue:       venue,
		Summary:     event.Summary,
		Description: event.Description,
	}
	if raw.Summary == "" {
		raw.Summary = "Unnamed Event"
	}

	var err error
	if event.Start.DateTime != "" {
		if raw.Start, err = time.Parse(time.RFC3339, event.Start.DateTime); err != nil {
			return model.RawEvent{}, fmt.Errorf("failed to parse start time of %s: %w", event.Id, err)
		}
		if raw.End, err = time.Parse(time.RFC3339, event.End.DateTime); err != nil {
			return model.RawEvent{}, fmt.Errorf("failed to parse end time of %s: %w", event.Id, err)
		}
		raw.Start = raw.Start.In(loc)
		raw.End = raw.End.In(loc)
		return raw, nil
	}

	// All-day event
	if raw.Start, err = time.ParseInLocation(dateLayout, event.Start.Date, loc); err != nil {
		return model.RawEvent{}, fmt.Errorf("failed to parse start date of %s: %w", event.Id, err)
	}
	if raw.End, err = time.ParseInLocation(dateLayout, event.End.Date, loc); err != nil {
		return model.RawEvent{}, fmt.Errorf("failed to parse end date of %s: %w", event.Id, err)
	}
	raw.AllDay = true
	return raw, nil
}

// Unreadable is an event whose start or end could not be read.
type Unreadable struct {
	ID      string
	Venue   string
	Summary string
	Err     error
}

// ToRawEvents converts events in order. Events that cannot be read are
// returned separately so callers can report them.
func ToRawEvents(events []*calendar.Event, venue string, loc *time.Location) ([]model.RawEvent, []Unreadable) {
	raws := make([]model.RawEvent, 0, len(events))
	var unreadable []Unreadable
	for _, event := range events {
		raw, err := ToRawEvent(event, venue, loc)
		if err != nil {
			log.Printf("Warning: skipping event: %v", err)
			unreadable = append(unreadable, Unreadable{ID: event.Id, Venue: venue, Summary: event.Summary, Err: err})
			continue
		}
		raws = append(raws, raw)
	}
	return raws, unreadable
}
