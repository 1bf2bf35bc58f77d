package calendar

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"google.golang.org/api/calendar/v3"
)

// ICSClient reads events from an iCalendar file or URL. The calendar ID
// passed to each method is the file path or the http(s) URL.
type ICSClient struct {
	httpClient *http.Client
	loc        *time.Location
}

// NewICSClient creates an ICS source. Floating times are read in loc.
func NewICSClient(httpClient *http.Client, loc *time.Location) *ICSClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &ICSClient{httpClient: httpClient, loc: loc}
}

// GetEvents returns the events overlapping [timeMin, timeMax), with
// recurring events expanded, sorted by start time. An occurrence edited in
// place (RECURRENCE-ID) replaces the one generated by the rule, and a
// cancelled one removes it.
func (c *ICSClient) GetEvents(ctx context.Context, source string, timeMin, timeMax time.Time) ([]*calendar.Event, error) {
	cal, err := c.load(ctx, source)
	if err != nil {
		return nil, err
	}

	var bases, overrides []vevent
	overridden := make(map[string][]time.Time)
	for _, comp := range cal.Children {
		if comp.Name != ical.CompEvent {
			continue
		}
		v, err := readVEvent(comp, c.loc)
		if err != nil {
			log.Printf("Warning: failed to read iCalendar event: %v", err)
			continue
		}
		if v.recurrenceID.IsZero() {
			bases = append(bases, v)
			continue
		}
		overrides = append(overrides, v)
		overridden[v.event.Id] = append(overridden[v.event.Id], v.recurrenceID)
	}

	type occurrence struct {
		start time.Time
		event *calendar.Event
	}
	var found []occurrence
	add := func(v vevent, start time.Time, recurrenceID time.Time) {
		end := start.Add(v.duration())
		if !start.Before(timeMax) || !end.After(timeMin) {
			return
		}
		event := *v.event
		if !recurrenceID.IsZero() {
			event.Id = v.event.Id + "_" + recurrenceID.UTC().Format("20060102T150405Z")
			event.RecurringEventId = v.event.Id
		}
		setEventTimes(&event, start, end, v.allDay)
		found = append(found, occurrence{start: start, event: &event})
	}

	for _, v := range bases {
		if v.cancelled {
			continue
		}
		exdates := overridden[v.event.Id]

		if v.comp.Props.Get(ical.PropRecurrenceRule) == nil {
			if !containsTime(exdates, v.start) {
				add(v, v.start, time.Time{})
			}
			continue
		}

		set, err := v.comp.RecurrenceSet(c.loc)
		if err != nil || set == nil {
			log.Printf("Warning: failed to expand recurring event %s: %v", v.event.Id, err)
			continue
		}
		for _, ex := range exdates {
			set.ExDate(ex)
		}
		for _, start := range set.Between(timeMin.Add(-v.duration()), timeMax, true) {
			add(v, start, start)
		}
	}

	for _, v := range overrides {
		if v.cancelled {
			continue
		}
		add(v, v.start, v.recurrenceID)
	}

	sort.SliceStable(found, func(i, j int) bool {
		return found[i].start.Before(found[j].start)
	})

	events := make([]*calendar.Event, len(found))
	for i, o := range found {
		events[i] = o.event
	}
	return events, nil
}

func containsTime(times []time.Time, t time.Time) bool {
	for _, x := range times {
		if x.Equal(t) {
			return true
		}
	}
	return false
}

// GetEvent returns the event with the given UID.
func (c *ICSClient) GetEvent(ctx context.Context, source, eventID string) (*calendar.Event, error) {
	cal, err := c.load(ctx, source)
	if err != nil {
		return nil, err
	}
	for _, comp := range cal.Children {
		if comp.Name != ical.CompEvent {
			continue
		}
		vevent, err := readVEvent(comp, c.loc)
		if err != nil || !vevent.recurrenceID.IsZero() {
			continue
		}
		if vevent.event.Id == eventID {
			event := *vevent.event
			setEventTimes(&event, vevent.start, vevent.end, vevent.allDay)
			return &event, nil
		}
	}
	return nil, fmt.Errorf("failed to get event: %s not found in %s", eventID, source)
}

// Search returns the events whose summary contains query.
func (c *ICSClient) Search(ctx context.Context, source, query string) ([]*calendar.Event, error) {
	cal, err := c.load(ctx, source)
	if err != nil {
		return nil, err
	}
	var events []*calendar.Event
	for _, comp := range cal.Children {
		if comp.Name != ical.CompEvent {
			continue
		}
		vevent, err := readVEvent(comp, c.loc)
		if err != nil || !vevent.recurrenceID.IsZero() || !strings.Contains(vevent.event.Summary, query) {
			continue
		}
		event := *vevent.event
		setEventTimes(&event, vevent.start, vevent.end, vevent.allDay)
		events = append(events, &event)
	}
	return events, nil
}

// InsertEvent is not supported for ICS sources.
func (c *ICSClient) InsertEvent(ctx context.Context, source string, event *calendar.Event) (*calendar.Event, error) {
	return nil, ErrReadOnly
}

// UpdateEvent is not supported for ICS sources.
func (c *ICSClient) UpdateEvent(ctx context.Context, source, eventID string, event *calendar.Event) (*calendar.Event, error) {
	return nil, ErrReadOnly
}

// Instances is only used when editing a lesson series, which ICS sources cannot do.
func (c *ICSClient) Instances(ctx context.Context, source, eventID string) ([]*calendar.Event, error) {
	return nil, ErrReadOnly
}

// load fetches and decodes the calendar at source.
func (c *ICSClient) load(ctx context.Context, source string) (*ical.Calendar, error) {
	var r io.ReadCloser
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build ICS request: %w", err)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch ICS: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("failed to fetch ICS: HTTP %d", resp.StatusCode)
		}
		r = resp.Body
	} else {
		f, err := os.Open(source)
		if err != nil {
			return nil, fmt.Errorf("failed to open ICS file: %w", err)
		}
		r = f
	}
	defer r.Close()

	cal, err := ical.NewDecoder(r).Decode()
	if err != nil {
		return nil, fmt.Errorf("failed to parse iCalendar: %w", err)
	}
	return cal, nil
}

type vevent struct {
	comp   *ical.Component
	event  *calendar.Event
	start  time.Time
	end    time.Time
	allDay bool

	recurrenceID time.Time // Set on an edited occurrence of a recurring event
	cancelled    bool
}

func (v vevent) duration() time.Duration {
	return v.end.Sub(v.start)
}

// readVEvent converts a VEVENT component to Google Calendar Event format,
// returning its first occurrence's bounds alongside.
func readVEvent(comp *ical.Component, loc *time.Location) (vevent, error) {
	event := &calendar.Event{}

	// Extract UID (event ID)
	if uid := comp.Props.Get(ical.PropUID); uid != nil {
		event.Id = uid.Value
	}

	if summary := comp.Props.Get(ical.PropSummary); summary != nil {
		if text, err := summary.Text(); err == nil {
			event.Summary = text
		}
	}

	if desc := comp.Props.Get(ical.PropDescription); desc != nil {
		if text, err := desc.Text(); err == nil {
			event.Description = text
		}
	}

	if loc := comp.Props.Get(ical.PropLocation); loc != nil {
		event.Location = loc.Value
	}

	dtstart := comp.Props.Get(ical.PropDateTimeStart)
	if dtstart == nil {
		return vevent{}, fmt.Errorf("event %q has no DTSTART", event.Id)
	}
	start, err := dtstart.DateTime(loc)
	if err != nil {
		return vevent{}, fmt.Errorf("event %q: invalid DTSTART: %w", event.Id, err)
	}
	allDay := dtstart.Params.Get("VALUE") == "DATE"

	var end time.Time
	if dtend := comp.Props.Get(ical.PropDateTimeEnd); dtend != nil {
		if end, err = dtend.DateTime(loc); err != nil {
			return vevent{}, fmt.Errorf("event %q: invalid DTEND: %w", event.Id, err)
		}
	} else if allDay {
		end = start.AddDate(0, 0, 1)
	} else {
		end = start
	}

	v := vevent{comp: comp, event: event, start: start, end: end, allDay: allDay}
	if rid := comp.Props.Get(ical.PropRecurrenceID); rid != nil {
		if v.recurrenceID, err = rid.DateTime(loc); err != nil {
			return vevent{}, fmt.Errorf("event %q: invalid RECURRENCE-ID: %w", event.Id, err)
		}
	}
	if status := comp.Props.Get(ical.PropStatus); status != nil {
		v.cancelled = strings.EqualFold(status.Value, "CANCELLED")
	}
	return v, nil
}

func setEventTimes(event *calendar.Event, start, end time.Time, allDay bool) {
	if allDay {
		event.Start = &calendar.EventDateTime{Date: start.Format(dateLayout)}
		event.End = &calendar.EventDateTime{Date: end.Format(dateLayout)}
		return
	}
	event.Start = &calendar.EventDateTime{DateTime: start.Format(time.RFC3339)}
	event.End = &calendar.EventDateTime{DateTime: end.Format(time.RFC3339)}
}
