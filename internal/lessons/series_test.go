package lessons

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/teambition/rrule-go"
	gcal "google.golang.org/api/calendar/v3"
)

var sgt = time.FixedZone("SGT", 8*3600)

// fakeCalendar is an in-memory calendar.CalendarClient.
type fakeCalendar struct {
	events   map[string]*gcal.Event
	order    []string
	nextID   int
	inserted []*gcal.Event
	updated  []string
}

func newFakeCalendar() *fakeCalendar {
	return &fakeCalendar{events: make(map[string]*gcal.Event)}
}

func (f *fakeCalendar) store(e *gcal.Event) *gcal.Event {
	c := *e
	if c.Id == "" {
		f.nextID++
		c.Id = fmt.Sprintf("evt%d", f.nextID)
	}
	if _, ok := f.events[c.Id]; !ok {
		f.order = append(f.order, c.Id)
	}
	f.events[c.Id] = &c
	out := c
	return &out
}

func (f *fakeCalendar) GetEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]*gcal.Event, error) {
	return nil, nil
}

func (f *fakeCalendar) GetEvent(ctx context.Context, calendarID, eventID string) (*gcal.Event, error) {
	e, ok := f.events[eventID]
	if !ok {
		return nil, fmt.Errorf("event %s not found", eventID)
	}
	c := *e
	return &c, nil
}

func (f *fakeCalendar) InsertEvent(ctx context.Context, calendarID string, event *gcal.Event) (*gcal.Event, error) {
	created := f.store(event)
	f.inserted = append(f.inserted, created)
	return created, nil
}

func (f *fakeCalendar) UpdateEvent(ctx context.Context, calendarID, eventID string, event *gcal.Event) (*gcal.Event, error) {
	if _, ok := f.events[eventID]; !ok {
		return nil, fmt.Errorf("event %s not found", eventID)
	}
	f.updated = append(f.updated, eventID)
	event.Id = eventID
	return f.store(event), nil
}

func (f *fakeCalendar) Instances(ctx context.Context, calendarID, eventID string) ([]*gcal.Event, error) {
	series, ok := f.events[eventID]
	if !ok || len(series.Recurrence) == 0 {
		return nil, fmt.Errorf("event %s is not recurring", eventID)
	}
	opt, err := rrule.StrToROption(strings.TrimPrefix(series.Recurrence[0], "RRULE:"))
	if err != nil {
		return nil, err
	}
	start, _ := time.Parse(time.RFC3339, series.Start.DateTime)
	end, _ := time.Parse(time.RFC3339, series.End.DateTime)
	opt.Dtstart = start
	rule, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, err
	}

	var instances []*gcal.Event
	for i, t := range rule.All() {
		instance := &gcal.Event{
			Id:               fmt.Sprintf("%s_%d", eventID, i),
			RecurringEventId: eventID,
			Summary:          series.Summary,
			Description:      series.Description,
			Start:            &gcal.EventDateTime{DateTime: t.Format(time.RFC3339)},
			End:              &gcal.EventDateTime{DateTime: t.Add(end.Sub(start)).Format(time.RFC3339)},
		}
		instances = append(instances, f.store(instance))
	}
	return instances, nil
}

func (f *fakeCalendar) Search(ctx context.Context, calendarID, query string) ([]*gcal.Event, error) {
	var found []*gcal.Event
	for _, id := range f.order {
		if e := f.events[id]; strings.Contains(e.Summary, query) {
			c := *e
			found = append(found, &c)
		}
	}
	return found, nil
}

func TestParseSeriesArgs(t *testing.T) {
	req, err := ParseSeriesArgs("Coding L1, 2024-05-06, 0900-1100, 4, Teacher: Jane Doe @janedoe, bring laptop", sgt)
	if err != nil {
		t.Fatalf("ParseSeriesArgs() returned an error: %v", err)
	}
	if req.Title != "Coding L1" {
		t.Errorf("Expected Title to be 'Coding L1', got '%s'", req.Title)
	}
	if !req.Start.Equal(time.Date(2024, 5, 6, 9, 0, 0, 0, sgt)) || !req.End.Equal(time.Date(2024, 5, 6, 11, 0, 0, 0, sgt)) {
		t.Errorf("Unexpected times %v - %v", req.Start, req.End)
	}
	if req.Count != 4 {
		t.Errorf("Expected Count to be 4, got %d", req.Count)
	}
	if req.Description != "Teacher: Jane Doe @janedoe, bring laptop" {
		t.Errorf("Expected description to keep its comma, got '%s'", req.Description)
	}
}

func TestParseSeriesArgs_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args string
	}{
		{"too few fields", "Coding L1, 2024-05-06, 0900-1100, 4"},
		{"empty title", ", 2024-05-06, 0900-1100, 4, desc"},
		{"bad date", "Coding L1, 06/05/2024, 0900-1100, 4, desc"},
		{"no range", "Coding L1, 2024-05-06, 0900, 4, desc"},
		{"bad clock", "Coding L1, 2024-05-06, 9am-11am, 4, desc"},
		{"end before start", "Coding L1, 2024-05-06, 1100-0900, 4, desc"},
		{"zero count", "Coding L1, 2024-05-06, 0900-1100, 0, desc"},
		{"non-numeric count", "Coding L1, 2024-05-06, 0900-1100, four, desc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseSeriesArgs(tt.args, sgt); err == nil {
				t.Errorf("Expected an error for %q", tt.args)
			}
		})
	}
}

func TestWeeklyRule(t *testing.T) {
	rule := WeeklyRule(time.Date(2024, 5, 8, 9, 0, 0, 0, sgt), 6)
	for _, part := range []string{"FREQ=WEEKLY", "COUNT=6", "BYDAY=WE"} {
		if !strings.Contains(rule, part) {
			t.Errorf("Expected %q in rule %q", part, rule)
		}
	}
}

func TestSequenceAndBaseTitle(t *testing.T) {
	index, total, ok := Sequence("[POSTPONED] Coding L1 [2/8]")
	if !ok || index != 2 || total != 8 {
		t.Errorf("Expected 2/8, got %d/%d (ok=%v)", index, total, ok)
	}
	if _, _, ok := Sequence("Coding L1"); ok {
		t.Error("Expected no sequence in an unnumbered title")
	}
	if got := BaseTitle("[POSTPONED] Coding L1 [2/8]"); got != "Coding L1" {
		t.Errorf("Expected base title 'Coding L1', got '%s'", got)
	}
}

func TestCreateSeries(t *testing.T) {
	fake := newFakeCalendar()
	planner := NewPlanner(fake, sgt)

	req := SeriesRequest{
		Title:       "Coding L1",
		Start:       time.Date(2024, 5, 6, 9, 0, 0, 0, sgt),
		End:         time.Date(2024, 5, 6, 11, 0, 0, 0, sgt),
		Count:       4,
		Description: "Teacher: Jane Doe @janedoe",
	}
	lessons, err := planner.CreateSeries(context.Background(), "primary", req)
	if err != nil {
		t.Fatalf("CreateSeries() returned an error: %v", err)
	}

	if len(fake.inserted) != 1 {
		t.Fatalf("Expected one recurring event to be inserted, got %d", len(fake.inserted))
	}
	if rec := fake.inserted[0].Recurrence; len(rec) != 1 || !strings.HasPrefix(rec[0], "RRULE:") || !strings.Contains(rec[0], "BYDAY=MO") {
		t.Errorf("Unexpected recurrence %v", rec)
	}

	if len(lessons) != 4 {
		t.Fatalf("Expected 4 lessons, got %d", len(lessons))
	}
	for i, l := range lessons {
		want := fmt.Sprintf("Coding L1 [%d/4]", i+1)
		if l.Summary != want {
			t.Errorf("Lesson %d: expected '%s', got '%s'", i, want, l.Summary)
		}
	}
	if lessons[3].Start.DateTime != "2024-05-27T09:00:00+08:00" {
		t.Errorf("Expected last lesson on 2024-05-27, got %s", lessons[3].Start.DateTime)
	}
}

func seedSeries(fake *fakeCalendar, n int) {
	for i := 0; i < n; i++ {
		start := time.Date(2024, 5, 6+7*i, 9, 0, 0, 0, sgt)
		fake.store(&gcal.Event{
			Id:          fmt.Sprintf("lesson%d", i+1),
			Summary:     fmt.Sprintf("Coding L1 [%d/%d]", i+1, n),
			Description: "Teacher: Jane Doe @janedoe",
			Start:       &gcal.EventDateTime{DateTime: start.Format(time.RFC3339)},
			End:         &gcal.EventDateTime{DateTime: start.Add(2 * time.Hour).Format(time.RFC3339)},
		})
	}
	// A different course whose title contains the same text.
	fake.store(&gcal.Event{
		Id:      "other",
		Summary: "Coding L10 [1/1]",
		Start:   &gcal.EventDateTime{DateTime: "2024-07-01T09:00:00+08:00"},
		End:     &gcal.EventDateTime{DateTime: "2024-07-01T11:00:00+08:00"},
	})
}

func TestPostpone(t *testing.T) {
	fake := newFakeCalendar()
	seedSeries(fake, 4)
	planner := NewPlanner(fake, sgt)

	result, err := planner.Postpone(context.Background(), "primary", "lesson2")
	if err != nil {
		t.Fatalf("Postpone() returned an error: %v", err)
	}

	if got := fake.events["lesson2"].Summary; got != "[POSTPONED] Coding L1 [2/4]" {
		t.Errorf("Expected postponed title, got '%s'", got)
	}
	if got := fake.events["lesson1"].Summary; got != "Coding L1 [1/4]" {
		t.Errorf("Expected earlier lesson untouched, got '%s'", got)
	}
	if got := fake.events["lesson3"].Summary; got != "Coding L1 [2/4]" {
		t.Errorf("Expected lesson3 renumbered to [2/4], got '%s'", got)
	}
	if got := fake.events["lesson4"].Summary; got != "Coding L1 [3/4]" {
		t.Errorf("Expected lesson4 renumbered to [3/4], got '%s'", got)
	}
	if got := fake.events["other"].Summary; got != "Coding L10 [1/1]" {
		t.Errorf("Expected other course untouched, got '%s'", got)
	}
	if len(result.Renumbered) != 2 {
		t.Errorf("Expected 2 renumbered lessons, got %d", len(result.Renumbered))
	}

	makeup := result.Makeup
	if makeup == nil {
		t.Fatal("Expected a makeup lesson")
	}
	if makeup.Summary != "Coding L1 [4/4]" {
		t.Errorf("Expected makeup titled 'Coding L1 [4/4]', got '%s'", makeup.Summary)
	}
	if makeup.Start.DateTime != "2024-06-03T09:00:00+08:00" || makeup.End.DateTime != "2024-06-03T11:00:00+08:00" {
		t.Errorf("Expected makeup one week after the last lesson, got %s - %s", makeup.Start.DateTime, makeup.End.DateTime)
	}
	if makeup.Description != "Teacher: Jane Doe @janedoe" {
		t.Errorf("Expected makeup to carry the description, got '%s'", makeup.Description)
	}
}

func TestPostpone_Errors(t *testing.T) {
	fake := newFakeCalendar()
	fake.store(&gcal.Event{Id: "plain", Summary: "Open House"})
	fake.store(&gcal.Event{Id: "done", Summary: "[POSTPONED] Coding L1 [1/4]"})
	planner := NewPlanner(fake, sgt)
	ctx := context.Background()

	if _, err := planner.Postpone(ctx, "primary", "plain"); !errors.Is(err, ErrNoSequence) {
		t.Errorf("Expected ErrNoSequence, got %v", err)
	}
	if _, err := planner.Postpone(ctx, "primary", "done"); !errors.Is(err, ErrAlreadyPostponed) {
		t.Errorf("Expected ErrAlreadyPostponed, got %v", err)
	}
	if _, err := planner.Postpone(ctx, "primary", "missing"); err == nil {
		t.Error("Expected an error for a missing event")
	}
	if len(fake.updated) != 0 {
		t.Errorf("Expected no updates, got %v", fake.updated)
	}
}
