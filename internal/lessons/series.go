// Package lessons creates numbered weekly lesson series in a calendar and
// postpones individual lessons within them.
package lessons

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
	gcal "google.golang.org/api/calendar/v3"

	"github.com/theyoungmaker/schedule-bot/internal/calendar"
	"github.com/theyoungmaker/schedule-bot/internal/payroll"
)

// PostponedPrefix is prepended to the title of a postponed lesson.
const PostponedPrefix = "[POSTPONED] "

// SeriesUsage documents the /add_event argument format.
const SeriesUsage = "Usage: /add_event <Title>, <Start Date: YYYY-MM-DD>, <Start Time-End Time: HHMM-HHMM>, <Number of Recurrences>, <Description>"

var (
	// ErrNoSequence is returned when an event title carries no [i/n] marker.
	ErrNoSequence = errors.New("unable to identify sequence for the given event")
	// ErrAlreadyPostponed is returned when postponing a lesson twice.
	ErrAlreadyPostponed = errors.New("event is already postponed")

	sequencePattern = regexp.MustCompile(`\[(\d+)/(\d+)\]`)

	weekdays = [...]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}
)

// SeriesRequest describes a weekly lesson series.
type SeriesRequest struct {
	Title       string
	Start       time.Time
	End         time.Time
	Count       int
	Description string
}

// ParseSeriesArgs parses "Title, YYYY-MM-DD, HHMM-HHMM, N, Description".
// Commas after the fourth field belong to the description.
func ParseSeriesArgs(text string, loc *time.Location) (SeriesRequest, error) {
	parts := strings.SplitN(text, ",", 5)
	if len(parts) < 5 {
		return SeriesRequest{}, errors.New(SeriesUsage)
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	req := SeriesRequest{Title: parts[0], Description: parts[4]}
	if req.Title == "" {
		return SeriesRequest{}, errors.New("title must not be empty")
	}

	day, err := calendar.ParseDate(parts[1], loc)
	if err != nil {
		return SeriesRequest{}, fmt.Errorf("invalid date format: %w", err)
	}

	startClock, endClock, ok := strings.Cut(parts[2], "-")
	if !ok {
		return SeriesRequest{}, fmt.Errorf("invalid time range %q: expected HHMM-HHMM", parts[2])
	}
	if req.Start, err = atClock(day, startClock); err != nil {
		return SeriesRequest{}, err
	}
	if req.End, err = atClock(day, endClock); err != nil {
		return SeriesRequest{}, err
	}
	if !req.End.After(req.Start) {
		return SeriesRequest{}, fmt.Errorf("end time %s is not after start time %s", endClock, startClock)
	}

	if req.Count, err = strconv.Atoi(parts[3]); err != nil || req.Count < 1 {
		return SeriesRequest{}, fmt.Errorf("invalid number of recurrences %q", parts[3])
	}
	return req, nil
}

func atClock(day time.Time, hhmm string) (time.Time, error) {
	hhmm = strings.TrimSpace(hhmm)
	if len(hhmm) != 4 {
		return time.Time{}, fmt.Errorf("invalid time %q: expected HHMM", hhmm)
	}
	t, err := time.Parse("1504", hhmm)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: %w", hhmm, err)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, day.Location()), nil
}

// WeeklyRule returns the RRULE value for count weekly lessons on start's weekday.
func WeeklyRule(start time.Time, count int) string {
	opt := rrule.ROption{
		Freq:      rrule.WEEKLY,
		Count:     count,
		Byweekday: []rrule.Weekday{weekdays[start.Weekday()]},
	}
	return opt.RRuleString()
}

// Sequence extracts the [i/n] marker of a lesson title.
func Sequence(title string) (index, total int, ok bool) {
	m := sequencePattern.FindStringSubmatch(title)
	if m == nil {
		return 0, 0, false
	}
	index, _ = strconv.Atoi(m[1])
	total, _ = strconv.Atoi(m[2])
	return index, total, true
}

// BaseTitle strips the postponed prefix and the [i/n] marker from a title.
func BaseTitle(title string) string {
	title = strings.TrimPrefix(title, PostponedPrefix)
	return strings.TrimSpace(sequencePattern.ReplaceAllString(title, ""))
}

func numbered(base string, index, total int) string {
	return fmt.Sprintf("%s [%d/%d]", base, index, total)
}

// Planner writes lesson series to a calendar.
type Planner struct {
	client calendar.CalendarClient
	loc    *time.Location
}

// NewPlanner creates a Planner writing event times in loc.
func NewPlanner(client calendar.CalendarClient, loc *time.Location) *Planner {
	return &Planner{client: client, loc: loc}
}

func (p *Planner) eventTime(t time.Time) *gcal.EventDateTime {
	return &gcal.EventDateTime{DateTime: t.In(p.loc).Format(time.RFC3339), TimeZone: p.loc.String()}
}

// CreateSeries inserts a weekly recurring event and retitles each of its
// instances "<Title> [i/n]". It returns the retitled instances.
func (p *Planner) CreateSeries(ctx context.Context, calendarID string, req SeriesRequest) ([]*gcal.Event, error) {
	event := &gcal.Event{
		Summary:     req.Title,
		Description: req.Description,
		Start:       p.eventTime(req.Start),
		End:         p.eventTime(req.End),
		Recurrence:  []string{"RRULE:" + WeeklyRule(req.Start.In(p.loc), req.Count)},
	}

	created, err := p.client.InsertEvent(ctx, calendarID, event)
	if err != nil {
		return nil, fmt.Errorf("failed to create lesson series: %w", err)
	}

	instances, err := p.client.Instances(ctx, calendarID, created.Id)
	if err != nil {
		return nil, fmt.Errorf("failed to list lesson series: %w", err)
	}

	updated := make([]*gcal.Event, 0, len(instances))
	for i, instance := range instances {
		instance.Summary = numbered(req.Title, i+1, req.Count)
		u, err := p.client.UpdateEvent(ctx, calendarID, instance.Id, instance)
		if err != nil {
			return updated, fmt.Errorf("failed to number lesson %d: %w", i+1, err)
		}
		updated = append(updated, u)
	}
	return updated, nil
}

// PostponeResult lists the calendar changes made by Postpone.
type PostponeResult struct {
	Postponed  *gcal.Event
	Renumbered []*gcal.Event
	Makeup     *gcal.Event
}

// Postpone marks a numbered lesson as postponed, moves the numbering of the
// later lessons in its series down by one and appends a makeup lesson one
// week after the last one.
func (p *Planner) Postpone(ctx context.Context, calendarID, eventID string) (*PostponeResult, error) {
	event, err := p.client.GetEvent(ctx, calendarID, eventID)
	if err != nil {
		return nil, err
	}
	if payroll.IsPostponed(event.Summary) {
		return nil, ErrAlreadyPostponed
	}
	position, total, ok := Sequence(event.Summary)
	if !ok {
		return nil, ErrNoSequence
	}
	base := BaseTitle(event.Summary)

	event.Summary = PostponedPrefix + event.Summary
	postponed, err := p.client.UpdateEvent(ctx, calendarID, eventID, event)
	if err != nil {
		return nil, fmt.Errorf("failed to mark event postponed: %w", err)
	}
	result := &PostponeResult{Postponed: postponed}

	related, err := p.client.Search(ctx, calendarID, base)
	if err != nil {
		return result, fmt.Errorf("failed to find later lessons: %w", err)
	}
	series := p.seriesLessons(related, base, eventID)

	for _, lesson := range series {
		index, _, _ := Sequence(lesson.event.Summary)
		if index <= position {
			continue
		}
		lesson.event.Summary = numbered(base, index-1, total)
		u, err := p.client.UpdateEvent(ctx, calendarID, lesson.event.Id, lesson.event)
		if err != nil {
			return result, fmt.Errorf("failed to renumber lesson %d: %w", index, err)
		}
		result.Renumbered = append(result.Renumbered, u)
	}

	last := lessonOf(postponed, p.loc)
	if n := len(series); n > 0 && series[n-1].start.After(last.start) {
		last = series[n-1]
	}
	if last.start.IsZero() {
		return result, fmt.Errorf("failed to schedule makeup lesson: %s has no start time", last.event.Id)
	}

	makeup := &gcal.Event{
		Summary:     numbered(base, total, total),
		Description: last.event.Description,
		Start:       p.eventTime(last.start.AddDate(0, 0, 7)),
		End:         p.eventTime(last.end.AddDate(0, 0, 7)),
	}
	if result.Makeup, err = p.client.InsertEvent(ctx, calendarID, makeup); err != nil {
		return result, fmt.Errorf("failed to add makeup lesson: %w", err)
	}
	return result, nil
}

type lesson struct {
	event      *gcal.Event
	start, end time.Time
}

func lessonOf(event *gcal.Event, loc *time.Location) lesson {
	l := lesson{event: event}
	if event.Start != nil && event.End != nil {
		l.start, _ = time.Parse(time.RFC3339, event.Start.DateTime)
		l.end, _ = time.Parse(time.RFC3339, event.End.DateTime)
		l.start, l.end = l.start.In(loc), l.end.In(loc)
	}
	return l
}

// seriesLessons keeps the timed, numbered, active lessons titled base,
// excluding skipID, sorted by start time.
func (p *Planner) seriesLessons(events []*gcal.Event, base, skipID string) []lesson {
	var out []lesson
	for _, e := range events {
		if e.Id == skipID || e.Start == nil || e.Start.DateTime == "" {
			continue
		}
		if payroll.IsPostponed(e.Summary) || BaseTitle(e.Summary) != base {
			continue
		}
		if _, _, ok := Sequence(e.Summary); !ok {
			continue
		}
		out = append(out, lessonOf(e, p.loc))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].start.Before(out[j].start)
	})
	return out
}
