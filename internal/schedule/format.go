// Package schedule renders calendar events as Telegram HTML schedule messages.
package schedule

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/theyoungmaker/schedule-bot/internal/model"
	"github.com/theyoungmaker/schedule-bot/internal/payroll"
)

const (
	dayLayout       = "Monday 02 January 2006"
	clockLayout     = "1504"
	timestampLayout = "2006-01-02 15:04:05"

	// EmptyMessage is rendered for a window without events.
	EmptyMessage = "No lessons scheduled."
)

// DefaultReminder is posted to the group after a schedule push.
const DefaultReminder = `
====================================
Please arrive 5-10 mins before lesson starts.

For teachers taking the last lesson, please:
1. Tidy up the center
2. Lock up centre, switch off aircon, projector &amp; lights. Do not switch off WiFi.
3. Please send video of aircon &amp; projector switched off, door locked, keybox scrambled with key inside

Please remember to pass students:
1. Textbook for the relevant module if they have yet to receive
2. Student shirt for new students of TYM.

Lesson materials will be sent to you by your lesson. Please PM me to ask for lesson slides if it is not sent to you 5 days before your lesson begins.

=======================================
You are required to send a summary message after your lesson.

Module name, lesson number
- Which students were absent/present
- Completed lesson number X/Did not manage to finish lesson number X
- Ended at slide number XXX
- Which student lagging behind/too fast; request for additional lessons to complete module

======================================
Please react to lesson reminder message above to acknowledge your classes
`

// Day is the events of one calendar day, already formatted.
type Day struct {
	Heading string
	Lines   []string
}

// VenueHeader returns the banner placed above a venue's schedule.
func VenueHeader(name string) string {
	return fmt.Sprintf("================ <b><u> %s </u></b> ================\n\n", html.EscapeString(name))
}

// FormatEvent renders one event without its list number.
func FormatEvent(e model.RawEvent) string {
	when := "All day"
	if !e.AllDay {
		when = fmt.Sprintf("%shrs to %shrs", e.Start.Format(clockLayout), e.End.Format(clockLayout))
	}
	return fmt.Sprintf("%s (%s)\n <b>Teacher: </b>%s",
		html.EscapeString(e.Summary), when, html.EscapeString(payroll.DisplayTeacher(e.Description)))
}

// Group buckets events by their start day. Days and events keep the order
// the events arrived in.
func Group(events []model.RawEvent) []Day {
	var days []Day
	index := make(map[string]int)
	for _, e := range events {
		heading := e.Start.Format(dayLayout)
		i, ok := index[heading]
		if !ok {
			i = len(days)
			index[heading] = i
			days = append(days, Day{Heading: heading})
		}
		days[i].Lines = append(days[i].Lines, FormatEvent(e))
	}
	return days
}

// Render builds the schedule message for one venue.
func Render(venue string, events []model.RawEvent) string {
	var b strings.Builder
	b.WriteString(VenueHeader(venue))

	days := Group(events)
	if len(days) == 0 {
		b.WriteString(EmptyMessage)
		b.WriteString("\n")
		return b.String()
	}

	for _, day := range days {
		fmt.Fprintf(&b, "<b><u>%s</u></b>\n\n", day.Heading)
		for i, line := range day.Lines {
			fmt.Fprintf(&b, "%d. %s\n\n", i+1, line)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// RenderEdited is Render prefixed with the edit timestamp.
func RenderEdited(venue string, events []model.RawEvent, editedAt time.Time) string {
	return fmt.Sprintf("<i>Message edited on %s</i>\n\n", editedAt.Format(timestampLayout)) + Render(venue, events)
}

// UpdateNotice is the reply posted under an edited schedule.
func UpdateNotice(editedAt time.Time) string {
	return fmt.Sprintf("🔄 Schedule updated at %s.\n Please review the changes.", editedAt.Format(timestampLayout))
}
