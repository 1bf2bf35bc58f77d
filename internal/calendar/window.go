package calendar

import (
	"fmt"
	"time"
)

// WindowDays is the number of days a schedule or report covers.
const WindowDays = 7

// Window returns the week following anchor: from the start of the next day
// up to (but excluding) the start of the day eight days later, in loc.
func Window(anchor time.Time, loc *time.Location) (timeMin, timeMax time.Time) {
	a := anchor.In(loc)
	day := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, loc)
	return day.AddDate(0, 0, 1), day.AddDate(0, 0, 1+WindowDays)
}

// ParseDate parses a YYYY-MM-DD date in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if len(s) != len(dateLayout) {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	t, err := time.ParseInLocation(dateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}
