package bot

import (
	"unicode"
	"unicode/utf8"

	gcal "google.golang.org/api/calendar/v3"
)

// eventDate returns the YYYY-MM-DD part of an event time.
func eventDate(t *gcal.EventDateTime) string {
	if t == nil {
		return ""
	}
	if t.Date != "" {
		return t.Date
	}
	if len(t.DateTime) >= 10 {
		return t.DateTime[:10]
	}
	return t.DateTime
}

func upperFirst(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[n:]
}
