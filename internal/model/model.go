package model

import "time"

// RawEvent is a single lesson as read from a venue's calendar.
// Start and End are already in the venue's display timezone.
type RawEvent struct {
	ID          string
	Venue       string
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	// AllDay is set for date-only events; their times are local midnights.
	AllDay bool
}
