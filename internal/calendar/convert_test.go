package calendar

import (
	"testing"
	"time"

	"google.golang.org/api/calendar/v3"
)

func TestToRawEvent_Timed(t *testing.T) {
	sgt := time.FixedZone("SGT", 8*3600)
	event := &calendar.Event{
		Id:          "evt1",
		Summary:     "Robotics L3",
		Description: "Teacher: Jane Doe @janedoe",
		Start:       &calendar.EventDateTime{DateTime: "2024-05-06T01:00:00Z"},
		End:         &calendar.EventDateTime{DateTime: "2024-05-06T03:00:00Z"},
	}

	raw, err := ToRawEvent(event, "Stars of Kovan", sgt)
	if err != nil {
		t.Fatalf("ToRawEvent() returned an error: %v", err)
	}
	if raw.Venue != "Stars of Kovan" {
		t.Errorf("Expected Venue to be 'Stars of Kovan', got '%s'", raw.Venue)
	}
	if raw.AllDay {
		t.Error("Expected a timed event")
	}
	if got := raw.Start.Format("2006-01-02 15:04"); got != "2024-05-06 09:00" {
		t.Errorf("Expected start in local time 2024-05-06 09:00, got %s", got)
	}
	if got := raw.End.Format("15:04"); got != "11:00" {
		t.Errorf("Expected end 11:00, got %s", got)
	}
}

func TestToRawEvent_AllDayAndDefaults(t *testing.T) {
	event := &calendar.Event{
		Id:    "evt2",
		Start: &calendar.EventDateTime{Date: "2024-05-06"},
		End:   &calendar.EventDateTime{Date: "2024-05-07"},
	}

	raw, err := ToRawEvent(event, "35 Lowland", time.UTC)
	if err != nil {
		t.Fatalf("ToRawEvent() returned an error: %v", err)
	}
	if !raw.AllDay {
		t.Error("Expected an all-day event")
	}
	if raw.Summary != "Unnamed Event" {
		t.Errorf("Expected default summary, got '%s'", raw.Summary)
	}
}

func TestToRawEvents_SkipsBrokenEvents(t *testing.T) {
	events := []*calendar.Event{
		{Id: "ok", Start: &calendar.EventDateTime{Date: "2024-05-06"}, End: &calendar.EventDateTime{Date: "2024-05-07"}},
		{Id: "no-end", Start: &calendar.EventDateTime{Date: "2024-05-06"}},
		{Id: "bad", Summary: "Coding L4", Start: &calendar.EventDateTime{DateTime: "yesterday"}, End: &calendar.EventDateTime{DateTime: "today"}},
	}

	raws, unreadable := ToRawEvents(events, "Kovan", time.UTC)
	if len(raws) != 1 || raws[0].ID != "ok" {
		t.Errorf("Expected only the readable event, got %+v", raws)
	}
	if len(unreadable) != 2 {
		t.Fatalf("Expected 2 unreadable events, got %d", len(unreadable))
	}
	if unreadable[0].ID != "no-end" || unreadable[1].ID != "bad" {
		t.Errorf("Expected unreadable events in order, got %s, %s", unreadable[0].ID, unreadable[1].ID)
	}
	if unreadable[1].Summary != "Coding L4" || unreadable[1].Venue != "Kovan" || unreadable[1].Err == nil {
		t.Errorf("Unexpected unreadable event %+v", unreadable[1])
	}
}
