// Package bot implements the Telegram command surface: schedule messages,
// payment reports and lesson series management.
package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/theyoungmaker/schedule-bot/internal/calendar"
	"github.com/theyoungmaker/schedule-bot/internal/config"
	"github.com/theyoungmaker/schedule-bot/internal/export"
	"github.com/theyoungmaker/schedule-bot/internal/lessons"
	"github.com/theyoungmaker/schedule-bot/internal/model"
	"github.com/theyoungmaker/schedule-bot/internal/payroll"
	"github.com/theyoungmaker/schedule-bot/internal/schedule"
)

const helpText = `<b>Available commands</b>

/schedule [venue] [YYYY-MM-DD] - show the lessons for the 7 days after the date (default today)
/send [venue] [YYYY-MM-DD] - post the schedule to the group chat
/edit &lt;message_id&gt; [venue] [YYYY-MM-DD] - refresh a schedule already posted to the group
/report [venue] [YYYY-MM-DD] - payment spreadsheet for one venue, or all venues when none is given
/add_event Title, YYYY-MM-DD, HHMM-HHMM, N, Description - create N weekly numbered lessons
/postpone_event &lt;event_id&gt; [venue] - postpone a numbered lesson and add a makeup lesson
/helpme - show this message`

// Command is a parsed chat command.
type Command struct {
	Name      string   // Without the leading slash or @botname suffix
	Args      []string // Whitespace-separated arguments
	RawArgs   string   // Everything after the command
	ChatID    int64
	MessageID int
}

// Options configures a Bot.
type Options struct {
	GroupChatID  int64
	AdminChatID  int64 // Receives the ID of every pushed schedule; 0 disables
	Venues       []config.Venue
	DefaultVenue string
	Location     *time.Location
	Reminder     string // Posted after each pushed schedule; empty disables
	Rates        *payroll.RateTable
	Sinks        []export.Sink
	Log          *MessageLog
	Verbose      bool
	Now          func() time.Time
}

// Bot handles commands against the venue calendars.
type Bot struct {
	opts      Options
	messenger Messenger
	google    calendar.CalendarClient
	ics       calendar.CalendarClient
	calc      *payroll.Calculator
}

// New creates a Bot. google serves venues with a calendar ID and ics serves
// venues with an ICS URL; either may be nil when no venue needs it.
func New(opts Options, messenger Messenger, google, ics calendar.CalendarClient) *Bot {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Rates == nil {
		opts.Rates = payroll.DefaultRateTable()
	}
	return &Bot{
		opts:      opts,
		messenger: messenger,
		google:    google,
		ics:       ics,
		calc:      payroll.NewCalculator(opts.Rates),
	}
}

// Venues returns the configured venues in order.
func (b *Bot) Venues() []config.Venue {
	return b.opts.Venues
}

func (b *Bot) venue(key string) (config.Venue, bool) {
	for _, v := range b.opts.Venues {
		if strings.EqualFold(v.Key, key) {
			return v, true
		}
	}
	return config.Venue{}, false
}

func (b *Bot) defaultVenue() config.Venue {
	if v, ok := b.venue(b.opts.DefaultVenue); ok {
		return v
	}
	return b.opts.Venues[0]
}

func (b *Bot) client(v config.Venue) (calendar.CalendarClient, error) {
	c := b.google
	if v.IsICS() {
		c = b.ics
	}
	if c == nil {
		return nil, fmt.Errorf("no calendar client configured for venue %s", v.Key)
	}
	return c, nil
}

// Handle runs cmd. Failures are reported to the requesting chat; the
// returned error is only set when that reply could not be delivered.
func (b *Bot) Handle(ctx context.Context, cmd Command) error {
	if b.opts.Verbose {
		log.Printf("DEBUG: /%s %q from chat %d", cmd.Name, cmd.RawArgs, cmd.ChatID)
	}

	var err error
	switch cmd.Name {
	case "schedule":
		err = b.handleSchedule(ctx, cmd)
	case "send":
		err = b.handleSend(ctx, cmd)
	case "edit":
		err = b.handleEdit(ctx, cmd)
	case "report":
		err = b.handleReport(ctx, cmd)
	case "add_event":
		err = b.handleAddEvent(ctx, cmd)
	case "postpone_event":
		err = b.handlePostpone(ctx, cmd)
	case "helpme", "help", "start":
		return b.reply(ctx, cmd, helpText)
	default:
		return b.reply(ctx, cmd, fmt.Sprintf("Unknown command /%s. Use /helpme to list commands.", html.EscapeString(cmd.Name)))
	}

	if err != nil {
		log.Printf("Warning: /%s failed: %v", cmd.Name, err)
		return b.reply(ctx, cmd, fmt.Sprintf("Failed to run /%s. Error: %s", cmd.Name, html.EscapeString(err.Error())))
	}
	return nil
}

func (b *Bot) reply(ctx context.Context, cmd Command, text string) error {
	_, err := b.messenger.SendHTML(ctx, cmd.ChatID, text, cmd.MessageID)
	return err
}

// target is what a command's venue and date arguments resolved to.
type target struct {
	venue    *config.Venue // nil when no venue was named
	anchor   time.Time
	warnings []string
}

// resolveArgs reads venue keys and YYYY-MM-DD dates in any order.
func (b *Bot) resolveArgs(args []string) target {
	t := target{anchor: b.opts.Now().In(b.opts.Location)}
	for _, arg := range args {
		if v, ok := b.venue(arg); ok {
			t.venue = &v
			continue
		}
		if d, err := calendar.ParseDate(arg, b.opts.Location); err == nil {
			t.anchor = d
			continue
		}
		if arg != "" && arg[0] >= '0' && arg[0] <= '9' {
			t.warnings = append(t.warnings, "Date format is not valid, sending schedule for next 7 days starting from today instead.")
			continue
		}
		t.warnings = append(t.warnings, fmt.Sprintf("Unknown venue %q, using %s instead.", arg, b.defaultVenue().Key))
	}
	return t
}

func (t target) venueOr(def config.Venue) config.Venue {
	if t.venue != nil {
		return *t.venue
	}
	return def
}

func (b *Bot) warn(ctx context.Context, cmd Command, t target) {
	for _, w := range t.warnings {
		if err := b.reply(ctx, cmd, html.EscapeString(w)); err != nil {
			log.Printf("Warning: failed to send warning: %v", err)
		}
	}
}

// fetch returns the venue's events in the week after anchor, and the
// events whose times could not be read.
func (b *Bot) fetch(ctx context.Context, v config.Venue, anchor time.Time) ([]model.RawEvent, []calendar.Unreadable, error) {
	client, err := b.client(v)
	if err != nil {
		return nil, nil, err
	}
	timeMin, timeMax := calendar.Window(anchor, b.opts.Location)
	events, err := client.GetEvents(ctx, v.Source(), timeMin, timeMax)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch events for %s: %w", v.Key, err)
	}
	if b.opts.Verbose {
		log.Printf("DEBUG: %d events for %s between %s and %s", len(events), v.Key, timeMin.Format(time.RFC3339), timeMax.Format(time.RFC3339))
	}
	raws, unreadable := calendar.ToRawEvents(events, v.Name, b.opts.Location)
	return raws, unreadable, nil
}

func (b *Bot) record(s Sent) {
	if b.opts.Log == nil {
		return
	}
	if err := b.opts.Log.Append(s); err != nil {
		log.Printf("Warning: failed to log message %d: %v", s.MessageID, err)
	}
}

func (b *Bot) handleSchedule(ctx context.Context, cmd Command) error {
	t := b.resolveArgs(cmd.Args)
	b.warn(ctx, cmd, t)

	v := t.venueOr(b.defaultVenue())
	events, _, err := b.fetch(ctx, v, t.anchor)
	if err != nil {
		return err
	}

	sent, err := b.messenger.SendHTML(ctx, cmd.ChatID, schedule.Render(v.Name, events), cmd.MessageID)
	if err != nil {
		return err
	}
	b.record(sent)
	return nil
}

// PushSchedule posts the venue's schedule for the week after anchor to the
// group chat, follows it with the reminder and tells the admin chat the
// message ID. The returned Sent identifies the schedule message for edits.
func (b *Bot) PushSchedule(ctx context.Context, v config.Venue, anchor time.Time) (Sent, error) {
	events, _, err := b.fetch(ctx, v, anchor)
	if err != nil {
		return Sent{}, err
	}

	sent, err := b.messenger.SendHTML(ctx, b.opts.GroupChatID, schedule.Render(v.Name, events), 0)
	if err != nil {
		return Sent{}, err
	}
	b.record(sent)
	log.Printf("Message with message id %d sent to group chat id %d", sent.MessageID, sent.ChatID)

	if b.opts.Reminder != "" {
		if _, err := b.messenger.SendHTML(ctx, b.opts.GroupChatID, b.opts.Reminder, 0); err != nil {
			log.Printf("Warning: failed to send reminder: %v", err)
		}
	}
	if b.opts.AdminChatID != 0 {
		notice := fmt.Sprintf("Message ID: %d, Group Chat ID: %d", sent.MessageID, sent.ChatID)
		if _, err := b.messenger.SendHTML(ctx, b.opts.AdminChatID, notice, 0); err != nil {
			log.Printf("Warning: failed to notify admin: %v", err)
		}
	}
	return sent, nil
}

func (b *Bot) handleSend(ctx context.Context, cmd Command) error {
	t := b.resolveArgs(cmd.Args)
	b.warn(ctx, cmd, t)

	sent, err := b.PushSchedule(ctx, t.venueOr(b.defaultVenue()), t.anchor)
	if err != nil {
		return err
	}
	return b.reply(ctx, cmd, fmt.Sprintf("Message ID: %d", sent.MessageID))
}

// EditSchedule rewrites a pushed schedule message with fresh events and
// replies to it with an update notice. It returns the new text.
func (b *Bot) EditSchedule(ctx context.Context, messageID int, v config.Venue, anchor time.Time) (string, error) {
	events, _, err := b.fetch(ctx, v, anchor)
	if err != nil {
		return "", err
	}

	editedAt := b.opts.Now().In(b.opts.Location)
	text := schedule.RenderEdited(v.Name, events, editedAt)
	if err := b.messenger.EditHTML(ctx, b.opts.GroupChatID, messageID, text); err != nil {
		return "", err
	}
	if _, err := b.messenger.SendHTML(ctx, b.opts.GroupChatID, schedule.UpdateNotice(editedAt), messageID); err != nil {
		log.Printf("Warning: failed to send update notice for message %d: %v", messageID, err)
	}
	log.Printf("Message for message id %d edited successfully", messageID)
	return text, nil
}

func (b *Bot) handleEdit(ctx context.Context, cmd Command) error {
	if len(cmd.Args) == 0 {
		return b.reply(ctx, cmd, "Message Id is empty.")
	}
	messageID, err := strconv.Atoi(cmd.Args[0])
	if err != nil || messageID <= 0 {
		return b.reply(ctx, cmd, fmt.Sprintf("Invalid message id %q.", html.EscapeString(cmd.Args[0])))
	}

	t := b.resolveArgs(cmd.Args[1:])
	b.warn(ctx, cmd, t)

	text, err := b.EditSchedule(ctx, messageID, t.venueOr(b.defaultVenue()), t.anchor)
	if err != nil {
		return b.reply(ctx, cmd, fmt.Sprintf("Failed to edit message for message id %d. Error: %s", messageID, html.EscapeString(err.Error())))
	}
	return b.reply(ctx, cmd, "Message has been edited successfully\n"+text)
}

// BuildReport derives the payment report for venues over the week after anchor.
// Venues are processed in the order given. Events whose times cannot be read
// are listed among the skipped events.
func (b *Bot) BuildReport(ctx context.Context, venues []config.Venue, anchor time.Time) (*payroll.Report, error) {
	timeMin, timeMax := calendar.Window(anchor, b.opts.Location)
	report := payroll.NewReport(timeMin, timeMax)
	for _, v := range venues {
		events, unreadable, err := b.fetch(ctx, v, anchor)
		if err != nil {
			return nil, err
		}
		outcomes := b.calc.EvaluateAll(events)
		for _, u := range unreadable {
			outcomes = append(outcomes, payroll.Outcome{
				Event:  model.RawEvent{ID: u.ID, Venue: u.Venue, Summary: u.Summary},
				Reason: payroll.SkipUnreadable,
			})
		}
		report.AddVenue(outcomes)
	}
	return report, nil
}

func (b *Bot) handleReport(ctx context.Context, cmd Command) error {
	t := b.resolveArgs(cmd.Args)
	b.warn(ctx, cmd, t)

	venues := b.opts.Venues
	if t.venue != nil {
		venues = []config.Venue{*t.venue}
	}

	report, err := b.BuildReport(ctx, venues, t.anchor)
	if err != nil {
		return err
	}
	data, err := export.WriteXLSX(report.Rows())
	if err != nil {
		return err
	}

	name := report.FileName()
	caption := fmt.Sprintf("%d line items, total %s", report.ItemCount(), report.Totals().Sum().StringFixed(2))
	if _, err := b.messenger.SendDocument(ctx, cmd.ChatID, name, data, caption); err != nil {
		return err
	}

	var summary strings.Builder
	fmt.Fprintf(&summary, "Payment report <b>%s</b> generated.", html.EscapeString(name))
	for _, r := range export.PutAll(ctx, b.opts.Sinks, name, data) {
		if r.Err != nil {
			fmt.Fprintf(&summary, "\nFailed to store in %s: %s", r.Sink, html.EscapeString(r.Err.Error()))
			continue
		}
		fmt.Fprintf(&summary, "\nStored in %s: %s", r.Sink, html.EscapeString(r.Location))
	}
	if skipped := report.Skipped(); len(skipped) > 0 {
		fmt.Fprintf(&summary, "\n\n<b>Skipped events (%d)</b>", len(skipped))
		for _, o := range skipped {
			date := "unknown date"
			if !o.Event.Start.IsZero() {
				date = o.Event.Start.Format("2006-01-02")
			}
			fmt.Fprintf(&summary, "\n- %s %s (%s): %s",
				date,
				html.EscapeString(o.Event.Summary),
				html.EscapeString(o.Event.Venue),
				o.Reason)
		}
	}
	return b.reply(ctx, cmd, summary.String())
}

func (b *Bot) planner(v config.Venue) (*lessons.Planner, error) {
	if v.IsICS() {
		return nil, fmt.Errorf("venue %s: %w", v.Key, calendar.ErrReadOnly)
	}
	client, err := b.client(v)
	if err != nil {
		return nil, err
	}
	return lessons.NewPlanner(client, b.opts.Location), nil
}

func (b *Bot) handleAddEvent(ctx context.Context, cmd Command) error {
	req, err := lessons.ParseSeriesArgs(cmd.RawArgs, b.opts.Location)
	if err != nil {
		return b.reply(ctx, cmd, html.EscapeString(err.Error()))
	}

	v := b.defaultVenue()
	planner, err := b.planner(v)
	if err != nil {
		return err
	}

	created, err := planner.CreateSeries(ctx, v.CalendarID, req)
	if err != nil {
		return err
	}

	var msg strings.Builder
	for _, e := range created {
		fmt.Fprintf(&msg, "Event ID: %s\n Title: %s\n Date: %s\n\n", e.Id, html.EscapeString(e.Summary), eventDate(e.Start))
	}
	fmt.Fprintf(&msg, "Recurring events for '%s' have been added to the calendar!", html.EscapeString(req.Title))
	return b.reply(ctx, cmd, msg.String())
}

func (b *Bot) handlePostpone(ctx context.Context, cmd Command) error {
	if len(cmd.Args) == 0 {
		return b.reply(ctx, cmd, "Usage: /postpone_event &lt;event_id&gt; [venue]")
	}
	eventID := cmd.Args[0]
	t := b.resolveArgs(cmd.Args[1:])
	b.warn(ctx, cmd, t)

	v := t.venueOr(b.defaultVenue())
	planner, err := b.planner(v)
	if err != nil {
		return err
	}

	result, err := planner.Postpone(ctx, v.CalendarID, eventID)
	if errors.Is(err, lessons.ErrNoSequence) || errors.Is(err, lessons.ErrAlreadyPostponed) {
		return b.reply(ctx, cmd, upperFirst(err.Error())+".")
	}
	if err != nil {
		return err
	}

	var msg strings.Builder
	for _, e := range result.Renumbered {
		fmt.Fprintf(&msg, "Event ID: %s\nTitle: %s\nDate: %s\n\n", e.Id, html.EscapeString(e.Summary), eventDate(e.Start))
	}
	if result.Makeup != nil {
		fmt.Fprintf(&msg, "Makeup lesson: %s on %s\n\n", html.EscapeString(result.Makeup.Summary), eventDate(result.Makeup.Start))
	}
	fmt.Fprintf(&msg, "Event '%s' has been postponed and subsequent events updated.", html.EscapeString(lessons.BaseTitle(result.Postponed.Summary)))
	return b.reply(ctx, cmd, msg.String())
}

// RunScheduled pushes every venue's schedule for the coming week.
func (b *Bot) RunScheduled(ctx context.Context) {
	now := b.opts.Now()
	for _, v := range b.opts.Venues {
		if _, err := b.PushSchedule(ctx, v, now); err != nil {
			log.Printf("Warning: scheduled send for %s failed: %v", v.Key, err)
			if b.opts.AdminChatID == 0 {
				continue
			}
			notice := fmt.Sprintf("Scheduled send for %s failed. Error: %s", v.Key, html.EscapeString(err.Error()))
			if _, err := b.messenger.SendHTML(ctx, b.opts.AdminChatID, notice, 0); err != nil {
				log.Printf("Warning: failed to notify admin: %v", err)
			}
		}
	}
}
