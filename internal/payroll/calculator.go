package payroll

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/theyoungmaker/schedule-bot/internal/model"
)

// Remarks written on line items.
const (
	RemarkPostponed  = "Postponed"
	RemarkShadowing  = "Shadowing"
	remarkSubstitute = "Substituting for "
)

// LineItem is one row of the payment report.
type LineItem struct {
	Venue         string
	Date          string
	Weekday       string
	EventTitle    string
	StartTime     string
	EndTime       string
	Hours         decimal.Decimal
	TeacherName   string
	TeacherHandle string
	HourlyRate    decimal.Decimal
	Amount        decimal.Decimal
	Remarks       string
}

// Outcome is the billing result of a single event: either line items, or
// the reason the event was left out of the report.
type Outcome struct {
	Event  model.RawEvent
	Items  []LineItem
	Reason SkipReason
}

// Skipped reports whether the event produced no line items.
func (o Outcome) Skipped() bool {
	return o.Reason != SkipNone
}

// Calculator turns events into payment line items.
type Calculator struct {
	rates *RateTable
}

// NewCalculator creates a Calculator using the given rate table.
func NewCalculator(rates *RateTable) *Calculator {
	if rates == nil {
		rates = DefaultRateTable()
	}
	return &Calculator{rates: rates}
}

// Rates returns the calculator's rate table.
func (c *Calculator) Rates() *RateTable {
	return c.rates
}

// Hours returns the wall-clock length of [start, end) in fractional hours.
func Hours(start, end time.Time) decimal.Decimal {
	seconds := decimal.NewFromInt(int64(end.Sub(start) / time.Second))
	return seconds.Div(decimal.NewFromInt(3600))
}

// Evaluate bills a single event. It never fails: events that cannot be
// billed come back with a SkipReason and no items.
func (c *Calculator) Evaluate(ev model.RawEvent) Outcome {
	if ev.AllDay {
		return Outcome{Event: ev, Reason: SkipAllDay}
	}
	if ev.End.Before(ev.Start) {
		return Outcome{Event: ev, Reason: SkipInvalidTimes}
	}

	parsed := ParseDescription(ev.Description, ev.Summary)
	if !parsed.Parsed() {
		return Outcome{Event: ev, Reason: parsed.Reason}
	}
	a := parsed.Assignment

	main := c.baseItem(ev)
	main.Hours = Hours(ev.Start, ev.End)
	main.TeacherName = a.TeacherName
	main.TeacherHandle = a.TeacherHandle
	main.HourlyRate = c.rates.RateFor(a.TeacherHandle)
	if a.Replaces != nil {
		main.Remarks = remarkSubstitute + a.Replaces.Name
	}
	if a.Postponed {
		main.HourlyRate = decimal.Zero
		main.Remarks = RemarkPostponed
	}
	main.Amount = amount(main.Hours, main.HourlyRate)

	items := []LineItem{main}

	if a.Shadow != nil {
		shadow := c.baseItem(ev)
		shadow.Hours = c.rates.ShadowHours
		shadow.TeacherName = a.Shadow.Name
		shadow.TeacherHandle = a.Shadow.Handle
		shadow.HourlyRate = c.rates.Shadow
		shadow.Remarks = RemarkShadowing
		if a.Postponed {
			shadow.HourlyRate = decimal.Zero
			shadow.Remarks = RemarkPostponed
		}
		shadow.Amount = amount(shadow.Hours, shadow.HourlyRate)
		items = append(items, shadow)
	}

	return Outcome{Event: ev, Items: items}
}

// EvaluateAll bills every event in order. A skipped event does not stop
// the ones after it.
func (c *Calculator) EvaluateAll(events []model.RawEvent) []Outcome {
	outcomes := make([]Outcome, 0, len(events))
	for _, ev := range events {
		outcomes = append(outcomes, c.Evaluate(ev))
	}
	return outcomes
}

func (c *Calculator) baseItem(ev model.RawEvent) LineItem {
	return LineItem{
		Venue:      ev.Venue,
		Date:       ev.Start.Format("2006-01-02"),
		Weekday:    ev.Start.Format("Monday"),
		EventTitle: ev.Summary,
		StartTime:  ev.Start.Format("15:04"),
		EndTime:    ev.End.Format("15:04"),
	}
}

func amount(hours, rate decimal.Decimal) decimal.Decimal {
	return hours.Mul(rate).Round(2)
}

// PersonTotal is the amount owed to one teacher across a report.
type PersonTotal struct {
	TeacherHandle string
	TeacherName   string
	Amount        decimal.Decimal
}

// Totals accumulates line item amounts per teacher handle.
// Handles are compared case-insensitively. When one handle is written with
// different names or capitalisation, the lexicographically smallest
// spelling is kept, so totals do not depend on event order.
type Totals struct {
	byHandle map[string]*PersonTotal
}

// NewTotals creates an empty Totals.
func NewTotals() *Totals {
	return &Totals{byHandle: make(map[string]*PersonTotal)}
}

// Add folds a line item into the running total for its handle.
func (t *Totals) Add(item LineItem) {
	key := FoldHandle(item.TeacherHandle)
	if total, ok := t.byHandle[key]; ok {
		total.Amount = total.Amount.Add(item.Amount)
		if spellingBefore(item.TeacherName, item.TeacherHandle, total.TeacherName, total.TeacherHandle) {
			total.TeacherName = item.TeacherName
			total.TeacherHandle = item.TeacherHandle
		}
		return
	}
	t.byHandle[key] = &PersonTotal{
		TeacherHandle: item.TeacherHandle,
		TeacherName:   item.TeacherName,
		Amount:        item.Amount,
	}
}

func spellingBefore(name, handle, curName, curHandle string) bool {
	if name != curName {
		return name < curName
	}
	return handle < curHandle
}

// AddOutcomes adds every line item of the given outcomes.
func (t *Totals) AddOutcomes(outcomes []Outcome) {
	for _, o := range outcomes {
		for _, item := range o.Items {
			t.Add(item)
		}
	}
}

// Get returns the total for handle.
func (t *Totals) Get(handle string) (PersonTotal, bool) {
	total, ok := t.byHandle[FoldHandle(handle)]
	if !ok {
		return PersonTotal{}, false
	}
	return *total, true
}

// Len returns the number of distinct handles.
func (t *Totals) Len() int {
	return len(t.byHandle)
}

// Sorted returns all totals ordered by teacher name, then handle.
func (t *Totals) Sorted() []PersonTotal {
	out := make([]PersonTotal, 0, len(t.byHandle))
	for _, total := range t.byHandle {
		out = append(out, *total)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TeacherName != out[j].TeacherName {
			return out[i].TeacherName < out[j].TeacherName
		}
		return FoldHandle(out[i].TeacherHandle) < FoldHandle(out[j].TeacherHandle)
	})
	return out
}

// Sum returns the grand total across all handles.
func (t *Totals) Sum() decimal.Decimal {
	sum := decimal.Zero
	for _, total := range t.byHandle {
		sum = sum.Add(total.Amount)
	}
	return sum
}
