package payroll

import (
	"fmt"
	"time"
)

// Columns is the header of the detail section of a payment report.
var Columns = []string{
	"Venue",
	"Date",
	"Day",
	"Course",
	"Start Time",
	"End Time",
	"Number of hours",
	"Teacher Name",
	"Teacher Handle",
	"Hourly Rate",
	"Amount",
	"Remarks",
}

// Column positions shared by detail and summary rows.
const (
	colTeacherName   = 7
	colTeacherHandle = 8
	colAmount        = 10
)

// RowKind tells the exporter how to render a row.
type RowKind int

const (
	RowHeader RowKind = iota
	RowDetail
	RowBlank
	RowSummaryHeader
	RowSummary
)

// Row is one line of the tabular report.
type Row struct {
	Kind  RowKind
	Item  *LineItem
	Total *PersonTotal
}

// Values returns the row's cells. Hours, rates and amounts are float64 so
// that spreadsheets treat them as numbers.
func (r Row) Values() []any {
	switch r.Kind {
	case RowHeader:
		cells := make([]any, len(Columns))
		for i, c := range Columns {
			cells[i] = c
		}
		return cells
	case RowDetail:
		it := r.Item
		return []any{
			it.Venue,
			it.Date,
			it.Weekday,
			it.EventTitle,
			it.StartTime,
			it.EndTime,
			it.Hours.Round(2).InexactFloat64(),
			it.TeacherName,
			it.TeacherHandle,
			it.HourlyRate.InexactFloat64(),
			it.Amount.InexactFloat64(),
			it.Remarks,
		}
	case RowSummaryHeader:
		cells := make([]any, len(Columns))
		cells[colTeacherName] = "Teacher Name"
		cells[colTeacherHandle] = "Teacher Handle"
		cells[colAmount] = "Total Amount"
		return cells
	case RowSummary:
		cells := make([]any, len(Columns))
		cells[colTeacherName] = r.Total.TeacherName
		cells[colTeacherHandle] = r.Total.TeacherHandle
		cells[colAmount] = r.Total.Amount.InexactFloat64()
		return cells
	default:
		return nil
	}
}

// Report collects line items for one or more venues over a date window.
type Report struct {
	From time.Time
	To   time.Time

	detail  []Row
	totals  *Totals
	skipped []Outcome
	items   int
}

// NewReport creates an empty report for the window [from, to).
func NewReport(from, to time.Time) *Report {
	return &Report{
		From:   from,
		To:     to,
		totals: NewTotals(),
	}
}

// AddVenue appends a venue's outcomes in the order given. Events are
// expected to already be sorted by start time.
func (r *Report) AddVenue(outcomes []Outcome) {
	var rows []Row
	for _, o := range outcomes {
		if o.Skipped() {
			r.skipped = append(r.skipped, o)
			continue
		}
		for i := range o.Items {
			item := o.Items[i]
			rows = append(rows, Row{Kind: RowDetail, Item: &item})
			r.totals.Add(item)
		}
	}
	if len(rows) == 0 {
		return
	}
	if len(r.detail) > 0 {
		r.detail = append(r.detail, Row{Kind: RowBlank})
	}
	r.detail = append(r.detail, rows...)
	r.items += len(rows)
}

// Totals returns the per-teacher totals accumulated so far.
func (r *Report) Totals() *Totals {
	return r.totals
}

// Skipped returns the events that produced no line items.
func (r *Report) Skipped() []Outcome {
	return r.skipped
}

// ItemCount returns the number of detail line items.
func (r *Report) ItemCount() int {
	return r.items
}

// Rows assembles the full table: header, detail rows, a blank separator,
// then one summary row per teacher sorted by name.
func (r *Report) Rows() []Row {
	rows := make([]Row, 0, len(r.detail)+r.totals.Len()+3)
	rows = append(rows, Row{Kind: RowHeader})
	rows = append(rows, r.detail...)
	rows = append(rows, Row{Kind: RowBlank}, Row{Kind: RowSummaryHeader})
	for _, total := range r.totals.Sorted() {
		t := total
		rows = append(rows, Row{Kind: RowSummary, Total: &t})
	}
	return rows
}

// FileName is the spreadsheet name for the report's date range.
func (r *Report) FileName() string {
	// To is exclusive; name the file after the last day covered.
	last := r.To.AddDate(0, 0, -1)
	return fmt.Sprintf("payment_report_%s_to_%s.xlsx", r.From.Format("2006-01-02"), last.Format("2006-01-02"))
}
