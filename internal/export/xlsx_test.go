package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/theyoungmaker/schedule-bot/internal/model"
	"github.com/theyoungmaker/schedule-bot/internal/payroll"
)

func sampleReport() *payroll.Report {
	sgt := time.FixedZone("SGT", 8*3600)
	calc := payroll.NewCalculator(payroll.DefaultRateTable())
	report := payroll.NewReport(time.Date(2024, 5, 7, 0, 0, 0, 0, sgt), time.Date(2024, 5, 14, 0, 0, 0, 0, sgt))
	report.AddVenue(calc.EvaluateAll([]model.RawEvent{{
		ID:          "evt1",
		Venue:       "Stars of Kovan",
		Summary:     "Coding L1",
		Description: "Teacher: Jane Doe @janedoe",
		Start:       time.Date(2024, 5, 7, 9, 0, 0, 0, sgt),
		End:         time.Date(2024, 5, 7, 9, 50, 0, 0, sgt),
	}}))
	return report
}

func TestWriteXLSX(t *testing.T) {
	data, err := WriteXLSX(sampleReport().Rows())
	if err != nil {
		t.Fatalf("WriteXLSX() returned an error: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Failed to open generated workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	if err != nil {
		t.Fatalf("GetRows() returned an error: %v", err)
	}
	// header, detail, blank, summary header, summary
	if len(rows) != 5 {
		t.Fatalf("Expected 5 rows, got %d: %v", len(rows), rows)
	}
	if rows[0][0] != "Venue" || rows[0][11] != "Remarks" {
		t.Errorf("Unexpected header row %v", rows[0])
	}
	detail := rows[1]
	if detail[0] != "Stars of Kovan" || detail[1] != "2024-05-07" || detail[2] != "Tuesday" {
		t.Errorf("Unexpected detail row %v", detail)
	}
	if detail[6] != "0.83" || detail[10] != "16.67" {
		t.Errorf("Expected hours 0.83 and amount 16.67, got %s and %s", detail[6], detail[10])
	}
	if len(rows[2]) != 0 {
		t.Errorf("Expected an empty separator row, got %v", rows[2])
	}
	if rows[4][7] != "Jane Doe" || rows[4][8] != "@janedoe" || rows[4][10] != "16.67" {
		t.Errorf("Unexpected summary row %v", rows[4])
	}

	styleID, err := f.GetCellStyle(SheetName, "A1")
	if err != nil {
		t.Fatalf("GetCellStyle() returned an error: %v", err)
	}
	if styleID == 0 {
		t.Error("Expected header row to be styled")
	}
}
