// Package export writes payment reports to spreadsheets and persists them.
package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/theyoungmaker/schedule-bot/internal/payroll"
)

// SheetName is the worksheet holding the report.
const SheetName = "Payments"

// ContentType is the MIME type of the generated workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// WriteXLSX renders report rows into an xlsx workbook. Header rows are bold
// and blank rows are left empty.
func WriteXLSX(rows []payroll.Row) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for i, row := range rows {
		values := row.Values()
		if values == nil {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
		if row.Kind == payroll.RowHeader || row.Kind == payroll.RowSummaryHeader {
			if err := f.SetRowStyle(SheetName, i+1, i+1, bold); err != nil {
				return nil, fmt.Errorf("failed to style row %d: %w", i+1, err)
			}
		}
	}

	last, _ := excelize.ColumnNumberToName(len(payroll.Columns))
	if err := f.SetColWidth(SheetName, "A", last, 16); err != nil {
		return nil, fmt.Errorf("failed to set column width: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
