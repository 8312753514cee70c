package sheets

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
	"gradebook-server-go/models"
)

const summarySheet = "Summary"

var summaryHeader = []interface{}{"Student", "Courses", "GPA"}

// WriteSummary renders the summary table as an xlsx workbook
func WriteSummary(rows []models.SummaryRow) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, fmt.Errorf("failed to name summary sheet: %w", err)
	}
	if err := f.SetSheetRow(summarySheet, "A1", &summaryHeader); err != nil {
		return nil, fmt.Errorf("failed to write summary header: %w", err)
	}
	for i, r := range rows {
		axis, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		values := []interface{}{r.Name, r.Courses, r.GPA}
		if err := f.SetSheetRow(summarySheet, axis, &values); err != nil {
			return nil, fmt.Errorf("failed to write summary row %d: %w", i+2, err)
		}
	}

	if len(rows) > 0 {
		style, err := f.NewStyle(&excelize.Style{NumFmt: 2}) // 0.00
		if err != nil {
			return nil, fmt.Errorf("failed to create GPA style: %w", err)
		}
		if err := f.SetCellStyle(summarySheet, "C2", fmt.Sprintf("C%d", len(rows)+1), style); err != nil {
			return nil, fmt.Errorf("failed to style GPA column: %w", err)
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
