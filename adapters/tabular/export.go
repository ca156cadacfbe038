package tabular

import (
	"fmt"
	"io"
	"strings"

	"studykit/domain/payment"
	"studykit/domain/timeline"

	"github.com/xuri/excelize/v2"
)

// XLSXExporter writes reports as workbooks.
type XLSXExporter struct{}

// NewXLSXExporter creates an exporter.
func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{}
}

// ExportPaymentReport writes a Compensation sheet followed by one sheet of
// daily counts per schema.
func (e *XLSXExporter) ExportPaymentReport(w io.Writer, report *payment.Report) error {
	f := excelize.NewFile()
	defer f.Close()

	const first = "Compensation"
	if err := f.SetSheetName("Sheet1", first); err != nil {
		return err
	}

	rows := [][]interface{}{
		{"Participant", report.Participant},
		{"Start", report.Start.String()},
		{"Timezone", report.Timezone},
		{},
		{"Rate ID", "Rate reason", "Rate value", "Auto count", "Manual add", "Subtotal"},
	}
	for _, item := range report.Compensation.Items {
		rows = append(rows, []interface{}{
			item.RateID, item.Reason, item.Amount.Dollars(), item.AutoCount, item.ManualCount, item.Subtotal.Dollars(),
		})
	}
	rows = append(rows,
		[]interface{}{},
		[]interface{}{"Auto total", report.Compensation.AutoTotal.Dollars()},
		[]interface{}{"Manual total", report.Compensation.ManualTotal.Dollars()},
		[]interface{}{"Grand total", report.Compensation.GrandTotal.Dollars()},
	)
	for _, warning := range report.Warnings {
		rows = append(rows, []interface{}{"Warning", warning})
	}
	if err := writeRows(f, first, rows); err != nil {
		return err
	}

	used := map[string]bool{first: true}
	for _, sr := range report.Schemas {
		sheet := sheetName(sr.Schema.Name, used)
		if _, err := f.NewSheet(sheet); err != nil {
			return err
		}
		rows := [][]interface{}{
			{"Schema", sr.Schema.Name},
			{"Period", fmt.Sprintf("%s to %s", sr.Start, sr.End)},
			{"Activity", sr.Reason},
			{"Completed", sr.Stats.Completed},
			{"Possible", sr.Stats.Possible},
			{"Percent complete", sr.PercentComplete},
			{"Bonus threshold", sr.Schema.BonusThreshold},
			{"Bonus days", sr.BonusDays},
			{},
			{"Date", "Count"},
		}
		for _, c := range sr.Counts {
			rows = append(rows, []interface{}{c.Date.String(), c.Count})
		}
		if err := writeRows(f, sheet, rows); err != nil {
			return err
		}
	}
	return f.Write(w)
}

// ExportTimeline writes day, tag and count rows.
func (e *XLSXExporter) ExportTimeline(w io.Writer, points []timeline.Point) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Timeline"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}
	rows := [][]interface{}{{"Day", "Tag", "Sessions", "Color"}}
	for _, p := range points {
		rows = append(rows, []interface{}{p.Day.String(), p.Tag, p.Count, p.Color})
	}
	if err := writeRows(f, sheet, rows); err != nil {
		return err
	}
	return f.Write(w)
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for r, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, r+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

// sheetName makes a unique sheet name within the 31 character limit and
// without the characters workbooks reject.
func sheetName(name string, used map[string]bool) string {
	clean := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`:\/?*[]`, r) {
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	if clean == "" {
		clean = "Schema"
	}
	if len([]rune(clean)) > 28 {
		clean = string([]rune(clean)[:28])
	}
	candidate := clean
	for i := 2; used[candidate]; i++ {
		candidate = fmt.Sprintf("%s %d", clean, i)
	}
	used[candidate] = true
	return candidate
}
