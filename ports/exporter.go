package ports

import (
	"io"

	"studykit/domain/payment"
	"studykit/domain/timeline"
)

// ReportExporter writes reports as spreadsheets
type ReportExporter interface {
	ExportPaymentReport(w io.Writer, report *payment.Report) error
	ExportTimeline(w io.Writer, points []timeline.Point) error
}
