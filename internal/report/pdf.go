package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/samirrijal/geosampler/internal/core/domain"
)

// Meta describes the session a PDF report belongs to.
type Meta struct {
	SessionID     string
	SpacingMeters float64
	Density       float64
	GeneratedAt   time.Time
}

var pdfColumnWidths = []float64{20, 38, 38, 36, 36}

// ToPDF renders stats as a paginated A4 table with a short session summary.
func ToPDF(stats []domain.PointStatistic, meta Meta) ([]byte, error) {
	if len(stats) == 0 {
		return nil, fmt.Errorf("pdf export: %w", domain.ErrNoData)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, "Point statistics", "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(100, 100, 100)
	summary := fmt.Sprintf("Session %s | %d points | spacing %.0f m | %.2f points/ha",
		meta.SessionID, len(stats), meta.SpacingMeters, meta.Density)
	pdf.CellFormat(0, 6, summary, "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 6, "Generated "+meta.GeneratedAt.UTC().Format(time.RFC3339), "", 1, "R", false, 0, "")
	pdf.Ln(4)

	t := ToTable(stats)
	header := func() {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.SetFillColor(46, 125, 50)
		pdf.SetTextColor(255, 255, 255)
		for i, label := range t.Header {
			pdf.CellFormat(pdfColumnWidths[i], 8, label, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", 9)
		pdf.SetTextColor(0, 0, 0)
	}
	pdf.SetHeaderFunc(func() {
		if pdf.PageNo() > 1 {
			header()
		}
	})

	header()
	for i, row := range t.Rows {
		if i%2 == 1 {
			pdf.SetFillColor(240, 244, 240)
		} else {
			pdf.SetFillColor(255, 255, 255)
		}
		for j, val := range row {
			pdf.CellFormat(pdfColumnWidths[j], 7, val, "1", 0, "R", true, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
