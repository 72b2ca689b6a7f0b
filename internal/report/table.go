// Package report renders point statistics as a table and as downloadable files.
// Every output format is built from ToTable, so what the user sees on screen
// and what they export carry the same values at the same precision.
package report

import (
	"fmt"
	"strconv"
	"time"

	"github.com/samirrijal/geosampler/internal/core/domain"
)

// Columns is the fixed column order of every rendering.
var Columns = []string{"id", "lat", "lng", "ndvi_mean", "evi_mean"}

const (
	coordDecimals = 6
	meanDecimals  = 4
)

// Table is a header row plus formatted data rows.
type Table struct {
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
}

// ToTable formats stats in the fixed column order.
func ToTable(stats []domain.PointStatistic) Table {
	t := Table{
		Header: append([]string(nil), Columns...),
		Rows:   make([][]string, 0, len(stats)),
	}
	for _, st := range stats {
		t.Rows = append(t.Rows, formatRow(st))
	}
	return t
}

func formatRow(st domain.PointStatistic) []string {
	return []string{
		strconv.Itoa(st.ID),
		strconv.FormatFloat(st.Lat, 'f', coordDecimals, 64),
		strconv.FormatFloat(st.Lng, 'f', coordDecimals, 64),
		strconv.FormatFloat(st.NDVIMean, 'f', meanDecimals, 64),
		strconv.FormatFloat(st.EVIMean, 'f', meanDecimals, 64),
	}
}

// Format is an export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
)

// ParseFormat maps a query value onto a Format; empty means CSV.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	case FormatPDF:
		return FormatPDF, nil
	}
	return "", fmt.Errorf("unknown export format %q", s)
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	default:
		return "text/csv; charset=utf-8"
	}
}

// Filename returns the download name for an export produced on day.
func (f Format) Filename(day time.Time) string {
	return fmt.Sprintf("point_stats_%s.%s", day.UTC().Format("2006-01-02"), f)
}
