package report

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/samirrijal/geosampler/internal/core/domain"
)

// ToFlatFile renders stats as comma-separated values with a header line.
func ToFlatFile(stats []domain.PointStatistic) ([]byte, error) {
	if len(stats) == 0 {
		return nil, fmt.Errorf("csv export: %w", domain.ErrNoData)
	}

	t := ToTable(stats)
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(t.Header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	if err := w.WriteAll(t.Rows); err != nil {
		return nil, fmt.Errorf("failed to write rows: %w", err)
	}

	return buf.Bytes(), nil
}
