package report

import (
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/samirrijal/geosampler/internal/core/domain"
)

const sheetName = "Point statistics"

// ToXLSX renders stats as a single-sheet workbook. Cells hold numbers with
// number formats matching the table precision, so the sheet displays the
// same text as the CSV.
func ToXLSX(stats []domain.PointStatistic) ([]byte, error) {
	if len(stats) == 0 {
		return nil, fmt.Errorf("xlsx export: %w", domain.ErrNoData)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}
	coordFmt := "0.000000"
	coordStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &coordFmt})
	if err != nil {
		return nil, fmt.Errorf("coordinate style: %w", err)
	}
	meanFmt := "0.0000"
	meanStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &meanFmt})
	if err != nil {
		return nil, fmt.Errorf("mean style: %w", err)
	}

	t := ToTable(stats)
	for i, col := range t.Header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetName, cell, col); err != nil {
			return nil, err
		}
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(t.Header), 1)
	if err := f.SetCellStyle(sheetName, "A1", lastHeader, headerStyle); err != nil {
		return nil, err
	}

	for r, row := range t.Rows {
		values := make([]interface{}, len(row))
		for c, v := range row {
			if c == 0 {
				values[c], _ = strconv.Atoi(v)
				continue
			}
			values[c], _ = strconv.ParseFloat(v, 64)
		}
		cell, _ := excelize.CoordinatesToCellName(1, r+2)
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", r+1, err)
		}
	}

	last := len(t.Rows) + 1
	if err := f.SetCellStyle(sheetName, "B2", fmt.Sprintf("C%d", last), coordStyle); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(sheetName, "D2", fmt.Sprintf("E%d", last), meanStyle); err != nil {
		return nil, err
	}

	f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
	f.SetColWidth(sheetName, "B", "E", 14)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
