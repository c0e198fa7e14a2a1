package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// XLSXExporter renders datasets into a single-sheet workbook.
type XLSXExporter struct{}

// NewXLSXExporter constructs an XLSX exporter.
func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{}
}

// Render writes a title row, a bold header row and one row per record.
func (e *XLSXExporter) Render(data Dataset, title string) ([]byte, error) {
	if err := data.validate(); err != nil {
		return nil, err
	}
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Timetable"
	idx, err := f.NewSheet(sheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("drop default sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}

	row := 1
	if title != "" {
		last := columnName(len(data.Headers))
		if err := f.SetCellValue(sheet, "A1", title); err != nil {
			return nil, err
		}
		if err := f.MergeCell(sheet, "A1", fmt.Sprintf("%s1", last)); err != nil {
			return nil, fmt.Errorf("merge title: %w", err)
		}
		row++
	}

	for i, header := range data.Headers {
		col := columnName(i + 1)
		if err := f.SetCellValue(sheet, fmt.Sprintf("%s%d", col, row), header); err != nil {
			return nil, err
		}
		if err := f.SetColWidth(sheet, col, col, 16); err != nil {
			return nil, err
		}
	}
	first := fmt.Sprintf("A%d", row)
	last := fmt.Sprintf("%s%d", columnName(len(data.Headers)), row)
	if err := f.SetCellStyle(sheet, first, last, headerStyle); err != nil {
		return nil, fmt.Errorf("style header: %w", err)
	}

	for _, record := range data.Rows {
		row++
		for i, value := range data.record(record) {
			cell := fmt.Sprintf("%s%d", columnName(i+1), row)
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return nil, err
			}
		}
	}

	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func columnName(n int) string {
	name, err := excelize.ColumnNumberToName(n)
	if err != nil {
		return "A"
	}
	return name
}
