package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// PDFExporter renders datasets as a paginated table.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// landscapeAbove switches to landscape pages for wide tables.
const landscapeAbove = 6

const (
	headerHeight = 8.0
	rowHeight    = 7.0
	bottomMargin = 15.0
)

// Render creates a PDF with an optional title. The header row repeats on every page.
func (e *PDFExporter) Render(data Dataset, title string) ([]byte, error) {
	if err := data.validate(); err != nil {
		return nil, err
	}
	orientation, width := "P", 190.0
	if len(data.Headers) > landscapeAbove {
		orientation, width = "L", 277.0
	}
	pdf := gofpdf.New(orientation, "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.SetAutoPageBreak(false, bottomMargin)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Arial", "I", 7)
		pdf.CellFormat(0, 6, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "R", false, 0, "")
	})
	pdf.AddPage()

	if title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, strings.ToUpper(title), "", 1, "C", false, 0, "")
		pdf.Ln(5)
	}

	widths := columnWidths(data, width)
	writeHeader := func() {
		pdf.SetFont("Arial", "B", 9)
		pdf.SetFillColor(220, 230, 241)
		for i, header := range data.Headers {
			pdf.CellFormat(widths[i], headerHeight, header, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 8)
	}
	writeHeader()

	_, pageHeight := pdf.GetPageSize()
	pdf.SetFillColor(245, 245, 245)
	for n, row := range data.Rows {
		if pdf.GetY()+rowHeight > pageHeight-bottomMargin {
			pdf.AddPage()
			writeHeader()
			pdf.SetFillColor(245, 245, 245)
		}
		for i, value := range data.record(row) {
			pdf.CellFormat(widths[i], rowHeight, value, "1", 0, "", n%2 == 1, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// columnWidths shares the page width by the longest value in each column,
// with every column getting at least half of an even share.
func columnWidths(data Dataset, total float64) []float64 {
	weights := make([]float64, len(data.Headers))
	for i, header := range data.Headers {
		weights[i] = float64(len(header))
	}
	for _, row := range data.Rows {
		for i, value := range data.record(row) {
			weights[i] = max(weights[i], float64(len(value)))
		}
	}

	floor := total / float64(len(weights)) / 2
	spare := total - floor*float64(len(weights))
	var sum float64
	for _, w := range weights {
		sum += w
	}
	widths := make([]float64, len(weights))
	for i, w := range weights {
		widths[i] = floor
		if sum > 0 {
			widths[i] += spare * w / sum
		} else {
			widths[i] += spare / float64(len(weights))
		}
	}
	return widths
}
