package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleDataset() Dataset {
	return Dataset{
		Headers: []string{"Section", "Days", "Subject"},
		Rows: []map[string]string{
			{"Section": "BSIT-1A", "Days": "MW", "Subject": "CS101"},
			{"Section": "BSIT-1B", "Days": "TTh"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)
	assert.Equal(t, "Section,Days,Subject\nBSIT-1A,MW,CS101\nBSIT-1B,TTh,\n", string(out))

	_, err = NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFExporterPicksOrientation(t *testing.T) {
	out, err := NewPDFExporter().Render(sampleDataset(), "Timetable")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))

	wide := Dataset{Headers: []string{"a", "b", "c", "d", "e", "f", "g"}}
	out, err = NewPDFExporter().Render(wide, "")
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}

func TestXLSXExporterRender(t *testing.T) {
	out, err := NewXLSXExporter().Render(sampleDataset(), "Timetable 1st 2024-2025")
	require.NoError(t, err)

	book, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer book.Close()
	assert.Equal(t, []string{"Timetable"}, book.GetSheetList())

	rows, err := book.GetRows("Timetable")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"Section", "Days", "Subject"}, rows[1])
	assert.Equal(t, []string{"BSIT-1A", "MW", "CS101"}, rows[2])
	assert.Equal(t, []string{"BSIT-1B", "TTh"}, rows[3][:2])
}

func TestXLSXExporterWithoutTitle(t *testing.T) {
	out, err := NewXLSXExporter().Render(sampleDataset(), "")
	require.NoError(t, err)
	book, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer book.Close()
	rows, err := book.GetRows("Timetable")
	require.NoError(t, err)
	assert.Equal(t, "Section", rows[0][0])
}

func TestICSExporterRender(t *testing.T) {
	until := time.Date(2024, 12, 20, 0, 0, 0, 0, time.UTC)
	start := time.Date(2024, 8, 12, 8, 0, 0, 0, time.UTC)
	events := []CalendarEvent{{
		UID:      "m1@spacio",
		Summary:  "CS101 BSIT-1A",
		Location: "Room 101",
		Start:    start,
		End:      start.Add(90 * time.Minute),
		Days:     []time.Weekday{time.Monday, time.Wednesday},
		Until:    &until,
	}}

	out, err := NewICSExporter().Render("Timetable", events, start)
	require.NoError(t, err)
	body := strings.ReplaceAll(string(out), "\r\n", "\n")
	assert.Contains(t, body, "PRODID:-//spacio//timetable//EN")
	assert.Contains(t, body, "DTSTART:20240812T080000")
	assert.Contains(t, body, "DTEND:20240812T093000")
	assert.Contains(t, body, "RRULE:FREQ=WEEKLY;BYDAY=MO,WE;UNTIL=20241220T235959Z")
	assert.Contains(t, body, "LOCATION:Room 101")
}

func TestICSExporterRejectsBadEvents(t *testing.T) {
	start := time.Date(2024, 8, 12, 8, 0, 0, 0, time.UTC)
	_, err := NewICSExporter().Render("", []CalendarEvent{{Summary: "x", Start: start, End: start.Add(time.Hour)}}, start)
	assert.Error(t, err)

	_, err = NewICSExporter().Render("", []CalendarEvent{{UID: "u", Start: start, End: start}}, start)
	assert.Error(t, err)
}

func TestCSVExporterNeutralisesFormulas(t *testing.T) {
	out, err := NewCSVExporter().Render(Dataset{
		Headers: []string{"Teacher", "Note"},
		Rows:    []map[string]string{{"Teacher": "=HYPERLINK(\"x\")", "Note": "-"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Teacher,Note\n\"'=HYPERLINK(\"\"x\"\")\",'-\n", string(out))
}

func TestDatasetRejectsBadHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{Headers: []string{"Room", "Room"}})
	assert.ErrorContains(t, err, "duplicate header")

	_, err = NewXLSXExporter().Render(Dataset{Headers: []string{"Room", " "}}, "")
	assert.ErrorContains(t, err, "blank header")
}

func TestColumnWidthsFillPage(t *testing.T) {
	widths := columnWidths(Dataset{
		Headers: []string{"Day", "Description"},
		Rows:    []map[string]string{{"Day": "M", "Description": "Data Structures and Algorithms"}},
	}, 190)
	require.Len(t, widths, 2)
	assert.InDelta(t, 190, widths[0]+widths[1], 0.001)
	assert.Greater(t, widths[1], widths[0])
	assert.GreaterOrEqual(t, widths[0], 47.5)
}
