package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/mnuel1/spacio-backend/internal/dto"
	"github.com/mnuel1/spacio-backend/internal/models"
	appErrors "github.com/mnuel1/spacio-backend/pkg/errors"
)

type stubTimetable struct {
	rows   []models.MeetingDetail
	filter models.MeetingFilter
}

func (s *stubTimetable) ListDetailed(_ context.Context, filter models.MeetingFilter) ([]models.MeetingDetail, error) {
	s.filter = filter
	return append([]models.MeetingDetail(nil), s.rows...), nil
}

func detail(id, section, subject, days, start, end string) models.MeetingDetail {
	m := committed(id, "t1", "s-"+subject, "sec-"+section, "r1", days, start, end)
	m.Duration = "03:00"
	m.LoadUnits = 3
	return models.MeetingDetail{
		Meeting:     m,
		SubjectCode: subject,
		SubjectName: subject + " Fundamentals",
		TeacherName: "Ana Cruz",
		SectionName: section,
		RoomName:    "Room 101",
		RoomType:    models.RoomTypeLecture,
	}
}

func newExportFixture(t *testing.T, period *models.AcademicPeriod) (*ExportService, *stubTimetable) {
	t.Helper()
	timetable := &stubTimetable{rows: []models.MeetingDetail{
		detail("m2", "BSIT-1B", "CS102", "TTh", "13:00", "14:30"),
		detail("m1", "BSIT-1A", "CS101", "MW", "08:00", "09:30"),
	}}
	svc := NewExportService(stubPeriods{period: period}, timetable, ExportRenderers{}, nil, nil)
	svc.now = func() time.Time { return time.Date(2024, 8, 14, 10, 0, 0, 0, time.UTC) }
	return svc, timetable
}

func TestExportServiceCSVIsDefault(t *testing.T) {
	svc, timetable := newExportFixture(t, activePeriod())

	file, err := svc.Export(context.Background(), dto.ExportQuery{TeacherID: "t1"})
	require.NoError(t, err)
	assert.Equal(t, "text/csv", file.ContentType)
	assert.Equal(t, "timetable_1st_2024-2025.csv", file.Filename)
	assert.Equal(t, models.MeetingFilter{PeriodID: "p1", TeacherID: "t1"}, timetable.filter)

	records, err := csv.NewReader(bytes.NewReader(file.Content)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, timetableHeaders, records[0])
	assert.Equal(t, []string{"BSIT-1A", "MW", "08:00", "09:30", "03:00", "CS101", "CS101 Fundamentals", "Ana Cruz", "Room 101", "Lec", "3"}, records[1])
	assert.Equal(t, "BSIT-1B", records[2][0])
}

func TestExportServicePDF(t *testing.T) {
	svc, _ := newExportFixture(t, activePeriod())

	file, err := svc.Export(context.Background(), dto.ExportQuery{Format: "pdf"})
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, bytes.HasPrefix(file.Content, []byte("%PDF")))
}

func TestExportServiceXLSX(t *testing.T) {
	svc, _ := newExportFixture(t, activePeriod())

	file, err := svc.Export(context.Background(), dto.ExportQuery{Format: "xlsx"})
	require.NoError(t, err)
	assert.Equal(t, "timetable_1st_2024-2025.xlsx", file.Filename)

	book, err := excelize.OpenReader(bytes.NewReader(file.Content))
	require.NoError(t, err)
	defer book.Close()
	rows, err := book.GetRows("Timetable")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "Timetable 1st 2024-2025", rows[0][0])
	assert.Equal(t, "Section", rows[1][0])
	assert.Equal(t, "CS101", rows[2][5])
}

func TestExportServiceICSUsesPeriodDates(t *testing.T) {
	start := time.Date(2024, 8, 12, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 12, 20, 0, 0, 0, 0, time.UTC)
	period := activePeriod()
	period.StartDate = &start
	period.EndDate = &end
	svc, _ := newExportFixture(t, period)

	file, err := svc.Export(context.Background(), dto.ExportQuery{Format: "ics"})
	require.NoError(t, err)
	assert.Equal(t, "text/calendar", file.ContentType)

	body := strings.ReplaceAll(string(file.Content), "\r\n", "\n")
	assert.Contains(t, body, "BEGIN:VCALENDAR")
	assert.Equal(t, 2, strings.Count(body, "BEGIN:VEVENT"))
	assert.Contains(t, body, "UID:m1@spacio")
	assert.Contains(t, body, "DTSTART:20240812T080000")
	assert.Contains(t, body, "DTSTART:20240813T130000")
	assert.Contains(t, body, "RRULE:FREQ=WEEKLY;BYDAY=MO,WE;UNTIL=20241220T235959Z")
	assert.Contains(t, body, "RRULE:FREQ=WEEKLY;BYDAY=TU,TH;UNTIL=20241220T235959Z")
}

func TestExportServiceICSWithoutPeriodDatesAnchorsCurrentWeek(t *testing.T) {
	svc, _ := newExportFixture(t, activePeriod())

	file, err := svc.Export(context.Background(), dto.ExportQuery{Format: "ics"})
	require.NoError(t, err)
	body := string(file.Content)
	assert.Contains(t, body, "DTSTART:20240812T080000")
	assert.Contains(t, body, "RRULE:FREQ=WEEKLY;BYDAY=MO,WE")
	assert.NotContains(t, body, "UNTIL=")
}

func TestExportServiceErrors(t *testing.T) {
	svc, _ := newExportFixture(t, nil)
	_, err := svc.Export(context.Background(), dto.ExportQuery{})
	assertAppError(t, err, appErrors.ErrPreconditionFailed.Code)

	svc, _ = newExportFixture(t, activePeriod())
	_, err = svc.Export(context.Background(), dto.ExportQuery{Format: "docx"})
	assertAppError(t, err, appErrors.ErrValidation.Code)
}
