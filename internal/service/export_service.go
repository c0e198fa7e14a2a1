package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/mnuel1/spacio-backend/internal/dto"
	"github.com/mnuel1/spacio-backend/internal/models"
	appErrors "github.com/mnuel1/spacio-backend/pkg/errors"
	"github.com/mnuel1/spacio-backend/pkg/export"
)

// Export formats.
const (
	ExportFormatCSV  = "csv"
	ExportFormatPDF  = "pdf"
	ExportFormatXLSX = "xlsx"
	ExportFormatICS  = "ics"
)

var exportContentTypes = map[string]string{
	ExportFormatCSV:  "text/csv",
	ExportFormatPDF:  "application/pdf",
	ExportFormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	ExportFormatICS:  "text/calendar",
}

var timetableHeaders = []string{"Section", "Days", "Start", "End", "Duration", "Subject", "Description", "Teacher", "Room", "Type", "Units"}

type timetableReader interface {
	ListDetailed(ctx context.Context, filter models.MeetingFilter) ([]models.MeetingDetail, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type tableRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

type calendarRenderer interface {
	Render(name string, events []export.CalendarEvent, stamp time.Time) ([]byte, error)
}

// ExportRenderers groups the format renderers. Nil members use the defaults.
type ExportRenderers struct {
	CSV  csvRenderer
	PDF  tableRenderer
	XLSX tableRenderer
	ICS  calendarRenderer
}

// ExportService renders the active period timetable in downloadable formats.
type ExportService struct {
	periods   activePeriodReader
	meetings  timetableReader
	renderers ExportRenderers
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(periods activePeriodReader, meetings timetableReader, renderers ExportRenderers, validate *validator.Validate, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if renderers.CSV == nil {
		renderers.CSV = export.NewCSVExporter()
	}
	if renderers.PDF == nil {
		renderers.PDF = export.NewPDFExporter()
	}
	if renderers.XLSX == nil {
		renderers.XLSX = export.NewXLSXExporter()
	}
	if renderers.ICS == nil {
		renderers.ICS = export.NewICSExporter()
	}
	return &ExportService{
		periods:   periods,
		meetings:  meetings,
		renderers: renderers,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// Export renders the filtered timetable of the active period. CSV is the default format.
func (s *ExportService) Export(ctx context.Context, query dto.ExportQuery) (*dto.ExportFile, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export query")
	}
	format := strings.ToLower(query.Format)
	if format == "" {
		format = ExportFormatCSV
	}

	period, err := s.periods.FindActive(ctx)
	if err != nil {
		return nil, notFoundAs(err, appErrors.ErrPreconditionFailed, "no active academic period", "failed to load active period")
	}
	rows, err := s.meetings.ListDetailed(ctx, models.MeetingFilter{
		PeriodID:  period.ID,
		TeacherID: query.TeacherID,
		SectionID: query.SectionID,
		RoomID:    query.RoomID,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}
	sortTimetable(rows)

	title := fmt.Sprintf("Timetable %s", period.Label())
	var content []byte
	switch format {
	case ExportFormatCSV:
		content, err = s.renderers.CSV.Render(timetableDataset(rows))
	case ExportFormatPDF:
		content, err = s.renderers.PDF.Render(timetableDataset(rows), title)
	case ExportFormatXLSX:
		content, err = s.renderers.XLSX.Render(timetableDataset(rows), title)
	case ExportFormatICS:
		content, err = s.renderers.ICS.Render(title, s.calendarEvents(*period, rows), s.now().UTC())
	}
	if err != nil {
		s.logger.Error("timetable export failed", zap.String("format", format), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	s.logger.Info("timetable exported",
		zap.String("format", format),
		zap.String("period_id", period.ID),
		zap.Int("rows", len(rows)),
	)
	return &dto.ExportFile{
		Filename:    fmt.Sprintf("timetable_%s.%s", sanitizeFilename(period.Label()), format),
		ContentType: exportContentTypes[format],
		Content:     content,
	}, nil
}

func sortTimetable(rows []models.MeetingDetail) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.SectionName != b.SectionName {
			return a.SectionName < b.SectionName
		}
		if a.Days != b.Days {
			return firstDay(a.Days) < firstDay(b.Days)
		}
		if a.StartTime != b.StartTime {
			return a.StartTime < b.StartTime
		}
		return a.ID < b.ID
	})
}

func firstDay(days models.DaySet) int {
	for _, d := range days.Days() {
		return int(d)
	}
	return len(models.AllWeekdays)
}

func timetableDataset(rows []models.MeetingDetail) export.Dataset {
	records := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		records = append(records, map[string]string{
			"Section":     row.SectionName,
			"Days":        row.Days.String(),
			"Start":       row.StartTime,
			"End":         row.EndTime,
			"Duration":    row.Duration,
			"Subject":     row.SubjectCode,
			"Description": row.SubjectName,
			"Teacher":     row.TeacherName,
			"Room":        row.RoomName,
			"Type":        string(row.RoomType),
			"Units":       fmt.Sprintf("%d", row.LoadUnits),
		})
	}
	return export.Dataset{Headers: timetableHeaders, Rows: records}
}

// calendarEvents anchors each meeting on its first day on or after the period start,
// or the current week when the period has no start date.
func (s *ExportService) calendarEvents(period models.AcademicPeriod, rows []models.MeetingDetail) []export.CalendarEvent {
	anchor := weekStart(s.now().UTC())
	if period.StartDate != nil {
		anchor = dateOnly(*period.StartDate)
	}

	events := make([]export.CalendarEvent, 0, len(rows))
	for _, row := range rows {
		span, err := row.TimeRange()
		if err != nil || row.Days.IsEmpty() {
			s.logger.Warn("skipping unreadable meeting in calendar export", zap.String("meeting_id", row.ID))
			continue
		}
		weekdays := make([]time.Weekday, 0, row.Days.Len())
		for _, d := range row.Days.Days() {
			weekdays = append(weekdays, d.TimeWeekday())
		}
		day := anchor
		for !row.Days.Contains(fromTimeWeekday(day.Weekday())) {
			day = day.AddDate(0, 0, 1)
		}
		events = append(events, export.CalendarEvent{
			UID:         row.ID + "@spacio",
			Summary:     fmt.Sprintf("%s %s", row.SubjectCode, row.SectionName),
			Location:    row.RoomName,
			Description: fmt.Sprintf("%s with %s", row.SubjectName, row.TeacherName),
			Start:       day.Add(time.Duration(span.Start) * time.Minute),
			End:         day.Add(time.Duration(span.End) * time.Minute),
			Days:        weekdays,
			Until:       period.EndDate,
		})
	}
	return events
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func weekStart(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return dateOnly(t).AddDate(0, 0, -offset)
}

func fromTimeWeekday(d time.Weekday) models.Weekday {
	return models.Weekday((int(d) + 6) % 7)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
