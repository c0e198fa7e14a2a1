package export

import (
	"fmt"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
)

// floatingLayout renders wall-clock times without a zone.
const floatingLayout = "20060102T150405"

var rruleDays = map[time.Weekday]string{
	time.Monday:    "MO",
	time.Tuesday:   "TU",
	time.Wednesday: "WE",
	time.Thursday:  "TH",
	time.Friday:    "FR",
	time.Saturday:  "SA",
	time.Sunday:    "SU",
}

// CalendarEvent is a weekly recurring class.
type CalendarEvent struct {
	UID         string
	Summary     string
	Location    string
	Description string
	// Start and End are the first occurrence, read as wall-clock times.
	Start time.Time
	End   time.Time
	Days  []time.Weekday
	Until *time.Time
}

// ICSExporter renders events into an iCalendar feed.
type ICSExporter struct {
	productID string
}

// NewICSExporter constructs an ICS exporter.
func NewICSExporter() *ICSExporter {
	return &ICSExporter{productID: "-//spacio//timetable//EN"}
}

// Render serializes events with weekly RRULEs.
func (e *ICSExporter) Render(name string, events []CalendarEvent, stamp time.Time) ([]byte, error) {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(e.productID)
	if name != "" {
		cal.SetXWRCalName(name)
	}

	for _, ev := range events {
		if ev.UID == "" {
			return nil, fmt.Errorf("event %q has no uid", ev.Summary)
		}
		if !ev.End.After(ev.Start) {
			return nil, fmt.Errorf("event %s ends before it starts", ev.UID)
		}
		vevent := cal.AddEvent(ev.UID)
		vevent.SetDtStampTime(stamp)
		vevent.SetProperty(ics.ComponentPropertyDtStart, ev.Start.Format(floatingLayout))
		vevent.SetProperty(ics.ComponentPropertyDtEnd, ev.End.Format(floatingLayout))
		vevent.SetSummary(ev.Summary)
		if ev.Location != "" {
			vevent.SetLocation(ev.Location)
		}
		if ev.Description != "" {
			vevent.SetDescription(ev.Description)
		}
		if rule := weeklyRule(ev.Days, ev.Until); rule != "" {
			vevent.SetProperty(ics.ComponentPropertyRrule, rule)
		}
	}
	return []byte(cal.Serialize()), nil
}

func weeklyRule(days []time.Weekday, until *time.Time) string {
	if len(days) == 0 {
		return ""
	}
	codes := make([]string, 0, len(days))
	for _, d := range days {
		codes = append(codes, rruleDays[d])
	}
	rule := "FREQ=WEEKLY;BYDAY=" + strings.Join(codes, ",")
	if until != nil {
		end := time.Date(until.Year(), until.Month(), until.Day(), 23, 59, 59, 0, time.UTC)
		rule += ";UNTIL=" + end.Format(floatingLayout) + "Z"
	}
	return rule
}
