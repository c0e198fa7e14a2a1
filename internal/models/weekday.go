package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"
)

// Weekday identifies a teaching day. Monday is zero.
type Weekday uint8

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

// AllWeekdays lists the days in calendar order.
var AllWeekdays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

var weekdayCodes = [...]string{"M", "T", "W", "Th", "F", "S", "Su"}
var weekdayNames = [...]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

var weekdayByName = map[string]Weekday{
	"monday": Monday, "mon": Monday,
	"tuesday": Tuesday, "tue": Tuesday, "tues": Tuesday,
	"wednesday": Wednesday, "wed": Wednesday,
	"thursday": Thursday, "thu": Thursday, "thur": Thursday, "thurs": Thursday,
	"friday": Friday, "fri": Friday,
	"saturday": Saturday, "sat": Saturday,
	"sunday": Sunday, "sun": Sunday,
}

// Code returns the short code used in day strings (M, T, W, Th, F, S, Su).
func (d Weekday) Code() string {
	if int(d) >= len(weekdayCodes) {
		return "?"
	}
	return weekdayCodes[d]
}

// Name returns the full English day name.
func (d Weekday) Name() string {
	if int(d) >= len(weekdayNames) {
		return "Unknown"
	}
	return weekdayNames[d]
}

func (d Weekday) String() string {
	return d.Name()
}

// TimeWeekday converts to the standard library weekday.
func (d Weekday) TimeWeekday() time.Weekday {
	return time.Weekday((int(d) + 1) % 7)
}

// DaySet is a set of weekdays stored as a bitmask.
type DaySet uint8

// NewDaySet builds a set from the given days.
func NewDaySet(days ...Weekday) DaySet {
	var s DaySet
	for _, d := range days {
		s = s.Add(d)
	}
	return s
}

// ParseDaySet reads compact codes ("MWF", "TTh", "SSu"), separated codes
// ("M,W,F"), or day names ("Tuesday", "mon thu"). "T" and "Th" are distinct.
func ParseDaySet(raw string) (DaySet, error) {
	var set DaySet
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == '/' || r == ';' || r == '|' || unicode.IsSpace(r)
	})
	for _, field := range fields {
		if day, ok := weekdayByName[strings.ToLower(field)]; ok {
			set = set.Add(day)
			continue
		}
		parsed, err := parseCompactCodes(field)
		if err != nil {
			return 0, fmt.Errorf("parse days %q: %w", raw, err)
		}
		set |= parsed
	}
	return set, nil
}

// MustParseDaySet is ParseDaySet for literals known to be valid.
func MustParseDaySet(raw string) DaySet {
	set, err := ParseDaySet(raw)
	if err != nil {
		panic(err)
	}
	return set
}

func parseCompactCodes(token string) (DaySet, error) {
	var set DaySet
	runes := []rune(token)
	for i := 0; i < len(runes); i++ {
		next := rune(0)
		if i+1 < len(runes) {
			next = unicode.ToLower(runes[i+1])
		}
		switch unicode.ToUpper(runes[i]) {
		case 'M':
			set = set.Add(Monday)
		case 'T':
			if next == 'h' {
				set = set.Add(Thursday)
				i++
			} else {
				set = set.Add(Tuesday)
			}
		case 'W':
			set = set.Add(Wednesday)
		case 'F':
			set = set.Add(Friday)
		case 'S':
			if next == 'u' {
				set = set.Add(Sunday)
				i++
			} else {
				set = set.Add(Saturday)
			}
		default:
			return 0, fmt.Errorf("unknown day code %q", string(runes[i]))
		}
	}
	return set, nil
}

// Add returns the set with d included.
func (s DaySet) Add(d Weekday) DaySet {
	if d > Sunday {
		return s
	}
	return s | 1<<d
}

// Contains reports whether d is in the set.
func (s DaySet) Contains(d Weekday) bool {
	return d <= Sunday && s&(1<<d) != 0
}

// ContainsAll reports whether every day of other is in s.
func (s DaySet) ContainsAll(other DaySet) bool {
	return other&^s == 0
}

// Intersects reports whether the sets share at least one day.
func (s DaySet) Intersects(other DaySet) bool {
	return s&other != 0
}

// Intersection returns the shared days.
func (s DaySet) Intersection(other DaySet) DaySet {
	return s & other
}

// Difference returns the days of s missing from other.
func (s DaySet) Difference(other DaySet) DaySet {
	return s &^ other
}

// IsEmpty reports whether the set has no days.
func (s DaySet) IsEmpty() bool {
	return s&0x7f == 0
}

// Len returns the number of days in the set.
func (s DaySet) Len() int {
	n := 0
	for _, d := range AllWeekdays {
		if s.Contains(d) {
			n++
		}
	}
	return n
}

// Days returns the members in calendar order.
func (s DaySet) Days() []Weekday {
	days := make([]Weekday, 0, 7)
	for _, d := range AllWeekdays {
		if s.Contains(d) {
			days = append(days, d)
		}
	}
	return days
}

// Names returns full day names in calendar order.
func (s DaySet) Names() []string {
	days := s.Days()
	names := make([]string, len(days))
	for i, d := range days {
		names[i] = d.Name()
	}
	return names
}

// String renders the canonical compact form, e.g. "MWF" or "TTh".
func (s DaySet) String() string {
	var b strings.Builder
	for _, d := range s.Days() {
		b.WriteString(d.Code())
	}
	return b.String()
}

// MarshalJSON encodes the set as its compact code string.
func (s DaySet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts a code string or an array of codes/names.
func (s *DaySet) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err == nil {
		parsed, err := ParseDaySet(raw)
		if err != nil {
			return err
		}
		*s = parsed
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("days must be a string or an array of strings")
	}
	parsed, err := ParseDaySet(strings.Join(list, ","))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Value stores the set as its compact code string.
func (s DaySet) Value() (driver.Value, error) {
	return s.String(), nil
}

// Scan reads a compact code string column.
func (s *DaySet) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*s = 0
		return nil
	case string:
		parsed, err := ParseDaySet(v)
		if err != nil {
			return err
		}
		*s = parsed
		return nil
	case []byte:
		parsed, err := ParseDaySet(string(v))
		if err != nil {
			return err
		}
		*s = parsed
		return nil
	default:
		return fmt.Errorf("cannot scan %T into DaySet", src)
	}
}
