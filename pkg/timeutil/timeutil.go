// Package timeutil converts wall-clock strings to minute offsets and compares
// half-open time ranges.
package timeutil

import (
	"fmt"
	"strconv"
	"strings"
)

// MinutesPerDay is the exclusive upper bound of a day in minutes.
const MinutesPerDay = 24 * 60

// FormatError is returned when a clock string cannot be parsed.
type FormatError struct {
	Input  string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid time %q: %s", e.Input, e.Reason)
}

// InvalidRangeError is returned when a range ends at or before it starts.
type InvalidRangeError struct {
	Start int
	End   int
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid time range %s-%s: end must be after start", ToHHMM(e.Start), ToHHMM(e.End))
}

// ToMinutes parses H:MM or H:MM:SS into minutes since midnight. Seconds are
// accepted but truncated. 24:00 is accepted as the end of the day.
func ToMinutes(hhmm string) (int, error) {
	raw := strings.TrimSpace(hhmm)
	parts := strings.Split(raw, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, &FormatError{Input: hhmm, Reason: "expected H:MM[:SS]"}
	}

	hour, err := parseField(parts[0], 1, 2)
	if err != nil {
		return 0, &FormatError{Input: hhmm, Reason: "hour " + err.Error()}
	}
	minute, err := parseField(parts[1], 2, 2)
	if err != nil {
		return 0, &FormatError{Input: hhmm, Reason: "minute " + err.Error()}
	}
	second := 0
	if len(parts) == 3 {
		second, err = parseField(parts[2], 2, 2)
		if err != nil {
			return 0, &FormatError{Input: hhmm, Reason: "second " + err.Error()}
		}
	}

	if minute > 59 || second > 59 {
		return 0, &FormatError{Input: hhmm, Reason: "minute and second must be below 60"}
	}
	if hour > 24 || (hour == 24 && (minute > 0 || second > 0)) {
		return 0, &FormatError{Input: hhmm, Reason: "hour out of range"}
	}
	return hour*60 + minute, nil
}

// MustMinutes is ToMinutes for literals known to be valid.
func MustMinutes(hhmm string) int {
	m, err := ToMinutes(hhmm)
	if err != nil {
		panic(err)
	}
	return m
}

// ToHHMM formats minutes since midnight as zero padded HH:MM.
func ToHHMM(minutes int) string {
	if minutes < 0 {
		minutes = 0
	}
	if minutes > MinutesPerDay {
		minutes = MinutesPerDay
	}
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// DurationHHMM formats end-start as HH:MM.
func DurationHHMM(start, end int) (string, error) {
	if end <= start {
		return "", &InvalidRangeError{Start: start, End: end}
	}
	return ToHHMM(end - start), nil
}

// Overlaps reports whether [aStart,aEnd) and [bStart,bEnd) intersect.
// Ranges that only touch at a boundary do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd int) bool {
	return aStart < bEnd && bStart < aEnd
}

// Range is a half-open span of minutes within a day.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// ParseRange builds a Range from two clock strings.
func ParseRange(start, end string) (Range, error) {
	s, err := ToMinutes(start)
	if err != nil {
		return Range{}, err
	}
	e, err := ToMinutes(end)
	if err != nil {
		return Range{}, err
	}
	if e <= s {
		return Range{}, &InvalidRangeError{Start: s, End: e}
	}
	return Range{Start: s, End: e}, nil
}

// Minutes returns the length of the range.
func (r Range) Minutes() int {
	return r.End - r.Start
}

// Overlaps reports whether the two ranges intersect.
func (r Range) Overlaps(other Range) bool {
	return Overlaps(r.Start, r.End, other.Start, other.End)
}

// Contains reports whether other lies entirely inside r.
func (r Range) Contains(other Range) bool {
	return other.Start >= r.Start && other.End <= r.End
}

func (r Range) String() string {
	return ToHHMM(r.Start) + "-" + ToHHMM(r.End)
}

func parseField(raw string, minDigits, maxDigits int) (int, error) {
	if len(raw) < minDigits || len(raw) > maxDigits {
		return 0, fmt.Errorf("must have %d-%d digits", minDigits, maxDigits)
	}
	for _, r := range raw {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("must be numeric")
		}
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	return value, nil
}
