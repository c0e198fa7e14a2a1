package models

import (
	"errors"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/mnuel1/spacio-backend/pkg/timeutil"
)

// LoadAllowance is added on top of a position's minimum load to obtain the maximum load.
const LoadAllowance = 12

// Faculty positions recognised by the load table.
const (
	PositionDean        = "Dean"
	PositionProgramHead = "Program Head"
	PositionFullTime    = "Full-time"
	PositionPartTime    = "Part-time"
)

var minLoadByPosition = map[string]int{
	strings.ToLower(PositionDean):        3,
	strings.ToLower(PositionProgramHead): 6,
	strings.ToLower(PositionFullTime):    12,
	strings.ToLower(PositionPartTime):    0,
}

// MinLoad returns the minimum teaching load for a position. Unknown positions carry none.
func MinLoad(position string) int {
	return minLoadByPosition[strings.ToLower(strings.TrimSpace(position))]
}

// Teacher represents an instructor with availability and load bookkeeping.
type Teacher struct {
	ID              string         `db:"id" json:"id"`
	FullName        string         `db:"full_name" json:"full_name"`
	Email           string         `db:"email" json:"email"`
	Position        string         `db:"position" json:"position"`
	Specializations pq.StringArray `db:"specializations" json:"specializations"`
	AvailDays       DaySet         `db:"avail_days" json:"avail_days"`
	PrefStart       string         `db:"pref_start" json:"pref_start"`
	PrefEnd         string         `db:"pref_end" json:"pref_end"`
	CurrentLoad     int            `db:"current_load" json:"current_load"`
	MaxLoad         int            `db:"max_load" json:"max_load"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

// EffectiveMaxLoad returns the stored max load, or MinLoad(position)+12 when unset.
func (t Teacher) EffectiveMaxLoad() int {
	if t.MaxLoad > 0 {
		return t.MaxLoad
	}
	return MinLoad(t.Position) + LoadAllowance
}

// HasSpecialization performs an exact, whitespace-trimmed match.
func (t Teacher) HasSpecialization(tag string) bool {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return false
	}
	for _, s := range t.Specializations {
		if strings.TrimSpace(s) == tag {
			return true
		}
	}
	return false
}

// ErrNoPreferredWindow is returned for a teacher whose window is not configured.
var ErrNoPreferredWindow = errors.New("no preferred time window configured")

// AvailableDays returns the availability set. An empty set admits no day.
func (t Teacher) AvailableDays() DaySet {
	return t.AvailDays
}

// PreferredWindow parses the preferred teaching window. A blank bound yields
// ErrNoPreferredWindow.
func (t Teacher) PreferredWindow() (timeutil.Range, error) {
	if strings.TrimSpace(t.PrefStart) == "" || strings.TrimSpace(t.PrefEnd) == "" {
		return timeutil.Range{}, ErrNoPreferredWindow
	}
	return timeutil.ParseRange(t.PrefStart, t.PrefEnd)
}

// TeacherFilter narrows roster queries.
type TeacherFilter struct {
	IDs []string
}
