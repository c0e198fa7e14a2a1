package models

import (
	"time"

	"github.com/mnuel1/spacio-backend/pkg/timeutil"
)

// Meeting is one scheduled class: a subject taught by a teacher to a section
// in a room on a set of days within a time range.
type Meeting struct {
	ID        string    `db:"id" json:"id"`
	PeriodID  string    `db:"period_id" json:"period_id"`
	SubjectID string    `db:"subject_id" json:"subject_id"`
	TeacherID string    `db:"teacher_id" json:"teacher_id"`
	SectionID string    `db:"section_id" json:"section_id"`
	RoomID    string    `db:"room_id" json:"room_id"`
	Days      DaySet    `db:"days" json:"days"`
	StartTime string    `db:"start_time" json:"start_time"`
	EndTime   string    `db:"end_time" json:"end_time"`
	Duration  string    `db:"duration" json:"duration"`
	LoadUnits int       `db:"load_units" json:"load_units"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// TimeRange parses the meeting's start and end.
func (m Meeting) TimeRange() (timeutil.Range, error) {
	return timeutil.ParseRange(m.StartTime, m.EndTime)
}

// MeetingDetail joins a meeting with display names for listings and exports.
type MeetingDetail struct {
	Meeting
	SubjectCode string   `db:"subject_code" json:"subject_code"`
	SubjectName string   `db:"subject_name" json:"subject_name"`
	TeacherName string   `db:"teacher_name" json:"teacher_name"`
	SectionName string   `db:"section_name" json:"section_name"`
	RoomName    string   `db:"room_name" json:"room_name"`
	RoomType    RoomType `db:"room_type" json:"room_type"`
}

// MeetingFilter narrows meeting queries. Empty fields are ignored.
type MeetingFilter struct {
	PeriodID   string
	TeacherID  string
	SectionID  string
	RoomID     string
	TeacherIDs []string
}
