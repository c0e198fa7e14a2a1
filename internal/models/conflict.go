package models

import "time"

// ConflictType tags a conflict report entry.
type ConflictType string

const (
	ConflictRoom       ConflictType = "ROOM_CONFLICT"
	ConflictTeacher    ConflictType = "TEACHER_CONFLICT"
	ConflictDuplicate  ConflictType = "DUPLICATE_SECTION_SUBJECT_DAY"
	ConflictUnassigned ConflictType = "UNASSIGNED_SUBJECT"
)

// ConflictTypes lists every tag in report order.
var ConflictTypes = []ConflictType{ConflictRoom, ConflictTeacher, ConflictDuplicate, ConflictUnassigned}

// Conflict scan scopes.
const (
	ConflictScopePeriod     = "period"
	ConflictScopeAllPeriods = "all"
)

// ConflictRecord describes one violation found in a committed timetable.
type ConflictRecord struct {
	Type       ConflictType `json:"type"`
	Message    string       `json:"message"`
	MeetingIDs []string     `json:"meeting_ids,omitempty"`
	RoomID     string       `json:"room_id,omitempty"`
	TeacherID  string       `json:"teacher_id,omitempty"`
	SectionID  string       `json:"section_id,omitempty"`
	SubjectID  string       `json:"subject_id,omitempty"`
	Days       string       `json:"days,omitempty"`
}

// ConflictReport is the detector output for one scope.
type ConflictReport struct {
	Scope       string               `json:"scope"`
	PeriodID    string               `json:"period_id,omitempty"`
	Conflicts   []ConflictRecord     `json:"conflicts"`
	Counts      map[ConflictType]int `json:"counts"`
	GeneratedAt time.Time            `json:"generated_at"`
}
