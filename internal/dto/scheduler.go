package dto

import "github.com/mnuel1/spacio-backend/internal/models"

// AutoScheduleRequest regenerates the active period's timetable.
// An empty TeacherIDs regenerates every teacher.
type AutoScheduleRequest struct {
	TeacherIDs []string `json:"teacherIds" validate:"omitempty,dive,required"`
	Seed       *int64   `json:"seed,omitempty"`
}

// Placement is one merged meeting produced by a run.
type Placement struct {
	MeetingID   string          `json:"meetingId,omitempty"`
	TeacherID   string          `json:"teacherId"`
	SubjectID   string          `json:"subjectId"`
	SubjectCode string          `json:"subjectCode"`
	SectionID   string          `json:"sectionId"`
	RoomID      string          `json:"roomId"`
	RoomType    models.RoomType `json:"roomType"`
	Days        models.DaySet   `json:"days"`
	StartTime   string          `json:"startTime"`
	EndTime     string          `json:"endTime"`
	Duration    string          `json:"duration"`
	LoadUnits   int             `json:"loadUnits"`
}

// UnassignedPairing records a subject and section the run could not place.
type UnassignedPairing struct {
	SubjectID   string `json:"subjectId"`
	SubjectCode string `json:"subjectCode"`
	SectionID   string `json:"sectionId"`
	SectionName string `json:"sectionName"`
	Code        string `json:"code"`
	Reason      string `json:"reason"`
}

// PersistenceFailure is an insert that failed during the write phase.
type PersistenceFailure struct {
	TeacherID string `json:"teacherId"`
	SubjectID string `json:"subjectId,omitempty"`
	SectionID string `json:"sectionId,omitempty"`
	Error     string `json:"error"`
}

// AutoScheduleResult summarises a run.
type AutoScheduleResult struct {
	RunID             string               `json:"runId"`
	PeriodID          string               `json:"periodId"`
	DeletedMeetings   int64                `json:"deletedMeetings"`
	Placements        []Placement          `json:"placements"`
	Unassigned        []UnassignedPairing  `json:"unassigned"`
	TeacherLoads      map[string]int       `json:"teacherLoads"`
	PersistenceErrors []PersistenceFailure `json:"persistenceErrors,omitempty"`
	BlocksPlaced      int                  `json:"blocksPlaced"`
	DurationMs        int64                `json:"durationMs"`
}

// BlockPlanRequest asks for a block split preview.
type BlockPlanRequest struct {
	LectureHours int `json:"lectureHours" validate:"min=0,max=40"`
	LabHours     int `json:"labHours" validate:"min=0,max=40"`
}

// BlockPlanResponse returns the planned blocks.
type BlockPlanResponse struct {
	Blocks     []models.Block `json:"blocks"`
	TotalHours int            `json:"totalHours"`
}
