package dto

import "github.com/mnuel1/spacio-backend/internal/models"

// CreateMeetingRequest proposes a new meeting in the active period.
type CreateMeetingRequest struct {
	SubjectID string `json:"subjectId" validate:"required"`
	TeacherID string `json:"teacherId" validate:"required"`
	SectionID string `json:"sectionId" validate:"required"`
	RoomID    string `json:"roomId" validate:"required"`
	Days      string `json:"days" validate:"required"`
	StartTime string `json:"startTime" validate:"required"`
	EndTime   string `json:"endTime" validate:"required"`
}

// ReassignMeetingRequest changes a meeting. Empty fields keep their current value.
type ReassignMeetingRequest struct {
	SubjectID string `json:"subjectId"`
	TeacherID string `json:"teacherId"`
	SectionID string `json:"sectionId"`
	RoomID    string `json:"roomId"`
	Days      string `json:"days"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// MeetingListQuery filters the active period's meetings.
type MeetingListQuery struct {
	TeacherID string `form:"teacher_id"`
	SectionID string `form:"section_id"`
	RoomID    string `form:"room_id"`
}

// MeetingResponse wraps a persisted meeting with the teacher's resulting load.
type MeetingResponse struct {
	Meeting     models.Meeting `json:"meeting"`
	TeacherLoad int            `json:"teacherLoad"`
}
