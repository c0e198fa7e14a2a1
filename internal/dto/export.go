package dto

// ExportQuery selects format and filters for a timetable export.
type ExportQuery struct {
	Format    string `form:"format" validate:"omitempty,oneof=csv pdf xlsx ics"`
	TeacherID string `form:"teacher_id"`
	SectionID string `form:"section_id"`
	RoomID    string `form:"room_id"`
}

// ExportFile is a rendered export ready to stream.
type ExportFile struct {
	Filename    string
	ContentType string
	Content     []byte
}
