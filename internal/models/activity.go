package models

import "time"

// Activity actions recorded by the scheduling engine.
const (
	ActivityMeetingCreate   = "MEETING_CREATE"
	ActivityMeetingReassign = "MEETING_REASSIGN"
	ActivityMeetingDelete   = "MEETING_DELETE"
	ActivityAutoSchedule    = "AUTO_SCHEDULE"
)

// ActivityLog is an append-only record of timetable mutations.
type ActivityLog struct {
	ID         string    `db:"id" json:"id"`
	ActorID    *string   `db:"actor_id" json:"actor_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	Text       string    `db:"text" json:"text"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
