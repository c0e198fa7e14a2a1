package models

import "time"

// Subject is a catalog entry scheduled within an academic period.
type Subject struct {
	ID             string    `db:"id" json:"id"`
	Code           string    `db:"code" json:"code"`
	Name           string    `db:"name" json:"name"`
	Specialization string    `db:"specialization" json:"specialization"`
	Units          int       `db:"units" json:"units"`
	LecHours       int       `db:"lec_hours" json:"lec_hours"`
	LabHours       int       `db:"lab_hours" json:"lab_hours"`
	PeriodID       *string   `db:"period_id" json:"period_id,omitempty"`
	Semester       string    `db:"semester" json:"semester"`
	SchoolYear     string    `db:"school_year" json:"school_year"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// TotalHours returns lecture plus lab hours.
func (s Subject) TotalHours() int {
	return s.LecHours + s.LabHours
}
