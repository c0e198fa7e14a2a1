package models

import "time"

// Section is a student cohort that attends meetings within one period.
type Section struct {
	ID              string    `db:"id" json:"id"`
	Name            string    `db:"name" json:"name"`
	EnrollmentCount int       `db:"enrollment_count" json:"enrollment_count"`
	PeriodID        *string   `db:"period_id" json:"period_id,omitempty"`
	Semester        string    `db:"semester" json:"semester"`
	SchoolYear      string    `db:"school_year" json:"school_year"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}
