package models

import (
	"fmt"
	"time"
)

// AcademicPeriod is one term (semester + school year). Exactly one period is active.
type AcademicPeriod struct {
	ID         string     `db:"id" json:"id"`
	Semester   string     `db:"semester" json:"semester"`
	SchoolYear string     `db:"school_year" json:"school_year"`
	IsActive   bool       `db:"is_active" json:"is_active"`
	StartDate  *time.Time `db:"start_date" json:"start_date,omitempty"`
	EndDate    *time.Time `db:"end_date" json:"end_date,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

// Label renders a human readable period name.
func (p AcademicPeriod) Label() string {
	return fmt.Sprintf("%s %s", p.Semester, p.SchoolYear)
}
